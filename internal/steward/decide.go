package steward

import "fmt"

// Action is what the steward does before ending a turn.
type Action string

const (
	ActionNone    Action = "none"
	ActionCredits Action = "credits" // buy domestic credit lots
	ActionDevelop Action = "develop" // run the server's autoplay heuristic
)

// Reserve is the cash the steward never spends.
const Reserve = 8000

// Decision is the outcome of one decide step.
type Decision struct {
	Action    Action `json:"action"`
	Rationale string `json:"rationale"`
	Lots      int    `json:"lots,omitempty"`
}

// Decide picks at most one action. Covering the fee with credits wins over
// developing whenever the position is not healthy.
func Decide(snap *Snapshot, h *Health) Decision {
	st := snap.Status
	if st.Status.Over {
		return Decision{Action: ActionNone, Rationale: "game over: " + st.Status.Reason}
	}

	spare := st.Money - Reserve
	if h.Shortfall > 0 && h.CrisisLevel != CrisisHealthy && st.DomesticPrice > 0 && st.CreditLotSize > 0 {
		want := (h.Shortfall + st.CreditLotSize - 1) / st.CreditLotSize
		lots := min(want, max(0, spare/st.DomesticPrice))
		if lots > 0 {
			return Decision{
				Action:    ActionCredits,
				Lots:      lots,
				Rationale: fmt.Sprintf("%s: %d domestic credits short of the deduction cap", h.CrisisLevel, h.Shortfall),
			}
		}
	}

	if spare > 0 && h.CrisisLevel != CrisisCritical {
		return Decision{
			Action:    ActionDevelop,
			Rationale: fmt.Sprintf("%s with %d spare, rank %d", h.CrisisLevel, spare, h.Rank),
		}
	}
	return Decision{Action: ActionNone, Rationale: fmt.Sprintf("%s, holding cash", h.CrisisLevel)}
}
