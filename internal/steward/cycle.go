package steward

import (
	"context"
	"log/slog"
)

// Steward runs observe, decide and act cycles against one API.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
}

// New creates a Steward for baseURL. memoryPath may be empty.
func New(baseURL, adminKey, memoryPath string) *Steward {
	return &Steward{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, adminKey),
		Memory:   LoadMemory(memoryPath),
	}
}

// Cycle plays one turn and reports whether the game is over.
func (s *Steward) Cycle(ctx context.Context) (bool, error) {
	snap, err := s.Observer.Observe(ctx)
	if err != nil {
		return false, err
	}
	if snap.Status.Status.Over {
		return true, nil
	}

	h := Triage(snap)
	d := Decide(snap, h)
	slog.Info("steward decision",
		"turn", snap.Status.Turn,
		"action", d.Action,
		"crisis", h.CrisisLevel,
		"rationale", d.Rationale,
	)

	res, err := s.Actor.Act(ctx, d)
	if err != nil {
		return false, err
	}
	if !res.Success {
		slog.Warn("steward action refused", "action", d.Action, "reason", res.Message)
	}

	s.Memory.Record(CycleRecord{
		GameID:      snap.Status.GameID,
		Turn:        snap.Status.Turn,
		Action:      d.Action,
		Lots:        d.Lots,
		Money:       snap.Status.Money,
		Anger:       h.Anger,
		CrisisLevel: h.CrisisLevel,
		Rationale:   d.Rationale,
	})
	s.Memory.Save()

	turn, err := s.Actor.EndTurn(ctx)
	if err != nil {
		return false, err
	}
	slog.Info("steward turn ended",
		"turn", turn.Turn,
		"income", turn.Settlement.Income,
		"fee", turn.Settlement.CarbonFee,
		"over", turn.Status.Over,
	)
	return turn.Status.Over, nil
}
