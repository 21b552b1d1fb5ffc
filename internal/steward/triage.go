package steward

import "math"

// Crisis levels, most severe first.
const (
	CrisisCritical = "CRITICAL"
	CrisisWarning  = "WARNING"
	CrisisWatch    = "WATCH"
	CrisisHealthy  = "HEALTHY"
)

// Health holds signals derived from a Snapshot before deciding.
type Health struct {
	Anger        float64
	NetIncome    int // projected income less this turn's fee and CBAM
	CreditTarget int // domestic credits that fill the domestic deduction cap
	Shortfall    int // CreditTarget less credits held
	Rank         int // 1 + competitors richer than the player
	CrisisLevel  string
}

// Triage computes Health from the snapshot.
func Triage(snap *Snapshot) *Health {
	st := snap.Status
	tu := snap.Tunables
	fee := snap.PlayerFee()

	h := &Health{
		Anger:     st.MonsterAnger,
		NetIncome: st.ProjectedIncome - fee.CarbonFee - fee.CBAM,
		Rank:      1,
	}

	if tu.DomesticCreditMultiplier > 0 {
		limit := float64(fee.Chargeable) * tu.DomesticCreditMaxPercent
		h.CreditTarget = int(math.Ceil(limit / tu.DomesticCreditMultiplier))
	}
	h.Shortfall = max(0, h.CreditTarget-st.DomesticCredits)

	for _, c := range snap.Competitors {
		if c.Money > st.Money {
			h.Rank++
		}
	}

	switch {
	case h.Anger >= 80:
		h.CrisisLevel = CrisisCritical
	case h.NetIncome < 0 && st.Money < fee.CarbonFee:
		h.CrisisLevel = CrisisCritical
	case h.Anger >= 60 || h.NetIncome < 0:
		h.CrisisLevel = CrisisWarning
	case h.Anger >= 40 || h.Shortfall > 0:
		h.CrisisLevel = CrisisWatch
	default:
		h.CrisisLevel = CrisisHealthy
	}
	return h
}
