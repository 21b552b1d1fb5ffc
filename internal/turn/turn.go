// Package turn resolves the end of a year: settlement, audits, monster growth
// and credit market repricing.
package turn

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/talgya/carbon-monster/internal/carbon"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
	"github.com/talgya/carbon-monster/internal/state"
)

// Anger tiers that accelerate monster growth.
const (
	rageAbove    = 70.0
	panicAbove   = 90.0
	pressureFrom = 50.0

	rageMultiplier     = 1.5
	panicMultiplier    = 2.0
	pressureMultiplier = 1.2

	emissionFactorCap  = 2.0
	emissionFactorUnit = 100000.0
)

// AuditOutcome classifies an audit.
type AuditOutcome string

const (
	AuditPenalty AuditOutcome = "penalty"
	AuditWarning AuditOutcome = "warning"
	AuditBonus   AuditOutcome = "bonus"
	AuditNormal  AuditOutcome = "normal"
)

// AuditResult is the outcome of one audit. Amount is the penalty or bonus paid.
type AuditResult struct {
	Turn    int          `json:"turn"`
	Outcome AuditOutcome `json:"outcome"`
	Amount  int          `json:"amount"`
	Message string       `json:"message"`
}

// AuditRecord is an immutable history entry.
type AuditRecord struct {
	Turn       int         `json:"turn"`
	Emission   int         `json:"emission"`
	Chargeable int         `json:"chargeable"`
	Result     AuditResult `json:"result"`
}

// CreditsUsed is the number of credit units consumed by a settlement.
type CreditsUsed struct {
	Domestic      int `json:"domestic"`
	International int `json:"international"`
}

// Settlement is the year-end financial result for the player.
type Settlement struct {
	Turn        int          `json:"turn"`
	Income      int          `json:"income"`
	CarbonFee   int          `json:"carbon_fee"`
	CBAMTax     int          `json:"cbam_tax"`
	CBAMApplied bool         `json:"cbam_applied"`
	TotalTax    int          `json:"total_tax"`
	NetIncome   int          `json:"net_income"`
	Fee         carbon.Fee   `json:"fee"`
	CreditsUsed CreditsUsed  `json:"credits_used"`
	Audit       *AuditResult `json:"audit,omitempty"`
}

// MonsterGrowth reports one growth step.
type MonsterGrowth struct {
	PlayerEmission     int     `json:"player_emission"`
	CompetitorEmission int     `json:"competitor_emission"`
	WorldEmission      int     `json:"world_emission"`
	Growth             int     `json:"growth"`
	Anger              float64 `json:"anger"`
}

// PriceChange is an old/new market price pair.
type PriceChange struct {
	Old    int `json:"old"`
	New    int `json:"new"`
	Change int `json:"change"`
}

type Repricing struct {
	Domestic      PriceChange `json:"domestic"`
	International PriceChange `json:"international"`
}

// System runs the year-end steps and keeps the audit history.
type System struct {
	world   *state.World
	fees    *carbon.System
	tables  *config.Tables
	history []AuditRecord
}

func NewSystem(world *state.World, fees *carbon.System) *System {
	return &System{world: world, fees: fees, tables: world.Tables()}
}

// Settle runs the player's year-end settlement. The order is fixed: income, fee,
// CBAM, credit consumption, treasury, then the audit when due.
func (s *System) Settle() Settlement {
	tu := s.tables.Tunables
	w := s.world

	r := Settlement{Turn: w.Turn(), Income: w.ProjectedIncome()}
	r.Fee = s.fees.CarbonFee(config.Player)
	r.CarbonFee = r.Fee.CarbonFee
	if s.ShouldApplyCBAM() {
		r.CBAMTax = s.fees.CBAMTax(config.Player, w.Turn())
		r.CBAMApplied = true
	}
	r.TotalTax = r.CarbonFee + r.CBAMTax
	r.NetIncome = r.Income - r.TotalTax

	r.CreditsUsed = CreditsUsed{
		Domestic:      creditUnits(r.Fee.Deduction.Domestic, tu.DomesticCreditMultiplier),
		International: creditUnits(r.Fee.Deduction.International, tu.IntlCreditMultiplier),
	}
	w.SetDomesticCredits(max(0, w.DomesticCredits()-r.CreditsUsed.Domestic))
	w.SetIntlCredits(max(0, w.IntlCredits()-r.CreditsUsed.International))

	w.AddMoney(r.Income)
	w.SubtractMoney(r.TotalTax)

	if s.ShouldAudit() {
		a := s.Audit()
		r.Audit = &a
	}

	slog.Info("settlement", "turn", r.Turn, "income", r.Income, "fee", r.CarbonFee,
		"cbam", r.CBAMTax, "net", r.NetIncome, "money", w.Money())
	return r
}

// creditUnits converts a fee-equivalent deduction back into credits consumed.
func creditUnits(deduction int, multiplier float64) int {
	if multiplier <= 0 {
		return 0
	}
	return int(math.Floor(float64(deduction) / multiplier))
}

// Audit grades the player's chargeable emission, applies any penalty or bonus
// and appends the outcome to the history.
func (s *System) Audit() AuditResult {
	tu := s.tables.Tunables
	w := s.world
	emission := s.fees.TotalEmission(config.Player)
	chargeable := s.fees.ChargeableEmission(config.Player)

	res := AuditResult{Turn: w.Turn()}
	switch {
	case chargeable > tu.AuditPenaltyAbove:
		res.Outcome = AuditPenalty
		res.Amount = int(math.Floor(float64(chargeable) * tu.AuditPenaltyRate))
		w.SubtractMoney(res.Amount)
		res.Message = fmt.Sprintf("audit: emission too high, fined $%s", humanize.Comma(int64(res.Amount)))
	case chargeable > tu.AuditWarningAbove:
		res.Outcome = AuditWarning
		res.Message = "audit: emission is high, cut carbon soon"
	case chargeable < tu.AuditBonusBelow && emission > 0:
		res.Outcome = AuditBonus
		res.Amount = int(math.Floor(float64(w.Money()) * tu.AuditBonusRate))
		w.AddMoney(res.Amount)
		res.Message = fmt.Sprintf("audit: good reduction work, awarded $%s", humanize.Comma(int64(res.Amount)))
	default:
		res.Outcome = AuditNormal
		res.Message = "audit: all in order"
	}

	s.history = append(s.history, AuditRecord{Turn: res.Turn, Emission: emission, Chargeable: chargeable, Result: res})
	slog.Info("audit", "turn", res.Turn, "outcome", res.Outcome, "chargeable", chargeable, "amount", res.Amount)
	return res
}

// AuditHistory returns a copy of every audit so far, oldest first.
func (s *System) AuditHistory() []AuditRecord {
	return append([]AuditRecord(nil), s.history...)
}

// RestoreHistory replaces the audit history, e.g. from a save.
func (s *System) RestoreHistory(records []AuditRecord) {
	s.history = append([]AuditRecord(nil), records...)
}

// WorldEmission returns the player's and the competitors' combined emission.
func (s *System) WorldEmission() (player, competitors int) {
	player = s.fees.TotalEmission(config.Player)
	for _, id := range s.world.CompetitorIDs() {
		competitors += s.fees.TotalEmission(id)
	}
	return player, competitors
}

// GrowMonster feeds the monster from world emission. Growth scales with the
// turn number and accelerates through the anger tiers.
func (s *System) GrowMonster() MonsterGrowth {
	tu := s.tables.Tunables
	w := s.world
	player, comps := s.WorldEmission()
	world := player + comps

	growth := tu.MonsterBaseGrowth
	if tu.MonsterGrowthDivisor > 0 {
		growth += world / tu.MonsterGrowthDivisor
	}
	growth = floorMul(growth, 1+float64(w.Turn())*tu.MonsterTurnGrowth)

	anger := w.MonsterAnger()
	if anger > pressureFrom && anger <= rageAbove {
		growth = floorMul(growth, pressureMultiplier)
	}
	if anger > rageAbove {
		growth = floorMul(growth, rageMultiplier)
	}
	if anger > panicAbove {
		growth = floorMul(growth, panicMultiplier)
	}

	w.AddMonsterAnger(float64(growth))
	return MonsterGrowth{
		PlayerEmission:     player,
		CompetitorEmission: comps,
		WorldEmission:      world,
		Growth:             growth,
		Anger:              w.MonsterAnger(),
	}
}

func floorMul(v int, f float64) int { return int(math.Floor(float64(v) * f)) }

// Reprice nudges credit prices up with world emission, scaled by a random
// factor in [0.8, 1.2).
func (s *System) Reprice(rng entropy.Source) Repricing {
	w := s.world
	player, comps := s.WorldEmission()
	factor := math.Min(float64(player+comps)/emissionFactorUnit, emissionFactorCap)
	jitter := 0.8 + rng.Float64()*0.4

	oldDom, oldIntl := w.DomesticPrice(), w.IntlPrice()
	dom := int(math.Floor(float64(oldDom) * (1 + factor*0.1) * jitter))
	intl := int(math.Floor(float64(oldIntl) * (1 + factor*0.05) * jitter))
	w.SetPrices(dom, intl)

	return Repricing{
		Domestic:      PriceChange{Old: oldDom, New: w.DomesticPrice(), Change: w.DomesticPrice() - oldDom},
		International: PriceChange{Old: oldIntl, New: w.IntlPrice(), Change: w.IntlPrice() - oldIntl},
	}
}

func (s *System) ShouldAudit() bool {
	iv := s.tables.Tunables.AuditInterval
	return iv > 0 && s.world.Turn()%iv == 0
}

func (s *System) ShouldApplyCBAM() bool {
	return s.world.Turn() >= s.tables.Tunables.CBAMStartTurn
}
