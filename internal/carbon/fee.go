// Package carbon computes emissions, carbon fees and the CBAM export tax.
// Every formula is owner-parameterised and reads the world without mutating it.
package carbon

import (
	"log/slog"
	"math"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
)

// LandLookup resolves a tile. *land.System satisfies it.
type LandLookup interface {
	Land(index int) (land.Land, bool)
}

// Deduction is the fee-equivalent emission covered by credits.
type Deduction struct {
	Domestic      int `json:"domestic"`
	International int `json:"international"`
	Total         int `json:"total"`
}

// Breakdown carries the intermediate figures used to render a fee.
type Breakdown struct {
	FreeEmission  int     `json:"free_emission"`
	AfterFree     int     `json:"after_free"`
	IndustryCoeff float64 `json:"industry_coeff"`
}

// Fee is the full fee calculation for one owner.
type Fee struct {
	Owner         config.OwnerID `json:"owner"`
	TotalEmission int            `json:"total_emission"`
	Chargeable    int            `json:"chargeable"`
	Deduction     Deduction      `json:"deduction"`
	Taxable       int            `json:"taxable"`
	AverageRate   float64        `json:"average_rate"`
	CarbonFee     int            `json:"carbon_fee"`
	Penalized     bool           `json:"penalized"`
	Breakdown     Breakdown      `json:"breakdown"`
}

type System struct {
	world  *state.World
	lands  LandLookup
	tables *config.Tables
}

func NewSystem(world *state.World, lands LandLookup) *System {
	return &System{world: world, lands: lands, tables: world.Tables()}
}

// BuildingEmission is direct × land coeff × level coeff plus indirect, with the
// indirect share reduced on zones that carry an indirect reduction.
func (s *System) BuildingEmission(b state.Building) float64 {
	bt, ok := s.tables.Building(b.Type)
	if !ok {
		slog.Warn("unknown building type", "type", b.Type, "tile", b.TileIndex)
		return 0
	}

	landCoeff := 1.0
	indirectFactor := 1.0
	if l, ok := s.lands.Land(b.TileIndex); ok {
		landCoeff = l.EmissionCoeff
		if lt, ok := s.tables.LandType(l.Type); ok && lt.IndirectReduction > 0 {
			indirectFactor = 1 - lt.IndirectReduction
		}
	}

	level := b.Level
	if level == "" {
		level = config.Lv1
	}

	direct := bt.DirectEmission
	if direct == 0 {
		direct = float64(bt.Emission)
	}
	return direct*landCoeff*s.tables.LevelCoeff(level) + bt.IndirectEmission*indirectFactor
}

// TotalEmission sums owner's building emissions, rounding once at the end.
func (s *System) TotalEmission(owner config.OwnerID) int {
	total := 0.0
	for _, b := range s.world.BuildingsOf(owner) {
		total += s.BuildingEmission(b)
	}
	return max(0, round(total))
}

// PlayerEmission adapts TotalEmission to state.EmissionModel.
func (s *System) PlayerEmission(*state.World) int {
	return s.TotalEmission(config.Player)
}

// industryCoeff is the emission-weighted mean of the archetype coefficients, 1.0 if nothing emits.
func (s *System) industryCoeff(buildings []state.Building) float64 {
	weighted, weight := 0.0, 0.0
	for _, b := range buildings {
		bt, ok := s.tables.Building(b.Type)
		if !ok {
			continue
		}
		e := s.BuildingEmission(b)
		weighted += e * bt.IndustryCoeff
		weight += e
	}
	if weight <= 0 {
		return 1.0
	}
	return weighted / weight
}

// ChargeableEmission is the emission above the free allowance scaled by the
// weighted industry coefficient. It is 0 for an owner with no buildings.
func (s *System) ChargeableEmission(owner config.OwnerID) int {
	buildings := s.world.BuildingsOf(owner)
	if len(buildings) == 0 {
		return 0
	}
	afterFree := max(0, s.TotalEmission(owner)-s.tables.Tunables.FreeEmission)
	return round(float64(afterFree) * s.industryCoeff(buildings))
}

// CreditDeduction caps each credit pool at its share of chargeable emission.
// Each part is rounded independently and the total is their sum.
func (s *System) CreditDeduction(chargeable, domesticCredits, intlCredits int) Deduction {
	tu := s.tables.Tunables
	dom := math.Min(float64(domesticCredits)*tu.DomesticCreditMultiplier, float64(chargeable)*tu.DomesticCreditMaxPercent)
	intl := math.Min(float64(intlCredits)*tu.IntlCreditMultiplier, float64(chargeable)*tu.IntlCreditMaxPercent)
	d := Deduction{Domestic: max(0, round(dom)), International: max(0, round(intl))}
	d.Total = d.Domestic + d.International
	return d
}

// credits returns owner's credit balances. Competitors hold none.
func (s *System) credits(owner config.OwnerID) (int, int) {
	if owner != config.Player {
		return 0, 0
	}
	return s.world.DomesticCredits(), s.world.IntlCredits()
}

// averageRate is the emission-weighted factory-level rate, the Lv1 rate by default.
func (s *System) averageRate(buildings []state.Building) float64 {
	base := s.tables.BaseRate()
	weighted, weight := 0.0, 0.0
	for _, b := range buildings {
		e := s.BuildingEmission(b)
		weighted += e * s.tables.LevelRate(b.Level)
		weight += e
	}
	if weight <= 0 {
		return base
	}
	return weighted / weight
}

// CarbonFee computes owner's fee for the current turn with its full breakdown.
func (s *System) CarbonFee(owner config.OwnerID) Fee {
	tu := s.tables.Tunables
	total := s.TotalEmission(owner)
	chargeable := s.ChargeableEmission(owner)
	dom, intl := s.credits(owner)
	ded := s.CreditDeduction(chargeable, dom, intl)
	taxable := max(0, chargeable-ded.Total)

	buildings := s.world.BuildingsOf(owner)
	rate := s.averageRate(buildings)
	fee := round(float64(taxable) * rate / 100)

	penalized := false
	if tu.EarlyExpansionPenalty && owner == config.Player && s.world.Turn() <= tu.EarlyExpansionTurns {
		mult := tu.EarlyExpansionPenaltyRate
		if mult <= 0 {
			mult = 1.5
		}
		fee = round(float64(fee) * mult)
		penalized = true
	}

	afterFree := max(0, total-tu.FreeEmission)
	return Fee{
		Owner:         owner,
		TotalEmission: total,
		Chargeable:    chargeable,
		Deduction:     ded,
		Taxable:       taxable,
		AverageRate:   rate,
		CarbonFee:     fee,
		Penalized:     penalized,
		Breakdown: Breakdown{
			FreeEmission:  tu.FreeEmission,
			AfterFree:     afterFree,
			IndustryCoeff: float64(chargeable) / float64(max(1, afterFree)),
		},
	}
}

// CBAMTax charges export-oriented buildings per ton from the start turn on.
func (s *System) CBAMTax(owner config.OwnerID, turn int) int {
	tu := s.tables.Tunables
	if turn < tu.CBAMStartTurn {
		return 0
	}
	exported := 0.0
	for _, b := range s.world.BuildingsOf(owner) {
		if bt, ok := s.tables.Building(b.Type); ok && bt.Export {
			exported += s.BuildingEmission(b)
		}
	}
	return round(exported * tu.CBAMRatePerTon)
}

// Fees computes CarbonFee for each owner in order.
func (s *System) Fees(owners []config.OwnerID) map[config.OwnerID]Fee {
	out := make(map[config.OwnerID]Fee, len(owners))
	for _, o := range owners {
		out[o] = s.CarbonFee(o)
	}
	return out
}

func round(v float64) int { return int(math.Round(v)) }
