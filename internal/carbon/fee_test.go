package carbon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
)

type fakeLands map[int]land.Land

func (f fakeLands) Land(i int) (land.Land, bool) {
	l, ok := f[i]
	return l, ok
}

func tile(i int, typ config.LandTypeID) land.Land {
	coeff := map[config.LandTypeID]float64{
		config.LandBasic:          1.0,
		config.LandGreenGrid:      1.0,
		config.LandHighEfficiency: 0.8,
		config.LandExportZone:     1.0,
		config.LandHighEmission:   1.2,
	}[typ]
	return land.Land{Index: i, Type: typ, EmissionCoeff: coeff}
}

func basicGrid() fakeLands {
	f := fakeLands{}
	for i := 0; i < 20; i++ {
		f[i] = tile(i, config.LandBasic)
	}
	return f
}

func setup(t *testing.T, lands fakeLands) (*state.World, *System) {
	t.Helper()
	w := state.New(config.Default())
	return w, NewSystem(w, lands)
}

func place(t *testing.T, w *state.World, owner config.OwnerID, typ config.BuildingTypeID, tiles ...int) {
	t.Helper()
	for _, i := range tiles {
		require.True(t, w.AddBuilding(state.Building{Type: typ, TileIndex: i, Owner: owner}))
	}
}

func advanceTo(w *state.World, turn int) {
	for w.Turn() < turn {
		w.NextTurn()
	}
}

func TestLoneCoalPlantIsUnderAllowance(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.Player, config.Coal, 0)

	fee := s.CarbonFee(config.Player)
	assert.Equal(t, 3500, fee.TotalEmission)
	assert.Equal(t, 0, fee.Chargeable)
	assert.Equal(t, 0, fee.CarbonFee)
}

func TestThreeCoalPlantsWithEarlyPenalty(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.Player, config.Coal, 0, 5, 10)

	fee := s.CarbonFee(config.Player)
	assert.Equal(t, 10500, fee.TotalEmission)
	assert.Equal(t, 500, fee.Chargeable)
	assert.Equal(t, 500.0, fee.AverageRate)
	assert.Equal(t, 3750, fee.CarbonFee)
	assert.True(t, fee.Penalized)
	assert.Equal(t, 10000, fee.Breakdown.FreeEmission)
	assert.Equal(t, 500, fee.Breakdown.AfterFree)
	assert.Equal(t, 1.0, fee.Breakdown.IndustryCoeff)

	advanceTo(w, 3)
	assert.Equal(t, 3750, s.CarbonFee(config.Player).CarbonFee)

	advanceTo(w, 4)
	fee = s.CarbonFee(config.Player)
	assert.Equal(t, 2500, fee.CarbonFee)
	assert.False(t, fee.Penalized)
}

func TestPenaltyDisabled(t *testing.T) {
	tables := config.Default()
	tables.Tunables.EarlyExpansionPenalty = false
	w := state.New(tables)
	s := NewSystem(w, basicGrid())
	place(t, w, config.Player, config.Coal, 0, 5, 10)
	assert.Equal(t, 2500, s.CarbonFee(config.Player).CarbonFee)
}

func TestBuildingEmissionLandAndLevel(t *testing.T) {
	lands := fakeLands{
		0: tile(0, config.LandGreenGrid),
		1: tile(1, config.LandHighEfficiency),
		2: tile(2, config.LandHighEmission),
	}
	_, s := setup(t, lands)

	assert.InDelta(t, 400.0, s.BuildingEmission(state.Building{Type: config.Tech, TileIndex: 0, Level: config.Lv1}), 1e-9)
	assert.InDelta(t, 2240.0, s.BuildingEmission(state.Building{Type: config.Coal, TileIndex: 1, Level: config.Lv2}), 1e-9)
	assert.InDelta(t, 4200.0, s.BuildingEmission(state.Building{Type: config.Coal, TileIndex: 2, Level: config.Lv1}), 1e-9)
	assert.InDelta(t, 3500.0, s.BuildingEmission(state.Building{Type: config.Coal, TileIndex: 9}), 1e-9, "missing tile is neutral")
	assert.Zero(t, s.BuildingEmission(state.Building{Type: "nuclear", TileIndex: 0}))
}

func TestTotalEmissionRoundsOnceAtAggregate(t *testing.T) {
	lands := basicGrid()
	lands[0] = tile(0, config.LandHighEfficiency)
	lands[1] = tile(1, config.LandHighEmission)
	lands[2] = tile(2, config.LandGreenGrid)
	w, s := setup(t, lands)
	place(t, w, config.CompetitorB, config.Gas, 0, 1)
	place(t, w, config.CompetitorB, config.GasSupply, 2)
	require.True(t, w.UpgradeBuilding(1, config.CompetitorB, config.Lv3))

	sum := 0.0
	for _, b := range w.BuildingsOf(config.CompetitorB) {
		sum += s.BuildingEmission(b)
	}
	assert.Equal(t, round(sum), s.TotalEmission(config.CompetitorB))
	assert.GreaterOrEqual(t, s.TotalEmission(config.CompetitorC), 0)
}

func TestChargeableUsesWeightedIndustryCoeff(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.Player, config.Coal, 0, 5, 10)
	place(t, w, config.Player, config.Gas, 15)

	// (10500×1.0 + 1500×0.8) / 12000 = 0.975 applied to 2000 above the allowance.
	assert.Equal(t, 1950, s.ChargeableEmission(config.Player))
	assert.Equal(t, 0, s.ChargeableEmission(config.CompetitorA))
}

func TestCreditDeductionCaps(t *testing.T) {
	_, s := setup(t, basicGrid())

	d := s.CreditDeduction(1000, 1000, 1000)
	assert.Equal(t, Deduction{Domestic: 100, International: 50, Total: 150}, d)

	d = s.CreditDeduction(1000, 10, 10)
	assert.Equal(t, Deduction{Domestic: 12, International: 10, Total: 22}, d)

	assert.Equal(t, Deduction{}, s.CreditDeduction(0, 1_000_000, 1_000_000))
	assert.Equal(t, Deduction{}, s.CreditDeduction(5000, 0, 0))

	for _, credits := range []int{0, 1, 50, 1_000, 1 << 30} {
		d := s.CreditDeduction(7777, credits, credits)
		assert.LessOrEqual(t, float64(d.Domestic), 7777*0.10+0.5)
		assert.LessOrEqual(t, float64(d.International), 7777*0.05+0.5)
	}
}

func TestPlayerCreditsReduceFee(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.Player, config.Coal, 0, 5, 10)
	w.SetDomesticCredits(100)
	w.SetIntlCredits(100)
	advanceTo(w, 4)

	fee := s.CarbonFee(config.Player)
	assert.Equal(t, Deduction{Domestic: 50, International: 25, Total: 75}, fee.Deduction)
	assert.Equal(t, 425, fee.Taxable)
	assert.Equal(t, 2125, fee.CarbonFee)
}

func TestCompetitorsHaveNoCreditsOrPenalty(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.CompetitorA, config.Coal, 1, 6, 11)
	w.SetDomesticCredits(1000)

	fee := s.CarbonFee(config.CompetitorA)
	assert.Zero(t, fee.Deduction.Total)
	assert.False(t, fee.Penalized)
	assert.Equal(t, 2500, fee.CarbonFee)
}

func TestAverageRateWeightsByEmission(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.Player, config.Coal, 0, 5)
	require.True(t, w.UpgradeBuilding(5, config.Player, config.Lv2))

	fee := s.CarbonFee(config.Player)
	assert.InDelta(t, (3500*500.0+2800*200.0)/6300, fee.AverageRate, 1e-9)

	assert.Equal(t, 500.0, s.CarbonFee(config.CompetitorC).AverageRate, "no buildings falls back to Lv1")
}

func TestCBAMTax(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.Player, config.Manufacturing, 0)
	place(t, w, config.Player, config.Coal, 5)

	assert.Zero(t, s.CBAMTax(config.Player, 5))
	assert.Equal(t, 100000, s.CBAMTax(config.Player, 6))

	place(t, w, config.CompetitorA, config.Coal, 1)
	assert.Zero(t, s.CBAMTax(config.CompetitorA, 8), "coal is not export-oriented")
}

func TestPlayerEmissionModel(t *testing.T) {
	lands := basicGrid()
	lands[0] = tile(0, config.LandHighEmission)
	w, s := setup(t, lands)
	w.SetEmissionModel(s.PlayerEmission)

	place(t, w, config.Player, config.Coal, 0)
	assert.Equal(t, 4200, w.Emission())
}

func TestFees(t *testing.T) {
	w, s := setup(t, basicGrid())
	place(t, w, config.CompetitorB, config.Coal, 2, 7, 12, 17)
	fees := s.Fees(config.Owners)
	require.Len(t, fees, 4)
	assert.Equal(t, 4000*5, fees[config.CompetitorB].CarbonFee, "14000 t emitted, 4000 t chargeable")
	assert.Zero(t, fees[config.Player].CarbonFee)
}
