package victory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/carbon-monster/internal/carbon"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
)

func tunables() config.Tunables { return config.Default().Tunables }

func ids(cs []Condition) []ConditionID {
	var out []ConditionID
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestHighestFeeIsEliminated(t *testing.T) {
	out := Judge(tunables(), []Standing{
		{Owner: "P", Money: 60000, TotalEmission: 12000, CarbonFee: 1000},
		{Owner: "A", Money: 90000, TotalEmission: 40000, CarbonFee: 9000},
		{Owner: "B", Money: 50000, TotalEmission: 4000},
		{Owner: "C", Money: 30000, TotalEmission: 8000},
	}, 40)

	assert.True(t, out.Results["A"].Eliminated)
	assert.True(t, out.Standings[1].Eliminated)
	assert.False(t, out.Results["P"].Eliminated)

	// With A out, P has the largest treasury.
	assert.Contains(t, ids(out.Results["P"].Victories), ProfitKing)
	assert.Equal(t, config.OwnerID("P"), out.PrimaryWinner)
}

func TestTiedMaxFeeEliminatesAll(t *testing.T) {
	out := Judge(tunables(), []Standing{
		{Owner: "P", Money: 10000, CarbonFee: 500},
		{Owner: "A", Money: 10000, CarbonFee: 500},
		{Owner: "B", Money: 5000, CarbonFee: 100},
		{Owner: "C", Money: 1000},
	}, 0)

	assert.True(t, out.Results["P"].Eliminated)
	assert.True(t, out.Results["A"].Eliminated)
	assert.False(t, out.Results["B"].Eliminated)
	assert.Equal(t, config.OwnerID("B"), out.PrimaryWinner)
}

func TestZeroFeesEliminateNobody(t *testing.T) {
	out := Judge(tunables(), []Standing{
		{Owner: "P", Money: 100},
		{Owner: "A", Money: 100},
	}, 0)
	for _, r := range out.Results {
		assert.False(t, r.Eliminated)
	}
	// Both tie for the top treasury; owner order breaks the tie.
	assert.Equal(t, []config.OwnerID{"P", "A"}, out.Winners)
}

func TestCarbonPioneerAndEfficiency(t *testing.T) {
	out := Judge(tunables(), []Standing{
		{Owner: "P", Money: 55000, TotalEmission: 5000},
		{Owner: "A", Money: 120000, TotalEmission: 30000},
		{Owner: "B", Money: 70000, TotalEmission: 0},
		{Owner: "C", Money: 40000, TotalEmission: 9000},
	}, 10)

	// B emits nothing, so P holds the lowest nonzero emission.
	assert.Equal(t, []ConditionID{CarbonPioneer, EfficiencyMaster}, ids(out.Results["P"].Victories))
	assert.Equal(t, CarbonPioneer, out.Results["P"].Primary.ID)
	assert.Equal(t, []ConditionID{ProfitKing}, ids(out.Results["A"].Victories))
	assert.Empty(t, out.Results["B"].Victories)
	assert.Nil(t, out.Results["C"].Primary)

	assert.Equal(t, []config.OwnerID{"A", "P"}, out.Winners)
	assert.Equal(t, config.OwnerID("A"), out.PrimaryWinner)
}

func TestPerfectBalance(t *testing.T) {
	tu := tunables()
	s := Standing{Owner: "P", Money: 80000, TotalEmission: 14000}
	assert.True(t, perfectBalance(judge{tu: tu}, s))

	s.TotalEmission = 15000
	assert.False(t, perfectBalance(judge{tu: tu}, s))

	s = Standing{Owner: "P", Money: 80000, TotalEmission: 0}
	assert.False(t, perfectBalance(judge{tu: tu}, s))
}

func TestSurvivor(t *testing.T) {
	out := Judge(tunables(), []Standing{
		{Owner: "P", Money: 0},
		{Owner: "A", Money: 0, CarbonFee: 10},
	}, 92)

	assert.Equal(t, []ConditionID{Survivor}, ids(out.Results["P"].Victories))
	assert.Empty(t, out.Results["A"].Victories)
	assert.Equal(t, config.OwnerID("P"), out.PrimaryWinner)
}

func TestNoWinner(t *testing.T) {
	out := Judge(tunables(), []Standing{{Owner: "P"}, {Owner: "A"}}, 10)
	assert.Empty(t, out.Winners)
	assert.Empty(t, out.PrimaryWinner)
}

func TestConditionsInPriorityOrder(t *testing.T) {
	cs := Conditions()
	require.Len(t, cs, 5)
	for i, c := range cs {
		assert.Equal(t, i+1, c.Priority)
	}
}

func TestEvaluateLiveWorld(t *testing.T) {
	tables := config.Default()
	w := state.New(tables)
	fees := carbon.NewSystem(w, land.NewSystem(tables))
	for i := 0; i < 4; i++ {
		require.True(t, w.AddBuilding(state.Building{Type: config.Coal, TileIndex: i, Owner: config.CompetitorA}))
	}

	out := Evaluate(w, fees)
	require.Len(t, out.Standings, 4)
	assert.Equal(t, "Tycoon Ah-Jin", out.Standings[1].Name)
	assert.Equal(t, 14000, out.Standings[1].TotalEmission)
	assert.True(t, out.Results[config.CompetitorA].Eliminated)
	assert.Equal(t, config.CompetitorC, out.PrimaryWinner, "C has the largest treasury among survivors")
}
