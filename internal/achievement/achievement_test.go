package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/carbon-monster/internal/carbon"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
)

func idsOf(as []Achievement) []string {
	var out []string
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

// quiet is a mid-game position that unlocks nothing.
func quiet() Facts {
	return Facts{Turn: 6, Money: 40000, Anger: 30, ProjectedIncome: 7000, Emission: 12000, Rank: 2}
}

func TestAllHasFifteenWithPoints(t *testing.T) {
	all := All()
	require.Len(t, all, 15)
	seen := map[string]bool{}
	for _, a := range all {
		assert.False(t, seen[a.ID], a.ID)
		seen[a.ID] = true
		assert.Positive(t, a.Points)
		assert.NotEmpty(t, a.Category)
	}
}

func TestQuietPositionUnlocksNothing(t *testing.T) {
	tr := NewTracker()
	assert.Empty(t, tr.Check(quiet()))
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		id    string
		apply func(*Facts)
	}{
		{"first_building", func(f *Facts) { f.Buildings = 1 }},
		{"ten_buildings", func(f *Facts) { f.Buildings = 10 }},
		{"millionaire", func(f *Facts) { f.Money = 100000 }},
		{"low_emission", func(f *Facts) { f.Emission = 4999 }},
		{"zero_emission", func(f *Facts) { f.Emission = 0 }},
		{"green_energy", func(f *Facts) { f.CleanBuildings = 5 }},
		{"efficient_master", func(f *Facts) { f.ProjectedIncome = 60000 }},
		{"upgrade_master", func(f *Facts) { f.Lv3Buildings = 3 }},
		{"carbon_trader", func(f *Facts) { f.CreditsPurchased = 10000 }},
		{"land_baron", func(f *Facts) { f.Lands = 8 }},
		{"survive_monster", func(f *Facts) { f.Anger = 80 }},
		{"early_winner", func(f *Facts) { f.Turn = 5; f.Rank = 1 }},
		{"perfect_balance", func(f *Facts) { f.Money = 80000; f.Emission = 9000; f.ProjectedIncome = 27000 }},
		{"bankrupt", func(f *Facts) { f.Money = 0 }},
		{"monster_rage", func(f *Facts) { f.Anger = 100 }},
	}
	for _, tc := range cases {
		t.Run(tc.id, func(t *testing.T) {
			f := quiet()
			tc.apply(&f)
			assert.Contains(t, idsOf(NewTracker().Check(f)), tc.id)
		})
	}
}

func TestThresholdEdges(t *testing.T) {
	f := quiet()
	f.Emission = 5000
	assert.NotContains(t, idsOf(NewTracker().Check(f)), "low_emission")

	f = quiet()
	f.Turn, f.Rank = 6, 1
	assert.NotContains(t, idsOf(NewTracker().Check(f)), "early_winner")

	f = quiet()
	f.Money, f.Emission, f.ProjectedIncome = 80000, 0, 50000
	ids := idsOf(NewTracker().Check(f))
	assert.NotContains(t, ids, "perfect_balance")
	assert.NotContains(t, ids, "efficient_master")
}

func TestUnlocksOnlyOnce(t *testing.T) {
	tr := NewTracker()
	f := quiet()
	f.Money, f.Buildings = 100000, 1

	assert.Equal(t, []string{"first_building", "millionaire"}, idsOf(tr.Check(f)))
	assert.Empty(t, tr.Check(f))
	assert.Equal(t, []string{"first_building", "millionaire"}, idsOf(tr.Unlocked()))
}

func TestProgress(t *testing.T) {
	tr := NewTracker()
	p := tr.Progress()
	assert.Equal(t, Progress{Total: 15, Locked: 15, TotalPoints: 1640}, p)

	f := quiet()
	f.Emission = 0
	tr.Check(f)

	p = tr.Progress()
	assert.Equal(t, 1, p.Unlocked)
	assert.Equal(t, 14, p.Locked)
	assert.Equal(t, 150, p.UnlockedPoints)
	assert.Equal(t, 6.7, p.Percent)
	assert.Equal(t, 9.1, p.PointsPercent)
}

func TestRestoreAndReset(t *testing.T) {
	tr := NewTracker()
	tr.Restore([]string{"millionaire", "no_such_thing", "bankrupt", "millionaire"})
	assert.Equal(t, []string{"millionaire", "bankrupt"}, tr.UnlockedIDs())

	f := quiet()
	f.Money, f.Buildings = 100000, 1
	assert.Equal(t, []string{"first_building"}, idsOf(tr.Check(f)))

	tr.Reset()
	assert.Empty(t, tr.Unlocked())
	assert.Zero(t, tr.Progress().Unlocked)
}

func TestPanickingPredicateIsSkipped(t *testing.T) {
	saved := rules
	t.Cleanup(func() { rules = saved })
	rules = append([]rule{{
		Achievement: Achievement{ID: "broken", Points: 1},
		check:       func(Facts) bool { panic("boom") },
	}}, saved...)

	f := quiet()
	f.Money = 100000
	got := idsOf(NewTracker().Check(f))
	assert.NotContains(t, got, "broken")
	assert.Contains(t, got, "millionaire")
}

func TestGatherReadsLiveGame(t *testing.T) {
	tables := config.Default()
	w := state.New(tables)
	lands := land.NewSystem(tables)
	require.NoError(t, lands.Generate(config.Owners, entropy.NewScript(0)))
	fees := carbon.NewSystem(w, lands)
	w.SetEmissionModel(fees.PlayerEmission)

	require.True(t, w.AddBuilding(state.Building{Type: config.Solar, TileIndex: 0, Owner: config.Player}))
	require.True(t, w.AddBuilding(state.Building{Type: config.Solar, TileIndex: 4, Owner: config.Player}))
	require.True(t, w.AddBuilding(state.Building{Type: config.Tech, TileIndex: 5, Owner: config.Player, Level: config.Lv3}))
	require.True(t, w.AddBuilding(state.Building{Type: config.Coal, TileIndex: 1, Owner: config.CompetitorA}))

	f := Gather(w, fees, lands)
	assert.Equal(t, 1, f.Turn)
	assert.Equal(t, 40000, f.Money)
	assert.Equal(t, 3, f.Buildings)
	assert.Equal(t, 2, f.CleanBuildings)
	assert.Equal(t, 1, f.Lv3Buildings)
	assert.Equal(t, 13000, f.ProjectedIncome)
	assert.Equal(t, fees.TotalEmission(config.Player), f.Emission)
	assert.Equal(t, 5, f.Lands)
	assert.Equal(t, 4, f.Rank, "every competitor starts richer")
}
