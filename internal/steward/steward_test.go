package steward

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/carbon-monster/internal/api"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/engine"
)

func snapshot(chargeable int, anger float64) *Snapshot {
	s := &Snapshot{
		Fees: []FeeInfo{
			{Owner: config.Player, Chargeable: chargeable, CarbonFee: 500},
			{Owner: config.CompetitorA, Chargeable: 99999, CarbonFee: 9000},
		},
		Competitors: []CompetitorInfo{
			{ID: config.CompetitorA, Money: 50000},
			{ID: config.CompetitorB, Money: 30000},
		},
		Tunables: config.Default().Tunables,
	}
	s.Status.Turn = 3
	s.Status.Money = 40000
	s.Status.ProjectedIncome = 7000
	s.Status.MonsterAnger = anger
	s.Status.DomesticPrice = 300
	s.Status.CreditLotSize = 100
	return s
}

func TestTriage(t *testing.T) {
	h := Triage(snapshot(12000, 10))
	assert.InDelta(t, 1000, h.CreditTarget, 1)
	assert.Equal(t, h.CreditTarget, h.Shortfall)
	assert.Equal(t, 6500, h.NetIncome)
	assert.Equal(t, 2, h.Rank)
	assert.Equal(t, CrisisWatch, h.CrisisLevel)

	assert.Equal(t, CrisisHealthy, Triage(snapshot(0, 10)).CrisisLevel)
	assert.Equal(t, CrisisWarning, Triage(snapshot(0, 65)).CrisisLevel)
	assert.Equal(t, CrisisCritical, Triage(snapshot(0, 85)).CrisisLevel)

	broke := snapshot(0, 10)
	broke.Status.Money = 100
	broke.Status.ProjectedIncome = 0
	assert.Equal(t, CrisisCritical, Triage(broke).CrisisLevel)
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name   string
		snap   *Snapshot
		action Action
	}{
		{"short on credits", snapshot(12000, 10), ActionCredits},
		{"healthy develops", snapshot(0, 10), ActionDevelop},
		{"critical holds", snapshot(0, 85), ActionNone},
		{"critical still buys credits", snapshot(12000, 85), ActionCredits},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.snap, Triage(tc.snap))
			assert.Equal(t, tc.action, d.Action)
			assert.NotEmpty(t, d.Rationale)
		})
	}

	s := snapshot(12000, 10)
	d := Decide(s, Triage(s))
	assert.Equal(t, 10, d.Lots)

	s.Status.Money = Reserve + 650
	d = Decide(s, Triage(s))
	assert.Equal(t, 2, d.Lots, "limited by spare cash")

	s.Status.Money = Reserve
	assert.Equal(t, ActionNone, Decide(s, Triage(s)).Action)

	s = snapshot(0, 10)
	s.Status.Status.Over = true
	assert.Equal(t, ActionNone, Decide(s, Triage(s)).Action)
}

func TestMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	m := LoadMemory(path)
	assert.Empty(t, m.Records)

	for i := 1; i <= maxRecords+5; i++ {
		m.Record(CycleRecord{GameID: "g1", Turn: i, Action: ActionDevelop})
	}
	m.Record(CycleRecord{GameID: "g2", Turn: 1, Action: ActionCredits, Lots: 3})
	require.Len(t, m.Records, maxRecords)
	m.Save()

	back := LoadMemory(path)
	assert.Equal(t, m.Records, back.Records)

	lines := strings.Split(strings.TrimSpace(back.Summary("g1", 2)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "turn 25: develop"))
	assert.Contains(t, back.Summary("g2", 5), "lots=3")
}

func TestCyclePlaysToTheEnd(t *testing.T) {
	tables := config.Default()
	tables.Tunables.MaxYears = 2
	g, err := engine.New(tables, engine.Options{Seed: 5})
	require.NoError(t, err)
	srv := api.NewServer(g, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	st := New(ts.URL, "", filepath.Join(t.TempDir(), "memory.json"))
	ctx := context.Background()

	var over bool
	cycles := 0
	for !over && cycles < 5 {
		over, err = st.Cycle(ctx)
		require.NoError(t, err)
		cycles++
	}
	assert.True(t, over)
	assert.Equal(t, 2, cycles)
	require.Len(t, st.Memory.Records, 2)
	assert.Equal(t, g.ID, st.Memory.Records[0].GameID)

	var done bool
	srv.Do(func(g *engine.Game) { done = g.Over().Over })
	assert.True(t, done)

	over, err = st.Cycle(ctx)
	require.NoError(t, err)
	assert.True(t, over, "a finished game is reported without acting")
}
