package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/carbon-monster/internal/config"
)

func TestSnapshotRoundTrip(t *testing.T) {
	w := newWorld(t)
	w.AddBuilding(Building{Type: config.Coal, TileIndex: 3, Owner: config.Player})
	w.AddBuilding(Building{Type: config.Solar, TileIndex: 1, Owner: config.CompetitorB})
	w.UpgradeBuilding(3, config.Player, config.Lv3)
	w.SetDomesticCredits(40)
	w.SetIntlCredits(7)
	w.AdjustFunds(config.CompetitorC, -2500)
	w.SetCompetitorEmission(config.CompetitorB, 900)
	w.AddMonsterAnger(12.5)
	w.IncrementBuildCount()
	w.NextTurn()
	w.SetPrices(333, 901)

	snap := w.Snapshot()

	other := newWorld(t)
	rec := &recorder{}
	other.Subscribe("", rec)
	require.NoError(t, other.Restore(snap))

	assert.Equal(t, snap, other.Snapshot())
	assert.Equal(t, []EventKind{Restored}, rec.kinds(), "restore emits exactly one event")

	bs := other.Buildings()
	require.Len(t, bs, 2)
	assert.Equal(t, 3, bs[0].TileIndex, "building order preserved")
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	w := newWorld(t)
	w.AddBuilding(Building{Type: config.Coal, TileIndex: 0, Owner: config.Player})
	snap := w.Snapshot()

	w.UpgradeBuilding(0, config.Player, config.Lv2)
	w.AdjustFunds(config.CompetitorA, -10)

	assert.Equal(t, config.Lv1, snap.Buildings[0].Level)
	assert.Equal(t, 50000, snap.Competitors[config.CompetitorA].Money)

	snap.Buildings[0].Level = config.Lv3
	b, _ := w.BuildingAt(0)
	assert.Equal(t, config.Lv2, b.Level)
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	w := newWorld(t)

	snap := w.Snapshot()
	snap.Version = "0.9"
	assert.Error(t, w.Restore(snap))

	snap = w.Snapshot()
	snap.Turn = 0
	assert.Error(t, w.Restore(snap))

	snap = w.Snapshot()
	snap.Buildings = []Building{
		{Type: config.Coal, TileIndex: 2, Owner: config.Player, Level: config.Lv1},
		{Type: config.Gas, TileIndex: 2, Owner: config.Player, Level: config.Lv1},
	}
	assert.Error(t, w.Restore(snap))
	assert.Equal(t, 1, w.Turn(), "failed restore leaves state untouched")
}
