package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/carbon-monster/internal/config"
)

func newWorld(t *testing.T) *World {
	t.Helper()
	return New(config.Default())
}

type recorder struct {
	events []Event
}

func (r *recorder) Notify(e Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []EventKind {
	var out []EventKind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestNewWorldStartingValues(t *testing.T) {
	w := newWorld(t)

	assert.Equal(t, 1, w.Turn())
	assert.Equal(t, 2030, w.Year())
	assert.Equal(t, 40000, w.Money())
	assert.Equal(t, 30.0, w.MonsterAnger())
	assert.Equal(t, 300, w.DomesticPrice())
	assert.Equal(t, 800, w.IntlPrice())

	a, ok := w.Competitor(config.CompetitorA)
	require.True(t, ok)
	assert.Equal(t, 50000, a.Money)
	assert.Equal(t, "aggressive", a.Style)
	assert.Equal(t, []config.OwnerID{"A", "B", "C"}, w.CompetitorIDs())
}

func TestMoneyClampsAndNotifies(t *testing.T) {
	w := newWorld(t)
	rec := &recorder{}
	w.Subscribe(MoneyChanged, rec)

	w.SubtractMoney(50000)
	assert.Equal(t, 0, w.Money())
	require.Len(t, rec.events, 1)
	assert.Equal(t, 40000.0, rec.events[0].Old)
	assert.Equal(t, 0.0, rec.events[0].New)

	w.AddMoney(123)
	assert.Equal(t, 123, w.Money())
}

func TestEmissionClamped(t *testing.T) {
	w := newWorld(t)
	w.SetEmission(-5)
	assert.Equal(t, 0, w.Emission())
}

func TestBuildingMutationsRecomputeDerivedStats(t *testing.T) {
	w := newWorld(t)
	rec := &recorder{}
	w.Subscribe("", rec)

	require.True(t, w.AddBuilding(Building{Type: config.Coal, TileIndex: 0, Owner: config.Player}))
	assert.Equal(t, 7000, w.ProjectedIncome())
	assert.Equal(t, 3500, w.Emission())

	b, ok := w.BuildingAt(0)
	require.True(t, ok)
	assert.Equal(t, config.Lv1, b.Level)

	// Competitor buildings do not count toward the player's projections.
	require.True(t, w.AddBuilding(Building{Type: config.Gas, TileIndex: 1, Owner: config.CompetitorA}))
	assert.Equal(t, 7000, w.ProjectedIncome())

	assert.False(t, w.AddBuilding(Building{Type: config.Gas, TileIndex: 0, Owner: config.Player}), "one building per tile")

	assert.True(t, w.UpgradeBuilding(0, config.Player, config.Lv2))
	b, _ = w.BuildingAt(0)
	assert.Equal(t, config.Lv2, b.Level)
	assert.False(t, w.UpgradeBuilding(0, config.CompetitorA, config.Lv2), "wrong owner")

	removed, ok := w.RemoveBuilding(0, config.Player)
	require.True(t, ok)
	assert.Equal(t, config.Coal, removed.Type)
	assert.Equal(t, 0, w.ProjectedIncome())
	assert.Equal(t, 0, w.Emission())

	assert.Contains(t, rec.kinds(), BuildingAdded)
	assert.Contains(t, rec.kinds(), BuildingUpgraded)
	assert.Contains(t, rec.kinds(), BuildingRemoved)
	assert.Contains(t, rec.kinds(), EmissionChanged)
}

func TestEmissionModelOverride(t *testing.T) {
	w := newWorld(t)
	w.SetEmissionModel(func(*World) int { return 42 })
	assert.Equal(t, 42, w.Emission())
	w.SetEmissionModel(nil)
	assert.Equal(t, 0, w.Emission())
}

func TestCreditsNotifyWithKind(t *testing.T) {
	w := newWorld(t)
	rec := &recorder{}
	w.Subscribe(CreditsChanged, rec)

	w.SetDomesticCredits(100)
	w.SetIntlCredits(40)
	w.SetIntlCredits(-3)

	require.Len(t, rec.events, 3)
	assert.Equal(t, Domestic, rec.events[0].Credit)
	assert.Equal(t, International, rec.events[1].Credit)
	assert.Equal(t, 0.0, rec.events[2].New)
	assert.Equal(t, 0, w.IntlCredits())
}

func TestUnchangedValuesDoNotNotify(t *testing.T) {
	w := newWorld(t)
	require.True(t, w.AddBuilding(Building{Type: config.Coal, TileIndex: 0, Owner: config.Player}))

	rec := &recorder{}
	w.Subscribe("", rec)

	w.SetMoney(w.Money())
	w.SetEmission(w.Emission())
	w.SetDomesticCredits(0)
	w.SetIntlCredits(-3)
	assert.Empty(t, rec.events)

	// A competitor build leaves the player's emission where it was.
	require.True(t, w.AddBuilding(Building{Type: config.Gas, TileIndex: 1, Owner: config.CompetitorA}))
	assert.Equal(t, []EventKind{BuildingAdded}, rec.kinds())
}

func TestMonsterAngerClampAndMaxedOncePerCrossing(t *testing.T) {
	w := newWorld(t)
	rec := &recorder{}
	w.Subscribe(MonsterMaxed, rec)

	w.AddMonsterAnger(500)
	assert.Equal(t, 100.0, w.MonsterAnger())
	assert.Len(t, rec.events, 1)

	w.AddMonsterAnger(10)
	assert.Len(t, rec.events, 1, "staying at 100 is not a new crossing")

	w.ReduceMonsterAnger(5)
	w.AddMonsterAnger(5)
	assert.Len(t, rec.events, 2)

	w.ReduceMonsterAnger(1000)
	assert.Equal(t, 0.0, w.MonsterAnger())
}

func TestObserverPanicIsIsolated(t *testing.T) {
	w := newWorld(t)
	rec := &recorder{}
	w.Subscribe(MoneyChanged, ObserverFunc(func(Event) { panic("boom") }))
	w.Subscribe(MoneyChanged, rec)

	assert.NotPanics(t, func() { w.AddMoney(1) })
	assert.Equal(t, 40001, w.Money())
	assert.Len(t, rec.events, 1)
}

func TestUnsubscribe(t *testing.T) {
	w := newWorld(t)
	rec := &recorder{}
	stop := w.Subscribe(MoneyChanged, rec)
	w.AddMoney(1)
	stop()
	w.AddMoney(1)
	assert.Len(t, rec.events, 1)
}

func TestPerTurnCaps(t *testing.T) {
	w := newWorld(t)
	rec := &recorder{}
	w.Subscribe(TurnChanged, rec)

	assert.True(t, w.CanBuild())
	w.IncrementBuildCount()
	w.IncrementBuildCount()
	assert.False(t, w.CanBuild())

	assert.True(t, w.CanPurchaseLand())
	w.IncrementLandPurchaseCount()
	assert.False(t, w.CanPurchaseLand())

	w.NextTurn()
	assert.Equal(t, 2, w.Turn())
	assert.Equal(t, 2031, w.Year())
	assert.True(t, w.CanBuild())
	assert.True(t, w.CanPurchaseLand())
	require.Len(t, rec.events, 1)
	assert.Equal(t, 2031, rec.events[0].Year)
}

func TestFundsRouting(t *testing.T) {
	w := newWorld(t)
	w.AdjustFunds(config.CompetitorB, -1000)
	assert.Equal(t, 44000, w.Funds(config.CompetitorB))
	w.AdjustFunds(config.CompetitorB, -100000)
	assert.Equal(t, 0, w.Funds(config.CompetitorB))
	w.AdjustFunds(config.Player, 500)
	assert.Equal(t, 40500, w.Funds(config.Player))
	assert.Equal(t, 0, w.Funds("Z"))
}

func TestPricesRespectFloors(t *testing.T) {
	w := newWorld(t)
	w.SetPrices(10, 10)
	assert.Equal(t, 100, w.DomesticPrice())
	assert.Equal(t, 500, w.IntlPrice())
}
