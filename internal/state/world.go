// Package state holds the single mutable aggregate of a game: treasury, emission,
// credits, buildings, monster anger, market prices and competitor mirrors.
// All mutation goes through World's methods, which broadcast change events.
package state

import (
	"log/slog"
	"math"

	"github.com/talgya/carbon-monster/internal/config"
)

// MaxAnger is the terminal monster anger.
const MaxAnger = 100.0

// Building is a factory placed on a tile.
type Building struct {
	Type      config.BuildingTypeID `json:"type"`
	TileIndex int                   `json:"tile_index"`
	Owner     config.OwnerID        `json:"owner"`
	Level     config.Level          `json:"level"`
}

// Competitor is the mirror record of a scripted owner.
type Competitor struct {
	Name     string `json:"name"`
	Money    int    `json:"money"`
	Emission int    `json:"emission"`
	Style    string `json:"style"`
}

// EmissionModel computes the player's cached emission from their buildings.
type EmissionModel func(w *World) int

// World is the game state aggregate. It is not safe for concurrent use.
type World struct {
	tables *config.Tables

	turn            int
	year            int
	money           int
	emission        int
	domesticCredits int
	intlCredits     int
	monsterAnger    float64
	domesticPrice   int
	intlPrice       int
	projectedIncome int

	buildings   []Building
	competitors map[config.OwnerID]*Competitor

	buildsThisTurn        int
	landPurchasesThisTurn int

	// Cumulative credits bought by the player, for achievements.
	creditsPurchased int

	emissionModel EmissionModel
	events        bus
}

// New creates a world at turn 1 from the tables' starting values.
func New(tables *config.Tables) *World {
	tu := tables.Tunables
	w := &World{
		tables:        tables,
		turn:          1,
		year:          tu.StartYear,
		money:         tu.InitialMoney,
		monsterAnger:  clampAnger(tu.InitialMonsterAnger),
		domesticPrice: tu.InitialDomesticPrice,
		intlPrice:     tu.InitialIntlPrice,
		competitors:   make(map[config.OwnerID]*Competitor, len(config.Competitors)),
	}
	for _, id := range config.Competitors {
		p, _ := tables.Owner(id)
		w.competitors[id] = &Competitor{Name: p.Name, Money: p.Money, Style: p.Style}
	}
	w.emissionModel = nominalEmission
	return w
}

// nominalEmission sums the archetypes' nominal emission, ignoring land and level.
func nominalEmission(w *World) int {
	total := 0
	for _, b := range w.buildings {
		if b.Owner != config.Player {
			continue
		}
		if bt, ok := w.tables.Building(b.Type); ok {
			total += bt.Emission
		}
	}
	return total
}

// SetEmissionModel replaces how the cached player emission is derived and recomputes it.
func (w *World) SetEmissionModel(m EmissionModel) {
	if m == nil {
		m = nominalEmission
	}
	w.emissionModel = m
	w.recalculate()
}

// Tables returns the configuration the world was built from.
func (w *World) Tables() *config.Tables { return w.tables }

// Subscribe registers obs for one kind of event. Pass "" to receive every kind.
// The returned function unsubscribes.
func (w *World) Subscribe(kind EventKind, obs Observer) func() {
	return w.events.subscribe(kind, obs)
}

func (w *World) Turn() int { return w.turn }
func (w *World) Year() int { return w.year }
func (w *World) Money() int { return w.money }
func (w *World) Emission() int { return w.emission }
func (w *World) DomesticCredits() int { return w.domesticCredits }
func (w *World) IntlCredits() int { return w.intlCredits }
func (w *World) MonsterAnger() float64 { return w.monsterAnger }
func (w *World) DomesticPrice() int { return w.domesticPrice }
func (w *World) IntlPrice() int { return w.intlPrice }
func (w *World) ProjectedIncome() int { return w.projectedIncome }
func (w *World) BuildsThisTurn() int { return w.buildsThisTurn }
func (w *World) LandPurchasesThisTurn() int { return w.landPurchasesThisTurn }
func (w *World) CreditsPurchased() int { return w.creditsPurchased }

// SetMoney sets the player's treasury, clamped to zero. Observers hear only
// real changes; the same holds for the other Set methods.
func (w *World) SetMoney(v int) {
	old := w.money
	w.money = max(0, v)
	if w.money == old {
		return
	}
	w.events.emit(Event{Kind: MoneyChanged, Old: float64(old), New: float64(w.money)})
}

func (w *World) AddMoney(amount int)      { w.SetMoney(w.money + amount) }
func (w *World) SubtractMoney(amount int) { w.SetMoney(w.money - amount) }

// SetEmission overwrites the cached player emission, clamped to zero.
func (w *World) SetEmission(v int) {
	old := w.emission
	w.emission = max(0, v)
	if w.emission == old {
		return
	}
	w.events.emit(Event{Kind: EmissionChanged, Old: float64(old), New: float64(w.emission)})
}

// Buildings returns a copy of every building in placement order.
func (w *World) Buildings() []Building {
	return append([]Building(nil), w.buildings...)
}

// BuildingsOf returns a copy of owner's buildings in placement order.
func (w *World) BuildingsOf(owner config.OwnerID) []Building {
	var out []Building
	for _, b := range w.buildings {
		if b.Owner == owner {
			out = append(out, b)
		}
	}
	return out
}

// PlayerBuildings returns the human player's buildings.
func (w *World) PlayerBuildings() []Building { return w.BuildingsOf(config.Player) }

// BuildingAt returns the building on tile, if any.
func (w *World) BuildingAt(tile int) (Building, bool) {
	for _, b := range w.buildings {
		if b.TileIndex == tile {
			return b, true
		}
	}
	return Building{}, false
}

// Occupied reports whether a building stands on tile.
func (w *World) Occupied(tile int) bool {
	_, ok := w.BuildingAt(tile)
	return ok
}

// AddBuilding appends b. It refuses a second building on the same tile.
func (w *World) AddBuilding(b Building) bool {
	if w.Occupied(b.TileIndex) {
		slog.Warn("tile already occupied", "tile", b.TileIndex, "owner", b.Owner)
		return false
	}
	if b.Level == "" {
		b.Level = config.Lv1
	}
	w.buildings = append(w.buildings, b)
	added := b
	w.events.emit(Event{Kind: BuildingAdded, Building: &added})
	w.recalculate()
	return true
}

// RemoveBuilding deletes owner's building on tile and returns it.
func (w *World) RemoveBuilding(tile int, owner config.OwnerID) (Building, bool) {
	for i, b := range w.buildings {
		if b.TileIndex == tile && b.Owner == owner {
			w.buildings = append(w.buildings[:i], w.buildings[i+1:]...)
			removed := b
			w.events.emit(Event{Kind: BuildingRemoved, Building: &removed})
			w.recalculate()
			return b, true
		}
	}
	return Building{}, false
}

// UpgradeBuilding sets the level of owner's building on tile in place.
func (w *World) UpgradeBuilding(tile int, owner config.OwnerID, level config.Level) bool {
	for i := range w.buildings {
		b := &w.buildings[i]
		if b.TileIndex == tile && b.Owner == owner {
			b.Level = level
			upgraded := *b
			w.events.emit(Event{Kind: BuildingUpgraded, Building: &upgraded})
			w.recalculate()
			return true
		}
	}
	return false
}

// recalculate refreshes the player's projected income and cached emission.
func (w *World) recalculate() {
	income := 0
	for _, b := range w.buildings {
		if b.Owner != config.Player {
			continue
		}
		if bt, ok := w.tables.Building(b.Type); ok {
			income += bt.Income
		}
	}
	w.projectedIncome = income
	w.SetEmission(w.emissionModel(w))
}

func (w *World) SetDomesticCredits(v int) {
	old := w.domesticCredits
	w.domesticCredits = max(0, v)
	if w.domesticCredits == old {
		return
	}
	w.events.emit(Event{Kind: CreditsChanged, Credit: Domestic, Old: float64(old), New: float64(w.domesticCredits)})
}

func (w *World) SetIntlCredits(v int) {
	old := w.intlCredits
	w.intlCredits = max(0, v)
	if w.intlCredits == old {
		return
	}
	w.events.emit(Event{Kind: CreditsChanged, Credit: International, Old: float64(old), New: float64(w.intlCredits)})
}

// RecordCreditPurchase adds to the cumulative purchased-credits counter.
func (w *World) RecordCreditPurchase(n int) {
	if n > 0 {
		w.creditsPurchased += n
	}
}

// SetMonsterAnger sets anger clamped to [0,100]. Crossing into 100 emits MonsterMaxed once.
func (w *World) SetMonsterAnger(v float64) {
	old := w.monsterAnger
	w.monsterAnger = clampAnger(v)
	w.events.emit(Event{Kind: MonsterChanged, Old: old, New: w.monsterAnger})
	if w.monsterAnger >= MaxAnger && old < MaxAnger {
		w.events.emit(Event{Kind: MonsterMaxed, Old: old, New: w.monsterAnger})
	}
}

func (w *World) AddMonsterAnger(amount float64)    { w.SetMonsterAnger(w.monsterAnger + amount) }
func (w *World) ReduceMonsterAnger(amount float64) { w.SetMonsterAnger(w.monsterAnger - amount) }

func clampAnger(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(MaxAnger, v))
}

// SetPrices stores new credit market prices, applying the configured floors.
func (w *World) SetPrices(domestic, intl int) {
	tu := w.tables.Tunables
	w.domesticPrice = max(tu.DomesticPriceFloor, domestic)
	w.intlPrice = max(tu.IntlPriceFloor, intl)
}

// NextTurn advances turn and year and resets the per-turn counters.
func (w *World) NextTurn() {
	old := w.turn
	w.turn++
	w.year++
	w.buildsThisTurn = 0
	w.landPurchasesThisTurn = 0
	w.events.emit(Event{Kind: TurnChanged, Old: float64(old), New: float64(w.turn), Year: w.year})
}

// CanBuild reports whether the per-turn build cap still has room.
func (w *World) CanBuild() bool {
	return w.buildsThisTurn < w.tables.Tunables.MaxBuildingsPerTurn
}

func (w *World) IncrementBuildCount() {
	old := w.buildsThisTurn
	w.buildsThisTurn++
	w.events.emit(Event{Kind: BuildCountChanged, Old: float64(old), New: float64(w.buildsThisTurn),
		Max: w.tables.Tunables.MaxBuildingsPerTurn})
}

// CanPurchaseLand reports whether the per-turn land purchase cap still has room.
func (w *World) CanPurchaseLand() bool {
	return w.landPurchasesThisTurn < w.tables.Tunables.MaxLandPurchasesPerTurn
}

func (w *World) IncrementLandPurchaseCount() {
	old := w.landPurchasesThisTurn
	w.landPurchasesThisTurn++
	w.events.emit(Event{Kind: LandPurchaseCountChanged, Old: float64(old), New: float64(w.landPurchasesThisTurn),
		Max: w.tables.Tunables.MaxLandPurchasesPerTurn})
}

// Competitor returns a copy of a competitor's mirror record.
func (w *World) Competitor(id config.OwnerID) (Competitor, bool) {
	c, ok := w.competitors[id]
	if !ok {
		return Competitor{}, false
	}
	return *c, true
}

// CompetitorIDs returns competitor ids in policy order.
func (w *World) CompetitorIDs() []config.OwnerID {
	var ids []config.OwnerID
	for _, id := range config.Competitors {
		if _, ok := w.competitors[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// SetCompetitorEmission updates a competitor's cached emission.
func (w *World) SetCompetitorEmission(id config.OwnerID, emission int) {
	if c, ok := w.competitors[id]; ok {
		c.Emission = max(0, emission)
	}
}

// Funds returns the treasury of any owner.
func (w *World) Funds(owner config.OwnerID) int {
	if owner == config.Player {
		return w.money
	}
	if c, ok := w.competitors[owner]; ok {
		return c.Money
	}
	return 0
}

// AdjustFunds adds delta to any owner's treasury, clamped to zero.
// The player path emits MoneyChanged; competitor mirrors are updated silently.
func (w *World) AdjustFunds(owner config.OwnerID, delta int) {
	if owner == config.Player {
		w.AddMoney(delta)
		return
	}
	if c, ok := w.competitors[owner]; ok {
		c.Money = max(0, c.Money+delta)
	}
}
