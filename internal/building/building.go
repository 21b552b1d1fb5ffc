// Package building implements construction, upgrades and sales of factories.
package building

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
)

// LandLookup resolves a tile. *land.System satisfies it.
type LandLookup interface {
	Land(index int) (land.Land, bool)
}

// Emitter computes a building's live emission. *carbon.System satisfies it.
type Emitter interface {
	BuildingEmission(b state.Building) float64
}

// Result is the outcome of a building action. Failures carry only Message.
type Result struct {
	Success          bool         `json:"success"`
	Message          string       `json:"message"`
	Cost             int          `json:"cost,omitempty"`
	Income           int          `json:"income,omitempty"`
	Refund           int          `json:"refund,omitempty"`
	NewLevel         config.Level `json:"new_level,omitempty"`
	MonsterReduction int          `json:"monster_reduction,omitempty"`
}

func fail(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// UpgradeOption is one reachable level with its price.
type UpgradeOption struct {
	Level config.Level `json:"level"`
	Name  string       `json:"name"`
	Cost  int          `json:"cost"`
}

// Info joins a building with its archetype, level and live emission.
type Info struct {
	TileIndex      int                   `json:"tile_index"`
	Type           config.BuildingTypeID `json:"type"`
	Name           string                `json:"name"`
	Owner          config.OwnerID        `json:"owner"`
	Level          config.Level          `json:"level"`
	LevelName      string                `json:"level_name"`
	Income         int                   `json:"income"`
	Emission       float64               `json:"emission"`
	BaseEmission   int                   `json:"base_emission"`
	Cost           int                   `json:"cost"`
	CanUpgrade     bool                  `json:"can_upgrade"`
	UpgradeOptions []UpgradeOption       `json:"upgrade_options"`
}

type System struct {
	world   *state.World
	lands   LandLookup
	emitter Emitter
	tables  *config.Tables
}

func NewSystem(world *state.World, lands LandLookup, emitter Emitter) *System {
	return &System{world: world, lands: lands, emitter: emitter, tables: world.Tables()}
}

// Build places a Lv1 building of typ on owner's vacant tile. The cost is debited
// and the archetype's income is credited at once. Only the player is subject to
// the per-turn build cap.
func (s *System) Build(tile int, owner config.OwnerID, typ config.BuildingTypeID) Result {
	bt, ok := s.tables.Building(typ)
	if !ok {
		slog.Warn("build: unknown building type", "type", typ)
		return fail("unknown building type %q", typ)
	}
	l, ok := s.lands.Land(tile)
	if !ok {
		return fail("tile %d does not exist", tile)
	}
	if l.Owner != owner {
		return fail("tile %d belongs to %s", tile, s.tables.OwnerName(l.Owner))
	}
	if s.world.Occupied(tile) {
		return fail("tile %d already has a building", tile)
	}
	if owner == config.Player && !s.world.CanBuild() {
		return fail("build limit reached this turn (%d)", s.tables.Tunables.MaxBuildingsPerTurn)
	}
	if s.world.Funds(owner) < bt.Cost {
		return fail("not enough money, need $%s", humanize.Comma(int64(bt.Cost)))
	}

	s.world.AdjustFunds(owner, -bt.Cost)
	s.world.AdjustFunds(owner, bt.Income)
	s.world.AddBuilding(state.Building{Type: typ, TileIndex: tile, Owner: owner, Level: config.Lv1})
	if owner == config.Player {
		s.world.IncrementBuildCount()
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("built %s for $%s, earning $%s", bt.Name, humanize.Comma(int64(bt.Cost)), humanize.Comma(int64(bt.Income))),
		Cost:    bt.Cost,
		Income:  bt.Income,
	}
}

// UpgradeCost prices a move from one level to a strictly later one. The bool is
// false when the archetype cannot upgrade or the path is not forward.
func (s *System) UpgradeCost(typ config.BuildingTypeID, from, to config.Level) (int, bool) {
	bt, ok := s.tables.Building(typ)
	if !ok || !bt.Upgradeable {
		return 0, false
	}
	fi, ti := from.Index(), to.Index()
	if fi < 0 || ti < 0 || ti <= fi {
		return 0, false
	}

	tu := s.tables.Tunables
	// step[i] prices the move from LevelOrder[i] to LevelOrder[i+1].
	step := []float64{tu.UpgradeCostLv2, tu.UpgradeCostLv3}
	pct := 0.0
	for i := fi; i < ti; i++ {
		pct += step[i]
	}
	return int(math.Round(float64(bt.Cost) * pct)), true
}

// Upgrade raises owner's building on tile to level. Funds are checked and
// debited only for the player; competitor budgets are managed by their policies.
func (s *System) Upgrade(tile int, owner config.OwnerID, level config.Level) Result {
	b, ok := s.world.BuildingAt(tile)
	if !ok {
		return fail("no building on tile %d", tile)
	}
	if b.Owner != owner {
		return fail("that building is not yours")
	}
	bt, ok := s.tables.Building(b.Type)
	if !ok || !bt.Upgradeable {
		return fail("this building cannot be upgraded")
	}
	cost, ok := s.UpgradeCost(b.Type, currentLevel(b), level)
	if !ok {
		return fail("cannot upgrade from %s to %s", currentLevel(b), level)
	}
	if owner == config.Player {
		if s.world.Money() < cost {
			return fail("not enough money, need $%s", humanize.Comma(int64(cost)))
		}
		s.world.SubtractMoney(cost)
	}
	s.world.UpgradeBuilding(tile, owner, level)

	name := string(level)
	if fl, ok := s.tables.Level(level); ok {
		name = fl.Name
	}
	return Result{Success: true, Message: fmt.Sprintf("upgraded %s to %s", bt.Name, name), Cost: cost, NewLevel: level}
}

// Refund is what selling the building on tile returns: a base share of cost
// plus a bonus for upgraded levels. It is 0 for an empty tile.
func (s *System) Refund(tile int) int {
	b, ok := s.world.BuildingAt(tile)
	if !ok {
		return 0
	}
	bt, ok := s.tables.Building(b.Type)
	if !ok {
		slog.Warn("refund: unknown building type", "type", b.Type)
		return 0
	}
	return s.refund(bt, currentLevel(b))
}

func (s *System) refund(bt config.BuildingType, level config.Level) int {
	tu := s.tables.Tunables
	cost := float64(bt.Cost)
	r := int(math.Floor(cost * tu.RefundBase))
	switch level {
	case config.Lv2:
		r += int(math.Floor(cost * tu.RefundBonusLv2))
	case config.Lv3:
		r += int(math.Floor(cost * tu.RefundBonusLv3))
	}
	return r
}

// Sell removes owner's building on tile. The player is refunded, and retiring a
// high-polluting plant calms the monster by up to SellAngerMax points.
func (s *System) Sell(tile int, owner config.OwnerID) Result {
	b, ok := s.world.BuildingAt(tile)
	if !ok {
		return fail("no building on tile %d", tile)
	}
	if b.Owner != owner {
		return fail("that building is not yours")
	}
	bt, ok := s.tables.Building(b.Type)
	if !ok {
		slog.Warn("sell: unknown building type", "type", b.Type)
		return fail("building data missing for %q", b.Type)
	}

	tu := s.tables.Tunables
	refund := s.refund(bt, currentLevel(b))

	reduction := 0
	if bt.Category == config.CategoryHighPollute && tu.SellAngerPerTons > 0 {
		e := s.emitter.BuildingEmission(b)
		reduction = min(tu.SellAngerMax, int(math.Floor(e/float64(tu.SellAngerPerTons))))
	}
	if owner == config.Player && reduction > 0 {
		s.world.ReduceMonsterAnger(float64(reduction))
	} else {
		reduction = 0
	}

	s.world.RemoveBuilding(tile, owner)
	if owner == config.Player {
		s.world.AddMoney(refund)
	}

	msg := fmt.Sprintf("sold %s for $%s", bt.Name, humanize.Comma(int64(refund)))
	if reduction > 0 {
		msg += fmt.Sprintf("; retiring a dirty plant calmed the monster by %d", reduction)
	}
	return Result{Success: true, Message: msg, Refund: refund, MonsterReduction: reduction}
}

// Info describes the building on tile.
func (s *System) Info(tile int) (Info, bool) {
	b, ok := s.world.BuildingAt(tile)
	if !ok {
		return Info{}, false
	}
	bt, ok := s.tables.Building(b.Type)
	if !ok {
		return Info{}, false
	}
	level := currentLevel(b)
	info := Info{
		TileIndex:    tile,
		Type:         b.Type,
		Name:         bt.Name,
		Owner:        b.Owner,
		Level:        level,
		LevelName:    string(level),
		Income:       bt.Income,
		Emission:     s.emitter.BuildingEmission(b),
		BaseEmission: bt.Emission,
		Cost:         bt.Cost,
		CanUpgrade:   bt.Upgradeable,
	}
	if fl, ok := s.tables.Level(level); ok {
		info.LevelName = fl.Name
	}
	if bt.Upgradeable {
		for _, next := range config.LevelOrder[level.Index()+1:] {
			cost, ok := s.UpgradeCost(b.Type, level, next)
			if !ok {
				continue
			}
			name := string(next)
			if fl, ok := s.tables.Level(next); ok {
				name = fl.Name
			}
			info.UpgradeOptions = append(info.UpgradeOptions, UpgradeOption{Level: next, Name: name, Cost: cost})
		}
	}
	return info, true
}

// Upgradeable lists owner's buildings that still have an upgrade available.
func (s *System) Upgradeable(owner config.OwnerID) []Info {
	var out []Info
	for _, b := range s.world.BuildingsOf(owner) {
		if info, ok := s.Info(b.TileIndex); ok && len(info.UpgradeOptions) > 0 {
			out = append(out, info)
		}
	}
	return out
}

// Infos describes every building of owner.
func (s *System) Infos(owner config.OwnerID) []Info {
	var out []Info
	for _, b := range s.world.BuildingsOf(owner) {
		if info, ok := s.Info(b.TileIndex); ok {
			out = append(out, info)
		}
	}
	return out
}

func currentLevel(b state.Building) config.Level {
	if b.Level == "" {
		return config.Lv1
	}
	return b.Level
}
