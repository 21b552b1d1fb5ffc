package npc

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
	"github.com/talgya/carbon-monster/internal/land"
)

func (a *actor) boughtEvent(l land.Land, price int) string {
	return fmt.Sprintf("%s bought a %s tile ($%s)", a.name, l.Name, humanize.Comma(int64(price)))
}

func (a *actor) builtEvent(bt config.BuildingType) string {
	return fmt.Sprintf("%s built a new %s in its zone", a.name, bt.Name)
}

func (a *actor) buildOn(free []int, typ config.BuildingTypeID) []string {
	tile := entropy.Pick(a.rng, free)
	if bt, ok := a.build(tile, typ); ok {
		return []string{a.builtEvent(bt)}
	}
	return nil
}

// buyPreferred buys a random preferred offer, or any offer when none is preferred.
func (a *actor) buyPreferred(prefer func(land.Offer) bool) []string {
	offers := a.purchasable()
	if len(offers) == 0 {
		return nil
	}
	var preferred []land.Offer
	for _, o := range offers {
		if prefer(o) {
			preferred = append(preferred, o)
		}
	}
	if len(preferred) == 0 {
		preferred = offers
	}
	target := entropy.Pick(a.rng, preferred)
	if !target.CanAfford {
		return nil
	}
	if l, price, ok := a.purchase(target.TileIndex); ok {
		return []string{a.boughtEvent(l, price)}
	}
	return nil
}

func ofType(types ...config.LandTypeID) func(land.Offer) bool {
	return func(o land.Offer) bool { return slices.Contains(types, o.Land.Type) }
}

// aggressive expands hard with dirty plants early, then drifts toward upgrades
// and cleaner builds. A busy player provokes it further.
func aggressive(a *actor) []string {
	var events []string
	free := a.freeTiles()

	if a.chance(0.3) {
		events = append(events, a.buyPreferred(ofType(config.LandGreenGrid, config.LandHighEfficiency))...)
	}
	if len(free) == 0 {
		return events
	}

	turn := a.turn()
	buildP := 0.5
	switch {
	case turn <= 4:
		buildP = 0.85
	case turn <= 7:
		buildP = 0.70
	}
	playerBuildings := len(a.world().PlayerBuildings())
	if playerBuildings > 3 {
		buildP = min(0.95, buildP+0.2)
	}

	// A failed early roll falls through to the mid-game branch.
	switch {
	case turn <= 4 && a.chance(buildP):
		typ := config.Gas
		if a.chance(0.7) {
			typ = config.Coal
		}
		events = append(events, a.buildOn(free, typ)...)

	case turn <= 7:
		if a.chance(buildP) {
			typ := config.Gas
			if a.chance(0.5) {
				typ = config.Coal
			}
			events = append(events, a.buildOn(free, typ)...)
			break
		}
		bs := a.buildings()
		if len(bs) == 0 {
			break
		}
		b := entropy.Pick(a.rng, bs)
		if (b.Level == config.Lv1 || b.Level == "") && a.chance(0.5) && a.upgrade(b.TileIndex, config.Lv2) {
			events = append(events, fmt.Sprintf("%s upgraded a factory to %s", a.name, a.levelName(config.Lv2)))
		}

	default:
		actionP := 0.5
		if playerBuildings > 4 {
			actionP = 0.7
		}
		if a.chance(actionP) {
			bs := a.buildings()
			if len(bs) == 0 {
				break
			}
			b := entropy.Pick(a.rng, bs)
			var target config.Level
			switch b.Level {
			case config.Lv3:
			case config.Lv2:
				target = config.Lv3
			default:
				target = config.Lv2
			}
			if target != "" && a.upgrade(b.TileIndex, target) {
				events = append(events, fmt.Sprintf("%s upgraded a factory to %s", a.name, a.levelName(target)))
			}
			break
		}
		typ := config.Tech
		if a.chance(0.6) {
			typ = config.Gas
		}
		events = append(events, a.buildOn(free, typ)...)
	}
	return events
}

// optimizer upgrades first and builds clean when it builds at all. A successful
// upgrade ends its turn.
func optimizer(a *actor) []string {
	var events []string
	free := a.freeTiles()

	if a.chance(0.2) {
		events = append(events, a.buyPreferred(ofType(config.LandGreenGrid))...)
	}

	turn := a.turn()
	buildP := 0.3
	switch {
	case turn <= 3:
		buildP = 0.5
	case turn <= 6:
		buildP = 0.4
	}

	tables := a.world().Tables()
	bs := a.buildings()
	if len(bs) > 0 && a.chance(0.8) {
		b := entropy.Pick(a.rng, bs)
		if bt, ok := tables.Building(b.Type); ok && bt.Upgradeable {
			target := config.Lv2
			if b.Level == config.Lv2 {
				target = config.Lv3
			} else if (b.Level == config.Lv1 || b.Level == "") && a.chance(0.3) {
				target = config.Lv3
			}
			if a.upgrade(b.TileIndex, target) {
				return append(events, fmt.Sprintf("%s upgraded a factory to %s", a.name, a.levelName(target)))
			}
		}
	}

	if len(free) == 0 || !(len(bs) == 0 || a.chance(buildP)) {
		return events
	}

	money := a.money()
	solar, _ := tables.Building(config.Solar)
	tech, _ := tables.Building(config.Tech)
	var typ config.BuildingTypeID
	switch r := a.rng.Float64(); {
	case r < 0.3 && money >= solar.Cost:
		typ = config.Solar
	case r < 0.6 && money >= tech.Cost:
		typ = config.Tech
	case r < 0.8:
		typ = config.Gas
	default:
		typ = config.Manufacturing
	}
	return append(events, a.buildOn(free, typ)...)
}

// dealer buys the cheapest land, builds mid-pollution plants sparingly and
// talks up its credit trading.
func dealer(a *actor) []string {
	var events []string
	free := a.freeTiles()

	if a.chance(0.1) {
		if offers := a.purchasable(); len(offers) > 0 {
			byPrice := func(x, y land.Offer) int { return cmp.Compare(x.Price, y.Price) }
			var cheap []land.Offer
			for _, o := range offers {
				if o.Land.Type == config.LandHighEmission || o.Land.Type == config.LandBasic {
					cheap = append(cheap, o)
				}
			}
			if len(cheap) == 0 {
				cheap = offers
			}
			slices.SortStableFunc(cheap, byPrice)
			if target := cheap[0]; target.CanAfford {
				if l, price, ok := a.purchase(target.TileIndex); ok {
					events = append(events, a.boughtEvent(l, price))
				}
			}
		}
	}

	if len(free) > 0 && a.chance(0.4) {
		typ := config.Manufacturing
		if a.chance(0.5) {
			typ = config.Gas
		}
		events = append(events, a.buildOn(free, typ)...)
	}

	if bs := a.buildings(); len(bs) > 0 && a.chance(0.3) {
		b := entropy.Pick(a.rng, bs)
		if (b.Level == config.Lv1 || b.Level == "") && a.upgrade(b.TileIndex, config.Lv2) {
			events = append(events, fmt.Sprintf("%s upgraded a factory to cut emission costs", a.name))
		}
	}

	if a.chance(0.5) {
		events = append(events, fmt.Sprintf("%s is trading carbon credits, hunting for profit", a.name))
	}
	return events
}
