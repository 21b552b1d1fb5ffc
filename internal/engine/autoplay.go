package engine

import (
	"slices"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
)

// autoplayReserve is the cash the autoplayer keeps back for fees.
const autoplayReserve = 8000

// Autoplay takes a simple greedy set of player actions for the current turn:
// buy the cheapest land while rich, fill owned tiles with the cleanest plant it
// can afford, upgrade Lv1 plants, and buy domestic credits when over the free
// allowance. It returns the messages of the actions that succeeded.
func (g *Game) Autoplay() []string {
	if g.over {
		return nil
	}
	var done []string
	ok := func(success bool, msg string) {
		if success {
			done = append(done, msg)
		}
	}
	w := g.World

	if w.CanPurchaseLand() && w.Money() > 4*autoplayReserve {
		offers := g.Lands.Purchasable(config.Player, w.Occupied, w.Turn(), w.Money())
		slices.SortStableFunc(offers, func(a, b land.Offer) int { return a.Price - b.Price })
		if len(offers) > 0 && offers[0].CanAfford {
			r := g.PurchaseLand(offers[0].TileIndex)
			ok(r.Success, r.Message)
		}
	}

	for _, l := range g.Lands.LandsByOwner(config.Player) {
		if !w.CanBuild() {
			break
		}
		if w.Occupied(l.Index) {
			continue
		}
		typ, found := g.cleanestAffordable()
		if !found {
			break
		}
		r := g.Build(l.Index, typ)
		ok(r.Success, r.Message)
	}

	for _, info := range g.Builds.Upgradeable(config.Player) {
		for _, opt := range info.UpgradeOptions {
			if opt.Level != config.Lv2 || w.Money()-opt.Cost < autoplayReserve {
				continue
			}
			r := g.Upgrade(info.TileIndex, opt.Level)
			ok(r.Success, r.Message)
		}
	}

	if g.Fees.ChargeableEmission(config.Player) > 0 && w.Money()-w.DomesticPrice() > 2*autoplayReserve {
		r := g.BuyCredits(state.Domestic, 1)
		ok(r.Success, r.Message)
	}
	return done
}

// cleanestAffordable prefers low-emission archetypes, keeping the reserve.
func (g *Game) cleanestAffordable() (config.BuildingTypeID, bool) {
	for _, id := range []config.BuildingTypeID{config.Tech, config.Solar, config.Gas, config.Manufacturing} {
		bt, ok := g.Tables.Building(id)
		if ok && g.World.Money()-bt.Cost >= autoplayReserve {
			return id, true
		}
	}
	return "", false
}
