// Package npc drives the scripted competitors. Each competitor runs one policy,
// a turn-scoped decision function over a shared set of primitives.
package npc

import (
	"log/slog"

	"github.com/talgya/carbon-monster/internal/building"
	"github.com/talgya/carbon-monster/internal/carbon"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
)

// Policy selects a competitor's decision procedure.
type Policy string

const (
	Aggressive Policy = "aggressive"
	Optimizer  Policy = "optimizer"
	Dealer     Policy = "dealer"
)

// decideFunc runs one turn for an actor and returns narrative lines.
type decideFunc func(a *actor) []string

var policies = map[Policy]decideFunc{
	Aggressive: aggressive,
	Optimizer:  optimizer,
	Dealer:     dealer,
}

// PolicyForStyle maps an owner profile style to its policy.
func PolicyForStyle(style string) (Policy, bool) {
	switch style {
	case "aggressive":
		return Aggressive, true
	case "green":
		return Optimizer, true
	case "balanced":
		return Dealer, true
	}
	return "", false
}

type System struct {
	world  *state.World
	lands  *land.System
	fees   *carbon.System
	builds *building.System
}

func NewSystem(world *state.World, lands *land.System, fees *carbon.System, builds *building.System) *System {
	return &System{world: world, lands: lands, fees: fees, builds: builds}
}

// PolicyOf returns the policy a competitor plays.
func (s *System) PolicyOf(owner config.OwnerID) (Policy, bool) {
	c, ok := s.world.Competitor(owner)
	if !ok {
		return "", false
	}
	return PolicyForStyle(c.Style)
}

// RunAll runs every competitor in order, each fully applied before the next.
func (s *System) RunAll(rng entropy.Source) []string {
	var events []string
	for _, id := range s.world.CompetitorIDs() {
		events = append(events, s.Run(id, rng)...)
	}
	return events
}

// Run plays one competitor's turn and refreshes its cached emission.
func (s *System) Run(owner config.OwnerID, rng entropy.Source) []string {
	p, ok := s.PolicyOf(owner)
	if !ok {
		slog.Warn("no policy for owner", "owner", owner)
		return nil
	}
	decide := policies[p]
	c, _ := s.world.Competitor(owner)
	a := &actor{id: owner, name: c.Name, sys: s, rng: rng}
	events := decide(a)
	s.world.SetCompetitorEmission(owner, s.fees.TotalEmission(owner))
	slog.Debug("competitor acted", "owner", owner, "policy", p, "events", len(events))
	return events
}

// actor is the primitive set a policy acts through for one owner.
type actor struct {
	id   config.OwnerID
	name string
	sys  *System
	rng  entropy.Source
}

func (a *actor) world() *state.World { return a.sys.world }

func (a *actor) turn() int { return a.sys.world.Turn() }

func (a *actor) money() int { return a.sys.world.Funds(a.id) }

func (a *actor) chance(p float64) bool { return entropy.Chance(a.rng, p) }

// freeTiles lists the actor's tiles with no building.
func (a *actor) freeTiles() []int {
	var out []int
	for _, l := range a.sys.lands.LandsByOwner(a.id) {
		if !a.sys.world.Occupied(l.Index) {
			out = append(out, l.Index)
		}
	}
	return out
}

func (a *actor) buildings() []state.Building { return a.sys.world.BuildingsOf(a.id) }

// purchasable lists tiles the actor could buy at this turn's prices.
func (a *actor) purchasable() []land.Offer {
	return a.sys.lands.Purchasable(a.id, a.sys.world.Occupied, a.turn(), a.money())
}

// purchase buys a tile, debiting the actor before the transfer.
func (a *actor) purchase(tile int) (land.Land, int, bool) {
	price := a.sys.lands.PurchasePrice(tile, a.turn(), a.money())
	if a.money() < price {
		return land.Land{}, 0, false
	}
	if !a.sys.lands.CanPurchase(tile, a.id, a.sys.world.Occupied).CanPurchase {
		return land.Land{}, 0, false
	}
	a.sys.world.AdjustFunds(a.id, -price)
	if res := a.sys.lands.Purchase(tile, a.id); !res.Success {
		a.sys.world.AdjustFunds(a.id, price)
		return land.Land{}, 0, false
	}
	l, _ := a.sys.lands.Land(tile)
	return l, price, true
}

// build places a Lv1 building through the shared building system.
func (a *actor) build(tile int, typ config.BuildingTypeID) (config.BuildingType, bool) {
	res := a.sys.builds.Build(tile, a.id, typ)
	if !res.Success {
		return config.BuildingType{}, false
	}
	bt, _ := a.world().Tables().Building(typ)
	return bt, true
}

// upgrade pays for and applies an upgrade from the actor's own budget.
func (a *actor) upgrade(tile int, to config.Level) bool {
	b, ok := a.world().BuildingAt(tile)
	if !ok || b.Owner != a.id {
		return false
	}
	from := b.Level
	if from == "" {
		from = config.Lv1
	}
	cost, ok := a.sys.builds.UpgradeCost(b.Type, from, to)
	if !ok || a.money() < cost {
		return false
	}
	a.world().AdjustFunds(a.id, -cost)
	if res := a.sys.builds.Upgrade(tile, a.id, to); !res.Success {
		a.world().AdjustFunds(a.id, cost)
		return false
	}
	return true
}

func (a *actor) levelName(l config.Level) string {
	if fl, ok := a.world().Tables().Level(l); ok {
		return fl.Name
	}
	return string(l)
}
