// Package engine ties the game systems together behind one Game context.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/carbon-monster/internal/achievement"
	"github.com/talgya/carbon-monster/internal/building"
	"github.com/talgya/carbon-monster/internal/carbon"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/npc"
	"github.com/talgya/carbon-monster/internal/state"
	"github.com/talgya/carbon-monster/internal/turn"
	"github.com/talgya/carbon-monster/internal/victory"
)

// maxEvents bounds the event log.
const maxEvents = 1000

// Event categories.
const (
	CategoryPlayer      = "player"
	CategoryNPC         = "npc"
	CategorySettlement  = "settlement"
	CategoryAudit       = "audit"
	CategoryMonster     = "monster"
	CategoryMarket      = "market"
	CategoryAchievement = "achievement"
	CategoryGame        = "game"
)

// ErrGameOver is returned when a turn is ended after the game has finished.
var ErrGameOver = errors.New("game is over")

// Event is a notable occurrence in the game.
type Event struct {
	Turn        int    `json:"turn"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Options configure a new game.
type Options struct {
	Seed      int64
	Clustered bool           // noise-clustered land zones
	Source    entropy.Source // overrides the seeded source
}

// Game holds the complete state of one play session and wires the systems together.
// It is not safe for concurrent use.
type Game struct {
	ID     string
	Seed   int64
	Tables *config.Tables

	World        *state.World
	Lands        *land.System
	Fees         *carbon.System
	Builds       *building.System
	NPC          *npc.System
	Turns        *turn.System
	Achievements *achievement.Tracker

	Events []Event // most recent maxEvents

	rng       entropy.Source
	over      bool
	reason    string
	outcome   *victory.Outcome
	listeners []func(Event)
}

// New creates a game at turn 1 with a freshly generated land grid.
func New(tables *config.Tables, opts Options) (*Game, error) {
	g := newGame(tables, uuid.NewString(), opts.Seed, opts.Source)

	var err error
	if opts.Clustered {
		err = g.Lands.GenerateClustered(config.Owners, opts.Seed)
	} else {
		err = g.Lands.Generate(config.Owners, g.rng)
	}
	if err != nil {
		return nil, fmt.Errorf("generate land: %w", err)
	}

	g.record(CategoryGame, fmt.Sprintf("A new game begins in %d", g.World.Year()))
	slog.Info("game created", "id", g.ID, "seed", opts.Seed, "clustered", opts.Clustered)
	return g, nil
}

func newGame(tables *config.Tables, id string, seed int64, src entropy.Source) *Game {
	if src == nil {
		src = entropy.NewSeeded(seed)
	}
	w := state.New(tables)
	lands := land.NewSystem(tables)
	fees := carbon.NewSystem(w, lands)
	w.SetEmissionModel(fees.PlayerEmission)
	builds := building.NewSystem(w, lands, fees)

	g := &Game{
		ID:           id,
		Seed:         seed,
		Tables:       tables,
		World:        w,
		Lands:        lands,
		Fees:         fees,
		Builds:       builds,
		NPC:          npc.NewSystem(w, lands, fees, builds),
		Turns:        turn.NewSystem(w, fees),
		Achievements: achievement.NewTracker(),
		rng:          src,
	}
	w.Subscribe(state.MonsterMaxed, state.ObserverFunc(func(state.Event) {
		g.record(CategoryMonster, "The carbon monster has reached full rage")
	}))
	return g
}

// OnEvent registers fn to receive every event appended to the log.
func (g *Game) OnEvent(fn func(Event)) {
	g.listeners = append(g.listeners, fn)
}

// record appends an event and trims the log to the last maxEvents.
func (g *Game) record(category, description string) {
	e := Event{Turn: g.World.Turn(), Description: description, Category: category}
	g.Events = append(g.Events, e)
	if len(g.Events) > maxEvents {
		g.Events = g.Events[len(g.Events)-maxEvents:]
	}
	for _, fn := range g.listeners {
		fn(e)
	}
}

// RecentEvents returns up to n of the latest events, oldest first.
func (g *Game) RecentEvents(n int) []Event {
	start := 0
	if n > 0 && len(g.Events) > n {
		start = len(g.Events) - n
	}
	return append([]Event(nil), g.Events[start:]...)
}

// Status is the game's end state.
type Status struct {
	Over   bool   `json:"over"`
	Reason string `json:"reason,omitempty"`
}

func (g *Game) Over() Status {
	return Status{Over: g.over, Reason: g.reason}
}

// Outcome returns the final verdict once the game is over, otherwise a live evaluation.
func (g *Game) Outcome() victory.Outcome {
	if g.outcome != nil {
		return *g.outcome
	}
	return victory.Evaluate(g.World, g.Fees)
}

// checkOver ends the game after the last year or when the monster is at full rage.
func (g *Game) checkOver() bool {
	if g.over {
		return true
	}
	switch {
	case g.World.MonsterAnger() >= state.MaxAnger:
		g.finish("the carbon monster reached full rage")
	case g.World.Turn() > g.Tables.Tunables.MaxYears:
		g.finish(fmt.Sprintf("all %d years have been played", g.Tables.Tunables.MaxYears))
	}
	return g.over
}

func (g *Game) finish(reason string) {
	out := g.conclude(reason)

	desc := "Game over: " + reason
	if out.PrimaryWinner != "" {
		desc += fmt.Sprintf(". %s wins", g.Tables.OwnerName(out.PrimaryWinner))
	}
	g.record(CategoryGame, desc)
	slog.Info("game over", "id", g.ID, "reason", reason, "winner", out.PrimaryWinner, "winners", out.Winners)
}

// conclude marks the game over and freezes the verdict.
func (g *Game) conclude(reason string) victory.Outcome {
	out := victory.Evaluate(g.World, g.Fees)
	g.over, g.reason, g.outcome = true, reason, &out
	return out
}
