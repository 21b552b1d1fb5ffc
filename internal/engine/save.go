package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/state"
	"github.com/talgya/carbon-monster/internal/turn"
)

// SaveVersion tags every saved game. Loading any other tag is refused.
const SaveVersion = state.SnapshotVersion

// SaveState is everything needed to resume a game.
type SaveState struct {
	Version      string             `json:"version"`
	GameID       string             `json:"game_id"`
	Seed         int64              `json:"seed"`
	World        state.Snapshot     `json:"world"`
	Lands        []land.Land        `json:"lands"`
	Audits       []turn.AuditRecord `json:"audits"`
	Achievements []string           `json:"achievements"`
	Events       []Event            `json:"events"`
	Over         bool               `json:"over"`
	Reason       string             `json:"reason,omitempty"`
}

// Save copies the full game state.
func (g *Game) Save() SaveState {
	return SaveState{
		Version:      SaveVersion,
		GameID:       g.ID,
		Seed:         g.Seed,
		World:        g.World.Snapshot(),
		Lands:        g.Lands.Lands(),
		Audits:       g.Turns.AuditHistory(),
		Achievements: g.Achievements.UnlockedIDs(),
		Events:       append([]Event(nil), g.Events...),
		Over:         g.over,
		Reason:       g.reason,
	}
}

// Load rebuilds a game from a save. The random source is reseeded from the
// save's seed and turn, so a resumed game stays reproducible.
func Load(tables *config.Tables, s SaveState) (*Game, error) {
	if s.Version != SaveVersion {
		return nil, fmt.Errorf("save version %q, want %q", s.Version, SaveVersion)
	}
	g := newGame(tables, s.GameID, s.Seed, entropy.NewSeeded(s.Seed+int64(s.World.Turn)))
	if err := g.World.Restore(s.World); err != nil {
		return nil, fmt.Errorf("restore world: %w", err)
	}
	if err := g.Lands.Restore(s.Lands); err != nil {
		return nil, fmt.Errorf("restore lands: %w", err)
	}
	g.Turns.RestoreHistory(s.Audits)
	g.Achievements.Restore(s.Achievements)
	g.Events = append([]Event(nil), s.Events...)
	if len(g.Events) > maxEvents {
		g.Events = g.Events[len(g.Events)-maxEvents:]
	}
	for _, id := range g.World.CompetitorIDs() {
		g.World.SetCompetitorEmission(id, g.Fees.TotalEmission(id))
	}

	if s.Over {
		g.conclude(s.Reason)
	} else {
		g.checkOver()
	}
	slog.Info("game loaded", "id", g.ID, "turn", g.World.Turn(), "over", g.over)
	return g, nil
}
