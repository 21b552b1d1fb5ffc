// Command carbonsim runs a carbon monster game behind its HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/carbon-monster/internal/api"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/engine"
	"github.com/talgya/carbon-monster/internal/entropy"
	"github.com/talgya/carbon-monster/internal/persistence"
	"github.com/talgya/carbon-monster/internal/persistence/snapshot"
)

func main() {
	rt, err := config.LoadRuntime()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: rt.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("Carbon Monster starting")

	tables, err := rt.LoadTables()
	if err != nil {
		slog.Error("failed to load tables", "path", rt.TablesPath, "error", err)
		os.Exit(1)
	}
	slog.Info("tables loaded", "version", tables.Version, "max_years", tables.Tunables.MaxYears)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(rt.DBPath), 0o755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(rt.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", rt.DBPath)

	// ── Resume or Start a Game ────────────────────────────────────────
	g := resumeOrCreate(db, tables, rt)
	if err := db.SaveMeta("last_game", g.ID); err != nil {
		slog.Warn("failed to record last game", "error", err)
	}

	// ── Autoplay ──────────────────────────────────────────────────────
	if rt.Autoplay {
		autoplay(g, db, rt)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if rt.AdminKey == "" {
		slog.Warn("CARBON_ADMIN_KEY not set, player actions are open to any client")
	}
	srv := api.NewServer(g, db)
	srv.Port = rt.APIPort
	srv.AdminKey = rt.AdminKey
	srv.Start()

	fmt.Printf("\nCarbon Monster: year %d of game %s, %s in the bank.\n",
		g.World.Year(), g.ID, humanize.Comma(int64(g.World.Money())))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", rt.APIPort)
	fmt.Println("Serving... (Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	srv.Do(func(g *engine.Game) {
		if err := db.SaveGame(persistence.AutosaveSlot, g); err != nil {
			slog.Error("final save failed", "error", err)
		}
		exportSnapshot(g, rt.SnapshotDir)
	})

	fmt.Println("Game saved.")
}

// resumeOrCreate restores an unfinished autosave, or starts a new game.
func resumeOrCreate(db *persistence.DB, tables *config.Tables, rt config.Runtime) *engine.Game {
	g, err := db.LoadGame(persistence.AutosaveSlot, tables)
	switch {
	case err == nil && !g.Over().Over:
		slog.Info("resuming autosave", "game", g.ID, "turn", g.World.Turn(), "year", g.World.Year())
		return g
	case err == nil:
		slog.Info("autosaved game is finished, starting a new one", "game", g.ID)
	case errors.Is(err, persistence.ErrSlotEmpty):
	default:
		slog.Warn("autosave unreadable, starting a new game", "error", err)
	}

	seed := rt.Seed
	if seed == 0 {
		seed = entropy.RandomSeed()
		slog.Info("no seed configured, drew one", "seed", seed)
	}
	g, err = engine.New(tables, engine.Options{Seed: seed, Clustered: rt.ClusteredLand})
	if err != nil {
		slog.Error("failed to create game", "error", err)
		os.Exit(1)
	}
	return g
}

// autoplay plays up to rt.Turns turns with the built-in heuristic, saving and
// exporting a snapshot after each.
func autoplay(g *engine.Game, db *persistence.DB, rt config.Runtime) {
	slog.Info("autoplay starting", "turns", rt.Turns)
	for i := 0; i < rt.Turns && !g.Over().Over; i++ {
		actions := g.Autoplay()
		report, err := g.EndTurn()
		if err != nil {
			slog.Error("autoplay turn failed", "error", err)
			return
		}
		slog.Info("autoplay turn",
			"year", report.Year,
			"actions", len(actions),
			"net_income", report.Settlement.NetIncome,
			"anger", g.World.MonsterAnger(),
		)
		if err := db.SaveGame(persistence.AutosaveSlot, g); err != nil {
			slog.Error("autosave failed", "error", err)
		}
		exportSnapshot(g, rt.SnapshotDir)
	}

	if st := g.Over(); st.Over {
		out := g.Outcome()
		fmt.Printf("\nGame over: %s\n", st.Reason)
		for _, s := range out.Standings {
			fmt.Printf("  %-18s %12s  emission %s\n", s.Name, humanize.Comma(int64(s.Money)), humanize.Comma(int64(s.TotalEmission)))
		}
		if out.PrimaryWinner != "" {
			fmt.Printf("Winner: %s\n", g.Tables.OwnerName(out.PrimaryWinner))
		}
	}
}

func exportSnapshot(g *engine.Game, dir string) {
	if dir == "" {
		return
	}
	path, err := snapshot.Export(dir, g)
	if err != nil {
		slog.Error("snapshot export failed", "error", err)
		return
	}
	slog.Debug("snapshot exported", "path", path)
}
