// Command steward plays the player's seat of a running carbonsim over its API.
// It observes the game, decides on at most one action per turn and ends the turn.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/steward"
)

func main() {
	rt, err := config.LoadStewardRuntime()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: rt.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("Carbon steward starting", "api_url", rt.APIURL, "interval", rt.Interval)

	if rt.MemoryPath != "" {
		os.MkdirAll(filepath.Dir(rt.MemoryPath), 0o755)
	}
	st := steward.New(rt.APIURL, rt.AdminKey, rt.MemoryPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// carbonsim may still be starting.
	slog.Info("waiting for carbonsim API...")
	if !waitForAPI(ctx, rt.APIURL) {
		os.Exit(1)
	}

	ticker := time.NewTicker(rt.Interval)
	defer ticker.Stop()

	for {
		over, err := st.Cycle(ctx)
		if err != nil {
			slog.Error("steward cycle failed", "error", err)
		}
		if over {
			fmt.Println("Game over. Recent turns:")
			fmt.Print(st.Memory.Summary(lastGame(st), 10))
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			slog.Info("received signal, shutting down")
			fmt.Println("Steward stopped.")
			return
		}
	}
}

func lastGame(st *steward.Steward) string {
	if n := len(st.Memory.Records); n > 0 {
		return st.Memory.Records[n-1].GameID
	}
	return ""
}

// waitForAPI polls the status endpoint with backoff for up to five minutes.
func waitForAPI(ctx context.Context, apiURL string) bool {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("carbonsim API is ready")
				return true
			}
		}
		if time.Now().After(deadline) {
			slog.Error("carbonsim API did not become ready within 5 minutes")
			return false
		}
		slog.Info("carbonsim not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
