package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Runtime holds process settings for cmd/carbonsim, read from the environment.
type Runtime struct {
	DBPath        string `env:"CARBON_DB_PATH" envDefault:"data/carbon.db"`
	TablesPath    string `env:"CARBON_TABLES_PATH"`
	Seed          int64  `env:"CARBON_SEED" envDefault:"0"` // 0 draws a fresh seed from crypto/rand
	APIPort       int    `env:"CARBON_API_PORT" envDefault:"8080"`
	Turns         int    `env:"CARBON_TURNS" envDefault:"10"`
	Autoplay      bool   `env:"CARBON_AUTOPLAY" envDefault:"false"`
	SnapshotDir   string `env:"CARBON_SNAPSHOT_DIR" envDefault:"data/snapshots"`
	LogLevel      string `env:"CARBON_LOG_LEVEL" envDefault:"info"`
	ClusteredLand bool   `env:"CARBON_CLUSTERED_LAND" envDefault:"false"`
	AdminKey      string `env:"CARBON_ADMIN_KEY"`
}

// LoadRuntime parses Runtime from the process environment.
func LoadRuntime() (Runtime, error) {
	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return rt, fmt.Errorf("parse env: %w", err)
	}
	return rt, nil
}

// Level maps LogLevel onto a slog level. Unknown values fall back to info.
func (rt Runtime) Level() slog.Level { return parseLevel(rt.LogLevel) }

// StewardRuntime holds settings for cmd/steward.
type StewardRuntime struct {
	APIURL     string        `env:"CARBON_API_URL" envDefault:"http://localhost:8080"`
	AdminKey   string        `env:"CARBON_ADMIN_KEY"`
	Interval   time.Duration `env:"STEWARD_INTERVAL" envDefault:"2s"`
	MemoryPath string        `env:"STEWARD_MEMORY_PATH" envDefault:"data/steward_memory.json"`
	LogLevel   string        `env:"CARBON_LOG_LEVEL" envDefault:"info"`
}

// LoadStewardRuntime parses StewardRuntime from the process environment.
func LoadStewardRuntime() (StewardRuntime, error) {
	var rt StewardRuntime
	if err := env.Parse(&rt); err != nil {
		return rt, fmt.Errorf("parse env: %w", err)
	}
	return rt, nil
}

func (rt StewardRuntime) Level() slog.Level { return parseLevel(rt.LogLevel) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadTables returns the tables at TablesPath, or the built-in set when unset.
func (rt Runtime) LoadTables() (*Tables, error) {
	if rt.TablesPath == "" {
		return Default(), nil
	}
	return Load(rt.TablesPath)
}
