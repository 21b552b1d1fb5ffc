package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tb := Default()

	assert.Equal(t, 10000, tb.Tunables.FreeEmission)
	assert.Equal(t, 2, tb.Tunables.MaxBuildingsPerTurn)
	assert.Equal(t, 6, tb.Tunables.CBAMStartTurn)

	coal, ok := tb.Building(Coal)
	require.True(t, ok)
	assert.Equal(t, 3000, coal.Cost)
	assert.Equal(t, 3500.0, coal.DirectEmission)
	assert.Equal(t, CategoryHighPollute, coal.Category)

	solar, ok := tb.Building(Solar)
	require.True(t, ok)
	assert.False(t, solar.Upgradeable)

	gs, _ := tb.Building(GasSupply)
	mf, _ := tb.Building(Manufacturing)
	assert.True(t, gs.Export)
	assert.True(t, mf.Export)

	assert.Equal(t, 500.0, tb.LevelRate(Lv1))
	assert.Equal(t, 0.6, tb.LevelCoeff(Lv3))
	assert.Equal(t, 0.8, tb.LandEmissionCoeff(LandHighEfficiency))
	assert.Equal(t, "Tycoon Ah-Jin", tb.OwnerName(CompetitorA))
	assert.Len(t, tb.LandGen.EdgeWeights, 5)
}

func TestLookupMissesDegradeToNeutral(t *testing.T) {
	tb := Default()

	_, ok := tb.Building("nuclear")
	assert.False(t, ok)
	assert.Equal(t, 1.0, tb.LevelCoeff("Lv9"))
	assert.Equal(t, tb.BaseRate(), tb.LevelRate("Lv9"))
	assert.Equal(t, 1.0, tb.LandEmissionCoeff("swamp"))
	assert.Equal(t, "unknown", tb.OwnerName("Z"))
}

func TestLevelIndex(t *testing.T) {
	assert.Equal(t, 0, Lv1.Index())
	assert.Equal(t, 2, Lv3.Index())
	assert.Equal(t, -1, Level("Lv4").Index())
}

func TestParseRejectsInvalidTables(t *testing.T) {
	_, err := Parse([]byte(`
tunables:
  monster_growth_divisor: 0
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTables)
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, defaultTables, 0o644))

	tb, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", tb.Version)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRuntime(t *testing.T) {
	t.Setenv("CARBON_SEED", "42")
	t.Setenv("CARBON_AUTOPLAY", "true")
	t.Setenv("CARBON_LOG_LEVEL", "debug")

	rt, err := LoadRuntime()
	require.NoError(t, err)
	assert.Equal(t, int64(42), rt.Seed)
	assert.True(t, rt.Autoplay)
	assert.Equal(t, 8080, rt.APIPort)
	assert.Equal(t, slog.LevelDebug, rt.Level())

	tb, err := rt.LoadTables()
	require.NoError(t, err)
	assert.NotNil(t, tb)
}

func TestLoadStewardRuntime(t *testing.T) {
	t.Setenv("STEWARD_INTERVAL", "250ms")
	t.Setenv("CARBON_LOG_LEVEL", "warn")

	rt, err := LoadStewardRuntime()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, rt.Interval)
	assert.Equal(t, "http://localhost:8080", rt.APIURL)
	assert.Equal(t, slog.LevelWarn, rt.Level())

	t.Setenv("STEWARD_INTERVAL", "soon")
	_, err = LoadStewardRuntime()
	assert.Error(t, err)
}
