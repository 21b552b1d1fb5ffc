package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// ErrInvalidTables is returned when a table file parses but cannot drive a game.
var ErrInvalidTables = errors.New("invalid tables")

// Default returns the built-in tables. It panics only if the embedded file is broken,
// which is a build defect.
func Default() *Tables {
	t, err := Parse(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("embedded tables.yaml: %v", err))
	}
	return t
}

// Load reads tables from a YAML file on disk.
func Load(path string) (*Tables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML table document.
func Parse(raw []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("tables.yaml: %w", err)
	}
	t.index()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate rejects tables that would make the formulas divide by zero or
// leave a lookup without a neutral fallback.
func (t *Tables) Validate() error {
	tu := t.Tunables
	switch {
	case tu.MonsterGrowthDivisor <= 0:
		return fmt.Errorf("%w: monster_growth_divisor must be positive", ErrInvalidTables)
	case tu.AuditInterval <= 0:
		return fmt.Errorf("%w: audit_interval must be positive", ErrInvalidTables)
	case tu.DomesticCreditMultiplier <= 0 || tu.IntlCreditMultiplier <= 0:
		return fmt.Errorf("%w: credit multipliers must be positive", ErrInvalidTables)
	case !unit(tu.DomesticCreditMaxPercent) || !unit(tu.IntlCreditMaxPercent):
		return fmt.Errorf("%w: credit max percents must be within [0,1]", ErrInvalidTables)
	case tu.MaxBuildingsPerTurn <= 0 || tu.MaxLandPurchasesPerTurn <= 0:
		return fmt.Errorf("%w: per-turn caps must be positive", ErrInvalidTables)
	case tu.CreditLotSize <= 0:
		return fmt.Errorf("%w: credit_lot_size must be positive", ErrInvalidTables)
	}
	if _, ok := t.Level(Lv1); !ok {
		return fmt.Errorf("%w: level Lv1 is required", ErrInvalidTables)
	}
	if _, ok := t.LandType(LandBasic); !ok {
		return fmt.Errorf("%w: land type basic is required", ErrInvalidTables)
	}
	for _, id := range Owners {
		if _, ok := t.Owner(id); !ok {
			return fmt.Errorf("%w: owner %s is missing", ErrInvalidTables, id)
		}
	}
	g := t.LandGen
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("%w: land grid must have rows and cols", ErrInvalidTables)
	}
	if g.PositionDivisor <= 0 {
		return fmt.Errorf("%w: position_divisor must be positive", ErrInvalidTables)
	}
	for _, w := range append(append([]TypeWeight{}, g.EdgeWeights...), g.CenterWeights...) {
		if _, ok := t.LandType(w.Type); !ok {
			return fmt.Errorf("%w: weight table references unknown land type %q", ErrInvalidTables, w.Type)
		}
	}
	return nil
}

func unit(v float64) bool { return v >= 0 && v <= 1 }
