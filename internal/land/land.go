// Package land owns the tile grid: zone types, ownership and land pricing.
// Tiles are laid out row-major. The first columns belong one-per-owner and the
// last column is shared round-robin by row.
package land

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
)

// Land is one tile of the grid.
type Land struct {
	Index         int               `json:"index"`
	Owner         config.OwnerID    `json:"owner"`
	OwnerName     string            `json:"owner_name"`
	Type          config.LandTypeID `json:"type"`
	Name          string            `json:"name"`
	EmissionCoeff float64           `json:"emission_coeff"`
	Cost          int               `json:"cost"`
	Description   string            `json:"description"`
	Row           int               `json:"row"`
	Col           int               `json:"col"`
	Zone          config.OwnerID    `json:"zone"`
}

// Eligibility is the outcome of a purchase check.
type Eligibility struct {
	CanPurchase bool   `json:"can_purchase"`
	Reason      string `json:"reason,omitempty"`
}

// PurchaseResult reports an ownership transfer.
type PurchaseResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	OldOwner config.OwnerID `json:"old_owner,omitempty"`
	NewOwner config.OwnerID `json:"new_owner,omitempty"`
}

// Offer is a purchasable tile with its current price.
type Offer struct {
	TileIndex int  `json:"tile_index"`
	Land      Land `json:"land"`
	Price     int  `json:"price"`
	CanAfford bool `json:"can_afford"`
}

// OccupiedFunc reports whether a building stands on a tile.
type OccupiedFunc func(tile int) bool

// System holds the grid. It is not safe for concurrent use.
type System struct {
	tables *config.Tables
	lands  []Land
}

// NewSystem creates an empty grid. Call Generate or Restore before use.
func NewSystem(tables *config.Tables) *System {
	return &System{tables: tables}
}

// variate yields the uniform draw for the tile at (row, col).
type variate func(row, col int) float64

// Generate lays out the grid with each tile's type drawn from src.
func (s *System) Generate(owners []config.OwnerID, src entropy.Source) error {
	return s.generate(owners, func(int, int) float64 { return src.Float64() })
}

// GenerateClustered lays out the grid using smooth simplex noise as the draw,
// so neighbouring tiles tend to share a zone type. The same seed gives the same map.
func (s *System) GenerateClustered(owners []config.OwnerID, seed int64) error {
	noise := opensimplex.NewNormalized(seed)
	const scale = 0.35
	return s.generate(owners, func(row, col int) float64 {
		return noise.Eval2(float64(col)*scale, float64(row)*scale)
	})
}

func (s *System) generate(owners []config.OwnerID, draw variate) error {
	if len(owners) == 0 {
		return errors.New("generate lands: no owners")
	}
	gen := s.tables.LandGen
	if gen.Rows <= 0 || gen.Cols <= 0 {
		return fmt.Errorf("generate lands: invalid grid %dx%d", gen.Rows, gen.Cols)
	}

	total := gen.Rows * gen.Cols
	lands := make([]Land, 0, total)
	for i := 0; i < total; i++ {
		row, col := i/gen.Cols, i%gen.Cols

		var owner config.OwnerID
		if col < len(owners) {
			owner = owners[col]
		} else {
			owner = owners[row%len(owners)]
		}

		weights := gen.CenterWeights
		if row == 0 || row == gen.Rows-1 {
			weights = gen.EdgeWeights
		}
		typ := pickType(weights, draw(row, col))

		lands = append(lands, s.newLand(i, row, col, owner, typ))
	}
	s.lands = lands
	slog.Debug("lands generated", "tiles", total, "owners", len(owners))
	return nil
}

// pickType walks the cumulative weights; a draw beyond the table falls back to basic.
func pickType(weights []config.TypeWeight, r float64) config.LandTypeID {
	cumulative := 0.0
	for _, w := range weights {
		cumulative += w.Weight
		if r <= cumulative {
			return w.Type
		}
	}
	return config.LandBasic
}

func (s *System) newLand(index, row, col int, owner config.OwnerID, typ config.LandTypeID) Land {
	lt, ok := s.tables.LandType(typ)
	if !ok {
		slog.Warn("unknown land type", "type", typ)
		lt = config.LandType{ID: typ, Name: string(typ), EmissionCoeff: 1.0}
	}
	coeff := lt.EmissionCoeff
	if coeff == 0 {
		coeff = 1.0
	}
	return Land{
		Index:         index,
		Owner:         owner,
		OwnerName:     s.tables.OwnerName(owner),
		Type:          typ,
		Name:          lt.Name,
		EmissionCoeff: coeff,
		Cost:          s.BaseCost(typ, index),
		Description:   lt.Description,
		Row:           row,
		Col:           col,
		Zone:          owner,
	}
}

// BaseCost is the type-scaled base price plus a premium that steps up every
// PositionDivisor tiles.
func (s *System) BaseCost(typ config.LandTypeID, index int) int {
	gen := s.tables.LandGen
	mult := 1.0
	if lt, ok := s.tables.LandType(typ); ok && lt.CostMultiplier > 0 {
		mult = lt.CostMultiplier
	} else if !ok {
		slog.Warn("unknown land type for cost", "type", typ)
	}
	premium := 0
	if gen.PositionDivisor > 0 {
		premium = index / gen.PositionDivisor * gen.PositionStep
	}
	return round(gen.BaseCost*mult + float64(premium))
}

// PurchasePrice inflates the base cost per elapsed turn and adds the wealth
// premium for rich buyers. It is 0 for a missing tile.
func (s *System) PurchasePrice(index, turn, buyerMoney int) int {
	l, ok := s.Land(index)
	if !ok {
		return 0
	}
	gen := s.tables.LandGen
	price := l.Cost
	if price == 0 {
		price = s.BaseCost(l.Type, index)
	}
	price = round(float64(price) * (1 + float64(turn-1)*gen.PriceGrowthPerTurn))
	if buyerMoney > gen.WealthThreshold {
		price = round(float64(price) * gen.WealthPremium)
	}
	return price
}

// CanPurchase checks that the tile exists, is not already the buyer's and is vacant.
func (s *System) CanPurchase(index int, buyer config.OwnerID, occupied OccupiedFunc) Eligibility {
	l, ok := s.Land(index)
	if !ok {
		return Eligibility{Reason: "tile does not exist"}
	}
	if l.Owner == buyer {
		return Eligibility{Reason: "this tile is already yours"}
	}
	if occupied != nil && occupied(index) {
		return Eligibility{Reason: "tile has a building and cannot be bought"}
	}
	return Eligibility{CanPurchase: true}
}

// Purchase transfers ownership. It does not move money; the caller debits the
// buyer first and treats both steps as one transaction.
func (s *System) Purchase(index int, buyer config.OwnerID) PurchaseResult {
	if index < 0 || index >= len(s.lands) {
		return PurchaseResult{Message: "tile does not exist"}
	}
	l := &s.lands[index]
	old := l.Owner
	l.Owner = buyer
	l.OwnerName = s.tables.OwnerName(buyer)
	return PurchaseResult{
		Success:  true,
		Message:  fmt.Sprintf("bought %s from %s", l.Name, s.tables.OwnerName(old)),
		OldOwner: old,
		NewOwner: buyer,
	}
}

// Purchasable lists every tile buyer may buy, priced for this turn.
func (s *System) Purchasable(buyer config.OwnerID, occupied OccupiedFunc, turn, money int) []Offer {
	var out []Offer
	for _, l := range s.lands {
		if !s.CanPurchase(l.Index, buyer, occupied).CanPurchase {
			continue
		}
		price := s.PurchasePrice(l.Index, turn, money)
		out = append(out, Offer{TileIndex: l.Index, Land: l, Price: price, CanAfford: money >= price})
	}
	return out
}

// Land returns the tile at index.
func (s *System) Land(index int) (Land, bool) {
	if index < 0 || index >= len(s.lands) {
		return Land{}, false
	}
	return s.lands[index], true
}

// Lands returns a copy of the grid in index order.
func (s *System) Lands() []Land {
	return append([]Land(nil), s.lands...)
}

func (s *System) LandsByOwner(owner config.OwnerID) []Land {
	return s.filter(func(l Land) bool { return l.Owner == owner })
}

func (s *System) CountOwned(owner config.OwnerID) int {
	return len(s.LandsByOwner(owner))
}

func (s *System) LandsByType(typ config.LandTypeID) []Land {
	return s.filter(func(l Land) bool { return l.Type == typ })
}

func (s *System) filter(keep func(Land) bool) []Land {
	var out []Land
	for _, l := range s.lands {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// Restore replaces the grid, e.g. from a save. Tiles must be dense and in index order.
func (s *System) Restore(lands []Land) error {
	gen := s.tables.LandGen
	if want := gen.Rows * gen.Cols; len(lands) != want {
		return fmt.Errorf("restore lands: got %d tiles, want %d", len(lands), want)
	}
	for i, l := range lands {
		if l.Index != i {
			return fmt.Errorf("restore lands: tile %d has index %d", i, l.Index)
		}
	}
	s.lands = append([]Land(nil), lands...)
	return nil
}

func round(v float64) int { return int(math.Round(v)) }
