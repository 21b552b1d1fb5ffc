package state

import (
	"fmt"

	"github.com/talgya/carbon-monster/internal/config"
)

// SnapshotVersion is the compatibility tag written into every snapshot.
const SnapshotVersion = "1.0.0"

// Snapshot is a deep, self-contained copy of a World's observable fields.
type Snapshot struct {
	Version               string                        `json:"version"`
	Year                  int                           `json:"year"`
	Turn                  int                           `json:"turn"`
	Money                 int                           `json:"money"`
	Emission              int                           `json:"emission"`
	DomesticCredits       int                           `json:"domestic_credits"`
	IntlCredits           int                           `json:"intl_credits"`
	MonsterAnger          float64                       `json:"monster_anger"`
	DomesticPrice         int                           `json:"domestic_price"`
	IntlPrice             int                           `json:"intl_price"`
	ProjectedIncome       int                           `json:"projected_income"`
	BuildsThisTurn        int                           `json:"builds_this_turn"`
	LandPurchasesThisTurn int                           `json:"land_purchases_this_turn"`
	CreditsPurchased      int                           `json:"credits_purchased"`
	Buildings             []Building                    `json:"buildings"`
	Competitors           map[config.OwnerID]Competitor `json:"competitors"`
}

// Snapshot copies the current state.
func (w *World) Snapshot() Snapshot {
	comps := make(map[config.OwnerID]Competitor, len(w.competitors))
	for id, c := range w.competitors {
		comps[id] = *c
	}
	return Snapshot{
		Version:               SnapshotVersion,
		Year:                  w.year,
		Turn:                  w.turn,
		Money:                 w.money,
		Emission:              w.emission,
		DomesticCredits:       w.domesticCredits,
		IntlCredits:           w.intlCredits,
		MonsterAnger:          w.monsterAnger,
		DomesticPrice:         w.domesticPrice,
		IntlPrice:             w.intlPrice,
		ProjectedIncome:       w.projectedIncome,
		BuildsThisTurn:        w.buildsThisTurn,
		LandPurchasesThisTurn: w.landPurchasesThisTurn,
		CreditsPurchased:      w.creditsPurchased,
		Buildings:             append([]Building(nil), w.buildings...),
		Competitors:           comps,
	}
}

// Restore replaces the state wholesale from s and emits a single Restored event.
// Per-field change events are not emitted.
func (w *World) Restore(s Snapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("snapshot version %q, want %q", s.Version, SnapshotVersion)
	}
	if s.Turn < 1 {
		return fmt.Errorf("snapshot turn %d is invalid", s.Turn)
	}
	seen := make(map[int]bool, len(s.Buildings))
	for _, b := range s.Buildings {
		if seen[b.TileIndex] {
			return fmt.Errorf("snapshot has two buildings on tile %d", b.TileIndex)
		}
		seen[b.TileIndex] = true
	}

	comps := make(map[config.OwnerID]*Competitor, len(s.Competitors))
	for id, c := range s.Competitors {
		c := c
		comps[id] = &c
	}

	w.year = s.Year
	w.turn = s.Turn
	w.money = max(0, s.Money)
	w.emission = max(0, s.Emission)
	w.domesticCredits = max(0, s.DomesticCredits)
	w.intlCredits = max(0, s.IntlCredits)
	w.monsterAnger = clampAnger(s.MonsterAnger)
	w.domesticPrice = s.DomesticPrice
	w.intlPrice = s.IntlPrice
	w.projectedIncome = s.ProjectedIncome
	w.buildsThisTurn = s.BuildsThisTurn
	w.landPurchasesThisTurn = s.LandPurchasesThisTurn
	w.creditsPurchased = s.CreditsPurchased
	w.buildings = append([]Building(nil), s.Buildings...)
	w.competitors = comps

	w.events.emit(Event{Kind: Restored, New: float64(w.turn), Year: w.year})
	return nil
}
