// Package achievement tracks player milestones across a game.
package achievement

import (
	"log/slog"
	"math"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/state"
)

// Category groups achievements for display.
type Category string

const (
	Milestone Category = "milestone"
	Green     Category = "green"
	Strategy  Category = "strategy"
	Challenge Category = "challenge"
	Hidden    Category = "hidden"
)

// Achievement is one unlockable goal.
type Achievement struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Points      int      `json:"points"`
}

// Facts is the player's position as seen by the predicates.
type Facts struct {
	Turn             int
	Money            int
	Anger            float64
	ProjectedIncome  int
	Emission         int
	Buildings        int
	CleanBuildings   int
	Lv3Buildings     int
	CreditsPurchased int
	Lands            int
	Rank             int // 1 = richest owner
}

func (f Facts) ratio() float64 {
	if f.Emission == 0 {
		return 0
	}
	return float64(f.ProjectedIncome) / float64(f.Emission)
}

// EmissionSource reports an owner's total emission. *carbon.System satisfies it.
type EmissionSource interface {
	TotalEmission(owner config.OwnerID) int
}

// LandCounter reports how many tiles an owner holds.
type LandCounter interface {
	CountOwned(owner config.OwnerID) int
}

// Gather reads the player's facts from the live game.
func Gather(w *state.World, fees EmissionSource, lands LandCounter) Facts {
	tables := w.Tables()
	f := Facts{
		Turn:             w.Turn(),
		Money:            w.Money(),
		Anger:            w.MonsterAnger(),
		ProjectedIncome:  w.ProjectedIncome(),
		Emission:         fees.TotalEmission(config.Player),
		CreditsPurchased: w.CreditsPurchased(),
		Lands:            lands.CountOwned(config.Player),
		Rank:             1,
	}
	for _, b := range w.PlayerBuildings() {
		f.Buildings++
		if bt, ok := tables.Building(b.Type); ok && bt.Category == config.CategoryClean {
			f.CleanBuildings++
		}
		if b.Level == config.Lv3 {
			f.Lv3Buildings++
		}
	}
	for _, id := range w.CompetitorIDs() {
		if w.Funds(id) > f.Money {
			f.Rank++
		}
	}
	return f
}

type rule struct {
	Achievement
	check func(Facts) bool
}

var rules = []rule{
	{Achievement{"first_building", "Groundbreaker", "Build your first building", Milestone, 10},
		func(f Facts) bool { return f.Buildings >= 1 }},
	{Achievement{"ten_buildings", "Master Builder", "Own 10 buildings", Milestone, 50},
		func(f Facts) bool { return f.Buildings >= 10 }},
	{Achievement{"millionaire", "Millionaire", "Reach $100,000 in funds", Milestone, 100},
		func(f Facts) bool { return f.Money >= 100000 }},
	{Achievement{"low_emission", "Green Pioneer", "Emit under 5,000 tons in a year", Green, 75},
		func(f Facts) bool { return f.Emission > 0 && f.Emission < 5000 }},
	{Achievement{"zero_emission", "Zero Hero", "Emit nothing in a year", Green, 150},
		func(f Facts) bool { return f.Emission == 0 }},
	{Achievement{"green_energy", "Clean Energy Expert", "Own 5 clean energy buildings", Green, 100},
		func(f Facts) bool { return f.CleanBuildings >= 5 }},
	{Achievement{"efficient_master", "Efficiency Expert", "Reach a 5:1 income to emission ratio", Strategy, 125},
		func(f Facts) bool { return f.ratio() >= 5 }},
	{Achievement{"upgrade_master", "Upgrade Specialist", "Own 3 Lv3 buildings", Strategy, 100},
		func(f Facts) bool { return f.Lv3Buildings >= 3 }},
	{Achievement{"carbon_trader", "Carbon Trader", "Buy 10,000 credits in total", Strategy, 80},
		func(f Facts) bool { return f.CreditsPurchased >= 10000 }},
	{Achievement{"land_baron", "Land Baron", "Own 8 or more tiles", Strategy, 100},
		func(f Facts) bool { return f.Lands >= 8 }},
	{Achievement{"survive_monster", "Monster Tamer", "Play on with the monster above 80% anger", Challenge, 200},
		func(f Facts) bool { return f.Anger >= 80 }},
	{Achievement{"early_winner", "Fast Start", "Be the richest owner by turn 5", Challenge, 150},
		func(f Facts) bool { return f.Turn <= 5 && f.Rank == 1 }},
	{Achievement{"perfect_balance", "Perfect Balance", "Hit the money, emission and efficiency targets at once", Challenge, 250},
		func(f Facts) bool { return f.Money >= 80000 && f.Emission < 10000 && f.Emission > 0 && f.ratio() >= 3 }},
	{Achievement{"bankrupt", "Broke", "Run out of money", Hidden, 50},
		func(f Facts) bool { return f.Money == 0 }},
	{Achievement{"monster_rage", "Monster Rage", "Drive the monster to 100% anger", Hidden, 100},
		func(f Facts) bool { return f.Anger >= state.MaxAnger }},
}

// Progress summarises unlocks. Percentages are rounded to one decimal.
type Progress struct {
	Total          int     `json:"total"`
	Unlocked       int     `json:"unlocked"`
	Locked         int     `json:"locked"`
	Percent        float64 `json:"percent"`
	TotalPoints    int     `json:"total_points"`
	UnlockedPoints int     `json:"unlocked_points"`
	PointsPercent  float64 `json:"points_percent"`
}

// Tracker holds the unlocked set in unlock order.
type Tracker struct {
	unlocked []string
	seen     map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]bool)}
}

// Check evaluates every locked achievement and returns the newly unlocked ones.
// A predicate that panics is logged and skipped.
func (t *Tracker) Check(f Facts) []Achievement {
	var fresh []Achievement
	for _, r := range rules {
		if t.seen[r.ID] {
			continue
		}
		if t.safeCheck(r, f) {
			t.unlock(r.ID)
			fresh = append(fresh, r.Achievement)
			slog.Info("achievement unlocked", "id", r.ID, "points", r.Points)
		}
	}
	return fresh
}

func (t *Tracker) safeCheck(r rule, f Facts) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("achievement check panicked", "id", r.ID, "panic", p)
			ok = false
		}
	}()
	return r.check(f)
}

func (t *Tracker) unlock(id string) {
	if t.seen[id] {
		return
	}
	t.seen[id] = true
	t.unlocked = append(t.unlocked, id)
}

// Unlocked returns the unlocked achievements in unlock order.
func (t *Tracker) Unlocked() []Achievement {
	var out []Achievement
	for _, id := range t.unlocked {
		if a, ok := Lookup(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// UnlockedIDs returns the raw unlocked ids, for saving.
func (t *Tracker) UnlockedIDs() []string {
	return append([]string(nil), t.unlocked...)
}

// Restore replaces the unlocked set. Unknown ids are dropped.
func (t *Tracker) Restore(ids []string) {
	t.Reset()
	for _, id := range ids {
		if _, ok := Lookup(id); !ok {
			slog.Warn("dropping unknown achievement", "id", id)
			continue
		}
		t.unlock(id)
	}
}

func (t *Tracker) Reset() {
	t.unlocked = nil
	t.seen = make(map[string]bool)
}

// All lists every achievement in definition order.
func All() []Achievement {
	out := make([]Achievement, len(rules))
	for i, r := range rules {
		out[i] = r.Achievement
	}
	return out
}

func Lookup(id string) (Achievement, bool) {
	for _, r := range rules {
		if r.ID == id {
			return r.Achievement, true
		}
	}
	return Achievement{}, false
}

func (t *Tracker) Progress() Progress {
	p := Progress{Total: len(rules)}
	for _, r := range rules {
		p.TotalPoints += r.Points
	}
	for _, a := range t.Unlocked() {
		p.Unlocked++
		p.UnlockedPoints += a.Points
	}
	p.Locked = p.Total - p.Unlocked
	p.Percent = percent(p.Unlocked, p.Total)
	p.PointsPercent = percent(p.UnlockedPoints, p.TotalPoints)
	return p
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
