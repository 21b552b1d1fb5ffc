// Package victory decides eliminations and victory conditions at game end.
package victory

import (
	"slices"

	"github.com/talgya/carbon-monster/internal/carbon"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/state"
)

// ConditionID names a victory condition.
type ConditionID string

const (
	ProfitKing       ConditionID = "profit_king"
	CarbonPioneer    ConditionID = "carbon_pioneer"
	EfficiencyMaster ConditionID = "efficiency_master"
	PerfectBalance   ConditionID = "perfect_balance"
	Survivor         ConditionID = "survivor"
)

// Condition describes a victory condition. Lower Priority wins.
type Condition struct {
	ID          ConditionID `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Priority    int         `json:"priority"`
}

// Standing is one owner's end-of-game figures.
type Standing struct {
	Owner         config.OwnerID `json:"owner"`
	Name          string         `json:"name"`
	Money         int            `json:"money"`
	TotalEmission int            `json:"total_emission"`
	CarbonFee     int            `json:"carbon_fee"`
	Eliminated    bool           `json:"eliminated"`
}

func (s Standing) ratio() float64 {
	if s.TotalEmission <= 0 {
		return 0
	}
	return float64(s.Money) / float64(s.TotalEmission)
}

// Result is the verdict for one owner.
type Result struct {
	Eliminated bool        `json:"eliminated"`
	Victories  []Condition `json:"victories"`
	Primary    *Condition  `json:"primary,omitempty"`
}

// Outcome is the full evaluation.
type Outcome struct {
	Standings     []Standing                `json:"standings"`
	Results       map[config.OwnerID]Result `json:"results"`
	Winners       []config.OwnerID          `json:"winners"`
	PrimaryWinner config.OwnerID            `json:"primary_winner,omitempty"`
}

type judge struct {
	tu    config.Tunables
	alive []Standing
	anger float64
}

type checkFunc func(j judge, s Standing) bool

type rule struct {
	Condition
	check checkFunc
}

var rules = []rule{
	{Condition{ProfitKing, "Profit King", "Highest treasury among survivors", 1}, profitKing},
	{Condition{CarbonPioneer, "Carbon Pioneer", "Lowest emission with a healthy treasury", 2}, carbonPioneer},
	{Condition{EfficiencyMaster, "Efficiency Master", "Best money per ton with a healthy treasury", 3}, efficiencyMaster},
	{Condition{PerfectBalance, "Perfect Balance", "Treasury, emission and efficiency all on target", 4}, perfectBalance},
	{Condition{Survivor, "Survivor", "Finished with the monster above 90% anger", 5}, survivor},
}

// Conditions lists every victory condition in priority order.
func Conditions() []Condition {
	out := make([]Condition, len(rules))
	for i, r := range rules {
		out[i] = r.Condition
	}
	return out
}

func profitKing(j judge, s Standing) bool {
	best := 0
	for _, p := range j.alive {
		best = max(best, p.Money)
	}
	return s.Money > 0 && s.Money == best
}

func carbonPioneer(j judge, s Standing) bool {
	if s.TotalEmission <= 0 || s.Money < j.tu.VictoryWealthFloor {
		return false
	}
	lowest := -1
	for _, p := range j.alive {
		if p.TotalEmission > 0 && (lowest < 0 || p.TotalEmission < lowest) {
			lowest = p.TotalEmission
		}
	}
	return s.TotalEmission == lowest
}

func efficiencyMaster(j judge, s Standing) bool {
	if s.TotalEmission <= 0 || s.Money < j.tu.VictoryWealthFloor {
		return false
	}
	best := 0.0
	for _, p := range j.alive {
		if p.TotalEmission > 0 {
			best = max(best, p.ratio())
		}
	}
	return s.ratio() == best
}

func perfectBalance(j judge, s Standing) bool {
	return s.Money >= j.tu.BalanceMoney &&
		s.TotalEmission < j.tu.BalanceEmissionBelow &&
		s.TotalEmission > 0 &&
		s.ratio() >= j.tu.BalanceRatio
}

func survivor(j judge, s Standing) bool {
	return j.anger >= j.tu.SurvivorAnger && !s.Eliminated
}

// FeeSource supplies live emission and fees. *carbon.System satisfies it.
type FeeSource interface {
	TotalEmission(owner config.OwnerID) int
	CarbonFee(owner config.OwnerID) carbon.Fee
}

// Standings gathers every owner's figures in owner order.
func Standings(w *state.World, fees FeeSource) []Standing {
	tables := w.Tables()
	var out []Standing
	for _, id := range config.Owners {
		if id != config.Player {
			if _, ok := w.Competitor(id); !ok {
				continue
			}
		}
		out = append(out, Standing{
			Owner:         id,
			Name:          tables.OwnerName(id),
			Money:         w.Funds(id),
			TotalEmission: fees.TotalEmission(id),
			CarbonFee:     fees.CarbonFee(id).CarbonFee,
		})
	}
	return out
}

// Evaluate judges the live world.
func Evaluate(w *state.World, fees FeeSource) Outcome {
	return Judge(w.Tables().Tunables, Standings(w, fees), w.MonsterAnger())
}

// Judge eliminates every owner tied at the highest positive fee, then checks
// each survivor against every condition. Winners are ordered by primary
// priority; equal priorities keep owner order.
func Judge(tu config.Tunables, standings []Standing, anger float64) Outcome {
	standings = slices.Clone(standings)

	maxFee := 0
	for _, s := range standings {
		maxFee = max(maxFee, s.CarbonFee)
	}
	var alive []Standing
	for i := range standings {
		if maxFee > 0 && standings[i].CarbonFee == maxFee {
			standings[i].Eliminated = true
			continue
		}
		alive = append(alive, standings[i])
	}

	j := judge{tu: tu, alive: alive, anger: anger}
	out := Outcome{Standings: standings, Results: make(map[config.OwnerID]Result, len(standings))}
	for _, s := range standings {
		if s.Eliminated {
			out.Results[s.Owner] = Result{Eliminated: true}
			continue
		}
		var res Result
		for _, r := range rules {
			if r.check(j, s) {
				res.Victories = append(res.Victories, r.Condition)
			}
		}
		if len(res.Victories) > 0 {
			primary := res.Victories[0]
			res.Primary = &primary
			out.Winners = append(out.Winners, s.Owner)
		}
		out.Results[s.Owner] = res
	}

	slices.SortStableFunc(out.Winners, func(a, b config.OwnerID) int {
		return out.Results[a].Primary.Priority - out.Results[b].Primary.Priority
	})
	if len(out.Winners) > 0 {
		out.PrimaryWinner = out.Winners[0]
	}
	return out
}
