package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/carbon-monster/internal/achievement"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/turn"
	"github.com/talgya/carbon-monster/internal/victory"
)

// Report summarises one end-of-year pass.
type Report struct {
	Turn         int                       `json:"turn"`
	Year         int                       `json:"year"`
	NPCEvents    []string                  `json:"npc_events"`
	Settlement   turn.Settlement           `json:"settlement"`
	Monster      turn.MonsterGrowth        `json:"monster"`
	Prices       turn.Repricing            `json:"prices"`
	Achievements []achievement.Achievement `json:"achievements"`
	Status       Status                    `json:"status"`
	Outcome      *victory.Outcome          `json:"outcome,omitempty"`
}

// EndTurn resolves the current year. The order is fixed: competitors act,
// the player settles (with any audit), the monster grows, credit prices move,
// achievements are checked and the turn advances. The game ends after the
// last year or when the monster reaches full rage.
func (g *Game) EndTurn() (Report, error) {
	if g.over {
		return Report{}, ErrGameOver
	}
	w := g.World
	r := Report{Turn: w.Turn(), Year: w.Year()}

	r.NPCEvents = g.NPC.RunAll(g.rng)
	for _, desc := range r.NPCEvents {
		g.record(CategoryNPC, desc)
	}

	r.Settlement = g.Turns.Settle()
	g.record(CategorySettlement, fmt.Sprintf("Year %d settled: income $%s, tax $%s, net $%s",
		r.Year, humanize.Comma(int64(r.Settlement.Income)), humanize.Comma(int64(r.Settlement.TotalTax)),
		humanize.Comma(int64(r.Settlement.NetIncome))))
	if a := r.Settlement.Audit; a != nil {
		g.record(CategoryAudit, a.Message)
	}

	r.Monster = g.Turns.GrowMonster()
	g.record(CategoryMonster, fmt.Sprintf("World emission of %s tons fed the monster +%d (anger %.0f)",
		humanize.Comma(int64(r.Monster.WorldEmission)), r.Monster.Growth, r.Monster.Anger))

	r.Prices = g.Turns.Reprice(g.rng)
	g.record(CategoryMarket, fmt.Sprintf("Credit prices: domestic $%d, international $%d",
		r.Prices.Domestic.New, r.Prices.International.New))

	r.Achievements = g.checkAchievements()

	w.NextTurn()
	g.checkOver()
	r.Status = g.Over()
	r.Outcome = g.outcome

	g.logReport(r)
	return r, nil
}

func (g *Game) checkAchievements() []achievement.Achievement {
	fresh := g.Achievements.Check(achievement.Gather(g.World, g.Fees, g.Lands))
	for _, a := range fresh {
		g.record(CategoryAchievement, fmt.Sprintf("Achievement unlocked: %s (+%d)", a.Name, a.Points))
	}
	return fresh
}

func (g *Game) logReport(r Report) {
	counts := make(map[string]int)
	for _, e := range g.Events {
		if e.Turn == r.Turn {
			counts[e.Category]++
		}
	}
	c, _ := g.World.Competitor(config.CompetitorA)
	slog.Info("turn report",
		"turn", r.Turn,
		"year", r.Year,
		"money", g.World.Money(),
		"emission", g.World.Emission(),
		"fee", r.Settlement.CarbonFee,
		"cbam", r.Settlement.CBAMTax,
		"anger", r.Monster.Anger,
		"domestic_price", r.Prices.Domestic.New,
		"intl_price", r.Prices.International.New,
		"rival_a_money", c.Money,
		"events_npc", counts[CategoryNPC],
		"events_player", counts[CategoryPlayer],
		"achievements", len(r.Achievements),
		"over", r.Status.Over,
	)
}
