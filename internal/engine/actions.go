package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/carbon-monster/internal/building"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/state"
)

// Result is the outcome of a land or credit trade.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Amount  int    `json:"amount,omitempty"` // money moved
	Credits int    `json:"credits,omitempty"`
}

func failed(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

const gameOverMessage = "the game is over"

// Build places a new player building.
func (g *Game) Build(tile int, typ config.BuildingTypeID) building.Result {
	if g.over {
		return building.Result{Message: gameOverMessage}
	}
	r := g.Builds.Build(tile, config.Player, typ)
	g.recordAction("build", r.Success, r.Message)
	return r
}

func (g *Game) Upgrade(tile int, level config.Level) building.Result {
	if g.over {
		return building.Result{Message: gameOverMessage}
	}
	r := g.Builds.Upgrade(tile, config.Player, level)
	g.recordAction("upgrade", r.Success, r.Message)
	return r
}

func (g *Game) Sell(tile int) building.Result {
	if g.over {
		return building.Result{Message: gameOverMessage}
	}
	r := g.Builds.Sell(tile, config.Player)
	g.recordAction("sell", r.Success, r.Message)
	return r
}

func (g *Game) recordAction(action string, ok bool, msg string) {
	if !ok {
		slog.Debug("player action refused", "action", action, "reason", msg)
		return
	}
	g.record(CategoryPlayer, "You "+msg)
}

// PurchaseLand buys a tile for the player. Every check runs before any state
// changes, so a refusal leaves the game untouched.
func (g *Game) PurchaseLand(tile int) Result {
	if g.over {
		return failed(gameOverMessage)
	}
	w := g.World
	if !w.CanPurchaseLand() {
		return failed("land purchase limit reached this turn (%d)", g.Tables.Tunables.MaxLandPurchasesPerTurn)
	}
	if e := g.Lands.CanPurchase(tile, config.Player, w.Occupied); !e.CanPurchase {
		return failed("%s", e.Reason)
	}
	price := g.Lands.PurchasePrice(tile, w.Turn(), w.Money())
	if w.Money() < price {
		return failed("not enough money, need $%s", humanize.Comma(int64(price)))
	}

	w.SubtractMoney(price)
	p := g.Lands.Purchase(tile, config.Player)
	if !p.Success {
		w.AddMoney(price)
		return failed("%s", p.Message)
	}
	w.IncrementLandPurchaseCount()

	msg := fmt.Sprintf("%s for $%s", p.Message, humanize.Comma(int64(price)))
	g.record(CategoryPlayer, "You "+msg)
	return Result{Success: true, Message: msg, Amount: price}
}

// BuyCredits buys lots of credits at the current market price per lot.
func (g *Game) BuyCredits(kind state.CreditKind, lots int) Result {
	if g.over {
		return failed(gameOverMessage)
	}
	if lots <= 0 {
		return failed("lots must be positive")
	}
	w := g.World
	var price int
	switch kind {
	case state.Domestic:
		price = w.DomesticPrice()
	case state.International:
		price = w.IntlPrice()
	default:
		return failed("unknown credit kind %q", kind)
	}

	if lots > w.Money()/max(price, 1) {
		return failed("not enough money, need $%s per lot", humanize.Comma(int64(price)))
	}
	cost := price * lots
	if w.Money() < cost {
		return failed("not enough money, need $%s", humanize.Comma(int64(cost)))
	}
	credits := lots * g.Tables.Tunables.CreditLotSize

	w.SubtractMoney(cost)
	if kind == state.Domestic {
		w.SetDomesticCredits(w.DomesticCredits() + credits)
	} else {
		w.SetIntlCredits(w.IntlCredits() + credits)
	}
	w.RecordCreditPurchase(credits)

	msg := fmt.Sprintf("bought %s %s credits for $%s", humanize.Comma(int64(credits)), kind, humanize.Comma(int64(cost)))
	g.record(CategoryMarket, "You "+msg)
	return Result{Success: true, Message: msg, Amount: cost, Credits: credits}
}

// SellDomesticCredits sells lots of domestic credits back at the market price.
// International credits cannot be resold.
func (g *Game) SellDomesticCredits(lots int) Result {
	if g.over {
		return failed(gameOverMessage)
	}
	if lots <= 0 {
		return failed("lots must be positive")
	}
	w := g.World
	lot := g.Tables.Tunables.CreditLotSize
	if lots > w.DomesticCredits()/lot {
		return failed("only %s domestic credits held", humanize.Comma(int64(w.DomesticCredits())))
	}
	credits := lots * lot
	if w.DomesticCredits() < credits {
		return failed("only %s domestic credits held", humanize.Comma(int64(w.DomesticCredits())))
	}
	proceeds := w.DomesticPrice() * lots

	w.SetDomesticCredits(w.DomesticCredits() - credits)
	w.AddMoney(proceeds)

	msg := fmt.Sprintf("sold %s domestic credits for $%s", humanize.Comma(int64(credits)), humanize.Comma(int64(proceeds)))
	g.record(CategoryMarket, "You "+msg)
	return Result{Success: true, Message: msg, Amount: proceeds, Credits: credits}
}
