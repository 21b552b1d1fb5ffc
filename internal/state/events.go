package state

import (
	"fmt"
	"log/slog"
)

// EventKind names a state change.
type EventKind string

const (
	MoneyChanged             EventKind = "money.changed"
	EmissionChanged          EventKind = "emission.changed"
	BuildingAdded            EventKind = "building.added"
	BuildingRemoved          EventKind = "building.removed"
	BuildingUpgraded         EventKind = "building.upgraded"
	CreditsChanged           EventKind = "credits.changed"
	MonsterChanged           EventKind = "monster.changed"
	MonsterMaxed             EventKind = "monster.maxed"
	TurnChanged              EventKind = "turn.changed"
	BuildCountChanged        EventKind = "build.count.changed"
	LandPurchaseCountChanged EventKind = "land.purchase.changed"
	Restored                 EventKind = "state.restored"
)

// CreditKind tags a credits notification.
type CreditKind string

const (
	Domestic      CreditKind = "domestic"
	International CreditKind = "international"
)

// Event is a single change notification. Old and New carry the numeric
// before/after value relevant to Kind (money, emission, anger, credits, turn, count).
type Event struct {
	Kind     EventKind  `json:"kind"`
	Old      float64    `json:"old"`
	New      float64    `json:"new"`
	Year     int        `json:"year,omitempty"`   // TurnChanged
	Max      int        `json:"max,omitempty"`    // count events
	Credit   CreditKind `json:"credit,omitempty"` // CreditsChanged
	Building *Building  `json:"building,omitempty"`
}

// Observer receives state notifications.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

type subscription struct {
	id   int
	kind EventKind // empty = all kinds
	obs  Observer
}

// bus dispatches events to subscribers in registration order.
type bus struct {
	nextID int
	subs   []subscription
}

func (b *bus) subscribe(kind EventKind, obs Observer) func() {
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, obs: obs})
	return func() { b.unsubscribe(id) }
}

func (b *bus) unsubscribe(id int) {
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *bus) emit(e Event) {
	// Copy so an observer may unsubscribe itself mid-dispatch.
	subs := append([]subscription(nil), b.subs...)
	for _, s := range subs {
		if s.kind != "" && s.kind != e.Kind {
			continue
		}
		deliver(s.obs, e)
	}
}

func deliver(obs Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("state observer failed", "event", e.Kind, "error", fmt.Sprint(r))
		}
	}()
	obs.Notify(e)
}
