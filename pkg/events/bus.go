package events

import (
	"slices"
	"sync"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus routes each event to the subscribers of its player and to the
// global subscribers that accept its type. Delivery is synchronous on
// the emitting goroutine, so subscribers must not block.
type Bus struct {
	mu      sync.RWMutex
	players map[uint64][]Subscriber
	global  []globalSub
}

type globalSub struct {
	sub   Subscriber
	types []EventType // empty accepts every type
}

func (g globalSub) accepts(t EventType) bool {
	return len(g.types) == 0 || slices.Contains(g.types, t)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{players: make(map[uint64][]Subscriber)}
}

// Subscribe adds sub to player's events.
func (b *Bus) Subscribe(player uint64, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.players[player] = append(b.players[player], sub)
}

// Unsubscribe removes sub from player's events.
func (b *Bus) Unsubscribe(player uint64, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.players[player]
	if i := slices.Index(subs, sub); i >= 0 {
		subs = slices.Delete(slices.Clone(subs), i, i+1)
	}
	if len(subs) == 0 {
		delete(b.players, player)
		return
	}
	b.players[player] = subs
}

// SubscribeGlobal adds sub to every player's events, restricted to types
// when any are given.
func (b *Bus) SubscribeGlobal(sub Subscriber, types ...EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, globalSub{sub: sub, types: types})
}

// snapshot returns player's subscribers and the globals accepting t.
func (b *Bus) snapshot(player uint64, t EventType) ([]Subscriber, []Subscriber) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := slices.Clone(b.players[player])
	var globals []Subscriber
	for _, g := range b.global {
		if g.accepts(t) {
			globals = append(globals, g.sub)
		}
	}
	return subs, globals
}

// Emit delivers ev to ev.Player's subscribers, then to the globals.
func (b *Bus) Emit(ev Event) {
	subs, globals := b.snapshot(ev.Player, ev.Type)
	deliver(subs, ev)
	deliver(globals, ev)
}

// EmitToPlayer delivers ev addressed to player.
func (b *Bus) EmitToPlayer(player uint64, ev Event) {
	ev.Player = player
	b.Emit(ev)
}

// EmitToPlayers delivers one copy of ev to each distinct player, then a
// single copy with Player zero to the globals.
func (b *Bus) EmitToPlayers(players []uint64, ev Event) {
	seen := make(map[uint64]bool, len(players))
	for _, p := range players {
		if seen[p] {
			continue
		}
		seen[p] = true
		subs, _ := b.snapshot(p, ev.Type)
		pev := ev
		pev.Player = p
		deliver(subs, pev)
	}
	ev.Player = 0
	_, globals := b.snapshot(0, ev.Type)
	deliver(globals, ev)
}

func deliver(subs []Subscriber, ev Event) {
	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// PlayerSubscribers returns how many subscribers player has.
func (b *Bus) PlayerSubscribers(player uint64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.players[player])
}

// Cleanup drops closed subscribers and returns how many were removed.
func (b *Bus) Cleanup() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	closed := func(s Subscriber) bool { return s.Closed() }

	removed := 0
	for player, subs := range b.players {
		kept := slices.DeleteFunc(slices.Clone(subs), closed)
		removed += len(subs) - len(kept)
		if len(kept) == 0 {
			delete(b.players, player)
		} else {
			b.players[player] = kept
		}
	}
	n := len(b.global)
	b.global = slices.DeleteFunc(b.global, func(g globalSub) bool { return g.sub.Closed() })
	return removed + n - len(b.global)
}
