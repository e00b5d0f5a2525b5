package beastmaster

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

type menuItem struct {
	icon   gamedb.Icon
	text   string
	sender uint32
	action uint32
}

type fakeGossip struct {
	items  []menuItem
	sent   bool
	textID uint32
	closed bool
}

func (g *fakeGossip) Clear() { g.items = nil; g.sent = false; g.closed = false }
func (g *fakeGossip) Close() { g.closed = true }
func (g *fakeGossip) Send(textID uint32, _ Creature) {
	g.sent = true
	g.textID = textID
}
func (g *fakeGossip) Add(icon gamedb.Icon, text string, sender, action uint32) {
	g.items = append(g.items, menuItem{icon, text, sender, action})
}

func (g *fakeGossip) texts() []string {
	out := make([]string, len(g.items))
	for i, it := range g.items {
		out[i] = it.text
	}
	return out
}

func (g *fakeGossip) find(text string) (menuItem, bool) {
	for _, it := range g.items {
		if it.text == text {
			return it, true
		}
	}
	return menuItem{}, false
}

type fakePet struct {
	entry     uint32
	name      string
	happiness int
	typ       gamedb.PetType
}

func (p *fakePet) Entry() uint32        { return p.entry }
func (p *fakePet) Name() string         { return p.name }
func (p *fakePet) SetName(n string)     { p.name = n }
func (p *fakePet) SetHappiness(v int)   { p.happiness = v }
func (p *fakePet) Type() gamedb.PetType { return p.typ }

type fakePlayer struct {
	id      uint64
	name    string
	class   gamedb.Class
	level   int
	spells  map[uint32]bool
	talents map[uint32]bool
	items   map[uint32]int
	pet     *fakePet
	gossip  fakeGossip

	sys      []string
	sounds   []uint32
	learned  []uint32
	stable   int
	vendor   int
	failPet  bool
	summoned []uint32
	summon   Creature
}

func newPlayer(class gamedb.Class, level int) *fakePlayer {
	return &fakePlayer{
		id:      1,
		name:    "Rexxar",
		class:   class,
		level:   level,
		spells:  make(map[uint32]bool),
		talents: make(map[uint32]bool),
		items:   make(map[uint32]int),
	}
}

func (p *fakePlayer) ID() uint64              { return p.id }
func (p *fakePlayer) Name() string            { return p.name }
func (p *fakePlayer) Class() gamedb.Class     { return p.class }
func (p *fakePlayer) Level() int              { return p.level }
func (p *fakePlayer) HasSpell(s uint32) bool  { return p.spells[s] }
func (p *fakePlayer) HasTalent(s uint32) bool { return p.talents[s] }
func (p *fakePlayer) LearnSpell(s uint32)     { p.spells[s] = true; p.learned = append(p.learned, s) }
func (p *fakePlayer) AddSpell(s uint32)       { p.spells[s] = true }
func (p *fakePlayer) RemoveSpell(s uint32)    { delete(p.spells, s) }
func (p *fakePlayer) HasItem(i uint32) bool   { return p.items[i] > 0 }
func (p *fakePlayer) AddItem(i uint32, n int) bool {
	p.items[i] += n
	return true
}
func (p *fakePlayer) HasPet() bool             { return p.pet != nil }
func (p *fakePlayer) Gossip() Gossip           { return &p.gossip }
func (p *fakePlayer) SendSysMessage(m string)  { p.sys = append(p.sys, m) }
func (p *fakePlayer) PlayDirectSound(s uint32) { p.sounds = append(p.sounds, s) }
func (p *fakePlayer) SendStable(Creature)      { p.stable++ }
func (p *fakePlayer) SendVendorList(Creature)  { p.vendor++ }

func (p *fakePlayer) Pet() Pet {
	if p.pet == nil {
		return nil
	}
	return p.pet
}

func (p *fakePlayer) CreatePet(entry, spell uint32) (Pet, error) {
	if p.failPet {
		return nil, errors.New("no room")
	}
	typ := gamedb.SummonPet
	if spell == gamedb.SpellTameBeast || p.class == gamedb.ClassHunter {
		typ = gamedb.HunterPet
	}
	p.pet = &fakePet{entry: entry, name: "Beast", typ: typ}
	return p.pet, nil
}

func (p *fakePlayer) SummonCreature(entry uint32, _ time.Duration) (Creature, error) {
	p.summoned = append(p.summoned, entry)
	if p.summon == nil {
		return nil, errors.New("no spawn point")
	}
	return p.summon, nil
}

type fakeCreature struct {
	whispers []string
	emotes   []uint32
}

func (c *fakeCreature) GUID() uint64               { return 900 }
func (c *fakeCreature) Entry() uint32              { return gamedb.BeastmasterEntry }
func (c *fakeCreature) Whisper(t string, _ Player) { c.whispers = append(c.whispers, t) }
func (c *fakeCreature) Emote(e uint32)             { c.emotes = append(c.emotes, e) }

func (c *fakeCreature) last() string {
	if len(c.whispers) == 0 {
		return ""
	}
	return c.whispers[len(c.whispers)-1]
}

// memStore is an in-memory TameSource and TrackedStore.
type memStore struct {
	tames   []gamedb.PetInfo
	tameErr error
	rows    map[uint64][]gamedb.TrackedPet
	clock   int64
	lists   int
}

func newMemStore(tames ...gamedb.PetInfo) *memStore {
	return &memStore{tames: tames, rows: make(map[uint64][]gamedb.TrackedPet)}
}

func (s *memStore) LoadTames(context.Context) ([]gamedb.PetInfo, error) {
	if s.tameErr != nil {
		return nil, s.tameErr
	}
	return append([]gamedb.PetInfo(nil), s.tames...), nil
}

func (s *memStore) Track(_ context.Context, owner uint64, entry uint32, name string) (bool, error) {
	for _, r := range s.rows[owner] {
		if r.Entry == entry {
			return false, nil
		}
	}
	s.clock++
	s.rows[owner] = append(s.rows[owner], gamedb.TrackedPet{Owner: owner, Entry: entry, Name: name, TamedAt: time.Unix(s.clock, 0)})
	return true, nil
}

func (s *memStore) List(_ context.Context, owner uint64) ([]gamedb.TrackedPet, error) {
	s.lists++
	out := append([]gamedb.TrackedPet(nil), s.rows[owner]...)
	sort.Slice(out, func(i, j int) bool { return out[i].TamedAt.After(out[j].TamedAt) })
	return out, nil
}

func (s *memStore) Entries(_ context.Context, owner uint64) (map[uint32]bool, error) {
	set := make(map[uint32]bool)
	for _, r := range s.rows[owner] {
		set[r.Entry] = true
	}
	return set, nil
}

func (s *memStore) Name(_ context.Context, owner uint64, entry uint32) (string, error) {
	for _, r := range s.rows[owner] {
		if r.Entry == entry {
			return r.Name, nil
		}
	}
	return "", gamedb.ErrNotFound
}

func (s *memStore) Rename(_ context.Context, owner uint64, entry uint32, name string) error {
	for i, r := range s.rows[owner] {
		if r.Entry == entry {
			s.rows[owner][i].Name = name
			return nil
		}
	}
	return gamedb.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, owner uint64, entry uint32) error {
	rows := s.rows[owner]
	for i, r := range rows {
		if r.Entry == entry {
			s.rows[owner] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) Count(_ context.Context, owner uint64) (int, error) {
	return len(s.rows[owner]), nil
}

type wordFilter []string

func (w wordFilter) IsProfane(name string) bool {
	for _, bad := range w {
		if bad == name {
			return true
		}
	}
	return false
}
