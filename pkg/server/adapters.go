package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/beastmaster"
	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

var (
	_ beastmaster.Player   = (*realmPlayer)(nil)
	_ beastmaster.Creature = (*npc)(nil)
	_ beastmaster.Pet      = (*realmPet)(nil)
	_ beastmaster.Gossip   = (*menu)(nil)
)

// Realm limits.
const (
	MaxStableSlots = 4
	MaxBagItems    = 16
)

var errHavePet = errors.New("character already has an active pet")

// soundText is what text clients see for a played sound.
var soundText = map[uint32]string{
	gamedb.SoundHowl: "A wolf howls somewhere in the lodge.",
}

// --- Player ---

// realmPlayer adapts an online character to beastmaster.Player.
type realmPlayer struct {
	g *Game
	o *online
}

func (p *realmPlayer) ID() uint64          { return p.o.char.GUID }
func (p *realmPlayer) Name() string        { return p.o.char.Name }
func (p *realmPlayer) Class() gamedb.Class { return p.o.char.Class }
func (p *realmPlayer) Level() int          { return p.o.char.Level }

func (p *realmPlayer) HasSpell(spell uint32) bool  { return p.o.char.Spells[spell] }
func (p *realmPlayer) HasTalent(spell uint32) bool { return p.o.char.Talents[spell] }

func (p *realmPlayer) AddSpell(spell uint32) {
	p.o.char.Spells[spell] = true
	p.g.persist(p.o)
}

func (p *realmPlayer) RemoveSpell(spell uint32) {
	delete(p.o.char.Spells, spell)
	p.g.persist(p.o)
}

func (p *realmPlayer) LearnSpell(spell uint32) {
	p.o.char.Spells[spell] = true
	p.g.persist(p.o)
	p.SendSysMessage(fmt.Sprintf("You have learned a new spell (%d).", spell))
}

func (p *realmPlayer) HasItem(item uint32) bool { return p.o.char.Items[item] > 0 }

func (p *realmPlayer) AddItem(item uint32, count int) bool {
	if count <= 0 {
		return false
	}
	if _, ok := p.o.char.Items[item]; !ok && len(p.o.char.Items) >= MaxBagItems {
		return false
	}
	p.o.char.Items[item] += count
	p.g.persist(p.o)
	return true
}

func (p *realmPlayer) Pet() beastmaster.Pet {
	if p.o.char.Pet == nil {
		return nil
	}
	return &realmPet{g: p.g, o: p.o, state: p.o.char.Pet}
}

func (p *realmPlayer) HasPet() bool { return p.o.char.Pet != nil }

func (p *realmPlayer) CreatePet(entry, spell uint32) (beastmaster.Pet, error) {
	c := p.o.char
	if c.Pet != nil {
		return nil, errHavePet
	}
	name, tameable := p.g.petName(entry)
	typ := gamedb.SummonPet
	if p.g.Module != nil {
		typ = p.g.Module.GuardianPetType(tameable, typ)
	}
	c.Pet = &gamedb.PetState{
		Number: nextPetNumber(c),
		Entry:  entry,
		Name:   name,
		Type:   typ,
	}
	p.g.persist(p.o)
	return &realmPet{g: p.g, o: p.o, state: c.Pet}, nil
}

func (p *realmPlayer) Gossip() beastmaster.Gossip { return p.o.menu }

func (p *realmPlayer) SendSysMessage(msg string) { p.g.sendSys(p.ID(), msg) }

func (p *realmPlayer) PlayDirectSound(sound uint32) {
	text, ok := soundText[sound]
	if !ok {
		return
	}
	p.g.Bus.EmitToPlayer(p.ID(), events.Event{
		Type: events.EvText,
		Text: text,
		Data: map[string]any{"sound": sound},
	})
}

func (p *realmPlayer) SendStable(c beastmaster.Creature) {
	p.o.menu.Close()
	p.g.Bus.EmitToPlayer(p.ID(), events.Event{
		Type:   events.EvText,
		Source: creatureGUID(c),
		Text:   stableListing(p.o.char),
	})
}

func (p *realmPlayer) SendVendorList(c beastmaster.Creature) {
	p.o.menu.Close()
	p.g.Bus.EmitToPlayer(p.ID(), events.Event{
		Type:   events.EvText,
		Source: creatureGUID(c),
		Text: "The Beastmaster's wares:\n" +
			"  Tough Jerky (raw meat)\n" +
			"  Crunchy Frog (fish)\n" +
			"  Moon Harvest Pumpkin (fruit)\n" +
			"  Bread of the Dead (bread)",
	})
}

func (p *realmPlayer) SummonCreature(entry uint32, lifetime time.Duration) (beastmaster.Creature, error) {
	if entry != gamedb.BeastmasterEntry {
		return nil, fmt.Errorf("no creature template %d", entry)
	}
	return p.g.spawnNPC(entry, p.ID(), lifetime), nil
}

func creatureGUID(c beastmaster.Creature) uint64 {
	if c == nil {
		return 0
	}
	return c.GUID()
}

func nextPetNumber(c *gamedb.Character) int {
	n := 0
	if c.Pet != nil {
		n = c.Pet.Number
	}
	for _, s := range c.Stable {
		if s.Number > n {
			n = s.Number
		}
	}
	return n + 1
}

func stableListing(c *gamedb.Character) string {
	var sb strings.Builder
	sb.WriteString("Stable master's ledger:\n")
	if c.Pet != nil {
		sb.WriteString(fmt.Sprintf("  Active: %s\n", c.Pet.Name))
	} else {
		sb.WriteString("  Active: (none)\n")
	}
	for i := 0; i < MaxStableSlots; i++ {
		if i < len(c.Stable) {
			sb.WriteString(fmt.Sprintf("  Slot %d: %s\n", i+1, c.Stable[i].Name))
		} else {
			sb.WriteString(fmt.Sprintf("  Slot %d: (empty)\n", i+1))
		}
	}
	sb.WriteString("Use 'stable' to stable your pet, 'unstable <slot>' to take one out.")
	return sb.String()
}

// --- Pet ---

// realmPet adapts a character's active pet.
type realmPet struct {
	g     *Game
	o     *online
	state *gamedb.PetState
}

func (p *realmPet) Entry() uint32        { return p.state.Entry }
func (p *realmPet) Name() string         { return p.state.Name }
func (p *realmPet) Type() gamedb.PetType { return p.state.Type }

func (p *realmPet) SetName(name string) {
	p.state.Name = name
	p.g.persist(p.o)
}

// SetHappiness is called every tick for hunter pets; it only persists changes.
func (p *realmPet) SetHappiness(value int) {
	if p.state.Happiness == value {
		return
	}
	p.state.Happiness = value
	p.g.persist(p.o)
}

// --- Creature ---

// npc is a Beastmaster in the lodge. Owner 0 marks the permanent one.
type npc struct {
	g       *Game
	guid    uint64
	entry   uint32
	name    string
	owner   uint64
	expires time.Time
	sched   *beastmaster.EmoteScheduler
}

func (n *npc) GUID() uint64  { return n.guid }
func (n *npc) Entry() uint32 { return n.entry }

func (n *npc) Whisper(text string, to beastmaster.Player) {
	n.g.Bus.EmitToPlayer(to.ID(), events.Event{
		Type:   events.EvWhisper,
		Source: n.guid,
		Text:   fmt.Sprintf("%s whispers: %s", n.name, text),
		Data:   map[string]any{"from": n.name, "message": text},
	})
}

// Emote is seen by everyone who can see the NPC.
func (n *npc) Emote(emote uint32) {
	var viewers []uint64
	for guid := range n.g.online {
		if n.owner == 0 || n.owner == guid {
			viewers = append(viewers, guid)
		}
	}
	if len(viewers) == 0 {
		return
	}
	sort.Slice(viewers, func(i, j int) bool { return viewers[i] < viewers[j] })
	n.g.Bus.EmitToPlayers(viewers, events.Event{
		Type:   events.EvEmote,
		Source: n.guid,
		Text:   fmt.Sprintf("The %s tears into a haunch of meat.", n.name),
		Data:   map[string]any{"emote": emote},
	})
}

// --- Gossip ---

type menuItem struct {
	Icon   gamedb.Icon
	Text   string
	Sender uint32
	Action uint32
}

// menu is a character's gossip dialog. Items are picked by number.
type menu struct {
	g     *Game
	o     *online
	items []menuItem
	open  bool
	npc   *npc
}

var menuHeaders = map[uint32]string{
	gamedb.TextHello:  "Greetings, %s. Looking for a loyal companion?",
	gamedb.TextBrowse: "Take a look at the beasts in my care, %s.",
}

func (m *menu) Clear() { m.items = nil }

func (m *menu) Add(icon gamedb.Icon, text string, sender, action uint32) {
	m.items = append(m.items, menuItem{Icon: icon, Text: text, Sender: sender, Action: action})
}

func (m *menu) Send(textID uint32, c beastmaster.Creature) {
	m.open = true
	m.npc = nil
	if n, ok := c.(*npc); ok {
		m.npc = n
	}

	var sb strings.Builder
	if h, ok := menuHeaders[textID]; ok {
		sb.WriteString(fmt.Sprintf(h, m.o.char.Name))
		sb.WriteByte('\n')
	}
	items := make([]map[string]any, 0, len(m.items))
	for i, it := range m.items {
		sb.WriteString(fmt.Sprintf("%2d. [%s] %s\n", i+1, it.Icon, it.Text))
		items = append(items, map[string]any{"n": i + 1, "icon": it.Icon.String(), "text": it.Text})
	}
	sb.WriteString("Type a number to choose.")

	m.g.Bus.EmitToPlayer(m.o.char.GUID, events.Event{
		Type:   events.EvMenu,
		Source: creatureGUID(c),
		Text:   sb.String(),
		Data:   map[string]any{"text_id": textID, "items": items},
	})
}

func (m *menu) Close() {
	if !m.open {
		return
	}
	m.open = false
	m.items = nil
	m.npc = nil
	m.g.Bus.EmitToPlayer(m.o.char.GUID, events.Event{
		Type: events.EvMenu,
		Data: map[string]any{"closed": true},
	})
}

// pick resolves menu option n (1-based). A non-empty msg explains why
// nothing was picked.
func (m *menu) pick(n int) (it menuItem, c beastmaster.Creature, msg string) {
	if !m.open {
		return it, nil, "You have no menu open."
	}
	if n < 1 || n > len(m.items) {
		return it, nil, fmt.Sprintf("There is no option %d.", n)
	}
	it = m.items[n-1]
	if m.npc == nil {
		return it, nil, ""
	}
	if _, alive := m.g.npcs[m.npc.guid]; !alive {
		m.Close()
		return menuItem{}, nil, "The Beastmaster is no longer here."
	}
	return it, m.npc, ""
}
