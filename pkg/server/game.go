package server

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/beastmaster"
	"github.com/crystal-mush/beastmaster/pkg/boltstore"
	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// BeastmasterName is the display name of the Beastmaster NPC.
const BeastmasterName = "Beastmaster"

// Game holds the realm's live state. Everything except Submit and Do
// must run on the game loop goroutine.
type Game struct {
	Conf     *RealmConf
	Store    *boltstore.Store
	Module   *beastmaster.Module // nil when the module is disabled
	Bus      *events.Bus
	Conns    *Sessions
	Commands map[string]*Command
	Metrics  *Metrics // nil disables command counting
	Texts    *TextFiles
	Help     *HelpFile

	ctx    context.Context
	work   chan func()
	done   chan struct{}
	online map[uint64]*online
	npcs   map[uint64]*npc
	master *npc
	nextID uint64
	now    func() time.Time
}

// online is a logged-in character's live state.
type online struct {
	char  *gamedb.Character
	menu  *menu
	owned []uint64 // temporary NPCs this character summoned
}

// NewGame creates the realm with its permanent Beastmaster NPC.
func NewGame(conf *RealmConf, store *boltstore.Store, module *beastmaster.Module, bus *events.Bus) *Game {
	if conf == nil {
		conf = DefaultRealmConf()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	g := &Game{
		Conf:     conf,
		Store:    store,
		Module:   module,
		Bus:      bus,
		Conns:    NewSessions(bus),
		Commands: InitCommands(),
		Help:     DefaultHelp(),
		ctx:      context.Background(),
		work:     make(chan func(), 256),
		done:     make(chan struct{}),
		online:   make(map[uint64]*online),
		npcs:     make(map[uint64]*npc),
		nextID:   1,
		now:      time.Now,
	}
	g.master = g.spawnNPC(gamedb.BeastmasterEntry, 0, 0)
	bus.SubscribeGlobal(eventTracer{}, tracedEvents...)
	return g
}

// Run drives the game loop until ctx is cancelled. Each tick runs player
// updates, NPC emotes and temporary NPC despawns.
func (g *Game) Run(ctx context.Context) {
	g.ctx = ctx
	defer close(g.done)

	ticker := time.NewTicker(g.Conf.Tick())
	defer ticker.Stop()
	last := g.now()

	for {
		select {
		case <-ctx.Done():
			g.saveAll()
			return
		case fn := <-g.work:
			fn()
		case <-ticker.C:
			now := g.now()
			g.Tick(now.Sub(last))
			last = now
		}
	}
}

// Submit queues fn for the game loop. It returns false once the loop has stopped.
func (g *Game) Submit(fn func()) bool {
	select {
	case g.work <- fn:
		return true
	case <-g.done:
		return false
	}
}

// Do runs fn on the game loop and waits for it.
func (g *Game) Do(fn func()) bool {
	finished := make(chan struct{})
	if !g.Submit(func() { fn(); close(finished) }) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-g.done:
		return false
	}
}

// Tick advances the world by diff.
func (g *Game) Tick(diff time.Duration) {
	if g.Module != nil {
		for _, o := range g.online {
			g.Module.PlayerUpdate(g.player(o))
		}
	}

	now := g.now()
	for _, n := range g.sortedNPCs() {
		if !n.expires.IsZero() && !now.Before(n.expires) {
			g.despawnNPC(n)
			continue
		}
		n.sched.Update(n, diff)
	}

	if g.Conf.IdleTimeout > 0 {
		limit := time.Duration(g.Conf.IdleTimeout) * time.Second
		for _, d := range g.Conns.AllDescriptors() {
			if d.Idle(now) > limit {
				d.Send("You have been idle too long. Goodbye!")
				g.Disconnect(d)
				d.Close()
			}
		}
	}
	g.Bus.Cleanup()
}

// --- Characters ---

// Connect logs d in as c and runs the login hooks.
func (g *Game) Connect(d *Descriptor, c *gamedb.Character) {
	o, ok := g.online[c.GUID]
	if !ok {
		c.EnsureMaps()
		if c.Pet != nil && c.Pet.Type != gamedb.HunterPet &&
			(g.Module == nil || !g.Module.ForceLoadPetFromDB()) {
			c.Pet = nil
		}
		c.LastSeen = g.now()
		o = &online{char: c}
		o.menu = &menu{g: g, o: o}
		g.online[c.GUID] = o
	}
	g.Conns.Login(d, c.GUID)
	log.Printf("[%s] Character %s(%d) connected from %s", d.ID, c.Name, c.GUID, d.Addr)

	d.Send(fmt.Sprintf("Welcome back, %s!", c.Name))
	if motd := g.Texts.Get(TextMotd); motd != "" {
		d.Send(motd)
	}
	if g.Module != nil {
		g.Module.OnLogin(g.player(o))
	}
	g.showLook(d, o)
}

// Disconnect detaches d. The last connection of a character logs it out.
func (g *Game) Disconnect(d *Descriptor) {
	player := d.Player
	if !g.Conns.Remove(d) {
		return
	}
	o, ok := g.online[player]
	if !ok {
		return
	}
	if g.Module != nil {
		g.Module.OnLogout(g.player(o))
	}
	// despawnNPC edits o.owned, so walk a copy.
	for _, id := range slices.Clone(o.owned) {
		if n, ok := g.npcs[id]; ok {
			g.despawnNPC(n)
		}
	}
	o.char.LastSeen = g.now()
	g.persist(o)
	delete(g.online, player)
	log.Printf("[%s] Character %s(%d) logged out", d.ID, o.char.Name, o.char.GUID)
}

// Online returns the live state for a connected character.
func (g *Game) Online(guid uint64) (*gamedb.Character, bool) {
	o, ok := g.online[guid]
	if !ok {
		return nil, false
	}
	return o.char, true
}

func (g *Game) persist(o *online) {
	if g.Store == nil {
		return
	}
	if err := g.Store.PutCharacter(o.char); err != nil {
		log.Printf("WARNING: server: persist character %d: %v", o.char.GUID, err)
	}
}

func (g *Game) saveAll() {
	if g.Store == nil {
		return
	}
	chars := make([]*gamedb.Character, 0, len(g.online))
	for _, o := range g.online {
		chars = append(chars, o.char)
	}
	if err := g.Store.PutCharacters(chars...); err != nil {
		log.Printf("WARNING: server: save characters: %v", err)
	}
}

func (g *Game) player(o *online) *realmPlayer {
	return &realmPlayer{g: g, o: o}
}

// sendSys emits a system line to one character.
func (g *Game) sendSys(guid uint64, text string) {
	g.Bus.EmitToPlayer(guid, events.Event{Type: events.EvSystem, Text: text})
}

// --- NPCs ---

func (g *Game) spawnNPC(entry uint32, owner uint64, lifetime time.Duration) *npc {
	n := &npc{
		g:     g,
		guid:  g.nextID,
		entry: entry,
		name:  BeastmasterName,
		owner: owner,
		sched: beastmaster.NewEmoteScheduler(nil),
	}
	g.nextID++
	if lifetime > 0 {
		n.expires = g.now().Add(lifetime)
	}
	g.npcs[n.guid] = n
	if o, ok := g.online[owner]; ok {
		o.owned = append(o.owned, n.guid)
	}
	return n
}

func (g *Game) despawnNPC(n *npc) {
	delete(g.npcs, n.guid)
	if o, ok := g.online[n.owner]; ok {
		for i, id := range o.owned {
			if id == n.guid {
				o.owned = append(o.owned[:i], o.owned[i+1:]...)
				break
			}
		}
		if o.menu.npc == n {
			o.menu.Close()
		}
		g.sendSys(n.owner, fmt.Sprintf("The %s vanishes.", n.name))
	}
}

func (g *Game) sortedNPCs() []*npc {
	out := make([]*npc, 0, len(g.npcs))
	for _, n := range g.npcs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].guid < out[j].guid })
	return out
}

// visibleNPCs returns the NPCs o can talk to: the permanent Beastmaster
// plus any it summoned.
func (g *Game) visibleNPCs(o *online) []*npc {
	var out []*npc
	for _, n := range g.sortedNPCs() {
		if n.owner == 0 || n.owner == o.char.GUID {
			out = append(out, n)
		}
	}
	return out
}

// petName resolves a catalog entry's display name.
func (g *Game) petName(entry uint32) (string, bool) {
	if g.Module != nil {
		if info, ok := g.Module.PetInfo(entry); ok {
			return info.Name, true
		}
	}
	return fmt.Sprintf("Beast %d", entry), false
}

// showLook renders the lodge.
func (g *Game) showLook(d *Descriptor, o *online) {
	var sb strings.Builder
	sb.WriteString(g.Conf.RealmName + " - The Lodge\n")
	sb.WriteString("Furs hang from the rafters and something large snores in the corner.\n")
	for _, n := range g.visibleNPCs(o) {
		if n.owner == 0 {
			sb.WriteString(fmt.Sprintf("The %s is here. (talk)\n", n.name))
		} else {
			sb.WriteString(fmt.Sprintf("A summoned %s waits beside you.\n", n.name))
		}
	}
	var others []string
	for guid, other := range g.online {
		if guid != o.char.GUID {
			others = append(others, other.char.Name)
		}
	}
	sort.Strings(others)
	if len(others) > 0 {
		sb.WriteString("Also here: " + strings.Join(others, ", ") + "\n")
	}
	if pet := o.char.Pet; pet != nil {
		sb.WriteString(fmt.Sprintf("Your pet %s is at your side.", pet.Name))
	}
	d.Send(strings.TrimRight(sb.String(), "\n"))
}
