// Package beastmaster implements the Beastmaster NPC: a paginated pet
// adoption dialog, optional per-player tracking of adopted pets, and the
// chat commands, player hooks and whistle item that go with it.
package beastmaster

import (
	"sync"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// Deps wires the module to its host.
type Deps struct {
	// LoadConfig is called by every LoadSystem. Nil means DefaultConfig.
	LoadConfig func() (Config, error)
	Tames      TameSource
	Tracked    TrackedStore // nil disables tracking regardless of config
	Names      NameFilter   // nil disables the profanity check
	Bus        *events.Bus  // nil disables events
}

// Module is one Beastmaster instance. Its methods are called from the
// host's game thread; the caches are additionally guarded against reloads.
type Module struct {
	deps Deps

	mu      sync.RWMutex
	cfg     Config
	pets    map[gamedb.Category][]gamedb.PetInfo
	byEntry map[uint32]gamedb.PetInfo

	cacheMu sync.Mutex
	tracked map[uint64][]gamedb.TrackedPet

	sessMu   sync.Mutex
	sessions map[uint64]*session
}

// session is per-player dialog state.
type session struct {
	menu        map[uint32]uint32 // tracked menu index -> entry, last page shown
	trackedPage int
	renaming    bool
	renameEntry uint32
}

// New returns a module with an empty catalog. Call LoadSystem before use.
func New(deps Deps) *Module {
	return &Module{
		deps:     deps,
		cfg:      DefaultConfig(),
		pets:     make(map[gamedb.Category][]gamedb.PetInfo),
		byEntry:  make(map[uint32]gamedb.PetInfo),
		tracked:  make(map[uint64][]gamedb.TrackedPet),
		sessions: make(map[uint64]*session),
	}
}

// Config returns the active configuration.
func (m *Module) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Module) tracking() bool {
	return m.deps.Tracked != nil && m.Config().TrackTamedPets
}

func (m *Module) emit(ev events.Event) {
	if m.deps.Bus == nil {
		return
	}
	m.deps.Bus.EmitToPlayer(ev.Player, ev)
}

func (m *Module) profane(name string) bool {
	return m.deps.Names != nil && m.deps.Names.IsProfane(name)
}

// say whispers through c, or falls back to a system message.
func say(p Player, c Creature, msg string) {
	if c != nil {
		c.Whisper(msg, p)
		return
	}
	p.SendSysMessage(msg)
}

// --- Sessions ---

func (m *Module) session(id uint64) *session {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &session{}
		m.sessions[id] = s
	}
	return s
}

func (m *Module) lookupSession(id uint64) *session {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	return m.sessions[id]
}

// menuEntry resolves an index from the last tracked page shown to id.
func (m *Module) menuEntry(id uint64, idx uint32) (uint32, bool) {
	s := m.lookupSession(id)
	if s == nil || s.menu == nil {
		return 0, false
	}
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	entry, ok := s.menu[idx]
	return entry, ok
}

// Renaming reports the entry id is renaming, if any.
func (m *Module) Renaming(id uint64) (uint32, bool) {
	s := m.lookupSession(id)
	if s == nil {
		return 0, false
	}
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	return s.renameEntry, s.renaming
}

func (m *Module) dropSession(id uint64) {
	m.sessMu.Lock()
	delete(m.sessions, id)
	m.sessMu.Unlock()
}
