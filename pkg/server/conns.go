package server

import (
	"cmp"
	"slices"
	"sync"

	"github.com/crystal-mush/beastmaster/pkg/events"
)

// Sessions indexes live descriptors by session id and by character. A
// character may be logged in from several connections at once.
type Sessions struct {
	bus *events.Bus // nil disables subscriptions

	mu     sync.RWMutex
	byID   map[string]*Descriptor
	byChar map[uint64][]*Descriptor
}

// NewSessions returns an empty index that subscribes logged-in
// descriptors to bus.
func NewSessions(bus *events.Bus) *Sessions {
	return &Sessions{
		bus:    bus,
		byID:   make(map[string]*Descriptor),
		byChar: make(map[uint64][]*Descriptor),
	}
}

// Add registers a new connection at the welcome screen.
func (s *Sessions) Add(d *Descriptor) {
	s.mu.Lock()
	s.byID[d.ID] = d
	s.mu.Unlock()
}

// Login attaches d to character player and subscribes it to that
// character's events.
func (s *Sessions) Login(d *Descriptor, player uint64) {
	s.mu.Lock()
	d.State = ConnConnected
	d.Player = player
	s.byChar[player] = append(s.byChar[player], d)
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Subscribe(player, d)
	}
}

// Remove drops d. It reports true only when d was the character's last
// connection, which is when the character should be logged out.
func (s *Sessions) Remove(d *Descriptor) bool {
	if s.bus != nil && d.Player != 0 {
		s.bus.Unsubscribe(d.Player, d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[d.ID]; !ok {
		return false
	}
	delete(s.byID, d.ID)
	if d.Player == 0 {
		return false
	}
	rest := slices.DeleteFunc(s.byChar[d.Player], func(x *Descriptor) bool { return x == d })
	if len(rest) > 0 {
		s.byChar[d.Player] = rest
		return false
	}
	delete(s.byChar, d.Player)
	return true
}

// GetByPlayer returns a copy of the connections logged in as player.
func (s *Sessions) GetByPlayer(player uint64) []*Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byChar[player])
}

// IsConnected reports whether player has any connection.
func (s *Sessions) IsConnected(player uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byChar[player]) > 0
}

// ConnectedPlayers returns the GUIDs of logged-in characters in ascending
// order.
func (s *Sessions) ConnectedPlayers() []uint64 {
	s.mu.RLock()
	players := make([]uint64, 0, len(s.byChar))
	for p := range s.byChar {
		players = append(players, p)
	}
	s.mu.RUnlock()
	slices.Sort(players)
	return players
}

// AllDescriptors returns every connection, oldest first.
func (s *Sessions) AllDescriptors() []*Descriptor {
	s.mu.RLock()
	descs := make([]*Descriptor, 0, len(s.byID))
	for _, d := range s.byID {
		descs = append(descs, d)
	}
	s.mu.RUnlock()
	slices.SortFunc(descs, func(a, b *Descriptor) int {
		if c := a.ConnTime.Compare(b.ConnTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return descs
}

// Count returns the number of connections, logged in or not.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Tally summarizes the current connections.
type Tally struct {
	Total     int `json:"total"`
	TCP       int `json:"tcp"`
	WebSocket int `json:"websocket"`
	AtLogin   int `json:"login_screen"`
	Playing   int `json:"connected"`
	Commands  int `json:"commands"`

	// PlayingBy counts logged-in connections per transport.
	PlayingBy map[TransportType]int `json:"-"`
}

// Tally counts connections by transport and login state.
func (s *Sessions) Tally() Tally {
	t := Tally{PlayingBy: map[TransportType]int{TransportTCP: 0, TransportWebSocket: 0}}
	for _, d := range s.AllDescriptors() {
		t.Total++
		if d.Transport == TransportWebSocket {
			t.WebSocket++
		} else {
			t.TCP++
		}
		if d.State == ConnConnected {
			t.Playing++
			t.PlayingBy[d.Transport]++
		} else {
			t.AtLogin++
		}
		t.Commands += d.Commands()
	}
	return t
}
