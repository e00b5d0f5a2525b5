package beastmaster

import (
	"context"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// Player is the host's view of a connected character.
type Player interface {
	ID() uint64
	Name() string
	Class() gamedb.Class
	Level() int

	HasSpell(spell uint32) bool
	HasTalent(spell uint32) bool
	// LearnSpell teaches a spell the way a trainer would.
	LearnSpell(spell uint32)
	// AddSpell grants a spell without the learning side effects.
	AddSpell(spell uint32)
	RemoveSpell(spell uint32)

	HasItem(item uint32) bool
	AddItem(item uint32, count int) bool

	Pet() Pet
	HasPet() bool
	// CreatePet tames entry as the player's active pet using spell.
	CreatePet(entry, spell uint32) (Pet, error)

	Gossip() Gossip
	SendSysMessage(msg string)
	PlayDirectSound(sound uint32)
	SendStable(c Creature)
	SendVendorList(c Creature)
	SummonCreature(entry uint32, lifetime time.Duration) (Creature, error)
}

// Creature is an NPC the module speaks through.
type Creature interface {
	GUID() uint64
	Entry() uint32
	Whisper(text string, to Player)
	Emote(emote uint32)
}

// Pet is a player's active pet.
type Pet interface {
	Entry() uint32
	Name() string
	SetName(name string)
	SetHappiness(value int)
	Type() gamedb.PetType
}

// Gossip is the player's dialog menu under construction.
type Gossip interface {
	Clear()
	Add(icon gamedb.Icon, text string, sender, action uint32)
	// Send shows the menu. c may be nil when no NPC is involved.
	Send(textID uint32, c Creature)
	Close()
}

// TameSource supplies the pet catalog.
type TameSource interface {
	LoadTames(ctx context.Context) ([]gamedb.PetInfo, error)
}

// TrackedStore persists pets players have adopted.
type TrackedStore interface {
	Track(ctx context.Context, owner uint64, entry uint32, name string) (bool, error)
	List(ctx context.Context, owner uint64) ([]gamedb.TrackedPet, error)
	Entries(ctx context.Context, owner uint64) (map[uint32]bool, error)
	// Name returns gamedb.ErrNotFound when the pet is not tracked.
	Name(ctx context.Context, owner uint64, entry uint32) (string, error)
	Rename(ctx context.Context, owner uint64, entry uint32, name string) error
	Delete(ctx context.Context, owner uint64, entry uint32) error
	Count(ctx context.Context, owner uint64) (int, error)
}

// NameFilter rejects offensive pet names.
type NameFilter interface {
	IsProfane(name string) bool
}
