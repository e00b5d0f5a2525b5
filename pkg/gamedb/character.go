package gamedb

import (
	"strings"
	"time"
)

// Class is a player class id.
type Class int

const (
	ClassWarrior     Class = 1
	ClassPaladin     Class = 2
	ClassHunter      Class = 3
	ClassRogue       Class = 4
	ClassPriest      Class = 5
	ClassDeathKnight Class = 6
	ClassShaman      Class = 7
	ClassMage        Class = 8
	ClassWarlock     Class = 9
	ClassDruid       Class = 11
)

var classNames = map[Class]string{
	ClassWarrior:     "warrior",
	ClassPaladin:     "paladin",
	ClassHunter:      "hunter",
	ClassRogue:       "rogue",
	ClassPriest:      "priest",
	ClassDeathKnight: "deathknight",
	ClassShaman:      "shaman",
	ClassMage:        "mage",
	ClassWarlock:     "warlock",
	ClassDruid:       "druid",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "unknown"
}

// ParseClass resolves a class by name (case-insensitive, "dk" accepted).
func ParseClass(s string) (Class, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "dk" || s == "death knight" {
		return ClassDeathKnight, true
	}
	for c, n := range classNames {
		if n == s {
			return c, true
		}
	}
	return 0, false
}

// MaxLevel is the highest character level.
const MaxLevel = 80

// PetState is a realm-side pet, either active or stabled.
type PetState struct {
	Number    int
	Entry     uint32
	Name      string
	Type      PetType
	Happiness int
}

// Character is a persisted realm player.
type Character struct {
	GUID     uint64
	Name     string
	PassHash []byte
	Class    Class
	Level    int
	Spells   map[uint32]bool
	Talents  map[uint32]bool
	Items    map[uint32]int
	Pet      *PetState
	Stable   []PetState
	Created  time.Time
	LastSeen time.Time
}

// NewCharacter returns a character with its maps allocated.
func NewCharacter(guid uint64, name string, class Class, level int) *Character {
	now := time.Now()
	return &Character{
		GUID:     guid,
		Name:     name,
		Class:    class,
		Level:    level,
		Spells:   make(map[uint32]bool),
		Talents:  make(map[uint32]bool),
		Items:    make(map[uint32]int),
		Created:  now,
		LastSeen: now,
	}
}

// EnsureMaps allocates any nil maps, e.g. after decoding an older record.
func (c *Character) EnsureMaps() {
	if c.Spells == nil {
		c.Spells = make(map[uint32]bool)
	}
	if c.Talents == nil {
		c.Talents = make(map[uint32]bool)
	}
	if c.Items == nil {
		c.Items = make(map[uint32]int)
	}
}
