package gamedb

import (
	"strings"
	"time"
)

// Category groups catalog pets into the four browsable lists.
type Category int

const (
	CatNormal     Category = iota // Browse Pets
	CatExotic                     // Browse Exotic Pets
	CatRare                       // Browse Rare Pets
	CatRareExotic                 // Browse Rare Exotic Pets
)

// Categories lists every category in menu order.
var Categories = []Category{CatNormal, CatExotic, CatRare, CatRareExotic}

func (c Category) String() string {
	switch c {
	case CatNormal:
		return "normal"
	case CatExotic:
		return "exotic"
	case CatRare:
		return "rare"
	case CatRareExotic:
		return "rare_exotic"
	default:
		return "unknown"
	}
}

// Rarity tags as stored in beastmaster_tames.rarity.
const (
	RarityNormal     = "normal"
	RarityExotic     = "exotic"
	RarityRare       = "rare"
	RarityRareExotic = "rare_exotic"
)

// PetInfo is one row of the pet catalog.
type PetInfo struct {
	Entry    uint32
	Name     string
	Family   uint32
	Rarity   string
	Icon     Icon
	Category Category
}

// Exotic reports whether adopting this pet is gated by the exotic rules.
func (p PetInfo) Exotic() bool {
	return strings.EqualFold(p.Rarity, RarityExotic) ||
		p.Category == CatExotic || p.Category == CatRareExotic
}

// trainerFamilies are the creature families shown with the trainer icon.
var trainerFamilies = map[uint32]bool{
	1:  true, // Wolf
	2:  true, // Cat
	3:  true, // Bear
	4:  true, // Boar
	7:  true, // Carrion Bird
	8:  true, // Crocolisk
	9:  true, // Gorilla
	10: true, // Crab
	15: true, // Turtle
	20: true, // Raptor
	21: true, // Tallstrider
	24: true, // Silithid
	25: true, // Core Hound
	27: true, // Wind Serpent
	30: true, // Dragonhawk
	31: true, // Worm
	34: true, // Spirit Beast
}

// FamilyIcon returns the gossip icon used for a creature family.
func FamilyIcon(family uint32) Icon {
	if trainerFamilies[family] {
		return IconTrainer
	}
	return IconVendor
}

// Classify assigns a category from the configured rare sets and the rarity tag.
// Config membership wins over the tag.
func Classify(entry uint32, rarity string, rare, rareExotic map[uint32]bool) Category {
	switch {
	case rare[entry]:
		return CatRare
	case rareExotic[entry]:
		return CatRareExotic
	}
	switch strings.ToLower(strings.TrimSpace(rarity)) {
	case RarityExotic:
		return CatExotic
	case RarityRare:
		return CatRare
	case RarityRareExotic, "rareexotic":
		return CatRareExotic
	}
	return CatNormal
}

// TrackedPet is a pet a player adopted while tracking was enabled.
type TrackedPet struct {
	Owner   uint64
	Entry   uint32
	Name    string
	TamedAt time.Time
}

// PetType mirrors the host's pet kinds.
type PetType int

const (
	SummonPet PetType = 0
	HunterPet PetType = 1
)

func (t PetType) String() string {
	if t == HunterPet {
		return "hunter"
	}
	return "summon"
}
