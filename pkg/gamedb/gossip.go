package gamedb

import "time"

// Icon is a gossip menu item icon.
type Icon int

const (
	IconChat      Icon = 0
	IconVendor    Icon = 1
	IconTaxi      Icon = 2
	IconTrainer   Icon = 3
	IconInteract  Icon = 4
	IconInteract2 Icon = 5
	IconMoneyBag  Icon = 6
	IconTalk      Icon = 7
	IconTabard    Icon = 8
	IconBattle    Icon = 9
	IconDot       Icon = 10
)

func (i Icon) String() string {
	switch i {
	case IconChat:
		return "chat"
	case IconVendor:
		return "vendor"
	case IconTaxi:
		return "taxi"
	case IconTrainer:
		return "trainer"
	case IconInteract, IconInteract2:
		return "interact"
	case IconMoneyBag:
		return "money"
	case IconTalk:
		return "talk"
	case IconTabard:
		return "tabard"
	case IconBattle:
		return "battle"
	case IconDot:
		return "dot"
	default:
		return "?"
	}
}

// Gossip senders. Adoption items carry SenderAdopt so their action can never
// be mistaken for one of the fixed action ranges below.
const (
	SenderMain  uint32 = 1
	SenderAdopt uint32 = 2
)

// Gossip action codes. Values match the host's menu item ids.
const (
	ActionNone          uint32 = 0
	ActionOptionVendor  uint32 = 3
	ActionOptionStable  uint32 = 14
	ActionMainMenu      uint32 = 50
	ActionRemoveSkills  uint32 = 80
	PageStartPets       uint32 = 501
	PageStartExotic     uint32 = 601
	PageStartRare       uint32 = 701
	PageStartRareExotic uint32 = 801
	PageMax             uint32 = 901
	ActionTrackedMenu   uint32 = 1000
	ActionTrackedSummon uint32 = 2000
	ActionTrackedRename uint32 = 3000
	ActionTrackedDelete uint32 = 4000
	ActionTrackedEnd    uint32 = 5000
	ActionGiveWhistle   uint32 = 90010
)

// Page sizes.
const (
	PetPageSize     = 13
	TrackedPageSize = 10
)

// Gossip text ids, sounds and emotes.
const (
	TextHello         uint32 = 601026
	TextBrowse        uint32 = 601027
	SoundHowl         uint32 = 9036
	EmoteEatNoSheathe uint32 = 92
)

// Spells and pet constants.
const (
	SpellCallPet      uint32 = 883
	SpellTameBeast    uint32 = 13481
	SpellBeastMastery uint32 = 53270
	MaxHappiness             = 1048000
)

// HunterSpells are granted to non-hunters on their first adoption and
// removed again by "Unlearn Hunter Abilities".
var HunterSpells = []uint32{883, 982, 2641, 6991, 48990, 1002, 1462, 6197}

// Beastmaster NPC and whistle.
const (
	BeastmasterEntry uint32 = 601026
	WhistleItem      uint32 = 21744
	WhistleLifetime         = 2 * time.Minute
)

// PageStart returns the first action code of a category's page range.
func PageStart(c Category) uint32 {
	switch c {
	case CatExotic:
		return PageStartExotic
	case CatRare:
		return PageStartRare
	case CatRareExotic:
		return PageStartRareExotic
	default:
		return PageStartPets
	}
}

// PageEnd returns the exclusive end of a category's page range.
func PageEnd(c Category) uint32 {
	switch c {
	case CatNormal:
		return PageStartExotic
	case CatExotic:
		return PageStartRare
	case CatRare:
		return PageStartRareExotic
	default:
		return PageMax
	}
}

// CategoryForAction returns the category whose page range holds action.
func CategoryForAction(action uint32) (Category, bool) {
	for _, c := range Categories {
		if action >= PageStart(c) && action < PageEnd(c) {
			return c, true
		}
	}
	return CatNormal, false
}
