package beastmaster

import (
	"context"
	"fmt"
	"log"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// Player-facing text.
const (
	msgHuntersOnly   = "I am sorry, but pets are for hunters only."
	msgMinLevel      = "Sorry %s, but you must reach level %d before adopting a pet."
	msgTaughtBM      = "I have taught you the art of Beast Mastery, %s."
	msgHavePet       = "First you must abandon or stable your current pet!"
	msgExoticHunters = "Only hunters can adopt exotic pets."
	msgNeedBMTalent  = "You need the Beast Mastery talent to adopt exotic pets."
	msgAdopted       = "A fine choice %s! Take good care of your %s and you will never face your enemies alone."
	msgWhistleGiven  = "You have received a Beastmaster Whistle!"
	msgWhistleHave   = "You already have a Beastmaster Whistle."
	msgNeedNPC       = "You must speak to the Beastmaster in person for that."
)

// canBrowseExotic applies the exotic menu visibility rule.
func canBrowseExotic(cfg Config, p Player) bool {
	if !(cfg.AllowExotic || p.HasSpell(gamedb.SpellBeastMastery) || p.HasTalent(gamedb.SpellBeastMastery)) {
		return false
	}
	if p.Class() != gamedb.ClassHunter {
		return true
	}
	return !cfg.HunterBeastMasteryRequired || p.HasTalent(gamedb.SpellBeastMastery)
}

// ShowMainMenu opens the Beastmaster's top-level menu. c may be nil when
// the menu is opened by command.
func (m *Module) ShowMainMenu(ctx context.Context, p Player, c Creature) {
	cfg := m.Config()
	hunter := p.Class() == gamedb.ClassHunter

	if cfg.HunterOnly && !hunter {
		say(p, c, msgHuntersOnly)
		return
	}
	if cfg.MinLevel != 0 && p.Level() < cfg.MinLevel {
		say(p, c, fmt.Sprintf(msgMinLevel, p.Name(), cfg.MinLevel))
		return
	}

	g := p.Gossip()
	g.Clear()
	g.Add(gamedb.IconBattle, "Browse Pets", gamedb.SenderMain, gamedb.PageStartPets)
	g.Add(gamedb.IconBattle, "Browse Rare Pets", gamedb.SenderMain, gamedb.PageStartRare)
	if canBrowseExotic(cfg, p) {
		g.Add(gamedb.IconBattle, "Browse Exotic Pets", gamedb.SenderMain, gamedb.PageStartExotic)
		g.Add(gamedb.IconBattle, "Browse Rare Exotic Pets", gamedb.SenderMain, gamedb.PageStartRareExotic)
	}
	if !hunter && p.HasSpell(gamedb.SpellCallPet) {
		g.Add(gamedb.IconBattle, "Unlearn Hunter Abilities", gamedb.SenderMain, gamedb.ActionRemoveSkills)
	}
	if m.tracking() {
		g.Add(gamedb.IconChat, "My Tamed Pets", gamedb.SenderMain, gamedb.ActionTrackedMenu)
	}
	if hunter {
		g.Add(gamedb.IconTaxi, "Visit Stable", gamedb.SenderMain, gamedb.ActionOptionStable)
	}
	g.Add(gamedb.IconMoneyBag, "Buy Pet Food", gamedb.SenderMain, gamedb.ActionOptionVendor)
	g.Add(gamedb.IconMoneyBag, "Get Beastmaster Whistle", gamedb.SenderMain, gamedb.ActionGiveWhistle)
	g.Send(gamedb.TextHello, c)

	p.PlayDirectSound(gamedb.SoundHowl)
}

// GossipSelect dispatches a menu pick.
func (m *Module) GossipSelect(ctx context.Context, p Player, c Creature, sender, action uint32) {
	g := p.Gossip()
	g.Clear()

	if sender == gamedb.SenderAdopt {
		m.CreatePet(ctx, p, c, action)
		return
	}

	switch {
	case action == gamedb.ActionNone:
		g.Close()

	case action == gamedb.ActionMainMenu:
		m.ShowMainMenu(ctx, p, c)

	case action >= gamedb.PageStartPets && action < gamedb.PageMax:
		cat, _ := gamedb.CategoryForAction(action)
		m.showCategoryPage(ctx, p, c, cat, int(action-gamedb.PageStart(cat))+1)

	case action == gamedb.ActionRemoveSkills:
		for _, spell := range gamedb.HunterSpells {
			p.RemoveSpell(spell)
		}
		p.RemoveSpell(gamedb.SpellBeastMastery)
		g.Close()

	case action == gamedb.ActionOptionStable:
		if c == nil {
			p.SendSysMessage(msgNeedNPC)
			g.Close()
			return
		}
		p.SendStable(c)

	case action == gamedb.ActionOptionVendor:
		if c == nil {
			p.SendSysMessage(msgNeedNPC)
			g.Close()
			return
		}
		p.SendVendorList(c)

	case action >= gamedb.ActionTrackedMenu && action < gamedb.ActionTrackedSummon:
		m.ShowTrackedPetsMenu(ctx, p, c, int(action-gamedb.ActionTrackedMenu)+1)

	case action >= gamedb.ActionTrackedSummon && action < gamedb.ActionTrackedRename:
		m.summonTracked(ctx, p, c, action-gamedb.ActionTrackedSummon)

	case action >= gamedb.ActionTrackedRename && action < gamedb.ActionTrackedDelete:
		m.startRename(p, c, action-gamedb.ActionTrackedRename)

	case action >= gamedb.ActionTrackedDelete && action < gamedb.ActionTrackedEnd:
		m.deleteTracked(ctx, p, c, action-gamedb.ActionTrackedDelete)

	case action == gamedb.ActionGiveWhistle:
		m.giveWhistle(ctx, p, c)

	case action >= gamedb.PageMax:
		m.CreatePet(ctx, p, c, action)
	}
}

// showCategoryPage renders one page of a catalog category.
func (m *Module) showCategoryPage(ctx context.Context, p Player, c Creature, cat gamedb.Category, page int) {
	if cat == gamedb.CatExotic || cat == gamedb.CatRareExotic {
		if !p.HasSpell(gamedb.SpellBeastMastery) && !p.HasTalent(gamedb.SpellBeastMastery) {
			p.AddSpell(gamedb.SpellBeastMastery)
			say(p, c, fmt.Sprintf(msgTaughtBM, p.Name()))
		}
	}

	pets := m.Pets(cat)
	start := gamedb.PageStart(cat)
	maxPage := MaxPage(len(pets), gamedb.PetPageSize)

	g := p.Gossip()
	g.Add(gamedb.IconTalk, "Back..", gamedb.SenderMain, gamedb.ActionMainMenu)
	if page > 1 {
		g.Add(gamedb.IconInteract, "Previous..", gamedb.SenderMain, start+uint32(page-2))
	}
	if page < maxPage && start+uint32(page) < gamedb.PageEnd(cat) {
		g.Add(gamedb.IconInteract, "Next..", gamedb.SenderMain, start+uint32(page))
	}
	m.AddPetsToGossip(ctx, p, pets, page)
	g.Send(gamedb.TextBrowse, c)
}

// AddPetsToGossip adds one page of pets as adoption items. With tracking on,
// pets the player already tamed are shown inert.
func (m *Module) AddPetsToGossip(ctx context.Context, p Player, pets []gamedb.PetInfo, page int) {
	var tamed map[uint32]bool
	if m.tracking() {
		var err error
		tamed, err = m.deps.Tracked.Entries(ctx, p.ID())
		if err != nil {
			log.Printf("beastmaster: tamed entries for player %d: %v", p.ID(), err)
		}
	}

	g := p.Gossip()
	for _, pet := range PageSlice(pets, page, gamedb.PetPageSize) {
		if tamed[pet.Entry] {
			g.Add(gamedb.IconChat, pet.Name+" (Already Tamed)", gamedb.SenderMain, gamedb.ActionNone)
			continue
		}
		g.Add(pet.Icon, pet.Name, gamedb.SenderAdopt, pet.Entry+gamedb.PageMax)
	}
}

func (m *Module) giveWhistle(ctx context.Context, p Player, c Creature) {
	if p.HasItem(gamedb.WhistleItem) {
		say(p, c, msgWhistleHave)
	} else if p.AddItem(gamedb.WhistleItem, 1) {
		say(p, c, msgWhistleGiven)
	} else {
		log.Printf("WARNING: beastmaster: could not give whistle to player %d", p.ID())
	}
	m.ShowMainMenu(ctx, p, c)
}
