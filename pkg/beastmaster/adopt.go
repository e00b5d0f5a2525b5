package beastmaster

import (
	"context"
	"fmt"
	"log"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// CreatePet adopts the catalog pet encoded in action (entry + PageMax).
func (m *Module) CreatePet(ctx context.Context, p Player, c Creature, action uint32) {
	g := p.Gossip()
	if action < gamedb.PageMax {
		g.Close()
		return
	}
	entry := action - gamedb.PageMax
	info, ok := m.PetInfo(entry)
	if !ok {
		log.Printf("WARNING: beastmaster: player %d picked unknown pet entry %d", p.ID(), entry)
		g.Close()
		return
	}

	if p.HasPet() {
		say(p, c, msgHavePet)
		g.Close()
		return
	}

	cfg := m.Config()
	hunter := p.Class() == gamedb.ClassHunter
	if info.Exotic() && !hunter && !cfg.AllowExotic {
		say(p, c, msgExoticHunters)
		g.Close()
		return
	}
	if info.Exotic() && hunter && cfg.HunterBeastMasteryRequired && !p.HasTalent(gamedb.SpellBeastMastery) {
		say(p, c, msgNeedBMTalent)
		g.Close()
		return
	}

	spell := gamedb.SpellCallPet
	if hunter {
		spell = gamedb.SpellTameBeast
	}
	pet, err := p.CreatePet(entry, spell)
	if err != nil || pet == nil {
		log.Printf("beastmaster: create pet %d for player %d: %v", entry, p.ID(), err)
		say(p, c, msgHavePet)
		g.Close()
		return
	}

	if m.tracking() {
		if _, err := m.deps.Tracked.Track(ctx, p.ID(), entry, pet.Name()); err != nil {
			log.Printf("beastmaster: track pet %d for player %d: %v", entry, p.ID(), err)
		}
	}

	pet.SetHappiness(gamedb.MaxHappiness)

	if !hunter && !p.HasSpell(gamedb.SpellCallPet) {
		for _, s := range gamedb.HunterSpells {
			if !p.HasSpell(s) {
				p.LearnSpell(s)
			}
		}
	}

	say(p, c, fmt.Sprintf(msgAdopted, p.Name(), pet.Name()))
	g.Close()
	m.ClearTrackedCache(p.ID())

	m.emit(events.Event{
		Type:   events.EvAdopt,
		Player: p.ID(),
		Entry:  entry,
		Text:   pet.Name(),
		Data:   map[string]any{"category": info.Category.String()},
	})
}
