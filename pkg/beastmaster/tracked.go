package beastmaster

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

const (
	msgSummoned      = "Your tracked pet has been summoned!"
	msgSummonFailed  = "Failed to summon pet."
	msgRenamePrompt  = "To rename your pet, type: .petname <newname> in chat. To cancel, type: .cancel"
	msgDeleted       = "Tracked pet deleted (entry %d)."
	msgTrackedFailed = "Your tamed pets are unavailable right now."
	msgTrackingOff   = "Pet tracking is not enabled."
)

// trackedPets returns id's tracked pets through the per-player cache.
func (m *Module) trackedPets(ctx context.Context, id uint64) ([]gamedb.TrackedPet, error) {
	m.cacheMu.Lock()
	pets, ok := m.tracked[id]
	m.cacheMu.Unlock()
	if ok {
		return pets, nil
	}

	pets, err := m.deps.Tracked.List(ctx, id)
	if err != nil {
		return nil, err
	}
	m.cacheMu.Lock()
	m.tracked[id] = pets
	m.cacheMu.Unlock()
	return pets, nil
}

// ClearTrackedCache drops id's cached tracked pets and the index map of the
// last tracked page shown.
func (m *Module) ClearTrackedCache(id uint64) {
	m.cacheMu.Lock()
	delete(m.tracked, id)
	m.cacheMu.Unlock()

	if s := m.lookupSession(id); s != nil {
		m.sessMu.Lock()
		s.menu = nil
		m.sessMu.Unlock()
	}
}

// trackedLabel formats "<custom> [<catalog name>, <rarity>]".
func (m *Module) trackedLabel(tp gamedb.TrackedPet) string {
	info, ok := m.PetInfo(tp.Entry)
	if !ok {
		return tp.Name
	}
	return fmt.Sprintf("%s [%s, %s]", tp.Name, info.Name, info.Rarity)
}

// ShowTrackedPetsMenu lists one page of the player's tracked pets with
// summon, rename and delete items for each.
func (m *Module) ShowTrackedPetsMenu(ctx context.Context, p Player, c Creature, page int) {
	g := p.Gossip()
	g.Clear()
	if m.deps.Tracked == nil {
		say(p, c, msgTrackingOff)
		g.Close()
		return
	}

	pets, err := m.trackedPets(ctx, p.ID())
	if err != nil {
		log.Printf("beastmaster: list tracked pets for player %d: %v", p.ID(), err)
		p.SendSysMessage(msgTrackedFailed)
		g.Close()
		return
	}
	if page < 1 {
		page = 1
	}
	maxPage := MaxPage(len(pets), gamedb.TrackedPageSize)

	g.Add(gamedb.IconTalk, "Back..", gamedb.SenderMain, gamedb.ActionMainMenu)
	if page > 1 {
		g.Add(gamedb.IconInteract, "Previous..", gamedb.SenderMain, gamedb.ActionTrackedMenu+uint32(page-2))
	}
	if page < maxPage && gamedb.ActionTrackedMenu+uint32(page) < gamedb.ActionTrackedSummon {
		g.Add(gamedb.IconInteract, "Next..", gamedb.SenderMain, gamedb.ActionTrackedMenu+uint32(page))
	}

	index := make(map[uint32]uint32)
	for i, tp := range PageSlice(pets, page, gamedb.TrackedPageSize) {
		idx := uint32(i)
		index[idx] = tp.Entry
		label := m.trackedLabel(tp)
		g.Add(gamedb.IconTaxi, "Summon: "+label, gamedb.SenderMain, gamedb.ActionTrackedSummon+idx)
		g.Add(gamedb.IconTrainer, "Rename: "+label, gamedb.SenderMain, gamedb.ActionTrackedRename+idx)
		g.Add(gamedb.IconBattle, "Delete: "+label, gamedb.SenderMain, gamedb.ActionTrackedDelete+idx)
	}

	s := m.session(p.ID())
	m.sessMu.Lock()
	s.menu = index
	s.trackedPage = page
	m.sessMu.Unlock()

	g.Send(gamedb.TextBrowse, c)
}

func (m *Module) summonTracked(ctx context.Context, p Player, c Creature, idx uint32) {
	g := p.Gossip()
	entry, ok := m.menuEntry(p.ID(), idx)
	if !ok || m.deps.Tracked == nil {
		g.Close()
		return
	}
	if p.HasPet() {
		say(p, c, msgHavePet)
		g.Close()
		return
	}

	pet, err := p.CreatePet(entry, gamedb.SpellCallPet)
	if err != nil || pet == nil {
		log.Printf("beastmaster: summon tracked pet %d for player %d: %v", entry, p.ID(), err)
		say(p, c, msgSummonFailed)
		g.Close()
		return
	}

	name, err := m.deps.Tracked.Name(ctx, p.ID(), entry)
	switch {
	case err == nil && name != "":
		pet.SetName(name)
	case err != nil && !errors.Is(err, gamedb.ErrNotFound):
		log.Printf("beastmaster: tracked name %d for player %d: %v", entry, p.ID(), err)
	}
	pet.SetHappiness(gamedb.MaxHappiness)
	say(p, c, msgSummoned)
	g.Close()

	m.emit(events.Event{Type: events.EvSummon, Player: p.ID(), Entry: entry, Text: pet.Name()})
}

func (m *Module) startRename(p Player, c Creature, idx uint32) {
	g := p.Gossip()
	entry, ok := m.menuEntry(p.ID(), idx)
	if !ok {
		g.Close()
		return
	}

	s := m.session(p.ID())
	m.sessMu.Lock()
	s.renaming = true
	s.renameEntry = entry
	m.sessMu.Unlock()

	p.SendSysMessage(msgRenamePrompt)
	if c != nil {
		c.Whisper(msgRenamePrompt, p)
	}
	g.Close()
}

func (m *Module) deleteTracked(ctx context.Context, p Player, c Creature, idx uint32) {
	g := p.Gossip()
	entry, ok := m.menuEntry(p.ID(), idx)
	if !ok || m.deps.Tracked == nil {
		g.Close()
		return
	}
	page := 1
	if s := m.lookupSession(p.ID()); s != nil {
		m.sessMu.Lock()
		page = s.trackedPage
		m.sessMu.Unlock()
	}

	if err := m.deps.Tracked.Delete(ctx, p.ID(), entry); err != nil {
		log.Printf("beastmaster: delete tracked pet %d for player %d: %v", entry, p.ID(), err)
		p.SendSysMessage(msgTrackedFailed)
		g.Close()
		return
	}
	m.ClearTrackedCache(p.ID())
	p.SendSysMessage(fmt.Sprintf(msgDeleted, entry))
	log.Printf("beastmaster: player %d deleted tracked pet (entry %d)", p.ID(), entry)
	m.emit(events.Event{Type: events.EvDelete, Player: p.ID(), Entry: entry})

	total, err := m.deps.Tracked.Count(ctx, p.ID())
	if err != nil {
		log.Printf("beastmaster: count tracked pets for player %d: %v", p.ID(), err)
	}
	if maxPage := MaxPage(total, gamedb.TrackedPageSize); page > maxPage && maxPage > 0 {
		page = maxPage
	}
	if page < 1 {
		page = 1
	}
	m.ShowTrackedPetsMenu(ctx, p, c, page)
}
