package beastmaster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

const (
	msgNotRenamingHint = "You are not renaming a pet right now. Use the Beastmaster NPC to start renaming."
	msgPetnameUsage    = "Usage: .petname <newname>"
	msgBadName         = "Invalid or profane pet name. Please try again with .petname <newname>."
	msgRenamed         = "Pet renamed to '%s'."
	msgRenameGone      = "That tracked pet no longer exists."
	msgRenameFailed    = "Failed to rename pet."
	msgNotRenaming     = "You are not renaming a pet right now."
	msgRenameCancelled = "Pet renaming cancelled."
)

// CommandFunc handles a chat command. args is everything after the name.
type CommandFunc func(ctx context.Context, p Player, args string)

// Commands returns the chat commands the module registers, keyed by name
// without the leading dot.
func (m *Module) Commands() map[string]CommandFunc {
	return map[string]CommandFunc{
		"petname":     m.PetName,
		"cancel":      m.Cancel,
		"beastmaster": m.OpenMenu,
		"bm":          m.OpenMenu,
	}
}

// PetName completes a rename started from the tracked pets menu.
func (m *Module) PetName(ctx context.Context, p Player, args string) {
	entry, renaming := m.Renaming(p.ID())
	if !renaming || m.deps.Tracked == nil {
		p.SendSysMessage(msgNotRenamingHint)
		return
	}

	name := strings.TrimSpace(args)
	if name == "" {
		p.SendSysMessage(msgPetnameUsage)
		return
	}
	if !ValidPetName(name) || m.profane(name) {
		p.SendSysMessage(msgBadName)
		return
	}

	if err := m.deps.Tracked.Rename(ctx, p.ID(), entry, name); err != nil {
		if errors.Is(err, gamedb.ErrNotFound) {
			m.clearRename(p.ID())
			m.ClearTrackedCache(p.ID())
			p.SendSysMessage(msgRenameGone)
			return
		}
		log.Printf("beastmaster: rename tracked pet %d for player %d: %v", entry, p.ID(), err)
		p.SendSysMessage(msgRenameFailed)
		return
	}

	m.clearRename(p.ID())
	p.SendSysMessage(fmt.Sprintf(msgRenamed, name))
	m.ClearTrackedCache(p.ID())

	if pet := p.Pet(); pet != nil && pet.Entry() == entry {
		pet.SetName(name)
	}
	m.emit(events.Event{Type: events.EvRename, Player: p.ID(), Entry: entry, Text: name})
}

// Cancel abandons a pending rename.
func (m *Module) Cancel(_ context.Context, p Player, _ string) {
	if _, renaming := m.Renaming(p.ID()); !renaming {
		p.SendSysMessage(msgNotRenaming)
		return
	}
	m.clearRename(p.ID())
	p.SendSysMessage(msgRenameCancelled)
}

// OpenMenu shows the main menu without an NPC.
func (m *Module) OpenMenu(ctx context.Context, p Player, _ string) {
	m.ShowMainMenu(ctx, p, nil)
}

func (m *Module) clearRename(id uint64) {
	s := m.lookupSession(id)
	if s == nil {
		return
	}
	m.sessMu.Lock()
	s.renaming = false
	s.renameEntry = 0
	m.sessMu.Unlock()
}
