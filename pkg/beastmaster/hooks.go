package beastmaster

import (
	"context"
	"log"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// Banner is sent on login when Announce is set.
const Banner = "This server is running the BeastMasterNPC module."

const msgWhistleFailed = "Failed to summon the Beastmaster. Please contact an admin."

// PlayerUpdate runs every player tick. With KeepPetHappy set, a hunter
// pet is held at full happiness.
func (m *Module) PlayerUpdate(p Player) {
	if !m.Config().KeepPetHappy {
		return
	}
	if pet := p.Pet(); pet != nil && pet.Type() == gamedb.HunterPet {
		pet.SetHappiness(gamedb.MaxHappiness)
	}
}

// OnLogin announces the module.
func (m *Module) OnLogin(p Player) {
	if m.Config().Announce {
		p.SendSysMessage(Banner)
	}
}

// OnLogout forgets the player's dialog state and cached pets.
func (m *Module) OnLogout(p Player) {
	m.dropSession(p.ID())
	m.cacheMu.Lock()
	delete(m.tracked, p.ID())
	m.cacheMu.Unlock()
}

// ForceLoadPetFromDB tells the host to always restore pets from storage.
func (m *Module) ForceLoadPetFromDB() bool { return true }

// GuardianPetType upgrades tameable creatures to hunter pets.
func (m *Module) GuardianPetType(tameable bool, current gamedb.PetType) gamedb.PetType {
	if tameable {
		return gamedb.HunterPet
	}
	return current
}

// UseWhistle summons a temporary Beastmaster next to the player and opens
// its menu. It reports whether the item use was handled.
func (m *Module) UseWhistle(ctx context.Context, p Player) bool {
	c, err := p.SummonCreature(gamedb.BeastmasterEntry, gamedb.WhistleLifetime)
	if err != nil || c == nil {
		p.SendSysMessage(msgWhistleFailed)
		log.Printf("beastmaster: whistle: failed to summon NPC %d: %v", gamedb.BeastmasterEntry, err)
		return true
	}
	m.ShowMainMenu(ctx, p, c)
	return true
}
