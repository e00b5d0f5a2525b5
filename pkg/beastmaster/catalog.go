package beastmaster

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// legacyLists maps the named config lists to the rarity their rows get.
var legacyLists = []struct {
	rarity string
	list   func(Config) string
}{
	{gamedb.RarityNormal, func(c Config) string { return c.Pets }},
	{gamedb.RarityExotic, func(c Config) string { return c.ExoticPets }},
	{gamedb.RarityRare, func(c Config) string { return c.RarePets }},
	{gamedb.RarityRareExotic, func(c Config) string { return c.RareExoticPets }},
}

// LoadSystem re-reads the configuration and rebuilds the pet catalog.
// On a catalog load failure the previous catalog stays in place.
func (m *Module) LoadSystem(ctx context.Context) error {
	cfg := DefaultConfig()
	if m.deps.LoadConfig != nil {
		loaded, err := m.deps.LoadConfig()
		if err != nil {
			log.Printf("WARNING: beastmaster: config reload failed, keeping previous settings: %v", err)
			cfg = m.Config()
		} else {
			cfg = loaded
		}
	}
	cfg.Normalize()

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	var rows []gamedb.PetInfo
	if m.deps.Tames != nil {
		var err error
		rows, err = m.deps.Tames.LoadTames(ctx)
		if err != nil {
			log.Printf("beastmaster: could not load tames from beastmaster_tames: %v", err)
			return fmt.Errorf("beastmaster: load tames: %w", err)
		}
	}

	pets, byEntry := buildCatalog(cfg, rows)

	m.mu.Lock()
	m.pets = pets
	m.byEntry = byEntry
	m.mu.Unlock()

	log.Printf("beastmaster: loaded %d pets (%d normal, %d exotic, %d rare, %d rare exotic)",
		len(byEntry), len(pets[gamedb.CatNormal]), len(pets[gamedb.CatExotic]),
		len(pets[gamedb.CatRare]), len(pets[gamedb.CatRareExotic]))

	m.emit(events.Event{
		Type: events.EvReload,
		Data: map[string]any{"pets": len(byEntry)},
	})
	return nil
}

// buildCatalog classifies rows plus any named config lists and sorts each
// category by name, then entry. Rows from the table win over config rows.
func buildCatalog(cfg Config, rows []gamedb.PetInfo) (map[gamedb.Category][]gamedb.PetInfo, map[uint32]gamedb.PetInfo) {
	rare := ParseEntryList(cfg.RarePets)
	rareExotic := ParseEntryList(cfg.RareExoticPets)

	byEntry := make(map[uint32]gamedb.PetInfo, len(rows))
	for _, r := range rows {
		if r.Rarity == "" {
			r.Rarity = gamedb.RarityNormal
		}
		byEntry[r.Entry] = r
	}
	for _, l := range legacyLists {
		for _, ne := range ParseNamedList(l.list(cfg)) {
			if _, ok := byEntry[ne.Entry]; ok {
				continue
			}
			byEntry[ne.Entry] = gamedb.PetInfo{Entry: ne.Entry, Name: ne.Name, Rarity: l.rarity}
		}
	}

	pets := make(map[gamedb.Category][]gamedb.PetInfo, len(gamedb.Categories))
	for entry, p := range byEntry {
		p.Icon = gamedb.FamilyIcon(p.Family)
		p.Category = gamedb.Classify(p.Entry, p.Rarity, rare, rareExotic)
		byEntry[entry] = p
		pets[p.Category] = append(pets[p.Category], p)
	}
	for _, list := range pets {
		slices.SortFunc(list, func(a, b gamedb.PetInfo) int {
			if c := cmp.Compare(a.Name, b.Name); c != 0 {
				return c
			}
			return cmp.Compare(a.Entry, b.Entry)
		})
	}
	return pets, byEntry
}

// Pets returns a copy of one category in display order.
func (m *Module) Pets(c gamedb.Category) []gamedb.PetInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]gamedb.PetInfo(nil), m.pets[c]...)
}

// PetInfo looks up a catalog entry.
func (m *Module) PetInfo(entry uint32) (gamedb.PetInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byEntry[entry]
	return p, ok
}

// CatalogSize returns the number of distinct catalog entries.
func (m *Module) CatalogSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byEntry)
}
