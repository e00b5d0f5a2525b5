package server

import (
	"runtime"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// RuntimeStats is a snapshot of the Go runtime.
type RuntimeStats struct {
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapInuseBytes uint64 `json:"heap_inuse_bytes"`
	Goroutines     int    `json:"goroutines"`
	GCCycles       uint32 `json:"gc_cycles"`
	GCPauseTotalNS uint64 `json:"gc_pause_total_ns"`
}

func readRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		HeapAllocBytes: m.HeapAlloc,
		HeapInuseBytes: m.HeapInuse,
		Goroutines:     runtime.NumGoroutine(),
		GCCycles:       m.NumGC,
		GCPauseTotalNS: m.PauseTotalNs,
	}
}

// RealmStats counts what is happening in the world.
type RealmStats struct {
	Online        int            `json:"online"`
	ActivePets    int            `json:"active_pets"`
	StabledPets   int            `json:"stabled_pets"`
	Beastmasters  int            `json:"beastmasters"`
	ModuleEnabled bool           `json:"module_enabled"`
	Catalog       map[string]int `json:"catalog"` // pets per category
}

// RealmStats must run on the game loop.
func (g *Game) RealmStats() RealmStats {
	st := RealmStats{
		Online:        len(g.online),
		Beastmasters:  len(g.npcs),
		ModuleEnabled: g.Module != nil,
		Catalog:       make(map[string]int, len(gamedb.Categories)),
	}
	for _, o := range g.online {
		if o.char.Pet != nil {
			st.ActivePets++
		}
		st.StabledPets += len(o.char.Stable)
	}
	if g.Module != nil {
		for _, cat := range gamedb.Categories {
			st.Catalog[cat.String()] = len(g.Module.Pets(cat))
		}
	}
	return st
}
