package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crystal-mush/beastmaster/pkg/beastmaster"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"gopkg.in/yaml.v3"
)

// catalogRow is one YAML catalog entry.
type catalogRow struct {
	Entry  uint32 `yaml:"entry"`
	Name   string `yaml:"name"`
	Family uint32 `yaml:"family"`
	Rarity string `yaml:"rarity"`
}

var validRarities = map[string]bool{
	gamedb.RarityNormal:     true,
	gamedb.RarityExotic:     true,
	gamedb.RarityRare:       true,
	gamedb.RarityRareExotic: true,
}

// LoadCatalogFile reads pets by extension:
//   - .yaml / .yml -> a list of {entry, name, family, rarity}
//   - anything else -> a legacy "Name,Id,Name,Id" list tagged with rarity
func LoadCatalogFile(path, rarity string) ([]gamedb.PetInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLCatalog(data)
	default:
		return parseLegacyCatalog(string(data), rarity)
	}
}

func parseYAMLCatalog(data []byte) ([]gamedb.PetInfo, error) {
	var rows []catalogRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	pets := make([]gamedb.PetInfo, 0, len(rows))
	for i, r := range rows {
		if r.Entry == 0 || strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("catalog row %d: entry and name are required", i+1)
		}
		rarity := strings.ToLower(strings.TrimSpace(r.Rarity))
		if rarity == "" {
			rarity = gamedb.RarityNormal
		}
		if !validRarities[rarity] {
			return nil, fmt.Errorf("catalog row %d: unknown rarity %q", i+1, r.Rarity)
		}
		pets = append(pets, gamedb.PetInfo{Entry: r.Entry, Name: strings.TrimSpace(r.Name), Family: r.Family, Rarity: rarity})
	}
	return pets, nil
}

func parseLegacyCatalog(text, rarity string) ([]gamedb.PetInfo, error) {
	rarity = strings.ToLower(strings.TrimSpace(rarity))
	if !validRarities[rarity] {
		return nil, fmt.Errorf("unknown rarity %q", rarity)
	}
	// The list may wrap across lines.
	var tokens []string
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' }) {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	named := beastmaster.ParseNamedList(strings.Join(tokens, ","))
	if len(named) == 0 {
		return nil, fmt.Errorf("no \"Name,Id\" pairs found")
	}
	pets := make([]gamedb.PetInfo, 0, len(named))
	for _, n := range named {
		pets = append(pets, gamedb.PetInfo{Entry: n.Entry, Name: n.Name, Rarity: rarity})
	}
	return pets, nil
}
