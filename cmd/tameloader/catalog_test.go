package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAMLCatalog(t *testing.T) {
	path := writeFile(t, "tames.yaml", `
- entry: 3475
  name: Echeyakee
  family: 2
  rarity: rare
- entry: 1126
  name: Timber Wolf
  family: 1
- entry: 32517
  name: Loque'nahak
  family: 46
  rarity: RARE_EXOTIC
`)
	pets, err := LoadCatalogFile(path, "")
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if len(pets) != 3 {
		t.Fatalf("got %d pets, want 3", len(pets))
	}
	want := []gamedb.PetInfo{
		{Entry: 3475, Name: "Echeyakee", Family: 2, Rarity: gamedb.RarityRare},
		{Entry: 1126, Name: "Timber Wolf", Family: 1, Rarity: gamedb.RarityNormal},
		{Entry: 32517, Name: "Loque'nahak", Family: 46, Rarity: gamedb.RarityRareExotic},
	}
	for i, w := range want {
		if pets[i] != w {
			t.Errorf("pet %d = %+v, want %+v", i, pets[i], w)
		}
	}
}

func TestLoadYAMLCatalogErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing entry", "- name: Wolf\n"},
		{"missing name", "- entry: 5\n"},
		{"bad rarity", "- entry: 5\n  name: Wolf\n  rarity: legendary\n"},
		{"not a list", "entry: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.yaml", tt.content)
			if _, err := LoadCatalogFile(path, ""); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadLegacyCatalog(t *testing.T) {
	path := writeFile(t, "exotic.txt", "Devilsaur,20931,\nCore Hound,11671,\r\nChimaera, 21879\n")
	pets, err := LoadCatalogFile(path, "exotic")
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if len(pets) != 3 {
		t.Fatalf("got %d pets, want 3: %+v", len(pets), pets)
	}
	if pets[1].Name != "Core Hound" || pets[1].Entry != 11671 || pets[1].Rarity != gamedb.RarityExotic {
		t.Errorf("pet 1 = %+v", pets[1])
	}
	if pets[2].Entry != 21879 {
		t.Errorf("pet 2 = %+v", pets[2])
	}
}

func TestLoadLegacyCatalogErrors(t *testing.T) {
	path := writeFile(t, "ids.txt", "1,2,3")
	if _, err := LoadCatalogFile(path, "normal"); err == nil {
		t.Error("bare id list should be rejected")
	}
	path = writeFile(t, "named.txt", "Wolf,1")
	if _, err := LoadCatalogFile(path, "mythic"); err == nil {
		t.Error("unknown rarity should be rejected")
	}
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.txt"), "normal"); err == nil {
		t.Error("missing file should be an error")
	}
}
