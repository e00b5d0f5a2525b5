package beastmaster

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"gopkg.in/yaml.v3"
)

// Config holds the BeastMaster.* options.
// Supports both YAML (.yaml/.yml) and the legacy worldserver .conf format.
type Config struct {
	Enable                     bool   `yaml:"enable" env:"ENABLE"`
	Announce                   bool   `yaml:"announce" env:"ANNOUNCE"`
	HunterOnly                 bool   `yaml:"hunter_only" env:"HUNTER_ONLY"`
	AllowExotic                bool   `yaml:"allow_exotic" env:"ALLOW_EXOTIC"`
	KeepPetHappy               bool   `yaml:"keep_pet_happy" env:"KEEP_PET_HAPPY"`
	MinLevel                   int    `yaml:"min_level" env:"MIN_LEVEL"`
	HunterBeastMasteryRequired bool   `yaml:"hunter_beast_mastery_required" env:"HUNTER_BEAST_MASTERY_REQUIRED"`
	TrackTamedPets             bool   `yaml:"track_tamed_pets" env:"TRACK_TAMED_PETS"`
	ProfanityFile              string `yaml:"profanity_file" env:"PROFANITY_FILE"`

	// Comma separated. RarePets and RareExoticPets are entry ids; a list in
	// the older "Name,Id,Name,Id" form adds catalog rows instead.
	Pets           string `yaml:"pets" env:"PETS"`
	ExoticPets     string `yaml:"exotic_pets" env:"EXOTIC_PETS"`
	RarePets       string `yaml:"rare_pets" env:"RARE_PETS"`
	RareExoticPets string `yaml:"rare_exotic_pets" env:"RARE_EXOTIC_PETS"`
}

// DefaultMinLevel applies when MinLevel is outside 0..MaxLevel.
const DefaultMinLevel = 10

// DefaultConfig returns the module defaults.
func DefaultConfig() Config {
	return Config{
		Enable:                     true,
		Announce:                   true,
		HunterOnly:                 true,
		MinLevel:                   DefaultMinLevel,
		HunterBeastMasteryRequired: true,
	}
}

// EnvPrefix is prepended to every Config env tag.
const EnvPrefix = "BM_"

// LoadConfig reads path by extension, applies BM_* env overrides and
// normalizes the result. An empty path yields defaults plus env.
//   - .yaml / .yml -> YAML
//   - .conf / other -> legacy "BeastMaster.Key = value" text format
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = cfg.loadYAML(path)
		default:
			err = cfg.loadLegacy(path)
		}
		if err != nil {
			return cfg, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("beastmaster: parse env: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps out-of-range values.
func (c *Config) Normalize() {
	if c.MinLevel < 0 || c.MinLevel > gamedb.MaxLevel {
		log.Printf("WARNING: beastmaster: MinLevel %d out of range, using %d", c.MinLevel, DefaultMinLevel)
		c.MinLevel = DefaultMinLevel
	}
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("beastmaster: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("beastmaster: parsing YAML %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadLegacy(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("beastmaster: reading %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '[' {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.Trim(strings.TrimSpace(val), `"`)
		if !strings.HasPrefix(key, "beastmaster.") {
			continue
		}

		switch strings.TrimPrefix(key, "beastmaster.") {
		case "enable":
			c.Enable = parseBool(val)
		case "announce":
			c.Announce = parseBool(val)
		case "hunteronly":
			c.HunterOnly = parseBool(val)
		case "allowexotic":
			c.AllowExotic = parseBool(val)
		case "keeppethappy":
			c.KeepPetHappy = parseBool(val)
		case "minlevel":
			c.MinLevel = atoi(val, c.MinLevel)
		case "hunterbeastmasteryrequired":
			c.HunterBeastMasteryRequired = parseBool(val)
		case "tracktamedpets":
			c.TrackTamedPets = parseBool(val)
		case "profanityfile":
			c.ProfanityFile = val
		case "pets":
			c.Pets = val
		case "exoticpets":
			c.ExoticPets = val
		case "rarepets":
			c.RarePets = val
		case "rareexoticpets":
			c.RareExoticPets = val
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("beastmaster: reading %s: %w", path, err)
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// ParseEntryList parses a comma separated list of creature entries.
// Tokens that are not numbers are skipped.
func ParseEntryList(csv string) map[uint32]bool {
	set := make(map[uint32]bool)
	for _, tok := range strings.Split(csv, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 32)
		if err != nil {
			continue
		}
		set[uint32(n)] = true
	}
	return set
}

// NamedEntry is one pair from a "Name,Id,Name,Id" list.
type NamedEntry struct {
	Name  string
	Entry uint32
}

// ParseNamedList parses a "Name,Id,Name,Id" list. It returns nil when the
// list holds no names, so plain entry lists are left to ParseEntryList.
func ParseNamedList(csv string) []NamedEntry {
	if !hasNames(csv) {
		return nil
	}
	var out []NamedEntry
	var name string
	for i, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if i%2 == 0 {
			name = tok
			continue
		}
		n, err := strconv.ParseUint(tok, 10, 32)
		if err != nil || name == "" {
			continue
		}
		out = append(out, NamedEntry{Name: name, Entry: uint32(n)})
	}
	return out
}

func hasNames(csv string) bool {
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, err := strconv.ParseUint(tok, 10, 32); err != nil {
			return true
		}
	}
	return false
}
