package server

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed helptext/help.txt
var defaultHelp string

// HelpFile holds help entries parsed from a text file. Each entry starts
// with a line "& topic"; consecutive topic lines share one body.
type HelpFile struct {
	Entries map[string]string // lowercase topic -> text
}

// ParseHelp reads help entries from r.
func ParseHelp(r io.Reader) (*HelpFile, error) {
	hf := &HelpFile{Entries: make(map[string]string)}
	var topics []string
	var buf strings.Builder

	flush := func() {
		text := strings.TrimRight(buf.String(), "\n ")
		for _, t := range topics {
			hf.Entries[strings.ToLower(t)] = text
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "& ") {
			topic := strings.TrimSpace(line[2:])
			if buf.Len() == 0 && len(topics) > 0 {
				topics = append(topics, topic)
				continue
			}
			flush()
			topics = []string{topic}
			buf.Reset()
			continue
		}
		if len(topics) > 0 {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("server: help: %w", err)
	}
	flush()
	return hf, nil
}

// LoadHelpFile parses the help file at path.
func LoadHelpFile(p string) (*HelpFile, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("server: help: %w", err)
	}
	defer f.Close()
	return ParseHelp(f)
}

// DefaultHelp returns the built-in help entries.
func DefaultHelp() *HelpFile {
	hf, err := ParseHelp(strings.NewReader(defaultHelp))
	if err != nil {
		log.Printf("WARNING: built-in help: %v", err)
		return &HelpFile{Entries: map[string]string{}}
	}
	return hf
}

// Lookup finds an entry by exact topic, then by the shortest topic that
// starts with it ("help sta" finds "stable"). Patterns with * or ? list
// the matching topics.
func (hf *HelpFile) Lookup(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		topic = "help"
	}

	if strings.ContainsAny(topic, "*?") {
		var matches []string
		for key := range hf.Entries {
			if ok, _ := path.Match(topic, key); ok {
				matches = append(matches, key)
			}
		}
		if len(matches) == 0 {
			return ""
		}
		sort.Strings(matches)
		return fmt.Sprintf("Topics matching '%s':\n  %s", topic, strings.Join(matches, "  "))
	}

	if text, ok := hf.Entries[topic]; ok {
		return text
	}
	var best string
	for key := range hf.Entries {
		if strings.HasPrefix(key, topic) && (best == "" || len(key) < len(best) || (len(key) == len(best) && key < best)) {
			best = key
		}
	}
	if best != "" {
		return hf.Entries[best]
	}
	return ""
}

// LoadHelp sets g.Help from file, or the built-in entries when file is empty.
func (g *Game) LoadHelp(file string) error {
	if file == "" {
		g.Help = DefaultHelp()
		return nil
	}
	hf, err := LoadHelpFile(file)
	if err != nil {
		return err
	}
	log.Printf("Loaded help file %s: %d entries", file, len(hf.Entries))
	g.Help = hf
	return nil
}
