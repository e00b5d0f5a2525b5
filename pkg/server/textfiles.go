package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Text file names served at points of the connection lifecycle.
const (
	TextConnect = "connect.txt" // welcome screen, before login
	TextMotd    = "motd.txt"    // after login
	TextNewChar = "newchar.txt" // after character creation
	TextQuit    = "quit.txt"    // on quit
)

var trackedFiles = map[string]string{
	TextConnect: "welcome screen",
	TextMotd:    "message of the day",
	TextNewChar: "new character greeting",
	TextQuit:    "quit message",
}

// TextFiles caches the realm's text files. A nil *TextFiles serves
// nothing, so callers fall back to built-in text.
type TextFiles struct {
	dir   string
	mu    sync.RWMutex
	texts map[string]string
}

// LoadTextFiles reads the tracked files from dir. Missing files are empty.
func LoadTextFiles(dir string) *TextFiles {
	tf := &TextFiles{dir: dir}
	n := tf.Reload()
	log.Printf("Loaded %d text files from %s", n, dir)
	return tf
}

// Reload re-reads every tracked file and returns how many are non-empty.
func (tf *TextFiles) Reload() int {
	texts := make(map[string]string, len(trackedFiles))
	for name := range trackedFiles {
		data, err := os.ReadFile(filepath.Join(tf.dir, name))
		if err != nil {
			continue
		}
		if s := strings.TrimRight(string(data), "\r\n"); s != "" {
			texts[name] = s
		}
	}
	tf.mu.Lock()
	tf.texts = texts
	tf.mu.Unlock()
	return len(texts)
}

// Get returns the cached contents of name, or "".
func (tf *TextFiles) Get(name string) string {
	if tf == nil {
		return ""
	}
	tf.mu.RLock()
	defer tf.mu.RUnlock()
	return tf.texts[name]
}

// Watch reloads the cache whenever a tracked file changes, until ctx ends.
func (tf *TextFiles) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("server: text watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(tf.dir); err != nil {
		return fmt.Errorf("server: watch %s: %w", tf.dir, err)
	}
	log.Printf("Watching text directory for changes: %s", tf.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			desc, tracked := trackedFiles[name]
			if !tracked {
				continue
			}
			tf.Reload()
			log.Printf("Text file changed: %s (%s), reloaded", name, desc)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("WARNING: text watcher: %v", err)
		}
	}
}

// welcomeScreen is shown to new connections.
func (g *Game) welcomeScreen() string {
	if s := g.Texts.Get(TextConnect); s != "" {
		return s
	}
	return g.Conf.WelcomeText
}

// quitText is sent before a character disconnects.
func (g *Game) quitText() string {
	if s := g.Texts.Get(TextQuit); s != "" {
		return s
	}
	return "Goodbye!"
}
