// Package profanity holds the word list used to reject custom pet names.
package profanity

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Filter is a reloadable list of forbidden substrings.
type Filter struct {
	mu    sync.RWMutex
	path  string
	words []string
}

// New returns a filter backed by path. The list is not read until Load.
// An empty path yields a filter that never matches.
func New(path string) *Filter {
	return &Filter{path: path}
}

// Load reads the word list from disk. A missing file disables the filter.
func (f *Filter) Load() error {
	if f.path == "" {
		return nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.set(nil)
			log.Printf("profanity: %s not found, name filter disabled", f.path)
			return nil
		}
		return fmt.Errorf("profanity: open %s: %w", f.path, err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w == "" {
			continue
		}
		words = append(words, w)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("profanity: read %s: %w", f.path, err)
	}
	f.set(words)
	log.Printf("profanity: loaded %d words from %s", len(words), f.path)
	return nil
}

func (f *Filter) set(words []string) {
	f.mu.Lock()
	f.words = words
	f.mu.Unlock()
}

// Len returns the number of loaded words.
func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.words)
}

// IsProfane reports whether name contains any listed word, ignoring case.
func (f *Filter) IsProfane(name string) bool {
	lower := strings.ToLower(name)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, w := range f.words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// Watch reloads the list whenever the file is written or recreated, until
// ctx is cancelled. The parent directory is watched so editors that replace
// the file are still seen.
func (f *Filter) Watch(ctx context.Context) error {
	if f.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("profanity: start watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("profanity: watch %s: %w", dir, err)
	}
	base := filepath.Base(f.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if err := f.Load(); err != nil {
					log.Printf("WARNING: profanity: reload failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("profanity: watcher error: %v", err)
			}
		}
	}()
	log.Printf("profanity: watching %s for changes", f.path)
	return nil
}
