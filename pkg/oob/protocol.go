// Package oob implements the telnet out-of-band protocols the realm
// speaks to MUD clients: GMCP for structured Beastmaster events and
// MSSP for crawler statistics.
package oob

import (
	"encoding/json"
	"strings"
	"sync"
)

// Capabilities records what a telnet connection negotiated.
type Capabilities struct {
	GMCP bool
	MSSP bool

	mu       sync.RWMutex
	packages map[string]bool // GMCP roots from Core.Supports.Set; empty means all
}

// NewCapabilities returns capabilities with nothing negotiated.
func NewCapabilities() *Capabilities {
	return &Capabilities{packages: make(map[string]bool)}
}

// HasAny reports whether any protocol was negotiated.
func (c *Capabilities) HasAny() bool {
	return c.GMCP || c.MSSP
}

// SetSupports applies a Core.Supports.Set payload such as
// ["Beastmaster 1", "Comm 1"]. Later calls replace earlier ones.
func (c *Capabilities) SetSupports(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	pkgs := make(map[string]bool, len(list))
	for _, item := range list {
		name, _, _ := strings.Cut(strings.TrimSpace(item), " ")
		if name != "" {
			pkgs[strings.ToLower(name)] = true
		}
	}
	c.mu.Lock()
	c.packages = pkgs
	c.mu.Unlock()
	return nil
}

// Wants reports whether the client accepts GMCP package pkg. A client
// that never sent Core.Supports.Set gets everything.
func (c *Capabilities) Wants(pkg string) bool {
	if c == nil || !c.GMCP {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.packages) == 0 {
		return true
	}
	root, _, _ := strings.Cut(pkg, ".")
	return c.packages[strings.ToLower(root)]
}
