package server

import (
	"log"
	"sync/atomic"

	"github.com/crystal-mush/beastmaster/pkg/events"
)

var debugMode atomic.Bool

// SetDebug turns verbose tracing on or off (-debug, REALM_DEBUG).
func SetDebug(on bool) {
	if debugMode.Swap(on) != on && on {
		log.Printf("[DEBUG] tracing enabled")
	}
}

// DebugLog logs like log.Printf, but only while tracing is on.
func DebugLog(format string, args ...any) {
	if debugMode.Load() {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// tracedEvents are the bus events worth a trace line. Plain text and menus
// already show up in the command trace.
var tracedEvents = []events.EventType{
	events.EvWhisper, events.EvSystem, events.EvEmote,
	events.EvAdopt, events.EvSummon, events.EvRename, events.EvDelete, events.EvReload,
}

// eventTracer logs bus traffic while tracing is on.
type eventTracer struct{}

func (eventTracer) Receive(ev events.Event) {
	DebugLog("event %s player=%d source=%d entry=%d text=%q", ev.Type, ev.Player, ev.Source, ev.Entry, ev.Text)
}

func (eventTracer) Closed() bool { return false }
