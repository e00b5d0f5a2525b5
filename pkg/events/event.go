package events

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText    EventType = iota // Raw text (universal fallback)
	EvWhisper                  // NPC whisper to one player
	EvSystem                   // System message
	EvMenu                     // Gossip menu sent
	EvEmote                    // NPC emote seen by bystanders
	EvAdopt                    // Pet adopted from the catalog
	EvSummon                   // Tracked pet summoned
	EvRename                   // Tracked pet renamed
	EvDelete                   // Tracked pet deleted
	EvReload                   // Catalog reloaded
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvWhisper:
		return "whisper"
	case EvSystem:
		return "system"
	case EvMenu:
		return "menu"
	case EvEmote:
		return "emote"
	case EvAdopt:
		return "adopt"
	case EvSummon:
		return "summon"
	case EvRename:
		return "rename"
	case EvDelete:
		return "delete"
	case EvReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Event is a structured event that flows through the event bus.
// Telnet transports use Text; WebSocket clients get the full structure.
type Event struct {
	Type   EventType
	Player uint64         // Recipient (0 for broadcast)
	Source uint64         // Creature or player that generated the event
	Entry  uint32         // Pet entry, when the event concerns a pet
	Text   string         // Pre-formatted text
	Data   map[string]any // Structured data for JSON clients and metrics
}
