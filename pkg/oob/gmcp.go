package oob

import (
	"bytes"
	"encoding/json"

	"github.com/crystal-mush/beastmaster/pkg/events"
)

// GMCPPackage maps event types to GMCP package names.
func GMCPPackage(evType events.EventType) string {
	switch evType {
	case events.EvMenu:
		return "Beastmaster.Menu"
	case events.EvAdopt:
		return "Beastmaster.Adopt"
	case events.EvSummon, events.EvRename, events.EvDelete:
		return "Beastmaster.Tracked"
	case events.EvWhisper:
		return "Comm.Private.Text"
	case events.EvEmote:
		return "Comm.Room.Text"
	default:
		return ""
	}
}

// EncodeGMCP encodes an event as IAC SB GMCP <package> <json> IAC SE.
// Events without a package mapping encode to nil.
func EncodeGMCP(ev events.Event) []byte {
	pkg := GMCPPackage(ev.Type)
	if pkg == "" {
		return nil
	}
	data := make(map[string]any, len(ev.Data)+3)
	for k, v := range ev.Data {
		data[k] = v
	}
	data["event"] = ev.Type.String()
	if ev.Entry != 0 {
		data["entry"] = ev.Entry
	}
	if _, ok := data["text"]; !ok && ev.Text != "" {
		data["text"] = ev.Text
	}
	return EncodeGMCPMessage(pkg, data)
}

// EncodeGMCPMessage frames an arbitrary GMCP message.
func EncodeGMCPMessage(pkg string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	buf := make([]byte, 0, len(pkg)+len(payload)+6)
	buf = append(buf, IAC, SB, TeloptGMCP)
	buf = append(buf, pkg...)
	buf = append(buf, ' ')
	buf = append(buf, payload...)
	buf = append(buf, IAC, SE)
	return buf
}

// ParseGMCPMessage splits a client GMCP body into package and JSON.
func ParseGMCPMessage(data []byte) (pkg string, jsonData []byte) {
	if i := bytes.IndexByte(data, ' '); i >= 0 {
		return string(data[:i]), data[i+1:]
	}
	return string(data), nil
}

// ExtractGMCP removes GMCP subnegotiations from a line of client input and
// returns the remaining text and the message bodies found.
func ExtractGMCP(line []byte) ([]byte, [][]byte) {
	start := []byte{IAC, SB, TeloptGMCP}
	end := []byte{IAC, SE}
	var msgs [][]byte
	for {
		i := bytes.Index(line, start)
		if i < 0 {
			return line, msgs
		}
		j := bytes.Index(line[i+len(start):], end)
		if j < 0 {
			return line[:i], msgs
		}
		body := line[i+len(start) : i+len(start)+j]
		msgs = append(msgs, append([]byte(nil), body...))
		rest := line[i+len(start)+j+len(end):]
		line = append(append([]byte(nil), line[:i]...), rest...)
	}
}
