package oob

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/events"
)

func TestGMCPPackageMapping(t *testing.T) {
	tests := []struct {
		evType events.EventType
		want   string
	}{
		{events.EvMenu, "Beastmaster.Menu"},
		{events.EvAdopt, "Beastmaster.Adopt"},
		{events.EvSummon, "Beastmaster.Tracked"},
		{events.EvRename, "Beastmaster.Tracked"},
		{events.EvDelete, "Beastmaster.Tracked"},
		{events.EvWhisper, "Comm.Private.Text"},
		{events.EvEmote, "Comm.Room.Text"},
		{events.EvText, ""},
		{events.EvSystem, ""},
		{events.EvReload, ""},
	}
	for _, tt := range tests {
		if got := GMCPPackage(tt.evType); got != tt.want {
			t.Errorf("GMCPPackage(%v) = %q, want %q", tt.evType, got, tt.want)
		}
	}
}

func decodeGMCP(t *testing.T, buf []byte) (string, map[string]any) {
	t.Helper()
	if len(buf) < 5 || buf[0] != IAC || buf[1] != SB || buf[2] != TeloptGMCP {
		t.Fatalf("bad GMCP prefix: %v", buf)
	}
	if buf[len(buf)-2] != IAC || buf[len(buf)-1] != SE {
		t.Fatalf("bad GMCP suffix: %v", buf)
	}
	pkg, body := ParseGMCPMessage(buf[3 : len(buf)-2])
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		t.Fatalf("GMCP JSON invalid: %v", err)
	}
	return pkg, data
}

func TestEncodeGMCP(t *testing.T) {
	ev := events.Event{
		Type:   events.EvAdopt,
		Player: 7,
		Entry:  1126,
		Text:   "A fine choice Rexxar! Take good care of your Timber Wolf...",
		Data:   map[string]any{"name": "Timber Wolf", "rarity": "normal"},
	}
	pkg, data := decodeGMCP(t, EncodeGMCP(ev))
	if pkg != "Beastmaster.Adopt" {
		t.Errorf("package = %q", pkg)
	}
	if data["name"] != "Timber Wolf" || data["entry"] != float64(1126) || data["event"] != "adopt" {
		t.Errorf("data = %v", data)
	}
	if !strings.HasPrefix(data["text"].(string), "A fine choice") {
		t.Errorf("text = %v", data["text"])
	}
	if _, ok := ev.Data["event"]; ok {
		t.Error("EncodeGMCP modified the event's data")
	}
}

func TestEncodeGMCPNoMapping(t *testing.T) {
	if buf := EncodeGMCP(events.Event{Type: events.EvText, Text: "hello"}); buf != nil {
		t.Error("expected nil for event with no GMCP mapping")
	}
}

func TestParseGMCPMessage(t *testing.T) {
	pkg, body := ParseGMCPMessage([]byte(`Core.Hello {"client":"Mudlet"}`))
	if pkg != "Core.Hello" || string(body) != `{"client":"Mudlet"}` {
		t.Errorf("got %q %q", pkg, body)
	}
	pkg, body = ParseGMCPMessage([]byte("Core.Ping"))
	if pkg != "Core.Ping" || body != nil {
		t.Errorf("got %q %q", pkg, body)
	}
}

func TestExtractGMCP(t *testing.T) {
	msg := EncodeGMCPMessage("Core.Supports.Set", []string{"Beastmaster 1"})
	line := append([]byte("ta"), msg...)
	line = append(line, "lk"...)
	line = append(line, EncodeGMCPMessage("Core.Ping", nil)...)

	text, msgs := ExtractGMCP(line)
	if string(text) != "talk" {
		t.Errorf("text = %q", text)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if pkg, body := ParseGMCPMessage(msgs[0]); pkg != "Core.Supports.Set" || string(body) != `["Beastmaster 1"]` {
		t.Errorf("first message = %q %q", pkg, body)
	}

	// An unterminated subnegotiation is dropped.
	text, msgs = ExtractGMCP([]byte{'h', 'i', IAC, SB, TeloptGMCP, 'C'})
	if string(text) != "hi" || len(msgs) != 0 {
		t.Errorf("unterminated: %q %d", text, len(msgs))
	}
}

func TestCapabilitiesWants(t *testing.T) {
	caps := NewCapabilities()
	if caps.HasAny() || caps.Wants("Beastmaster.Menu") {
		t.Error("nothing negotiated yet")
	}
	caps.GMCP = true
	if !caps.Wants("Comm.Private.Text") {
		t.Error("client without Core.Supports.Set should get everything")
	}
	if err := caps.SetSupports([]byte(`["Beastmaster 1", "Char 1"]`)); err != nil {
		t.Fatalf("SetSupports: %v", err)
	}
	if !caps.Wants("Beastmaster.Tracked") || caps.Wants("Comm.Room.Text") {
		t.Error("package filter not applied")
	}
	if err := caps.SetSupports([]byte(`not json`)); err == nil {
		t.Error("bad payload accepted")
	}
}

func TestEncodeMSSP(t *testing.T) {
	buf := EncodeMSSP(map[string]string{"PLAYERS": "3", "NAME": "Wildlands"})
	want := []byte{IAC, SB, TeloptMSSP}
	want = append(want, MSSPVar)
	want = append(want, "NAME"...)
	want = append(want, MSSPVal)
	want = append(want, "Wildlands"...)
	want = append(want, MSSPVar)
	want = append(want, "PLAYERS"...)
	want = append(want, MSSPVal)
	want = append(want, '3', IAC, SE)
	if !bytes.Equal(buf, want) {
		t.Errorf("EncodeMSSP = %v, want %v", buf, want)
	}
}

func TestNegotiate(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		offer := make([]byte, 6)
		if _, err := io.ReadFull(client, offer); err != nil {
			return
		}
		client.Write([]byte{IAC, DO, TeloptGMCP, IAC, DONT, TeloptMSSP})
	}()

	caps := Negotiate(server, 2*time.Second)
	if !caps.GMCP || caps.MSSP {
		t.Errorf("caps = gmcp %v mssp %v", caps.GMCP, caps.MSSP)
	}
}

func TestNegotiateTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	go io.Copy(io.Discard, client)

	start := time.Now()
	caps := Negotiate(server, 50*time.Millisecond)
	if caps.HasAny() {
		t.Error("silent client should negotiate nothing")
	}
	if time.Since(start) > time.Second {
		t.Error("negotiation did not honor its timeout")
	}
}
