package server

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/oob"
	"github.com/google/uuid"
)

// writeTimeout bounds a single write to a slow client.
const writeTimeout = 5 * time.Second

// TransportType identifies how a Descriptor reaches its client.
type TransportType int

const (
	TransportTCP       TransportType = iota // telnet line mode
	TransportWebSocket                      // JSON frames
)

var transportNames = [...]string{TransportTCP: "tcp", TransportWebSocket: "websocket"}

func (t TransportType) String() string {
	if int(t) < len(transportNames) {
		return transportNames[t]
	}
	return "unknown"
}

// ConnState is where a connection is in the login flow.
type ConnState int

const (
	ConnLogin     ConnState = iota // at the welcome screen
	ConnConnected                  // playing a character
)

// Descriptor is one client connection. It subscribes to the event bus for
// its character once logged in.
type Descriptor struct {
	ID        string
	Conn      net.Conn
	State     ConnState
	Player    uint64 // character GUID once logged in
	Addr      string
	ConnTime  time.Time
	Retries   int
	Transport TransportType
	OOB       *oob.Capabilities // nil unless the client agreed to GMCP or MSSP

	// SendFunc and ReceiveFunc replace the telnet writers, e.g. for WebSocket
	// clients and tests.
	SendFunc    func(msg string)
	ReceiveFunc func(ev events.Event)

	mu        sync.Mutex
	closed    bool
	lastInput time.Time
	commands  int
}

// NewDescriptor wraps conn with a fresh session id.
func NewDescriptor(conn net.Conn, retries int) *Descriptor {
	d := &Descriptor{
		ID:       uuid.NewString(),
		Conn:     conn,
		Addr:     "internal",
		ConnTime: time.Now(),
		Retries:  retries,
	}
	d.lastInput = d.ConnTime
	if conn != nil {
		if ra := conn.RemoteAddr(); ra != nil {
			d.Addr = ra.String()
		}
	}
	return d
}

// Touch records input from the client at t. A command also bumps the
// command counter.
func (d *Descriptor) Touch(t time.Time, command bool) {
	d.mu.Lock()
	d.lastInput = t
	if command {
		d.commands++
	}
	d.mu.Unlock()
}

// Idle returns how long the client has been silent as of now.
func (d *Descriptor) Idle(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return now.Sub(d.lastInput)
}

// Commands returns how many commands the client has sent.
func (d *Descriptor) Commands() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands
}

// Send writes one line of text, adding CRLF when the line has no newline.
func (d *Descriptor) Send(msg string) {
	if d.SendFunc != nil {
		d.SendFunc(msg)
		return
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\r\n"
	}
	d.write([]byte(msg))
}

// SendRaw writes b unmodified. It is used for telnet subnegotiations.
func (d *Descriptor) SendRaw(b []byte) {
	d.write(b)
}

func (d *Descriptor) write(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.Conn == nil {
		return
	}
	d.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	d.Conn.Write(b)
}

// Close hangs up. Calling it again does nothing.
func (d *Descriptor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.Conn != nil {
		d.Conn.Close()
	}
}

// IsClosed reports whether Close has been called.
func (d *Descriptor) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Closed implements events.Subscriber.
func (d *Descriptor) Closed() bool { return d.IsClosed() }

// Receive implements events.Subscriber. GMCP clients get a structured copy
// of the events they asked for; the text line goes out only for events
// that carry player-facing text.
func (d *Descriptor) Receive(ev events.Event) {
	if d.ReceiveFunc != nil {
		d.ReceiveFunc(ev)
		return
	}
	if d.OOB.Wants(oob.GMCPPackage(ev.Type)) {
		if b := oob.EncodeGMCP(ev); b != nil {
			d.SendRaw(b)
		}
	}
	if ev.Text != "" && printable(ev.Type) {
		d.Send(ev.Text)
	}
}

func printable(t events.EventType) bool {
	switch t {
	case events.EvText, events.EvWhisper, events.EvSystem, events.EvMenu, events.EvEmote:
		return true
	}
	return false
}
