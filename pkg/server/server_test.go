package server

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/oob"
)

// pipeClient reads everything the server writes to one end of a pipe.
type pipeClient struct {
	conn net.Conn
	mu   sync.Mutex
	buf  bytes.Buffer
}

func newPipeClient(conn net.Conn) *pipeClient {
	c := &pipeClient{conn: conn}
	go func() {
		b := make([]byte, 1024)
		for {
			n, err := conn.Read(b)
			if err != nil {
				return
			}
			c.mu.Lock()
			c.buf.Write(b[:n])
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *pipeClient) waitFor(t *testing.T, want []byte) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		found := bytes.Contains(c.buf.Bytes(), want)
		c.mu.Unlock()
		if found {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Fatalf("never received %q; got %q", want, c.buf.String())
}

func (c *pipeClient) send(t *testing.T, b []byte) {
	t.Helper()
	if _, err := c.conn.Write(b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestTelnetSessionWithOOB(t *testing.T) {
	env := newTestEnv(t, nil)
	env.game.Conf.OOBNegotiate = true
	env.game.Conf.OOBTimeoutMs = 2000
	startLoop(t, env.game)
	s := NewServer(env.game)

	serverConn, clientConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		s.handleConnection(serverConn)
		close(done)
	}()
	client := newPipeClient(clientConn)

	client.waitFor(t, []byte{oob.IAC, oob.WILL, oob.TeloptGMCP, oob.IAC, oob.WILL, oob.TeloptMSSP})
	client.send(t, []byte{oob.IAC, oob.DO, oob.TeloptGMCP, oob.IAC, oob.DO, oob.TeloptMSSP})

	client.waitFor(t, append([]byte{oob.MSSPVar}, "NAME\x02Beastmaster Realm"...))
	client.waitFor(t, []byte("connect <name> <password>"))

	client.send(t, []byte("create Rexxar secret hunter\r\n"))
	client.waitFor(t, []byte("Welcome to Beastmaster Realm, Rexxar the Hunter!"))

	supports := oob.EncodeGMCPMessage("Core.Supports.Set", []string{"Beastmaster 1"})
	client.send(t, append(supports, "talk\r\n"...))
	client.waitFor(t, []byte("Browse Pets"))
	client.waitFor(t, append([]byte{oob.IAC, oob.SB, oob.TeloptGMCP}, "Beastmaster.Menu "...))

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handleConnection did not return after the client hung up")
	}
	if n := env.game.Conns.Count(); n != 0 {
		t.Errorf("connections after hangup = %d", n)
	}
}

func TestMSSPStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	s := NewServer(env.game)
	status := s.msspStatus()
	if status["NAME"] != "Beastmaster Realm" || status["PLAYERS"] != "0" || status["PORT"] != "6250" {
		t.Errorf("mssp = %v", status)
	}
	if !strings.HasPrefix(status["CODEBASE"], "Beastmaster Realm ") {
		t.Errorf("CODEBASE = %q", status["CODEBASE"])
	}
}
