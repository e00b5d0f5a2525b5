package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/boltstore"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"github.com/crystal-mush/beastmaster/pkg/oob"
)

// Server is the realm's TCP front end, optionally paired with the web server.
type Server struct {
	Conf      *RealmConf
	Game      *Game
	listener  net.Listener
	webServer *WebServer
	startTime time.Time
}

// NewServer creates a new server instance around a game.
func NewServer(game *Game) *Server {
	return &Server{Conf: game.Conf, Game: game, startTime: time.Now()}
}

// Start begins listening for connections. It blocks until every listener stops.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Conf.Port))
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	log.Printf("Listening on port %d", s.Conf.Port)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.acceptLoop(ln)
	}()

	if s.Conf.WebEnabled {
		s.webServer = NewWebServer(s.Game, nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.webServer.Start(); err != nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
	}

	wg.Wait()
	select {
	case err := <-errCh:
		return err
	default:
	}
	return nil
}

// acceptLoop accepts connections on the given listener until it is closed.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Stop closes all active listeners.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.webServer.Stop(ctx)
	}
}

// handleConnection manages a single client connection lifecycle.
func (s *Server) handleConnection(conn net.Conn) {
	d := NewDescriptor(conn, s.Conf.MaxRetries)
	s.Game.Conns.Add(d)
	log.Printf("[%s] New connection from %s", d.ID, d.Addr)

	defer func() {
		s.Game.Do(func() { s.Game.Disconnect(d) })
		s.Game.Conns.Remove(d)
		d.Close()
		log.Printf("[%s] Connection closed from %s", d.ID, d.Addr)
	}()

	if s.Conf.OOBNegotiate {
		caps := oob.Negotiate(conn, time.Duration(s.Conf.OOBTimeoutMs)*time.Millisecond)
		if caps.HasAny() {
			d.OOB = caps
		}
		if caps.MSSP {
			d.SendRaw(oob.EncodeMSSP(s.msspStatus()))
		}
	}
	d.Send(s.Game.welcomeScreen())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 8192), 8192)
	for scanner.Scan() {
		if d.IsClosed() {
			return
		}
		raw := scanner.Bytes()
		if d.OOB != nil {
			var msgs [][]byte
			raw, msgs = oob.ExtractGMCP(raw)
			s.handleGMCP(d, msgs)
		}
		line := strings.TrimRight(stripTelnet(string(raw)), "\r\n")
		if line == "" {
			continue
		}
		playing := d.State == ConnConnected
		d.Touch(time.Now(), playing)

		if !playing {
			s.Game.HandleLogin(d, line)
		} else {
			s.Game.Do(func() { DispatchCommand(s.Game, d, line) })
		}
		if d.IsClosed() {
			return
		}
	}
}

// handleGMCP applies client GMCP messages. Only Core.Supports.Set is acted on.
func (s *Server) handleGMCP(d *Descriptor, msgs [][]byte) {
	for _, msg := range msgs {
		pkg, body := oob.ParseGMCPMessage(msg)
		DebugLog("[%s] gmcp %s %s", d.ID, pkg, body)
		if pkg != "Core.Supports.Set" {
			continue
		}
		if err := d.OOB.SetSupports(body); err != nil {
			log.Printf("WARNING: [%s] bad Core.Supports.Set: %v", d.ID, err)
		}
	}
}

// msspStatus is the MSSP table sent to crawlers.
func (s *Server) msspStatus() map[string]string {
	return map[string]string{
		"NAME":     s.Conf.RealmName,
		"PLAYERS":  strconv.Itoa(len(s.Game.Conns.ConnectedPlayers())),
		"UPTIME":   strconv.FormatInt(s.startTime.Unix(), 10),
		"CODEBASE": VersionString(),
		"PORT":     strconv.Itoa(s.Conf.Port),
	}
}

// HandleLogin processes pre-login commands. Password hashing runs on the
// caller's goroutine; the login itself is handed to the game loop.
func (g *Game) HandleLogin(d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	switch strings.ToUpper(input) {
	case "QUIT":
		d.Send(g.quitText())
		d.Close()
		return
	case "WHO":
		g.Do(func() { d.Send(g.whoListing()) })
		return
	}

	command, user, password, rest := ParseConnect(input)
	switch {
	case strings.HasPrefix(command, "co"):
		g.handleConnect(d, user, password)
	case strings.HasPrefix(command, "cr"):
		g.handleCreate(d, user, password, rest)
	default:
		d.Send("Commands: connect, create, WHO, QUIT")
	}
}

func (g *Game) handleConnect(d *Descriptor, user, password string) {
	if user == "" {
		d.Send("Usage: connect <name> <password>")
		return
	}
	c, err := g.Authenticate(user, password)
	if err != nil {
		if !errors.Is(err, ErrBadCredentials) {
			log.Printf("WARNING: [%s] login lookup failed: %v", d.ID, err)
		}
		d.Send("Either that player does not exist, or has a different password.")
		d.Retries--
		if d.Retries <= 0 {
			d.Send("Too many failed attempts. Disconnecting.")
			d.Close()
		}
		return
	}
	g.Do(func() {
		// An already-online character keeps its live state.
		if live, ok := g.Online(c.GUID); ok {
			c = live
		}
		g.Connect(d, c)
	})
}

func (g *Game) handleCreate(d *Descriptor, user, password, rest string) {
	if user == "" || password == "" {
		d.Send("Usage: create <name> <password> <class> [level]")
		return
	}
	class, level, err := parseCreateArgs(rest, g.Conf.StartLevel)
	if err != nil {
		d.Send(strings.ToUpper(err.Error()[:1]) + err.Error()[1:] + ".")
		return
	}
	c, err := g.CreateCharacter(user, password, class, level)
	switch {
	case errors.Is(err, boltstore.ErrNameTaken):
		d.Send("That name is already taken.")
		return
	case errors.Is(err, ErrBadName):
		d.Send("That name is not allowed. Use 2-12 letters.")
		return
	case err != nil:
		log.Printf("WARNING: [%s] create character %q: %v", d.ID, user, err)
		d.Send("Character creation failed.")
		return
	}
	log.Printf("[%s] New %s %s(%d) created from %s", d.ID, c.Class, c.Name, c.GUID, d.Addr)
	d.Send(fmt.Sprintf("Welcome to %s, %s the %s!", g.Conf.RealmName, c.Name, classTitle(c.Class)))
	if greet := g.Texts.Get(TextNewChar); greet != "" {
		d.Send(greet)
	}
	g.Do(func() { g.Connect(d, c) })
}

func classTitle(c gamedb.Class) string {
	s := c.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// stripTelnet drops telnet commands, subnegotiations and control bytes
// from a line of input, keeping tabs.
func stripTelnet(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == oob.IAC && i+1 < len(s) && s[i+1] == oob.SB:
			end := strings.Index(s[i:], string([]byte{oob.IAC, oob.SE}))
			if end < 0 {
				return buf.String()
			}
			i += end + 1
		case c == oob.IAC && i+1 < len(s) && s[i+1] >= oob.WILL && s[i+1] <= oob.DONT:
			i += 2 // IAC WILL/WONT/DO/DONT option
		case c == oob.IAC:
			i++
		case c < ' ' && c != '\t':
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
