package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/acme/autocert"
)

// WebServer provides HTTP/WebSocket transport alongside the TCP game server.
type WebServer struct {
	game      *Game
	router    chi.Router
	httpSrv   *http.Server
	auth      *AuthService
	rl        *rateLimiter
	upgrader  websocket.Upgrader
	metrics   *Metrics
	startTime time.Time
}

// NewWebServer creates a web server bound to the game. A nil metrics uses
// the game's, creating them if needed.
func NewWebServer(game *Game, metrics *Metrics) *WebServer {
	conf := game.Conf
	if metrics == nil {
		metrics = game.Metrics
	}
	if metrics == nil {
		metrics = NewMetrics(game)
	}

	ws := &WebServer{
		game:      game,
		auth:      NewAuthService(game, conf.JWTSecret, conf.JWTExpiry),
		rl:        newRateLimiter(conf.WebRateLimit),
		metrics:   metrics,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(conf.WebCORSOrigins, origin)
			},
		},
	}
	ws.router = ws.routes()
	ws.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.WebHost, conf.WebPort),
		Handler: ws.router,
	}
	return ws
}

// Handler returns the router, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Auth returns the auth service.
func (ws *WebServer) Auth() *AuthService { return ws.auth }

// routes sets up all HTTP routes.
func (ws *WebServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware(ws.game.Conf.WebCORSOrigins))

	r.Get("/health", ws.handleHealth)
	r.Method(http.MethodGet, "/metrics", ws.metrics.Handler())
	r.Get("/ws", ws.handleWebSocket)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware(ws.rl))
		api.Post("/auth/login", ws.handleAuthLogin)
		api.Post("/auth/refresh", ws.handleAuthRefresh)
		api.Get("/catalog/{category}", ws.handleCatalog)
		api.With(requireAuth(ws.auth)).Get("/me", ws.handleMe)
		api.With(requireAuth(ws.auth)).Get("/stats", ws.handleStats)
	})
	return r
}

// Start begins listening. With WebTLS set it serves HTTPS, falling back to
// plain HTTP when no certificate can be set up.
func (ws *WebServer) Start() error {
	// Rate limiter cleanup goroutine
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ws.rl.cleanup()
		}
	}()

	var err error
	if ws.game.Conf.WebTLS {
		res, tlsErr := SetupTLS(ws.game.Conf)
		if tlsErr != nil {
			log.Printf("WARNING: web: TLS setup failed (%v), falling back to HTTP", tlsErr)
		} else {
			ws.httpSrv.TLSConfig = res.Config
			if res.Manager != nil {
				go ws.serveACME(res.Manager)
			}
			log.Printf("web: listening on %s (HTTPS)", ws.httpSrv.Addr)
			err = ws.httpSrv.ListenAndServeTLS("", "")
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	}

	log.Printf("web: listening on %s (HTTP)", ws.httpSrv.Addr)
	err = ws.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// serveACME answers Let's Encrypt HTTP-01 challenges on :80 and redirects
// everything else to HTTPS.
func (ws *WebServer) serveACME(m *autocert.Manager) {
	srv := &http.Server{Addr: ":80", Handler: m.HTTPHandler(nil)}
	log.Printf("web: ACME challenge listener on :80")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("WARNING: web: ACME listener: %v", err)
	}
}

// Stop gracefully shuts down the web server.
func (ws *WebServer) Stop(ctx context.Context) error {
	return ws.httpSrv.Shutdown(ctx)
}

// --- WebSocket Handler ---

// WSMessage is the JSON message format for WebSocket communication.
type WSMessage struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Command string         `json:"command,omitempty"`
}

// handleWebSocket upgrades an HTTP connection to a WebSocket and creates
// a Descriptor for the client. A valid token logs the character in at once.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *Claims
	if token := bearerToken(r); token != "" {
		var err error
		claims, err = ws.auth.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	d, wc := newWSDescriptor(conn, r.RemoteAddr, ws.game.Conf.MaxRetries)
	ws.game.Conns.Add(d)

	if claims != nil {
		c, err := ws.game.Store.GetCharacter(claims.Character)
		if err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "Character not found"})
			ws.game.Conns.Remove(d)
			conn.Close()
			return
		}
		ws.game.Do(func() {
			if live, ok := ws.game.Online(c.GUID); ok {
				c = live
			}
			wc.sendJSON(WSMessage{Type: "login", Data: map[string]any{"char_guid": c.GUID, "char_name": c.Name}})
			ws.game.Connect(d, c)
		})
	} else {
		wc.sendJSON(WSMessage{Type: "welcome", Text: `Connected. Send {"type":"login","command":"connect name password"} to authenticate.`})
	}

	go ws.readLoop(d, wc)
}

// wsConn holds the WebSocket connection and its write mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	wc.conn.WriteJSON(msg)
}

// newWSDescriptor creates a Descriptor whose output is JSON on conn.
func newWSDescriptor(conn *websocket.Conn, addr string, retries int) (*Descriptor, *wsConn) {
	wc := &wsConn{conn: conn}
	d := NewDescriptor(nil, retries)
	d.Addr = addr
	d.Transport = TransportWebSocket
	d.SendFunc = func(msg string) {
		wc.sendJSON(WSMessage{Type: "text", Text: msg})
	}
	d.ReceiveFunc = func(ev events.Event) {
		wc.sendJSON(WSMessage{Type: ev.Type.String(), Text: ev.Text, Data: eventData(ev)})
	}
	return d, wc
}

// eventData merges the event's routing fields into its data map.
func eventData(ev events.Event) map[string]any {
	if ev.Data == nil && ev.Source == 0 && ev.Entry == 0 {
		return nil
	}
	out := make(map[string]any, len(ev.Data)+2)
	for k, v := range ev.Data {
		out[k] = v
	}
	if ev.Source != 0 {
		out["source"] = ev.Source
	}
	if ev.Entry != 0 {
		out["entry"] = ev.Entry
	}
	return out
}

func (ws *WebServer) readLoop(d *Descriptor, wc *wsConn) {
	defer func() {
		ws.game.Do(func() { ws.game.Disconnect(d) })
		ws.game.Conns.Remove(d)
		d.Close()
		wc.conn.Close()
		log.Printf("[ws:%s] WebSocket closed from %s", d.ID, d.Addr)
	}()

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws:%s] read error: %v", d.ID, err)
			}
			return
		}
		d.Touch(time.Now(), false)

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "Invalid JSON message"})
			continue
		}

		switch msg.Type {
		case "login":
			ws.game.HandleLogin(d, msg.Command)
		case "command":
			if d.State == ConnLogin {
				ws.game.HandleLogin(d, msg.Command)
			} else {
				d.Touch(time.Now(), true)
				ws.game.Do(func() { DispatchCommand(ws.game, d, msg.Command) })
			}
		default:
			wc.sendJSON(WSMessage{Type: "error", Text: fmt.Sprintf("Unknown message type: %s", msg.Type)})
		}
		if d.IsClosed() {
			return
		}
	}
}

// --- HTTP Handlers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		if !errors.Is(err, ErrBadCredentials) {
			log.Printf("WARNING: web: login %q: %v", req.Name, err)
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (ws *WebServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	newToken, err := ws.auth.RefreshToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": newToken})
}

type catalogPet struct {
	Entry  uint32 `json:"entry"`
	Name   string `json:"name"`
	Family uint32 `json:"family"`
	Rarity string `json:"rarity"`
}

func (ws *WebServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if ws.game.Module == nil {
		writeError(w, http.StatusServiceUnavailable, "beastmaster disabled")
		return
	}
	name := chi.URLParam(r, "category")
	for _, cat := range gamedb.Categories {
		if cat.String() != name {
			continue
		}
		pets := ws.game.Module.Pets(cat)
		out := make([]catalogPet, 0, len(pets))
		for _, p := range pets {
			out = append(out, catalogPet{Entry: p.Entry, Name: p.Name, Family: p.Family, Rarity: p.Rarity})
		}
		writeJSON(w, http.StatusOK, map[string]any{"category": name, "pets": out})
		return
	}
	writeError(w, http.StatusNotFound, "unknown category")
}

func (ws *WebServer) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	c, err := ws.game.Store.GetCharacter(claims.Character)
	if err != nil {
		writeError(w, http.StatusNotFound, "character not found")
		return
	}
	resp := map[string]any{
		"guid":   c.GUID,
		"name":   c.Name,
		"class":  c.Class.String(),
		"level":  c.Level,
		"online": ws.game.Conns.IsConnected(c.GUID),
	}
	if c.Pet != nil {
		resp["pet"] = map[string]any{"entry": c.Pet.Entry, "name": c.Pet.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	var realm RealmStats
	if !ws.game.Do(func() { realm = ws.game.RealmStats() }) {
		writeError(w, http.StatusServiceUnavailable, "realm is shutting down")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Connections Tally        `json:"connections"`
		Memory      RuntimeStats `json:"memory"`
		Realm       RealmStats   `json:"realm"`
	}{ws.game.Conns.Tally(), readRuntimeStats(), realm})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	catalog := 0
	if ws.game.Module != nil {
		catalog = ws.game.Module.CatalogSize()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"module_enabled": ws.game.Module != nil,
		"catalog_pets":   catalog,
	})
}
