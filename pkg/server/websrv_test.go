package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"github.com/gorilla/websocket"
)

type webEnv struct {
	*testEnv
	web *WebServer
	srv *httptest.Server
}

func newWebEnv(t *testing.T) *webEnv {
	t.Helper()
	env := newTestEnv(t, nil)
	env.game.Conf.JWTSecret = "test-secret"
	if _, err := env.game.CreateCharacter("Rexxar", "secret", gamedb.ClassHunter, 20); err != nil {
		t.Fatalf("CreateCharacter: %v", err)
	}
	web := NewWebServer(env.game, nil)
	srv := httptest.NewServer(web.Handler())
	t.Cleanup(srv.Close)
	return &webEnv{testEnv: env, web: web, srv: srv}
}

func (w *webEnv) do(t *testing.T, method, path, token, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, w.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func (w *webEnv) token(t *testing.T) string {
	t.Helper()
	status, body := w.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"name":"Rexxar","password":"secret"}`)
	if status != http.StatusOK {
		t.Fatalf("login status = %d: %s", status, body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login body = %s", body)
	}
	return resp.Token
}

func TestHealth(t *testing.T) {
	w := newWebEnv(t)
	status, body := w.do(t, http.MethodGet, "/health", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" || resp["module_enabled"] != true || resp["catalog_pets"] != float64(3) {
		t.Errorf("health = %v", resp)
	}
}

func TestAuthLoginAndMe(t *testing.T) {
	w := newWebEnv(t)

	status, _ := w.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"name":"Rexxar","password":"wrong"}`)
	if status != http.StatusUnauthorized {
		t.Errorf("bad password status = %d", status)
	}
	status, _ = w.do(t, http.MethodPost, "/api/v1/auth/login", "", `not json`)
	if status != http.StatusBadRequest {
		t.Errorf("bad body status = %d", status)
	}

	token := w.token(t)
	claims, err := w.web.Auth().ValidateToken(token)
	if err != nil || claims.Name != "Rexxar" || claims.Class != "hunter" || claims.ID == "" || claims.Issuer != tokenIssuer {
		t.Fatalf("claims = %+v, %v", claims, err)
	}

	if status, _ := w.do(t, http.MethodGet, "/api/v1/me", "", ""); status != http.StatusUnauthorized {
		t.Errorf("/me without token = %d", status)
	}
	if status, _ := w.do(t, http.MethodGet, "/api/v1/me", "garbage", ""); status != http.StatusUnauthorized {
		t.Errorf("/me with bad token = %d", status)
	}
	status, body := w.do(t, http.MethodGet, "/api/v1/me", token, "")
	if status != http.StatusOK {
		t.Fatalf("/me status = %d", status)
	}
	var me map[string]any
	json.Unmarshal([]byte(body), &me)
	if me["name"] != "Rexxar" || me["class"] != "hunter" || me["online"] != false {
		t.Errorf("/me = %v", me)
	}

	status, body = w.do(t, http.MethodPost, "/api/v1/auth/refresh", token, "")
	if status != http.StatusOK || !strings.Contains(body, "token") {
		t.Errorf("refresh = %d %s", status, body)
	}
	if status, _ := w.do(t, http.MethodPost, "/api/v1/auth/refresh", "", ""); status != http.StatusUnauthorized {
		t.Errorf("refresh without token = %d", status)
	}
}

func TestCatalog(t *testing.T) {
	w := newWebEnv(t)

	status, body := w.do(t, http.MethodGet, "/api/v1/catalog/rare", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var resp struct {
		Category string       `json:"category"`
		Pets     []catalogPet `json:"pets"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Category != "rare" || len(resp.Pets) != 1 || resp.Pets[0].Name != "Echeyakee" {
		t.Errorf("catalog = %+v", resp)
	}

	if status, _ := w.do(t, http.MethodGet, "/api/v1/catalog/legendary", "", ""); status != http.StatusNotFound {
		t.Errorf("unknown category status = %d", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := newWebEnv(t)
	status, body := w.do(t, http.MethodGet, "/metrics", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for _, want := range []string{"beastmaster_catalog_pets 3", "beastmaster_uptime_seconds"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }
	for i := 0; i < 2; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("third request allowed")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other address denied")
	}

	now = now.Add(30 * time.Second)
	if !rl.allow("10.0.0.1") {
		t.Error("bucket did not refill")
	}
	if rl.allow("10.0.0.1") {
		t.Error("refill went past one token")
	}

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	if len(rl.buckets) != 0 {
		t.Errorf("cleanup left %d buckets", len(rl.buckets))
	}
	if !newRateLimiter(0).allow("10.0.0.1") {
		t.Error("a zero limit should disable limiting")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header, query, want string
	}{
		{"Bearer abc", "", "abc"},
		{"bearer  abc ", "", "abc"},
		{"Basic abc", "xyz", ""},
		{"", "xyz", "xyz"},
		{"", "", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws?token="+tt.query, nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(r); got != tt.want {
			t.Errorf("bearerToken(%q, %q) = %q, want %q", tt.header, tt.query, got, tt.want)
		}
	}
}

func TestRefreshDeletedCharacter(t *testing.T) {
	w := newWebEnv(t)
	token := w.token(t)
	claims, _ := w.web.Auth().ValidateToken(token)
	if err := w.store.DeleteCharacter(claims.Character); err != nil {
		t.Fatal(err)
	}
	if _, err := w.web.Auth().RefreshToken(token); err == nil {
		t.Error("refresh succeeded for a deleted character")
	}
}

// readUntil reads WebSocket messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if msg.Type == typ {
			return msg
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	w := newWebEnv(t)
	startLoop(t, w.game)
	token := w.token(t)

	url := "ws" + strings.TrimPrefix(w.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	login := readUntil(t, conn, "login")
	if login.Data["char_name"] != "Rexxar" {
		t.Errorf("login data = %v", login.Data)
	}
	readUntil(t, conn, "system")

	if err := conn.WriteJSON(WSMessage{Type: "command", Command: "talk"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	menu := readUntil(t, conn, "menu")
	if !strings.Contains(menu.Text, "Browse Pets") {
		t.Errorf("menu text = %q", menu.Text)
	}
	items, _ := menu.Data["items"].([]any)
	if len(items) == 0 {
		t.Errorf("menu data = %v", menu.Data)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readUntil(t, conn, "error"); !strings.Contains(msg.Text, "Unknown message type") {
		t.Errorf("error text = %q", msg.Text)
	}
}

func TestWebSocketBadToken(t *testing.T) {
	w := newWebEnv(t)
	url := "ws" + strings.TrimPrefix(w.srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial with a bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v", resp)
	}
}

func TestStatsEndpoint(t *testing.T) {
	w := newWebEnv(t)
	startLoop(t, w.game)

	if status, _ := w.do(t, http.MethodGet, "/api/v1/stats", "", ""); status != http.StatusUnauthorized {
		t.Errorf("stats without token = %d", status)
	}
	status, body := w.do(t, http.MethodGet, "/api/v1/stats", w.token(t), "")
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	var resp struct {
		Connections map[string]any `json:"connections"`
		Memory      map[string]any `json:"memory"`
		Realm       struct {
			Online        int            `json:"online"`
			Beastmasters  int            `json:"beastmasters"`
			ModuleEnabled bool           `json:"module_enabled"`
			Catalog       map[string]int `json:"catalog"`
		} `json:"realm"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Realm.Online != 0 || resp.Realm.Beastmasters != 1 || !resp.Realm.ModuleEnabled {
		t.Errorf("realm = %+v", resp.Realm)
	}
	if resp.Realm.Catalog["rare"] != 1 || resp.Realm.Catalog["exotic"] != 1 {
		t.Errorf("catalog = %v", resp.Realm.Catalog)
	}
	if _, ok := resp.Memory["goroutines"]; !ok {
		t.Errorf("memory = %v", resp.Memory)
	}
	if resp.Connections["total"] != float64(0) {
		t.Errorf("connections = %v", resp.Connections)
	}
}
