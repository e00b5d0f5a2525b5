package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

func TestParseConnect(t *testing.T) {
	tests := []struct {
		input                           string
		command, user, password, rest string
	}{
		{"connect Rexxar secret", "connect", "Rexxar", "secret", ""},
		{"CONNECT Rexxar secret", "connect", "Rexxar", "secret", ""},
		{`co "Rexxar" secret`, "co", "Rexxar", "secret", ""},
		{"create Rexxar secret hunter 20", "create", "Rexxar", "secret", "hunter 20"},
		{"connect Rexxar", "connect", "Rexxar", "", ""},
		{"connect", "connect", "", "", ""},
		{"", "", "", "", ""},
	}
	for _, tt := range tests {
		command, user, password, rest := ParseConnect(tt.input)
		if command != tt.command || user != tt.user || password != tt.password || rest != tt.rest {
			t.Errorf("ParseConnect(%q) = (%q, %q, %q, %q), want (%q, %q, %q, %q)",
				tt.input, command, user, password, rest, tt.command, tt.user, tt.password, tt.rest)
		}
	}
}

func TestValidCharacterName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Rexxar", true},
		{"Al", true},
		{"A", false},
		{"Thirteenchars", false},
		{"Rex1", false},
		{"Rex xar", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidCharacterName(tt.name); got != tt.want {
			t.Errorf("ValidCharacterName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseCreateArgs(t *testing.T) {
	tests := []struct {
		rest    string
		class   gamedb.Class
		level   int
		wantErr bool
	}{
		{"hunter", gamedb.ClassHunter, 10, false},
		{"mage 42", gamedb.ClassMage, 42, false},
		{"dk", gamedb.ClassDeathKnight, 10, false},
		{"", 0, 0, true},
		{"bard", 0, 0, true},
		{"hunter 81", 0, 0, true},
		{"hunter zero", 0, 0, true},
	}
	for _, tt := range tests {
		class, level, err := parseCreateArgs(tt.rest, 10)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCreateArgs(%q) error = %v, wantErr %v", tt.rest, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (class != tt.class || level != tt.level) {
			t.Errorf("parseCreateArgs(%q) = (%v, %d), want (%v, %d)", tt.rest, class, level, tt.class, tt.level)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.game.CreateCharacter("Rexxar", "secret", gamedb.ClassHunter, 20); err != nil {
		t.Fatalf("CreateCharacter: %v", err)
	}

	if c, err := env.game.Authenticate("rexxar", "secret"); err != nil || c.Name != "Rexxar" {
		t.Errorf("Authenticate(rexxar) = %v, %v", c, err)
	}
	if _, err := env.game.Authenticate("Rexxar", "wrong"); err != ErrBadCredentials {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := env.game.Authenticate("Nobody", "secret"); err != ErrBadCredentials {
		t.Errorf("unknown name error = %v", err)
	}
	if _, err := env.game.CreateCharacter("rexxar", "other", gamedb.ClassMage, 20); err == nil {
		t.Error("duplicate name accepted")
	}
	if _, err := env.game.CreateCharacter("R2", "other", gamedb.ClassMage, 20); err != ErrBadName {
		t.Errorf("bad name error = %v", err)
	}
}

// startLoop runs the game loop until the test ends.
func startLoop(t *testing.T, g *Game) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-g.done
	})
}

func TestHandleLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	startLoop(t, env.game)

	cap := newCapture()
	env.game.Conns.Add(cap.d)
	env.game.HandleLogin(cap.d, "create Rexxar secret hunter")
	out := cap.text()
	if !strings.Contains(out, "Welcome to Beastmaster Realm, Rexxar the Hunter!") {
		t.Errorf("create output = %q", out)
	}
	if cap.d.State != ConnConnected {
		t.Fatal("create should log the character in")
	}

	cap.reset()
	env.game.HandleLogin(cap.d, "create Rexxar secret hunter")
	if out := cap.text(); out != "That name is already taken." {
		t.Errorf("duplicate create = %q", out)
	}

	second := newCapture()
	second.d.Retries = 2
	env.game.Conns.Add(second.d)
	env.game.HandleLogin(second.d, "connect Rexxar wrong")
	if !strings.Contains(second.text(), "Either that player does not exist") {
		t.Errorf("bad password output = %q", second.text())
	}
	if second.d.Retries != 1 || second.d.IsClosed() {
		t.Errorf("retries = %d closed = %v", second.d.Retries, second.d.IsClosed())
	}

	second.reset()
	env.game.HandleLogin(second.d, "connect rexxar secret")
	if !strings.Contains(second.text(), "Welcome back, Rexxar!") {
		t.Errorf("connect output = %q", second.text())
	}
	var live int
	env.game.Do(func() { live = len(env.game.Conns.GetByPlayer(cap.d.Player)) })
	if live != 2 {
		t.Errorf("connections for Rexxar = %d, want 2", live)
	}

	third := newCapture()
	third.d.Retries = 1
	env.game.HandleLogin(third.d, "connect Rexxar wrong")
	if !third.d.IsClosed() {
		t.Error("descriptor should close when retries run out")
	}

	fourth := newCapture()
	env.game.HandleLogin(fourth.d, "QUIT")
	if fourth.text() != "Goodbye!" || !fourth.d.IsClosed() {
		t.Errorf("QUIT = %q closed=%v", fourth.text(), fourth.d.IsClosed())
	}
}

func TestLoadRealmConf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realm.yaml")
	yaml := "realm_name: Wildlands\nport: 7000\nbolt_path: db/realm.bolt\nsql_dsn: /var/lib/bm.db\ntick_millis: 0\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REALM_PORT", "7100")

	conf, err := LoadRealmConf(path)
	if err != nil {
		t.Fatalf("LoadRealmConf: %v", err)
	}
	if conf.RealmName != "Wildlands" {
		t.Errorf("RealmName = %q", conf.RealmName)
	}
	if conf.Port != 7100 {
		t.Errorf("Port = %d, want env override 7100", conf.Port)
	}
	if want := filepath.Join(dir, "db", "realm.bolt"); conf.BoltPath != want {
		t.Errorf("BoltPath = %q, want %q", conf.BoltPath, want)
	}
	if conf.SQLDSN != "/var/lib/bm.db" {
		t.Errorf("SQLDSN = %q", conf.SQLDSN)
	}
	if conf.TickMillis != 500 {
		t.Errorf("TickMillis = %d, want normalized 500", conf.TickMillis)
	}
	if conf.StartLevel != 10 {
		t.Errorf("StartLevel = %d, want default 10", conf.StartLevel)
	}
}

func TestLoadRealmConfMissingFile(t *testing.T) {
	conf, err := LoadRealmConf(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRealmConf: %v", err)
	}
	if conf.Port != 6250 || conf.BoltPath != "data/realm.bolt" {
		t.Errorf("defaults not applied: %+v", conf)
	}
}

func TestLoadRealmConfBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "realm.yaml")
	if err := os.WriteFile(path, []byte("port: [nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRealmConf(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStripTelnet(t *testing.T) {
	tests := []struct{ in, want string }{
		{"\xff\xfb\x01look\x07", "look"},
		{"say hi\tthere\r", "say hi\tthere"},
		{"\xff\xfa\xc9Core.Hello {}\xff\xf0talk", "talk"},
		{"talk\xff\xfa\xc9unterminated", "talk"},
		{"\xff\xf1stable", "stable"},
	}
	for _, tt := range tests {
		if got := stripTelnet(tt.in); got != tt.want {
			t.Errorf("stripTelnet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
