package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

func writeText(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTextFilesLoad(t *testing.T) {
	dir := t.TempDir()
	writeText(t, dir, TextConnect, "Welcome to the lodge.\r\n")
	writeText(t, dir, TextMotd, "")
	writeText(t, dir, "notes.txt", "ignored")

	tf := LoadTextFiles(dir)
	if got := tf.Get(TextConnect); got != "Welcome to the lodge." {
		t.Errorf("connect = %q", got)
	}
	if got := tf.Get(TextMotd); got != "" {
		t.Errorf("empty motd = %q", got)
	}
	if got := tf.Get("notes.txt"); got != "" {
		t.Errorf("untracked file served: %q", got)
	}

	writeText(t, dir, TextMotd, "Double XP weekend!")
	if n := tf.Reload(); n != 2 {
		t.Errorf("Reload = %d, want 2", n)
	}
	if got := tf.Get(TextMotd); got != "Double XP weekend!" {
		t.Errorf("motd after reload = %q", got)
	}

	var none *TextFiles
	if none.Get(TextConnect) != "" {
		t.Error("nil TextFiles should serve nothing")
	}
}

func TestTextFilesWatch(t *testing.T) {
	dir := t.TempDir()
	tf := LoadTextFiles(dir)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tf.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// The watcher registers asynchronously; keep rewriting until it notices.
	deadline := time.Now().Add(5 * time.Second)
	for tf.Get(TextQuit) != "Safe travels." {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not reload quit.txt")
		}
		writeText(t, dir, TextQuit, "Safe travels.")
		time.Sleep(50 * time.Millisecond)
	}
}

func TestTextFilesInSession(t *testing.T) {
	env := newTestEnv(t, nil)
	dir := t.TempDir()
	writeText(t, dir, TextConnect, "== The Lodge ==")
	writeText(t, dir, TextMotd, "The Beastmaster has new exotic stock.")
	writeText(t, dir, TextQuit, "Safe travels.")

	if env.game.welcomeScreen() != env.game.Conf.WelcomeText {
		t.Error("welcome screen should default to the config text")
	}
	env.game.Texts = LoadTextFiles(dir)
	if env.game.welcomeScreen() != "== The Lodge ==" {
		t.Errorf("welcome screen = %q", env.game.welcomeScreen())
	}

	cap, _ := env.login("Rexxar", gamedb.ClassHunter, 20)
	if out := cap.text(); !strings.Contains(out, "The Beastmaster has new exotic stock.") {
		t.Errorf("login output missing motd: %q", out)
	}
	if out := env.run(cap, "quit"); out != "Safe travels." {
		t.Errorf("quit = %q", out)
	}
}
