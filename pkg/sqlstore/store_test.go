package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "bm.db"), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	got := s.rebind("SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	s.driver = DriverSQLite
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	got := extractUpMigration(content)
	if got != "\nCREATE TABLE a (x INT);\n" {
		t.Errorf("extractUpMigration = %q", got)
	}
	if got := extractUpMigration("SELECT 1;"); got != "SELECT 1;" {
		t.Errorf("no marker: got %q", got)
	}
}

func TestOpenTwiceAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bm.db")
	for i := 0; i < 2; i++ {
		s, err := Open(DriverSQLite, path, time.Second)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		var n int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if n != 1 {
			t.Errorf("Open #%d: %d migrations recorded, want 1", i+1, n)
		}
		s.Close()
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "x", time.Second); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestImportAndLoadTames(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.ImportTames(ctx, []gamedb.PetInfo{
		{Entry: 3475, Name: "Echeyakee", Family: 2, Rarity: "rare"},
		{Entry: 1126, Name: "Large Crag Boar", Family: 4},
	})
	if err != nil {
		t.Fatalf("ImportTames: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d, want 2", n)
	}

	// Upsert replaces the existing row.
	if _, err := s.ImportTames(ctx, []gamedb.PetInfo{{Entry: 1126, Name: "Crag Boar", Family: 4, Rarity: "normal"}}); err != nil {
		t.Fatalf("ImportTames upsert: %v", err)
	}

	pets, err := s.LoadTames(ctx)
	if err != nil {
		t.Fatalf("LoadTames: %v", err)
	}
	if len(pets) != 2 {
		t.Fatalf("loaded %d tames, want 2", len(pets))
	}
	if pets[0].Entry != 1126 || pets[0].Name != "Crag Boar" || pets[0].Rarity != gamedb.RarityNormal {
		t.Errorf("pets[0] = %+v", pets[0])
	}
	if pets[1].Entry != 3475 || pets[1].Family != 2 || pets[1].Rarity != "rare" {
		t.Errorf("pets[1] = %+v", pets[1])
	}
}

func TestTrackedLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	const owner = 42

	inserted, err := s.Track(ctx, owner, 3475, "Echeyakee")
	if err != nil || !inserted {
		t.Fatalf("Track = %v, %v; want true, nil", inserted, err)
	}
	inserted, err = s.Track(ctx, owner, 3475, "Again")
	if err != nil {
		t.Fatalf("Track duplicate: %v", err)
	}
	if inserted {
		t.Error("duplicate Track reported insert")
	}
	if _, err := s.Track(ctx, owner, 1126, "Boar"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if _, err := s.Track(ctx, owner+1, 1126, "Other"); err != nil {
		t.Fatalf("Track other owner: %v", err)
	}

	if _, err := s.DB().Exec("UPDATE beastmaster_tamed_pets SET date_tamed = 100 WHERE entry = 3475"); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := s.DB().Exec("UPDATE beastmaster_tamed_pets SET date_tamed = 50 WHERE entry = 1126"); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	list, err := s.List(ctx, owner)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
	if list[0].Entry != 3475 || list[1].Entry != 1126 {
		t.Errorf("List order = %d, %d", list[0].Entry, list[1].Entry)
	}
	if list[0].Name != "Echeyakee" {
		t.Errorf("duplicate Track overwrote name: %q", list[0].Name)
	}

	entries, err := s.Entries(ctx, owner)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if !entries[3475] || !entries[1126] || len(entries) != 2 {
		t.Errorf("Entries = %v", entries)
	}

	if err := s.Rename(ctx, owner, 1126, "Grunt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	name, err := s.Name(ctx, owner, 1126)
	if err != nil || name != "Grunt" {
		t.Errorf("Name = %q, %v; want Grunt", name, err)
	}
	if err := s.Rename(ctx, owner, 9999, "Nope"); err != ErrNotFound {
		t.Errorf("Rename missing = %v, want ErrNotFound", err)
	}
	if _, err := s.Name(ctx, owner, 9999); err != ErrNotFound {
		t.Errorf("Name missing = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, owner, 3475); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, owner, 3475); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
	n, err := s.Count(ctx, owner)
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
}

func TestTrackedNameWithQuotes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Track(ctx, 7, 100, "O'Malley"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := s.Rename(ctx, 7, 100, "Robert'); DROP TABLE beastmaster_tamed_pets;--"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	n, err := s.Count(ctx, 7)
	if err != nil || n != 1 {
		t.Errorf("Count after hostile rename = %d, %v", n, err)
	}
}

func TestSQLitePragmasOnEveryConnection(t *testing.T) {
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "bm.db"), 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		c, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn: %v", err)
		}
		defer c.Close()
		conns = append(conns, c)
	}
	for i, c := range conns {
		var timeout int
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if timeout != 1500 {
			t.Errorf("conn %d busy_timeout = %d, want 1500", i, timeout)
		}
		var mode string
		if err := c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if mode != "wal" {
			t.Errorf("conn %d journal_mode = %q", i, mode)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("bm.db", 5*time.Second); got != "bm.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)" {
		t.Errorf("sqliteDSN = %q", got)
	}
	if got := sqliteDSN("file:bm.db?mode=rwc", time.Second); got != "file:bm.db?mode=rwc&_pragma=busy_timeout(1000)&_pragma=journal_mode(WAL)" {
		t.Errorf("sqliteDSN with query = %q", got)
	}
}

func TestCheckpointAndPath(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.ImportTames(context.Background(), []gamedb.PetInfo{{Entry: 1126, Name: "Timber Wolf", Family: 1}}); err != nil {
		t.Fatalf("ImportTames: %v", err)
	}
	if err := s.Checkpoint(context.Background()); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if p, err := s.Path(); err != nil || filepath.Base(p) != "bm.db" {
		t.Errorf("Path = %q, %v", p, err)
	}

	pg := &Store{driver: DriverPostgres}
	if _, err := pg.Path(); err != ErrNotFileBacked {
		t.Errorf("postgres Path error = %v", err)
	}
	if err := pg.Checkpoint(context.Background()); err != ErrNotFileBacked {
		t.Errorf("postgres Checkpoint error = %v", err)
	}
}
