package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/russross/meddler"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = gamedb.ErrNotFound

// Store manages the connection used for the beastmaster tables.
type Store struct {
	db      *sql.DB
	driver  string
	dsn     string
	dialect *meddler.Database
}

// Open connects to the database and applies pending migrations.
// SQLite connections get WAL mode and a busy timeout; postgres connections
// get pool limits and an initial ping.
func Open(driver, dsn string, busyTimeout time.Duration) (*Store, error) {
	s := &Store{driver: driver, dsn: dsn}
	switch driver {
	case DriverSQLite, "":
		s.driver = DriverSQLite
		s.dialect = meddler.SQLite
		db, err := openSQLite(dsn, busyTimeout)
		if err != nil {
			return nil, err
		}
		s.db = db
	case DriverPostgres, "postgres":
		s.driver = DriverPostgres
		s.dialect = meddler.PostgreSQL
		db, err := openPostgres(dsn)
		if err != nil {
			return nil, err
		}
		s.db = db
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	if err := s.migrate(); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN adds the per-connection pragmas to path. They go in the DSN
// because the pool opens connections on demand.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, sep, busyTimeout.Milliseconds())
}

func openSQLite(path string, busyTimeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: opening sqlite %s: %w", path, err)
	}
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping postgres: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string { return s.driver }

// ErrNotFileBacked is returned by file operations on a postgres store.
var ErrNotFileBacked = errors.New("sqlstore: database is not file-backed")

// Path returns the sqlite database file.
func (s *Store) Path() (string, error) {
	if s.driver != DriverSQLite {
		return "", ErrNotFileBacked
	}
	return s.dsn, nil
}

// Checkpoint folds the sqlite WAL into the main database file so the
// file can be copied on its own.
func (s *Store) Checkpoint(ctx context.Context) error {
	if s.driver != DriverSQLite {
		return ErrNotFileBacked
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("sqlstore: checkpoint: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for tools that need raw access.
func (s *Store) DB() *sql.DB { return s.db }

// rebind rewrites '?' placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			inQuote = !inQuote
		}
		if ch == '?' && !inQuote {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

// queryAll runs query and scans every row into dst (a pointer to a slice of struct pointers).
func (s *Store) queryAll(ctx context.Context, dst any, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return s.dialect.ScanAll(rows, dst)
}

// queryRow runs query and scans the first row into dst, returning ErrNotFound
// when there is none.
func (s *Store) queryRow(ctx context.Context, dst any, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := s.dialect.ScanRow(rows, dst); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
