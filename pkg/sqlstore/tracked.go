package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// trackedRow maps a beastmaster_tamed_pets row.
type trackedRow struct {
	Owner     int64  `meddler:"owner_guid"`
	Entry     int64  `meddler:"entry"`
	Name      string `meddler:"name"`
	DateTamed int64  `meddler:"date_tamed"`
}

func (r *trackedRow) pet() gamedb.TrackedPet {
	return gamedb.TrackedPet{
		Owner:   uint64(r.Owner),
		Entry:   uint32(r.Entry),
		Name:    r.Name,
		TamedAt: time.Unix(r.DateTamed, 0),
	}
}

// Track records a tamed pet for owner. It returns false when the pair
// (owner, entry) is already tracked.
func (s *Store) Track(ctx context.Context, owner uint64, entry uint32, name string) (bool, error) {
	res, err := s.exec(ctx, `
		INSERT INTO beastmaster_tamed_pets (owner_guid, entry, name, date_tamed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_guid, entry) DO NOTHING`,
		int64(owner), int64(entry), name, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("sqlstore: track pet %d for %d: %w", entry, owner, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: track pet rows: %w", err)
	}
	return n > 0, nil
}

// List returns owner's tracked pets, most recently tamed first.
func (s *Store) List(ctx context.Context, owner uint64) ([]gamedb.TrackedPet, error) {
	var rows []*trackedRow
	err := s.queryAll(ctx, &rows, `
		SELECT owner_guid, entry, name, date_tamed
		FROM beastmaster_tamed_pets
		WHERE owner_guid = ?
		ORDER BY date_tamed DESC, entry DESC`, int64(owner))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list tracked pets for %d: %w", owner, err)
	}
	pets := make([]gamedb.TrackedPet, 0, len(rows))
	for _, r := range rows {
		pets = append(pets, r.pet())
	}
	return pets, nil
}

// Entries returns the set of creature entries owner has tracked.
func (s *Store) Entries(ctx context.Context, owner uint64) (map[uint32]bool, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT entry FROM beastmaster_tamed_pets WHERE owner_guid = ?`), int64(owner))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: tracked entries for %d: %w", owner, err)
	}
	defer rows.Close()

	set := make(map[uint32]bool)
	for rows.Next() {
		var entry int64
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("sqlstore: scan tracked entry: %w", err)
		}
		set[uint32(entry)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: tracked entries for %d: %w", owner, err)
	}
	return set, nil
}

// Name returns the custom name stored for (owner, entry).
func (s *Store) Name(ctx context.Context, owner uint64, entry uint32) (string, error) {
	var row trackedRow
	err := s.queryRow(ctx, &row, `
		SELECT owner_guid, entry, name, date_tamed
		FROM beastmaster_tamed_pets
		WHERE owner_guid = ? AND entry = ?`, int64(owner), int64(entry))
	if err != nil {
		if err == ErrNotFound {
			return "", err
		}
		return "", fmt.Errorf("sqlstore: tracked name %d/%d: %w", owner, entry, err)
	}
	return row.Name, nil
}

// Rename sets a tracked pet's custom name.
func (s *Store) Rename(ctx context.Context, owner uint64, entry uint32, name string) error {
	res, err := s.exec(ctx,
		`UPDATE beastmaster_tamed_pets SET name = ? WHERE owner_guid = ? AND entry = ?`,
		name, int64(owner), int64(entry))
	if err != nil {
		return fmt.Errorf("sqlstore: rename tracked pet %d/%d: %w", owner, entry, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a tracked pet. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, owner uint64, entry uint32) error {
	if _, err := s.exec(ctx,
		`DELETE FROM beastmaster_tamed_pets WHERE owner_guid = ? AND entry = ?`,
		int64(owner), int64(entry)); err != nil {
		return fmt.Errorf("sqlstore: delete tracked pet %d/%d: %w", owner, entry, err)
	}
	return nil
}

// Count returns how many pets owner has tracked.
func (s *Store) Count(ctx context.Context, owner uint64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM beastmaster_tamed_pets WHERE owner_guid = ?`),
		int64(owner)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: count tracked pets for %d: %w", owner, err)
	}
	return n, nil
}
