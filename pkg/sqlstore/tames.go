package sqlstore

import (
	"context"
	"fmt"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// tameRow maps a beastmaster_tames row.
type tameRow struct {
	Entry  int64  `meddler:"entry"`
	Name   string `meddler:"name"`
	Family int64  `meddler:"family"`
	Rarity string `meddler:"rarity"`
}

// LoadTames returns every catalog row. Icon and category are left for the
// caller, which owns the classification rules.
func (s *Store) LoadTames(ctx context.Context) ([]gamedb.PetInfo, error) {
	var rows []*tameRow
	if err := s.queryAll(ctx, &rows, `SELECT entry, name, family, rarity FROM beastmaster_tames ORDER BY entry`); err != nil {
		return nil, fmt.Errorf("sqlstore: load tames: %w", err)
	}
	pets := make([]gamedb.PetInfo, 0, len(rows))
	for _, r := range rows {
		pets = append(pets, gamedb.PetInfo{
			Entry:  uint32(r.Entry),
			Name:   r.Name,
			Family: uint32(r.Family),
			Rarity: r.Rarity,
		})
	}
	return pets, nil
}

// ImportTames upserts catalog rows in a single transaction and returns the
// number written.
func (s *Store) ImportTames(ctx context.Context, pets []gamedb.PetInfo) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: import tames: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO beastmaster_tames (entry, name, family, rarity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entry) DO UPDATE SET
			name = excluded.name,
			family = excluded.family,
			rarity = excluded.rarity`))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlstore: import tames: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, p := range pets {
		rarity := p.Rarity
		if rarity == "" {
			rarity = gamedb.RarityNormal
		}
		if _, err := stmt.ExecContext(ctx, int64(p.Entry), p.Name, int64(p.Family), rarity); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlstore: import tame %d: %w", p.Entry, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: import tames commit: %w", err)
	}
	return n, nil
}
