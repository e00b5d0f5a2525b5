package boltstore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
)

// ErrSchema is returned by Open for a file written by a newer server.
var ErrSchema = errors.New("boltstore: unsupported schema version")

// lockTimeout bounds how long Open waits for another process to release
// the file lock.
const lockTimeout = 5 * time.Second

// Store persists realm characters in a single bbolt file.
type Store struct {
	bolt *bbolt.DB
}

// Open opens the character file at path, creating it and its buckets on
// first use.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	if err := db.Update(initSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init %s: %w", path, err)
	}
	return &Store{bolt: db}, nil
}

func initSchema(tx *bbolt.Tx) error {
	meta, err := tx.CreateBucketIfNotExists(bucketMeta)
	if err != nil {
		return err
	}
	switch v := meta.Get(keyVersion); {
	case v == nil:
		if err := meta.Put(keyVersion, guidToKey(schemaVersion)); err != nil {
			return err
		}
	case keyToGUID(v) > schemaVersion:
		return fmt.Errorf("%w %d", ErrSchema, keyToGUID(v))
	}
	for _, name := range [][]byte{bucketCharacters, bucketNames} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the file.
func (s *Store) Close() error {
	if s == nil || s.bolt == nil {
		return nil
	}
	return s.bolt.Close()
}

// Count returns the number of stored characters.
func (s *Store) Count() (int, error) {
	var n int
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketCharacters).Stats().KeyN
		return nil
	})
	return n, err
}

// Backup writes a consistent copy of the file to dst while the store stays
// open. The copy is written beside dst and renamed into place.
func (s *Store) Backup(dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("boltstore: backup: %w", err)
	}
	defer os.Remove(tmp.Name())

	var size int64
	err = s.bolt.View(func(tx *bbolt.Tx) error {
		size, err = tx.WriteTo(tmp)
		return err
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("boltstore: backup to %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("boltstore: backup: %w", err)
	}
	log.Printf("boltstore: backup written to %s (%d bytes)", dst, size)
	return nil
}
