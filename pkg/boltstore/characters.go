package boltstore

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	bbolt "go.etcd.io/bbolt"
)

// ErrNameTaken is returned when creating a character whose name is in use.
var ErrNameTaken = errors.New("boltstore: name already taken")

// CreateCharacter assigns c a fresh GUID and persists it together with its
// name index entry. Names are unique case-insensitively.
func (s *Store) CreateCharacter(c *gamedb.Character) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(bucketNames)
		key := []byte(strings.ToLower(c.Name))
		if names.Get(key) != nil {
			return ErrNameTaken
		}
		chars := tx.Bucket(bucketCharacters)
		guid, err := chars.NextSequence()
		if err != nil {
			return fmt.Errorf("boltstore: next guid: %w", err)
		}
		c.GUID = guid
		data, err := encodeCharacter(c)
		if err != nil {
			return fmt.Errorf("boltstore: encode character %q: %w", c.Name, err)
		}
		if err := chars.Put(guidToKey(guid), data); err != nil {
			return err
		}
		return names.Put(key, guidToKey(guid))
	})
}

// PutCharacter persists an existing character (write-through).
func (s *Store) PutCharacter(c *gamedb.Character) error {
	data, err := encodeCharacter(c)
	if err != nil {
		return fmt.Errorf("boltstore: encode character %d: %w", c.GUID, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCharacters).Put(guidToKey(c.GUID), data)
	})
}

// PutCharacters persists multiple characters in a single bbolt transaction.
func (s *Store) PutCharacters(chars ...*gamedb.Character) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCharacters)
		for _, c := range chars {
			if c == nil {
				continue
			}
			data, err := encodeCharacter(c)
			if err != nil {
				return fmt.Errorf("boltstore: encode character %d: %w", c.GUID, err)
			}
			if err := b.Put(guidToKey(c.GUID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCharacter loads a character by GUID.
func (s *Store) GetCharacter(guid uint64) (*gamedb.Character, error) {
	var c *gamedb.Character
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCharacters).Get(guidToKey(guid))
		if v == nil {
			return gamedb.ErrNotFound
		}
		var err error
		c, err = decodeCharacter(v)
		return err
	})
	if err != nil {
		if errors.Is(err, gamedb.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("boltstore: load character %d: %w", guid, err)
	}
	return c, nil
}

// FindByName looks a character up through the lowercase name index.
func (s *Store) FindByName(name string) (*gamedb.Character, error) {
	var guid uint64
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketNames).Get([]byte(strings.ToLower(name)))
		if v == nil {
			return gamedb.ErrNotFound
		}
		guid = keyToGUID(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCharacter(guid)
}

// DeleteCharacter removes a character and its name index entry.
func (s *Store) DeleteCharacter(guid uint64) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		chars := tx.Bucket(bucketCharacters)
		v := chars.Get(guidToKey(guid))
		if v == nil {
			return nil
		}
		c, err := decodeCharacter(v)
		if err != nil {
			return fmt.Errorf("boltstore: decode character %d: %w", guid, err)
		}
		if err := tx.Bucket(bucketNames).Delete([]byte(strings.ToLower(c.Name))); err != nil {
			return err
		}
		return chars.Delete(guidToKey(guid))
	})
}

// LoadAll reads every stored character.
func (s *Store) LoadAll() ([]*gamedb.Character, error) {
	var out []*gamedb.Character
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCharacters).ForEach(func(k, v []byte) error {
			c, err := decodeCharacter(v)
			if err != nil {
				return fmt.Errorf("decode character %d: %w", keyToGUID(k), err)
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: load characters: %w", err)
	}
	log.Printf("boltstore: loaded %d characters from bolt", len(out))
	return out, nil
}
