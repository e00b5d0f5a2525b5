package boltstore

import (
	"bytes"
	"encoding/gob"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

func init() {
	gob.Register(gamedb.Character{})
	gob.Register(gamedb.PetState{})
}

// encodeCharacter serializes a Character to bytes using gob.
func encodeCharacter(c *gamedb.Character) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeCharacter deserializes bytes back into a Character.
func decodeCharacter(data []byte) (*gamedb.Character, error) {
	var c gamedb.Character
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return nil, err
	}
	c.EnsureMaps()
	return &c, nil
}
