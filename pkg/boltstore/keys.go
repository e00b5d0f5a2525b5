package boltstore

import "encoding/binary"

// Bucket name constants for bbolt storage.
var (
	bucketMeta       = []byte("meta")
	bucketCharacters = []byte("characters")
	bucketNames      = []byte("names")
)

// Meta key constants.
var (
	keyVersion = []byte("version")
)

// schemaVersion is written to meta on first open.
const schemaVersion = 1

// guidToKey converts a character GUID to an 8-byte big-endian key.
func guidToKey(guid uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, guid)
	return buf
}

// keyToGUID converts an 8-byte big-endian key back to a GUID.
func keyToGUID(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
