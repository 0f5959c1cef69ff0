// Package u64 provides little-endian byte encoding for uint64, used by the
// cache package to serialize CacheKey fields into a stable, portable byte
// sequence ahead of hashing.
package u64

import "encoding/binary"

// LeBytes returns v encoded as 8 little-endian bytes.
func LeBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
