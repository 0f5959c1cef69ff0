// Package u32 provides little-endian byte encoding for uint32, used by the
// cache package to serialize CacheKey fields into a stable, portable byte
// sequence ahead of hashing.
package u32

import "encoding/binary"

// LeBytes returns v encoded as 4 little-endian bytes.
func LeBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
