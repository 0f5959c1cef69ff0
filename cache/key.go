// Package cache implements content-addressed incremental compilation
// caching: computing a deterministic CacheKey for a Function, hashing it
// down to a CacheKeyHash, and serializing/rehydrating the compiled
// artifact that key maps to. Modeled on Cranelift's incremental_cache.rs
// (compute_cache_key / serialize_compiled / try_finish_recompile) and on
// wazero's own engine_cache.go for the Go-idiomatic manual binary-encoding
// style (length-prefixed fields into a bytes.Buffer via u32/u64.LeBytes,
// rather than a general-purpose serde framework).
package cache

import "bytes"

// FormatVersion is bumped whenever the on-disk cache format changes, so a
// stale blob from a previous version of this package never produces a
// false hit.
const FormatVersion uint32 = 1

// CompileParameters is the part of a CacheKey that depends on the target
// machine rather than the function being compiled.
type CompileParameters struct {
	ISAName  string
	Triple   string
	Flags    string
	ISAFlags []string
}

// CacheKeyHash is the 8-byte digest of a CacheKey, used as the lookup key
// into a KVStore.
type CacheKeyHash [8]byte

// CacheKey is the deterministic, canonicalized byte encoding of a
// Function's compile-relevant content plus its CompileParameters. Two
// functions that would produce identical compiled artifacts — modulo
// external-function identity and absolute source-location offsets, both
// deliberately canonicalized away — encode to an identical CacheKey.
//
// This collapses the teacher/original_source's separate "structured
// CacheKey, independently hashed" design into one step: since
// ComputeCacheKey's encoding is already canonical and order-independent of
// nothing (every field is visited in a fixed order), the encoded bytes
// serve directly as both the equality-comparable key and the hash input.
// Recorded as a deliberate simplification in DESIGN.md.
type CacheKey []byte

// Equal reports whether two keys encode identical canonicalized content.
func (k CacheKey) Equal(o CacheKey) bool { return bytes.Equal(k, o) }

// Hash returns the FxHash-style digest of k.
func (k CacheKey) Hash() CacheKeyHash { return fxHash(k) }
