package ir

import "fmt"

// SourceLoc is an opaque position in the original source that produced an
// instruction, propagated through lowering so traps and debug info can be
// attributed back to it. It carries no interpretation of its own; frontends
// choose what Bits means (e.g. a Wasm bytecode offset).
type SourceLoc struct {
	bits uint32
	set  bool
}

// SourceLocDefault is the absence of a known source location.
var SourceLocDefault = SourceLoc{}

// NewSourceLoc wraps an opaque bit pattern as a SourceLoc.
func NewSourceLoc(bits uint32) SourceLoc { return SourceLoc{bits: bits, set: true} }

// IsDefault reports whether no location was ever set.
func (s SourceLoc) IsDefault() bool { return !s.set }

// Bits returns the raw opaque value passed to NewSourceLoc.
func (s SourceLoc) Bits() uint32 { return s.bits }

func (s SourceLoc) String() string {
	if !s.set {
		return "-"
	}
	return fmt.Sprintf("@%#x", s.bits)
}
