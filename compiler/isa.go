// Package compiler orchestrates compiling one ir.Function against a target
// ISA into a cache.CompiledArtifact, and wires that into cache.CompileWithCache
// per spec §4.9's orchestrator loop ("external interfaces": compile,
// compile_with_cache, compute_cache_key). Grounded on the teacher's own
// backend.Machine/Compiler split (wazevo/backend/machine.go,
// wazevo/backend/compiler.go) — generalized down to this module's scope:
// the teacher's Machine does full instruction selection, register
// allocation, and real amd64/arm64 encoding; this package's ISA interface
// keeps the same "encode, record relocations/traps, resolve later" shape
// but at the granularity of one ir.Inst at a time; a concrete ISA plugs in
// per-opcode encodings the way backend.Machine.Encode ultimately emits
// real machine bytes.
package compiler

import (
	"github.com/wazevocore/codegen/cache"
	"github.com/wazevocore/codegen/ir"
)

// ISA is a target machine description: enough identity for cache-key
// construction (spec §4.9's CompileParameters) plus the ability to encode
// one instruction at a time into bytes, relocations, and trap records.
//
// Per spec §5, an ISA is assumed pure with respect to the Function it
// encodes: the same (Function, instruction) pair must always produce the
// same EncodeResult, since compile_with_cache's optional self-check
// compares a fresh compile's output against a rehydrated cache hit
// byte-for-byte.
type ISA interface {
	// Name identifies the backend architecture, e.g. "amd64", "arm64".
	Name() string
	// Triple is the target triple string, e.g. "x86_64-unknown-unknown".
	Triple() string
	// Flags is the compilation flag string (optimization level, etc.)
	// folded into the cache key so that two different flag sets never
	// collide.
	Flags() string
	// ISAFlags further qualifies Flags with target-specific feature flags
	// (e.g. "has_avx2").
	ISAFlags() []string
	// PointerBits is the machine's native pointer width, consumed by
	// wasmlower.Target when this ISA backs a memory-access lowering.
	PointerBits() int

	// Encode emits the machine code for one instruction, given the byte
	// offset it will be placed at within the function's code buffer.
	// A non-nil error means the instruction cannot be encoded on this
	// target; Compile returns that error as is and produces no artifact.
	Encode(f *ir.Function, i ir.Inst, offset uint32) (EncodeResult, error)
}

// EncodeResult is the per-instruction output of ISA.Encode: the raw bytes
// plus any relocations, trap entries, or call sites they introduce, all
// expressed at offsets relative to the start of this instruction's own
// bytes (Compile rebases them onto the function-wide buffer).
type EncodeResult struct {
	Code        []byte
	Relocations []cache.Relocation
	Traps       []cache.TrapEntry
	// IsCallSite, if true, records this instruction's start offset as a
	// call site (spec §4.9's CachedMachBuffer.call_sites) — the positions
	// a stack walker must recognize as a return address.
	IsCallSite bool
}

// CompileParameters derives the cache.CompileParameters identifying this
// ISA, for cache.ComputeCacheKey.
func CompileParameters(isa ISA) cache.CompileParameters {
	return cache.CompileParameters{
		ISAName:  isa.Name(),
		Triple:   isa.Triple(),
		Flags:    isa.Flags(),
		ISAFlags: isa.ISAFlags(),
	}
}
