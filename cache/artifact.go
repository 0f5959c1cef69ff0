package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/wazevocore/codegen/ir"
)

// RelocationKind distinguishes how a Relocation's address operand is
// resolved into code at link/load time.
type RelocationKind uint8

const (
	RelocationAbs8 RelocationKind = iota
	RelocationPCRel4
)

// Relocation names one site in a MachBuffer's raw code that must be patched
// with the final address of an external symbol. Name is carried as a full
// ir.ExternalName (not canonicalized) because, unlike the cache key's DFG
// encoding, a relocation's whole purpose is to resolve that identity.
type Relocation struct {
	Offset uint32
	Kind   RelocationKind
	Name   ir.ExternalName
	Addend int64
}

// TrapEntry records that the instruction at Offset may trap, and why —
// spec §4.8's requirement that every unreachable/trapping site carry its
// reason for downstream diagnostics.
type TrapEntry struct {
	Offset   uint32
	Code     ir.TrapCode
	UserCode uint32
}

// SourceLocRow pairs a code offset with the (relativized) source location
// that produced it.
type SourceLocRow struct {
	Offset uint32
	Loc    relSourceLoc
}

// NewSourceLocRow builds a SourceLocRow for code offset, relativizing loc
// against f's own srcloc_offset exactly as ComputeCacheKey does, so a
// compiler package can populate CompiledArtifact.Buffer.SourceLocs without
// reaching into this package's unexported relSourceLoc type directly.
func NewSourceLocRow(f *ir.Function, offset uint32, loc ir.SourceLoc) SourceLocRow {
	return SourceLocRow{Offset: offset, Loc: newRelSourceLoc(loc, srclocOffset(f))}
}

// StackMapEntry records, at one call-site offset, which stack slots held
// live GC references at the moment of the call.
type StackMapEntry struct {
	Offset uint32
	Bits   []byte
}

// MachBuffer is the raw output of code generation for one function: bytes
// plus every side table needed to link and run them. Modeled on
// Cranelift's CachedMachBuffer.
type MachBuffer struct {
	Code        []byte
	Relocations []Relocation
	Traps       []TrapEntry
	CallSites   []uint32
	SourceLocs  []SourceLocRow
	StackMaps   []StackMapEntry
	UnwindInfo  []byte
}

// CompiledArtifact is the full output of compiling one Function: its
// machine code plus every side table a caller or debugger needs. This is
// what compiler.Compile produces and what cache wraps for storage.
type CompiledArtifact struct {
	Buffer    MachBuffer
	FrameSize uint32
	Disasm    string

	// SizedStackSlotOffsets/DynamicStackSlotOffsets map each stack slot (by
	// its dense index within the function) to its frame offset.
	SizedStackSlotOffsets   []uint32
	DynamicStackSlotOffsets []uint32

	// BBStarts are code offsets where each layout block's code begins,
	// parallel to the function's block order; BBEdges are (from, to) pairs
	// of block-start offsets representing the control-flow graph, used by
	// profilers and the disassembler.
	BBStarts []uint32
	BBEdges  [][2]uint32

	// FuncRefs records, for every external name referenced while
	// compiling, the FuncRef handle it was compiled against — so
	// rehydration can rewrite a relocation's (namespace, index) pair to
	// whatever the new caller's ext_funcs table assigns that same name.
	FuncRefs map[ir.ExternalName]ir.FuncRef
}

// CachedCompiledCode is a CompiledArtifact together with the CacheKey it
// was computed from, in the exact binary layout persisted to a KVStore.
type CachedCompiledCode struct {
	Key      CacheKey
	Artifact CompiledArtifact
}

// Serialize encodes cc into the blob format a KVStore holds, mirroring
// wazero's own manual length-prefixed encoding style (FormatVersion first,
// then fixed/length-prefixed fields) rather than a general serde framework.
func Serialize(cc CachedCompiledCode) []byte {
	e := &encoder{}
	e.u32(FormatVersion)
	e.bytes(cc.Key)
	serializeArtifact(e, &cc.Artifact)
	return e.buf.Bytes()
}

func serializeArtifact(e *encoder, a *CompiledArtifact) {
	serializeMachBuffer(e, &a.Buffer)
	e.u32(a.FrameSize)
	e.str(a.Disasm)

	e.u32(uint32(len(a.SizedStackSlotOffsets)))
	for _, off := range a.SizedStackSlotOffsets {
		e.u32(off)
	}
	e.u32(uint32(len(a.DynamicStackSlotOffsets)))
	for _, off := range a.DynamicStackSlotOffsets {
		e.u32(off)
	}

	e.u32(uint32(len(a.BBStarts)))
	for _, s := range a.BBStarts {
		e.u32(s)
	}
	e.u32(uint32(len(a.BBEdges)))
	for _, ed := range a.BBEdges {
		e.u32(ed[0])
		e.u32(ed[1])
	}

	e.u32(uint32(len(a.FuncRefs)))
	for name, ref := range a.FuncRefs {
		serializeExternalName(e, name)
		e.u32(uint32(ref))
	}
}

func serializeMachBuffer(e *encoder, b *MachBuffer) {
	e.bytes(b.Code)

	e.u32(uint32(len(b.Relocations)))
	for _, r := range b.Relocations {
		e.u32(r.Offset)
		e.u8(uint8(r.Kind))
		serializeExternalName(e, r.Name)
		e.i64(r.Addend)
	}

	e.u32(uint32(len(b.Traps)))
	for _, t := range b.Traps {
		e.u32(t.Offset)
		e.u8(uint8(t.Code))
		e.u32(t.UserCode)
	}

	e.u32(uint32(len(b.CallSites)))
	for _, c := range b.CallSites {
		e.u32(c)
	}

	e.u32(uint32(len(b.SourceLocs)))
	for _, r := range b.SourceLocs {
		e.u32(r.Offset)
		e.u32(uint32(r.Loc))
	}

	e.u32(uint32(len(b.StackMaps)))
	for _, sm := range b.StackMaps {
		e.u32(sm.Offset)
		e.bytes(sm.Bits)
	}

	e.bytes(b.UnwindInfo)
}

func serializeExternalName(e *encoder, n ir.ExternalName) {
	e.u8(uint8(n.Kind))
	e.u32(n.Namespace)
	e.u32(n.Index)
	e.str(n.LibCall)
}

// reader is the inverse of encoder: a cursor over a byte slice with
// bounds-checked reads, erroring rather than panicking on truncated or
// malformed input (a corrupted or foreign-version cache blob is an
// ordinary, expected failure mode, not a bug).
type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) need(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.b) {
		r.fail(fmt.Errorf("cache: truncated blob: need %d bytes at offset %d, have %d", n, r.off, len(r.b)))
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	b := r.need(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.need(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.need(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 { return int64(r.u64()) }

func (r *reader) bytes() []byte {
	n := r.u32()
	b := r.need(int(n))
	return append([]byte(nil), b...)
}

func (r *reader) str() string { return string(r.bytes()) }

// Deserialize is the inverse of Serialize. It reports an error for a
// truncated or malformed blob but never panics: an on-disk cache is
// untrusted input that may have been produced by a different process
// version or corrupted on disk.
func Deserialize(blob []byte) (CachedCompiledCode, error) {
	r := &reader{b: blob}
	version := r.u32()
	if r.err == nil && version != FormatVersion {
		return CachedCompiledCode{}, fmt.Errorf("cache: format version mismatch: got %d, want %d", version, FormatVersion)
	}
	key := CacheKey(r.bytes())
	artifact := deserializeArtifact(r)
	if r.err != nil {
		return CachedCompiledCode{}, r.err
	}
	return CachedCompiledCode{Key: key, Artifact: artifact}, nil
}

func deserializeArtifact(r *reader) CompiledArtifact {
	var a CompiledArtifact
	a.Buffer = deserializeMachBuffer(r)
	a.FrameSize = r.u32()
	a.Disasm = r.str()

	n := r.u32()
	a.SizedStackSlotOffsets = make([]uint32, n)
	for i := range a.SizedStackSlotOffsets {
		a.SizedStackSlotOffsets[i] = r.u32()
	}
	n = r.u32()
	a.DynamicStackSlotOffsets = make([]uint32, n)
	for i := range a.DynamicStackSlotOffsets {
		a.DynamicStackSlotOffsets[i] = r.u32()
	}

	n = r.u32()
	a.BBStarts = make([]uint32, n)
	for i := range a.BBStarts {
		a.BBStarts[i] = r.u32()
	}
	n = r.u32()
	a.BBEdges = make([][2]uint32, n)
	for i := range a.BBEdges {
		a.BBEdges[i] = [2]uint32{r.u32(), r.u32()}
	}

	n = r.u32()
	a.FuncRefs = make(map[ir.ExternalName]ir.FuncRef, n)
	for i := uint32(0); i < n; i++ {
		name := deserializeExternalName(r)
		a.FuncRefs[name] = ir.FuncRef(r.u32())
	}
	return a
}

func deserializeMachBuffer(r *reader) MachBuffer {
	var b MachBuffer
	b.Code = r.bytes()

	n := r.u32()
	b.Relocations = make([]Relocation, n)
	for i := range b.Relocations {
		b.Relocations[i] = Relocation{
			Offset: r.u32(),
			Kind:   RelocationKind(r.u8()),
			Name:   deserializeExternalName(r),
			Addend: r.i64(),
		}
	}

	n = r.u32()
	b.Traps = make([]TrapEntry, n)
	for i := range b.Traps {
		b.Traps[i] = TrapEntry{Offset: r.u32(), Code: ir.TrapCode(r.u8()), UserCode: r.u32()}
	}

	n = r.u32()
	b.CallSites = make([]uint32, n)
	for i := range b.CallSites {
		b.CallSites[i] = r.u32()
	}

	n = r.u32()
	b.SourceLocs = make([]SourceLocRow, n)
	for i := range b.SourceLocs {
		b.SourceLocs[i] = SourceLocRow{Offset: r.u32(), Loc: relSourceLoc(r.u32())}
	}

	n = r.u32()
	b.StackMaps = make([]StackMapEntry, n)
	for i := range b.StackMaps {
		b.StackMaps[i] = StackMapEntry{Offset: r.u32(), Bits: r.bytes()}
	}

	b.UnwindInfo = r.bytes()
	return b
}

func deserializeExternalName(r *reader) ir.ExternalName {
	return ir.ExternalName{
		Kind:      ir.ExternalNameKind(r.u8()),
		Namespace: r.u32(),
		Index:     r.u32(),
		LibCall:   r.str(),
	}
}

// TryFinishRecompile implements spec §4.9's try_finish_recompile: given the
// freshly recomputed key for f, and a blob previously stored under some
// hash, it either rehydrates a usable CompiledArtifact (rewriting external
// relocations to f's own ext_funcs identifiers) or reports a miss.
//
// A miss here is an ordinary, expected outcome (source changed, or an
// unrelated function hashed to the same bucket): it is reported exactly
// like a fresh cache lookup failure, not as an error. Only an internal
// inconsistency — a relocation naming an external function with no
// recorded FuncRefs entry — is treated as fatal, per spec, since that
// can only mean the artifact and the key it claims to match have drifted
// apart under the cache's own invariants.
func TryFinishRecompile(key CacheKey, f *ir.Function, blob []byte) (*CompiledArtifact, bool, error) {
	cc, err := Deserialize(blob)
	if err != nil {
		// A malformed or foreign-version blob is a miss, not a fatal error:
		// treat it the same as an absent entry.
		return nil, false, nil
	}
	if !cc.Key.Equal(key) {
		return nil, false, nil
	}

	// Absolute source locations are recovered lazily via AbsoluteSourceLoc
	// rather than expanded in place here, since srclocOffset(f) is already
	// cheap to recompute per query and nothing else in this function needs
	// the expanded form.

	if err := rewriteRelocations(f, &cc.Artifact); err != nil {
		return nil, false, err
	}

	return &cc.Artifact, true, nil
}

// AbsoluteSourceLoc expands the n-th source-location row of a rehydrated
// artifact back to an absolute ir.SourceLoc, relative to f's own
// instruction-0 location.
func AbsoluteSourceLoc(f *ir.Function, a *CompiledArtifact, n int) ir.SourceLoc {
	return a.Buffer.SourceLocs[n].Loc.expand(srclocOffset(f))
}

// rewriteRelocations patches every User-namespace relocation in a's
// buffer to the (namespace, index) identifiers f's own DataFlowGraph
// currently assigns that external name, using the stored FuncRefs map to
// recover which declaration the relocation originally pointed at.
func rewriteRelocations(f *ir.Function, a *CompiledArtifact) error {
	for i, reloc := range a.Buffer.Relocations {
		if reloc.Name.Kind != ir.ExternalNameUser {
			continue
		}
		ref, ok := a.FuncRefs[reloc.Name]
		if !ok {
			return fmt.Errorf("cache: relocation at offset %d names an external function with no recorded FuncRef entry", reloc.Offset)
		}
		ed := f.DFG.ExtFuncData(ref)
		a.Buffer.Relocations[i].Name = ed.Name
	}
	return nil
}

// CompileFunc performs a from-scratch compile of f for the given target
// machine parameters, per compile_with_cache's `compile(func, isa)` step.
// Supplied by the compiler package; declared here as a function type so
// cache stays free of a direct dependency on it.
type CompileFunc func(f *ir.Function) (*CompiledArtifact, error)

// CompileWithCache implements spec §4.9's orchestrator loop: look up f's
// cache key in store, rehydrate on a hit, else compile fresh and insert.
// checkIncrementalCache, when true, recompiles on every hit and asserts
// byte-for-byte agreement with the rehydrated artifact — an expensive
// self-check meant for CI/fuzzing, never production use.
func CompileWithCache(f *ir.Function, params CompileParameters, store KVStore, compile CompileFunc, checkIncrementalCache bool) (artifact *CompiledArtifact, hit bool, err error) {
	key := ComputeCacheKey(f, params)
	hash := key.Hash()

	if blob, ok := store.Get(hash); ok {
		if a, ok, err := TryFinishRecompile(key, f, blob); err != nil {
			return nil, false, err
		} else if ok {
			if checkIncrementalCache {
				actual, err := compile(f)
				if err != nil {
					return nil, false, fmt.Errorf("cache: incremental cache check: fresh compile failed: %w", err)
				}
				if !bytes.Equal(actual.Buffer.Code, a.Buffer.Code) {
					return nil, false, fmt.Errorf("cache: incremental cache check failed: rehydrated artifact disagrees with fresh compile")
				}
			}
			return a, true, nil
		}
	}

	a, err := compile(f)
	if err != nil {
		return nil, false, err
	}
	cc := CachedCompiledCode{Key: key, Artifact: *a}
	store.Insert(hash, Serialize(cc))
	return a, false, nil
}
