package cache

import (
	"bytes"

	"github.com/wazevocore/codegen/ir"
	"github.com/wazevocore/codegen/u32"
	"github.com/wazevocore/codegen/u64"
)

// canonicalIDs assigns dense, layout-order ids to every block, instruction,
// and value actually reachable through f's Layout, so that two functions
// differing only by dead Pool slots (detached instructions, never-reached
// values left behind by edits) encode identically. This generalizes
// Cranelift's Layout::full_renumber, which only renumbers Block/Inst,
// into also renumbering Value — this module's DFG/Layout split means a
// detached instruction's result values are otherwise visible garbage in
// the raw Pool that full_renumber's narrower scope wouldn't catch.
type canonicalIDs struct {
	block map[ir.Block]uint32
	inst  map[ir.Inst]uint32
	value map[ir.Value]uint32
}

func buildCanonicalIDs(f *ir.Function) *canonicalIDs {
	c := &canonicalIDs{
		block: make(map[ir.Block]uint32),
		inst:  make(map[ir.Inst]uint32),
		value: make(map[ir.Value]uint32),
	}
	var nextInst, nextValue uint32
	bid := uint32(0)
	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		c.block[b] = bid
		bid++
		for _, p := range f.DFG.BlockParams(b) {
			c.value[p] = nextValue
			nextValue++
		}
		for _, i := range f.Layout.InstsOf(b) {
			c.inst[i] = nextInst
			nextInst++
			for _, r := range f.DFG.ViewInst(i).Results() {
				c.value[r] = nextValue
				nextValue++
			}
		}
	}
	return c
}

func (c *canonicalIDs) v(val ir.Value) uint32 {
	if !val.Valid() {
		return ^uint32(0)
	}
	return c.value[val]
}

// relSourceLoc is a source location expressed relative to srclocOffset (the
// location of instruction 0, or default), so that shifting every location
// in a function by a constant amount (e.g. because it was copy-pasted
// elsewhere in a larger source file) doesn't change its cache key.
type relSourceLoc uint32

const relSourceLocDefault relSourceLoc = 0xffff_ffff

func newRelSourceLoc(loc, offset ir.SourceLoc) relSourceLoc {
	if loc.IsDefault() || offset.IsDefault() {
		return relSourceLocDefault
	}
	return relSourceLoc(loc.Bits() - offset.Bits())
}

func (r relSourceLoc) expand(offset ir.SourceLoc) ir.SourceLoc {
	if r == relSourceLocDefault || offset.IsDefault() {
		return ir.SourceLocDefault
	}
	return ir.NewSourceLoc(uint32(r) + offset.Bits())
}

// encoder accumulates the canonical byte encoding of a Function. Every
// Write* method is a fixed-width or length-prefixed append, so the
// resulting byte stream has exactly one encoding per distinct logical
// content — the property ComputeCacheKey depends on.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u8(v uint8)   { e.buf.WriteByte(v) }
func (e *encoder) u32(v uint32) { e.buf.Write(u32.LeBytes(v)) }
func (e *encoder) u64(v uint64) { e.buf.Write(u64.LeBytes(v)) }
func (e *encoder) i64(v int64)  { e.buf.Write(u64.LeBytes(uint64(v))) }
func (e *encoder) bytes(b []byte) {
	e.u32(uint32(len(b)))
	e.buf.Write(b)
}
func (e *encoder) str(s string) { e.bytes([]byte(s)) }
func (e *encoder) typ(t ir.Type) {
	e.u8(uint8(t.Kind()))
	e.u32(uint32(t.LaneBits()))
	e.u32(uint32(t.Lanes()))
}

// ComputeCacheKey canonicalizes f against params into a CacheKey, per spec
// §4.9: a version marker, the signature, stack-slot/global/heap/table/
// jump-table descriptors, the DFG (with external names collapsed and
// source locations relativized), and the layout — all walked in the dense
// canonical order buildCanonicalIDs assigns — followed by the target
// machine parameters.
func ComputeCacheKey(f *ir.Function, params CompileParameters) CacheKey {
	ids := buildCanonicalIDs(f)
	e := &encoder{}

	e.u32(FormatVersion)
	encodeSignature(e, &f.Signature)

	offset := srclocOffset(f)

	encodeDFG(e, f, ids, offset)
	encodeLayout(e, f, ids)

	e.str(params.ISAName)
	e.str(params.Triple)
	e.str(params.Flags)
	e.u32(uint32(len(params.ISAFlags)))
	for _, flag := range params.ISAFlags {
		e.str(flag)
	}

	return CacheKey(e.buf.Bytes())
}

// srclocOffset returns the source location of the function's first
// instruction in layout order, or the default if the function is empty or
// that instruction carries none.
func srclocOffset(f *ir.Function) ir.SourceLoc {
	b := f.Layout.FirstBlock()
	if !b.Valid() {
		return ir.SourceLocDefault
	}
	i := f.Layout.FirstInst(b)
	if !i.Valid() {
		return ir.SourceLocDefault
	}
	return f.SourceLoc(i)
}

func encodeSignature(e *encoder, sig *ir.Signature) {
	e.u32(uint32(len(sig.Params)))
	for _, t := range sig.Params {
		e.typ(t)
	}
	e.u32(uint32(len(sig.Results)))
	for _, t := range sig.Results {
		e.typ(t)
	}
}

func encodeDFG(e *encoder, f *ir.Function, ids *canonicalIDs, offset ir.SourceLoc) {
	// Global values, heaps, tables, jump tables and external functions are
	// declared in a DataFlowGraph-owned arena.Pool that only ever appends
	// (never removes), so their handle order is already stable and dense;
	// unlike Block/Inst/Value they need no renumbering pass.
	encodeStackSlots(e, f)
	encodeGlobalValues(e, f)
	encodeHeaps(e, f)
	encodeTables(e, f)
	encodeJumpTables(e, f, ids)
	encodeExtFuncs(e, f)
	encodeConstants(e, f)

	blockOrder := make([]ir.Block, 0, len(ids.block))
	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		blockOrder = append(blockOrder, b)
	}

	e.u32(uint32(len(blockOrder)))
	for _, b := range blockOrder {
		params := f.DFG.BlockParams(b)
		e.u32(uint32(len(params)))
		for _, p := range params {
			e.typ(f.DFG.ValueType(p))
		}
		insts := f.Layout.InstsOf(b)
		e.u32(uint32(len(insts)))
		for _, i := range insts {
			encodeInst(e, f, ids, i, offset)
		}
	}
}

func encodeStackSlots(e *encoder, f *ir.Function) {
	n := f.DFG.NumStackSlots()
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		sd := f.DFG.StackSlotData(ir.StackSlot(i))
		e.u8(uint8(sd.Kind))
		e.u32(sd.Size)
		e.u32(uint32(sd.DynamicSizeGV))
		e.u8(sd.Align)
	}
}

func encodeGlobalValues(e *encoder, f *ir.Function) {
	n := f.DFG.NumGlobalValues()
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		gd := f.DFG.GlobalValueData(ir.GlobalValue(i))
		e.u8(uint8(gd.Kind))
		e.i64(gd.VMOffset)
		e.typ(gd.Type)
	}
}

func encodeHeaps(e *encoder, f *ir.Function) {
	n := f.DFG.NumHeaps()
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		hd := f.DFG.HeapData(ir.Heap(i))
		e.u32(uint32(hd.BaseGlobalValue))
		e.u32(uint32(hd.BoundGlobalValue))
		e.u8(uint8(hd.Style))
		e.typ(hd.IndexType)
		e.u64(hd.MinimumBytes)
		e.u64(hd.MaximumBytes)
		e.u64(hd.ReservationBytes)
		e.u64(hd.GuardBytes)
		e.u8(boolByte(hd.MayMove))
		e.u32(uint32(hd.PCCMemoryType))
	}
}

func encodeTables(e *encoder, f *ir.Function) {
	n := f.DFG.NumTables()
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		td := f.DFG.TableData(ir.Table(i))
		e.u64(td.MinimumElements)
		e.u64(td.MaximumElements)
		e.u32(uint32(td.BaseGlobalValue))
		e.u32(td.ElementSize)
	}
}

func encodeJumpTables(e *encoder, f *ir.Function, ids *canonicalIDs) {
	n := f.DFG.NumJumpTables()
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		jt := f.DFG.JumpTableData(ir.JumpTable(i))
		e.u32(uint32(len(jt.Targets)))
		for _, t := range jt.Targets {
			e.u32(ids.block[t])
		}
		e.u32(ids.block[jt.Default])
	}
}

// encodeExtFuncs canonicalizes away a User external name's identifying
// (namespace, index) pair — its real identity lives only in the
// relocation table and is patched back in on rehydration (spec §4.9) — so
// two functions whose only difference is which concrete external symbols
// they call still share a cache key.
func encodeExtFuncs(e *encoder, f *ir.Function) {
	n := f.DFG.NumExtFuncs()
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		ed := f.DFG.ExtFuncData(ir.FuncRef(i))
		if ed.Name.Kind == ir.ExternalNameUser {
			e.u8(0)
		} else {
			e.u8(1)
			e.u32(ed.Name.Namespace)
			e.u32(ed.Name.Index)
			e.str(ed.Name.LibCall)
		}
		e.u8(boolByte(ed.Colocated))
	}
}

func encodeConstants(e *encoder, f *ir.Function) {
	// ConstantData is interned by content (DataFlowGraph.MakeConstant), so
	// handle order already reflects first-use order deterministically;
	// serialized as an ordered list of byte strings per spec.
	n := f.DFG.NumConstants()
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		e.bytes(f.DFG.ConstantData(ir.Constant(i)))
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func encodeInst(e *encoder, f *ir.Function, ids *canonicalIDs, i ir.Inst, offset ir.SourceLoc) {
	inst := f.DFG.ViewInst(i)
	e.u32(uint32(inst.Opcode()))

	args := inst.Args()
	e.u32(uint32(len(args)))
	for _, a := range args {
		e.u32(ids.v(a))
	}

	e.u32(uint32(len(inst.Results())))
	e.typ(inst.Type())

	e.i64(inst.Imm())
	e.u8(uint8(inst.Cond()))
	e.u8(uint8(inst.TrapCode()))
	e.str(inst.AssertMessage())
	e.u32(inst.UserTrapCode())

	targets := inst.Targets()
	e.u32(uint32(len(targets)))
	for n, t := range targets {
		e.u32(ids.block[t])
		blockArgs := inst.BlockArgs(n)
		e.u32(uint32(len(blockArgs)))
		for _, a := range blockArgs {
			e.u32(ids.v(a))
		}
	}

	e.u32(uint32(inst.GlobalValueRef()))
	e.u32(uint32(inst.HeapRef()))

	rel := newRelSourceLoc(f.SourceLoc(i), offset)
	e.u32(uint32(rel))
}

func encodeLayout(e *encoder, f *ir.Function, ids *canonicalIDs) {
	// The layout's canonical order is already folded into encodeDFG's walk
	// (blocks and their instructions are visited, and therefore encoded,
	// in exactly layout order); this records the block, instruction and
	// value counts as an explicit section boundary, mirroring full_renumber's role of being a
	// distinct, auditable step in the teacher's own pipeline.
	e.u32(uint32(len(ids.block)))
	e.u32(uint32(len(ids.inst)))
	e.u32(uint32(len(ids.value)))
}
