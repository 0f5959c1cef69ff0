package compiler

import (
	"fmt"

	"github.com/wazevocore/codegen/cache"
	"github.com/wazevocore/codegen/ir"
)

// Compile lowers f to machine code under isa, walking every block and
// instruction in Layout order exactly once (spec §5: "instruction emission
// order is deterministic given the input"). It is the `compile(f, isa)`
// entry point named in spec §6's external-interfaces list.
//
// Stack-slot frame offsets are assigned by simple bump allocation in
// declaration order, rounded up to each slot's requested alignment —
// deliberately not first-fit or size-sorted packing, since nothing in this
// module's scope performs register allocation or spill-slot coalescing
// that would make a tighter packing meaningful.
func Compile(f *ir.Function, isa ISA) (*cache.CompiledArtifact, error) {
	a := &cache.CompiledArtifact{
		FuncRefs: make(map[ir.ExternalName]ir.FuncRef),
	}

	assignStackSlots(f, a)

	var code []byte
	blockStart := make(map[ir.Block]uint32)

	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		blockStart[b] = uint32(len(code))
		a.BBStarts = append(a.BBStarts, uint32(len(code)))

		for _, i := range f.Layout.InstsOf(b) {
			inst := f.DFG.ViewInst(i)

			if inst.Opcode() == ir.OpcodeCall {
				recordFuncRef(f, a, inst.FuncRef())
			}

			res, err := isa.Encode(f, i, uint32(len(code)))
			if err != nil {
				return nil, err
			}
			base := uint32(len(code))

			a.Buffer.SourceLocs = append(a.Buffer.SourceLocs, cache.NewSourceLocRow(f, base, f.SourceLoc(i)))

			for _, r := range res.Relocations {
				r.Offset += base
				a.Buffer.Relocations = append(a.Buffer.Relocations, r)
			}
			for _, t := range res.Traps {
				t.Offset += base
				a.Buffer.Traps = append(a.Buffer.Traps, t)
			}
			if res.IsCallSite {
				a.Buffer.CallSites = append(a.Buffer.CallSites, base)
			}

			code = append(code, res.Code...)
		}
	}

	a.Buffer.Code = code

	// Record the control-flow edges implied by every branch/jump target,
	// expressed as (from, to) block-start-offset pairs, per spec §4.9's
	// bb_edges field.
	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		last := f.Layout.LastInst(b)
		if !last.Valid() {
			continue
		}
		for _, t := range f.DFG.ViewInst(last).Targets() {
			a.BBEdges = append(a.BBEdges, [2]uint32{blockStart[b], blockStart[t]})
		}
	}

	return a, nil
}

// assignStackSlots bump-allocates a frame offset for every declared stack
// slot in declaration order, recording them in CompiledArtifact's sized/
// dynamic offset tables and the overall FrameSize.
func assignStackSlots(f *ir.Function, a *cache.CompiledArtifact) {
	var frame uint32
	n := f.DFG.NumStackSlots()
	for i := 0; i < n; i++ {
		sd := f.DFG.StackSlotData(ir.StackSlot(i))
		align := uint32(sd.Align)
		if align == 0 {
			align = 1
		}
		if rem := frame % align; rem != 0 {
			frame += align - rem
		}
		offset := frame
		switch sd.Kind {
		case ir.StackSlotSized:
			a.SizedStackSlotOffsets = append(a.SizedStackSlotOffsets, offset)
			frame += sd.Size
		case ir.StackSlotDynamic:
			a.DynamicStackSlotOffsets = append(a.DynamicStackSlotOffsets, offset)
			// A dynamic slot's runtime extent is unknown at compile time
			// (its element count lives in sd.DynamicSizeGV); only its
			// starting offset and one element's worth of size are
			// reserved statically, matching the teacher's own treatment
			// of dynamic-sized spill areas as a base pointer plus a
			// runtime-computed extent.
			frame += sd.Size
		}
	}
	a.FrameSize = frame
}

// recordFuncRef notes, the first time a Call instruction references ref,
// which external name it names — so a later cache rehydration can recover
// that relocation's identity via CompiledArtifact.FuncRefs (spec §4.9).
func recordFuncRef(f *ir.Function, a *cache.CompiledArtifact, ref ir.FuncRef) {
	ed := f.DFG.ExtFuncData(ref)
	if _, ok := a.FuncRefs[ed.Name]; ok {
		return
	}
	a.FuncRefs[ed.Name] = ref
}

// CompileWithCache wires Compile into cache.CompileWithCache, deriving the
// cache.CompileParameters this ISA identifies itself with. This is the
// `compile_with_cache(func, isa, store)` entry point from spec §6/§4.9.
func CompileWithCache(f *ir.Function, isa ISA, store cache.KVStore, checkIncrementalCache bool) (*cache.CompiledArtifact, bool, error) {
	params := CompileParameters(isa)
	compile := func(fn *ir.Function) (*cache.CompiledArtifact, error) {
		return Compile(fn, isa)
	}
	artifact, hit, err := cache.CompileWithCache(f, params, store, compile, checkIncrementalCache)
	if err != nil {
		return nil, false, fmt.Errorf("compiler: %w", err)
	}
	return artifact, hit, nil
}
