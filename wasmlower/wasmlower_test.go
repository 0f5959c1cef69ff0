package wasmlower

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazevocore/codegen/cursor"
	"github.com/wazevocore/codegen/ir"
)

func newFuncWithIndex(t *testing.T, indexType ir.Type) (*ir.Function, *cursor.FuncCursor, ir.Value) {
	t.Helper()
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	idxConst := f.DFG.MakeInst(ir.OpcodeIconst)
	iv := f.DFG.ViewInst(idxConst)
	iv.SetType(indexType)
	iv.SetImm(0)
	f.Layout.AppendInst(b, idxConst)
	idx := f.DFG.CreateResult(idxConst, indexType)

	cur := cursor.New(f)
	cur.GotoBlock(b)
	cur.NextInst() // step past idxConst, cursor now After(b)
	return f, cur, idx
}

func dynamicHeap32() ir.HeapData {
	return ir.HeapData{
		IndexType:        ir.I32,
		Style:            ir.MemoryStyleDynamic,
		MinimumBytes:     65536,
		MaximumBytes:     0,
		ReservationBytes: 1 << 32,
		GuardBytes:       1 << 31,
		MayMove:          true,
	}
}

func TestStaticOversizeTrapsUnconditionally(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I32)
	hd := dynamicHeap32()
	hd.MaximumBytes = 65536
	heap := f.DFG.MakeHeap(hd)

	_, traps := LowerHeapAddress(cur, f, heap, idx, 65536, 4, Target{PointerBits: 64})
	require.True(t, traps)

	insts := f.LayoutOrderInsts()
	last := insts[len(insts)-1]
	require.Equal(t, ir.OpcodeTrap, f.DFG.ViewInst(last).Opcode())
	require.Equal(t, ir.TrapHeapOutOfBounds, f.DFG.ViewInst(last).TrapCode())
}

func TestGeneralCaseEmitsOverflowTrapAndBoundCheck(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I32)
	hd := dynamicHeap32()
	hd.GuardBytes = 0
	hd.MinimumBytes = 0
	heap := f.DFG.MakeHeap(hd)
	gv := f.DFG.MakeGlobalValue(ir.GlobalValueData{Type: ir.I64})
	hd2 := f.DFG.HeapData(heap)
	hd2.BoundGlobalValue = gv
	hd2.BaseGlobalValue = gv

	addr, traps := LowerHeapAddress(cur, f, heap, idx, 16, 4, Target{PointerBits: 64})
	require.False(t, traps)
	require.True(t, addr.Valid())

	var sawOverflow, sawGlobal bool
	for _, i := range f.LayoutOrderInsts() {
		switch f.DFG.ViewInst(i).Opcode() {
		case ir.OpcodeUaddOverflowTrap:
			sawOverflow = true
		case ir.OpcodeGlobalValue:
			sawGlobal = true
		}
	}
	require.True(t, sawOverflow)
	require.True(t, sawGlobal)
}

func TestNonSpectreModeSplitsIntoTrapAndContinuationBlocks(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I32)
	hd := dynamicHeap32()
	hd.GuardBytes = 0
	hd.MinimumBytes = 0
	heap := f.DFG.MakeHeap(hd)
	gv := f.DFG.MakeGlobalValue(ir.GlobalValueData{Type: ir.I64})
	hd2 := f.DFG.HeapData(heap)
	hd2.BoundGlobalValue = gv
	hd2.BaseGlobalValue = gv

	startBlocks := f.DFG.NumBlocks()
	_, traps := LowerHeapAddress(cur, f, heap, idx, 16, 4, Target{PointerBits: 64, Spectre: false})
	require.False(t, traps)
	require.Equal(t, startBlocks+2, f.DFG.NumBlocks())

	var sawTrapBlock bool
	b := f.Layout.FirstBlock()
	for b.Valid() {
		last := f.Layout.LastInst(b)
		if last.Valid() && f.DFG.ViewInst(last).Opcode() == ir.OpcodeTrap {
			sawTrapBlock = true
		}
		b = f.Layout.NextBlock(b)
	}
	require.True(t, sawTrapBlock)
}

func TestSpectreModeEmitsSelectAndNoExtraBlocks(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I32)
	hd := dynamicHeap32()
	hd.GuardBytes = 0
	hd.MinimumBytes = 0
	heap := f.DFG.MakeHeap(hd)
	gv := f.DFG.MakeGlobalValue(ir.GlobalValueData{Type: ir.I64})
	hd2 := f.DFG.HeapData(heap)
	hd2.BoundGlobalValue = gv
	hd2.BaseGlobalValue = gv

	startBlocks := f.DFG.NumBlocks()
	_, traps := LowerHeapAddress(cur, f, heap, idx, 16, 4, Target{PointerBits: 64, Spectre: true})
	require.False(t, traps)
	require.Equal(t, startBlocks, f.DFG.NumBlocks())

	var guard *ir.Inst
	for _, i := range f.LayoutOrderInsts() {
		if iv := f.DFG.ViewInst(i); iv.Opcode() == ir.OpcodeSelectSpectreGuard {
			guard = iv
		}
	}
	require.NotNil(t, guard)

	// The guard must select over the already-offset address, not base+index
	// alone: folding the offset add in afterward would let the suppressed
	// ("in bounds") path speculatively compute 0+offset instead of exactly
	// 0, landing outside the guard region for a large static offset.
	addrInst, ok := f.DFG.ValueDefInst(guard.Arg(0))
	require.True(t, ok)
	addrIV := f.DFG.ViewInst(addrInst)
	require.Equal(t, ir.OpcodeIadd, addrIV.Opcode())

	offsetInst, ok := f.DFG.ValueDefInst(addrIV.Arg(1))
	require.True(t, ok)
	offsetIV := f.DFG.ViewInst(offsetInst)
	require.Equal(t, ir.OpcodeIconst, offsetIV.Opcode())
	require.Equal(t, int64(16), offsetIV.Imm())
}

func TestUnitAccessUsesGreaterThanOrEqual(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I32)
	hd := ir.HeapData{
		IndexType:        ir.I32,
		Style:            ir.MemoryStyleDynamic,
		MinimumBytes:     65536,
		ReservationBytes: 65536,
		GuardBytes:       0,
		MayMove:          true,
	}
	heap := f.DFG.MakeHeap(hd)
	gv := f.DFG.MakeGlobalValue(ir.GlobalValueData{Type: ir.I64})
	hd2 := f.DFG.HeapData(heap)
	hd2.BoundGlobalValue = gv
	hd2.BaseGlobalValue = gv

	_, traps := LowerHeapAddress(cur, f, heap, idx, 0, 1, Target{PointerBits: 64, Spectre: true})
	require.False(t, traps)

	var found bool
	for _, i := range f.LayoutOrderInsts() {
		v := f.DFG.ViewInst(i)
		if v.Opcode() == ir.OpcodeIcmp && v.Cond() == ir.IntUnsignedGreaterThanOrEqual {
			found = true
		}
	}
	require.True(t, found)
}

func TestFixedReservationNonMovingUsesConstantBound(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I32)
	hd := ir.HeapData{
		IndexType:        ir.I32,
		Style:            ir.MemoryStyleStatic,
		MayMove:          false,
		MinimumBytes:     65536,
		ReservationBytes: 65536,
		GuardBytes:       0,
	}
	heap := f.DFG.MakeHeap(hd)
	gv := f.DFG.MakeGlobalValue(ir.GlobalValueData{Type: ir.I64})
	hd2 := f.DFG.HeapData(heap)
	hd2.BaseGlobalValue = gv

	_, traps := LowerHeapAddress(cur, f, heap, idx, 0, 4, Target{PointerBits: 64})
	require.False(t, traps)

	globalLoads := 0
	for _, i := range f.LayoutOrderInsts() {
		if f.DFG.ViewInst(i).Opcode() == ir.OpcodeGlobalValue {
			globalLoads++
		}
	}
	require.Equal(t, 1, globalLoads, "only the base pointer should be a global load; the bound must be a compile-time constant")
}

func TestPCCFactAttachedWhenMemoryTypeSet(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I32)
	hd := dynamicHeap32()
	hd.GuardBytes = 0
	hd.MinimumBytes = 0
	hd.PCCMemoryType = 7
	heap := f.DFG.MakeHeap(hd)
	gv := f.DFG.MakeGlobalValue(ir.GlobalValueData{Type: ir.I64})
	hd2 := f.DFG.HeapData(heap)
	hd2.BoundGlobalValue = gv
	hd2.BaseGlobalValue = gv

	addr, traps := LowerHeapAddress(cur, f, heap, idx, 16, 4, Target{PointerBits: 64, PCC: true})
	require.False(t, traps)

	fact, ok := f.FactOf(addr)
	require.True(t, ok)
	require.Equal(t, ir.FactMemory, fact.Kind)
	require.Equal(t, ir.PCCMemoryType(7), fact.Memory)
	require.Equal(t, int64(16), fact.Offset)
}

func TestWideIndexOnNarrowPointerChecksHighBits(t *testing.T) {
	f, cur, idx := newFuncWithIndex(t, ir.I64)
	hd := ir.HeapData{
		IndexType:        ir.I64,
		Style:            ir.MemoryStyleDynamic,
		MinimumBytes:     65536,
		ReservationBytes: 65536,
		GuardBytes:       0,
		MayMove:          true,
	}
	heap := f.DFG.MakeHeap(hd)
	gv := f.DFG.MakeGlobalValue(ir.GlobalValueData{Type: ir.I32})
	hd2 := f.DFG.HeapData(heap)
	hd2.BoundGlobalValue = gv
	hd2.BaseGlobalValue = gv

	_, traps := LowerHeapAddress(cur, f, heap, idx, 0, 4, Target{PointerBits: 32, Spectre: true})
	require.False(t, traps)

	var sawShift, sawReduce bool
	for _, i := range f.LayoutOrderInsts() {
		switch f.DFG.ViewInst(i).Opcode() {
		case ir.OpcodeUshr:
			sawShift = true
		case ir.OpcodeIreduce:
			sawReduce = true
		}
	}
	require.True(t, sawShift, "wide index must be range-checked via a high-bits shift")
	require.True(t, sawReduce, "wide index must be narrowed to the pointer width after the check")
}
