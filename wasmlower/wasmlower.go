// Package wasmlower lowers a Wasm linear-memory access (a dynamic index, a
// static byte offset, and a static access size) into bounds-checked IR
// address computation, spliced into a function through a cursor. Modeled
// on Cranelift's bounds_checks.rs eight-case algorithm, generalized past
// wazero's hand-written memOpSetup into a reusable lowering usable from
// any caller holding a cursor.FuncCursor.
package wasmlower

import (
	"github.com/wazevocore/codegen/cursor"
	"github.com/wazevocore/codegen/ir"
)

// Target describes the parts of the code-generation target that affect
// bounds-check lowering: the native pointer width and whether Spectre
// (speculative-execution) mitigations and proof-carrying-code annotation
// are enabled.
type Target struct {
	PointerBits int // 32 or 64
	Spectre     bool
	PCC         bool
}

func (t Target) pointerType() ir.Type {
	if t.PointerBits == 64 {
		return ir.I64
	}
	return ir.I32
}

// LowerHeapAddress computes the host address at which a heap access of
// accessSize bytes at dynamic index + static offset may proceed, emitting
// whatever bounds-check code the heap's shape requires at the cursor's
// current position. It returns (address, false) when the access may
// proceed, or (ir.ValueInvalid, true) when the access unconditionally
// traps (in which case a Trap instruction has already been emitted and the
// caller must not append further instructions to the block the cursor
// started in).
func LowerHeapAddress(cur *cursor.FuncCursor, f *ir.Function, heap ir.Heap, index ir.Value, offset uint32, accessSize uint8, target Target) (ir.Value, bool) {
	hd := f.DFG.HeapData(heap)
	sum := uint64(offset) + uint64(accessSize)
	const wrap32 = uint64(1) << 32

	// Case 1: static oversize.
	if hd.MaximumBytes != 0 && sum > hd.MaximumBytes {
		emitTrap(cur, f)
		return ir.ValueInvalid, true
	}
	// Case 2: pointer-width overflow.
	if target.PointerBits == 32 && sum >= wrap32 {
		emitTrap(cur, f)
		return ir.ValueInvalid, true
	}

	preparedIndex := prepareIndex(cur, f, hd, index, target)

	// Case 3: elidable check (32-bit index types only).
	if hd.IndexType == ir.I32 && hd.ReservationBytes+hd.GuardBytes >= sum && (hd.ReservationBytes+hd.GuardBytes-sum) >= wrap32 {
		return computeAddress(cur, f, hd, preparedIndex, offset, target, nil)
	}

	var cond ir.Value
	switch {
	case hd.Style == ir.MemoryStyleStatic && !hd.MayMove:
		// Case 4: fixed reservation, non-moving — the runtime size never
		// exceeds the static reservation, so the bound is a compile-time
		// constant.
		bound := uint64(0)
		if hd.ReservationBytes > sum {
			bound = hd.ReservationBytes - sum
		}
		boundVal := emitIconst(cur, f, target.pointerType(), int64(bound))
		cond = emitIcmp(cur, f, ir.IntUnsignedGreaterThanOrEqual, preparedIndex, boundVal)

	case sum == 1:
		// Case 5: unit access.
		boundVal := emitGlobalLoad(cur, f, hd.BoundGlobalValue, target.pointerType())
		cond = emitIcmp(cur, f, ir.IntUnsignedGreaterThanOrEqual, preparedIndex, boundVal)

	case sum <= hd.GuardBytes:
		// Case 6: guard covers the offset.
		boundVal := emitGlobalLoad(cur, f, hd.BoundGlobalValue, target.pointerType())
		cond = emitIcmp(cur, f, ir.IntUnsignedGreaterThan, preparedIndex, boundVal)

	case sum <= hd.MinimumBytes:
		// Case 7: small static offset — bound - sum cannot underflow.
		boundVal := emitGlobalLoad(cur, f, hd.BoundGlobalValue, target.pointerType())
		sumConst := emitIconst(cur, f, target.pointerType(), int64(sum))
		adjustedBound := emitArith(cur, f, ir.OpcodeIsub, boundVal, sumConst)
		cond = emitIcmp(cur, f, ir.IntUnsignedGreaterThan, preparedIndex, adjustedBound)

	default:
		// Case 8: general case.
		boundVal := emitGlobalLoad(cur, f, hd.BoundGlobalValue, target.pointerType())
		sumConst := emitIconst(cur, f, target.pointerType(), int64(sum))
		adjusted := f.DFG.MakeInst(ir.OpcodeUaddOverflowTrap)
		av := f.DFG.ViewInst(adjusted)
		av.SetArgs(preparedIndex, sumConst)
		av.SetType(target.pointerType())
		av.SetTrapCode(ir.TrapHeapOutOfBounds)
		cur.InsertInst(adjusted)
		adjustedVal := f.DFG.CreateResult(adjusted, target.pointerType())
		cond = emitIcmp(cur, f, ir.IntUnsignedGreaterThan, adjustedVal, boundVal)
	}

	return computeAddress(cur, f, hd, preparedIndex, offset, target, &cond)
}

// prepareIndex widens or narrows index to the pointer width per spec
// §4.7's "Index preparation": an index type wider than the pointer type is
// range-checked (trapping if any high bit is set) then narrowed; a
// narrower or equal-width index is zero-extended.
func prepareIndex(cur *cursor.FuncCursor, f *ir.Function, hd *ir.HeapData, index ir.Value, target Target) ir.Value {
	ptrType := target.pointerType()
	if hd.IndexType.Bits() <= ptrType.Bits() {
		if hd.IndexType.Bits() == ptrType.Bits() {
			return index
		}
		return emitConvert(cur, f, ir.OpcodeUextend, index, ptrType)
	}

	// This is a legality check on the index itself, not the Spectre-sensitive
	// bounds decision computeAddress makes further down, so it always traps
	// explicitly rather than folding into a speculative guard.
	shiftAmt := emitIconst(cur, f, hd.IndexType, int64(ptrType.Bits()))
	hiBits := emitArith(cur, f, ir.OpcodeUshr, index, shiftAmt)
	zero := emitIconst(cur, f, hd.IndexType, 0)
	cond := emitIcmp(cur, f, ir.IntNotEqual, hiBits, zero)
	splitForTrap(cur, f, cond)

	return emitConvert(cur, f, ir.OpcodeIreduce, index, ptrType)
}

// splitForTrap splits the cursor's current block (which must be
// positioned After) into [current | trap | continuation], emitting a
// non-terminator branch to the trap block followed by an unconditional
// jump to the continuation, per the Layout's critical-edge invariant. The
// cursor ends positioned After the continuation block.
func splitForTrap(cur *cursor.FuncCursor, f *ir.Function, cond ir.Value) {
	trapBlock := f.DFG.MakeBlock()
	contBlock := f.DFG.MakeBlock()

	brnz := f.DFG.MakeInst(ir.OpcodeBrnz)
	bv := f.DFG.ViewInst(brnz)
	bv.SetArgs(cond)
	bv.SetTargets(trapBlock)
	cur.InsertInst(brnz)

	jmp := f.DFG.MakeInst(ir.OpcodeJump)
	f.DFG.ViewInst(jmp).SetTargets(contBlock)
	cur.InsertInst(jmp)

	cur.InsertBlock(trapBlock)
	emitTrap(cur, f)

	cur.InsertBlock(contBlock)
}

// emitTrap appends an unconditional heap-out-of-bounds trap at the cursor.
func emitTrap(cur *cursor.FuncCursor, f *ir.Function) {
	trap := f.DFG.MakeInst(ir.OpcodeTrap)
	f.DFG.ViewInst(trap).SetTrapCode(ir.TrapHeapOutOfBounds)
	cur.InsertInst(trap)
}

// computeAddress emits base + zext(index) + offset, folding cond (if
// non-nil) into a select_spectre_guard applied to the complete, already
// offset address when Spectre mitigations are enabled, or splitting into
// an explicit trap branch otherwise. The offset add must happen before the
// guard, not after: folding the guard over base+index and only then adding
// offset would let the mispredicted ("in-bounds") path speculatively
// compute address 0+offset instead of exactly 0, which for a large static
// offset can land outside any guard region and defeats the mitigation —
// see bounds_checks.rs's compute_addr/explicit_check_oob_condition_and_compute_addr,
// which always adds the offset first and selects over the result.
func computeAddress(cur *cursor.FuncCursor, f *ir.Function, hd *ir.HeapData, preparedIndex ir.Value, offset uint32, target Target, cond *ir.Value) (ir.Value, bool) {
	ptrType := target.pointerType()
	base := emitGlobalLoad(cur, f, hd.BaseGlobalValue, ptrType)
	baseAddr := emitArith(cur, f, ir.OpcodeIadd, base, preparedIndex)

	offsetConst := emitIconst(cur, f, ptrType, int64(offset))
	addr := emitArith(cur, f, ir.OpcodeIadd, baseAddr, offsetConst)

	if cond != nil {
		if target.Spectre {
			zero := emitIconst(cur, f, ptrType, 0)
			guard := f.DFG.MakeInst(ir.OpcodeSelectSpectreGuard)
			gv := f.DFG.ViewInst(guard)
			gv.SetArgs(addr, zero, *cond)
			gv.SetType(ptrType)
			cur.InsertInst(guard)
			addr = f.DFG.CreateResult(guard, ptrType)
		} else {
			splitForTrap(cur, f, *cond)
		}
	}

	if target.PCC && hd.PCCMemoryType.Valid() {
		f.SetFact(addr, ir.Fact{
			Kind:       ir.FactMemory,
			Memory:     hd.PCCMemoryType,
			Offset:     int64(offset),
			AccessSize: 0,
		})
	}

	return addr, false
}

func emitIconst(cur *cursor.FuncCursor, f *ir.Function, typ ir.Type, imm int64) ir.Value {
	inst := f.DFG.MakeInst(ir.OpcodeIconst)
	iv := f.DFG.ViewInst(inst)
	iv.SetType(typ)
	iv.SetImm(imm)
	cur.InsertInst(inst)
	return f.DFG.CreateResult(inst, typ)
}

func emitArith(cur *cursor.FuncCursor, f *ir.Function, op ir.Opcode, a, b ir.Value) ir.Value {
	inst := f.DFG.MakeInst(op)
	typ := f.DFG.ValueType(a)
	iv := f.DFG.ViewInst(inst)
	iv.SetArgs(a, b)
	iv.SetType(typ)
	cur.InsertInst(inst)
	return f.DFG.CreateResult(inst, typ)
}

func emitConvert(cur *cursor.FuncCursor, f *ir.Function, op ir.Opcode, v ir.Value, typ ir.Type) ir.Value {
	inst := f.DFG.MakeInst(op)
	iv := f.DFG.ViewInst(inst)
	iv.SetArgs(v)
	iv.SetType(typ)
	cur.InsertInst(inst)
	return f.DFG.CreateResult(inst, typ)
}

func emitIcmp(cur *cursor.FuncCursor, f *ir.Function, c ir.IntegerCmpCond, a, b ir.Value) ir.Value {
	inst := f.DFG.MakeInst(ir.OpcodeIcmp)
	iv := f.DFG.ViewInst(inst)
	iv.SetArgs(a, b)
	iv.SetCond(c)
	iv.SetType(ir.B1)
	cur.InsertInst(inst)
	return f.DFG.CreateResult(inst, ir.B1)
}

func emitGlobalLoad(cur *cursor.FuncCursor, f *ir.Function, gv ir.GlobalValue, typ ir.Type) ir.Value {
	inst := f.DFG.MakeInst(ir.OpcodeGlobalValue)
	iv := f.DFG.ViewInst(inst)
	iv.SetGlobalValueRef(gv)
	iv.SetType(typ)
	cur.InsertInst(inst)
	return f.DFG.CreateResult(inst, typ)
}
