package adapter

import "github.com/wazevocore/codegen/ir"

// trapIf splits the cursor's current block into [current | trap |
// continuation], exactly as wasmlower.splitForTrap does: a non-terminator
// branch to the trap block followed by an unconditional jump to the
// continuation, satisfying the layout's critical-edge invariant. The
// cursor ends positioned after the continuation block.
func (s *synthesizer) trapIf(cond ir.Value, code ir.TrapCode, msg string) {
	trapBlock := s.f.DFG.MakeBlock()
	contBlock := s.f.DFG.MakeBlock()

	brnz := s.f.DFG.MakeInst(ir.OpcodeBrnz)
	bv := s.f.DFG.ViewInst(brnz)
	bv.SetArgs(cond)
	bv.SetTargets(trapBlock)
	s.cur.InsertInst(brnz)

	jmp := s.f.DFG.MakeInst(ir.OpcodeJump)
	s.f.DFG.ViewInst(jmp).SetTargets(contBlock)
	s.cur.InsertInst(jmp)

	s.cur.InsertBlock(trapBlock)
	trap := s.f.DFG.MakeInst(ir.OpcodeTrap)
	tv := s.f.DFG.ViewInst(trap)
	tv.SetTrapCode(code)
	if code == ir.TrapAssertFailed {
		tv.SetAssertMessage(msg)
	}
	s.cur.InsertInst(trap)

	s.cur.InsertBlock(contBlock)
}

// --- instance-flags protocol (spec §4.8 steps 1-3, 8) ---

// The flags global materializes an address, the same convention
// ir.HeapData.BaseGlobalValue already uses; the 32-bit word at that
// address is read/written with ordinary Load/Store.

func (s *synthesizer) readFlags(g ir.GlobalValue, ptrTy ir.Type) ir.Value {
	addr := s.emitGlobalValue(g, ptrTy)
	return s.loadMem(memOperand{addr: addr}, ir.I32)
}

func (s *synthesizer) writeFlags(g ir.GlobalValue, ptrTy ir.Type, word ir.Value) {
	addr := s.emitGlobalValue(g, ptrTy)
	s.storeMem(memOperand{addr: addr}, word, ir.I32)
}

func (s *synthesizer) trapIfNotFlag(g ir.GlobalValue, ptrTy ir.Type, mask int32, code ir.TrapCode) {
	word := s.readFlags(g, ptrTy)
	maskC := s.emitIconst(ir.I32, int64(mask))
	anded := s.emitArith(ir.OpcodeBand, word, maskC)
	zero := s.emitIconst(ir.I32, 0)
	cond := s.emitIcmp(ir.IntEqual, anded, zero)
	s.trapIf(cond, code, "")
}

func (s *synthesizer) assertFlagClear(g ir.GlobalValue, ptrTy ir.Type, mask int32, msg string) {
	word := s.readFlags(g, ptrTy)
	maskC := s.emitIconst(ir.I32, int64(mask))
	anded := s.emitArith(ir.OpcodeBand, word, maskC)
	zero := s.emitIconst(ir.I32, 0)
	cond := s.emitIcmp(ir.IntNotEqual, anded, zero)
	s.trapIf(cond, ir.TrapAssertFailed, msg)
}

func (s *synthesizer) setFlag(g ir.GlobalValue, ptrTy ir.Type, mask int32, value bool) {
	word := s.readFlags(g, ptrTy)
	var updated ir.Value
	if value {
		maskC := s.emitIconst(ir.I32, int64(mask))
		updated = s.emitArith(ir.OpcodeBor, word, maskC)
	} else {
		maskC := s.emitIconst(ir.I32, int64(^mask))
		updated = s.emitArith(ir.OpcodeBand, word, maskC)
	}
	s.writeFlags(g, ptrTy, updated)
}

// --- alignment checks ---

// verifyAligned traps on a runtime address unless it is a multiple of
// align, mirroring fact/trampoline.rs's verify_aligned (always emitted,
// regardless of debug mode — this is the indirect-argument entry check).
func (s *synthesizer) verifyAligned(addr ir.Value, align uint32, ptrTy ir.Type) {
	if align <= 1 {
		return
	}
	mask := s.emitIconst(ptrTy, int64(align-1))
	anded := s.emitArith(ir.OpcodeBand, addr, mask)
	zero := s.emitIconst(ptrTy, 0)
	cond := s.emitIcmp(ir.IntNotEqual, anded, zero)
	s.trapIf(cond, ir.TrapUnalignedPointer, "")
}

// assertAligned is verify_aligned's debug-only counterpart (assert_aligned
// upstream): emitted at every field-level memory operand, only when
// Debug is set.
func (s *synthesizer) assertAligned(ty InterfaceType, m memOperand) {
	if !s.data.Debug {
		return
	}
	_, align := SizeAlign(ty)
	if align <= 1 {
		return
	}
	ptrTy := s.f.DFG.ValueType(m.addr)
	off := s.emitIconst(ptrTy, int64(m.offset))
	addr := s.emitArith(ir.OpcodeIadd, m.addr, off)
	mask := s.emitIconst(ptrTy, int64(align-1))
	anded := s.emitArith(ir.OpcodeBand, addr, mask)
	zero := s.emitIconst(ptrTy, 0)
	cond := s.emitIcmp(ir.IntNotEqual, anded, zero)
	s.trapIf(cond, ir.TrapAssertFailed, "pointer not aligned")
}

// --- allocation, load/store, scalar conversion ---

// malloc calls realloc(0, 0, align, size), the canonical-ABI recipe for a
// fresh allocation, and returns the resulting address.
func (s *synthesizer) malloc(opts Options, realloc ir.FuncRef, size, align uint32) ir.Value {
	ptrTy := opts.ptr()
	args := []ir.Value{
		s.emitIconst(ptrTy, 0),
		s.emitIconst(ptrTy, 0),
		s.emitIconst(ptrTy, int64(align)),
		s.emitIconst(ptrTy, int64(size)),
	}
	call := s.emitCall(realloc, args)
	return s.f.DFG.ViewInst(call).Result()
}

func (s *synthesizer) loadMem(m memOperand, typ ir.Type) ir.Value {
	inst := s.f.DFG.MakeInst(ir.OpcodeLoad)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetArgs(m.addr)
	iv.SetType(typ)
	iv.SetImm(int64(m.offset))
	iv.SetHeapRef(m.heap)
	s.cur.InsertInst(inst)
	return s.f.DFG.CreateResult(inst, typ)
}

func (s *synthesizer) storeMem(m memOperand, val ir.Value, typ ir.Type) {
	inst := s.f.DFG.MakeInst(ir.OpcodeStore)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetArgs(val, m.addr)
	iv.SetImm(int64(m.offset))
	iv.SetHeapRef(m.heap)
	iv.SetType(typ)
	s.cur.InsertInst(inst)
}

// readScalar loads a scalar from src, widening a sub-i32 memory load to
// i32 (every core value this package produces is an i32, even for an i8
// stored field).
func (s *synthesizer) readScalar(src source, memTy ir.Type) ir.Value {
	if src.isMem {
		v := s.loadMem(src.memory, memTy)
		if memTy.Bits() == ir.I32.Bits() {
			return v
		}
		return s.emitConvert(ir.OpcodeUextend, v, ir.I32)
	}
	return src.stack[0]
}

// writeScalar stores val (always i32-typed) into dst, narrowing to memTy
// when dst is memory. Returns ir.ValueInvalid when dst is memory, since
// nothing further is produced on the stack.
func (s *synthesizer) writeScalar(dst destination, val ir.Value, memTy ir.Type) ir.Value {
	if dst.isMem {
		stored := val
		if memTy.Bits() != ir.I32.Bits() {
			stored = s.emitConvert(ir.OpcodeIreduce, val, memTy)
		}
		s.storeMem(dst.memory, stored, memTy)
		return ir.ValueInvalid
	}
	return val
}

// --- small IR-emission helpers, templated on wasmlower's own ---

func (s *synthesizer) emitIconst(typ ir.Type, imm int64) ir.Value {
	inst := s.f.DFG.MakeInst(ir.OpcodeIconst)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetType(typ)
	iv.SetImm(imm)
	s.cur.InsertInst(inst)
	return s.f.DFG.CreateResult(inst, typ)
}

func (s *synthesizer) emitArith(op ir.Opcode, a, b ir.Value) ir.Value {
	inst := s.f.DFG.MakeInst(op)
	typ := s.f.DFG.ValueType(a)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetArgs(a, b)
	iv.SetType(typ)
	s.cur.InsertInst(inst)
	return s.f.DFG.CreateResult(inst, typ)
}

func (s *synthesizer) emitIcmp(c ir.IntegerCmpCond, a, b ir.Value) ir.Value {
	inst := s.f.DFG.MakeInst(ir.OpcodeIcmp)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetArgs(a, b)
	iv.SetCond(c)
	iv.SetType(ir.B1)
	s.cur.InsertInst(inst)
	return s.f.DFG.CreateResult(inst, ir.B1)
}

func (s *synthesizer) emitConvert(op ir.Opcode, v ir.Value, typ ir.Type) ir.Value {
	inst := s.f.DFG.MakeInst(op)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetArgs(v)
	iv.SetType(typ)
	s.cur.InsertInst(inst)
	return s.f.DFG.CreateResult(inst, typ)
}

func (s *synthesizer) emitGlobalValue(g ir.GlobalValue, typ ir.Type) ir.Value {
	inst := s.f.DFG.MakeInst(ir.OpcodeGlobalValue)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetGlobalValueRef(g)
	iv.SetType(typ)
	s.cur.InsertInst(inst)
	return s.f.DFG.CreateResult(inst, typ)
}

// emitSelect canonicalizes a raw byte to 0/1: select(cond != 0, one, zero).
func (s *synthesizer) emitSelect(onTrue, onFalse, cond ir.Value) ir.Value {
	inst := s.f.DFG.MakeInst(ir.OpcodeSelect)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetArgs(onTrue, onFalse, cond)
	iv.SetType(ir.I32)
	s.cur.InsertInst(inst)
	return s.f.DFG.CreateResult(inst, ir.I32)
}

func (s *synthesizer) emitCall(fn ir.FuncRef, args []ir.Value) ir.Inst {
	inst := s.f.DFG.MakeInst(ir.OpcodeCall)
	iv := s.f.DFG.ViewInst(inst)
	iv.SetFuncRef(fn)
	iv.SetArgs(args...)
	s.cur.InsertInst(inst)
	ed := s.f.DFG.ExtFuncData(fn)
	sig := s.f.DFG.Signature(ed.Signature)
	for _, rt := range sig.Results {
		s.f.DFG.CreateResult(inst, rt)
	}
	return inst
}
