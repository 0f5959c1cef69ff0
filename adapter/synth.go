package adapter

import (
	"github.com/wazevocore/codegen/cursor"
	"github.com/wazevocore/codegen/ir"
)

// synthesizer holds the in-progress state of one fused adapter function.
// There is no analog of fact/trampoline.rs's `locals`/`nlocals`/`code`
// fields: this emits IR through cur directly, and every intermediate
// value is just an ir.Value rather than a wasm local index.
type synthesizer struct {
	f    *ir.Function
	cur  *cursor.FuncCursor
	data *AdapterData

	lowerMem, liftMem         ir.Heap
	lowerFlags, liftFlags     ir.GlobalValue
	callee, postReturn        ir.FuncRef
	lowerRealloc, liftRealloc ir.FuncRef
}

// Synthesize builds one fused adapter function from data, following the
// eight-step protocol of spec §4.8 (numbered identically to
// fact/trampoline.rs's Compiler::compile): the MAY_LEAVE/MAY_ENTER flag
// checks, parameter translation, the direct call, result translation, the
// optional post-return hook, and the closing MAY_ENTER set.
func Synthesize(name string, data *AdapterData) *ir.Function {
	paramsFlat := flatCountAll(data.Params)
	resultFlat := FlatCount(data.Result)
	resultIndirect := resultFlat > MaxFlatResults

	sig := ir.Signature{}
	if paramsFlat <= MaxFlatParams {
		for i := 0; i < paramsFlat; i++ {
			sig.Params = append(sig.Params, ir.I32)
		}
	} else {
		sig.Params = append(sig.Params, data.Lower.ptr())
	}
	if resultIndirect {
		sig.Params = append(sig.Params, data.Lower.ptr())
	} else {
		for i := 0; i < resultFlat; i++ {
			sig.Results = append(sig.Results, ir.I32)
		}
	}

	f := ir.NewFunction(name, sig)
	entry := f.DFG.MakeBlock()
	paramVals := make([]ir.Value, len(sig.Params))
	for i, t := range sig.Params {
		paramVals[i] = f.DFG.AppendBlockParam(entry, t)
	}
	f.Layout.AppendBlock(entry)

	cur := cursor.New(f)
	cur.GotoBlock(entry)
	cur.NextInst() // entry is empty: Before -> After, ready for InsertInst

	s := &synthesizer{
		f: f, cur: cur, data: data,
		lowerMem:   f.DFG.MakeHeap(data.Lower.MemoryHeap),
		liftMem:    f.DFG.MakeHeap(data.Lift.MemoryHeap),
		lowerFlags: f.DFG.MakeGlobalValue(data.Lower.FlagsGlobal),
		liftFlags:  f.DFG.MakeGlobalValue(data.Lift.FlagsGlobal),
	}
	calleeSig := f.DFG.MakeSignature(data.CalleeSig)
	s.callee = f.DFG.MakeExtFuncData(ir.ExtFuncData{Name: data.CalleeName, Signature: calleeSig})
	if data.HasPostReturn {
		prSig := f.DFG.MakeSignature(data.PostReturnSig)
		s.postReturn = f.DFG.MakeExtFuncData(ir.ExtFuncData{Name: data.PostReturnName, Signature: prSig})
	}
	if data.Lower.HasRealloc {
		rSig := f.DFG.MakeSignature(data.Lower.ReallocSig)
		s.lowerRealloc = f.DFG.MakeExtFuncData(ir.ExtFuncData{Name: data.Lower.ReallocName, Signature: rSig})
	}
	if data.Lift.HasRealloc {
		rSig := f.DFG.MakeSignature(data.Lift.ReallocSig)
		s.liftRealloc = f.DFG.MakeExtFuncData(ir.ExtFuncData{Name: data.Lift.ReallocName, Signature: rSig})
	}

	s.compile(paramVals, resultIndirect)
	return f
}

func (s *synthesizer) compile(paramVals []ir.Value, resultIndirect bool) {
	// Step 1: the caller must be leavable.
	s.trapIfNotFlag(s.lowerFlags, s.data.Lower.ptr(), FlagMayLeave, ir.TrapCannotLeave)

	// Step 2.
	if s.data.CalledAsExport {
		s.trapIfNotFlag(s.liftFlags, s.data.Lift.ptr(), FlagMayEnter, ir.TrapCannotEnter)
		s.setFlag(s.liftFlags, s.data.Lift.ptr(), FlagMayEnter, false)
	} else if s.data.Debug {
		s.assertFlagClear(s.liftFlags, s.data.Lift.ptr(), FlagMayEnter, "may_enter should be unset")
	}

	// Step 3.
	s.setFlag(s.liftFlags, s.data.Lift.ptr(), FlagMayLeave, false)
	callArgs := s.translateParams(paramVals)
	s.setFlag(s.liftFlags, s.data.Lift.ptr(), FlagMayLeave, true)

	// Step 4. Step 5 ("capture each core result into a local") needs no
	// action here: the call's own results are already usable SSA values.
	callInst := s.emitCall(s.callee, callArgs)
	results := s.f.DFG.ViewInst(callInst).Results()

	// Step 6.
	s.setFlag(s.lowerFlags, s.data.Lower.ptr(), FlagMayLeave, false)
	returnVals := s.translateResults(results, paramVals, resultIndirect)
	s.setFlag(s.lowerFlags, s.data.Lower.ptr(), FlagMayLeave, true)

	// Step 7.
	if s.data.HasPostReturn {
		s.emitCall(s.postReturn, results)
	}
	// Step 8.
	if s.data.CalledAsExport {
		s.setFlag(s.liftFlags, s.data.Lift.ptr(), FlagMayEnter, true)
	}

	ret := s.f.DFG.MakeInst(ir.OpcodeReturn)
	s.f.DFG.ViewInst(ret).SetArgs(returnVals...)
	s.cur.InsertInst(ret)
}

// translateParams implements spec §4.8.1's parameter half: values flow
// from the caller's incoming arguments (stack, or a single pointer into
// the caller's memory once past MaxFlatParams) to the callee's expected
// shape (stack, or a lift.Realloc-allocated region). Params and results
// share one component signature (no subtyping), so both sides agree on
// whether this is indirect.
func (s *synthesizer) translateParams(paramVals []ir.Value) []ir.Value {
	paramsFlat := flatCountAll(s.data.Params)
	indirect := paramsFlat > MaxFlatParams

	var src source
	if !indirect {
		src = stackSource(paramVals[:paramsFlat])
	} else {
		addr := paramVals[0]
		_, align := sequentialSizeAlign(s.data.Params)
		s.verifyAligned(addr, align, s.data.Lower.ptr())
		src = memSource(memOperand{addr: addr, heap: s.lowerMem})
	}

	var dst destination
	var dstAddr ir.Value
	if !indirect {
		dst = stackDestination()
	} else {
		size, align := sequentialSizeAlign(s.data.Params)
		dstAddr = s.malloc(s.data.Lift, s.liftRealloc, size, align)
		dst = memDestination(memOperand{addr: dstAddr, heap: s.liftMem})
	}

	srcs := fieldSources(src, s.data.Params)
	dsts := fieldDestinations(dst, s.data.Params)

	var callArgs []ir.Value
	for i, ty := range s.data.Params {
		callArgs = append(callArgs, s.translate(ty, srcs[i], ty, dsts[i])...)
	}
	if indirect {
		callArgs = []ir.Value{dstAddr}
	}
	return callArgs
}

// translateResults implements spec §4.8.1's result half: values flow from
// the callee's direct-call results (stack, or a pointer the callee itself
// returns once past MaxFlatResults) to the caller's expected shape (stack,
// or the retptr the caller already passed as its trailing parameter).
func (s *synthesizer) translateResults(callResults, paramVals []ir.Value, resultIndirect bool) []ir.Value {
	var src source
	if !resultIndirect {
		src = stackSource(callResults)
	} else {
		addr := callResults[0]
		_, align := SizeAlign(s.data.Result)
		s.verifyAligned(addr, align, s.data.Lift.ptr())
		src = memSource(memOperand{addr: addr, heap: s.liftMem})
	}

	var dst destination
	if !resultIndirect {
		dst = stackDestination()
	} else {
		addr := paramVals[len(paramVals)-1]
		_, align := SizeAlign(s.data.Result)
		s.verifyAligned(addr, align, s.data.Lower.ptr())
		dst = memDestination(memOperand{addr: addr, heap: s.lowerMem})
	}

	vals := s.translate(s.data.Result, src, s.data.Result, dst)
	if resultIndirect {
		return nil
	}
	return vals
}

// translate dispatches on srcTy, recursing field-by-field for composites.
// It returns the flattened stack values produced when dst is the stack,
// or nil when dst is memory (the value was stored, not produced).
func (s *synthesizer) translate(srcTy InterfaceType, src source, dstTy InterfaceType, dst destination) []ir.Value {
	if src.isMem {
		s.assertAligned(srcTy, src.memory)
	}
	if dst.isMem {
		s.assertAligned(dstTy, dst.memory)
	}
	switch srcTy.Kind {
	case KindUnit:
		return nil
	case KindBool:
		return valueList(s.translateBool(src, dst))
	case KindU8:
		return valueList(s.translateU8(src, dst))
	case KindU32:
		return valueList(s.translateU32(src, dst))
	case KindRecord:
		return s.translateRecord(srcTy, src, dstTy, dst)
	case KindTuple:
		return s.translateTuple(srcTy, src, dstTy, dst)
	default:
		panic("adapter: unsupported InterfaceKind")
	}
}

func valueList(v ir.Value) []ir.Value {
	if !v.Valid() {
		return nil
	}
	return []ir.Value{v}
}

func (s *synthesizer) translateBool(src source, dst destination) ir.Value {
	raw := s.readScalar(src, ir.I8)
	one := s.emitIconst(ir.I32, 1)
	zero := s.emitIconst(ir.I32, 0)
	canon := s.emitSelect(one, zero, raw)
	return s.writeScalar(dst, canon, ir.I8)
}

func (s *synthesizer) translateU8(src source, dst destination) ir.Value {
	return s.writeScalar(dst, s.readScalar(src, ir.I8), ir.I8)
}

func (s *synthesizer) translateU32(src source, dst destination) ir.Value {
	return s.writeScalar(dst, s.readScalar(src, ir.I32), ir.I32)
}

// translateRecord matches fields between src and dst by name (they may be
// declared in different order), then recurses in dst field order so a
// stack destination receives its flattened values in the right sequence.
func (s *synthesizer) translateRecord(srcTy InterfaceType, src source, dstTy InterfaceType, dst destination) []ir.Value {
	srcSrcs := fieldSources(src, fieldTypes(srcTy.Record))
	type named struct {
		src source
		ty  InterfaceType
	}
	byName := make(map[string]named, len(srcTy.Record))
	for i, f := range srcTy.Record {
		byName[f.Name] = named{srcSrcs[i], f.Type}
	}

	dstDsts := fieldDestinations(dst, fieldTypes(dstTy.Record))
	var out []ir.Value
	for i, f := range dstTy.Record {
		n := byName[f.Name]
		out = append(out, s.translate(n.ty, n.src, f.Type, dstDsts[i])...)
	}
	return out
}

func (s *synthesizer) translateTuple(srcTy InterfaceType, src source, dstTy InterfaceType, dst destination) []ir.Value {
	srcSrcs := fieldSources(src, srcTy.Tuple)
	dstDsts := fieldDestinations(dst, dstTy.Tuple)
	var out []ir.Value
	for i := range dstTy.Tuple {
		out = append(out, s.translate(srcTy.Tuple[i], srcSrcs[i], dstTy.Tuple[i], dstDsts[i])...)
	}
	return out
}
