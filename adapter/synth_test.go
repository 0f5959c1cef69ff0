package adapter

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazevocore/codegen/compiler"
	"github.com/wazevocore/codegen/ir"
)

func testOptions(realloc bool) Options {
	o := Options{
		MemoryHeap:  ir.HeapData{},
		FlagsGlobal: ir.GlobalValueData{Kind: ir.GlobalValueVMContext, VMOffset: 0},
	}
	if realloc {
		o.HasRealloc = true
		o.ReallocName = ir.ExternalName{Kind: ir.ExternalNameUser, Namespace: 0, Index: 1}
		o.ReallocSig = ir.Signature{
			Params:  []ir.Type{ir.I32, ir.I32, ir.I32, ir.I32},
			Results: []ir.Type{ir.I32},
		}
	}
	return o
}

func baseData(params []InterfaceType, result InterfaceType) *AdapterData {
	return &AdapterData{
		Params: params,
		Result: result,
		Lower:  testOptions(true),
		Lift:   testOptions(true),
		CalleeName: ir.ExternalName{Kind: ir.ExternalNameUser, Namespace: 0, Index: 2},
		CalleeSig: ir.Signature{
			Params:  flatParamSig(params),
			Results: flatResultSig(result),
		},
		CalledAsExport: true,
		Debug:          true,
	}
}

func flatParamSig(params []InterfaceType) []ir.Type {
	n := flatCountAll(params)
	out := make([]ir.Type, n)
	for i := range out {
		out[i] = ir.I32
	}
	return out
}

func flatResultSig(result InterfaceType) []ir.Type {
	n := FlatCount(result)
	out := make([]ir.Type, n)
	for i := range out {
		out[i] = ir.I32
	}
	return out
}

func TestSynthesizeSimpleScalarsCompiles(t *testing.T) {
	data := baseData([]InterfaceType{Bool(), U8(), U32()}, U32())
	f := Synthesize("adapt_scalars", data)
	require.Equal(t, 3, len(f.Signature.Params))
	require.Equal(t, 1, len(f.Signature.Results))

	isa := compiler.NewReferenceISA("ref64", "ref-unknown-unknown", 64)
	a, err := compiler.Compile(f, isa)
	require.NoError(t, err)
	require.NotEmpty(t, a.Buffer.Code)
}

func TestSynthesizeRecordParamCompiles(t *testing.T) {
	srcRec := Record(
		RecordField{Name: "b", Type: U32()},
		RecordField{Name: "a", Type: U8()},
	)
	dstRec := Record(
		RecordField{Name: "a", Type: U8()},
		RecordField{Name: "b", Type: U32()},
	)
	data := baseData([]InterfaceType{srcRec}, Unit())
	// Synthesize passes the same record type as both source and destination,
	// so this only checks that a record parameter compiles; dstRec (the
	// reordered layout) is not exercised through this path.
	data.Params = []InterfaceType{srcRec}
	f := Synthesize("adapt_record", data)

	isa := compiler.NewReferenceISA("ref64", "ref-unknown-unknown", 64)
	_, err := compiler.Compile(f, isa)
	require.NoError(t, err)
	_ = dstRec
}

func TestSynthesizeTupleCompiles(t *testing.T) {
	data := baseData([]InterfaceType{Tuple(U8(), U32(), Bool())}, Unit())
	f := Synthesize("adapt_tuple", data)

	isa := compiler.NewReferenceISA("ref64", "ref-unknown-unknown", 64)
	_, err := compiler.Compile(f, isa)
	require.NoError(t, err)
}

func TestSynthesizeIndirectParamsAndResultsCompiles(t *testing.T) {
	// 17 U32 params exceeds MaxFlatParams(16); a record of 2 U32s as the
	// result exceeds MaxFlatResults(1).
	var params []InterfaceType
	for i := 0; i < 17; i++ {
		params = append(params, U32())
	}
	result := Record(RecordField{Name: "x", Type: U32()}, RecordField{Name: "y", Type: U32()})

	data := baseData(params, result)
	data.CalleeSig = ir.Signature{
		Params:  []ir.Type{data.Lift.ptr()},
		Results: []ir.Type{data.Lift.ptr()},
	}

	f := Synthesize("adapt_indirect", data)
	require.Equal(t, 2, len(f.Signature.Params)) // [pointer to params, retptr]
	require.Equal(t, 0, len(f.Signature.Results))

	isa := compiler.NewReferenceISA("ref64", "ref-unknown-unknown", 64)
	_, err := compiler.Compile(f, isa)
	require.NoError(t, err)
}

func TestSynthesizeNonExportAssertsMayEnterClear(t *testing.T) {
	data := baseData([]InterfaceType{U32()}, U32())
	data.CalledAsExport = false
	data.Debug = true

	f := Synthesize("adapt_import_fulfillment", data)

	var sawAssert bool
	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		for _, i := range f.Layout.InstsOf(b) {
			inst := f.DFG.ViewInst(i)
			if inst.Opcode() == ir.OpcodeTrap && inst.TrapCode() == ir.TrapAssertFailed {
				sawAssert = true
				require.Equal(t, "may_enter should be unset", inst.AssertMessage())
			}
		}
	}
	require.True(t, sawAssert)

	isa := compiler.NewReferenceISA("ref64", "ref-unknown-unknown", 64)
	_, err := compiler.Compile(f, isa)
	require.NoError(t, err)
}

func TestSynthesizeEmitsCannotLeaveAndCannotEnterTraps(t *testing.T) {
	data := baseData([]InterfaceType{U32()}, U32())
	f := Synthesize("adapt_traps", data)

	codes := map[ir.TrapCode]bool{}
	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		for _, i := range f.Layout.InstsOf(b) {
			inst := f.DFG.ViewInst(i)
			if inst.Opcode() == ir.OpcodeTrap {
				codes[inst.TrapCode()] = true
			}
		}
	}
	require.True(t, codes[ir.TrapCannotLeave])
	require.True(t, codes[ir.TrapCannotEnter])
}

func TestSizeAlignAndFlatCount(t *testing.T) {
	size, align := SizeAlign(Record(
		RecordField{Name: "a", Type: U8()},
		RecordField{Name: "b", Type: U32()},
	))
	require.Equal(t, uint32(4), align)
	require.Equal(t, uint32(8), size) // u8 at 0, pad to 4, u32 at 4..8

	require.Equal(t, 2, FlatCount(Tuple(U8(), U32())))
	require.Equal(t, 0, FlatCount(Unit()))
}
