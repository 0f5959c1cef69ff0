package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockParams(t *testing.T) {
	f := NewFunction("f", Signature{Params: []Type{I32}, Results: []Type{I32}})
	b := f.DFG.MakeBlock()
	p0 := f.DFG.AppendBlockParam(b, I32)
	p1 := f.DFG.AppendBlockParam(b, I64)

	require.Equal(t, []Value{p0, p1}, f.DFG.BlockParams(b))
	require.Equal(t, 2, f.DFG.BlockParamCount(b))
	require.Equal(t, I32, f.DFG.ValueType(p0))
	require.Equal(t, I64, f.DFG.ValueType(p1))

	defBlock, ok := f.DFG.ValueDefBlock(p1)
	require.True(t, ok)
	require.Equal(t, b, defBlock)
}

func TestInstResultsAndLayoutOrdering(t *testing.T) {
	f := NewFunction("f", Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)
	require.True(t, f.Layout.IsBlockInserted(b))

	i1 := f.DFG.MakeInst(OpcodeIconst)
	v1 := f.DFG.CreateResult(i1, I32)
	f.Layout.AppendInst(b, i1)

	i2 := f.DFG.MakeInst(OpcodeIconst)
	v2 := f.DFG.CreateResult(i2, I32)
	f.Layout.AppendInst(b, i2)

	i3 := f.DFG.MakeInst(OpcodeIadd)
	f.DFG.ViewInst(i3).args = []Value{v1, v2}
	f.DFG.CreateResult(i3, I32)
	f.Layout.AppendInst(b, i3)

	require.Equal(t, []Inst{i1, i2, i3}, f.Layout.InstsOf(b))
	require.Equal(t, i1, f.Layout.FirstInst(b))
	require.Equal(t, i3, f.Layout.LastInst(b))
	require.Equal(t, i2, f.Layout.NextInst(i1))
	require.Equal(t, i2, f.Layout.PrevInst(i3))

	defInst, ok := f.DFG.ValueDefInst(v1)
	require.True(t, ok)
	require.Equal(t, i1, defInst)
}

func TestInsertInstBeforeAndAfter(t *testing.T) {
	f := NewFunction("f", Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	i1 := f.DFG.MakeInst(OpcodeIconst)
	f.Layout.AppendInst(b, i1)
	i3 := f.DFG.MakeInst(OpcodeIconst)
	f.Layout.AppendInst(b, i3)

	i2 := f.DFG.MakeInst(OpcodeIconst)
	f.Layout.InsertInstBefore(i2, i3)
	require.Equal(t, []Inst{i1, i2, i3}, f.Layout.InstsOf(b))

	i4 := f.DFG.MakeInst(OpcodeIconst)
	f.Layout.InsertInstAfter(i4, i3)
	require.Equal(t, []Inst{i1, i2, i3, i4}, f.Layout.InstsOf(b))
	require.Equal(t, i4, f.Layout.LastInst(b))
}

func TestRemoveInst(t *testing.T) {
	f := NewFunction("f", Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	i1 := f.DFG.MakeInst(OpcodeIconst)
	i2 := f.DFG.MakeInst(OpcodeIconst)
	i3 := f.DFG.MakeInst(OpcodeIconst)
	f.Layout.AppendInst(b, i1)
	f.Layout.AppendInst(b, i2)
	f.Layout.AppendInst(b, i3)

	f.Layout.RemoveInst(i2)
	require.Equal(t, []Inst{i1, i3}, f.Layout.InstsOf(b))
	require.Equal(t, BlockInvalid, f.Layout.InstBlock(i2))
}

func TestBlockOrderingAndInsertAfter(t *testing.T) {
	f := NewFunction("f", Signature{})
	b0 := f.DFG.MakeBlock()
	b1 := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b0)
	f.Layout.AppendBlock(b1)
	require.Equal(t, []Block{b0, b1}, f.Layout.Blocks())

	bMid := f.DFG.MakeBlock()
	f.Layout.InsertBlockAfter(bMid, b0)
	require.Equal(t, []Block{b0, bMid, b1}, f.Layout.Blocks())
	require.Equal(t, bMid, f.Layout.NextBlock(b0))
	require.Equal(t, b0, f.Layout.PrevBlock(bMid))
}

func TestSplitBlockMovesTailInstructions(t *testing.T) {
	f := NewFunction("f", Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	i1 := f.DFG.MakeInst(OpcodeIconst)
	i2 := f.DFG.MakeInst(OpcodeIconst)
	i3 := f.DFG.MakeInst(OpcodeIconst)
	f.Layout.AppendInst(b, i1)
	f.Layout.AppendInst(b, i2)
	f.Layout.AppendInst(b, i3)

	tail := f.DFG.MakeBlock()
	f.Layout.SplitBlock(tail, b, i2)
	require.Equal(t, []Inst{i1}, f.Layout.InstsOf(b))
	require.Equal(t, []Inst{i2, i3}, f.Layout.InstsOf(tail))
	require.Equal(t, tail, f.Layout.NextBlock(b))
}

func TestResolveAlias(t *testing.T) {
	f := NewFunction("f", Signature{})
	b := f.DFG.MakeBlock()
	v0 := f.DFG.AppendBlockParam(b, I32)
	v1 := f.DFG.AppendBlockParam(b, I32)
	v2 := f.DFG.AppendBlockParam(b, I32)

	f.DFG.ChangeToAlias(v0, v1)
	f.DFG.ChangeToAlias(v1, v2)

	require.Equal(t, v2, f.DFG.ResolveAlias(v0))
	require.Equal(t, v2, f.DFG.ResolveAlias(v1))
	require.Equal(t, v2, f.DFG.ResolveAlias(v2))
}

func TestConstantInterning(t *testing.T) {
	f := NewFunction("f", Signature{})
	c1 := f.DFG.MakeConstant([]byte{1, 2, 3, 4})
	c2 := f.DFG.MakeConstant([]byte{1, 2, 3, 4})
	c3 := f.DFG.MakeConstant([]byte{5, 6, 7, 8})
	require.Equal(t, c1, c2)
	require.NotEqual(t, c1, c3)
}

func TestIsBlockTerminated(t *testing.T) {
	f := NewFunction("f", Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)
	require.False(t, f.IsBlockTerminated(b))

	ret := f.DFG.MakeInst(OpcodeReturn)
	f.Layout.AppendInst(b, ret)
	require.True(t, f.IsBlockTerminated(b))
}

func TestOpcodeClassification(t *testing.T) {
	require.True(t, OpcodeJump.IsTerminator())
	require.True(t, OpcodeJump.IsBranch())
	require.False(t, OpcodeJump.IsNonTerminatorBranch())

	require.False(t, OpcodeBrz.IsTerminator())
	require.True(t, OpcodeBrz.IsBranch())
	require.True(t, OpcodeBrz.IsNonTerminatorBranch())

	require.False(t, OpcodeIadd.IsBranch())
}

func TestTypeAlgebraShapes(t *testing.T) {
	v := VectorOf(I32, 4)
	require.True(t, v.IsVector())
	require.Equal(t, 4, v.Lanes())
	require.Equal(t, I32, v.LaneType())
	require.Equal(t, 128, v.Bits())

	bv := BitVecOf(128)
	require.True(t, bv.IsBitVector())
	require.Equal(t, 128, bv.Bits())
}

func TestTypeAlgebraPanicsOnIllegalShape(t *testing.T) {
	require.Panics(t, func() { VectorOf(I32, 3) })
	require.Panics(t, func() { BitVecOf(3) })
}
