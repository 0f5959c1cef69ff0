package cursor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazevocore/codegen/ir"
)

func buildTwoBlockFunc(f *ir.Function) (ir.Block, ir.Block, ir.Inst, ir.Inst) {
	b0 := f.DFG.MakeBlock()
	b1 := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b0)
	f.Layout.AppendBlock(b1)

	i0 := f.DFG.MakeInst(ir.OpcodeIconst)
	f.Layout.AppendInst(b0, i0)
	i1 := f.DFG.MakeInst(ir.OpcodeReturn)
	f.Layout.AppendInst(b1, i1)
	return b0, b1, i0, i1
}

func TestNextInstNeverCrossesBlocks(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b0, _, i0, _ := buildTwoBlockFunc(f)

	c := New(f)
	c.GotoBlock(b0)
	got, ok := c.NextInst()
	require.True(t, ok)
	require.Equal(t, i0, got)

	_, ok = c.NextInst()
	require.False(t, ok)
	require.Equal(t, After, c.Position().Kind())
}

func TestGotoTopAndNextBlock(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b0, b1, _, _ := buildTwoBlockFunc(f)

	c := New(f)
	c.GotoTop()
	require.Equal(t, b0, c.CurrentBlock())

	nb, ok := c.NextBlock()
	require.True(t, ok)
	require.Equal(t, b1, nb)

	_, ok = c.NextBlock()
	require.False(t, ok)
	require.Equal(t, Nowhere, c.Position().Kind())
}

func TestInsertInstAtInsertsBefore(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)
	i1 := f.DFG.MakeInst(ir.OpcodeIconst)
	f.Layout.AppendInst(b, i1)

	c := New(f)
	c.GotoInst(i1)
	i0 := f.DFG.MakeInst(ir.OpcodeIconst)
	c.InsertInst(i0)

	require.Equal(t, []ir.Inst{i0, i1}, f.Layout.InstsOf(b))
}

func TestInsertInstAfterAppends(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	c := New(f)
	c.GotoBlock(b)
	_, ok := c.NextInst()
	require.False(t, ok) // block is empty: lands on After(b)

	i0 := f.DFG.MakeInst(ir.OpcodeIconst)
	c.InsertInst(i0)
	i1 := f.DFG.MakeInst(ir.OpcodeIconst)
	c.InsertInst(i1)

	require.Equal(t, []ir.Inst{i0, i1}, f.Layout.InstsOf(b))
}

func TestInsertInstStampsSourceLoc(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	c := New(f)
	c.GotoBlock(b)
	c.NextInst()
	c.SetSourceLoc(ir.NewSourceLoc(0x42))
	i0 := f.DFG.MakeInst(ir.OpcodeIconst)
	c.InsertInst(i0)

	require.Equal(t, uint32(0x42), f.SourceLoc(i0).Bits())
}

func TestRemoveInstAdvances(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)
	i0 := f.DFG.MakeInst(ir.OpcodeIconst)
	i1 := f.DFG.MakeInst(ir.OpcodeIconst)
	f.Layout.AppendInst(b, i0)
	f.Layout.AppendInst(b, i1)

	c := New(f)
	c.GotoInst(i0)
	removed := c.RemoveInst()
	require.Equal(t, i0, removed)
	require.Equal(t, At, c.Position().Kind())

	cur, ok := c.BuiltInst()
	require.False(t, ok)
	_ = cur
	require.Equal(t, []ir.Inst{i1}, f.Layout.InstsOf(b))
}

func TestRemoveInstAndStepBack(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)
	i0 := f.DFG.MakeInst(ir.OpcodeIconst)
	i1 := f.DFG.MakeInst(ir.OpcodeIconst)
	f.Layout.AppendInst(b, i0)
	f.Layout.AppendInst(b, i1)

	c := New(f)
	c.GotoInst(i1)
	c.RemoveInstAndStepBack()
	require.Equal(t, At, c.Position().Kind())
	require.Equal(t, []ir.Inst{i0}, f.Layout.InstsOf(b))
}

func TestInsertBlockAtSplitsCurrentBlock(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)
	i0 := f.DFG.MakeInst(ir.OpcodeIconst)
	i1 := f.DFG.MakeInst(ir.OpcodeIconst)
	f.Layout.AppendInst(b, i0)
	f.Layout.AppendInst(b, i1)

	c := New(f)
	c.GotoInst(i1)
	nb := f.DFG.MakeBlock()
	c.InsertBlock(nb)

	require.Equal(t, []ir.Inst{i0}, f.Layout.InstsOf(b))
	require.Equal(t, []ir.Inst{i1}, f.Layout.InstsOf(nb))
	require.Equal(t, nb, f.Layout.NextBlock(b))
	require.Equal(t, At, c.Position().Kind())
}

func TestInsertBlockAfterMovesCursor(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	c := New(f)
	c.GotoBlock(b)
	c.NextInst() // lands After(b) since empty

	nb := f.DFG.MakeBlock()
	c.InsertBlock(nb)
	require.Equal(t, After, c.Position().Kind())
	require.Equal(t, nb, f.Layout.NextBlock(b))
}

func TestInsertBlockBeforeFirstBlock(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)

	c := New(f)
	c.GotoBlock(b)
	nb := f.DFG.MakeBlock()
	c.InsertBlock(nb)

	require.Equal(t, []ir.Block{nb, b}, f.Layout.Blocks())
}

func TestHygieneCheckPanicsOnNonTerminatorAfterBranch(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{})
	b := f.DFG.MakeBlock()
	f.Layout.AppendBlock(b)
	target := f.DFG.MakeBlock()
	f.Layout.AppendBlock(target)

	br := f.DFG.MakeInst(ir.OpcodeBrz)
	f.DFG.ViewInst(br).SetTargets(target)
	f.Layout.AppendInst(b, br)
	next := f.DFG.MakeInst(ir.OpcodeIconst)
	f.Layout.AppendInst(b, next)

	c := New(f)
	c.GotoInst(next)
	badInst := f.DFG.MakeInst(ir.OpcodeIconst)
	require.Panics(t, func() { c.InsertInst(badInst) })
}
