// Package cursor implements positional, layout-aware editing of a
// function's instruction stream: insertion, removal, block splitting, and
// bounded (non-block-crossing) iteration. Modeled on Cranelift's
// cursor.rs, generalized to operate over this module's separated
// ir.DataFlowGraph/ir.Layout pair instead of a single conflated structure.
package cursor

import "github.com/wazevocore/codegen/ir"

// PositionKind classifies a Position.
type PositionKind uint8

const (
	// Nowhere is not attached to any point in the layout; only navigation
	// (GotoTop, GotoBlock, NextBlock) and InsertBlock (which appends the
	// block) are legal.
	Nowhere PositionKind = iota
	// At sits immediately before a specific instruction; insertions go
	// before it.
	At
	// Before sits at the entry of a block, before its first instruction (or
	// equivalently at its end if empty); NextInst enters the block.
	Before
	// After sits at the exit of a block, after its last instruction;
	// insertions append to the block.
	After
)

// Position is the cursor's current location in a function's layout.
type Position struct {
	kind  PositionKind
	inst  ir.Inst
	block ir.Block
}

// PosNowhere is the unattached position.
var PosNowhere = Position{kind: Nowhere}

// PosAt returns the position immediately before i.
func PosAt(i ir.Inst) Position { return Position{kind: At, inst: i} }

// PosBefore returns the entry position of b.
func PosBefore(b ir.Block) Position { return Position{kind: Before, block: b} }

// PosAfter returns the exit position of b.
func PosAfter(b ir.Block) Position { return Position{kind: After, block: b} }

// Kind returns p's PositionKind.
func (p Position) Kind() PositionKind { return p.kind }

// FuncCursor is a mutable cursor over one Function's Layout. It never
// outlives the Function it was built from; callers are expected to hold it
// only as long as they are actively editing.
type FuncCursor struct {
	f        *ir.Function
	pos      Position
	srcLoc   ir.SourceLoc
	built    ir.Inst
	builtSet bool
}

// New returns a cursor positioned Nowhere over f.
func New(f *ir.Function) *FuncCursor {
	return &FuncCursor{f: f, pos: PosNowhere}
}

// Position returns the cursor's current position.
func (c *FuncCursor) Position() Position { return c.pos }

// GotoTop moves the cursor to Before the function's first block (Nowhere if
// the function has no blocks yet).
func (c *FuncCursor) GotoTop() {
	b := c.f.Layout.FirstBlock()
	if !b.Valid() {
		c.pos = PosNowhere
		return
	}
	c.pos = PosBefore(b)
}

// GotoBlock moves the cursor to Before b.
func (c *FuncCursor) GotoBlock(b ir.Block) { c.pos = PosBefore(b) }

// GotoBottom moves the cursor to After the function's last block.
func (c *FuncCursor) GotoBottom() {
	b := c.f.Layout.LastBlock()
	if !b.Valid() {
		c.pos = PosNowhere
		return
	}
	c.pos = PosAfter(b)
}

// GotoInst moves the cursor to At i.
func (c *FuncCursor) GotoInst(i ir.Inst) { c.pos = PosAt(i) }

// CurrentBlock returns the block the cursor's position belongs to, or
// ir.BlockInvalid if the cursor is Nowhere.
func (c *FuncCursor) CurrentBlock() ir.Block {
	switch c.pos.kind {
	case At:
		return c.f.Layout.InstBlock(c.pos.inst)
	case Before, After:
		return c.pos.block
	default:
		return ir.BlockInvalid
	}
}

// SetSourceLoc sets the stamp applied to every instruction this cursor
// inserts from now on.
func (c *FuncCursor) SetSourceLoc(loc ir.SourceLoc) { c.srcLoc = loc }

// SourceLoc returns the cursor's current stamp.
func (c *FuncCursor) SourceLoc() ir.SourceLoc { return c.srcLoc }

// BuiltInst returns the most recently inserted instruction, for call
// chaining; the second return is false if nothing has been inserted yet.
func (c *FuncCursor) BuiltInst() (ir.Inst, bool) { return c.built, c.builtSet }

// NextInst advances the cursor by one instruction within the current
// block, returning it, or returns (InstInvalid, false) at the block's end
// (leaving the cursor positioned After that block). Never crosses a block
// boundary. Panics if the cursor is Nowhere.
func (c *FuncCursor) NextInst() (ir.Inst, bool) {
	switch c.pos.kind {
	case At:
		next := c.f.Layout.NextInst(c.pos.inst)
		if !next.Valid() {
			c.pos = PosAfter(c.f.Layout.InstBlock(c.pos.inst))
			return ir.InstInvalid, false
		}
		c.pos = PosAt(next)
		return next, true
	case Before:
		first := c.f.Layout.FirstInst(c.pos.block)
		if !first.Valid() {
			c.pos = PosAfter(c.pos.block)
			return ir.InstInvalid, false
		}
		c.pos = PosAt(first)
		return first, true
	case After:
		return ir.InstInvalid, false
	default:
		panic("BUG: NextInst from Nowhere")
	}
}

// PrevInst steps the cursor back by one instruction within the current
// block, mirroring NextInst.
func (c *FuncCursor) PrevInst() (ir.Inst, bool) {
	switch c.pos.kind {
	case At:
		prev := c.f.Layout.PrevInst(c.pos.inst)
		if !prev.Valid() {
			c.pos = PosBefore(c.f.Layout.InstBlock(c.pos.inst))
			return ir.InstInvalid, false
		}
		c.pos = PosAt(prev)
		return prev, true
	case After:
		last := c.f.Layout.LastInst(c.pos.block)
		if !last.Valid() {
			c.pos = PosBefore(c.pos.block)
			return ir.InstInvalid, false
		}
		c.pos = PosAt(last)
		return last, true
	case Before:
		return ir.InstInvalid, false
	default:
		panic("BUG: PrevInst from Nowhere")
	}
}

// NextBlock moves the cursor to Before the block following the current one
// in layout order, or to Nowhere past the last block.
func (c *FuncCursor) NextBlock() (ir.Block, bool) {
	cur := c.CurrentBlock()
	var next ir.Block
	if !cur.Valid() {
		next = c.f.Layout.FirstBlock()
	} else {
		next = c.f.Layout.NextBlock(cur)
	}
	if !next.Valid() {
		c.pos = PosNowhere
		return ir.BlockInvalid, false
	}
	c.pos = PosBefore(next)
	return next, true
}

// PrevBlock moves the cursor to After the block preceding the current one
// in layout order, or to Nowhere before the first block.
func (c *FuncCursor) PrevBlock() (ir.Block, bool) {
	cur := c.CurrentBlock()
	var prev ir.Block
	if !cur.Valid() {
		prev = c.f.Layout.LastBlock()
	} else {
		prev = c.f.Layout.PrevBlock(cur)
	}
	if !prev.Valid() {
		c.pos = PosNowhere
		return ir.BlockInvalid, false
	}
	c.pos = PosAfter(prev)
	return prev, true
}

// InsertInst inserts i at the cursor position, which must be At or After;
// it panics (a caller bug, never a user-triggerable error) from Nowhere or
// Before. If the cursor carries a non-default source-location stamp, it is
// recorded against i.
func (c *FuncCursor) InsertInst(i ir.Inst) {
	switch c.pos.kind {
	case At:
		c.checkHygiene(i, c.pos.inst)
		c.f.Layout.InsertInstBefore(i, c.pos.inst)
	case After:
		c.f.Layout.AppendInst(c.pos.block, i)
	default:
		panic("BUG: InsertInst requires position At or After")
	}
	if !c.srcLoc.IsDefault() {
		c.f.SetSourceLoc(i, c.srcLoc)
	}
	c.built = i
	c.builtSet = true
}

// checkHygiene implements the builder-style check: inserting an
// instruction immediately after a non-terminator branch and before a
// non-terminator instruction is only legal if the inserted instruction is
// itself a terminator (otherwise the branch's fallthrough target becomes
// ambiguous). It runs on every insertion from an At position; there is no
// build mode or switch that disables it. This never fires in a well-formed
// caller; it exists to catch bugs in passes that splice code near a
// conditional branch.
func (c *FuncCursor) checkHygiene(newInst, before ir.Inst) {
	prev := c.f.Layout.PrevInst(before)
	if !prev.Valid() {
		return
	}
	prevOp := c.f.DFG.ViewInst(prev).Opcode()
	if !prevOp.IsNonTerminatorBranch() {
		return
	}
	beforeOp := c.f.DFG.ViewInst(before).Opcode()
	if beforeOp.IsTerminator() {
		return
	}
	if !newInst.Valid() {
		return
	}
	newOp := c.f.DFG.ViewInst(newInst).Opcode()
	if !newOp.IsTerminator() {
		panic("BUG: inserting a non-terminator between a non-terminator branch and its fallthrough")
	}
}

// RemoveInst removes the instruction at the cursor (which must be At) and
// advances the cursor to the next-inst position, mirroring NextInst's
// block-boundary behavior.
func (c *FuncCursor) RemoveInst() ir.Inst {
	if c.pos.kind != At {
		panic("BUG: RemoveInst requires position At")
	}
	removed := c.pos.inst
	next := c.f.Layout.NextInst(removed)
	b := c.f.Layout.InstBlock(removed)
	c.f.Layout.RemoveInst(removed)
	if next.Valid() {
		c.pos = PosAt(next)
	} else {
		c.pos = PosAfter(b)
	}
	return removed
}

// RemoveInstAndStepBack removes the instruction at the cursor (which must be
// At) and steps the cursor back to the previous-inst position instead of
// forward.
func (c *FuncCursor) RemoveInstAndStepBack() ir.Inst {
	if c.pos.kind != At {
		panic("BUG: RemoveInstAndStepBack requires position At")
	}
	removed := c.pos.inst
	prev := c.f.Layout.PrevInst(removed)
	b := c.f.Layout.InstBlock(removed)
	c.f.Layout.RemoveInst(removed)
	if prev.Valid() {
		c.pos = PosAt(prev)
	} else {
		c.pos = PosBefore(b)
	}
	return removed
}

// InsertBlock inserts new into the layout according to the cursor's current
// position:
//   - At(i): splits i's block at i, moving i and everything after it into
//     new; the cursor stays At(i).
//   - After(b): inserts new right after b; the cursor moves to After(new).
//   - Before(b): inserts new right before b; the cursor moves to After(new).
//   - Nowhere: appends new at the end of the layout; the cursor moves to
//     After(new).
func (c *FuncCursor) InsertBlock(new ir.Block) {
	switch c.pos.kind {
	case At:
		current := c.f.Layout.InstBlock(c.pos.inst)
		c.f.Layout.SplitBlock(new, current, c.pos.inst)
		c.pos = PosAt(c.pos.inst)
	case After:
		c.f.Layout.InsertBlockAfter(new, c.pos.block)
		c.pos = PosAfter(new)
	case Before:
		c.f.Layout.InsertBlockBefore(new, c.pos.block)
		c.pos = PosAfter(new)
	case Nowhere:
		c.f.Layout.AppendBlock(new)
		c.pos = PosAfter(new)
	}
}
