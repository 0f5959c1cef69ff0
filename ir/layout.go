package ir

import "github.com/wazevocore/codegen/arena"

// Layout orders the blocks and instructions that DataFlowGraph declares. It
// is a doubly-linked order over dense handles, represented as side tables
// (arena.SecondaryMap) rather than pointers embedded in Inst/Block, so that
// DataFlowGraph's entities stay data-only and every structural edit is a
// handle-keyed map update. This is the generalization of the teacher's own
// ssa.BasicBlock linked list, split out as its own component per this
// module's DFG/Layout separation.
//
// A block or instruction with no Layout entry is "detached": newly created
// by DataFlowGraph but not yet part of the function's instruction stream.
// Only inserted blocks may hold inserted instructions.
type Layout struct {
	blockNext, blockPrev arena.SecondaryMap[Block, Block]
	firstBlock, lastBlock Block

	instNext, instPrev   arena.SecondaryMap[Inst, Inst]
	instBlock            arena.SecondaryMap[Inst, Block]
	blockFirstInst, blockLastInst arena.SecondaryMap[Block, Inst]

	numBlocks int
}

// NewLayout returns an empty Layout.
func NewLayout() Layout {
	return Layout{
		blockNext:      arena.NewSecondaryMap[Block, Block](BlockInvalid),
		blockPrev:      arena.NewSecondaryMap[Block, Block](BlockInvalid),
		firstBlock:     BlockInvalid,
		lastBlock:      BlockInvalid,
		instNext:       arena.NewSecondaryMap[Inst, Inst](InstInvalid),
		instPrev:       arena.NewSecondaryMap[Inst, Inst](InstInvalid),
		instBlock:      arena.NewSecondaryMap[Inst, Block](BlockInvalid),
		blockFirstInst: arena.NewSecondaryMap[Block, Inst](InstInvalid),
		blockLastInst:  arena.NewSecondaryMap[Block, Inst](InstInvalid),
	}
}

// IsBlockInserted reports whether b currently appears in the layout.
func (l *Layout) IsBlockInserted(b Block) bool {
	return b.Valid() && (b == l.firstBlock || l.blockPrev.Get(b) != BlockInvalid)
}

// FirstBlock returns the first block in layout order, or BlockInvalid if the
// layout is empty.
func (l *Layout) FirstBlock() Block { return l.firstBlock }

// LastBlock returns the last block in layout order, or BlockInvalid if the
// layout is empty.
func (l *Layout) LastBlock() Block { return l.lastBlock }

// NextBlock returns the block following b, or BlockInvalid if b is last.
func (l *Layout) NextBlock(b Block) Block { return l.blockNext.Get(b) }

// PrevBlock returns the block preceding b, or BlockInvalid if b is first.
func (l *Layout) PrevBlock(b Block) Block { return l.blockPrev.Get(b) }

// AppendBlock inserts b at the end of the layout. b must not already be
// inserted.
func (l *Layout) AppendBlock(b Block) {
	if l.lastBlock == BlockInvalid {
		l.firstBlock = b
		l.lastBlock = b
		l.blockPrev.Set(b, BlockInvalid)
		l.blockNext.Set(b, BlockInvalid)
	} else {
		l.blockNext.Set(l.lastBlock, b)
		l.blockPrev.Set(b, l.lastBlock)
		l.blockNext.Set(b, BlockInvalid)
		l.lastBlock = b
	}
	l.numBlocks++
}

// InsertBlockAfter inserts new immediately after after in the layout. after
// must already be inserted and new must not be.
func (l *Layout) InsertBlockAfter(new, after Block) {
	next := l.blockNext.Get(after)
	l.blockNext.Set(after, new)
	l.blockPrev.Set(new, after)
	l.blockNext.Set(new, next)
	if next == BlockInvalid {
		l.lastBlock = new
	} else {
		l.blockPrev.Set(next, new)
	}
	l.numBlocks++
}

// RemoveBlock detaches b (which must be empty of instructions) from the
// layout.
func (l *Layout) RemoveBlock(b Block) {
	prev, next := l.blockPrev.Get(b), l.blockNext.Get(b)
	if prev == BlockInvalid {
		l.firstBlock = next
	} else {
		l.blockNext.Set(prev, next)
	}
	if next == BlockInvalid {
		l.lastBlock = prev
	} else {
		l.blockPrev.Set(next, prev)
	}
	l.blockPrev.Set(b, BlockInvalid)
	l.blockNext.Set(b, BlockInvalid)
	l.numBlocks--
}

// Blocks returns every inserted block in layout order. Intended for tests
// and passes that want a snapshot; hot paths should walk NextBlock/PrevBlock
// directly to avoid the allocation.
func (l *Layout) Blocks() []Block {
	out := make([]Block, 0, l.numBlocks)
	for b := l.firstBlock; b != BlockInvalid; b = l.blockNext.Get(b) {
		out = append(out, b)
	}
	return out
}

// InstBlock returns the block containing i, or BlockInvalid if i is
// detached.
func (l *Layout) InstBlock(i Inst) Block { return l.instBlock.Get(i) }

// FirstInst returns the first instruction in b, or InstInvalid if b is
// empty.
func (l *Layout) FirstInst(b Block) Inst { return l.blockFirstInst.Get(b) }

// LastInst returns the last instruction in b, or InstInvalid if b is empty.
func (l *Layout) LastInst(b Block) Inst { return l.blockLastInst.Get(b) }

// NextInst returns the instruction following i within its block, or
// InstInvalid if i is last.
func (l *Layout) NextInst(i Inst) Inst { return l.instNext.Get(i) }

// PrevInst returns the instruction preceding i within its block, or
// InstInvalid if i is first.
func (l *Layout) PrevInst(i Inst) Inst { return l.instPrev.Get(i) }

// AppendInst inserts i at the end of b's instruction list. b must be
// inserted; i must be detached.
func (l *Layout) AppendInst(b Block, i Inst) {
	last := l.blockLastInst.Get(b)
	l.instBlock.Set(i, b)
	l.instPrev.Set(i, last)
	l.instNext.Set(i, InstInvalid)
	if last == InstInvalid {
		l.blockFirstInst.Set(b, i)
	} else {
		l.instNext.Set(last, i)
	}
	l.blockLastInst.Set(b, i)
}

// InsertInstBefore inserts new immediately before before, within before's
// block. before must already be inserted; new must be detached.
func (l *Layout) InsertInstBefore(new, before Inst) {
	b := l.instBlock.Get(before)
	prev := l.instPrev.Get(before)
	l.instBlock.Set(new, b)
	l.instPrev.Set(new, prev)
	l.instNext.Set(new, before)
	l.instPrev.Set(before, new)
	if prev == InstInvalid {
		l.blockFirstInst.Set(b, new)
	} else {
		l.instNext.Set(prev, new)
	}
}

// InsertInstAfter inserts new immediately after after, within after's block.
// after must already be inserted; new must be detached.
func (l *Layout) InsertInstAfter(new, after Inst) {
	b := l.instBlock.Get(after)
	next := l.instNext.Get(after)
	l.instBlock.Set(new, b)
	l.instNext.Set(new, next)
	l.instPrev.Set(new, after)
	l.instNext.Set(after, new)
	if next == InstInvalid {
		l.blockLastInst.Set(b, new)
	} else {
		l.instPrev.Set(next, new)
	}
}

// RemoveInst detaches i from its block's instruction list.
func (l *Layout) RemoveInst(i Inst) {
	b := l.instBlock.Get(i)
	prev, next := l.instPrev.Get(i), l.instNext.Get(i)
	if prev == InstInvalid {
		l.blockFirstInst.Set(b, next)
	} else {
		l.instNext.Set(prev, next)
	}
	if next == InstInvalid {
		l.blockLastInst.Set(b, prev)
	} else {
		l.instPrev.Set(next, prev)
	}
	l.instBlock.Set(i, BlockInvalid)
	l.instPrev.Set(i, InstInvalid)
	l.instNext.Set(i, InstInvalid)
}

// InstsOf returns every instruction in b, in order. Intended for tests and
// printers; hot paths should walk NextInst/PrevInst directly.
func (l *Layout) InstsOf(b Block) []Inst {
	var out []Inst
	for i := l.blockFirstInst.Get(b); i != InstInvalid; i = l.instNext.Get(i) {
		out = append(out, i)
	}
	return out
}

// SplitBlock inserts the detached block new immediately after before (which
// must be inserted) and moves every instruction of before from splitAt
// (inclusive) onward into new. The caller is responsible for appending a
// terminating Jump from before to new (splitting never invents control
// flow) and for adding whatever block parameters new needs to receive live
// values across the old fallthrough edge.
func (l *Layout) SplitBlock(new, before Block, splitAt Inst) {
	l.InsertBlockAfter(new, before)

	var toMove []Inst
	for i := splitAt; i != InstInvalid; i = l.instNext.Get(i) {
		toMove = append(toMove, i)
	}
	for _, i := range toMove {
		l.RemoveInst(i)
		l.AppendInst(new, i)
	}
}

// InsertBlockBefore inserts the detached block new immediately before
// before in the layout. before must already be inserted.
func (l *Layout) InsertBlockBefore(new, before Block) {
	prev := l.blockPrev.Get(before)
	if prev == BlockInvalid {
		l.blockPrev.Set(before, new)
		l.blockNext.Set(new, before)
		l.blockPrev.Set(new, BlockInvalid)
		l.firstBlock = new
		l.numBlocks++
	} else {
		l.InsertBlockAfter(new, prev)
	}
}
