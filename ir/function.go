package ir

import "github.com/wazevocore/codegen/arena"

// Function is the top-level compilation unit: a name, a signature, a
// DataFlowGraph, a Layout ordering it, and the per-instruction side tables
// (source location, post-selection encoding) that accumulate as the
// function moves through the pipeline.
type Function struct {
	Name      string
	Signature Signature

	DFG    DataFlowGraph
	Layout Layout

	srcLocs   arena.SecondaryMap[Inst, SourceLoc]
	encodings arena.SecondaryMap[Inst, Encoding]
	facts     arena.SecondaryMap[Value, Fact]
}

// NewFunction returns an empty function ready for construction (typically
// through a cursor, see the cursor package).
func NewFunction(name string, sig Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig,
		DFG:       NewDataFlowGraph(),
		Layout:    NewLayout(),
		srcLocs:   arena.NewSecondaryMap[Inst, SourceLoc](SourceLocDefault),
		encodings: arena.NewSecondaryMap[Inst, Encoding](EncodingInvalid),
		facts:     arena.NewSecondaryMap[Value, Fact](Fact{}),
	}
}

// SetSourceLoc records the source location that produced i.
func (f *Function) SetSourceLoc(i Inst, loc SourceLoc) { f.srcLocs.Set(i, loc) }

// SourceLoc returns the source location recorded for i, or SourceLocDefault.
func (f *Function) SourceLoc(i Inst) SourceLoc { return f.srcLocs.Get(i) }

// SetEncoding records the backend recipe chosen for i during instruction
// selection.
func (f *Function) SetEncoding(i Inst, enc Encoding) { f.encodings.Set(i, enc) }

// Encoding returns the recipe recorded for i, or EncodingInvalid if i has
// not been selected yet.
func (f *Function) Encoding(i Inst) Encoding { return f.encodings.Get(i) }

// IsBlockTerminated reports whether b already ends in a terminator
// instruction, i.e. whether appending further non-terminator instructions to
// it would violate the single-exit invariant.
func (f *Function) IsBlockTerminated(b Block) bool {
	last := f.Layout.LastInst(b)
	if !last.Valid() {
		return false
	}
	return f.DFG.ViewInst(last).Opcode().IsTerminator()
}

// LayoutOrderInsts returns every instruction of the function in layout
// order (blocks in layout order, instructions within each block in layout
// order). Intended for printers, tests, and whole-function passes; inner
// loops should walk the Layout directly.
func (f *Function) LayoutOrderInsts() []Inst {
	var out []Inst
	for b := f.Layout.FirstBlock(); b.Valid(); b = f.Layout.NextBlock(b) {
		out = append(out, f.Layout.InstsOf(b)...)
	}
	return out
}
