package ir

// blockData is the DFG-owned state of a Block: its ordered parameter list.
// Layout separately tracks whether (and where) the block is inserted into
// the function; a Block with blockData but no Layout entry is "detached"
// and holds no instructions.
type blockData struct {
	params []Value
}

// BlockParams returns b's ordered parameter values.
func (f *DataFlowGraph) BlockParams(b Block) []Value {
	return f.blocks.View(int(b)).params
}

// BlockParamCount returns the number of parameters b declares.
func (f *DataFlowGraph) BlockParamCount(b Block) int {
	return len(f.blocks.View(int(b)).params)
}

// AppendBlockParam declares a new parameter of type typ at the end of b's
// parameter list and returns the fresh Value naming it.
func (f *DataFlowGraph) AppendBlockParam(b Block, typ Type) Value {
	v := f.allocValue(typ)
	bd := f.blocks.View(int(b))
	bd.params = append(bd.params, v)
	f.valueDefs.Set(v, valueDef{kind: valueDefBlockParam, block: b, num: len(bd.params) - 1})
	return v
}

// ReplaceBlockParamType overwrites the declared type of b's n-th parameter,
// used when the polymorphic legalizer narrows a block signature in place.
func (f *DataFlowGraph) ReplaceBlockParamType(b Block, n int, typ Type) {
	v := f.blocks.View(int(b)).params[n]
	f.valueTypes.Set(v, typ)
}

// TruncateBlockParams drops every parameter of b from index n onward,
// leaving the first n intact. Used when splitting a block: the tail block
// keeps whichever live values the split point chooses to re-present as
// parameters, but the algorithm builds the final list incrementally.
func (f *DataFlowGraph) TruncateBlockParams(b Block, n int) {
	bd := f.blocks.View(int(b))
	bd.params = bd.params[:n]
}
