package ir

import "github.com/wazevocore/codegen/arena"

// valueDefKind distinguishes how a Value came to exist.
type valueDefKind uint8

const (
	valueDefInvalid valueDefKind = iota
	valueDefBlockParam
	valueDefInstResult
)

// valueDef records the single defining site of a Value: either the n-th
// parameter of a block, or the n-th result of an instruction. Exactly one of
// block/inst is meaningful, selected by kind.
type valueDef struct {
	kind  valueDefKind
	block Block
	inst  Inst
	num   int
}

// DataFlowGraph owns every instruction, value, block-parameter list, and
// named-entity declaration (signatures, external functions, globals, heaps,
// tables, jump tables, stack slots, wide constants) belonging to one
// Function. It knows nothing about block/instruction ORDER: that is
// Layout's job (see layout.go). This split mirrors the teacher's own
// separation of concerns, generalized past its single conflated
// BasicBlock-linked-list (ssa.go) into independent data and order graphs.
type DataFlowGraph struct {
	insts  arena.Pool[Inst]
	blocks arena.Pool[blockData]

	nextValue  uint32
	valueTypes arena.SecondaryMap[Value, Type]
	valueDefs  arena.SecondaryMap[Value, valueDef]
	// aliases maps a value to the value it has been rewritten to stand for
	// (e.g. after a union-find-style simplification); ResolveAlias walks
	// this chain to a fixed point. Absent entries are not aliases.
	aliases arena.SecondaryMap[Value, Value]

	signatures  arena.Pool[Signature]
	extFuncs    arena.Pool[ExtFuncData]
	globals     arena.Pool[GlobalValueData]
	heaps       arena.Pool[HeapData]
	tables      arena.Pool[TableData]
	jumpTables  arena.Pool[JumpTableData]
	stackSlots  arena.Pool[StackSlotData]
	constants   arena.Pool[ConstantData]
	constHashes map[string]Constant // dedup identical wide constants
}

// NewDataFlowGraph returns an empty DataFlowGraph.
func NewDataFlowGraph() DataFlowGraph {
	return DataFlowGraph{
		insts:       arena.NewPool[Inst](),
		blocks:      arena.NewPool[blockData](),
		valueTypes:  arena.NewSecondaryMap[Value, Type](Invalid),
		valueDefs:   arena.NewSecondaryMap[Value, valueDef](valueDef{}),
		aliases:     arena.NewSecondaryMap[Value, Value](ValueInvalid),
		signatures:  arena.NewPool[Signature](),
		extFuncs:    arena.NewPool[ExtFuncData](),
		globals:     arena.NewPool[GlobalValueData](),
		heaps:       arena.NewPool[HeapData](),
		tables:      arena.NewPool[TableData](),
		jumpTables:  arena.NewPool[JumpTableData](),
		stackSlots:  arena.NewPool[StackSlotData](),
		constants:   arena.NewPool[ConstantData](),
		constHashes: make(map[string]Constant),
	}
}

func (f *DataFlowGraph) allocValue(typ Type) Value {
	v := Value(f.nextValue)
	f.nextValue++
	f.valueTypes.Set(v, typ)
	return v
}

// MakeBlock declares a new, initially detached, parameterless block.
func (f *DataFlowGraph) MakeBlock() Block {
	_, id := f.blocks.Allocate()
	return Block(id)
}

// NumBlocks returns the number of blocks ever declared (inserted or not).
func (f *DataFlowGraph) NumBlocks() int { return f.blocks.Allocated() }

// MakeInst allocates a new instruction with the given opcode and zeroed
// operand/result lists; the caller fills in operands via Inst accessors and
// attaches results with CreateResult before inserting it into the Layout.
func (f *DataFlowGraph) MakeInst(opcode Opcode) Inst {
	ptr, id := f.insts.Allocate()
	ptr.opcode = opcode
	return Inst(id)
}

// ViewInst returns a mutable pointer to i's instruction data.
func (f *DataFlowGraph) ViewInst(i Inst) *Inst {
	return f.insts.View(int(i))
}

// NumInsts returns the number of instructions ever created.
func (f *DataFlowGraph) NumInsts() int { return f.insts.Allocated() }

// CreateResult appends a new result value of type typ to i's result list and
// returns it.
func (f *DataFlowGraph) CreateResult(i Inst, typ Type) Value {
	v := f.allocValue(typ)
	inst := f.insts.View(int(i))
	inst.results = append(inst.results, v)
	f.valueDefs.Set(v, valueDef{kind: valueDefInstResult, inst: i, num: len(inst.results) - 1})
	return v
}

// ValueType returns the declared type of v, resolving through any alias
// chain first.
func (f *DataFlowGraph) ValueType(v Value) Type {
	return f.valueTypes.Get(f.ResolveAlias(v))
}

// ValueDefInst returns the instruction that defines v (after resolving
// aliases) and whether v is in fact instruction-defined (as opposed to a
// block parameter).
func (f *DataFlowGraph) ValueDefInst(v Value) (Inst, bool) {
	d := f.valueDefs.Get(f.ResolveAlias(v))
	return d.inst, d.kind == valueDefInstResult
}

// ValueDefBlock returns the block that declares v as a parameter (after
// resolving aliases) and whether v is in fact block-parameter-defined.
func (f *DataFlowGraph) ValueDefBlock(v Value) (Block, bool) {
	d := f.valueDefs.Get(f.ResolveAlias(v))
	return d.block, d.kind == valueDefBlockParam
}

// ChangeToAlias rewrites from to stand for to: every future ResolveAlias(from)
// returns ResolveAlias(to). Used by rewrite passes that want to retire a
// value without renumbering every use.
func (f *DataFlowGraph) ChangeToAlias(from, to Value) {
	f.aliases.Set(from, to)
}

// ResolveAlias follows v's alias chain (if any) to its final target. A value
// that was never aliased resolves to itself.
func (f *DataFlowGraph) ResolveAlias(v Value) Value {
	seen := 0
	for f.aliases.IsSet(v) {
		v = f.aliases.Get(v)
		seen++
		if seen > 1<<20 {
			panic("BUG: alias cycle in DataFlowGraph")
		}
	}
	return v
}

// MakeSignature registers sig and returns a reference to it.
func (f *DataFlowGraph) MakeSignature(sig Signature) SigRef {
	ptr, id := f.signatures.Allocate()
	*ptr = sig
	return SigRef(id)
}

// Signature returns the signature named by ref.
func (f *DataFlowGraph) Signature(ref SigRef) *Signature { return f.signatures.View(int(ref)) }

// MakeExtFuncData registers an external function declaration.
func (f *DataFlowGraph) MakeExtFuncData(d ExtFuncData) FuncRef {
	ptr, id := f.extFuncs.Allocate()
	*ptr = d
	return FuncRef(id)
}

// ExtFuncData returns the declaration named by ref.
func (f *DataFlowGraph) ExtFuncData(ref FuncRef) *ExtFuncData { return f.extFuncs.View(int(ref)) }

// MakeGlobalValue registers a global value description.
func (f *DataFlowGraph) MakeGlobalValue(d GlobalValueData) GlobalValue {
	ptr, id := f.globals.Allocate()
	*ptr = d
	return GlobalValue(id)
}

// GlobalValueData returns the description named by ref.
func (f *DataFlowGraph) GlobalValueData(ref GlobalValue) *GlobalValueData { return f.globals.View(int(ref)) }

// MakeHeap registers a linear-memory description.
func (f *DataFlowGraph) MakeHeap(d HeapData) Heap {
	ptr, id := f.heaps.Allocate()
	*ptr = d
	return Heap(id)
}

// HeapData returns the description named by ref.
func (f *DataFlowGraph) HeapData(ref Heap) *HeapData { return f.heaps.View(int(ref)) }

// MakeTable registers a table description.
func (f *DataFlowGraph) MakeTable(d TableData) Table {
	ptr, id := f.tables.Allocate()
	*ptr = d
	return Table(id)
}

// TableData returns the description named by ref.
func (f *DataFlowGraph) TableData(ref Table) *TableData { return f.tables.View(int(ref)) }

// MakeJumpTable registers a jump table.
func (f *DataFlowGraph) MakeJumpTable(d JumpTableData) JumpTable {
	ptr, id := f.jumpTables.Allocate()
	*ptr = d
	return JumpTable(id)
}

// JumpTableData returns the jump table named by ref.
func (f *DataFlowGraph) JumpTableData(ref JumpTable) *JumpTableData { return f.jumpTables.View(int(ref)) }

// MakeStackSlot registers a stack slot description.
func (f *DataFlowGraph) MakeStackSlot(d StackSlotData) StackSlot {
	ptr, id := f.stackSlots.Allocate()
	*ptr = d
	return StackSlot(id)
}

// StackSlotData returns the description named by ref.
func (f *DataFlowGraph) StackSlotData(ref StackSlot) *StackSlotData { return f.stackSlots.View(int(ref)) }

// MakeConstant interns data into the constant pool, returning an existing
// handle if identical bytes were already registered.
func (f *DataFlowGraph) MakeConstant(data []byte) Constant {
	key := string(data)
	if c, ok := f.constHashes[key]; ok {
		return c
	}
	ptr, id := f.constants.Allocate()
	*ptr = append(ConstantData(nil), data...)
	c := Constant(id)
	f.constHashes[key] = c
	return c
}

// ConstantData returns the raw bytes named by ref.
func (f *DataFlowGraph) ConstantData(ref Constant) ConstantData { return *f.constants.View(int(ref)) }

// NumGlobalValues returns the number of global values ever declared.
func (f *DataFlowGraph) NumGlobalValues() int { return f.globals.Allocated() }

// NumHeaps returns the number of heaps ever declared.
func (f *DataFlowGraph) NumHeaps() int { return f.heaps.Allocated() }

// NumTables returns the number of tables ever declared.
func (f *DataFlowGraph) NumTables() int { return f.tables.Allocated() }

// NumJumpTables returns the number of jump tables ever declared.
func (f *DataFlowGraph) NumJumpTables() int { return f.jumpTables.Allocated() }

// NumConstants returns the number of distinct wide constants interned.
func (f *DataFlowGraph) NumConstants() int { return f.constants.Allocated() }

// NumExtFuncs returns the number of external function declarations.
func (f *DataFlowGraph) NumExtFuncs() int { return f.extFuncs.Allocated() }

// NumStackSlots returns the number of stack slots ever declared.
func (f *DataFlowGraph) NumStackSlots() int { return f.stackSlots.Allocated() }
