package ir

// Opcode identifies the operation an Inst performs. Go has no sum types, so
// Inst is a single flattened struct (mirroring the teacher's own
// Instruction) whose fields are reinterpreted depending on Opcode.
type Opcode uint16

const (
	OpcodeInvalid Opcode = iota

	// Constants.
	OpcodeIconst // result = imm
	OpcodeFconst // result = bits(imm) reinterpreted as float

	// Integer arithmetic.
	OpcodeIadd
	OpcodeIsub
	OpcodeImul
	OpcodeIDiv
	OpcodeBand
	OpcodeBor
	OpcodeBxor
	OpcodeIshl
	OpcodeUshr
	OpcodeSshr

	// uadd_overflow_trap: args[0]+args[1], trapping with the instruction's TrapCode on
	// unsigned overflow instead of producing an overflow flag. See
	// wasmlower's general-case bounds check.
	OpcodeUaddOverflowTrap

	// Conversions.
	OpcodeUextend // widen args[0] unsigned to typ
	OpcodeSextend // widen args[0] signed to typ
	OpcodeIreduce // narrow args[0] to typ

	// Comparisons; result type is Flags-derived bool.
	OpcodeIcmp
	OpcodeFcmp

	// Selects.
	OpcodeSelect             // result = args[2]!=0 ? args[0] : args[1]
	OpcodeSelectSpectreGuard // result = args[2]!=0 ? args[1] : args[0]; args[2] is the would-trap condition, args[1] the safe fallback

	// Memory.
	OpcodeLoad
	OpcodeStore

	// GlobalValue materializes the runtime value of a declared GlobalValue
	// (e.g. a heap base pointer or dynamic bound).
	OpcodeGlobalValue

	// Control flow.
	OpcodeJump     // unconditional; single target in targets[0]
	OpcodeBrz      // non-terminator: branch to targets[0] if args[0]==0, else fall through
	OpcodeBrnz     // non-terminator: branch to targets[0] if args[0]!=0, else fall through
	OpcodeBrTable  // terminator: multi-way branch through a JumpTable
	OpcodeReturn   // terminator
	OpcodeCall     // args are call operands; may produce results
	OpcodeCallIndir
	OpcodeTrap        // terminator: unconditional trap
	OpcodeTrapz        // non-terminator would-be trap guarded on a condition; not used standalone
	OpcodeUnreachable // terminator: indicates unreachable code (e.g. after a forced trap)
)

var opcodeNames = map[Opcode]string{
	OpcodeIconst: "iconst", OpcodeFconst: "fconst",
	OpcodeIadd: "iadd", OpcodeIsub: "isub", OpcodeImul: "imul", OpcodeIDiv: "idiv",
	OpcodeBand: "band", OpcodeBor: "bor", OpcodeBxor: "bxor",
	OpcodeIshl: "ishl", OpcodeUshr: "ushr", OpcodeSshr: "sshr",
	OpcodeUaddOverflowTrap: "uadd_overflow_trap",
	OpcodeUextend:          "uextend", OpcodeSextend: "sextend", OpcodeIreduce: "ireduce",
	OpcodeIcmp: "icmp", OpcodeFcmp: "fcmp",
	OpcodeSelect: "select", OpcodeSelectSpectreGuard: "select_spectre_guard",
	OpcodeLoad: "load", OpcodeStore: "store", OpcodeGlobalValue: "global_value",
	OpcodeJump: "jump", OpcodeBrz: "brz", OpcodeBrnz: "brnz", OpcodeBrTable: "br_table",
	OpcodeReturn: "return", OpcodeCall: "call", OpcodeCallIndir: "call_indirect",
	OpcodeTrap: "trap", OpcodeUnreachable: "unreachable",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return "invalid"
}

// IsTerminator reports whether o always ends the basic block it appears in.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpcodeJump, OpcodeBrTable, OpcodeReturn, OpcodeTrap, OpcodeUnreachable:
		return true
	default:
		return false
	}
}

// IsBranch reports whether o transfers control to another block, whether or
// not it is a terminator.
func (o Opcode) IsBranch() bool {
	switch o {
	case OpcodeJump, OpcodeBrz, OpcodeBrnz, OpcodeBrTable:
		return true
	default:
		return false
	}
}

// IsNonTerminatorBranch reports whether o is a branch that falls through to
// the next instruction when not taken (the "critical-edge" shape). Such an opcode must be the penultimate
// instruction of a block, immediately followed by an unconditional Jump.
func (o Opcode) IsNonTerminatorBranch() bool {
	return o == OpcodeBrz || o == OpcodeBrnz
}

// TrapCode enumerates the reasons generated code may trap, preserved
// bit-exactly across cache serialization (spec §6).
type TrapCode uint8

const (
	TrapInvalid TrapCode = iota
	TrapHeapOutOfBounds
	TrapUnalignedPointer
	TrapCannotLeave
	TrapCannotEnter
	TrapAssertFailed // carries a static message, looked up via AssertMessage
	TrapUser         // carries a user-defined code, via UserTrapCode
)

func (t TrapCode) String() string {
	switch t {
	case TrapHeapOutOfBounds:
		return "heap_out_of_bounds"
	case TrapUnalignedPointer:
		return "unaligned_pointer"
	case TrapCannotLeave:
		return "cannot_leave"
	case TrapCannotEnter:
		return "cannot_enter"
	case TrapAssertFailed:
		return "assert_failed"
	case TrapUser:
		return "user"
	default:
		return "invalid"
	}
}

// IntegerCmpCond enumerates integer comparison kinds usable by Icmp.
type IntegerCmpCond uint8

const (
	IntEqual IntegerCmpCond = iota
	IntNotEqual
	IntUnsignedLessThan
	IntUnsignedLessThanOrEqual
	IntUnsignedGreaterThan
	IntUnsignedGreaterThanOrEqual
	IntSignedLessThan
	IntSignedLessThanOrEqual
	IntSignedGreaterThan
	IntSignedGreaterThanOrEqual
)

// Inst is a single instruction: an opcode, an operand list, zero or more
// results, and optional control-flow information. Each Inst belongs to at
// most one Block in the current Layout (tracked by Layout, not here).
//
// Go has no sum types, so (as in the teacher's own ssa.Instruction) this is
// one flattened struct whose fields are reinterpreted per Opcode.
type Inst struct {
	opcode Opcode

	args    []Value // operand list
	results []Value // result values, in declaration order

	imm    int64 // iconst/fconst immediate, load/store offset, etc.
	cond   IntegerCmpCond
	trap   TrapCode
	assert string // TrapAssertFailed message
	userTC uint32 // TrapUser code

	typ Type // result type / load type

	// Control-flow fields. targets[0] is the taken target for Brz/Brnz/Jump;
	// BrTable uses jumpTable instead and ignores targets.
	targets   []Block
	blockArgs [][]Value // per-target block-argument list, parallel to targets
	jumpTable JumpTable

	sig  SigRef  // OpcodeCall
	fn   FuncRef // direct call callee
	srcI Value   // OpcodeCallIndir: indirect callee address

	global GlobalValue // OpcodeGlobalValue
	heap   Heap        // OpcodeLoad/OpcodeStore against a heap's linear memory
}

// Opcode returns i's opcode.
func (i *Inst) Opcode() Opcode { return i.opcode }

// Args returns i's operand list.
func (i *Inst) Args() []Value { return i.args }

// Arg returns the n-th operand.
func (i *Inst) Arg(n int) Value { return i.args[n] }

// Results returns i's result list, in declaration order.
func (i *Inst) Results() []Value { return i.results }

// Result returns the first (and usually only) result.
func (i *Inst) Result() Value {
	if len(i.results) == 0 {
		return ValueInvalid
	}
	return i.results[0]
}

// Type returns the declared result/load type.
func (i *Inst) Type() Type { return i.typ }

// Imm returns the integer immediate (iconst value, or load/store offset).
func (i *Inst) Imm() int64 { return i.imm }

// Cond returns the integer comparison condition of an Icmp.
func (i *Inst) Cond() IntegerCmpCond { return i.cond }

// TrapCode returns the trap reason of a Trap instruction.
func (i *Inst) TrapCode() TrapCode { return i.trap }

// AssertMessage returns the static message of a TrapAssertFailed.
func (i *Inst) AssertMessage() string { return i.assert }

// Target returns the n-th branch target block (valid for Jump/Brz/Brnz: n==0).
func (i *Inst) Target(n int) Block { return i.targets[n] }

// Targets returns all branch target blocks.
func (i *Inst) Targets() []Block { return i.targets }

// BlockArgs returns the block-argument list passed to the n-th target.
func (i *Inst) BlockArgs(n int) []Value { return i.blockArgs[n] }

// JumpTableRef returns the jump table reference of a BrTable.
func (i *Inst) JumpTableRef() JumpTable { return i.jumpTable }

// SigRef returns the callee signature reference of a Call/CallIndirect.
func (i *Inst) SigRef() SigRef { return i.sig }

// FuncRef returns the direct callee of a Call.
func (i *Inst) FuncRef() FuncRef { return i.fn }

// IndirectCallee returns the indirect callee address value of CallIndirect.
func (i *Inst) IndirectCallee() Value { return i.srcI }

// GlobalValueRef returns the global a GlobalValue instruction materializes.
func (i *Inst) GlobalValueRef() GlobalValue { return i.global }

// HeapRef returns the heap a Load/Store instruction accesses, if tagged
// with one by the bounds-check lowerer (zero value if untagged, e.g. a
// plain stack-slot access).
func (i *Inst) HeapRef() Heap { return i.heap }

// SetArgs replaces i's operand list wholesale.
func (i *Inst) SetArgs(args ...Value) { i.args = args }

// AppendArg appends one operand to i's operand list.
func (i *Inst) AppendArg(v Value) { i.args = append(i.args, v) }

// SetType sets i's declared result/load type.
func (i *Inst) SetType(t Type) { i.typ = t }

// SetImm sets i's integer immediate (iconst value, or load/store offset).
func (i *Inst) SetImm(v int64) { i.imm = v }

// SetCond sets the integer comparison condition of an Icmp.
func (i *Inst) SetCond(c IntegerCmpCond) { i.cond = c }

// SetTrapCode sets the trap reason of a Trap instruction.
func (i *Inst) SetTrapCode(t TrapCode) { i.trap = t }

// SetAssertMessage sets the static message of a TrapAssertFailed.
func (i *Inst) SetAssertMessage(msg string) { i.assert = msg }

// SetUserTrapCode sets the user-defined trap code of a TrapUser.
func (i *Inst) SetUserTrapCode(code uint32) { i.userTC = code }

// UserTrapCode returns the user-defined trap code of a TrapUser.
func (i *Inst) UserTrapCode() uint32 { return i.userTC }

// SetTargets replaces i's branch target list wholesale.
func (i *Inst) SetTargets(targets ...Block) { i.targets = targets }

// SetBlockArgs replaces the block-argument list passed to the n-th target.
func (i *Inst) SetBlockArgs(n int, args []Value) {
	for len(i.blockArgs) <= n {
		i.blockArgs = append(i.blockArgs, nil)
	}
	i.blockArgs[n] = args
}

// SetJumpTableRef sets the jump table reference of a BrTable.
func (i *Inst) SetJumpTableRef(jt JumpTable) { i.jumpTable = jt }

// SetSigRef sets the callee signature reference of a Call/CallIndirect.
func (i *Inst) SetSigRef(sig SigRef) { i.sig = sig }

// SetFuncRef sets the direct callee of a Call.
func (i *Inst) SetFuncRef(fn FuncRef) { i.fn = fn }

// SetIndirectCallee sets the indirect callee address value of CallIndirect.
func (i *Inst) SetIndirectCallee(v Value) { i.srcI = v }

// SetGlobalValueRef sets the global a GlobalValue instruction materializes.
func (i *Inst) SetGlobalValueRef(gv GlobalValue) { i.global = gv }

// SetHeapRef tags a Load/Store instruction with the heap it accesses, for
// downstream consumers (e.g. PCC fact annotation) that need to recover
// which memory an access belongs to.
func (i *Inst) SetHeapRef(h Heap) { i.heap = h }
