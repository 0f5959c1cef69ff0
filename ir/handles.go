// Package ir implements the typed SSA-form intermediate representation:
// the data-flow graph (instructions, values, side tables) and the layout
// (block and instruction ordering) that the rest of this module's
// components operate over.
package ir

import "fmt"

// Value is a dense handle to a single SSA value. A Value is produced either
// as a block parameter or as an instruction result; it never aliases across
// functions.
type Value uint32

// ValueInvalid is the all-ones sentinel for an absent Value.
const ValueInvalid Value = 1<<32 - 1

// Valid reports whether v refers to a real value.
func (v Value) Valid() bool { return v != ValueInvalid }

func (v Value) String() string {
	if !v.Valid() {
		return "v_invalid"
	}
	return fmt.Sprintf("v%d", uint32(v))
}

// Inst is a dense handle to an instruction.
type Inst uint32

// InstInvalid is the all-ones sentinel for an absent Inst.
const InstInvalid Inst = 1<<32 - 1

// Valid reports whether i refers to a real instruction.
func (i Inst) Valid() bool { return i != InstInvalid }

func (i Inst) String() string {
	if !i.Valid() {
		return "inst_invalid"
	}
	return fmt.Sprintf("inst%d", uint32(i))
}

// Block is a dense handle to a basic block.
type Block uint32

// BlockInvalid is the all-ones sentinel for an absent Block.
const BlockInvalid Block = 1<<32 - 1

// Valid reports whether b refers to a real block.
func (b Block) Valid() bool { return b != BlockInvalid }

func (b Block) String() string {
	if !b.Valid() {
		return "block_invalid"
	}
	return fmt.Sprintf("block%d", uint32(b))
}

// StackSlot is a dense handle to a sized or dynamic stack slot.
type StackSlot uint32

// GlobalValue is a dense handle to a named global value (e.g. a heap base
// pointer, imported by address).
type GlobalValue uint32

// Heap is a dense handle to a linear-memory descriptor.
type Heap uint32

// Table is a dense handle to a table descriptor.
type Table uint32

// JumpTable is a dense handle to a jump table used by a table-branch
// instruction.
type JumpTable uint32

// SigRef is a dense handle to a Signature registered with a Function, used
// by call instructions.
type SigRef uint32

// FuncRef is a dense handle to an external-function declaration.
type FuncRef uint32

// Constant is a dense handle into the constant pool (for values too wide to
// fit in an immediate field, e.g. v128 constants).
type Constant uint32
