// Package adapter synthesizes fused component-model adapter functions: a
// self-contained function that checks a caller/callee's reentrancy flags,
// translates arguments and results between two ABIs via the canonical-ABI
// flattening rules, and invokes a direct callee in between. Grounded on
// fact/trampoline.rs, whose Compiler emits raw wasm bytes for a
// synthesized core wasm module; this package emits this module's own IR
// instead, so the result is an *ir.Function ready for compiler.Compile
// like any other function, and there is no separate "locals" bookkeeping —
// SSA values already serve that role.
package adapter

import "github.com/wazevocore/codegen/ir"

// MaxFlatParams and MaxFlatResults are the canonical-ABI thresholds beyond
// which parameters/results are passed indirectly through linear memory
// instead of as flattened stack values.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// Instance-flags bits tested and set by the MAY_LEAVE/MAY_ENTER protocol
// (spec §4.8 steps 1-3, 8). Bit positions are this package's own choice;
// nothing upstream fixes them beyond "two distinct flag bits".
const (
	FlagMayEnter int32 = 1 << 0
	FlagMayLeave int32 = 1 << 1
)

// InterfaceKind enumerates the component-model value types this
// synthesizer knows how to translate: the primitives and composites
// fact/trampoline.rs itself implements (its own translate() is explicitly
// partial — everything past record/tuple is an upstream TODO, so stopping
// here matches the grounding rather than narrowing it further).
type InterfaceKind uint8

const (
	KindUnit InterfaceKind = iota
	KindBool
	KindU8
	KindU32
	KindRecord
	KindTuple
)

// InterfaceType is one component-level value type.
type InterfaceType struct {
	Kind   InterfaceKind
	Record []RecordField // valid iff Kind == KindRecord
	Tuple  []InterfaceType
}

// RecordField names one field of a record type; translateRecord looks up
// matching fields across src/dst by Name, not position, so source and
// destination records may differ in field order in memory.
type RecordField struct {
	Name string
	Type InterfaceType
}

func Unit() InterfaceType                        { return InterfaceType{Kind: KindUnit} }
func Bool() InterfaceType                        { return InterfaceType{Kind: KindBool} }
func U8() InterfaceType                          { return InterfaceType{Kind: KindU8} }
func U32() InterfaceType                         { return InterfaceType{Kind: KindU32} }
func Record(fields ...RecordField) InterfaceType { return InterfaceType{Kind: KindRecord, Record: fields} }
func Tuple(types ...InterfaceType) InterfaceType  { return InterfaceType{Kind: KindTuple, Tuple: types} }

// SizeAlign returns t's linear-memory footprint: fields/elements packed in
// declaration order, each aligned to its own requirement, the whole type
// rounded up to its own alignment (its widest member's).
func SizeAlign(t InterfaceType) (size, align uint32) {
	switch t.Kind {
	case KindUnit:
		return 0, 1
	case KindBool, KindU8:
		return 1, 1
	case KindU32:
		return 4, 4
	case KindRecord:
		return sequentialSizeAlign(fieldTypes(t.Record))
	case KindTuple:
		return sequentialSizeAlign(t.Tuple)
	default:
		panic("adapter: unknown InterfaceKind")
	}
}

func sequentialSizeAlign(types []InterfaceType) (uint32, uint32) {
	var offset, maxAlign uint32 = 0, 1
	for _, t := range types {
		sz, al := SizeAlign(t)
		offset = alignTo(offset, al) + sz
		if al > maxAlign {
			maxAlign = al
		}
	}
	return alignTo(offset, maxAlign), maxAlign
}

func alignTo(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// FlatCount returns how many core wasm values t flattens to under the
// canonical ABI (every primitive here flattens to exactly one i32; Unit to
// zero; composites to the sum of their members).
func FlatCount(t InterfaceType) int {
	switch t.Kind {
	case KindUnit:
		return 0
	case KindBool, KindU8, KindU32:
		return 1
	case KindRecord:
		n := 0
		for _, f := range t.Record {
			n += FlatCount(f.Type)
		}
		return n
	case KindTuple:
		n := 0
		for _, e := range t.Tuple {
			n += FlatCount(e)
		}
		return n
	default:
		panic("adapter: unknown InterfaceKind")
	}
}

func flatCountAll(ts []InterfaceType) int {
	n := 0
	for _, t := range ts {
		n += FlatCount(t)
	}
	return n
}

func fieldTypes(fields []RecordField) []InterfaceType {
	out := make([]InterfaceType, len(fields))
	for i, f := range fields {
		out[i] = f.Type
	}
	return out
}

// Options describes one side's (caller's or callee's) core ABI: the
// linear memory it exposes, its optional allocator, the address of its
// 32-bit instance-flags word, and whether its memory uses 64-bit
// addressing (which widens every pointer this side produces or consumes).
type Options struct {
	MemoryHeap ir.HeapData

	HasRealloc  bool
	ReallocName ir.ExternalName
	ReallocSig  ir.Signature

	FlagsGlobal ir.GlobalValueData

	Memory64 bool
}

// ptr returns the wasm address width this side's memory uses.
func (o Options) ptr() ir.Type {
	if o.Memory64 {
		return ir.I64
	}
	return ir.I32
}

// AdapterData describes one fused adapter to synthesize: the shared
// component-level signature of both sides (subtyping between differently
// shaped signatures is out of scope here exactly as it is in
// fact/trampoline.rs, which TODOs it throughout), each side's ABI, the
// direct callee and optional post-return hook, and the MAY_ENTER/debug
// policy switches from spec §4.8.
type AdapterData struct {
	Params []InterfaceType
	Result InterfaceType

	Lower Options
	Lift  Options

	CalleeName ir.ExternalName
	CalleeSig  ir.Signature

	HasPostReturn  bool
	PostReturnName ir.ExternalName
	PostReturnSig  ir.Signature

	// CalledAsExport distinguishes an adapter invoked as a component
	// export (which must check+clear the callee's MAY_ENTER and set it
	// again on the way out) from one invoked as an import fulfillment
	// (which only debug-asserts MAY_ENTER is already clear).
	CalledAsExport bool
	Debug          bool
}
