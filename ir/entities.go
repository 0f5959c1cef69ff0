package ir

// Signature describes a function's parameter and result types, and is
// referenced by Call instructions through a SigRef and by Function itself.
type Signature struct {
	Params  []Type
	Results []Type
}

// Equal reports whether two signatures have identical parameter and result
// shapes.
func (s *Signature) Equal(o *Signature) bool {
	if len(s.Params) != len(o.Params) || len(s.Results) != len(o.Results) {
		return false
	}
	for i, t := range s.Params {
		if t != o.Params[i] {
			return false
		}
	}
	for i, t := range s.Results {
		if t != o.Results[i] {
			return false
		}
	}
	return true
}

// ExternalNameKind distinguishes the namespace an external function name was
// declared in. The cache key canonicalizes User names to a single marker
// (their real identity lives only in the relocation table).
type ExternalNameKind uint8

const (
	ExternalNameUser ExternalNameKind = iota
	ExternalNameLibCall
)

// ExternalName identifies an externally-defined function.
type ExternalName struct {
	Kind      ExternalNameKind
	Namespace uint32
	Index     uint32
	// LibCall additionally carries a symbolic name (e.g. "memcpy"); it is
	// never canonicalized away because it participates directly in code
	// generation (the call target), unlike a user (namespace, index) pair.
	LibCall string
}

// ExtFuncData is a declared external function: its signature and identity.
type ExtFuncData struct {
	Name      ExternalName
	Signature SigRef
	// Colocated hints the backend that the callee will end up within
	// branch-immediate range; purely an encoding hint, irrelevant to
	// correctness.
	Colocated bool
}

// MemoryStyle distinguishes how a Heap's size may vary at runtime.
type MemoryStyle uint8

const (
	// MemoryStyleStatic means the heap never moves and is always backed by
	// ReservationBytes of address space (possibly unmapped past the current
	// size); growth never changes the base pointer.
	MemoryStyleStatic MemoryStyle = iota
	// MemoryStyleDynamic means the heap may be reallocated (and so may move)
	// on growth.
	MemoryStyleDynamic
)

// HeapData describes one linear memory for the purposes of bounds-check
// lowering (wasmlower).
type HeapData struct {
	// BaseGlobalValue names the global holding the current base pointer.
	BaseGlobalValue GlobalValue
	// BoundGlobalValue names the global holding the current dynamic byte
	// bound (valid when Style == MemoryStyleDynamic, or always readable but
	// redundant when Style == MemoryStyleStatic).
	BoundGlobalValue GlobalValue
	Style            MemoryStyle
	// IndexType is I32 or I64, the type of the dynamic index operand.
	IndexType Type
	// MinimumBytes is the guaranteed-valid minimum size of the memory.
	MinimumBytes uint64
	// MaximumBytes, if non-zero, bounds the memory's maximum size; accesses
	// provably beyond it trap unconditionally. Zero means unbounded
	// (treated as the Type's maximum representable size).
	MaximumBytes uint64
	// ReservationBytes is the size of the address-space reservation backing
	// a static-style memory (or the current allocation of a dynamic one).
	ReservationBytes uint64
	// GuardBytes is the size of the unmapped guard region immediately past
	// ReservationBytes.
	GuardBytes uint64
	// MayMove reports whether growth can relocate the memory (invalidating
	// any cached base pointer across a call).
	MayMove bool
	// PCCMemoryType optionally names a proof-carrying-code memory type that
	// verifies accesses against this heap.
	PCCMemoryType PCCMemoryType
}

// PCCMemoryType is an opaque proof-carrying-code fact identifying a memory
// region for verification purposes; zero value means "none".
type PCCMemoryType uint32

// Valid reports whether a PCCMemoryType was actually set.
func (p PCCMemoryType) Valid() bool { return p != 0 }

// GlobalValueData describes a named global value.
type GlobalValueData struct {
	// Kind distinguishes how the value is produced.
	Kind GlobalValueKind
	// VMOffset is the byte offset from a VM context pointer, valid when
	// Kind == GlobalValueVMContext.
	VMOffset int64
	// Type is the type of the value the global produces.
	Type Type
}

// GlobalValueKind enumerates how a GlobalValueData's runtime value is
// produced.
type GlobalValueKind uint8

const (
	GlobalValueVMContext GlobalValueKind = iota
	GlobalValueSymbol
)

// TableData describes a table (e.g. a Wasm funcref table) for call_indirect
// lowering.
type TableData struct {
	MinimumElements uint64
	MaximumElements uint64
	BaseGlobalValue GlobalValue
	ElementSize     uint32
}

// JumpTableData is the ordered list of targets a BrTable instruction
// dispatches across, plus the default (out-of-range) target.
type JumpTableData struct {
	Targets []Block
	Default Block
}

// StackSlotKind distinguishes sized (fixed-size, e.g. spill slots) from
// dynamic (runtime-sized, e.g. variable-length arrays) stack slots.
type StackSlotKind uint8

const (
	StackSlotSized StackSlotKind = iota
	StackSlotDynamic
)

// StackSlotData describes one stack slot.
type StackSlotData struct {
	Kind StackSlotKind
	// Size is the static size in bytes (Sized), or the size of one element
	// (Dynamic, paired with DynamicSizeGV below).
	Size uint32
	// DynamicSizeGV names the global value holding the element count,
	// valid only when Kind == StackSlotDynamic.
	DynamicSizeGV GlobalValue
	Align         uint8
}

// ConstantData holds the raw little-endian bytes of a wide constant (e.g. a
// 128-bit vector immediate) too large to fit inline in an Inst.
type ConstantData []byte
