package ir

// FactKind classifies a proof-carrying-code fact attached to a Value.
type FactKind uint8

const (
	FactNone FactKind = iota
	// FactRange asserts the value lies within [Min, Max] (inclusive,
	// interpreted unsigned at BitWidth bits).
	FactRange
	// FactMemory asserts the value is a valid pointer into Memory, offset
	// by Offset bytes from that memory's base, valid for at least
	// AccessSize bytes.
	FactMemory
)

// Fact is a verification-relevant annotation attached to a Value by the
// bounds-check lowerer, consumed by a downstream proof-carrying-code
// checker (out of this module's scope; only the annotation discipline
// lives here).
type Fact struct {
	Kind FactKind

	BitWidth uint8
	Min, Max uint64 // FactRange

	Memory     PCCMemoryType // FactMemory
	Offset     int64
	AccessSize uint8
}

// SetFact records a verification fact for v, overwriting any previous one.
func (f *Function) SetFact(v Value, fact Fact) { f.facts.Set(v, fact) }

// FactOf returns the fact recorded for v, if any.
func (f *Function) FactOf(v Value) (Fact, bool) {
	fact := f.facts.Get(v)
	return fact, fact.Kind != FactNone
}
