package typevar

import "fmt"

// DerivationOp names one of the TypeSet image operators a derived TypeVar
// applies to its base.
type DerivationOp uint8

const (
	DerivationInvalid DerivationOp = iota
	DerivationLaneOf
	DerivationAsBool
	DerivationHalfWidth
	DerivationDoubleWidth
	DerivationHalfVector
	DerivationDoubleVector
	DerivationToBitVec
)

func (op DerivationOp) apply(ts TypeSet) TypeSet {
	switch op {
	case DerivationLaneOf:
		return ts.LaneOf()
	case DerivationAsBool:
		return ts.AsBool()
	case DerivationHalfWidth:
		return ts.HalfWidth()
	case DerivationDoubleWidth:
		return ts.DoubleWidth()
	case DerivationHalfVector:
		return ts.HalfVector()
	case DerivationDoubleVector:
		return ts.DoubleVector()
	case DerivationToBitVec:
		return ts.ToBitVec()
	default:
		panic("BUG: invalid DerivationOp")
	}
}

func (op DerivationOp) String() string {
	switch op {
	case DerivationLaneOf:
		return "lane_of"
	case DerivationAsBool:
		return "as_bool"
	case DerivationHalfWidth:
		return "half_width"
	case DerivationDoubleWidth:
		return "double_width"
	case DerivationHalfVector:
		return "half_vector"
	case DerivationDoubleVector:
		return "double_vector"
	case DerivationToBitVec:
		return "to_bitvec"
	default:
		return "invalid"
	}
}

// TypeVar names a polymorphic operand or result type within a rewrite rule.
// It is either "free" (it owns a TypeSet of the concrete types it may take)
// or "derived" (its TypeSet is computed by applying a DerivationOp to a base
// TypeVar's TypeSet). TypeVars are always handled through their pointer
// identity: two free variables with identical name/doc/TypeSet created at
// distinct allocation sites are still distinct variables, matching a rule
// language where "the same typevar" means literally the same declaration.
type TypeVar struct {
	Name string
	Doc  string

	owned TypeSet // meaningful iff base == nil

	base *TypeVar
	op   DerivationOp
}

// NewTypeVar returns a fresh free TypeVar owning ts.
func NewTypeVar(name, doc string, ts TypeSet) *TypeVar {
	return &TypeVar{Name: name, Doc: doc, owned: ts}
}

// Derive returns a fresh TypeVar whose TypeSet is op applied to base's.
func Derive(base *TypeVar, op DerivationOp) *TypeVar {
	return &TypeVar{
		Name: fmt.Sprintf("%s(%s)", op, base.Name),
		base: base,
		op:   op,
	}
}

// IsDerived reports whether t was built with Derive rather than NewTypeVar.
func (t *TypeVar) IsDerived() bool { return t.base != nil }

// GetTypeSet returns t's TypeSet, recursively resolving derivations down to
// their free root.
func (t *TypeVar) GetTypeSet() TypeSet {
	if t.base == nil {
		return t.owned
	}
	return t.op.apply(t.base.GetTypeSet())
}

// FreeTypeVar follows t's derivation chain to its free root and returns it,
// unless the resulting TypeSet has exactly one member (a singleton type
// carries no actual degree of freedom, so there is no meaningful free
// variable to report).
func (t *TypeVar) FreeTypeVar() *TypeVar {
	root := t
	for root.base != nil {
		root = root.base
	}
	if root.GetTypeSet().Size() == 1 {
		return nil
	}
	return root
}

// Equal reports whether a and b denote the same type variable: derived
// variables are equal iff built with the same operator over equal bases;
// free variables are equal iff they are literally the same allocation.
func Equal(a, b *TypeVar) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.IsDerived() != b.IsDerived() {
		return false
	}
	if !a.IsDerived() {
		return false // distinct free-variable allocations are never equal
	}
	return a.op == b.op && Equal(a.base, b.base)
}
