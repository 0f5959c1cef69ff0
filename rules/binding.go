package rules

// BindingKind classifies a Binding.
type BindingKind uint8

const (
	BindingConstInt BindingKind = iota
	BindingConstPrim
	BindingArgument
	BindingExtractor
	BindingConstructor
	BindingIterator
	BindingMakeVariant
	BindingMatchVariant
	BindingMatchSome
	BindingMatchTuple
)

// Binding is anything that can be bound to a name while evaluating a rule:
// a constant, an argument, the result of calling an extractor or
// constructor, or a pattern-match projection out of an existing binding.
// Binding is a plain comparable value (no slices) so it can be used
// directly as a map key for hash-consing; variable-length fields
// (constructor parameters, variant fields) are interned by content as a
// separate BindingId slice and referenced through ParamsKey (see
// RuleSet.InternParams).
type Binding struct {
	Kind BindingKind

	// BindingConstInt
	IntVal int64
	// BindingConstInt / BindingMakeVariant.ty / BindingMatchVariant.ty
	Ty TypeId
	// BindingConstPrim
	PrimVal string

	// BindingArgument.index / BindingMatchTuple.field / BindingMatchVariant.field
	Index TupleIndex

	// BindingExtractor.term / BindingConstructor.term
	Term TermId
	// BindingExtractor.parameter / BindingIterator.source /
	// BindingMatchVariant.source / BindingMatchSome.source /
	// BindingMatchTuple.source
	Source BindingId

	// BindingConstructor.instance: unique per impure use, 0 for pure calls.
	Instance uint32

	// BindingMakeVariant.variant / BindingMatchVariant.variant
	Variant VariantId

	// ParamsKey names the interned parameter/field list (see
	// RuleSet.InternParams); empty (0) for bindings with no list.
	ParamsKey paramsKey
}

// Sources returns the binding ids that must be evaluated before b, as
// recorded in rs (needed to resolve the variable-length parameter lists
// that Binding itself cannot hold directly).
func (rs *RuleSet) Sources(b Binding) []BindingId {
	switch b.Kind {
	case BindingConstInt, BindingConstPrim, BindingArgument:
		return nil
	case BindingExtractor, BindingIterator, BindingMatchVariant, BindingMatchSome, BindingMatchTuple:
		return []BindingId{b.Source}
	case BindingConstructor, BindingMakeVariant:
		return rs.Params(b.ParamsKey)
	default:
		return nil
	}
}
