package rules

import (
	"fmt"
	"sort"
)

// paramsKey is an interned handle for a variable-length []BindingId list
// (constructor parameters, MakeVariant fields), stored out-of-line from
// Binding so Binding itself stays a plain comparable value usable as a map
// key for hash-consing. The zero value denotes the empty list.
type paramsKey uint32

// ConstraintKind classifies a Constraint.
type ConstraintKind uint8

const (
	ConstraintVariant ConstraintKind = iota
	ConstraintConstInt
	ConstraintConstPrim
	ConstraintSome
)

// Constraint is a pattern match against a BindingId that can fail. A
// comparable value so two constraints can be compared for rule-overlap
// analysis.
type Constraint struct {
	Kind ConstraintKind

	Ty      TypeId // Variant, ConstInt
	Variant VariantId
	Fields  TupleIndex // Variant: field count

	IntVal  int64  // ConstInt
	PrimVal string // ConstPrim
}

// BindingsFor returns the child bindings matching c against source
// introduces (e.g. one MatchVariant binding per field), without interning
// them into any RuleSet.
func (c Constraint) BindingsFor(source BindingId) []Binding {
	switch c.Kind {
	case ConstraintSome:
		return []Binding{{Kind: BindingMatchSome, Source: source}}
	case ConstraintVariant:
		out := make([]Binding, 0, c.Fields)
		for i := TupleIndex(0); i < c.Fields; i++ {
			out = append(out, Binding{Kind: BindingMatchVariant, Source: source, Variant: c.Variant, Index: i, Ty: c.Ty})
		}
		return out
	default:
		return nil
	}
}

// Rule is one term-rewriting rule. BindingIds are only meaningful relative
// to the RuleSet that owns this rule.
type Rule struct {
	Pos Pos

	constraints map[BindingId]Constraint
	Equals      *DisjointSet
	Iterators   map[BindingId]bool
	Prio        int64
	Impure      []BindingId
	Result      BindingId
}

// GetConstraint returns the constraint source must satisfy for r to match,
// if any.
func (r *Rule) GetConstraint(source BindingId) (Constraint, bool) {
	c, ok := r.constraints[source]
	return c, ok
}

// TotalConstraints returns the number of binding sites r attaches a
// concrete Constraint to, plus, for each non-trivial equality class, its
// member count minus one (the number of equality facts the class encodes).
// After normalization these two sets never overlap.
func (r *Rule) TotalConstraints() int {
	return len(r.constraints) + r.Equals.Len()
}

// Overlap records whether a pair of rules can both match some input.
type Overlap struct {
	CanOverlap bool
	// Subset is only meaningful when CanOverlap: true means every input the
	// "bigger" rule (more constraints) accepts is also accepted by the
	// smaller one (it does NOT say which of the two arguments was smaller).
	Subset bool
}

// MayOverlap reports whether r and other can both match on some input, per
// spec §4.6's overlap definition: two rules overlap unless some binding
// site is constrained incompatibly by both.
func (r *Rule) MayOverlap(other *Rule) Overlap {
	small, big := r, other
	if len(small.constraints) > len(big.constraints) {
		small, big = big, small
	}

	subset := small.Equals.Len() == 0 && big.Equals.Len() == 0
	for b, a := range small.constraints {
		if bc, ok := big.constraints[b]; ok {
			if a != bc {
				return Overlap{CanOverlap: false}
			}
		} else {
			subset = false
		}
	}
	return Overlap{CanOverlap: true, Subset: subset}
}

// RuleSet is a collection of Rules for a single term, together with their
// hash-consed Bindings.
type RuleSet struct {
	Rules    []*Rule
	Bindings []Binding

	bindingMap map[Binding]BindingId
	paramLists [][]BindingId
	paramKeys  map[string]paramsKey
}

// NewRuleSet returns an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		bindingMap: make(map[Binding]BindingId),
		paramKeys:  make(map[string]paramsKey),
	}
}

// Intern returns the BindingId for b, allocating a fresh one if b was never
// seen before (hash-consing: structurally equal bindings always share an
// id).
func (rs *RuleSet) Intern(b Binding) BindingId {
	if id, ok := rs.bindingMap[b]; ok {
		return id
	}
	id := BindingId(len(rs.Bindings))
	rs.Bindings = append(rs.Bindings, b)
	rs.bindingMap[b] = id
	return id
}

// FindBinding returns the BindingId already interned for b, if any.
func (rs *RuleSet) FindBinding(b Binding) (BindingId, bool) {
	id, ok := rs.bindingMap[b]
	return id, ok
}

// InternParams interns a variable-length parameter/field list, returning a
// paramsKey usable in a Binding's ParamsKey field. Structurally identical
// lists are deduplicated just like scalar Binding fields.
func (rs *RuleSet) InternParams(ids []BindingId) paramsKey {
	if len(ids) == 0 {
		return 0
	}
	key := fmt.Sprint(ids)
	if k, ok := rs.paramKeys[key]; ok {
		return k
	}
	rs.paramLists = append(rs.paramLists, append([]BindingId(nil), ids...))
	k := paramsKey(len(rs.paramLists))
	rs.paramKeys[key] = k
	return k
}

// Binding returns the Binding named by id.
func (rs *RuleSet) Binding(id BindingId) Binding { return rs.Bindings[id] }

// Params returns the parameter/field list named by k (empty for k==0).
func (rs *RuleSet) Params(k paramsKey) []BindingId {
	if k == 0 {
		return nil
	}
	return rs.paramLists[k-1]
}

// EqualPairs returns, for each non-trivial equality class r.Equals tracks, a
// canonical set of pairs (the class's smallest member paired with every
// other member) sufficient to reconstruct the whole class. Used by the
// decision-tree serializer to enumerate candidate Equal(x,y) checks.
func (r *Rule) EqualPairs() [][2]BindingId {
	var out [][2]BindingId
	for _, class := range r.Equals.Classes() {
		base := class[0]
		for _, m := range class[1:] {
			out = append(out, [2]BindingId{base, m})
		}
	}
	return out
}

// sortedConstraintKeys returns r's constrained binding ids in increasing
// order, for deterministic iteration.
func (r *Rule) sortedConstraintKeys() []BindingId {
	out := make([]BindingId, 0, len(r.constraints))
	for b := range r.constraints {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConstrainedBindings returns, in increasing BindingId order, every binding
// site r attaches a concrete Constraint to. Exported for consumers (the
// decision-tree serializer) that need to enumerate a rule's Match
// candidates without reaching into Rule's internals.
func (r *Rule) ConstrainedBindings() []BindingId { return r.sortedConstraintKeys() }

// IteratedBindings returns, in increasing BindingId order, every binding r
// records as an iterator (via RuleBuilder.AddIterator).
func (r *Rule) IteratedBindings() []BindingId {
	out := make([]BindingId, 0, len(r.Iterators))
	for b := range r.Iterators {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
