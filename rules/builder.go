package rules

import "fmt"

// UnreachableError reports that a rule requires one binding site to match
// two different, incompatible constraints, making the rule permanently
// unreachable.
type UnreachableError struct {
	Pos         Pos
	ConstraintA Constraint
	ConstraintB Constraint
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: rule requires binding to match both %+v and %+v", e.Pos, e.ConstraintA, e.ConstraintB)
}

// RuleBuilder incrementally constructs one Rule against a RuleSet, hash-
// consing every Binding it creates, and normalizes equivalence classes on
// Finish.
type RuleBuilder struct {
	rs             *RuleSet
	cur            *Rule
	impureInstance uint32
	unreachable    []*UnreachableError
}

// BeginRule starts building a new rule at pos with priority prio.
func (rs *RuleSet) BeginRule(pos Pos, prio int64) *RuleBuilder {
	return &RuleBuilder{
		rs: rs,
		cur: &Rule{
			Pos:         pos,
			Prio:        prio,
			constraints: make(map[BindingId]Constraint),
			Equals:      NewDisjointSet(),
			Iterators:   make(map[BindingId]bool),
		},
	}
}

// AddArgument interns the binding for the index-th top-level argument.
func (b *RuleBuilder) AddArgument(index TupleIndex) BindingId {
	return b.rs.Intern(Binding{Kind: BindingArgument, Index: index})
}

// AddConstInt interns a constant-integer binding.
func (b *RuleBuilder) AddConstInt(ty TypeId, val int64) BindingId {
	return b.rs.Intern(Binding{Kind: BindingConstInt, Ty: ty, IntVal: val})
}

// AddConstPrim interns a constant-primitive binding.
func (b *RuleBuilder) AddConstPrim(val string) BindingId {
	return b.rs.Intern(Binding{Kind: BindingConstPrim, PrimVal: val})
}

// AddConstructor interns the result of calling a (possibly impure)
// constructor term over params, recording impure calls in the rule's side-
// effect list.
func (b *RuleBuilder) AddConstructor(term TermId, params []BindingId, pure bool) BindingId {
	instance := uint32(0)
	if !pure {
		b.impureInstance++
		instance = b.impureInstance
	}
	id := b.rs.Intern(Binding{Kind: BindingConstructor, Term: term, ParamsKey: b.rs.InternParams(params), Instance: instance})
	if !pure {
		b.cur.Impure = append(b.cur.Impure, id)
	}
	return id
}

// AddExtractor interns the result of calling an extractor term with a
// single parameter.
func (b *RuleBuilder) AddExtractor(term TermId, parameter BindingId) BindingId {
	return b.rs.Intern(Binding{Kind: BindingExtractor, Term: term, Source: parameter})
}

// AddIterator interns the per-element binding of iterating a multi-valued
// source, and records it as an iterator for the decision-tree serializer.
func (b *RuleBuilder) AddIterator(source BindingId) BindingId {
	id := b.rs.Intern(Binding{Kind: BindingIterator, Source: source})
	b.cur.Iterators[id] = true
	return id
}

// AddMakeVariant interns the construction of one enum variant from fields.
func (b *RuleBuilder) AddMakeVariant(ty TypeId, variant VariantId, fields []BindingId) BindingId {
	return b.rs.Intern(Binding{Kind: BindingMakeVariant, Ty: ty, Variant: variant, ParamsKey: b.rs.InternParams(fields)})
}

// AddMatchEqual records that a and b must be equal for the rule to match.
func (b *RuleBuilder) AddMatchEqual(a, bb BindingId) {
	if a != bb {
		b.cur.Equals.Merge(a, bb)
	}
}

// SetConstraint constrains source to satisfy c, returning the (interned)
// child bindings the match introduces (e.g. one per variant field). If
// source was already constrained differently, the rule is marked
// unreachable and the conflict is recorded (retrievable via Finish's
// error).
func (b *RuleBuilder) SetConstraint(source BindingId, c Constraint) []BindingId {
	if existing, ok := b.cur.constraints[source]; ok {
		if existing != c {
			b.unreachable = append(b.unreachable, &UnreachableError{Pos: b.cur.Pos, ConstraintA: existing, ConstraintB: c})
		}
	} else {
		b.cur.constraints[source] = c
	}
	children := c.BindingsFor(source)
	out := make([]BindingId, len(children))
	for i, bind := range children {
		out[i] = b.rs.Intern(bind)
	}
	return out
}

// SetResult records the rule's right-hand-side result.
func (b *RuleBuilder) SetResult(result BindingId) { b.cur.Result = result }

// Finish normalizes the rule's equivalence classes and, if no conflicting
// constraint was ever recorded, appends it to the owning RuleSet. On
// conflict the rule is dropped (so it never affects overlap checking) and
// every UnreachableError encountered is returned.
func (b *RuleBuilder) Finish() (*Rule, []*UnreachableError) {
	b.normalizeEquivalenceClasses()
	if len(b.unreachable) > 0 {
		return nil, b.unreachable
	}
	b.rs.Rules = append(b.rs.Rules, b.cur)
	return b.cur, nil
}

// normalizeEquivalenceClasses establishes the invariant that a binding site
// has either a concrete Constraint or membership in a non-trivial equality
// class, never both: whenever both apply, the constraint is replicated
// across every member of the class (recursively through any child bindings
// the constraint introduces), per spec §4.5.
func (b *RuleBuilder) normalizeEquivalenceClasses() {
	type deferred struct {
		binding    BindingId
		constraint Constraint
	}
	var work []deferred
	for binding, constraint := range b.cur.constraints {
		if root, nontrivial := b.cur.Equals.FindMut(binding); nontrivial {
			work = append(work, deferred{root, constraint})
		}
	}

	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]

		members := b.cur.Equals.RemoveSetOf(item.binding)
		if len(members) == 0 {
			continue
		}
		base, rest := members[0], members[1:]

		baseChildren := b.SetConstraint(base, item.constraint)
		for _, child := range baseChildren {
			if c, ok := b.cur.constraints[child]; ok {
				work = append(work, deferred{child, c})
			}
		}
		for _, m := range rest {
			mChildren := b.SetConstraint(m, item.constraint)
			n := len(baseChildren)
			if len(mChildren) < n {
				n = len(mChildren)
			}
			for i := 0; i < n; i++ {
				if c, ok := b.cur.constraints[mChildren[i]]; ok {
					work = append(work, deferred{mChildren[i], c})
				}
				b.cur.Equals.Merge(baseChildren[i], mChildren[i])
			}
		}
	}
}
