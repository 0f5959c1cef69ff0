package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternHashConsing(t *testing.T) {
	rs := NewRuleSet()
	a := rs.Intern(Binding{Kind: BindingConstInt, Ty: 1, IntVal: 42})
	b := rs.Intern(Binding{Kind: BindingConstInt, Ty: 1, IntVal: 42})
	c := rs.Intern(Binding{Kind: BindingConstInt, Ty: 1, IntVal: 43})
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, rs.Bindings, 2)
}

func TestInternParamsDedup(t *testing.T) {
	rs := NewRuleSet()
	x := rs.Intern(Binding{Kind: BindingArgument, Index: 0})
	y := rs.Intern(Binding{Kind: BindingArgument, Index: 1})
	k1 := rs.InternParams([]BindingId{x, y})
	k2 := rs.InternParams([]BindingId{x, y})
	k3 := rs.InternParams([]BindingId{y, x})
	require.Equal(t, k1, k2)
	require.NotEqual(t, k1, k3)
	require.Equal(t, []BindingId{x, y}, rs.Params(k1))
}

func TestDisjointSetMergeAndFind(t *testing.T) {
	d := NewDisjointSet()
	_, nontrivial := d.FindMut(1)
	require.False(t, nontrivial)

	d.Merge(1, 2)
	d.Merge(2, 3)
	r1, nt1 := d.FindMut(1)
	r3, nt3 := d.FindMut(3)
	require.True(t, nt1)
	require.True(t, nt3)
	require.Equal(t, r1, r3)
	require.Equal(t, 2, d.Len())
}

func TestDisjointSetRemoveSetOf(t *testing.T) {
	d := NewDisjointSet()
	d.Merge(1, 2)
	d.Merge(2, 3)
	members := d.RemoveSetOf(1)
	require.Equal(t, []BindingId{1, 2, 3}, members)
	require.True(t, d.IsEmpty())

	_, nontrivial := d.FindMut(1)
	require.False(t, nontrivial)
}

func TestRuleOverlapDisjointConstraints(t *testing.T) {
	rs := NewRuleSet()
	x := rs.Intern(Binding{Kind: BindingArgument, Index: 0})

	b1 := rs.BeginRule(Pos{}, 0)
	b1.SetConstraint(x, Constraint{Kind: ConstraintConstInt, IntVal: 1})
	b1.SetResult(x)
	r1, errs1 := b1.Finish()
	require.Empty(t, errs1)

	b2 := rs.BeginRule(Pos{}, 0)
	b2.SetConstraint(x, Constraint{Kind: ConstraintConstInt, IntVal: 2})
	b2.SetResult(x)
	r2, errs2 := b2.Finish()
	require.Empty(t, errs2)

	ov := r1.MayOverlap(r2)
	require.False(t, ov.CanOverlap)
}

func TestRuleOverlapSubset(t *testing.T) {
	rs := NewRuleSet()
	x := rs.Intern(Binding{Kind: BindingArgument, Index: 0})
	y := rs.Intern(Binding{Kind: BindingArgument, Index: 1})

	general := rs.BeginRule(Pos{}, 0)
	general.SetConstraint(x, Constraint{Kind: ConstraintConstInt, IntVal: 1})
	general.SetResult(x)
	rGeneral, _ := general.Finish()

	specific := rs.BeginRule(Pos{}, 1)
	specific.SetConstraint(x, Constraint{Kind: ConstraintConstInt, IntVal: 1})
	specific.SetConstraint(y, Constraint{Kind: ConstraintConstInt, IntVal: 2})
	specific.SetResult(y)
	rSpecific, _ := specific.Finish()

	ov := rGeneral.MayOverlap(rSpecific)
	require.True(t, ov.CanOverlap)
	require.True(t, ov.Subset, "the rule with fewer constraints should be the superset")
}

func TestNormalizeEquivalenceClassesPropagatesConstraint(t *testing.T) {
	rs := NewRuleSet()
	x := rs.Intern(Binding{Kind: BindingArgument, Index: 0})
	y := rs.Intern(Binding{Kind: BindingArgument, Index: 1})

	rb := rs.BeginRule(Pos{}, 0)
	rb.AddMatchEqual(x, y)
	rb.SetConstraint(x, Constraint{Kind: ConstraintConstInt, IntVal: 2})
	rb.SetResult(x)
	rule, errs := rb.Finish()
	require.Empty(t, errs)

	cx, okx := rule.GetConstraint(x)
	cy, oky := rule.GetConstraint(y)
	require.True(t, okx)
	require.True(t, oky)
	require.Equal(t, cx, cy)
	require.True(t, rule.Equals.IsEmpty(), "normalization clears the equivalence class once propagated")
}

func TestNormalizeEquivalenceClassesConflictIsUnreachable(t *testing.T) {
	rs := NewRuleSet()
	x := rs.Intern(Binding{Kind: BindingArgument, Index: 0})
	y := rs.Intern(Binding{Kind: BindingArgument, Index: 1})

	rb := rs.BeginRule(Pos{}, 0)
	rb.AddMatchEqual(x, y)
	rb.SetConstraint(x, Constraint{Kind: ConstraintConstInt, IntVal: 2})
	rb.SetConstraint(y, Constraint{Kind: ConstraintConstInt, IntVal: 3})
	rb.SetResult(x)
	rule, errs := rb.Finish()
	require.Nil(t, rule)
	require.Len(t, errs, 1)
}

func TestVariantConstraintBindings(t *testing.T) {
	rs := NewRuleSet()
	x := rs.Intern(Binding{Kind: BindingArgument, Index: 0})
	rb := rs.BeginRule(Pos{}, 0)
	fields := rb.SetConstraint(x, Constraint{Kind: ConstraintVariant, Ty: 7, Variant: 1, Fields: 2})
	require.Len(t, fields, 2)
	require.Equal(t, BindingMatchVariant, rs.Binding(fields[0]).Kind)
	require.Equal(t, TupleIndex(0), rs.Binding(fields[0]).Index)
	require.Equal(t, TupleIndex(1), rs.Binding(fields[1]).Index)
}

func TestTotalConstraints(t *testing.T) {
	rs := NewRuleSet()
	x := rs.Intern(Binding{Kind: BindingArgument, Index: 0})
	y := rs.Intern(Binding{Kind: BindingArgument, Index: 1})
	z := rs.Intern(Binding{Kind: BindingArgument, Index: 2})

	rb := rs.BeginRule(Pos{}, 0)
	rb.SetConstraint(x, Constraint{Kind: ConstraintConstInt, IntVal: 1})
	rb.AddMatchEqual(y, z)
	rb.SetResult(x)
	rule, errs := rb.Finish()
	require.Empty(t, errs)
	require.Equal(t, 2, rule.TotalConstraints()) // 1 concrete + 1 redundant-equality fact
}
