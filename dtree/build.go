package dtree

import (
	"sort"

	"github.com/wazevocore/codegen/rules"
)

// ruleEntry pairs a rule with its original index in the RuleSet, used only
// as the deterministic tie-breaker the spec requires for Return ordering.
type ruleEntry struct {
	idx  int
	rule *rules.Rule
}

// Build serializes rs into a priority-safe decision tree, per spec §4.6.
func Build(rs *rules.RuleSet) *Block {
	entries := make([]*ruleEntry, len(rs.Rules))
	for i, r := range rs.Rules {
		entries[i] = &ruleEntry{idx: i, rule: r}
	}
	return buildBlock(rs, entries, make(map[rules.BindingId]bindingState))
}

// sourcesReady reports whether every source binding id needs has reached at
// least Emitted, meaning id's own value can now be named and computed.
// Bindings with no sources (arguments, constants) are always ready.
func sourcesReady(rs *rules.RuleSet, id rules.BindingId, st map[rules.BindingId]bindingState) bool {
	for _, src := range rs.Sources(rs.Binding(id)) {
		if st[src] < Emitted {
			return false
		}
	}
	return true
}

// candKind orders the three candidate kinds for the Match < Equal < Loop
// tie-break (loops sort last).
type candKind uint8

const (
	candMatch candKind = iota
	candEqual
	candLoop
)

type candidate struct {
	kind           candKind
	x, y           rules.BindingId // y unused except for candEqual
	count          int
	alreadyEmitted bool
}

// buildBlock constructs the Block evaluating active to completion. st is
// this branch's private copy of the binding state machine; callers that
// recurse into sibling arms must pass independent copies so state doesn't
// leak across branches that aren't actually both reachable at runtime.
func buildBlock(rs *rules.RuleSet, active []*ruleEntry, st map[rules.BindingId]bindingState) *Block {
	var steps []EvalStep
	remaining := active

	for {
		cand, ok := pickCandidate(rs, remaining, st)
		if !ok {
			break
		}

		bindOrder := emissionOrder(rs, cand.x, st)
		if cand.kind == candEqual {
			bindOrder = append(bindOrder, emissionOrder(rs, cand.y, st)...)
		}

		var kept, deferred []*ruleEntry
		switch cand.kind {
		case candMatch:
			for _, e := range remaining {
				if _, ok := e.rule.GetConstraint(cand.x); ok {
					kept = append(kept, e)
				} else {
					deferred = append(deferred, e)
				}
			}
		case candEqual:
			for _, e := range remaining {
				if ruleRequiresEqual(e.rule, cand.x, cand.y) {
					kept = append(kept, e)
				} else {
					deferred = append(deferred, e)
				}
			}
		case candLoop:
			for _, e := range remaining {
				if ruleIteratesSource(rs, e.rule, cand.x) {
					kept = append(kept, e)
				} else {
					deferred = append(deferred, e)
				}
			}
		}

		check := buildControlFlow(rs, cand, kept, st)
		steps = append(steps, EvalStep{BindOrder: bindOrder, Check: check})
		remaining = deferred
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		a, b := remaining[i], remaining[j]
		if a.rule.Prio != b.rule.Prio {
			return a.rule.Prio > b.rule.Prio
		}
		return a.idx < b.idx
	})
	for _, e := range remaining {
		bindOrder := useExprOrder(rs, e.rule, st)
		steps = append(steps, EvalStep{BindOrder: bindOrder, Check: &Return{Pos: e.rule.Pos, Result: e.rule.Result}})
	}

	return &Block{Steps: steps}
}

// pickCandidate selects the best candidate per spec §4.6's sort rule,
// reduced for priority safety, or reports false once no rule can be
// narrowed further.
func pickCandidate(rs *rules.RuleSet, active []*ruleEntry, st map[rules.BindingId]bindingState) (candidate, bool) {
	matchCount := make(map[rules.BindingId]int)
	loopCount := make(map[rules.BindingId]int)
	equalCount := make(map[[2]rules.BindingId]int)

	eligible := func(id rules.BindingId) bool {
		return st[id] < Matched && sourcesReady(rs, id, st)
	}

	for _, e := range active {
		for _, b := range e.rule.ConstrainedBindings() {
			if eligible(b) {
				matchCount[b]++
			}
		}
		for _, it := range e.rule.IteratedBindings() {
			src := rs.Binding(it).Source
			if eligible(src) {
				loopCount[src]++
			}
		}
		for _, p := range e.rule.EqualPairs() {
			if eligible(p[0]) && eligible(p[1]) {
				equalCount[p]++
			}
		}
	}

	var candidates []candidate
	for x, n := range matchCount {
		if respectsPriority(rs, active, candMatch, x, rules.BindingId(0)) {
			candidates = append(candidates, candidate{kind: candMatch, x: x, count: n, alreadyEmitted: st[x] >= Emitted})
		}
	}
	for p, n := range equalCount {
		if respectsPriority(rs, active, candEqual, p[0], p[1]) {
			candidates = append(candidates, candidate{kind: candEqual, x: p[0], y: p[1], count: n, alreadyEmitted: st[p[0]] >= Emitted && st[p[1]] >= Emitted})
		}
	}
	for x, n := range loopCount {
		if respectsPriority(rs, active, candLoop, x, rules.BindingId(0)) {
			candidates = append(candidates, candidate{kind: candLoop, x: x, count: n, alreadyEmitted: st[x] >= Emitted})
		}
	}

	if len(candidates) == 0 {
		return candidate{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.alreadyEmitted != b.alreadyEmitted {
			return a.alreadyEmitted
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.x < b.x
	})
	return candidates[0], true
}

// respectsPriority conservatively approximates spec §4.6's priority-safety
// rule: the candidate's partition is safe unless some rule that would be
// deferred has both higher priority than, and may overlap, some rule that
// would be kept. When unsafe, the candidate is dropped for this step
// entirely (a correct, if sometimes less compact, tree still results).
func respectsPriority(rs *rules.RuleSet, active []*ruleEntry, kind candKind, x, y rules.BindingId) bool {
	var kept, deferred []*ruleEntry
	for _, e := range active {
		in := false
		switch kind {
		case candMatch:
			_, in = e.rule.GetConstraint(x)
		case candEqual:
			in = ruleRequiresEqual(e.rule, x, y)
		case candLoop:
			in = ruleIteratesSource(rs, e.rule, x)
		}
		if in {
			kept = append(kept, e)
		} else {
			deferred = append(deferred, e)
		}
	}
	if len(deferred) == 0 || len(kept) == 0 {
		return true
	}
	for _, d := range deferred {
		for _, k := range kept {
			if d.rule.Prio > k.rule.Prio {
				ov := k.rule.MayOverlap(d.rule)
				if ov.CanOverlap {
					return false
				}
			}
		}
	}
	return true
}

func ruleRequiresEqual(r *rules.Rule, a, b rules.BindingId) bool {
	for _, p := range r.EqualPairs() {
		if p[0] == a && p[1] == b {
			return true
		}
	}
	return false
}

// ruleIteratesSource reports whether r iterates source (a Loop candidate is
// indexed by the thing being iterated, not by the per-element binding).
func ruleIteratesSource(rs *rules.RuleSet, r *rules.Rule, source rules.BindingId) bool {
	_, ok := iteratorElemOf(rs, r, source)
	return ok
}

// iteratorElemOf returns the (hash-consed, so shared across every rule
// iterating the same source) per-element binding r records for source, if
// any.
func iteratorElemOf(rs *rules.RuleSet, r *rules.Rule, source rules.BindingId) (rules.BindingId, bool) {
	for _, it := range r.IteratedBindings() {
		if rs.Binding(it).Source == source {
			return it, true
		}
	}
	return 0, false
}

// emissionOrder returns, in dependency (source-before-use) order, the
// binding ids that must be named before id can be evaluated, followed by id
// itself — skipping anything already Emitted — and marks all of them
// Emitted in st as a side effect.
func emissionOrder(rs *rules.RuleSet, id rules.BindingId, st map[rules.BindingId]bindingState) []rules.BindingId {
	if st[id] >= Emitted {
		return nil
	}
	var order []rules.BindingId
	var visit func(rules.BindingId)
	seen := make(map[rules.BindingId]bool)
	visit = func(b rules.BindingId) {
		if seen[b] || st[b] >= Emitted {
			return
		}
		seen[b] = true
		for _, src := range rs.Sources(rs.Binding(b)) {
			visit(src)
		}
		order = append(order, b)
		st[b] = Emitted
	}
	visit(id)
	return order
}

// useExprOrder returns the bind_order a Return step needs: the rule's
// result and every impure call it performs, each in dependency order,
// skipping expressions already emitted. Mirrors spec §4.6's use_expr:
// trivial expressions (constants, bare arguments) cost nothing extra since
// emissionOrder already skips anything Emitted and these are cheap to
// re-derive when not yet named.
func useExprOrder(rs *rules.RuleSet, r *rules.Rule, st map[rules.BindingId]bindingState) []rules.BindingId {
	var out []rules.BindingId
	out = append(out, emissionOrder(rs, r.Result, st)...)
	for _, imp := range r.Impure {
		out = append(out, emissionOrder(rs, imp, st)...)
	}
	return out
}

// buildControlFlow emits the ControlFlow node for cand, recursing into
// kept on a branch-local copy of st per spec §4.6's per-kind state
// transitions.
func buildControlFlow(rs *rules.RuleSet, cand candidate, kept []*ruleEntry, st map[rules.BindingId]bindingState) ControlFlow {
	switch cand.kind {
	case candMatch:
		groups := make(map[rules.Constraint][]*ruleEntry)
		var order []rules.Constraint
		for _, e := range kept {
			c, _ := e.rule.GetConstraint(cand.x)
			if _, ok := groups[c]; !ok {
				order = append(order, c)
			}
			groups[c] = append(groups[c], e)
		}
		sort.SliceStable(order, func(i, j int) bool {
			ci, cj := order[i], order[j]
			if ci.Kind != cj.Kind {
				return ci.Kind < cj.Kind
			}
			return ci.IntVal < cj.IntVal
		})

		arms := make([]MatchArm, 0, len(order))
		for _, c := range order {
			branch := copyState(st)
			branch[cand.x] = Matched
			children := c.BindingsFor(cand.x)
			childIds := make([]rules.BindingId, len(children))
			for i, ch := range children {
				id, ok := rs.FindBinding(ch)
				if !ok {
					id = rs.Intern(ch)
				}
				childIds[i] = id
				branch[id] = Emitted
			}
			arms = append(arms, MatchArm{Constraint: c, Bindings: childIds, Body: buildBlock(rs, groups[c], branch)})
		}
		return &Match{Source: cand.x, Arms: arms}

	case candEqual:
		branch := copyState(st)
		branch[cand.x] = Matched
		branch[cand.y] = Matched
		return &Equal{A: cand.x, B: cand.y, Body: buildBlock(rs, kept, branch)}

	case candLoop:
		branch := copyState(st)
		branch[cand.x] = Matched
		elem, _ := iteratorElemOf(rs, kept[0].rule, cand.x)
		branch[elem] = Emitted
		return &Loop{Result: elem, Body: buildBlock(rs, kept, branch)}
	}
	panic("unreachable candidate kind")
}

func copyState(st map[rules.BindingId]bindingState) map[rules.BindingId]bindingState {
	out := make(map[rules.BindingId]bindingState, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}
