// Package dtree turns a rules.RuleSet for a single term into a decision
// tree: a Block of EvalSteps that, evaluated in order against a concrete
// set of argument bindings, selects the highest-priority matching Rule
// while sharing the evaluation of any binding more than one candidate rule
// needs.
package dtree

import "github.com/wazevocore/codegen/rules"

// Block is an ordered sequence of evaluation steps. Steps are tried in
// order; each step either narrows the active rule set via a ControlFlow
// check or, once no further narrowing is possible, returns a match.
type Block struct {
	Steps []EvalStep
}

// EvalStep names the bindings that must be computed (in dependency order)
// before Check can be evaluated.
type EvalStep struct {
	BindOrder []rules.BindingId
	Check     ControlFlow
}

// ControlFlow is one node of the decision tree: Match, Equal, Loop, or
// Return.
type ControlFlow interface {
	isControlFlow()
}

// Match dispatches on the concrete rules.Constraint satisfied by Source,
// one child Block per distinct constraint observed across the rules being
// discriminated.
type Match struct {
	Source rules.BindingId
	Arms   []MatchArm
}

// MatchArm is one arm of a Match: the constraint it requires, the child
// bindings that constraint's match introduces (in the same order
// rules.Constraint.BindingsFor produces them), and the body to recurse
// into when the constraint holds.
type MatchArm struct {
	Constraint rules.Constraint
	Bindings   []rules.BindingId
	Body       *Block
}

// Equal checks that bindings A and B hold equal runtime values.
type Equal struct {
	A, B rules.BindingId
	Body *Block
}

// Loop iterates the multi-valued binding Result was derived from (a
// BindingIterator's source), running Body once per element with Result
// bound to that element.
type Loop struct {
	Result rules.BindingId
	Body   *Block
}

// Return finishes evaluation: the rule at Pos has matched, yielding
// Result.
type Return struct {
	Pos    rules.Pos
	Result rules.BindingId
}

func (*Match) isControlFlow()  {}
func (*Equal) isControlFlow()  {}
func (*Loop) isControlFlow()   {}
func (*Return) isControlFlow() {}

// bindingState is this binding's position in the Unavailable → Available →
// Emitted → Matched state machine (spec §4.6).
type bindingState uint8

const (
	Unavailable bindingState = iota
	Available
	Emitted
	Matched
)
