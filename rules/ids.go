// Package rules implements the hash-consed, strongly-normalizing
// rule-rewriting IR that the decision-tree serializer (package dtree)
// compiles: bindings, constraints, rules, and rule sets, modeled on
// Cranelift-ISLE's trie_again.rs.
package rules

import "fmt"

// TupleIndex is a small field index within a tuple or enum variant.
type TupleIndex uint8

// BindingId is a hash-consed identifier for a Binding within one RuleSet.
type BindingId uint32

// BindingIdInvalid marks the absence of a binding.
const BindingIdInvalid BindingId = 1<<32 - 1

func (b BindingId) String() string { return fmt.Sprintf("b%d", uint32(b)) }

// TermId names a rule-language term (a constructor or extractor).
type TermId uint32

// TypeId names a rule-language type.
type TypeId uint32

// VariantId names one variant of an enum TypeId.
type VariantId uint32

// Pos is an opaque source position, carried through for diagnostics.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col) }
