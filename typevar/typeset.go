package typevar

import (
	"fmt"

	"github.com/wazevocore/codegen/ir"
)

// MaxLanes, MaxBits, and MaxBitVec bound legal shapes, shared with ir.Type's
// own constants (they describe the same underlying value space).
const (
	MaxLanes  = ir.MaxLanes
	MaxBits   = ir.MaxBits
	MaxBitVec = ir.MaxBitVec
)

// specialBit returns the bitmask bit for a SpecialType; only Flags and Ref
// are ever members of a TypeSet's specials dimension.
func specialBit(s ir.SpecialType) uint8 { return 1 << uint8(s) }

// TypeSet is the 6-tuple (lanes, ints, floats, bools, bitvecs, specials)
// describing every concrete ir.Type a TypeVar may be instantiated to.
type TypeSet struct {
	Lanes    PowerSet
	Ints     PowerSet
	Floats   PowerSet
	Bools    PowerSet
	BitVecs  PowerSet
	Specials uint8 // bitmask, see specialBit
}

// Size returns the number of concrete types the set describes: one entry
// per (lane count, scalar width) pair across ints/floats/bools/bitvecs, plus
// one per special (which carry no lane dimension).
func (s TypeSet) Size() int {
	scalarKinds := s.Ints.Len() + s.Floats.Len() + s.Bools.Len() + s.BitVecs.Len()
	n := s.Lanes.Len()*scalarKinds + bitsCount(s.Specials)
	return n
}

func bitsCount(b uint8) int {
	n := 0
	for ; b != 0; b &= b - 1 {
		n++
	}
	return n
}

// IsEmpty reports whether the set describes no types at all.
func (s TypeSet) IsEmpty() bool { return s.Size() == 0 }

// HasSpecial reports whether sp is a member.
func (s TypeSet) HasSpecial(sp ir.SpecialType) bool { return s.Specials&specialBit(sp) != 0 }

func (s TypeSet) String() string {
	return fmt.Sprintf("lanes=%v ints=%v floats=%v bools=%v bitvecs=%v specials=%#x",
		s.Lanes.Members(), s.Ints.Members(), s.Floats.Members(), s.Bools.Members(), s.BitVecs.Members(), s.Specials)
}

// LaneOf returns the image of s under the lane_of operator: every
// derived type has exactly one lane (its scalar component), and bitvecs are
// not meaningful once lane-indexed so they're dropped.
func (s TypeSet) LaneOf() TypeSet {
	return TypeSet{
		Lanes:  NewPowerSet(1),
		Ints:   s.Ints,
		Floats: s.Floats,
		Bools:  s.Bools,
	}
}

// AsBool returns the image of s under the as_bool operator.
func (s TypeSet) AsBool() TypeSet {
	out := TypeSet{Lanes: s.Lanes}
	hasVector := false
	for _, l := range s.Lanes.Members() {
		if l > 1 {
			hasVector = true
			break
		}
	}
	if hasVector {
		out.Bools = out.Bools.Union(s.Ints).Union(s.Floats).Union(s.Bools)
	}
	if s.Lanes.Has(1) {
		out.Bools.Add(1)
	}
	return out
}

// HalfWidth returns the image of s under the half_width operator.
func (s TypeSet) HalfWidth() TypeSet {
	return TypeSet{
		Lanes: s.Lanes,
		Ints: s.Ints.Map(func(b int) (int, bool) {
			if b > 8 {
				return b / 2, true
			}
			return 0, false
		}),
		Floats: s.Floats.Map(func(b int) (int, bool) {
			if b > 32 {
				return b / 2, true
			}
			return 0, false
		}),
		Bools: s.Bools.Map(func(b int) (int, bool) {
			if b > 8 {
				return b / 2, true
			}
			return 0, false
		}),
		BitVecs: s.BitVecs.Map(func(b int) (int, bool) {
			if b > 1 {
				return b / 2, true
			}
			return 0, false
		}),
	}
}

// DoubleWidth returns the image of s under the double_width operator.
func (s TypeSet) DoubleWidth() TypeSet {
	return TypeSet{
		Lanes: s.Lanes,
		Ints: s.Ints.Map(func(b int) (int, bool) {
			if b < MaxBits {
				return b * 2, true
			}
			return 0, false
		}),
		Floats: s.Floats.Map(func(b int) (int, bool) {
			if b < MaxBits {
				return b * 2, true
			}
			return 0, false
		}),
		Bools: s.Bools.Map(func(b int) (int, bool) {
			if b < MaxBits && ir.LegalBoolWidth(b*2) {
				return b * 2, true
			}
			return 0, false
		}),
		BitVecs: s.BitVecs.Map(func(b int) (int, bool) {
			if b < MaxBitVec {
				return b * 2, true
			}
			return 0, false
		}),
	}
}

// HalfVector returns the image of s under the half_vector operator.
func (s TypeSet) HalfVector() TypeSet {
	return TypeSet{
		Lanes: s.Lanes.Map(func(l int) (int, bool) {
			if l > 1 {
				return l / 2, true
			}
			return 0, false
		}),
		Ints:   s.Ints,
		Floats: s.Floats,
		Bools:  s.Bools,
	}
}

// DoubleVector returns the image of s under the double_vector operator.
func (s TypeSet) DoubleVector() TypeSet {
	return TypeSet{
		Lanes: s.Lanes.Map(func(l int) (int, bool) {
			if l < MaxLanes {
				return l * 2, true
			}
			return 0, false
		}),
		Ints:   s.Ints,
		Floats: s.Floats,
		Bools:  s.Bools,
	}
}

// ToBitVec returns the image of s under the to_bitvec operator. s must have
// an empty BitVecs dimension (deriving to_bitvec of an already-bitvector
// typeset is a programming error, since the operator wouldn't know which
// scalar decomposition to use).
//
// Lanes and scalars are paired positionally, cycling lanes if there are
// fewer of them than scalars, not crossed: to_bitvec in typevar.rs is
// `self.lanes.iter().cycle().zip(all_scalars.iter()).map(|(l, w)| l * w)`,
// a zip, not a cartesian product.
func (s TypeSet) ToBitVec() TypeSet {
	if !s.BitVecs.IsEmpty() {
		panic("BUG: to_bitvec derivation of a typeset that already contains bitvectors")
	}
	lanes := s.Lanes.Members()
	allScalars := s.Ints.Union(s.Floats).Union(s.Bools).Members()
	var bv PowerSet
	for i, w := range allScalars {
		l := lanes[i%len(lanes)]
		bv.Add(l * w)
	}
	return TypeSet{
		Lanes:   NewPowerSet(1),
		BitVecs: bv,
	}
}
