package typevar

import "github.com/wazevocore/codegen/ir"

// TypeSetBuilder accumulates independent constraints on each TypeSet
// dimension and yields the resulting TypeSet via Finish. Zero value is a
// builder with no constraints on anything.
type TypeSetBuilder struct {
	ints, floats, bools, bitvecs PowerSet
	lanes                        PowerSet
	includeScalar                bool
	specials                     uint8
}

// Ints constrains the builder's integer widths to the closed range [lo, hi]
// of powers of two.
func (b *TypeSetBuilder) Ints(lo, hi int) *TypeSetBuilder {
	b.ints = b.ints.Union(RangePowerSet(lo, hi))
	return b
}

// Floats constrains the builder's float widths.
func (b *TypeSetBuilder) Floats(lo, hi int) *TypeSetBuilder {
	b.floats = b.floats.Union(RangePowerSet(lo, hi))
	return b
}

// Bools constrains the builder's bool widths; only legal bool widths
// ({1,8,16,32,64}) are actually added, even if lo/hi bracket others.
func (b *TypeSetBuilder) Bools(lo, hi int) *TypeSetBuilder {
	for n := lo; n <= hi; n *= 2 {
		if ir.LegalBoolWidth(n) {
			b.bools.Add(n)
		}
	}
	return b
}

// BitVecs constrains the builder's bitvector widths.
func (b *TypeSetBuilder) BitVecs(lo, hi int) *TypeSetBuilder {
	b.bitvecs = b.bitvecs.Union(RangePowerSet(lo, hi))
	return b
}

// SimdLanes constrains the builder's SIMD lane counts (each a power of two
// greater than one); IncludeScalar separately controls whether lane count 1
// (i.e. non-vector) is also legal.
func (b *TypeSetBuilder) SimdLanes(lo, hi int) *TypeSetBuilder {
	b.lanes = b.lanes.Union(RangePowerSet(lo, hi))
	return b
}

// IncludeScalar adds lane count 1 to the builder's lanes dimension.
func (b *TypeSetBuilder) IncludeScalar() *TypeSetBuilder {
	b.includeScalar = true
	return b
}

// Special adds sp to the builder's specials dimension.
func (b *TypeSetBuilder) Special(sp ir.SpecialType) *TypeSetBuilder {
	b.specials |= specialBit(sp)
	return b
}

// Finish yields the accumulated TypeSet.
func (b *TypeSetBuilder) Finish() TypeSet {
	lanes := b.lanes
	if b.includeScalar {
		lanes.Add(1)
	}
	return TypeSet{
		Lanes:    lanes,
		Ints:     b.ints,
		Floats:   b.floats,
		Bools:    b.bools,
		BitVecs:  b.bitvecs,
		Specials: b.specials,
	}
}
