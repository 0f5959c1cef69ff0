package typevar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intTypeSet() TypeSet {
	var b TypeSetBuilder
	b.Ints(8, 64).IncludeScalar()
	return b.Finish()
}

func TestPowerSetBasics(t *testing.T) {
	p := RangePowerSet(8, 64)
	require.True(t, p.Has(8))
	require.True(t, p.Has(16))
	require.True(t, p.Has(64))
	require.False(t, p.Has(128))
	require.Equal(t, []int{8, 16, 32, 64}, p.Members())
}

func TestTypeSetSize(t *testing.T) {
	ts := intTypeSet()
	require.Equal(t, 4, ts.Size()) // lanes={1} x ints={8,16,32,64}
}

func TestLaneOfDropsBitVecsKeepsScalars(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(8, 32).BitVecs(8, 32).SimdLanes(2, 8)
	ts := b.Finish()

	img := ts.LaneOf()
	require.Equal(t, []int{1}, img.Lanes.Members())
	require.True(t, img.BitVecs.IsEmpty())
	require.Equal(t, ts.Ints.Members(), img.Ints.Members())
}

func TestAsBoolVectorCase(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(8, 16).SimdLanes(2, 4)
	ts := b.Finish()

	img := ts.AsBool()
	require.Equal(t, ts.Ints.Members(), img.Bools.Members())
	require.False(t, img.Bools.Has(1))
}

func TestAsBoolScalarCaseInsertsWidth1(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(8, 16).IncludeScalar()
	ts := b.Finish()

	img := ts.AsBool()
	require.True(t, img.Bools.Has(1))
}

func TestHalfWidthFiltersIllegal(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(8, 64).IncludeScalar()
	ts := b.Finish()

	img := ts.HalfWidth()
	// ints>8 ({16,32,64}) halve to {8,16,32}; 8 itself is excluded as a
	// source (b>8 required), so image is {8,16,32}.
	require.Equal(t, []int{8, 16, 32}, img.Ints.Members())
}

func TestDoubleWidthCapsAtMax(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(8, 64).IncludeScalar()
	ts := b.Finish()

	img := ts.DoubleWidth()
	require.Equal(t, []int{16, 32, 64}, img.Ints.Members())
}

func TestHalfVectorAndDoubleVector(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(32, 32).SimdLanes(2, 8)
	ts := b.Finish()

	half := ts.HalfVector()
	require.Equal(t, []int{1, 2, 4}, half.Lanes.Members())

	double := ts.DoubleVector()
	require.Equal(t, []int{4, 8, 16}, double.Lanes.Members())
}

func TestToBitVecSingleLaneZip(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(8, 16).SimdLanes(2, 2)
	ts := b.Finish()

	img := ts.ToBitVec()
	require.Equal(t, []int{1}, img.Lanes.Members())
	require.Equal(t, []int{16, 32}, img.BitVecs.Members())
}

// With more than one lane count, to_bitvec zips lanes against scalars
// positionally (cycling lanes), not crossing every lane with every scalar:
// a cartesian product would additionally produce 1*16=16 and 2*8=16.
func TestToBitVecMultiLaneZipNotCartesian(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(8, 16).SimdLanes(2, 2).IncludeScalar()
	ts := b.Finish()

	img := ts.ToBitVec()
	require.Equal(t, []int{1}, img.Lanes.Members())
	require.Equal(t, []int{8, 32}, img.BitVecs.Members())
}

func TestToBitVecPanicsIfAlreadyBitVec(t *testing.T) {
	var b TypeSetBuilder
	b.BitVecs(8, 8).IncludeScalar()
	ts := b.Finish()
	require.Panics(t, func() { ts.ToBitVec() })
}

func TestFreeTypeVarIdentity(t *testing.T) {
	ts := intTypeSet()
	a := NewTypeVar("Ty1", "", ts)
	b := NewTypeVar("Ty1", "", ts)
	require.False(t, Equal(a, b), "structurally identical free vars at distinct sites must differ")
	require.True(t, Equal(a, a))
}

func TestDerivedEqualityFollowsBase(t *testing.T) {
	ts := intTypeSet()
	base := NewTypeVar("Ty1", "", ts)
	d1 := Derive(base, DerivationHalfWidth)
	d2 := Derive(base, DerivationHalfWidth)
	require.True(t, Equal(d1, d2))

	d3 := Derive(base, DerivationDoubleWidth)
	require.False(t, Equal(d1, d3))
}

func TestFreeTypeVarSingletonHasNone(t *testing.T) {
	var b TypeSetBuilder
	b.Ints(32, 32).IncludeScalar()
	ts := b.Finish()
	require.Equal(t, 1, ts.Size())

	v := NewTypeVar("Ty1", "", ts)
	require.Nil(t, v.FreeTypeVar())
}

func TestFreeTypeVarFollowsDerivationChain(t *testing.T) {
	ts := intTypeSet()
	base := NewTypeVar("Ty1", "", ts)
	d := Derive(Derive(base, DerivationHalfWidth), DerivationAsBool)
	require.Same(t, base, d.FreeTypeVar())
}
