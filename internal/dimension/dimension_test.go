package dimension

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"soltix.dev/fragstore/internal/errs"
)

func u32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func i32b(v int32) []byte {
	return u32b(uint32(v))
}

// extentRangeOf builds the tile-extent Range convention this module uses
// throughout: Low() holds the extent value itself (what TileIdx divides
// by), High() is unused but kept equal-width.
func extentRangeOf(width []byte) Range {
	return NewFixedRange(width, width)
}

func TestDimensionTileIdxSigned(t *testing.T) {
	dom := NewFixedRange(i32b(-100), i32b(99))
	ext := extentRangeOf(i32b(20))
	d, err := New("x", Int32, 1, dom, &ext)
	require.NoError(t, err)

	require.Equal(t, uint64(0), d.TileIdx(i32b(-100)))
	require.Equal(t, uint64(0), d.TileIdx(i32b(-81)))
	require.Equal(t, uint64(1), d.TileIdx(i32b(-80)))
	require.Equal(t, uint64(9), d.TileIdx(i32b(99)))
}

func TestDimensionRoundToTile(t *testing.T) {
	dom := NewFixedRange(u32b(0), u32b(99))
	ext := extentRangeOf(u32b(10))
	d, err := New("x", Uint32, 1, dom, &ext)
	require.NoError(t, err)

	got := d.RoundToTile(u32b(37))
	require.Equal(t, uint32(30), binary.LittleEndian.Uint32(got))
}

func TestDimensionCheckRange(t *testing.T) {
	dom := NewFixedRange(i32b(0), i32b(100))
	d, err := New("x", Int32, 1, dom, nil)
	require.NoError(t, err)

	require.NoError(t, d.CheckRange(NewFixedRange(i32b(10), i32b(20))))
	require.Error(t, d.CheckRange(NewFixedRange(i32b(-5), i32b(20))))
	require.Error(t, d.CheckRange(NewFixedRange(i32b(20), i32b(10))))
}

func TestDimensionVarLengthRejectsExtent(t *testing.T) {
	dom := NewVarRange([]byte("a"), []byte("z"))
	ext := NewVarRange([]byte("a"), []byte("b"))
	_, err := New("s", StringAscii, 0, dom, &ext)
	require.Error(t, err)

	d, err := New("s", StringAscii, 0, dom, nil)
	require.NoError(t, err)
	require.True(t, d.IsVarLength())
	require.False(t, d.HasTileExtent())
}

func TestDimensionOverlapAndCovered(t *testing.T) {
	dom := NewFixedRange(u32b(0), u32b(1000))
	d, err := New("x", Uint32, 1, dom, nil)
	require.NoError(t, err)

	r1 := NewFixedRange(u32b(10), u32b(20))
	r2 := NewFixedRange(u32b(15), u32b(30))
	r3 := NewFixedRange(u32b(100), u32b(200))

	require.True(t, d.Overlap(r1, r2))
	require.False(t, d.Overlap(r1, r3))
	require.True(t, d.Covered(NewFixedRange(u32b(12), u32b(18)), r1))
	require.False(t, d.Covered(r1, NewFixedRange(u32b(12), u32b(18))))
}

func TestDimensionSplitRange(t *testing.T) {
	dom := NewFixedRange(u32b(0), u32b(1000))
	d, err := New("x", Uint32, 1, dom, nil)
	require.NoError(t, err)

	r := NewFixedRange(u32b(0), u32b(9))
	mid, exact := d.SplittingValue(r)
	require.False(t, exact)
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(mid))

	left, right := d.SplitRange(r, mid)
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(left.Low()))
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(left.High()))
	require.Equal(t, uint32(5), binary.LittleEndian.Uint32(right.Low()))
	require.Equal(t, uint32(9), binary.LittleEndian.Uint32(right.High()))
}

func TestDatatypeByteWidthAndClassification(t *testing.T) {
	require.Equal(t, 4, Int32.ByteWidth())
	require.Equal(t, 0, StringAscii.ByteWidth())
	require.True(t, Int32.IsSignedInteger())
	require.True(t, Uint64.IsInteger())
	require.False(t, Uint64.IsSignedInteger())
	require.True(t, Float64.IsFloat())
	require.True(t, StringAscii.IsVarLength())
}

// TestDomainRoundTripLaw covers spec.md §8 testable property 9: for every
// value v in domain, tile_coord_low(tile_idx(v)) <= v <= tile_coord_high(tile_idx(v)),
// and round_to_tile(v) == tile_coord_low(tile_idx(v)).
func TestDomainRoundTripLaw(t *testing.T) {
	dom := NewIntRange(Int32, -17, 103)
	ext := NewIntRange(Int32, 7, 7)
	d, err := New("x", Int32, 1, dom, &ext)
	require.NoError(t, err)

	for v := int64(-17); v <= 103; v++ {
		enc := EncodeInt64(Int32, v)
		k := d.TileIdx(enc)
		lo := DecodeInt64(Int32, d.TileCoordLow(k))
		hi := DecodeInt64(Int32, d.TileCoordHigh(k))
		require.LessOrEqual(t, lo, v)
		require.LessOrEqual(t, v, hi)

		rounded := DecodeInt64(Int32, d.RoundToTile(enc))
		require.Equal(t, lo, rounded)
	}
}

// TestDomainRoundTripLawUnsigned mirrors TestDomainRoundTripLaw for an
// unsigned dimension, since signed and unsigned widths use separate ops
// implementations.
func TestDomainRoundTripLawUnsigned(t *testing.T) {
	dom := NewFixedRange(u32b(0), u32b(50))
	ext := extentRangeOf(u32b(6))
	d, err := New("x", Uint32, 1, dom, &ext)
	require.NoError(t, err)

	for v := uint32(0); v <= 50; v++ {
		enc := u32b(v)
		k := d.TileIdx(enc)
		lo := binary.LittleEndian.Uint32(d.TileCoordLow(k))
		hi := binary.LittleEndian.Uint32(d.TileCoordHigh(k))
		require.LessOrEqual(t, lo, v)
		require.LessOrEqual(t, v, hi)

		rounded := binary.LittleEndian.Uint32(d.RoundToTile(enc))
		require.Equal(t, lo, rounded)
	}
}

// TestIntegerDomainFullRangeRejected covers spec.md §8 testable property 11:
// [T::MIN, T::MAX-1] is accepted with domain_range == MaxUint64 (its 2^64-1
// values), but [T::MIN, T::MAX] overflows the width used to represent
// domain_range and is rejected at schema time.
func TestIntegerDomainFullRangeRejected(t *testing.T) {
	okDomain := NewIntRange(Int64, math.MinInt64, math.MaxInt64-1)
	d, err := New("x", Int64, 1, okDomain, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), d.DomainRangeWidth(okDomain))

	badDomain := NewIntRange(Int64, math.MinInt64, math.MaxInt64)
	_, err = New("x", Int64, 1, badDomain, nil)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Invalid, kind)
}

// TestIntegerDomainFullRangeRejectedUnsigned mirrors
// TestIntegerDomainFullRangeRejected for an unsigned 64-bit dimension.
func TestIntegerDomainFullRangeRejectedUnsigned(t *testing.T) {
	okDomain := NewFixedRange(u64b(0), u64b(math.MaxUint64-1))
	_, err := New("x", Uint64, 1, okDomain, nil)
	require.NoError(t, err)

	badDomain := NewFixedRange(u64b(0), u64b(math.MaxUint64))
	_, err = New("x", Uint64, 1, badDomain, nil)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Invalid, kind)
}

// TestFloatRangeNaNRejected covers spec.md §8 testable property 12: a NaN
// range bound is rejected by check_range, for both the low and high bound.
func TestFloatRangeNaNRejected(t *testing.T) {
	dom := NewFloatRange(Float64, 0, 100)
	d, err := New("x", Float64, 1, dom, nil)
	require.NoError(t, err)

	err = d.CheckRange(NewFloatRange(Float64, math.NaN(), 10))
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Invalid, kind)

	err = d.CheckRange(NewFloatRange(Float64, 10, math.NaN()))
	require.Error(t, err)
	kind, ok = errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Invalid, kind)
}

func u64b(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// TestFloat32TileCoordHighLandsStrictlyBelowBoundary covers spec.md §4.1's
// "tile_coord_high uses nextafter(x, -inf) to land strictly below the next
// tile's low edge" for Float32 dimensions specifically: a naive round-trip
// through float32 (rather than an actual bit-step) would return the
// boundary itself, not a value below it.
func TestFloat32TileCoordHighLandsStrictlyBelowBoundary(t *testing.T) {
	ext := NewFloatRange(Float32, 2, 2)
	d, err := New("x", Float32, 1, NewFloatRange(Float32, 0, 10), &ext)
	require.NoError(t, err)

	hi := d.TileCoordHigh(0)
	hiVal := math.Float32frombits(binary.LittleEndian.Uint32(hi))
	require.Less(t, hiVal, float32(2))
	require.Greater(t, hiVal, float32(1.999))

	next := math.Float32bits(hiVal) + 1
	require.Equal(t, float32(2), math.Float32frombits(next))
}
