package dimension

import "soltix.dev/fragstore/internal/errs"

// ops is the per-datatype vtable a Dimension resolves once at construction
// time (spec.md §4.1, §9: "a table of function references keyed by the
// datatype tag, so each operation is a single indirect call"). Every method
// takes the already-validated domain/extent/range values it needs rather
// than reaching back into the Dimension, so the vtable has no dependency on
// the Dimension struct layout.
type ops interface {
	Width() int

	CheckRange(domain Range, r Range) error
	TileIdx(domain Range, extent Range, v []byte) uint64
	RoundToTile(domain Range, extent Range, v []byte) []byte
	TileCoordLow(domain Range, extent Range, k uint64) []byte
	TileCoordHigh(domain Range, extent Range, k uint64) []byte
	CeilToTile(r Range, extent Range, k uint64) []byte
	CoincidesWithTiles(domain Range, extent Range, r Range) bool
	CropRange(domain Range, r Range) Range
	ExpandRange(r1 Range, r2 Range) Range
	ExpandToTile(domain Range, extent Range, r Range) Range
	DomainRangeWidth(r Range) uint64
	Overlap(r1, r2 Range) bool
	Covered(r1, r2 Range) bool
	OverlapRatio(r1, r2 Range) float64
	TileNum(domain Range, extent Range, r Range) uint64
	SplitRange(r Range, v []byte) (Range, Range)
	SplittingValue(r Range) ([]byte, bool)
	MapToUint64(domain Range, v []byte, bits uint, maxBucket uint64) uint64
	MapFromUint64(domain Range, bucket uint64, bits uint) []byte
	Compare(a, b []byte) int
}

// resolveOps returns the vtable for dt, the one place a switch on Datatype
// happens for operation dispatch.
func resolveOps(dt Datatype) (ops, error) {
	switch {
	case dt.IsSignedInteger():
		return &signedIntOps{width: dt.ByteWidth()}, nil
	case dt.IsInteger():
		return &unsignedIntOps{width: dt.ByteWidth()}, nil
	case dt.IsFloat():
		return &floatOps{width: dt.ByteWidth()}, nil
	case dt == StringAscii:
		return &stringOps{}, nil
	default:
		return nil, errs.Newf(errs.Invalid, "unsupported datatype %v", dt)
	}
}
