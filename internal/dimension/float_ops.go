package dimension

import (
	"math"

	"soltix.dev/fragstore/internal/errs"
)

// floatOps implements ops for Float32/Float64. CropRange clamps to the
// domain the same way as integers, but ExpandToTile does not snap to the
// tile grid, and upper bounds use math.Nextafter instead of a +1/-1
// adjustment, per spec.md §4.1.
type floatOps struct{ width int }

func (o *floatOps) Width() int { return o.width }

func (o *floatOps) decode(b []byte) float64 {
	if o.width == 4 {
		return float64(math.Float32frombits(uint32(decodeRaw(b, 4))))
	}
	return math.Float64frombits(decodeRaw(b, 8))
}

func (o *floatOps) encode(v float64) []byte {
	if o.width == 4 {
		return encodeRaw(uint64(math.Float32bits(float32(v))), 4)
	}
	return encodeRaw(math.Float64bits(v), 8)
}

func (o *floatOps) nextAfter(v, towards float64) float64 {
	if o.width == 4 {
		return float64(nextafter32(float32(v), float32(towards)))
	}
	return math.Nextafter(v, towards)
}

// nextafter32 is math.Nextafter's algorithm specialized to float32, since
// the stdlib only provides the float64 form.
func nextafter32(x, y float32) float32 {
	switch {
	case math.IsNaN(float64(x)) || math.IsNaN(float64(y)):
		return float32(math.NaN())
	case x == y:
		return x
	case x == 0:
		bits := uint32(1)
		if y < 0 {
			bits |= 1 << 31
		}
		return math.Float32frombits(bits)
	case (y > x) == (x > 0):
		return math.Float32frombits(math.Float32bits(x) + 1)
	default:
		return math.Float32frombits(math.Float32bits(x) - 1)
	}
}

func (o *floatOps) CheckRange(domain Range, r Range) error {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return errs.New(errs.Invalid, "NaN is not a valid range bound")
	}
	if lo > hi {
		return errs.Newf(errs.Invalid, "range low %g exceeds high %g", lo, hi)
	}
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	if lo < dlo || hi > dhi {
		return errs.Newf(errs.Invalid, "range [%g,%g] outside domain [%g,%g]", lo, hi, dlo, dhi)
	}
	return nil
}

// TileIdx/RoundToTile/TileCoordLow/TileCoordHigh are defined for floats only
// when a tile extent is present; dense float dimensions are not meaningful
// per spec.md §3 ("tile extent is meaningless for variable-length
// dimensions") but floats can still carry an extent for Hilbert bucketing
// math, so these stay defined for completeness.

func (o *floatOps) TileIdx(domain, extent Range, v []byte) uint64 {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	val := o.decode(v)
	if ext <= 0 {
		return 0
	}
	return uint64((val - dlo) / ext)
}

func (o *floatOps) RoundToTile(domain, extent Range, v []byte) []byte {
	k := o.TileIdx(domain, extent, v)
	return o.TileCoordLow(domain, extent, k)
}

func (o *floatOps) TileCoordLow(domain, extent Range, k uint64) []byte {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	return o.encode(dlo + float64(k)*ext)
}

func (o *floatOps) TileCoordHigh(domain, extent Range, k uint64) []byte {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	v := dlo + float64(k+1)*ext
	return o.encode(o.nextAfter(v, math.Inf(-1)))
}

func (o *floatOps) CeilToTile(r Range, extent Range, k uint64) []byte {
	lo := o.decode(r.Low())
	ext := o.decode(extent.Low())
	v := lo + float64(k+1)*ext
	return o.encode(o.nextAfter(v, math.Inf(-1)))
}

// CoincidesWithTiles (always false) and ExpandToTile are no-ops for floats
// per spec.md §4.1 ("noop for floats and for null tile extent"); CropRange
// still clamps to the domain.
func (o *floatOps) CoincidesWithTiles(domain, extent, r Range) bool { return false }

func (o *floatOps) CropRange(domain, r Range) Range {
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	if lo < dlo {
		lo = dlo
	}
	if hi > dhi {
		hi = dhi
	}
	if lo > hi {
		lo, hi = dlo, dlo
	}
	return NewFixedRange(o.encode(lo), o.encode(hi))
}

func (o *floatOps) ExpandRange(r1, r2 Range) Range {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	lo, hi := lo2, hi2
	if lo1 < lo {
		lo = lo1
	}
	if hi1 > hi {
		hi = hi1
	}
	return NewFixedRange(o.encode(lo), o.encode(hi))
}

func (o *floatOps) ExpandToTile(domain, extent, r Range) Range { return r }

func (o *floatOps) DomainRangeWidth(r Range) uint64 { return 0 }

func (o *floatOps) Overlap(r1, r2 Range) bool {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	return lo1 <= hi2 && lo2 <= hi1
}

func (o *floatOps) Covered(r1, r2 Range) bool {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	return lo2 <= lo1 && hi1 <= hi2
}

func (o *floatOps) OverlapRatio(r1, r2 Range) float64 {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	lo, hi := lo1, hi1
	if lo2 > lo {
		lo = lo2
	}
	if hi2 < hi {
		hi = hi2
	}
	if lo > hi {
		return 0
	}
	width := hi1 - lo1
	interWidth := hi - lo
	if width == 0 {
		if interWidth == 0 {
			return 1.0
		}
		return 0
	}
	return interWidth / width
}

func (o *floatOps) TileNum(domain, extent, r Range) uint64 {
	kLow := o.TileIdx(domain, extent, r.Low())
	kHigh := o.TileIdx(domain, extent, r.High())
	return kHigh - kLow + 1
}

func (o *floatOps) SplitRange(r Range, v []byte) (Range, Range) {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	mid := o.decode(v)
	r1 := NewFixedRange(o.encode(lo), o.encode(mid))
	r2 := NewFixedRange(o.encode(o.nextAfter(mid, math.Inf(1))), o.encode(hi))
	return r1, r2
}

func (o *floatOps) SplittingValue(r Range) ([]byte, bool) {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	mid := lo + (hi-lo)/2
	unsplittable := mid <= lo || mid >= hi
	return o.encode(mid), unsplittable
}

func (o *floatOps) MapToUint64(domain Range, v []byte, bits uint, maxBucket uint64) uint64 {
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	val := o.decode(v)
	width := dhi - dlo
	if width <= 0 {
		return 0
	}
	ratio := (val - dlo) / width
	bucket := uint64(ratio * float64(maxBucket))
	if bucket > maxBucket {
		bucket = maxBucket
	}
	return bucket
}

func (o *floatOps) MapFromUint64(domain Range, bucket uint64, bits uint) []byte {
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	width := dhi - dlo
	maxBucket := uint64(1)<<bits - 1
	ratio := float64(bucket) / float64(maxBucket)
	return o.encode(dlo + ratio*width)
}

func (o *floatOps) Compare(a, b []byte) int {
	av, bv := o.decode(a), o.decode(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}
