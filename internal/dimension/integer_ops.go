package dimension

import "soltix.dev/fragstore/internal/errs"

// signedIntOps implements ops for Int8/16/32/64. Arithmetic that could
// overflow the signed width (tile counts, domain width) is promoted to
// unsigned intermediates per spec.md §4.1, mirroring the original's use of
// unsigned-typed intermediates to avoid signed overflow when the domain
// spans the full type range.
type signedIntOps struct{ width int }

func (o *signedIntOps) Width() int { return o.width }

func (o *signedIntOps) decode(b []byte) int64 {
	return signExtend(decodeRaw(b, o.width), o.width)
}

func (o *signedIntOps) encode(v int64) []byte {
	return encodeRaw(uint64(v)&maskU64(o.width), o.width)
}

func (o *signedIntOps) maxVal() int64 {
	return signExtend(maskU64(o.width)>>1, o.width)
}

func (o *signedIntOps) minVal() int64 {
	return -o.maxVal() - 1
}

func (o *signedIntOps) CheckRange(domain Range, r Range) error {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	if lo > hi {
		return errs.Newf(errs.Invalid, "range low %d exceeds high %d", lo, hi)
	}
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	if lo < dlo || hi > dhi {
		return errs.Newf(errs.Invalid, "range [%d,%d] outside domain [%d,%d]", lo, hi, dlo, dhi)
	}
	return nil
}

func (o *signedIntOps) TileIdx(domain Range, extent Range, v []byte) uint64 {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	val := o.decode(v)
	return uint64(val-dlo) / uint64(ext)
}

func (o *signedIntOps) RoundToTile(domain, extent Range, v []byte) []byte {
	k := o.TileIdx(domain, extent, v)
	return o.TileCoordLow(domain, extent, k)
}

func (o *signedIntOps) TileCoordLow(domain, extent Range, k uint64) []byte {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	v := dlo + int64(k)*ext
	return o.encode(v)
}

func (o *signedIntOps) TileCoordHigh(domain, extent Range, k uint64) []byte {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	off := (k+1)*uint64(ext) - 1
	if off > uint64(o.maxVal())-uint64(dlo) {
		return o.encode(o.maxVal())
	}
	return o.encode(int64(uint64(dlo) + off))
}

func (o *signedIntOps) CeilToTile(r Range, extent Range, k uint64) []byte {
	lo := o.decode(r.Low())
	ext := o.decode(extent.Low())
	off := (k+1)*uint64(ext) - 1
	if off > uint64(o.maxVal())-uint64(lo) {
		return o.encode(o.maxVal())
	}
	return o.encode(int64(uint64(lo) + off))
}

func (o *signedIntOps) CoincidesWithTiles(domain, extent, r Range) bool {
	if extent.Empty() {
		return false
	}
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	lowOK := uint64(lo-dlo)%uint64(ext) == 0
	highOK := uint64(hi-dlo+1)%uint64(ext) == 0
	return lowOK && highOK
}

func (o *signedIntOps) CropRange(domain, r Range) Range {
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

func (o *signedIntOps) ExpandRange(r1, r2 Range) Range {
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

func (o *signedIntOps) ExpandToTile(domain, extent, r Range) Range {
	if extent.Empty() {
		return r
	}
	kLow := o.TileIdx(domain, extent, r.Low())
	kHigh := o.TileIdx(domain, extent, r.High())
	lo := o.TileCoordLow(domain, extent, kLow)
	hi := o.TileCoordHigh(domain, extent, kHigh)
	dhi := domain.High()
	if o.Compare(hi, dhi) > 0 {
		hi = dhi
	}
	return NewFixedRange(lo, hi)
}

func (o *signedIntOps) DomainRangeWidth(r Range) uint64 {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	diff := uint64(hi) - uint64(lo)
	if diff == ^uint64(0) {
		return ^uint64(0)
	}
	return diff + 1
}

func (o *signedIntOps) Overlap(r1, r2 Range) bool {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	return lo1 <= hi2 && lo2 <= hi1
}

func (o *signedIntOps) Covered(r1, r2 Range) bool {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	return lo2 <= lo1 && hi1 <= hi2
}

func (o *signedIntOps) OverlapRatio(r1, r2 Range) float64 {
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
	width := uint64(hi1) - uint64(lo1) + 1
	interWidth := uint64(hi) - uint64(lo) + 1
	if width == 0 {
		return 0
	}
	return float64(interWidth) / float64(width)
}

func (o *signedIntOps) TileNum(domain, extent, r Range) uint64 {
	kLow := o.TileIdx(domain, extent, r.Low())
	kHigh := o.TileIdx(domain, extent, r.High())
	return kHigh - kLow + 1
}

func (o *signedIntOps) SplitRange(r Range, v []byte) (Range, Range) {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	mid := o.decode(v)
	r1 := NewFixedRange(o.encode(lo), o.encode(mid))
	r2 := NewFixedRange(o.encode(mid+1), o.encode(hi))
	return r1, r2
}

func (o *signedIntOps) SplittingValue(r Range) ([]byte, bool) {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	if hi <= lo {
		return o.encode(lo), true
	}
	mid := lo + int64(uint64(hi-lo)/2)
	return o.encode(mid), false
}

func (o *signedIntOps) MapToUint64(domain Range, v []byte, bits uint, maxBucket uint64) uint64 {
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	val := o.decode(v)
	width := uint64(dhi) - uint64(dlo) + 1
	if width == 0 {
		return 0
	}
	offset := uint64(val - dlo)
	bucket := (offset * maxBucket) / width
	if bucket > maxBucket {
		bucket = maxBucket
	}
	return bucket
}

func (o *signedIntOps) MapFromUint64(domain Range, bucket uint64, bits uint) []byte {
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	width := uint64(dhi) - uint64(dlo) + 1
	maxBucket := (uint64(1) << bits) - 1
	if maxBucket == 0 {
		return o.encode(dlo)
	}
	offset := (bucket * width) / maxBucket
	return o.encode(dlo + int64(offset))
}

func (o *signedIntOps) Compare(a, b []byte) int {
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

// unsignedIntOps implements ops for Uint8/16/32/64.
type unsignedIntOps struct{ width int }

func (o *unsignedIntOps) Width() int { return o.width }

func (o *unsignedIntOps) decode(b []byte) uint64 { return decodeRaw(b, o.width) }
func (o *unsignedIntOps) encode(v uint64) []byte { return encodeRaw(v&maskU64(o.width), o.width) }
func (o *unsignedIntOps) maxVal() uint64         { return maskU64(o.width) }

func (o *unsignedIntOps) CheckRange(domain Range, r Range) error {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	if lo > hi {
		return errs.Newf(errs.Invalid, "range low %d exceeds high %d", lo, hi)
	}
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	if lo < dlo || hi > dhi {
		return errs.Newf(errs.Invalid, "range [%d,%d] outside domain [%d,%d]", lo, hi, dlo, dhi)
	}
	return nil
}

func (o *unsignedIntOps) TileIdx(domain, extent Range, v []byte) uint64 {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	val := o.decode(v)
	return (val - dlo) / ext
}

func (o *unsignedIntOps) RoundToTile(domain, extent Range, v []byte) []byte {
	k := o.TileIdx(domain, extent, v)
	return o.TileCoordLow(domain, extent, k)
}

func (o *unsignedIntOps) TileCoordLow(domain, extent Range, k uint64) []byte {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	return o.encode(dlo + k*ext)
}

func (o *unsignedIntOps) TileCoordHigh(domain, extent Range, k uint64) []byte {
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	hi := dlo + (k+1)*ext - 1
	if hi > o.maxVal() || hi < dlo {
		return o.encode(o.maxVal())
	}
	return o.encode(hi)
}

func (o *unsignedIntOps) CeilToTile(r Range, extent Range, k uint64) []byte {
	lo := o.decode(r.Low())
	ext := o.decode(extent.Low())
	raw := lo + (k+1)*ext - 1
	if raw > o.maxVal() || raw < lo {
		return o.encode(o.maxVal())
	}
	return o.encode(raw)
}

func (o *unsignedIntOps) CoincidesWithTiles(domain, extent, r Range) bool {
	if extent.Empty() {
		return false
	}
	dlo := o.decode(domain.Low())
	ext := o.decode(extent.Low())
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	lowOK := (lo-dlo)%ext == 0
	highOK := (hi-dlo+1)%ext == 0
	return lowOK && highOK
}

func (o *unsignedIntOps) CropRange(domain, r Range) Range {
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

func (o *unsignedIntOps) ExpandRange(r1, r2 Range) Range {
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

func (o *unsignedIntOps) ExpandToTile(domain, extent, r Range) Range {
	if extent.Empty() {
		return r
	}
	kLow := o.TileIdx(domain, extent, r.Low())
	kHigh := o.TileIdx(domain, extent, r.High())
	lo := o.TileCoordLow(domain, extent, kLow)
	hi := o.TileCoordHigh(domain, extent, kHigh)
	dhi := domain.High()
	if o.Compare(hi, dhi) > 0 {
		hi = dhi
	}
	return NewFixedRange(lo, hi)
}

func (o *unsignedIntOps) DomainRangeWidth(r Range) uint64 {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	diff := hi - lo
	if diff == ^uint64(0) {
		return ^uint64(0)
	}
	return diff + 1
}

func (o *unsignedIntOps) Overlap(r1, r2 Range) bool {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	return lo1 <= hi2 && lo2 <= hi1
}

func (o *unsignedIntOps) Covered(r1, r2 Range) bool {
	lo1, hi1 := o.decode(r1.Low()), o.decode(r1.High())
	lo2, hi2 := o.decode(r2.Low()), o.decode(r2.High())
	return lo2 <= lo1 && hi1 <= hi2
}

func (o *unsignedIntOps) OverlapRatio(r1, r2 Range) float64 {
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
	width := hi1 - lo1 + 1
	interWidth := hi - lo + 1
	if width == 0 {
		return 0
	}
	return float64(interWidth) / float64(width)
}

func (o *unsignedIntOps) TileNum(domain, extent, r Range) uint64 {
	kLow := o.TileIdx(domain, extent, r.Low())
	kHigh := o.TileIdx(domain, extent, r.High())
	return kHigh - kLow + 1
}

func (o *unsignedIntOps) SplitRange(r Range, v []byte) (Range, Range) {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	mid := o.decode(v)
	r1 := NewFixedRange(o.encode(lo), o.encode(mid))
	r2 := NewFixedRange(o.encode(mid+1), o.encode(hi))
	return r1, r2
}

func (o *unsignedIntOps) SplittingValue(r Range) ([]byte, bool) {
	lo, hi := o.decode(r.Low()), o.decode(r.High())
	if hi <= lo {
		return o.encode(lo), true
	}
	mid := lo + (hi-lo)/2
	return o.encode(mid), false
}

func (o *unsignedIntOps) MapToUint64(domain Range, v []byte, bits uint, maxBucket uint64) uint64 {
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	val := o.decode(v)
	width := dhi - dlo + 1
	if width == 0 {
		return 0
	}
	offset := val - dlo
	bucket := (offset * maxBucket) / width
	if bucket > maxBucket {
		bucket = maxBucket
	}
	return bucket
}

func (o *unsignedIntOps) MapFromUint64(domain Range, bucket uint64, bits uint) []byte {
	dlo, dhi := o.decode(domain.Low()), o.decode(domain.High())
	width := dhi - dlo + 1
	maxBucket := (uint64(1) << bits) - 1
	if maxBucket == 0 {
		return o.encode(dlo)
	}
	offset := (bucket * width) / maxBucket
	return o.encode(dlo + offset)
}

func (o *unsignedIntOps) Compare(a, b []byte) int {
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
