// Package dimension implements the single-dimension geometry contract of
// spec.md §4.1: domain, tile extent, and coordinate-type-dispatched range
// arithmetic (overlap, covered, crop, expand, split, tile-index).
package dimension

import "soltix.dev/fragstore/internal/errs"

// Dimension is an immutable descriptor after construction: name, datatype,
// cell-value-count, domain range, and an optional tile extent.
type Dimension struct {
	name       string
	datatype   Datatype
	cellValNum uint32 // 0 means variable
	domain     Range
	extent     *Range // nil when the dimension has no tile extent
	ops        ops
}

// New constructs a Dimension, validating domain and tile-extent invariants
// from spec.md §3: for integer domains `high-low+1` must fit the unsigned
// width of T; a tile extent must not exceed `floor(domain_range)`; a tile
// extent is meaningless (and rejected) for variable-length dimensions.
func New(name string, dt Datatype, cellValNum uint32, domain Range, extent *Range) (*Dimension, error) {
	o, err := resolveOps(dt)
	if err != nil {
		return nil, err
	}

	d := &Dimension{name: name, datatype: dt, cellValNum: cellValNum, domain: domain, ops: o}

	if dt.IsVarLength() {
		if extent != nil {
			return nil, errs.Newf(errs.Invalid, "dimension %q: tile extent is meaningless for variable-length dimensions", name)
		}
		return d, nil
	}

	if !domain.Empty() {
		if err := o.CheckRange(domain, domain); err != nil {
			return nil, errs.Wrap(errs.Invalid, err, "dimension "+name+": invalid domain")
		}
		if dt.IsInteger() {
			w := dt.ByteWidth()
			if (decodeRaw(domain.High(), w)-decodeRaw(domain.Low(), w))&maskU64(w) == maskU64(w) {
				return nil, errs.Newf(errs.Invalid, "dimension %q: domain [T::MIN, T::MAX] overflows domain_range, use [T::MIN, T::MAX-1]", name)
			}
		}
	}

	if extent != nil {
		width := o.DomainRangeWidth(domain)
		var extVal uint64
		if dt.IsInteger() {
			extVal = decodeRaw(extent.Low(), dt.ByteWidth())
		}
		if width != 0 && extVal > width {
			return nil, errs.Newf(errs.Invalid, "dimension %q: tile extent exceeds domain range", name)
		}
		d.extent = extent
	}

	return d, nil
}

func (d *Dimension) Name() string        { return d.name }
func (d *Dimension) Datatype() Datatype  { return d.datatype }
func (d *Dimension) CellValNum() uint32  { return d.cellValNum }
func (d *Dimension) IsVarLength() bool   { return d.cellValNum == 0 || d.datatype.IsVarLength() }
func (d *Dimension) Domain() Range       { return d.domain }
func (d *Dimension) TileExtent() *Range  { return d.extent }
func (d *Dimension) HasTileExtent() bool { return d.extent != nil }
func (d *Dimension) ByteWidth() int      { return d.datatype.ByteWidth() }

func (d *Dimension) extentRange() Range {
	if d.extent == nil {
		return Range{}
	}
	return *d.extent
}

// TileIdx returns the index of the tile containing coordinate v.
func (d *Dimension) TileIdx(v []byte) uint64 {
	return d.ops.TileIdx(d.domain, d.extentRange(), v)
}

// RoundToTile snaps v down to the low coordinate of its containing tile.
func (d *Dimension) RoundToTile(v []byte) []byte {
	return d.ops.RoundToTile(d.domain, d.extentRange(), v)
}

// TileCoordLow returns the low coordinate of tile k.
func (d *Dimension) TileCoordLow(k uint64) []byte {
	return d.ops.TileCoordLow(d.domain, d.extentRange(), k)
}

// TileCoordHigh returns the high coordinate of tile k, clamped to T::MAX.
func (d *Dimension) TileCoordHigh(k uint64) []byte {
	return d.ops.TileCoordHigh(d.domain, d.extentRange(), k)
}

// CeilToTile returns the value at the end of the k-th tile past the start
// of r.
func (d *Dimension) CeilToTile(r Range, k uint64) []byte {
	return d.ops.CeilToTile(r, d.extentRange(), k)
}

// CheckRange validates r against this dimension's domain.
func (d *Dimension) CheckRange(r Range) error {
	return d.ops.CheckRange(d.domain, r)
}

// CoincidesWithTiles reports whether both bounds of r sit on tile
// boundaries.
func (d *Dimension) CoincidesWithTiles(r Range) bool {
	return d.ops.CoincidesWithTiles(d.domain, d.extentRange(), r)
}

// CropRange clamps r to the dimension's domain.
func (d *Dimension) CropRange(r Range) Range {
	return d.ops.CropRange(d.domain, r)
}

// ExpandRange returns r2 expanded to also cover r1.
func (d *Dimension) ExpandRange(r1, r2 Range) Range {
	return d.ops.ExpandRange(r1, r2)
}

// ExpandToTile snaps r outward to the tile grid.
func (d *Dimension) ExpandToTile(r Range) Range {
	if d.extent == nil {
		return r
	}
	return d.ops.ExpandToTile(d.domain, d.extentRange(), r)
}

// DomainRangeWidth returns high-low+1 for an integer range, saturating at
// MaxUint64; 0 for non-integer types.
func (d *Dimension) DomainRangeWidth(r Range) uint64 {
	return d.ops.DomainRangeWidth(r)
}

// Overlap reports whether r1 and r2 intersect.
func (d *Dimension) Overlap(r1, r2 Range) bool {
	return d.ops.Overlap(r1, r2)
}

// Covered reports whether r1 is fully contained in r2.
func (d *Dimension) Covered(r1, r2 Range) bool {
	return d.ops.Covered(r1, r2)
}

// OverlapRatio reports the fraction of r1 covered by its intersection with
// r2.
func (d *Dimension) OverlapRatio(r1, r2 Range) float64 {
	return d.ops.OverlapRatio(r1, r2)
}

// TileNum returns the number of tiles intersected by r.
func (d *Dimension) TileNum(r Range) uint64 {
	return d.ops.TileNum(d.domain, d.extentRange(), r)
}

// SplitRange splits r at v into two sub-ranges.
func (d *Dimension) SplitRange(r Range, v []byte) (Range, Range) {
	return d.ops.SplitRange(r, v)
}

// SplittingValue returns a midpoint (or short discriminating prefix, for
// strings) and whether r is too narrow to split further.
func (d *Dimension) SplittingValue(r Range) ([]byte, bool) {
	return d.ops.SplittingValue(r)
}

// MapToUint64 normalizes v to a bits-wide bucket id for the Hilbert layout.
func (d *Dimension) MapToUint64(v []byte, bits uint, maxBucket uint64) uint64 {
	return d.ops.MapToUint64(d.domain, v, bits, maxBucket)
}

// MapFromUint64 is the inverse of MapToUint64.
func (d *Dimension) MapFromUint64(bucket uint64, bits uint) []byte {
	return d.ops.MapFromUint64(d.domain, bucket, bits)
}

// Compare orders two encoded coordinate values of this dimension's type.
func (d *Dimension) Compare(a, b []byte) int {
	return d.ops.Compare(a, b)
}

// CellNumPerTile returns the number of cells in one full tile of this
// dimension (the tile extent value, for integer dimensions; 0 otherwise).
func (d *Dimension) CellNumPerTile() uint64 {
	if d.extent == nil || !d.datatype.IsInteger() {
		return 0
	}
	return decodeRaw(d.extent.Low(), d.datatype.ByteWidth())
}
