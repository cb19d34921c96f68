package domain

import (
	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/errs"
)

// CellOrder is the in-tile cell ordering.
type CellOrder int

const (
	RowMajor CellOrder = iota
	ColMajor
	Hilbert
)

// TileOrder is the ordering used to linearize tile coordinates.
type TileOrder int

const (
	TileRowMajor TileOrder = iota
	TileColMajor
)

// Domain is an ordered tuple of Dimensions plus cell- and tile-layout tags.
type Domain struct {
	dims       []*dimension.Dimension
	cellOrder  CellOrder
	tileOrder  TileOrder
	hilbertBits uint
}

// New builds a Domain. Per spec.md §3: tile-layout is ignored when any
// dimension is variable-length, and all dimensions must be fixed-type for a
// dense array (enforced by callers that know denseness; Domain itself just
// carries the dimensions and layout tags).
func New(dims []*dimension.Dimension, cellOrder CellOrder, tileOrder TileOrder, hilbertBits uint) (*Domain, error) {
	if len(dims) == 0 {
		return nil, errs.New(errs.Invalid, "domain must have at least one dimension")
	}
	if hilbertBits == 0 {
		hilbertBits = 32
	}
	return &Domain{dims: dims, cellOrder: cellOrder, tileOrder: tileOrder, hilbertBits: hilbertBits}, nil
}

func (d *Domain) Dimensions() []*dimension.Dimension { return d.dims }
func (d *Domain) NumDims() int                       { return len(d.dims) }
func (d *Domain) CellOrder() CellOrder               { return d.cellOrder }
func (d *Domain) TileOrder() TileOrder               { return d.tileOrder }

// Dimension returns the i-th dimension.
func (d *Domain) Dimension(i int) *dimension.Dimension { return d.dims[i] }

// AllFixed reports whether every dimension is fixed-width, a precondition
// for a dense array per spec.md §3.
func (d *Domain) AllFixed() bool {
	for _, dim := range d.dims {
		if dim.IsVarLength() {
			return false
		}
	}
	return true
}

// VarLengthUsed reports whether any dimension is variable-length, which
// makes tile-layout meaningless per spec.md §3.
func (d *Domain) VarLengthUsed() bool {
	for _, dim := range d.dims {
		if dim.IsVarLength() {
			return true
		}
	}
	return false
}

// NDRangeFullDomain returns the NDRange spanning every dimension's full
// domain.
func (d *Domain) NDRangeFullDomain() NDRange {
	out := make(NDRange, len(d.dims))
	for i, dim := range d.dims {
		out[i] = dim.Domain()
	}
	return out
}

// CellNumPerTile is the product of each dimension's tile extent width
// (cells per tile), used by dense tile-size accounting.
func (d *Domain) CellNumPerTile() uint64 {
	total := uint64(1)
	for _, dim := range d.dims {
		n := dim.CellNumPerTile()
		if n == 0 {
			return 0
		}
		total *= n
	}
	return total
}

// ExpandToTiles rounds each dimension of ndrange independently out to the
// tile grid (no-op for dimensions without a tile extent).
func (d *Domain) ExpandToTiles(ndrange NDRange) NDRange {
	out := ndrange.Clone()
	for i, dim := range d.dims {
		out[i] = dim.ExpandToTile(out[i])
	}
	return out
}

// CropNDRange intersects each dimension of ndrange with its domain.
func (d *Domain) CropNDRange(ndrange NDRange) NDRange {
	out := ndrange.Clone()
	for i, dim := range d.dims {
		out[i] = dim.CropRange(out[i])
	}
	return out
}

// TileExtentCounts returns, for each dimension, the number of tiles spanned
// by ndrange[i] (spec.md §4.4.3's per-dim factor of `tile_num()` for dense
// fragments).
func (d *Domain) TileExtentCounts(ndrange NDRange) []uint64 {
	out := make([]uint64, len(d.dims))
	for i, dim := range d.dims {
		out[i] = dim.TileNum(ndrange[i])
	}
	return out
}

// TileNumDense returns the product of TileExtentCounts, i.e. the total
// number of dense tiles ndrange spans.
func (d *Domain) TileNumDense(ndrange NDRange) uint64 {
	total := uint64(1)
	for _, n := range d.TileExtentCounts(ndrange) {
		total *= n
	}
	return total
}
