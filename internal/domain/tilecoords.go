package domain

// TileCoords is a per-dimension, absolute tile coordinate vector: one
// global tile index per axis, counted from the start of that dimension's
// own domain (so tile 0 along an axis is always the first tile of the
// array, regardless of what subarray a caller happens to be iterating).
type TileCoords []uint64

// TileCoordsFor returns the absolute tile coordinate vector of the tile
// containing the given cell coordinates (one encoded value per dimension).
func (d *Domain) TileCoordsFor(cell [][]byte) TileCoords {
	out := make(TileCoords, len(d.dims))
	for i, dim := range d.dims {
		out[i] = dim.TileIdx(cell[i])
	}
	return out
}

// fullTileExtents returns, for each dimension, the number of tiles spanning
// that dimension's entire domain — the grid LinearTileID linearizes
// against, so the resulting id matches tile_offsets[] indexing regardless
// of what subarray a query happens to touch.
func (d *Domain) fullTileExtents() []uint64 {
	return d.TileExtentCounts(d.NDRangeFullDomain())
}

// LinearTileID computes the single global tile id of an absolute tile
// coordinate vector under the domain's configured TileOrder (row-major:
// last dimension fastest; column-major: first dimension fastest).
func (d *Domain) LinearTileID(coords TileCoords) uint64 {
	extents := d.fullTileExtents()

	switch d.tileOrder {
	case TileColMajor:
		var idx, mult uint64 = 0, 1
		for i := 0; i < len(d.dims); i++ {
			idx += coords[i] * mult
			mult *= extents[i]
		}
		return idx
	default: // TileRowMajor
		var idx uint64
		for i := 0; i < len(d.dims); i++ {
			idx = idx*extents[i] + coords[i]
		}
		return idx
	}
}

// HilbertTileID computes the Hilbert-curve index of an absolute tile
// coordinate vector, used when CellOrder is Hilbert: every dimension's
// coordinate is normalized against its domain width and interleaved per
// hilbertIndex.
func (d *Domain) HilbertTileID(coords TileCoords) uint64 {
	bits := d.hilbertBits
	norm := make([]uint64, len(d.dims))
	for i, dim := range d.dims {
		maxBucket := dim.DomainRangeWidth(dim.Domain())
		if maxBucket > 0 {
			maxBucket--
		}
		norm[i] = hilbertBucket(coords[i], maxBucket, bits)
	}
	return hilbertIndex(norm, bits)
}

// GetNextTileCoords advances an absolute tile coordinate vector by one step
// within the tile grid spanned by ndrange, in the domain's TileOrder,
// returning false when coords was already the last tile in that grid
// (row-major advances the last axis fastest; column-major advances the
// first axis fastest). Used by the dense tile enumerator (spec.md §4.2).
func (d *Domain) GetNextTileCoords(ndrange NDRange, coords TileCoords) (TileCoords, bool) {
	extents := d.TileExtentCounts(ndrange)
	origin := make(TileCoords, len(d.dims))
	for i, dim := range d.dims {
		origin[i] = dim.TileIdx(ndrange[i].Low())
	}

	next := make(TileCoords, len(coords))
	copy(next, coords)

	switch d.tileOrder {
	case TileColMajor:
		for i := 0; i < len(next); i++ {
			next[i]++
			if next[i] < origin[i]+extents[i] {
				return next, true
			}
			next[i] = origin[i]
		}
	default: // TileRowMajor
		for i := len(next) - 1; i >= 0; i-- {
			next[i]++
			if next[i] < origin[i]+extents[i] {
				return next, true
			}
			next[i] = origin[i]
		}
	}
	return next, false
}
