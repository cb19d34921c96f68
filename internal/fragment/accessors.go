package fragment

import (
	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/errs"
)

// CellNumPerTile is the dense "cells_per_tile" value from Init.
func (fm *FragmentMetadata) CellNumPerTile() uint64 { return fm.capacity }

// cellNumInternal implements cell_num(t), per spec.md §4.4.3: dense returns
// cells_per_tile; sparse returns capacity for all but the last tile,
// last_tile_cell_num for the last.
func (fm *FragmentMetadata) cellNumInternal(t uint64) uint64 {
	if fm.dense {
		return fm.capacity
	}
	if t == fm.sparseTileNum-1 {
		return fm.lastTileCellNum
	}
	return fm.capacity
}

// CellNumAt is the public accessor for cell_num(t).
func (fm *FragmentMetadata) CellNumAt(t uint64) uint64 { return fm.cellNumInternal(t) }

// tileNumInternal implements tile_num(), per spec.md §4.4.3: dense is the
// product over dims of (expanded_domain[d] high-low)/tile_extent + 1;
// sparse is sparse_tile_num.
func (fm *FragmentMetadata) tileNumInternal() uint64 {
	if !fm.dense {
		return fm.sparseTileNum
	}
	if fm.domain_ == nil {
		return 0
	}
	return fm.schema.Domain().TileNumDense(fm.domain_)
}

// TileNum is the public accessor for tile_num().
func (fm *FragmentMetadata) TileNum() uint64 { return fm.tileNumInternal() }

// CellNum implements cell_num(): dense = tile_num x cells_per_tile; sparse =
// (tile_num-1)*capacity + last_tile_cell_num.
func (fm *FragmentMetadata) CellNum() uint64 {
	if fm.dense {
		return fm.tileNumInternal() * fm.capacity
	}
	if fm.sparseTileNum == 0 {
		return 0
	}
	return (fm.sparseTileNum-1)*fm.capacity + fm.lastTileCellNum
}

func (fm *FragmentMetadata) cellSizeOf(idx int) int {
	col := fm.idx.columns[idx]
	switch {
	case col.idx < fm.idx.numAttrs:
		return fm.schema.Attributes()[col.idx].CellSize()
	case col.isCoord:
		var total int
		for _, d := range fm.schema.Dimensions() {
			total += d.ByteWidth()
		}
		return total
	case col.idx >= fm.idx.numAttrs+1 && col.idx < fm.idx.numAttrs+1+fm.idx.numDims:
		return fm.schema.Dimensions()[col.dimIdx].ByteWidth()
	default:
		return 8 // timestamp / delete pseudo-columns: uint64
	}
}

// TileSize implements tile_size(name, t): cell_num(t) x cell_size fixed, or
// (cell_num(t)+1) x 8 for the offset column of a var attribute.
func (fm *FragmentMetadata) TileSize(name string, t uint64) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	cn := fm.cellNumInternal(t)
	if !fm.isFixedColumn(idx) {
		return (cn + 1) * 8, nil
	}
	return cn * uint64(fm.cellSizeOf(idx)), nil
}

func forwardDiff(offsets []uint64, fileSize uint64, t int) (uint64, error) {
	if t < 0 || t >= len(offsets) {
		return 0, errs.Newf(errs.Invalid, "fragment: tile index %d out of range", t)
	}
	var end uint64
	if t+1 < len(offsets) {
		end = offsets[t+1]
	} else {
		end = fileSize
	}
	if end < offsets[t] {
		return 0, errs.New(errs.Corrupt, "fragment: non-monotonic offset vector")
	}
	return end - offsets[t], nil
}

// PersistedTileSize is the forward-difference of tile_offsets, per spec.md
// §4.4.3.
func (fm *FragmentMetadata) PersistedTileSize(name string, t uint64) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if err := fm.ensureLoaded(secTileOffsets(idx)); err != nil {
		return 0, err
	}
	return forwardDiff(fm.tileOffsets[idx], fm.fileSizes[idx], int(t))
}

func (fm *FragmentMetadata) PersistedTileVarSize(name string, t uint64) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if err := fm.ensureLoaded(secTileVarOffsets(idx)); err != nil {
		return 0, err
	}
	return forwardDiff(fm.tileVarOffsets[idx], fm.fileVarSizes[idx], int(t))
}

func (fm *FragmentMetadata) PersistedTileValiditySize(name string, t uint64) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if err := fm.ensureLoaded(secTileValidityOffsets(idx)); err != nil {
		return 0, err
	}
	return forwardDiff(fm.tileValidityOffsets[idx], fm.fileValiditySizes[idx], int(t))
}

// TileVarSize returns tile_var_sizes[idx][t].
func (fm *FragmentMetadata) TileVarSize(name string, t uint64) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if err := fm.ensureLoaded(secTileVarSizes(idx)); err != nil {
		return 0, err
	}
	if int(t) >= len(fm.tileVarSizes[idx]) {
		return 0, errs.Newf(errs.Invalid, "fragment: tile index %d out of range", t)
	}
	return fm.tileVarSizes[idx][t], nil
}

func (fm *FragmentMetadata) columnHasStats(idx int) bool {
	col := fm.idx.columns[idx]
	return col.idx < fm.idx.numAttrs
}

// GetTileMinAs returns tile t's minimum value for a fixed-type column.
func (fm *FragmentMetadata) GetTileMinAs(name string, t uint64) ([]byte, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return nil, err
	}
	if !fm.columnHasStats(idx) {
		return nil, errs.Newf(errs.NotApplicable, "fragment: column %q has no min statistic", name)
	}
	if err := fm.ensureLoaded(secTileMinMax(idx)); err != nil {
		return nil, err
	}
	width := fm.cellSizeOf(idx)
	if fm.schema.Attributes()[idx].IsVarLength() {
		v, ok := tileMinVarAt(fm.tileMinVarOffsets[idx], fm.tileMinVar[idx], int(t))
		if !ok {
			return []byte{}, nil
		}
		return v, nil
	}
	if (int(t)+1)*width > len(fm.tileMinFixed[idx]) {
		return nil, errs.Newf(errs.Invalid, "fragment: tile index %d out of range", t)
	}
	return fm.tileMinFixed[idx][int(t)*width : (int(t)+1)*width], nil
}

// GetTileMaxAs returns tile t's maximum value for a fixed-type column.
func (fm *FragmentMetadata) GetTileMaxAs(name string, t uint64) ([]byte, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return nil, err
	}
	if !fm.columnHasStats(idx) {
		return nil, errs.Newf(errs.NotApplicable, "fragment: column %q has no max statistic", name)
	}
	if err := fm.ensureLoaded(secTileMinMax(idx)); err != nil {
		return nil, err
	}
	width := fm.cellSizeOf(idx)
	if fm.schema.Attributes()[idx].IsVarLength() {
		v, ok := tileMinVarAt(fm.tileMaxVarOffsets[idx], fm.tileMaxVar[idx], int(t))
		if !ok {
			return []byte{}, nil
		}
		return v, nil
	}
	if (int(t)+1)*width > len(fm.tileMaxFixed[idx]) {
		return nil, errs.Newf(errs.Invalid, "fragment: tile index %d out of range", t)
	}
	return fm.tileMaxFixed[idx][int(t)*width : (int(t)+1)*width], nil
}

// GetTileSum returns tile t's sum for a numeric column, refusing with
// NotApplicable for non-numeric types.
func (fm *FragmentMetadata) GetTileSum(name string, t uint64) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if !fm.columnHasStats(idx) {
		return 0, errs.Newf(errs.NotApplicable, "fragment: column %q has no sum statistic", name)
	}
	dt := fm.schema.Attributes()[idx].Datatype()
	if !dt.IsInteger() && !dt.IsFloat() {
		return 0, errs.Newf(errs.NotApplicable, "fragment: column %q is non-numeric", name)
	}
	if err := fm.ensureLoaded(secTileSumNullCount(idx)); err != nil {
		return 0, err
	}
	if int(t) >= len(fm.tileSums[idx]) {
		return 0, errs.Newf(errs.Invalid, "fragment: tile index %d out of range", t)
	}
	return fm.tileSums[idx][t], nil
}

// GetTileNullCount returns tile t's null count.
func (fm *FragmentMetadata) GetTileNullCount(name string, t uint64) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if !fm.columnHasStats(idx) || !fm.schema.Attributes()[idx].Nullable() {
		return 0, errs.Newf(errs.NotApplicable, "fragment: column %q is not nullable", name)
	}
	if err := fm.ensureLoaded(secTileSumNullCount(idx)); err != nil {
		return 0, err
	}
	if int(t) >= len(fm.tileNullCounts[idx]) {
		return 0, errs.Newf(errs.Invalid, "fragment: tile index %d out of range", t)
	}
	return fm.tileNullCounts[idx][t], nil
}

// BufferSizes accumulates required read-buffer sizes for a subarray query,
// implementing add_max_buffer_sizes per spec.md §4.4.3. Results are added
// to (not replacing) the caller's map, keyed by column name, in bytes.
type BufferSizes map[string]uint64

// GetFragmentMinAs returns column name's per-fragment minimum
// (fragment_min[i] in spec.md §3), the roll-up ComputeFragmentMinMaxSumNullCount
// produces from every tile's min.
func (fm *FragmentMetadata) GetFragmentMinAs(name string) ([]byte, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return nil, err
	}
	if !fm.columnHasStats(idx) {
		return nil, errs.Newf(errs.NotApplicable, "fragment: column %q has no min statistic", name)
	}
	if err := fm.ensureLoaded(secFragmentMinMaxSumNullCount); err != nil {
		return nil, err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.fragmentMins[idx], nil
}

// GetFragmentMaxAs returns column name's per-fragment maximum
// (fragment_max[i]).
func (fm *FragmentMetadata) GetFragmentMaxAs(name string) ([]byte, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return nil, err
	}
	if !fm.columnHasStats(idx) {
		return nil, errs.Newf(errs.NotApplicable, "fragment: column %q has no max statistic", name)
	}
	if err := fm.ensureLoaded(secFragmentMinMaxSumNullCount); err != nil {
		return nil, err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.fragmentMaxs[idx], nil
}

// GetFragmentSum returns column name's per-fragment sum (fragment_sum[i]),
// refusing with NotApplicable for non-numeric types.
func (fm *FragmentMetadata) GetFragmentSum(name string) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if !fm.columnHasStats(idx) {
		return 0, errs.Newf(errs.NotApplicable, "fragment: column %q has no sum statistic", name)
	}
	dt := fm.schema.Attributes()[idx].Datatype()
	if !dt.IsInteger() && !dt.IsFloat() {
		return 0, errs.Newf(errs.NotApplicable, "fragment: column %q is non-numeric", name)
	}
	if err := fm.ensureLoaded(secFragmentMinMaxSumNullCount); err != nil {
		return 0, err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.fragmentSums[idx], nil
}

// GetFragmentNullCount returns column name's per-fragment null count
// (fragment_null_count[i]).
func (fm *FragmentMetadata) GetFragmentNullCount(name string) (uint64, error) {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return 0, err
	}
	if !fm.columnHasStats(idx) || !fm.schema.Attributes()[idx].Nullable() {
		return 0, errs.Newf(errs.NotApplicable, "fragment: column %q is not nullable", name)
	}
	if err := fm.ensureLoaded(secFragmentMinMaxSumNullCount); err != nil {
		return 0, err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.fragmentNullCounts[idx], nil
}

// AddMaxBufferSizes implements the dense and sparse branches of
// add_max_buffer_sizes.
func (fm *FragmentMetadata) AddMaxBufferSizes(subarray []dimension.Range, names []string, out BufferSizes) error {
	if fm.dense {
		return fm.addMaxBufferSizesDense(subarray, names, out)
	}
	return fm.addMaxBufferSizesSparse(subarray, names, out)
}

func (fm *FragmentMetadata) addMaxBufferSizesDense(subarray []dimension.Range, names []string, out BufferSizes) error {
	dom := fm.schema.Domain()
	ndrange := dimensionsToNDRange(subarray)
	expanded := dom.ExpandToTiles(dom.CropNDRange(ndrange))
	tileIDs := enumerateDenseTileIDs(dom, expanded)
	return fm.accumulateBufferSizes(tileIDs, names, out)
}

func (fm *FragmentMetadata) addMaxBufferSizesSparse(subarray []dimension.Range, names []string, out BufferSizes) error {
	if err := fm.ensureLoaded(secRTree); err != nil {
		return err
	}
	ndrange := dimensionsToNDRange(subarray)
	isDefault := make([]bool, len(ndrange))
	overlap := fm.rt.GetTileOverlap(ndrange, isDefault)
	return fm.accumulateBufferSizes(overlap.TileIDs(), names, out)
}

func (fm *FragmentMetadata) accumulateBufferSizes(tileIDs []uint64, names []string, out BufferSizes) error {
	for _, name := range names {
		idx, err := fm.columnIndex(name)
		if err != nil {
			return err
		}
		var total uint64
		for _, t := range tileIDs {
			cn := fm.cellNumInternal(t)
			if fm.isFixedColumn(idx) {
				total += cn * uint64(fm.cellSizeOf(idx))
				continue
			}
			total += (cn + 1) * 8
			vs, err := fm.TileVarSize(name, t)
			if err == nil {
				total += vs
			}
		}
		out[name] += total
	}
	return nil
}

func dimensionsToNDRange(ranges []dimension.Range) []dimension.Range {
	return ranges
}
