package fragment

import (
	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/rtree"
)

// defaultRTreeFanout mirrors the fan-out Build assumes when neither the
// caller nor Resources.RTreeFanOut supplies one.
const defaultRTreeFanout = 16

// effectiveRTreeFanOut resolves a Resources.RTreeFanOut override (normally
// config.EngineConfig.RTree.FanOut, via NewResources) down to a usable
// fan-out, per SPEC_FULL.md §6.
func effectiveRTreeFanOut(configured int) int {
	if configured < 2 {
		return defaultRTreeFanout
	}
	return configured
}

// BuildRTree constructs the R-tree over fm.mbrs (sparse only), per spec.md
// §4.3's bulk-load: leaves in tile-insertion order, bottom-up grouping. Call
// once after every SetMBR, before Store. fanout < 2 falls back to the
// fan-out resolved from Resources.RTreeFanOut at construction time.
func (fm *FragmentMetadata) BuildRTree(fanout int) error {
	if fm.dense {
		return errs.New(errs.Invalid, "fragment: build_rtree is sparse-only")
	}
	if fanout < 2 {
		fanout = fm.rtreeFanOut
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	t := rtree.New(fm.schema.Domain(), fanout)
	t.SetLeaves(fm.mbrs)
	if err := t.Build(); err != nil {
		return err
	}
	fm.rt = t
	fm.loaded.Add(uint32(secRTree))
	return nil
}

// SetTileIndexBase adds to every incoming tile index in subsequent set_*
// calls, so multiple writer invocations append contiguously, per spec.md
// §4.4.1 step 3.
func (fm *FragmentMetadata) SetTileIndexBase(base uint64) { fm.tileIndexBase = base }

// SetMBR records tile t's MBR (sparse only) and expands nonEmptyDomain to
// also cover it, under the coarse lock per spec.md §5.
func (fm *FragmentMetadata) SetMBR(t uint64, mbr domain.NDRange) error {
	if fm.dense {
		return errs.New(errs.Invalid, "fragment: set_mbr is sparse-only")
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if int(t) >= len(fm.mbrs) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range", t)
	}
	fm.mbrs[t] = mbr.Clone()
	if len(fm.nonEmptyDomain) == 0 {
		fm.nonEmptyDomain = mbr.Clone()
	} else {
		dims := fm.schema.Dimensions()
		for i, dim := range dims {
			fm.nonEmptyDomain[i] = dim.ExpandRange(mbr[i], fm.nonEmptyDomain[i])
		}
	}
	return nil
}

// SetTileOffset records the persisted byte offset of tile t of column name,
// taking that column's per-column lock per spec.md §5.
func (fm *FragmentMetadata) SetTileOffset(name string, t uint64, offset uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.colMu[idx].Lock()
	defer fm.colMu[idx].Unlock()
	if int(t) >= len(fm.tileOffsets[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileOffsets[idx][t] = offset
	return nil
}

func (fm *FragmentMetadata) SetTileVarOffset(name string, t uint64, offset uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.colMu[idx].Lock()
	defer fm.colMu[idx].Unlock()
	if int(t) >= len(fm.tileVarOffsets[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileVarOffsets[idx][t] = offset
	return nil
}

func (fm *FragmentMetadata) SetTileVarSize(name string, t uint64, size uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.colMu[idx].Lock()
	defer fm.colMu[idx].Unlock()
	if int(t) >= len(fm.tileVarSizes[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileVarSizes[idx][t] = size
	return nil
}

// SetFileSize records column name's total persisted fixed-payload file
// length (file_sizes[i] in spec.md §3), reported by the writer once the
// column's data file has been fully written. Used by readers as the
// terminal bound of persisted_tile_size's forward-difference.
func (fm *FragmentMetadata) SetFileSize(name string, size uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.fileSizes[idx] = size
	return nil
}

// SetFileVarSize records column name's total persisted variable-length
// payload file length (file_var_sizes[i]).
func (fm *FragmentMetadata) SetFileVarSize(name string, size uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.fileVarSizes[idx] = size
	return nil
}

// SetFileValiditySize records column name's total persisted validity
// payload file length (file_validity_sizes[i]).
func (fm *FragmentMetadata) SetFileValiditySize(name string, size uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.fileValiditySizes[idx] = size
	return nil
}

func (fm *FragmentMetadata) SetTileValidityOffset(name string, t uint64, offset uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if int(t) >= len(fm.tileValidityOffsets[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileValidityOffsets[idx][t] = offset
	return nil
}

func (fm *FragmentMetadata) ensureFixedBuf(buf *[]byte, cellSize int, numTiles int) {
	need := cellSize * numTiles
	if len(*buf) >= need {
		return
	}
	grown := make([]byte, need)
	copy(grown, *buf)
	*buf = grown
}

// SetTileMin records tile t's minimum value for a fixed-type column,
// packed at t*cell_size inside the fixed buffer per spec.md §4.4.1 step 3.
func (fm *FragmentMetadata) SetTileMin(name string, t uint64, value []byte) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	cellSize := len(value)
	fm.ensureFixedBuf(&fm.tileMinFixed[idx], cellSize, int(t)+1)
	copy(fm.tileMinFixed[idx][int(t)*cellSize:], value)
	return nil
}

func (fm *FragmentMetadata) SetTileMax(name string, t uint64, value []byte) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	cellSize := len(value)
	fm.ensureFixedBuf(&fm.tileMaxFixed[idx], cellSize, int(t)+1)
	copy(fm.tileMaxFixed[idx][int(t)*cellSize:], value)
	return nil
}

// SetTileMinVar stores tile t's variable-length minimum value. The per-tile
// size is recorded in tileMinVarOffsets[idx][t]; call
// ConvertTileMinMaxVarSizesToOffsets(name) once all tiles are written to
// turn those sizes into absolute prefix-sum offsets, per spec.md §4.4.1.
func (fm *FragmentMetadata) SetTileMinVar(name string, t uint64, value []byte) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if int(t) >= len(fm.tileMinVarOffsets[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileMinVarOffsets[idx][t] = uint64(len(value)) // size, pre-conversion
	fm.tileMinVar[idx] = append(fm.tileMinVar[idx], value...)
	return nil
}

func (fm *FragmentMetadata) SetTileMaxVar(name string, t uint64, value []byte) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if int(t) >= len(fm.tileMaxVarOffsets[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileMaxVarOffsets[idx][t] = uint64(len(value))
	fm.tileMaxVar[idx] = append(fm.tileMaxVar[idx], value...)
	return nil
}

// ConvertTileMinMaxVarSizesToOffsets turns the per-tile sizes recorded by
// SetTileMinVar/SetTileMaxVar into absolute prefix-sum offsets, per spec.md
// §4.4.1 step 3.
func (fm *FragmentMetadata) ConvertTileMinMaxVarSizesToOffsets(name string) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	convertSizesToOffsets(fm.tileMinVarOffsets[idx])
	convertSizesToOffsets(fm.tileMaxVarOffsets[idx])
	return nil
}

func convertSizesToOffsets(sizes []uint64) {
	var running uint64
	for i, size := range sizes {
		sizes[i] = running
		running += size
	}
}

func (fm *FragmentMetadata) SetTileSum(name string, t uint64, sumBits uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if int(t) >= len(fm.tileSums[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileSums[idx][t] = sumBits
	return nil
}

func (fm *FragmentMetadata) SetTileNullCount(name string, t uint64, count uint64) error {
	idx, err := fm.columnIndex(name)
	if err != nil {
		return err
	}
	t += fm.tileIndexBase
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if int(t) >= len(fm.tileNullCounts[idx]) {
		return errs.Newf(errs.Invalid, "fragment: tile index %d out of range for %q", t, name)
	}
	fm.tileNullCounts[idx][t] = count
	return nil
}
