package fragment

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"

	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/filter"
	"soltix.dev/fragstore/internal/logging"
	"soltix.dev/fragstore/internal/memory"
	"soltix.dev/fragstore/internal/rtree"
	"soltix.dev/fragstore/internal/schema"
	"soltix.dev/fragstore/internal/vfs"
)

// MinStoreVersion is the oldest format version store() is willing to write;
// versions below it are rejected fatally per spec.md §4.4.1 ("Refusal:
// stores with version < 7 raise fatal InvalidState").
const MinStoreVersion = 7

// sectionID enumerates the lazily-loaded footer sections, used as the key
// space of loaded_metadata (a roaring.Bitmap rather than a hand-rolled
// []bool, per SPEC_FULL.md §7).
type sectionID uint32

const (
	secRTree sectionID = iota
	secFragmentMinMaxSumNullCount
	secProcessedConditions
	secTileOffsetsBase // +idx per column
)

func secTileOffsets(idx int) sectionID       { return sectionID(int(secTileOffsetsBase) + idx*6 + 0) }
func secTileVarOffsets(idx int) sectionID    { return sectionID(int(secTileOffsetsBase) + idx*6 + 1) }
func secTileVarSizes(idx int) sectionID      { return sectionID(int(secTileOffsetsBase) + idx*6 + 2) }
func secTileValidityOffsets(idx int) sectionID { return sectionID(int(secTileOffsetsBase) + idx*6 + 3) }
func secTileMinMax(idx int) sectionID        { return sectionID(int(secTileOffsetsBase) + idx*6 + 4) }
func secTileSumNullCount(idx int) sectionID  { return sectionID(int(secTileOffsetsBase) + idx*6 + 5) }

// gtOffsets records where each section's GenericTile begins within the
// metadata file, in the version-specific footer layout of spec.md §6.
type gtOffsets struct {
	rtree                    uint64
	tileOffsets              []uint64
	tileVarOffsets           []uint64
	tileVarSizes             []uint64
	tileValidityOffsets      []uint64
	tileMin                  []uint64
	tileMax                  []uint64
	tileSum                  []uint64
	tileNullCount            []uint64
	fragmentMinMaxSumNullCnt uint64
	processedConditions      uint64
}

// FragmentMetadata is the per-fragment footer plus the lazily-loaded
// per-column statistics sections it indexes, per spec.md §4.4.
type FragmentMetadata struct {
	log     *logging.Logger
	fs      vfs.FS
	tracker memory.Tracker
	filters *filter.Registry

	schema schema.Schema
	uri    string

	version       uint32
	dense         bool
	hasTimestamps bool
	hasDeleteMeta bool

	timestampRange [2]uint64

	idx *idxMap

	mu sync.Mutex // coarse lock: non_empty_domain, rtree, footer-level fields
	colMu []sync.Mutex // per-column: tile_offsets, tile_var_offsets

	nonEmptyDomain domain.NDRange
	domain_        domain.NDRange // dense only: cropped+expanded non-empty domain

	tileIndexBase uint64

	sparseTileNum   uint64
	lastTileCellNum uint64
	capacity        uint64

	fileSizes         []uint64
	fileVarSizes      []uint64
	fileValiditySizes []uint64

	tileOffsets         [][]uint64
	tileVarOffsets      [][]uint64
	tileVarSizes        [][]uint64
	tileValidityOffsets [][]uint64

	// Fixed min/max are packed at t*cell_size inside the fixed buffer; var
	// min/max store per-tile offsets in the "buffer" slot (u64 per tile) plus
	// the matching concatenated var payload, per spec.md §4.4.1.
	tileMinFixed [][]byte
	tileMinVar   [][]byte
	tileMinVarOffsets [][]uint64
	tileMaxFixed [][]byte
	tileMaxVar   [][]byte
	tileMaxVarOffsets [][]uint64

	tileSums       [][]uint64 // bit pattern, 8 bytes/tile: int64, uint64, or float64 depending on column kind
	tileNullCounts [][]uint64

	fragmentMins       [][]byte
	fragmentMaxs       [][]byte
	fragmentSums       []uint64
	fragmentNullCounts []uint64

	mbrs        []domain.NDRange // sparse only, leaf (tile) order
	rt          *rtree.RTree
	rtreeFanOut int // resolved from Resources.RTreeFanOut / config.EngineConfig.RTree.FanOut

	processedConditions [][]byte

	loaded *roaring.Bitmap

	gt gtOffsets

	metadataURI string
}

// Resources bundles the collaborators a FragmentMetadata needs: storage,
// memory accounting, and the filter-pipeline registry it uses to wrap/unwrap
// generic tiles.
type Resources struct {
	FS      vfs.FS
	Tracker memory.Tracker
	Filters *filter.Registry
	Log     *logging.Logger
	// RTreeFanOut overrides the R-tree's bulk-load fan-out (spec.md §4.3).
	// <2 means "use the engine default", normally supplied by
	// config.EngineConfig.RTree.FanOut (see fragment.NewResources).
	RTreeFanOut int
}

// New constructs a FragmentMetadata for a fresh write, per spec.md §4.4.1
// step 1. uri is the fragment directory URI; if empty a uuid-based one is
// generated, grounded on the teacher's fragment-uri allocation pattern.
func New(res Resources, s schema.Schema, uri string, timestampRange [2]uint64, dense, hasTimestamps, hasDeleteMeta bool) *FragmentMetadata {
	if uri == "" {
		uri = "__fragments/" + uuid.NewString()
	}
	fm := &FragmentMetadata{
		log:            res.Log,
		fs:             res.FS,
		tracker:        res.Tracker,
		filters:        res.Filters,
		schema:         s,
		uri:            uri,
		version:        s.WriteVersion(),
		dense:          dense,
		hasTimestamps:  hasTimestamps,
		hasDeleteMeta:  hasDeleteMeta,
		timestampRange: timestampRange,
		idx:            buildIdxMap(s, hasTimestamps, hasDeleteMeta),
		loaded:         roaring.New(),
		rtreeFanOut:    effectiveRTreeFanOut(res.RTreeFanOut),
	}
	fm.colMu = make([]sync.Mutex, fm.idx.numCols())
	fm.metadataURI = vfs.Join(uri, metadataFileName)
	return fm
}

func (fm *FragmentMetadata) URI() string      { return fm.uri }
func (fm *FragmentMetadata) Version() uint32  { return fm.version }
func (fm *FragmentMetadata) Dense() bool      { return fm.dense }
func (fm *FragmentMetadata) Schema() schema.Schema { return fm.schema }
func (fm *FragmentMetadata) TimestampRange() [2]uint64 { return fm.timestampRange }
func (fm *FragmentMetadata) NonEmptyDomain() domain.NDRange { return fm.nonEmptyDomain }

// Init sizes every per-column vector to num_dims_and_attrs and, for dense
// fragments, crops and expands nonEmptyDomain to form domain_, per spec.md
// §4.4.1 step 2.
func (fm *FragmentMetadata) Init(nonEmptyDomain domain.NDRange) error {
	n := fm.idx.numCols()

	fm.nonEmptyDomain = nonEmptyDomain.Clone()
	if fm.dense {
		dom := fm.schema.Domain()
		cropped := dom.CropNDRange(nonEmptyDomain)
		fm.domain_ = dom.ExpandToTiles(cropped)
	}

	fm.fileSizes = make([]uint64, n)
	fm.fileVarSizes = make([]uint64, n)
	fm.fileValiditySizes = make([]uint64, n)
	fm.tileOffsets = make([][]uint64, n)
	fm.tileVarOffsets = make([][]uint64, n)
	fm.tileVarSizes = make([][]uint64, n)
	fm.tileValidityOffsets = make([][]uint64, n)
	fm.tileMinFixed = make([][]byte, n)
	fm.tileMinVar = make([][]byte, n)
	fm.tileMinVarOffsets = make([][]uint64, n)
	fm.tileMaxFixed = make([][]byte, n)
	fm.tileMaxVar = make([][]byte, n)
	fm.tileMaxVarOffsets = make([][]uint64, n)
	fm.tileSums = make([][]uint64, n)
	fm.tileNullCounts = make([][]uint64, n)
	fm.fragmentMins = make([][]byte, n)
	fm.fragmentMaxs = make([][]byte, n)
	fm.fragmentSums = make([]uint64, n)
	fm.fragmentNullCounts = make([]uint64, n)

	if fm.dense {
		dom := fm.schema.Domain()
		fm.capacity = dom.CellNumPerTile()
	}
	return nil
}

// SetNumTiles resizes every per-column vector to tileNum entries, per
// testable property 3 ("every per-column vector has length tile_num after
// set_num_tiles").
func (fm *FragmentMetadata) SetNumTiles(tileNum uint64) {
	n := fm.idx.numCols()
	t := int(tileNum)
	for i := 0; i < n; i++ {
		fm.tileOffsets[i] = growU64(fm.tileOffsets[i], t)
		fm.tileVarOffsets[i] = growU64(fm.tileVarOffsets[i], t)
		fm.tileVarSizes[i] = growU64(fm.tileVarSizes[i], t)
		fm.tileValidityOffsets[i] = growU64(fm.tileValidityOffsets[i], t)
		fm.tileMinVarOffsets[i] = growU64(fm.tileMinVarOffsets[i], t)
		fm.tileMaxVarOffsets[i] = growU64(fm.tileMaxVarOffsets[i], t)
		fm.tileSums[i] = growU64(fm.tileSums[i], t)
		fm.tileNullCounts[i] = growU64(fm.tileNullCounts[i], t)
	}
	if !fm.dense {
		fm.mbrs = make([]domain.NDRange, t)
	}
}

func growU64(s []uint64, n int) []uint64 {
	if len(s) >= n {
		return s[:n]
	}
	out := make([]uint64, n)
	copy(out, s)
	return out
}

// columnIndex resolves a column name to its idx_map slot, returning Invalid
// if the caller already should have validated it (spec §7: "idx_map lookup
// of a name the caller already validated" panics only on a genuine internal
// invariant break; an unknown name from an external caller is a regular
// Invalid error).
func (fm *FragmentMetadata) columnIndex(name string) (int, error) {
	i, ok := fm.idx.indexOf(name)
	if !ok {
		return 0, errs.Newf(errs.Invalid, "fragment: unknown column %q", name)
	}
	return i, nil
}

func (fm *FragmentMetadata) isFixedColumn(idx int) bool {
	if idx == fm.idx.coordsIdx {
		return true
	}
	if idx >= fm.idx.numAttrs+1 && idx < fm.idx.numAttrs+1+fm.idx.numDims {
		dims := fm.schema.Dimensions()
		return !dims[idx-fm.idx.numAttrs-1].IsVarLength()
	}
	if idx < fm.idx.numAttrs {
		return !fm.schema.Attributes()[idx].IsVarLength()
	}
	return true // timestamps / delete pseudo-columns are always fixed uint64
}
