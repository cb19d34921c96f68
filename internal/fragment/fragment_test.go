package fragment

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"soltix.dev/fragstore/internal/config"
	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/filter"
	"soltix.dev/fragstore/internal/logging"
	"soltix.dev/fragstore/internal/memory"
	"soltix.dev/fragstore/internal/rtree"
	"soltix.dev/fragstore/internal/schema"
	"soltix.dev/fragstore/internal/vfs"
)

func testResources() Resources {
	return Resources{
		FS:      vfs.NewLocal(),
		Tracker: memory.Unbounded(),
		Filters: filter.Default(),
		Log:     logging.Nop(),
	}
}

// denseInt32Schema builds the Scenario A schema from spec.md §8: dim
// d:int32 domain=[0,9] extent=2, attribute a:int32.
func denseInt32Schema(t *testing.T, version uint32) schema.Schema {
	t.Helper()
	ext := dimension.NewIntRange(dimension.Int32, 2, 2)
	d, err := dimension.New("d", dimension.Int32, 1, dimension.NewIntRange(dimension.Int32, 0, 9), &ext)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{d}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("a", dimension.Int32, 1, false)}
	return schema.New("s", dom, attrs, version, true)
}

func mkFragDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "frag0")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func buildDenseInt32Fragment(t *testing.T, version uint32) (*FragmentMetadata, string) {
	t.Helper()
	s := denseInt32Schema(t, version)
	uri := mkFragDir(t)
	res := testResources()
	fm := New(res, s, uri, [2]uint64{0, 0}, true, false, false)

	nonEmpty := domain.NDRange{dimension.NewIntRange(dimension.Int32, 0, 9)}
	require.NoError(t, fm.Init(nonEmpty))
	fm.SetNumTiles(5)

	mins := []int32{0, 2, 4, 6, 8}
	maxs := []int32{1, 3, 5, 7, 9}
	sums := []int64{1, 5, 9, 13, 17}
	for t64 := uint64(0); t64 < 5; t64++ {
		off := t64 * 8
		require.NoError(t, fm.SetTileOffset("a", t64, off))
		require.NoError(t, fm.SetTileMin("a", t64, dimension.EncodeInt64(dimension.Int32, int64(mins[t64]))))
		require.NoError(t, fm.SetTileMax("a", t64, dimension.EncodeInt64(dimension.Int32, int64(maxs[t64]))))
		require.NoError(t, fm.SetTileSum("a", t64, uint64(sums[t64])))
		require.NoError(t, fm.SetTileNullCount("a", t64, 0))
	}
	require.NoError(t, fm.SetFileSize("a", 40))
	require.NoError(t, fm.ComputeFragmentMinMaxSumNullCount())
	return fm, uri
}

func TestDenseScenarioAWriteSideShape(t *testing.T) {
	fm, _ := buildDenseInt32Fragment(t, 16)

	require.Equal(t, uint64(5), fm.TileNum())
	require.Equal(t, uint64(2), fm.CellNumPerTile())
	require.Equal(t, uint64(10), fm.CellNum())

	for i, want := range []uint64{0, 8, 16, 24, 32} {
		require.Equal(t, want, fm.tileOffsets[fm.idx.byName["a"]][i])
	}
}

func TestDenseScenarioARoundTrip(t *testing.T) {
	ctx := context.Background()
	fm, uri := buildDenseInt32Fragment(t, 16)
	require.NoError(t, fm.Store(ctx))

	s := denseInt32Schema(t, 16)
	loaded, err := Load(ctx, testResources(), uri, LoadOptions{DefaultSchema: s, Schemas: map[string]schema.Schema{s.Name(): s}})
	require.NoError(t, err)

	require.Equal(t, uint32(16), loaded.Version())
	require.True(t, loaded.Dense())
	require.Equal(t, uint64(5), loaded.TileNum())
	require.Equal(t, uint64(10), loaded.CellNum())

	for i, want := range []uint64{0, 8, 16, 24, 32} {
		got, err := loaded.PersistedTileSize("a", uint64(i))
		require.NoError(t, err)
		if i < 4 {
			require.Equal(t, uint64(8), got)
		}
		_ = want
	}

	for i, want := range []int64{0, 2, 4, 6, 8} {
		b, err := loaded.GetTileMinAs("a", uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, dimension.DecodeInt64(dimension.Int32, b))
	}
	for i, want := range []int64{1, 3, 5, 7, 9} {
		b, err := loaded.GetTileMaxAs("a", uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, dimension.DecodeInt64(dimension.Int32, b))
	}
	for i, want := range []uint64{1, 5, 9, 13, 17} {
		got, err := loaded.GetTileSum("a", uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDenseScenarioADenseTileOverlap(t *testing.T) {
	s := denseInt32Schema(t, 16)
	dom := s.Domain()

	nd := domain.NDRange{dimension.NewIntRange(dimension.Int32, 3, 6)}
	expanded := dom.ExpandToTiles(dom.CropNDRange(nd))
	ids := enumerateDenseTileIDs(dom, expanded)
	require.Equal(t, []uint64{1, 2, 3}, ids)
}

// TestVersionedRoundTrip covers spec.md §8 Scenario E: store then load a
// fresh instance at every supported footer-shape version and assert the
// publicly observable surface matches.
func TestVersionedRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, v := range []uint32{7, 8, 10, 11, 14, 15, 16} {
		v := v
		t.Run("", func(t *testing.T) {
			fm, uri := buildDenseInt32Fragment(t, v)
			require.NoError(t, fm.Store(ctx))

			s := denseInt32Schema(t, v)
			loaded, err := Load(ctx, testResources(), uri, LoadOptions{DefaultSchema: s, Schemas: map[string]schema.Schema{s.Name(): s}})
			require.NoError(t, err)

			require.Equal(t, fm.Version(), loaded.Version())
			require.Equal(t, fm.Dense(), loaded.Dense())
			require.Equal(t, fm.TileNum(), loaded.TileNum())
			require.Equal(t, fm.CellNum(), loaded.CellNum())

			for i := uint64(0); i < 5; i++ {
				got, err := loaded.PersistedTileSize("a", i)
				require.NoError(t, err)
				want, err := fm.PersistedTileSize("a", i)
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
			if v >= 11 {
				for i := uint64(0); i < 5; i++ {
					want, err := fm.GetTileSum("a", i)
					require.NoError(t, err)
					got, err := loaded.GetTileSum("a", i)
					require.NoError(t, err)
					require.Equal(t, want, got)
				}
			}
		})
	}
}

// TestProcessedConditionsVersionGate locks in the processed_conditions
// version gate at 16 (the footer byte layout's `(v>=16) processed_conditions_gt`,
// not the narrative "v15+" phrasing): a v15 fragment writes no
// processed_conditions generic tile at all, and a v16 fragment does.
func TestProcessedConditionsVersionGate(t *testing.T) {
	ctx := context.Background()

	fm15, _ := buildDenseInt32Fragment(t, 15)
	require.NoError(t, fm15.Store(ctx))
	require.Zero(t, fm15.gt.processedConditions)

	fm16, uri16 := buildDenseInt32Fragment(t, 16)
	require.NoError(t, fm16.Store(ctx))
	require.NotZero(t, fm16.gt.processedConditions)

	s16 := denseInt32Schema(t, 16)
	loaded, err := Load(ctx, testResources(), uri16, LoadOptions{DefaultSchema: s16, Schemas: map[string]schema.Schema{s16.Name(): s16}})
	require.NoError(t, err)
	require.Equal(t, fm16.gt.processedConditions, loaded.gt.processedConditions)
}

// TestStoreRejectsOldVersion covers spec.md §4.4.1's refusal: "stores with
// version < 7 raise fatal InvalidState" (modeled as Unsupported here).
func TestStoreRejectsOldVersion(t *testing.T) {
	fm, _ := buildDenseInt32Fragment(t, 6)
	err := fm.Store(context.Background())
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Unsupported, kind)
}

func TestSparseTwoTileFragmentScenarioB(t *testing.T) {
	x, err := dimension.New("x", dimension.Int64, 1, dimension.NewIntRange(dimension.Int64, 0, 99), nil)
	require.NoError(t, err)
	y, err := dimension.New("y", dimension.Int64, 1, dimension.NewIntRange(dimension.Int64, 0, 99), nil)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{x, y}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("v", dimension.Int32, 1, false)}
	s := schema.New("sparse", dom, attrs, 16, false)

	uri := mkFragDir(t)
	res := testResources()
	fm := New(res, s, uri, [2]uint64{0, 0}, false, false, false)
	require.NoError(t, fm.Init(domain.NDRange{}))
	fm.SetCapacity(2)
	fm.SetNumTiles(2)

	mbr0 := domain.NDRange{
		dimension.NewIntRange(dimension.Int64, 1, 2),
		dimension.NewIntRange(dimension.Int64, 1, 2),
	}
	mbr1 := domain.NDRange{
		dimension.NewIntRange(dimension.Int64, 10, 11),
		dimension.NewIntRange(dimension.Int64, 10, 11),
	}
	require.NoError(t, fm.SetMBR(0, mbr0))
	require.NoError(t, fm.SetMBR(1, mbr1))
	fm.sparseTileNum = 2
	fm.lastTileCellNum = 2
	require.NoError(t, fm.BuildRTree(16))

	require.Equal(t, uint64(2), fm.sparseTileNum)
	root := fm.rt.Root()
	require.Equal(t, int64(1), dimension.DecodeInt64(dimension.Int64, root[0].Low()))
	require.Equal(t, int64(11), dimension.DecodeInt64(dimension.Int64, root[0].High()))

	subarray := domain.NDRange{
		dimension.NewIntRange(dimension.Int64, 0, 5),
		dimension.NewIntRange(dimension.Int64, 0, 5),
	}
	// Leaf 0's MBR [(1,2),(1,2)] is wholly contained in subarray, so per
	// spec.md §4.3's leaf rule ("if leaf is covered, push leaf id into
	// tile_ranges") it reports as a whole covered range rather than a
	// partial tile.
	overlap := fm.rt.GetTileOverlap(subarray, []bool{false, false})
	require.Equal(t, []rtree.TileRange{{Start: 0, End: 0}}, overlap.TileRanges)
	require.Empty(t, overlap.Tiles)
}

// TestRTreeLoadDeniedThenSucceedsOnEnlargedBudget covers spec.md §8 Scenario
// F: a memory-tracker reservation too small for the R-tree denies the load
// with OutOfMemory, leaves loaded_metadata.rtree false (AddMaxBufferSizes
// keeps failing the same way on retry), and succeeds once the budget is
// enlarged.
func TestRTreeLoadDeniedThenSucceedsOnEnlargedBudget(t *testing.T) {
	ctx := context.Background()

	x, err := dimension.New("x", dimension.Int64, 1, dimension.NewIntRange(dimension.Int64, 0, 99), nil)
	require.NoError(t, err)
	y, err := dimension.New("y", dimension.Int64, 1, dimension.NewIntRange(dimension.Int64, 0, 99), nil)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{x, y}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("v", dimension.Int32, 1, false)}
	s := schema.New("sparse", dom, attrs, 16, false)

	uri := mkFragDir(t)
	writeRes := testResources()
	fm := New(writeRes, s, uri, [2]uint64{0, 0}, false, false, false)
	require.NoError(t, fm.Init(domain.NDRange{}))
	fm.SetCapacity(2)
	fm.SetNumTiles(2)
	require.NoError(t, fm.SetMBR(0, domain.NDRange{
		dimension.NewIntRange(dimension.Int64, 1, 2),
		dimension.NewIntRange(dimension.Int64, 1, 2),
	}))
	require.NoError(t, fm.SetMBR(1, domain.NDRange{
		dimension.NewIntRange(dimension.Int64, 10, 11),
		dimension.NewIntRange(dimension.Int64, 10, 11),
	}))
	fm.sparseTileNum = 2
	fm.lastTileCellNum = 2
	require.NoError(t, fm.BuildRTree(16))
	require.NoError(t, fm.Store(ctx))

	tracker := memory.NewBudgetTracker(map[memory.Category]int64{memory.CategoryRTree: 8})
	tightRes := testResources()
	tightRes.Tracker = tracker

	loaded, err := Load(ctx, tightRes, uri, LoadOptions{DefaultSchema: s, Schemas: map[string]schema.Schema{s.Name(): s}})
	require.NoError(t, err)

	subarray := []dimension.Range{
		dimension.NewIntRange(dimension.Int64, 0, 5),
		dimension.NewIntRange(dimension.Int64, 0, 5),
	}
	err = loaded.AddMaxBufferSizes(subarray, []string{"v"}, BufferSizes{})
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.OutOfMemory, kind)

	// Denied reservation charges nothing; retrying under the same tight
	// budget fails the same way.
	require.Equal(t, int64(0), tracker.Used(memory.CategoryRTree))
	err = loaded.AddMaxBufferSizes(subarray, []string{"v"}, BufferSizes{})
	require.Error(t, err)

	tracker.SetBudget(memory.CategoryRTree, 1<<20)
	out := BufferSizes{}
	require.NoError(t, loaded.AddMaxBufferSizes(subarray, []string{"v"}, out))
	require.Greater(t, out["v"], uint64(0))
}

// TestVarLengthAttributeMinMaxScenarioC covers spec.md §8 Scenario C: a
// single-tile dense fragment with a variable-length STRING_ASCII attribute
// whose tile-level min/max ("alice"/"dan") roll straight up to the
// fragment-level min/max, round-tripped through Store/Load.
func TestVarLengthAttributeMinMaxScenarioC(t *testing.T) {
	ctx := context.Background()
	ext := dimension.NewIntRange(dimension.Int32, 4, 4)
	d, err := dimension.New("d", dimension.Int32, 1, dimension.NewIntRange(dimension.Int32, 0, 3), &ext)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{d}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("s", dimension.StringAscii, 0, false)}
	s := schema.New("sc", dom, attrs, 16, true)

	uri := mkFragDir(t)
	res := testResources()
	fm := New(res, s, uri, [2]uint64{0, 0}, true, false, false)
	nonEmpty := domain.NDRange{dimension.NewIntRange(dimension.Int32, 0, 3)}
	require.NoError(t, fm.Init(nonEmpty))
	fm.SetNumTiles(1)

	require.NoError(t, fm.SetTileMinVar("s", 0, []byte("alice")))
	require.NoError(t, fm.SetTileMaxVar("s", 0, []byte("dan")))
	require.NoError(t, fm.ConvertTileMinMaxVarSizesToOffsets("s"))
	require.NoError(t, fm.SetTileNullCount("s", 0, 0))
	require.NoError(t, fm.ComputeFragmentMinMaxSumNullCount())
	require.NoError(t, fm.Store(ctx))

	loaded, err := Load(ctx, testResources(), uri, LoadOptions{DefaultSchema: s, Schemas: map[string]schema.Schema{s.Name(): s}})
	require.NoError(t, err)

	tileMin, err := loaded.GetTileMinAs("s", 0)
	require.NoError(t, err)
	require.Equal(t, "alice", string(tileMin))
	tileMax, err := loaded.GetTileMaxAs("s", 0)
	require.NoError(t, err)
	require.Equal(t, "dan", string(tileMax))

	fragMin, err := loaded.GetFragmentMinAs("s")
	require.NoError(t, err)
	require.Equal(t, "alice", string(fragMin))
	fragMax, err := loaded.GetFragmentMaxAs("s")
	require.NoError(t, err)
	require.Equal(t, "dan", string(fragMax))
}

// TestFragmentSumSaturatesScenarioD covers spec.md §8 Scenario D: two sparse
// tiles summing to i64::MAX-3 and 10 must saturate the fragment-level sum at
// i64::MAX rather than wrap negative.
func TestFragmentSumSaturatesScenarioD(t *testing.T) {
	ctx := context.Background()
	x, err := dimension.New("x", dimension.Int64, 1, dimension.NewIntRange(dimension.Int64, 0, 99), nil)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{x}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("v", dimension.Int64, 1, false)}
	s := schema.New("sd", dom, attrs, 16, false)

	uri := mkFragDir(t)
	res := testResources()
	fm := New(res, s, uri, [2]uint64{0, 0}, false, false, false)
	require.NoError(t, fm.Init(domain.NDRange{}))
	fm.SetCapacity(5)
	fm.SetNumTiles(2)
	fm.sparseTileNum = 2
	fm.lastTileCellNum = 5

	const almostMax = int64(math.MaxInt64 - 3)
	require.NoError(t, fm.SetTileMin("v", 0, dimension.EncodeInt64(dimension.Int64, 0)))
	require.NoError(t, fm.SetTileMax("v", 0, dimension.EncodeInt64(dimension.Int64, almostMax)))
	require.NoError(t, fm.SetTileSum("v", 0, uint64(almostMax)))
	require.NoError(t, fm.SetTileNullCount("v", 0, 0))

	require.NoError(t, fm.SetTileMin("v", 1, dimension.EncodeInt64(dimension.Int64, 0)))
	require.NoError(t, fm.SetTileMax("v", 1, dimension.EncodeInt64(dimension.Int64, 10)))
	require.NoError(t, fm.SetTileSum("v", 1, uint64(10)))
	require.NoError(t, fm.SetTileNullCount("v", 1, 0))

	require.NoError(t, fm.ComputeFragmentMinMaxSumNullCount())
	require.NoError(t, fm.Store(ctx))

	loaded, err := Load(ctx, testResources(), uri, LoadOptions{DefaultSchema: s, Schemas: map[string]schema.Schema{s.Name(): s}})
	require.NoError(t, err)

	sum, err := loaded.GetFragmentSum("v")
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxInt64), sum)
}

// TestVarLengthMinEmptySliceNotError covers spec.md §8 testable property 13:
// a variable-length tile minimum that is itself the empty string round-trips
// as a zero-length slice, not an error.
func TestVarLengthMinEmptySliceNotError(t *testing.T) {
	ctx := context.Background()
	ext := dimension.NewIntRange(dimension.Int32, 4, 4)
	d, err := dimension.New("d", dimension.Int32, 1, dimension.NewIntRange(dimension.Int32, 0, 7), &ext)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{d}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("s", dimension.StringAscii, 0, false)}
	s := schema.New("sc", dom, attrs, 16, true)

	uri := mkFragDir(t)
	res := testResources()
	fm := New(res, s, uri, [2]uint64{0, 0}, true, false, false)
	nonEmpty := domain.NDRange{dimension.NewIntRange(dimension.Int32, 0, 7)}
	require.NoError(t, fm.Init(nonEmpty))
	fm.SetNumTiles(2)

	require.NoError(t, fm.SetTileMinVar("s", 0, []byte("")))
	require.NoError(t, fm.SetTileMaxVar("s", 0, []byte("zed")))
	require.NoError(t, fm.SetTileMinVar("s", 1, []byte("mid")))
	require.NoError(t, fm.SetTileMaxVar("s", 1, []byte("zed")))
	require.NoError(t, fm.ConvertTileMinMaxVarSizesToOffsets("s"))
	require.NoError(t, fm.SetTileNullCount("s", 0, 0))
	require.NoError(t, fm.SetTileNullCount("s", 1, 0))
	require.NoError(t, fm.Store(ctx))

	loaded, err := Load(ctx, testResources(), uri, LoadOptions{DefaultSchema: s, Schemas: map[string]schema.Schema{s.Name(): s}})
	require.NoError(t, err)

	tileMin, err := loaded.GetTileMinAs("s", 0)
	require.NoError(t, err)
	require.Len(t, tileMin, 0)

	tileMin1, err := loaded.GetTileMinAs("s", 1)
	require.NoError(t, err)
	require.Equal(t, "mid", string(tileMin1))
}

// TestNewResourcesWiresConfiguredRTreeFanOut covers SPEC_FULL.md §6's "fan-out
// is read from config.EngineConfig.RTree.FanOut": a Resources built by
// NewResources carries the configured fan-out onto every FragmentMetadata it
// constructs, overriding the package default, and BuildRTree(0) picks it up
// without the caller passing an explicit fan-out.
func TestNewResourcesWiresConfiguredRTreeFanOut(t *testing.T) {
	cfg := config.Default()
	cfg.RTree.FanOut = 3
	res := NewResources(cfg, vfs.NewLocal(), filter.Default(), logging.Nop())
	require.Equal(t, 3, res.RTreeFanOut)

	x, err := dimension.New("x", dimension.Int64, 1, dimension.NewIntRange(dimension.Int64, 0, 99), nil)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{x}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("v", dimension.Int32, 1, false)}
	s := schema.New("sn", dom, attrs, 16, false)

	uri := mkFragDir(t)
	fm := New(res, s, uri, [2]uint64{0, 0}, false, false, false)
	require.Equal(t, 3, fm.rtreeFanOut)

	require.NoError(t, fm.Init(domain.NDRange{}))
	fm.SetCapacity(2)
	fm.SetNumTiles(4)
	fm.sparseTileNum = 4
	fm.lastTileCellNum = 2
	for i := 0; i < 4; i++ {
		require.NoError(t, fm.SetMBR(uint64(i), domain.NDRange{dimension.NewIntRange(dimension.Int64, int64(i*10), int64(i*10+1))}))
	}
	require.NoError(t, fm.BuildRTree(0))
	require.NoError(t, fm.Store(context.Background()))

	loaded, err := Load(context.Background(), res, uri, LoadOptions{DefaultSchema: s, Schemas: map[string]schema.Schema{s.Name(): s}})
	require.NoError(t, err)
	require.Equal(t, 3, loaded.rtreeFanOut)
}
