package rtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/domain"
)

func oneDimDomain(t *testing.T) *domain.Domain {
	t.Helper()
	x, err := dimension.New("x", dimension.Int64, 1, dimension.NewIntRange(dimension.Int64, 0, 99), nil)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{x}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	return dom
}

func rng(low, high int64) domain.NDRange {
	return domain.NDRange{dimension.NewIntRange(dimension.Int64, low, high)}
}

// TestBuildBottomUpFanout covers spec.md §4.3's bulk-load: leaves group into
// ceil(n/fanout)-sized parent levels, unioned per-dimension, up to a single
// root.
func TestBuildBottomUpFanout(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 2)
	leaves := []domain.NDRange{rng(0, 1), rng(2, 3), rng(4, 5), rng(6, 7), rng(8, 9)}
	tr.SetLeaves(leaves)
	require.NoError(t, tr.Build())

	require.Equal(t, 5, tr.NumLeaves())
	root := tr.Root()
	require.Equal(t, int64(0), dimension.DecodeInt64(dimension.Int64, root[0].Low()))
	require.Equal(t, int64(9), dimension.DecodeInt64(dimension.Int64, root[0].High()))
}

func TestRootEmptyWhenNoLeaves(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 4)
	require.NoError(t, tr.Build())
	require.Nil(t, tr.Root())
}

// TestGetTileOverlapWholeRangeVsPartial exercises the dense-adjacent leaf
// layout from spec.md §8 Scenario B: a query that wholly covers some leaves
// and partially overlaps none, at an exact tile boundary, must report a
// TileRange and no PartialTile.
func TestGetTileOverlapWholeRangeVsPartial(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	leaves := []domain.NDRange{rng(0, 9), rng(10, 19), rng(20, 29)}
	tr.SetLeaves(leaves)
	require.NoError(t, tr.Build())

	overlap := tr.GetTileOverlap(rng(0, 19), []bool{false})
	require.Equal(t, []TileRange{{Start: 0, End: 1}}, overlap.TileRanges)
	require.Empty(t, overlap.Tiles)

	// A query covering leaf 1 wholly (per the tree's own Covered rule, see
	// DESIGN.md's Open Question 3) reports it as a TileRange, not a
	// PartialTile with ratio 1.0.
	mixed := tr.GetTileOverlap(rng(5, 24), []bool{false})
	require.Equal(t, []TileRange{{Start: 1, End: 1}}, mixed.TileRanges)
	require.Len(t, mixed.Tiles, 2)
	require.Equal(t, uint64(0), mixed.Tiles[0].TileID)
	require.InDelta(t, 0.5, mixed.Tiles[0].OverlapRatio, 1e-9)
	require.Equal(t, uint64(2), mixed.Tiles[1].TileID)
	require.InDelta(t, 0.5, mixed.Tiles[1].OverlapRatio, 1e-9)

	// Queries touching only part of leaf 0, or only part of leaf 2, are the
	// partial-only case: no leaf is wholly covered, so TileRanges stays
	// empty and that one leaf reports a fractional ratio.
	partial := tr.GetTileOverlap(rng(5, 8), []bool{false})
	require.Empty(t, partial.TileRanges)
	require.Len(t, partial.Tiles, 1)
	require.Equal(t, uint64(0), partial.Tiles[0].TileID)
	require.InDelta(t, 0.4, partial.Tiles[0].OverlapRatio, 1e-9)

	partialHigh := tr.GetTileOverlap(rng(21, 24), []bool{false})
	require.Empty(t, partialHigh.TileRanges)
	require.Len(t, partialHigh.Tiles, 1)
	require.Equal(t, uint64(2), partialHigh.Tiles[0].TileID)
	require.InDelta(t, 0.4, partialHigh.Tiles[0].OverlapRatio, 1e-9)
}

// TestGetTileOverlapAllDefaultIsWholeTree covers the every-dimension-default
// shortcut: the entire leaf set reports as a single covered range regardless
// of the subarray passed in.
func TestGetTileOverlapAllDefaultIsWholeTree(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	tr.SetLeaves([]domain.NDRange{rng(0, 9), rng(10, 19)})
	require.NoError(t, tr.Build())

	overlap := tr.GetTileOverlap(rng(0, 0), []bool{true})
	require.Equal(t, []TileRange{{Start: 0, End: 1}}, overlap.TileRanges)
	require.Empty(t, overlap.Tiles)
}

func TestGetTileOverlapNoOverlapIsEmpty(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	tr.SetLeaves([]domain.NDRange{rng(0, 9), rng(10, 19)})
	require.NoError(t, tr.Build())

	overlap := tr.GetTileOverlap(rng(50, 60), []bool{false})
	require.Empty(t, overlap.TileRanges)
	require.Empty(t, overlap.Tiles)
}

// TestOverlapRatioSelfIsOne and TestCoveredSelfIsTrue cover spec.md §8's
// testable properties 6 and 10: overlap_ratio(r, r) == 1.0 and covered(r, r)
// is true for any non-empty range r.
func TestOverlapRatioSelfIsOne(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	tr.SetLeaves([]domain.NDRange{rng(3, 12)})
	require.NoError(t, tr.Build())

	require.Equal(t, 1.0, tr.overlapRatio(rng(3, 12), rng(3, 12), []bool{false}))
}

func TestCoveredSelfIsTrue(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	require.True(t, tr.covered(rng(3, 12), rng(3, 12), []bool{false}))
}

func TestOverlapsIsSymmetric(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	a, b := rng(0, 9), rng(5, 14)
	require.Equal(t, tr.overlaps(a, b, []bool{false}), tr.overlaps(b, a, []bool{false}))
	require.True(t, tr.overlaps(a, b, []bool{false}))

	c := rng(20, 29)
	require.Equal(t, tr.overlaps(a, c, []bool{false}), tr.overlaps(c, a, []bool{false}))
	require.False(t, tr.overlaps(a, c, []bool{false}))
}

func TestComputeTileBitmap(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	tr.SetLeaves([]domain.NDRange{rng(0, 9), rng(10, 19), rng(20, 29)})
	require.NoError(t, tr.Build())

	bitmap := make([]bool, 3)
	tr.ComputeTileBitmap(rng(15, 25), 0, bitmap)
	require.Equal(t, []bool{false, true, true}, bitmap)
}

func TestFreeMemoryDropsLevelsKeepsLeaves(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 2)
	tr.SetLeaves([]domain.NDRange{rng(0, 1), rng(2, 3), rng(4, 5)})
	require.NoError(t, tr.Build())
	require.NotNil(t, tr.Root())

	freed := tr.FreeMemory()
	require.Greater(t, freed, int64(0))
	require.Nil(t, tr.Root())
	require.Equal(t, 3, tr.NumLeaves())
}

// TestGetTileOverlapFallsBackWithoutBuild covers the degenerate
// single-leaf/no-levels path in GetTileOverlap that scans leaves directly.
func TestGetTileOverlapFallsBackWithoutBuild(t *testing.T) {
	dom := oneDimDomain(t)
	tr := New(dom, 16)
	tr.SetLeaves([]domain.NDRange{rng(0, 9)})

	overlap := tr.GetTileOverlap(rng(0, 9), []bool{false})
	require.Equal(t, []TileRange{{Start: 0, End: 0}}, overlap.TileRanges)
	require.Empty(t, overlap.Tiles)
}
