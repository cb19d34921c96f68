package rtree

import "soltix.dev/fragstore/internal/domain"

// TileRange is a contiguous, inclusive run of leaf (tile) ids that are
// wholly covered by a query, reported as one unit rather than individually.
type TileRange struct {
	Start, End uint64 // inclusive
}

// PartialTile is a leaf that only partially overlaps the query, carrying
// the fraction of the leaf's MBR that the query covers.
type PartialTile struct {
	TileID       uint64
	OverlapRatio float64
}

// TileOverlap is the result of a tile-overlap query: whole-tile-range hits
// plus partial per-tile hits, matching the dense and sparse result shapes
// from spec.md §4.1/§4.3.
type TileOverlap struct {
	TileRanges []TileRange
	Tiles      []PartialTile
}

// TileIDs flattens TileOverlap into the set of individual tile ids it
// covers (including every id inside each TileRange), for convenience in
// tests and accessor contracts that want a flat id list.
func (o TileOverlap) TileIDs() []uint64 {
	var out []uint64
	for _, r := range o.TileRanges {
		for id := r.Start; id <= r.End; id++ {
			out = append(out, id)
		}
	}
	for _, p := range o.Tiles {
		out = append(out, p.TileID)
	}
	return out
}

// GetTileOverlap descends the tree from the root per spec.md §4.3: at each
// node, if the node's MBR is fully covered by subarray, its whole leaf
// range is pushed into TileRanges; otherwise recurse into children whose
// MBR overlaps subarray. At a leaf, if it is covered push its id into
// TileRanges, else compute its overlap ratio and push into Tiles.
//
// isDefault[d] true means the query imposes no constraint on dimension d;
// such a dimension is treated as passing every node unconditionally. If
// every dimension is default, the whole tree is one covered range.
func (t *RTree) GetTileOverlap(subarray domain.NDRange, isDefault []bool) TileOverlap {
	if len(t.leaves) == 0 {
		return TileOverlap{}
	}
	if allDefault(isDefault) {
		return TileOverlap{TileRanges: []TileRange{{Start: 0, End: uint64(len(t.leaves) - 1)}}}
	}
	if len(t.levels) == 0 {
		// Degenerate: no internal levels (single leaf or Build not called);
		// fall back to scanning leaves directly.
		return t.scanLeaves(subarray, isDefault)
	}

	var out TileOverlap
	top := len(t.levels) - 1
	t.descend(subarray, isDefault, top, 0, &out)
	return out
}

func (t *RTree) scanLeaves(subarray domain.NDRange, isDefault []bool) TileOverlap {
	var out TileOverlap
	var rangeStart = -1
	flush := func(end uint64) {
		if rangeStart >= 0 {
			out.TileRanges = append(out.TileRanges, TileRange{Start: uint64(rangeStart), End: end})
			rangeStart = -1
		}
	}
	for id, mbr := range t.leaves {
		if t.covered(mbr, subarray, isDefault) {
			if rangeStart < 0 {
				rangeStart = id
			}
			continue
		}
		flush(uint64(id) - 1)
		if t.overlaps(mbr, subarray, isDefault) {
			out.Tiles = append(out.Tiles, PartialTile{TileID: uint64(id), OverlapRatio: t.overlapRatio(mbr, subarray, isDefault)})
		}
	}
	flush(uint64(len(t.leaves) - 1))
	return out
}

func (t *RTree) descend(subarray domain.NDRange, isDefault []bool, level, idx int, out *TileOverlap) {
	n := t.levels[level][idx]

	if t.covered(n.mbr, subarray, isDefault) {
		lo, hi := leafSpan(t.levels, level, idx)
		appendRange(out, lo, hi)
		return
	}
	if !t.overlaps(n.mbr, subarray, isDefault) {
		return
	}

	if level == 0 {
		out.Tiles = append(out.Tiles, PartialTile{TileID: uint64(idx), OverlapRatio: t.overlapRatio(n.mbr, subarray, isDefault)})
		return
	}
	for _, childIdx := range n.children {
		t.descend(subarray, isDefault, level-1, childIdx, out)
	}
}

// leafSpan returns the inclusive [lo, hi] leaf-id range covered by the
// subtree rooted at levels[level][idx].
func leafSpan(levels [][]node, level, idx int) (uint64, uint64) {
	if level == 0 {
		return uint64(idx), uint64(idx)
	}
	n := levels[level][idx]
	first := n.children[0]
	last := n.children[len(n.children)-1]
	lo, _ := leafSpan(levels, level-1, first)
	_, hi := leafSpan(levels, level-1, last)
	return lo, hi
}

func appendRange(out *TileOverlap, lo, hi uint64) {
	if n := len(out.TileRanges); n > 0 && out.TileRanges[n-1].End+1 == lo {
		out.TileRanges[n-1].End = hi
		return
	}
	out.TileRanges = append(out.TileRanges, TileRange{Start: lo, End: hi})
}

func (t *RTree) covered(mbr, subarray domain.NDRange, isDefault []bool) bool {
	for i, dim := range t.dom.Dimensions() {
		if isDefault != nil && i < len(isDefault) && isDefault[i] {
			continue
		}
		if !dim.Covered(mbr[i], subarray[i]) {
			return false
		}
	}
	return true
}

func (t *RTree) overlaps(mbr, subarray domain.NDRange, isDefault []bool) bool {
	for i, dim := range t.dom.Dimensions() {
		if isDefault != nil && i < len(isDefault) && isDefault[i] {
			continue
		}
		if !dim.Overlap(mbr[i], subarray[i]) {
			return false
		}
	}
	return true
}

func (t *RTree) overlapRatio(mbr, subarray domain.NDRange, isDefault []bool) float64 {
	ratio := 1.0
	for i, dim := range t.dom.Dimensions() {
		if isDefault != nil && i < len(isDefault) && isDefault[i] {
			continue
		}
		ratio *= dim.OverlapRatio(mbr[i], subarray[i])
	}
	return ratio
}

// ComputeTileBitmap is the 1-D variant used by query-planning heuristics:
// bitmap[leafID] is set iff that leaf's extent along dimension d overlaps
// rng.
func (t *RTree) ComputeTileBitmap(rng domain.NDRange, d int, bitmap []bool) {
	dim := t.dom.Dimension(d)
	for id, mbr := range t.leaves {
		if dim.Overlap(mbr[d], rng[d]) {
			bitmap[id] = true
		}
	}
}

func allDefault(isDefault []bool) bool {
	if len(isDefault) == 0 {
		return false
	}
	for _, v := range isDefault {
		if !v {
			return false
		}
	}
	return true
}
