// Package rtree implements the bottom-up bulk-loaded R-tree over per-tile
// MBRs described in spec.md §4.3: leaves are written in insertion order and
// never re-sorted, and the tree is always rebuilt from scratch rather than
// incrementally maintained.
package rtree

import (
	"soltix.dev/fragstore/internal/domain"
)

// node is one level of the tree: either a leaf holding a tile's MBR
// directly, or an internal node whose NDRange is the union of its
// children's NDRanges.
type node struct {
	mbr      domain.NDRange
	children []int // indices into the owning level's node slice; empty for leaves
}

// RTree holds the leaf MBRs (one per sparse tile, in write order) and the
// internal levels built on top of them by Build. It is read-only once
// built; GetTileOverlap never mutates it.
type RTree struct {
	dom     *domain.Domain
	fanout  int
	leaves  []domain.NDRange
	levels  [][]node // levels[0] is leaves wrapped as nodes; levels[last] has exactly one root
}

// New creates an empty RTree over dom with the given fan-out (the number of
// children grouped under one internal node). Per SPEC_FULL.md §6 the
// default fan-out (16) is supplied by callers from config.EngineConfig.
func New(dom *domain.Domain, fanout int) *RTree {
	if fanout < 2 {
		fanout = 16
	}
	return &RTree{dom: dom, fanout: fanout}
}

// SetLeaves installs the leaf MBRs in insertion (tile) order, discarding any
// previously built levels. Leaves are never sorted.
func (t *RTree) SetLeaves(leaves []domain.NDRange) {
	t.leaves = leaves
	t.levels = nil
}

// Leaves returns the leaf MBRs in tile order.
func (t *RTree) Leaves() []domain.NDRange { return t.leaves }

// NumLeaves is the number of sparse tiles this tree indexes.
func (t *RTree) NumLeaves() int { return len(t.leaves) }

// Build constructs the tree bottom-up: level L+1 contains ceil(|L|/fanout)
// nodes, each the per-dimension union (min of lows, max of highs) of up to
// fanout children's NDRanges. It is always a full rebuild.
func (t *RTree) Build() error {
	if len(t.leaves) == 0 {
		t.levels = nil
		return nil
	}
	leafLevel := make([]node, len(t.leaves))
	for i, mbr := range t.leaves {
		leafLevel[i] = node{mbr: mbr}
	}
	levels := [][]node{leafLevel}

	cur := leafLevel
	for len(cur) > 1 {
		numParents := (len(cur) + t.fanout - 1) / t.fanout
		parents := make([]node, numParents)
		for p := 0; p < numParents; p++ {
			start := p * t.fanout
			end := start + t.fanout
			if end > len(cur) {
				end = len(cur)
			}
			children := make([]int, end-start)
			union := cur[start].mbr.Clone()
			for i := start; i < end; i++ {
				children[i-start] = i
				if i > start {
					union = unionNDRange(t.dom, union, cur[i].mbr)
				}
			}
			parents[p] = node{mbr: union, children: children}
		}
		levels = append(levels, parents)
		cur = parents
	}
	t.levels = levels
	return nil
}

func unionNDRange(dom *domain.Domain, a, b domain.NDRange) domain.NDRange {
	out := make(domain.NDRange, len(a))
	for i, dim := range dom.Dimensions() {
		out[i] = dim.ExpandRange(a[i], b[i])
	}
	return out
}

// Root returns the root node's MBR, or an empty NDRange if the tree holds
// no leaves.
func (t *RTree) Root() domain.NDRange {
	if len(t.levels) == 0 {
		return nil
	}
	top := t.levels[len(t.levels)-1]
	return top[0].mbr
}

// FreeMemory drops the built levels (keeping the leaves), returning an
// estimate of bytes released so the caller can release the corresponding
// amount to its memory tracker (spec.md §4.3, "free_memory... bytes
// released").
func (t *RTree) FreeMemory() int64 {
	var freed int64
	for _, level := range t.levels {
		freed += int64(len(level)) * ndrangeApproxBytes(t.dom)
	}
	t.levels = nil
	return freed
}

func ndrangeApproxBytes(dom *domain.Domain) int64 {
	var b int64
	for _, dim := range dom.Dimensions() {
		if dim.IsVarLength() {
			b += 64 // rough: two small variable-length bounds
		} else {
			b += int64(dim.ByteWidth()) * 2
		}
	}
	return b
}
