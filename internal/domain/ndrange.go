// Package domain implements the ordered-dimension-tuple geometry of
// spec.md §4.2: cell/tile order, linear tile id <-> tile coordinate vector
// conversion, and NDRange-level crop/expand operations.
package domain

import "soltix.dev/fragstore/internal/dimension"

// NDRange is an ordered sequence of Range, one per dimension. It is empty
// iff the fragment it describes has no cells.
type NDRange []dimension.Range

// Empty reports whether the NDRange has no dimensions or any dimension's
// range is empty, i.e. the whole NDRange carries no cells.
func (nr NDRange) Empty() bool {
	if len(nr) == 0 {
		return true
	}
	for _, r := range nr {
		if r.Empty() {
			return true
		}
	}
	return false
}

// Clone makes a shallow copy of the slice (Range values are themselves
// immutable once built, so this is enough to let callers mutate the copy's
// length/order without aliasing the original).
func (nr NDRange) Clone() NDRange {
	out := make(NDRange, len(nr))
	copy(out, nr)
	return out
}
