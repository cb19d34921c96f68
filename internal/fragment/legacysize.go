package fragment

import "soltix.dev/fragstore/internal/schema"

// legacyFooterPayloadSize predicts the exact plain-byte size of a footer
// written by usesLegacyFooterLocation's path: version < 10, all dimensions
// fixed-width, non-empty domain present (not null). Every field in that
// path has a size fixed by the schema alone, which is what makes the
// no-trailer lookup possible at all, per spec.md §6.
func legacyFooterPayloadSize(s schema.Schema, version uint32) int {
	n := len(s.Attributes()) + 1 + len(s.Dimensions()) // idx_map size with no trailing pseudo-columns (pre-v14 has_timestamps)

	size := 4 // version
	size += 1 // dense
	size += 1 // non_empty_domain null_flag
	for _, d := range s.Dimensions() {
		size += 2 * d.ByteWidth()
	}
	size += 8 // sparse_tile_num
	size += 8 // last_tile_cell_num

	size += 8 * n // file_sizes
	size += 8 * n // file_var_sizes
	if version >= 7 {
		size += 8 * n // file_validity_sizes
	}

	size += 8     // rtree_gt_offset
	size += 8 * n // tile_offsets_gt
	size += 8 * n // tile_var_offsets_gt
	size += 8 * n // tile_var_sizes_gt
	if version >= 7 {
		size += 8 * n // tile_validity_offsets_gt
	}
	return size
}
