package fragment

import "soltix.dev/fragstore/internal/domain"

// enumerateDenseTileIDs implements compute_overlapping_tile_ids<T>(subarray)
// for the dense branch of add_max_buffer_sizes: walk every tile coordinate
// vector inside the (already tile-aligned) expanded subarray using
// Domain.GetNextTileCoords, and linearize each one, per spec.md §4.4.3.
func enumerateDenseTileIDs(dom *domain.Domain, expanded domain.NDRange) []uint64 {
	if expanded.Empty() {
		return nil
	}
	coords := dom.TileCoordsFor(lowCells(expanded))
	var out []uint64
	for {
		out = append(out, dom.LinearTileID(coords))
		next, ok := dom.GetNextTileCoords(expanded, coords)
		if !ok {
			break
		}
		coords = next
	}
	return out
}

func lowCells(ndrange domain.NDRange) [][]byte {
	out := make([][]byte, len(ndrange))
	for i, r := range ndrange {
		out[i] = r.Low()
	}
	return out
}
