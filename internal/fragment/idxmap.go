// Package fragment implements FragmentMetadata: the per-fragment footer,
// generic-tile envelope, and lazily-loaded statistics sections described in
// spec.md §4.4 and §6.
package fragment

import "soltix.dev/fragstore/internal/schema"

// column identifies one of FragmentMetadata's per-column slots: an
// attribute, the coordinates pseudo-attribute, a dimension, or one of the
// optional trailing pseudo-columns (timestamps, delete timestamps, delete
// condition index).
type column struct {
	idx     int
	name    string
	uriTok  string
	isCoord bool
	dimIdx  int // valid when this column is a dimension
}

// idxMap assigns every attribute, the coords pseudo-attribute, every
// dimension, and the enabled trailing pseudo-columns a stable index, per
// spec.md §4.4.1: "attributes first (0..A), coords pseudo-attribute at A,
// dimensions at A+1..A+D, then (if enabled) timestamps, delete timestamps,
// delete condition index."
type idxMap struct {
	columns      []column
	byName       map[string]int
	numAttrs     int
	numDims      int
	coordsIdx    int
	tsIdx        int // -1 if absent
	deleteTsIdx  int
	deleteCIIdx  int
}

const (
	coordsName   = "__coords"
	tsName       = "t"
	deleteTsName = "dt"
	deleteCIName = "dci"
)

func buildIdxMap(s schema.Schema, hasTimestamps, hasDeleteMeta bool) *idxMap {
	attrs := s.Attributes()
	dims := s.Dimensions()
	A := len(attrs)
	D := len(dims)

	m := &idxMap{byName: make(map[string]int), numAttrs: A, numDims: D, tsIdx: -1, deleteTsIdx: -1, deleteCIIdx: -1}

	for i, a := range attrs {
		m.columns = append(m.columns, column{idx: i, name: a.Name()})
		m.byName[a.Name()] = i
	}

	m.coordsIdx = A
	m.columns = append(m.columns, column{idx: A, name: coordsName, isCoord: true})
	m.byName[coordsName] = A

	for d := range dims {
		idx := A + 1 + d
		m.columns = append(m.columns, column{idx: idx, name: dims[d].Name(), dimIdx: d})
		m.byName[dims[d].Name()] = idx
	}

	next := A + 1 + D
	if hasTimestamps {
		m.tsIdx = next
		m.columns = append(m.columns, column{idx: next, name: tsName})
		m.byName[tsName] = next
		next++
	}
	if hasDeleteMeta {
		m.deleteTsIdx = next
		m.columns = append(m.columns, column{idx: next, name: deleteTsName})
		m.byName[deleteTsName] = next
		next++
		m.deleteCIIdx = next
		m.columns = append(m.columns, column{idx: next, name: deleteCIName})
		m.byName[deleteCIName] = next
		next++
	}
	return m
}

func (m *idxMap) numCols() int { return len(m.columns) }

func (m *idxMap) indexOf(name string) (int, bool) {
	i, ok := m.byName[name]
	return i, ok
}
