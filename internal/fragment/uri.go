package fragment

import "fmt"

// percentEncodeTable lists the URL-unsafe / filesystem-reserved characters
// that version 8's fixed percent-encoding table maps to "%XX", per spec.md
// §4.4.4.
var percentEncodeTable = map[byte]string{
	'/': "%2F", '\\': "%5C", ':': "%3A", '*': "%2A", '?': "%3F",
	'"': "%22", '<': "%3C", '>': "%3E", '|': "%7C", ' ': "%20", '%': "%25",
}

// percentEncode applies the v8 percent-encoding table to a raw column name.
func percentEncode(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if enc, ok := percentEncodeTable[name[i]]; ok {
			out = append(out, enc...)
			continue
		}
		out = append(out, name[i])
	}
	return string(out)
}

// columnFileStem returns the base file name (without suffix) for a column,
// per spec.md §4.4.4: version <= 7 uses the raw (percent-unaware) column
// name; version >= 8 uses stable tokens (a<idx>, d<dim_idx>, __coords, t,
// dt, dci) instead of the column's own name.
func (m *idxMap) columnFileStem(version uint32, name string) (string, error) {
	col, ok := m.findColumn(name)
	if !ok {
		return "", fmt.Errorf("fragment: unknown column %q", name)
	}
	if version <= 7 {
		return name, nil
	}
	switch {
	case col.isCoord:
		return coordsName, nil
	case col.idx < m.numAttrs:
		return fmt.Sprintf("a%d", col.idx), nil
	case col.idx >= m.numAttrs+1 && col.idx < m.numAttrs+1+m.numDims:
		return fmt.Sprintf("d%d", col.dimIdx), nil
	case col.idx == m.tsIdx:
		return tsName, nil
	case col.idx == m.deleteTsIdx:
		return deleteTsName, nil
	case col.idx == m.deleteCIIdx:
		return deleteCIName, nil
	default:
		return percentEncode(name), nil
	}
}

func (m *idxMap) findColumn(name string) (column, bool) {
	i, ok := m.byName[name]
	if !ok {
		return column{}, false
	}
	for _, c := range m.columns {
		if c.idx == i {
			return c, true
		}
	}
	return column{}, false
}

// FixedDataFileName returns the fixed-payload data file name for a column
// (".tdb" suffix per spec.md §4.4.4).
func (m *idxMap) fixedDataFileName(version uint32, name string) (string, error) {
	stem, err := m.columnFileStem(version, name)
	if err != nil {
		return "", err
	}
	return stem + ".tdb", nil
}

// VarDataFileName returns the variable-length payload data file name for a
// column ("_var.tdb" suffix).
func (m *idxMap) varDataFileName(version uint32, name string) (string, error) {
	stem, err := m.columnFileStem(version, name)
	if err != nil {
		return "", err
	}
	return stem + "_var.tdb", nil
}

// ValidityDataFileName returns the validity payload data file name for a
// column ("_validity.tdb" suffix).
func (m *idxMap) validityDataFileName(version uint32, name string) (string, error) {
	stem, err := m.columnFileStem(version, name)
	if err != nil {
		return "", err
	}
	return stem + "_validity.tdb", nil
}

const metadataFileName = "__fragment_metadata.tdb"
