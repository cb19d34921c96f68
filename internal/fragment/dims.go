package fragment

import (
	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/schema"
)

// domainDim is the minimal per-dimension shape footer encode/decode needs:
// whether it is variable-length and, if not, its fixed byte width.
type domainDim struct {
	varLen bool
	width  int
}

func domainDimsOf(s schema.Schema) []*domainDim {
	dims := s.Dimensions()
	out := make([]*domainDim, len(dims))
	for i, d := range dims {
		out[i] = &domainDim{varLen: d.IsVarLength(), width: d.ByteWidth()}
	}
	return out
}

func newFixedRangeBytes(b []byte, width int) dimension.Range {
	return dimension.NewFixedRange(b[:width], b[width:])
}

func newVarRangeBytes(b []byte, startSize int) dimension.Range {
	return dimension.NewVarRange(b[:startSize], b[startSize:])
}
