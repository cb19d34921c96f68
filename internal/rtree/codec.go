package rtree

import (
	"encoding/binary"

	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/errs"
)

// Serialize encodes the leaves only, per spec.md §6 "rtree" section
// encoding: per leaf, per dimension, either fixed bytes[2*coord_size] or
// (u64 size, u64 start_size, bytes) for variable-length dimensions.
func (t *RTree) Serialize() []byte {
	var buf []byte
	for _, leaf := range t.leaves {
		for i, dim := range t.dom.Dimensions() {
			r := leaf[i]
			if dim.IsVarLength() {
				buf = appendU64(buf, uint64(len(r.Bytes())))
				buf = appendU64(buf, uint64(r.StartSize()))
				buf = append(buf, r.Bytes()...)
			} else {
				buf = append(buf, r.Bytes()...)
			}
		}
	}
	return buf
}

// Deserialize rebuilds the leaves from a buffer produced by Serialize and
// then rebuilds the internal levels via Build, per spec.md §4.3
// ("deserialize rebuilds the tree via build_tree()").
func Deserialize(dom *domain.Domain, fanout int, buf []byte) (*RTree, error) {
	t := New(dom, fanout)
	var leaves []domain.NDRange
	off := 0
	for off < len(buf) {
		leaf := make(domain.NDRange, dom.NumDims())
		for i, dim := range dom.Dimensions() {
			if dim.IsVarLength() {
				if off+16 > len(buf) {
					return nil, errs.New(errs.Corrupt, "rtree: truncated leaf header")
				}
				size := binary.LittleEndian.Uint64(buf[off:])
				off += 8
				startSize := binary.LittleEndian.Uint64(buf[off:])
				off += 8
				if off+int(size) > len(buf) {
					return nil, errs.New(errs.Corrupt, "rtree: truncated leaf payload")
				}
				payload := buf[off : off+int(size)]
				off += int(size)
				leaf[i] = dimension.NewVarRange(payload[:startSize], payload[startSize:])
			} else {
				w := dim.ByteWidth()
				if off+2*w > len(buf) {
					return nil, errs.New(errs.Corrupt, "rtree: truncated fixed leaf extent")
				}
				b := buf[off : off+2*w]
				leaf[i] = dimension.NewFixedRange(b[:w], b[w:])
				off += 2 * w
			}
		}
		leaves = append(leaves, leaf)
	}
	t.leaves = leaves
	if err := t.Build(); err != nil {
		return nil, err
	}
	return t, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
