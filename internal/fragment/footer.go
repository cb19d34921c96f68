package fragment

import (
	"encoding/binary"

	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/errs"
)

type byteWriter struct{ buf []byte }

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.buf = append(w.buf, b[:]...) }
func (w *byteWriter) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); w.buf = append(w.buf, b[:]...) }
func (w *byteWriter) bytes(b []byte) { w.buf = append(w.buf, b...) }
func (w *byteWriter) u64s(vs []uint64) {
	for _, v := range vs {
		w.u64(v)
	}
}

type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) remaining() int { return len(r.buf) - r.off }
func (r *byteReader) need(n int) error {
	if r.remaining() < n {
		return errs.New(errs.Corrupt, "fragment: truncated footer")
	}
	return nil
}
func (r *byteReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}
func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}
func (r *byteReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}
func (r *byteReader) bytesN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}
func (r *byteReader) u64s(n int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := r.u64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// encodeNonEmptyDomain writes the non-empty domain using the v5+ shape
// (the only shape this module's writer ever emits, since MinStoreVersion is
// 7): per spec.md §6, "u8 null_flag; if !null { for each dim: if fixed
// bytes[2*coord_size] else u64 size, u64 start_size, bytes[size] }".
func encodeNonEmptyDomain(w *byteWriter, dims []*domainDim, nonEmpty domain.NDRange) {
	if nonEmpty.Empty() {
		w.u8(1)
		return
	}
	w.u8(0)
	for i, d := range dims {
		r := nonEmpty[i]
		if d.varLen {
			w.u64(uint64(len(r.Bytes())))
			w.u64(uint64(r.StartSize()))
			w.bytes(r.Bytes())
		} else {
			w.bytes(r.Bytes())
		}
	}
}

// decodeNonEmptyDomain reads back what encodeNonEmptyDomain wrote. Versions
// 1-4 are accepted for read-compatibility per spec.md §6's "Readers must
// accept every version from 1"; see decodeNonEmptyDomainLegacy.
func decodeNonEmptyDomain(r *byteReader, dims []*domainDim) (domain.NDRange, error) {
	nullFlag, err := r.u8()
	if err != nil {
		return nil, err
	}
	if nullFlag != 0 {
		return domain.NDRange{}, nil
	}
	out := make(domain.NDRange, len(dims))
	for i, d := range dims {
		if d.varLen {
			size, err := r.u64()
			if err != nil {
				return nil, err
			}
			startSize, err := r.u64()
			if err != nil {
				return nil, err
			}
			payload, err := r.bytesN(int(size))
			if err != nil {
				return nil, err
			}
			if startSize > size {
				return nil, errs.New(errs.Corrupt, "fragment: non-empty domain start_size exceeds size")
			}
			out[i] = newVarRangeBytes(payload, int(startSize))
		} else {
			b, err := r.bytesN(2 * d.width)
			if err != nil {
				return nil, err
			}
			out[i] = newFixedRangeBytes(b, d.width)
		}
	}
	return out, nil
}

// decodeNonEmptyDomainLegacy handles the v1-v4 shapes a reader must still
// accept, per spec.md §6: v1-v2 "u64 size, bytes payload (payload size 0
// means empty)"; v3-v4 "u8 null_flag; if !null { fixed u8[2*sum(coord_size)] }".
func decodeNonEmptyDomainLegacy(r *byteReader, dims []*domainDim, version uint32) (domain.NDRange, error) {
	if version <= 2 {
		size, err := r.u64()
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return domain.NDRange{}, nil
		}
		payload, err := r.bytesN(int(size))
		if err != nil {
			return nil, err
		}
		return splitFixedPayload(payload, dims), nil
	}
	nullFlag, err := r.u8()
	if err != nil {
		return nil, err
	}
	if nullFlag != 0 {
		return domain.NDRange{}, nil
	}
	total := 0
	for _, d := range dims {
		total += 2 * d.width
	}
	payload, err := r.bytesN(total)
	if err != nil {
		return nil, err
	}
	return splitFixedPayload(payload, dims), nil
}

func splitFixedPayload(payload []byte, dims []*domainDim) domain.NDRange {
	out := make(domain.NDRange, len(dims))
	off := 0
	for i, d := range dims {
		out[i] = newFixedRangeBytes(payload[off:off+2*d.width], d.width)
		off += 2 * d.width
	}
	return out
}
