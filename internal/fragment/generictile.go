package fragment

import (
	"encoding/binary"

	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/filter"
)

// GenericTile is the self-describing envelope every on-disk section (rtree,
// tile_offsets[i], the footer itself, …) is wrapped in, per spec.md §6:
// "{u64 persisted_size, u64 original_size, u32 min_version, u32
// filter_pipeline_version, filter_pipeline, payload_bytes}". Marshal writes
// no filter_pipeline bytes: the 24-byte header is followed directly by the
// payload, and FilterPipelineVersion alone selects the codec.
type GenericTile struct {
	PersistedSize         uint64
	OriginalSize          uint64
	MinVersion            uint32
	FilterPipelineVersion uint32
	Payload               []byte // filtered bytes, PersistedSize long
}

// EncodeGenericTile filters plain through the pipeline identified by
// pipelineVersion and wraps the result in a GenericTile envelope.
func EncodeGenericTile(reg *filter.Registry, pipelineVersion uint32, minVersion uint32, plain []byte) (GenericTile, error) {
	p, ok := reg.Get(pipelineVersion)
	if !ok {
		return GenericTile{}, errs.Newf(errs.Invalid, "fragment: unknown filter pipeline version %d", pipelineVersion)
	}
	filtered, err := p.Apply(plain)
	if err != nil {
		return GenericTile{}, errs.Wrap(errs.Io, err, "fragment: filter apply failed")
	}
	return GenericTile{
		PersistedSize:         uint64(len(filtered)),
		OriginalSize:          uint64(len(plain)),
		MinVersion:            minVersion,
		FilterPipelineVersion: pipelineVersion,
		Payload:               filtered,
	}, nil
}

// Decode reverses the pipeline identified by t.FilterPipelineVersion,
// returning the original plain bytes.
func (t GenericTile) Decode(reg *filter.Registry) ([]byte, error) {
	p, ok := reg.Get(t.FilterPipelineVersion)
	if !ok {
		return nil, errs.Newf(errs.Corrupt, "fragment: unknown filter pipeline version %d", t.FilterPipelineVersion)
	}
	plain, err := p.Unapply(t.Payload)
	if err != nil {
		return nil, errs.Wrap(errs.Corrupt, err, "fragment: filter unapply failed")
	}
	if uint64(len(plain)) != t.OriginalSize {
		return nil, errs.Newf(errs.Corrupt, "fragment: generic tile original_size mismatch: got %d want %d", len(plain), t.OriginalSize)
	}
	return plain, nil
}

// Marshal serializes the envelope header plus payload, as written on disk.
func (t GenericTile) Marshal() []byte {
	buf := make([]byte, 8+8+4+4+len(t.Payload))
	binary.LittleEndian.PutUint64(buf[0:], t.PersistedSize)
	binary.LittleEndian.PutUint64(buf[8:], t.OriginalSize)
	binary.LittleEndian.PutUint32(buf[16:], t.MinVersion)
	binary.LittleEndian.PutUint32(buf[20:], t.FilterPipelineVersion)
	copy(buf[24:], t.Payload)
	return buf
}

// UnmarshalGenericTile reads one envelope starting at the beginning of buf,
// returning the envelope and the number of bytes consumed.
func UnmarshalGenericTile(buf []byte) (GenericTile, int, error) {
	if len(buf) < 24 {
		return GenericTile{}, 0, errs.New(errs.Corrupt, "fragment: truncated generic tile header")
	}
	t := GenericTile{
		PersistedSize:         binary.LittleEndian.Uint64(buf[0:]),
		OriginalSize:          binary.LittleEndian.Uint64(buf[8:]),
		MinVersion:            binary.LittleEndian.Uint32(buf[16:]),
		FilterPipelineVersion: binary.LittleEndian.Uint32(buf[20:]),
	}
	end := 24 + int(t.PersistedSize)
	if end > len(buf) {
		return GenericTile{}, 0, errs.New(errs.Corrupt, "fragment: generic tile payload exceeds buffer")
	}
	t.Payload = buf[24:end]
	return t, end, nil
}
