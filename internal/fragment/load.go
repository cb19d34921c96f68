package fragment

import (
	"context"
	"path"
	"strconv"
	"strings"
	"sync"

	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/logging"
	"soltix.dev/fragstore/internal/schema"
	"soltix.dev/fragstore/internal/vfs"
)

// LoadOptions bundles what Load needs beyond the collaborators in
// Resources: the known schemas (keyed by name, for v>=10 footers) and a
// default schema to use for pre-v10 footers, which carry no schema name.
type LoadOptions struct {
	Schemas       map[string]schema.Schema
	DefaultSchema schema.Schema
}

// Load implements the read path of spec.md §4.4.2: locate and decode the
// footer (via the trailing footer_size when present, or the
// legacyFooterPayloadSize formula otherwise), resolve the fragment's
// schema, and size every per-column vector. Statistics sections remain
// unloaded (loaded_metadata all false) until an accessor calls
// ensureLoaded. The timestamp range is taken from the fragment directory
// name when it has the "__<t_start>_<t_end>_<uuid>" form, and is zero
// otherwise.
func Load(ctx context.Context, res Resources, uri string, opts LoadOptions) (*FragmentMetadata, error) {
	metadataURI := uri + "/" + metadataFileName
	f, err := res.FS.OpenRead(ctx, metadataURI)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragment: open metadata file")
	}
	defer f.Close()

	fileSize, err := f.Size(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragment: stat metadata file")
	}

	footerBuf, err := locateAndReadFooterEnvelope(ctx, f, fileSize, opts.DefaultSchema, res.Log)
	if err != nil {
		return nil, err
	}
	gt, _, err := UnmarshalGenericTile(footerBuf)
	if err != nil {
		return nil, err
	}
	payload, err := gt.Decode(res.Filters)
	if err != nil {
		return nil, err
	}

	fm := &FragmentMetadata{
		log:         res.Log,
		fs:          res.FS,
		tracker:     res.Tracker,
		filters:     res.Filters,
		uri:         uri,
		metadataURI: metadataURI,
		rtreeFanOut: effectiveRTreeFanOut(res.RTreeFanOut),
	}
	if name := path.Base(uri); strings.HasPrefix(name, "__") {
		if parts := strings.SplitN(name[2:], "_", 3); len(parts) == 3 {
			t0, err0 := strconv.ParseUint(parts[0], 10, 64)
			t1, err1 := strconv.ParseUint(parts[1], 10, 64)
			if err0 == nil && err1 == nil {
				fm.timestampRange = [2]uint64{t0, t1}
			}
		}
	}
	if err := fm.decodeFooterPayload(payload, opts); err != nil {
		return nil, err
	}
	fm.colMu = make([]sync.Mutex, fm.idx.numCols())

	if fm.dense {
		dom := fm.schema.Domain()
		cropped := dom.CropNDRange(fm.nonEmptyDomain)
		fm.domain_ = dom.ExpandToTiles(cropped)
		fm.capacity = dom.CellNumPerTile()
	} else {
		dims := fm.schema.Dimensions()
		if len(dims) > 0 {
			fm.capacity = 0 // sparse capacity comes from the schema's configured capacity; left to callers via SetCapacity
		}
	}
	return fm, nil
}

// SetCapacity lets a caller supply the sparse tile capacity (TileDB's
// schema-level `capacity` setting, a query-tuning knob this module treats
// as an external input rather than something FragmentMetadata computes).
func (fm *FragmentMetadata) SetCapacity(capacity uint64) { fm.capacity = capacity }

func locateAndReadFooterEnvelope(ctx context.Context, f vfs.File, fileSize int64, defaultSchema schema.Schema, log *logging.Logger) ([]byte, error) {
	if fileSize < 8 {
		return nil, errs.New(errs.Corrupt, "fragment: metadata file too small")
	}

	trailer := make([]byte, 8)
	if _, err := f.ReadAt(ctx, trailer, fileSize-8); err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragment: read trailer")
	}
	candidate := le64(trailer)

	if candidate >= 24 && int64(candidate)+8 <= fileSize {
		start := fileSize - 8 - int64(candidate)
		buf := make([]byte, candidate)
		if _, err := f.ReadAt(ctx, buf, start); err == nil {
			if plausibleGenericTileHeader(buf) {
				return buf, nil
			}
		}
	}

	if defaultSchema == nil {
		return nil, errs.New(errs.Corrupt, "fragment: cannot locate footer without a trailer or a default schema")
	}
	if log != nil {
		log.Warn("fragment: no valid trailer found, falling back to legacy footer size formula", "file_size", fileSize)
	}
	// Try every version from 7 up to (but excluding) 10: the legacy,
	// no-trailer path only exists for that range.
	for v := uint32(MinStoreVersion); v < 10; v++ {
		size := int64(24 + legacyFooterPayloadSize(defaultSchema, v))
		if size > fileSize {
			continue
		}
		start := fileSize - size
		buf := make([]byte, size)
		if _, err := f.ReadAt(ctx, buf, start); err != nil {
			continue
		}
		if plausibleGenericTileHeader(buf) {
			if log != nil {
				log.Warn("fragment: recovered footer via legacy size formula", "version", uint64(v))
			}
			return buf, nil
		}
	}
	return nil, errs.New(errs.Corrupt, "fragment: could not locate footer")
}

func plausibleGenericTileHeader(buf []byte) bool {
	if len(buf) < 24 {
		return false
	}
	persisted := le64(buf[0:8])
	return persisted == uint64(len(buf)-24)
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
