package fragmentinfo

import (
	"context"

	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/fragment"
	"soltix.dev/fragstore/internal/schema"
	"soltix.dev/fragstore/internal/workerpool"
)

// EncryptionType names the encryption scheme a fragment's data was written
// under. Encryption-at-rest is out of scope for this module's VFS (see
// internal/vfs's package doc); Load accepts these parameters for call-site
// fidelity with the source API but the local VFS backend ignores them.
type EncryptionType int

const (
	EncryptionNone EncryptionType = iota
	EncryptionAES256GCM
)

// SchemaSource supplies the schemas Load needs to resolve each fragment's
// footer, mirroring fragment.LoadOptions: Schemas by name for v>=10
// footers, DefaultSchema for pre-v10 footers that carry no schema name.
type SchemaSource struct {
	Schemas       map[string]schema.Schema
	DefaultSchema schema.Schema
}

func (s SchemaSource) toFragmentOptions() fragment.LoadOptions {
	return fragment.LoadOptions{Schemas: s.Schemas, DefaultSchema: s.DefaultSchema}
}

// Load implements spec.md §4.5's load(array_dir, t_start, t_end, enc_type,
// enc_key): enumerate fragments from arrayDir, partition into in-window
// ([t_start,t_end]-overlapping) and anterior (entirely before t_start),
// load every in-window fragment's metadata in parallel via pool, sort the
// result by (t_start asc, uri asc), and load every anterior fragment's
// metadata (for its non_empty_domain only) to compute anterior_ndrange as
// their union.
func Load(
	ctx context.Context,
	res fragment.Resources,
	arrayDir ArrayDirectory,
	tStart, tEnd uint64,
	_ EncryptionType, _ []byte,
	schemas SchemaSource,
	pool *workerpool.Pool,
) (*FragmentInfo, error) {
	entries, err := arrayDir.ListFragments(ctx)
	if err != nil {
		return nil, err
	}
	toVacuum, err := arrayDir.ListToVacuum(ctx)
	if err != nil {
		return nil, err
	}

	var inWindow, anterior []FragmentDirEntry
	for _, e := range entries {
		switch {
		case e.TimestampEnd < tStart:
			anterior = append(anterior, e)
		case e.TimestampStart <= tEnd && e.TimestampEnd >= tStart:
			inWindow = append(inWindow, e)
		}
	}
	sortFragmentEntries(inWindow)

	loaded, err := loadAll(ctx, res, inWindow, schemas, pool)
	if err != nil {
		return nil, err
	}
	anteriorLoaded, err := loadAll(ctx, res, anterior, schemas, pool)
	if err != nil {
		return nil, err
	}

	fi := &FragmentInfo{
		arrayURI:       "",
		fragments:      loaded,
		toVacuum:       toVacuum,
		timestampStart: tStart,
		timestampEnd:   tEnd,
		schemasByName:  map[string]schema.Schema{},
	}
	fi.anteriorNDRange = unionNonEmptyDomains(anteriorLoaded)
	fi.populateSchemas()
	fi.countUnconsolidated()
	return fi, nil
}

// loadAll loads every entry's FragmentMetadata concurrently via pool,
// preserving entries' order in the result slice.
func loadAll(ctx context.Context, res fragment.Resources, entries []FragmentDirEntry, schemas SchemaSource, pool *workerpool.Pool) ([]*fragment.FragmentMetadata, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]*fragment.FragmentMetadata, len(entries))
	opts := schemas.toFragmentOptions()
	err := pool.ParallelFor(ctx, 0, len(entries), func(ctx context.Context, i int) error {
		fm, err := fragment.Load(ctx, res, entries[i].URI, opts)
		if err != nil {
			return err
		}
		out[i] = fm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func unionNonEmptyDomains(fragments []*fragment.FragmentMetadata) domain.NDRange {
	var union domain.NDRange
	for _, fm := range fragments {
		ned := fm.NonEmptyDomain()
		if ned.Empty() {
			continue
		}
		if union == nil {
			union = ned.Clone()
			continue
		}
		dims := fm.Schema().Dimensions()
		for i, dim := range dims {
			union[i] = dim.ExpandRange(union[i], ned[i])
		}
	}
	return union
}

func (fi *FragmentInfo) populateSchemas() {
	for _, fm := range fi.fragments {
		s := fm.Schema()
		fi.schemasByName[s.Name()] = s
		if fi.schemaLatest == nil || s.WriteVersion() >= fi.schemaLatest.WriteVersion() {
			fi.schemaLatest = s
		}
	}
}

// countUnconsolidated counts in-window fragments at a write version below
// the first version that supports embedding an array-schema name in its
// own footer (v10): pre-v10 fragments always rely on a caller-supplied
// default schema, which is exactly the signal the real consolidator uses
// to decide a fragment's metadata hasn't been folded into schema-qualified
// consolidated metadata yet.
func (fi *FragmentInfo) countUnconsolidated() {
	var n uint32
	for _, fm := range fi.fragments {
		if fm.Version() < 10 {
			n++
		}
	}
	fi.unconsolidatedMetadataNum = n
}

// LoadAndReplace implements spec.md §4.5's load_and_replace(new_uri,
// to_replace): used by the consolidator after writing one consolidated
// fragment to replace a contiguous run of older ones. It loads the new
// fragment's metadata, then splices it into fi.fragments at the position
// of the first URI in toReplace, removing every fragment named in
// toReplace. toReplace need not be contiguous in toReplace's own order, but
// must be contiguous within fi.fragments — callers violating that get
// Invalid.
func (fi *FragmentInfo) LoadAndReplace(ctx context.Context, res fragment.Resources, newURI string, toReplace []string, opts fragment.LoadOptions) error {
	newFM, err := fragment.Load(ctx, res, newURI, opts)
	if err != nil {
		return err
	}

	replace := make(map[string]bool, len(toReplace))
	for _, u := range toReplace {
		replace[u] = true
	}

	start := -1
	count := 0
	for i, fm := range fi.fragments {
		if !replace[fm.URI()] {
			continue
		}
		if start == -1 {
			start = i
		} else if i != start+count {
			return errs.New(errs.Invalid, "fragmentinfo: to_replace fragments are not contiguous")
		}
		count++
	}
	if count != len(toReplace) {
		return errs.New(errs.Invalid, "fragmentinfo: to_replace references an unknown fragment")
	}
	if start == -1 {
		fi.fragments = append(fi.fragments, newFM)
		fi.populateSchemas()
		fi.countUnconsolidated()
		return nil
	}

	next := make([]*fragment.FragmentMetadata, 0, len(fi.fragments)-count+1)
	next = append(next, fi.fragments[:start]...)
	next = append(next, newFM)
	next = append(next, fi.fragments[start+count:]...)
	fi.fragments = next
	fi.populateSchemas()
	fi.countUnconsolidated()
	return nil
}
