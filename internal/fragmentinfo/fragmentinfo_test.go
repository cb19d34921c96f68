package fragmentinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/filter"
	"soltix.dev/fragstore/internal/fragment"
	"soltix.dev/fragstore/internal/logging"
	"soltix.dev/fragstore/internal/memory"
	"soltix.dev/fragstore/internal/schema"
	"soltix.dev/fragstore/internal/vfs"
	"soltix.dev/fragstore/internal/workerpool"
)

func testResources() fragment.Resources {
	return fragment.Resources{
		FS:      vfs.NewLocal(),
		Tracker: memory.Unbounded(),
		Filters: filter.Default(),
		Log:     logging.Nop(),
	}
}

func testSchema(t *testing.T, version uint32) schema.Schema {
	t.Helper()
	ext := dimension.NewIntRange(dimension.Int32, 2, 2)
	d, err := dimension.New("d", dimension.Int32, 1, dimension.NewIntRange(dimension.Int32, 0, 99), &ext)
	require.NoError(t, err)
	dom, err := domain.New([]*dimension.Dimension{d}, domain.RowMajor, domain.TileRowMajor, 0)
	require.NoError(t, err)
	attrs := []schema.Attribute{schema.NewAttribute("a", dimension.Int32, 1, false)}
	return schema.New("s", dom, attrs, version, true)
}

// writeFragment writes a minimal, storeable dense fragment under
// arrayRoot/__fragments/__<tStart>_<tEnd>_<uuid> and returns its directory
// name.
func writeFragment(t *testing.T, arrayRoot string, s schema.Schema, tStart, tEnd uint64, low, high int64) string {
	t.Helper()
	name := FragmentName(tStart, tEnd, uuid.NewString())
	dir := filepath.Join(arrayRoot, fragmentsSubdir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	res := testResources()
	fm := fragment.New(res, s, dir, [2]uint64{tStart, tEnd}, true, false, false)
	nonEmpty := domain.NDRange{dimension.NewIntRange(dimension.Int32, low, high)}
	require.NoError(t, fm.Init(nonEmpty))
	require.NoError(t, fm.Store(context.Background()))
	return name
}

// TestLoadPartitionsInWindowAndAnterior covers spec.md §4.5's load():
// fragments strictly before t_start are anterior (contributing only to
// AnteriorNDRange), fragments overlapping [t_start,t_end] are loaded fully
// and sorted by (t_start asc, uri asc), and fragments entirely after t_end
// are ignored by this window.
func TestLoadPartitionsInWindowAndAnterior(t *testing.T) {
	ctx := context.Background()
	arrayRoot := t.TempDir()
	s := testSchema(t, 16)

	writeFragment(t, arrayRoot, s, 0, 0, 0, 9) // anterior (before window)
	writeFragment(t, arrayRoot, s, 5, 5, 20, 29) // in-window
	writeFragment(t, arrayRoot, s, 6, 6, 30, 39) // in-window
	writeFragment(t, arrayRoot, s, 10, 10, 50, 59) // after window, ignored

	arrayDir := NewLocalArrayDirectory(vfs.NewLocal(), arrayRoot)
	pool := workerpool.New(4)
	src := SchemaSource{Schemas: map[string]schema.Schema{"s": s}, DefaultSchema: s}

	fi, err := Load(ctx, testResources(), arrayDir, 3, 8, EncryptionNone, nil, src, pool)
	require.NoError(t, err)

	require.Equal(t, 2, fi.FragmentNum())
	require.Equal(t, uint64(5), fi.Fragment(0).TimestampRange()[0])
	require.Equal(t, uint64(6), fi.Fragment(1).TimestampRange()[0])

	anterior := fi.AnteriorNDRange()
	require.False(t, anterior.Empty())
	require.Equal(t, int64(0), dimension.DecodeInt64(dimension.Int32, anterior[0].Low()))
	require.Equal(t, int64(9), dimension.DecodeInt64(dimension.Int32, anterior[0].High()))

	require.Empty(t, fi.ToVacuum())
	require.Equal(t, s, fi.ArraySchemaLatest())
}

func TestLoadAndReplaceSplicesContiguousRun(t *testing.T) {
	ctx := context.Background()
	arrayRoot := t.TempDir()
	s := testSchema(t, 16)

	writeFragment(t, arrayRoot, s, 1, 1, 0, 9)
	writeFragment(t, arrayRoot, s, 2, 2, 10, 19)
	writeFragment(t, arrayRoot, s, 3, 3, 20, 29)

	arrayDir := NewLocalArrayDirectory(vfs.NewLocal(), arrayRoot)
	pool := workerpool.New(4)
	src := SchemaSource{Schemas: map[string]schema.Schema{"s": s}, DefaultSchema: s}

	fi, err := Load(ctx, testResources(), arrayDir, 0, 10, EncryptionNone, nil, src, pool)
	require.NoError(t, err)
	require.Equal(t, 3, fi.FragmentNum())

	toReplace := []string{fi.Fragment(0).URI(), fi.Fragment(1).URI()}
	newName := writeFragment(t, arrayRoot, s, 1, 2, 0, 19)
	newURI := filepath.Join(arrayRoot, fragmentsSubdir, newName)

	res := testResources()
	err = fi.LoadAndReplace(ctx, res, newURI, toReplace, fragment.LoadOptions{Schemas: src.Schemas, DefaultSchema: src.DefaultSchema})
	require.NoError(t, err)

	require.Equal(t, 2, fi.FragmentNum())
	require.Equal(t, newURI, fi.Fragment(0).URI())
}

func TestParseFragmentNameRoundTrip(t *testing.T) {
	name := FragmentName(42, 99, "abc-def")
	tStart, tEnd, ok := ParseFragmentName(name)
	require.True(t, ok)
	require.Equal(t, uint64(42), tStart)
	require.Equal(t, uint64(99), tEnd)

	_, _, ok = ParseFragmentName("not-a-fragment")
	require.False(t, ok)
}
