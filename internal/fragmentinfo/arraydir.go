// Package fragmentinfo implements FragmentInfo, the per-array collection of
// FragmentMetadata described by spec.md §4.5: enumerate an array's
// fragments, partition by a timestamp window, load the in-window ones in
// parallel, and track vacuum/consolidation bookkeeping over the rest.
package fragmentinfo

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/vfs"
)

// fragmentsSubdir is the array-directory child holding one subdirectory per
// fragment, mirroring internal/fragment's own "uri is a directory
// containing __fragment_metadata.tdb" convention.
const fragmentsSubdir = "__fragments"

// vacuumFileName lists fragment URIs already marked for vacuuming, one per
// line. Deciding which fragments to list there is a consolidator policy
// concern (out of scope per spec.md §1); ArrayDirectory only reports what
// it finds.
const vacuumFileName = "__vacuum.txt"

// FragmentDirEntry is one fragment an ArrayDirectory reports: its URI and
// the timestamp range encoded in its name.
type FragmentDirEntry struct {
	URI            string
	TimestampStart uint64
	TimestampEnd   uint64
}

// ArrayDirectory is the narrow enumeration contract FragmentInfo.Load needs:
// list every fragment under an array, and list the subset already marked
// to-vacuum.
type ArrayDirectory interface {
	ListFragments(ctx context.Context) ([]FragmentDirEntry, error)
	ListToVacuum(ctx context.Context) ([]string, error)
}

// LocalArrayDirectory enumerates fragments by listing the __fragments
// subdirectory of a local array directory and parsing each child's name,
// grounded on the teacher's direct os/filepath use adapted via vfs.FS.
type LocalArrayDirectory struct {
	fs       vfs.FS
	arrayURI string
}

// NewLocalArrayDirectory builds an ArrayDirectory rooted at arrayURI.
func NewLocalArrayDirectory(fs vfs.FS, arrayURI string) *LocalArrayDirectory {
	return &LocalArrayDirectory{fs: fs, arrayURI: arrayURI}
}

func (a *LocalArrayDirectory) ListFragments(ctx context.Context) ([]FragmentDirEntry, error) {
	root := vfs.Join(a.arrayURI, fragmentsSubdir)
	names, err := a.fs.ListDir(ctx, root)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragmentinfo: list fragments directory")
	}
	out := make([]FragmentDirEntry, 0, len(names))
	for _, name := range names {
		tStart, tEnd, ok := ParseFragmentName(name)
		if !ok {
			continue
		}
		out = append(out, FragmentDirEntry{
			URI:            vfs.Join(root, name),
			TimestampStart: tStart,
			TimestampEnd:   tEnd,
		})
	}
	return out, nil
}

func (a *LocalArrayDirectory) ListToVacuum(ctx context.Context) ([]string, error) {
	path := vfs.Join(a.arrayURI, vacuumFileName)
	exists, err := a.fs.Exists(ctx, path)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragmentinfo: stat vacuum list")
	}
	if !exists {
		return nil, nil
	}
	f, err := a.fs.OpenRead(ctx, path)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragmentinfo: open vacuum list")
	}
	defer f.Close()
	size, err := f.Size(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragmentinfo: stat vacuum list")
	}
	buf := make([]byte, size)
	if _, err := f.ReadAt(ctx, buf, 0); err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragmentinfo: read vacuum list")
	}
	var uris []string
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			uris = append(uris, line)
		}
	}
	return uris, nil
}

// FragmentName formats a fragment directory name as
// "__<t_start>_<t_end>_<uuid>", the inverse of ParseFragmentName.
func FragmentName(tStart, tEnd uint64, uuid string) string {
	return "__" + strconv.FormatUint(tStart, 10) + "_" + strconv.FormatUint(tEnd, 10) + "_" + uuid
}

// ParseFragmentName extracts the timestamp range from a fragment directory
// name written by FragmentName, ignoring anything that doesn't match (so a
// stray non-fragment child of __fragments is silently skipped rather than
// failing the whole listing).
func ParseFragmentName(name string) (tStart, tEnd uint64, ok bool) {
	if !strings.HasPrefix(name, "__") {
		return 0, 0, false
	}
	parts := strings.SplitN(name[2:], "_", 3)
	if len(parts) < 3 {
		return 0, 0, false
	}
	tStart, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	tEnd, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return tStart, tEnd, true
}

func sortFragmentEntries(entries []FragmentDirEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TimestampStart != entries[j].TimestampStart {
			return entries[i].TimestampStart < entries[j].TimestampStart
		}
		return entries[i].URI < entries[j].URI
	})
}
