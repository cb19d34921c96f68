// Package vfs is the narrow virtual-filesystem contract the fragment core
// depends on. The real engine's VFS does async scheduling, cloud backends,
// and encryption-at-rest — all explicitly out of scope per spec.md §1. This
// package only contracts the handful of operations FragmentMetadata and
// FragmentInfo actually call.
package vfs

import "context"

// File is an open handle to a fragment data or metadata file.
type File interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	WriteAt(ctx context.Context, p []byte, off int64) (int, error)
	Size(ctx context.Context) (int64, error)
	Sync(ctx context.Context) error
	Close() error
}

// FS is the filesystem contract: open-for-read, open-for-write, remove,
// existence check, and directory listing, all URI-addressed (a fragment
// directory URI plus a file name).
type FS interface {
	OpenRead(ctx context.Context, uri string) (File, error)
	OpenWrite(ctx context.Context, uri string) (File, error)
	Remove(ctx context.Context, uri string) error
	Exists(ctx context.Context, uri string) (bool, error)
	// ListDir returns the immediate child names of uri (not full paths),
	// used by FragmentInfo.Load to enumerate an array directory's
	// fragments. Returns an empty slice, not an error, if uri does not
	// exist.
	ListDir(ctx context.Context, uri string) ([]string, error)
}

// Join concatenates a fragment directory URI and a file name, tolerating a
// trailing slash on dir like filepath.Join but without pulling in the
// path semantics of a specific OS (the real engine's URIs may be
// cloud-backend paths, not local paths).
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	if dir[len(dir)-1] == '/' {
		return dir + name
	}
	return dir + "/" + name
}
