package vfs

import (
	"context"
	"os"
)

// Local is a FS backed directly by the OS filesystem, grounded on the
// teacher's direct os/filepath use in internal/storage/storage.go.
type Local struct{}

// NewLocal creates a local-disk FS.
func NewLocal() *Local { return &Local{} }

func (l *Local) OpenRead(ctx context.Context, uri string) (File, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, err
	}
	return &localFile{f: f}, nil
}

func (l *Local) OpenWrite(ctx context.Context, uri string) (File, error) {
	f, err := os.OpenFile(uri, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &localFile{f: f}, nil
}

func (l *Local) Remove(ctx context.Context, uri string) error {
	err := os.Remove(uri)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *Local) Exists(ctx context.Context, uri string) (bool, error) {
	_, err := os.Stat(uri)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) ListDir(ctx context.Context, uri string) ([]string, error) {
	entries, err := os.ReadDir(uri)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

type localFile struct {
	f *os.File
}

func (lf *localFile) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	return lf.f.ReadAt(p, off)
}

func (lf *localFile) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	return lf.f.WriteAt(p, off)
}

func (lf *localFile) Size(ctx context.Context) (int64, error) {
	info, err := lf.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (lf *localFile) Sync(ctx context.Context) error {
	return lf.f.Sync()
}

func (lf *localFile) Close() error {
	return lf.f.Close()
}
