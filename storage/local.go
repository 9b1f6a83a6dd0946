package storage

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/vegasq/nc2parquet/errs"
)

// Local stores files on an afero filesystem.
type Local struct {
	fs afero.Fs
}

// NewLocal returns a Local backend over fs, or over the OS filesystem when
// fs is nil.
func NewLocal(fs afero.Fs) *Local {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Local{fs: fs}
}

// LocalPath returns path when the backend is the OS filesystem.
func (l *Local) LocalPath(path string) (string, bool) {
	_, ok := l.fs.(*afero.OsFs)
	return path, ok
}

func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, errs.IO(path, false, err)
	}
	return f, nil
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.Exists(l.fs, path)
	if err != nil {
		return false, errs.IO(path, false, err)
	}
	return ok, nil
}

// Stage creates a temporary file next to path. Commit renames it into
// place, which is atomic on the same filesystem.
func (l *Local) Stage(ctx context.Context, path string) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.IO(path, false, err)
	}
	f, err := afero.TempFile(l.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, errs.IO(path, false, err)
	}
	return &localStaged{fs: l.fs, f: f, path: path}, nil
}

type localStaged struct {
	fs   afero.Fs
	f    afero.File
	path string
	done bool
}

func (s *localStaged) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	if err != nil {
		return n, errs.IO(s.path, false, err)
	}
	return n, nil
}

func (s *localStaged) Commit(ctx context.Context) error {
	if s.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return errs.IO(s.path, false, err)
	}
	if err := s.fs.Rename(s.f.Name(), s.path); err != nil {
		_ = s.fs.Remove(s.f.Name())
		s.done = true
		return errs.IO(s.path, false, err)
	}
	s.done = true
	return nil
}

func (s *localStaged) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.f.Close()
	if err := s.fs.Remove(s.f.Name()); err != nil {
		return errs.IO(s.path, false, err)
	}
	return nil
}
