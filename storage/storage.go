// Package storage moves job input and output bytes between the local
// filesystem and S3.
//
// Writes are staged: a Staged writer is only made visible at its final
// path by Commit, and Abort discards it. A failed or cancelled job therefore
// never leaves a partial output file behind.
package storage

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/grafana/dskit/backoff"
	"github.com/spf13/afero"

	"github.com/vegasq/nc2parquet/errs"
)

// Backend reads and writes whole objects by path.
type Backend interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	Stage(ctx context.Context, path string) (Staged, error)
}

// Staged is a pending write.
type Staged interface {
	io.Writer
	// Commit publishes the written bytes at the final path.
	Commit(ctx context.Context) error
	// Abort discards the written bytes. Calling it after Commit is a no-op.
	Abort() error
}

// Options configures ForPath.
type Options struct {
	FS    afero.Fs // local filesystem, afero.NewOsFs() when nil
	S3    S3Config
	Retry backoff.Config
	// OnRetry is called before each retry of a transient failure.
	OnRetry func(op string, err error)
}

// IsS3 reports whether path is an s3:// URL.
func IsS3(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ForPath returns the retrying backend that serves path.
func ForPath(path string, opts Options) (Backend, error) {
	var b Backend
	if IsS3(path) {
		s3b, err := NewS3(opts.S3)
		if err != nil {
			return nil, err
		}
		b = s3b
	} else {
		b = NewLocal(opts.FS)
	}
	return WithRetry(b, opts.Retry, opts.OnRetry), nil
}

// localPather is implemented by backends whose paths are directly readable
// through the os package.
type localPather interface {
	LocalPath(path string) (string, bool)
}

// Fetch makes path available as a local file and returns its name with a
// cleanup func. Paths already on the local disk are returned as they are;
// anything else is copied to a temporary file.
func Fetch(ctx context.Context, b Backend, path string) (string, func(), error) {
	if lp, ok := b.(localPather); ok {
		if local, ok := lp.LocalPath(path); ok {
			return local, func() {}, nil
		}
	}

	rc, err := b.Open(ctx, path)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "nc2parquet-*.nc")
	if err != nil {
		return "", nil, errs.IO(path, false, err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, errs.IO(path, true, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, errs.IO(path, false, err)
	}
	return tmp.Name(), cleanup, nil
}
