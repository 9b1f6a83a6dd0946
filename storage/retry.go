package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/grafana/dskit/backoff"

	"github.com/vegasq/nc2parquet/errs"
)

// DefaultRetry is used when a zero backoff.Config is passed to WithRetry.
var DefaultRetry = backoff.Config{
	MinBackoff: 100 * time.Millisecond,
	MaxBackoff: 5 * time.Second,
	MaxRetries: 5,
}

// Retrying retries transient failures of another backend with exponential
// backoff. MaxRetries bounds the total number of attempts per operation.
type Retrying struct {
	Backend
	cfg     backoff.Config
	onRetry func(op string, err error)
}

// WithRetry wraps b. A zero MaxRetries means DefaultRetry.MaxRetries, never
// unbounded retries.
func WithRetry(b Backend, cfg backoff.Config, onRetry func(op string, err error)) *Retrying {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRetry.MaxRetries
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultRetry.MinBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultRetry.MaxBackoff
	}
	if onRetry == nil {
		onRetry = func(string, error) {}
	}
	return &Retrying{Backend: b, cfg: cfg, onRetry: onRetry}
}

// LocalPath forwards to the wrapped backend.
func (r *Retrying) LocalPath(path string) (string, bool) {
	if lp, ok := r.Backend.(localPather); ok {
		return lp.LocalPath(path)
	}
	return "", false
}

func (r *Retrying) do(ctx context.Context, op string, f func() error) error {
	b := backoff.New(ctx, r.cfg)
	var lastErr error
	for b.Ongoing() {
		err := f()
		if err == nil || !errs.IsTransient(err) {
			return err
		}
		lastErr = err
		r.onRetry(op, err)
		b.Wait()
	}
	if lastErr == nil {
		return b.Err()
	}
	return fmt.Errorf("%s after %d retries: %w", op, b.NumRetries(), lastErr)
}

func (r *Retrying) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.do(ctx, "open", func() error {
		var err error
		rc, err = r.Backend.Open(ctx, path)
		return err
	})
	return rc, err
}

func (r *Retrying) Exists(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := r.do(ctx, "exists", func() error {
		var err error
		ok, err = r.Backend.Exists(ctx, path)
		return err
	})
	return ok, err
}

func (r *Retrying) Stage(ctx context.Context, path string) (Staged, error) {
	var s Staged
	err := r.do(ctx, "stage", func() error {
		var err error
		s, err = r.Backend.Stage(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &retryingStaged{Staged: s, r: r}, nil
}

type retryingStaged struct {
	Staged
	r *Retrying
}

func (s *retryingStaged) Commit(ctx context.Context) error {
	return s.r.do(ctx, "commit", func() error { return s.Staged.Commit(ctx) })
}
