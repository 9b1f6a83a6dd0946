package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/storage"
	"github.com/vegasq/nc2parquet/table"
)

// Formatter defines the interface for text output formatters.
type Formatter interface {
	// Format writes every row of t in the formatter's format
	Format(t *table.Table) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// Format names accepted by NewFormatter.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(name) {
	case FormatCSV:
		return NewCSVFormatter(w), nil
	case FormatJSONL, "json":
		return NewJSONFormatter(w), nil
	default:
		return nil, errs.Configf(name, "unknown output format (want %s or %s)", FormatCSV, FormatJSONL)
	}
}

// FormatSink writes tables with a Formatter. The destination "-" writes to
// Stdout; any other destination is staged through Backend.
type FormatSink struct {
	Format  string
	Stdout  io.Writer
	Backend storage.Backend
}

func (s *FormatSink) Write(ctx context.Context, t *table.Table, dest string) error {
	if dest == "-" {
		f, err := NewFormatter(s.Format, s.Stdout)
		if err != nil {
			return err
		}
		return f.Format(t)
	}

	staged, err := s.Backend.Stage(ctx, dest)
	if err != nil {
		return err
	}
	f, err := NewFormatter(s.Format, staged)
	if err != nil {
		_ = staged.Abort()
		return err
	}
	if err := f.Format(t); err != nil {
		_ = staged.Abort()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := staged.Commit(ctx); err != nil {
		_ = staged.Abort()
		return err
	}
	return nil
}
