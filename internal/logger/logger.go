// Package logger builds the structured loggers used by the CLI and the job
// runner. It wraps log/slog; field names are snake_case.
//
// Two output formats are supported:
//   - JSON (default): one JSON object per line, for machines
//   - Human: short console lines with a level glyph, for people
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// OutputFormat represents the log output format
type OutputFormat int

const (
	// FormatJSON is the default machine-readable JSON format
	FormatJSON OutputFormat = iota
	// FormatHuman is a human-readable console format
	FormatHuman
)

// ParseFormat maps "json" and "human"/"text" to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "human", "text":
		return FormatHuman, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format %q", s)
	}
}

// Config selects the level, format and destination of a logger.
type Config struct {
	Level  slog.Level
	Format OutputFormat
	Output io.Writer
}

// New returns a logger for cfg.
func New(cfg Config) *slog.Logger {
	if cfg.Format == FormatHuman {
		return slog.New(NewHumanHandler(cfg.Output, &HumanHandlerOptions{Level: cfg.Level}))
	}
	return slog.New(slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: cfg.Level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// LevelFromFlags maps the CLI verbosity flags to a level.
func LevelFromFlags(verbose, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelError
	case verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// WithJob returns a logger carrying the run id and, when set, the job name.
func WithJob(l *slog.Logger, runID, name string) *slog.Logger {
	attrs := []any{slog.String("run_id", runID)}
	if name != "" {
		attrs = append(attrs, slog.String("job", name))
	}
	return l.With(attrs...)
}

// StageStart logs the start of a job stage and returns its start time.
func StageStart(l *slog.Logger, stage string, args ...any) time.Time {
	l.Debug("stage started", append([]any{slog.String("stage", stage)}, args...)...)
	return time.Now()
}

// StageEnd logs the end of a job stage. A non-nil err is logged at error
// level.
func StageEnd(l *slog.Logger, stage string, start time.Time, err error, args ...any) {
	attrs := append([]any{
		slog.String("stage", stage),
		slog.Duration("duration", time.Since(start)),
	}, args...)
	if err != nil {
		l.Error("stage failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.Info("stage completed", attrs...)
}

// HumanHandlerOptions configures the human-readable log handler.
type HumanHandlerOptions struct {
	Level slog.Level
}

// HumanHandler is a slog handler that outputs human-readable log messages.
type HumanHandler struct {
	opts   HumanHandlerOptions
	writer io.Writer
	attrs  []slog.Attr
}

// NewHumanHandler creates a new human-readable log handler.
func NewHumanHandler(w io.Writer, opts *HumanHandlerOptions) *HumanHandler {
	if opts == nil {
		opts = &HumanHandlerOptions{Level: slog.LevelInfo}
	}
	return &HumanHandler{opts: *opts, writer: w}
}

func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(levelPrefix(r.Level))
	sb.WriteString(" ")
	sb.WriteString(r.Message)

	for _, a := range h.attrs {
		sb.WriteString(" ")
		sb.WriteString(formatAttr(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		sb.WriteString(" ")
		sb.WriteString(formatAttr(a))
		return true
	})

	sb.WriteString("\n")
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &HumanHandler{opts: h.opts, writer: h.writer}
	n.attrs = append(append(n.attrs, h.attrs...), attrs...)
	return n
}

// WithGroup is accepted but groups are flattened.
func (h *HumanHandler) WithGroup(string) slog.Handler { return h }

func levelPrefix(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "✗"
	case level >= slog.LevelWarn:
		return "⚠"
	case level >= slog.LevelInfo:
		return "ℹ"
	default:
		return "·"
	}
}

func formatAttr(a slog.Attr) string {
	switch v := a.Value.Any().(type) {
	case time.Duration:
		return fmt.Sprintf("%s=%s", a.Key, formatDuration(v))
	case float64:
		return fmt.Sprintf("%s=%.2f", a.Key, v)
	default:
		return fmt.Sprintf("%s=%v", a.Key, v)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}
