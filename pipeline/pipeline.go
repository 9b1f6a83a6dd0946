package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/table"
)

// processor is one compiled stage.
type processor interface {
	// outputColumns maps the input column names to the output names and
	// fails when a referenced column is missing.
	outputColumns(in []string) ([]string, error)
	apply(ctx context.Context, t *table.Table) (*table.Table, error)
}

type stage struct {
	op   string
	spec Spec
	proc processor
}

// Pipeline is an ordered, compiled list of processors. It holds no state
// between runs.
type Pipeline struct {
	name   string
	stages []stage
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithName sets the pipeline name used in logs.
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithLogger sets the logger for stage boundaries.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New compiles specs against reg. Configuration problems surface here:
// unknown units and reducers (ConfigError) and malformed formulas
// (ExpressionError).
func New(specs []Spec, reg Registries, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{name: "pipeline", logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}

	for i, spec := range specs {
		op := fmt.Sprintf("processor[%d] %s", i, spec.Type())
		proc, err := compile(spec, reg)
		if err != nil {
			return nil, errs.WithOp(op, errs.ErrConfig, err)
		}
		p.stages = append(p.stages, stage{op: op, spec: spec, proc: proc})
	}
	return p, nil
}

func compile(spec Spec, reg Registries) (processor, error) {
	switch s := spec.(type) {
	case RenameColumns:
		return newRename(s)
	case UnitConvert:
		return newUnitConvert(s, reg.Units)
	case ApplyFormula:
		return newFormula(s)
	case DatetimeConvert:
		return newDatetime(s)
	case Aggregate:
		return newAggregate(s, reg.Reducers)
	default:
		return nil, errs.Configf("", "unsupported processor %T", spec)
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Len returns the number of processors.
func (p *Pipeline) Len() int { return len(p.stages) }

// Specs returns the processor specs in order.
func (p *Pipeline) Specs() []Spec {
	out := make([]Spec, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.spec
	}
	return out
}

// OutputColumns propagates a column list through every processor and
// returns the final columns. Any reference to a column that does not exist
// at that stage is a ConfigError naming the processor.
func (p *Pipeline) OutputColumns(in []string) ([]string, error) {
	cols := append([]string(nil), in...)
	for _, s := range p.stages {
		out, err := s.proc.outputColumns(cols)
		if err != nil {
			return nil, errs.WithOp(s.op, errs.ErrConfig, err)
		}
		cols = out
	}
	return cols, nil
}

// Run applies the processors in order.
func (p *Pipeline) Run(ctx context.Context, t *table.Table) (*table.Table, error) {
	if len(p.stages) == 0 {
		return t, nil
	}
	p.logger.Debug("running pipeline", "pipeline", p.name, "processors", len(p.stages), "rows", t.Len())

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := s.proc.apply(ctx, t)
		if err != nil {
			return nil, errs.WithOp(s.op, errs.ErrData, err)
		}
		p.logger.Debug("processor done",
			"pipeline", p.name,
			"processor", s.op,
			"rows_in", t.Len(),
			"rows_out", out.Len(),
			"duration", time.Since(start),
		)
		t = out
	}
	return t, nil
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func requireColumns(cols []string, names ...string) error {
	for _, n := range names {
		if indexOf(cols, n) < 0 {
			return errs.Configf(n, "column not found")
		}
	}
	return nil
}

func column(t *table.Table, name string) (*table.Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errs.Configf(name, "column not found")
	}
	return c, nil
}

// checkEvery is how many rows a per-row loop processes between context checks.
const checkEvery = 1 << 16
