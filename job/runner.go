package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/extract"
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/internal/logger"
	"github.com/vegasq/nc2parquet/output"
	"github.com/vegasq/nc2parquet/pipeline"
	"github.com/vegasq/nc2parquet/reader"
	"github.com/vegasq/nc2parquet/storage"
	"github.com/vegasq/nc2parquet/table"
)

// Stage names used in logs, metrics and reports.
const (
	StagePlan     = "plan"
	StageExtract  = "extract"
	StageProcess  = "process"
	StageWrite    = "write"
	StdoutPath    = "-"
	defaultFormat = output.FormatCSV
)

// Opener opens the input dataset at path.
type Opener func(ctx context.Context, path string) (reader.Provider, error)

// Runner runs jobs. The zero value is not usable; fill at least Registries
// or use NewRunner.
type Runner struct {
	Registries pipeline.Registries
	Storage    storage.Options
	Extract    extract.Options
	Filter     filter.Options
	Parquet    output.ParquetOptions

	Logger  *slog.Logger
	Metrics *Metrics

	// Force allows overwriting an existing output.
	Force bool
	// DryRun stops after planning: nothing is extracted or written.
	DryRun bool

	// Open overrides how inputs are opened. The default fetches the input
	// through storage and opens it as NetCDF.
	Open Opener
	// Stdout receives the table when the output path is "-", formatted as
	// StdoutFormat (csv or jsonl).
	Stdout       io.Writer
	StdoutFormat string
}

// NewRunner returns a runner with default registries and options.
func NewRunner(l *slog.Logger) *Runner {
	return &Runner{
		Registries: pipeline.DefaultRegistries(),
		Extract:    extract.DefaultOptions(),
		Filter:     filter.DefaultOptions(),
		Logger:     l,
	}
}

// Plan is a validated job, ready to extract.
type Plan struct {
	Config   *Config
	Catalog  *reader.Catalog
	Results  []filter.Result
	Plan     *filter.Plan
	Pipeline *pipeline.Pipeline
	Columns  []string // columns after post-processing
	provider reader.Provider
}

// Close releases the input.
func (p *Plan) Close() error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Close()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logger.Discard()
	}
	return r.Logger
}

func (r *Runner) storageOptions() storage.Options {
	opts := r.Storage
	prev := opts.OnRetry
	opts.OnRetry = func(op string, err error) {
		r.Metrics.retry(op)
		r.logger().Warn("retrying storage operation", "operation", op, "error", err)
		if prev != nil {
			prev(op, err)
		}
	}
	return opts
}

func (r *Runner) open(ctx context.Context, path string) (reader.Provider, error) {
	if r.Open != nil {
		return r.Open(ctx, path)
	}
	b, err := storage.ForPath(path, r.storageOptions())
	if err != nil {
		return nil, err
	}
	local, cleanup, err := storage.Fetch(ctx, b, path)
	if err != nil {
		return nil, err
	}
	nc, err := reader.OpenNetCDF(local)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &fetched{NetCDF: nc, cleanup: cleanup}, nil
}

// fetched removes the local copy of a remote input on Close.
type fetched struct {
	*reader.NetCDF
	cleanup func()
}

func (f *fetched) Close() error {
	defer f.cleanup()
	return f.NetCDF.Close()
}

// Validate checks a config without touching any data: filter parameters,
// processor construction (units, reducers, formulas) and output paths.
func (r *Runner) Validate(cfg *Config) error {
	if cfg.NCKey == "" || cfg.VariableName == "" || cfg.ParquetKey == "" {
		return errs.Configf("", "nc_key, variable_name and parquet_key are required")
	}
	if _, err := cfg.FilterSpecs(); err != nil {
		return err
	}
	specs, err := cfg.ProcessorSpecs()
	if err != nil {
		return err
	}
	if _, err := pipeline.New(specs, r.Registries); err != nil {
		return err
	}
	for _, p := range []string{cfg.NCKey, cfg.ParquetKey} {
		if storage.IsS3(p) {
			if _, _, err := storage.ParseS3Path(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Plan opens the input and resolves every filter and column reference.
// All configuration errors surface here, before any variable data is read.
func (r *Runner) Plan(ctx context.Context, cfg *Config) (*Plan, error) {
	if err := r.Validate(cfg); err != nil {
		return nil, err
	}
	specs, _ := cfg.FilterSpecs()
	procs, _ := cfg.ProcessorSpecs()

	p, err := r.open(ctx, cfg.NCKey)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Config: cfg, provider: p}
	fail := func(err error) (*Plan, error) {
		_ = plan.Close()
		return nil, err
	}

	plan.Catalog, err = reader.NewCatalog(p, cfg.VariableName)
	if err != nil {
		return fail(err)
	}

	for i, s := range specs {
		op := fmt.Sprintf("filter[%d] %s", i, s.Kind())
		res, err := filter.Evaluate(ctx, plan.Catalog, s, r.Filter)
		if err != nil {
			return fail(errs.WithOp(op, errs.ErrConfig, err))
		}
		plan.Results = append(plan.Results, res)
	}
	plan.Plan, err = filter.Combine(plan.Catalog.Dimensions(), plan.Results)
	if err != nil {
		return fail(err)
	}

	plan.Pipeline, err = pipeline.New(procs, r.Registries,
		pipeline.WithName(cfg.Name()),
		pipeline.WithLogger(r.logger()),
	)
	if err != nil {
		return fail(err)
	}
	plan.Columns, err = plan.Pipeline.OutputColumns(extract.Columns(plan.Catalog.Variable()))
	if err != nil {
		return fail(err)
	}
	return plan, nil
}

// Run executes cfg and returns its report. On error the report holds
// whatever was done before the failure and the output is left untouched.
func (r *Runner) Run(ctx context.Context, cfg *Config) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:    uuid.New(),
		Name:     cfg.Name(),
		Input:    cfg.NCKey,
		Output:   cfg.ParquetKey,
		Variable: cfg.VariableName,
		DryRun:   r.DryRun,
		Stages:   make(map[string]time.Duration),
	}
	log := logger.WithJob(r.logger(), report.RunID.String(), report.Name)

	err := r.run(ctx, cfg, report, log)
	report.Duration = time.Since(start)

	status := "success"
	switch {
	case err != nil:
		status = "failed"
		log.Error("job failed", "error", err, "duration", report.Duration)
	case r.DryRun:
		status = "dry_run"
		log.Info("dry run completed", "planned_rows", report.PlannedRows)
	default:
		log.Info("job completed",
			"rows", report.OutputRows,
			"dropped_points", report.DroppedPoints,
			"duration", report.Duration,
		)
	}
	r.Metrics.observe(report, status)
	return report, err
}

func (r *Runner) run(ctx context.Context, cfg *Config, report *Report, log *slog.Logger) error {
	started := logger.StageStart(log, StagePlan, "input", cfg.NCKey, "variable", cfg.VariableName)
	plan, err := r.Plan(ctx, cfg)
	if err == nil {
		defer plan.Close()
		fillPlanReport(report, plan)
		err = r.checkOutput(ctx, cfg.ParquetKey)
	}
	report.Stages[StagePlan] = time.Since(started)
	logger.StageEnd(log, StagePlan, started, err, "planned_rows", report.PlannedRows)
	if err != nil || r.DryRun {
		return err
	}

	started = logger.StageStart(log, StageExtract)
	tbl, stats, err := extract.Materialize(ctx, plan.Catalog, plan.Plan, r.Extract)
	report.ExtractedRows = stats.Rows
	report.Chunks = stats.Chunks
	report.Reads = stats.Reads
	report.Stages[StageExtract] = time.Since(started)
	logger.StageEnd(log, StageExtract, started, err, "rows", stats.Rows, "reads", stats.Reads)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", cfg.VariableName, err)
	}

	started = logger.StageStart(log, StageProcess, "processors", plan.Pipeline.Len())
	tbl, err = plan.Pipeline.Run(ctx, tbl)
	report.Stages[StageProcess] = time.Since(started)
	logger.StageEnd(log, StageProcess, started, err)
	if err != nil {
		return err
	}
	report.OutputRows = tbl.Len()
	report.OutputColumns = tbl.Names()

	started = logger.StageStart(log, StageWrite, "output", cfg.ParquetKey)
	err = r.write(ctx, tbl, cfg, report)
	report.Stages[StageWrite] = time.Since(started)
	logger.StageEnd(log, StageWrite, started, err, "rows", tbl.Len())
	return err
}

func fillPlanReport(report *Report, plan *Plan) {
	report.PlannedRows = plan.Plan.Len()
	report.OutputColumns = plan.Columns
	for i, res := range plan.Results {
		report.Filters = append(report.Filters, FilterReport{
			Op:          fmt.Sprintf("filter[%d] %s", i, res.Spec.Kind()),
			Description: filter.Describe(res.Spec),
			Selected:    res.Selection.Len(),
			Dropped:     res.Dropped,
			Unmatched:   res.Unmatched,
		})
		report.DroppedPoints += res.Dropped
		report.UnmatchedValues += res.Unmatched
	}
}

// checkOutput refuses to replace an existing output unless Force is set.
func (r *Runner) checkOutput(ctx context.Context, dest string) error {
	if dest == StdoutPath || r.Force {
		return nil
	}
	b, err := storage.ForPath(dest, r.storageOptions())
	if err != nil {
		return err
	}
	exists, err := b.Exists(ctx, dest)
	if err != nil {
		return err
	}
	if exists {
		return errs.Configf(dest, "output already exists (use --force to overwrite)")
	}
	return nil
}

func (r *Runner) write(ctx context.Context, tbl *table.Table, cfg *Config, report *Report) error {
	if cfg.ParquetKey == StdoutPath {
		format := r.StdoutFormat
		if format == "" {
			format = defaultFormat
		}
		sink := &output.FormatSink{Format: format, Stdout: r.Stdout}
		return sink.Write(ctx, tbl, StdoutPath)
	}

	b, err := storage.ForPath(cfg.ParquetKey, r.storageOptions())
	if err != nil {
		return err
	}
	opts := r.Parquet
	meta := map[string]string{
		"nc2parquet.run_id":   report.RunID.String(),
		"nc2parquet.source":   cfg.NCKey,
		"nc2parquet.variable": cfg.VariableName,
	}
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	opts.Metadata = meta
	return output.NewParquetSink(b, opts).Write(ctx, tbl, cfg.ParquetKey)
}
