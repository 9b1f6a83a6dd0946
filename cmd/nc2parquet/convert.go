package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/extract"
	"github.com/vegasq/nc2parquet/internal/cli"
	"github.com/vegasq/nc2parquet/job"
	"github.com/vegasq/nc2parquet/output"
	"github.com/vegasq/nc2parquet/storage"
)

type convertFlags struct {
	config   string
	variable string
	inline   cli.Inline

	force       bool
	dryRun      bool
	metricsFile string
	format      string

	compression   string
	rowGroupRows  int64
	chunkElements int
	readAhead     int
	maxRetries    int

	s3Region    string
	s3Endpoint  string
	s3PathStyle bool
}

func (a *app) convertCmd() *cobra.Command {
	var f convertFlags
	cmd := &cobra.Command{
		Use:   "convert [input.nc] [output.parquet]",
		Short: "Run a conversion job",
		Long: `Run a conversion job from a job file, from inline flags, or both.

Positional input and output override nc_key and parquet_key of the job
file. Inline filters and processors are appended after those of the job
file. The output "-" writes the table to stdout as CSV or JSON Lines.

Environment:
  NC2PARQUET_CONFIG    job file when --config is not set
  NC2PARQUET_INPUT     input when no positional input is given
  NC2PARQUET_OUTPUT    output when no positional output is given
  NC2PARQUET_VARIABLE  variable when --variable is not set`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fail(a.runConvert(cmd, args, &f))
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "Job file (JSON or YAML)")
	fl.StringVar(&f.variable, "variable", "", "Variable to extract")
	fl.StringArrayVar(&f.inline.Ranges, "range", nil, "Range filter dim:min:max (repeatable)")
	fl.StringArrayVar(&f.inline.Lists, "list", nil, "List filter dim:v1,v2,... (repeatable)")
	fl.StringArrayVar(&f.inline.Points2D, "point2d", nil, "Point filter lat_dim,lon_dim:lat,lon:tolerance (repeatable)")
	fl.StringArrayVar(&f.inline.Points3D, "point3d", nil, "Point filter time_dim,lat_dim,lon_dim:time,lat,lon:tolerance (repeatable)")
	fl.StringArrayVar(&f.inline.Renames, "rename", nil, "Rename a column old:new (repeatable)")
	fl.StringArrayVar(&f.inline.UnitConverts, "unit-convert", nil, "Convert units column:from:to (repeatable)")
	fl.StringArrayVar(&f.inline.KelvinToCelsius, "kelvin-to-celsius", nil, "Convert a column from kelvin to celsius (repeatable)")
	fl.StringArrayVar(&f.inline.Formulas, "formula", nil, "Add a computed column target:expression:src1,src2 (repeatable)")

	fl.BoolVar(&f.force, "force", false, "Overwrite an existing output")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Validate the job against the input without writing anything")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done")
	fl.StringVar(&f.format, "format", output.FormatCSV, "Format for output \"-\": csv or jsonl")

	fl.StringVar(&f.compression, "compression", "zstd", "Parquet compression: zstd, snappy, gzip, brotli, lz4 or none")
	fl.Int64Var(&f.rowGroupRows, "row-group-rows", 0, "Maximum rows per Parquet row group (0 for the writer default)")
	fl.IntVar(&f.chunkElements, "chunk-elements", extract.DefaultOptions().ChunkElements, "Maximum elements per hyperslab read")
	fl.IntVar(&f.readAhead, "read-ahead", extract.DefaultOptions().ReadAhead, "Chunks read ahead of processing")
	fl.IntVar(&f.maxRetries, "max-retries", storage.DefaultRetry.MaxRetries, "Attempts for transient storage failures")

	fl.StringVar(&f.s3Region, "s3-region", "", "AWS region for s3:// paths")
	fl.StringVar(&f.s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint, e.g. a MinIO server")
	fl.BoolVar(&f.s3PathStyle, "s3-path-style", false, "Use path-style S3 addressing")
	return cmd
}

// buildConfig merges the job file, positional arguments, environment and
// inline flags into one job.
func (a *app) buildConfig(args []string, f *convertFlags) (*job.Config, error) {
	cfg := &job.Config{}
	path := f.config
	if path == "" {
		path = a.env(EnvConfig)
	}
	if path != "" {
		loaded, err := job.LoadFile(a.fs, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(args) > 0 {
		cfg.NCKey = args[0]
	} else if v := a.env(EnvInput); v != "" && cfg.NCKey == "" {
		cfg.NCKey = v
	}
	if len(args) > 1 {
		cfg.ParquetKey = args[1]
	} else if v := a.env(EnvOutput); v != "" && cfg.ParquetKey == "" {
		cfg.ParquetKey = v
	}
	if f.variable != "" {
		cfg.VariableName = f.variable
	} else if v := a.env(EnvVariable); v != "" && cfg.VariableName == "" {
		cfg.VariableName = v
	}

	if err := f.inline.Apply(cfg); err != nil {
		return nil, err
	}

	if cfg.NCKey == "" || cfg.ParquetKey == "" || cfg.VariableName == "" {
		return nil, errs.Configf("", "input, output and variable are required (use --config, positional arguments or --variable)")
	}

	// check the merged job against the schema like a job file
	data, err := job.Marshal(cfg, job.FormatJSON)
	if err != nil {
		return nil, err
	}
	return job.Parse(data, job.FormatJSON)
}

func (a *app) runConvert(cmd *cobra.Command, args []string, f *convertFlags) error {
	cfg, err := a.buildConfig(args, f)
	if err != nil {
		return err
	}
	if _, err := output.Codec(f.compression); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	r := job.NewRunner(a.logger())
	r.Metrics = job.NewMetrics(reg)
	r.Force = f.force
	r.DryRun = f.dryRun
	r.Open = a.open
	r.Stdout = a.stdout
	r.StdoutFormat = f.format
	r.Extract.ChunkElements = f.chunkElements
	r.Extract.ReadAhead = f.readAhead
	r.Parquet = output.ParquetOptions{Compression: f.compression, RowGroupRows: f.rowGroupRows}
	r.Storage = storage.Options{
		FS:    a.fs,
		S3:    storage.S3Config{Region: f.s3Region, Endpoint: f.s3Endpoint, ForcePathStyle: f.s3PathStyle},
		Retry: storage.DefaultRetry,
	}
	r.Storage.Retry.MaxRetries = f.maxRetries

	report, runErr := r.Run(cmd.Context(), cfg)

	if f.metricsFile != "" {
		if err := job.WriteTextfile(f.metricsFile, reg); err != nil && runErr == nil {
			runErr = errs.IO(f.metricsFile, false, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if !a.quiet {
		// keep stdout clean when the table itself goes there
		w := a.stdout
		if cfg.ParquetKey == job.StdoutPath {
			w = a.stderr
		}
		cli.PrintReport(w, report, a.verbose)
	}
	return nil
}
