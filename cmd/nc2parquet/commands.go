package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/internal/cli"
	"github.com/vegasq/nc2parquet/job"
	"github.com/vegasq/nc2parquet/output"
	"github.com/vegasq/nc2parquet/reader"
	"github.com/vegasq/nc2parquet/storage"
)

func (a *app) validateCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "validate <job-file>",
		Short: "Validate a job file without reading any data",
		Long: `Validate a job file against the job schema, then check every filter and
processor: parameters, units, reducers and formulas. The input is not opened.

Exit codes:
  0 - the job is valid
  1 - configuration errors`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := job.LoadFile(a.fs, args[0])
			if err == nil {
				err = job.NewRunner(a.logger()).Validate(cfg)
			}
			if err != nil {
				return a.fail(err)
			}
			if !a.quiet {
				cli.PrintValidation(a.stdout, args[0], cfg, detailed || a.verbose)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Print a summary of the job")
	return cmd
}

type infoFlags struct {
	format   string
	variable string
	detailed bool
	preview  int
}

func (a *app) infoCmd() *cobra.Command {
	var f infoFlags
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Describe a NetCDF or Parquet file",
		Long: `Describe the dimensions, variables and attributes of a NetCDF file, or the
columns and metadata of a Parquet file. Files ending in .parquet are read as
Parquet; everything else as NetCDF.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fail(a.runInfo(cmd.Context(), args[0], f))
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.format, "format", "f", cli.FormatHuman, "Output format: human, json, yaml or csv")
	fl.StringVar(&f.variable, "variable", "", "Only describe this variable")
	fl.BoolVar(&f.detailed, "detailed", false, "Include variable and global attributes")
	fl.IntVar(&f.preview, "preview", 0, "Show the first N rows of a Parquet file")
	return cmd
}

func (a *app) runInfo(ctx context.Context, path string, f infoFlags) error {
	if f.preview < 0 {
		return errs.Configf("--preview", "must be non-negative, got %d", f.preview)
	}
	b, err := storage.ForPath(path, storage.Options{FS: a.fs, Retry: storage.DefaultRetry})
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return a.parquetInfo(ctx, b, path, f)
	}

	var p reader.Provider
	if a.open != nil {
		p, err = a.open(ctx, path)
	} else {
		var local string
		var cleanup func()
		local, cleanup, err = storage.Fetch(ctx, b, path)
		if err == nil {
			defer cleanup()
			p, err = reader.OpenNetCDF(local)
		}
	}
	if err != nil {
		return err
	}
	defer p.Close()

	if f.variable != "" {
		if _, ok := p.Variable(f.variable); !ok {
			return errs.Configf(f.variable, "variable not found")
		}
	}
	info := reader.Describe(p, reader.DescribeOptions{Variable: f.variable, Detailed: f.detailed || a.verbose})
	info.Path = path
	if st, err := a.fs.Stat(path); err == nil {
		info.FileSize = st.Size()
	}
	return cli.NetCDFInfo(a.stdout, info, f.format)
}

func (a *app) parquetInfo(ctx context.Context, b storage.Backend, path string, f infoFlags) error {
	local, cleanup, err := storage.Fetch(ctx, b, path)
	if err != nil {
		return err
	}
	defer cleanup()

	file, err := os.Open(local)
	if err != nil {
		return errs.IO(path, false, err)
	}
	defer file.Close()
	st, err := file.Stat()
	if err != nil {
		return errs.IO(path, false, err)
	}

	pi, err := output.Inspect(file, st.Size())
	if err != nil {
		return errs.Dataf(path, "%v", err)
	}
	report := cli.ParquetFileInfo{Path: path, FileSize: st.Size(), Parquet: pi}
	if f.preview > 0 {
		report.Preview, err = output.ReadRows(file, st.Size(), f.preview)
		if err != nil {
			return errs.Dataf(path, "%v", err)
		}
	}
	return cli.ParquetInfo(a.stdout, report, f.format)
}

func (a *app) templateCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:       "template <" + strings.Join(job.TemplateNames(), "|") + ">",
		Short:     "Print a starter job file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: job.TemplateNames(),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := job.Template(args[0])
			if err != nil {
				return a.fail(err)
			}
			data, err := job.Marshal(cfg, job.Format(format))
			if err != nil {
				return a.fail(err)
			}
			if out == "" {
				_, err = a.stdout.Write(data)
				return a.fail(err)
			}
			if err := afero.WriteFile(a.fs, out, data, 0o644); err != nil {
				return a.fail(errs.IO(out, false, err))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(job.FormatYAML), "Output format: json or yaml")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
