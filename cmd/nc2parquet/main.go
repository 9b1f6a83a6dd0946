// Command nc2parquet extracts a filtered subset of a NetCDF variable,
// optionally post-processes it and writes it as Parquet.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vegasq/nc2parquet/internal/cli"
	"github.com/vegasq/nc2parquet/internal/logger"
	"github.com/vegasq/nc2parquet/job"
)

// Environment variables read when the matching flag or argument is absent.
const (
	EnvConfig   = "NC2PARQUET_CONFIG"
	EnvInput    = "NC2PARQUET_INPUT"
	EnvOutput   = "NC2PARQUET_OUTPUT"
	EnvVariable = "NC2PARQUET_VARIABLE"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	err := a.root().ExecuteContext(ctx)
	if err != nil && !a.reported {
		cli.PrintError(a.stderr, err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}

// app holds the global flags and the dependencies commands share. Tests
// swap fs, open and getenv.
type app struct {
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs
	open   job.Opener
	getenv func(string) string

	verbose   bool
	quiet     bool
	logFormat string

	reported bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		fs:     afero.NewOsFs(),
		getenv: os.Getenv,
	}
}

func (a *app) root() *cobra.Command {
	root := &cobra.Command{
		Use:   "nc2parquet",
		Short: "Convert NetCDF variables to Parquet",
		Long: `nc2parquet extracts a filtered subset of one NetCDF variable into a table,
runs an optional post-processing pipeline and writes the result as Parquet.

Inputs and outputs may be local paths or s3://bucket/key URLs.

Examples:
  # Run a job file
  nc2parquet convert --config job.yaml

  # Inline job
  nc2parquet convert in.nc out.parquet --variable t2m --range lat:30:60 --kelvin-to-celsius t2m

  # Inspect a file
  nc2parquet info in.nc`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if a.verbose && a.quiet {
				return fmt.Errorf("--verbose and --quiet cannot be used together")
			}
			_, err := logger.ParseFormat(a.logFormat)
			return err
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging and detailed output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Only print errors")
	pf.StringVar(&a.logFormat, "log-format", "human", "Log format: human or json")

	root.AddCommand(a.convertCmd(), a.validateCmd(), a.infoCmd(), a.templateCmd())
	return root
}

func (a *app) logger() *slog.Logger {
	format, _ := logger.ParseFormat(a.logFormat)
	return logger.New(logger.Config{
		Level:  logger.LevelFromFlags(a.verbose, a.quiet),
		Format: format,
		Output: a.stderr,
	})
}

// fail prints err and returns it so the exit code reflects its kind.
func (a *app) fail(err error) error {
	if err != nil {
		cli.PrintError(a.stderr, err)
		a.reported = true
	}
	return err
}

func (a *app) env(name string) string {
	if a.getenv == nil {
		return ""
	}
	return a.getenv(name)
}
