package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/job"
	"github.com/vegasq/nc2parquet/output"
	"github.com/vegasq/nc2parquet/reader"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitDataError    = 2
	ExitRuntimeError = 3
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errs.ErrConfig):
		return ExitConfigError
	case errors.Is(err, errs.ErrData), errors.Is(err, errs.ErrExpression):
		return ExitDataError
	default:
		return ExitRuntimeError
	}
}

// Info output formats.
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
)

// PrintError prints err to w. Schema errors list one violation per line.
func PrintError(w io.Writer, err error) {
	var se *job.SchemaError
	if errors.As(err, &se) {
		fmt.Fprintln(w, "✗ Validation errors:")
		for _, v := range se.Violations {
			fmt.Fprintf(w, "  %s: %s\n", v.Path, v.Message)
		}
		return
	}
	fmt.Fprintf(w, "✗ %v\n", err)
}

// PrintReport prints the summary of a finished job.
func PrintReport(w io.Writer, r *job.Report, verbose bool) {
	if r.DryRun {
		fmt.Fprintln(w, "✓ Dry run: configuration and input are valid")
		fmt.Fprintf(w, "  Variable: %s\n", r.Variable)
		fmt.Fprintf(w, "  Rows to extract: %s\n", humanize.Comma(int64(r.PlannedRows)))
		fmt.Fprintf(w, "  Output columns: %s\n", strings.Join(r.OutputColumns, ", "))
	} else {
		fmt.Fprintf(w, "✓ Wrote %s rows to %s\n", humanize.Comma(int64(r.OutputRows)), r.Output)
		fmt.Fprintf(w, "  Columns: %s\n", strings.Join(r.OutputColumns, ", "))
	}
	for _, f := range r.Filters {
		line := fmt.Sprintf("  %s: %s selected %d", f.Op, f.Description, f.Selected)
		if f.Dropped > 0 {
			line += fmt.Sprintf(", %d points dropped", f.Dropped)
		}
		if f.Unmatched > 0 {
			line += fmt.Sprintf(", %d values unmatched", f.Unmatched)
		}
		fmt.Fprintln(w, line)
	}
	if !verbose {
		return
	}
	fmt.Fprintf(w, "  Run ID: %s\n", r.RunID)
	if !r.DryRun {
		fmt.Fprintf(w, "  Extracted rows: %s in %d reads\n", humanize.Comma(r.ExtractedRows), r.Reads)
	}
	stages := make([]string, 0, len(r.Stages))
	for s := range r.Stages {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	for _, s := range stages {
		fmt.Fprintf(w, "  %s: %v\n", s, r.Stages[s].Round(time.Microsecond))
	}
	fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
}

// PrintValidation prints the result of validate. Detailed adds a summary of
// the job.
func PrintValidation(w io.Writer, path string, cfg *job.Config, detailed bool) {
	fmt.Fprintf(w, "✓ Configuration is valid: %s\n", path)
	if !detailed {
		return
	}
	fmt.Fprintf(w, "  Input: %s\n", cfg.NCKey)
	fmt.Fprintf(w, "  Variable: %s\n", cfg.VariableName)
	fmt.Fprintf(w, "  Output: %s\n", cfg.ParquetKey)
	specs, _ := cfg.FilterSpecs()
	fmt.Fprintf(w, "  Filters: %d\n", len(specs))
	for i, s := range specs {
		fmt.Fprintf(w, "    [%d] %s\n", i, filter.Describe(s))
	}
	if cfg.Postprocessing != nil {
		name := cfg.Postprocessing.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "  Pipeline: %s, %d processors\n", name, len(cfg.Postprocessing.Processors))
		for i, p := range cfg.Postprocessing.Processors {
			fmt.Fprintf(w, "    [%d] %s\n", i, p.Type)
		}
	}
}

// NetCDFInfo renders dataset metadata in format.
func NetCDFInfo(w io.Writer, info reader.Info, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, info)
	case FormatYAML:
		return writeYAML(w, info)
	case FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"variable", "data_type", "dimensions", "shape"})
		for _, v := range info.Variables {
			_ = cw.Write([]string{v.Name, v.Type, strings.Join(v.Dimensions, ";"), joinInts(v.Shape, ";")})
		}
		cw.Flush()
		return cw.Error()
	case FormatHuman, "":
	default:
		return errs.Configf(format, "unknown info format (want human, json, yaml or csv)")
	}

	fmt.Fprintf(w, "File: %s", info.Path)
	if info.FileSize > 0 {
		fmt.Fprintf(w, " (%s)", humanize.Bytes(uint64(info.FileSize)))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\nDimensions (%d):\n", info.TotalDimensions)
	dt := newTable(w, "name", "length", "unlimited")
	for _, d := range info.Dimensions {
		dt.Append([]string{d.Name, strconv.Itoa(d.Len), strconv.FormatBool(d.Unlimited)})
	}
	dt.Render()

	fmt.Fprintf(w, "\nVariables (%d of %d):\n", len(info.Variables), info.TotalVariables)
	vt := newTable(w, "name", "type", "dimensions", "shape")
	for _, v := range info.Variables {
		vt.Append([]string{v.Name, v.Type, strings.Join(v.Dimensions, ", "), joinInts(v.Shape, " x ")})
	}
	vt.Render()

	for _, v := range info.Variables {
		if len(v.Attributes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s attributes:\n", v.Name)
		printAttributes(w, v.Attributes)
	}
	if len(info.GlobalAttributes) > 0 {
		fmt.Fprintln(w, "\nGlobal attributes:")
		printAttributes(w, info.GlobalAttributes)
	}
	return nil
}

// ParquetFileInfo is the info report of a Parquet file.
type ParquetFileInfo struct {
	Path     string              `json:"path" yaml:"path"`
	FileSize int64               `json:"file_size" yaml:"file_size"`
	Parquet  *output.ParquetInfo `json:"parquet" yaml:"parquet"`
	Preview  []map[string]any    `json:"preview,omitempty" yaml:"preview,omitempty"`
}

// ParquetInfo renders a Parquet file report in format.
func ParquetInfo(w io.Writer, info ParquetFileInfo, format string) error {
	for _, row := range info.Preview {
		for k, v := range row {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				row[k] = nil
			}
		}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, info)
	case FormatYAML:
		return writeYAML(w, info)
	case FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"name", "type", "physical_type", "logical_type", "required"})
		for _, c := range info.Parquet.Columns {
			_ = cw.Write([]string{c.Name, c.Type, c.PhysicalType, c.LogicalType, strconv.FormatBool(c.Required)})
		}
		cw.Flush()
		return cw.Error()
	case FormatHuman, "":
	default:
		return errs.Configf(format, "unknown info format (want human, json, yaml or csv)")
	}

	fmt.Fprintf(w, "File: %s (%s)\n", info.Path, humanize.Bytes(uint64(info.FileSize)))
	fmt.Fprintf(w, "Rows: %s in %d row groups\n\n", humanize.Comma(info.Parquet.Rows), info.Parquet.RowGroups)

	ct := newTable(w, "column", "type", "physical", "logical")
	names := make([]string, len(info.Parquet.Columns))
	for i, c := range info.Parquet.Columns {
		names[i] = c.Name
		ct.Append([]string{c.Name, c.Type, c.PhysicalType, c.LogicalType})
	}
	ct.Render()

	if len(info.Parquet.Metadata) > 0 {
		fmt.Fprintln(w, "\nMetadata:")
		printAttributes(w, info.Parquet.Metadata)
	}

	if len(info.Preview) > 0 {
		fmt.Fprintf(w, "\nFirst %d rows:\n", len(info.Preview))
		pt := newTable(w, names...)
		for _, row := range info.Preview {
			cells := make([]string, len(names))
			for i, n := range names {
				cells[i] = fmt.Sprint(row[n])
			}
			pt.Append(cells)
		}
		pt.Render()
	}
	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	return t
}

func printAttributes(w io.Writer, attrs map[string]string) {
	for _, k := range reader.AttributeKeys(attrs) {
		fmt.Fprintf(w, "  %s: %s\n", k, attrs[k])
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func joinInts(v []int, sep string) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, sep)
}
