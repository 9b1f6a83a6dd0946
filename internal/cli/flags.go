// Package cli parses the inline filter and processor flags of the convert
// command and renders command output.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/job"
	"github.com/vegasq/nc2parquet/pipeline"
)

// ParseRange parses "dim:min:max".
func ParseRange(s string) (job.FilterConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return job.FilterConfig{}, errs.Configf(s, "--range wants dim:min:max")
	}
	lo, err := parseFloat(parts[1])
	if err != nil {
		return job.FilterConfig{}, errs.Configf(s, "--range min: %v", err)
	}
	hi, err := parseFloat(parts[2])
	if err != nil {
		return job.FilterConfig{}, errs.Configf(s, "--range max: %v", err)
	}
	return job.FilterConfig{
		Kind: filter.KindRange,
		Params: job.FilterParams{
			DimensionName: strings.TrimSpace(parts[0]),
			MinValue:      job.Float(lo),
			MaxValue:      job.Float(hi),
		},
	}, nil
}

// ParseList parses "dim:v1,v2,...".
func ParseList(s string) (job.FilterConfig, error) {
	dim, rest, ok := strings.Cut(s, ":")
	if !ok {
		return job.FilterConfig{}, errs.Configf(s, "--list wants dim:v1,v2,...")
	}
	values, err := parseFloats(rest)
	if err != nil {
		return job.FilterConfig{}, errs.Configf(s, "--list values: %v", err)
	}
	return job.FilterConfig{
		Kind:   filter.KindList,
		Params: job.FilterParams{DimensionName: strings.TrimSpace(dim), Values: values},
	}, nil
}

// ParsePoint2D parses "lat_dim,lon_dim:lat,lon:tolerance".
func ParsePoint2D(s string) (job.FilterConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return job.FilterConfig{}, errs.Configf(s, "--point2d wants lat_dim,lon_dim:lat,lon:tolerance")
	}
	dims := splitNames(parts[0])
	if len(dims) != 2 {
		return job.FilterConfig{}, errs.Configf(s, "--point2d wants two dimension names")
	}
	coords, err := parseFloats(parts[1])
	if err != nil || len(coords) != 2 {
		return job.FilterConfig{}, errs.Configf(s, "--point2d wants a lat,lon point")
	}
	tol, err := parseFloat(parts[2])
	if err != nil {
		return job.FilterConfig{}, errs.Configf(s, "--point2d tolerance: %v", err)
	}
	return job.FilterConfig{
		Kind: filter.KindPoint2D,
		Params: job.FilterParams{
			LatDimensionName: dims[0],
			LonDimensionName: dims[1],
			Points:           [][2]float64{{coords[0], coords[1]}},
			Tolerance:        job.Float(tol),
		},
	}, nil
}

// ParsePoint3D parses "time_dim,lat_dim,lon_dim:time,lat,lon:tolerance".
func ParsePoint3D(s string) (job.FilterConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return job.FilterConfig{}, errs.Configf(s, "--point3d wants time_dim,lat_dim,lon_dim:time,lat,lon:tolerance")
	}
	dims := splitNames(parts[0])
	if len(dims) != 3 {
		return job.FilterConfig{}, errs.Configf(s, "--point3d wants three dimension names")
	}
	coords, err := parseFloats(parts[1])
	if err != nil || len(coords) != 3 {
		return job.FilterConfig{}, errs.Configf(s, "--point3d wants a time,lat,lon point")
	}
	tol, err := parseFloat(parts[2])
	if err != nil {
		return job.FilterConfig{}, errs.Configf(s, "--point3d tolerance: %v", err)
	}
	return job.FilterConfig{
		Kind: filter.KindPoint3D,
		Params: job.FilterParams{
			TimeDimensionName: dims[0],
			LatDimensionName:  dims[1],
			LonDimensionName:  dims[2],
			Steps:             []float64{coords[0]},
			Points:            [][2]float64{{coords[1], coords[2]}},
			Tolerance:         job.Float(tol),
		},
	}, nil
}

// ParseRename parses "old:new".
func ParseRename(s string) (job.ProcessorConfig, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok || from == "" || to == "" {
		return job.ProcessorConfig{}, errs.Configf(s, "--rename wants old:new")
	}
	return job.ProcessorConfig{
		Type:     pipeline.TypeRenameColumns,
		Mappings: map[string]string{from: to},
	}, nil
}

// ParseUnitConvert parses "column:from:to".
func ParseUnitConvert(s string) (job.ProcessorConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return job.ProcessorConfig{}, errs.Configf(s, "--unit-convert wants column:from:to")
	}
	return job.ProcessorConfig{
		Type:     pipeline.TypeUnitConvert,
		Column:   parts[0],
		FromUnit: parts[1],
		ToUnit:   parts[2],
	}, nil
}

// KelvinToCelsius is the --kelvin-to-celsius shorthand.
func KelvinToCelsius(column string) job.ProcessorConfig {
	return job.ProcessorConfig{
		Type:     pipeline.TypeUnitConvert,
		Column:   column,
		FromUnit: "kelvin",
		ToUnit:   "celsius",
	}
}

// ParseFormula parses "target:expression:src1,src2". The expression may not
// contain ':'.
func ParseFormula(s string) (job.ProcessorConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
		return job.ProcessorConfig{}, errs.Configf(s, "--formula wants target:expression:src1,src2")
	}
	return job.ProcessorConfig{
		Type:          pipeline.TypeApplyFormula,
		TargetColumn:  parts[0],
		Formula:       parts[1],
		SourceColumns: splitNames(parts[2]),
	}, nil
}

// Inline collects the values of the repeatable inline flags. Filters keep
// their kind order (range, list, point2d, point3d); processors run renames
// first, then unit conversions, then formulas.
type Inline struct {
	Ranges          []string
	Lists           []string
	Points2D        []string
	Points3D        []string
	Renames         []string
	UnitConverts    []string
	KelvinToCelsius []string
	Formulas        []string
}

// Empty reports whether no inline flag was given.
func (in Inline) Empty() bool {
	return len(in.Ranges)+len(in.Lists)+len(in.Points2D)+len(in.Points3D)+
		len(in.Renames)+len(in.UnitConverts)+len(in.KelvinToCelsius)+len(in.Formulas) == 0
}

// Apply appends the inline filters and processors to cfg.
func (in Inline) Apply(cfg *job.Config) error {
	filterParsers := []struct {
		values []string
		parse  func(string) (job.FilterConfig, error)
	}{
		{in.Ranges, ParseRange},
		{in.Lists, ParseList},
		{in.Points2D, ParsePoint2D},
		{in.Points3D, ParsePoint3D},
	}
	for _, fp := range filterParsers {
		for _, v := range fp.values {
			fc, err := fp.parse(v)
			if err != nil {
				return err
			}
			cfg.Filters = append(cfg.Filters, fc)
		}
	}

	var procs []job.ProcessorConfig
	renames := map[string]string{}
	for _, v := range in.Renames {
		pc, err := ParseRename(v)
		if err != nil {
			return err
		}
		for k, nv := range pc.Mappings {
			renames[k] = nv
		}
	}
	if len(renames) > 0 {
		procs = append(procs, job.ProcessorConfig{Type: pipeline.TypeRenameColumns, Mappings: renames})
	}
	for _, v := range in.UnitConverts {
		pc, err := ParseUnitConvert(v)
		if err != nil {
			return err
		}
		procs = append(procs, pc)
	}
	for _, col := range in.KelvinToCelsius {
		procs = append(procs, KelvinToCelsius(col))
	}
	for _, v := range in.Formulas {
		pc, err := ParseFormula(v)
		if err != nil {
			return err
		}
		procs = append(procs, pc)
	}

	if len(procs) == 0 {
		return nil
	}
	if cfg.Postprocessing == nil {
		cfg.Postprocessing = &job.PipelineConfig{}
	}
	cfg.Postprocessing.Processors = append(cfg.Postprocessing.Processors, procs...)
	return nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, p := range strings.Split(s, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		v, err := parseFloat(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no values")
	}
	return out, nil
}

func splitNames(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
