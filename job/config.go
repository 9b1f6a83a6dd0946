// Package job loads job configurations and runs them: open the input,
// evaluate the filters, extract the selected rows, run the post-processing
// pipeline and write the result.
package job

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/pipeline"
)

// Config is one conversion job as written in a job file.
type Config struct {
	NCKey          string          `json:"nc_key" yaml:"nc_key"`
	VariableName   string          `json:"variable_name" yaml:"variable_name"`
	ParquetKey     string          `json:"parquet_key" yaml:"parquet_key"`
	Filters        []FilterConfig  `json:"filters" yaml:"filters"`
	Postprocessing *PipelineConfig `json:"postprocessing,omitempty" yaml:"postprocessing,omitempty"`
}

// FilterConfig is a filter entry: a kind and its parameters.
type FilterConfig struct {
	Kind   string       `json:"kind" yaml:"kind"`
	Params FilterParams `json:"params" yaml:"params"`
}

// FilterParams holds the parameters of every filter kind; each kind reads
// its own subset.
type FilterParams struct {
	DimensionName     string       `json:"dimension_name,omitempty" yaml:"dimension_name,omitempty"`
	MinValue          *float64     `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue          *float64     `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	Values            []float64    `json:"values,omitempty" yaml:"values,omitempty"`
	TimeDimensionName string       `json:"time_dimension_name,omitempty" yaml:"time_dimension_name,omitempty"`
	LatDimensionName  string       `json:"lat_dimension_name,omitempty" yaml:"lat_dimension_name,omitempty"`
	LonDimensionName  string       `json:"lon_dimension_name,omitempty" yaml:"lon_dimension_name,omitempty"`
	Steps             []float64    `json:"steps,omitempty" yaml:"steps,omitempty"`
	Points            [][2]float64 `json:"points,omitempty" yaml:"points,omitempty"`
	Tolerance         *float64     `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

// PipelineConfig is the optional post-processing section.
type PipelineConfig struct {
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Processors []ProcessorConfig `json:"processors" yaml:"processors"`
}

// ProcessorConfig is a processor entry tagged by Type.
type ProcessorConfig struct {
	Type string `json:"type" yaml:"type"`

	// rename_columns
	Mappings map[string]string `json:"mappings,omitempty" yaml:"mappings,omitempty"`

	// unit_convert, datetime_convert
	Column   string `json:"column,omitempty" yaml:"column,omitempty"`
	FromUnit string `json:"from_unit,omitempty" yaml:"from_unit,omitempty"`
	ToUnit   string `json:"to_unit,omitempty" yaml:"to_unit,omitempty"`
	Base     string `json:"base,omitempty" yaml:"base,omitempty"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// aggregate
	GroupBy      []string                `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	Aggregations map[string]Aggregations `json:"aggregations,omitempty" yaml:"aggregations,omitempty"`

	// apply_formula
	TargetColumn  string   `json:"target_column,omitempty" yaml:"target_column,omitempty"`
	Formula       string   `json:"formula,omitempty" yaml:"formula,omitempty"`
	SourceColumns []string `json:"source_columns,omitempty" yaml:"source_columns,omitempty"`
}

// Aggregations lists the reducers applied to one column. In job files it
// is either a single reducer name or a list of names.
type Aggregations []string

func (a *Aggregations) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*a = Aggregations{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("aggregation must be a reducer name or a list of names: %w", err)
	}
	*a = many
	return nil
}

func (a Aggregations) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

func (a Aggregations) MarshalYAML() (any, error) {
	if len(a) == 1 {
		return a[0], nil
	}
	return []string(a), nil
}

func (a *Aggregations) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*a = Aggregations{node.Value}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return err
	}
	*a = many
	return nil
}

// Name returns the post-processing pipeline name, if any.
func (c *Config) Name() string {
	if c.Postprocessing == nil {
		return ""
	}
	return c.Postprocessing.Name
}

// FilterSpecs converts the filter entries into filter specs and validates
// their parameters.
func (c *Config) FilterSpecs() ([]filter.Spec, error) {
	specs := make([]filter.Spec, 0, len(c.Filters))
	for i, fc := range c.Filters {
		op := fmt.Sprintf("filter[%d] %s", i, fc.Kind)
		s, err := fc.Spec()
		if err != nil {
			return nil, errs.WithOp(op, errs.ErrConfig, err)
		}
		if err := s.Validate(); err != nil {
			return nil, errs.WithOp(op, errs.ErrConfig, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// Spec converts one filter entry.
func (fc FilterConfig) Spec() (filter.Spec, error) {
	p := fc.Params
	switch fc.Kind {
	case filter.KindRange:
		if p.MinValue == nil || p.MaxValue == nil {
			return nil, errs.Configf(p.DimensionName, "range filter needs min_value and max_value")
		}
		return filter.Range{Dimension: p.DimensionName, Min: *p.MinValue, Max: *p.MaxValue}, nil
	case filter.KindList:
		return filter.List{Dimension: p.DimensionName, Values: p.Values}, nil
	case filter.KindPoint2D:
		return filter.Point2D{
			LatDimension: p.LatDimensionName,
			LonDimension: p.LonDimensionName,
			Points:       points(p.Points),
			Tolerance:    deref(p.Tolerance),
		}, nil
	case filter.KindPoint3D:
		return filter.Point3D{
			TimeDimension: p.TimeDimensionName,
			LatDimension:  p.LatDimensionName,
			LonDimension:  p.LonDimensionName,
			Steps:         p.Steps,
			Points:        points(p.Points),
			Tolerance:     deref(p.Tolerance),
		}, nil
	default:
		return nil, errs.Configf(fc.Kind, "unknown filter kind")
	}
}

// ProcessorSpecs converts the post-processing entries into processor specs.
func (c *Config) ProcessorSpecs() ([]pipeline.Spec, error) {
	if c.Postprocessing == nil {
		return nil, nil
	}
	specs := make([]pipeline.Spec, 0, len(c.Postprocessing.Processors))
	for i, pc := range c.Postprocessing.Processors {
		s, err := pc.Spec()
		if err != nil {
			return nil, errs.WithOp(fmt.Sprintf("processor[%d] %s", i, pc.Type), errs.ErrConfig, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// Spec converts one processor entry.
func (pc ProcessorConfig) Spec() (pipeline.Spec, error) {
	switch pc.Type {
	case pipeline.TypeRenameColumns:
		return pipeline.RenameColumns{Mapping: pc.Mappings}, nil
	case pipeline.TypeUnitConvert:
		return pipeline.UnitConvert{Column: pc.Column, From: pc.FromUnit, To: pc.ToUnit}, nil
	case pipeline.TypeApplyFormula:
		return pipeline.ApplyFormula{Target: pc.TargetColumn, Formula: pc.Formula, Sources: pc.SourceColumns}, nil
	case pipeline.TypeDatetimeConvert:
		base, err := pipeline.ParseBase(pc.Base)
		if err != nil {
			return nil, err
		}
		return pipeline.DatetimeConvert{Column: pc.Column, Base: base, Unit: pc.Unit}, nil
	case pipeline.TypeAggregate:
		cols := make([]string, 0, len(pc.Aggregations))
		for c := range pc.Aggregations {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		var rs []pipeline.Reduction
		for _, c := range cols {
			for _, r := range pc.Aggregations[c] {
				rs = append(rs, pipeline.Reduction{Column: c, Reducer: r})
			}
		}
		return pipeline.Aggregate{Keys: pc.GroupBy, Reductions: rs}, nil
	default:
		return nil, errs.Configf(pc.Type, "unknown processor type")
	}
}

func points(ps [][2]float64) []filter.Point {
	out := make([]filter.Point, len(ps))
	for i, p := range ps {
		out[i] = filter.Point{Lat: p[0], Lon: p[1]}
	}
	return out
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Float returns a pointer to v, for building configs in code.
func Float(v float64) *float64 { return &v }
