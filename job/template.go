package job

import (
	"sort"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/pipeline"
)

var templates = map[string]func() *Config{
	"basic": func() *Config {
		return &Config{
			NCKey:        "input.nc",
			VariableName: "temperature",
			ParquetKey:   "output.parquet",
			Filters: []FilterConfig{
				{Kind: filter.KindRange, Params: FilterParams{DimensionName: "lat", MinValue: Float(30), MaxValue: Float(60)}},
			},
		}
	},
	"s3": func() *Config {
		return &Config{
			NCKey:        "s3://my-bucket/climate/input.nc",
			VariableName: "temperature",
			ParquetKey:   "s3://my-bucket/climate/output.parquet",
			Filters: []FilterConfig{
				{Kind: filter.KindRange, Params: FilterParams{DimensionName: "time", MinValue: Float(0), MaxValue: Float(23)}},
			},
		}
	},
	"multi-filter": func() *Config {
		return &Config{
			NCKey:        "input.nc",
			VariableName: "temperature",
			ParquetKey:   "output.parquet",
			Filters: []FilterConfig{
				{Kind: filter.KindList, Params: FilterParams{DimensionName: "time", Values: []float64{0, 6, 12, 18}}},
				{Kind: filter.KindRange, Params: FilterParams{DimensionName: "lat", MinValue: Float(-30), MaxValue: Float(30)}},
				{Kind: filter.KindPoint2D, Params: FilterParams{
					LatDimensionName: "lat",
					LonDimensionName: "lon",
					Points:           [][2]float64{{0, 0}, {10, 20}},
					Tolerance:        Float(0.5),
				}},
			},
		}
	},
	"postprocessing": func() *Config {
		return &Config{
			NCKey:        "input.nc",
			VariableName: "temperature",
			ParquetKey:   "output.parquet",
			Filters: []FilterConfig{
				{Kind: filter.KindRange, Params: FilterParams{DimensionName: "lat", MinValue: Float(30), MaxValue: Float(60)}},
			},
			Postprocessing: &PipelineConfig{
				Name: "celsius-daily",
				Processors: []ProcessorConfig{
					{Type: pipeline.TypeUnitConvert, Column: "temperature", FromUnit: "kelvin", ToUnit: "celsius"},
					{Type: pipeline.TypeDatetimeConvert, Column: "time", Base: "2000-01-01T00:00:00Z", Unit: "hours"},
					{Type: pipeline.TypeRenameColumns, Mappings: map[string]string{"temperature": "temp_c"}},
					{Type: pipeline.TypeAggregate, GroupBy: []string{"lat", "lon"}, Aggregations: map[string]Aggregations{
						"temp_c": {"mean", "max"},
					}},
				},
			},
		}
	},
}

// TemplateNames lists the starter job templates.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Template returns a fresh copy of the named starter job.
func Template(name string) (*Config, error) {
	mk, ok := templates[name]
	if !ok {
		return nil, errs.Configf(name, "unknown template")
	}
	return mk(), nil
}
