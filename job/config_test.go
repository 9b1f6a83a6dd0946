package job

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/pipeline"
)

const jsonJob = `{
  "nc_key": "s3://bucket/in.nc",
  "variable_name": "t2m",
  "parquet_key": "out.parquet",
  "filters": [
    {"kind": "range", "params": {"dimension_name": "lat", "min_value": -10, "max_value": 10.5}},
    {"kind": "list", "params": {"dimension_name": "time", "values": [0, 6]}},
    {"kind": "2d_point", "params": {"lat_dimension_name": "lat", "lon_dimension_name": "lon", "points": [[1, 2]], "tolerance": 0.25}}
  ],
  "postprocessing": {
    "name": "daily",
    "processors": [
      {"type": "rename_columns", "mappings": {"t2m": "temp"}},
      {"type": "aggregate", "group_by": ["lat"], "aggregations": {"temp": "mean", "lat": ["min", "max"]}}
    ]
  }
}`

const yamlJob = `
nc_key: in.nc
variable_name: t2m
parquet_key: out.parquet
filters:
  - kind: 3d_point
    params:
      time_dimension_name: time
      lat_dimension_name: lat
      lon_dimension_name: lon
      steps: [0, 1]
      points:
        - [40.5, -3.25]
      tolerance: 0.1
postprocessing:
  processors:
    - type: datetime_convert
      column: time
      base: "1970-01-01"
      unit: hours
    - type: apply_formula
      target_column: t_c
      formula: t2m - 273.15
      source_columns: [t2m]
`

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(jsonJob), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/in.nc", cfg.NCKey)
	assert.Equal(t, "daily", cfg.Name())

	specs, err := cfg.FilterSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, filter.Range{Dimension: "lat", Min: -10, Max: 10.5}, specs[0])
	assert.Equal(t, filter.List{Dimension: "time", Values: []float64{0, 6}}, specs[1])
	assert.Equal(t, filter.Point2D{
		LatDimension: "lat",
		LonDimension: "lon",
		Points:       []filter.Point{{Lat: 1, Lon: 2}},
		Tolerance:    0.25,
	}, specs[2])

	procs, err := cfg.ProcessorSpecs()
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, pipeline.RenameColumns{Mapping: map[string]string{"t2m": "temp"}}, procs[0])
	assert.Equal(t, pipeline.Aggregate{
		Keys: []string{"lat"},
		Reductions: []pipeline.Reduction{
			{Column: "lat", Reducer: "min"},
			{Column: "lat", Reducer: "max"},
			{Column: "temp", Reducer: "mean"},
		},
	}, procs[1])
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(yamlJob), FormatYAML)
	require.NoError(t, err)

	specs, err := cfg.FilterSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	p3, ok := specs[0].(filter.Point3D)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1}, p3.Steps)
	assert.Equal(t, []filter.Point{{Lat: 40.5, Lon: -3.25}}, p3.Points)
	assert.InDelta(t, 0.1, p3.Tolerance, 1e-12)

	procs, err := cfg.ProcessorSpecs()
	require.NoError(t, err)
	dt, ok := procs[0].(pipeline.DatetimeConvert)
	require.True(t, ok)
	assert.Equal(t, int64(0), dt.Base.Unix())
	assert.Equal(t, "hours", dt.Unit)
	assert.Equal(t, pipeline.ApplyFormula{Target: "t_c", Formula: "t2m - 273.15", Sources: []string{"t2m"}}, procs[1])
}

func TestParseSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{
			name: "missing variable",
			doc:  `{"nc_key": "a.nc", "parquet_key": "b.parquet"}`,
			path: "/",
		},
		{
			name: "unknown filter kind",
			doc:  `{"nc_key": "a.nc", "variable_name": "v", "parquet_key": "b", "filters": [{"kind": "box", "params": {}}]}`,
			path: "/filters/0/kind",
		},
		{
			name: "range without max",
			doc:  `{"nc_key": "a.nc", "variable_name": "v", "parquet_key": "b", "filters": [{"kind": "range", "params": {"dimension_name": "lat", "min_value": 1}}]}`,
			path: "/filters/0/params",
		},
		{
			name: "negative tolerance",
			doc: `{"nc_key": "a.nc", "variable_name": "v", "parquet_key": "b", "filters": [{"kind": "2d_point", "params":
				{"lat_dimension_name": "lat", "lon_dimension_name": "lon", "points": [[0, 0]], "tolerance": -1}}]}`,
			path: "/filters/0/params/tolerance",
		},
		{
			name: "unknown reducer",
			doc: `{"nc_key": "a.nc", "variable_name": "v", "parquet_key": "b", "postprocessing": {"processors": [
				{"type": "aggregate", "group_by": [], "aggregations": {"v": "median"}}]}}`,
			path: "/postprocessing/processors/0/aggregations/v",
		},
		{
			name: "unknown top-level key",
			doc:  `{"nc_key": "a.nc", "variable_name": "v", "parquet_key": "b", "output": "x"}`,
			path: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrConfig)

			var se *SchemaError
			require.True(t, errors.As(err, &se), "got %T: %v", err, err)
			require.NotEmpty(t, se.Violations)
			paths := make([]string, len(se.Violations))
			for i, v := range se.Violations {
				paths[i] = v.Path
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"nc_key": `), FormatJSON)
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = Parse([]byte("nc_key: [unterminated"), FormatYAML)
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = Parse([]byte("  \n"), FormatYAML)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestFilterSpecsNamesFailingEntry(t *testing.T) {
	cfg := &Config{Filters: []FilterConfig{
		rangeFilter("lat", 0, 1),
		{Kind: filter.KindList, Params: FilterParams{Values: []float64{1}}},
	}}
	_, err := cfg.FilterSpecs()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfig)
	assert.Contains(t, err.Error(), "filter[1] list")
}

func TestProcessorSpecsBadBase(t *testing.T) {
	cfg := &Config{Postprocessing: &PipelineConfig{Processors: []ProcessorConfig{
		{Type: pipeline.TypeDatetimeConvert, Column: "time", Base: "yesterday", Unit: "days"},
	}}}
	_, err := cfg.ProcessorSpecs()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfig)
	assert.Contains(t, err.Error(), "processor[0] datetime_convert")
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		data string
		want Format
	}{
		{"job.json", "nc_key: x", FormatJSON},
		{"job.YAML", "{}", FormatYAML},
		{"job.yml", "", FormatYAML},
		{"job.conf", "  {\"nc_key\": 1}", FormatJSON},
		{"job.conf", "nc_key: a", FormatYAML},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectFormat(tt.path, []byte(tt.data)), tt.path)
	}
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/jobs/a.yaml", []byte(yamlJob), 0o644))

	cfg, err := LoadFile(fs, "/jobs/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "t2m", cfg.VariableName)

	_, err = LoadFile(fs, "/jobs/missing.yaml")
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestTemplatesRoundTrip(t *testing.T) {
	r := NewRunner(nil)
	require.Equal(t, []string{"basic", "multi-filter", "postprocessing", "s3"}, TemplateNames())

	for _, name := range TemplateNames() {
		for _, format := range []Format{FormatJSON, FormatYAML} {
			t.Run(name+"/"+string(format), func(t *testing.T) {
				cfg, err := Template(name)
				require.NoError(t, err)
				require.NoError(t, r.Validate(cfg))

				data, err := Marshal(cfg, format)
				require.NoError(t, err)
				back, err := Parse(data, format)
				require.NoError(t, err)
				assert.Equal(t, cfg, back)
			})
		}
	}

	_, err := Template("nope")
	assert.ErrorIs(t, err, errs.ErrConfig)
}
