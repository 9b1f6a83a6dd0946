package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/internal/cli"
	"github.com/vegasq/nc2parquet/job"
	"github.com/vegasq/nc2parquet/reader"
)

type testApp struct {
	*app
	out *bytes.Buffer
	err *bytes.Buffer
	env map[string]string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	ta := &testApp{app: newApp(out, errOut), out: out, err: errOut, env: map[string]string{}}
	ta.fs = afero.NewMemMapFs()
	ta.getenv = func(k string) string { return ta.env[k] }

	m := reader.NewMemory(reader.Dimension{Name: "lat", Len: 3}, reader.Dimension{Name: "lon", Len: 2})
	require.NoError(t, m.AddCoordinate("lat", []float64{-10, 0, 10}))
	require.NoError(t, m.AddCoordinate("lon", []float64{100, 110}))
	require.NoError(t, m.AddVariable("t2m", []string{"lat", "lon"}, []float64{270, 271, 280, 281, 290, 291}, map[string]string{"units": "K"}))
	m.SetAttribute("title", "fixture")
	ta.open = func(_ context.Context, path string) (reader.Provider, error) {
		if path != "in.nc" {
			return nil, errs.IO(path, false, assert.AnError)
		}
		return m, nil
	}
	return ta
}

func (ta *testApp) run(args ...string) error {
	root := ta.root()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestConvertInline(t *testing.T) {
	ta := newTestApp(t)
	err := ta.run("convert", "in.nc", "/out/t.parquet", "--variable", "t2m",
		"--range", "lat:0:10", "--kelvin-to-celsius", "t2m", "--log-format", "json", "-q")
	require.NoError(t, err, ta.err.String())

	exists, err := afero.Exists(ta.fs, "/out/t.parquet")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, ta.out.String())
}

func TestConvertToStdout(t *testing.T) {
	ta := newTestApp(t)
	ta.env[EnvVariable] = "t2m"
	err := ta.run("convert", "in.nc", "-", "--list", "lat:10", "--format", "jsonl",
		"--formula", "f:t2m * 1.8 - 459.67:t2m")
	require.NoError(t, err, ta.err.String())

	lines := strings.Split(strings.TrimSpace(ta.out.String()), "\n")
	require.Len(t, lines, 2)
	var row map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, 10.0, row["lat"])
	assert.InDelta(t, 62.33, row["f"], 1e-9)
	assert.Contains(t, ta.err.String(), "Wrote 2 rows")
}

func TestConvertConfigFromEnv(t *testing.T) {
	ta := newTestApp(t)
	cfg := &job.Config{NCKey: "in.nc", VariableName: "t2m", ParquetKey: "/out/a.parquet"}
	data, err := job.Marshal(cfg, job.FormatYAML)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(ta.fs, "/jobs/a.yaml", data, 0o644))
	ta.env[EnvConfig] = "/jobs/a.yaml"

	require.NoError(t, ta.run("convert", "--dry-run", "--point2d", "lat,lon:0.1,100.1:0.5"), ta.err.String())
	assert.Contains(t, ta.out.String(), "Dry run")
	assert.Contains(t, ta.out.String(), "Rows to extract: 1")

	exists, _ := afero.Exists(ta.fs, "/out/a.parquet")
	assert.False(t, exists)
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{"missing variable", []string{"convert", "in.nc", "out.parquet"}, cli.ExitConfigError, "variable are required"},
		{"bad inline filter", []string{"convert", "in.nc", "out.parquet", "--variable", "t2m", "--range", "lat:1"}, cli.ExitConfigError, "--range"},
		{"unknown dimension", []string{"convert", "in.nc", "out.parquet", "--variable", "t2m", "--range", "depth:0:1"}, cli.ExitConfigError, "filter[0] range"},
		{"bad compression", []string{"convert", "in.nc", "out.parquet", "--variable", "t2m", "--compression", "zip"}, cli.ExitConfigError, "compression"},
		{"missing input", []string{"convert", "nope.nc", "out.parquet", "--variable", "t2m"}, cli.ExitRuntimeError, "nope.nc"},
		{"verbose and quiet", []string{"convert", "-v", "-q"}, cli.ExitRuntimeError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			err := ta.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, cli.ExitCode(err))
			if tt.msg != "" {
				assert.Contains(t, ta.err.String(), tt.msg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.run("template", "postprocessing", "-o", "/jobs/p.yaml"))
	require.NoError(t, ta.run("validate", "--detailed", "/jobs/p.yaml"))
	assert.Contains(t, ta.out.String(), "Configuration is valid")
	assert.Contains(t, ta.out.String(), "Pipeline: celsius-daily, 4 processors")

	require.NoError(t, afero.WriteFile(ta.fs, "/jobs/bad.json", []byte(`{"nc_key": "a.nc"}`), 0o644))
	err := ta.run("validate", "/jobs/bad.json")
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfigError, cli.ExitCode(err))
	assert.Contains(t, ta.err.String(), "Validation errors")
}

func TestTemplate(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.run("template", "s3", "--format", "json"))

	cfg, err := job.Parse(ta.out.Bytes(), job.FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cfg.NCKey, "s3://"))

	err = ta.run("template", "nope")
	assert.Equal(t, cli.ExitConfigError, cli.ExitCode(err))
}

func TestInfoNetCDF(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.run("info", "in.nc", "--format", "json", "--detailed"))

	var info reader.Info
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &info))
	assert.Equal(t, 2, info.TotalDimensions)
	assert.Equal(t, "fixture", info.GlobalAttributes["title"])

	err := ta.run("info", "in.nc", "--variable", "sst")
	assert.Equal(t, cli.ExitConfigError, cli.ExitCode(err))
}

func TestInfoParquet(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.run("convert", "in.nc", "/out/t.parquet", "--variable", "t2m", "-q"))
	ta.out.Reset()

	require.NoError(t, ta.run("info", "/out/t.parquet", "--preview", "2"), ta.err.String())
	out := ta.out.String()
	assert.Contains(t, out, "Rows: 6")
	assert.Contains(t, out, "nc2parquet.variable: t2m")
	assert.Contains(t, out, "First 2 rows")
}
