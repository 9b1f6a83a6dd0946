package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/storage"
	"github.com/vegasq/nc2parquet/table"
)

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func sample(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.NewFloat64("lat", []float64{40.5, 41, math.NaN()}),
		table.NewInt64("count", []int64{3, 1, 7}),
		table.NewTimestamp("time_datetime", []int64{day.UnixNano(), day.Add(time.Hour).UnixNano(), 0}),
	)
	require.NoError(t, err)
	return tbl
}

func openInfo(t *testing.T, fs afero.Fs, path string) (*ParquetInfo, []map[string]any) {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	st, err := f.Stat()
	require.NoError(t, err)

	info, err := Inspect(f, st.Size())
	require.NoError(t, err)
	rows, err := ReadRows(f, st.Size(), -1)
	require.NoError(t, err)
	return info, rows
}

func TestParquetSinkRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink := NewParquetSink(storage.NewLocal(fs), ParquetOptions{
		Metadata: map[string]string{"source": "in.nc", "variable": "t2m"},
	})

	require.NoError(t, sink.Write(context.Background(), sample(t), "/out/result.parquet"))

	info, rows := openInfo(t, fs, "/out/result.parquet")
	assert.EqualValues(t, 3, info.Rows)
	assert.Equal(t, "t2m", info.Metadata["variable"])

	byName := make(map[string]ColumnInfo)
	var names []string
	for _, c := range info.Columns {
		byName[c.Name] = c
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"lat", "count", "time_datetime"}, names)
	assert.Equal(t, "DOUBLE", byName["lat"].PhysicalType)
	assert.Equal(t, "float64", byName["lat"].Type)
	assert.Equal(t, "INT64", byName["count"].PhysicalType)
	assert.Equal(t, "INT64", byName["time_datetime"].PhysicalType)
	assert.Equal(t, "timestamp", byName["time_datetime"].Type)
	assert.Contains(t, byName["time_datetime"].LogicalType, "TIMESTAMP")
	for _, c := range info.Columns {
		assert.True(t, c.Required, c.Name)
	}

	require.Len(t, rows, 3)
	assert.Equal(t, 40.5, rows[0]["lat"])
	assert.Equal(t, int64(3), rows[0]["count"])
	assert.Equal(t, int64(7), rows[2]["count"])
	assert.True(t, math.IsNaN(rows[2]["lat"].(float64)))
}

func TestParquetSinkKeepsColumnOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl := table.MustNew(
		table.NewFloat64("time", []float64{0, 6}),
		table.NewFloat64("lat", []float64{10, 20}),
		table.NewFloat64("temp", []float64{280, 290}),
		table.NewFloat64("celsius", []float64{6.85, 16.85}),
		table.NewFloat64("-", []float64{1, 2}),
	)
	require.NoError(t, NewParquetSink(storage.NewLocal(fs), ParquetOptions{}).Write(context.Background(), tbl, "/order.parquet"))

	info, rows := openInfo(t, fs, "/order.parquet")
	var names []string
	for _, c := range info.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, tbl.Names(), names)
	require.Len(t, rows, 2)
	assert.Equal(t, 290.0, rows[1]["temp"])
	assert.Equal(t, 16.85, rows[1]["celsius"])
	assert.Equal(t, 2.0, rows[1]["-"])
}

func TestParquetSchemaRejectsComma(t *testing.T) {
	tbl := table.MustNew(table.NewFloat64("a,b", []float64{1}))
	_, err := Schema(tbl)
	assert.ErrorIs(t, err, errs.ErrConfig)

	var buf bytes.Buffer
	err = WriteParquet(context.Background(), &buf, tbl, ParquetOptions{})
	assert.ErrorIs(t, err, errs.ErrConfig)
	assert.Zero(t, buf.Len())
}

func TestParquetSinkEmptyTable(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl, err := table.New(table.NewFloat64("lat", nil), table.NewFloat64("t2m", nil))
	require.NoError(t, err)

	require.NoError(t, NewParquetSink(storage.NewLocal(fs), ParquetOptions{}).Write(context.Background(), tbl, "/empty.parquet"))
	info, rows := openInfo(t, fs, "/empty.parquet")
	assert.Zero(t, info.Rows)
	assert.Len(t, info.Columns, 2)
	assert.Empty(t, rows)
}

func TestParquetSinkCompression(t *testing.T) {
	for _, name := range []string{"zstd", "snappy", "gzip", "none"} {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			sink := NewParquetSink(storage.NewLocal(fs), ParquetOptions{Compression: name, RowGroupRows: 2})
			require.NoError(t, sink.Write(context.Background(), sample(t), "/c.parquet"))
			info, _ := openInfo(t, fs, "/c.parquet")
			assert.EqualValues(t, 3, info.Rows)
			assert.GreaterOrEqual(t, info.RowGroups, 1)
		})
	}

	_, err := Codec("lzo")
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestParquetSinkAbortsOnFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())

	sink := NewParquetSink(storage.NewLocal(fs), ParquetOptions{})
	cancel()
	err := sink.Write(ctx, sample(t), "/out/result.parquet")
	require.ErrorIs(t, err, context.Canceled)

	ok, err := afero.Exists(fs, "/out/result.parquet")
	require.NoError(t, err)
	assert.False(t, ok)
	entries, _ := afero.ReadDir(fs, "/out")
	assert.Empty(t, entries, "no staged leftovers")
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(sample(t)))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"lat", "count", "time_datetime"},
		{"40.5", "3", "2024-01-02T00:00:00Z"},
		{"41", "1", "2024-01-02T01:00:00Z"},
		{"NaN", "7", "1970-01-01T00:00:00Z"},
	}, records)
}

func TestCSVFormatterSanitizesHeader(t *testing.T) {
	var buf bytes.Buffer
	tbl := table.MustNew(table.NewFloat64("=cmd", []float64{1}))
	require.NoError(t, NewCSVFormatter(&buf).Format(tbl))
	assert.True(t, strings.HasPrefix(buf.String(), "'=cmd\n"))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).Format(sample(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, 40.5, first["lat"])
	assert.Equal(t, float64(3), first["count"])
	assert.Equal(t, "2024-01-02T00:00:00Z", first["time_datetime"])

	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.Nil(t, last["lat"], "NaN is written as null")
}

func TestFormatSink(t *testing.T) {
	ctx := context.Background()

	t.Run("stdout", func(t *testing.T) {
		var buf bytes.Buffer
		sink := &FormatSink{Format: FormatJSONL, Stdout: &buf}
		require.NoError(t, sink.Write(ctx, sample(t), "-"))
		assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
	})

	t.Run("file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		sink := &FormatSink{Format: FormatCSV, Backend: storage.NewLocal(fs)}
		require.NoError(t, sink.Write(ctx, sample(t), "/out.csv"))
		data, err := afero.ReadFile(fs, "/out.csv")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "lat,count,time_datetime\n"))
	})

	t.Run("unknown format", func(t *testing.T) {
		sink := &FormatSink{Format: "xml", Stdout: &bytes.Buffer{}}
		assert.ErrorIs(t, sink.Write(ctx, sample(t), "-"), errs.ErrConfig)
	})
}
