package output

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/storage"
	"github.com/vegasq/nc2parquet/table"
)

// Sink receives the final table of a job.
type Sink interface {
	Write(ctx context.Context, t *table.Table, dest string) error
}

// ParquetOptions tunes the Parquet encoding.
type ParquetOptions struct {
	// Compression is one of zstd (default), snappy, gzip, brotli, lz4 or none.
	Compression string
	// RowGroupRows caps the rows per row group; zero leaves the library default.
	RowGroupRows int64
	// Metadata is stored as file key/value metadata.
	Metadata map[string]string
}

// writeBatch is the number of rows handed to the writer at once.
const writeBatch = 4096

var codecs = map[string]compress.Codec{
	"":       &parquet.Zstd,
	"zstd":   &parquet.Zstd,
	"snappy": &parquet.Snappy,
	"gzip":   &parquet.Gzip,
	"brotli": &parquet.Brotli,
	"lz4":    &parquet.Lz4Raw,
	"none":   &parquet.Uncompressed,
}

// Codec returns the compression codec registered under name.
func Codec(name string) (compress.Codec, error) {
	c, ok := codecs[strings.ToLower(name)]
	if !ok {
		return nil, errs.Configf(name, "unknown parquet compression")
	}
	return c, nil
}

// ParquetSink writes tables as Parquet files through a storage backend.
type ParquetSink struct {
	Backend storage.Backend
	Options ParquetOptions
}

// NewParquetSink returns a sink writing through b.
func NewParquetSink(b storage.Backend, opts ParquetOptions) *ParquetSink {
	return &ParquetSink{Backend: b, Options: opts}
}

// Write stages dest, encodes t into it and commits. On any failure the
// staged file is discarded.
func (s *ParquetSink) Write(ctx context.Context, t *table.Table, dest string) error {
	staged, err := s.Backend.Stage(ctx, dest)
	if err != nil {
		return err
	}
	if err := WriteParquet(ctx, staged, t, s.Options); err != nil {
		_ = staged.Abort()
		return err
	}
	if err := staged.Commit(ctx); err != nil {
		_ = staged.Abort()
		return err
	}
	return nil
}

// Schema returns the Parquet schema of t with one required leaf per column
// in table order. The schema is derived from a generated struct type because
// parquet.Group sorts its fields by name.
func Schema(t *table.Table) (*parquet.Schema, error) {
	fields := make([]reflect.StructField, 0, t.Width())
	for i, c := range t.Columns() {
		if c.Name == "" || strings.Contains(c.Name, ",") {
			return nil, errs.Configf(c.Name, "column name cannot be used in a parquet schema")
		}
		fields = append(fields, reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: goType(c.Kind),
			// the trailing comma keeps a column named "-"
			Tag: reflect.StructTag(`parquet:` + strconv.Quote(c.Name+",")),
		})
	}
	model := reflect.New(reflect.StructOf(fields)).Interface()
	return parquet.NewSchema("nc2parquet", parquet.SchemaOf(model)), nil
}

var timeType = reflect.TypeOf(time.Time{})

func goType(k table.Kind) reflect.Type {
	switch k {
	case table.Int64:
		return reflect.TypeOf(int64(0))
	case table.Timestamp:
		// nanosecond TIMESTAMP
		return timeType
	default:
		return reflect.TypeOf(float64(0))
	}
}

// WriteParquet encodes t to w.
func WriteParquet(ctx context.Context, w io.Writer, t *table.Table, opts ParquetOptions) error {
	if t.Width() == 0 {
		return errs.Configf("", "cannot write a table without columns")
	}
	codec, err := Codec(opts.Compression)
	if err != nil {
		return err
	}

	schema, err := Schema(t)
	if err != nil {
		return err
	}
	cols := t.Columns()
	index := make([]int, len(cols))
	for i, c := range cols {
		lc, ok := schema.Lookup(c.Name)
		if !ok {
			return fmt.Errorf("column %q missing from parquet schema", c.Name)
		}
		index[i] = lc.ColumnIndex
	}

	wopts := []parquet.WriterOption{schema, parquet.Compression(codec)}
	if opts.RowGroupRows > 0 {
		wopts = append(wopts, parquet.MaxRowsPerRowGroup(opts.RowGroupRows))
	}
	for _, k := range sortedKeys(opts.Metadata) {
		wopts = append(wopts, parquet.KeyValueMetadata(k, opts.Metadata[k]))
	}
	pw := parquet.NewWriter(w, wopts...)

	rows := make([]parquet.Row, 0, writeBatch)
	for start := 0; start < t.Len(); start += writeBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+writeBatch, t.Len())
		rows = rows[:0]
		for r := start; r < end; r++ {
			row := make(parquet.Row, len(cols))
			for i, c := range cols {
				row[index[i]] = value(c, r).Level(0, 0, index[i])
			}
			rows = append(rows, row)
		}
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func value(c *table.Column, row int) parquet.Value {
	if c.Kind == table.Float64 {
		return parquet.DoubleValue(c.Floats[row])
	}
	return parquet.Int64Value(c.Ints[row])
}
