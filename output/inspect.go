package output

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// ColumnInfo represents metadata about a single column in a Parquet file.
type ColumnInfo struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	PhysicalType string `json:"physical_type" yaml:"physical_type"`
	LogicalType  string `json:"logical_type,omitempty" yaml:"logical_type,omitempty"`
	Required     bool   `json:"required" yaml:"required"`
}

// ParquetInfo describes a Parquet file.
type ParquetInfo struct {
	Rows      int64             `json:"rows" yaml:"rows"`
	RowGroups int               `json:"row_groups" yaml:"row_groups"`
	Columns   []ColumnInfo      `json:"columns" yaml:"columns"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Inspect reads the footer of a Parquet file.
func Inspect(r io.ReaderAt, size int64) (*ParquetInfo, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	info := &ParquetInfo{
		Rows:      f.NumRows(),
		RowGroups: len(f.RowGroups()),
	}
	for _, field := range f.Schema().Fields() {
		info.Columns = append(info.Columns, columnInfo(field, "")...)
	}
	if kv := f.Metadata().KeyValueMetadata; len(kv) > 0 {
		info.Metadata = make(map[string]string, len(kv))
		for _, e := range kv {
			info.Metadata[e.Key] = e.Value
		}
	}
	return info, nil
}

// columnInfo flattens a field into its leaf columns, using dot notation for
// nested names.
func columnInfo(field parquet.Field, prefix string) []ColumnInfo {
	name := field.Name()
	if prefix != "" {
		name = prefix + "." + name
	}

	if children := field.Fields(); len(children) > 0 {
		var infos []ColumnInfo
		for _, child := range children {
			infos = append(infos, columnInfo(child, name)...)
		}
		return infos
	}

	return []ColumnInfo{{
		Name:         name,
		Type:         friendlyType(field),
		PhysicalType: physicalType(field),
		LogicalType:  logicalType(field),
		Required:     field.Required(),
	}}
}

func physicalType(field parquet.Field) string {
	if field.Type() == nil {
		return "GROUP"
	}
	switch field.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

func logicalType(field parquet.Field) string {
	if field.Type() == nil {
		return ""
	}
	lt := field.Type().LogicalType()
	if lt == nil {
		return ""
	}
	return lt.String()
}

// friendlyType names a column the way table kinds are named.
func friendlyType(field parquet.Field) string {
	if field.Type() == nil {
		return "group"
	}
	if lt := field.Type().LogicalType(); lt != nil && lt.Timestamp != nil {
		return "timestamp"
	}
	switch field.Type().Kind() {
	case parquet.Double:
		return "float64"
	case parquet.Float:
		return "float32"
	case parquet.Int64:
		return "int64"
	case parquet.Int32:
		return "int32"
	case parquet.Boolean:
		return "bool"
	case parquet.ByteArray:
		return "bytes"
	default:
		return "unknown"
	}
}

// ReadRows reads up to limit rows of a Parquet file as maps keyed by
// column name. A negative limit reads every row.
func ReadRows(r io.ReaderAt, size int64, limit int) ([]map[string]any, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	reader := parquet.NewReader(f)
	defer func() { _ = reader.Close() }()

	rows := make([]map[string]any, 0)
	for limit < 0 || len(rows) < limit {
		row := make(map[string]any)
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
