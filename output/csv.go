package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vegasq/nc2parquet/table"
)

// CSVFormatter outputs rows as CSV format
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes a header row with the column names, then one record per
// table row. A table without columns writes nothing.
func (c *CSVFormatter) Format(t *table.Table) error {
	csvWriter := csv.NewWriter(c.writer)

	if t.Width() == 0 {
		return nil
	}

	header := t.Names()
	for i, name := range header {
		header[i] = formatValue(name)
	}
	if err := csvWriter.Write(header); err != nil {
		return err
	}

	cols := t.Columns()
	record := make([]string, len(cols))
	for row := 0; row < t.Len(); row++ {
		for i, col := range cols {
			record[i] = formatValue(col.Value(row))
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// formatValue converts a value to string for CSV output
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		// Sanitize against CSV injection in spreadsheet applications
		if len(val) > 0 && strings.ContainsRune("=+-@\t\r\n|", rune(val[0])) {
			return "'" + strings.ReplaceAll(val, "'", "''")
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}
