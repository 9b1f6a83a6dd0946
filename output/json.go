package output

import (
	"encoding/json"
	"io"
	"math"

	"github.com/vegasq/nc2parquet/table"
)

// JSONFormatter outputs rows as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row. Object keys are sorted by the
// encoder, not in column order.
func (j *JSONFormatter) Format(t *table.Table) error {
	encoder := json.NewEncoder(j.writer)
	cols := t.Columns()
	for i := 0; i < t.Len(); i++ {
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			v := c.Value(i)
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				v = nil
			}
			row[c.Name] = v
		}
		if err := encoder.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
