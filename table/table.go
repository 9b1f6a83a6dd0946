// Package table holds the in-memory columnar structure passed between the
// extractor, the post-processing pipeline and the sinks.
//
// A Table is an ordered set of uniquely named, equal-length columns. Row
// order is significant. Tables are values: operations return new tables and
// share column data where possible.
package table

import (
	"fmt"

	"github.com/vegasq/nc2parquet/errs"
)

// Table is an ordered set of equal-length, uniquely named columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a table, checking name uniqueness and equal lengths.
func New(cols ...*Column) (*Table, error) {
	t := &Table{
		cols:  cols,
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			return nil, errs.Configf(c.Name, "duplicate column name")
		}
		t.index[c.Name] = i
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, errs.Dataf(c.Name, "column has %d rows, expected %d", c.Len(), t.rows)
		}
	}
	return t, nil
}

// MustNew is New for fixed inputs; it panics on error.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column { return t.cols }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// With returns a table where col replaces the column of the same name in
// place, or is appended at the end when no such column exists.
func (t *Table) With(col *Column) (*Table, error) {
	cols := make([]*Column, len(t.cols), len(t.cols)+1)
	copy(cols, t.cols)
	if i, ok := t.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	if len(t.cols) == 0 {
		return New(cols...)
	}
	if col.Len() != t.rows {
		return nil, errs.Dataf(col.Name, "column has %d rows, table has %d", col.Len(), t.rows)
	}
	return New(cols...)
}

// Rename applies all renames in mapping at once, so swaps work. Every source
// name must exist and the result must keep names unique.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	for from := range mapping {
		if _, ok := t.index[from]; !ok {
			return nil, errs.Configf(from, "column not found")
		}
	}
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if to, ok := mapping[c.Name]; ok {
			cols[i] = c.Renamed(to)
		} else {
			cols[i] = c
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	return out, nil
}

// Row returns row i as one value per column.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.cols))
	for j, c := range t.cols {
		row[j] = c.Value(i)
	}
	return row
}
