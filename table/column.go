package table

import (
	"fmt"
	"time"
)

// Kind is the element type of a column.
type Kind int

const (
	Float64 Kind = iota
	Int64
	// Timestamp columns hold UTC instants as Unix nanoseconds.
	Timestamp
)

func (k Kind) String() string {
	switch k {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is a named, typed vector. Float64 columns use Floats; Int64 and
// Timestamp columns use Ints. Columns are treated as immutable once they are
// part of a Table.
type Column struct {
	Name   string
	Kind   Kind
	Floats []float64
	Ints   []int64
}

// NewFloat64 returns a Float64 column.
func NewFloat64(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Float64, Floats: values}
}

// NewInt64 returns an Int64 column.
func NewInt64(name string, values []int64) *Column {
	return &Column{Name: name, Kind: Int64, Ints: values}
}

// NewTimestamp returns a Timestamp column from Unix nanoseconds.
func NewTimestamp(name string, nanos []int64) *Column {
	return &Column{Name: name, Kind: Timestamp, Ints: nanos}
}

// Len returns the number of elements.
func (c *Column) Len() int {
	if c.Kind == Float64 {
		return len(c.Floats)
	}
	return len(c.Ints)
}

// Float returns element i as float64. Timestamps convert to Unix nanoseconds.
func (c *Column) Float(i int) float64 {
	if c.Kind == Float64 {
		return c.Floats[i]
	}
	return float64(c.Ints[i])
}

// Value returns element i as float64, int64 or time.Time.
func (c *Column) Value(i int) any {
	switch c.Kind {
	case Float64:
		return c.Floats[i]
	case Timestamp:
		return time.Unix(0, c.Ints[i]).UTC()
	default:
		return c.Ints[i]
	}
}

// Renamed returns a copy of c under a new name sharing the same data.
func (c *Column) Renamed(name string) *Column {
	cp := *c
	cp.Name = name
	return &cp
}

// Take returns a new column holding the elements at the given row indices.
func (c *Column) Take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Float64 {
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
		return out
	}
	out.Ints = make([]int64, len(rows))
	for i, r := range rows {
		out.Ints[i] = c.Ints[r]
	}
	return out
}
