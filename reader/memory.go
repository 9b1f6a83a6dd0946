package reader

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/vegasq/nc2parquet/errs"
)

type memVariable struct {
	Variable
	shape  []int
	values []float64
}

// Memory is an in-memory Provider. Build it with NewMemory and the Add
// methods before handing it to a job; it is read-only afterwards.
type Memory struct {
	dims  []Dimension
	vars  map[string]*memVariable
	order []string
	attrs map[string]string

	reads atomic.Int64
}

// NewMemory returns an empty dataset declaring dims.
func NewMemory(dims ...Dimension) *Memory {
	return &Memory{
		dims:  dims,
		vars:  make(map[string]*memVariable),
		attrs: make(map[string]string),
	}
}

// SetAttribute sets a global attribute.
func (m *Memory) SetAttribute(key, value string) *Memory {
	m.attrs[key] = value
	return m
}

// AddVariable adds a variable defined on dims with row-major values.
func (m *Memory) AddVariable(name string, dims []string, values []float64, attrs map[string]string) error {
	if _, dup := m.vars[name]; dup {
		return fmt.Errorf("variable %q already defined", name)
	}

	shape := make([]int, len(dims))
	total := 1
	for i, dn := range dims {
		d, ok := m.dimension(dn)
		if !ok {
			return fmt.Errorf("variable %q: unknown dimension %q", name, dn)
		}
		shape[i] = d.Len
		total *= d.Len
	}
	if len(values) != total {
		return fmt.Errorf("variable %q: got %d values, shape %v needs %d", name, len(values), shape, total)
	}

	m.vars[name] = &memVariable{
		Variable: Variable{Name: name, Type: "double", Dimensions: dims, Attributes: attrs},
		shape:    shape,
		values:   values,
	}
	m.order = append(m.order, name)
	return nil
}

// AddCoordinate adds the coordinate variable of dim.
func (m *Memory) AddCoordinate(dim string, values []float64) error {
	return m.AddVariable(dim, []string{dim}, values, nil)
}

// Reads returns how many hyperslab reads have been served.
func (m *Memory) Reads() int64 { return m.reads.Load() }

func (m *Memory) dimension(name string) (Dimension, bool) {
	for _, d := range m.dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

func (m *Memory) Dimensions() []Dimension {
	out := make([]Dimension, len(m.dims))
	copy(out, m.dims)
	return out
}

func (m *Memory) Variables() []Variable {
	out := make([]Variable, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.vars[name].Variable)
	}
	return out
}

func (m *Memory) Variable(name string) (Variable, bool) {
	v, ok := m.vars[name]
	if !ok {
		return Variable{}, false
	}
	return v.Variable, true
}

func (m *Memory) Attributes() map[string]string { return m.attrs }

func (m *Memory) ReadHyperslab(ctx context.Context, variable string, slab Hyperslab) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.vars[variable]
	if !ok {
		return nil, errs.Configf(variable, "variable not found")
	}
	if err := checkSlab(v.Variable, v.shape, slab); err != nil {
		return nil, err
	}
	m.reads.Add(1)

	out, err := gather(v.values, v.shape, slab)
	if err != nil {
		return nil, errs.Dataf(variable, "%v", err)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
