package reader

import (
	"context"
	"fmt"

	"github.com/vegasq/nc2parquet/errs"
)

// Dimension is a named axis of the dataset.
type Dimension struct {
	Name      string `json:"name" yaml:"name"`
	Len       int    `json:"length" yaml:"length"`
	Unlimited bool   `json:"is_unlimited" yaml:"is_unlimited"`
}

// Variable describes one array in the dataset. Dimensions defines axis order.
type Variable struct {
	Name       string            `json:"name" yaml:"name"`
	Type       string            `json:"data_type" yaml:"data_type"`
	Dimensions []string          `json:"dimensions" yaml:"dimensions"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Span selects Count elements along one dimension starting at Start, taking
// every Stride-th element. A zero Stride means 1.
type Span struct {
	Dimension string
	Start     int
	Count     int
	Stride    int
}

// Hyperslab is one Span per variable dimension, in variable order.
type Hyperslab []Span

// Len returns the number of elements the hyperslab selects.
func (h Hyperslab) Len() int {
	if len(h) == 0 {
		return 0
	}
	n := 1
	for _, s := range h {
		n *= s.Count
	}
	return n
}

// Provider is the metadata and array contract the core depends on.
type Provider interface {
	// Dimensions lists every dimension of the dataset.
	Dimensions() []Dimension
	// Variables lists every numeric variable of the dataset.
	Variables() []Variable
	// Variable looks up a variable by name.
	Variable(name string) (Variable, bool)
	// Attributes returns the global attributes.
	Attributes() map[string]string
	// ReadHyperslab reads a rectangular region of a variable as float64,
	// row-major in the variable's dimension order.
	ReadHyperslab(ctx context.Context, variable string, slab Hyperslab) ([]float64, error)
	// Close releases the underlying resources.
	Close() error
}

func stride(s Span) int {
	if s.Stride <= 0 {
		return 1
	}
	return s.Stride
}

// checkSlab verifies that slab matches the variable's dimensions and stays
// in bounds. shape holds the dimension lengths in variable order.
func checkSlab(v Variable, shape []int, slab Hyperslab) error {
	if len(slab) != len(v.Dimensions) {
		return errs.Dataf(v.Name, "hyperslab has %d spans, variable has %d dimensions", len(slab), len(v.Dimensions))
	}
	for i, s := range slab {
		if s.Dimension != v.Dimensions[i] {
			return errs.Dataf(v.Name, "span %d addresses dimension %q, expected %q", i, s.Dimension, v.Dimensions[i])
		}
		if s.Count < 0 || s.Start < 0 {
			return errs.Dataf(s.Dimension, "negative start or count")
		}
		if s.Count == 0 {
			continue
		}
		last := s.Start + (s.Count-1)*stride(s)
		if last >= shape[i] {
			return errs.Dataf(s.Dimension, "hyperslab end %d out of range (length %d)", last, shape[i])
		}
	}
	return nil
}

// gather copies the elements selected by slab out of a row-major array of
// the given shape.
func gather(values []float64, shape []int, slab Hyperslab) ([]float64, error) {
	total := 1
	for _, n := range shape {
		total *= n
	}
	if len(values) != total {
		return nil, fmt.Errorf("array holds %d values, shape %v needs %d", len(values), shape, total)
	}

	out := make([]float64, 0, slab.Len())
	if slab.Len() == 0 {
		return out, nil
	}

	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}

	pos := make([]int, len(slab))
	for {
		off := 0
		for i, s := range slab {
			off += (s.Start + pos[i]*stride(s)) * strides[i]
		}
		out = append(out, values[off])

		// odometer increment, last dimension fastest
		i := len(pos) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < slab[i].Count {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}
