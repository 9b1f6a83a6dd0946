package reader

import (
	"context"
	"sync"

	"github.com/vegasq/nc2parquet/errs"
)

// Catalog binds a provider to one variable and caches the coordinate
// vectors of its dimensions. It is safe for concurrent use.
type Catalog struct {
	provider Provider
	variable Variable
	dims     []Dimension

	mu     sync.Mutex
	coords map[string][]float64
}

// NewCatalog resolves variable in p and checks that every dimension it
// references is declared. Scalar variables cannot be extracted.
func NewCatalog(p Provider, variable string) (*Catalog, error) {
	v, ok := p.Variable(variable)
	if !ok {
		return nil, errs.Configf(variable, "variable not found")
	}
	if len(v.Dimensions) == 0 {
		return nil, errs.Configf(variable, "scalar variable has no dimensions to extract")
	}

	byName := make(map[string]Dimension, len(p.Dimensions()))
	for _, d := range p.Dimensions() {
		byName[d.Name] = d
	}

	dims := make([]Dimension, 0, len(v.Dimensions))
	for _, name := range v.Dimensions {
		d, ok := byName[name]
		if !ok {
			return nil, errs.Dataf(variable, "dimension %q is not declared", name)
		}
		dims = append(dims, d)
	}

	return &Catalog{
		provider: p,
		variable: v,
		dims:     dims,
		coords:   make(map[string][]float64),
	}, nil
}

// Provider returns the underlying provider.
func (c *Catalog) Provider() Provider { return c.provider }

// Variable returns the bound variable.
func (c *Catalog) Variable() Variable { return c.variable }

// Dimensions returns the variable's dimensions in variable order.
func (c *Catalog) Dimensions() []Dimension {
	out := make([]Dimension, len(c.dims))
	copy(out, c.dims)
	return out
}

// Dimension looks up one of the variable's dimensions.
func (c *Catalog) Dimension(name string) (Dimension, bool) {
	for _, d := range c.dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Shape returns the dimension lengths in variable order.
func (c *Catalog) Shape() []int {
	shape := make([]int, len(c.dims))
	for i, d := range c.dims {
		shape[i] = d.Len
	}
	return shape
}

// HasCoordinates reports whether dim has a coordinate variable: a 1-D
// variable with the same name defined on dim.
func (c *Catalog) HasCoordinates(dim string) bool {
	v, ok := c.provider.Variable(dim)
	return ok && len(v.Dimensions) == 1 && v.Dimensions[0] == dim
}

// Coordinates returns the coordinate values of dim. Dimensions without a
// coordinate variable use their indices 0..len-1. The returned slice is
// shared and must not be modified.
func (c *Catalog) Coordinates(ctx context.Context, dim string) ([]float64, error) {
	d, ok := c.Dimension(dim)
	if !ok {
		return nil, errs.Configf(dim, "dimension not found on variable %q", c.variable.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if vals, ok := c.coords[dim]; ok {
		return vals, nil
	}

	var vals []float64
	if c.HasCoordinates(dim) {
		var err error
		vals, err = c.provider.ReadHyperslab(ctx, dim, Hyperslab{{Dimension: dim, Count: d.Len, Stride: 1}})
		if err != nil {
			return nil, err
		}
		if len(vals) != d.Len {
			return nil, errs.Dataf(dim, "coordinate variable has %d values, dimension length is %d", len(vals), d.Len)
		}
	} else {
		vals = make([]float64, d.Len)
		for i := range vals {
			vals[i] = float64(i)
		}
	}

	c.coords[dim] = vals
	return vals, nil
}

// Read reads a hyperslab of the bound variable.
func (c *Catalog) Read(ctx context.Context, slab Hyperslab) ([]float64, error) {
	return c.provider.ReadHyperslab(ctx, c.variable.Name, slab)
}
