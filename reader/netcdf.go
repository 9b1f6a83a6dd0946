package reader

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/vegasq/nc2parquet/errs"
)

var numericGoTypes = map[string]bool{
	"int8": true, "int16": true, "int32": true, "int64": true,
	"uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true,
}

type ncVariable struct {
	Variable
	shape  []int
	getter api.VarGetter
	last   *outerBlock
}

// outerBlock is a decoded run of outer indices [begin, end), flattened
// row-major with every inner dimension in full.
type outerBlock struct {
	begin, end int
	values     []float64
}

// NetCDF is a Provider backed by a NetCDF classic or NetCDF-4 file.
type NetCDF struct {
	path  string
	group api.Group
	dims  []Dimension
	vars  map[string]*ncVariable
	order []string
	attrs map[string]string

	mu sync.Mutex // guards ncVariable.last
}

// OpenNetCDF opens a local NetCDF file and loads its metadata. Only numeric
// variables are exposed; string and compound variables are skipped.
func OpenNetCDF(path string) (*NetCDF, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, errs.IO(path, false, fmt.Errorf("failed to open netcdf file: %w", err))
	}

	nc := &NetCDF{
		path:  path,
		group: g,
		vars:  make(map[string]*ncVariable),
		attrs: attributeStrings(g.Attributes()),
	}
	if err := nc.load(); err != nil {
		g.Close()
		return nil, err
	}
	return nc, nil
}

func (nc *NetCDF) load() error {
	lengths := make(map[string]int)
	var dimOrder []string

	for _, name := range nc.group.ListVariables() {
		vg, err := nc.group.GetVarGetter(name)
		if err != nil {
			return errs.Dataf(name, "failed to open variable: %v", err)
		}
		if !numericGoTypes[vg.GoType()] || len(vg.Dimensions()) == 0 {
			continue
		}

		shape, err := inferShape(vg)
		if err != nil {
			return errs.Dataf(name, "%v", err)
		}

		dims := vg.Dimensions()
		for i, dn := range dims {
			if shape[i] < 0 {
				continue
			}
			prev, seen := lengths[dn]
			switch {
			case !seen:
				lengths[dn] = shape[i]
				dimOrder = append(dimOrder, dn)
			case prev != shape[i]:
				return errs.Dataf(name, "dimension %q has length %d, previously %d", dn, shape[i], prev)
			}
		}

		nc.vars[name] = &ncVariable{
			Variable: Variable{
				Name:       name,
				Type:       vg.Type(),
				Dimensions: dims,
				Attributes: attributeStrings(vg.Attributes()),
			},
			shape:  shape,
			getter: vg,
		}
		nc.order = append(nc.order, name)
	}

	// Inner lengths of empty variables are only known from other variables.
	for _, v := range nc.vars {
		for i, dn := range v.Dimensions {
			if v.shape[i] >= 0 {
				continue
			}
			n, ok := lengths[dn]
			if !ok {
				n = 0
				lengths[dn] = 0
				dimOrder = append(dimOrder, dn)
			}
			v.shape[i] = n
		}
	}

	for _, dn := range dimOrder {
		// The file format does not expose the unlimited flag through this reader.
		nc.dims = append(nc.dims, Dimension{Name: dn, Len: lengths[dn]})
	}
	return nil
}

// inferShape derives the full shape of a variable. Len gives the outer
// length; inner lengths come from the nesting of the first outer slice.
// Unknown lengths are reported as -1.
func inferShape(vg api.VarGetter) ([]int, error) {
	rank := len(vg.Dimensions())
	shape := make([]int, rank)
	for i := range shape {
		shape[i] = -1
	}
	shape[0] = int(vg.Len())
	if rank == 1 || shape[0] == 0 {
		return shape, nil
	}

	first, err := vg.GetSlice(0, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read first slice: %w", err)
	}
	rv := reflect.ValueOf(first)
	for i := 0; i < rank; i++ {
		for rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected %d nested dimensions, found %d", rank, i)
		}
		if i > 0 {
			shape[i] = rv.Len()
		}
		if rv.Len() == 0 {
			break
		}
		rv = rv.Index(0)
	}
	return shape, nil
}

func attributeStrings(am api.AttributeMap) map[string]string {
	if am == nil {
		return nil
	}
	keys := am.Keys()
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := am.Get(k); ok {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// Path returns the file the provider was opened from.
func (nc *NetCDF) Path() string { return nc.path }

func (nc *NetCDF) Dimensions() []Dimension {
	out := make([]Dimension, len(nc.dims))
	copy(out, nc.dims)
	return out
}

func (nc *NetCDF) Variables() []Variable {
	out := make([]Variable, 0, len(nc.order))
	for _, name := range nc.order {
		out = append(out, nc.vars[name].Variable)
	}
	return out
}

func (nc *NetCDF) Variable(name string) (Variable, bool) {
	v, ok := nc.vars[name]
	if !ok {
		return Variable{}, false
	}
	return v.Variable, true
}

func (nc *NetCDF) Attributes() map[string]string { return nc.attrs }

// ReadHyperslab reads the outer span and gathers the inner spans from the
// decoded block. GetSlice can only address the outer dimension, so the
// smallest unit of work is one outer index with its full inner grid; the
// last decoded block of each variable is kept and reused by reads that fall
// inside it.
func (nc *NetCDF) ReadHyperslab(ctx context.Context, variable string, slab Hyperslab) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := nc.vars[variable]
	if !ok {
		return nil, errs.Configf(variable, "variable not found")
	}
	if err := checkSlab(v.Variable, v.shape, slab); err != nil {
		return nil, err
	}
	if slab.Len() == 0 {
		return []float64{}, nil
	}

	outer := slab[0]
	begin := outer.Start
	end := outer.Start + (outer.Count-1)*stride(outer) + 1

	nc.mu.Lock()
	defer nc.mu.Unlock()
	b, err := nc.decode(v, begin, end)
	if err != nil {
		return nil, err
	}

	shape := append([]int{b.end - b.begin}, v.shape[1:]...)
	local := append(Hyperslab{{Dimension: outer.Dimension, Start: begin - b.begin, Count: outer.Count, Stride: outer.Stride}}, slab[1:]...)
	out, err := gather(b.values, shape, local)
	if err != nil {
		return nil, errs.Dataf(variable, "%v", err)
	}
	return out, nil
}

// decode returns a block covering outer indices [begin, end), reusing the
// variable's last block when it already covers them. Callers hold nc.mu.
func (nc *NetCDF) decode(v *ncVariable, begin, end int) (*outerBlock, error) {
	if b := v.last; b != nil && b.begin <= begin && end <= b.end {
		return b, nil
	}
	v.last = nil

	raw, err := v.getter.GetSlice(int64(begin), int64(end))
	if err != nil {
		return nil, errs.IO(nc.path, false, fmt.Errorf("read %s[%d:%d]: %w", v.Name, begin, end, err))
	}
	values, err := flatten(raw, nil)
	if err != nil {
		return nil, errs.Dataf(v.Name, "%v", err)
	}
	b := &outerBlock{begin: begin, end: end, values: values}
	v.last = b
	return b, nil
}

func (nc *NetCDF) Close() error {
	nc.mu.Lock()
	for _, v := range nc.vars {
		v.last = nil
	}
	nc.mu.Unlock()
	if nc.group != nil {
		nc.group.Close()
	}
	return nil
}

// flatten appends the numeric leaves of a nested slice to dst in row-major
// order.
func flatten(v any, dst []float64) ([]float64, error) {
	switch s := v.(type) {
	case []float64:
		return append(dst, s...), nil
	case []float32:
		for _, x := range s {
			dst = append(dst, float64(x))
		}
		return dst, nil
	case []int32:
		for _, x := range s {
			dst = append(dst, float64(x))
		}
		return dst, nil
	case []int16:
		for _, x := range s {
			dst = append(dst, float64(x))
		}
		return dst, nil
	}
	return flattenValue(reflect.ValueOf(v), dst)
}

func flattenValue(rv reflect.Value, dst []float64) ([]float64, error) {
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil, fmt.Errorf("nil value in array")
		}
		return flattenValue(rv.Elem(), dst)
	case reflect.Slice, reflect.Array:
		var err error
		for i := 0; i < rv.Len(); i++ {
			if dst, err = flattenValue(rv.Index(i), dst); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case reflect.Float32, reflect.Float64:
		return append(dst, rv.Float()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return append(dst, float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return append(dst, float64(rv.Uint())), nil
	default:
		return nil, fmt.Errorf("unsupported element type %s", rv.Type())
	}
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
