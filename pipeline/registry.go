package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/table"
)

// Registries holds the lookup tables a pipeline is built against.
type Registries struct {
	Units    UnitRegistry
	Reducers ReducerRegistry
}

// DefaultRegistries returns the built-in units and reducers.
func DefaultRegistries() Registries {
	return Registries{
		Units:    defaultUnits(),
		Reducers: defaultReducers(),
	}
}

// Conversion is an affine map out = in*Scale + Offset.
type Conversion struct {
	Scale  float64
	Offset float64
}

// Apply converts one value.
func (c Conversion) Apply(v float64) float64 {
	return v*c.Scale + c.Offset
}

// unit expresses a unit relative to the base unit of its quantity:
// base = v*scale + offset.
type unit struct {
	quantity string
	scale    float64
	offset   float64
}

// UnitRegistry is an immutable table of units. Conversions are defined
// between any two units of the same quantity.
type UnitRegistry struct {
	units   map[string]unit
	aliases map[string]string
}

func defaultUnits() UnitRegistry {
	r := UnitRegistry{
		units: map[string]unit{
			"kelvin":     {"temperature", 1, 0},
			"celsius":    {"temperature", 1, 273.15},
			"fahrenheit": {"temperature", 5.0 / 9.0, 273.15 - 32*5.0/9.0},
			"pa":         {"pressure", 1, 0},
			"hpa":        {"pressure", 100, 0},
			"kpa":        {"pressure", 1000, 0},
			"m":          {"length", 1, 0},
			"km":         {"length", 1000, 0},
			"m/s":        {"speed", 1, 0},
			"km/h":       {"speed", 1 / 3.6, 0},
		},
		aliases: map[string]string{
			"k":      "kelvin",
			"c":      "celsius",
			"f":      "fahrenheit",
			"degc":   "celsius",
			"degf":   "fahrenheit",
			"mbar":   "hpa",
			"meters": "m",
			"ms-1":   "m/s",
			"kmh":    "km/h",
		},
	}
	return r
}

func (r UnitRegistry) resolve(name string) (string, unit, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := r.aliases[n]; ok {
		n = canon
	}
	u, ok := r.units[n]
	return n, u, ok
}

// Lookup returns the conversion from one unit to another. Unknown units
// and pairs across quantities are ConfigErrors.
func (r UnitRegistry) Lookup(from, to string) (Conversion, error) {
	fromName, fu, ok := r.resolve(from)
	if !ok {
		return Conversion{}, errs.Configf(from, "unknown unit")
	}
	toName, tu, ok := r.resolve(to)
	if !ok {
		return Conversion{}, errs.Configf(to, "unknown unit")
	}
	if fu.quantity != tu.quantity {
		return Conversion{}, errs.Configf(fromName+"->"+toName, "cannot convert %s to %s", fu.quantity, tu.quantity)
	}
	return Conversion{
		Scale:  fu.scale / tu.scale,
		Offset: (fu.offset - tu.offset) / tu.scale,
	}, nil
}

// Names returns the canonical unit names, sorted.
func (r UnitRegistry) Names() []string {
	names := make([]string, 0, len(r.units))
	for n := range r.units {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reducer folds the values of one group into one value.
type Reducer struct {
	// Float reduces float64 values.
	Float func([]float64) float64
	// Int reduces integer and timestamp inputs without a float round trip.
	// When nil those inputs go through Float and the output is Float64.
	Int func([]int64) int64
	// Count marks reducers whose output is an Int64 row count.
	Count bool
}

// OutputKind returns the column kind produced for an input kind.
func (r Reducer) OutputKind(in table.Kind) table.Kind {
	switch {
	case r.Count:
		return table.Int64
	case in != table.Float64 && r.Int != nil:
		return in
	default:
		return table.Float64
	}
}

// ReducerRegistry is an immutable table of reducers.
type ReducerRegistry struct {
	reducers map[string]Reducer
}

func defaultReducers() ReducerRegistry {
	return ReducerRegistry{reducers: map[string]Reducer{
		"sum":   {Float: sum},
		"mean":  {Float: mean},
		"min":   {Float: minFloat, Int: minInt},
		"max":   {Float: maxFloat, Int: maxInt},
		"count": {Count: true},
		"std":   {Float: func(v []float64) float64 { return math.Sqrt(variance(v)) }},
		"var":   {Float: variance},
		"first": {Float: func(v []float64) float64 { return v[0] }, Int: func(v []int64) int64 { return v[0] }},
		"last":  {Float: func(v []float64) float64 { return v[len(v)-1] }, Int: func(v []int64) int64 { return v[len(v)-1] }},
	}}
}

// Lookup returns a reducer by name.
func (r ReducerRegistry) Lookup(name string) (Reducer, bool) {
	red, ok := r.reducers[strings.ToLower(name)]
	return red, ok
}

// Names returns the reducer names, sorted.
func (r ReducerRegistry) Names() []string {
	names := make([]string, 0, len(r.reducers))
	for n := range r.reducers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

func mean(v []float64) float64 {
	return sum(v) / float64(len(v))
}

// variance is the sample variance; NaN for fewer than two values.
func variance(v []float64) float64 {
	if len(v) < 2 {
		return math.NaN()
	}
	m := mean(v)
	ss := 0.0
	for _, x := range v {
		ss += (x - m) * (x - m)
	}
	return ss / float64(len(v)-1)
}

func minFloat(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxFloat(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	return m
}

func minInt(v []int64) int64 {
	m := v[0]
	for _, x := range v[1:] {
		m = min(m, x)
	}
	return m
}

func maxInt(v []int64) int64 {
	m := v[0]
	for _, x := range v[1:] {
		m = max(m, x)
	}
	return m
}
