package filter

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vegasq/nc2parquet/errs"
)

// DefaultEpsilon is the relative tolerance used to match List values and
// Point3D steps against coordinates.
const DefaultEpsilon = 1e-9

// Options tunes evaluation.
type Options struct {
	// Epsilon is the relative tolerance for value matching:
	// |a-b| <= Epsilon * max(1, |a|, |b|). Zero means bit-exact.
	Epsilon float64
}

// DefaultOptions returns epsilon-tolerant matching.
func DefaultOptions() Options {
	return Options{Epsilon: DefaultEpsilon}
}

// Coordinates resolves the coordinate values of a dimension. Dimensions
// without a coordinate variable report their indices.
type Coordinates interface {
	Coordinates(ctx context.Context, dim string) ([]float64, error)
}

// Selection is the outcome of one filter: an *Axis or a *Joint.
type Selection interface {
	// Dimensions returns the dimensions covered by the selection.
	Dimensions() []string
	// Len returns the number of selected indices or tuples.
	Len() int

	isSelection()
}

// Axis is a sorted, duplicate-free set of indices along one dimension.
type Axis struct {
	Dimension string
	Indices   []int
}

// Joint is an ordered list of index tuples over coupled dimensions. Tuple
// components follow Dims.
type Joint struct {
	Dims   []string
	Tuples [][]int
}

func (*Axis) isSelection()  {}
func (*Joint) isSelection() {}

func (a *Axis) Dimensions() []string  { return []string{a.Dimension} }
func (a *Axis) Len() int              { return len(a.Indices) }
func (j *Joint) Dimensions() []string { return j.Dims }
func (j *Joint) Len() int             { return len(j.Tuples) }

// Result is the selection produced by one filter, plus the requests that
// did not match anything.
type Result struct {
	Spec      Spec
	Selection Selection
	// Dropped counts point requests with no grid location within tolerance.
	Dropped int
	// Unmatched counts List values and Point3D steps absent from the
	// coordinate domain.
	Unmatched int
}

// Evaluate resolves spec against the coordinates of its dimensions.
func Evaluate(ctx context.Context, coords Coordinates, spec Spec, opts Options) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, err
	}

	switch s := spec.(type) {
	case Range:
		return evalRange(ctx, coords, s)
	case List:
		return evalList(ctx, coords, s, opts)
	case Point2D:
		return evalPoint2D(ctx, coords, s)
	case Point3D:
		return evalPoint3D(ctx, coords, s, opts)
	default:
		return Result{}, errs.Configf("", "unsupported filter %T", spec)
	}
}

func evalRange(ctx context.Context, coords Coordinates, s Range) (Result, error) {
	vals, err := coords.Coordinates(ctx, s.Dimension)
	if err != nil {
		return Result{}, err
	}
	idx := make([]int, 0)
	for i, v := range vals {
		if s.Min <= v && v <= s.Max {
			idx = append(idx, i)
		}
	}
	return Result{Spec: s, Selection: &Axis{Dimension: s.Dimension, Indices: idx}}, nil
}

func evalList(ctx context.Context, coords Coordinates, s List, opts Options) (Result, error) {
	vals, err := coords.Coordinates(ctx, s.Dimension)
	if err != nil {
		return Result{}, err
	}
	idx, unmatched := matchValues(vals, s.Values, opts.Epsilon)
	return Result{
		Spec:      s,
		Selection: &Axis{Dimension: s.Dimension, Indices: idx},
		Unmatched: unmatched,
	}, nil
}

func evalPoint2D(ctx context.Context, coords Coordinates, s Point2D) (Result, error) {
	lat, lon, err := latLon(ctx, coords, s.LatDimension, s.LonDimension)
	if err != nil {
		return Result{}, err
	}
	pairs, dropped := matchPoints(lat, lon, s.Points, s.Tolerance)
	return Result{
		Spec:      s,
		Selection: &Joint{Dims: s.Dimensions(), Tuples: pairs},
		Dropped:   dropped,
	}, nil
}

func evalPoint3D(ctx context.Context, coords Coordinates, s Point3D, opts Options) (Result, error) {
	times, err := coords.Coordinates(ctx, s.TimeDimension)
	if err != nil {
		return Result{}, err
	}
	lat, lon, err := latLon(ctx, coords, s.LatDimension, s.LonDimension)
	if err != nil {
		return Result{}, err
	}

	steps, unmatched := matchValues(times, s.Steps, opts.Epsilon)
	pairs, dropped := matchPoints(lat, lon, s.Points, s.Tolerance)

	tuples := make([][]int, 0, len(pairs)*len(steps))
	for _, p := range pairs {
		for _, t := range steps {
			tuples = append(tuples, []int{t, p[0], p[1]})
		}
	}
	return Result{
		Spec:      s,
		Selection: &Joint{Dims: s.Dimensions(), Tuples: tuples},
		Dropped:   dropped,
		Unmatched: unmatched,
	}, nil
}

func latLon(ctx context.Context, coords Coordinates, latDim, lonDim string) ([]float64, []float64, error) {
	lat, err := coords.Coordinates(ctx, latDim)
	if err != nil {
		return nil, nil, err
	}
	lon, err := coords.Coordinates(ctx, lonDim)
	if err != nil {
		return nil, nil, err
	}
	return lat, lon, nil
}

// Match reports whether a and b are equal under relative tolerance eps.
func Match(a, b, eps float64) bool {
	if a == b {
		return true
	}
	if eps == 0 {
		return false
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= eps*scale
}

// matchValues returns the sorted indices of coords matching any of want,
// and how many entries of want matched nothing.
func matchValues(coords, want []float64, eps float64) ([]int, int) {
	sorted := make([]float64, len(want))
	copy(sorted, want)
	sort.Float64s(sorted)
	hit := make([]bool, len(sorted))

	idx := make([]int, 0)
	for i, c := range coords {
		if math.IsNaN(c) {
			continue
		}
		matched := false
		pos := sort.SearchFloat64s(sorted, c)
		for j := pos - 1; j >= 0 && Match(c, sorted[j], eps); j-- {
			hit[j] = true
			matched = true
		}
		for j := pos; j < len(sorted) && Match(c, sorted[j], eps); j++ {
			hit[j] = true
			matched = true
		}
		if matched {
			idx = append(idx, i)
		}
	}

	unmatched := 0
	for _, h := range hit {
		if !h {
			unmatched++
		}
	}
	return idx, unmatched
}

// nearest returns the index of the value closest to v, lowest index on
// ties, or -1 when vals holds no comparable value.
func nearest(vals []float64, v float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, x := range vals {
		d := math.Abs(x - v)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// matchPoints pairs each point with its nearest (lat, lon) indices when the
// grid location lies within tol, keeping point order.
func matchPoints(lat, lon []float64, points []Point, tol float64) ([][]int, int) {
	pairs := make([][]int, 0, len(points))
	dropped := 0
	for _, p := range points {
		i, j := nearest(lat, p.Lat), nearest(lon, p.Lon)
		if i < 0 || j < 0 || math.Hypot(lat[i]-p.Lat, lon[j]-p.Lon) > tol {
			dropped++
			continue
		}
		pairs = append(pairs, []int{i, j})
	}
	return pairs, dropped
}

// String implements fmt.Stringer for debugging output.
func (r Result) String() string {
	return fmt.Sprintf("%s: %d selected, %d dropped, %d unmatched",
		Describe(r.Spec), r.Selection.Len(), r.Dropped, r.Unmatched)
}
