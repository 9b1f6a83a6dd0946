package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/reader"
)

type coordMap map[string][]float64

func (m coordMap) Coordinates(_ context.Context, dim string) ([]float64, error) {
	v, ok := m[dim]
	if !ok {
		return nil, errs.Configf(dim, "dimension not found")
	}
	return v, nil
}

func indices(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func collect(t *testing.T, p *Plan) [][]int {
	t.Helper()
	var rows [][]int
	it := p.Rows()
	row := make([]int, len(p.Dimensions()))
	for it.Next(row) {
		rows = append(rows, append([]int(nil), row...))
	}
	assert.False(t, it.Next(row), "iterator must stay exhausted")
	return rows
}

func TestRangeSelectsInclusive(t *testing.T) {
	coords := coordMap{"temp": {-5, 0, 2.5, 3, 7, 10, 10.0001, 3}}
	spec := Range{Dimension: "temp", Min: 0, Max: 10}

	res, err := Evaluate(context.Background(), coords, spec, DefaultOptions())
	require.NoError(t, err)

	sel := res.Selection.(*Axis)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 7}, sel.Indices)

	in := make(map[int]bool)
	for _, i := range sel.Indices {
		in[i] = true
	}
	for i, v := range coords["temp"] {
		assert.Equal(t, spec.Min <= v && v <= spec.Max, in[i], "index %d value %g", i, v)
	}
}

func TestListMatchingPolicy(t *testing.T) {
	coords := coordMap{"level": {0.1 + 0.2, 1, 2, 1}}
	spec := List{Dimension: "level", Values: []float64{0.3, 1, 5}}

	tests := []struct {
		name      string
		opts      Options
		want      []int
		unmatched int
	}{
		{"epsilon tolerant", DefaultOptions(), []int{0, 1, 3}, 1},
		{"bit exact", Options{}, []int{1, 3}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Evaluate(context.Background(), coords, spec, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Selection.(*Axis).Indices)
			assert.Equal(t, tt.unmatched, res.Unmatched)
		})
	}
}

func TestMatch(t *testing.T) {
	assert.True(t, Match(1e12, 1e12+1, DefaultEpsilon))
	assert.False(t, Match(1, 1.001, DefaultEpsilon))
	assert.True(t, Match(0, 1e-10, DefaultEpsilon))
	assert.False(t, Match(0, 1e-10, 0))
}

func TestPoint2DTolerance(t *testing.T) {
	coords := coordMap{
		"lat": {40.5, 40.71, 40.9},
		"lon": {-74.3, -74.02, -73.8},
	}

	tests := []struct {
		name    string
		tol     float64
		tuples  [][]int
		dropped int
	}{
		{"within tolerance", 0.1, [][]int{{1, 1}}, 0},
		{"too far", 0.0001, [][]int{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Point2D{LatDimension: "lat", LonDimension: "lon", Points: []Point{{40.7, -74.0}}, Tolerance: tt.tol}
			res, err := Evaluate(context.Background(), coords, spec, DefaultOptions())
			require.NoError(t, err)
			j := res.Selection.(*Joint)
			assert.Equal(t, []string{"lat", "lon"}, j.Dims)
			assert.Equal(t, tt.tuples, j.Tuples)
			assert.Equal(t, tt.dropped, res.Dropped)
		})
	}
}

func TestPoint2DKeepsCallerOrder(t *testing.T) {
	coords := coordMap{"lat": {0, 10, 20}, "lon": {0, 10, 20}}
	spec := Point2D{
		LatDimension: "lat",
		LonDimension: "lon",
		Points:       []Point{{20, 20}, {0, 10}, {20, 20}, {50, 50}},
		Tolerance:    1,
	}
	res, err := Evaluate(context.Background(), coords, spec, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 2}, {0, 1}, {2, 2}}, res.Selection.(*Joint).Tuples)
	assert.Equal(t, 1, res.Dropped)
}

func TestNearestTieTakesLowestIndex(t *testing.T) {
	assert.Equal(t, 0, nearest([]float64{0, 2}, 1))
	assert.Equal(t, -1, nearest(nil, 1))
}

func TestPoint3DOrdering(t *testing.T) {
	coords := coordMap{
		"time": {100, 200, 300},
		"lat":  {0, 10},
		"lon":  {0, 10},
	}
	spec := Point3D{
		TimeDimension: "time",
		LatDimension:  "lat",
		LonDimension:  "lon",
		Steps:         []float64{300, 100, 999},
		Points:        []Point{{10, 0}, {0, 10}},
		Tolerance:     0.5,
	}
	res, err := Evaluate(context.Background(), coords, spec, DefaultOptions())
	require.NoError(t, err)

	j := res.Selection.(*Joint)
	assert.Equal(t, []string{"time", "lat", "lon"}, j.Dims)
	assert.Equal(t, [][]int{
		{0, 1, 0}, {2, 1, 0},
		{0, 0, 1}, {2, 0, 1},
	}, j.Tuples)
	assert.Equal(t, 1, res.Unmatched)
	assert.Equal(t, 0, res.Dropped)
}

func TestEvaluateConfigErrors(t *testing.T) {
	coords := coordMap{"lat": {0}, "lon": {0}}
	tests := []struct {
		name string
		spec Spec
	}{
		{"min above max", Range{Dimension: "lat", Min: 2, Max: 1}},
		{"unknown dimension", Range{Dimension: "depth", Min: 0, Max: 1}},
		{"unknown list dimension", List{Dimension: "depth", Values: []float64{1}}},
		{"negative tolerance", Point2D{LatDimension: "lat", LonDimension: "lon", Tolerance: -1}},
		{"same dimension twice", Point2D{LatDimension: "lat", LonDimension: "lat"}},
		{"unknown time dimension", Point3D{TimeDimension: "time", LatDimension: "lat", LonDimension: "lon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(context.Background(), coords, tt.spec, DefaultOptions())
			assert.ErrorIs(t, err, errs.ErrConfig)
		})
	}
}

func TestCombineTwoRanges(t *testing.T) {
	dims := []reader.Dimension{{Name: "latitude", Len: 10}, {Name: "longitude", Len: 5}}
	coords := coordMap{"latitude": indices(10), "longitude": indices(5)}

	var results []Result
	for _, s := range []Spec{
		Range{Dimension: "latitude", Min: 2, Max: 4},
		Range{Dimension: "longitude", Min: 1, Max: 3},
	} {
		r, err := Evaluate(context.Background(), coords, s, DefaultOptions())
		require.NoError(t, err)
		results = append(results, r)
	}

	plan, err := Combine(dims, results)
	require.NoError(t, err)
	assert.True(t, plan.Cartesian())
	assert.Equal(t, 9, plan.Len())

	rows := collect(t, plan)
	require.Len(t, rows, 9)
	assert.Equal(t, []int{2, 1}, rows[0])
	assert.Equal(t, []int{2, 2}, rows[1])
	assert.Equal(t, []int{4, 3}, rows[8])
}

func TestCombineIntersectsSameAxis(t *testing.T) {
	dims := []reader.Dimension{{Name: "x", Len: 10}}
	plan, err := Combine(dims, []Result{
		{Selection: &Axis{Dimension: "x", Indices: []int{1, 2, 3, 4}}},
		{Selection: &Axis{Dimension: "x", Indices: []int{3, 4, 5}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, plan.Axis(0))
	assert.Equal(t, 2, plan.Len())
}

func TestCombineUnconstrained(t *testing.T) {
	dims := []reader.Dimension{{Name: "t", Len: 2}, {Name: "x", Len: 3}}
	plan, err := Combine(dims, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, plan.Len())
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}, collect(t, plan))
}

func TestCombineJointWithAxisSurvival(t *testing.T) {
	dims := []reader.Dimension{{Name: "time", Len: 3}, {Name: "lat", Len: 4}, {Name: "lon", Len: 4}}
	plan, err := Combine(dims, []Result{
		{Selection: &Joint{Dims: []string{"lat", "lon"}, Tuples: [][]int{{3, 0}, {1, 1}, {2, 2}}}},
		{Selection: &Axis{Dimension: "lat", Indices: []int{1, 3}}},
		{Selection: &Axis{Dimension: "time", Indices: []int{0, 2}}},
	})
	require.NoError(t, err)
	assert.False(t, plan.Cartesian())
	assert.Equal(t, 4, plan.Len())
	assert.Equal(t, [][]int{
		{0, 3, 0}, {0, 1, 1},
		{2, 3, 0}, {2, 1, 1},
	}, collect(t, plan))
}

func TestCombineMultipleJoints(t *testing.T) {
	dims := []reader.Dimension{{Name: "time", Len: 2}, {Name: "lat", Len: 3}, {Name: "lon", Len: 3}}
	plan, err := Combine(dims, []Result{
		{Selection: &Joint{Dims: []string{"lat", "lon"}, Tuples: [][]int{{0, 0}, {1, 1}, {2, 2}}}},
		{Selection: &Joint{Dims: []string{"time", "lat", "lon"}, Tuples: [][]int{{1, 1, 1}, {0, 2, 2}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2, 2}, {1, 1, 1}}, collect(t, plan))
	assert.Equal(t, 2, plan.Len())
}

func TestCombineEmptyJoint(t *testing.T) {
	dims := []reader.Dimension{{Name: "lat", Len: 3}, {Name: "lon", Len: 3}}
	plan, err := Combine(dims, []Result{{Selection: &Joint{Dims: []string{"lat", "lon"}}}})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Len())
	assert.Empty(t, collect(t, plan))
}

func TestCombineUnknownDimension(t *testing.T) {
	dims := []reader.Dimension{{Name: "lat", Len: 3}}
	_, err := Combine(dims, []Result{{Selection: &Axis{Dimension: "lon"}}})
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = Combine(dims, []Result{{Selection: &Joint{Dims: []string{"lat", "lon"}}}})
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestCombineScalar(t *testing.T) {
	_, err := Combine(nil, nil)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestCombineIsDeterministic(t *testing.T) {
	dims := []reader.Dimension{{Name: "time", Len: 4}, {Name: "lat", Len: 5}, {Name: "lon", Len: 5}}
	results := []Result{
		{Selection: &Joint{Dims: []string{"lat", "lon"}, Tuples: [][]int{{4, 4}, {0, 0}, {2, 3}}}},
		{Selection: &Axis{Dimension: "time", Indices: []int{1, 3}}},
	}
	a, err := Combine(dims, results)
	require.NoError(t, err)
	b, err := Combine(dims, results)
	require.NoError(t, err)
	assert.Equal(t, collect(t, a), collect(t, b))
}

func TestEvaluateWithCatalog(t *testing.T) {
	m := reader.NewMemory(reader.Dimension{Name: "lat", Len: 3}, reader.Dimension{Name: "lon", Len: 2})
	require.NoError(t, m.AddVariable("v", []string{"lat", "lon"}, make([]float64, 6), nil))
	require.NoError(t, m.AddCoordinate("lat", []float64{-45, 0, 45}))
	cat, err := reader.NewCatalog(m, "v")
	require.NoError(t, err)

	res, err := Evaluate(context.Background(), cat, Range{Dimension: "lat", Min: -10, Max: 90}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Selection.(*Axis).Indices)

	res, err = Evaluate(context.Background(), cat, List{Dimension: "lon", Values: []float64{1}}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Selection.(*Axis).Indices)
}
