package reader

import (
	"context"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/nc2parquet/errs"
)

// grid returns a time(2) x lat(3) x lon(4) dataset whose values encode
// their own indices as t*100 + y*10 + x.
func grid(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(
		Dimension{Name: "time", Len: 2, Unlimited: true},
		Dimension{Name: "lat", Len: 3},
		Dimension{Name: "lon", Len: 4},
	)
	vals := make([]float64, 0, 24)
	for ti := 0; ti < 2; ti++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				vals = append(vals, float64(ti*100+y*10+x))
			}
		}
	}
	require.NoError(t, m.AddVariable("temp", []string{"time", "lat", "lon"}, vals, map[string]string{"units": "K"}))
	require.NoError(t, m.AddCoordinate("lat", []float64{-10, 0, 10}))
	require.NoError(t, m.AddCoordinate("lon", []float64{0, 90, 180, 270}))
	m.SetAttribute("title", "test grid")
	return m
}

func TestMemoryReadHyperslab(t *testing.T) {
	m := grid(t)
	ctx := context.Background()

	tests := []struct {
		name string
		slab Hyperslab
		want []float64
	}{
		{
			name: "single element",
			slab: Hyperslab{{"time", 1, 1, 1}, {"lat", 2, 1, 1}, {"lon", 3, 1, 1}},
			want: []float64{123},
		},
		{
			name: "row",
			slab: Hyperslab{{"time", 0, 1, 1}, {"lat", 1, 1, 1}, {"lon", 0, 4, 1}},
			want: []float64{10, 11, 12, 13},
		},
		{
			name: "strided block",
			slab: Hyperslab{{"time", 0, 2, 1}, {"lat", 0, 2, 2}, {"lon", 1, 2, 2}},
			want: []float64{1, 3, 21, 23, 101, 103, 121, 123},
		},
		{
			name: "zero stride means one",
			slab: Hyperslab{{"time", 0, 1, 0}, {"lat", 0, 1, 0}, {"lon", 2, 2, 0}},
			want: []float64{2, 3},
		},
		{
			name: "empty",
			slab: Hyperslab{{"time", 0, 0, 1}, {"lat", 0, 3, 1}, {"lon", 0, 4, 1}},
			want: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ReadHyperslab(ctx, "temp", tt.slab)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryReadHyperslabErrors(t *testing.T) {
	m := grid(t)
	ctx := context.Background()

	_, err := m.ReadHyperslab(ctx, "missing", Hyperslab{})
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = m.ReadHyperslab(ctx, "temp", Hyperslab{{"time", 0, 1, 1}})
	assert.ErrorIs(t, err, errs.ErrData)

	_, err = m.ReadHyperslab(ctx, "temp", Hyperslab{{"time", 0, 1, 1}, {"lon", 0, 1, 1}, {"lat", 0, 1, 1}})
	assert.ErrorIs(t, err, errs.ErrData)

	_, err = m.ReadHyperslab(ctx, "temp", Hyperslab{{"time", 0, 1, 1}, {"lat", 0, 1, 1}, {"lon", 2, 2, 2}})
	assert.ErrorIs(t, err, errs.ErrData)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.ReadHyperslab(cctx, "temp", Hyperslab{{"time", 0, 1, 1}, {"lat", 0, 1, 1}, {"lon", 0, 1, 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryAddVariableValidation(t *testing.T) {
	m := NewMemory(Dimension{Name: "x", Len: 3})
	assert.Error(t, m.AddVariable("v", []string{"y"}, []float64{1, 2, 3}, nil))
	assert.Error(t, m.AddVariable("v", []string{"x"}, []float64{1, 2}, nil))
	require.NoError(t, m.AddVariable("v", []string{"x"}, []float64{1, 2, 3}, nil))
	assert.Error(t, m.AddVariable("v", []string{"x"}, []float64{1, 2, 3}, nil))
}

func TestCatalogCoordinates(t *testing.T) {
	m := grid(t)
	ctx := context.Background()

	cat, err := NewCatalog(m, "temp")
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4}, cat.Shape())
	assert.True(t, cat.HasCoordinates("lat"))
	assert.False(t, cat.HasCoordinates("time"))

	lat, err := cat.Coordinates(ctx, "lat")
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, 0, 10}, lat)

	// no coordinate variable: indices
	tm, err := cat.Coordinates(ctx, "time")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, tm)

	// cached
	before := m.Reads()
	_, err = cat.Coordinates(ctx, "lat")
	require.NoError(t, err)
	assert.Equal(t, before, m.Reads())

	_, err = cat.Coordinates(ctx, "depth")
	assert.ErrorIs(t, err, errs.ErrConfig)

	d, ok := cat.Dimension("time")
	require.True(t, ok)
	assert.True(t, d.Unlimited)
}

func TestNewCatalogErrors(t *testing.T) {
	m := grid(t)
	_, err := NewCatalog(m, "humidity")
	assert.ErrorIs(t, err, errs.ErrConfig)

	require.NoError(t, m.AddVariable("offset", nil, []float64{273.15}, nil))
	_, err = NewCatalog(m, "offset")
	assert.ErrorIs(t, err, errs.ErrConfig)
	assert.Contains(t, err.Error(), "scalar")
}

func TestDescribe(t *testing.T) {
	m := grid(t)

	info := Describe(m, DescribeOptions{})
	assert.Equal(t, 3, info.TotalDimensions)
	assert.Equal(t, 3, info.TotalVariables)
	require.Len(t, info.Variables, 3)
	assert.Equal(t, "temp", info.Variables[0].Name)
	assert.Equal(t, []int{2, 3, 4}, info.Variables[0].Shape)
	assert.Nil(t, info.Variables[0].Attributes)
	assert.Nil(t, info.GlobalAttributes)

	detailed := Describe(m, DescribeOptions{Variable: "temp", Detailed: true})
	require.Len(t, detailed.Variables, 1)
	assert.Equal(t, "K", detailed.Variables[0].Attributes["units"])
	assert.Equal(t, "test grid", detailed.GlobalAttributes["title"])

	none := Describe(m, DescribeOptions{Variable: "nope"})
	assert.Empty(t, none.Variables)
}

type fakeGetter struct {
	dims   []string
	values any
	outer  int
	slices *int
}

func (f fakeGetter) Len() int64 { return int64(f.outer) }
func (f fakeGetter) Values() (any, error) { return f.values, nil }
func (f fakeGetter) Dimensions() []string { return f.dims }
func (f fakeGetter) Attributes() api.AttributeMap { return nil }
func (f fakeGetter) Type() string { return "float" }
func (f fakeGetter) GoType() string { return "float32" }

func (f fakeGetter) GetSlice(begin, end int64) (any, error) {
	if f.slices != nil {
		*f.slices++
	}
	v := f.values.([][][]float32)
	return v[begin:end], nil
}

func TestInferShapeAndFlatten(t *testing.T) {
	vals := [][][]float32{
		{{1, 2, 3}, {4, 5, 6}},
		{{7, 8, 9}, {10, 11, 12}},
	}
	g := fakeGetter{dims: []string{"time", "lat", "lon"}, values: vals, outer: 2}

	shape, err := inferShape(g)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 3}, shape)

	slice, err := g.GetSlice(1, 2)
	require.NoError(t, err)
	flat, err := flatten(slice, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9, 10, 11, 12}, flat)

	_, err = flatten([]string{"a"}, nil)
	assert.Error(t, err)

	flat, err = flatten([]int32{1, -2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2}, flat)
}

func TestNetCDFReadHyperslab(t *testing.T) {
	vals := [][][]float32{
		{{1, 2, 3}, {4, 5, 6}},
		{{7, 8, 9}, {10, 11, 12}},
		{{13, 14, 15}, {16, 17, 18}},
	}
	g := fakeGetter{dims: []string{"time", "lat", "lon"}, values: vals, outer: 3}
	nc := &NetCDF{
		path: "fake.nc",
		vars: map[string]*ncVariable{
			"temp": {
				Variable: Variable{Name: "temp", Type: "float", Dimensions: g.dims},
				shape:    []int{3, 2, 3},
				getter:   g,
			},
		},
		order: []string{"temp"},
	}

	got, err := nc.ReadHyperslab(context.Background(), "temp", Hyperslab{
		{"time", 0, 2, 2}, {"lat", 1, 1, 1}, {"lon", 0, 2, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 6, 16, 18}, got)
}

func TestNetCDFReusesOuterBlock(t *testing.T) {
	vals := [][][]float32{
		{{1, 2, 3}, {4, 5, 6}},
		{{7, 8, 9}, {10, 11, 12}},
		{{13, 14, 15}, {16, 17, 18}},
	}
	var slices int
	g := fakeGetter{dims: []string{"time", "lat", "lon"}, values: vals, outer: 3, slices: &slices}
	nc := &NetCDF{
		path: "fake.nc",
		vars: map[string]*ncVariable{
			"temp": {
				Variable: Variable{Name: "temp", Type: "float", Dimensions: g.dims},
				shape:    []int{3, 2, 3},
				getter:   g,
			},
		},
		order: []string{"temp"},
	}
	ctx := context.Background()
	read := func(time, timeCount, lat int) []float64 {
		t.Helper()
		got, err := nc.ReadHyperslab(ctx, "temp", Hyperslab{
			{"time", time, timeCount, 1}, {"lat", lat, 1, 1}, {"lon", 0, 3, 1},
		})
		require.NoError(t, err)
		return got
	}

	// rows of one time step decode it once
	assert.Equal(t, []float64{7, 8, 9}, read(1, 1, 0))
	assert.Equal(t, []float64{10, 11, 12}, read(1, 1, 1))
	assert.Equal(t, 1, slices)

	assert.Equal(t, []float64{1, 2, 3}, read(0, 1, 0))
	assert.Equal(t, 2, slices)

	// a wider block serves later reads inside it
	assert.Equal(t, []float64{4, 5, 6, 10, 11, 12, 16, 17, 18}, read(0, 3, 1))
	assert.Equal(t, []float64{13, 14, 15}, read(2, 1, 0))
	assert.Equal(t, []float64{7, 8, 9}, read(1, 1, 0))
	assert.Equal(t, 3, slices)

	require.NoError(t, nc.Close())
	read(1, 1, 0)
	assert.Equal(t, 4, slices)
}
