package reader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/nc2parquet/errs"
)

func writeNetCDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.nc")
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	units, err := util.NewOrderedMap([]string{"units"}, map[string]any{"units": "K"})
	require.NoError(t, err)

	require.NoError(t, cw.AddVar("lat", api.Variable{Values: []float64{-10, 0, 10}, Dimensions: []string{"lat"}}))
	require.NoError(t, cw.AddVar("lon", api.Variable{Values: []float64{0, 90, 180, 270}, Dimensions: []string{"lon"}}))
	require.NoError(t, cw.AddVar("temp", api.Variable{
		Values: [][][]float32{
			{{0, 1, 2, 3}, {10, 11, 12, 13}, {20, 21, 22, 23}},
			{{100, 101, 102, 103}, {110, 111, 112, 113}, {120, 121, 122, 123}},
		},
		Dimensions: []string{"time", "lat", "lon"},
		Attributes: units,
	}))
	require.NoError(t, cw.Close())
	return path
}

func TestOpenNetCDF(t *testing.T) {
	nc, err := OpenNetCDF(writeNetCDF(t))
	require.NoError(t, err)
	defer nc.Close()

	cat, err := NewCatalog(nc, "temp")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, cat.Shape())
	assert.Equal(t, "K", cat.Variable().Attributes["units"])
	assert.True(t, cat.HasCoordinates("lat"))
	assert.False(t, cat.HasCoordinates("time"))

	lat, err := cat.Coordinates(context.Background(), "lat")
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, 0, 10}, lat)

	got, err := cat.Read(context.Background(), Hyperslab{
		{Dimension: "time", Start: 1, Count: 1},
		{Dimension: "lat", Start: 0, Count: 2, Stride: 2},
		{Dimension: "lon", Start: 1, Count: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 102, 121, 122}, got)
}

func TestOpenNetCDFMissing(t *testing.T) {
	_, err := OpenNetCDF(filepath.Join(t.TempDir(), "none.nc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrIO)
}
