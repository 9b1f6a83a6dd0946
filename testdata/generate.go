// Command generate writes sample.nc, a small NetCDF classic file used to try
// the CLI by hand:
//
//	go run ./testdata/generate.go
//	nc2parquet info testdata/sample.nc
package main

import (
	"log"
	"math"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

const (
	nTime = 4
	nLat  = 5
	nLon  = 8
)

func attrs(kv map[string]any) api.AttributeMap {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	m, err := util.NewOrderedMap(keys, kv)
	if err != nil {
		log.Fatal(err)
	}
	return m
}

func main() {
	out := filepath.Join("testdata", "sample.nc")
	cw, err := cdf.OpenWriter(out)
	if err != nil {
		log.Fatal(err)
	}

	times := make([]float64, nTime)
	for i := range times {
		times[i] = float64(i * 6)
	}
	lats := make([]float64, nLat)
	for i := range lats {
		lats[i] = -40 + float64(i)*20
	}
	lons := make([]float64, nLon)
	for i := range lons {
		lons[i] = float64(i) * 45
	}

	// temperature in kelvin: warm at the equator, with a small diurnal cycle
	temp := make([][][]float64, nTime)
	for t := range temp {
		temp[t] = make([][]float64, nLat)
		for y := range temp[t] {
			temp[t][y] = make([]float64, nLon)
			for x := range temp[t][y] {
				base := 300 - 0.5*math.Abs(lats[y])
				temp[t][y][x] = base + 2*math.Sin(2*math.Pi*(times[t]/24+lons[x]/360))
			}
		}
	}

	vars := []struct {
		name  string
		value api.Variable
	}{
		{"time", api.Variable{Values: times, Dimensions: []string{"time"},
			Attributes: attrs(map[string]any{"units": "hours since 2024-01-01 00:00:00"})}},
		{"lat", api.Variable{Values: lats, Dimensions: []string{"lat"},
			Attributes: attrs(map[string]any{"units": "degrees_north"})}},
		{"lon", api.Variable{Values: lons, Dimensions: []string{"lon"},
			Attributes: attrs(map[string]any{"units": "degrees_east"})}},
		{"temperature", api.Variable{Values: temp, Dimensions: []string{"time", "lat", "lon"},
			Attributes: attrs(map[string]any{"units": "K", "long_name": "air temperature"})}},
	}
	for _, v := range vars {
		if err := cw.AddVar(v.name, v.value); err != nil {
			log.Fatalf("%s: %v", v.name, err)
		}
	}
	if err := cw.AddGlobalAttrs(attrs(map[string]any{"title": "nc2parquet sample"})); err != nil {
		log.Fatal(err)
	}
	if err := cw.Close(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Generated %s: temperature(time=%d, lat=%d, lon=%d)", out, nTime, nLat, nLon)
}
