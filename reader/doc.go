// Package reader provides the source side of a job: metadata and array
// access for named-dimension numeric variables.
//
// A Provider exposes dimensions, variables and hyperslab reads. Two
// providers ship with the package:
//   - NetCDF: reads NetCDF classic and NetCDF-4 files through
//     github.com/batchatco/go-native-netcdf.
//   - Memory: an in-memory dataset, useful for tests and small fixtures.
//
// # Basic Usage
//
// Open a file and bind a variable:
//
//	p, err := reader.OpenNetCDF("weather.nc")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	cat, err := reader.NewCatalog(p, "temperature")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	lat, err := cat.Coordinates(ctx, "lat")
//
// # Hyperslabs
//
// Reads address a rectangular region by named dimension. Spans are given in
// the variable's dimension order and values come back row-major (the last
// dimension varies fastest):
//
//	vals, err := p.ReadHyperslab(ctx, "temperature", reader.Hyperslab{
//	    {Dimension: "time", Start: 0, Count: 2, Stride: 1},
//	    {Dimension: "lat", Start: 10, Count: 5, Stride: 1},
//	    {Dimension: "lon", Start: 0, Count: 20, Stride: 2},
//	})
//
// # Schema Introspection
//
// Describe summarizes a provider for the info command:
//
//	info := reader.Describe(p, reader.DescribeOptions{Detailed: true})
//	for _, v := range info.Variables {
//	    fmt.Printf("%s %v\n", v.Name, v.Shape)
//	}
package reader
