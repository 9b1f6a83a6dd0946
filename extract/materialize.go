package extract

import (
	"context"
	"errors"
	"io"

	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/reader"
	"github.com/vegasq/nc2parquet/table"
)

// Materialize drains a Source over plan into a table with one Float64
// column per dimension (coordinate values, or indices when the dimension
// has no coordinate variable) followed by the variable's values. Column
// names follow Columns.
func Materialize(ctx context.Context, cat *reader.Catalog, plan *filter.Plan, opts Options) (*table.Table, Stats, error) {
	src := Open(ctx, cat, plan, opts)
	defer src.Close()

	dims := plan.Dimensions()
	coords := make([][]float64, len(dims))
	for i := range coords {
		coords[i] = make([]float64, 0, plan.Len())
	}
	values := make([]float64, 0, plan.Len())

	for {
		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, src.Stats(), err
		}
		for i := range coords {
			coords[i] = append(coords[i], c.Coords[i]...)
		}
		values = append(values, c.Values...)
	}

	v := cat.Variable()
	cols := make([]*table.Column, 0, len(dims)+1)
	for i, d := range dims {
		if d.Name == v.Name {
			continue
		}
		cols = append(cols, table.NewFloat64(d.Name, coords[i]))
	}
	cols = append(cols, table.NewFloat64(v.Name, values))

	t, err := table.New(cols...)
	return t, src.Stats(), err
}
