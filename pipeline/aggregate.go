package pipeline

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/table"
)

// group represents the rows sharing one key combination
type group struct {
	first int   // row index the key was first seen at
	rows  []int // all rows in the group, ascending
}

type aggregateProc struct {
	keys       []string
	reductions []Reduction
	reducers   []Reducer
}

func newAggregate(s Aggregate, reg ReducerRegistry) (processor, error) {
	if len(s.Reductions) == 0 {
		return nil, errs.Configf("", "aggregate needs at least one aggregation")
	}
	rs := sortedReductions(s.Reductions)
	reducers := make([]Reducer, len(rs))
	for i, r := range rs {
		red, ok := reg.Lookup(r.Reducer)
		if !ok {
			return nil, errs.Configf(r.Reducer, "unknown reducer for column %q (known: %v)", r.Column, reg.Names())
		}
		reducers[i] = red
	}
	return &aggregateProc{keys: s.Keys, reductions: rs, reducers: reducers}, nil
}

func (a *aggregateProc) outputColumns(in []string) ([]string, error) {
	if err := requireColumns(in, a.keys...); err != nil {
		return nil, err
	}
	out := append([]string(nil), a.keys...)
	seen := make(map[string]bool, len(out))
	for _, k := range out {
		if seen[k] {
			return nil, errs.Configf(k, "group_by lists the column twice")
		}
		seen[k] = true
	}
	for _, r := range a.reductions {
		if err := requireColumns(in, r.Column); err != nil {
			return nil, err
		}
		name := r.OutputName()
		if seen[name] {
			return nil, errs.Configf(name, "aggregate output column is produced twice")
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// apply groups rows by the key columns in first-seen order and reduces each
// group. Empty input gives an empty table with the output columns.
func (a *aggregateProc) apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	keyCols := make([]*table.Column, len(a.keys))
	for i, k := range a.keys {
		c, err := column(t, k)
		if err != nil {
			return nil, err
		}
		keyCols[i] = c
	}

	groups, err := groupRows(ctx, keyCols, t.Len())
	if err != nil {
		return nil, err
	}

	firsts := make([]int, len(groups))
	for i, g := range groups {
		firsts[i] = g.first
	}

	out := make([]*table.Column, 0, len(a.keys)+len(a.reductions))
	for _, c := range keyCols {
		out = append(out, c.Take(firsts))
	}
	for i, r := range a.reductions {
		src, err := column(t, r.Column)
		if err != nil {
			return nil, err
		}
		out = append(out, reduce(r.OutputName(), src, a.reducers[i], groups))
	}
	return table.New(out...)
}

// groupRows computes a key for every row from the key columns. Without key
// columns all rows form a single group.
func groupRows(ctx context.Context, keyCols []*table.Column, n int) ([]*group, error) {
	if n == 0 {
		return nil, nil
	}
	if len(keyCols) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return []*group{{first: 0, rows: all}}, nil
	}

	index := make(map[string]int)
	var groups []*group
	buf := make([]byte, 0, 8*len(keyCols))
	for row := 0; row < n; row++ {
		if row%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		buf = buf[:0]
		for _, c := range keyCols {
			buf = binary.LittleEndian.AppendUint64(buf, keyBits(c, row))
		}
		if gi, ok := index[string(buf)]; ok {
			groups[gi].rows = append(groups[gi].rows, row)
			continue
		}
		index[string(buf)] = len(groups)
		groups = append(groups, &group{first: row, rows: []int{row}})
	}
	return groups, nil
}

// keyBits returns a bit pattern identifying the value at row. All NaNs
// share one pattern and -0 equals +0.
func keyBits(c *table.Column, row int) uint64 {
	if c.Kind != table.Float64 {
		return uint64(c.Ints[row])
	}
	v := c.Floats[row]
	switch {
	case math.IsNaN(v):
		return 0x7ff8000000000001
	case v == 0:
		return 0
	default:
		return math.Float64bits(v)
	}
}

func reduce(name string, src *table.Column, red Reducer, groups []*group) *table.Column {
	kind := red.OutputKind(src.Kind)
	switch {
	case red.Count:
		out := make([]int64, len(groups))
		for i, g := range groups {
			out[i] = int64(len(g.rows))
		}
		return table.NewInt64(name, out)

	case kind != table.Float64:
		out := make([]int64, len(groups))
		vals := make([]int64, 0)
		for i, g := range groups {
			vals = vals[:0]
			for _, r := range g.rows {
				vals = append(vals, src.Ints[r])
			}
			out[i] = red.Int(vals)
		}
		return &table.Column{Name: name, Kind: kind, Ints: out}

	default:
		out := make([]float64, len(groups))
		vals := make([]float64, 0)
		for i, g := range groups {
			vals = vals[:0]
			for _, r := range g.rows {
				vals = append(vals, src.Float(r))
			}
			out[i] = red.Float(vals)
		}
		return table.NewFloat64(name, out)
	}
}
