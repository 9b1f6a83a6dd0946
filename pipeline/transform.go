package pipeline

import (
	"context"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/expr"
	"github.com/vegasq/nc2parquet/table"
)

type renameProc struct {
	mapping map[string]string
}

func newRename(s RenameColumns) (processor, error) {
	for from, to := range s.Mapping {
		if from == "" || to == "" {
			return nil, errs.Configf(from, "rename needs non-empty names")
		}
	}
	return &renameProc{mapping: s.Mapping}, nil
}

func (r *renameProc) outputColumns(in []string) ([]string, error) {
	for from := range r.mapping {
		if err := requireColumns(in, from); err != nil {
			return nil, err
		}
	}
	out := make([]string, len(in))
	seen := make(map[string]bool, len(in))
	for i, c := range in {
		if to, ok := r.mapping[c]; ok {
			c = to
		}
		if seen[c] {
			return nil, errs.Configf(c, "rename produces duplicate column")
		}
		seen[c] = true
		out[i] = c
	}
	return out, nil
}

func (r *renameProc) apply(_ context.Context, t *table.Table) (*table.Table, error) {
	return t.Rename(r.mapping)
}

type unitProc struct {
	column string
	conv   Conversion
}

func newUnitConvert(s UnitConvert, units UnitRegistry) (processor, error) {
	if s.Column == "" {
		return nil, errs.Configf("", "unit_convert needs a column")
	}
	conv, err := units.Lookup(s.From, s.To)
	if err != nil {
		return nil, err
	}
	return &unitProc{column: s.Column, conv: conv}, nil
}

func (u *unitProc) outputColumns(in []string) ([]string, error) {
	return in, requireColumns(in, u.column)
}

func (u *unitProc) apply(_ context.Context, t *table.Table) (*table.Table, error) {
	c, err := column(t, u.column)
	if err != nil {
		return nil, err
	}
	if c.Kind == table.Timestamp {
		return nil, errs.Dataf(u.column, "cannot convert units of a timestamp column")
	}
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = u.conv.Apply(c.Float(i))
	}
	return t.With(table.NewFloat64(u.column, out))
}

type formulaProc struct {
	target  string
	sources []string
	prog    *expr.Program
}

func newFormula(s ApplyFormula) (processor, error) {
	if s.Target == "" {
		return nil, errs.Configf("", "apply_formula needs a target column")
	}
	prog, err := expr.Compile(s.Formula, s.Sources)
	if err != nil {
		return nil, err
	}
	return &formulaProc{target: s.Target, sources: s.Sources, prog: prog}, nil
}

func (f *formulaProc) outputColumns(in []string) ([]string, error) {
	if err := requireColumns(in, f.sources...); err != nil {
		return nil, err
	}
	if indexOf(in, f.target) >= 0 {
		return in, nil
	}
	return append(append([]string(nil), in...), f.target), nil
}

func (f *formulaProc) apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	src := make([]*table.Column, len(f.sources))
	for i, name := range f.sources {
		c, err := column(t, name)
		if err != nil {
			return nil, err
		}
		src[i] = c
	}

	out := make([]float64, t.Len())
	row := make([]float64, len(src))
	for i := range out {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j, c := range src {
			row[j] = c.Float(i)
		}
		v, err := f.prog.Eval(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return t.With(table.NewFloat64(f.target, out))
}
