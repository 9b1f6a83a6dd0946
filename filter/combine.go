package filter

import (
	"strconv"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/reader"
)

// Plan is the combined selection of a job over a variable's dimensions.
//
// Without point filters the plan is the Cartesian product of per-dimension
// index sets and is never materialized. With point filters the first joint
// selection supplies the candidate tuples; dimensions it does not cover are
// expanded around them, outer and ascending.
type Plan struct {
	dims []reader.Dimension
	axes [][]int

	// joint plans only
	joint  *Joint
	pos    []int // variable position of each joint dimension
	outer  []int // variable positions not covered by the joint
	tuples [][]int
	checks []survival
	rows   int
}

type survival struct {
	pos  []int
	keys map[string]struct{}
}

// Combine intersects filter results into a plan over dims, which must be
// the variable's dimensions in variable order. Scalar variables (no
// dimensions) are rejected.
func Combine(dims []reader.Dimension, results []Result) (*Plan, error) {
	if len(dims) == 0 {
		return nil, errs.Configf("", "cannot plan a scalar variable")
	}
	p := &Plan{dims: dims, axes: make([][]int, len(dims))}
	position := make(map[string]int, len(dims))
	for i, d := range dims {
		position[d.Name] = i
	}

	constrained := make([]bool, len(dims))
	var joints []*Joint
	for _, r := range results {
		switch sel := r.Selection.(type) {
		case *Axis:
			i, ok := position[sel.Dimension]
			if !ok {
				return nil, errs.Configf(sel.Dimension, "dimension not found on variable")
			}
			if constrained[i] {
				p.axes[i] = intersect(p.axes[i], sel.Indices)
			} else {
				p.axes[i] = append([]int(nil), sel.Indices...)
				constrained[i] = true
			}
		case *Joint:
			for _, d := range sel.Dims {
				if _, ok := position[d]; !ok {
					return nil, errs.Configf(d, "dimension not found on variable")
				}
			}
			joints = append(joints, sel)
		default:
			return nil, errs.Configf("", "unsupported selection %T", r.Selection)
		}
	}

	for i, d := range dims {
		if !constrained[i] {
			p.axes[i] = span(d.Len)
		}
	}

	if len(joints) == 0 {
		p.rows = 1
		for _, a := range p.axes {
			p.rows *= len(a)
		}
		return p, nil
	}

	p.joint = joints[0]
	covered := make([]bool, len(dims))
	p.pos = make([]int, len(p.joint.Dims))
	for k, d := range p.joint.Dims {
		p.pos[k] = position[d]
		covered[position[d]] = true
	}
	for i := range dims {
		if !covered[i] {
			p.outer = append(p.outer, i)
		}
	}

	sets := make([]map[int]bool, len(dims))
	for i, a := range p.axes {
		if constrained[i] {
			sets[i] = make(map[int]bool, len(a))
			for _, x := range a {
				sets[i][x] = true
			}
		}
	}
	for _, t := range p.joint.Tuples {
		keep := true
		for k, x := range t {
			if s := sets[p.pos[k]]; s != nil && !s[x] {
				keep = false
				break
			}
		}
		if keep {
			p.tuples = append(p.tuples, t)
		}
	}

	for _, j := range joints[1:] {
		c := survival{pos: make([]int, len(j.Dims)), keys: make(map[string]struct{}, len(j.Tuples))}
		for k, d := range j.Dims {
			c.pos[k] = position[d]
		}
		for _, t := range j.Tuples {
			c.keys[tupleKey(t)] = struct{}{}
		}
		p.checks = append(p.checks, c)
	}

	it := p.Rows()
	row := make([]int, len(dims))
	for it.Next(row) {
		p.rows++
	}
	return p, nil
}

// Dimensions returns the plan's dimensions in variable order.
func (p *Plan) Dimensions() []reader.Dimension { return p.dims }

// Cartesian reports whether the plan is a plain product of axis sets.
func (p *Plan) Cartesian() bool { return p.joint == nil }

// Axis returns the allowed indices of dimension i, ascending.
func (p *Plan) Axis(i int) []int { return p.axes[i] }

// Len returns the number of selected rows.
func (p *Plan) Len() int { return p.rows }

// Rows returns an iterator over the selected index tuples in output order.
func (p *Plan) Rows() *RowIter {
	it := &RowIter{p: p}
	if p.joint == nil {
		it.odo = make([]int, len(p.dims))
		it.done = p.rows == 0 || len(p.dims) == 0
	} else {
		it.odo = make([]int, len(p.outer))
		for _, o := range p.outer {
			if len(p.axes[o]) == 0 {
				it.done = true
			}
		}
		it.done = it.done || len(p.tuples) == 0
	}
	return it
}

// RowIter walks the rows of a plan. It is finite and not restartable.
type RowIter struct {
	p    *Plan
	odo  []int
	tup  int
	done bool
}

// Next writes the next row's indices, in variable order, into row and
// reports whether there was one. row must have one slot per dimension.
func (it *RowIter) Next(row []int) bool {
	if it.p.joint == nil {
		return it.nextCartesian(row)
	}
	for !it.done {
		if it.fillJoint(row) {
			return true
		}
	}
	return false
}

func (it *RowIter) nextCartesian(row []int) bool {
	if it.done {
		return false
	}
	for i, a := range it.p.axes {
		row[i] = a[it.odo[i]]
	}
	it.done = !advance(it.odo, func(i int) int { return len(it.p.axes[i]) })
	return true
}

// fillJoint writes the current candidate into row, advances, and reports
// whether the candidate survived every check.
func (it *RowIter) fillJoint(row []int) bool {
	p := it.p
	for k, o := range p.outer {
		row[o] = p.axes[o][it.odo[k]]
	}
	for k, x := range p.tuples[it.tup] {
		row[p.pos[k]] = x
	}

	it.tup++
	if it.tup == len(p.tuples) {
		it.tup = 0
		it.done = !advance(it.odo, func(k int) int { return len(p.axes[p.outer[k]]) })
	}

	proj := make([]int, 0, len(row))
	for _, c := range p.checks {
		proj = proj[:0]
		for _, i := range c.pos {
			proj = append(proj, row[i])
		}
		if _, ok := c.keys[tupleKey(proj)]; !ok {
			return false
		}
	}
	return true
}

// advance increments an odometer whose digit i runs to limit(i), last digit
// fastest. It returns false once every combination has been produced.
func advance(odo []int, limit func(int) int) bool {
	for i := len(odo) - 1; i >= 0; i-- {
		odo[i]++
		if odo[i] < limit(i) {
			return true
		}
		odo[i] = 0
	}
	return false
}

func intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func span(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func tupleKey(t []int) string {
	b := make([]byte, 0, len(t)*4)
	for i, x := range t {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(x), 10)
	}
	return string(b)
}
