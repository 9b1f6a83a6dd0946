// Package extract reads the selected rows of a variable in bounded
// hyperslab chunks and materializes them as a table.
//
// A Source is a pull-based, finite, non-restartable producer of chunks.
// A producer goroutine keeps at most Options.ReadAhead chunks in flight,
// so reads overlap with whatever the consumer does with earlier chunks:
//
//	src := extract.Open(ctx, cat, plan, extract.DefaultOptions())
//	defer src.Close()
//	for {
//	    chunk, err := src.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//
// Materialize does the loop above and builds the output table.
package extract

import (
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/reader"
)

// Options bounds memory and read-ahead.
type Options struct {
	// ChunkElements caps the number of elements one hyperslab read may
	// return, except when a single row already exceeds it.
	ChunkElements int
	// BatchRows is the number of point-filter rows grouped into one read.
	BatchRows int
	// ReadAhead is the number of chunks buffered ahead of the consumer.
	ReadAhead int
}

// DefaultOptions returns 1M-element chunks, 4096-row batches and two
// chunks of read-ahead.
func DefaultOptions() Options {
	return Options{ChunkElements: 1 << 20, BatchRows: 4096, ReadAhead: 2}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.ChunkElements <= 0 {
		o.ChunkElements = d.ChunkElements
	}
	if o.BatchRows <= 0 {
		o.BatchRows = d.BatchRows
	}
	if o.ReadAhead <= 0 {
		o.ReadAhead = d.ReadAhead
	}
	return o
}

// Columns returns the output column names for a variable: one per
// dimension in variable order, then the variable itself. A dimension named
// like the variable (a coordinate variable) is not repeated.
func Columns(v reader.Variable) []string {
	cols := make([]string, 0, len(v.Dimensions)+1)
	for _, d := range v.Dimensions {
		if d != v.Name {
			cols = append(cols, d)
		}
	}
	return append(cols, v.Name)
}

// task is one hyperslab read and the rows to pick out of it.
type task struct {
	slab reader.Hyperslab
	// rows holds, per selected row, its index tuple in variable order.
	rows [][]int
}

// cartesianTasks splits a Cartesian plan into reads of at most limit
// elements. Dimensions after the split dimension k are read as their
// bounding box; dimensions before k are fixed per task; along k runs of
// selected indices are grouped while the read stays under limit.
func cartesianTasks(p *filter.Plan, limit int, emit func(task) bool) {
	dims := p.Dimensions()
	n := len(dims)
	if p.Len() == 0 || n == 0 {
		return
	}

	lo := make([]int, n)
	span := make([]int, n)
	for i := range dims {
		a := p.Axis(i)
		lo[i] = a[0]
		span[i] = a[len(a)-1] - a[0] + 1
	}

	inner := make([]int, n) // elements of one index along dim i, boxes after i
	acc := 1
	for i := n - 1; i >= 0; i-- {
		inner[i] = acc
		acc *= span[i]
	}
	k := n - 1
	for i := 0; i < n; i++ {
		if inner[i] <= limit {
			k = i
			break
		}
	}

	prefix := make([]int, k)
	for {
		axisK := p.Axis(k)
		for start := 0; start < len(axisK); {
			end := start + 1
			for end < len(axisK) && (axisK[end]-axisK[start]+1)*inner[k] <= limit {
				end++
			}
			run := axisK[start:end]

			slab := make(reader.Hyperslab, n)
			for i := 0; i < k; i++ {
				slab[i] = reader.Span{Dimension: dims[i].Name, Start: p.Axis(i)[prefix[i]], Count: 1, Stride: 1}
			}
			slab[k] = reader.Span{Dimension: dims[k].Name, Start: run[0], Count: run[len(run)-1] - run[0] + 1, Stride: 1}
			for i := k + 1; i < n; i++ {
				slab[i] = reader.Span{Dimension: dims[i].Name, Start: lo[i], Count: span[i], Stride: 1}
			}

			if !emit(task{slab: slab, rows: cartesianRows(p, prefix, run, k)}) {
				return
			}
			start = end
		}

		// advance the prefix odometer over dims 0..k-1
		i := k - 1
		for ; i >= 0; i-- {
			prefix[i]++
			if prefix[i] < len(p.Axis(i)) {
				break
			}
			prefix[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// cartesianRows lists the rows of one Cartesian task in output order.
func cartesianRows(p *filter.Plan, prefix, run []int, k int) [][]int {
	n := len(p.Dimensions())
	count := len(run)
	for i := k + 1; i < n; i++ {
		count *= len(p.Axis(i))
	}
	rows := make([][]int, 0, count)

	odo := make([]int, n-k) // odo[0] walks run, odo[j] walks axis k+j
	for {
		row := make([]int, n)
		for i := 0; i < k; i++ {
			row[i] = p.Axis(i)[prefix[i]]
		}
		row[k] = run[odo[0]]
		for j := 1; j < len(odo); j++ {
			row[k+j] = p.Axis(k + j)[odo[j]]
		}
		rows = append(rows, row)

		j := len(odo) - 1
		for ; j >= 0; j-- {
			odo[j]++
			limit := len(run)
			if j > 0 {
				limit = len(p.Axis(k + j))
			}
			if odo[j] < limit {
				break
			}
			odo[j] = 0
		}
		if j < 0 {
			return rows
		}
	}
}

// jointTasks batches the rows of a point-filter plan. A batch whose
// bounding box fits in limit is one read; otherwise each row is read alone.
func jointTasks(p *filter.Plan, batch, limit int, emit func(task) bool) {
	dims := p.Dimensions()
	it := p.Rows()
	for {
		rows := make([][]int, 0, batch)
		for len(rows) < batch {
			row := make([]int, len(dims))
			if !it.Next(row) {
				break
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			return
		}

		box := boundingBox(dims, rows)
		if box.Len() <= limit {
			if !emit(task{slab: box, rows: rows}) {
				return
			}
		} else {
			for _, r := range rows {
				if !emit(task{slab: boundingBox(dims, [][]int{r}), rows: [][]int{r}}) {
					return
				}
			}
		}
		if len(rows) < batch {
			return
		}
	}
}

func boundingBox(dims []reader.Dimension, rows [][]int) reader.Hyperslab {
	slab := make(reader.Hyperslab, len(dims))
	for i, d := range dims {
		lo, hi := rows[0][i], rows[0][i]
		for _, r := range rows[1:] {
			lo = min(lo, r[i])
			hi = max(hi, r[i])
		}
		slab[i] = reader.Span{Dimension: d.Name, Start: lo, Count: hi - lo + 1, Stride: 1}
	}
	return slab
}
