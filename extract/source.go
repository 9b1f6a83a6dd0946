package extract

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/filter"
	"github.com/vegasq/nc2parquet/reader"
)

// ErrSourceDrained is returned by Next after the source has reported io.EOF
// or been closed.
var ErrSourceDrained = errors.New("extract: source drained")

// Chunk is one batch of selected rows, in output order.
type Chunk struct {
	Index int
	// Coords holds one coordinate column per plan dimension.
	Coords [][]float64
	Values []float64
}

// Len returns the number of rows in the chunk.
func (c *Chunk) Len() int { return len(c.Values) }

// Stats counts the work done by a Source.
type Stats struct {
	Chunks   int64
	Reads    int64
	Elements int64 // elements returned by hyperslab reads, selected or not
	Rows     int64
}

type counters struct {
	chunks, reads, elements, rows atomic.Int64
}

// Source pulls chunks of one variable restricted to a plan.
type Source struct {
	cat  *reader.Catalog
	plan *filter.Plan
	opts Options

	ch     chan *Chunk
	g      *errgroup.Group
	cancel context.CancelFunc

	mu      sync.Mutex
	err     error // terminal error, reported again by later calls
	drained bool

	stats counters
}

// Open starts the producer. The plan must be built over the catalog's
// dimensions. Cancelling ctx stops the producer; Close must still be called.
func Open(ctx context.Context, cat *reader.Catalog, plan *filter.Plan, opts Options) *Source {
	opts = opts.normalized()
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s := &Source{
		cat:    cat,
		plan:   plan,
		opts:   opts,
		ch:     make(chan *Chunk, opts.ReadAhead),
		g:      g,
		cancel: cancel,
	}
	g.Go(func() error {
		defer close(s.ch)
		return s.produce(gctx)
	})
	return s
}

// Next returns the next chunk, io.EOF once every row has been delivered,
// and ErrSourceDrained after that.
func (s *Source) Next(ctx context.Context) (*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.drained {
		return nil, ErrSourceDrained
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-s.ch:
		if ok {
			return c, nil
		}
	}

	if err := s.g.Wait(); err != nil {
		s.err = err
		return nil, err
	}
	s.drained = true
	return nil, io.EOF
}

// Close stops the producer and releases it. It is safe to call twice.
func (s *Source) Close() error {
	s.cancel()
	for range s.ch {
	}
	err := s.g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.drained = true
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stats returns counters for the work done so far.
func (s *Source) Stats() Stats {
	return Stats{
		Chunks:   s.stats.chunks.Load(),
		Reads:    s.stats.reads.Load(),
		Elements: s.stats.elements.Load(),
		Rows:     s.stats.rows.Load(),
	}
}

func (s *Source) produce(ctx context.Context) error {
	dims := s.plan.Dimensions()
	coords := make([][]float64, len(dims))
	for i, d := range dims {
		c, err := s.cat.Coordinates(ctx, d.Name)
		if err != nil {
			return err
		}
		coords[i] = c
	}

	var (
		index int
		err   error
	)
	emit := func(t task) bool {
		var c *Chunk
		c, err = s.read(ctx, t, coords)
		if err != nil {
			return false
		}
		c.Index = index
		index++
		select {
		case s.ch <- c:
			s.stats.chunks.Add(1)
			s.stats.rows.Add(int64(c.Len()))
			return true
		case <-ctx.Done():
			err = ctx.Err()
			return false
		}
	}

	if s.plan.Cartesian() {
		cartesianTasks(s.plan, s.opts.ChunkElements, emit)
	} else {
		jointTasks(s.plan, s.opts.BatchRows, s.opts.ChunkElements, emit)
	}
	return err
}

// read performs one hyperslab read and picks the task's rows out of it.
func (s *Source) read(ctx context.Context, t task, coords [][]float64) (*Chunk, error) {
	block, err := s.cat.Read(ctx, t.slab)
	if err != nil {
		return nil, err
	}
	s.stats.reads.Add(1)
	s.stats.elements.Add(int64(len(block)))

	// row-major strides of the block
	strides := make([]int, len(t.slab))
	acc := 1
	for i := len(t.slab) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= t.slab[i].Count
	}
	if acc != len(block) {
		return nil, errs.Dataf(s.cat.Variable().Name, "read %d elements, expected %d", len(block), acc)
	}

	c := &Chunk{
		Coords: make([][]float64, len(coords)),
		Values: make([]float64, len(t.rows)),
	}
	for i := range coords {
		c.Coords[i] = make([]float64, len(t.rows))
	}
	for r, row := range t.rows {
		off := 0
		for i, idx := range row {
			off += (idx - t.slab[i].Start) * strides[i]
			c.Coords[i][r] = coords[i][idx]
		}
		c.Values[r] = block[off]
	}
	return c, nil
}
