package pipeline

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/vegasq/nc2parquet/errs"
	"github.com/vegasq/nc2parquet/table"
)

// baseLayouts are the accepted formats for a datetime_convert base.
var baseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseBase parses a datetime_convert base. RFC 3339 is preferred; a date or
// a date-time without zone is read as UTC.
func ParseBase(s string) (time.Time, error) {
	for _, layout := range baseLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errs.Configf(s, "cannot parse base time, want RFC 3339")
}

var timeUnits = map[string]time.Duration{
	"nanoseconds":  time.Nanosecond,
	"microseconds": time.Microsecond,
	"milliseconds": time.Millisecond,
	"seconds":      time.Second,
	"minutes":      time.Minute,
	"hours":        time.Hour,
	"days":         24 * time.Hour,
}

var timeUnitAliases = map[string]string{
	"ns": "nanoseconds", "us": "microseconds", "ms": "milliseconds",
	"s": "seconds", "sec": "seconds", "min": "minutes",
	"h": "hours", "hour": "hours", "d": "days", "day": "days",
}

// TimeUnit resolves a datetime_convert unit name.
func TimeUnit(name string) (time.Duration, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := timeUnitAliases[n]; ok {
		n = canon
	}
	d, ok := timeUnits[n]
	if !ok {
		return 0, errs.Configf(name, "unknown time unit")
	}
	return d, nil
}

type datetimeProc struct {
	column string
	output string
	base   int64
	unit   time.Duration
}

func newDatetime(s DatetimeConvert) (processor, error) {
	if s.Column == "" {
		return nil, errs.Configf("", "datetime_convert needs a column")
	}
	if s.Base.IsZero() {
		return nil, errs.Configf(s.Column, "datetime_convert needs a base time")
	}
	unit, err := TimeUnit(s.Unit)
	if err != nil {
		return nil, err
	}
	return &datetimeProc{
		column: s.Column,
		output: s.Column + "_datetime",
		base:   s.Base.UTC().UnixNano(),
		unit:   unit,
	}, nil
}

func (d *datetimeProc) outputColumns(in []string) ([]string, error) {
	if err := requireColumns(in, d.column); err != nil {
		return nil, err
	}
	if indexOf(in, d.output) >= 0 {
		return in, nil
	}
	return append(append([]string(nil), in...), d.output), nil
}

func (d *datetimeProc) apply(_ context.Context, t *table.Table) (*table.Table, error) {
	c, err := column(t, d.column)
	if err != nil {
		return nil, err
	}
	if c.Kind == table.Timestamp {
		return nil, errs.Dataf(d.column, "column already holds timestamps")
	}
	out := make([]int64, c.Len())
	for i := range out {
		if c.Kind == table.Int64 {
			ts, ok := shift(d.base, c.Ints[i], d.unit)
			if !ok {
				return nil, errs.Dataf(d.column, "row %d: offset %d %s is not representable", i, c.Ints[i], d.unit)
			}
			out[i] = ts
			continue
		}
		offset := c.Float(i) * float64(d.unit)
		if math.IsNaN(offset) || math.Abs(offset) > math.MaxInt64/2 {
			return nil, errs.Dataf(d.column, "row %d: offset %g %s is not representable", i, c.Float(i), d.unit)
		}
		ts, ok := shift(d.base, int64(math.Round(offset)), time.Nanosecond)
		if !ok {
			return nil, errs.Dataf(d.column, "row %d: offset %g %s is not representable", i, c.Float(i), d.unit)
		}
		out[i] = ts
	}
	return t.With(table.NewTimestamp(d.output, out))
}

// shift returns base + n*unit in nanoseconds; ok is false on int64 overflow.
func shift(base, n int64, unit time.Duration) (int64, bool) {
	u := int64(unit)
	if n > math.MaxInt64/u || n < math.MinInt64/u {
		return 0, false
	}
	off := n * u
	sum := base + off
	if (off > 0 && sum < base) || (off < 0 && sum > base) {
		return 0, false
	}
	return sum, true
}
