// Package filter turns filter specifications into index selections and
// combines the selections of a job into one extraction plan.
//
// A Spec is one of Range, List, Point2D or Point3D. Evaluate resolves a Spec
// against the coordinate values of a variable's dimensions and yields a
// Selection: an *Axis (sorted unique indices on one dimension) for Range and
// List, or a *Joint (ordered index tuples over coupled dimensions) for the
// point filters. Combine intersects the results into a Plan.
package filter

import (
	"fmt"
	"math"

	"github.com/vegasq/nc2parquet/errs"
)

// Kind names used in job files.
const (
	KindRange   = "range"
	KindList    = "list"
	KindPoint2D = "2d_point"
	KindPoint3D = "3d_point"
)

// Spec is a filter specification. The set of implementations is closed.
type Spec interface {
	// Kind returns the job-file name of the filter.
	Kind() string
	// Dimensions returns the dimensions the filter constrains.
	Dimensions() []string
	// Validate checks the parameters without looking at any data.
	Validate() error

	isSpec()
}

// Range selects indices whose coordinate lies in [Min, Max].
type Range struct {
	Dimension string
	Min       float64
	Max       float64
}

// List selects indices whose coordinate matches one of Values.
type List struct {
	Dimension string
	Values    []float64
}

// Point is a requested (lat, lon) location.
type Point struct {
	Lat float64
	Lon float64
}

// Point2D selects the nearest grid location of each point, if it lies
// within Tolerance.
type Point2D struct {
	LatDimension string
	LonDimension string
	Points       []Point
	Tolerance    float64
}

// Point3D is Point2D crossed with a list of time coordinate values.
type Point3D struct {
	TimeDimension string
	LatDimension  string
	LonDimension  string
	Steps         []float64
	Points        []Point
	Tolerance     float64
}

func (Range) isSpec()   {}
func (List) isSpec()    {}
func (Point2D) isSpec() {}
func (Point3D) isSpec() {}

func (Range) Kind() string   { return KindRange }
func (List) Kind() string    { return KindList }
func (Point2D) Kind() string { return KindPoint2D }
func (Point3D) Kind() string { return KindPoint3D }

func (s Range) Dimensions() []string { return []string{s.Dimension} }
func (s List) Dimensions() []string  { return []string{s.Dimension} }

func (s Point2D) Dimensions() []string {
	return []string{s.LatDimension, s.LonDimension}
}

func (s Point3D) Dimensions() []string {
	return []string{s.TimeDimension, s.LatDimension, s.LonDimension}
}

func (s Range) Validate() error {
	if s.Dimension == "" {
		return errs.Configf("", "range filter needs a dimension")
	}
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) {
		return errs.Configf(s.Dimension, "range bounds must be numbers")
	}
	if s.Min > s.Max {
		return errs.Configf(s.Dimension, "min %g is greater than max %g", s.Min, s.Max)
	}
	return nil
}

func (s List) Validate() error {
	if s.Dimension == "" {
		return errs.Configf("", "list filter needs a dimension")
	}
	for _, v := range s.Values {
		if math.IsNaN(v) {
			return errs.Configf(s.Dimension, "list values must be numbers")
		}
	}
	return nil
}

func (s Point2D) Validate() error {
	if err := distinct(s.Dimensions()); err != nil {
		return err
	}
	return validatePoints(s.LatDimension, s.Points, s.Tolerance)
}

func (s Point3D) Validate() error {
	if err := distinct(s.Dimensions()); err != nil {
		return err
	}
	for _, v := range s.Steps {
		if math.IsNaN(v) {
			return errs.Configf(s.TimeDimension, "steps must be numbers")
		}
	}
	return validatePoints(s.LatDimension, s.Points, s.Tolerance)
}

func distinct(dims []string) error {
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if d == "" {
			return errs.Configf("", "point filter needs every dimension name")
		}
		if seen[d] {
			return errs.Configf(d, "dimension used twice in one point filter")
		}
		seen[d] = true
	}
	return nil
}

func validatePoints(subject string, points []Point, tol float64) error {
	if math.IsNaN(tol) || tol < 0 {
		return errs.Configf(subject, "tolerance must be >= 0, got %g", tol)
	}
	for i, p := range points {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
			return errs.Configf(subject, "point %d is not a number", i)
		}
	}
	return nil
}

// Describe returns a short human-readable form of a spec, used in logs and
// dry-run output.
func Describe(s Spec) string {
	switch s := s.(type) {
	case Range:
		return fmt.Sprintf("range %s in [%g, %g]", s.Dimension, s.Min, s.Max)
	case List:
		return fmt.Sprintf("list %s in %v", s.Dimension, s.Values)
	case Point2D:
		return fmt.Sprintf("2d_point %s/%s, %d points, tolerance %g", s.LatDimension, s.LonDimension, len(s.Points), s.Tolerance)
	case Point3D:
		return fmt.Sprintf("3d_point %s/%s/%s, %d points x %d steps, tolerance %g",
			s.TimeDimension, s.LatDimension, s.LonDimension, len(s.Points), len(s.Steps), s.Tolerance)
	default:
		return fmt.Sprintf("unknown filter %T", s)
	}
}
