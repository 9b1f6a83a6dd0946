// Package pipeline applies an ordered list of table transforms to the
// extracted data.
//
// A pipeline is built once from processor specs and immutable registries:
//
//	p, err := pipeline.New([]pipeline.Spec{
//	    pipeline.UnitConvert{Column: "t2m", From: "kelvin", To: "celsius"},
//	    pipeline.RenameColumns{Mapping: map[string]string{"t2m": "temp_c"}},
//	}, pipeline.DefaultRegistries())
//
// New rejects unknown units, unknown reducers and malformed formulas.
// OutputColumns checks every column reference against the extraction
// columns before any data is read, and Run executes the processors in
// order, each consuming the previous table.
package pipeline

import (
	"sort"
	"time"
)

// Processor type names used in job files.
const (
	TypeRenameColumns   = "rename_columns"
	TypeUnitConvert     = "unit_convert"
	TypeApplyFormula    = "apply_formula"
	TypeDatetimeConvert = "datetime_convert"
	TypeAggregate       = "aggregate"
)

// Spec is a processor specification. The set of implementations is closed.
type Spec interface {
	// Type returns the job-file name of the processor.
	Type() string

	isSpec()
}

// RenameColumns renames columns old -> new, all at once.
type RenameColumns struct {
	Mapping map[string]string
}

// UnitConvert converts a column in place between two registered units.
type UnitConvert struct {
	Column string
	From   string
	To     string
}

// ApplyFormula evaluates Formula over Sources and stores the result in
// Target, replacing it in place or appending it.
type ApplyFormula struct {
	Target  string
	Formula string
	Sources []string
}

// DatetimeConvert reads Column as an offset in Unit from Base and appends
// the timestamps as <Column>_datetime.
type DatetimeConvert struct {
	Column string
	Base   time.Time
	Unit   string
}

// Reduction applies one reducer to one column.
type Reduction struct {
	Column  string
	Reducer string
}

// Aggregate groups by Keys and reduces the other columns.
type Aggregate struct {
	Keys       []string
	Reductions []Reduction
}

func (RenameColumns) isSpec()   {}
func (UnitConvert) isSpec()     {}
func (ApplyFormula) isSpec()    {}
func (DatetimeConvert) isSpec() {}
func (Aggregate) isSpec()       {}

func (RenameColumns) Type() string   { return TypeRenameColumns }
func (UnitConvert) Type() string     { return TypeUnitConvert }
func (ApplyFormula) Type() string    { return TypeApplyFormula }
func (DatetimeConvert) Type() string { return TypeDatetimeConvert }
func (Aggregate) Type() string       { return TypeAggregate }

// OutputName returns the column name a reduction produces.
func (r Reduction) OutputName() string {
	return r.Column + "_" + r.Reducer
}

// sortedReductions returns rs ordered by (column, reducer).
func sortedReductions(rs []Reduction) []Reduction {
	out := append([]Reduction(nil), rs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		return out[i].Reducer < out[j].Reducer
	})
	return out
}
