package job

import (
	"time"

	"github.com/google/uuid"
)

// FilterReport describes what one filter selected.
type FilterReport struct {
	Op          string `json:"op" yaml:"op"`
	Description string `json:"description" yaml:"description"`
	Selected    int    `json:"selected" yaml:"selected"`
	Dropped     int    `json:"dropped_points,omitempty" yaml:"dropped_points,omitempty"`
	Unmatched   int    `json:"unmatched_values,omitempty" yaml:"unmatched_values,omitempty"`
}

// Report summarizes a job run.
type Report struct {
	RunID    uuid.UUID `json:"run_id" yaml:"run_id"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Input    string    `json:"input" yaml:"input"`
	Output   string    `json:"output" yaml:"output"`
	Variable string    `json:"variable" yaml:"variable"`
	DryRun   bool      `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`

	Filters       []FilterReport `json:"filters,omitempty" yaml:"filters,omitempty"`
	PlannedRows   int            `json:"planned_rows" yaml:"planned_rows"`
	ExtractedRows int64          `json:"extracted_rows" yaml:"extracted_rows"`
	OutputRows    int            `json:"output_rows" yaml:"output_rows"`
	OutputColumns []string       `json:"output_columns" yaml:"output_columns"`

	// DroppedPoints counts requested points with no grid location within
	// tolerance. It is reported, never an error.
	DroppedPoints   int `json:"dropped_points" yaml:"dropped_points"`
	UnmatchedValues int `json:"unmatched_values" yaml:"unmatched_values"`

	Chunks int64 `json:"chunks" yaml:"chunks"`
	Reads  int64 `json:"reads" yaml:"reads"`

	Stages   map[string]time.Duration `json:"stages" yaml:"stages"`
	Duration time.Duration            `json:"duration" yaml:"duration"`
}
