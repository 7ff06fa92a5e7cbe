package domain

import (
	"time"

	"github.com/google/uuid"
)

// RowFailure captures one skipped row: which table, where in the stream, and
// why. RowID carries the primary-key value when the row had one.
type RowFailure struct {
	ID         uuid.UUID   `json:"id"`
	Table      string      `json:"table"`
	RowNumber  int         `json:"row_number"`
	RowID      *string     `json:"row_id,omitempty"`
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// TableCount aggregates per-table stream counts for the run summary.
type TableCount struct {
	Rows    int `json:"rows"`
	Emitted int `json:"emitted"`
	Skipped int `json:"skipped"`
}

// Summary is the report of one completed export run. EntitiesEmitted counts
// row-derived entities only; the Metadata entity is implied by any
// successful run.
type Summary struct {
	RunID                uuid.UUID             `json:"run_id"`
	EntitiesEmitted      int                   `json:"entities_emitted"`
	RowsSkipped          int                   `json:"rows_skipped"`
	ValidationViolations int                   `json:"validation_violations"`
	Tables               map[string]TableCount `json:"tables"`
	Failures             []RowFailure          `json:"failures"`
	StartedAt            time.Time             `json:"started_at"`
	CompletedAt          time.Time             `json:"completed_at"`
}

// Duration returns the wall-clock span of the run.
func (s Summary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.StartedAt)
}

// FailuresFor returns the failures recorded for one table in occurrence
// order.
func (s Summary) FailuresFor(table string) []RowFailure {
	var failures []RowFailure
	for _, f := range s.Failures {
		if f.Table == table {
			failures = append(failures, f)
		}
	}
	return failures
}
