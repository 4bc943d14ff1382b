// Package bench times the generation and query calls of a schema variant and
// renders the results.
package bench

import (
	"fmt"
	"time"

	"schemabench/src/models"
)

// PreviewLimit caps how many result rows a measurement keeps for display.
const PreviewLimit = 5

// Outcome describes what a measured call produced.
type Outcome struct {
	// Rows is the size of a query's result set, -1 for updates and generation.
	Rows    int
	Preview []string
	Update  *models.UpdateResult
	Summary string
}

// Measurement is one timed call.
type Measurement struct {
	Operation string
	Elapsed   time.Duration
	Outcome
}

// Measure times fn. The clock starts right before fn and stops when it
// returns, so fn must return fully materialized results. time.Now carries a
// monotonic reading, which keeps Elapsed immune to wall clock changes.
func Measure(operation string, fn func() (Outcome, error)) (Measurement, error) {
	start := time.Now()
	outcome, err := fn()
	elapsed := time.Since(start)

	m := Measurement{Operation: operation, Elapsed: elapsed, Outcome: outcome}
	if err != nil {
		return m, fmt.Errorf("%s: %w", operation, err)
	}
	return m, nil
}

// RowsOutcome summarizes a query result set.
func RowsOutcome[T fmt.Stringer](rows []T) Outcome {
	return Outcome{
		Rows:    len(rows),
		Preview: Preview(rows, PreviewLimit),
	}
}

// UpdateOutcome summarizes a bulk update.
func UpdateOutcome(result models.UpdateResult) Outcome {
	return Outcome{Rows: -1, Update: &result}
}

// SummaryOutcome describes a call that returns neither rows nor counts.
func SummaryOutcome(summary string) Outcome {
	return Outcome{Rows: -1, Summary: summary}
}

// Preview renders at most limit rows, first rows first.
func Preview[T fmt.Stringer](rows []T, limit int) []string {
	if limit > len(rows) {
		limit = len(rows)
	}
	if limit <= 0 {
		return nil
	}
	out := make([]string, 0, limit)
	for _, row := range rows[:limit] {
		out = append(out, row.String())
	}
	return out
}
