package domain

import (
	"cmp"
	"slices"
	"strconv"
	"time"
)

// ObservationRow is one (entity, period) value after aggregation. A nil Period
// or Value means the source cell could not be parsed.
type ObservationRow struct {
	Entity string   `json:"entity"`
	Period *int     `json:"period"`
	Value  *float64 `json:"value"`
}

// Key returns the grouping key for the row.
func (r ObservationRow) Key() RowKey {
	k := RowKey{Entity: r.Entity}
	if r.Period != nil {
		k.Period = *r.Period
		k.Known = true
	}
	return k
}

// RowKey identifies an (entity, period) pair. An unknown period is its own key.
type RowKey struct {
	Entity string
	Period int
	Known  bool
}

func (k RowKey) String() string {
	if !k.Known {
		return k.Entity + "|unknown"
	}
	return k.Entity + "|" + strconv.Itoa(k.Period)
}

// Result is the output of one compilation run.
type Result struct {
	RunID      string           `json:"run_id"`
	CompiledAt time.Time        `json:"compiled_at"`
	Rows       []ObservationRow `json:"rows"`
	Summaries  []PeriodSummary  `json:"summaries"`
	Analysis   []AnalysisRow    `json:"analysis,omitempty"`
	Report     CompileReport    `json:"report"`
	Backfill   BackfillStats    `json:"backfill"`
	Stations   int              `json:"stations"`
}

// CompileReport records what happened to every expected source file.
type CompileReport struct {
	Periods []PeriodReport `json:"periods"`
}

// PeriodReport lists the sources of one period.
type PeriodReport struct {
	Period  int            `json:"period"`
	Sources []SourceReport `json:"sources"`
	Rows    int            `json:"rows"`
}

// Source statuses.
const (
	SourceLoaded      = "loaded"
	SourceMissing     = "missing"
	SourceSchemaError = "schema_error"
)

// SourceReport is the outcome for a single source file.
type SourceReport struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Column string `json:"column,omitempty"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// SortRows orders rows by (period, entity). Unknown periods sort last.
// The input is not modified.
func SortRows(rows []ObservationRow) []ObservationRow {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b ObservationRow) int {
		switch {
		case a.Period == nil && b.Period != nil:
			return 1
		case a.Period != nil && b.Period == nil:
			return -1
		case a.Period != nil && b.Period != nil && *a.Period != *b.Period:
			return cmp.Compare(*a.Period, *b.Period)
		}
		return cmp.Compare(a.Entity, b.Entity)
	})
	return out
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
