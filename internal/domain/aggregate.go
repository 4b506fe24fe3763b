package domain

import (
	"fmt"
	"strings"
)

// AggregateOptions describes how to reduce a raw table.
type AggregateOptions struct {
	EntityColumn string
	PeriodColumn string
	// TargetPeriod is forwarded to the detector. Nil means unknown.
	TargetPeriod *int
	Detector     Detector
	// ValueColumn skips detection and reads this column directly.
	ValueColumn string
}

// Aggregation is the reduced table and the column the values came from.
type Aggregation struct {
	Column string
	Rows   []ObservationRow
}

// Aggregate projects t to (entity, period, value) and keeps the last row per
// (entity, period). Missing entity/period columns and an undetectable value
// column are errors; unparseable cells become nil.
func Aggregate(t Table, opts AggregateOptions) (Aggregation, error) {
	valueCol := strings.TrimSpace(opts.ValueColumn)
	if valueCol == "" {
		detected, err := opts.Detector.Detect(t.Columns, opts.TargetPeriod)
		if err != nil {
			return Aggregation{}, err
		}
		valueCol = detected
	}

	entityIdx := t.ColumnIndex(opts.EntityColumn)
	if entityIdx < 0 {
		return Aggregation{}, fmt.Errorf("%w: entity column %q", ErrMissingColumn, opts.EntityColumn)
	}
	periodIdx := t.ColumnIndex(opts.PeriodColumn)
	if periodIdx < 0 {
		return Aggregation{}, fmt.Errorf("%w: period column %q", ErrMissingColumn, opts.PeriodColumn)
	}
	valueIdx := t.ColumnIndex(valueCol)
	if valueIdx < 0 {
		return Aggregation{}, fmt.Errorf("%w: value column %q", ErrMissingColumn, valueCol)
	}

	rows := make([]ObservationRow, 0, len(t.Rows))
	for _, rec := range t.Rows {
		rows = append(rows, ObservationRow{
			Entity: strings.TrimSpace(cell(rec, entityIdx)),
			Period: parseOptionalInt(cell(rec, periodIdx)),
			Value:  parseOptionalFloat(cell(rec, valueIdx)),
		})
	}

	return Aggregation{Column: valueCol, Rows: AggregateRows(rows)}, nil
}

// AggregateRows keeps the last row for each (entity, period) key. Keys appear
// in order of first occurrence, so applying it twice changes nothing.
func AggregateRows(rows []ObservationRow) []ObservationRow {
	index := make(map[RowKey]int, len(rows))
	out := make([]ObservationRow, 0, len(rows))
	for _, r := range rows {
		k := r.Key()
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
