package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultCumulativeMarker is the substring that identifies a cumulative count column.
const DefaultCumulativeMarker = "cum"

// PeriodPlaceholder is replaced by the target period in Detector.HeaderTemplate.
const PeriodPlaceholder = "{period}"

// Detector locates the cumulative count column of a source. Rules are tried
// in order and the first match wins:
//
//  1. with a target period: first column containing Marker (any case) and the period digits
//  2. HeaderTemplate set: the column equal to the template with the period filled in
//  3. a column named exactly Marker, else the first column containing Marker (any case)
type Detector struct {
	Marker         string `yaml:"cumulative_marker"`
	HeaderTemplate string `yaml:"header_template"`
}

func (d Detector) marker() string {
	if d.Marker == "" {
		return DefaultCumulativeMarker
	}
	return d.Marker
}

// Detect returns the name of the cumulative column, or ErrNoCumulativeColumn.
// Column names are trimmed before matching and returned trimmed.
func (d Detector) Detect(columns []string, period *int) (string, error) {
	marker := strings.ToLower(d.marker())

	trimmed := make([]string, len(columns))
	for i, c := range columns {
		trimmed[i] = strings.TrimSpace(c)
	}

	if period != nil {
		year := strconv.Itoa(*period)
		for _, c := range trimmed {
			if strings.Contains(strings.ToLower(c), marker) && strings.Contains(c, year) {
				return c, nil
			}
		}
	}

	if want, ok := d.expectedHeader(period); ok {
		for _, c := range trimmed {
			if c == want {
				return c, nil
			}
		}
	}

	for _, c := range trimmed {
		if c == d.marker() {
			return c, nil
		}
	}
	for _, c := range trimmed {
		if strings.Contains(strings.ToLower(c), marker) {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w in columns %q", ErrNoCumulativeColumn, trimmed)
}

// expectedHeader fills the header template. It reports false when no template
// is configured or the template needs a period that was not given.
func (d Detector) expectedHeader(period *int) (string, bool) {
	tmpl := strings.TrimSpace(d.HeaderTemplate)
	if tmpl == "" {
		return "", false
	}
	if !strings.Contains(tmpl, PeriodPlaceholder) {
		return tmpl, true
	}
	if period == nil {
		return "", false
	}
	return strings.ReplaceAll(tmpl, PeriodPlaceholder, strconv.Itoa(*period)), true
}
