package domain

import "math"

// DefaultReconcileThreshold is the relative difference under which two
// measurements are considered to agree.
const DefaultReconcileThreshold = 0.1

// ReconcileStats counts how each joined pair was resolved.
type ReconcileStats struct {
	Averaged int `json:"averaged"`
	Minimum  int `json:"minimum"`
	Single   int `json:"single"`
	Empty    int `json:"empty"`
}

// Add accumulates other into s.
func (s *ReconcileStats) Add(other ReconcileStats) {
	s.Averaged += other.Averaged
	s.Minimum += other.Minimum
	s.Single += other.Single
	s.Empty += other.Empty
}

// Reconcile outer-joins two aggregated tables on (entity, period).
// Agreeing values (relative difference below threshold) are averaged;
// diverging values resolve to the lower one. A non-positive threshold uses
// DefaultReconcileThreshold. Rows follow a's key order, then keys only in b.
func Reconcile(a, b []ObservationRow, threshold float64) ([]ObservationRow, ReconcileStats) {
	if threshold <= 0 {
		threshold = DefaultReconcileThreshold
	}

	bIndex := make(map[RowKey]int, len(b))
	for i, r := range b {
		bIndex[r.Key()] = i
	}

	var stats ReconcileStats
	seen := make(map[RowKey]bool, len(a))
	out := make([]ObservationRow, 0, len(a)+len(b))

	for _, ra := range a {
		k := ra.Key()
		if seen[k] {
			continue
		}
		seen[k] = true

		var vb *float64
		if i, ok := bIndex[k]; ok {
			vb = b[i].Value
		}
		value, outcome := resolvePair(ra.Value, vb, threshold)
		stats.record(outcome)
		out = append(out, ObservationRow{Entity: ra.Entity, Period: ra.Period, Value: value})
	}

	for _, rb := range b {
		k := rb.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		value, outcome := resolvePair(nil, rb.Value, threshold)
		stats.record(outcome)
		out = append(out, ObservationRow{Entity: rb.Entity, Period: rb.Period, Value: value})
	}

	return out, stats
}

type pairOutcome int

const (
	outcomeEmpty pairOutcome = iota
	outcomeSingle
	outcomeAveraged
	outcomeMinimum
)

func (s *ReconcileStats) record(o pairOutcome) {
	switch o {
	case outcomeEmpty:
		s.Empty++
	case outcomeSingle:
		s.Single++
	case outcomeAveraged:
		s.Averaged++
	case outcomeMinimum:
		s.Minimum++
	}
}

func resolvePair(v1, v2 *float64, threshold float64) (*float64, pairOutcome) {
	switch {
	case v1 == nil && v2 == nil:
		return nil, outcomeEmpty
	case v1 == nil:
		return floatPtr(*v2), outcomeSingle
	case v2 == nil:
		return floatPtr(*v1), outcomeSingle
	}

	if RelativeDifference(*v1, *v2) < threshold {
		return floatPtr((*v1 + *v2) / 2), outcomeAveraged
	}
	return floatPtr(math.Min(*v1, *v2)), outcomeMinimum
}

// RelativeDifference returns |a-b| divided by the magnitude of their mean,
// or 0 when the mean is 0.
func RelativeDifference(a, b float64) float64 {
	avg := (a + b) / 2
	if avg == 0 {
		return 0
	}
	return math.Abs(a-b) / math.Abs(avg)
}
