package domain

import "math"

// PeriodSummary is the descriptive row for one period of the compiled table.
type PeriodSummary struct {
	Period   int     `json:"period"`
	Entities int     `json:"entities"`
	Missing  int     `json:"missing"`
	Total    float64 `json:"total"`
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Summarize computes per-period statistics over rows with a known period,
// ordered by period. Rows with a nil value count as missing and are excluded
// from the numeric fields.
func Summarize(rows []ObservationRow) []PeriodSummary {
	periods, byPeriod := indexByPeriod(rows)

	out := make([]PeriodSummary, 0, len(periods))
	for _, p := range periods {
		s := PeriodSummary{Period: p, Min: math.Inf(1), Max: math.Inf(-1)}
		n := 0
		for _, r := range byPeriod[p] {
			s.Entities++
			if r.Value == nil {
				s.Missing++
				continue
			}
			v := *r.Value
			s.Total += v
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
			n++
		}
		if n == 0 {
			s.Min, s.Max = 0, 0
		} else {
			s.Mean = s.Total / float64(n)
		}
		out = append(out, s)
	}
	return out
}
