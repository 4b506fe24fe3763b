package domain

import (
	"slices"
	"strings"
)

// MergedRow is an observation with the station it was reported by. Station is
// nil when the identifier is not in the registry.
type MergedRow struct {
	ObservationRow
	Station *StationRecord `json:"station,omitempty"`
}

// MergeStations left-joins rows onto stations by Entity == ID. Every row is
// kept; unmatched rows carry a nil Station.
func MergeStations(rows []ObservationRow, stations []StationRecord) []MergedRow {
	byID := make(map[string]*StationRecord, len(stations))
	for i := range stations {
		s := stations[i]
		if _, dup := byID[s.ID]; !dup {
			byID[s.ID] = &s
		}
	}

	out := make([]MergedRow, len(rows))
	for i, r := range rows {
		out[i] = MergedRow{ObservationRow: r, Station: byID[r.Entity]}
	}
	return out
}

// RegionClimate averages merged station values per (region name, period).
// Rows without a station, region, period, or value are ignored. Output is
// sorted by (period, region).
func RegionClimate(rows []MergedRow) []ObservationRow {
	type acc struct {
		sum float64
		n   int
	}
	sums := make(map[RowKey]*acc)
	var keys []RowKey

	for _, r := range rows {
		if r.Station == nil || r.Period == nil || r.Value == nil {
			continue
		}
		region := r.Station.RegionName
		if region == "" {
			region = r.Station.RegionCode
		}
		if region == "" {
			continue
		}
		k := RowKey{Entity: region, Period: *r.Period, Known: true}
		a, ok := sums[k]
		if !ok {
			a = &acc{}
			sums[k] = a
			keys = append(keys, k)
		}
		a.sum += *r.Value
		a.n++
	}

	out := make([]ObservationRow, 0, len(keys))
	for _, k := range keys {
		a := sums[k]
		out = append(out, ObservationRow{
			Entity: k.Entity,
			Period: intPtr(k.Period),
			Value:  floatPtr(a.sum / float64(a.n)),
		})
	}
	return SortRows(out)
}

// AnalysisRow pairs the compiled case value with the regional climate value.
type AnalysisRow struct {
	Entity  string   `json:"entity"`
	Period  int      `json:"period"`
	Cases   *float64 `json:"cases"`
	Climate *float64 `json:"climate"`
}

// JoinClimate left-joins climate values onto compiled case rows by
// (entity, period), matching entity names case-insensitively. Case rows with an
// unknown period are skipped.
func JoinClimate(cases, climate []ObservationRow) []AnalysisRow {
	index := make(map[RowKey]*float64, len(climate))
	for _, c := range climate {
		if c.Period == nil {
			continue
		}
		index[RowKey{Entity: strings.ToLower(c.Entity), Period: *c.Period, Known: true}] = c.Value
	}

	out := make([]AnalysisRow, 0, len(cases))
	for _, r := range cases {
		if r.Period == nil {
			continue
		}
		out = append(out, AnalysisRow{
			Entity:  r.Entity,
			Period:  *r.Period,
			Cases:   r.Value,
			Climate: index[RowKey{Entity: strings.ToLower(r.Entity), Period: *r.Period, Known: true}],
		})
	}
	return slices.Clip(out)
}
