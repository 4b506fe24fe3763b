package domain

import "slices"

// BackfillStats summarizes a Region Backfill pass.
type BackfillStats struct {
	Filled        int `json:"filled"`
	MissingTotals int `json:"missing_totals"`
	RegionRows    int `json:"region_rows_dropped"`
}

// BackfillRegions fills members that have no row in a period with an equal
// share of the residual between the region total and the members that are
// present, then drops every region row. Regions without a total row for a
// period are skipped. Rows with an unknown period are never backfilled.
func BackfillRegions(rows []ObservationRow, regions RegionMap) ([]ObservationRow, BackfillStats) {
	var stats BackfillStats
	if len(regions) == 0 {
		return slices.Clone(rows), stats
	}

	periods, byPeriod := indexByPeriod(rows)
	out := slices.Clone(rows)

	for _, period := range periods {
		present := byPeriod[period]
		for _, region := range regions.Names() {
			total, ok := present[region]
			if !ok || total.Value == nil {
				stats.MissingTotals++
				continue
			}

			var known float64
			var missing []string
			for _, member := range regions[region] {
				r, ok := present[member]
				if !ok {
					if !slices.Contains(missing, member) {
						missing = append(missing, member)
					}
					continue
				}
				if r.Value != nil {
					known += *r.Value
				}
			}
			if len(missing) == 0 {
				continue
			}

			share := (*total.Value - known) / float64(len(missing))
			for _, member := range missing {
				filled := ObservationRow{
					Entity: member,
					Period: intPtr(period),
					Value:  floatPtr(share),
				}
				out = append(out, filled)
				present[member] = filled
				stats.Filled++
			}
		}
	}

	kept := out[:0]
	for _, r := range out {
		if regions.IsRegion(r.Entity) {
			stats.RegionRows++
			continue
		}
		kept = append(kept, r)
	}
	return kept, stats
}

// indexByPeriod groups rows with a known period by entity. The first row for
// an entity wins; aggregated input has at most one.
func indexByPeriod(rows []ObservationRow) ([]int, map[int]map[string]ObservationRow) {
	byPeriod := make(map[int]map[string]ObservationRow)
	var periods []int
	for _, r := range rows {
		if r.Period == nil {
			continue
		}
		p := *r.Period
		entities, ok := byPeriod[p]
		if !ok {
			entities = make(map[string]ObservationRow)
			byPeriod[p] = entities
			periods = append(periods, p)
		}
		if _, dup := entities[r.Entity]; !dup {
			entities[r.Entity] = r
		}
	}
	slices.Sort(periods)
	return periods, byPeriod
}
