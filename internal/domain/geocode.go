package domain

import (
	"context"
	"log/slog"
	"slices"
)

// ResolveRegions fills RegionCode and RegionName for stations that have no
// region code but do have coordinates, using the geocoder. Lookup failures and
// empty results leave the station unchanged (graceful degradation). A nil
// geocoder returns the stations as given. The input slice is never modified.
func ResolveRegions(ctx context.Context, stations []StationRecord, geocoder Geocoder, logger *slog.Logger) []StationRecord {
	out := slices.Clone(stations)
	if geocoder == nil {
		return out
	}

	for i := range out {
		if ctx.Err() != nil {
			return out
		}
		s := &out[i]
		if s.RegionCode != "" || s.RegionName != "" || !s.HasCoordinates() {
			continue
		}

		result, err := geocoder.ReverseGeocode(ctx, *s.Latitude, *s.Longitude)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"station_id", s.ID,
				"lat", *s.Latitude,
				"lon", *s.Longitude,
				"error", err,
			)
			continue
		}
		if result.RegionName == "" {
			logger.Debug("reverse geocoding returned no region", "station_id", s.ID)
			continue
		}
		s.RegionName = result.RegionName
		if result.RegionCode != "" {
			s.RegionCode = result.RegionCode
		}
	}
	return out
}
