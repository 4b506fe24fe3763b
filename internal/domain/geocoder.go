package domain

import "context"

// GeocodingResult is the region a coordinate falls in.
type GeocodingResult struct {
	RegionCode string
	RegionName string
	Confidence float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves coordinates to an administrative region.
type Geocoder interface {
	// ReverseGeocode converts coordinates to region details. An empty result
	// with a nil error means the provider had no match.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
