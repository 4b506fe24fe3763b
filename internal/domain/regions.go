package domain

import (
	"slices"
	"strings"
)

// RegionDirectory maps normalized region codes to full names.
type RegionDirectory map[string]string

// Resolve returns the full name for code. Unknown codes pass through as given.
func (d RegionDirectory) Resolve(code string) string {
	if name, ok := d[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// DefaultRegionDirectory returns the US state, district, and territory codes.
func DefaultRegionDirectory() RegionDirectory {
	return RegionDirectory{
		"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
		"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
		"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
		"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
		"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
		"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
		"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
		"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
		"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
		"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
		"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
		"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
		"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
		"AS": "American Samoa", "GU": "Guam", "MP": "Northern Mariana Islands",
		"PR": "Puerto Rico", "VI": "U.S. Virgin Islands",
	}
}

// RegionMap maps an aggregate region name to its member entities, in report order.
type RegionMap map[string][]string

// Names returns the region names in sorted order.
func (m RegionMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegion reports whether entity is one of the configured aggregate regions.
func (m RegionMap) IsRegion(entity string) bool {
	_, ok := m[entity]
	return ok
}
