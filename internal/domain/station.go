package domain

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Station layout field names.
const (
	FieldID        = "id"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldElevation = "elevation"
	FieldName      = "name"
	FieldRegion    = "region"
)

// StationRecord is one parsed registry line.
type StationRecord struct {
	ID         string   `json:"id"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Elevation  *float64 `json:"elevation,omitempty"`
	Name       string   `json:"name,omitempty"`
	RegionCode string   `json:"region_code,omitempty"`
	RegionName string   `json:"region_name,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude parsed.
func (s StationRecord) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// FieldSpan maps a byte range [Start, End) of each line to a field.
type FieldSpan struct {
	Field string `yaml:"field"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

// StationLayout is the ordered column layout of a registry file.
type StationLayout []FieldSpan

// DefaultStationLayout is the reference registry layout.
func DefaultStationLayout() StationLayout {
	return StationLayout{
		{Field: FieldID, Start: 0, End: 11},
		{Field: FieldLatitude, Start: 12, End: 20},
		{Field: FieldLongitude, Start: 21, End: 30},
		{Field: FieldElevation, Start: 31, End: 37},
		{Field: FieldName, Start: 38, End: 68},
		{Field: FieldRegion, Start: 69, End: 71},
	}
}

// Validate checks that the layout has an id field and sane spans.
func (l StationLayout) Validate() error {
	hasID := false
	for _, f := range l {
		if f.Start < 0 || f.End <= f.Start {
			return fmt.Errorf("station layout: invalid span %d-%d for %q", f.Start, f.End, f.Field)
		}
		if f.Field == FieldID {
			hasID = true
		}
	}
	if !hasID {
		return fmt.Errorf("station layout: %w: %s", ErrMissingColumn, FieldID)
	}
	return nil
}

// ParseStations reads fixed-width station records from r. Blank lines are
// skipped. Numeric fields that fail to parse are left nil. Region names are
// resolved through dir; a nil dir uses DefaultRegionDirectory.
func ParseStations(r io.Reader, layout StationLayout, dir RegionDirectory) ([]StationRecord, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if dir == nil {
		dir = DefaultRegionDirectory()
	}

	var stations []StationRecord
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stations = append(stations, parseStationLine(line, layout, dir))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan station registry: %w", err)
	}
	return stations, nil
}

func parseStationLine(line string, layout StationLayout, dir RegionDirectory) StationRecord {
	var rec StationRecord
	for _, f := range layout {
		value := sliceField(line, f.Start, f.End)
		switch f.Field {
		case FieldID:
			rec.ID = value
		case FieldLatitude:
			rec.Latitude = parseOptionalFloat(value)
		case FieldLongitude:
			rec.Longitude = parseOptionalFloat(value)
		case FieldElevation:
			rec.Elevation = parseOptionalFloat(value)
		case FieldName:
			rec.Name = value
		case FieldRegion:
			rec.RegionCode = strings.ToUpper(value)
		}
	}

	if rec.RegionCode == "" {
		rec.RegionCode = DeriveRegionCode(rec.ID)
	}
	if rec.RegionCode != "" {
		rec.RegionName = dir.Resolve(rec.RegionCode)
	}
	return rec
}

// sliceField returns the trimmed bytes [start, end) of line, clamped to its length.
func sliceField(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

// DeriveRegionCode returns the first two ASCII letters of id after the
// two-character country prefix, e.g. "USC00AZ1234" -> "AZ". Identifiers with
// fewer letters yield a shorter code.
func DeriveRegionCode(id string) string {
	if len(id) <= 2 {
		return ""
	}
	code := make([]byte, 0, 2)
	for i := 2; i < len(id) && len(code) < 2; i++ {
		c := id[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') {
			code = append(code, c)
		}
	}
	return string(code)
}

// parseOptionalFloat parses s as float64, returning nil when s is blank,
// malformed, or not finite ("NaN", "Inf").
func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseOptionalInt parses s as an integer period. Values like "2020.0" written
// by spreadsheet exports are accepted when they have no fractional part.
func parseOptionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	v := int(f)
	return &v
}
