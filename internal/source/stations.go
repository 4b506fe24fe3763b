package source

import (
	"context"
	"fmt"
	"os"

	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

// LoadStations parses the fixed-width registry at path. An unreadable file is
// reported as *domain.FileAccessError with no records.
func LoadStations(path string, layout domain.StationLayout, dir domain.RegionDirectory) ([]domain.StationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.FileAccessError{Path: path, Err: err}
	}
	defer f.Close()

	stations, err := domain.ParseStations(f, layout, dir)
	if err != nil {
		return nil, fmt.Errorf("parse stations %s: %w", path, err)
	}
	return stations, nil
}

// Registry loads the station registry from a fixed location.
type Registry struct {
	Path      string
	Layout    domain.StationLayout
	Directory domain.RegionDirectory
}

// LoadStations reads the registry. The context is checked before the file is opened.
func (r Registry) LoadStations(ctx context.Context) ([]domain.StationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadStations(r.Path, r.Layout, r.Directory)
}
