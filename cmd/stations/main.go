// Command stations lists the station registry with the region each station
// resolves to, using the same layout and region rules as the compiler.
//
// Usage:
//
//	go run ./cmd/stations \
//	  -stations data/ghcnd-stations.txt \
//	  -config compiler.yaml \
//	  -format tsv
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/cocci-climate-etl/internal/config"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
	"github.com/couchcryptid/cocci-climate-etl/internal/source"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("stations", flag.ContinueOnError)
	stationsPath := fs.String("stations", "data/ghcnd-stations.txt", "fixed-width station registry")
	configPath := fs.String("config", "compiler.yaml", "compile settings file (station_layout); optional")
	format := fs.String("format", "tsv", "output format: tsv or json")
	region := fs.String("region", "", "only list stations in this region code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.LoadCompileSettings(*configPath, true)
	if err != nil {
		return err
	}

	stations, err := source.LoadStations(*stationsPath, settings.StationLayout, domain.DefaultRegionDirectory())
	if err != nil {
		return err
	}
	if *region != "" {
		stations = filterRegion(stations, *region)
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stations)
	case "tsv":
		return writeTable(out, stations)
	default:
		return fmt.Errorf("unknown format %q: must be tsv or json", *format)
	}
}

// filterRegion keeps stations whose region code matches code, ignoring case
// and surrounding space.
func filterRegion(stations []domain.StationRecord, code string) []domain.StationRecord {
	code = strings.ToUpper(strings.TrimSpace(code))
	var out []domain.StationRecord
	for _, s := range stations {
		if s.RegionCode == code {
			out = append(out, s)
		}
	}
	return out
}

func writeTable(out io.Writer, stations []domain.StationRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREGION\tREGION NAME\tLAT\tLON\tELEV\tNAME")
	for _, s := range stations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.RegionCode, s.RegionName,
			optional(s.Latitude), optional(s.Longitude), optional(s.Elevation), s.Name)
	}
	return tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
