// Command validate checks a compiled case table against the output
// invariants: unique (entity, period) keys, (period, entity) order, no region
// aggregate rows, and parseable cells. With -db it also checks that the SQL
// sink holds the same table.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv out/compiled.csv \
//	  -config compiler.yaml \
//	  -db-driver sqlite -db out/compiled.db
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/cocci-climate-etl/internal/adapter/csvout"
	"github.com/couchcryptid/cocci-climate-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/cocci-climate-etl/internal/config"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	csvPath    string
	configPath string
	dbDriver   string
	dbDSN      string
}

func main() {
	var opts options
	flag.StringVar(&opts.csvPath, "csv", "", "path to the compiled CSV")
	flag.StringVar(&opts.configPath, "config", "compiler.yaml", "compile settings file (regions); optional")
	flag.StringVar(&opts.dbDriver, "db-driver", config.DriverSQLite, "SQL sink driver: sqlite or pgx")
	flag.StringVar(&opts.dbDSN, "db", "", "SQL sink DSN to compare against the CSV; optional")
	flag.Parse()

	if opts.csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(context.Background(), os.Stdout, opts))
}

func run(ctx context.Context, out io.Writer, opts options) int {
	fmt.Fprintln(out, "=== Compiled Table Validation ===")
	fmt.Fprintln(out)

	settings, err := config.LoadCompileSettings(opts.configPath, true)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	f, err := os.Open(opts.csvPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: open compiled CSV: %v\n", err)
		return 1
	}
	rows, err := csvout.ReadRows(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(out, "FATAL: parse compiled CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateUniqueKeys(rows),
		validateOrder(rows),
		validateNoRegionRows(rows, settings.Regions),
		validateValues(rows),
	}
	if opts.dbDSN != "" {
		phases = append(phases, validateSQLParity(ctx, rows, opts.dbDriver, opts.dbDSN))
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d, periods: %d\n", len(rows), len(domain.Summarize(rows)))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validateUniqueKeys(rows []domain.ObservationRow) *phase {
	p := &phase{name: "Unique (entity, period) keys"}
	seen := make(map[domain.RowKey]int, len(rows))
	for i, r := range rows {
		if prev, dup := seen[r.Key()]; dup {
			p.errorf("row %d duplicates row %d: %s", i+1, prev+1, r.Key())
			continue
		}
		seen[r.Key()] = i
	}
	return p
}

func validateOrder(rows []domain.ObservationRow) *phase {
	p := &phase{name: "Sorted by (period, entity)"}
	sorted := domain.SortRows(rows)
	for i := range rows {
		if rows[i].Key() != sorted[i].Key() {
			p.errorf("row %d is %s, expected %s", i+1, rows[i].Key(), sorted[i].Key())
			break
		}
	}
	return p
}

func validateNoRegionRows(rows []domain.ObservationRow, regions domain.RegionMap) *phase {
	p := &phase{name: "No region aggregate rows"}
	for i, r := range rows {
		if regions.IsRegion(r.Entity) {
			p.errorf("row %d: region %q in output", i+1, r.Entity)
		}
	}
	return p
}

func validateValues(rows []domain.ObservationRow) *phase {
	p := &phase{name: "Entities and values well-formed"}
	for i, r := range rows {
		if r.Entity == "" {
			p.errorf("row %d: empty entity", i+1)
		}
		if r.Value != nil && (math.IsNaN(*r.Value) || math.IsInf(*r.Value, 0)) {
			p.errorf("row %d: non-finite value for %s", i+1, r.Key())
		}
	}
	return p
}

func validateSQLParity(ctx context.Context, rows []domain.ObservationRow, driver, dsn string) *phase {
	p := &phase{name: "SQL sink matches CSV"}

	store, err := sqlstore.Open(ctx, driver, dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		p.errorf("open store: %v", err)
		return p
	}
	defer store.Close()

	stored, err := store.Rows(ctx)
	if err != nil {
		p.errorf("read store: %v", err)
		return p
	}
	if len(stored) != len(rows) {
		p.errorf("row count: csv=%d sql=%d", len(rows), len(stored))
	}

	index := make(map[domain.RowKey]*float64, len(stored))
	for _, r := range stored {
		index[r.Key()] = r.Value
	}
	for _, r := range rows {
		v, ok := index[r.Key()]
		switch {
		case !ok:
			p.errorf("%s missing from SQL sink", r.Key())
		case !sameValue(r.Value, v):
			p.errorf("%s: csv=%s sql=%s", r.Key(), format(r.Value), format(v))
		}
	}
	return p
}

func sameValue(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= 1e-9*math.Max(1, math.Abs(*a))
}

func format(v *float64) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%g", *v)
}
