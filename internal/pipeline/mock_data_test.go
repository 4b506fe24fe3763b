package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
	"github.com/couchcryptid/cocci-climate-etl/internal/observability"
)

// --- mocks ---

type mockLoader struct {
	tables map[string]domain.Table
	errs   map[string]error
	calls  []string
}

func (m *mockLoader) Load(_ context.Context, path string) (domain.Table, error) {
	m.calls = append(m.calls, path)
	if err, ok := m.errs[path]; ok {
		return domain.Table{}, err
	}
	t, ok := m.tables[path]
	if !ok {
		return domain.Table{}, &domain.FileAccessError{Path: path, Err: os.ErrNotExist}
	}
	return t, nil
}

type mockStations struct {
	stations []domain.StationRecord
	err      error
}

func (m *mockStations) LoadStations(_ context.Context) ([]domain.StationRecord, error) {
	return m.stations, m.err
}

type mockSink struct {
	name    string
	err     error
	mu      sync.Mutex
	results []domain.Result
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Write(_ context.Context, r domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return m.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fixtures ---

// caseTable builds a State/Year/Cum table for one period.
func caseTable(period string, rows ...[2]string) domain.Table {
	t := domain.Table{Columns: []string{"State", "Year", "Cum " + period, "Cum prev"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r[0], period, r[1], "0"})
	}
	return t
}

// writeCaseFile writes a case CSV under dir and returns its path.
func writeCaseFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func valueFor(t *testing.T, rows []domain.ObservationRow, entity string, period int) *float64 {
	t.Helper()
	for _, r := range rows {
		if r.Entity == entity && r.Period != nil && *r.Period == period {
			return r.Value
		}
	}
	t.Fatalf("no row for %s %d", entity, period)
	return nil
}
