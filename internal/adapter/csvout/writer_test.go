package csvout

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func testRows() []domain.ObservationRow {
	return []domain.ObservationRow{
		{Entity: "Arizona", Period: ptr(2020), Value: ptr(51.0)},
		{Entity: "Nevada", Period: ptr(2020), Value: ptr(12.5)},
		{Entity: "Utah", Period: ptr(2020)},
		{Entity: "Oregon", Value: ptr(3.0)},
	}
}

func TestWriteRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, testRows()))

	expected := strings.Join([]string{
		"entity,period,value",
		"Arizona,2020,51",
		"Nevada,2020,12.5",
		"Utah,2020,",
		"Oregon,,3",
		"",
	}, "\n")
	assert.Equal(t, expected, buf.String())
}

func TestReadRows_ParsesWrittenTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, testRows()))

	rows, err := ReadRows(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(testRows(), rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRows_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing column", "entity,period\nArizona,2020\n"},
		{"bad period", "entity,period,value\nArizona,twenty,1\n"},
		{"bad value", "entity,period,value\nArizona,2020,many\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRows(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestWriter_ReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "compiled.csv")
	w := NewWriter(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "csv", w.Name())

	require.NoError(t, w.Write(context.Background(), domain.Result{Rows: testRows()}))
	require.NoError(t, w.Write(context.Background(), domain.Result{Rows: testRows()[:1]}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "entity,period,value\nArizona,2020,51\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestWriter_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compiled.csv")
	w := NewWriter(path, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, w.Write(ctx, domain.Result{Rows: testRows()}), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
