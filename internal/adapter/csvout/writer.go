// Package csvout writes the compiled table to a delimited file.
package csvout

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

// Header is the column layout of a compiled table file.
var Header = []string{"entity", "period", "value"}

// Writer replaces the file at Path with every compiled result.
// It implements pipeline.Sink.
type Writer struct {
	path   string
	logger *slog.Logger
}

func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

func (w *Writer) Name() string { return "csv" }

// Write renders result.Rows to a temporary file next to the target and
// renames it into place, so readers never see a partial table.
func (w *Writer) Write(ctx context.Context, result domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := WriteRows(tmp, result.Rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace %s: %w", w.path, err)
	}

	w.logger.Info("wrote compiled table", "path", w.path, "rows", len(result.Rows))
	return nil
}

// WriteRows writes the header and one record per row. Unknown periods and
// values are empty cells.
func WriteRows(out io.Writer, rows []domain.ObservationRow) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.Entity, "", ""}
		if r.Period != nil {
			rec[1] = strconv.Itoa(*r.Period)
		}
		if r.Value != nil {
			rec[2] = strconv.FormatFloat(*r.Value, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", r.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows parses a file produced by WriteRows. Empty period and value cells
// read as nil; any other unparseable cell is an error.
func ReadRows(in io.Reader) ([]domain.ObservationRow, error) {
	t, err := domain.ReadTable(in, ',')
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(Header))
	for i, name := range Header {
		idx[i] = t.ColumnIndex(name)
		if idx[i] < 0 {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	rows := make([]domain.ObservationRow, 0, len(t.Rows))
	for n, rec := range t.Rows {
		line := n + 2
		row := domain.ObservationRow{Entity: field(rec, idx[0])}

		if s := strings.TrimSpace(field(rec, idx[1])); s != "" {
			p, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: period %q: %w", line, s, err)
			}
			row.Period = &p
		}
		if s := strings.TrimSpace(field(rec, idx[2])); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: value %q: %w", line, s, err)
			}
			row.Value = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return rec[i]
}
