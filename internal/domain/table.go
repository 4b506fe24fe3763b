package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a raw delimited source: a trimmed header and its data rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ReadTable parses a delimited file with a header row. Header names are
// trimmed; ragged rows are accepted and short rows read as empty cells.
// A zero comma defaults to ','.
func ReadTable(r io.Reader, comma rune) (Table, error) {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return Table{}, fmt.Errorf("read header: %w", err)
	}

	t := Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ColumnIndex returns the index of the column named name, or -1.
func (t Table) ColumnIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// cell returns row[i], or "" when the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
