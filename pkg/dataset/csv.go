package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// table is a parsed long-format CSV file with a header row.
type table struct {
	path    string
	columns map[string]int
	rows    [][]string
}

// row is one data line of a table.
type row struct {
	t      *table
	line   int
	fields []string
}

func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseTable(path, f, required...)
}

func parseTable(path string, r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	t := &table{path: path, columns: make(map[string]int, len(header))}
	for i, h := range header {
		t.columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range required {
		if _, ok := t.columns[c]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", path, c)
		}
	}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// each calls fn for every row, stopping at the first error.
func (t *table) each(fn func(r row) error) error {
	for i, fields := range t.rows {
		// header is line 1
		if err := fn(row{t: t, line: i + 2, fields: fields}); err != nil {
			return err
		}
	}
	return nil
}

func (r row) errorf(format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", r.t.path, r.line, fmt.Sprintf(format, args...))
}

func (r row) str(col string) string {
	i, ok := r.t.columns[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) intVal(col string) (int, error) {
	s := r.str(col)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, r.errorf("invalid %s %q", col, s)
	}
	return v, nil
}

func (r row) floatVal(col string) (float64, error) {
	s := r.str(col)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, r.errorf("invalid %s %q", col, s)
	}
	return v, nil
}

// year returns the year column. ok is false when the cell is blank or "*",
// which marks a value that applies to every year.
func (r row) year() (year int, ok bool, err error) {
	s := r.str("year")
	if s == "" || s == "*" {
		return 0, false, nil
	}
	y, err := r.intVal("year")
	if err != nil {
		return 0, false, err
	}
	return y, true, nil
}

// writeTable writes a header and rows to path.
func writeTable(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: write header: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: write rows: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
