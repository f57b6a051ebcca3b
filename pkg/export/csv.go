// Package export writes run results as CSV, XLSX or into a SQL database.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/recovery"
	"github.com/ChicagoDave/buildstock/pkg/series"
)

// Output file names.
const (
	FlowsFile     = "flows.csv"
	EmissionsFile = "emissions.csv"
	WorkbookFile  = "results.xlsx"
)

// Writer is the interface every output backend satisfies.
type Writer interface {
	Write(res *engine.Result) error
	Close() error
}

// CSVWriter writes the flow and emission tables of a run as wide CSV files,
// one column per year, into a directory.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates dir if needed and returns a writer into it.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

// Write writes flows.csv and emissions.csv.
func (c *CSVWriter) Write(res *engine.Result) error {
	if res.Flows == nil {
		return fmt.Errorf("csv: run %s has no results", res.ID)
	}
	if err := writeFile(filepath.Join(c.dir, FlowsFile), func(w io.Writer) error {
		return WriteFlows(w, res.Flows)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(c.dir, EmissionsFile), func(w io.Writer) error {
		return WriteEmissions(w, res.Emissions)
	})
}

// Close is a no-op; files are closed after each Write.
func (c *CSVWriter) Close() error { return nil }

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write %q: %w", path, err)
	}
	return f.Close()
}

// FlowHeader returns the leading columns of a flow row followed by years.
func FlowHeader(start, end int) []string {
	h := []string{"region", "area", "type", "material", "flow", "unit"}
	return appendYears(h, start, end)
}

func appendYears(h []string, start, end int) []string {
	for y := start; y <= end; y++ {
		h = append(h, strconv.Itoa(y))
	}
	return h
}

// FlowRow returns the cells of one record.
func FlowRow(r flow.Record) []string {
	row := []string{
		strconv.Itoa(r.Region),
		string(r.Category.Area),
		r.Category.Type,
		string(r.Material),
		string(r.Flow),
		r.Unit,
	}
	return appendValues(row, r.Values)
}

func appendValues(row []string, s series.Series) []string {
	for _, v := range s.Values {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return row
}

// WriteFlows writes t as CSV. Every record must share one window.
func WriteFlows(w io.Writer, t *flow.Table) error {
	cw := csv.NewWriter(w)
	if t.Len() > 0 {
		first := t.Records[0].Values
		if err := cw.Write(FlowHeader(first.Start, first.End())); err != nil {
			return err
		}
		for _, r := range t.Records {
			if !r.Values.SameWindow(first) {
				return fmt.Errorf("record %s: window [%d, %d] differs from [%d, %d]",
					r.Key(), r.Values.Start, r.Values.End(), first.Start, first.End())
			}
			if err := cw.Write(FlowRow(r)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Emission row kinds.
const (
	KindPrimary   = "primary"
	KindSecondary = "secondary"
	KindTotal     = "total"
)

// EmissionRows expands e into primary, secondary and total rows.
func EmissionRows(e recovery.Emission) [][]string {
	lead := func(kind string) []string {
		return []string{strconv.Itoa(e.Region), string(e.Material), kind, flow.UnitEmission}
	}
	return [][]string{
		appendValues(lead(KindPrimary), e.Primary),
		appendValues(lead(KindSecondary), e.Secondary),
		appendValues(lead(KindTotal), e.Total),
	}
}

// WriteEmissions writes the emissions table as CSV.
func WriteEmissions(w io.Writer, list []recovery.Emission) error {
	cw := csv.NewWriter(w)
	if len(list) > 0 {
		s := list[0].Total
		header := appendYears([]string{"region", "material", "kind", "unit"}, s.Start, s.End())
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, e := range list {
			if err := cw.WriteAll(EmissionRows(e)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
