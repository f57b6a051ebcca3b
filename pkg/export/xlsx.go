package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

// Sheet names of the results workbook.
const (
	SheetSummary    = "summary"
	SheetFlows      = "flows"
	SheetEmissions  = "emissions"
	SheetValidation = "validation"
)

// XLSXWriter writes a run into a single workbook.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter returns a writer for path. The parent directory is created.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("xlsx: create output dir: %w", err)
	}
	return &XLSXWriter{path: path}, nil
}

// Write builds the workbook and saves it.
func (x *XLSXWriter) Write(res *engine.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(x.path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", x.path, err)
	}
	return nil
}

// Close is a no-op.
func (x *XLSXWriter) Close() error { return nil }

// Workbook builds the results workbook: a summary sheet, the flow and
// emission tables and the validation findings.
func Workbook(res *engine.Result) (*excelize.File, error) {
	if res.Flows == nil {
		return nil, fmt.Errorf("xlsx: run %s has no results", res.ID)
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	// summary
	summary := [][]any{
		{"run", res.ID.String()},
		{"scenario", res.Scenario},
		{"started", res.Started.UTC().Format("2006-01-02 15:04:05")},
		{"duration_s", res.Duration.Seconds()},
		{"origin", res.Horizon.Origin},
		{"first_observed", res.Horizon.FirstObserved},
		{"end", res.Horizon.End},
		{"regions", len(res.Regions)},
		{"records", res.Flows.Len()},
		{"validation", res.Report.Summary},
	}
	if err := setRows(f, SheetSummary, 1, summary); err != nil {
		return nil, err
	}
	f.SetColWidth(SheetSummary, "A", "A", 18)
	f.SetColWidth(SheetSummary, "B", "B", 40)

	// flows
	if _, err := f.NewSheet(SheetFlows); err != nil {
		return nil, err
	}
	if res.Flows.Len() > 0 {
		first := res.Flows.Records[0].Values
		if err := setRow(f, SheetFlows, 1, strings2any(FlowHeader(first.Start, first.End()))); err != nil {
			return nil, err
		}
		for i, r := range res.Flows.Records {
			row := []any{r.Region, string(r.Category.Area), r.Category.Type, string(r.Material), string(r.Flow), r.Unit}
			for _, v := range r.Values.Values {
				row = append(row, v)
			}
			if err := setRow(f, SheetFlows, i+2, row); err != nil {
				return nil, err
			}
		}
		f.SetRowStyle(SheetFlows, 1, 1, headerStyle)
		f.SetPanes(SheetFlows, &excelize.Panes{Freeze: true, XSplit: 6, YSplit: 1, TopLeftCell: "G2", ActivePane: "bottomRight"})
	}

	// emissions
	if _, err := f.NewSheet(SheetEmissions); err != nil {
		return nil, err
	}
	if len(res.Emissions) > 0 {
		s := res.Emissions[0].Total
		header := appendYears([]string{"region", "material", "kind", "unit"}, s.Start, s.End())
		if err := setRow(f, SheetEmissions, 1, strings2any(header)); err != nil {
			return nil, err
		}
		row := 2
		for _, e := range res.Emissions {
			for _, kind := range []struct {
				name string
				vals []float64
			}{
				{KindPrimary, e.Primary.Values},
				{KindSecondary, e.Secondary.Values},
				{KindTotal, e.Total.Values},
			} {
				cells := []any{e.Region, string(e.Material), kind.name, flow.UnitEmission}
				for _, v := range kind.vals {
					cells = append(cells, v)
				}
				if err := setRow(f, SheetEmissions, row, cells); err != nil {
					return nil, err
				}
				row++
			}
		}
		f.SetRowStyle(SheetEmissions, 1, 1, headerStyle)
	}

	// validation
	if _, err := f.NewSheet(SheetValidation); err != nil {
		return nil, err
	}
	rows := [][]any{{"severity", "level", "path", "message"}}
	for _, list := range [][]validation.Result{res.Report.Errors, res.Report.Warnings, res.Report.Info} {
		for _, r := range list {
			rows = append(rows, []any{string(r.Severity), string(r.Level), r.SpecPath, r.Message})
		}
	}
	if err := setRows(f, SheetValidation, 1, rows); err != nil {
		return nil, err
	}
	f.SetRowStyle(SheetValidation, 1, 1, headerStyle)
	f.SetColWidth(SheetValidation, "C", "C", 30)
	f.SetColWidth(SheetValidation, "D", "D", 80)

	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func setRows(f *excelize.File, sheet string, first int, rows [][]any) error {
	for i, r := range rows {
		if err := setRow(f, sheet, first+i, r); err != nil {
			return err
		}
	}
	return nil
}

func strings2any(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}
