package main

import (
	"fmt"
	"math"

	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/export"
	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/stock"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

func printValidationReport(r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Printf("ERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("  [%s] %s\n", e.Level, e.Message)
			if e.SpecPath != "" {
				fmt.Printf("    -> %s = %v\n", e.SpecPath, e.ActualValue)
			}
			if e.Expected != "" {
				fmt.Printf("    expected: %s\n", e.Expected)
			}
			if e.ConflictWith != "" {
				fmt.Printf("    conflicts with: %s\n", e.ConflictWith)
			}
			for _, s := range e.Suggestions {
				fmt.Printf("    * %s\n", s)
			}
		}
		fmt.Println()
	}

	if len(r.Warnings) > 0 {
		fmt.Printf("WARNINGS (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  [%s] %s\n", w.Level, w.Message)
			if w.SpecPath != "" {
				fmt.Printf("    -> %s = %v\n", w.SpecPath, w.ActualValue)
			}
			if w.Expected != "" {
				fmt.Printf("    expected: %s\n", w.Expected)
			}
		}
		fmt.Println()
	}

	if len(r.Info) > 0 {
		fmt.Printf("INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Printf("  [%s] %s\n", i.Level, i.Message)
		}
		fmt.Println()
	}

	if r.Valid {
		fmt.Printf("Result: VALID (%s)\n", r.Summary)
	} else {
		fmt.Printf("Result: INVALID (%s)\n", r.Summary)
	}
}

// regionTotals are the figures of one region in one year.
type regionTotals struct {
	region    int
	floorArea [3]float64 // rural, urban, commercial, Mm2
	massStock float64    // kt
	inflow    float64    // kt
	outflow   float64    // kt
	emissions float64    // kt CO2-eq
}

func summarize(res *engine.Result, year int) []regionTotals {
	index := make(map[int]int, len(res.Regions))
	out := make([]regionTotals, len(res.Regions))
	for i, r := range res.Regions {
		index[r] = i
		out[i].region = r
	}
	areaIndex := map[stock.Area]int{stock.Rural: 0, stock.Urban: 1, stock.Commercial: 2}

	for _, rec := range res.Flows.Records {
		i, ok := index[rec.Region]
		if !ok || rec.Category.Index() < 0 {
			continue
		}
		v := rec.Values.At(year)
		t := &out[i]
		switch {
		case rec.Material == "" && rec.Flow == flow.Stock:
			t.floorArea[areaIndex[rec.Category.Area]] += v
		case rec.Material == "":
		case rec.Flow == flow.Stock:
			t.massStock += v
		case rec.Flow == flow.Inflow:
			t.inflow += v
		case rec.Flow == flow.Outflow:
			t.outflow += v
		}
	}
	for _, e := range res.Emissions {
		if i, ok := index[e.Region]; ok {
			out[i].emissions += e.Total.At(year)
		}
	}
	return out
}

func printSummary(res *engine.Result, year int) {
	fmt.Printf("Scenario %s, run %s, year %d\n", res.Scenario, res.ID, year)
	fmt.Println("==========================================")
	fmt.Println()

	header := []any{"Region", "Rural Mm2", "Urban Mm2", "Comm. Mm2", "Stock kt", "Inflow kt", "Outflow kt", "CO2-eq kt"}
	fmt.Printf("%-8s %12s %12s %12s %12s %12s %12s %12s\n", header...)
	fmt.Printf("%-8s %12s %12s %12s %12s %12s %12s %12s\n",
		"--------", "------------", "------------", "------------", "------------", "------------", "------------", "------------")

	var sum regionTotals
	rows := summarize(res, year)
	for _, t := range rows {
		printTotalsRow(fmt.Sprint(t.region), t)
		for a := range sum.floorArea {
			sum.floorArea[a] += t.floorArea[a]
		}
		sum.massStock += t.massStock
		sum.inflow += t.inflow
		sum.outflow += t.outflow
		sum.emissions += t.emissions
	}
	if len(rows) > 1 {
		printTotalsRow("TOTAL", sum)
	}
}

func printTotalsRow(label string, t regionTotals) {
	fmt.Printf("%-8s", label)
	for _, v := range []float64{t.floorArea[0], t.floorArea[1], t.floorArea[2], t.massStock, t.inflow, t.outflow, t.emissions} {
		fmt.Printf(" %12s", formatQuantity(v))
	}
	fmt.Println()
}

func printSurvival(p lifetime.Params, curve []float64, step int) {
	if step <= 0 {
		step = 1
	}
	fmt.Println(p)
	fmt.Printf("%6s %10s\n", "age", "survival")
	for a := 0; a < len(curve); a += step {
		fmt.Printf("%6d %10.6f\n", a, curve[a])
	}
	if half := medianAge(curve); half >= 0 {
		fmt.Printf("\nmedian lifetime: %d years\n", half)
	}
}

// medianAge returns the first age at which survival drops to one half, or -1.
func medianAge(curve []float64) int {
	for a, v := range curve {
		if v <= 0.5 {
			return a
		}
	}
	return -1
}

func printRuns(runs []export.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}
	fmt.Printf("%-36s %-16s %-19s %10s %-11s %s\n", "Run", "Scenario", "Started", "Duration", "Horizon", "Result")
	for _, r := range runs {
		fmt.Printf("%-36s %-16s %-19s %10s %4d-%-6d %s\n",
			r.ID, r.Scenario, r.Started.Local().Format("2006-01-02 15:04:05"), r.Duration,
			r.Origin, r.End, r.Summary)
	}
}

func formatQuantity(v float64) string {
	a := math.Abs(v)
	if a >= 1_000_000_000 {
		return fmt.Sprintf("%.2fG", v/1_000_000_000)
	}
	if a >= 1_000_000 {
		return fmt.Sprintf("%.2fM", v/1_000_000)
	}
	if a >= 1_000 {
		return fmt.Sprintf("%.1fK", v/1_000)
	}
	return fmt.Sprintf("%.1f", v)
}
