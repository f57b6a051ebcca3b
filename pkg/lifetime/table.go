package lifetime

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/series"
)

// Table holds the survival curve of every cohort in a horizon. Cohorts that
// share a parameter set share one curve.
type Table struct {
	start  int
	index  []int
	curves [][]float64
	params []Params
}

// NewTable evaluates survival curves for each cohort year of the horizon
// covered by first and second. The two series hold the per-cohort parameters
// and must share a window. Each distinct parameter set is checked with Check.
func NewTable(family Family, first, second series.Series) (*Table, error) {
	if !first.SameWindow(second) {
		return nil, fmt.Errorf("lifetime parameter series cover different years: [%d, %d] vs [%d, %d]",
			first.Start, first.End(), second.Start, second.End())
	}
	n := first.Len()
	t := &Table{start: first.Start, index: make([]int, n)}
	seen := make(map[Params]int)

	for c := 0; c < n; c++ {
		p := Params{Family: family, First: first.Values[c], Second: second.Values[c]}
		if i, ok := seen[p]; ok {
			t.index[c] = i
			continue
		}
		d, err := New(p)
		if err != nil {
			return nil, fmt.Errorf("cohort %d: %w", first.Start+c, err)
		}
		curve := Curve(d, n)
		if err := Check(curve); err != nil {
			return nil, fmt.Errorf("cohort %d, %s: %w", first.Start+c, p, err)
		}
		seen[p] = len(t.curves)
		t.index[c] = len(t.curves)
		t.curves = append(t.curves, curve)
		t.params = append(t.params, p)
	}
	return t, nil
}

// UniformTable builds a table where every cohort in [start, end] uses p.
func UniformTable(p Params, start, end int) (*Table, error) {
	return NewTable(p.Family,
		series.Constant(start, end, p.First),
		series.Constant(start, end, p.Second))
}

// Start returns the first cohort year.
func (t *Table) Start() int { return t.start }

// Len returns the number of cohorts.
func (t *Table) Len() int { return len(t.index) }

// Survival returns the surviving fraction of cohort c (0-based index into the
// horizon) at the given age.
func (t *Table) Survival(c, age int) float64 {
	return t.curves[t.index[c]][age]
}

// Params returns the distinct parameter sets in first-use order.
func (t *Table) Params() []Params {
	out := make([]Params, len(t.params))
	copy(out, t.params)
	return out
}
