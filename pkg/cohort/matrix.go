package cohort

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/series"
)

// Matrix is a lower-triangular cohort table: row c holds the outflow of the
// cohort that entered in year Start+c, for observation years Start+c onward.
// Entries with origin after observation do not exist.
type Matrix struct {
	start int
	rows  [][]float64
}

// NewMatrix allocates a triangular matrix for n years starting at start.
func NewMatrix(start, n int) *Matrix {
	m := &Matrix{start: start, rows: make([][]float64, n)}
	for c := range m.rows {
		m.rows[c] = make([]float64, n-c)
	}
	return m
}

// Start returns the first year of the matrix.
func (m *Matrix) Start() int { return m.start }

// Len returns the number of years on each axis.
func (m *Matrix) Len() int { return len(m.rows) }

// At returns the outflow in year observed that originated in year origin.
// Pairs with origin after observed, or outside the window, are zero.
func (m *Matrix) At(origin, observed int) float64 {
	c, t := origin-m.start, observed-m.start
	if c < 0 || t < c || t >= len(m.rows) {
		return 0
	}
	return m.rows[c][t-c]
}

func (m *Matrix) set(c, t int, v float64) { m.rows[c][t-c] = v }

func (m *Matrix) add(c, t int, v float64) { m.rows[c][t-c] += v }

// column sums the outflow observed in year index t over all origins, in
// ascending origin order.
func (m *Matrix) column(t int) float64 {
	sum := 0.0
	for c := 0; c <= t; c++ {
		sum += m.rows[c][t-c]
	}
	return sum
}

// Weighted returns, per observation year, the outflow weighted by a value
// taken at each cohort's origin year: out[t] = sum_c O[c,t] * w[c]. w must
// cover the matrix window.
func (m *Matrix) Weighted(w series.Series) series.Series {
	out := series.New(m.start, m.start+len(m.rows)-1)
	if len(m.rows) == 0 {
		return out
	}
	if !w.Covers(out.Start) || !w.Covers(out.End()) {
		panic(fmt.Sprintf("cohort: weights [%d, %d] do not cover matrix [%d, %d]", w.Start, w.End(), out.Start, out.End()))
	}
	off := m.start - w.Start
	for t := range m.rows {
		sum := 0.0
		for c := 0; c <= t; c++ {
			if o := m.rows[c][t-c]; o != 0 {
				sum += o * w.Values[c+off]
			}
		}
		out.Values[t] = sum
	}
	return out
}

// Origins calls fn for every non-zero entry of observation year observed,
// in ascending origin order.
func (m *Matrix) Origins(observed int, fn func(origin int, outflow float64)) {
	t := observed - m.start
	if t < 0 || t >= len(m.rows) {
		return
	}
	for c := 0; c <= t; c++ {
		if o := m.rows[c][t-c]; o != 0 {
			fn(m.start+c, o)
		}
	}
}
