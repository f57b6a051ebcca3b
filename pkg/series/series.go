// Package series holds the year-indexed value series shared by every stage
// of the model. A Series covers a contiguous window of years; gaps cannot be
// represented.
package series

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Series is a contiguous, year-indexed run of values starting at Start.
type Series struct {
	Start  int       `json:"start" yaml:"start"`
	Values []float64 `json:"values" yaml:"values"`
}

// New returns a zero-filled series covering [start, end].
func New(start, end int) Series {
	n := end - start + 1
	if n < 0 {
		n = 0
	}
	return Series{Start: start, Values: make([]float64, n)}
}

// Constant returns a series covering [start, end] with every year set to v.
func Constant(start, end int, v float64) Series {
	s := New(start, end)
	for i := range s.Values {
		s.Values[i] = v
	}
	return s
}

// FromMap builds a series over [start, end] from a year->value map.
// Every year in the window must be present.
func FromMap(start, end int, m map[int]float64) (Series, error) {
	s := New(start, end)
	for y := start; y <= end; y++ {
		v, ok := m[y]
		if !ok {
			return Series{}, fmt.Errorf("missing year %d in [%d, %d]", y, start, end)
		}
		s.Values[y-start] = v
	}
	return s, nil
}

// End returns the last year covered by the series.
func (s Series) End() int {
	return s.Start + len(s.Values) - 1
}

// Len returns the number of years.
func (s Series) Len() int {
	return len(s.Values)
}

// Covers reports whether year lies inside the series window.
func (s Series) Covers(year int) bool {
	return year >= s.Start && year <= s.End()
}

// At returns the value at year. It panics when year is outside the window,
// which would indicate a missing-year precondition violation upstream.
func (s Series) At(year int) float64 {
	if !s.Covers(year) {
		panic(fmt.Sprintf("series: year %d outside [%d, %d]", year, s.Start, s.End()))
	}
	return s.Values[year-s.Start]
}

// Set writes v at year.
func (s Series) Set(year int, v float64) {
	if !s.Covers(year) {
		panic(fmt.Sprintf("series: year %d outside [%d, %d]", year, s.Start, s.End()))
	}
	s.Values[year-s.Start] = v
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	out := Series{Start: s.Start, Values: make([]float64, len(s.Values))}
	copy(out.Values, s.Values)
	return out
}

// Window returns a copy restricted to [start, end]. Both bounds must lie
// inside the series.
func (s Series) Window(start, end int) (Series, error) {
	if !s.Covers(start) || !s.Covers(end) || end < start {
		return Series{}, fmt.Errorf("window [%d, %d] outside series [%d, %d]", start, end, s.Start, s.End())
	}
	out := New(start, end)
	copy(out.Values, s.Values[start-s.Start:end-s.Start+1])
	return out, nil
}

// SameWindow reports whether two series cover exactly the same years.
func (s Series) SameWindow(o Series) bool {
	return s.Start == o.Start && len(s.Values) == len(o.Values)
}

// Add returns s + o element-wise.
func (s Series) Add(o Series) Series {
	mustAlign(s, o)
	out := s.Clone()
	floats.Add(out.Values, o.Values)
	return out
}

// Sub returns s - o element-wise.
func (s Series) Sub(o Series) Series {
	mustAlign(s, o)
	out := s.Clone()
	floats.Sub(out.Values, o.Values)
	return out
}

// Mul returns s * o element-wise.
func (s Series) Mul(o Series) Series {
	mustAlign(s, o)
	out := s.Clone()
	floats.Mul(out.Values, o.Values)
	return out
}

// Min returns the element-wise minimum of s and o.
func (s Series) Min(o Series) Series {
	mustAlign(s, o)
	out := s.Clone()
	for i, v := range o.Values {
		out.Values[i] = math.Min(out.Values[i], v)
	}
	return out
}

// Scale returns s * k.
func (s Series) Scale(k float64) Series {
	out := s.Clone()
	floats.Scale(k, out.Values)
	return out
}

// AddInPlace accumulates o into s.
func (s Series) AddInPlace(o Series) {
	mustAlign(s, o)
	floats.Add(s.Values, o.Values)
}

// Sum returns the total over all years.
func (s Series) Sum() float64 {
	return floats.Sum(s.Values)
}

// MinValue returns the smallest value in the series.
func (s Series) MinValue() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return floats.Min(s.Values)
}

// MaxValue returns the largest value in the series.
func (s Series) MaxValue() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return floats.Max(s.Values)
}

// IsZero reports whether every value is exactly zero.
func (s Series) IsZero() bool {
	for _, v := range s.Values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Sum adds a list of aligned series in the order given. The result covers the
// window of the first element; an empty list yields an empty series.
func Sum(list ...Series) Series {
	if len(list) == 0 {
		return Series{}
	}
	out := list[0].Clone()
	for _, s := range list[1:] {
		out.AddInPlace(s)
	}
	return out
}

func mustAlign(a, b Series) {
	if !a.SameWindow(b) {
		panic(fmt.Sprintf("series: misaligned windows [%d, %d] and [%d, %d]", a.Start, a.End(), b.Start, b.End()))
	}
}
