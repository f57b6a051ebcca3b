package series

import (
	"testing"
)

func TestNewWindow(t *testing.T) {
	s := New(1721, 2060)
	if s.Len() != 340 {
		t.Errorf("Len = %d, want 340", s.Len())
	}
	if s.End() != 2060 {
		t.Errorf("End = %d, want 2060", s.End())
	}
	if !s.Covers(1721) || s.Covers(1720) || s.Covers(2061) {
		t.Error("Covers returned wrong bounds")
	}
}

func TestFromMapMissingYear(t *testing.T) {
	_, err := FromMap(2000, 2002, map[int]float64{2000: 1, 2002: 3})
	if err == nil {
		t.Fatal("expected error for missing year 2001")
	}
}

func TestFromMap(t *testing.T) {
	s, err := FromMap(2000, 2002, map[int]float64{2000: 1, 2001: 2, 2002: 3})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if s.At(2001) != 2 {
		t.Errorf("At(2001) = %v, want 2", s.At(2001))
	}
}

func TestArithmetic(t *testing.T) {
	a := Series{Start: 2000, Values: []float64{1, 2, 3}}
	b := Series{Start: 2000, Values: []float64{3, 2, 1}}

	if got := a.Add(b).Values; got[0] != 4 || got[2] != 4 {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b).Values; got[0] != -2 || got[2] != 2 {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Mul(b).Values; got[1] != 4 {
		t.Errorf("Mul = %v", got)
	}
	if got := a.Min(b).Values; got[0] != 1 || got[1] != 2 || got[2] != 1 {
		t.Errorf("Min = %v", got)
	}
	if a.Values[0] != 1 {
		t.Error("arithmetic must not mutate the receiver")
	}
	if got := Sum(a, b, a).Sum(); got != 18 {
		t.Errorf("Sum = %v, want 18", got)
	}
}

func TestMisalignedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on misaligned windows")
		}
	}()
	a := New(2000, 2002)
	b := New(2001, 2003)
	a.Add(b)
}

func TestWindow(t *testing.T) {
	s := Series{Start: 2000, Values: []float64{1, 2, 3, 4}}
	w, err := s.Window(2001, 2002)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if w.Start != 2001 || len(w.Values) != 2 || w.Values[1] != 3 {
		t.Errorf("Window = %+v", w)
	}
	if _, err := s.Window(1999, 2001); err == nil {
		t.Error("expected error for window outside series")
	}
}
