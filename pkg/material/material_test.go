package material

import (
	"math"
	"testing"

	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

var urbanDetached = stock.Category{Area: stock.Urban, Type: stock.Detached}

func TestMapperScalarBroadcast(t *testing.T) {
	m := NewMapper(2000, 2010)
	k := Key{Region: 1, Category: urbanDetached, Material: Steel}
	if err := m.SetScalar(k, 35); err != nil {
		t.Fatal(err)
	}
	s, err := m.Intensity(k)
	if err != nil {
		t.Fatal(err)
	}
	if s.Start != 2000 || s.End() != 2010 {
		t.Errorf("window = [%d, %d], want [2000, 2010]", s.Start, s.End())
	}
	if s.At(2005) != 35 {
		t.Errorf("intensity = %v, want 35", s.At(2005))
	}
	if _, err := m.Intensity(Key{Region: 2, Category: urbanDetached, Material: Steel}); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestMapperRejectsNegative(t *testing.T) {
	m := NewMapper(2000, 2010)
	k := Key{Region: 1, Category: urbanDetached, Material: Wood}
	if err := m.SetScalar(k, -1); err == nil {
		t.Error("expected error for negative intensity")
	}
	s := series.Constant(2000, 2010, 1)
	s.Set(2003, math.NaN())
	if err := m.SetSeries(k, s); err == nil {
		t.Error("expected error for NaN intensity")
	}
	if err := m.SetSeries(k, series.Constant(2001, 2010, 1)); err == nil {
		t.Error("expected error for short series")
	}
}

func TestOverrideStepAndRamp(t *testing.T) {
	step := Override{Material: Concrete, From: 2030, Factor: 0.5}
	if step.Multiplier(2029) != 1 || step.Multiplier(2030) != 0.5 || step.Multiplier(2050) != 0.5 {
		t.Error("step override multipliers wrong")
	}
	ramp := Override{Material: Concrete, From: 2020, To: 2040, Factor: 0.5}
	if got := ramp.Multiplier(2030); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("ramp midpoint = %v, want 0.75", got)
	}
	if ramp.Multiplier(2045) != 0.5 {
		t.Errorf("ramp after end = %v, want 0.5", ramp.Multiplier(2045))
	}
}

func TestApplyOverride(t *testing.T) {
	m := NewMapper(2000, 2060)
	office := stock.Category{Area: stock.Commercial, Type: stock.Office}
	for _, c := range []stock.Category{urbanDetached, office} {
		for _, r := range []int{1, 2} {
			for _, mat := range []Material{Concrete, Steel} {
				if err := m.SetScalar(Key{Region: r, Category: c, Material: mat}, 100); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	base := m.Clone()

	n, err := m.Apply(Override{Material: Concrete, Category: &office, Regions: []int{2}, From: 2030, Factor: 0.8})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("changed = %d, want 1", n)
	}
	s, _ := m.Intensity(Key{Region: 2, Category: office, Material: Concrete})
	if s.At(2029) != 100 || s.At(2031) != 80 {
		t.Errorf("override not applied: %v, %v", s.At(2029), s.At(2031))
	}
	// other regions keep their intensity
	s, _ = m.Intensity(Key{Region: 1, Category: office, Material: Concrete})
	if s.At(2031) != 100 {
		t.Errorf("region 1 changed: %v", s.At(2031))
	}
	s, _ = base.Intensity(Key{Region: 2, Category: office, Material: Concrete})
	if s.At(2031) != 100 {
		t.Error("Clone shares storage with the original")
	}

	if _, err := m.Apply(Override{Material: Steel, Factor: -1}); err == nil {
		t.Error("expected error for negative factor")
	}
}

func TestKeysOrder(t *testing.T) {
	m := NewMapper(2000, 2001)
	office := stock.Category{Area: stock.Commercial, Type: stock.Office}
	keys := []Key{
		{Region: 2, Category: urbanDetached, Material: Steel},
		{Region: 1, Category: office, Material: Glass},
		{Region: 1, Category: office, Material: Steel},
		{Region: 1, Category: urbanDetached, Material: Glass},
	}
	for _, k := range keys {
		if err := m.SetScalar(k, 1); err != nil {
			t.Fatal(err)
		}
	}
	got := m.Keys()
	want := []Key{keys[3], keys[2], keys[1], keys[0]}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParse(t *testing.T) {
	if m, err := ParseMaterial("Aluminum"); err != nil || m != Aluminium {
		t.Errorf("ParseMaterial = %v, %v", m, err)
	}
	if _, err := ParseMaterial("plastic"); err == nil {
		t.Error("expected error for plastic")
	}
	if v, err := ParseVariant(""); err != nil || v.Suffix() != "" {
		t.Errorf("ParseVariant(\"\") = %v, %v", v, err)
	}
	if v, _ := ParseVariant("High"); v.Suffix() != "_high" {
		t.Errorf("suffix = %q, want _high", v.Suffix())
	}
}
