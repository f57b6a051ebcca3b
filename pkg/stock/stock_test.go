package stock

import (
	"math"
	"testing"

	"github.com/ChicagoDave/buildstock/pkg/series"
)

func testInputs() Inputs {
	const start, end = 2000, 2009
	pop := series.New(start, end)
	for i := range pop.Values {
		pop.Values[i] = 10 + float64(i)
	}
	return Inputs{
		Population: pop,
		Share: map[Area]series.Series{
			Rural: series.Constant(start, end, 0.4),
			Urban: series.Constant(start, end, 0.6),
		},
		FloorArea: map[Area]series.Series{
			Rural: series.Constant(start, end, 30),
			Urban: series.Constant(start, end, 25),
		},
		HousingShare: map[Area]map[string]float64{
			// raw shares of the total population, normalised per area
			Rural: {Detached: 0.2, SemiDetached: 0.1, Apartments: 0.08, HighRise: 0.02},
			Urban: {Detached: 0.1, SemiDetached: 0.1, Apartments: 0.3, HighRise: 0.1},
		},
		AvgM2: map[Area]map[string]float64{
			Rural: {Detached: 40, SemiDetached: 35, Apartments: 25, HighRise: 20},
		},
		Demand: map[string]series.Series{
			Office: series.Constant(start, end, 2),
			Retail: series.Constant(start, end, 1.5),
			Hotels: series.Constant(start, end, 0.5),
			Govern: series.Constant(start, end, 1),
		},
	}
}

func TestBuildChecksum(t *testing.T) {
	in := testInputs()
	s, mismatches, err := Build(in, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(mismatches) != 0 {
		t.Errorf("mismatches = %v, want none", mismatches)
	}
	for _, a := range []Area{Rural, Urban} {
		sum := 0.0
		for _, typ := range ResidentialTypes {
			sum += s.ByCategory[Category{Area: a, Type: typ}].At(2005)
		}
		want := 15 * in.Share[a].At(2005) * in.FloorArea[a].At(2005)
		if math.Abs(sum-want) > 1e-9 {
			t.Errorf("%s total 2005 = %v, want %v", a, sum, want)
		}
	}
	if got := len(s.Check(0)); got != 0 {
		t.Errorf("Check found %d mismatches", got)
	}
}

func TestBuildTypeSplit(t *testing.T) {
	s, _, err := Build(testInputs(), 0)
	if err != nil {
		t.Fatal(err)
	}
	// urban has no avg m2 table, so the split follows the normalised shares
	urbanTotal := 10 * 0.6 * 25
	if got, want := s.ByCategory[Category{Area: Urban, Type: Apartments}].At(2000), urbanTotal*0.5; math.Abs(got-want) > 1e-9 {
		t.Errorf("urban apartments = %v, want %v", got, want)
	}
	// rural detached weight 0.5*40 against 0.5*40+0.25*35+0.2*25+0.05*20
	ruralTotal := 10 * 0.4 * 30
	w := 0.5 * 40 / (0.5*40 + 0.25*35 + 0.2*25 + 0.05*20)
	if got, want := s.ByCategory[Category{Area: Rural, Type: Detached}].At(2000), ruralTotal*w; math.Abs(got-want) > 1e-9 {
		t.Errorf("rural detached = %v, want %v", got, want)
	}
	if got := s.ByCategory[Category{Area: Commercial, Type: Office}].At(2009); got != 38 {
		t.Errorf("office 2009 = %v, want 38", got)
	}
}

func TestBuildZeroPopulation(t *testing.T) {
	in := testInputs()
	in.Population = series.New(2000, 2009)
	s, mismatches, err := Build(in, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mismatches) != 0 {
		t.Errorf("mismatches = %v", mismatches)
	}
	if !s.ByCategory[Category{Area: Urban, Type: Detached}].IsZero() {
		t.Error("zero population should give zero stock")
	}
}

func TestBuildErrors(t *testing.T) {
	in := testInputs()
	delete(in.Demand, Hotels)
	if _, _, err := Build(in, 0); err == nil {
		t.Error("expected error for missing commercial demand")
	}

	in = testInputs()
	in.HousingShare[Urban][HighRise] = -1
	if _, _, err := Build(in, 0); err == nil {
		t.Error("expected error for negative share")
	}

	in = testInputs()
	in.FloorArea[Rural] = series.Constant(2001, 2009, 30)
	if _, _, err := Build(in, 0); err == nil {
		t.Error("expected error for misaligned driver")
	}
}

func TestChecksumReportsMismatch(t *testing.T) {
	s, _, err := Build(testInputs(), 0)
	if err != nil {
		t.Fatal(err)
	}
	c := Category{Area: Urban, Type: HighRise}
	s.ByCategory[c].Set(2003, s.ByCategory[c].At(2003)+1)
	m := s.Check(0)
	if len(m) != 1 || m[0].Area != Urban || m[0].Year != 2003 {
		t.Fatalf("mismatches = %+v, want one urban 2003 entry", m)
	}
	if math.Abs(m[0].Diff()-1) > 1e-9 {
		t.Errorf("diff = %v, want 1", m[0].Diff())
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	if len(cats) != 12 {
		t.Fatalf("len = %d, want 12", len(cats))
	}
	if cats[0] != (Category{Rural, Detached}) || cats[11] != (Category{Commercial, Govern}) {
		t.Errorf("unexpected order: %v", cats)
	}
	c, err := ParseCategory("Urban/Appartments")
	if err != nil || c != (Category{Urban, Apartments}) {
		t.Errorf("ParseCategory = %v, %v", c, err)
	}
	if _, err := ParseCategory("commercial/detached"); err == nil {
		t.Error("expected error for residential type in commercial area")
	}
	if got := (Category{Commercial, Hotels}).Index(); got != 10 {
		t.Errorf("Index = %d, want 10", got)
	}
}
