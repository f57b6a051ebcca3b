package engine

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/ChicagoDave/buildstock/pkg/backcast"
	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

func TestExtendDrivers(t *testing.T) {
	s := testScenario()
	h := s.Horizon.Window()
	d := testData(s, 2)
	b := &backcast.Builder{Horizon: h, TailYears: 50, TrendYears: 10}
	dr, err := extendDrivers(b, d)
	if err != nil {
		t.Fatalf("extendDrivers: %v", err)
	}

	for _, r := range d.Regions {
		if got, want := dr.Population[r].At(1971), d.Population[r].At(1971); got != want {
			t.Errorf("region %d population(1971) = %g, want observed %g", r, got, want)
		}
		if dr.Population[r].At(1900) != 0 {
			t.Errorf("region %d population at origin = %g, want 0", r, dr.Population[r].At(1900))
		}
		for y := 1921; y <= 1990; y++ {
			sum := dr.Share[stock.Rural][r].At(y) + dr.Share[stock.Urban][r].At(y)
			if math.Abs(sum-1) > 1e-12 {
				t.Fatalf("region %d shares sum to %g in %d", r, sum, y)
			}
		}
	}

	// pooled drivers share one trend
	fa := dr.Trends[FloorAreaDriver(stock.Urban)]
	if fa[1] != fa[2] {
		t.Errorf("pooled trend differs by region: %g vs %g", fa[1], fa[2])
	}
	if _, ok := dr.Demand[stock.Office][2]; !ok {
		t.Error("no office demand for region 2")
	}
}

func TestLifetimeSeries(t *testing.T) {
	urban := stock.Category{Area: stock.Urban, Type: stock.Detached}
	rural := stock.Category{Area: stock.Rural, Type: stock.Detached}
	overrides, err := parseLifetimeOverrides([]spec.LifetimeOverride{
		{Category: "urban/detached", Regions: []int{1}, From: 2000, To: 2010, Factor: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	lt := dataset.Lifetime{First: 2, Second: 50}

	first, second := lifetimeSeries(lifetime.Weibull, lt, 1990, 2020, 1, urban, overrides)
	tests := []struct {
		year int
		want float64
	}{
		{1995, 50},
		{2000, 50},
		{2005, 75},
		{2010, 100},
		{2020, 100},
	}
	for _, tt := range tests {
		if got := second.At(tt.year); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("scale(%d) = %g, want %g", tt.year, got, tt.want)
		}
	}
	if first.At(2020) != 2 {
		t.Errorf("shape changed: %g", first.At(2020))
	}

	_, second = lifetimeSeries(lifetime.Weibull, lt, 1990, 2020, 2, urban, overrides)
	if second.At(2020) != 50 {
		t.Errorf("override applied to region 2: %g", second.At(2020))
	}
	_, second = lifetimeSeries(lifetime.Weibull, lt, 1990, 2020, 1, rural, overrides)
	if second.At(2020) != 50 {
		t.Errorf("override applied to rural: %g", second.At(2020))
	}

	first, second = lifetimeSeries(lifetime.FoldedNormal, dataset.Lifetime{First: 60, Second: 15}, 1990, 2020, 1, urban, overrides)
	if first.At(2020) != 120 || second.At(2020) != 15 {
		t.Errorf("folded normal = (%g, %g), want mean scaled to 120", first.At(2020), second.At(2020))
	}
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	s := testScenario()
	if err := spec.Save(filepath.Join(dir, "scenario.yaml"), s); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadProject(dir); !errors.Is(err, validation.ErrConfig) {
		t.Fatalf("missing dataset: err = %v, want ErrConfig", err)
	}

	if err := testData(s, 2).Write(s.DataDir(dir)); err != nil {
		t.Fatal(err)
	}
	got, d, err := LoadProject(dir)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if got.Name != s.Name || len(d.Regions) != 2 {
		t.Errorf("loaded %q with %d regions", got.Name, len(d.Regions))
	}

	s.Intensity.Variant = "heavy"
	if _, err := LoadDataset(s, s.DataDir(dir)); !errors.Is(err, validation.ErrConfig) {
		t.Errorf("unknown variant: err = %v, want ErrConfig", err)
	}
}
