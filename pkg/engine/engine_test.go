package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/ChicagoDave/buildstock/pkg/cohort"
	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testScenario() *spec.Scenario {
	s := spec.Default()
	s.Horizon = spec.HorizonDef{Origin: 1900, FirstObserved: 1971, End: 1990}
	s.Backcast.TailYears = 50
	return s
}

func testData(s *spec.Scenario, regions int) *dataset.Dataset {
	return dataset.Synthetic(s.Horizon.Window(), regions)
}

func mustRun(t *testing.T, s *spec.Scenario, d *dataset.Dataset, opts Options) *Result {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	res, err := Run(context.Background(), s, d, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRunSynthetic(t *testing.T) {
	s := testScenario()
	res := mustRun(t, s, testData(s, 2), Options{Workers: 4})

	if res.Report.Blocking() {
		t.Fatalf("report blocking: %+v %+v", res.Report.Errors, res.Report.Warnings)
	}
	if len(res.Keys) != 2*12 {
		t.Fatalf("keys = %d, want 24", len(res.Keys))
	}
	// per key: 3 area + 7 materials x (3 mass + 6 derived)
	if want := 24 * (3 + 7*9); res.Flows.Len() != want {
		t.Errorf("records = %d, want %d", res.Flows.Len(), want)
	}
	for _, k := range res.Keys {
		if k.MaxImbalance > 1e-6 {
			t.Errorf("%d/%s: imbalance %g", k.Region, k.Category, k.MaxImbalance)
		}
	}

	c := stock.Category{Area: stock.Urban, Type: stock.Apartments}
	area, ok := res.Flows.Find(1, c, "", flow.Stock)
	if !ok {
		t.Fatal("no floor area stock record")
	}
	want := res.Stocks[1].ByCategory[c]
	if diff := cmp.Diff(want.Values, area.Values.Values); diff != "" {
		t.Errorf("stock record differs from target (-want +got):\n%s", diff)
	}
	if area.Values.Start != 1900 || area.Values.End() != 1990 {
		t.Errorf("window = [%d, %d], want [1900, 1990]", area.Values.Start, area.Values.End())
	}
	if len(res.Emissions) != 2 {
		t.Errorf("emission rows = %d, want 2", len(res.Emissions))
	}
}

func TestRunRecoveryBound(t *testing.T) {
	s := testScenario()
	res := mustRun(t, s, testData(s, 1), Options{})
	for _, r := range res.Flows.Records {
		if r.Flow != flow.Recovered {
			continue
		}
		in, ok := res.Flows.Find(r.Region, r.Category, r.Material, flow.Inflow)
		if !ok {
			t.Fatalf("no inflow for %s", r.Key())
		}
		for i, v := range r.Values.Values {
			if v > in.Values.Values[i]+1e-9 {
				t.Fatalf("%s: recovered %g > inflow %g in %d", r.Key(), v, in.Values.Values[i], r.Values.Start+i)
			}
		}
	}
}

func TestRunTotalsConserveMass(t *testing.T) {
	s := testScenario()
	res := mustRun(t, s, testData(s, 1), Options{Totals: true})

	total, ok := res.Flows.Find(1, stock.Category{Area: flow.Total, Type: flow.Total}, material.Concrete, flow.Inflow)
	if !ok {
		t.Fatal("no region total row")
	}
	for i := range total.Values.Values {
		sum := 0.0
		for _, c := range stock.Categories() {
			r, ok := res.Flows.Find(1, c, material.Concrete, flow.Inflow)
			if !ok {
				t.Fatalf("no concrete inflow for %s", c)
			}
			sum += r.Values.Values[i]
		}
		if math.Abs(sum-total.Values.Values[i]) > 1e-9*math.Max(1, sum) {
			t.Fatalf("year %d: total %g, categories sum to %g", total.Values.Start+i, total.Values.Values[i], sum)
		}
	}
	if _, ok := res.Flows.Find(1, stock.Category{Area: stock.Commercial, Type: flow.Total}, material.Steel, flow.Outflow); !ok {
		t.Error("no commercial area total row")
	}
}

func TestRunDeterministic(t *testing.T) {
	s := testScenario()
	d := testData(s, 3)
	a := mustRun(t, s, d, Options{Workers: 1})
	b := mustRun(t, s, d, Options{Workers: 8})
	if diff := cmp.Diff(a.Flows.Records, b.Flows.Records); diff != "" {
		t.Errorf("worker count changed results (-1 +8):\n%s", diff)
	}
	if diff := cmp.Diff(a.Emissions, b.Emissions); diff != "" {
		t.Errorf("emissions differ (-1 +8):\n%s", diff)
	}
}

func TestRunRegionSubset(t *testing.T) {
	s := testScenario()
	s.Regions = []int{2}
	res := mustRun(t, s, testData(s, 3), Options{})
	for _, r := range res.Flows.Records {
		if r.Region != 2 {
			t.Fatalf("record for region %d in a region 2 run", r.Region)
		}
	}
	if len(res.Regions) != 1 || res.Regions[0] != 2 {
		t.Errorf("regions = %v, want [2]", res.Regions)
	}
}

func TestRunZeroIntensity(t *testing.T) {
	s := testScenario()
	s.Intensity.Overrides = []spec.IntensityOverride{{Material: "glass", From: 1900, Factor: 0}}
	res := mustRun(t, s, testData(s, 1), Options{})
	for _, r := range res.Flows.Records {
		if r.Material != material.Glass {
			continue
		}
		if !r.Values.IsZero() {
			t.Fatalf("%s not zero with zero intensity", r.Key())
		}
	}
}

func TestRunConfigError(t *testing.T) {
	s := testScenario()
	s.Lifetime.Family = "gamma"
	res, err := Run(context.Background(), s, testData(s, 1), Options{})
	if !errors.Is(err, validation.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if res.Report.Valid {
		t.Error("report should be invalid")
	}
	if res.Flows != nil {
		t.Error("flows computed despite configuration error")
	}
}

func TestRunInvalidSurvival(t *testing.T) {
	s := testScenario()
	d := testData(s, 1)
	c := stock.Category{Area: stock.Rural, Type: stock.Detached}
	d.Lifetime[dataset.LifetimeKey{Region: 1, Category: c, Family: "weibull"}] = dataset.Lifetime{First: -1, Second: 50}
	if _, err := Run(context.Background(), s, d, Options{}); !errors.Is(err, validation.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestRunCancelled(t *testing.T) {
	s := testScenario()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, s, testData(s, 2), Options{Workers: 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunCache(t *testing.T) {
	s := testScenario()
	d := testData(s, 1)
	cache := cohort.NewCache(0)

	first := mustRun(t, s, d, Options{Cache: cache})
	second := mustRun(t, s, d, Options{Cache: cache})
	for _, k := range second.Keys {
		if !k.Cached {
			t.Errorf("%d/%s not served from cache", k.Region, k.Category)
		}
	}
	if hits, _ := cache.Stats(); hits != 12 {
		t.Errorf("hits = %d, want 12", hits)
	}
	if diff := cmp.Diff(first.Flows.Records, second.Flows.Records); diff != "" {
		t.Errorf("cached run differs (-first +second):\n%s", diff)
	}

	// a lifetime change must miss
	s.Lifetime.Overrides = []spec.LifetimeOverride{{Category: "urban/detached", From: 1980, Factor: 1.5}}
	third := mustRun(t, s, d, Options{Cache: cache})
	misses := 0
	for _, k := range third.Keys {
		if !k.Cached {
			misses++
		}
	}
	if misses != 1 {
		t.Errorf("uncached keys = %d, want 1", misses)
	}
}
