// Package engine runs a scenario end to end: it backcasts the drivers,
// builds stock targets, solves the cohort model for every (region, category)
// in parallel, converts floor area to material mass and derives recovery,
// secondary supply and emissions.
package engine

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChicagoDave/buildstock/pkg/backcast"
	"github.com/ChicagoDave/buildstock/pkg/cohort"
	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/recovery"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

// Options controls how a run executes. The zero value is usable.
type Options struct {
	Logger *zap.Logger
	// Workers bounds the number of keys solved concurrently. Zero means
	// GOMAXPROCS.
	Workers int
	// Cache memoises cohort results across runs. Nil disables caching.
	Cache *cohort.Cache
	// Totals appends per-area and per-region total rows to the flow table.
	Totals bool
}

// KeyStats summarises the cohort computation of one (region, category).
type KeyStats struct {
	Region       int            `json:"region"`
	Category     stock.Category `json:"category"`
	Corrections  int            `json:"corrections"`
	Clamped      int            `json:"clamped"`
	MaxImbalance float64        `json:"max_imbalance"`
	Cached       bool           `json:"cached"`
}

// Result is the output of one run.
type Result struct {
	ID       uuid.UUID        `json:"id"`
	Scenario string           `json:"scenario"`
	Horizon  backcast.Horizon `json:"horizon"`
	Regions  []int            `json:"regions"`
	Started  time.Time        `json:"started"`
	Duration time.Duration    `json:"duration"`

	Drivers *Drivers              `json:"-"`
	Stocks  map[int]*stock.Stocks `json:"-"`

	// Flows holds floor-area records (no material), mass records and the
	// derived recovery and emission records, in canonical order.
	Flows     *flow.Table         `json:"flows"`
	Emissions []recovery.Emission `json:"emissions"`
	Keys      []KeyStats          `json:"keys"`
	Report    *validation.Report  `json:"report"`
}

// slot holds the output of one worker.
type slot struct {
	region   int
	category stock.Category
	records  []flow.Record
	stats    KeyStats
	worst    int
	residual float64
}

// Run executes s against d. Configuration problems abort the run before any
// cohort computation and are returned both in the report and as an error
// wrapping validation.ErrConfig. Balance violations are reported as warnings
// and do not abort.
func Run(ctx context.Context, s *spec.Scenario, d *dataset.Dataset, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	res := &Result{
		ID:       uuid.New(),
		Scenario: s.Name,
		Horizon:  s.Horizon.Window(),
		Started:  time.Now(),
	}
	log = log.With(zap.String("run", res.ID.String()), zap.String("scenario", s.Name))

	// 1. Configuration
	report := validation.ValidateScenario(s)
	if report.Valid {
		report.Merge(validation.ValidateDataset(d, s))
	}
	res.Report = report
	if err := report.Err(); err != nil {
		log.Warn("configuration rejected", zap.Int("errors", len(report.Errors)))
		return res, err
	}
	fam, _ := lifetime.ParseFamily(s.Lifetime.Family)
	lifetimeOverrides, err := parseLifetimeOverrides(s.Lifetime.Overrides)
	if err != nil {
		return res, err
	}
	res.Regions = selectRegions(s, d)
	log.Info("run started",
		zap.Int("regions", len(res.Regions)),
		zap.Int("workers", workers),
		zap.String("family", string(fam)))

	// 2. Backcast
	stage := time.Now()
	b := &backcast.Builder{Horizon: res.Horizon, TailYears: s.Backcast.TailYears, TrendYears: s.Backcast.TrendYears}
	drivers, err := extendDrivers(b, d)
	if err != nil {
		return res, err
	}
	res.Drivers = drivers
	log.Debug("drivers extended", zap.Duration("took", time.Since(stage)))

	// 3. Stock targets
	stage = time.Now()
	res.Stocks = make(map[int]*stock.Stocks, len(res.Regions))
	for _, r := range res.Regions {
		st, mismatches, err := stock.Build(drivers.inputs(d, r), s.Tolerance.Checksum)
		if err != nil {
			return res, fmt.Errorf("region %d: %w", r, err)
		}
		res.Stocks[r] = st
		for _, m := range mismatches {
			report.AddWarning(validation.Result{
				Level:       validation.LevelBalance,
				Message:     fmt.Sprintf("region %d %s categories sum to %g, area total %g in %d", r, m.Area, m.Sum, m.Total, m.Year),
				SpecPath:    fmt.Sprintf("region/%d/%s/%d", r, m.Area, m.Year),
				ActualValue: m.Diff(),
				Expected:    fmt.Sprintf("|diff| <= %g", s.Tolerance.Checksum),
			})
		}
	}
	log.Debug("stock targets built", zap.Duration("took", time.Since(stage)))

	mapper, err := buildMapper(d, s, res.Regions)
	if err != nil {
		return res, err
	}

	// 4. Cohort model and mass conversion, one slot per key
	stage = time.Now()
	cats := stock.Categories()
	slots := make([]slot, len(res.Regions)*len(cats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, r := range res.Regions {
		for j, c := range cats {
			sl := &slots[i*len(cats)+j]
			sl.region, sl.category = r, c
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				lt := d.Lifetime[dataset.LifetimeKey{Region: sl.region, Category: sl.category, Family: fam}]
				return solveKey(sl, res.Stocks[sl.region].ByCategory[sl.category], fam, lt, lifetimeOverrides, mapper, opts.Cache, s.Tolerance.Balance)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	log.Info("cohort model solved", zap.Int("keys", len(slots)), zap.Duration("took", time.Since(stage)))

	// 5. Merge in region, category, material order
	flows := &flow.Table{}
	corrections := 0
	for i := range slots {
		sl := &slots[i]
		flows.Add(sl.records...)
		res.Keys = append(res.Keys, sl.stats)
		corrections += sl.stats.Corrections
		if sl.stats.Corrections > 0 {
			log.Debug("negative inflow corrected",
				zap.Int("region", sl.region),
				zap.Stringer("category", sl.category),
				zap.Int("years", sl.stats.Corrections))
			report.AddInfo(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("region %d %s: stock fell faster than attrition in %d years, excess retired early", sl.region, sl.category, sl.stats.Corrections),
				SpecPath:    fmt.Sprintf("region/%d/%s", sl.region, sl.category),
				ActualValue: sl.stats.Corrections,
			})
		}
		if sl.worst != 0 {
			log.Warn("stock balance violated",
				zap.Int("region", sl.region),
				zap.Stringer("category", sl.category),
				zap.Int("year", sl.worst),
				zap.Float64("residual", sl.residual))
			report.AddWarning(validation.Result{
				Level:       validation.LevelBalance,
				Message:     fmt.Sprintf("region %d %s (%s): stock balance off by %g in %d", sl.region, sl.category, sl.category.Area, sl.residual, sl.worst),
				SpecPath:    fmt.Sprintf("region/%d/%s/%d", sl.region, sl.category, sl.worst),
				ActualValue: sl.residual,
				Expected:    fmt.Sprintf("|residual| <= %g", s.Tolerance.Balance),
			})
		}
	}

	// 6. Recovery, secondary supply and emissions
	stage = time.Now()
	calc, err := recovery.NewCalculator(&d.Factors)
	if err != nil {
		return res, err
	}
	derived, err := calc.Apply(flows)
	if err != nil {
		return res, err
	}
	res.Emissions, err = recovery.EmissionsByRegion(derived, s.Emissions.ByMaterial)
	if err != nil {
		return res, err
	}
	flows.Add(derived.Records...)

	if opts.Totals {
		for _, sum := range []func() (*flow.Table, error){flows.SumByArea, flows.SumByRegion} {
			t, err := sum()
			if err != nil {
				return res, err
			}
			flows.Add(t.Records...)
		}
	}
	flows.Sort()
	res.Flows = flows
	log.Debug("recovery and emissions derived", zap.Duration("took", time.Since(stage)))

	res.Duration = time.Since(res.Started)
	log.Info("run finished",
		zap.Int("records", flows.Len()),
		zap.Int("corrections", corrections),
		zap.Int("balance_warnings", report.Count(validation.LevelBalance)),
		zap.Duration("took", res.Duration))
	return res, nil
}

// selectRegions returns the scenario's regions, or every dataset region, in
// ascending order.
func selectRegions(s *spec.Scenario, d *dataset.Dataset) []int {
	src := s.Regions
	if len(src) == 0 {
		src = d.Regions
	}
	out := append([]int(nil), src...)
	sort.Ints(out)
	return out
}

// solveKey runs the cohort model for one key and converts the result into
// floor-area and mass records. It only writes to sl.
func solveKey(sl *slot, target series.Series, fam lifetime.Family, lt dataset.Lifetime, overrides []lifetimeOverride, m *material.Mapper, cache *cohort.Cache, tol float64) error {
	first, second := lifetimeSeries(fam, lt, target.Start, target.End(), sl.region, sl.category, overrides)
	key := cohort.Fingerprint(fmt.Sprintf("%d/%s/%s", sl.region, sl.category, fam), target, first, second)
	r, cached, err := cohort.SolveCached(cache, key, target, func() (cohort.Survival, error) {
		return lifetime.NewTable(fam, first, second)
	})
	if err != nil {
		return fmt.Errorf("region %d %s: %w", sl.region, sl.category, err)
	}

	sl.stats = KeyStats{
		Region:       sl.region,
		Category:     sl.category,
		Corrections:  r.Corrections,
		Clamped:      r.Clamped,
		MaxImbalance: r.MaxImbalance(),
		Cached:       cached,
	}
	sl.worst, sl.residual = worstBalance(r, tol)

	sl.records = append(sl.records,
		flow.Record{Region: sl.region, Category: sl.category, Flow: flow.Stock, Unit: flow.UnitArea, Values: r.Stock},
		flow.Record{Region: sl.region, Category: sl.category, Flow: flow.Inflow, Unit: flow.UnitArea, Values: r.Inflow},
		flow.Record{Region: sl.region, Category: sl.category, Flow: flow.Outflow, Unit: flow.UnitArea, Values: r.Outflow},
	)
	for _, mat := range material.Materials {
		k := material.Key{Region: sl.region, Category: sl.category, Material: mat}
		intensity, err := m.Intensity(k)
		if err != nil {
			return err
		}
		mass, err := flow.Convert(r, intensity)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		sl.records = append(sl.records, mass.Records(k)...)
	}
	if cache == nil {
		r.Release()
	}
	return nil
}

// worstBalance returns the year and residual of the largest balance
// violation, or year 0 when the result balances within tol. tol is relative
// to the stock when the stock exceeds one.
func worstBalance(r *cohort.Result, tol float64) (int, float64) {
	worstYear, worst := 0, 0.0
	bal := r.Balance()
	for i, v := range bal.Values {
		limit := tol * math.Max(1, math.Abs(r.Stock.Values[i]))
		if math.Abs(v) > limit && math.Abs(v) > math.Abs(worst) {
			worstYear, worst = bal.Start+i, v
		}
	}
	return worstYear, worst
}
