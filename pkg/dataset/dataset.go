// Package dataset loads the input tables of a model run from a directory of
// long-format CSV files.
//
// Files (all with a header row, '#' comment lines allowed):
//
//	population.csv          region,year,value           million people
//	rural_share.csv         region,year,value           fraction of population
//	floor_area.csv          region,area,year,value      m2 per capita, rural/urban
//	housing_share.csv       region,area,type,value      share of people by housing type
//	avg_m2_cap.csv          region,area,type,value      optional, m2 per capita by type
//	commercial_demand.csv   region,type,year,value      m2 per capita by commercial type
//	intensity<suffix>.csv   region,area,type,material,value   kg per m2
//	lifetime.csv            region,area,type,family,first,second
//	recovery_rate.csv       material,year,value         fraction
//	reuse_rate.csv          material,year,value         fraction
//	emission_primary.csv    material,year,value         kg CO2-eq per kg
//	emission_secondary.csv  material,year,value         kg CO2-eq per kg
//
// Driver tables cover the observed years [FirstObserved, End]. A blank or "*"
// year in a material table applies the value to every year of the horizon.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ChicagoDave/buildstock/pkg/backcast"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/recovery"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// File names inside a data directory.
const (
	PopulationFile        = "population.csv"
	RuralShareFile        = "rural_share.csv"
	FloorAreaFile         = "floor_area.csv"
	HousingShareFile      = "housing_share.csv"
	AvgM2File             = "avg_m2_cap.csv"
	CommercialDemandFile  = "commercial_demand.csv"
	LifetimeFile          = "lifetime.csv"
	RecoveryRateFile      = "recovery_rate.csv"
	ReuseRateFile         = "reuse_rate.csv"
	EmissionPrimaryFile   = "emission_primary.csv"
	EmissionSecondaryFile = "emission_secondary.csv"
)

// IntensityFile returns the intensity table name for a variant.
func IntensityFile(v material.Variant) string {
	return "intensity" + v.Suffix() + ".csv"
}

// LifetimeKey identifies one lifetime parameter pair.
type LifetimeKey struct {
	Region   int
	Category stock.Category
	Family   lifetime.Family
}

// Lifetime holds the two parameters of a lifetime family.
type Lifetime struct {
	First  float64
	Second float64
}

// Dataset holds every input table of a run.
type Dataset struct {
	Horizon backcast.Horizon
	// Regions in ascending order.
	Regions []int

	Population   map[int]series.Series
	RuralShare   map[int]series.Series
	FloorArea    map[stock.Area]map[int]series.Series
	HousingShare map[int]map[stock.Area]map[string]float64
	AvgM2        map[int]map[stock.Area]map[string]float64
	// Demand maps commercial type to region to m2 per capita.
	Demand map[string]map[int]series.Series

	Intensity map[material.Key]float64
	Lifetime  map[LifetimeKey]Lifetime
	Factors   recovery.Factors
}

// New returns an empty dataset over h.
func New(h backcast.Horizon) *Dataset {
	return &Dataset{
		Horizon:      h,
		Population:   make(map[int]series.Series),
		RuralShare:   make(map[int]series.Series),
		FloorArea:    map[stock.Area]map[int]series.Series{stock.Rural: {}, stock.Urban: {}},
		HousingShare: make(map[int]map[stock.Area]map[string]float64),
		AvgM2:        make(map[int]map[stock.Area]map[string]float64),
		Demand:       make(map[string]map[int]series.Series),
		Intensity:    make(map[material.Key]float64),
		Lifetime:     make(map[LifetimeKey]Lifetime),
		Factors: recovery.Factors{
			Recovery:          make(map[material.Material]series.Series),
			Reuse:             make(map[material.Material]series.Series),
			EmissionPrimary:   make(map[material.Material]series.Series),
			EmissionSecondary: make(map[material.Material]series.Series),
		},
	}
}

// Load reads every table from dir. Structural problems (missing files or
// columns, unparsable values, missing years, unknown names) are returned as
// errors; completeness across regions is left to validation.
func Load(dir string, h backcast.Horizon, v material.Variant) (*Dataset, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	d := New(h)
	loaders := []struct {
		file     string
		optional bool
		load     func(*table) error
		columns  []string
	}{
		{PopulationFile, false, d.loadPopulation, []string{"region", "year", "value"}},
		{RuralShareFile, false, d.loadRuralShare, []string{"region", "year", "value"}},
		{FloorAreaFile, false, d.loadFloorArea, []string{"region", "area", "year", "value"}},
		{HousingShareFile, false, d.loadHousingShare, []string{"region", "area", "type", "value"}},
		{AvgM2File, true, d.loadAvgM2, []string{"region", "area", "type", "value"}},
		{CommercialDemandFile, false, d.loadDemand, []string{"region", "type", "year", "value"}},
		{IntensityFile(v), false, d.loadIntensity, []string{"region", "area", "type", "material", "value"}},
		{LifetimeFile, false, d.loadLifetime, []string{"region", "area", "type", "family", "first", "second"}},
		{RecoveryRateFile, false, d.factorLoader(d.Factors.Recovery), []string{"material", "year", "value"}},
		{ReuseRateFile, false, d.factorLoader(d.Factors.Reuse), []string{"material", "year", "value"}},
		{EmissionPrimaryFile, false, d.factorLoader(d.Factors.EmissionPrimary), []string{"material", "year", "value"}},
		{EmissionSecondaryFile, false, d.factorLoader(d.Factors.EmissionSecondary), []string{"material", "year", "value"}},
	}
	for _, l := range loaders {
		path := filepath.Join(dir, l.file)
		t, err := readTable(path, l.columns...)
		if err != nil {
			if l.optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("loading %s: %w", l.file, err)
		}
		if err := l.load(t); err != nil {
			return nil, err
		}
	}
	d.Regions = d.regionsFromPopulation()
	return d, nil
}

// Exists reports whether dir looks like a data directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, PopulationFile))
	return err == nil
}

func (d *Dataset) regionsFromPopulation() []int {
	out := make([]int, 0, len(d.Population))
	for r := range d.Population {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// yearValues collects year->value maps per key and turns them into series.
type yearValues[K comparable] struct {
	values map[K]map[int]float64
	all    map[K]float64
	order  []K
}

func newYearValues[K comparable]() *yearValues[K] {
	return &yearValues[K]{values: make(map[K]map[int]float64), all: make(map[K]float64)}
}

func (y *yearValues[K]) add(r row, k K, broadcast bool) error {
	m, ok := y.values[k]
	if !ok {
		m = make(map[int]float64)
		y.values[k] = m
		y.order = append(y.order, k)
	}
	v, err := r.floatVal("value")
	if err != nil {
		return err
	}
	year, hasYear, err := r.year()
	if err != nil {
		return err
	}
	if !hasYear {
		if !broadcast {
			return r.errorf("missing year")
		}
		y.all[k] = v
		return nil
	}
	if _, dup := m[year]; dup {
		return r.errorf("duplicate year %d", year)
	}
	m[year] = v
	return nil
}

func (y *yearValues[K]) build(path string, start, end int, name func(K) string, set func(K, series.Series)) error {
	for _, k := range y.order {
		m := y.values[k]
		for yr := range m {
			if yr < start || yr > end {
				return fmt.Errorf("%s: %s: year %d outside [%d, %d]", path, name(k), yr, start, end)
			}
		}
		if v, ok := y.all[k]; ok {
			for yr := start; yr <= end; yr++ {
				if _, present := m[yr]; !present {
					m[yr] = v
				}
			}
		}
		s, err := series.FromMap(start, end, m)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", path, name(k), err)
		}
		set(k, s)
	}
	return nil
}

func regionName(r int) string { return fmt.Sprintf("region %d", r) }

func (d *Dataset) loadRegionYear(t *table, dst map[int]series.Series) error {
	acc := newYearValues[int]()
	if err := t.each(func(r row) error {
		region, err := r.intVal("region")
		if err != nil {
			return err
		}
		return acc.add(r, region, false)
	}); err != nil {
		return err
	}
	return acc.build(t.path, d.Horizon.FirstObserved, d.Horizon.End, regionName,
		func(k int, s series.Series) { dst[k] = s })
}

func (d *Dataset) loadPopulation(t *table) error { return d.loadRegionYear(t, d.Population) }

func (d *Dataset) loadRuralShare(t *table) error { return d.loadRegionYear(t, d.RuralShare) }

type areaRegion struct {
	area   stock.Area
	region int
}

func (d *Dataset) loadFloorArea(t *table) error {
	acc := newYearValues[areaRegion]()
	if err := t.each(func(r row) error {
		region, err := r.intVal("region")
		if err != nil {
			return err
		}
		area, err := stock.ParseArea(r.str("area"))
		if err != nil || area == stock.Commercial {
			return r.errorf("invalid residential area %q", r.str("area"))
		}
		return acc.add(r, areaRegion{area, region}, false)
	}); err != nil {
		return err
	}
	return acc.build(t.path, d.Horizon.FirstObserved, d.Horizon.End,
		func(k areaRegion) string { return fmt.Sprintf("%s region %d", k.area, k.region) },
		func(k areaRegion, s series.Series) { d.FloorArea[k.area][k.region] = s })
}

func (d *Dataset) loadTypeShares(t *table, dst map[int]map[stock.Area]map[string]float64) error {
	return t.each(func(r row) error {
		region, err := r.intVal("region")
		if err != nil {
			return err
		}
		area, err := stock.ParseArea(r.str("area"))
		if err != nil || area == stock.Commercial {
			return r.errorf("invalid residential area %q", r.str("area"))
		}
		typ, err := stock.ParseType(area, r.str("type"))
		if err != nil {
			return r.errorf("%v", err)
		}
		v, err := r.floatVal("value")
		if err != nil {
			return err
		}
		if dst[region] == nil {
			dst[region] = make(map[stock.Area]map[string]float64)
		}
		if dst[region][area] == nil {
			dst[region][area] = make(map[string]float64)
		}
		if _, dup := dst[region][area][typ]; dup {
			return r.errorf("duplicate entry for region %d %s/%s", region, area, typ)
		}
		dst[region][area][typ] = v
		return nil
	})
}

func (d *Dataset) loadHousingShare(t *table) error { return d.loadTypeShares(t, d.HousingShare) }

func (d *Dataset) loadAvgM2(t *table) error { return d.loadTypeShares(t, d.AvgM2) }

type typeRegion struct {
	typ    string
	region int
}

func (d *Dataset) loadDemand(t *table) error {
	acc := newYearValues[typeRegion]()
	if err := t.each(func(r row) error {
		region, err := r.intVal("region")
		if err != nil {
			return err
		}
		typ, err := stock.ParseType(stock.Commercial, r.str("type"))
		if err != nil {
			return r.errorf("%v", err)
		}
		return acc.add(r, typeRegion{typ, region}, false)
	}); err != nil {
		return err
	}
	return acc.build(t.path, d.Horizon.FirstObserved, d.Horizon.End,
		func(k typeRegion) string { return fmt.Sprintf("%s region %d", k.typ, k.region) },
		func(k typeRegion, s series.Series) {
			if d.Demand[k.typ] == nil {
				d.Demand[k.typ] = make(map[int]series.Series)
			}
			d.Demand[k.typ][k.region] = s
		})
}

func (r row) category() (stock.Category, error) {
	area, err := stock.ParseArea(r.str("area"))
	if err != nil {
		return stock.Category{}, r.errorf("%v", err)
	}
	typ, err := stock.ParseType(area, r.str("type"))
	if err != nil {
		return stock.Category{}, r.errorf("%v", err)
	}
	return stock.Category{Area: area, Type: typ}, nil
}

func (d *Dataset) loadIntensity(t *table) error {
	return t.each(func(r row) error {
		region, err := r.intVal("region")
		if err != nil {
			return err
		}
		c, err := r.category()
		if err != nil {
			return err
		}
		m, err := material.ParseMaterial(r.str("material"))
		if err != nil {
			return r.errorf("%v", err)
		}
		v, err := r.floatVal("value")
		if err != nil {
			return err
		}
		k := material.Key{Region: region, Category: c, Material: m}
		if _, dup := d.Intensity[k]; dup {
			return r.errorf("duplicate intensity for %s", k)
		}
		d.Intensity[k] = v
		return nil
	})
}

func (d *Dataset) loadLifetime(t *table) error {
	return t.each(func(r row) error {
		region, err := r.intVal("region")
		if err != nil {
			return err
		}
		c, err := r.category()
		if err != nil {
			return err
		}
		fam, err := lifetime.ParseFamily(r.str("family"))
		if err != nil {
			return r.errorf("%v", err)
		}
		first, err := r.floatVal("first")
		if err != nil {
			return err
		}
		second, err := r.floatVal("second")
		if err != nil {
			return err
		}
		k := LifetimeKey{Region: region, Category: c, Family: fam}
		if _, dup := d.Lifetime[k]; dup {
			return r.errorf("duplicate lifetime for region %d %s %s", region, c, fam)
		}
		d.Lifetime[k] = Lifetime{First: first, Second: second}
		return nil
	})
}

func (d *Dataset) factorLoader(dst map[material.Material]series.Series) func(*table) error {
	return func(t *table) error {
		acc := newYearValues[material.Material]()
		if err := t.each(func(r row) error {
			m, err := material.ParseMaterial(r.str("material"))
			if err != nil {
				return r.errorf("%v", err)
			}
			return acc.add(r, m, true)
		}); err != nil {
			return err
		}
		return acc.build(t.path, d.Horizon.Origin, d.Horizon.End,
			func(m material.Material) string { return string(m) },
			func(m material.Material, s series.Series) { dst[m] = s })
	}
}
