package validation

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// ValidateDataset checks that d holds every table the scenario needs, for
// every selected region, with values in range.
func ValidateDataset(d *dataset.Dataset, s *spec.Scenario) *Report {
	r := NewReport()

	if len(d.Regions) == 0 {
		r.configError("data/"+dataset.PopulationFile, nil, "at least one region", "dataset has no regions")
		return r
	}
	known := make(map[int]bool, len(d.Regions))
	for _, id := range d.Regions {
		known[id] = true
	}
	for i, id := range s.Regions {
		if !known[id] {
			r.configError(fmt.Sprintf("regions[%d]", i), id, "a region of the dataset", "unknown region %d", id)
		}
	}

	validateUnknownRegions(d, known, r)
	validateDrivers(d, r)
	validateIntensities(d, r)
	validateLifetimes(d, s, r)
	validateFactors(d, r)

	return r
}

func validateUnknownRegions(d *dataset.Dataset, known map[int]bool, r *Report) {
	check := func(file string, id int) {
		if !known[id] {
			r.configError("data/"+file, id, "a region listed in "+dataset.PopulationFile, "unknown region %d", id)
		}
	}
	for _, id := range sortedIDs(d.RuralShare) {
		check(dataset.RuralShareFile, id)
	}
	for _, a := range []stock.Area{stock.Rural, stock.Urban} {
		for _, id := range sortedIDs(d.FloorArea[a]) {
			check(dataset.FloorAreaFile, id)
		}
	}
	for _, typ := range stock.CommercialTypes {
		for _, id := range sortedIDs(d.Demand[typ]) {
			check(dataset.CommercialDemandFile, id)
		}
	}
	seen := make(map[int]bool)
	for k := range d.Intensity {
		seen[k.Region] = true
	}
	for k := range d.Lifetime {
		seen[k.Region] = true
	}
	for id := range d.HousingShare {
		seen[id] = true
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		check("*", id)
	}
}

func sortedIDs(m map[int]series.Series) []int {
	out := make([]int, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func validateSeries(path string, s series.Series, lo, hi float64, r *Report) {
	for i, v := range s.Values {
		if math.IsNaN(v) || v < lo || v > hi {
			r.configError(path, v, fmt.Sprintf("%g-%g", lo, hi), "value %g in %d out of range", v, s.Start+i)
			return
		}
	}
}

func validateDrivers(d *dataset.Dataset, r *Report) {
	inf := math.Inf(1)
	for _, id := range d.Regions {
		region := fmt.Sprintf("region %d", id)
		validateSeries(fmt.Sprintf("data/%s[%d]", dataset.PopulationFile, id), d.Population[id], 0, inf, r)

		if s, ok := d.RuralShare[id]; ok {
			validateSeries(fmt.Sprintf("data/%s[%d]", dataset.RuralShareFile, id), s, 0, 1, r)
		} else {
			r.configError("data/"+dataset.RuralShareFile, id, "", "missing rural share for %s", region)
		}
		for _, a := range []stock.Area{stock.Rural, stock.Urban} {
			if s, ok := d.FloorArea[a][id]; ok {
				validateSeries(fmt.Sprintf("data/%s[%d/%s]", dataset.FloorAreaFile, id, a), s, 0, inf, r)
			} else {
				r.configError("data/"+dataset.FloorAreaFile, id, "", "missing %s floor area for %s", a, region)
			}
			sum := 0.0
			for _, typ := range stock.ResidentialTypes {
				v, ok := d.HousingShare[id][a][typ]
				if !ok {
					r.configError("data/"+dataset.HousingShareFile, id, "", "missing %s/%s housing share for %s", a, typ, region)
					continue
				}
				if v < 0 {
					r.configError("data/"+dataset.HousingShareFile, v, ">= 0", "negative %s/%s housing share for %s", a, typ, region)
				}
				sum += v
				if m, ok := d.AvgM2[id][a][typ]; ok && m < 0 {
					r.configError("data/"+dataset.AvgM2File, m, ">= 0", "negative %s/%s m2 per capita for %s", a, typ, region)
				}
			}
			if sum == 0 {
				r.configError("data/"+dataset.HousingShareFile, sum, "> 0", "%s housing shares of %s sum to zero", a, region)
			}
		}
		for _, typ := range stock.CommercialTypes {
			if s, ok := d.Demand[typ][id]; ok {
				validateSeries(fmt.Sprintf("data/%s[%d/%s]", dataset.CommercialDemandFile, id, typ), s, 0, inf, r)
			} else {
				r.configError("data/"+dataset.CommercialDemandFile, id, "", "missing %s demand for %s", typ, region)
			}
		}
	}
}

func validateIntensities(d *dataset.Dataset, r *Report) {
	for _, id := range d.Regions {
		for _, c := range stock.Categories() {
			for _, m := range material.Materials {
				k := material.Key{Region: id, Category: c, Material: m}
				v, ok := d.Intensity[k]
				switch {
				case !ok:
					r.configError("data/intensity", k.String(), "", "missing intensity for %s", k)
				case v < 0 || math.IsNaN(v):
					r.configError("data/intensity", v, ">= 0", "invalid intensity for %s", k)
				}
			}
		}
	}
}

func validateLifetimes(d *dataset.Dataset, s *spec.Scenario, r *Report) {
	fam, err := lifetime.ParseFamily(s.Lifetime.Family)
	if err != nil {
		// reported by ValidateScenario
		return
	}
	horizon := s.Horizon.End - s.Horizon.Origin + 1
	checked := make(map[dataset.Lifetime]error)
	for _, id := range d.Regions {
		for _, c := range stock.Categories() {
			lt, ok := d.Lifetime[dataset.LifetimeKey{Region: id, Category: c, Family: fam}]
			path := fmt.Sprintf("data/%s[%d/%s]", dataset.LifetimeFile, id, c)
			if !ok {
				r.configError(path, nil, string(fam), "missing %s lifetime for region %d %s", fam, id, c)
				continue
			}
			err, done := checked[lt]
			if !done {
				err = checkSurvival(lifetime.Params{Family: fam, First: lt.First, Second: lt.Second}, horizon)
				checked[lt] = err
			}
			if err != nil {
				r.configError(path, fmt.Sprintf("%g/%g", lt.First, lt.Second), "valid survival parameters", "%v", err)
			}
		}
	}
}

func checkSurvival(p lifetime.Params, n int) error {
	dist, err := lifetime.New(p)
	if err != nil {
		return err
	}
	return lifetime.Check(lifetime.Curve(dist, n))
}

func validateFactors(d *dataset.Dataset, r *Report) {
	tables := []struct {
		file string
		m    map[material.Material]series.Series
	}{
		{dataset.RecoveryRateFile, d.Factors.Recovery},
		{dataset.ReuseRateFile, d.Factors.Reuse},
		{dataset.EmissionPrimaryFile, d.Factors.EmissionPrimary},
		{dataset.EmissionSecondaryFile, d.Factors.EmissionSecondary},
	}
	for _, t := range tables {
		for _, m := range material.Materials {
			if _, ok := t.m[m]; !ok {
				r.configError("data/"+t.file, string(m), "", "missing %s for %s", t.file, m)
			}
		}
	}
	if err := d.Factors.Validate(); err != nil {
		r.configError("data/factors", nil, "rates in [0,1], factors >= 0", "%v", err)
	}
}
