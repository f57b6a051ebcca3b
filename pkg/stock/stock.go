// Package stock builds the floor-area stock target of every building
// category from population and per-capita drivers.
package stock

import (
	"fmt"
	"math"

	"github.com/ChicagoDave/buildstock/pkg/series"
)

// DefaultTolerance is the checksum tolerance for area totals, relative to the
// area total when that exceeds one.
const DefaultTolerance = 1e-7

// Inputs holds the full-horizon drivers of one region. Population is in
// millions of people; per-capita values are in m2, so stocks come out in
// million m2.
type Inputs struct {
	Population series.Series
	// Share holds the rural and urban population shares.
	Share map[Area]series.Series
	// FloorArea holds total residential floor area per capita by area.
	FloorArea map[Area]series.Series
	// HousingShare holds the raw housing-type shares per residential area.
	// Shares are normalised within each area.
	HousingShare map[Area]map[string]float64
	// AvgM2 holds the relative floor area per capita by housing type. A
	// missing entry counts as 1.
	AvgM2 map[Area]map[string]float64
	// Demand holds commercial floor area per capita by commercial type.
	Demand map[string]series.Series
}

// Mismatch records a year where the category stocks of an area do not add up
// to the area total.
type Mismatch struct {
	Area  Area    `json:"area"`
	Year  int     `json:"year"`
	Total float64 `json:"total"`
	Sum   float64 `json:"sum"`
}

// Diff returns Sum - Total.
func (m Mismatch) Diff() float64 { return m.Sum - m.Total }

// Stocks holds the stock targets of one region.
type Stocks struct {
	ByCategory map[Category]series.Series
	// People holds the population by residential area.
	People map[Area]series.Series
	// Total holds the area totals the categories must add up to.
	Total map[Area]series.Series
}

// Build derives the stock target of every category. The returned mismatches
// list the years failing the checksum; they do not abort the build.
func Build(in Inputs, tolerance float64) (*Stocks, []Mismatch, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	pop := in.Population
	out := &Stocks{
		ByCategory: make(map[Category]series.Series, 12),
		People:     make(map[Area]series.Series, 2),
		Total:      make(map[Area]series.Series, 3),
	}
	var mismatches []Mismatch

	for _, area := range []Area{Rural, Urban} {
		share, ok := in.Share[area]
		if !ok {
			return nil, nil, fmt.Errorf("missing %s population share", area)
		}
		fa, ok := in.FloorArea[area]
		if !ok {
			return nil, nil, fmt.Errorf("missing %s floor area per capita", area)
		}
		if !share.SameWindow(pop) || !fa.SameWindow(pop) {
			return nil, nil, fmt.Errorf("%s drivers do not cover the population window [%d, %d]", area, pop.Start, pop.End())
		}
		people := pop.Mul(share)
		total := people.Mul(fa)
		out.People[area] = people
		out.Total[area] = total

		weights, err := typeWeights(area, in.HousingShare[area], in.AvgM2[area])
		if err != nil {
			return nil, nil, err
		}
		// per type: people * share * avgm2 * (fa / implied avg m2), which
		// reduces to total * weight / sum(weight)
		sumW := 0.0
		for _, w := range weights {
			sumW += w
		}
		for i, typ := range ResidentialTypes {
			s := series.New(pop.Start, pop.End())
			if sumW > 0 {
				for y := range s.Values {
					s.Values[y] = total.Values[y] * weights[i] / sumW
				}
			}
			out.ByCategory[Category{Area: area, Type: typ}] = s
		}
		mismatches = append(mismatches, checksum(area, total, out.categorySeries(area), tolerance)...)
	}

	commercialTotal := series.New(pop.Start, pop.End())
	for _, typ := range CommercialTypes {
		d, ok := in.Demand[typ]
		if !ok {
			return nil, nil, fmt.Errorf("missing commercial demand per capita for %s", typ)
		}
		if !d.SameWindow(pop) {
			return nil, nil, fmt.Errorf("commercial %s demand does not cover the population window", typ)
		}
		s := d.Mul(pop)
		out.ByCategory[Category{Area: Commercial, Type: typ}] = s
		commercialTotal.AddInPlace(s)
	}
	out.Total[Commercial] = commercialTotal

	for c, s := range out.ByCategory {
		for i, v := range s.Values {
			if v < 0 || math.IsNaN(v) {
				return nil, nil, fmt.Errorf("%s: invalid stock target %g in %d", c, v, s.Start+i)
			}
		}
	}
	return out, mismatches, nil
}

func (s *Stocks) categorySeries(a Area) []series.Series {
	types := Types(a)
	out := make([]series.Series, 0, len(types))
	for _, t := range types {
		out = append(out, s.ByCategory[Category{Area: a, Type: t}])
	}
	return out
}

// typeWeights returns normalised share * relative m2 per capita for each
// residential type in canonical order.
func typeWeights(area Area, shares, avg map[string]float64) ([]float64, error) {
	sum := 0.0
	for _, typ := range ResidentialTypes {
		v, ok := shares[typ]
		if !ok {
			return nil, fmt.Errorf("missing %s housing share for %s", area, typ)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative %s housing share for %s: %g", area, typ, v)
		}
		sum += v
	}
	if sum == 0 {
		return nil, fmt.Errorf("%s housing shares sum to zero", area)
	}
	out := make([]float64, len(ResidentialTypes))
	for i, typ := range ResidentialTypes {
		m := 1.0
		if v, ok := avg[typ]; ok {
			if v < 0 {
				return nil, fmt.Errorf("negative %s m2 per capita for %s: %g", area, typ, v)
			}
			m = v
		}
		out[i] = shares[typ] / sum * m
	}
	return out, nil
}

func checksum(area Area, total series.Series, parts []series.Series, tolerance float64) []Mismatch {
	sum := series.Sum(parts...)
	var out []Mismatch
	for i, want := range total.Values {
		got := sum.Values[i]
		if math.Abs(got-want) > tolerance*math.Max(1, math.Abs(want)) {
			out = append(out, Mismatch{Area: area, Year: total.Start + i, Total: want, Sum: got})
		}
	}
	return out
}

// Check re-runs the checksum over s against its own totals.
func (s *Stocks) Check(tolerance float64) []Mismatch {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	var out []Mismatch
	for _, a := range Areas {
		total, ok := s.Total[a]
		if !ok {
			continue
		}
		out = append(out, checksum(a, total, s.categorySeries(a), tolerance)...)
	}
	return out
}
