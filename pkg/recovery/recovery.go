// Package recovery splits material demand into primary and secondary supply
// using end-of-life recovery and reuse rates and derives embodied emissions.
package recovery

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// Factors holds per-material year series of rates and emission factors.
// Rates are fractions in [0, 1]; emission factors are in kg CO2-eq per kg.
type Factors struct {
	Recovery          map[material.Material]series.Series
	Reuse             map[material.Material]series.Series
	EmissionPrimary   map[material.Material]series.Series
	EmissionSecondary map[material.Material]series.Series
}

// Validate checks rate bounds and emission factor signs.
func (f *Factors) Validate() error {
	for _, set := range []struct {
		name  string
		m     map[material.Material]series.Series
		upper float64
	}{
		{"recovery rate", f.Recovery, 1},
		{"reuse rate", f.Reuse, 1},
		{"primary emission factor", f.EmissionPrimary, math.Inf(1)},
		{"secondary emission factor", f.EmissionSecondary, math.Inf(1)},
	} {
		for mat, s := range set.m {
			for i, v := range s.Values {
				if math.IsNaN(v) || v < 0 || v > set.upper {
					return fmt.Errorf("%s for %s in %d: %g out of range", set.name, mat, s.Start+i, v)
				}
			}
		}
	}
	return nil
}

// Split is the primary/secondary breakdown of one (region, category,
// material).
type Split struct {
	Recovered         series.Series
	Reused            series.Series
	Primary           series.Series
	Secondary         series.Series
	EmissionPrimary   series.Series
	EmissionSecondary series.Series
}

// Calculator applies a set of factors to mass flows.
type Calculator struct {
	factors *Factors
}

// NewCalculator validates f and returns a Calculator.
func NewCalculator(f *Factors) (*Calculator, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{factors: f}, nil
}

func lookup(m map[material.Material]series.Series, mat material.Material, name string, like series.Series) (series.Series, error) {
	s, ok := m[mat]
	if !ok {
		return series.Series{}, fmt.Errorf("no %s for %s", name, mat)
	}
	w, err := s.Window(like.Start, like.End())
	if err != nil {
		return series.Series{}, fmt.Errorf("%s for %s: %w", name, mat, err)
	}
	return w, nil
}

// Split computes
//
//	recovered = min(inflow, outflow*recovery)
//	reused    = min(inflow, outflow*reuse)
//	primary   = inflow - recovered
//	secondary = recovered - reused
//
// and the emissions of primary and secondary material.
func (c *Calculator) Split(mat material.Material, inflow, outflow series.Series) (*Split, error) {
	if !inflow.SameWindow(outflow) {
		return nil, fmt.Errorf("%s: inflow and outflow cover different years", mat)
	}
	rec, err := lookup(c.factors.Recovery, mat, "recovery rate", inflow)
	if err != nil {
		return nil, err
	}
	reu, err := lookup(c.factors.Reuse, mat, "reuse rate", inflow)
	if err != nil {
		return nil, err
	}
	efp, err := lookup(c.factors.EmissionPrimary, mat, "primary emission factor", inflow)
	if err != nil {
		return nil, err
	}
	efs, err := lookup(c.factors.EmissionSecondary, mat, "secondary emission factor", inflow)
	if err != nil {
		return nil, err
	}

	s := &Split{
		Recovered: inflow.Min(outflow.Mul(rec)),
		Reused:    inflow.Min(outflow.Mul(reu)),
	}
	s.Primary = inflow.Sub(s.Recovered)
	s.Secondary = s.Recovered.Sub(s.Reused)
	s.EmissionPrimary = s.Primary.Mul(efp)
	s.EmissionSecondary = s.Secondary.Mul(efs)
	return s, nil
}

// Records expands s into derived flow records for key.
func (s *Split) Records(k material.Key) []flow.Record {
	rec := func(f flow.Flow, unit string, v series.Series) flow.Record {
		return flow.Record{Region: k.Region, Category: k.Category, Material: k.Material, Flow: f, Unit: unit, Values: v}
	}
	return []flow.Record{
		rec(flow.Recovered, flow.UnitMass, s.Recovered),
		rec(flow.Reused, flow.UnitMass, s.Reused),
		rec(flow.Primary, flow.UnitMass, s.Primary),
		rec(flow.Secondary, flow.UnitMass, s.Secondary),
		rec(flow.EmissionPrimary, flow.UnitEmission, s.EmissionPrimary),
		rec(flow.EmissionSecondary, flow.UnitEmission, s.EmissionSecondary),
	}
}

type pairKey struct {
	region   int
	category stock.Category
	material material.Material
}

// Apply derives recovery and emission records for every (region, category,
// material) with both an inflow and an outflow record in t. The input table
// is not modified.
func (c *Calculator) Apply(t *flow.Table) (*flow.Table, error) {
	inflow := make(map[pairKey]series.Series)
	outflow := make(map[pairKey]series.Series)
	var order []pairKey
	for _, r := range t.Records {
		if r.Material == "" {
			continue
		}
		k := pairKey{r.Region, r.Category, r.Material}
		switch r.Flow {
		case flow.Inflow:
			if _, ok := outflow[k]; !ok {
				order = append(order, k)
			}
			inflow[k] = r.Values
		case flow.Outflow:
			if _, ok := inflow[k]; !ok {
				order = append(order, k)
			}
			outflow[k] = r.Values
		}
	}

	out := &flow.Table{}
	for _, k := range order {
		in, okIn := inflow[k]
		o, okOut := outflow[k]
		if !okIn || !okOut {
			return nil, fmt.Errorf("%d/%s/%s: need both inflow and outflow", k.region, k.category, k.material)
		}
		s, err := c.Split(k.material, in, o)
		if err != nil {
			return nil, fmt.Errorf("region %d, %s: %w", k.region, k.category, err)
		}
		out.Add(s.Records(material.Key{Region: k.region, Category: k.category, Material: k.material})...)
	}
	out.Sort()
	return out, nil
}

// Emission is the emission total of a region, optionally for one material.
type Emission struct {
	Region    int               `json:"region"`
	Material  material.Material `json:"material,omitempty"`
	Primary   series.Series     `json:"primary"`
	Secondary series.Series     `json:"secondary"`
	Total     series.Series     `json:"total"`
}

// EmissionsByRegion totals the emission records of t by region, or by region
// and material when byMaterial is set. Rows are ordered by region then
// material.
func EmissionsByRegion(t *flow.Table, byMaterial bool) ([]Emission, error) {
	type key struct {
		region   int
		material material.Material
	}
	acc := make(map[key]*Emission)
	for _, r := range t.Records {
		if r.Flow != flow.EmissionPrimary && r.Flow != flow.EmissionSecondary {
			continue
		}
		if r.Category.Index() < 0 {
			continue
		}
		k := key{region: r.Region}
		if byMaterial {
			k.material = r.Material
		}
		e, ok := acc[k]
		if !ok {
			e = &Emission{
				Region:    k.region,
				Material:  k.material,
				Primary:   series.New(r.Values.Start, r.Values.End()),
				Secondary: series.New(r.Values.Start, r.Values.End()),
			}
			acc[k] = e
		}
		if !e.Primary.SameWindow(r.Values) {
			return nil, fmt.Errorf("record %s: window differs from region total", r.Key())
		}
		if r.Flow == flow.EmissionPrimary {
			e.Primary.AddInPlace(r.Values)
		} else {
			e.Secondary.AddInPlace(r.Values)
		}
	}

	out := make([]Emission, 0, len(acc))
	for _, e := range acc {
		e.Total = e.Primary.Add(e.Secondary)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return materialRank(out[i].Material) < materialRank(out[j].Material)
	})
	return out, nil
}

func materialRank(m material.Material) int {
	for i, k := range material.Materials {
		if k == m {
			return i
		}
	}
	return -1
}
