package dataset

import (
	"math"

	"github.com/ChicagoDave/buildstock/pkg/backcast"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// typical kg/m2 by material for residential and commercial buildings
var (
	residentialIntensity = map[material.Material]float64{
		material.Steel: 35, material.Brick: 250, material.Concrete: 700, material.Wood: 40,
		material.Copper: 1.5, material.Aluminium: 2, material.Glass: 4,
	}
	commercialIntensity = map[material.Material]float64{
		material.Steel: 90, material.Brick: 120, material.Concrete: 1100, material.Wood: 15,
		material.Copper: 3, material.Aluminium: 5, material.Glass: 9,
	}
	recoveryRates = map[material.Material]float64{
		material.Steel: 0.85, material.Brick: 0.3, material.Concrete: 0.5, material.Wood: 0.2,
		material.Copper: 0.8, material.Aluminium: 0.8, material.Glass: 0.3,
	}
	emissionPrimary = map[material.Material]float64{
		material.Steel: 2.2, material.Brick: 0.25, material.Concrete: 0.13, material.Wood: 0.3,
		material.Copper: 3.8, material.Aluminium: 12, material.Glass: 1.1,
	}
)

// Synthetic returns a complete, plausible dataset for the given number of
// regions. Values are deterministic. Used by `buildstock init` and tests.
func Synthetic(h backcast.Horizon, regions int) *Dataset {
	d := New(h)
	grow := func(base, rate float64, r int) series.Series {
		s := series.New(h.FirstObserved, h.End)
		for i := range s.Values {
			s.Values[i] = base * math.Pow(1+rate+0.001*float64(r), float64(i))
		}
		return s
	}

	for r := 1; r <= regions; r++ {
		d.Regions = append(d.Regions, r)
		d.Population[r] = grow(10*float64(r), 0.012, r)

		rural := series.New(h.FirstObserved, h.End)
		for i := range rural.Values {
			rural.Values[i] = math.Max(0.15, 0.65-0.02*float64(r)-0.004*float64(i))
		}
		d.RuralShare[r] = rural
		d.FloorArea[stock.Rural][r] = grow(18+float64(r), 0.008, r)
		d.FloorArea[stock.Urban][r] = grow(22+float64(r), 0.01, r)

		d.HousingShare[r] = map[stock.Area]map[string]float64{
			stock.Rural: {stock.Detached: 0.3, stock.SemiDetached: 0.1, stock.Apartments: 0.04, stock.HighRise: 0.01},
			stock.Urban: {stock.Detached: 0.1, stock.SemiDetached: 0.12, stock.Apartments: 0.25, stock.HighRise: 0.08},
		}
		d.AvgM2[r] = map[stock.Area]map[string]float64{
			stock.Rural: {stock.Detached: 45, stock.SemiDetached: 38, stock.Apartments: 30, stock.HighRise: 28},
			stock.Urban: {stock.Detached: 42, stock.SemiDetached: 36, stock.Apartments: 28, stock.HighRise: 26},
		}

		for i, typ := range stock.CommercialTypes {
			if d.Demand[typ] == nil {
				d.Demand[typ] = make(map[int]series.Series)
			}
			d.Demand[typ][r] = grow(0.5+0.4*float64(i), 0.015, r)
		}

		for _, c := range stock.Categories() {
			base := residentialIntensity
			if c.Area == stock.Commercial {
				base = commercialIntensity
			}
			for _, m := range material.Materials {
				d.Intensity[material.Key{Region: r, Category: c, Material: m}] = base[m] * (1 + 0.05*float64(r-1))
			}
			shape, scale, mean, sd := 2.4, 70.0, 65.0, 20.0
			if c.Area == stock.Commercial {
				shape, scale, mean, sd = 2.0, 45.0, 42.0, 14.0
			}
			d.Lifetime[LifetimeKey{Region: r, Category: c, Family: lifetime.Weibull}] = Lifetime{First: shape, Second: scale}
			d.Lifetime[LifetimeKey{Region: r, Category: c, Family: lifetime.FoldedNormal}] = Lifetime{First: mean, Second: sd}
		}
	}

	for _, m := range material.Materials {
		d.Factors.Recovery[m] = series.Constant(h.Origin, h.End, recoveryRates[m])
		d.Factors.Reuse[m] = series.Constant(h.Origin, h.End, recoveryRates[m]/4)
		d.Factors.EmissionPrimary[m] = series.Constant(h.Origin, h.End, emissionPrimary[m])
		d.Factors.EmissionSecondary[m] = series.Constant(h.Origin, h.End, emissionPrimary[m]/3)
	}
	return d
}
