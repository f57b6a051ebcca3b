package engine

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/backcast"
	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// Driver names.
const (
	DriverPopulation = "population"
	DriverRuralShare = "rural_share"
	DriverUrbanShare = "urban_share"
)

// FloorAreaDriver names the floor area per capita driver of an area.
func FloorAreaDriver(a stock.Area) string { return "floor_area_" + string(a) }

// DemandDriver names the commercial demand per capita driver of a type.
func DemandDriver(typ string) string { return "demand_" + typ }

// Drivers holds every driver extended over the full horizon, by region.
type Drivers struct {
	Population map[int]series.Series
	Share      map[stock.Area]map[int]series.Series
	FloorArea  map[stock.Area]map[int]series.Series
	Demand     map[string]map[int]series.Series
	// Trends holds the trend applied per driver and region, in percent.
	Trends map[string]map[int]float64
}

// extendDrivers backcasts every observed driver of d. Trends and bounds are
// computed over all regions of the dataset so a region subset sees the same
// history as a full run.
func extendDrivers(b *backcast.Builder, d *dataset.Dataset) (*Drivers, error) {
	out := &Drivers{
		Share:     make(map[stock.Area]map[int]series.Series, 2),
		FloorArea: make(map[stock.Area]map[int]series.Series, 2),
		Demand:    make(map[string]map[int]series.Series, len(stock.CommercialTypes)),
		Trends:    make(map[string]map[int]float64),
	}
	build := func(drv backcast.Driver) (map[int]series.Series, error) {
		res, err := b.Build(drv)
		if err != nil {
			return nil, fmt.Errorf("backcasting %s: %w", drv.Name, err)
		}
		out.Trends[drv.Name] = res.Trend
		return res.Series, nil
	}

	var err error
	if out.Population, err = build(backcast.Driver{Name: DriverPopulation, Observed: d.Population}); err != nil {
		return nil, err
	}

	rural, err := build(backcast.Driver{Name: DriverRuralShare, Observed: d.RuralShare, Bound: backcast.BoundMax})
	if err != nil {
		return nil, err
	}
	urban := make(map[int]series.Series, len(rural))
	for r, s := range rural {
		urban[r] = b.Complement(s)
	}
	out.Share[stock.Rural] = rural
	out.Share[stock.Urban] = urban

	for _, a := range []stock.Area{stock.Rural, stock.Urban} {
		s, err := build(backcast.Driver{Name: FloorAreaDriver(a), Observed: d.FloorArea[a], Pooled: true, Bound: backcast.BoundMin})
		if err != nil {
			return nil, err
		}
		out.FloorArea[a] = s
	}

	for _, typ := range stock.CommercialTypes {
		s, err := build(backcast.Driver{Name: DemandDriver(typ), Observed: d.Demand[typ], Pooled: true, Bound: backcast.BoundMin})
		if err != nil {
			return nil, err
		}
		out.Demand[typ] = s
	}
	return out, nil
}

// inputs assembles the stock inputs of one region.
func (dr *Drivers) inputs(d *dataset.Dataset, region int) stock.Inputs {
	in := stock.Inputs{
		Population:   dr.Population[region],
		Share:        make(map[stock.Area]series.Series, 2),
		FloorArea:    make(map[stock.Area]series.Series, 2),
		HousingShare: d.HousingShare[region],
		AvgM2:        d.AvgM2[region],
		Demand:       make(map[string]series.Series, len(stock.CommercialTypes)),
	}
	for _, a := range []stock.Area{stock.Rural, stock.Urban} {
		in.Share[a] = dr.Share[a][region]
		in.FloorArea[a] = dr.FloorArea[a][region]
	}
	for _, typ := range stock.CommercialTypes {
		in.Demand[typ] = dr.Demand[typ][region]
	}
	return in
}
