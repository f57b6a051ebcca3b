// Package flow converts floor-area flows into material-mass flows and holds
// the resulting flow table.
package flow

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/cohort"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/series"
)

// Flow names a flow direction or a derived flow.
type Flow string

const (
	Stock   Flow = "stock"
	Inflow  Flow = "inflow"
	Outflow Flow = "outflow"

	Recovered         Flow = "recovered"
	Reused            Flow = "reused"
	Primary           Flow = "primary"
	Secondary         Flow = "secondary"
	EmissionPrimary   Flow = "emission_primary"
	EmissionSecondary Flow = "emission_secondary"
)

// Flows lists every flow in canonical order.
var Flows = []Flow{Stock, Inflow, Outflow, Recovered, Reused, Primary, Secondary, EmissionPrimary, EmissionSecondary}

// Units of the values in a record.
const (
	UnitArea     = "Mm2"
	UnitMass     = "kt"
	UnitEmission = "kt CO2-eq"
)

// Mass holds the mass flows of one (region, category, material).
type Mass struct {
	Stock   series.Series
	Inflow  series.Series
	Outflow series.Series
}

// MassInflow returns inflow[t] * intensity[t].
func MassInflow(inflow, intensity series.Series) (series.Series, error) {
	w, err := intensity.Window(inflow.Start, inflow.End())
	if err != nil {
		return series.Series{}, fmt.Errorf("intensity does not cover inflow: %w", err)
	}
	return inflow.Mul(w), nil
}

// MassOutflow returns sum_c O[c,t] * intensity[c]: each cohort leaves with
// the intensity of the year it was built.
func MassOutflow(cohorts *cohort.Matrix, intensity series.Series) (series.Series, error) {
	if cohorts == nil {
		return series.Series{}, fmt.Errorf("cohort matrix already released")
	}
	end := cohorts.Start() + cohorts.Len() - 1
	if !intensity.Covers(cohorts.Start()) || !intensity.Covers(end) {
		return series.Series{}, fmt.Errorf("intensity [%d, %d] does not cover cohorts [%d, %d]",
			intensity.Start, intensity.End(), cohorts.Start(), end)
	}
	return cohorts.Weighted(intensity), nil
}

// MassStock accumulates stock[t] = stock[t-1] + inflow[t] - outflow[t] from
// zero before the first year.
func MassStock(inflow, outflow series.Series) series.Series {
	out := inflow.Sub(outflow)
	for i := 1; i < len(out.Values); i++ {
		out.Values[i] += out.Values[i-1]
	}
	return out
}

// Convert derives the mass flows of one material from a cohort result. The
// result must still hold its cohort matrix.
func Convert(res *cohort.Result, intensity series.Series) (Mass, error) {
	in, err := MassInflow(res.Inflow, intensity)
	if err != nil {
		return Mass{}, err
	}
	out, err := MassOutflow(res.Cohorts, intensity)
	if err != nil {
		return Mass{}, err
	}
	return Mass{Stock: MassStock(in, out), Inflow: in, Outflow: out}, nil
}

// Records expands m into stock, inflow and outflow records for key.
func (m Mass) Records(k material.Key) []Record {
	return []Record{
		{Region: k.Region, Category: k.Category, Material: k.Material, Flow: Stock, Unit: UnitMass, Values: m.Stock},
		{Region: k.Region, Category: k.Category, Material: k.Material, Flow: Inflow, Unit: UnitMass, Values: m.Inflow},
		{Region: k.Region, Category: k.Category, Material: k.Material, Flow: Outflow, Unit: UnitMass, Values: m.Outflow},
	}
}
