// Package cohort implements the stock-driven dynamic stock model. Given a
// stock target per year and a survival table per cohort it derives the inflow
// needed to meet the target and the outflow of every cohort in every year.
//
// Forced retirement: when a target drops faster than natural attrition the
// inflow is clamped to zero and the excess is retired pro-rata, i.e. every
// surviving cohort loses the same fraction of what it still holds that year.
// The cohort keeps that reduced share for the rest of the horizon.
package cohort

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/series"
)

// Survival is the per-cohort survival lookup the model needs. *lifetime.Table
// implements it.
type Survival interface {
	Len() int
	Survival(c, age int) float64
}

var _ Survival = (*lifetime.Table)(nil)

// Result is the output of one stock-driven computation.
type Result struct {
	Stock   series.Series `json:"stock"`
	Inflow  series.Series `json:"inflow"`
	Outflow series.Series `json:"outflow"`

	// Cohorts is the cohort-resolved outflow. It is only needed for
	// origin-indexed mass conversion and may be dropped afterwards.
	Cohorts *Matrix `json:"-"`

	// Corrections counts the years in which a negative inflow was clamped
	// and excess stock retired early.
	Corrections int `json:"corrections"`
	// Clamped counts per-cohort outflow entries that were floored at zero.
	Clamped int `json:"clamped"`
}

// Solve runs the stock-driven model for stock against the survival table sf.
// Both must cover the same number of years. Negative stock targets are
// rejected.
func Solve(stock series.Series, sf Survival) (*Result, error) {
	n := stock.Len()
	if sf.Len() != n {
		return nil, fmt.Errorf("survival table covers %d cohorts, stock covers %d years", sf.Len(), n)
	}
	for i, v := range stock.Values {
		if v < 0 {
			return nil, fmt.Errorf("negative stock target %g in %d", v, stock.Start+i)
		}
	}

	res := &Result{
		Stock:   stock.Clone(),
		Inflow:  series.New(stock.Start, stock.End()),
		Outflow: series.New(stock.Start, stock.End()),
		Cohorts: NewMatrix(stock.Start, n),
	}
	inflow := res.Inflow.Values
	outflow := res.Outflow.Values

	// retained[c] is the share of cohort c not force-retired so far.
	retained := make([]float64, n)
	// alive holds the amount of each earlier cohort still standing at t.
	alive := make([]float64, n)

	for t := 0; t < n; t++ {
		surviving := 0.0
		for c := 0; c < t; c++ {
			base := inflow[c] * retained[c]
			if base == 0 {
				alive[c] = 0
				continue
			}
			a := base * sf.Survival(c, t-c)
			o := base*sf.Survival(c, t-1-c) - a
			if o < 0 {
				o = 0
				res.Clamped++
			}
			res.Cohorts.set(c, t, o)
			alive[c] = a
			surviving += a
		}

		need := stock.Values[t] - surviving
		if need >= 0 {
			inflow[t] = need
		} else {
			inflow[t] = 0
			res.Corrections++
			p := -need / surviving
			for c := 0; c < t; c++ {
				if alive[c] == 0 {
					continue
				}
				res.Cohorts.add(c, t, alive[c]*p)
				retained[c] *= 1 - p
			}
		}
		retained[t] = 1

		total := res.Cohorts.column(t)
		if total < 0 {
			total = 0
		}
		outflow[t] = total
	}
	return res, nil
}

// Balance returns, for every year, S[t] - (S[t-1] + I[t] - O[t]) with
// S[-1] = 0. A correct result has every entry within floating-point
// tolerance of zero.
func (r *Result) Balance() series.Series {
	out := series.New(r.Stock.Start, r.Stock.End())
	prev := 0.0
	for t, s := range r.Stock.Values {
		out.Values[t] = s - (prev + r.Inflow.Values[t] - r.Outflow.Values[t])
		prev = s
	}
	return out
}

// MaxImbalance returns the largest absolute balance residual.
func (r *Result) MaxImbalance() float64 {
	worst := 0.0
	for _, v := range r.Balance().Values {
		if v < 0 {
			v = -v
		}
		if v > worst {
			worst = v
		}
	}
	return worst
}

// Release drops the cohort matrix once origin-indexed conversions are done.
func (r *Result) Release() {
	r.Cohorts = nil
}
