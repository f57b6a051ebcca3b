package engine

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// lifetimeOverride is a parsed spec.LifetimeOverride.
type lifetimeOverride struct {
	category *stock.Category
	regions  map[int]bool
	from, to int
	factor   float64
}

func parseLifetimeOverrides(list []spec.LifetimeOverride) ([]lifetimeOverride, error) {
	out := make([]lifetimeOverride, 0, len(list))
	for i, o := range list {
		lo := lifetimeOverride{from: o.From, to: o.To, factor: o.Factor}
		if o.Category != "" {
			c, err := stock.ParseCategory(o.Category)
			if err != nil {
				return nil, fmt.Errorf("lifetime override %d: %w", i, err)
			}
			lo.category = &c
		}
		if len(o.Regions) > 0 {
			lo.regions = make(map[int]bool, len(o.Regions))
			for _, r := range o.Regions {
				lo.regions[r] = true
			}
		}
		out = append(out, lo)
	}
	return out, nil
}

func (o lifetimeOverride) matches(region int, c stock.Category) bool {
	if o.category != nil && *o.category != c {
		return false
	}
	return o.regions == nil || o.regions[region]
}

// multiplier phases linearly from 1 at from to factor at to, or steps at from
// when to is unset.
func (o lifetimeOverride) multiplier(year int) float64 {
	switch {
	case year < o.from:
		return 1
	case o.to <= o.from || year >= o.to:
		return o.factor
	}
	return 1 + (o.factor-1)*float64(year-o.from)/float64(o.to-o.from)
}

// lifetimeSeries returns the per-cohort parameter series of one key with
// overrides applied to the characteristic lifetime.
func lifetimeSeries(fam lifetime.Family, lt dataset.Lifetime, start, end, region int, c stock.Category, overrides []lifetimeOverride) (first, second series.Series) {
	first = series.Constant(start, end, lt.First)
	second = series.Constant(start, end, lt.Second)
	target := second
	if fam == lifetime.FoldedNormal {
		target = first
	}
	for _, o := range overrides {
		if !o.matches(region, c) {
			continue
		}
		for i := range target.Values {
			target.Values[i] *= o.multiplier(start + i)
		}
	}
	return first, second
}
