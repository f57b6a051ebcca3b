package engine

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// buildMapper loads the intensities of the given regions and applies the
// scenario overrides in order.
func buildMapper(d *dataset.Dataset, s *spec.Scenario, regions []int) (*material.Mapper, error) {
	m := material.NewMapper(s.Horizon.Origin, s.Horizon.End)
	for _, r := range regions {
		for _, c := range stock.Categories() {
			for _, mat := range material.Materials {
				k := material.Key{Region: r, Category: c, Material: mat}
				v, ok := d.Intensity[k]
				if !ok {
					return nil, fmt.Errorf("no intensity for %s", k)
				}
				if err := m.SetScalar(k, v); err != nil {
					return nil, err
				}
			}
		}
	}
	for i, o := range s.Intensity.Overrides {
		mo, err := materialOverride(o)
		if err != nil {
			return nil, fmt.Errorf("intensity override %d: %w", i, err)
		}
		if _, err := m.Apply(mo); err != nil {
			return nil, fmt.Errorf("intensity override %d: %w", i, err)
		}
	}
	return m, nil
}

func materialOverride(o spec.IntensityOverride) (material.Override, error) {
	mat, err := material.ParseMaterial(o.Material)
	if err != nil {
		return material.Override{}, err
	}
	out := material.Override{Material: mat, Regions: o.Regions, From: o.From, To: o.To, Factor: o.Factor}
	if o.Category != "" {
		c, err := stock.ParseCategory(o.Category)
		if err != nil {
			return material.Override{}, err
		}
		out.Category = &c
	}
	return out, nil
}
