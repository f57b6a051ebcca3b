package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// Write stores d as CSV tables in dir, creating it if needed. Intensities are
// written to the regular variant file. Material tables are written with one
// row per year.
func (d *Dataset) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := func(name string) string { return filepath.Join(dir, name) }
	regions := d.sortedRegions()

	writes := []struct {
		file   string
		header []string
		rows   [][]string
	}{
		{PopulationFile, []string{"region", "year", "value"}, regionYearRows(regions, d.Population)},
		{RuralShareFile, []string{"region", "year", "value"}, regionYearRows(regions, d.RuralShare)},
		{FloorAreaFile, []string{"region", "area", "year", "value"}, d.floorAreaRows(regions)},
		{HousingShareFile, []string{"region", "area", "type", "value"}, typeShareRows(regions, d.HousingShare)},
		{AvgM2File, []string{"region", "area", "type", "value"}, typeShareRows(regions, d.AvgM2)},
		{CommercialDemandFile, []string{"region", "type", "year", "value"}, d.demandRows(regions)},
		{IntensityFile(material.Regular), []string{"region", "area", "type", "material", "value"}, d.intensityRows()},
		{LifetimeFile, []string{"region", "area", "type", "family", "first", "second"}, d.lifetimeRows(regions)},
		{RecoveryRateFile, []string{"material", "year", "value"}, factorRows(d.Factors.Recovery)},
		{ReuseRateFile, []string{"material", "year", "value"}, factorRows(d.Factors.Reuse)},
		{EmissionPrimaryFile, []string{"material", "year", "value"}, factorRows(d.Factors.EmissionPrimary)},
		{EmissionSecondaryFile, []string{"material", "year", "value"}, factorRows(d.Factors.EmissionSecondary)},
	}
	for _, w := range writes {
		if err := writeTable(path(w.file), w.header, w.rows); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dataset) sortedRegions() []int {
	if len(d.Regions) > 0 {
		return d.Regions
	}
	return d.regionsFromPopulation()
}

func seriesRows(prefix []string, s series.Series) [][]string {
	out := make([][]string, 0, s.Len())
	for i, v := range s.Values {
		row := append(append([]string{}, prefix...), strconv.Itoa(s.Start+i), formatFloat(v))
		out = append(out, row)
	}
	return out
}

func regionYearRows(regions []int, m map[int]series.Series) [][]string {
	var out [][]string
	for _, r := range regions {
		if s, ok := m[r]; ok {
			out = append(out, seriesRows([]string{strconv.Itoa(r)}, s)...)
		}
	}
	return out
}

func (d *Dataset) floorAreaRows(regions []int) [][]string {
	var out [][]string
	for _, r := range regions {
		for _, a := range []stock.Area{stock.Rural, stock.Urban} {
			if s, ok := d.FloorArea[a][r]; ok {
				out = append(out, seriesRows([]string{strconv.Itoa(r), string(a)}, s)...)
			}
		}
	}
	return out
}

func typeShareRows(regions []int, m map[int]map[stock.Area]map[string]float64) [][]string {
	var out [][]string
	for _, r := range regions {
		for _, a := range []stock.Area{stock.Rural, stock.Urban} {
			for _, typ := range stock.ResidentialTypes {
				if v, ok := m[r][a][typ]; ok {
					out = append(out, []string{strconv.Itoa(r), string(a), typ, formatFloat(v)})
				}
			}
		}
	}
	return out
}

func (d *Dataset) demandRows(regions []int) [][]string {
	var out [][]string
	for _, r := range regions {
		for _, typ := range stock.CommercialTypes {
			if s, ok := d.Demand[typ][r]; ok {
				out = append(out, seriesRows([]string{strconv.Itoa(r), typ}, s)...)
			}
		}
	}
	return out
}

func (d *Dataset) intensityRows() [][]string {
	keys := make([]material.Key, 0, len(d.Intensity))
	for k := range d.Intensity {
		keys = append(keys, k)
	}
	sortKeys(keys)
	out := make([][]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, []string{
			strconv.Itoa(k.Region), string(k.Category.Area), k.Category.Type, string(k.Material),
			formatFloat(d.Intensity[k]),
		})
	}
	return out
}

func sortKeys(keys []material.Key) {
	rank := make(map[material.Material]int, len(material.Materials))
	for i, m := range material.Materials {
		rank[m] = i
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Category != b.Category {
			return a.Category.Index() < b.Category.Index()
		}
		return rank[a.Material] < rank[b.Material]
	})
}

func (d *Dataset) lifetimeRows(regions []int) [][]string {
	var out [][]string
	for _, r := range regions {
		for _, c := range stock.Categories() {
			for _, f := range []lifetime.Family{lifetime.Weibull, lifetime.FoldedNormal} {
				lt, ok := d.Lifetime[LifetimeKey{Region: r, Category: c, Family: f}]
				if !ok {
					continue
				}
				out = append(out, []string{
					strconv.Itoa(r), string(c.Area), c.Type, string(f),
					formatFloat(lt.First), formatFloat(lt.Second),
				})
			}
		}
	}
	return out
}

func factorRows(m map[material.Material]series.Series) [][]string {
	var out [][]string
	for _, mat := range material.Materials {
		if s, ok := m[mat]; ok {
			out = append(out, seriesRows([]string{string(mat)}, s)...)
		}
	}
	return out
}
