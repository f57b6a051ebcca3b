package flow

import (
	"fmt"
	"sort"

	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// Total marks an aggregated dimension in a record.
const Total = "total"

// Record is one row of the flow table.
type Record struct {
	Region   int               `json:"region"`
	Category stock.Category    `json:"category"`
	Material material.Material `json:"material,omitempty"`
	Flow     Flow              `json:"flow"`
	Unit     string            `json:"unit"`
	Values   series.Series     `json:"values"`
}

// Key returns a string identifying the record's dimensions.
func (r Record) Key() string {
	return fmt.Sprintf("%d/%s/%s/%s", r.Region, r.Category, r.Material, r.Flow)
}

// Table is an ordered list of flow records.
type Table struct {
	Records []Record `json:"records"`
}

// Add appends records.
func (t *Table) Add(rs ...Record) {
	t.Records = append(t.Records, rs...)
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Records) }

// Filter returns the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := &Table{}
	for _, r := range t.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Find returns the first record matching the given dimensions.
func (t *Table) Find(region int, c stock.Category, m material.Material, f Flow) (Record, bool) {
	for _, r := range t.Records {
		if r.Region == region && r.Category == c && r.Material == m && r.Flow == f {
			return r, true
		}
	}
	return Record{}, false
}

// Sort orders records by region, category, material then flow, each in
// canonical order. Aggregated rows sort after detail rows.
func (t *Table) Sort() {
	sort.SliceStable(t.Records, func(i, j int) bool {
		a, b := t.Records[i], t.Records[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if ai, bi := categoryRank(a.Category), categoryRank(b.Category); ai != bi {
			return ai < bi
		}
		if ai, bi := materialRank(a.Material), materialRank(b.Material); ai != bi {
			return ai < bi
		}
		return flowRank(a.Flow) < flowRank(b.Flow)
	})
}

func categoryRank(c stock.Category) int {
	if i := c.Index(); i >= 0 {
		return i
	}
	for i, a := range stock.Areas {
		if c.Area == a {
			return 100 + i
		}
	}
	return 200
}

func materialRank(m material.Material) int {
	if m == "" {
		return -1
	}
	for i, k := range material.Materials {
		if k == m {
			return i
		}
	}
	return len(material.Materials)
}

func flowRank(f Flow) int {
	for i, k := range Flows {
		if k == f {
			return i
		}
	}
	return len(Flows)
}

type sumKey struct {
	region   int
	category stock.Category
	material material.Material
	flow     Flow
}

// sum groups records by the key derived from each record and adds their
// values in table order. Materials are always kept apart.
func (t *Table) sum(group func(Record) (stock.Category, bool)) (*Table, error) {
	index := make(map[sumKey]int)
	out := &Table{}
	for _, r := range t.Records {
		c, ok := group(r)
		if !ok {
			continue
		}
		k := sumKey{region: r.Region, category: c, material: r.Material, flow: r.Flow}
		i, seen := index[k]
		if !seen {
			index[k] = len(out.Records)
			out.Records = append(out.Records, Record{
				Region: r.Region, Category: c, Material: r.Material, Flow: r.Flow, Unit: r.Unit,
				Values: r.Values.Clone(),
			})
			continue
		}
		acc := out.Records[i]
		if !acc.Values.SameWindow(r.Values) {
			return nil, fmt.Errorf("record %s: window [%d, %d] differs from [%d, %d]",
				r.Key(), r.Values.Start, r.Values.End(), acc.Values.Start, acc.Values.End())
		}
		acc.Values.AddInPlace(r.Values)
	}
	out.Sort()
	return out, nil
}

// SumByArea totals detail records over the categories of each area type, per
// region, material and flow.
func (t *Table) SumByArea() (*Table, error) {
	return t.sum(func(r Record) (stock.Category, bool) {
		if r.Category.Index() < 0 {
			return stock.Category{}, false
		}
		return stock.Category{Area: r.Category.Area, Type: Total}, true
	})
}

// SumByRegion totals detail records over all categories per region, material
// and flow.
func (t *Table) SumByRegion() (*Table, error) {
	return t.sum(func(r Record) (stock.Category, bool) {
		if r.Category.Index() < 0 {
			return stock.Category{}, false
		}
		return stock.Category{Area: Total, Type: Total}, true
	})
}
