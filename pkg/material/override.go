package material

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// Override scales the intensity of one material. With To <= From the factor
// applies as a step from From onward; otherwise it phases in linearly from 1
// at From to Factor at To and holds afterwards.
type Override struct {
	Material Material
	// Category restricts the override to one category when set.
	Category *stock.Category
	// Regions restricts the override to the listed regions when non-empty.
	Regions []int
	From    int
	To      int
	Factor  float64
}

// Multiplier returns the factor applied in year.
func (o Override) Multiplier(year int) float64 {
	switch {
	case year < o.From:
		return 1
	case o.To <= o.From || year >= o.To:
		return o.Factor
	}
	frac := float64(year-o.From) / float64(o.To-o.From)
	return 1 + (o.Factor-1)*frac
}

func (o Override) matches(k Key) bool {
	if k.Material != o.Material {
		return false
	}
	if o.Category != nil && *o.Category != k.Category {
		return false
	}
	if len(o.Regions) == 0 {
		return true
	}
	for _, r := range o.Regions {
		if r == k.Region {
			return true
		}
	}
	return false
}

// Apply multiplies every matching intensity series by the override and
// returns the number of series changed.
func (m *Mapper) Apply(o Override) (int, error) {
	if o.Factor < 0 {
		return 0, fmt.Errorf("override for %s: negative factor %g", o.Material, o.Factor)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, s := range m.values {
		if !o.matches(k) {
			continue
		}
		out := series.New(s.Start, s.End())
		for i, v := range s.Values {
			out.Values[i] = v * o.Multiplier(s.Start+i)
		}
		m.values[k] = out
		n++
	}
	return n, nil
}
