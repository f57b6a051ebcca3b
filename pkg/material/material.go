// Package material maps building categories to material intensities (kg of
// material per m2 of floor area) over the model horizon.
package material

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// Material is a mass pool. Materials are never summed together.
type Material string

const (
	Steel     Material = "steel"
	Brick     Material = "brick"
	Concrete  Material = "concrete"
	Wood      Material = "wood"
	Copper    Material = "copper"
	Aluminium Material = "aluminium"
	Glass     Material = "glass"
)

// Materials lists every material in canonical order.
var Materials = []Material{Steel, Brick, Concrete, Wood, Copper, Aluminium, Glass}

// ParseMaterial parses a material name.
func ParseMaterial(s string) (Material, error) {
	m := Material(strings.ToLower(strings.TrimSpace(s)))
	if m == "aluminum" {
		return Aluminium, nil
	}
	for _, k := range Materials {
		if k == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown material %q", s)
}

// Variant selects which intensity table is used.
type Variant string

const (
	Regular Variant = "regular"
	Mean    Variant = "mean"
	High    Variant = "high"
	Low     Variant = "low"
	Median  Variant = "median"
)

// ParseVariant parses an intensity variant. Empty means Regular.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return Regular, nil
	case Regular, Mean, High, Low, Median:
		return v, nil
	}
	return "", fmt.Errorf("unknown intensity variant %q (want regular, mean, high, low or median)", s)
}

// Suffix returns the file-name suffix of the variant's intensity table.
func (v Variant) Suffix() string {
	if v == Regular || v == "" {
		return ""
	}
	return "_" + string(v)
}

// Key identifies one intensity series.
type Key struct {
	Region   int
	Category stock.Category
	Material Material
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.Region, k.Category, k.Material)
}

// Mapper holds intensity series for every key over a fixed window. Writes
// happen while loading; reads are safe for concurrent use.
type Mapper struct {
	mu     sync.RWMutex
	start  int
	end    int
	values map[Key]series.Series
}

// NewMapper returns an empty mapper over [start, end].
func NewMapper(start, end int) *Mapper {
	return &Mapper{start: start, end: end, values: make(map[Key]series.Series)}
}

// SetScalar broadcasts a time-invariant intensity over the window.
func (m *Mapper) SetScalar(k Key, v float64) error {
	if err := checkValue(k, v); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[k] = series.Constant(m.start, m.end, v)
	return nil
}

// SetSeries stores a full intensity series. It must cover the window.
func (m *Mapper) SetSeries(k Key, s series.Series) error {
	w, err := s.Window(m.start, m.end)
	if err != nil {
		return fmt.Errorf("intensity %s: %w", k, err)
	}
	for i, v := range w.Values {
		if err := checkValue(k, v); err != nil {
			return fmt.Errorf("%w in %d", err, w.Start+i)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[k] = w
	return nil
}

func checkValue(k Key, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("intensity %s: invalid value %g", k, v)
	}
	return nil
}

// Intensity returns the intensity series of k. The returned series is shared
// and must not be modified.
func (m *Mapper) Intensity(k Key) (series.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.values[k]
	if !ok {
		return series.Series{}, fmt.Errorf("no intensity for %s", k)
	}
	return s, nil
}

// Has reports whether k has an intensity.
func (m *Mapper) Has(k Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[k]
	return ok
}

// Keys returns every key in region, category, material order.
func (m *Mapper) Keys() []Key {
	m.mu.RLock()
	out := make([]Key, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if ai, bi := a.Category.Index(), b.Category.Index(); ai != bi {
			return ai < bi
		}
		return materialIndex(a.Material) < materialIndex(b.Material)
	})
	return out
}

func materialIndex(m Material) int {
	for i, k := range Materials {
		if k == m {
			return i
		}
	}
	return len(Materials)
}

// Clone returns a deep copy so overrides can be applied per run.
func (m *Mapper) Clone() *Mapper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := NewMapper(m.start, m.end)
	for k, s := range m.values {
		out.values[k] = s.Clone()
	}
	return out
}
