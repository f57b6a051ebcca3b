package stock

import (
	"fmt"
	"strings"
)

// Area is the area type a building category belongs to.
type Area string

const (
	Rural      Area = "rural"
	Urban      Area = "urban"
	Commercial Area = "commercial"
)

// Areas lists the area types in canonical order.
var Areas = []Area{Rural, Urban, Commercial}

// Residential building types.
const (
	Detached     = "detached"
	SemiDetached = "semi-detached"
	Apartments   = "apartments"
	HighRise     = "high-rise"
)

// Commercial building types.
const (
	Office = "office"
	Retail = "retail"
	Hotels = "hotels"
	Govern = "govern"
)

// ResidentialTypes and CommercialTypes are in canonical order.
var (
	ResidentialTypes = []string{Detached, SemiDetached, Apartments, HighRise}
	CommercialTypes  = []string{Office, Retail, Hotels, Govern}
)

// Category is a building category: an area type plus a sub-type.
type Category struct {
	Area Area   `json:"area"`
	Type string `json:"type"`
}

func (c Category) String() string {
	return string(c.Area) + "/" + c.Type
}

// Residential reports whether c is a rural or urban housing category.
func (c Category) Residential() bool {
	return c.Area == Rural || c.Area == Urban
}

// Types returns the sub-types of an area in canonical order.
func Types(a Area) []string {
	if a == Commercial {
		return CommercialTypes
	}
	return ResidentialTypes
}

// Categories returns every category in canonical order: rural types, urban
// types, then commercial types.
func Categories() []Category {
	out := make([]Category, 0, 12)
	for _, a := range Areas {
		for _, t := range Types(a) {
			out = append(out, Category{Area: a, Type: t})
		}
	}
	return out
}

// Index returns the canonical position of c, or -1.
func (c Category) Index() int {
	for i, k := range Categories() {
		if k == c {
			return i
		}
	}
	return -1
}

// ParseCategory parses "area/type". Type names are matched case-insensitively
// and a few spellings found in source tables are accepted.
func ParseCategory(s string) (Category, error) {
	area, typ, ok := strings.Cut(s, "/")
	if !ok {
		return Category{}, fmt.Errorf("category %q: want area/type", s)
	}
	a, err := ParseArea(area)
	if err != nil {
		return Category{}, err
	}
	t, err := ParseType(a, typ)
	if err != nil {
		return Category{}, err
	}
	return Category{Area: a, Type: t}, nil
}

// ParseArea parses an area type name.
func ParseArea(s string) (Area, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rural", "rur":
		return Rural, nil
	case "urban", "urb":
		return Urban, nil
	case "commercial", "com":
		return Commercial, nil
	}
	return "", fmt.Errorf("unknown area type %q", s)
}

var typeAliases = map[string]string{
	"detached":      Detached,
	"det":           Detached,
	"semi-detached": SemiDetached,
	"semidetached":  SemiDetached,
	"sem":           SemiDetached,
	"apartments":    Apartments,
	"appartments":   Apartments,
	"app":           Apartments,
	"high-rise":     HighRise,
	"highrise":      HighRise,
	"hig":           HighRise,
	"office":        Office,
	"offices":       Office,
	"retail":        Retail,
	"hotels":        Hotels,
	"hotel":         Hotels,
	"govern":        Govern,
	"government":    Govern,
}

// ParseType parses a building type name and checks it belongs to area a.
func ParseType(a Area, s string) (string, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown building type %q", s)
	}
	for _, known := range Types(a) {
		if known == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("building type %q does not belong to area %s", s, a)
}
