// Package backcast extends observed driver series (population, rural share,
// floor area per capita, commercial demand per capita) back from the first
// observed year to the deep-history origin of the model horizon.
//
// Three segments make up an extended series:
//
//	[Origin, Y0-Tail)   linear ramp from 0 at Origin to the value at Y0-Tail
//	[Y0-Tail, Y0)       observed(Y0) * ((100-trend)/100)^(Y0-year), bounded
//	[Y0, End]           observed values, copied unchanged
package backcast

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ChicagoDave/buildstock/pkg/series"
)

// Default settings.
const (
	DefaultTailYears  = 150
	DefaultTrendYears = 10
)

// ErrTrend is returned when no trend can be estimated from the observed data.
var ErrTrend = errors.New("cannot estimate trend")

// Bound selects the clamp applied to the exponential tail.
type Bound int

const (
	// BoundNone leaves the tail unclamped.
	BoundNone Bound = iota
	// BoundMin floors the tail at the smallest observed value. Used for
	// quantities that shrink going back in time.
	BoundMin
	// BoundMax caps the tail at the largest observed value. Used for
	// quantities that grow going back in time.
	BoundMax
)

func (b Bound) String() string {
	switch b {
	case BoundMin:
		return "min"
	case BoundMax:
		return "max"
	default:
		return "none"
	}
}

// Horizon is the model time window.
type Horizon struct {
	Origin        int `json:"origin" yaml:"origin" toml:"origin"`
	FirstObserved int `json:"first_observed" yaml:"first_observed" toml:"first_observed"`
	End           int `json:"end" yaml:"end" toml:"end"`
}

// Len returns the number of years in the horizon.
func (h Horizon) Len() int { return h.End - h.Origin + 1 }

// Validate checks Origin <= FirstObserved <= End.
func (h Horizon) Validate() error {
	if h.Origin > h.FirstObserved || h.FirstObserved > h.End {
		return fmt.Errorf("horizon must satisfy origin <= first_observed <= end, got %d, %d, %d",
			h.Origin, h.FirstObserved, h.End)
	}
	return nil
}

// EstimateTrend returns the average annual growth in percent over the first
// years observations of each series: (1 - mean(v[t]/v[t+1])) * 100, where the
// mean runs over every ratio of every series given. Pass one series for a
// region-specific trend, all regions for a pooled global one. Pairs with a
// zero denominator are skipped.
func EstimateTrend(observed []series.Series, years int) (float64, error) {
	if years <= 0 {
		return 0, fmt.Errorf("%w: trend window must be positive, got %d", ErrTrend, years)
	}
	sum, n := 0.0, 0
	for _, s := range observed {
		if s.Len() < years+1 {
			return 0, fmt.Errorf("%w: series starting %d has %d years, need %d", ErrTrend, s.Start, s.Len(), years+1)
		}
		for i := 0; i < years; i++ {
			next := s.Values[i+1]
			if next == 0 {
				continue
			}
			sum += s.Values[i] / next
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no usable ratios", ErrTrend)
	}
	return (1 - sum/float64(n)) * 100, nil
}

// Tail returns the exponential tail value for year given the observed anchor
// at y0 and a trend in percent, before bounding.
func Tail(anchor, trend float64, y0, year int) float64 {
	return anchor * math.Pow((100-trend)/100, float64(y0-year))
}

func bound(v float64, b Bound, limit float64) float64 {
	switch b {
	case BoundMin:
		return math.Max(limit, v)
	case BoundMax:
		return math.Min(limit, v)
	}
	return v
}

// Ramp overwrites s on [s.Start, anchorYear) with a straight line from 0 at
// s.Start to the value at anchorYear. Values are clamped at zero.
func Ramp(s series.Series, anchorYear int) {
	if anchorYear <= s.Start {
		return
	}
	target := s.At(anchorYear)
	span := float64(anchorYear - s.Start)
	for y := s.Start; y < anchorYear; y++ {
		v := target * float64(y-s.Start) / span
		if v < 0 {
			v = 0
		}
		s.Set(y, v)
	}
}

// Extend builds the full-horizon series for one observed series. observed
// must start at h.FirstObserved and end at h.End.
func Extend(observed series.Series, trend float64, h Horizon, tailYears int, b Bound, limit float64) (series.Series, error) {
	if observed.Start != h.FirstObserved || observed.End() != h.End {
		return series.Series{}, fmt.Errorf("observed series covers [%d, %d], want [%d, %d]",
			observed.Start, observed.End(), h.FirstObserved, h.End)
	}
	out := series.New(h.Origin, h.End)
	copy(out.Values[h.FirstObserved-h.Origin:], observed.Values)

	tailStart := h.FirstObserved - tailYears
	if tailStart < h.Origin {
		tailStart = h.Origin
	}
	anchor := observed.Values[0]
	for y := tailStart; y < h.FirstObserved; y++ {
		out.Set(y, bound(Tail(anchor, trend, h.FirstObserved, y), b, limit))
	}
	Ramp(out, tailStart)
	return out, nil
}

// Driver describes one observed quantity to extend.
type Driver struct {
	Name string
	// Observed maps region id to the observed series over [FirstObserved, End].
	Observed map[int]series.Series
	// Pooled selects a single trend estimated across all regions.
	Pooled bool
	Bound  Bound
}

// Result holds the extended series of one driver.
type Result struct {
	Name   string
	Series map[int]series.Series
	// Trend holds the trend applied per region, in percent per year.
	Trend map[int]float64
	// Limit is the global min or max used for bounding, if any.
	Limit float64
}

// Builder extends drivers over a fixed horizon.
type Builder struct {
	Horizon    Horizon
	TailYears  int
	TrendYears int
}

// NewBuilder returns a Builder with default tail and trend windows.
func NewBuilder(h Horizon) *Builder {
	return &Builder{Horizon: h, TailYears: DefaultTailYears, TrendYears: DefaultTrendYears}
}

// Build extends every region of d. Regions are processed in ascending order.
func (b *Builder) Build(d Driver) (*Result, error) {
	if err := b.Horizon.Validate(); err != nil {
		return nil, err
	}
	if len(d.Observed) == 0 {
		return nil, fmt.Errorf("%s: no observed series", d.Name)
	}
	regions := make([]int, 0, len(d.Observed))
	for r := range d.Observed {
		regions = append(regions, r)
	}
	sort.Ints(regions)

	res := &Result{
		Name:   d.Name,
		Series: make(map[int]series.Series, len(regions)),
		Trend:  make(map[int]float64, len(regions)),
	}

	switch d.Bound {
	case BoundMin:
		res.Limit = math.Inf(1)
		for _, r := range regions {
			res.Limit = math.Min(res.Limit, d.Observed[r].MinValue())
		}
	case BoundMax:
		res.Limit = math.Inf(-1)
		for _, r := range regions {
			res.Limit = math.Max(res.Limit, d.Observed[r].MaxValue())
		}
	}

	var pooled float64
	if d.Pooled {
		all := make([]series.Series, 0, len(regions))
		for _, r := range regions {
			all = append(all, d.Observed[r])
		}
		t, err := EstimateTrend(all, b.TrendYears)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		pooled = t
	}

	for _, r := range regions {
		trend := pooled
		if !d.Pooled {
			t, err := EstimateTrend([]series.Series{d.Observed[r]}, b.TrendYears)
			if err != nil {
				return nil, fmt.Errorf("%s region %d: %w", d.Name, r, err)
			}
			trend = t
		}
		s, err := Extend(d.Observed[r], trend, b.Horizon, b.TailYears, d.Bound, res.Limit)
		if err != nil {
			return nil, fmt.Errorf("%s region %d: %w", d.Name, r, err)
		}
		res.Series[r] = s
		res.Trend[r] = trend
	}
	return res, nil
}

// Complement returns 1 - share on [Y0-Tail, End] and ramps the years before,
// giving the urban share from an extended rural share.
func (b *Builder) Complement(share series.Series) series.Series {
	out := series.New(share.Start, share.End())
	tailStart := b.Horizon.FirstObserved - b.TailYears
	if tailStart < share.Start {
		tailStart = share.Start
	}
	for y := tailStart; y <= share.End(); y++ {
		out.Set(y, 1-share.At(y))
	}
	Ramp(out, tailStart)
	return out
}
