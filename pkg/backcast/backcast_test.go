package backcast

import (
	"errors"
	"math"
	"testing"

	"github.com/ChicagoDave/buildstock/pkg/series"
)

var testHorizon = Horizon{Origin: 1721, FirstObserved: 1971, End: 2060}

// growing returns an observed series over [1971, 2060] growing by rate per year.
func growing(start, rate float64) series.Series {
	s := series.New(1971, 2060)
	v := start
	for i := range s.Values {
		s.Values[i] = v
		v *= 1 + rate
	}
	return s
}

func TestEstimateTrend(t *testing.T) {
	s := growing(10, 0.02)
	got, err := EstimateTrend([]series.Series{s}, 10)
	if err != nil {
		t.Fatal(err)
	}
	// ratio v/v' = 1/1.02 for every pair
	want := (1 - 1/1.02) * 100
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("trend = %v, want %v", got, want)
	}

	pooled, err := EstimateTrend([]series.Series{growing(10, 0.02), growing(5, 0.04)}, 10)
	if err != nil {
		t.Fatal(err)
	}
	wantPooled := (1 - (1/1.02+1/1.04)/2) * 100
	if math.Abs(pooled-wantPooled) > 1e-12 {
		t.Errorf("pooled trend = %v, want %v", pooled, wantPooled)
	}
}

func TestEstimateTrendErrors(t *testing.T) {
	if _, err := EstimateTrend([]series.Series{series.Constant(1971, 1975, 1)}, 10); !errors.Is(err, ErrTrend) {
		t.Errorf("short series: err = %v, want ErrTrend", err)
	}
	if _, err := EstimateTrend([]series.Series{series.Constant(1971, 2000, 0)}, 10); !errors.Is(err, ErrTrend) {
		t.Errorf("all zero: err = %v, want ErrTrend", err)
	}
}

func TestExtendContinuity(t *testing.T) {
	obs := growing(30, 0.015)
	trend, _ := EstimateTrend([]series.Series{obs}, 10)
	out, err := Extend(obs, trend, testHorizon, 150, BoundNone, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Start != 1721 || out.End() != 2060 {
		t.Fatalf("window = [%d, %d], want [1721, 2060]", out.Start, out.End())
	}
	if out.At(1971) != obs.At(1971) {
		t.Errorf("value at first observed year = %v, want %v", out.At(1971), obs.At(1971))
	}
	for y := 1971; y <= 2060; y++ {
		if out.At(y) != obs.At(y) {
			t.Fatalf("observed year %d changed: %v != %v", y, out.At(y), obs.At(y))
		}
	}
	// one year back equals anchor * (100-trend)/100
	if got, want := out.At(1970), 30*(100-trend)/100; math.Abs(got-want) > 1e-12 {
		t.Errorf("1970 = %v, want %v", got, want)
	}
	if out.At(1721) != 0 {
		t.Errorf("origin value = %v, want 0", out.At(1721))
	}
	// ramp is linear up to the tail start
	anchor := out.At(1821)
	if got, want := out.At(1771), anchor/2; math.Abs(got-want) > 1e-12 {
		t.Errorf("ramp midpoint = %v, want %v", got, want)
	}
	for y := 1722; y <= 2060; y++ {
		if out.At(y) < out.At(y-1) {
			t.Fatalf("growing driver not monotone at %d", y)
		}
	}
}

func TestExtendBounds(t *testing.T) {
	obs := growing(30, 0.05)
	trend, _ := EstimateTrend([]series.Series{obs}, 10)
	out, err := Extend(obs, trend, testHorizon, 150, BoundMin, 20)
	if err != nil {
		t.Fatal(err)
	}
	for y := 1821; y < 1971; y++ {
		if out.At(y) < 20 {
			t.Fatalf("%d: %v below floor 20", y, out.At(y))
		}
	}

	// declining share: grows going back, capped
	share := series.New(1971, 2060)
	for i := range share.Values {
		share.Values[i] = 0.8 * math.Pow(0.99, float64(i))
	}
	trend, _ = EstimateTrend([]series.Series{share}, 10)
	if trend >= 0 {
		t.Fatalf("declining share trend = %v, want negative", trend)
	}
	out, err = Extend(share, trend, testHorizon, 150, BoundMax, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.At(1821); got != 0.9 {
		t.Errorf("capped tail = %v, want 0.9", got)
	}
}

func TestExtendRejectsWindow(t *testing.T) {
	if _, err := Extend(series.Constant(1970, 2060, 1), 0, testHorizon, 150, BoundNone, 0); err == nil {
		t.Error("expected error for misaligned observed series")
	}
}

func TestBuilderPooledAndRegional(t *testing.T) {
	b := NewBuilder(testHorizon)
	d := Driver{
		Name:     "floorspace",
		Observed: map[int]series.Series{1: growing(20, 0.02), 2: growing(40, 0.01)},
		Pooled:   true,
		Bound:    BoundMin,
	}
	res, err := b.Build(d)
	if err != nil {
		t.Fatal(err)
	}
	if res.Trend[1] != res.Trend[2] {
		t.Errorf("pooled trends differ: %v vs %v", res.Trend[1], res.Trend[2])
	}
	if res.Limit != 20 {
		t.Errorf("limit = %v, want 20", res.Limit)
	}

	d.Pooled = false
	res, err = b.Build(d)
	if err != nil {
		t.Fatal(err)
	}
	if res.Trend[1] <= res.Trend[2] {
		t.Errorf("regional trends = %v, %v; want region 1 faster", res.Trend[1], res.Trend[2])
	}
}

func TestComplement(t *testing.T) {
	b := NewBuilder(testHorizon)
	rural := series.Constant(1721, 2060, 0.3)
	urban := b.Complement(rural)
	if got := urban.At(1900); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("urban 1900 = %v, want 0.7", got)
	}
	if urban.At(1721) != 0 {
		t.Errorf("urban origin = %v, want 0", urban.At(1721))
	}
}
