package validation

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

// ValidateScenario performs config-level validation of a parsed Scenario.
// It checks structural correctness before any data is loaded.
func ValidateScenario(s *spec.Scenario) *Report {
	r := NewReport()

	validateHorizon(s, r)
	validateBackcast(s, r)
	validateLifetime(s, r)
	validateIntensity(s, r)
	validateTolerance(s, r)
	validateRegions(s.Regions, "regions", r)

	return r
}

func validateHorizon(s *spec.Scenario, r *Report) {
	h := s.Horizon
	if h.Origin > h.FirstObserved || h.FirstObserved > h.End {
		r.configError("horizon", fmt.Sprintf("%d/%d/%d", h.Origin, h.FirstObserved, h.End),
			"origin <= first_observed <= end",
			"horizon years out of order: origin %d, first_observed %d, end %d", h.Origin, h.FirstObserved, h.End)
		return
	}
	if h.FirstObserved+s.Backcast.TrendYears > h.End {
		r.configError("backcast.trend_years", s.Backcast.TrendYears,
			fmt.Sprintf("<= %d", h.End-h.FirstObserved),
			"trend window of %d years runs past the horizon end %d", s.Backcast.TrendYears, h.End)
	}
}

func validateBackcast(s *spec.Scenario, r *Report) {
	if s.Backcast.TailYears < 0 {
		r.configError("backcast.tail_years", s.Backcast.TailYears, ">= 0", "tail_years must be non-negative")
	}
	if s.Backcast.TrendYears <= 0 {
		r.configError("backcast.trend_years", s.Backcast.TrendYears, "> 0", "trend_years must be positive")
	}
}

func validateLifetime(s *spec.Scenario, r *Report) {
	if _, err := lifetime.ParseFamily(s.Lifetime.Family); err != nil {
		r.configError("lifetime.family", s.Lifetime.Family, "weibull or folded-normal", "%v", err)
	}
	for i, o := range s.Lifetime.Overrides {
		path := fmt.Sprintf("lifetime.overrides[%d]", i)
		if o.Category != "" {
			if _, err := stock.ParseCategory(o.Category); err != nil {
				r.configError(path+".category", o.Category, "area/type", "%v", err)
			}
		}
		validateWindow(path, o.From, o.To, s.Horizon, r)
		if o.Factor <= 0 {
			r.configError(path+".factor", o.Factor, "> 0", "lifetime factor must be positive")
		}
		validateRegions(o.Regions, path+".regions", r)
	}
}

func validateIntensity(s *spec.Scenario, r *Report) {
	if _, err := material.ParseVariant(s.Intensity.Variant); err != nil {
		r.configError("intensity.variant", s.Intensity.Variant, "regular, mean, high, low or median", "%v", err)
	}
	for i, o := range s.Intensity.Overrides {
		path := fmt.Sprintf("intensity.overrides[%d]", i)
		if _, err := material.ParseMaterial(o.Material); err != nil {
			r.configError(path+".material", o.Material, "", "%v", err)
		}
		if o.Category != "" {
			if _, err := stock.ParseCategory(o.Category); err != nil {
				r.configError(path+".category", o.Category, "area/type", "%v", err)
			}
		}
		validateWindow(path, o.From, o.To, s.Horizon, r)
		if o.Factor < 0 {
			r.configError(path+".factor", o.Factor, ">= 0", "intensity factor must be non-negative")
		}
		validateRegions(o.Regions, path+".regions", r)
	}
}

func validateWindow(path string, from, to int, h spec.HorizonDef, r *Report) {
	if from < h.Origin || from > h.End {
		r.configError(path+".from", from, fmt.Sprintf("%d-%d", h.Origin, h.End),
			"from year %d outside the horizon", from)
	}
	if to != 0 && (to < from || to > h.End) {
		r.configError(path+".to", to, fmt.Sprintf("%d-%d", from, h.End),
			"to year %d must lie between from and the horizon end", to)
	}
}

func validateTolerance(s *spec.Scenario, r *Report) {
	if s.Tolerance.Balance <= 0 {
		r.configError("tolerance.balance", s.Tolerance.Balance, "> 0", "balance tolerance must be positive")
	}
	if s.Tolerance.Checksum <= 0 {
		r.configError("tolerance.checksum", s.Tolerance.Checksum, "> 0", "checksum tolerance must be positive")
	}
}

func validateRegions(regions []int, path string, r *Report) {
	seen := make(map[int]bool, len(regions))
	for i, id := range regions {
		if id <= 0 {
			r.configError(fmt.Sprintf("%s[%d]", path, i), id, "> 0", "region ids are positive")
		}
		if seen[id] {
			r.configError(fmt.Sprintf("%s[%d]", path, i), id, "", "duplicate region %d", id)
		}
		seen[id] = true
	}
}
