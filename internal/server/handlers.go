package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/export"
	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/recovery"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/stock"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

// DefaultSurvivalYears is the curve length returned by /api/survival.
const DefaultSurvivalYears = 200

func (s *Server) handleIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html")
	c.String(http.StatusOK, `<!DOCTYPE html>
<html><head><title>buildstock</title></head>
<body style="margin:0;background:#111;color:#fff;font-family:system-ui;display:flex;align-items:center;justify-content:center;height:100vh">
<div style="text-align:center">
<h1>buildstock</h1>
<p>Results API under <code>/api</code>: status, scenario, flows, emissions, validation, keys, survival, run, runs.</p>
</div>
</body></html>`)
}

// withResult writes 503 and returns nil when nothing has run yet.
func (s *Server) withResult(c *gin.Context) *engine.Result {
	_, _, res := s.current()
	if res == nil {
		s.mu.RLock()
		err := s.lastErr
		s.mu.RUnlock()
		msg := "no results yet"
		if err != nil {
			msg = err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
		return nil
	}
	return res
}

type statusResponse struct {
	Run         string  `json:"run"`
	Scenario    string  `json:"scenario"`
	Origin      int     `json:"origin"`
	First       int     `json:"first_observed"`
	End         int     `json:"end"`
	Regions     []int   `json:"regions"`
	Records     int     `json:"records"`
	DurationSec float64 `json:"duration_s"`
	Valid       bool    `json:"valid"`
	Blocking    bool    `json:"blocking"`
	Summary     string  `json:"summary"`
	CacheHits   int     `json:"cache_hits"`
	CacheMisses int     `json:"cache_misses"`
	LastError   string  `json:"last_error,omitempty"`
}

// GET /api/status
func (s *Server) handleStatus(c *gin.Context) {
	res := s.withResult(c)
	if res == nil {
		return
	}
	hits, misses := s.cache.Stats()
	out := statusResponse{
		Run:         res.ID.String(),
		Scenario:    res.Scenario,
		Origin:      res.Horizon.Origin,
		First:       res.Horizon.FirstObserved,
		End:         res.Horizon.End,
		Regions:     res.Regions,
		Records:     res.Flows.Len(),
		DurationSec: res.Duration.Seconds(),
		Valid:       res.Report.Valid,
		Blocking:    res.Report.Blocking(),
		Summary:     res.Report.Summary,
		CacheHits:   hits,
		CacheMisses: misses,
	}
	s.mu.RLock()
	if s.lastErr != nil {
		out.LastError = s.lastErr.Error()
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

// GET /api/scenario
func (s *Server) handleScenario(c *gin.Context) {
	sc, _, _ := s.current()
	if sc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no scenario loaded"})
		return
	}
	c.JSON(http.StatusOK, sc)
}

// flowFilter builds a record predicate from query parameters: region, area,
// category (area/type), material and flow. Empty parameters match anything.
func flowFilter(c *gin.Context) (func(flow.Record) bool, error) {
	var (
		region    = -1
		area      stock.Area
		category  *stock.Category
		mat       *material.Material
		direction flow.Flow
	)
	if v := c.Query("region"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("region %q: not an integer", v)
		}
		region = n
	}
	if v := c.Query("area"); v != "" {
		a, err := stock.ParseArea(v)
		if err != nil {
			return nil, err
		}
		area = a
	}
	if v := c.Query("category"); v != "" {
		cat, err := stock.ParseCategory(v)
		if err != nil {
			return nil, err
		}
		category = &cat
	}
	if v, ok := c.GetQuery("material"); ok {
		var m material.Material
		if v != "" {
			parsed, err := material.ParseMaterial(v)
			if err != nil {
				return nil, err
			}
			m = parsed
		}
		mat = &m
	}
	if v := c.Query("flow"); v != "" {
		f := flow.Flow(v)
		known := false
		for _, k := range flow.Flows {
			known = known || k == f
		}
		if !known {
			return nil, fmt.Errorf("unknown flow %q", v)
		}
		direction = f
	}

	return func(r flow.Record) bool {
		switch {
		case region >= 0 && r.Region != region:
			return false
		case area != "" && r.Category.Area != area:
			return false
		case category != nil && r.Category != *category:
			return false
		case mat != nil && r.Material != *mat:
			return false
		case direction != "" && r.Flow != direction:
			return false
		}
		return true
	}, nil
}

// GET /api/flows
func (s *Server) handleFlows(c *gin.Context) {
	res := s.withResult(c)
	if res == nil {
		return
	}
	keep, err := flowFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t := res.Flows.Filter(keep)
	records := t.Records
	if records == nil {
		records = []flow.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"run": res.ID.String(), "count": len(records), "records": records})
}

// GET /api/emissions
func (s *Server) handleEmissions(c *gin.Context) {
	res := s.withResult(c)
	if res == nil {
		return
	}
	list := res.Emissions
	if v := c.Query("region"); v != "" {
		region, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid region"})
			return
		}
		list = nil
		for _, e := range res.Emissions {
			if e.Region == region {
				list = append(list, e)
			}
		}
	}
	if list == nil {
		list = []recovery.Emission{}
	}
	c.JSON(http.StatusOK, gin.H{"run": res.ID.String(), "emissions": list})
}

// GET /api/validation
func (s *Server) handleValidation(c *gin.Context) {
	res := s.withResult(c)
	if res == nil {
		return
	}
	c.JSON(http.StatusOK, res.Report)
}

// GET /api/keys
func (s *Server) handleKeys(c *gin.Context) {
	res := s.withResult(c)
	if res == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": res.ID.String(), "keys": res.Keys})
}

// GET /api/survival?family=weibull&first=2&second=50&years=200
func (s *Server) handleSurvival(c *gin.Context) {
	fam, err := lifetime.ParseFamily(c.Query("family"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := lifetime.Params{Family: fam}
	for _, q := range []struct {
		name string
		dst  *float64
	}{{"first", &p.First}, {"second", &p.Second}} {
		v, err := strconv.ParseFloat(c.Query(q.name), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: want a number", q.name)})
			return
		}
		*q.dst = v
	}
	years := DefaultSurvivalYears
	if v := c.Query("years"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 10000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "years: want an integer in [1, 10000]"})
			return
		}
		years = n
	}

	dist, err := lifetime.New(p)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	curve := lifetime.Curve(dist, years)
	if err := lifetime.Check(curve); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"params": p, "label": p.String(), "survival": curve})
}

// runRequest changes the current scenario. Nil fields keep their value.
type runRequest struct {
	Name               *string                   `json:"name"`
	Family             *string                   `json:"family"`
	Variant            *string                   `json:"variant"`
	LifetimeOverrides  *[]spec.LifetimeOverride  `json:"lifetime_overrides"`
	IntensityOverrides *[]spec.IntensityOverride `json:"intensity_overrides"`
	Regions            *[]int                    `json:"regions"`
	ByMaterial         *bool                     `json:"by_material"`
}

func (r runRequest) apply(base *spec.Scenario) *spec.Scenario {
	sc := *base
	sc.Lifetime.Overrides = append([]spec.LifetimeOverride(nil), base.Lifetime.Overrides...)
	sc.Intensity.Overrides = append([]spec.IntensityOverride(nil), base.Intensity.Overrides...)
	sc.Regions = append([]int(nil), base.Regions...)
	if r.Name != nil {
		sc.Name = *r.Name
	}
	if r.Family != nil {
		sc.Lifetime.Family = *r.Family
	}
	if r.Variant != nil {
		sc.Intensity.Variant = *r.Variant
	}
	if r.LifetimeOverrides != nil {
		sc.Lifetime.Overrides = *r.LifetimeOverrides
	}
	if r.IntensityOverrides != nil {
		sc.Intensity.Overrides = *r.IntensityOverrides
	}
	if r.Regions != nil {
		sc.Regions = *r.Regions
	}
	if r.ByMaterial != nil {
		sc.Emissions.ByMaterial = *r.ByMaterial
	}
	return &sc
}

// POST /api/run
func (s *Server) handleRun(c *gin.Context) {
	base, d, _ := s.current()
	if base == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no scenario loaded"})
		return
	}
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sc := req.apply(base)

	if sc.Intensity.Variant != base.Intensity.Variant {
		if s.opts.ProjectDir == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "variant change needs a project directory"})
			return
		}
		loaded, err := engine.LoadDataset(sc, sc.DataDir(s.opts.ProjectDir))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		d = loaded
	}

	hits, _ := s.cache.Stats()
	res, err := s.run(c.Request.Context(), sc, d)
	if err != nil {
		body := gin.H{"error": err.Error()}
		if res != nil && res.Report != nil {
			body["report"] = res.Report
		}
		c.JSON(statusFor(err), body)
		return
	}
	after, _ := s.cache.Stats()

	s.mu.Lock()
	s.scenario, s.data, s.result, s.lastErr = sc, d, res, nil
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"run":        res.ID.String(),
		"scenario":   res.Scenario,
		"records":    res.Flows.Len(),
		"cache_hits": after - hits,
		"keys":       len(res.Keys),
		"summary":    res.Report.Summary,
		"blocking":   res.Report.Blocking(),
	})
}

func statusFor(err error) int {
	if errors.Is(err, validation.ErrConfig) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// GET /api/runs
func (s *Server) handleRuns(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run store configured"})
		return
	}
	runs, err := s.opts.Store.Runs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []export.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
