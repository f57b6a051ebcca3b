// Package server serves the results of a scenario run over HTTP and lets a
// client re-run it with changed lifetime or intensity settings.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ChicagoDave/buildstock/pkg/cohort"
	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/export"
	"github.com/ChicagoDave/buildstock/pkg/spec"
)

// Options configures a Server.
type Options struct {
	ProjectDir string
	Port       int
	Workers    int
	// CacheSize bounds the cohort cache shared by every run.
	CacheSize int
	Logger    *zap.Logger
	// Store records every run when set.
	Store   *export.Store
	DevMode bool
}

// Server is the results server for one project.
type Server struct {
	opts   Options
	router *gin.Engine
	cache  *cohort.Cache
	log    *zap.Logger

	mu       sync.RWMutex
	scenario *spec.Scenario
	data     *dataset.Dataset
	result   *engine.Result
	lastErr  error
}

// New creates a server. Call Reload or Use before serving.
func New(opts Options) *Server {
	if !opts.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		opts:   opts,
		router: gin.New(),
		cache:  cohort.NewCache(opts.CacheSize),
		log:    opts.Logger,
	}
	s.router.Use(gin.Recovery(), s.requestLog())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	s.RegisterRoutes(api)
	s.router.GET("/", s.handleIndex)
}

// RegisterRoutes registers the API routes on router.
func (s *Server) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", s.handleStatus)
	router.GET("/scenario", s.handleScenario)
	router.GET("/flows", s.handleFlows)
	router.GET("/emissions", s.handleEmissions)
	router.GET("/validation", s.handleValidation)
	router.GET("/keys", s.handleKeys)
	router.GET("/survival", s.handleSurvival)
	router.POST("/run", s.handleRun)
	router.GET("/runs", s.handleRuns)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Reload reads the project from disk and runs it. On failure the previous
// result keeps being served.
func (s *Server) Reload(ctx context.Context) error {
	sc, d, err := engine.LoadProject(s.opts.ProjectDir)
	if err != nil {
		s.setErr(err)
		return err
	}
	return s.Use(ctx, sc, d)
}

// Use runs sc against d and serves the result.
func (s *Server) Use(ctx context.Context, sc *spec.Scenario, d *dataset.Dataset) error {
	res, err := s.run(ctx, sc, d)
	if err != nil {
		s.setErr(err)
		return err
	}
	s.mu.Lock()
	s.scenario, s.data, s.result, s.lastErr = sc, d, res, nil
	s.mu.Unlock()
	return nil
}

func (s *Server) run(ctx context.Context, sc *spec.Scenario, d *dataset.Dataset) (*engine.Result, error) {
	res, err := engine.Run(ctx, sc, d, engine.Options{
		Logger:  s.log,
		Workers: s.opts.Workers,
		Cache:   s.cache,
	})
	if err != nil {
		return res, err
	}
	if s.opts.Store != nil {
		if err := s.opts.Store.Save(ctx, res); err != nil {
			s.log.Warn("storing run", zap.String("run", res.ID.String()), zap.Error(err))
		}
	}
	return res, nil
}

func (s *Server) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Server) current() (*spec.Scenario, *dataset.Dataset, *engine.Result) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenario, s.data, s.result
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("server starting",
		zap.String("addr", "http://localhost"+srv.Addr),
		zap.String("project", s.opts.ProjectDir))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
