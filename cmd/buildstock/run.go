package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChicagoDave/buildstock/internal/server"
	"github.com/ChicagoDave/buildstock/internal/watch"
	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/export"
	"github.com/ChicagoDave/buildstock/pkg/lifetime"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

// storeFile is the default SQLite result store inside the output directory.
const storeFile = "runs.db"

type runOptions struct {
	output   string
	formats  []string
	force    bool
	workers  int
	totals   bool
	dbDriver string
	dbDSN    string
}

type survivalOptions struct {
	family string
	first  float64
	second float64
	years  int
	step   int
}

// loadAndValidate loads the scenario and dataset and runs configuration
// validation. Load problems that validation can describe end up in the
// report; anything else is returned as an error.
func loadAndValidate(projectPath string) (*spec.Scenario, *dataset.Dataset, *validation.Report, error) {
	sc, err := spec.LoadProject(projectPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading spec: %w", err)
	}
	report := validation.ValidateScenario(sc)
	if !report.Valid {
		return sc, nil, report, nil
	}

	d, err := engine.LoadDataset(sc, sc.DataDir(projectPath))
	var cerr *validation.ConfigError
	switch {
	case errors.As(err, &cerr):
		report.AddError(validation.Result{Level: validation.LevelConfig, Message: cerr.Message, SpecPath: cerr.Path})
		return sc, nil, report, nil
	case err != nil:
		return nil, nil, nil, err
	}
	report.Merge(validation.ValidateDataset(d, sc))
	return sc, d, report, nil
}

func runValidate(projectPath string) error {
	_, _, report, err := loadAndValidate(projectPath)
	if err != nil {
		return err
	}

	printValidationReport(report)

	if !report.Valid {
		return errInvalid
	}
	return nil
}

// execute runs the project and prints the report when configuration is
// rejected.
func execute(ctx context.Context, projectPath string, opts engine.Options) (*spec.Scenario, *engine.Result, error) {
	sc, d, report, err := loadAndValidate(projectPath)
	if err != nil {
		return nil, nil, err
	}
	if !report.Valid {
		printValidationReport(report)
		return nil, nil, errInvalid
	}

	opts.Logger = logger
	if opts.Workers <= 0 {
		opts.Workers = cfg.Workers
	}
	res, err := engine.Run(ctx, sc, d, opts)
	if err != nil {
		if errors.Is(err, validation.ErrConfig) && res != nil {
			printValidationReport(res.Report)
			return nil, nil, errInvalid
		}
		return nil, nil, err
	}
	return sc, res, nil
}

func runScenario(ctx context.Context, projectPath string, opts runOptions) error {
	sc, res, err := execute(ctx, projectPath, engine.Options{Workers: opts.workers, Totals: opts.totals})
	if err != nil {
		return err
	}
	if res.Report.Blocking() && !opts.force {
		printValidationReport(res.Report)
		return fmt.Errorf("balance checks failed; rerun with --force to write outputs")
	}

	root := opts.output
	if root == "" {
		root = cfg.OutputDir
	}
	dir := filepath.Join(root, sc.Name)

	writers, err := newWriters(opts, root, dir)
	if err != nil {
		return err
	}
	for i, w := range writers {
		werr := w.Write(res)
		if cerr := w.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			for _, rest := range writers[i+1:] {
				_ = rest.Close()
			}
			return werr
		}
	}

	logger.Info("outputs written",
		zap.String("run", res.ID.String()),
		zap.String("dir", dir),
		zap.Strings("formats", opts.formats),
		zap.Int("records", res.Flows.Len()))
	fmt.Printf("Run %s (%s): %d records in %s\n", res.ID, res.Scenario, res.Flows.Len(), res.Duration.Round(time.Millisecond))
	fmt.Printf("Result: %s\n", res.Report.Summary)
	return nil
}

// newWriters opens one writer per format. On error every writer opened so
// far is closed.
func newWriters(opts runOptions, root, dir string) (out []export.Writer, err error) {
	defer func() {
		if err != nil {
			for _, w := range out {
				_ = w.Close()
			}
			out = nil
		}
	}()
	for _, f := range opts.formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "csv":
			w, err := export.NewCSVWriter(dir)
			if err != nil {
				return out, err
			}
			out = append(out, w)
		case "xlsx":
			w, err := export.NewXLSXWriter(filepath.Join(dir, export.WorkbookFile))
			if err != nil {
				return out, err
			}
			out = append(out, w)
		case "sql":
			st, err := openStore(opts.dbDriver, opts.dbDSN, filepath.Join(root, storeFile))
			if err != nil {
				return out, err
			}
			out = append(out, st)
		default:
			return out, fmt.Errorf("unknown output format %q (want csv, xlsx or sql)", f)
		}
	}
	return out, nil
}

// openStore opens the result store, falling back to the process settings
// and then to fallback as a SQLite file.
func openStore(driver, dsn, fallback string) (*export.Store, error) {
	if dsn == "" {
		dsn = cfg.DBDSN
	}
	if driver == "" {
		driver = cfg.DBDriver
	}
	if dsn == "" {
		if fallback == "" {
			return nil, fmt.Errorf("no result store configured (set --db or BUILDSTOCK_DB_DSN)")
		}
		dsn = fallback
	}
	if driver == "" {
		driver = export.DriverSQLite
	}
	return export.OpenStore(driver, dsn)
}

func runSummary(ctx context.Context, projectPath string, year int) error {
	_, res, err := execute(ctx, projectPath, engine.Options{})
	if err != nil {
		return err
	}
	if year == 0 {
		year = res.Horizon.End
	}
	if year < res.Horizon.Origin || year > res.Horizon.End {
		return fmt.Errorf("year %d outside the horizon [%d, %d]", year, res.Horizon.Origin, res.Horizon.End)
	}
	printSummary(res, year)
	if len(res.Report.Warnings) > 0 {
		fmt.Println()
		printValidationReport(res.Report)
	}
	return nil
}

func runServe(ctx context.Context, projectPath string, port int, watchFiles bool) error {
	opts := server.Options{
		ProjectDir: projectPath,
		Port:       port,
		Workers:    cfg.Workers,
		CacheSize:  cfg.CacheSize,
		Logger:     logger,
		DevMode:    cfg.Dev,
	}
	if cfg.DBDSN != "" {
		st, err := openStore("", "", "")
		if err != nil {
			return err
		}
		defer st.Close()
		opts.Store = st
	}

	srv := server.New(opts)
	if err := srv.Reload(ctx); err != nil {
		if !watchFiles {
			return err
		}
		logger.Warn("initial run failed; waiting for changes", zap.Error(err))
	}

	if watchFiles {
		dirs := []string{projectPath}
		if sc, err := spec.LoadProject(projectPath); err == nil {
			if data := sc.DataDir(projectPath); data != projectPath && dirExists(data) {
				dirs = append(dirs, data)
			}
		}
		w, err := watch.New(dirs, []string{".yaml", ".yml", ".toml", ".csv"}, srv.Reload, logger)
		if err != nil {
			return err
		}
		w.Start(ctx)
		defer w.Stop()
	}

	return srv.Start(ctx)
}

func dirExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

func runSurvival(opts survivalOptions) error {
	fam, err := lifetime.ParseFamily(opts.family)
	if err != nil {
		return err
	}
	if opts.years <= 0 {
		return fmt.Errorf("--years must be positive")
	}
	p := lifetime.Params{Family: fam, First: opts.first, Second: opts.second}
	dist, err := lifetime.New(p)
	if err != nil {
		return err
	}
	curve := lifetime.Curve(dist, opts.years)
	if err := lifetime.Check(curve); err != nil {
		return err
	}
	printSurvival(p, curve, opts.step)
	return nil
}

func runInit(projectPath, name string, regions int, force bool) error {
	if regions <= 0 {
		return fmt.Errorf("--regions must be positive")
	}
	if existing, err := spec.FindProjectFile(projectPath); err == nil && !force {
		return fmt.Errorf("%s already exists; use --force to overwrite", existing)
	}
	if err := os.MkdirAll(projectPath, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	sc := spec.Default()
	sc.Name = name
	path := filepath.Join(projectPath, spec.ProjectFiles[0])
	if err := spec.Save(path, sc); err != nil {
		return err
	}
	d := dataset.Synthetic(sc.Horizon.Window(), regions)
	if err := d.Write(sc.DataDir(projectPath)); err != nil {
		return err
	}

	fmt.Printf("Created %s and a synthetic dataset with %d regions in %s\n", path, regions, sc.DataDir(projectPath))
	return nil
}

// runInitData writes a synthetic dataset matching the horizon of an existing
// scenario.
func runInitData(projectPath string, regions int) error {
	if regions <= 0 {
		return fmt.Errorf("--regions must be positive")
	}
	sc, err := spec.LoadProject(projectPath)
	if err != nil {
		return err
	}
	dir := sc.DataDir(projectPath)
	if err := dataset.Synthetic(sc.Horizon.Window(), regions).Write(dir); err != nil {
		return err
	}
	fmt.Printf("Wrote a synthetic dataset with %d regions for %s to %s\n", regions, sc.Name, dir)
	return nil
}

func runList(ctx context.Context, driver, dsn string) error {
	st, err := openStore(driver, dsn, "")
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Runs(ctx)
	if err != nil {
		return err
	}
	printRuns(runs)
	return nil
}
