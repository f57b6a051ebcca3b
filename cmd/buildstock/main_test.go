package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/ChicagoDave/buildstock/internal/config"
	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/export"
	"github.com/ChicagoDave/buildstock/pkg/spec"
)

func setup(t *testing.T) string {
	t.Helper()
	logger = zaptest.NewLogger(t)
	cfg = &config.Config{Workers: 2, OutputDir: filepath.Join(t.TempDir(), "output")}

	dir := filepath.Join(t.TempDir(), "project")
	require.NoError(t, runInit(dir, "demo", 1, false))

	// shrink the horizon to keep the run fast
	p := filepath.Join(dir, "scenario.yaml")
	sc, err := spec.Load(p)
	require.NoError(t, err)
	sc.Horizon = spec.HorizonDef{Origin: 1950, FirstObserved: 1971, End: 1985}
	sc.Backcast.TailYears = 10
	require.NoError(t, spec.Save(p, sc))
	require.NoError(t, runInitData(dir, 1))
	return dir
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := setup(t)
	assert.Error(t, runInit(dir, "demo", 1, false))
	assert.NoError(t, runInit(dir, "demo", 1, true))
}

func TestLoadAndValidate(t *testing.T) {
	dir := setup(t)
	sc, d, report, err := loadAndValidate(dir)
	require.NoError(t, err)
	assert.True(t, report.Valid, report.Summary)
	assert.Equal(t, "demo", sc.Name)
	assert.Len(t, d.Regions, 1)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "data")))
	_, _, report, err = loadAndValidate(dir)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, "data", report.Errors[0].SpecPath)
}

func TestRunScenarioWritesOutputs(t *testing.T) {
	dir := setup(t)
	opts := runOptions{formats: []string{"csv", "xlsx", "sql"}}
	require.NoError(t, runScenario(context.Background(), dir, opts))

	out := filepath.Join(cfg.OutputDir, "demo")
	for _, name := range []string{export.FlowsFile, export.EmissionsFile, export.WorkbookFile} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	st, err := export.OpenStore(export.DriverSQLite, filepath.Join(cfg.OutputDir, storeFile))
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "demo", runs[0].Scenario)

	assert.Error(t, runScenario(context.Background(), dir, runOptions{formats: []string{"parquet"}}))
}

func TestNewWritersClosesOnError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	cfg = &config.Config{}
	root := t.TempDir()

	out, err := newWriters(runOptions{formats: []string{"sql", "bogus"}}, root, filepath.Join(root, "demo"))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.FileExists(t, filepath.Join(root, storeFile))
}

func TestSummarize(t *testing.T) {
	dir := setup(t)
	_, res, err := execute(context.Background(), dir, engine.Options{})
	require.NoError(t, err)

	rows := summarize(res, 1985)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 1, r.region)
	for a, v := range r.floorArea {
		assert.Positive(t, v, "area %d", a)
	}
	assert.Positive(t, r.massStock)
	assert.InDelta(t, res.Emissions[0].Total.At(1985), r.emissions, 1e-9)
}

func TestRunSurvival(t *testing.T) {
	assert.NoError(t, runSurvival(survivalOptions{family: "weibull", first: 2, second: 50, years: 100, step: 25}))
	assert.Error(t, runSurvival(survivalOptions{family: "weibull", first: -1, second: 50, years: 100}))
	assert.Error(t, runSurvival(survivalOptions{family: "gamma", first: 1, second: 1, years: 10}))
}

func TestMedianAge(t *testing.T) {
	assert.Equal(t, 2, medianAge([]float64{1, 0.8, 0.5, 0.2}))
	assert.Equal(t, -1, medianAge([]float64{1, 0.9}))
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{12.34, "12.3"},
		{1500, "1.5K"},
		{-2_500_000, "-2.50M"},
		{3e9, "3.00G"},
	}
	for _, tt := range tests {
		if got := formatQuantity(tt.v); got != tt.want {
			t.Errorf("formatQuantity(%g) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
