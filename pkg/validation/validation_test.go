package validation

import (
	"errors"
	"testing"
)

func TestNewReport(t *testing.T) {
	r := NewReport()
	if !r.Valid {
		t.Error("new report should be valid")
	}
	if len(r.Errors) != 0 || len(r.Warnings) != 0 || len(r.Info) != 0 {
		t.Error("new report should have empty slices")
	}
}

func TestAddError(t *testing.T) {
	r := NewReport()
	r.AddError(Result{
		Level:   LevelConfig,
		Message: "bad value",
	})
	if r.Valid {
		t.Error("report with error should be invalid")
	}
	if len(r.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(r.Errors))
	}
	if r.Errors[0].Severity != SeverityError {
		t.Error("AddError should set severity to error")
	}
	if r.Summary != "1 errors, 0 warnings, 0 info" {
		t.Errorf("unexpected summary: %s", r.Summary)
	}
}

func TestAddWarning(t *testing.T) {
	r := NewReport()
	r.AddWarning(Result{Level: LevelRun, Message: "heads up"})
	if !r.Valid {
		t.Error("warnings should not invalidate report")
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(r.Warnings))
	}
	if r.Warnings[0].Severity != SeverityWarning {
		t.Error("AddWarning should set severity to warning")
	}
}

func TestAddInfo(t *testing.T) {
	r := NewReport()
	r.AddInfo(Result{Level: LevelRun, Message: "fyi"})
	if !r.Valid {
		t.Error("info should not invalidate report")
	}
	if len(r.Info) != 1 {
		t.Fatalf("expected 1 info, got %d", len(r.Info))
	}
}

func TestMerge(t *testing.T) {
	r1 := NewReport()
	r1.AddWarning(Result{Level: LevelConfig, Message: "warn1"})

	r2 := NewReport()
	r2.AddError(Result{Level: LevelRun, Message: "err1"})
	r2.AddWarning(Result{Level: LevelRun, Message: "warn2"})
	r2.AddInfo(Result{Level: LevelRun, Message: "info1"})

	r1.Merge(r2)

	if r1.Valid {
		t.Error("merged report should be invalid when other has errors")
	}
	if len(r1.Errors) != 1 {
		t.Errorf("expected 1 error, got %d", len(r1.Errors))
	}
	if len(r1.Warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d", len(r1.Warnings))
	}
	if len(r1.Info) != 1 {
		t.Errorf("expected 1 info, got %d", len(r1.Info))
	}
	if r1.Summary != "1 errors, 2 warnings, 1 info" {
		t.Errorf("unexpected summary: %s", r1.Summary)
	}
}

func TestMergeValidIntoValid(t *testing.T) {
	r1 := NewReport()
	r2 := NewReport()
	r2.AddInfo(Result{Level: LevelConfig, Message: "note"})

	r1.Merge(r2)

	if !r1.Valid {
		t.Error("merging two valid reports should stay valid")
	}
	if len(r1.Info) != 1 {
		t.Errorf("expected 1 info, got %d", len(r1.Info))
	}
}

func TestBlocking(t *testing.T) {
	r := NewReport()
	r.AddInfo(Result{Level: LevelRun, Message: "3 corrections"})
	r.AddWarning(Result{Level: LevelRun, Message: "note"})
	if r.Blocking() {
		t.Error("run-level warnings should not block")
	}
	r.AddWarning(Result{Level: LevelBalance, Message: "imbalance"})
	if !r.Blocking() {
		t.Error("balance warning should block")
	}

	e := NewReport()
	e.AddError(Result{Level: LevelConfig, Message: "bad"})
	if !e.Blocking() {
		t.Error("errors should block")
	}
}

func TestErr(t *testing.T) {
	r := NewReport()
	if err := r.Err(); err != nil {
		t.Fatalf("Err on valid report = %v, want nil", err)
	}
	r.configError("lifetime.family", "gamma", "weibull", "unknown family %q", "gamma")
	r.configError("tolerance.balance", 0.0, "> 0", "must be positive")

	err := r.Err()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("Err = %v, want wrapping ErrConfig", err)
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Err = %T, want *ConfigError", err)
	}
	if ce.Path != "lifetime.family" {
		t.Errorf("path = %q, want lifetime.family", ce.Path)
	}
	want := `lifetime.family: unknown family "gamma" (and 1 more)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCount(t *testing.T) {
	r := NewReport()
	r.AddError(Result{Level: LevelConfig})
	r.AddWarning(Result{Level: LevelBalance})
	r.AddWarning(Result{Level: LevelBalance})
	r.AddInfo(Result{Level: LevelRun})
	if got := r.Count(LevelBalance); got != 2 {
		t.Errorf("Count(balance) = %d, want 2", got)
	}
	if got := r.Count(LevelConfig); got != 1 {
		t.Errorf("Count(config) = %d, want 1", got)
	}
}
