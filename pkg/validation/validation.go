package validation

import (
	"errors"
	"fmt"
)

// Level indicates which validation stage produced the result.
type Level string

const (
	// LevelConfig covers scenario and dataset checks run before any
	// computation. Errors at this level abort a run.
	LevelConfig Level = "config"
	// LevelBalance covers numeric invariants checked on results: stock
	// balance and category checksums.
	LevelBalance Level = "balance"
	// LevelRun covers informational findings of a run, such as forced
	// retirement counts.
	LevelRun Level = "run"
)

// Severity indicates how critical a validation result is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("configuration error")

// ConfigError is a configuration problem found before computation.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// Result is a single validation finding.
type Result struct {
	Level        Level    `json:"level"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	SpecPath     string   `json:"spec_path"`
	ActualValue  any      `json:"actual_value,omitempty"`
	Expected     string   `json:"expected,omitempty"`
	ConflictWith string   `json:"conflict_with,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// Report is the complete validation output.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []Result `json:"errors"`
	Warnings []Result `json:"warnings"`
	Info     []Result `json:"info"`
	Summary  string   `json:"summary"`
}

// NewReport creates an empty valid report.
func NewReport() *Report {
	r := &Report{
		Valid:    true,
		Errors:   []Result{},
		Warnings: []Result{},
		Info:     []Result{},
	}
	r.updateSummary()
	return r
}

// AddError adds an error result and marks the report invalid.
func (r *Report) AddError(result Result) {
	result.Severity = SeverityError
	r.Errors = append(r.Errors, result)
	r.Valid = false
	r.updateSummary()
}

// AddWarning adds a warning result.
func (r *Report) AddWarning(result Result) {
	result.Severity = SeverityWarning
	r.Warnings = append(r.Warnings, result)
	r.updateSummary()
}

// AddInfo adds an informational result.
func (r *Report) AddInfo(result Result) {
	result.Severity = SeverityInfo
	r.Info = append(r.Info, result)
	r.updateSummary()
}

// Merge combines another report into this one.
func (r *Report) Merge(other *Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Info = append(r.Info, other.Info...)
	if !other.Valid {
		r.Valid = false
	}
	r.updateSummary()
}

// Blocking reports whether outputs should be withheld: any error, or any
// balance warning.
func (r *Report) Blocking() bool {
	if !r.Valid {
		return true
	}
	for _, w := range r.Warnings {
		if w.Level == LevelBalance {
			return true
		}
	}
	return false
}

// Err returns nil for a valid report, otherwise a *ConfigError describing
// the first error and how many more there are.
func (r *Report) Err() error {
	if r.Valid || len(r.Errors) == 0 {
		return nil
	}
	first := r.Errors[0]
	msg := first.Message
	if n := len(r.Errors) - 1; n > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, n)
	}
	return &ConfigError{Path: first.SpecPath, Message: msg}
}

// Count returns the number of results at level across all severities.
func (r *Report) Count(level Level) int {
	n := 0
	for _, list := range [][]Result{r.Errors, r.Warnings, r.Info} {
		for _, res := range list {
			if res.Level == level {
				n++
			}
		}
	}
	return n
}

func (r *Report) updateSummary() {
	r.Summary = fmt.Sprintf("%d errors, %d warnings, %d info",
		len(r.Errors), len(r.Warnings), len(r.Info))
}

// configError adds a config-level error at path.
func (r *Report) configError(path string, actual any, expected string, format string, args ...any) {
	r.AddError(Result{
		Level:       LevelConfig,
		Message:     fmt.Sprintf(format, args...),
		SpecPath:    path,
		ActualValue: actual,
		Expected:    expected,
	})
}
