package engine

import (
	"fmt"

	"github.com/ChicagoDave/buildstock/pkg/dataset"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/spec"
	"github.com/ChicagoDave/buildstock/pkg/validation"
)

// LoadProject loads the scenario of a project directory and the dataset it
// points at.
func LoadProject(projectDir string) (*spec.Scenario, *dataset.Dataset, error) {
	s, err := spec.LoadProject(projectDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading scenario: %w", err)
	}
	d, err := LoadDataset(s, s.DataDir(projectDir))
	if err != nil {
		return s, nil, err
	}
	return s, d, nil
}

// LoadDataset loads the dataset in dir with the horizon and intensity
// variant of s.
func LoadDataset(s *spec.Scenario, dir string) (*dataset.Dataset, error) {
	v, err := material.ParseVariant(s.Intensity.Variant)
	if err != nil {
		return nil, &validation.ConfigError{Path: "intensity.variant", Message: err.Error()}
	}
	if !dataset.Exists(dir) {
		return nil, &validation.ConfigError{Path: "data", Message: fmt.Sprintf("no dataset in %s", dir)}
	}
	d, err := dataset.Load(dir, s.Horizon.Window(), v)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	return d, nil
}
