package spec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ChicagoDave/buildstock/pkg/backcast"
)

// Version is the scenario format version written by this module.
const Version = "0.1.0"

// Project file names, in lookup order.
var ProjectFiles = []string{"scenario.yaml", "scenario.yml", "scenario.toml"}

// Default returns a scenario with every default applied.
func Default() *Scenario {
	s := &Scenario{SpecVersion: Version, Name: "baseline"}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills zero-valued settings.
func (s *Scenario) ApplyDefaults() {
	if s.Horizon == (HorizonDef{}) {
		s.Horizon = HorizonDef{Origin: 1721, FirstObserved: 1971, End: 2060}
	}
	if s.Backcast.TailYears == 0 {
		s.Backcast.TailYears = 150
	}
	if s.Backcast.TrendYears == 0 {
		s.Backcast.TrendYears = 10
	}
	if s.Lifetime.Family == "" {
		s.Lifetime.Family = "weibull"
	}
	if s.Intensity.Variant == "" {
		s.Intensity.Variant = "regular"
	}
	if s.Tolerance.Balance == 0 {
		s.Tolerance.Balance = 1e-6
	}
	if s.Tolerance.Checksum == 0 {
		s.Tolerance.Checksum = 1e-7
	}
	if s.Data == "" {
		s.Data = "data"
	}
}

// Load reads a scenario from a YAML or TOML file, chosen by extension, and
// applies defaults.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var s Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario file %q (want .yaml, .yml or .toml)", path)
	}

	s.ApplyDefaults()
	return &s, nil
}

// FindProjectFile returns the scenario file inside projectDir.
func FindProjectFile(projectDir string) (string, error) {
	for _, name := range ProjectFiles {
		p := filepath.Join(projectDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("no scenario file (%s) in %s", strings.Join(ProjectFiles, ", "), projectDir)
}

// LoadProject loads the scenario from a project directory.
// It looks for scenario.yaml, scenario.yml or scenario.toml in that order.
func LoadProject(projectDir string) (*Scenario, error) {
	p, err := FindProjectFile(projectDir)
	if err != nil {
		return nil, err
	}
	return Load(p)
}

// Window returns the horizon as a backcast.Horizon.
func (h HorizonDef) Window() backcast.Horizon {
	return backcast.Horizon{Origin: h.Origin, FirstObserved: h.FirstObserved, End: h.End}
}

// DataDir resolves the dataset directory of s relative to projectDir.
func (s *Scenario) DataDir(projectDir string) string {
	if filepath.IsAbs(s.Data) {
		return s.Data
	}
	return filepath.Join(projectDir, s.Data)
}

// Save writes s to path as YAML or TOML, chosen by extension.
func Save(path string, s *Scenario) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = toml.Marshal(s)
	default:
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing scenario file: %w", err)
	}
	return nil
}
