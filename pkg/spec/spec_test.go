package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadProjectYAML(t *testing.T) {
	s, err := LoadProject("../../examples/baseline")
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}

	if s.SpecVersion != "0.1.0" {
		t.Errorf("spec_version = %q, want %q", s.SpecVersion, "0.1.0")
	}
	if s.Name != "baseline" {
		t.Errorf("name = %q, want %q", s.Name, "baseline")
	}
	if s.Horizon != (HorizonDef{Origin: 1721, FirstObserved: 1971, End: 2060}) {
		t.Errorf("horizon = %+v", s.Horizon)
	}
	if s.Backcast.TailYears != 150 {
		t.Errorf("tail_years = %d, want 150", s.Backcast.TailYears)
	}
	if s.Lifetime.Family != "weibull" {
		t.Errorf("family = %q, want weibull", s.Lifetime.Family)
	}
	if s.Tolerance.Checksum != 1e-7 {
		t.Errorf("checksum = %v, want 1e-7", s.Tolerance.Checksum)
	}
	if got, want := s.DataDir("/p"), filepath.Join("/p", "data"); got != want {
		t.Errorf("DataDir = %q, want %q", got, want)
	}
}

func TestLoadProjectTOML(t *testing.T) {
	s, err := LoadProject("../../examples/lightweight")
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if len(s.Intensity.Overrides) != 2 {
		t.Fatalf("intensity overrides = %d, want 2", len(s.Intensity.Overrides))
	}
	o := s.Intensity.Overrides[1]
	if o.Material != "wood" || o.Category != "urban/detached" || o.Factor != 1.5 {
		t.Errorf("override = %+v", o)
	}
	if len(o.Regions) != 2 || o.Regions[1] != 2 {
		t.Errorf("regions = %v, want [1 2]", o.Regions)
	}
	if len(s.Lifetime.Overrides) != 1 || s.Lifetime.Overrides[0].To != 2040 {
		t.Errorf("lifetime overrides = %+v", s.Lifetime.Overrides)
	}
	if !s.Emissions.ByMaterial {
		t.Error("by_material = false, want true")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(p, []byte("name: minimal\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if s.Horizon != d.Horizon || s.Backcast != d.Backcast || s.Data != "data" {
		t.Errorf("defaults not applied: %+v", s)
	}
	if s.Intensity.Variant != "regular" {
		t.Errorf("variant = %q, want regular", s.Intensity.Variant)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Default()
	want.Intensity.Overrides = []IntensityOverride{{Material: "steel", From: 2030, Factor: 0.9}}
	for _, name := range []string{"scenario.yaml", "scenario.toml"} {
		p := filepath.Join(dir, name)
		if err := Save(p, want); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		got, err := Load(p)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: round trip mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestLoadProjectMissing(t *testing.T) {
	_, err := LoadProject("/nonexistent/path")
	if err == nil {
		t.Error("expected error for missing project directory")
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := filepath.Join(t.TempDir(), "scenario.json")
	if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Error("expected error for .json scenario")
	}
}
