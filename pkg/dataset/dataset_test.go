package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChicagoDave/buildstock/pkg/backcast"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

var testHorizon = backcast.Horizon{Origin: 1900, FirstObserved: 1971, End: 1990}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Synthetic(testHorizon, 3)
	if err := want.Write(dir); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !Exists(dir) {
		t.Fatal("Exists = false after Write")
	}
	got, err := Load(dir, testHorizon, material.Regular)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOptionalAvgM2(t *testing.T) {
	dir := t.TempDir()
	if err := Synthetic(testHorizon, 1).Write(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, AvgM2File)); err != nil {
		t.Fatal(err)
	}
	d, err := Load(dir, testHorizon, material.Regular)
	if err != nil {
		t.Fatalf("Load without avg m2: %v", err)
	}
	if len(d.AvgM2) != 0 {
		t.Errorf("AvgM2 = %v, want empty", d.AvgM2)
	}
}

func TestLoadVariantFile(t *testing.T) {
	dir := t.TempDir()
	if err := Synthetic(testHorizon, 1).Write(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, testHorizon, material.High); err == nil {
		t.Fatal("expected error for missing high variant")
	}
	src, err := os.ReadFile(filepath.Join(dir, IntensityFile(material.Regular)))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "intensity_high.csv"), src, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, testHorizon, material.High); err != nil {
		t.Errorf("Load high variant: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"missing column", PopulationFile, "region,value\n1,10\n", `missing required column "year"`},
		{"bad value", PopulationFile, "region,year,value\n1,1971,abc\n", "invalid value"},
		{"year outside window", RuralShareFile, "region,year,value\n1,1960,0.5\n", "outside"},
		{"missing year", PopulationFile, "region,year,value\n1,1971,10\n", "missing year 1972"},
		{"unknown material", RecoveryRateFile, "material,year,value\nplastic,,0.5\n", "unknown material"},
		{"commercial floor area", FloorAreaFile, "region,area,year,value\n1,commercial,1971,1\n", "invalid residential area"},
		{"duplicate intensity", IntensityFile(material.Regular),
			"region,area,type,material,value\n1,urban,detached,steel,1\n1,urban,detached,steel,2\n", "duplicate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := Synthetic(testHorizon, 1).Write(dir); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(dir, testHorizon, material.Regular)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestBroadcastYear(t *testing.T) {
	tbl, err := parseTable("rates.csv", strings.NewReader("material,year,value\nsteel,*,0.9\nsteel,1950,0.5\n"), "material", "year", "value")
	if err != nil {
		t.Fatal(err)
	}
	d := New(testHorizon)
	if err := d.factorLoader(d.Factors.Recovery)(tbl); err != nil {
		t.Fatal(err)
	}
	s := d.Factors.Recovery[material.Steel]
	if s.At(1900) != 0.9 || s.At(1950) != 0.5 || s.At(1990) != 0.9 {
		t.Errorf("broadcast rates = %v, %v, %v", s.At(1900), s.At(1950), s.At(1990))
	}
}

func TestSyntheticComplete(t *testing.T) {
	d := Synthetic(testHorizon, 2)
	if len(d.Regions) != 2 {
		t.Fatalf("regions = %v", d.Regions)
	}
	if got, want := len(d.Intensity), 2*12*len(material.Materials); got != want {
		t.Errorf("intensities = %d, want %d", got, want)
	}
	for _, typ := range stock.CommercialTypes {
		if _, ok := d.Demand[typ][2]; !ok {
			t.Errorf("missing demand for %s", typ)
		}
	}
}
