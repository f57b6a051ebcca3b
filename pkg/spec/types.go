package spec

// Scenario is the top-level configuration of a model run.
type Scenario struct {
	SpecVersion string       `yaml:"spec_version" toml:"spec_version" json:"spec_version"`
	Name        string       `yaml:"name" toml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Horizon     HorizonDef   `yaml:"horizon" toml:"horizon" json:"horizon"`
	Backcast    BackcastDef  `yaml:"backcast" toml:"backcast" json:"backcast"`
	Lifetime    LifetimeDef  `yaml:"lifetime" toml:"lifetime" json:"lifetime"`
	Intensity   IntensityDef `yaml:"intensity" toml:"intensity" json:"intensity"`
	Tolerance   ToleranceDef `yaml:"tolerance" toml:"tolerance" json:"tolerance"`
	Emissions   EmissionsDef `yaml:"emissions" toml:"emissions" json:"emissions"`

	// Data is the dataset directory, relative to the project directory.
	Data string `yaml:"data" toml:"data" json:"data"`
	// Regions restricts the run to a subset of the dataset's regions.
	Regions []int `yaml:"regions,omitempty" toml:"regions,omitempty" json:"regions,omitempty"`
}

// HorizonDef is the model time window.
type HorizonDef struct {
	Origin        int `yaml:"origin" toml:"origin" json:"origin"`
	FirstObserved int `yaml:"first_observed" toml:"first_observed" json:"first_observed"`
	End           int `yaml:"end" toml:"end" json:"end"`
}

// BackcastDef configures the extension of observed drivers into the past.
type BackcastDef struct {
	TailYears  int `yaml:"tail_years" toml:"tail_years" json:"tail_years"`
	TrendYears int `yaml:"trend_years" toml:"trend_years" json:"trend_years"`
}

// LifetimeDef selects the survival family and lifetime policies.
type LifetimeDef struct {
	Family    string             `yaml:"family" toml:"family" json:"family"`
	Overrides []LifetimeOverride `yaml:"overrides,omitempty" toml:"overrides,omitempty" json:"overrides,omitempty"`
}

// LifetimeOverride scales the characteristic lifetime (Weibull scale,
// folded-normal mean) of cohorts built from From onward, phasing in until To.
type LifetimeOverride struct {
	Category string  `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty"`
	Regions  []int   `yaml:"regions,omitempty" toml:"regions,omitempty" json:"regions,omitempty"`
	From     int     `yaml:"from" toml:"from" json:"from"`
	To       int     `yaml:"to,omitempty" toml:"to,omitempty" json:"to,omitempty"`
	Factor   float64 `yaml:"factor" toml:"factor" json:"factor"`
}

// IntensityDef selects the intensity table and scenario overrides.
type IntensityDef struct {
	Variant   string              `yaml:"variant" toml:"variant" json:"variant"`
	Overrides []IntensityOverride `yaml:"overrides,omitempty" toml:"overrides,omitempty" json:"overrides,omitempty"`
}

// IntensityOverride scales one material's intensity for buildings built from
// From onward, phasing in until To.
type IntensityOverride struct {
	Material string  `yaml:"material" toml:"material" json:"material"`
	Category string  `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty"`
	Regions  []int   `yaml:"regions,omitempty" toml:"regions,omitempty" json:"regions,omitempty"`
	From     int     `yaml:"from" toml:"from" json:"from"`
	To       int     `yaml:"to,omitempty" toml:"to,omitempty" json:"to,omitempty"`
	Factor   float64 `yaml:"factor" toml:"factor" json:"factor"`
}

// ToleranceDef holds numeric tolerances.
type ToleranceDef struct {
	// Balance is the largest acceptable stock balance residual, relative to
	// the stock when that exceeds one.
	Balance float64 `yaml:"balance" toml:"balance" json:"balance"`
	// Checksum bounds the category/area-total mismatch of stock targets.
	Checksum float64 `yaml:"checksum" toml:"checksum" json:"checksum"`
}

// EmissionsDef configures the emissions table.
type EmissionsDef struct {
	ByMaterial bool `yaml:"by_material" toml:"by_material" json:"by_material"`
}
