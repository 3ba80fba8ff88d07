package kmc

type SpeciesConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Coordination is the number of lattice sites the species occupies.
	// When omitted it is the count of leading '@' characters of the name.
	Coordination *int    `json:"coordination,omitempty" yaml:"coordination,omitempty"`
	Quantity     float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// StoichConfig is one species on one side of a reaction. Coefficient
// defaults to 1, Power to Coefficient.
type StoichConfig struct {
	Species     string   `json:"species" yaml:"species"`
	Coefficient float64  `json:"coefficient,omitempty" yaml:"coefficient,omitempty"`
	Power       *float64 `json:"power,omitempty" yaml:"power,omitempty"`
}

// RateConfig describes a rate constant: "constant" uses K, "arrhenius"
// uses K0 and Ea, "lfer" uses K0, E0, Gamma and DeltaH.
type RateConfig struct {
	Type   string  `json:"type" yaml:"type"`
	K      float64 `json:"k,omitempty" yaml:"k,omitempty"`
	K0     float64 `json:"k0,omitempty" yaml:"k0,omitempty"`
	Ea     float64 `json:"ea,omitempty" yaml:"ea,omitempty"`
	E0     float64 `json:"e0,omitempty" yaml:"e0,omitempty"`
	Gamma  float64 `json:"gamma,omitempty" yaml:"gamma,omitempty"`
	DeltaH float64 `json:"delta_h,omitempty" yaml:"delta_h,omitempty"`
}

type ReactionConfig struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Reactants []StoichConfig `json:"reactants" yaml:"reactants"`
	Products  []StoichConfig `json:"products" yaml:"products"`
	Forward   RateConfig     `json:"forward" yaml:"forward"`
	// Reverse is nil for an irreversible reaction.
	Reverse *RateConfig `json:"reverse,omitempty" yaml:"reverse,omitempty"`
}

type MechanismConfig struct {
	Name      string           `json:"name" yaml:"name"`
	Species   []SpeciesConfig  `json:"species" yaml:"species"`
	Reactions []ReactionConfig `json:"reactions" yaml:"reactions"`
}

type ReactorConfig struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	HeatingRate float64 `json:"heating_rate,omitempty" yaml:"heating_rate,omitempty"`
	Pressure    float64 `json:"pressure,omitempty" yaml:"pressure,omitempty"`
	Volume      float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Weight      float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Sites       float64 `json:"sites,omitempty" yaml:"sites,omitempty"`
	Fluid       string  `json:"fluid,omitempty" yaml:"fluid,omitempty"`
	Amount      string  `json:"amount,omitempty" yaml:"amount,omitempty"`
	Size        string  `json:"size,omitempty" yaml:"size,omitempty"`
}

type KMCConfig struct {
	Size         int     `json:"size" yaml:"size"`
	Neighbor     string  `json:"neighbor,omitempty" yaml:"neighbor,omitempty"`
	SiteType     string  `json:"site_type,omitempty" yaml:"site_type,omitempty"`
	RateConstant string  `json:"rate_constant,omitempty" yaml:"rate_constant,omitempty"`
	Scale        float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	RNG          string  `json:"rng,omitempty" yaml:"rng,omitempty"`
	Seed         uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	EmptySpecies string  `json:"empty_species,omitempty" yaml:"empty_species,omitempty"`
	SurfaceFile  string  `json:"surface_file,omitempty" yaml:"surface_file,omitempty"`
	CounterFile  string  `json:"counter_file,omitempty" yaml:"counter_file,omitempty"`
}

// OutputConfig lists the points at which state is reported: either Points
// evenly spaced points from Start to End, or explicit Times.
type OutputConfig struct {
	Start  float64   `json:"start,omitempty" yaml:"start,omitempty"`
	End    float64   `json:"end,omitempty" yaml:"end,omitempty"`
	Points int       `json:"points,omitempty" yaml:"points,omitempty"`
	Times  []float64 `json:"times,omitempty" yaml:"times,omitempty"`
	File   string    `json:"file,omitempty" yaml:"file,omitempty"`
}

type SimulationConfig struct {
	ID        string          `json:"id,omitempty" yaml:"id,omitempty"`
	Mechanism MechanismConfig `json:"mechanism" yaml:"mechanism"`
	Reactor   ReactorConfig   `json:"reactor" yaml:"reactor"`
	KMC       KMCConfig       `json:"kmc" yaml:"kmc"`
	Output    OutputConfig    `json:"output" yaml:"output"`
}
