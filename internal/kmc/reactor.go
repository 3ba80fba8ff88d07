package kmc

import (
	"fmt"
	"math"
	"strings"
)

// Reactor is the continuum collaborator the engine reports to. It converts
// lattice events into changes of fluid and surface quantities.
type Reactor interface {
	// Temperature returns the current temperature in K.
	Temperature() float64
	// Sites returns the number of catalytic sites the reactor represents.
	Sites() float64
	// InitializeKMC is called once before the run with the lattice site count
	// and the configured lattice-to-reactor scale. It returns the scale to use.
	InitializeKMC(kmcSites int, scale float64) float64
	// RateUnits converts a reactor rate into events per unit time.
	RateUnits() float64
	// KMCQuantities reports whether applying net scaled by molecules keeps
	// every quantity non-negative.
	KMCQuantities(net []Stoich, molecules float64) bool
	// KMCReaction consumes reactants and creates products, molecules each.
	KMCReaction(reactants, products []*Species, molecules float64)
	// KMCStep advances externally driven state (temperature ramp) by dt.
	KMCStep(species []*Species, dt float64)
}

// FluidUnits is how fluid species quantities are expressed.
type FluidUnits int

const (
	FluidConcentration FluidUnits = iota
	FluidPressure
)

// AmountUnits is the amount unit in rate expressions.
type AmountUnits int

const (
	AmountMolecules AmountUnits = iota
	AmountMoles
)

// SizeUnits is the extensive quantity rates are normalized by.
type SizeUnits int

const (
	SizeVolume SizeUnits = iota
	SizeWeight
	SizeSites
)

// ParseFluidUnits accepts "concentration" or "pressure".
func ParseFluidUnits(s string) (FluidUnits, error) {
	switch strings.ToLower(s) {
	case "concentration", "":
		return FluidConcentration, nil
	case "pressure":
		return FluidPressure, nil
	}
	return 0, fmt.Errorf("%w: unknown fluid units %q", ErrConfig, s)
}

// ParseAmountUnits accepts "molecules" or "moles".
func ParseAmountUnits(s string) (AmountUnits, error) {
	switch strings.ToLower(s) {
	case "molecules", "":
		return AmountMolecules, nil
	case "moles", "mol":
		return AmountMoles, nil
	}
	return 0, fmt.Errorf("%w: unknown amount units %q", ErrConfig, s)
}

// ParseSizeUnits accepts "volume", "weight" or "sites".
func ParseSizeUnits(s string) (SizeUnits, error) {
	switch strings.ToLower(s) {
	case "volume", "":
		return SizeVolume, nil
	case "weight":
		return SizeWeight, nil
	case "sites":
		return SizeSites, nil
	}
	return 0, fmt.Errorf("%w: unknown size units %q", ErrConfig, s)
}

// BatchReactorConfig describes a closed, well mixed reactor.
type BatchReactorConfig struct {
	Temperature float64
	HeatingRate float64
	Pressure    float64
	Volume      float64
	Weight      float64
	Sites       float64
	Fluid       FluidUnits
	Amount      AmountUnits
	Size        SizeUnits
}

// BatchReactor is a closed reactor with an optional linear temperature ramp.
type BatchReactor struct {
	cfg         BatchReactorConfig
	temperature float64
	sites       float64
}

// NewBatchReactor validates cfg and returns the reactor.
func NewBatchReactor(cfg BatchReactorConfig) (*BatchReactor, error) {
	if cfg.Temperature <= 0 {
		return nil, fmt.Errorf("%w: reactor temperature must be positive, got %g", ErrConfig, cfg.Temperature)
	}
	if cfg.Volume < 0 || cfg.Weight < 0 || cfg.Sites < 0 {
		return nil, fmt.Errorf("%w: reactor volume, weight and sites must be non-negative", ErrConfig)
	}
	if cfg.Volume == 0 && (cfg.Size == SizeVolume || cfg.Fluid == FluidPressure) {
		cfg.Volume = 1
	}
	if cfg.Size == SizeWeight && cfg.Weight == 0 {
		return nil, fmt.Errorf("%w: weight based rates need a catalyst weight", ErrConfig)
	}
	return &BatchReactor{cfg: cfg, temperature: cfg.Temperature, sites: cfg.Sites}, nil
}

func (r *BatchReactor) Temperature() float64 {
	return r.temperature
}

func (r *BatchReactor) Sites() float64 {
	return r.sites
}

// Volume returns the reactor volume.
func (r *BatchReactor) Volume() float64 {
	return r.cfg.Volume
}

// InitializeKMC keeps a configured site count, deriving the scale from it;
// otherwise the reactor represents kmcSites*scale sites.
func (r *BatchReactor) InitializeKMC(kmcSites int, scale float64) float64 {
	if r.sites > DoubleEps {
		if kmcSites > 0 {
			return r.sites / float64(kmcSites)
		}
		return scale
	}
	r.sites = float64(kmcSites) * scale
	return scale
}

func (r *BatchReactor) RateUnits() float64 {
	rate := 1.0
	if r.cfg.Amount == AmountMoles {
		rate *= Avogadro
	}
	switch r.cfg.Size {
	case SizeWeight:
		rate *= r.cfg.Weight
	case SizeSites:
		rate *= r.sites
	default:
		rate *= r.cfg.Volume
	}
	return rate
}

// perMolecule is the change in quantity caused by one molecule of sp.
func (r *BatchReactor) perMolecule(sp *Species) float64 {
	if sp.IsSurface() {
		if r.sites <= 0 {
			return 0
		}
		return 1 / r.sites
	}
	if r.cfg.Fluid == FluidPressure {
		return Boltzmann * r.temperature / r.cfg.Volume
	}
	return 1 / (Avogadro * r.cfg.Volume)
}

func (r *BatchReactor) KMCQuantities(net []Stoich, molecules float64) bool {
	for _, s := range net {
		change := molecules * s.Coefficient
		if change >= 0 {
			continue
		}
		need := -change * r.perMolecule(s.Species)
		// relative slack absorbs rounding in coverages built from many 1/N steps
		if s.Species.Quantity < need*(1-1e-9) {
			return false
		}
	}
	return true
}

func (r *BatchReactor) KMCReaction(reactants, products []*Species, molecules float64) {
	for _, sp := range reactants {
		sp.Quantity -= molecules * r.perMolecule(sp)
	}
	for _, sp := range products {
		sp.Quantity += molecules * r.perMolecule(sp)
	}
}

func (r *BatchReactor) KMCStep(species []*Species, dt float64) {
	t0 := r.temperature
	t1 := t0
	if math.Abs(r.cfg.HeatingRate) > DoubleEps {
		t1 = t0 + r.cfg.HeatingRate*dt
		r.temperature = t1
	}
	if r.cfg.Fluid != FluidPressure || t1 == t0 {
		return
	}
	for _, sp := range species {
		if !sp.IsSurface() {
			sp.Quantity *= t1 / t0
		}
	}
}
