package kmc

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid simulation config: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "simulation config validation errors: " + strings.Join(e.Issues, "; ")
}

// Unwrap classifies every validation failure as a configuration error.
func (e *ValidationError) Unwrap() error {
	return ErrConfig
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

var validRateTypes = map[string]bool{
	"constant":  true,
	"arrhenius": true,
	"lfer":      true,
}

// ValidateSimulationConfig performs comprehensive validation of a SimulationConfig
func ValidateSimulationConfig(cfg SimulationConfig) error {
	err := &ValidationError{}

	if cfg.Mechanism.Name == "" {
		err.Add("mechanism name is required")
	}

	speciesMap := make(map[string]bool)
	for i, sp := range cfg.Mechanism.Species {
		if sp.Name == "" {
			err.Add(fmt.Sprintf("species at index %d: name is required", i))
			continue
		}
		if speciesMap[sp.Name] {
			err.Add("duplicate species name: " + sp.Name)
		} else {
			speciesMap[sp.Name] = true
		}
		if sp.Coordination != nil && *sp.Coordination < 0 {
			err.Add(fmt.Sprintf("species '%s': coordination must be >= 0, got %d", sp.Name, *sp.Coordination))
		}
		if sp.Quantity < 0 {
			err.Add(fmt.Sprintf("species '%s': quantity must be >= 0, got %g", sp.Name, sp.Quantity))
		}
	}

	reactionIDs := make(map[string]bool)
	for i, rc := range cfg.Mechanism.Reactions {
		prefix := fmt.Sprintf("reaction at index %d", i)
		if rc.ID != "" {
			prefix = "reaction '" + rc.ID + "'"
		}

		if rc.ID == "" {
			err.Add(prefix + ": reaction ID is required")
		} else if reactionIDs[rc.ID] {
			err.Add("duplicate reaction ID: " + rc.ID)
		} else {
			reactionIDs[rc.ID] = true
		}

		if len(rc.Reactants) == 0 && len(rc.Products) == 0 {
			err.Add(prefix + ": reaction needs reactants or products")
		}
		validateSide(rc.Reactants, prefix+" reactant", speciesMap, err)
		validateSide(rc.Products, prefix+" product", speciesMap, err)

		validateRate(rc.Forward, prefix+" forward rate", err)
		if rc.Reverse != nil {
			validateRate(*rc.Reverse, prefix+" reverse rate", err)
		}
	}

	validateReactor(cfg.Reactor, err)
	validateKMC(cfg.KMC, speciesMap, err)
	validateOutput(cfg.Output, err)

	if err.HasIssues() {
		return err
	}
	return nil
}

func validateSide(side []StoichConfig, prefix string, speciesMap map[string]bool, err *ValidationError) {
	for j, s := range side {
		p := fmt.Sprintf("%s at index %d", prefix, j)
		if s.Species == "" {
			err.Add(p + ": species is required")
		} else if !speciesMap[s.Species] {
			err.Add(p + ": species '" + s.Species + "' does not exist")
		}
		if s.Coefficient < 0 {
			err.Add(fmt.Sprintf("%s: coefficient must be positive, got %g", p, s.Coefficient))
		}
		if s.Power != nil && *s.Power < 0 {
			err.Add(fmt.Sprintf("%s: power must be >= 0, got %g", p, *s.Power))
		}
	}
}

func validateRate(rc RateConfig, prefix string, err *ValidationError) {
	t := strings.ToLower(rc.Type)
	if !validRateTypes[t] {
		err.Add(prefix + ": type '" + rc.Type + "' is invalid, must be one of: constant, arrhenius, lfer")
		return
	}
	switch t {
	case "constant":
		if rc.K < 0 {
			err.Add(fmt.Sprintf("%s: k must be >= 0, got %g", prefix, rc.K))
		}
	case "arrhenius", "lfer":
		if rc.K0 < 0 {
			err.Add(fmt.Sprintf("%s: k0 must be >= 0, got %g", prefix, rc.K0))
		}
	}
	if t == "lfer" && (rc.Gamma < 0 || rc.Gamma > 1) {
		err.Add(fmt.Sprintf("%s: gamma must be in [0, 1], got %g", prefix, rc.Gamma))
	}
}

func validateReactor(rc ReactorConfig, err *ValidationError) {
	if rc.Temperature <= 0 {
		err.Add(fmt.Sprintf("reactor: temperature must be positive, got %g", rc.Temperature))
	}
	for name, v := range map[string]float64{"pressure": rc.Pressure, "volume": rc.Volume, "weight": rc.Weight, "sites": rc.Sites} {
		if v < 0 {
			err.Add(fmt.Sprintf("reactor: %s must be >= 0, got %g", name, v))
		}
	}
	if _, e := ParseFluidUnits(rc.Fluid); e != nil {
		err.Add("reactor: " + e.Error())
	}
	if _, e := ParseAmountUnits(rc.Amount); e != nil {
		err.Add("reactor: " + e.Error())
	}
	size, e := ParseSizeUnits(rc.Size)
	if e != nil {
		err.Add("reactor: " + e.Error())
	} else if size == SizeWeight && rc.Weight <= 0 {
		err.Add("reactor: weight size units need a positive weight")
	}
}

func validateKMC(kc KMCConfig, speciesMap map[string]bool, err *ValidationError) {
	if kc.Size < 0 {
		err.Add(fmt.Sprintf("kmc: size must be >= 0, got %d", kc.Size))
	}
	if kc.Scale < 0 {
		err.Add(fmt.Sprintf("kmc: scale must be positive, got %g", kc.Scale))
	}
	if _, e := ParseNeighborOrder(kc.Neighbor); e != nil {
		err.Add("kmc: " + e.Error())
	}
	if _, e := ParseSiteGroupPolicy(kc.SiteType); e != nil {
		err.Add("kmc: " + e.Error())
	}
	if _, e := ParseRateMode(kc.RateConstant); e != nil {
		err.Add("kmc: " + e.Error())
	}
	if _, e := NewRNG(kc.RNG, kc.Seed); e != nil {
		err.Add("kmc: " + e.Error())
	}
	if kc.EmptySpecies != "" && !speciesMap[kc.EmptySpecies] {
		err.Add("kmc: empty species '" + kc.EmptySpecies + "' does not exist")
	}
}

func validateOutput(oc OutputConfig, err *ValidationError) {
	if len(oc.Times) > 0 {
		if oc.Points > 0 {
			err.Add("output: give either points or times, not both")
		}
		prev := math.Inf(-1)
		for i, t := range oc.Times {
			if t <= prev {
				err.Add(fmt.Sprintf("output: times must be strictly increasing (index %d)", i))
				break
			}
			prev = t
		}
		return
	}
	if oc.Points < 1 {
		err.Add(fmt.Sprintf("output: points must be >= 1, got %d", oc.Points))
	}
	if oc.End <= oc.Start {
		err.Add(fmt.Sprintf("output: end (%g) must be greater than start (%g)", oc.End, oc.Start))
	}
}
