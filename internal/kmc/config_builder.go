package kmc

import (
	"fmt"
	"strings"
)

// BuildMechanism creates a Mechanism from a validated MechanismConfig.
func BuildMechanism(cfg MechanismConfig) (*Mechanism, error) {
	mech := NewMechanism(cfg.Name)
	for _, sc := range cfg.Species {
		coord := -1
		if sc.Coordination != nil {
			coord = *sc.Coordination
		}
		if _, err := mech.AddSpecies(sc.Name, sc.Description, coord, sc.Quantity); err != nil {
			return nil, err
		}
	}
	for _, rc := range cfg.Reactions {
		rxn, err := buildReaction(mech, rc)
		if err != nil {
			return nil, err
		}
		if err := mech.AddReaction(rxn); err != nil {
			return nil, err
		}
	}
	return mech, nil
}

func buildReaction(mech *Mechanism, rc ReactionConfig) (*Reaction, error) {
	reactants, err := buildSide(mech, rc.ID, rc.Reactants)
	if err != nil {
		return nil, err
	}
	products, err := buildSide(mech, rc.ID, rc.Products)
	if err != nil {
		return nil, err
	}
	forward, err := BuildRateConstant(rc.Forward)
	if err != nil {
		return nil, fmt.Errorf("reaction %s forward rate: %w", rc.ID, err)
	}
	var reverse RateConstant
	if rc.Reverse != nil {
		if reverse, err = BuildRateConstant(*rc.Reverse); err != nil {
			return nil, fmt.Errorf("reaction %s reverse rate: %w", rc.ID, err)
		}
	}
	return NewReaction(rc.ID, rc.Name, reactants, products, forward, reverse)
}

func buildSide(mech *Mechanism, id string, side []StoichConfig) ([]Stoich, error) {
	out := make([]Stoich, 0, len(side))
	for _, sc := range side {
		sp, ok := mech.Species(sc.Species)
		if !ok {
			return nil, fmt.Errorf("%w: reaction %s references unknown species %q", ErrInput, id, sc.Species)
		}
		coeff := sc.Coefficient
		if coeff == 0 {
			coeff = 1
		}
		st := Stoich{Species: sp, Coefficient: coeff}
		if sc.Power != nil {
			st.Power, st.PowerSet = *sc.Power, true
		}
		out = append(out, st)
	}
	return out, nil
}

// BuildRateConstant converts a RateConfig into its RateConstant.
func BuildRateConstant(rc RateConfig) (RateConstant, error) {
	switch strings.ToLower(rc.Type) {
	case "constant":
		return ConstantK{K: rc.K}, nil
	case "arrhenius":
		return ArrheniusK{K0: rc.K0, Ea: rc.Ea}, nil
	case "lfer":
		return NewLFERK(rc.K0, rc.E0, rc.Gamma, rc.DeltaH)
	}
	return nil, fmt.Errorf("%w: unknown rate constant type %q", ErrConfig, rc.Type)
}

// BuildReactor creates the batch reactor described by cfg.
func BuildReactor(cfg ReactorConfig) (*BatchReactor, error) {
	fluid, err := ParseFluidUnits(cfg.Fluid)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmountUnits(cfg.Amount)
	if err != nil {
		return nil, err
	}
	size, err := ParseSizeUnits(cfg.Size)
	if err != nil {
		return nil, err
	}
	return NewBatchReactor(BatchReactorConfig{
		Temperature: cfg.Temperature,
		HeatingRate: cfg.HeatingRate,
		Pressure:    cfg.Pressure,
		Volume:      cfg.Volume,
		Weight:      cfg.Weight,
		Sites:       cfg.Sites,
		Fluid:       fluid,
		Amount:      amount,
		Size:        size,
	})
}

// BuildEngineConfig converts the lattice part of a config.
func BuildEngineConfig(cfg KMCConfig) (EngineConfig, error) {
	order, err := ParseNeighborOrder(cfg.Neighbor)
	if err != nil {
		return EngineConfig{}, err
	}
	policy, err := ParseSiteGroupPolicy(cfg.SiteType)
	if err != nil {
		return EngineConfig{}, err
	}
	mode, err := ParseRateMode(cfg.RateConstant)
	if err != nil {
		return EngineConfig{}, err
	}
	return EngineConfig{
		Size:         cfg.Size,
		Order:        order,
		Policy:       policy,
		Rate:         mode,
		Scale:        cfg.Scale,
		EmptySpecies: cfg.EmptySpecies,
	}, nil
}
