package kmc

import (
	"fmt"
	"math"
	"strings"
)

// Stoich is one species entry on a side of a reaction. Power is the exponent
// applied to the species quantity in the rate law. Unless PowerSet is true it
// follows the coefficient, so an explicit zero power needs PowerSet.
type Stoich struct {
	Species     *Species
	Coefficient float64
	Power       float64
	PowerSet    bool
}

// Reaction is an elementary step of the mechanism. A nil Reverse rate
// constant makes the reaction irreversible.
type Reaction struct {
	ID        string
	Name      string
	Reactants []Stoich
	Products  []Stoich
	Forward   RateConstant
	Reverse   RateConstant

	net []Stoich
}

// NewReaction builds a reaction, merging repeated species on each side.
func NewReaction(id, name string, reactants, products []Stoich, forward, reverse RateConstant) (*Reaction, error) {
	if forward == nil {
		return nil, fmt.Errorf("%w: reaction %s has no forward rate constant", ErrInput, id)
	}
	r := &Reaction{
		ID:      id,
		Name:    name,
		Forward: forward,
		Reverse: reverse,
	}
	var err error
	if r.Reactants, err = mergeStoich(id, reactants); err != nil {
		return nil, err
	}
	if r.Products, err = mergeStoich(id, products); err != nil {
		return nil, err
	}
	r.net = netStoich(r.Reactants, r.Products)
	if r.Name == "" {
		r.Name = r.String()
	}
	return r, nil
}

func mergeStoich(id string, side []Stoich) ([]Stoich, error) {
	merged := make([]Stoich, 0, len(side))
	index := make(map[SpeciesID]int, len(side))
	for _, s := range side {
		if s.Species == nil {
			return nil, fmt.Errorf("%w: reaction %s references a nil species", ErrInput, id)
		}
		if s.Coefficient <= 0 {
			return nil, fmt.Errorf("%w: reaction %s: coefficient of %s must be positive", ErrInput, id, s.Species.Name)
		}
		if !s.PowerSet {
			s.Power = s.Coefficient
		}
		if i, ok := index[s.Species.ID]; ok {
			m := &merged[i]
			m.Coefficient += s.Coefficient
			switch {
			case m.PowerSet && s.PowerSet:
				return nil, fmt.Errorf("%w: reaction %s: power of %s is set more than once", ErrInput, id, s.Species.Name)
			case s.PowerSet:
				m.Power, m.PowerSet = s.Power, true
			case !m.PowerSet:
				m.Power = m.Coefficient
			}
			continue
		}
		index[s.Species.ID] = len(merged)
		merged = append(merged, s)
	}
	return merged, nil
}

// netStoich returns products minus reactants, in order of first appearance.
func netStoich(reactants, products []Stoich) []Stoich {
	net := make([]Stoich, 0, len(reactants)+len(products))
	index := make(map[SpeciesID]int)
	add := func(s Stoich, sign float64) {
		if i, ok := index[s.Species.ID]; ok {
			net[i].Coefficient += sign * s.Coefficient
			return
		}
		index[s.Species.ID] = len(net)
		net = append(net, Stoich{Species: s.Species, Coefficient: sign * s.Coefficient})
	}
	for _, s := range reactants {
		add(s, -1)
	}
	for _, s := range products {
		add(s, 1)
	}
	return net
}

// Reversible reports whether the reaction has a reverse rate constant.
func (r *Reaction) Reversible() bool {
	return r.Reverse != nil
}

// Net returns the net stoichiometric coefficients (products minus reactants).
func (r *Reaction) Net() []Stoich {
	return r.net
}

// ReactantSeq expands the reactants into one entry per molecule.
func (r *Reaction) ReactantSeq() ([]*Species, error) {
	return expandStoich(r.ID, r.Reactants)
}

// ProductSeq expands the products into one entry per molecule.
func (r *Reaction) ProductSeq() ([]*Species, error) {
	return expandStoich(r.ID, r.Products)
}

func expandStoich(id string, side []Stoich) ([]*Species, error) {
	var seq []*Species
	for _, s := range side {
		n := math.Round(s.Coefficient)
		if math.Abs(s.Coefficient-n) > 2*DoubleEps*math.Max(1, n) {
			return nil, fmt.Errorf("%w: reaction %s: non-integral coefficient %g for %s",
				ErrInput, id, s.Coefficient, s.Species.Name)
		}
		for range int(n) {
			seq = append(seq, s.Species)
		}
	}
	return seq, nil
}

// ForwardRate is k_f(T) times every reactant quantity raised to its power.
func (r *Reaction) ForwardRate(temperature float64) float64 {
	return r.Forward.Value(temperature) * quantityProduct(r.Reactants, false)
}

// ReverseRate is k_r(T) times every product quantity raised to its power,
// or zero for an irreversible reaction.
func (r *Reaction) ReverseRate(temperature float64) float64 {
	if r.Reverse == nil {
		return 0
	}
	return r.Reverse.Value(temperature) * quantityProduct(r.Products, false)
}

// FluidForwardRate is ForwardRate with surface species left out of the product.
func (r *Reaction) FluidForwardRate(temperature float64) float64 {
	return r.Forward.Value(temperature) * quantityProduct(r.Reactants, true)
}

// FluidReverseRate is ReverseRate with surface species left out of the product.
func (r *Reaction) FluidReverseRate(temperature float64) float64 {
	if r.Reverse == nil {
		return 0
	}
	return r.Reverse.Value(temperature) * quantityProduct(r.Products, true)
}

func quantityProduct(side []Stoich, fluidOnly bool) float64 {
	p := 1.0
	for _, s := range side {
		if fluidOnly && s.Species.IsSurface() {
			continue
		}
		p *= math.Pow(s.Species.Quantity, s.Power)
	}
	return p
}

func (r *Reaction) String() string {
	arrow := " -> "
	if r.Reversible() {
		arrow = " <=> "
	}
	return sideString(r.Reactants) + arrow + sideString(r.Products)
}

func sideString(side []Stoich) string {
	parts := make([]string, 0, len(side))
	for _, s := range side {
		if s.Coefficient == 1 {
			parts = append(parts, s.Species.Name)
		} else {
			parts = append(parts, formatFloat(s.Coefficient)+" "+s.Species.Name)
		}
	}
	return strings.Join(parts, " + ")
}
