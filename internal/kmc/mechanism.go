package kmc

import "fmt"

// Mechanism defines the species and elementary reactions of a surface
// chemistry. Species IDs are their index in the mechanism, so a Mechanism
// belongs to exactly one simulation.
type Mechanism struct {
	Name        string
	species     []*Species
	byName      map[string]*Species
	reactions   []*Reaction
	reactionIDs map[string]struct{}
}

// NewMechanism creates a new mechanism with the given name.
// The mechanism starts with no species or reactions.
func NewMechanism(name string) *Mechanism {
	return &Mechanism{
		Name:        name,
		byName:      make(map[string]*Species),
		reactionIDs: make(map[string]struct{}),
	}
}

// AddSpecies registers a species. A negative coordination is replaced by the
// count of leading '@' characters in the name.
func (m *Mechanism) AddSpecies(name, description string, coordination int, quantity float64) (*Species, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: species name is required", ErrInput)
	}
	if _, exists := m.byName[name]; exists {
		return nil, fmt.Errorf("%w: duplicate species name: %s", ErrInput, name)
	}
	if coordination < 0 {
		coordination = CoordinationFromName(name)
	}
	sp := &Species{
		ID:           SpeciesID(len(m.species)),
		Name:         name,
		Description:  description,
		Coordination: coordination,
		Quantity:     quantity,
	}
	m.species = append(m.species, sp)
	m.byName[name] = sp
	return sp, nil
}

// AddReaction appends a reaction whose species all belong to this mechanism.
func (m *Mechanism) AddReaction(r *Reaction) error {
	if r == nil {
		return fmt.Errorf("%w: reaction cannot be nil", ErrInput)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: reaction ID is required", ErrInput)
	}
	if _, exists := m.reactionIDs[r.ID]; exists {
		return fmt.Errorf("%w: duplicate reaction ID: %s", ErrInput, r.ID)
	}
	for _, side := range [][]Stoich{r.Reactants, r.Products} {
		for _, s := range side {
			if !m.owns(s.Species) {
				return fmt.Errorf("%w: reaction %s uses species %s not in mechanism %s",
					ErrInput, r.ID, s.Species.Name, m.Name)
			}
		}
	}
	m.reactionIDs[r.ID] = struct{}{}
	m.reactions = append(m.reactions, r)
	return nil
}

func (m *Mechanism) owns(sp *Species) bool {
	id := int(sp.ID)
	return id >= 0 && id < len(m.species) && m.species[id] == sp
}

// Species retrieves a species by name.
// Returns the species and a boolean indicating if it was found.
func (m *Mechanism) Species(name string) (*Species, bool) {
	sp, ok := m.byName[name]
	return sp, ok
}

// SpeciesByID returns the species with the given ID.
func (m *Mechanism) SpeciesByID(id SpeciesID) *Species {
	return m.species[id]
}

// AllSpecies returns the species in registration order.
func (m *Mechanism) AllSpecies() []*Species {
	return m.species
}

// Reactions returns all reactions in registration order.
func (m *Mechanism) Reactions() []*Reaction {
	return m.reactions
}

// MaxCoordination returns the largest site footprint of any species.
func (m *Mechanism) MaxCoordination() int {
	maxCoord := 0
	for _, sp := range m.species {
		maxCoord = max(maxCoord, sp.Coordination)
	}
	return maxCoord
}
