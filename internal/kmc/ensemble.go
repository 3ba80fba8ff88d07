package kmc

import (
	"slices"
	"strconv"
	"strings"
)

// Ensemble is an order independent multiset of surface species forming one
// side of a surface reaction. Fluid species are dropped on construction.
// Ensembles are immutable and compare equal when they hold the same species
// regardless of the order they were built from.
type Ensemble struct {
	species      []*Species
	coordination int
	key          string
}

// NewEnsemble builds the canonical ensemble of seq.
func NewEnsemble(seq []*Species) Ensemble {
	species := make([]*Species, 0, len(seq))
	coord := 0
	for _, sp := range seq {
		if sp == nil || !sp.IsSurface() {
			continue
		}
		species = append(species, sp)
		coord += sp.Coordination
	}
	slices.SortStableFunc(species, func(a, b *Species) int {
		return int(a.ID) - int(b.ID)
	})
	var key strings.Builder
	for i, sp := range species {
		if i > 0 {
			key.WriteByte(',')
		}
		key.WriteString(strconv.Itoa(int(sp.ID)))
	}
	return Ensemble{species: species, coordination: coord, key: key.String()}
}

// Key is a canonical string identifying the ensemble's pattern.
func (e Ensemble) Key() string {
	return e.key
}

// Coordination is the total number of sites covered by the ensemble.
func (e Ensemble) Coordination() int {
	return e.coordination
}

// Size is the number of species in the ensemble.
func (e Ensemble) Size() int {
	return len(e.species)
}

// Species returns a copy of the sorted species sequence.
func (e Ensemble) Species() []*Species {
	return slices.Clone(e.species)
}

// Equal reports whether both ensembles hold the same multiset.
func (e Ensemble) Equal(o Ensemble) bool {
	return e.key == o.key
}

// Compare orders ensembles lexicographically on their sorted species IDs;
// a proper prefix sorts first.
func (e Ensemble) Compare(o Ensemble) int {
	return slices.CompareFunc(e.species, o.species, func(a, b *Species) int {
		return int(a.ID) - int(b.ID)
	})
}

func (e Ensemble) String() string {
	names := make([]string, len(e.species))
	for i, sp := range e.species {
		names[i] = sp.Name
	}
	return "{" + strings.Join(names, ", ") + "}"
}
