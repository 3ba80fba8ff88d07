package kmc

import "strings"

// DefaultEmptySpecies is the name of the species occupying a vacant site.
const DefaultEmptySpecies = "@"

// SpeciesID indexes a species inside its Mechanism.
type SpeciesID int

// Species is a chemical species taking part in the mechanism.
// Coordination is the number of lattice sites it occupies; zero means the
// species lives in the fluid phase. Quantity is a coverage for surface
// species and a pressure or concentration for fluid species, depending on
// the reactor.
type Species struct {
	ID           SpeciesID
	Name         string
	Description  string
	Coordination int
	Quantity     float64
}

// IsSurface reports whether the species occupies lattice sites.
func (s *Species) IsSurface() bool {
	return s.Coordination > 0
}

func (s *Species) String() string {
	return s.Name
}

// CoordinationFromName counts the leading '@' characters of a species name,
// so "@" and "@CO" take one site and "@@O2" takes two.
func CoordinationFromName(name string) int {
	return len(name) - len(strings.TrimLeft(name, "@"))
}
