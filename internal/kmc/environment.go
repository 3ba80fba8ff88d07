package kmc

import (
	"fmt"
	"slices"
	"strings"
)

// EnvID indexes an environment. It equals row*N + col of its site.
type EnvID int

// InstanceID identifies one ensemble realized on the surface. IDs are never
// reused within a surface.
type InstanceID int64

// NeighborOrder selects which adjacent sites count as neighbors.
type NeighborOrder int

const (
	// NeighborSingle gives every site zero neighbors.
	NeighborSingle NeighborOrder = iota
	// NeighborNearest uses up, down, right and left.
	NeighborNearest
	// NeighborNextNearest adds the four diagonals.
	NeighborNextNearest
)

// ParseNeighborOrder accepts "single", "nn" or "nnn" (any case).
func ParseNeighborOrder(s string) (NeighborOrder, error) {
	switch strings.ToLower(s) {
	case "single":
		return NeighborSingle, nil
	case "nn", "":
		return NeighborNearest, nil
	case "nnn":
		return NeighborNextNearest, nil
	}
	return 0, fmt.Errorf("%w: unknown neighbor order %q", ErrConfig, s)
}

func (o NeighborOrder) String() string {
	switch o {
	case NeighborSingle:
		return "single"
	case NeighborNearest:
		return "nn"
	case NeighborNextNearest:
		return "nnn"
	}
	return "unknown"
}

// SiteGroupPolicy selects how multi-site groups are enumerated.
type SiteGroupPolicy int

const (
	// SiteGroupsRadial enumerates every connected group containing the site.
	SiteGroupsRadial SiteGroupPolicy = iota
	// SiteGroupsNeighbor enumerates the site plus any subset of its neighbors.
	SiteGroupsNeighbor
)

// ParseSiteGroupPolicy accepts "radial" or "neighbor" (any case).
func ParseSiteGroupPolicy(s string) (SiteGroupPolicy, error) {
	switch strings.ToLower(s) {
	case "radial", "":
		return SiteGroupsRadial, nil
	case "neighbor":
		return SiteGroupsNeighbor, nil
	}
	return 0, fmt.Errorf("%w: unknown site type %q", ErrConfig, s)
}

func (p SiteGroupPolicy) String() string {
	switch p {
	case SiteGroupsRadial:
		return "radial"
	case SiteGroupsNeighbor:
		return "neighbor"
	}
	return "unknown"
}

// SurfaceSettings are shared by every environment of a surface.
type SurfaceSettings struct {
	Order    NeighborOrder
	Policy   SiteGroupPolicy
	MaxSites int
	Empty    *Species
}

// Instance is an ensemble realized at a specific set of sites. Members is
// sorted and must not be modified.
type Instance struct {
	ID       InstanceID
	Ensemble Ensemble
	Owner    EnvID
	Members  []EnvID
}

// Environment tracks one lattice site: its neighbors, the site groups
// anchored at it and the ensembles those groups currently realize.
type Environment struct {
	ID EnvID

	surface     *Surface
	site        *Site
	multisite   []EnvID
	neighbors   []EnvID
	touching    []EnvID
	groups      [][]EnvID
	instances   []InstanceID
	initialized bool
}

// Site returns the lattice site at the centre of the environment.
func (e *Environment) Site() *Site {
	return e.site
}

// Occupant returns the species on the site and, for a multi-site species,
// the other environments it covers.
func (e *Environment) Occupant() (*Species, []EnvID) {
	return e.site.Occupant, e.multisite
}

// Neighbors returns the adjacent environments in neighbor order.
func (e *Environment) Neighbors() []EnvID {
	return slices.Clone(e.neighbors)
}

// Touching returns every environment whose ensembles can change when this
// site changes, sorted.
func (e *Environment) Touching() []EnvID {
	return slices.Clone(e.touching)
}

// SiteGroups returns the site groups anchored here, ordered by size.
func (e *Environment) SiteGroups() [][]EnvID {
	return e.groups
}

// Instances returns the ensembles currently realized at this environment.
func (e *Environment) Instances() []*Instance {
	out := make([]*Instance, 0, len(e.instances))
	for _, id := range e.instances {
		out = append(out, e.surface.instances[id])
	}
	return out
}

// IsNeighbor reports whether id is adjacent to this environment.
func (e *Environment) IsNeighbor(id EnvID) bool {
	return slices.Contains(e.neighbors, id)
}

// SetNeighbors computes the adjacent environments with periodic wrap. Order
// is up, down, right, left, then up-left, up-right, down-left, down-right.
// On lattices too small to hold distinct neighbors, repeats and the site
// itself are dropped.
func (e *Environment) SetNeighbors() error {
	order := e.surface.settings.Order
	e.neighbors = e.neighbors[:0]
	switch order {
	case NeighborSingle:
		return nil
	case NeighborNearest, NeighborNextNearest:
	default:
		return fmt.Errorf("%w: unknown neighbor order %d", ErrConfig, order)
	}

	n := e.surface.lattice.Size()
	row, col := e.site.Row, e.site.Col
	up, down := (row-1+n)%n, (row+1)%n
	left, right := (col-1+n)%n, (col+1)%n

	cells := [][2]int{{up, col}, {down, col}, {row, right}, {row, left}}
	if order == NeighborNextNearest {
		cells = append(cells, [2]int{up, left}, [2]int{up, right}, [2]int{down, left}, [2]int{down, right})
	}
	for _, c := range cells {
		id := EnvID(c[0]*n + c[1])
		if id == e.ID || slices.Contains(e.neighbors, id) {
			continue
		}
		e.neighbors = append(e.neighbors, id)
	}
	return nil
}

// DiscoverSiteGroups enumerates the site groups of up to maxSize sites
// anchored at this environment, and the touching set. It depends only on
// topology and is run once.
func (e *Environment) DiscoverSiteGroups(maxSize int) error {
	if maxSize < 1 {
		return fmt.Errorf("%w: maximum ensemble size must be >= 1, got %d", ErrConfig, maxSize)
	}
	switch policy := e.surface.settings.Policy; policy {
	case SiteGroupsRadial:
		e.touching, e.groups = e.surface.radialGroups(e, maxSize)
	case SiteGroupsNeighbor:
		if maxSize > len(e.neighbors)+1 {
			return fmt.Errorf("%w: neighbor site type affords %d site ensembles, but the mechanism requires %d",
				ErrConfig, len(e.neighbors)+1, maxSize)
		}
		e.touching, e.groups = e.surface.neighborGroups(e, maxSize)
	default:
		return fmt.Errorf("%w: unknown site type %d", ErrConfig, policy)
	}
	e.initialized = true
	return nil
}

// RefreshEnsembles drops the ensembles registered here and re-derives them
// from the current occupants of every site group.
func (e *Environment) RefreshEnsembles() {
	s := e.surface
	for _, id := range e.instances {
		delete(s.instances, id)
	}
	e.instances = e.instances[:0]
	for _, g := range e.groups {
		if e.excluded(len(g)) {
			continue
		}
		seq, ok := s.occupantSequence(g)
		if !ok {
			continue
		}
		s.register(e, seq, g)
	}
}

// excluded skips the largest neighbor-chained groups around a vacant centre
// when the group spans the whole neighborhood.
func (e *Environment) excluded(size int) bool {
	st := e.surface.settings
	if st.Policy != SiteGroupsNeighbor || e.site.Occupant != st.Empty || size != st.MaxSites {
		return false
	}
	switch st.Order {
	case NeighborNearest:
		return st.MaxSites == 5
	case NeighborNextNearest:
		return st.MaxSites == 9
	}
	return false
}

// PlaceSpecies lays species onto exactly the environments in envs, trying
// the connected groups for each species in random order and backtracking on
// dead ends. It reports false when no arrangement fits.
func (e *Environment) PlaceSpecies(species []*Species, envs []EnvID) (bool, error) {
	if len(species) == 0 {
		if len(envs) > 0 {
			return false, fmt.Errorf("%w: all species placed but %d sites remain", ErrInvariant, len(envs))
		}
		return true, nil
	}
	sp := species[0]
	if sp.Coordination < 1 {
		return false, fmt.Errorf("%w: species %s is not a surface species and cannot be placed", ErrInput, sp.Name)
	}

	s := e.surface
	candidates := s.connectedSubsets(sp.Coordination, envs)
	shuffle(s.rng, candidates)
	for _, group := range candidates {
		rest := make([]EnvID, 0, len(envs)-len(group))
		for _, id := range envs {
			if !slices.Contains(group, id) {
				rest = append(rest, id)
			}
		}
		ok, err := e.PlaceSpecies(species[1:], rest)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		for _, id := range group {
			var others []EnvID
			if len(group) > 1 {
				others = make([]EnvID, 0, len(group)-1)
				for _, o := range group {
					if o != id {
						others = append(others, o)
					}
				}
			}
			s.envs[id].setOccupant(sp, others)
		}
		return true, nil
	}
	return false, nil
}

func (e *Environment) setOccupant(sp *Species, others []EnvID) {
	e.site.Occupant = sp
	e.multisite = others
}

// ChangeEnsemble replaces the instance id, owned by this environment, with
// products. It returns every instance that was registered in the affected
// neighborhood (all of them are now gone) and the affected environments,
// whose ensembles have been re-derived.
func (e *Environment) ChangeEnsemble(id InstanceID, products []*Species) ([]*Instance, []EnvID, error) {
	if !e.initialized {
		return nil, nil, fmt.Errorf("%w: environment %d", ErrNotInitialized, e.ID)
	}
	s := e.surface
	inst, ok := s.instances[id]
	if !ok || inst.Owner != e.ID {
		return nil, nil, fmt.Errorf("%w: instance %d is not owned by environment %d", ErrInvariant, id, e.ID)
	}

	affected := make(map[EnvID]struct{}, len(e.touching)+1)
	affected[e.ID] = struct{}{}
	for _, t := range e.touching {
		affected[t] = struct{}{}
	}
	for _, m := range inst.Members {
		for _, t := range s.envs[m].touching {
			affected[t] = struct{}{}
		}
	}
	changed := make([]EnvID, 0, len(affected))
	for a := range affected {
		changed = append(changed, a)
	}
	slices.Sort(changed)

	var removed []*Instance
	for _, a := range changed {
		for _, rid := range s.envs[a].instances {
			removed = append(removed, s.instances[rid])
		}
	}

	prods := NewEnsemble(products)
	if inst.Ensemble.Coordination() != prods.Coordination() {
		return nil, nil, fmt.Errorf("%w: total coordination of reactants (%d) does not match products (%d)",
			ErrInvariant, inst.Ensemble.Coordination(), prods.Coordination())
	}
	surfaceProducts := prods.Species()
	shuffle(s.rng, surfaceProducts)
	placed, err := e.PlaceSpecies(surfaceProducts, inst.Members)
	if err != nil {
		return nil, nil, err
	}
	if !placed {
		return nil, nil, fmt.Errorf("%w: cannot lay %s onto sites %v", ErrPlacement, prods, inst.Members)
	}

	for _, a := range changed {
		s.envs[a].RefreshEnsembles()
	}
	return removed, changed, nil
}
