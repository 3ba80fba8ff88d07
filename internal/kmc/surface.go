package kmc

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Surface owns one Environment per lattice site and the registry of
// ensemble instances realized on it.
type Surface struct {
	lattice   *Lattice
	settings  SurfaceSettings
	rng       RNG
	envs      []*Environment
	instances map[InstanceID]*Instance
	nextID    InstanceID
}

// NewSurface creates the environments of an initialized lattice. Call
// Initialize before use.
func NewSurface(lattice *Lattice, settings SurfaceSettings, rng RNG) (*Surface, error) {
	if lattice == nil || !lattice.Initialized() {
		return nil, fmt.Errorf("%w: surface needs an initialized lattice", ErrNotInitialized)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: surface needs a random number generator", ErrConfig)
	}
	s := &Surface{
		lattice:   lattice,
		settings:  settings,
		rng:       rng,
		envs:      make([]*Environment, lattice.Sites()),
		instances: make(map[InstanceID]*Instance),
	}
	for i := range s.envs {
		s.envs[i] = &Environment{ID: EnvID(i), surface: s, site: lattice.siteAt(i)}
	}
	return s, nil
}

// Initialize wires neighbors, enumerates site groups and registers the
// ensembles found on the current occupancy.
func (s *Surface) Initialize() error {
	for _, e := range s.envs {
		if err := e.SetNeighbors(); err != nil {
			return err
		}
	}
	for _, e := range s.envs {
		if err := e.DiscoverSiteGroups(s.settings.MaxSites); err != nil {
			return err
		}
		e.RefreshEnsembles()
	}
	return nil
}

// Lattice returns the underlying lattice.
func (s *Surface) Lattice() *Lattice {
	return s.lattice
}

// Settings returns the surface-wide settings.
func (s *Surface) Settings() SurfaceSettings {
	return s.settings
}

// Environment returns the environment with the given ID.
func (s *Surface) Environment(id EnvID) *Environment {
	return s.envs[id]
}

// Environments returns all environments in ID order.
func (s *Surface) Environments() []*Environment {
	return s.envs
}

// Instance looks up a registered instance.
func (s *Surface) Instance(id InstanceID) (*Instance, bool) {
	inst, ok := s.instances[id]
	return inst, ok
}

// InstanceCount returns how many instances are registered.
func (s *Surface) InstanceCount() int {
	return len(s.instances)
}

// SiteCounts returns, for each size k in [0, MaxSites], how many site groups
// of exactly k sites exist over the whole surface.
func (s *Surface) SiteCounts() ([]int, error) {
	counts := make([]int, s.settings.MaxSites+1)
	for _, e := range s.envs {
		for _, g := range e.groups {
			if len(g) < 1 || len(g) > s.settings.MaxSites {
				return nil, fmt.Errorf("%w: site group of size %d outside [1, %d]",
					ErrInvariant, len(g), s.settings.MaxSites)
			}
			counts[len(g)]++
		}
	}
	return counts, nil
}

func (s *Surface) register(owner *Environment, seq []*Species, members []EnvID) {
	s.nextID++
	inst := &Instance{
		ID:       s.nextID,
		Ensemble: NewEnsemble(seq),
		Owner:    owner.ID,
		Members:  members,
	}
	s.instances[inst.ID] = inst
	owner.instances = append(owner.instances, inst.ID)
}

// occupantSequence lists the occupants of group. A multi-site occupant must
// lie entirely inside the group and is listed once per full footprint.
func (s *Surface) occupantSequence(group []EnvID) ([]*Species, bool) {
	seq := make([]*Species, 0, len(group))
	multisite := false
	for _, id := range group {
		env := s.envs[id]
		sp := env.site.Occupant
		if sp == nil {
			return nil, false
		}
		if len(env.multisite) > 0 {
			multisite = true
			for _, other := range env.multisite {
				if _, found := slices.BinarySearch(group, other); !found {
					return nil, false
				}
			}
		}
		seq = append(seq, sp)
	}
	if !multisite {
		return seq, true
	}

	counts := make(map[*Species]int, len(seq))
	var order []*Species
	for _, sp := range seq {
		if counts[sp] == 0 {
			order = append(order, sp)
		}
		counts[sp]++
	}
	seq = seq[:0]
	for _, sp := range order {
		for range counts[sp] / sp.Coordination {
			seq = append(seq, sp)
		}
	}
	return seq, len(seq) > 0
}

// radialGroups returns every connected set of at most maxSize environments
// that contains e. Each level grows the previous one by one adjacent site.
func (s *Surface) radialGroups(e *Environment, maxSize int) ([]EnvID, [][]EnvID) {
	anchor := []EnvID{e.ID}
	groups := [][]EnvID{anchor}
	seen := map[string]struct{}{groupKey(anchor): {}}
	frontier := [][]EnvID{anchor}
	for size := 2; size <= maxSize && len(frontier) > 0; size++ {
		var next [][]EnvID
		for _, g := range frontier {
			for _, m := range g {
				for _, nb := range s.envs[m].neighbors {
					if _, in := slices.BinarySearch(g, nb); in {
						continue
					}
					grown := insertSorted(g, nb)
					key := groupKey(grown)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					next = append(next, grown)
				}
			}
		}
		groups = append(groups, next...)
		frontier = next
	}
	sortGroups(groups)
	return unionOf(groups), groups
}

// neighborGroups returns e together with every subset of its neighbors of
// at most maxSize-1 elements. The touching set is e and its neighbors.
func (s *Surface) neighborGroups(e *Environment, maxSize int) ([]EnvID, [][]EnvID) {
	groups := [][]EnvID{{e.ID}}
	combos := [][]int{{}}
	for size := 1; size < maxSize; size++ {
		var next [][]int
		for _, c := range combos {
			start := 0
			if len(c) > 0 {
				start = c[len(c)-1] + 1
			}
			for i := start; i < len(e.neighbors); i++ {
				grown := append(slices.Clone(c), i)
				next = append(next, grown)
				g := []EnvID{e.ID}
				for _, idx := range grown {
					g = append(g, e.neighbors[idx])
				}
				slices.Sort(g)
				groups = append(groups, g)
			}
		}
		combos = next
	}
	sortGroups(groups)
	touching := append([]EnvID{e.ID}, e.neighbors...)
	slices.Sort(touching)
	return touching, groups
}

// connectedSubsets returns every group of size environments drawn from pool
// in which each member was added next to an earlier one.
func (s *Surface) connectedSubsets(size int, pool []EnvID) [][]EnvID {
	level := make([][]EnvID, 0, len(pool))
	for _, id := range pool {
		level = append(level, []EnvID{id})
	}
	for k := 2; k <= size; k++ {
		seen := make(map[string]struct{})
		var next [][]EnvID
		for _, id := range pool {
			for _, g := range level {
				if _, in := slices.BinarySearch(g, id); in {
					continue
				}
				for _, m := range g {
					if !s.envs[m].IsNeighbor(id) {
						continue
					}
					grown := insertSorted(g, id)
					key := groupKey(grown)
					if _, dup := seen[key]; !dup {
						seen[key] = struct{}{}
						next = append(next, grown)
					}
					break
				}
			}
		}
		level = next
	}
	sortGroups(level)
	return level
}

func insertSorted(g []EnvID, id EnvID) []EnvID {
	i, _ := slices.BinarySearch(g, id)
	out := make([]EnvID, 0, len(g)+1)
	out = append(out, g[:i]...)
	out = append(out, id)
	return append(out, g[i:]...)
}

func groupKey(g []EnvID) string {
	var b strings.Builder
	for i, id := range g {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	return b.String()
}

func sortGroups(groups [][]EnvID) {
	slices.SortFunc(groups, func(a, b []EnvID) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return slices.Compare(a, b)
	})
}

func unionOf(groups [][]EnvID) []EnvID {
	var all []EnvID
	for _, g := range groups {
		all = append(all, g...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}
