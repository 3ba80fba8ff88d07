package kmc

import (
	"fmt"
	"math"
)

// InitialCoverage lays every surface species with a positive starting
// coverage onto the lattice and sets the empty site coverage to what is
// left over. A nonzero configured empty coverage must agree with that
// remainder.
func (e *Engine) InitialCoverage() error {
	if e.empty == nil {
		return nil
	}
	if !e.initialized {
		return fmt.Errorf("%w: engine", ErrNotInitialized)
	}
	emptyCoverage := e.empty.Quantity
	e.empty.Quantity = 1
	total := 0.0
	for _, sp := range e.mech.AllSpecies() {
		if sp == e.empty || !sp.IsSurface() || sp.Quantity <= 0 {
			continue
		}
		coverage := sp.Quantity
		coord := float64(sp.Coordination)
		limit := 1.0
		if e.sites > 0 {
			limit += 0.5 * coord / float64(e.sites)
		}
		if total+coverage*coord > limit {
			return fmt.Errorf("%w: sum of initial coverages exceeds 1 (%g)", ErrInput, total+coverage*coord)
		}
		if e.sites > 0 {
			sp.Quantity = 0
			for sp.Quantity < coverage-0.5/float64(e.sites) {
				placed, err := e.placeOnce(sp)
				if err != nil {
					return err
				}
				if !placed {
					e.log.Warnf("initial coverage of %s stopped at %g: no room for another molecule", sp.Name, sp.Quantity)
					break
				}
			}
		}
		total += sp.Quantity * coord
	}
	leftOver := 1 - total
	if emptyCoverage > e.tol.Coverage && math.Abs(emptyCoverage-leftOver) > e.tol.Coverage {
		return fmt.Errorf("%w: empty site coverage %g does not agree with %g left over after placing other surface species",
			ErrInput, emptyCoverage, leftOver)
	}
	e.empty.Quantity = leftOver
	return nil
}

// placeOnce replaces one group of empty sites with a molecule of sp. It
// reports false when no such group is left.
func (e *Engine) placeOnce(sp *Species) (bool, error) {
	reactants := e.emptySeq(sp.Coordination)
	c, ok := e.classes.lookup(NewEnsemble(reactants))
	if !ok {
		return false, fmt.Errorf("%w: no class of %d empty sites", ErrInvariant, sp.Coordination)
	}
	if c.len() < 1 {
		return false, nil
	}
	if err := e.perform(e.classes.byKey[c.ensemble.Key()], reactants, []*Species{sp}); err != nil {
		return false, err
	}
	return true, nil
}
