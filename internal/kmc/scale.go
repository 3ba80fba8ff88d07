package kmc

import (
	"fmt"
	"math"
)

// calcRateScale fills the per-reaction forward and reverse factors that
// turn a mechanism rate into an event propensity on this lattice.
func (e *Engine) calcRateScale() error {
	e.siteCount = make([]int, e.maxSites+1)
	if e.surface != nil {
		counts, err := e.surface.SiteCounts()
		if err != nil {
			return err
		}
		e.siteCount = counts
	}
	e.rateScale = make([][2]float64, len(e.links))
	if e.cfg.Rate == RateEvent {
		for i, link := range e.links {
			scale := 1.0
			if link.forward >= 0 {
				coord := e.classes.classes[link.forward].ensemble.Coordination()
				if coord < 1 {
					return fmt.Errorf("%w: ensemble for reaction %s has nonpositive size", ErrInvariant, link.reaction.ID)
				}
				if e.siteCount[coord] < 1 {
					return fmt.Errorf("%w: no site groups of size %d, cannot perform reaction %s",
						ErrConfig, coord, link.reaction)
				}
				if e.cfg.Policy == SiteGroupsRadial {
					// every site of a group sees it once
					scale /= float64(coord)
				} else if coord == 2 {
					scale /= 2
				}
			}
			e.rateScale[i] = [2]float64{scale, scale}
		}
		return nil
	}

	reactorScale := e.reactor.RateUnits() / e.scale
	for i, link := range e.links {
		f, r := reactorScale, reactorScale
		if link.forward >= 0 {
			inv, err := e.siteScale(link)
			if err != nil {
				return err
			}
			f *= inv
			r *= inv
			ms, err := e.multisiteScale(link.reactants)
			if err != nil {
				return err
			}
			f *= ms
			f *= coverageScale(link.reaction.Reactants)
			if link.reaction.Reversible() {
				ms, err := e.multisiteScale(link.products)
				if err != nil {
					return err
				}
				r *= ms
				r *= coverageScale(link.reaction.Products)
			}
		}
		e.rateScale[i] = [2]float64{f, r}
		e.log.Debugf("rate scale %s: forward=%g reverse=%g", link.reaction.ID, f, r)
	}
	return nil
}

// siteScale is the inverse of the number of groups the reaction's
// ensemble could occupy, or zero when the lattice has none.
func (e *Engine) siteScale(link reactionLink) (float64, error) {
	coord := e.classes.classes[link.forward].ensemble.Coordination()
	n, err := e.getSiteCount(coord)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 1 / float64(n), nil
	}
	return 0, nil
}

// multisiteScale corrects for multi-site species, whose maximum count is
// bounded by the site total rather than by the groups of their size.
func (e *Engine) multisiteScale(seq []*Species) (float64, error) {
	if e.sites < 1 {
		return 1, nil
	}
	scale := 1.0
	for _, sp := range seq {
		if sp.Coordination > 1 {
			n, err := e.getSiteCount(sp.Coordination)
			if err != nil {
				return 0, err
			}
			scale *= float64(n) / float64(e.sites)
		}
	}
	return scale, nil
}

func (e *Engine) getSiteCount(size int) (int, error) {
	if size < 1 {
		return 0, fmt.Errorf("%w: ensemble size %d must be at least 1", ErrInvariant, size)
	}
	if size > e.maxSites {
		return 0, fmt.Errorf("%w: ensemble size %d exceeds the maximum of %d", ErrInvariant, size, e.maxSites)
	}
	return e.siteCount[size], nil
}

// coverageScale bounds the rate by the largest product of coverages the
// surface species of side can reach:
//
//	prod_i (n_i/m_i)^n_i / (sum_i n_i)^(sum_i n_i)
//
// with n the power and m the coordination of surface species i.
func coverageScale(side []Stoich) float64 {
	scale, sum := 1.0, 0.0
	for _, s := range side {
		if !s.Species.IsSurface() {
			continue
		}
		scale *= math.Pow(s.Power/float64(s.Species.Coordination), s.Power)
		sum += s.Power
	}
	// math.Pow(0, 0) is 1
	return scale / math.Pow(sum, sum)
}
