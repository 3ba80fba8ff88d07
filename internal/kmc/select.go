package kmc

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Selection is the outcome of one draw: the index of the reaction in the
// mechanism and the signed total propensity. A negative Rate means the
// reverse direction was chosen.
type Selection struct {
	Reaction int
	Rate     float64
}

// Reverse reports whether the reverse direction was chosen.
func (s Selection) Reverse() bool {
	return s.Rate < 0
}

// NetRate returns the scaled forward minus reverse propensity of reaction i
// in the current state.
func (e *Engine) NetRate(i int) (float64, error) {
	if i < 0 || i >= len(e.links) {
		return 0, fmt.Errorf("%w: reaction index %d out of range", ErrInput, i)
	}
	return e.netRate(e.links[i], e.rateScale[i]), nil
}

func (e *Engine) netRate(link reactionLink, scale [2]float64) float64 {
	rxn := link.reaction
	temperature := e.reactor.Temperature()
	var f, r float64
	if e.sites > 0 {
		f = rxn.FluidForwardRate(temperature)
		r = rxn.FluidReverseRate(temperature)
	} else {
		f = rxn.ForwardRate(temperature)
		r = rxn.ReverseRate(temperature)
	}
	f, r = e.checkQuantities(rxn, f, r)
	if link.forward >= 0 {
		f *= float64(e.classes.classes[link.forward].len())
		if link.reverse >= 0 {
			r *= float64(e.classes.classes[link.reverse].len())
		}
	}
	f *= scale[0]
	r *= scale[1]
	return f - r
}

// checkQuantities zeroes a direction that is negligible or would drive a
// reactor quantity negative.
func (e *Engine) checkQuantities(rxn *Reaction, f, r float64) (float64, float64) {
	if f <= e.tol.Double || !e.reactor.KMCQuantities(rxn.Net(), e.scale) {
		f = 0
	}
	if r <= e.tol.Double || !e.reactor.KMCQuantities(rxn.Net(), -e.scale) {
		r = 0
	}
	return f, r
}

// SelectReaction draws the next event with probability proportional to the
// magnitude of each reaction's net propensity.
func (e *Engine) SelectReaction() (Selection, error) {
	if !e.initialized {
		return Selection{}, fmt.Errorf("%w: engine", ErrNotInitialized)
	}
	n := len(e.links)
	if n == 0 {
		return Selection{}, fmt.Errorf("%w: mechanism has no reactions", ErrNoReaction)
	}
	if len(e.nets) != n {
		e.nets = make([]float64, n)
		e.abs = make([]float64, n)
		e.cum = make([]float64, n)
	}
	for i, link := range e.links {
		e.nets[i] = e.netRate(link, e.rateScale[i])
		if e.nets[i] < 0 {
			e.abs[i] = -e.nets[i]
		} else {
			e.abs[i] = e.nets[i]
		}
	}
	floats.CumSum(e.cum, e.abs)
	total := e.cum[n-1]
	if total < e.tol.Double {
		return Selection{}, fmt.Errorf("%w: total propensity %g", ErrNoReaction, total)
	}
	threshold := total * e.rng.Float64()
	i := sort.Search(n, func(i int) bool { return e.cum[i] > threshold })
	if i == n {
		// threshold rounded onto the total; take the last reaction that can fire
		i = n - 1
		for i > 0 && e.abs[i] == 0 {
			i--
		}
	}
	sel := Selection{Reaction: i, Rate: total}
	if e.nets[i] < 0 {
		sel.Rate = -total
		e.counts[i].Reverse++
	} else {
		e.counts[i].Forward++
	}
	return sel, nil
}
