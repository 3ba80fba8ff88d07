package kmc

import (
	"fmt"
	"math"
	"strings"
)

// RateMode is the convention the mechanism's rate constants follow.
type RateMode int

const (
	// RateCoverage treats rate constants as continuum, coverage based values.
	RateCoverage RateMode = iota
	// RateEvent treats rate constants as per-event frequencies.
	RateEvent
)

// ParseRateMode accepts "coverage" or "event" (any case).
func ParseRateMode(s string) (RateMode, error) {
	switch strings.ToLower(s) {
	case "coverage", "":
		return RateCoverage, nil
	case "event":
		return RateEvent, nil
	}
	return 0, fmt.Errorf("%w: unknown rate constant type %q", ErrConfig, s)
}

func (m RateMode) String() string {
	if m == RateEvent {
		return "event"
	}
	return "coverage"
}

// Tolerances are the numeric thresholds of a run.
type Tolerances struct {
	// Double is the threshold below which a rate counts as zero.
	Double float64
	// Coverage is the precision coverages are compared with.
	Coverage float64
}

// DefaultTolerances returns machine epsilon for both thresholds.
func DefaultTolerances() Tolerances {
	return Tolerances{Double: DoubleEps, Coverage: DoubleEps}
}

// EngineConfig configures the lattice and rate conventions of an engine.
type EngineConfig struct {
	Size         int
	Order        NeighborOrder
	Policy       SiteGroupPolicy
	Rate         RateMode
	Scale        float64
	EmptySpecies string
	Logger       Logger
	Metrics      *Metrics
	// Label identifies the engine in metrics.
	Label string
}

// ReactionCount is the number of forward and reverse events of a reaction.
type ReactionCount struct {
	Reaction *Reaction
	Forward  int64
	Reverse  int64
}

type reactionLink struct {
	reaction  *Reaction
	forward   int
	reverse   int
	reactants []*Species
	products  []*Species
}

// Engine is the kinetic Monte Carlo driver: it owns the lattice, the
// ensemble class table and the random stream, and advances the surface one
// event at a time.
type Engine struct {
	mech    *Mechanism
	reactor Reactor
	rng     RNG
	cfg     EngineConfig
	log     Logger
	metrics *Metrics
	tol     Tolerances

	lattice *Lattice
	surface *Surface
	empty   *Species
	sites   int
	scale   float64

	maxCoordination int
	maxSites        int
	siteCount       []int

	classes   *classTable
	links     []reactionLink
	rateScale [][2]float64
	counts    []ReactionCount
	steps     int64

	nets []float64
	abs  []float64
	cum  []float64

	initialized bool
}

// NewEngine wires an engine to its mechanism, reactor and RNG. Call
// Initialize before stepping.
func NewEngine(mech *Mechanism, reactor Reactor, rng RNG, cfg EngineConfig) (*Engine, error) {
	if mech == nil {
		return nil, fmt.Errorf("%w: engine needs a mechanism", ErrConfig)
	}
	if reactor == nil {
		return nil, fmt.Errorf("%w: engine needs a reactor", ErrConfig)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: engine needs a random number generator", ErrConfig)
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.Scale < 0 {
		return nil, fmt.Errorf("%w: lattice scale must be positive, got %g", ErrConfig, cfg.Scale)
	}
	if cfg.EmptySpecies == "" {
		cfg.EmptySpecies = DefaultEmptySpecies
	}
	lattice, err := NewLattice(cfg.Size)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = NewNoOpLogger()
	}
	return &Engine{
		mech:    mech,
		reactor: reactor,
		rng:     rng,
		cfg:     cfg,
		log:     log,
		metrics: cfg.Metrics,
		tol:     DefaultTolerances(),
		lattice: lattice,
		sites:   lattice.Sites(),
		scale:   cfg.Scale,
		classes: newClassTable(),
	}, nil
}

// Initialize builds the lattice, environments and class table, computes the
// rate scale factors and seeds the initial coverages.
func (e *Engine) Initialize() error {
	if e.initialized {
		return fmt.Errorf("%w: engine already initialized", ErrConfig)
	}
	e.scale = e.reactor.InitializeKMC(e.sites, e.scale)
	e.maxCoordination = e.mech.MaxCoordination()
	e.maxSites = e.maxCoordination

	if e.maxCoordination > 0 {
		if e.sites > 0 {
			e.tol.Coverage = max(0.1/float64(e.sites), DoubleEps)
		} else if rs := e.reactor.Sites(); rs > e.tol.Double {
			e.tol.Coverage = max(0.1*e.scale/rs, DoubleEps)
		}
		empty, ok := e.mech.Species(e.cfg.EmptySpecies)
		if !ok {
			return fmt.Errorf("%w: surface species present but no empty site species %q in mechanism",
				ErrInput, e.cfg.EmptySpecies)
		}
		if empty.Coordination != 1 {
			return fmt.Errorf("%w: empty site species %s must occupy one site, got %d",
				ErrInput, empty.Name, empty.Coordination)
		}
		e.empty = empty
	} else {
		if err := e.lattice.SetSize(0); err != nil {
			return err
		}
		e.sites = 0
	}

	if err := e.buildClasses(); err != nil {
		return err
	}
	if err := e.lattice.Initialize(e.empty); err != nil {
		return err
	}
	if e.sites > 0 {
		surface, err := NewSurface(e.lattice, SurfaceSettings{
			Order:    e.cfg.Order,
			Policy:   e.cfg.Policy,
			MaxSites: e.maxSites,
			Empty:    e.empty,
		}, e.rng)
		if err != nil {
			return err
		}
		if err := surface.Initialize(); err != nil {
			return err
		}
		e.surface = surface
		all := make([]EnvID, len(surface.envs))
		for i := range all {
			all[i] = EnvID(i)
		}
		e.collectInstances(all)
	}
	if err := e.calcRateScale(); err != nil {
		return err
	}
	e.initialized = true
	if err := e.InitialCoverage(); err != nil {
		e.initialized = false
		return err
	}
	e.log.Infof("kmc engine initialized: sites=%d max_sites=%d scale=%g reactions=%d classes=%d",
		e.sites, e.maxSites, e.scale, len(e.links), len(e.classes.classes))
	return nil
}

// buildClasses creates one class per distinct reactant or product pattern
// of a surface reaction, plus classes of k empty sites used for seeding.
func (e *Engine) buildClasses() error {
	reactions := e.mech.Reactions()
	e.links = make([]reactionLink, len(reactions))
	e.counts = make([]ReactionCount, len(reactions))
	for i, rxn := range reactions {
		reactants, err := rxn.ReactantSeq()
		if err != nil {
			return err
		}
		products, err := rxn.ProductSeq()
		if err != nil {
			return err
		}
		re, pe := NewEnsemble(reactants), NewEnsemble(products)
		if re.Coordination() != pe.Coordination() {
			return fmt.Errorf("%w: reactants and products of %s (%s) do not have the same total coordination (%d != %d)",
				ErrInvariant, rxn.ID, rxn, re.Coordination(), pe.Coordination())
		}
		link := reactionLink{reaction: rxn, forward: -1, reverse: -1, reactants: reactants, products: products}
		if coord := re.Coordination(); coord > 0 && e.sites > 0 {
			e.maxSites = max(e.maxSites, coord)
			link.forward = e.classes.ensure(re)
			if rxn.Reversible() {
				link.reverse = e.classes.ensure(pe)
			}
		}
		e.links[i] = link
		e.counts[i] = ReactionCount{Reaction: rxn}
	}
	if e.sites > 0 {
		for k := 1; k <= e.maxCoordination; k++ {
			e.classes.ensure(NewEnsemble(e.emptySeq(k)))
		}
	}
	return nil
}

func (e *Engine) emptySeq(k int) []*Species {
	seq := make([]*Species, k)
	for i := range seq {
		seq[i] = e.empty
	}
	return seq
}

// collectInstances adds the instances registered at envs to the classes
// they match. Patterns no reaction uses are ignored.
func (e *Engine) collectInstances(envs []EnvID) {
	for _, id := range envs {
		env := e.surface.envs[id]
		for _, iid := range env.instances {
			inst := e.surface.instances[iid]
			if c, ok := e.classes.lookup(inst.Ensemble); ok {
				c.add(inst.ID)
			}
		}
	}
}

// dropInstances removes destroyed instances from their classes.
func (e *Engine) dropInstances(removed []*Instance) error {
	for _, inst := range removed {
		c, ok := e.classes.lookup(inst.Ensemble)
		if !ok {
			continue
		}
		if !c.remove(inst.ID) {
			return fmt.Errorf("%w: instance %d of %s was destroyed but never registered",
				ErrInvariant, inst.ID, inst.Ensemble)
		}
	}
	return nil
}

// Step performs events until the independent variable reaches xf and
// returns its final value. On error the returned value is where the run
// stopped.
func (e *Engine) Step(xi, xf float64) (float64, error) {
	if !e.initialized {
		return xi, fmt.Errorf("%w: engine", ErrNotInitialized)
	}
	x := xi
	for x < xf {
		sel, err := e.SelectReaction()
		if err != nil {
			return x, err
		}
		rxn := e.links[sel.Reaction].reaction
		e.log.Debugf("kmc step %d: x=%g reaction %s reverse=%t", e.steps+1, x, rxn.ID, sel.Reverse())
		if err := e.PerformReaction(sel); err != nil {
			return x, err
		}
		dx := -math.Log(e.rng.OpenFloat64()) / math.Abs(sel.Rate)
		e.reactor.KMCStep(e.mech.AllSpecies(), dx)
		x += dx
		e.steps++
		e.metrics.observeStep(e.cfg.Label, rxn.ID, sel.Reverse(), math.Abs(sel.Rate))
	}
	e.metrics.observeTime(e.cfg.Label, x)
	return x, nil
}

// PerformReaction applies the selected event to the surface and reactor.
func (e *Engine) PerformReaction(sel Selection) error {
	if sel.Reaction < 0 || sel.Reaction >= len(e.links) {
		return fmt.Errorf("%w: selected reaction %d out of range", ErrInvariant, sel.Reaction)
	}
	link := e.links[sel.Reaction]
	switch {
	case sel.Rate > 0:
		return e.perform(link.forward, link.reactants, link.products)
	case sel.Rate < 0:
		return e.perform(link.reverse, link.products, link.reactants)
	}
	return fmt.Errorf("%w: selected rate for %s is neither positive nor negative", ErrInvariant, link.reaction.ID)
}

// perform draws an instance of class (if any), swaps it for products and
// reports the molecule change to the reactor.
func (e *Engine) perform(class int, reactants, products []*Species) error {
	if class >= 0 {
		c := e.classes.classes[class]
		if c.len() < 1 {
			return fmt.Errorf("%w: %s", ErrNoInstances, c.ensemble)
		}
		id := c.at(e.rng.IntN(c.len()))
		inst, ok := e.surface.instances[id]
		if !ok {
			return fmt.Errorf("%w: class %s holds unknown instance %d", ErrInvariant, c.ensemble, id)
		}
		removed, affected, err := e.surface.envs[inst.Owner].ChangeEnsemble(id, products)
		if err != nil {
			return err
		}
		if err := e.dropInstances(removed); err != nil {
			return err
		}
		e.collectInstances(affected)
	}
	e.reactor.KMCReaction(reactants, products, e.scale)
	return nil
}

// Lattice returns the engine's lattice.
func (e *Engine) Lattice() *Lattice { return e.lattice }

// Surface returns the environments, or nil when no lattice is used.
func (e *Engine) Surface() *Surface { return e.surface }

// Mechanism returns the simulated mechanism.
func (e *Engine) Mechanism() *Mechanism { return e.mech }

// Reactor returns the reactor collaborator.
func (e *Engine) Reactor() Reactor { return e.reactor }

// Steps returns the number of events performed.
func (e *Engine) Steps() int64 { return e.steps }

// Scale returns the lattice-to-reactor scale in use.
func (e *Engine) Scale() float64 { return e.scale }

// Sites returns the number of lattice sites (zero without a lattice).
func (e *Engine) Sites() int { return e.sites }

// MaxSites returns the largest ensemble size any reaction needs.
func (e *Engine) MaxSites() int { return e.maxSites }

// Tolerances returns the numeric thresholds in use.
func (e *Engine) Tolerances() Tolerances { return e.tol }

// EmptySpecies returns the vacant site species, or nil without surface species.
func (e *Engine) EmptySpecies() *Species { return e.empty }

// RateScale returns the forward and reverse scale factors of reaction i.
func (e *Engine) RateScale(i int) (float64, float64) {
	return e.rateScale[i][0], e.rateScale[i][1]
}

// SiteCount returns the number of site groups of exactly size sites.
func (e *Engine) SiteCount(size int) int {
	if size < 0 || size >= len(e.siteCount) {
		return 0
	}
	return e.siteCount[size]
}

// ClassSize returns how many instances of the ensemble built from seq are
// on the surface, or -1 when no reaction references that pattern.
func (e *Engine) ClassSize(seq []*Species) int {
	c, ok := e.classes.lookup(NewEnsemble(seq))
	if !ok {
		return -1
	}
	return c.len()
}

// Counts returns the per-reaction event counters.
func (e *Engine) Counts() []ReactionCount {
	out := make([]ReactionCount, len(e.counts))
	copy(out, e.counts)
	return out
}
