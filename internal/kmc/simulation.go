package kmc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimulationID is a unique identifier for a simulation
type SimulationID string

// OutputSchedule is the increasing list of independent variable values at
// which state is reported. The first entry is where the run starts.
type OutputSchedule struct {
	points []float64
}

// NewOutputSchedule expands an OutputConfig: Points intervals evenly
// spaced over [Start, End], or Start followed by the explicit Times.
func NewOutputSchedule(cfg OutputConfig) (OutputSchedule, error) {
	if len(cfg.Times) > 0 {
		points := append([]float64{cfg.Start}, cfg.Times...)
		for i := 1; i < len(points); i++ {
			if points[i] <= points[i-1] {
				return OutputSchedule{}, fmt.Errorf("%w: output times must increase after start %g", ErrConfig, cfg.Start)
			}
		}
		return OutputSchedule{points: points}, nil
	}
	if cfg.Points < 1 || cfg.End <= cfg.Start {
		return OutputSchedule{}, fmt.Errorf("%w: output needs points >= 1 and end > start", ErrConfig)
	}
	points := make([]float64, cfg.Points+1)
	dx := (cfg.End - cfg.Start) / float64(cfg.Points)
	for i := range points {
		points[i] = cfg.Start + float64(i)*dx
	}
	points[cfg.Points] = cfg.End
	return OutputSchedule{points: points}, nil
}

// Points returns the output points.
func (s OutputSchedule) Points() []float64 {
	return append([]float64(nil), s.points...)
}

// Len returns the number of output points.
func (s OutputSchedule) Len() int {
	return len(s.points)
}

// SimulationOptions wires a simulation to its outputs. Every field is
// optional.
type SimulationOptions struct {
	Logger        Logger
	Metrics       *Metrics
	Notifications *NotificationManager
	NotifierIDs   []string
	// Output receives one tab separated row per output point.
	Output io.Writer
	// Surface receives the rendered lattice at every output point.
	Surface io.Writer
	// Counter receives the per-reaction event counts at every output point.
	Counter io.Writer
}

// SimulationStatus summarizes the progress of a simulation.
type SimulationStatus struct {
	ID     SimulationID `json:"id"`
	Name   string       `json:"name"`
	X      float64      `json:"x"`
	Steps  int64        `json:"steps"`
	Point  int          `json:"point"`
	Points int          `json:"points"`
	Done   bool         `json:"done"`
	Error  string       `json:"error,omitempty"`
}

// Simulation runs one engine through an output schedule. It is safe for
// concurrent use.
type Simulation struct {
	mu       sync.Mutex
	id       SimulationID
	cfg      SimulationConfig
	engine   *Engine
	schedule OutputSchedule
	opts     SimulationOptions
	log      Logger

	next    int
	x       float64
	header  bool
	failure error
	events  []OutputEvent

	stopCh    chan struct{}
	isRunning bool
}

// BuildSimulation validates cfg and assembles an initialized simulation.
func BuildSimulation(cfg SimulationConfig, opts SimulationOptions) (*Simulation, error) {
	if err := ValidateSimulationConfig(cfg); err != nil {
		return nil, err
	}
	id := SimulationID(cfg.ID)
	if id == "" {
		id = SimulationID(uuid.NewString())
	}
	log := opts.Logger
	if log == nil {
		log = NewNoOpLogger()
	}
	mech, err := BuildMechanism(cfg.Mechanism)
	if err != nil {
		return nil, fmt.Errorf("building mechanism: %w", err)
	}
	reactor, err := BuildReactor(cfg.Reactor)
	if err != nil {
		return nil, fmt.Errorf("building reactor: %w", err)
	}
	rng, err := NewRNG(cfg.KMC.RNG, cfg.KMC.Seed)
	if err != nil {
		return nil, err
	}
	ecfg, err := BuildEngineConfig(cfg.KMC)
	if err != nil {
		return nil, err
	}
	ecfg.Logger = log
	ecfg.Metrics = opts.Metrics
	ecfg.Label = string(id)
	engine, err := NewEngine(mech, reactor, rng, ecfg)
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing kmc engine: %w", err)
	}
	schedule, err := NewOutputSchedule(cfg.Output)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		id:       id,
		cfg:      cfg,
		engine:   engine,
		schedule: schedule,
		opts:     opts,
		log:      log,
		x:        schedule.points[0],
		stopCh:   make(chan struct{}),
	}, nil
}

// ID returns the simulation ID.
func (s *Simulation) ID() SimulationID { return s.id }

// Config returns the config the simulation was built from.
func (s *Simulation) Config() SimulationConfig { return s.cfg }

// Engine returns the underlying engine. Callers must not step it directly
// while the simulation is running.
func (s *Simulation) Engine() *Engine { return s.engine }

// Status reports the progress of the simulation.
func (s *Simulation) Status() SimulationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SimulationStatus{
		ID:     s.id,
		Name:   s.cfg.Mechanism.Name,
		X:      s.x,
		Steps:  s.engine.Steps(),
		Point:  s.next,
		Points: s.schedule.Len(),
		Done:   s.doneLocked(),
	}
	if s.failure != nil {
		st.Error = s.failure.Error()
	}
	return st
}

// Done reports whether every output point has been reached or the run
// failed.
func (s *Simulation) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneLocked()
}

func (s *Simulation) doneLocked() bool {
	return s.failure != nil || s.next >= s.schedule.Len()
}

// Events returns the output events produced so far.
func (s *Simulation) Events() []OutputEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutputEvent(nil), s.events...)
}

// Snapshot captures the current surface.
func (s *Simulation) Snapshot() SurfaceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot(s.id, s.x)
}

// RenderSurface draws the current lattice.
func (s *Simulation) RenderSurface() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Lattice().Render(s.nameWidth())
}

// Run advances through every remaining output point.
func (s *Simulation) Run(ctx context.Context) error {
	_, err := s.Advance(ctx, s.schedule.Len())
	return err
}

// Advance moves the simulation through at most n more output points and
// returns how many it reached. The context is checked between points.
func (s *Simulation) Advance(ctx context.Context, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	if !s.header {
		if err := s.writeHeaders(); err != nil {
			return 0, err
		}
		s.header = true
	}
	reached := 0
	for reached < n && s.next < s.schedule.Len() {
		if err := ctx.Err(); err != nil {
			return reached, err
		}
		target := s.schedule.points[s.next]
		x, err := s.engine.Step(s.x, target)
		s.x = x
		if err != nil {
			s.failure = err
			s.log.Errorf("simulation %s failed at x=%g after %d steps: %v", s.id, x, s.engine.Steps(), err)
			if werr := s.writeFailure(err); werr != nil {
				return reached, errors.Join(err, werr)
			}
			return reached, err
		}
		if err := s.emit(); err != nil {
			return reached, err
		}
		s.next++
		reached++
	}
	return reached, nil
}

// Start advances one output point per tick in a goroutine until the run
// completes or Stop is called. It can be called again after Stop.
func (s *Simulation) Start(interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.isRunning = true
	stop := s.stopCh
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Advance(context.Background(), 1); err != nil || s.Done() {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts a background run started with Start.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Running reports whether a background run is active.
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// emit writes every configured output for the current point.
func (s *Simulation) emit() error {
	if s.opts.Output != nil {
		if _, err := io.WriteString(s.opts.Output, s.row()); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	if s.opts.Surface != nil && s.engine.Sites() > 0 {
		text := "x = " + formatValue(s.x) + "\n" + s.engine.Lattice().Render(s.nameWidth())
		if _, err := io.WriteString(s.opts.Surface, text); err != nil {
			return fmt.Errorf("writing surface: %w", err)
		}
	}
	if s.opts.Counter != nil {
		if _, err := io.WriteString(s.opts.Counter, s.counterRow()); err != nil {
			return fmt.Errorf("writing counter: %w", err)
		}
	}
	ev := NewOutputEvent(s.id, s.next, s.x, s.engine)
	s.events = append(s.events, ev)
	if s.opts.Notifications != nil {
		s.opts.Notifications.Enqueue(ev, s.opts.NotifierIDs)
	}
	return nil
}

func (s *Simulation) writeHeaders() error {
	if s.opts.Output != nil {
		cols := []string{"x"}
		for _, sp := range s.engine.Mechanism().AllSpecies() {
			cols = append(cols, sp.Name)
		}
		cols = append(cols, "T", "steps")
		if _, err := io.WriteString(s.opts.Output, "# "+strings.Join(cols, "\t")+"\n"); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	if s.opts.Counter != nil {
		var b strings.Builder
		b.WriteString("# 0:x\n# 1:total kmc steps\n")
		for i, rxn := range s.engine.Mechanism().Reactions() {
			fmt.Fprintf(&b, "# %d:forward steps for %s\n", 2+2*i, rxn)
			fmt.Fprintf(&b, "# %d:reverse steps for %s\n", 3+2*i, rxn)
		}
		if _, err := io.WriteString(s.opts.Counter, b.String()); err != nil {
			return fmt.Errorf("writing counter: %w", err)
		}
	}
	return nil
}

// writeFailure records the failure and the state reached in the output.
func (s *Simulation) writeFailure(cause error) error {
	if s.opts.Output == nil {
		return nil
	}
	_, err := io.WriteString(s.opts.Output, "# caught error: "+cause.Error()+"\n"+s.row())
	return err
}

func (s *Simulation) row() string {
	cols := []string{formatValue(s.x)}
	for _, sp := range s.engine.Mechanism().AllSpecies() {
		cols = append(cols, formatValue(sp.Quantity))
	}
	cols = append(cols, formatValue(s.engine.Reactor().Temperature()), strconv.FormatInt(s.engine.Steps(), 10))
	return strings.Join(cols, "\t") + "\n"
}

func (s *Simulation) counterRow() string {
	cols := []string{formatValue(s.x), strconv.FormatInt(s.engine.Steps(), 10)}
	for _, c := range s.engine.Counts() {
		cols = append(cols, strconv.FormatInt(c.Forward, 10), strconv.FormatInt(c.Reverse, 10))
	}
	return strings.Join(cols, "\t") + "\n"
}

// nameWidth is the longest surface species name, the lattice cell width.
func (s *Simulation) nameWidth() int {
	width := 1
	for _, sp := range s.engine.Mechanism().AllSpecies() {
		if sp.IsSurface() && len(sp.Name) > width {
			width = len(sp.Name)
		}
	}
	return width + 1
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
