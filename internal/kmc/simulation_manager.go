package kmc

import (
	"fmt"
	"slices"
	"sync"
)

// SimulationManager manages multiple simulations, each isolated from others
type SimulationManager struct {
	mu          sync.RWMutex
	simulations map[SimulationID]*Simulation
	metrics     *Metrics
	logger      Logger
}

// NewSimulationManager creates a new simulation manager. Metrics and logger
// may be nil.
func NewSimulationManager(metrics *Metrics, logger Logger) *SimulationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &SimulationManager{
		simulations: make(map[SimulationID]*Simulation),
		metrics:     metrics,
		logger:      logger,
	}
}

// CreateSimulation builds a simulation from cfg and registers it. The ID is
// cfg.ID or a fresh UUID. It fails if the ID is taken.
func (sm *SimulationManager) CreateSimulation(cfg SimulationConfig, opts SimulationOptions) (*Simulation, error) {
	if cfg.ID != "" {
		sm.mu.RLock()
		_, exists := sm.simulations[SimulationID(cfg.ID)]
		sm.mu.RUnlock()
		if exists {
			return nil, fmt.Errorf("simulation with id %s already exists", cfg.ID)
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = sm.metrics
	}
	if opts.Logger == nil {
		opts.Logger = sm.logger
	}
	sim, err := BuildSimulation(cfg, opts)
	if err != nil {
		return nil, err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, exists := sm.simulations[sim.ID()]; exists {
		return nil, fmt.Errorf("simulation with id %s already exists", sim.ID())
	}
	sm.simulations[sim.ID()] = sim
	sm.metrics.setSimulations(len(sm.simulations))
	sm.logger.Infof("simulation created: id=%s mechanism=%s", sim.ID(), cfg.Mechanism.Name)
	return sim, nil
}

// GetSimulation retrieves a simulation by ID
func (sm *SimulationManager) GetSimulation(id SimulationID) (*Simulation, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sim, exists := sm.simulations[id]
	return sim, exists
}

// DeleteSimulation stops and removes a simulation
func (sm *SimulationManager) DeleteSimulation(id SimulationID) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sim, exists := sm.simulations[id]
	if !exists {
		return fmt.Errorf("simulation with id %s does not exist", id)
	}
	sim.Stop()
	delete(sm.simulations, id)
	sm.metrics.forget(string(id))
	sm.metrics.setSimulations(len(sm.simulations))
	sm.logger.Infof("simulation deleted: id=%s", id)
	return nil
}

// ListSimulations returns the IDs of all simulations, sorted
func (sm *SimulationManager) ListSimulations() []SimulationID {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	ids := make([]SimulationID, 0, len(sm.simulations))
	for id := range sm.simulations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
