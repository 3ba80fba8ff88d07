package kmc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for running simulations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	steps       *prometheus.CounterVec // KMC steps by simulation
	events      *prometheus.CounterVec // Events by simulation, reaction and direction
	simTime     *prometheus.GaugeVec   // Simulated time by simulation
	propensity  *prometheus.GaugeVec   // Total absolute propensity of the last step
	simulations prometheus.Gauge       // Simulations currently hosted
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surfkmc",
			Subsystem: "engine",
			Name:      "steps_total",
			Help:      "Total KMC steps performed",
		}, []string{"simulation"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surfkmc",
			Subsystem: "engine",
			Name:      "reaction_events_total",
			Help:      "Reaction events performed by direction",
		}, []string{"simulation", "reaction", "direction"}),

		simTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "surfkmc",
			Subsystem: "engine",
			Name:      "simulated_time",
			Help:      "Current value of the independent variable",
		}, []string{"simulation"}),

		propensity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "surfkmc",
			Subsystem: "engine",
			Name:      "total_propensity",
			Help:      "Sum of absolute net rates at the last selection",
		}, []string{"simulation"}),

		simulations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surfkmc",
			Subsystem: "manager",
			Name:      "simulations",
			Help:      "Number of simulations currently hosted",
		}),
	}

	for _, c := range []prometheus.Collector{m.steps, m.events, m.simTime, m.propensity, m.simulations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeStep(sim, reaction string, reverse bool, total float64) {
	if m == nil {
		return
	}
	direction := "forward"
	if reverse {
		direction = "reverse"
	}
	m.steps.WithLabelValues(sim).Inc()
	m.events.WithLabelValues(sim, reaction, direction).Inc()
	m.propensity.WithLabelValues(sim).Set(total)
}

func (m *Metrics) observeTime(sim string, x float64) {
	if m == nil {
		return
	}
	m.simTime.WithLabelValues(sim).Set(x)
}

func (m *Metrics) setSimulations(n int) {
	if m == nil {
		return
	}
	m.simulations.Set(float64(n))
}

// forget drops every series labelled with sim.
func (m *Metrics) forget(sim string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"simulation": sim}
	m.steps.DeletePartialMatch(labels)
	m.events.DeletePartialMatch(labels)
	m.simTime.DeletePartialMatch(labels)
	m.propensity.DeletePartialMatch(labels)
}
