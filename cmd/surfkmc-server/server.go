package main

import (
	"log/slog"
	"net/http"

	"github.com/daniacca/surfkmc/internal/kmc"
	"github.com/daniacca/surfkmc/internal/kmc/notifiers"
	"github.com/daniacca/surfkmc/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// streamNotifierID is the websocket notifier every simulation publishes to.
const streamNotifierID = "stream"

// Server hosts many simulations over HTTP
type Server struct {
	manager       *kmc.SimulationManager
	notifications *kmc.NotificationManager
	stream        *notifiers.WebSocketNotifier
	registry      *prometheus.Registry
	cfg           ServerConfig
	logger        *slog.Logger
}

// NewServer creates a server with its own metrics registry
func NewServer(cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	adapter := logging.NewAdapter(logger)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := kmc.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	notifications := kmc.NewNotificationManager(adapter)
	stream := notifiers.NewWebSocketNotifier(streamNotifierID)
	if err := notifications.RegisterNotifier(stream); err != nil {
		return nil, err
	}

	return &Server{
		manager:       kmc.NewSimulationManager(metrics, adapter),
		notifications: notifications,
		stream:        stream,
		registry:      registry,
		cfg:           cfg,
		logger:        logger,
	}, nil
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/sims", s.handleSimulations)
	mux.HandleFunc("/sim/", s.handleSimulationRoutes)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	return mux
}

// Close stops every simulation and the notification pipeline
func (s *Server) Close() error {
	for _, id := range s.manager.ListSimulations() {
		_ = s.manager.DeleteSimulation(id)
	}
	return s.notifications.Close()
}
