package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/surfkmc/internal/kmc"
	"github.com/daniacca/surfkmc/internal/kmc/notifiers"
)

// extractSimID extracts the simulation ID from a path like "/sim/{simID}/..."
// Returns the simulation ID and the remaining path, or empty string if not found
func extractSimID(path string) (kmc.SimulationID, string) {
	rest, ok := strings.CutPrefix(path, "/sim/")
	if !ok {
		return "", ""
	}
	id, remaining, found := strings.Cut(rest, "/")
	if !found {
		return kmc.SimulationID(id), ""
	}
	return kmc.SimulationID(id), "/" + remaining
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine and config errors onto HTTP status codes
func statusFor(err error) int {
	var verr *kmc.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, kmc.ErrConfig), errors.Is(err, kmc.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, kmc.ErrNoReaction), errors.Is(err, kmc.ErrNoInstances):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /sims lists simulations; POST /sims creates one named by the body
// (or a fresh UUID).
func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids := s.manager.ListSimulations()
		statuses := make([]kmc.SimulationStatus, 0, len(ids))
		for _, id := range ids {
			if sim, ok := s.manager.GetSimulation(id); ok {
				statuses = append(statuses, sim.Status())
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"simulations": statuses})
	case http.MethodPost:
		s.createSimulation(w, r, "")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// readConfig decodes a SimulationConfig body; YAML when the content type
// says so, JSON otherwise.
func readConfig(r *http.Request) (kmc.SimulationConfig, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		return kmc.SimulationConfig{}, err
	}
	format := "json"
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = "yaml"
	}
	return kmc.ParseSimulationConfig(data, format)
}

// createSimulation registers a simulation, optionally forcing its ID. The
// "notifiers" query parameter lists extra notifier IDs, comma separated.
func (s *Server) createSimulation(w http.ResponseWriter, r *http.Request, id kmc.SimulationID) {
	cfg, err := readConfig(r)
	if err != nil {
		http.Error(w, "invalid simulation config: "+err.Error(), http.StatusBadRequest)
		return
	}
	if id != "" {
		cfg.ID = string(id)
	}

	notifierIDs := []string{streamNotifierID}
	if extra := r.URL.Query().Get("notifiers"); extra != "" {
		for _, nid := range strings.Split(extra, ",") {
			if _, ok := s.notifications.GetNotifier(nid); !ok {
				http.Error(w, "unknown notifier: "+nid, http.StatusBadRequest)
				return
			}
			notifierIDs = append(notifierIDs, nid)
		}
	}

	sim, err := s.manager.CreateSimulation(cfg, kmc.SimulationOptions{
		Notifications: s.notifications,
		NotifierIDs:   notifierIDs,
	})
	if err != nil {
		status := statusFor(err)
		if strings.Contains(err.Error(), "already exists") {
			status = http.StatusConflict
		}
		s.logger.Warn("simulation rejected", "id", cfg.ID, "error", err)
		http.Error(w, "cannot create simulation: "+err.Error(), status)
		return
	}
	writeJSON(w, http.StatusCreated, sim.Status())
}

// handleSimulationRoutes routes requests to simulation-specific handlers
func (s *Server) handleSimulationRoutes(w http.ResponseWriter, r *http.Request) {
	id, remainingPath := extractSimID(r.URL.Path)
	if id == "" {
		http.Error(w, "simulation ID is required in path: /sim/{simID}/...", http.StatusBadRequest)
		return
	}

	if remainingPath == "" && r.Method == http.MethodPost {
		s.createSimulation(w, r, id)
		return
	}

	sim, exists := s.manager.GetSimulation(id)
	if !exists {
		http.Error(w, "simulation not found", http.StatusNotFound)
		return
	}

	switch {
	case remainingPath == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, sim.Status())
	case remainingPath == "" && r.Method == http.MethodDelete:
		s.handleDelete(w, id)
	case remainingPath == "/advance" && r.Method == http.MethodPost:
		s.handleAdvance(w, r, sim)
	case remainingPath == "/start" && r.Method == http.MethodPost:
		s.handleStart(w, r, sim)
	case remainingPath == "/stop" && r.Method == http.MethodPost:
		sim.Stop()
		s.logger.Info("simulation stopped", "id", id)
		_, _ = w.Write([]byte("simulation stopped"))
	case remainingPath == "/surface" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, sim.RenderSurface())
	case remainingPath == "/events" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"events": sim.Events()})
	case remainingPath == "/counts" && r.Method == http.MethodGet:
		s.handleCounts(w, sim)
	case remainingPath == "/snapshot" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, sim.Snapshot())
	case remainingPath == "/snapshot" && r.Method == http.MethodPost:
		s.handleSaveSnapshot(w, sim)
	case remainingPath == "/ws" && r.Method == http.MethodGet:
		if err := s.stream.Serve(w, r, id); err != nil {
			s.logger.Warn("websocket subscription failed", "id", id, "error", err)
		}
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// POST /sim/{simID}/advance?points=n runs n more output points (default 1)
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, sim *kmc.Simulation) {
	points := 1
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid points: must be a positive integer", http.StatusBadRequest)
			return
		}
		points = n
	}
	if points > s.cfg.AdvanceLimit {
		http.Error(w, fmt.Sprintf("points exceeds the limit of %d", s.cfg.AdvanceLimit), http.StatusBadRequest)
		return
	}
	if sim.Running() {
		http.Error(w, "simulation is running; stop it first", http.StatusConflict)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	reached, err := sim.Advance(ctx, points)
	if err != nil {
		s.logger.Error("advance failed", "id", sim.ID(), "reached", reached, "error", err)
		http.Error(w, "advance failed: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sim.Status())
}

// POST /sim/{simID}/start?interval=ms advances one output point per tick
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, sim *kmc.Simulation) {
	interval := time.Duration(s.cfg.StartInterval) * time.Millisecond
	if v := r.URL.Query().Get("interval"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}
	sim.Start(interval)
	s.logger.Info("simulation started", "id", sim.ID(), "interval", interval)
	_, _ = w.Write([]byte("simulation started"))
}

func (s *Server) handleDelete(w http.ResponseWriter, id kmc.SimulationID) {
	if err := s.manager.DeleteSimulation(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte("simulation deleted"))
}

// GET /sim/{simID}/counts
func (s *Server) handleCounts(w http.ResponseWriter, sim *kmc.Simulation) {
	status := sim.Status()
	events := sim.Events()
	var counts []kmc.CountEntry
	if len(events) > 0 {
		counts = events[len(events)-1].Counts
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"x":      status.X,
		"steps":  status.Steps,
		"counts": counts,
	})
}

// POST /sim/{simID}/snapshot writes the surface snapshot to the snapshot
// directory
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, sim *kmc.Simulation) {
	if s.cfg.SnapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	data, err := kmc.EncodeSnapshotJSON(sim.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := os.MkdirAll(s.cfg.SnapshotDir, 0o755); err != nil {
		http.Error(w, "cannot create snapshot directory: "+err.Error(), http.StatusInternalServerError)
		return
	}
	path := filepath.Join(s.cfg.SnapshotDir, string(sim.ID())+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("failed to save snapshot", "id", sim.ID(), "error", err)
		http.Error(w, "failed to save snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Debug("snapshot saved", "id", sim.ID(), "path", path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": path})
}

// handleNotifiersRoutes handles notifier management endpoints
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifiers" && r.Method == http.MethodGet:
		s.handleListNotifiers(w)
	case r.URL.Path == "/notifiers" && r.Method == http.MethodPost:
		s.handleRegisterNotifier(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && r.Method == http.MethodDelete:
		s.handleUnregisterNotifier(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleListNotifiers(w http.ResponseWriter) {
	ids := s.notifications.ListNotifiers()
	out := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.notifications.GetNotifier(id); ok {
			out = append(out, map[string]string{"id": id, "type": n.Type()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifiers": out})
}

// POST /notifiers
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://...", "simulation": "..." } }
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier kmc.Notifier
	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		wh := notifiers.NewWebhookNotifier(req.ID, url)
		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if vStr, ok := v.(string); ok {
					wh.SetHeader(k, vStr)
				}
			}
		}
		if sim, ok := req.Config["simulation"].(string); ok && sim != "" {
			wh.ForSimulation(kmc.SimulationID(sim))
		}
		notifier = wh
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifications.RegisterNotifier(notifier); err != nil {
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/notifiers/")
	if id == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}
	if id == streamNotifierID {
		http.Error(w, "the stream notifier cannot be removed", http.StatusBadRequest)
		return
	}
	if err := s.notifications.UnregisterNotifier(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte("notifier unregistered"))
}
