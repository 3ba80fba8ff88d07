package kmc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OutputEvent is published every time a simulation reaches an output point.
type OutputEvent struct {
	ID           string             `json:"id"`
	SimulationID SimulationID       `json:"simulation_id"`
	Point        int                `json:"point"`
	X            float64            `json:"x"`
	Steps        int64              `json:"steps"`
	Temperature  float64            `json:"temperature"`
	Quantities   map[string]float64 `json:"quantities"`
	Counts       []CountEntry       `json:"counts,omitempty"`
	Timestamp    int64              `json:"timestamp"`
}

// CountEntry is the serialized form of a ReactionCount.
type CountEntry struct {
	ReactionID string `json:"reaction_id"`
	Forward    int64  `json:"forward"`
	Reverse    int64  `json:"reverse"`
}

// Notifier is the interface that all notification channels must implement
type Notifier interface {
	// ID returns a unique identifier for this notifier
	ID() string

	// Type returns the type of notifier (e.g., "webhook", "websocket")
	Type() string

	// Notify sends an output event. The context can be used for cancellation and timeout.
	Notify(ctx context.Context, event OutputEvent) error

	// Close closes the notifier and releases any resources
	Close() error
}

type notificationJob struct {
	Event       OutputEvent
	NotifierIDs []string
}

// NotificationManager manages all notifiers and routes output events
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan notificationJob
	closed    bool
	wg        sync.WaitGroup
	logger    Logger

	// retry policy, shortened in tests
	maxRetries int
	backoff    time.Duration
}

// NewNotificationManager creates a new notification manager. A nil logger
// discards delivery failures.
func NewNotificationManager(logger Logger) *NotificationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	mgr := &NotificationManager{
		notifiers:  make(map[string]Notifier),
		jobs:       make(chan notificationJob, 1024),
		logger:     logger,
		maxRetries: 3,
		backoff:    100 * time.Millisecond,
	}
	mgr.startWorkers(1)
	return mgr
}

// RegisterNotifier registers a notifier with the manager
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return fmt.Errorf("notifier cannot be nil")
	}

	id := notifier.ID()
	if id == "" {
		return fmt.Errorf("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	if _, exists := nm.notifiers[id]; exists {
		return fmt.Errorf("notifier with ID %s already exists", id)
	}

	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier closes and removes a notifier
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	delete(nm.notifiers, id)
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}
	if err := notifier.Close(); err != nil {
		return fmt.Errorf("error closing notifier %s: %w", id, err)
	}
	return nil
}

// GetNotifier retrieves a notifier by ID
func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns a list of all registered notifier IDs
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	return ids
}

// Enqueue hands an event to the delivery worker. It never blocks and drops
// the event if the queue is full.
func (nm *NotificationManager) Enqueue(event OutputEvent, notifierIDs []string) {
	if len(notifierIDs) == 0 {
		return
	}

	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if nm.closed {
		return
	}

	select {
	case nm.jobs <- notificationJob{Event: event, NotifierIDs: notifierIDs}:
	default:
		nm.logger.Warnf("notification queue full, dropping output event: simulation=%s point=%d", event.SimulationID, event.Point)
	}
}

func (nm *NotificationManager) startWorkers(n int) {
	for range n {
		nm.wg.Add(1)
		go nm.worker()
	}
}

func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for job := range nm.jobs {
		nm.dispatchJob(job)
	}
}

func (nm *NotificationManager) dispatchJob(job notificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, id := range job.NotifierIDs {
		nm.notifyWithRetry(ctx, id, job.Event)
	}
}

// notifyWithRetry attempts delivery with exponential backoff
func (nm *NotificationManager) notifyWithRetry(ctx context.Context, notifierID string, event OutputEvent) {
	nm.mu.RLock()
	notifier, ok := nm.notifiers[notifierID]
	nm.mu.RUnlock()

	if !ok {
		nm.logger.Warnf("notification failed: notifier=%s error=notifier not found", notifierID)
		return
	}

	backoff := nm.backoff
	for attempt := 0; attempt <= nm.maxRetries; attempt++ {
		err := notifier.Notify(ctx, event)
		if err == nil {
			return
		}

		nm.logger.Warnf("notification failed: notifier=%s attempt=%d error=%v", notifierID, attempt+1, err)

		if attempt == nm.maxRetries {
			nm.logger.Errorf("notification failed after %d attempts: notifier=%s", nm.maxRetries+1, notifierID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Notify sends an event to the given notifiers synchronously.
func (nm *NotificationManager) Notify(ctx context.Context, event OutputEvent, notifierIDs []string) error {
	var errs []error
	for _, id := range notifierIDs {
		nm.mu.RLock()
		notifier, exists := nm.notifiers[id]
		nm.mu.RUnlock()

		if !exists {
			errs = append(errs, fmt.Errorf("notifier %s not found", id))
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notifier %s failed: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// Close drains the queue, then closes every registered notifier
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	var errs []error
	for id, notifier := range nm.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing notifier %s: %w", id, err))
		}
	}
	nm.notifiers = make(map[string]Notifier)
	nm.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing notifiers: %v", errs)
	}
	return nil
}

// NewOutputEvent captures the engine state at output point `point`.
func NewOutputEvent(id SimulationID, point int, x float64, engine *Engine) OutputEvent {
	quantities := make(map[string]float64)
	for _, sp := range engine.Mechanism().AllSpecies() {
		quantities[sp.Name] = sp.Quantity
	}
	counts := engine.Counts()
	entries := make([]CountEntry, len(counts))
	for i, c := range counts {
		entries[i] = CountEntry{ReactionID: c.Reaction.ID, Forward: c.Forward, Reverse: c.Reverse}
	}
	return OutputEvent{
		ID:           uuid.NewString(),
		SimulationID: id,
		Point:        point,
		X:            x,
		Steps:        engine.Steps(),
		Temperature:  engine.Reactor().Temperature(),
		Quantities:   quantities,
		Counts:       entries,
		Timestamp:    time.Now().Unix(),
	}
}

// JSON returns the event as JSON bytes
func (ev OutputEvent) JSON() ([]byte, error) {
	return json.Marshal(ev)
}
