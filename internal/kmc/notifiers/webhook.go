package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/daniacca/surfkmc/internal/kmc"
)

// Headers set on every delivery next to the JSON body.
const (
	HeaderSimulation = "X-Surfkmc-Simulation"
	HeaderEvent      = "X-Surfkmc-Event"
	HeaderPoint      = "X-Surfkmc-Point"
)

const (
	webhookTimeout = 5 * time.Second
	// replies longer than this are cut in DeliveryError
	maxReplyBody = 512
)

// DeliveryError reports a receiver that answered an output point with a
// non-2xx status.
type DeliveryError struct {
	Simulation kmc.SimulationID
	Point      int
	Status     int
	Reply      string
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("webhook rejected point %d of simulation %s with status %d", e.Point, e.Simulation, e.Status)
	if e.Reply != "" {
		msg += ": " + e.Reply
	}
	return msg
}

// WebhookNotifier posts every output point of a simulation run to an HTTP
// receiver. It can be bound to a single simulation with ForSimulation.
type WebhookNotifier struct {
	id      string
	url     string
	client  *http.Client
	headers http.Header
	sim     kmc.SimulationID
}

// NewWebhookNotifier returns a notifier posting to url.
func NewWebhookNotifier(id, url string) *WebhookNotifier {
	return &WebhookNotifier{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: webhookTimeout},
		headers: make(http.Header),
	}
}

// SetHeader adds a header, typically credentials, to every delivery.
func (wn *WebhookNotifier) SetHeader(key, value string) {
	if wn.headers == nil {
		wn.headers = make(http.Header)
	}
	wn.headers.Set(key, value)
}

// ForSimulation binds the notifier to sim; points of other runs are ignored.
func (wn *WebhookNotifier) ForSimulation(sim kmc.SimulationID) *WebhookNotifier {
	wn.sim = sim
	return wn
}

func (wn *WebhookNotifier) ID() string   { return wn.id }
func (wn *WebhookNotifier) Type() string { return "webhook" }
func (wn *WebhookNotifier) URL() string  { return wn.url }

func (wn *WebhookNotifier) wants(sim kmc.SimulationID) bool {
	return wn.sim == "" || wn.sim == sim
}

// Notify delivers one output point. A non-2xx reply is a *DeliveryError.
func (wn *WebhookNotifier) Notify(ctx context.Context, event kmc.OutputEvent) error {
	if !wn.wants(event.SimulationID) {
		return nil
	}
	body, err := event.JSON()
	if err != nil {
		return fmt.Errorf("encoding point %d of %s: %w", event.Point, event.SimulationID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request for %s: %w", wn.url, err)
	}
	for key, values := range wn.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSimulation, string(event.SimulationID))
	req.Header.Set(HeaderEvent, event.ID)
	req.Header.Set(HeaderPoint, fmt.Sprint(event.Point))

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting point %d of %s: %w", event.Point, event.SimulationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
		return &DeliveryError{
			Simulation: event.SimulationID,
			Point:      event.Point,
			Status:     resp.StatusCode,
			Reply:      string(bytes.TrimSpace(reply)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close has nothing to release; the HTTP client is shared per request.
func (wn *WebhookNotifier) Close() error {
	return nil
}
