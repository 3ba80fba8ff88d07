package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daniacca/surfkmc/internal/kmc"
)

// MechanismBuilder provides a fluent API for building mechanisms.
// Use it to declare the species of a surface system and the elementary
// reactions between them.
type MechanismBuilder struct {
	name      string
	species   []kmc.SpeciesConfig
	reactions []*ReactionBuilder
}

// NewMechanism creates a new mechanism builder with the given name.
func NewMechanism(name string) *MechanismBuilder {
	return &MechanismBuilder{
		name:      name,
		species:   make([]kmc.SpeciesConfig, 0),
		reactions: make([]*ReactionBuilder, 0),
	}
}

// Species adds a species to the mechanism. Names starting with "@" are
// surface species; the coordination is inferred from the number of "@"
// characters unless set with SurfaceSpecies.
func (mb *MechanismBuilder) Species(name, description string, quantity float64) *MechanismBuilder {
	mb.species = append(mb.species, kmc.SpeciesConfig{
		Name:        name,
		Description: description,
		Quantity:    quantity,
	})
	return mb
}

// SurfaceSpecies adds a surface species with an explicit coordination.
func (mb *MechanismBuilder) SurfaceSpecies(name string, coordination int, coverage float64) *MechanismBuilder {
	mb.species = append(mb.species, kmc.SpeciesConfig{
		Name:         name,
		Coordination: &coordination,
		Quantity:     coverage,
	})
	return mb
}

// Reaction adds a reaction to the mechanism.
func (mb *MechanismBuilder) Reaction(rb *ReactionBuilder) *MechanismBuilder {
	mb.reactions = append(mb.reactions, rb)
	return mb
}

// Build converts the builder to a MechanismConfig.
func (mb *MechanismBuilder) Build() kmc.MechanismConfig {
	reactions := make([]kmc.ReactionConfig, 0, len(mb.reactions))
	for _, rb := range mb.reactions {
		reactions = append(reactions, rb.Build())
	}

	return kmc.MechanismConfig{
		Name:      mb.name,
		Species:   mb.species,
		Reactions: reactions,
	}
}

// ReactionBuilder provides a fluent API for building reaction configurations.
type ReactionBuilder struct {
	id        string
	name      string
	reactants []kmc.StoichConfig
	products  []kmc.StoichConfig
	forward   kmc.RateConfig
	reverse   *kmc.RateConfig
}

// NewReaction creates a new reaction builder with the given ID. The ID must
// be unique within a mechanism. The forward rate defaults to a constant 1.
func NewReaction(id string) *ReactionBuilder {
	return &ReactionBuilder{
		id:      id,
		forward: Constant(1),
	}
}

// Name sets the human-readable name of the reaction.
func (rb *ReactionBuilder) Name(name string) *ReactionBuilder {
	rb.name = name
	return rb
}

// Reactant adds a reactant with the given stoichiometric coefficient.
func (rb *ReactionBuilder) Reactant(species string, coefficient float64) *ReactionBuilder {
	rb.reactants = append(rb.reactants, kmc.StoichConfig{Species: species, Coefficient: coefficient})
	return rb
}

// Product adds a product with the given stoichiometric coefficient.
func (rb *ReactionBuilder) Product(species string, coefficient float64) *ReactionBuilder {
	rb.products = append(rb.products, kmc.StoichConfig{Species: species, Coefficient: coefficient})
	return rb
}

// Forward sets the forward rate constant.
func (rb *ReactionBuilder) Forward(rate kmc.RateConfig) *ReactionBuilder {
	rb.forward = rate
	return rb
}

// Reverse sets the reverse rate constant and makes the reaction reversible.
func (rb *ReactionBuilder) Reverse(rate kmc.RateConfig) *ReactionBuilder {
	rb.reverse = &rate
	return rb
}

// Build converts the builder to a ReactionConfig.
func (rb *ReactionBuilder) Build() kmc.ReactionConfig {
	return kmc.ReactionConfig{
		ID:        rb.id,
		Name:      rb.name,
		Reactants: rb.reactants,
		Products:  rb.products,
		Forward:   rb.forward,
		Reverse:   rb.reverse,
	}
}

// Constant returns a temperature independent rate constant.
func Constant(k float64) kmc.RateConfig {
	return kmc.RateConfig{Type: "constant", K: k}
}

// Arrhenius returns an Arrhenius rate constant k0·exp(-ea/RT).
func Arrhenius(k0, ea float64) kmc.RateConfig {
	return kmc.RateConfig{Type: "arrhenius", K0: k0, Ea: ea}
}

// SimulationBuilder assembles a complete simulation config around a
// mechanism.
type SimulationBuilder struct {
	cfg kmc.SimulationConfig
}

// NewSimulation creates a simulation builder for the mechanism. The reactor
// defaults to 298.15 K and the output to ten points over [0, 1].
func NewSimulation(mechanism *MechanismBuilder) *SimulationBuilder {
	return &SimulationBuilder{cfg: kmc.SimulationConfig{
		Mechanism: mechanism.Build(),
		Reactor:   kmc.ReactorConfig{Temperature: 298.15},
		Output:    kmc.OutputConfig{End: 1, Points: 10},
	}}
}

// ID forces the simulation ID; the server assigns one otherwise.
func (sb *SimulationBuilder) ID(id string) *SimulationBuilder {
	sb.cfg.ID = id
	return sb
}

// Temperature sets the reactor temperature in kelvin.
func (sb *SimulationBuilder) Temperature(t float64) *SimulationBuilder {
	sb.cfg.Reactor.Temperature = t
	return sb
}

// Reactor replaces the whole reactor config.
func (sb *SimulationBuilder) Reactor(r kmc.ReactorConfig) *SimulationBuilder {
	sb.cfg.Reactor = r
	return sb
}

// Lattice sets the side of the square lattice and its neighbor definition
// ("nn" or "nnn").
func (sb *SimulationBuilder) Lattice(size int, neighbor string) *SimulationBuilder {
	sb.cfg.KMC.Size = size
	sb.cfg.KMC.Neighbor = neighbor
	return sb
}

// SiteType selects the site-group policy ("radial" or "neighbor").
func (sb *SimulationBuilder) SiteType(policy string) *SimulationBuilder {
	sb.cfg.KMC.SiteType = policy
	return sb
}

// RateConstant selects the rate-constant mode ("coverage" or "event").
func (sb *SimulationBuilder) RateConstant(mode string) *SimulationBuilder {
	sb.cfg.KMC.RateConstant = mode
	return sb
}

// Seed fixes the random seed.
func (sb *SimulationBuilder) Seed(seed uint64) *SimulationBuilder {
	sb.cfg.KMC.Seed = seed
	return sb
}

// Output sets an evenly spaced output schedule.
func (sb *SimulationBuilder) Output(start, end float64, points int) *SimulationBuilder {
	sb.cfg.Output.Start = start
	sb.cfg.Output.End = end
	sb.cfg.Output.Points = points
	sb.cfg.Output.Times = nil
	return sb
}

// Times sets an explicit output schedule.
func (sb *SimulationBuilder) Times(start float64, times ...float64) *SimulationBuilder {
	sb.cfg.Output.Start = start
	sb.cfg.Output.Times = times
	sb.cfg.Output.Points = 0
	return sb
}

// Build returns the simulation config.
func (sb *SimulationBuilder) Build() kmc.SimulationConfig {
	return sb.cfg
}

// Client talks to a surfkmc server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
// A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// CreateSimulation sends the simulation config to the server and returns
// the status of the created simulation.
func (c *Client) CreateSimulation(ctx context.Context, sim *SimulationBuilder) (kmc.SimulationStatus, error) {
	var status kmc.SimulationStatus
	err := c.do(ctx, http.MethodPost, sim.Build(), &status, nil, "sims")
	return status, err
}

// Status fetches the current status of a simulation.
func (c *Client) Status(ctx context.Context, id string) (kmc.SimulationStatus, error) {
	var status kmc.SimulationStatus
	err := c.do(ctx, http.MethodGet, nil, &status, nil, "sim", id)
	return status, err
}

// List fetches the status of every simulation on the server.
func (c *Client) List(ctx context.Context) ([]kmc.SimulationStatus, error) {
	var out struct {
		Simulations []kmc.SimulationStatus `json:"simulations"`
	}
	err := c.do(ctx, http.MethodGet, nil, &out, nil, "sims")
	return out.Simulations, err
}

// Advance runs the simulation through the next points output points.
func (c *Client) Advance(ctx context.Context, id string, points int) (kmc.SimulationStatus, error) {
	var status kmc.SimulationStatus
	query := url.Values{"points": {strconv.Itoa(points)}}
	err := c.do(ctx, http.MethodPost, nil, &status, query, "sim", id, "advance")
	return status, err
}

// Events fetches the output events recorded so far.
func (c *Client) Events(ctx context.Context, id string) ([]kmc.OutputEvent, error) {
	var out struct {
		Events []kmc.OutputEvent `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, nil, &out, nil, "sim", id, "events")
	return out.Events, err
}

// Snapshot fetches the current surface of a simulation.
func (c *Client) Snapshot(ctx context.Context, id string) (kmc.SurfaceSnapshot, error) {
	var snap kmc.SurfaceSnapshot
	err := c.do(ctx, http.MethodGet, nil, &snap, nil, "sim", id, "snapshot")
	return snap, err
}

// Surface fetches the text rendering of the lattice.
func (c *Client) Surface(ctx context.Context, id string) (string, error) {
	var buf bytes.Buffer
	err := c.do(ctx, http.MethodGet, nil, &buf, nil, "sim", id, "surface")
	return buf.String(), err
}

// Delete removes a simulation from the server.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, nil, "sim", id)
}

// do sends one request. A non-nil in is sent as JSON; out is either a
// *bytes.Buffer receiving the raw body or a value decoded from JSON.
func (c *Client) do(ctx context.Context, method string, in, out any, query url.Values, elem ...string) error {
	u, err := url.JoinPath(c.baseURL, elem...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	switch v := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		_, err = io.Copy(v, resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}
