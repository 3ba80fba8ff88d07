package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daniacca/surfkmc/internal/kmc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adsorptionConfig = `{
  "mechanism": {
    "name": "adsorption",
    "species": [
      {"name": "@", "quantity": 0.7},
      {"name": "A", "quantity": 1.0},
      {"name": "@A", "quantity": 0.3}
    ],
    "reactions": [
      {
        "id": "ads",
        "reactants": [{"species": "A"}, {"species": "@"}],
        "products": [{"species": "@A"}],
        "forward": {"type": "constant", "k": 100}
      },
      {
        "id": "des",
        "reactants": [{"species": "@A"}],
        "products": [{"species": "A"}, {"species": "@"}],
        "forward": {"type": "arrhenius", "k0": 50, "ea": 0}
      }
    ]
  },
  "reactor": {"temperature": 500},
  "kmc": {"size": 10, "seed": 7},
  "output": {"end": 1, "points": 4}
}`

const adsorptionYAML = `
mechanism:
  name: adsorption
  species:
    - name: "@"
    - name: A
      quantity: 1
    - name: "@A"
  reactions:
    - id: ads
      reactants: [{species: A}, {species: "@"}]
      products: [{species: "@A"}]
      forward: {type: constant, k: 1}
reactor:
  temperature: 500
kmc:
  size: 4
output:
  end: 1
  points: 2
`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := ServerConfig{SnapshotDir: t.TempDir(), AdvanceLimit: 100, StartInterval: 1000}
	srv, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return srv, ts
}

func do(t *testing.T, method, url, contentType, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestExtractSimID(t *testing.T) {
	id, rest := extractSimID("/sim/abc/advance")
	assert.Equal(t, kmc.SimulationID("abc"), id)
	assert.Equal(t, "/advance", rest)

	id, rest = extractSimID("/sim/abc")
	assert.Equal(t, kmc.SimulationID("abc"), id)
	assert.Equal(t, "", rest)

	id, _ = extractSimID("/other/abc")
	assert.Equal(t, kmc.SimulationID(""), id)
}

func TestServer_SimulationLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/sim/s1", "application/json", adsorptionConfig)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var status kmc.SimulationStatus
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, kmc.SimulationID("s1"), status.ID)
	assert.Equal(t, 5, status.Points)
	assert.Equal(t, 0, status.Point)

	resp, _ = do(t, http.MethodPost, ts.URL+"/sim/s1", "application/json", adsorptionConfig)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodPost, ts.URL+"/sim/s1/advance?points=5", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.True(t, status.Done)
	assert.Equal(t, 5, status.Point)
	assert.GreaterOrEqual(t, status.X, 1.0)
	assert.Positive(t, status.Steps)

	resp, body = do(t, http.MethodGet, ts.URL+"/sim/s1/surface", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, strings.Split(strings.TrimRight(body, "\n"), "\n"), 10)

	resp, body = do(t, http.MethodGet, ts.URL+"/sim/s1/events", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events struct {
		Events []kmc.OutputEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &events))
	assert.Len(t, events.Events, 5)

	resp, body = do(t, http.MethodGet, ts.URL+"/sim/s1/counts", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"reaction_id":"ads"`)

	resp, body = do(t, http.MethodGet, ts.URL+"/sim/s1/snapshot", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap, err := kmc.DecodeSnapshotJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Size)
	assert.NoError(t, kmc.ValidateSnapshot(snap, nil))

	resp, body = do(t, http.MethodGet, ts.URL+"/sims", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"id":"s1"`)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/sim/s1", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, ts.URL+"/sim/s1", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CreateFromYAMLWithGeneratedID(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/sims", "application/yaml", adsorptionYAML)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var status kmc.SimulationStatus
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.NotEmpty(t, status.ID)
	assert.Equal(t, "adsorption", status.Name)
}

func TestServer_InvalidConfig(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/sim/bad", "application/json", `{"mechanism": {"name": ""}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "mechanism name is required")

	resp, _ = do(t, http.MethodPost, ts.URL+"/sim/bad", "application/json", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_AdvanceValidation(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := do(t, http.MethodPost, ts.URL+"/sim/s1", "application/json", adsorptionConfig)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/sim/s1/advance?points=0", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/sim/s1/advance?points=1000", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/sim/missing/advance", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_SaveSnapshot(t *testing.T) {
	srv, ts := newTestServer(t)
	resp, _ := do(t, http.MethodPost, ts.URL+"/sim/s1", "application/json", adsorptionConfig)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/sim/s1/snapshot", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	data, err := os.ReadFile(filepath.Join(srv.cfg.SnapshotDir, "s1.json"))
	require.NoError(t, err)
	snap, err := kmc.DecodeSnapshotJSON(data)
	require.NoError(t, err)
	assert.Len(t, snap.Sites, 100)
}

func TestServer_Notifiers(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/notifiers", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"id":"stream"`)

	resp, _ = do(t, http.MethodPost, ts.URL+"/notifiers", "application/json",
		`{"type": "webhook", "id": "hook", "config": {"url": "http://localhost:1/x"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/notifiers", "application/json",
		`{"type": "webhook", "id": "nourl", "config": {}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/notifiers", "application/json", `{"type": "carrier-pigeon", "id": "p"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/sim/s2?notifiers=missing", "application/json", adsorptionConfig)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/notifiers/stream", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, ts.URL+"/notifiers/hook", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, ts.URL+"/notifiers/hook", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := do(t, http.MethodPost, ts.URL+"/sim/s1", "application/json", adsorptionConfig)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/sim/s1/advance?points=2", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `surfkmc_engine_steps_total{simulation="s1"}`)
	assert.Contains(t, body, "surfkmc_manager_simulations 1")
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	for _, name := range []string{"SURFKMC_ADDR", "SURFKMC_CONFIG_FILE", "SURFKMC_SNAPSHOT_DIR", "SURFKMC_LOG_LEVEL", "SURFKMC_ADVANCE_LIMIT"} {
		t.Setenv(name, "")
	}
	cfg, err := loadServerConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "", cfg.ConfigFile)
	assert.Equal(t, "./data", cfg.SnapshotDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1000, cfg.AdvanceLimit)
}

func TestLoadServerConfig_EnvVars(t *testing.T) {
	t.Setenv("SURFKMC_ADDR", ":9090")
	t.Setenv("SURFKMC_CONFIG_FILE", "/path/to/sim.yaml")
	t.Setenv("SURFKMC_ADVANCE_LIMIT", "not-a-number")

	cfg, err := loadServerConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/path/to/sim.yaml", cfg.ConfigFile)
	assert.Equal(t, 1000, cfg.AdvanceLimit)
}

func TestLoadServerConfig_FlagsOverrideEnvVars(t *testing.T) {
	t.Setenv("SURFKMC_ADDR", ":9090")
	t.Setenv("SURFKMC_LOG_LEVEL", "warn")

	cfg, err := loadServerConfig([]string{"--addr", ":7070", "--advance-limit", "5"})
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 5, cfg.AdvanceLimit)
}
