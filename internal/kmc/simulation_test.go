package kmc

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutputSchedule(t *testing.T) {
	s, err := NewOutputSchedule(OutputConfig{Start: 1, End: 3, Points: 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1.5, 2, 2.5, 3}, s.Points())
	assert.Equal(t, 5, s.Len())

	s, err = NewOutputSchedule(OutputConfig{Start: 0.5, Times: []float64{1, 4}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 4}, s.Points())

	_, err = NewOutputSchedule(OutputConfig{Start: 2, Times: []float64{1}})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewOutputSchedule(OutputConfig{End: 1})
	assert.ErrorIs(t, err, ErrConfig)

	points := s.Points()
	points[0] = 99
	assert.Equal(t, 0.5, s.Points()[0], "Points returns a copy")
}

func TestBuildSimulation(t *testing.T) {
	sim, err := BuildSimulation(isomerConfig(), SimulationOptions{})
	require.NoError(t, err)

	assert.Equal(t, SimulationID("iso"), sim.ID())
	assert.Equal(t, "isomer", sim.Config().Mechanism.Name)
	assert.Equal(t, 25, sim.Engine().Sites())

	st := sim.Status()
	assert.Equal(t, 0, st.Point)
	assert.Equal(t, 5, st.Points)
	assert.Zero(t, st.X)
	assert.False(t, st.Done)
	assert.Empty(t, st.Error)
}

func TestBuildSimulation_GeneratesID(t *testing.T) {
	cfg := isomerConfig()
	cfg.ID = ""
	a, err := BuildSimulation(cfg, SimulationOptions{})
	require.NoError(t, err)
	b, err := BuildSimulation(cfg, SimulationOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestBuildSimulation_Errors(t *testing.T) {
	cfg := isomerConfig()
	cfg.Mechanism.Name = ""
	_, err := BuildSimulation(cfg, SimulationOptions{})
	assert.ErrorIs(t, err, ErrConfig)

	cfg = isomerConfig()
	cfg.Mechanism.Species[0].Quantity = 0.5
	_, err = BuildSimulation(cfg, SimulationOptions{})
	assert.ErrorIs(t, err, ErrInput, "empty coverage disagrees with the seeded surface")
	assert.Contains(t, err.Error(), "initializing kmc engine")
}

func TestSimulation_Run(t *testing.T) {
	var out, surface, counter bytes.Buffer
	sim, err := BuildSimulation(isomerConfig(), SimulationOptions{
		Output:  &out,
		Surface: &surface,
		Counter: &counter,
	})
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))
	assert.True(t, sim.Done())

	st := sim.Status()
	assert.Equal(t, 5, st.Point)
	assert.GreaterOrEqual(t, st.X, 1.0)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "# x\t@\t@A\tT\tsteps", lines[0])
	first := strings.Split(lines[1], "\t")
	require.Len(t, first, 5)
	assert.Equal(t, "0", first[0])
	assert.Equal(t, "0.8", first[1])
	assert.Equal(t, "0.2", first[2])
	assert.Equal(t, "300", first[3])
	assert.Equal(t, "0", first[4])

	counterLines := strings.Split(strings.TrimSpace(counter.String()), "\n")
	require.Len(t, counterLines, 4+5)
	assert.Equal(t, "# 0:x", counterLines[0])
	assert.Equal(t, "# 2:forward steps for @ <=> @A", counterLines[2])
	assert.Equal(t, "# 3:reverse steps for @ <=> @A", counterLines[3])
	assert.Len(t, strings.Split(counterLines[8], "\t"), 4)

	assert.Equal(t, 5, strings.Count(surface.String(), "x = "))
	assert.True(t, strings.HasPrefix(surface.String(), "x = 0\n"))

	events := sim.Events()
	require.Len(t, events, 5)
	assert.Equal(t, 4, events[4].Point)
	assert.Equal(t, sim.Engine().Steps(), events[4].Steps)
	assert.InDelta(t, 1, events[4].Quantities["@"]+events[4].Quantities["@A"], 1e-9)

	n, err := sim.Advance(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing left to run")
}

func TestSimulation_Advance(t *testing.T) {
	sim, err := BuildSimulation(isomerConfig(), SimulationOptions{})
	require.NoError(t, err)

	n, err := sim.Advance(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, sim.Status().Point)
	assert.GreaterOrEqual(t, sim.Status().X, 0.25)
	assert.False(t, sim.Done())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = sim.Advance(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestSimulation_FailureRow(t *testing.T) {
	// two sites balance exactly at one molecule each, where the net rate vanishes
	cfg := isomerConfig()
	cfg.KMC.Size = 2
	cfg.Mechanism.Species[1].Quantity = 0
	cfg.Mechanism.Reactions[0].Forward.K = 1
	cfg.Output = OutputConfig{End: 1e6, Points: 2}

	var out bytes.Buffer
	sim, err := BuildSimulation(cfg, SimulationOptions{Output: &out})
	require.NoError(t, err)

	err = sim.Run(context.Background())
	require.ErrorIs(t, err, ErrNoReaction)
	assert.True(t, sim.Done())
	assert.Contains(t, sim.Status().Error, "no reaction possible")

	text := out.String()
	assert.Contains(t, text, "# caught error: no reaction possible")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := strings.Split(lines[len(lines)-1], "\t")
	assert.Equal(t, "2", last[len(last)-1], "row after the error reports the steps reached")

	_, err = sim.Advance(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoReaction, "a failed simulation stays failed")
}

func TestSimulation_StartStop(t *testing.T) {
	cfg := isomerConfig()
	cfg.Output = OutputConfig{End: 1000, Points: 1000}
	sim, err := BuildSimulation(cfg, SimulationOptions{})
	require.NoError(t, err)

	sim.Start(time.Millisecond)
	sim.Start(time.Millisecond)
	require.Eventually(t, func() bool { return sim.Status().Point >= 3 }, 5*time.Second, time.Millisecond)
	assert.True(t, sim.Running())

	sim.Stop()
	require.Eventually(t, func() bool { return !sim.Running() }, time.Second, time.Millisecond)
	point := sim.Status().Point
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, point, sim.Status().Point, "no progress after Stop")
	sim.Stop()
}

func TestSimulation_StartRunsToCompletion(t *testing.T) {
	sim, err := BuildSimulation(isomerConfig(), SimulationOptions{})
	require.NoError(t, err)

	sim.Start(time.Millisecond)
	require.Eventually(t, sim.Done, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !sim.Running() }, time.Second, time.Millisecond)
	assert.Len(t, sim.Events(), 5)
}

func TestSimulation_SnapshotAndRender(t *testing.T) {
	sim, err := BuildSimulation(isomerConfig(), SimulationOptions{})
	require.NoError(t, err)

	snap := sim.Snapshot()
	assert.Equal(t, SimulationID("iso"), snap.SimulationID)
	assert.Equal(t, 5, snap.Size)
	require.Len(t, snap.Sites, 25)

	adsorbed := 0
	for _, name := range snap.Sites {
		if name == "@A" {
			adsorbed++
		}
	}
	assert.Equal(t, 5, adsorbed)

	render := sim.RenderSurface()
	assert.Len(t, strings.Split(strings.TrimSuffix(render, "\n"), "\n"), 5)
	assert.Equal(t, 5, strings.Count(render, "@A"))
}

type recordingNotifier struct {
	id     string
	events chan OutputEvent
}

func (n *recordingNotifier) ID() string   { return n.id }
func (n *recordingNotifier) Type() string { return "recording" }
func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) Notify(_ context.Context, ev OutputEvent) error {
	n.events <- ev
	return nil
}

func TestSimulation_PublishesEvents(t *testing.T) {
	nm := NewNotificationManager(nil)
	defer nm.Close()
	rec := &recordingNotifier{id: "rec", events: make(chan OutputEvent, 16)}
	require.NoError(t, nm.RegisterNotifier(rec))

	sim, err := BuildSimulation(isomerConfig(), SimulationOptions{Notifications: nm, NotifierIDs: []string{"rec"}})
	require.NoError(t, err)
	require.NoError(t, sim.Run(context.Background()))

	for i := range 5 {
		select {
		case ev := <-rec.events:
			assert.Equal(t, SimulationID("iso"), ev.SimulationID)
			assert.Equal(t, i, ev.Point)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestSimulationManager(t *testing.T) {
	metrics, reg := newTestMetrics(t)
	sm := NewSimulationManager(metrics, nil)

	sim, err := sm.CreateSimulation(isomerConfig(), SimulationOptions{})
	require.NoError(t, err)
	assert.Equal(t, SimulationID("iso"), sim.ID())

	_, err = sm.CreateSimulation(isomerConfig(), SimulationOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	other := isomerConfig()
	other.ID = "another"
	_, err = sm.CreateSimulation(other, SimulationOptions{})
	require.NoError(t, err)

	assert.Equal(t, []SimulationID{"another", "iso"}, sm.ListSimulations())
	assert.Equal(t, 2.0, metricValue(t, reg, "surfkmc_manager_simulations", ""))

	got, ok := sm.GetSimulation("iso")
	require.True(t, ok)
	assert.Same(t, sim, got)

	_, err = sim.Advance(context.Background(), 2)
	require.NoError(t, err)
	assert.Positive(t, metricValue(t, reg, "surfkmc_engine_steps_total", "iso"))

	require.NoError(t, sm.DeleteSimulation("iso"))
	_, ok = sm.GetSimulation("iso")
	assert.False(t, ok)
	assert.Zero(t, metricValue(t, reg, "surfkmc_engine_steps_total", "iso"))
	assert.Equal(t, 1.0, metricValue(t, reg, "surfkmc_manager_simulations", ""))

	assert.Error(t, sm.DeleteSimulation("iso"))

	bad := isomerConfig()
	bad.ID = "bad"
	bad.Reactor.Temperature = 0
	_, err = sm.CreateSimulation(bad, SimulationOptions{})
	assert.ErrorIs(t, err, ErrConfig)
	assert.Len(t, sm.ListSimulations(), 1)
}
