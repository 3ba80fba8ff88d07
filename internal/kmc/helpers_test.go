package kmc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRNG(t *testing.T, seed uint64) RNG {
	t.Helper()
	rng, err := NewRNG(RNGPCG, seed)
	require.NoError(t, err)
	return rng
}

// addSpecies registers species with inferred coordination.
func addSpecies(t *testing.T, m *Mechanism, name string, quantity float64) *Species {
	t.Helper()
	sp, err := m.AddSpecies(name, "", -1, quantity)
	require.NoError(t, err)
	return sp
}

func addReaction(t *testing.T, m *Mechanism, id string, reactants, products []Stoich, forward, reverse RateConstant) *Reaction {
	t.Helper()
	r, err := NewReaction(id, "", reactants, products, forward, reverse)
	require.NoError(t, err)
	require.NoError(t, m.AddReaction(r))
	return r
}

func one(sp *Species) Stoich {
	return Stoich{Species: sp, Coefficient: 1}
}

func newTestReactor(t *testing.T) *BatchReactor {
	t.Helper()
	r, err := NewBatchReactor(BatchReactorConfig{Temperature: 300})
	require.NoError(t, err)
	return r
}

// newTestSurface builds an initialized surface of side n with every site
// holding empty.
func newTestSurface(t *testing.T, n int, empty *Species, settings SurfaceSettings) *Surface {
	t.Helper()
	l, err := NewLattice(n)
	require.NoError(t, err)
	require.NoError(t, l.Initialize(empty))
	settings.Empty = empty
	s, err := NewSurface(l, settings, newTestRNG(t, 3))
	require.NoError(t, err)
	require.NoError(t, s.Initialize())
	return s
}

// isomerMechanism is @ <=> @A with kf=2 and kr=1.
func isomerMechanism(t *testing.T, coverage float64) (*Mechanism, *Species, *Species) {
	t.Helper()
	m := NewMechanism("isomer")
	empty := addSpecies(t, m, "@", 0)
	a := addSpecies(t, m, "@A", coverage)
	addReaction(t, m, "iso", []Stoich{one(empty)}, []Stoich{one(a)}, ConstantK{K: 2}, ConstantK{K: 1})
	return m, empty, a
}

func newTestEngine(t *testing.T, m *Mechanism, cfg EngineConfig, seed uint64) *Engine {
	t.Helper()
	e, err := NewEngine(m, newTestReactor(t), newTestRNG(t, seed), cfg)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	return e
}
