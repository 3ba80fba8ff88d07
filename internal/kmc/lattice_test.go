package kmc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLattice_Initialize(t *testing.T) {
	m := NewMechanism("m")
	empty := addSpecies(t, m, "@", 1)

	l, err := NewLattice(3)
	require.NoError(t, err)
	assert.False(t, l.Initialized())
	assert.Equal(t, 9, l.Sites())

	_, err = l.Site(0, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, l.Initialize(empty))
	assert.True(t, l.Initialized())
	assert.Equal(t, 9, l.Count(empty))

	site, err := l.Site(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, site.Row)
	assert.Equal(t, 1, site.Col)
	assert.Same(t, empty, site.Occupant)

	_, err = l.Site(3, 0)
	assert.ErrorIs(t, err, ErrInput)
}

func TestLattice_SetSize(t *testing.T) {
	l, err := NewLattice(2)
	require.NoError(t, err)
	require.NoError(t, l.SetSize(4))
	assert.Equal(t, 4, l.Size())

	_, err = NewLattice(-1)
	assert.True(t, errors.Is(err, ErrConfig))

	require.NoError(t, l.Initialize(&Species{Name: "@", Coordination: 1}))
	assert.ErrorIs(t, l.SetSize(5), ErrConfig)
}

func TestLattice_InitializeNeedsEmpty(t *testing.T) {
	l, err := NewLattice(2)
	require.NoError(t, err)
	assert.ErrorIs(t, l.Initialize(nil), ErrInput)

	zero, err := NewLattice(0)
	require.NoError(t, err)
	require.NoError(t, zero.Initialize(nil))
	assert.Equal(t, 0, zero.Sites())
}

func TestLattice_Render(t *testing.T) {
	m := NewMechanism("m")
	empty := addSpecies(t, m, "@", 1)
	co := addSpecies(t, m, "@CO", 0)

	l, err := NewLattice(2)
	require.NoError(t, err)
	require.NoError(t, l.Initialize(empty))
	site, err := l.Site(0, 1)
	require.NoError(t, err)
	site.Occupant = co

	assert.Equal(t, "@  @CO\n@  @  \n", l.Render(3))
	assert.Equal(t, "@@\n@@\n", l.Render(1))
}

func TestEnsemble_Canonical(t *testing.T) {
	m := NewMechanism("m")
	empty := addSpecies(t, m, "@", 1)
	a := addSpecies(t, m, "@A", 0)
	o2 := addSpecies(t, m, "@@O2", 0)
	gas := addSpecies(t, m, "A", 1)

	e1 := NewEnsemble([]*Species{a, empty, o2})
	e2 := NewEnsemble([]*Species{o2, a, gas, empty})

	assert.True(t, e1.Equal(e2))
	assert.Equal(t, e1.Key(), e2.Key())
	assert.Equal(t, 0, e1.Compare(e2))
	assert.Equal(t, 3, e2.Size())
	assert.Equal(t, 4, e2.Coordination())
	assert.Equal(t, "{@, @A, @@O2}", e2.String())

	species := e1.Species()
	species[0] = gas
	assert.Equal(t, "{@, @A, @@O2}", e1.String(), "Species must return a copy")
}

func TestEnsemble_Compare(t *testing.T) {
	m := NewMechanism("m")
	empty := addSpecies(t, m, "@", 1)
	a := addSpecies(t, m, "@A", 0)

	single := NewEnsemble([]*Species{empty})
	pair := NewEnsemble([]*Species{empty, empty})
	other := NewEnsemble([]*Species{a})

	assert.Negative(t, single.Compare(pair), "a proper prefix sorts first")
	assert.Negative(t, pair.Compare(other))
	assert.Positive(t, other.Compare(single))
	assert.False(t, single.Equal(pair))
}

func TestCoordinationFromName(t *testing.T) {
	assert.Equal(t, 0, CoordinationFromName("CO"))
	assert.Equal(t, 1, CoordinationFromName("@"))
	assert.Equal(t, 1, CoordinationFromName("@CO"))
	assert.Equal(t, 2, CoordinationFromName("@@O2"))
}
