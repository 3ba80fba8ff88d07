package kmc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMechanism_AddSpecies(t *testing.T) {
	m := NewMechanism("m")

	empty, err := m.AddSpecies("@", "vacant site", -1, 1)
	require.NoError(t, err)
	assert.Equal(t, SpeciesID(0), empty.ID)
	assert.Equal(t, 1, empty.Coordination)
	assert.True(t, empty.IsSurface())

	o2, err := m.AddSpecies("@@O2", "", -1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, o2.Coordination)

	gas, err := m.AddSpecies("CO", "", -1, 1e-3)
	require.NoError(t, err)
	assert.False(t, gas.IsSurface())

	wide, err := m.AddSpecies("@X", "", 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, wide.Coordination, "explicit coordination wins over the name")

	_, err = m.AddSpecies("@", "", -1, 0)
	assert.ErrorIs(t, err, ErrInput)
	_, err = m.AddSpecies("", "", -1, 0)
	assert.ErrorIs(t, err, ErrInput)

	got, ok := m.Species("CO")
	require.True(t, ok)
	assert.Same(t, gas, got)
	assert.Same(t, o2, m.SpeciesByID(1))
	assert.Len(t, m.AllSpecies(), 4)
	assert.Equal(t, 3, m.MaxCoordination())
}

func TestMechanism_AddReaction(t *testing.T) {
	m := NewMechanism("m")
	empty := addSpecies(t, m, "@", 1)
	a := addSpecies(t, m, "@A", 0)

	addReaction(t, m, "ads", []Stoich{one(empty)}, []Stoich{one(a)}, ConstantK{K: 1}, nil)
	assert.Len(t, m.Reactions(), 1)

	dup, err := NewReaction("ads", "", []Stoich{one(a)}, []Stoich{one(empty)}, ConstantK{K: 1}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, m.AddReaction(dup), ErrInput)

	foreign := &Species{ID: 0, Name: "@", Coordination: 1}
	r, err := NewReaction("foreign", "", []Stoich{one(foreign)}, []Stoich{one(a)}, ConstantK{K: 1}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, m.AddReaction(r), ErrInput)

	assert.ErrorIs(t, m.AddReaction(nil), ErrInput)
}

func TestNewReaction(t *testing.T) {
	m := NewMechanism("m")
	empty := addSpecies(t, m, "@", 1)
	o := addSpecies(t, m, "@O", 0)
	o2 := addSpecies(t, m, "O2", 0.5)

	r, err := NewReaction("diss", "",
		[]Stoich{one(o2), one(empty), one(empty)},
		[]Stoich{{Species: o, Coefficient: 2}},
		ConstantK{K: 3}, ConstantK{K: 1})
	require.NoError(t, err)

	require.Len(t, r.Reactants, 2, "repeated species are merged")
	assert.Equal(t, 2.0, r.Reactants[1].Coefficient)
	assert.Equal(t, 2.0, r.Reactants[1].Power)
	assert.True(t, r.Reversible())
	assert.Equal(t, "O2 + 2 @ <=> 2 @O", r.String())
	assert.Equal(t, r.String(), r.Name)

	net := map[string]float64{}
	for _, s := range r.Net() {
		net[s.Species.Name] = s.Coefficient
	}
	assert.Equal(t, map[string]float64{"O2": -1, "@": -2, "@O": 2}, net)

	seq, err := r.ReactantSeq()
	require.NoError(t, err)
	assert.Equal(t, []*Species{o2, empty, empty}, seq)

	_, err = NewReaction("bad", "", []Stoich{{Species: o, Coefficient: 0}}, nil, ConstantK{K: 1}, nil)
	assert.ErrorIs(t, err, ErrInput)
	_, err = NewReaction("bad", "", []Stoich{one(o)}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInput)
}

func TestReaction_NonIntegralCoefficient(t *testing.T) {
	m := NewMechanism("m")
	o := addSpecies(t, m, "@O", 0)
	r, err := NewReaction("half", "", []Stoich{{Species: o, Coefficient: 1.5}}, nil, ConstantK{K: 1}, nil)
	require.NoError(t, err)

	_, err = r.ReactantSeq()
	assert.ErrorIs(t, err, ErrInput)
}

func TestReaction_Rates(t *testing.T) {
	m := NewMechanism("m")
	empty := addSpecies(t, m, "@", 0.5)
	co := addSpecies(t, m, "CO", 0.2)
	adsorbed := addSpecies(t, m, "@CO", 0.25)

	r, err := NewReaction("ads", "",
		[]Stoich{one(co), one(empty)},
		[]Stoich{{Species: adsorbed, Coefficient: 1, Power: 2, PowerSet: true}},
		ConstantK{K: 10}, ConstantK{K: 4})
	require.NoError(t, err)

	assert.InDelta(t, 10*0.2*0.5, r.ForwardRate(300), 1e-12)
	assert.InDelta(t, 4*0.25*0.25, r.ReverseRate(300), 1e-12)
	assert.InDelta(t, 10*0.2, r.FluidForwardRate(300), 1e-12)
	assert.InDelta(t, 4.0, r.FluidReverseRate(300), 1e-12)

	irreversible, err := NewReaction("des", "", []Stoich{one(adsorbed)}, []Stoich{one(co), one(empty)}, ConstantK{K: 1}, nil)
	require.NoError(t, err)
	assert.Zero(t, irreversible.ReverseRate(300))
	assert.Zero(t, irreversible.FluidReverseRate(300))
	assert.Equal(t, "@CO -> CO + @", irreversible.String())
}

func TestReaction_ExplicitPower(t *testing.T) {
	m := NewMechanism("m")
	a := addSpecies(t, m, "A", 0.5)
	b := addSpecies(t, m, "B", 0)

	zeroOrder, err := NewReaction("zero", "",
		[]Stoich{{Species: a, Coefficient: 1, PowerSet: true}}, []Stoich{one(b)},
		ConstantK{K: 2}, nil)
	require.NoError(t, err)
	assert.Zero(t, zeroOrder.Reactants[0].Power)
	assert.InDelta(t, 2.0, zeroOrder.ForwardRate(300), 1e-12, "an explicit zero power keeps the rate independent of A")

	merged, err := NewReaction("merged", "",
		[]Stoich{one(a), {Species: a, Coefficient: 1, Power: 0.5, PowerSet: true}}, []Stoich{one(b)},
		ConstantK{K: 1}, nil)
	require.NoError(t, err)
	require.Len(t, merged.Reactants, 1)
	assert.Equal(t, 2.0, merged.Reactants[0].Coefficient)
	assert.Equal(t, 0.5, merged.Reactants[0].Power, "a set power survives merging with an unset one")

	_, err = NewReaction("twice", "",
		[]Stoich{{Species: a, Coefficient: 1, Power: 1, PowerSet: true}, {Species: a, Coefficient: 1, Power: 2, PowerSet: true}},
		[]Stoich{one(b)}, ConstantK{K: 1}, nil)
	require.ErrorIs(t, err, ErrInput)
	assert.Contains(t, err.Error(), "set more than once")
}

func TestRateConstants(t *testing.T) {
	assert.Equal(t, 5.0, ConstantK{K: 5}.Value(1000))
	assert.Equal(t, "k_constant(5)", ConstantK{K: 5}.String())

	arr := ArrheniusK{K0: 1e13, Ea: 100e3}
	assert.InDelta(t, 1e13*math.Exp(-100e3/(GasConstant*500)), arr.Value(500), 1e-3)
	assert.Greater(t, arr.Value(600), arr.Value(500))
	assert.Equal(t, "k_arrhenius(1e+13, 100000)", arr.String())
}

func TestLFERK(t *testing.T) {
	_, err := NewLFERK(1, 10, 1.5, 0)
	assert.ErrorIs(t, err, ErrInput)

	l, err := NewLFERK(1e13, 80e3, 0.5, -20e3)
	require.NoError(t, err)
	assert.Equal(t, 70e3, l.ActivationEnergy())

	clampedZero, err := NewLFERK(1, 10e3, 1, -50e3)
	require.NoError(t, err)
	assert.Zero(t, clampedZero.ActivationEnergy())

	clampedDelta, err := NewLFERK(1, 10e3, 0, 40e3)
	require.NoError(t, err)
	assert.Equal(t, 40e3, clampedDelta.ActivationEnergy())

	arr := ArrheniusK{K0: 1e13, Ea: 70e3}
	assert.InDelta(t, arr.Value(450), l.Value(450), 1e-6)
}
