package kmc

import (
	"fmt"
	"math"
	"strconv"
)

// Physical constants in SI units.
const (
	GasConstant = 8.314510     // J/(mol K)
	Avogadro    = 6.0221367e23 // 1/mol
	Boltzmann   = 1.380657e-23 // J/K
)

// DoubleEps is the machine epsilon of float64.
const DoubleEps = 2.220446049250313e-16

// RateConstant evaluates a reaction rate constant at a temperature.
// The set of implementations is closed: ConstantK, ArrheniusK and LFERK.
type RateConstant interface {
	Value(temperature float64) float64
	String() string
}

// ConstantK is a temperature independent rate constant.
type ConstantK struct {
	K float64
}

func (c ConstantK) Value(float64) float64 { return c.K }

func (c ConstantK) String() string {
	return "k_constant(" + formatFloat(c.K) + ")"
}

// ArrheniusK is k0 exp(-Ea/RT) with Ea in J/mol.
type ArrheniusK struct {
	K0 float64
	Ea float64
}

func (a ArrheniusK) Value(temperature float64) float64 {
	return a.K0 * math.Exp(-a.Ea/(GasConstant*temperature))
}

func (a ArrheniusK) String() string {
	return "k_arrhenius(" + formatFloat(a.K0) + ", " + formatFloat(a.Ea) + ")"
}

// LFERK is an Arrhenius rate constant whose activation energy follows a
// linear free-energy relation: Ea = E0 + Gamma*DeltaH, never below zero and
// never below DeltaH.
type LFERK struct {
	K0     float64
	E0     float64
	Gamma  float64
	DeltaH float64
}

// NewLFERK returns an LFERK after checking the transfer coefficient lies in [0, 1].
func NewLFERK(k0, e0, gamma, deltaH float64) (LFERK, error) {
	if gamma < 0 || gamma > 1 {
		return LFERK{}, fmt.Errorf("%w: lfer transfer coefficient must be in [0, 1], got %g", ErrInput, gamma)
	}
	return LFERK{K0: k0, E0: e0, Gamma: gamma, DeltaH: deltaH}, nil
}

// ActivationEnergy returns the clamped activation energy.
func (l LFERK) ActivationEnergy() float64 {
	ea := l.E0 + l.Gamma*l.DeltaH
	if ea < 0 {
		ea = 0
	}
	if ea < l.DeltaH {
		ea = l.DeltaH
	}
	return ea
}

func (l LFERK) Value(temperature float64) float64 {
	return l.K0 * math.Exp(-l.ActivationEnergy()/(GasConstant*temperature))
}

func (l LFERK) String() string {
	return "k_lfer(" + formatFloat(l.K0) + ", " + formatFloat(l.E0) + ", " +
		formatFloat(l.Gamma) + ", " + formatFloat(l.DeltaH) + ")"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
