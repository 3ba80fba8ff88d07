package kmc

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
)

// RNG is the single random stream owned by an engine. All draws (event
// selection, instance picks, waiting times, placement shuffles) come from it
// so a run is reproducible from its seed.
type RNG interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// OpenFloat64 returns a uniform value in (0, 1).
	OpenFloat64() float64
	// IntN returns a uniform integer in [0, n). It panics if n <= 0.
	IntN(n int) int
	// Seed restarts the stream from the given seed.
	Seed(seed uint64)
	// Clone returns an independent generator in the same state.
	Clone() RNG
	// Kind names the underlying generator.
	Kind() string
}

// Supported generator kinds.
const (
	RNGPCG     = "pcg"
	RNGChaCha8 = "chacha8"
)

type stateSource interface {
	rand.Source
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type sourceRNG struct {
	kind string
	src  stateSource
	r    *rand.Rand
}

// NewRNG creates a generator of the given kind ("pcg" when empty).
func NewRNG(kind string, seed uint64) (RNG, error) {
	kind = strings.ToLower(kind)
	if kind == "" {
		kind = RNGPCG
	}
	if kind != RNGPCG && kind != RNGChaCha8 {
		return nil, fmt.Errorf("%w: unknown random number generator %q", ErrConfig, kind)
	}
	g := &sourceRNG{kind: kind}
	g.Seed(seed)
	return g, nil
}

func (g *sourceRNG) Seed(seed uint64) {
	switch g.kind {
	case RNGChaCha8:
		var key [32]byte
		for i := range 4 {
			binary.LittleEndian.PutUint64(key[i*8:], seed+uint64(i)*0x9e3779b97f4a7c15)
		}
		g.src = rand.NewChaCha8(key)
	default:
		g.src = rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)
	}
	g.r = rand.New(g.src)
}

func (g *sourceRNG) Float64() float64 {
	return g.r.Float64()
}

func (g *sourceRNG) OpenFloat64() float64 {
	for {
		if u := g.r.Float64(); u > 0 {
			return u
		}
	}
}

func (g *sourceRNG) IntN(n int) int {
	return g.r.IntN(n)
}

func (g *sourceRNG) Kind() string {
	return g.kind
}

func (g *sourceRNG) Clone() RNG {
	state, err := g.src.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("kmc: cannot snapshot %s state: %v", g.kind, err))
	}
	var src stateSource
	switch g.kind {
	case RNGChaCha8:
		src = new(rand.ChaCha8)
	default:
		src = new(rand.PCG)
	}
	if err := src.UnmarshalBinary(state); err != nil {
		panic(fmt.Sprintf("kmc: cannot restore %s state: %v", g.kind, err))
	}
	return &sourceRNG{kind: g.kind, src: src, r: rand.New(src)}
}

// shuffle applies a Fisher-Yates permutation drawn from rng.
func shuffle[T any](rng RNG, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
