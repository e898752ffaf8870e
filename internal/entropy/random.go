// Package entropy provides the seedable random sources injected into agents,
// the spawner, and arena generation. Nothing in the simulation reads a global
// random generator.
package entropy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Source is the random stream a component draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n)
}

// New returns a deterministic source for the given seed.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

// Derive returns an independent deterministic source for a named stream of a
// base seed, so agent N's stream does not depend on how many draws the spawner made.
func Derive(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), stream+1))
}

// Seed returns the configured seed, or a crypto-random one when configured is 0.
func Seed(configured int64) int64 {
	if configured != 0 {
		return configured
	}
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}
