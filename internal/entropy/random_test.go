package entropy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/forager/internal/entropy"
)

func TestNewIsDeterministic(t *testing.T) {
	a, b := entropy.New(42), entropy.New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestDeriveStreamsDiffer(t *testing.T) {
	a, b := entropy.Derive(7, 1), entropy.Derive(7, 2)
	same := 0
	for i := 0; i < 50; i++ {
		if a.IntN(1_000_000) == b.IntN(1_000_000) {
			same++
		}
	}
	assert.Less(t, same, 5)
}

func TestSeed(t *testing.T) {
	assert.Equal(t, int64(99), entropy.Seed(99))
	assert.NotZero(t, entropy.Seed(0))
}
