package agents

import "github.com/talgya/forager/internal/entropy"

// FuzzyState is an agent's momentary self-assessment used to decide whether
// to trust a peer. Internal is a fresh random sample on every call (the
// agent's confidence); External is the distance to the target normalized to [0, 1].
type FuzzyState struct {
	Internal float64 `json:"internal"`
	External float64 `json:"external"`
}

// Comparator produces fuzzy states from an agent's random stream.
type Comparator struct {
	rng  entropy.Source
	norm float64
}

// NewComparator returns a comparator that maps distance norm to External 1.0.
func NewComparator(rng entropy.Source, norm float64) *Comparator {
	if norm <= 0 {
		norm = 1
	}
	return &Comparator{rng: rng, norm: norm}
}

// State samples a fuzzy state for an agent at the given distance from its target.
func (c *Comparator) State(distance float64) FuzzyState {
	return FuzzyState{
		Internal: c.rng.Float64(),
		External: clamp01(distance / c.norm),
	}
}

// Similarity returns 1 - (|dInternal| + |dExternal|) / 2, clamped to [0, 1].
func Similarity(a, b FuzzyState) float64 {
	di := a.Internal - b.Internal
	if di < 0 {
		di = -di
	}
	de := a.External - b.External
	if de < 0 {
		de = -de
	}
	return clamp01(1 - (di+de)/2)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
