package learning_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/forager/internal/entropy"
	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/learning"
)

// script replays fixed draws, then repeats the last one.
type script struct {
	floats []float64
	ints   []int
}

func (s *script) Float64() float64 {
	v := s.floats[0]
	if len(s.floats) > 1 {
		s.floats = s.floats[1:]
	}
	return v
}

func (s *script) IntN(n int) int {
	v := s.ints[0]
	if len(s.ints) > 1 {
		s.ints = s.ints[1:]
	}
	return v % n
}

func TestStateMonotonicInDistance(t *testing.T) {
	prev := -1
	for d := 0.0; d < 200; d += 0.37 {
		s := learning.StateForDistance(d, 5)
		assert.GreaterOrEqual(t, s, prev, "distance %.2f", d)
		prev = s
	}
	assert.Equal(t, 0, learning.StateForDistance(4.99, 5))
	assert.Equal(t, 1, learning.StateForDistance(5, 5))
	assert.Equal(t, 3, learning.StateForDistance(19.5, 5))
}

func TestGetStateUsesDistanceToTarget(t *testing.T) {
	e := learning.NewEngine(learning.DefaultParams(), learning.NewQTable(), entropy.New(1))
	assert.Equal(t, 2, e.GetState(geom.Pt(0, 0, 0), geom.Pt(6, 0, 8)))
}

func TestRewardSign(t *testing.T) {
	for prev := 0.5; prev < 60; prev += 1.3 {
		closer := learning.Reward(0.1, prev, prev*0.7)
		farther := learning.Reward(0.1, prev, prev+2)
		assert.Greater(t, closer, 0.0, "prev %.1f", prev)
		assert.Less(t, farther, 0.0, "prev %.1f", prev)
	}
	assert.Zero(t, learning.Reward(0.1, 7, 7))
	// Closing the same distance is worth more near the target.
	assert.Greater(t, learning.Reward(0.1, 5, 2), learning.Reward(0.1, 35, 32))
}

func TestChooseActionUniformWhenExploring(t *testing.T) {
	p := learning.DefaultParams()
	p.Exploration = 1.0
	e := learning.NewEngine(p, learning.NewQTable(), entropy.New(2024))

	counts := make([]int, p.NumActions)
	const trials = 1000
	for i := 0; i < trials; i++ {
		a := e.ChooseAction(0)
		require.True(t, a >= 0 && a < p.NumActions)
		counts[a]++
	}

	expected := float64(trials) / float64(p.NumActions)
	chi2 := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	// Critical value for 7 degrees of freedom at p = 0.001.
	assert.Less(t, chi2, 24.32, "counts %v", counts)
}

func TestChooseActionGreedyPicksBest(t *testing.T) {
	p := learning.DefaultParams()
	p.Exploration = 0
	table := learning.NewQTable()
	table.Set(3, 5, 1.5)
	table.Set(3, 2, 0.4)
	e := learning.NewEngine(p, table, entropy.New(9))

	for i := 0; i < 50; i++ {
		assert.Equal(t, 5, e.ChooseAction(3))
	}
}

func TestChooseActionBreaksTiesRandomly(t *testing.T) {
	p := learning.DefaultParams()
	p.Exploration = 0
	table := learning.NewQTable()
	table.Set(1, 2, 0.8)
	table.Set(1, 6, 0.8)
	e := learning.NewEngine(p, table, entropy.New(5))

	seen := map[int]int{}
	for i := 0; i < 200; i++ {
		seen[e.ChooseAction(1)]++
	}
	assert.Len(t, seen, 2)
	assert.Greater(t, seen[2], 50)
	assert.Greater(t, seen[6], 50)
}

func TestComputeDestination(t *testing.T) {
	p := learning.DefaultParams()
	e := learning.NewEngine(p, learning.NewQTable(), entropy.New(1))
	origin := geom.Pt(1, 0, 1)

	straight := e.ComputeDestination(origin, geom.Forward, 0)
	assert.InDelta(t, 1.0, straight.X, 1e-9)
	assert.InDelta(t, 11.0, straight.Z, 1e-9)

	right := e.ComputeDestination(origin, geom.Forward, 2) // 90 degrees
	assert.InDelta(t, 11.0, right.X, 1e-9)
	assert.InDelta(t, 1.0, right.Z, 1e-9)

	// Relative to heading: facing +X, action 2 points to -Z.
	turned := e.ComputeDestination(origin, geom.Pt(1, 0, 0), 2)
	assert.InDelta(t, 1.0, turned.X, 1e-9)
	assert.InDelta(t, -9.0, turned.Z, 1e-9)

	for a := 0; a < p.NumActions; a++ {
		d := e.ComputeDestination(origin, geom.Forward, a)
		assert.InDelta(t, p.WanderRadius, d.Distance(origin), 1e-9)
		assert.Equal(t, d, e.ComputeDestination(origin, geom.Forward, a))
	}
}

func TestUpdateAppliesRule(t *testing.T) {
	p := learning.DefaultParams()
	p.Exploration = 0
	table := learning.NewQTable()
	e := learning.NewEngine(p, table, &script{floats: []float64{0.99}, ints: []int{0}})

	target := geom.Pt(0, 0, 0)
	start := geom.Pt(0, 0, 30)
	e.Begin(start, geom.Forward, target, nil)
	require.Equal(t, 6, e.State())
	action := e.Action()

	table.Set(4, 3, 2.0) // max of next state
	step := e.Update(geom.Pt(0, 0, 22), target, false)

	reward := math.Exp(-0.1*22) - math.Exp(-0.1*30)
	want := 0 + 0.1*(reward+0.95*2.0-0)
	assert.Equal(t, 4, step.NewState)
	assert.False(t, step.Revisit)
	assert.InDelta(t, reward, step.Reward, 1e-12)
	assert.InDelta(t, want, table.Get(6, action), 1e-12)
	assert.Equal(t, 4, e.State())
}

func TestUpdateRevisitPenaltyAndGoalBonus(t *testing.T) {
	p := learning.DefaultParams()
	p.Exploration = 0
	e := learning.NewEngine(p, learning.NewQTable(), entropy.New(3))
	target := geom.Pt(0, 0, 0)

	e.Begin(geom.Pt(0, 0, 12), geom.Forward, target, nil)
	first := e.Update(geom.Pt(0, 0, 12), target, false)
	assert.True(t, first.Revisit)
	assert.InDelta(t, p.RevisitPenalty, first.Reward, 1e-12)

	e.NextDestination(geom.Pt(0, 0, 12), geom.Forward, nil)
	last := e.Update(geom.Pt(0, 0, 1), target, true)
	assert.False(t, last.Revisit)
	assert.InDelta(t, math.Exp(-0.1)-math.Exp(-1.2)+p.GoalBonus, last.Reward, 1e-12)
}

func TestNextDestinationRetriesAvoided(t *testing.T) {
	p := learning.DefaultParams()
	p.Exploration = 1
	// Explore every time; actions 0, 0, 4.
	rng := &script{floats: []float64{0}, ints: []int{0, 0, 4}}
	e := learning.NewEngine(p, learning.NewQTable(), rng)

	origin := geom.Pt(0, 0, 0)
	blocked := e.ComputeDestination(origin, geom.Forward, 0)
	calls := 0
	dest := e.NextDestination(origin, geom.Forward, func(pt geom.Point3) bool {
		calls++
		return pt.Distance(blocked) < 1e-6
	})
	assert.Equal(t, 4, e.Action())
	assert.InDelta(t, -10.0, dest.Z, 1e-9)
	assert.Equal(t, 3, calls)
}

func TestNextDestinationFallsThroughAfterRetries(t *testing.T) {
	p := learning.DefaultParams()
	p.AvoidRetries = 10
	e := learning.NewEngine(p, learning.NewQTable(), entropy.New(8))

	calls := 0
	dest := e.NextDestination(geom.Zero, geom.Forward, func(geom.Point3) bool {
		calls++
		return true
	})
	assert.Equal(t, p.AvoidRetries, calls)
	assert.InDelta(t, p.WanderRadius, dest.Length(), 1e-9)
}

// With exploration disabled and a fixed approaching reward, the learned value
// of the chosen action never decreases.
func TestUpdateValuesNonDecreasingWhileApproaching(t *testing.T) {
	for trial := 0; trial < 50; trial++ {
		p := learning.DefaultParams()
		p.Exploration = 0
		p.RevisitPenalty = 0
		table := learning.NewQTable()
		e := learning.NewEngine(p, table, entropy.New(int64(trial+1)))
		target := geom.Zero

		pos := geom.Pt(0, 0, 40)
		e.Begin(pos, geom.Forward, target, nil)
		last := map[learning.Key]float64{}
		for step := 0; step < 30; step++ {
			next := pos.Sub(geom.Pt(0, 0, 1))
			k := learning.Key{State: e.State(), Action: e.Action()}
			s := e.Update(next, target, false)
			if prev, ok := last[k]; ok {
				assert.GreaterOrEqual(t, s.Q, prev-1e-12)
			}
			last[k] = s.Q
			pos = next
			e.NextDestination(pos, geom.Forward, nil)
		}
	}
}
