// Package engine provides the tick-based simulation loop, a scheduler of
// deferred tasks on simulated time, and the campaign that runs a sequence
// of foraging runs.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// Engine drives the simulation forward in fixed steps of simulated time.
type Engine struct {
	Interval time.Duration // simulated time per tick
	OnTick   func(tick uint64, dt time.Duration)

	tick    atomic.Uint64
	speed   atomic.Uint64 // float64 bits; multiplier, 1.0 = real-time, 0 = paused
	running atomic.Bool
	stop    chan struct{}
}

// NewEngine creates a simulation engine running at real-time speed.
func NewEngine(interval time.Duration) *Engine {
	e := &Engine{
		Interval: interval,
		stop:     make(chan struct{}, 1),
	}
	e.SetSpeed(1)
	return e
}

// Tick returns the number of ticks processed.
func (e *Engine) Tick() uint64 { return e.tick.Load() }

// SimTime returns the simulated time elapsed since the engine started.
func (e *Engine) SimTime() time.Duration {
	return time.Duration(e.tick.Load()) * e.Interval
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed sets the speed multiplier. Values <= 0 pause the loop.
func (e *Engine) SetSpeed(s float64) {
	if math.IsNaN(s) || s < 0 {
		s = 0
	}
	e.speed.Store(math.Float64bits(s))
}

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Run starts the simulation loop. Blocks until Stop is called or ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "interval", e.Interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick(), "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return
		default:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	select {
	case e.stop <- struct{}{}:
	default:
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	t := e.tick.Add(1)
	if e.OnTick != nil {
		e.OnTick(t, e.Interval)
	}
}

// SimClock formats a simulated duration as h:mm:ss.s.
func SimClock(d time.Duration) string {
	total := d.Seconds()
	h := int(total) / 3600
	m := int(total) / 60 % 60
	s := math.Mod(total, 60)
	return fmt.Sprintf("%d:%02d:%04.1f", h, m, s)
}
