package world

import (
	"math"
	"time"

	"github.com/talgya/forager/internal/agents"
	"github.com/talgya/forager/internal/geom"
)

// whiskers are the heading offsets, in degrees, tried on one side when the
// direct step is blocked.
var whiskers = []float64{30, 60, 90, 120, 150}

// Position returns a body's position, or geom.Zero for an unknown id.
func (a *Arena) Position(id agents.AgentID) geom.Point3 {
	if b, ok := a.bodies[id]; ok {
		return b.Pos
	}
	return geom.Zero
}

// Forward returns a body's heading.
func (a *Arena) Forward(id agents.AgentID) geom.Point3 {
	if b, ok := a.bodies[id]; ok {
		return b.Fwd
	}
	return geom.Forward
}

// SetDestination starts a move to p, clamped to the floor. A destination
// inside an obstacle is moved to the nearest walkable point around it.
func (a *Arena) SetDestination(id agents.AgentID, p geom.Point3) {
	b, ok := a.bodies[id]
	if !ok {
		return
	}
	dest := a.clamp(p)
	if a.blocked(dest) {
		if free, ok := a.SampleValidPoint(dest, 2*(a.cfg.ObstacleRadius+a.cfg.BodyRadius)); ok {
			dest = free
		}
	}
	b.Dest = dest
	b.HasPath = true
	b.Side = 0
}

// RemainingDistance returns the distance left on the current move, 0 without one.
func (a *Arena) RemainingDistance(id agents.AgentID) float64 {
	b, ok := a.bodies[id]
	if !ok || !b.HasPath {
		return 0
	}
	return b.Pos.Distance(b.Dest)
}

// HasPendingPath is always false: paths are straight lines computed at once.
func (a *Arena) HasPendingPath(agents.AgentID) bool { return false }

// HasPath reports whether a body is on a move.
func (a *Arena) HasPath(id agents.AgentID) bool {
	b, ok := a.bodies[id]
	return ok && b.HasPath
}

// SampleValidPoint returns the walkable point nearest to near within radius.
// It searches rings around near at eight bearings and gives up with false.
func (a *Arena) SampleValidPoint(near geom.Point3, radius float64) (geom.Point3, bool) {
	p := a.clamp(near)
	if !a.blocked(p) {
		return p, true
	}
	const rings, bearings = 8, 8
	for i := 1; i <= rings; i++ {
		r := radius * float64(i) / rings
		for k := 0; k < bearings; k++ {
			c := a.clamp(p.Add(geom.FromYaw(float64(k) * 360 / bearings).Scale(r)))
			if !a.blocked(c) {
				return c, true
			}
		}
	}
	return geom.Zero, false
}

// Advance moves every body toward its destination by speed*dt. A blocked
// direct step is replaced with a free whisker direction; with none free the
// body stays put. A body keeps turning to the side it first chose until its
// straight line to the destination is clear.
func (a *Arena) Advance(dt time.Duration) {
	step := a.cfg.AgentSpeed * dt.Seconds()
	if step <= 0 {
		return
	}
	for _, id := range a.sortedIDs() {
		b := a.bodies[id]
		if !b.HasPath {
			continue
		}
		to := b.Dest.Sub(b.Pos).Flat()
		dist := to.Length()
		if dist <= step {
			if !a.blocked(b.Dest) {
				b.Pos = b.Dest
			}
			b.HasPath = false
			continue
		}
		if b.Side != 0 && a.clearLine(b.Pos, b.Dest) {
			b.Side = 0
		}
		dir := to.Scale(1 / dist)
		next := b.Pos.Add(dir.Scale(step))
		if a.blocked(next) {
			var ok bool
			if next, dir, ok = a.steer(b, dir, step); !ok {
				continue
			}
		}
		b.Pos = next
		b.Fwd = dir
	}
}

// steer returns the first free step off dir. An uncommitted body tries the
// smallest offset on either side and commits to the side it took; a committed
// body exhausts its side before switching.
func (a *Arena) steer(b *Body, dir geom.Point3, step float64) (geom.Point3, geom.Point3, bool) {
	if b.Side == 0 {
		for _, deg := range whiskers {
			for _, side := range []int{1, -1} {
				if next, d, ok := a.whisker(b.Pos, dir, float64(side)*deg, step); ok {
					b.Side = side
					return next, d, true
				}
			}
		}
		return b.Pos, dir, false
	}
	for _, side := range []int{b.Side, -b.Side} {
		for _, deg := range whiskers {
			if next, d, ok := a.whisker(b.Pos, dir, float64(side)*deg, step); ok {
				b.Side = side
				return next, d, true
			}
		}
	}
	return b.Pos, dir, false
}

func (a *Arena) whisker(pos, dir geom.Point3, deg, step float64) (geom.Point3, geom.Point3, bool) {
	d := geom.RotateYaw(dir, deg)
	next := pos.Add(d.Scale(step))
	return next, d, a.inside(next, a.cfg.BodyRadius) && !a.blocked(next)
}

// clearLine reports whether a body can travel straight from p to q.
func (a *Arena) clearLine(p, q geom.Point3) bool {
	p, q = p.Flat(), q.Flat()
	seg := q.Sub(p)
	l2 := seg.Dot(seg)
	for _, o := range a.Obstacles {
		t := 0.0
		if l2 > 0 {
			t = math.Max(0, math.Min(1, o.Center.Sub(p).Dot(seg)/l2))
		}
		if p.Add(seg.Scale(t)).Distance(o.Center) < o.Radius+a.cfg.BodyRadius {
			return false
		}
	}
	return true
}
