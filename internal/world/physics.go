package world

import (
	"math"

	"github.com/talgya/forager/internal/agents"
	"github.com/talgya/forager/internal/geom"
)

// Raycast returns the nearest obstacle, food, or body struck by a ray in the
// floor plane within maxDistance. A body containing the origin is ignored.
func (a *Arena) Raycast(origin, dir geom.Point3, maxDistance float64) (agents.Hit, bool) {
	o := origin.Flat()
	d := dir.Flat().Normalized()
	if d.IsZero() {
		return agents.Hit{}, false
	}

	best := agents.Hit{Distance: math.Inf(1)}
	try := func(c geom.Point3, r float64, tag agents.Tag, id agents.AgentID) {
		t, ok := rayCircle(o, d, c, r)
		if ok && t <= maxDistance && t < best.Distance {
			best = agents.Hit{Tag: tag, Agent: id, Point: o.Add(d.Scale(t)), Distance: t}
		}
	}

	for _, ob := range a.Obstacles {
		try(ob.Center, ob.Radius, agents.TagObstacle, 0)
	}
	try(a.Food, a.cfg.FoodRadius, agents.TagFood, 0)
	for id, b := range a.bodies {
		if b.Pos.Distance(o) < a.cfg.BodyRadius {
			continue
		}
		try(b.Pos, a.cfg.BodyRadius, agents.TagAgent, id)
	}

	if math.IsInf(best.Distance, 1) {
		return agents.Hit{}, false
	}
	return best, true
}

// rayCircle returns the distance along a unit ray from o to the first
// intersection with the circle (c, r). Rays starting inside miss.
func rayCircle(o, d, c geom.Point3, r float64) (float64, bool) {
	oc := c.Sub(o)
	if oc.Length() < r {
		return 0, false
	}
	t := oc.Dot(d)
	if t <= 0 {
		return 0, false
	}
	perp2 := oc.Dot(oc) - t*t
	if perp2 > r*r {
		return 0, false
	}
	return t - math.Sqrt(r*r-perp2), true
}

// OverlapSphere returns every obstacle, the food, and every body whose
// footprint intersects the circle of radius around center.
func (a *Arena) OverlapSphere(center geom.Point3, radius float64) []agents.EntityRef {
	c := center.Flat()
	var out []agents.EntityRef
	for _, ob := range a.Obstacles {
		if c.Distance(ob.Center) <= radius+ob.Radius {
			out = append(out, agents.EntityRef{Tag: agents.TagObstacle, Position: ob.Center})
		}
	}
	if c.Distance(a.Food) <= radius+a.cfg.FoodRadius {
		out = append(out, agents.EntityRef{Tag: agents.TagFood, Position: a.Food})
	}
	for _, id := range a.sortedIDs() {
		b := a.bodies[id]
		if c.Distance(b.Pos) <= radius+a.cfg.BodyRadius {
			out = append(out, agents.EntityRef{Tag: agents.TagAgent, Agent: id, Position: b.Pos})
		}
	}
	return out
}
