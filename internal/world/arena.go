// Package world is a headless arena for foraging runs: a flat floor with
// pillar obstacles, one food source, and agent bodies that steer in straight
// lines toward their destinations. It implements the navigation and spatial
// query collaborators the agents are written against.
package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/talgya/forager/internal/agents"
	"github.com/talgya/forager/internal/geom"
)

// Obstacle is a vertical pillar with a circular footprint.
type Obstacle struct {
	Center geom.Point3 `json:"center"`
	Radius float64     `json:"radius"`
}

// Body is one agent's physical presence in the arena.
type Body struct {
	Pos     geom.Point3
	Fwd     geom.Point3
	Dest    geom.Point3
	HasPath bool
	Side    int // steering side while blocked: 1 clockwise, -1 counter-clockwise, 0 none
}

// Arena holds the floor, obstacles, food, and agent bodies. It is not safe
// for concurrent use; the simulation loop owns it.
type Arena struct {
	cfg       GenConfig
	Obstacles []Obstacle
	Food      geom.Point3
	bodies    map[agents.AgentID]*Body
}

// NewArena creates an arena with no obstacles.
func NewArena(cfg GenConfig) *Arena {
	return &Arena{
		cfg:    cfg,
		Food:   cfg.Food.Flat(),
		bodies: make(map[agents.AgentID]*Body),
	}
}

// Config returns the generation parameters.
func (a *Arena) Config() GenConfig { return a.cfg }

// FoodPosition returns where the food source sits.
func (a *Arena) FoodPosition() geom.Point3 { return a.Food }

// SpawnBounds returns the corners of the spawn area.
func (a *Arena) SpawnBounds() (min, max geom.Point3) {
	h := a.cfg.SpawnHalf
	return geom.Pt(-h, 0, -h), geom.Pt(h, 0, h)
}

// AddBody places an agent body at pos facing +Z.
func (a *Arena) AddBody(id agents.AgentID, pos geom.Point3) {
	a.bodies[id] = &Body{Pos: pos.Flat(), Fwd: geom.Forward}
}

// RemoveBody deletes an agent body.
func (a *Arena) RemoveBody(id agents.AgentID) {
	delete(a.bodies, id)
}

// ClearBodies removes every agent body.
func (a *Arena) ClearBodies() {
	a.bodies = make(map[agents.AgentID]*Body)
}

// BodyCount returns the number of agent bodies.
func (a *Arena) BodyCount() int { return len(a.bodies) }

// Body returns a copy of an agent's body.
func (a *Arena) Body(id agents.AgentID) (Body, bool) {
	b, ok := a.bodies[id]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// inside reports whether a circle of radius r at p fits within the floor.
func (a *Arena) inside(p geom.Point3, r float64) bool {
	h := a.cfg.HalfSize - r
	return math.Abs(p.X) <= h && math.Abs(p.Z) <= h
}

// clamp pulls p onto the walkable floor.
func (a *Arena) clamp(p geom.Point3) geom.Point3 {
	h := a.cfg.HalfSize - a.cfg.BodyRadius
	p = p.Flat()
	p.X = math.Max(-h, math.Min(h, p.X))
	p.Z = math.Max(-h, math.Min(h, p.Z))
	return p
}

// blocked reports whether a body at p would intersect an obstacle.
func (a *Arena) blocked(p geom.Point3) bool {
	for _, o := range a.Obstacles {
		if p.Flat().Distance(o.Center) < o.Radius+a.cfg.BodyRadius {
			return true
		}
	}
	return false
}

// sortedIDs returns body IDs in ascending order so movement is deterministic.
func (a *Arena) sortedIDs() []agents.AgentID {
	ids := make([]agents.AgentID, 0, len(a.bodies))
	for id := range a.bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// String returns a summary of the arena.
func (a *Arena) String() string {
	return fmt.Sprintf("Arena(size=%.0f, obstacles=%d, bodies=%d)", 2*a.cfg.HalfSize, len(a.Obstacles), len(a.bodies))
}
