package agents

import "github.com/talgya/forager/internal/geom"

// Navigator moves agent bodies through the arena.
type Navigator interface {
	Position(id AgentID) geom.Point3
	Forward(id AgentID) geom.Point3
	SetDestination(id AgentID, p geom.Point3)
	RemainingDistance(id AgentID) float64
	HasPendingPath(id AgentID) bool
	HasPath(id AgentID) bool
	SampleValidPoint(near geom.Point3, radius float64) (geom.Point3, bool)
}

// Hit is the first thing a ray struck.
type Hit struct {
	Tag      Tag
	Agent    AgentID // set when Tag is TagAgent
	Point    geom.Point3
	Distance float64
}

// EntityRef is one entity found by a sphere overlap.
type EntityRef struct {
	Tag      Tag
	Agent    AgentID // set when Tag is TagAgent
	Position geom.Point3
}

// Spatial answers geometric queries about the arena.
type Spatial interface {
	Raycast(origin, dir geom.Point3, maxDistance float64) (Hit, bool)
	OverlapSphere(center geom.Point3, radius float64) []EntityRef
}

// Peers resolves agent IDs seen by Spatial to live agents of the current cohort.
type Peers interface {
	Peer(id AgentID) (*Agent, bool)
}
