// Agent sensing and exploration: target detection, empathetic adoption of a
// peer's target, contact handling, and the farthest-candidate exploration cycle.
package agents

import (
	"log/slog"

	"github.com/talgya/forager/internal/entropy"
	"github.com/talgya/forager/internal/geom"
)

// foundBy records how an agent came to know the target.
type foundBy uint8

const (
	bySight foundBy = iota
	byContact
	byPeer
)

func (f foundBy) String() string {
	switch f {
	case bySight:
		return "sight"
	case byContact:
		return "contact"
	default:
		return "peer"
	}
}

// inView reports whether p lies strictly inside the agent's field of view.
func (a *Agent) inView(pos, p geom.Point3) bool {
	return geom.Angle(a.forward(), p.Sub(pos)) < a.cfg.FieldOfView/2
}

// detectFood looks for the target along a clear line of sight.
func (a *Agent) detectFood() {
	pos := a.Position()
	if !a.inView(pos, a.Target) {
		return
	}
	dir := a.Target.Sub(pos).Normalized()
	hit, ok := a.env.Space.Raycast(pos, dir, a.cfg.DetectionRange)
	if !ok || hit.Tag != TagFood {
		return
	}
	a.markFound(a.Target, bySight)
}

// detectPeers adopts the target of a nearby, visible peer that has found it,
// when the two agents' fuzzy states are similar enough.
func (a *Agent) detectPeers() {
	pos := a.Position()
	mine := a.FuzzyState()
	for _, ref := range a.env.Space.OverlapSphere(pos, a.cfg.DetectionRange) {
		if ref.Tag != TagAgent || ref.Agent == a.ID {
			continue
		}
		peer, ok := a.env.Peers.Peer(ref.Agent)
		if !ok || !peer.IsFound() {
			continue
		}
		if !a.inView(pos, ref.Position) {
			continue
		}
		to := ref.Position.Sub(pos)
		if hit, ok := a.env.Space.Raycast(pos, to.Normalized(), a.cfg.DetectionRange); ok {
			if hit.Tag != TagAgent || hit.Agent != peer.ID {
				continue
			}
		}
		similarity := Similarity(mine, peer.FuzzyState())
		if similarity > a.cfg.SimilarityThreshold {
			slog.Debug("adopting peer target", "agent", a.ID, "peer", peer.ID, "similarity", similarity)
			a.markFound(peer.Target, byPeer)
			return
		}
	}
}

// checkContacts handles touching the food or an obstacle. Obstacle contact
// triggers avoidance once per contact, not on every tick spent touching.
func (a *Agent) checkContacts() {
	pos := a.Position()
	touching := false
	for _, ref := range a.env.Space.OverlapSphere(pos, a.cfg.ContactRadius) {
		switch ref.Tag {
		case TagFood:
			a.markFound(ref.Position, byContact)
			return
		case TagObstacle:
			touching = true
		}
	}
	if touching && !a.touching {
		a.avoidObstacle()
	}
	a.touching = touching
}

// markFound makes the agent Found and heads it to the target. Direct finds
// record the location and clear no-resource areas around it; in learning mode
// they also close the move with a goal-reaching update.
func (a *Agent) markFound(location geom.Point3, how foundBy) {
	if a.state == Found {
		return
	}
	a.state = Found
	a.env.Shared.markFound()
	a.setDestination(location)
	slog.Debug("target found", "agent", a.ID, "by", how.String(), "location", location)

	if how == byPeer {
		return
	}

	if a.learner != nil {
		step := a.learner.Update(a.Position(), a.Target, true)
		slog.Debug("goal update", "agent", a.ID, "state", step.PrevState, "action", step.Action, "reward", step.Reward)
	}

	if err := a.env.Knowledge.AddFoodLocation(location); err != nil {
		slog.Warn("save food location", "agent", a.ID, "error", err)
	}
	r := a.cfg.NoResourceRadius
	purged := a.env.Shared.NoResource.RemoveNear(location, r)
	if a.cfg.UseBaseKnowledge {
		n, err := a.env.Knowledge.RemoveNoResourceNear(location, r)
		if err != nil {
			slog.Warn("purge no-resource areas", "agent", a.ID, "error", err)
		}
		purged += n
	}
	if purged > 0 {
		slog.Debug("no-resource areas purged near target", "agent", a.ID, "count", purged)
	}
}

// explorationCycle runs when the exploration timer fires. A completed move
// without a find marks the current position as a no-resource area before
// the next point is chosen.
func (a *Agent) explorationCycle() {
	nav := a.env.Nav
	if nav.HasPath(a.ID) && nav.RemainingDistance(a.ID) >= a.cfg.ArriveThreshold {
		return
	}
	if a.cfg.UseEmpatheticBehavior {
		pos := a.Position()
		if !a.inNoResourceArea(pos) {
			a.env.Shared.NoResource.Add(pos)
			if a.cfg.UseBaseKnowledge {
				if err := a.env.Knowledge.AddNoResourceArea(pos); err != nil {
					slog.Warn("save no-resource area", "agent", a.ID, "error", err)
				}
			}
			slog.Debug("marking no-resource area", "agent", a.ID, "position", pos)
		}
	}
	a.wander()
}

// wander issues a fresh exploration point projected onto walkable ground.
func (a *Agent) wander() {
	p := a.explorationPoint()
	if valid, ok := a.env.Nav.SampleValidPoint(p, a.cfg.WanderRadius); ok {
		a.setDestination(valid)
	}
}

func (a *Agent) avoidObstacle() {
	p := a.Position().Add(randomInDisk(a.rng).Scale(a.cfg.WanderRadius))
	if valid, ok := a.env.Nav.SampleValidPoint(p, a.cfg.WanderRadius); ok {
		slog.Debug("avoiding obstacle", "agent", a.ID, "destination", valid)
		a.setDestination(valid)
	}
}

// explorationPoint samples candidates within the wander radius and keeps the
// farthest one that is neither remembered nor (with empathy on) inside a
// no-resource area. With no survivor it falls back to an unfiltered random
// point. The chosen point is always remembered.
func (a *Agent) explorationPoint() geom.Point3 {
	pos := a.Position()
	var best geom.Point3
	bestDist := 0.0
	found := false
	for i := 0; i < a.cfg.ExploreCandidates; i++ {
		c := pos.Add(randomInDisk(a.rng).Scale(a.cfg.WanderRadius))
		if a.cfg.UseEmpatheticBehavior && a.inNoResourceArea(c) {
			continue
		}
		if a.memory.IsVisited(c) {
			continue
		}
		if d := pos.Distance(c); !found || d > bestDist {
			best, bestDist = c, d
		}
		found = true
	}
	if !found {
		best = pos.Add(randomInDisk(a.rng).Scale(a.cfg.WanderRadius))
		slog.Debug("all exploration candidates rejected, using random point", "agent", a.ID)
	}
	a.memory.Add(best)
	return best
}

// randomInDisk returns a uniform point in the unit disk of the XZ plane.
func randomInDisk(rng entropy.Source) geom.Point3 {
	for {
		x := 2*rng.Float64() - 1
		z := 2*rng.Float64() - 1
		if x*x+z*z <= 1 {
			return geom.Pt(x, 0, z)
		}
	}
}
