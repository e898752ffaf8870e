package agents

import (
	"log/slog"
	"time"

	"github.com/talgya/forager/internal/entropy"
	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/knowledge"
	"github.com/talgya/forager/internal/learning"
)

// Env is what an agent is wired to: the arena collaborators, the shared
// learned state, and the shared per-run state.
type Env struct {
	Nav       Navigator
	Space     Spatial
	Peers     Peers
	Knowledge *knowledge.Base
	Shared    *Shared
	Table     *learning.QTable
	Learning  learning.Params
}

// Agent is one foraging agent. It is driven by Tick from a single goroutine;
// the Q-table, knowledge base, and Shared it writes to are safe for
// concurrent use by other agents.
type Agent struct {
	ID     AgentID
	Target geom.Point3 // position of the food source this agent searches for

	cfg     Config
	env     Env
	rng     entropy.Source
	memory  *SpatialMemory
	fuzzy   *Comparator
	learner *learning.Engine

	state       RunState
	started     bool
	dest        geom.Point3
	seekKnown   bool
	sinceWander time.Duration
	closest     float64 // least remaining distance since the last destination
	stuckFor    time.Duration
	touching    bool
	rescues     int
}

// New creates an agent. It does nothing until its first Tick.
func New(id AgentID, cfg Config, target geom.Point3, env Env, rng entropy.Source) *Agent {
	a := &Agent{
		ID:     id,
		Target: target,
		cfg:    cfg,
		env:    env,
		rng:    rng,
		memory: NewSpatialMemory(cfg.MaxMemoryCount, cfg.MemoryRadius),
		fuzzy:  NewComparator(rng, cfg.DistanceNorm),
	}
	if cfg.UseReinforcementLearning {
		a.learner = learning.NewEngine(env.Learning, env.Table, rng)
	}
	return a
}

// State returns the agent's run state.
func (a *Agent) State() RunState { return a.state }

// IsFound reports whether the agent has found the target this run.
func (a *Agent) IsFound() bool { return a.state == Found }

// Position returns the agent's current position.
func (a *Agent) Position() geom.Point3 { return a.env.Nav.Position(a.ID) }

// Destination returns the last destination the agent issued.
func (a *Agent) Destination() geom.Point3 { return a.dest }

// Memory returns the agent's spatial memory.
func (a *Agent) Memory() *SpatialMemory { return a.memory }

// Learner returns the agent's decision engine, nil when learning is off.
func (a *Agent) Learner() *learning.Engine { return a.learner }

// FuzzyState samples the agent's current fuzzy state. Every call draws a new
// Internal value.
func (a *Agent) FuzzyState() FuzzyState {
	return a.fuzzy.State(a.Position().Distance(a.Target))
}

// Start chooses the initial behavior: the learning loop, a known food
// location, or the exploration cycle.
func (a *Agent) Start() {
	a.started = true

	switch {
	case a.cfg.UseReinforcementLearning:
		dest := a.learner.Begin(a.Position(), a.forward(), a.Target, a.avoid)
		a.memory.Add(dest)
		a.setDestination(dest)
	case a.cfg.UseBaseKnowledge:
		if !a.knownFood() {
			a.sinceWander = a.cfg.WanderInterval
		}
	default:
		a.sinceWander = a.cfg.WanderInterval
	}
}

func (a *Agent) knownFood() bool {
	best, ok := a.env.Knowledge.BestFoodLocation()
	if !ok {
		return false
	}
	a.seekKnown = true
	a.setDestination(best)
	slog.Debug("heading to known food location", "agent", a.ID, "location", best)
	return true
}

// Tick advances the agent by dt of simulated time: sensing, sharing,
// learning or exploring, then stuck detection.
func (a *Agent) Tick(dt time.Duration) {
	if !a.started {
		a.Start()
	}

	if a.state == Searching {
		a.detectFood()
	}
	if a.state == Searching && a.cfg.UseEmpatheticBehavior {
		a.detectPeers()
	}
	if a.state == Searching {
		a.checkContacts()
	}
	if a.state == Found {
		return
	}

	switch {
	case a.cfg.UseReinforcementLearning:
		if a.moveDone() {
			a.learnStep()
		}
	case a.seekKnown:
		if a.moveDone() || !a.env.Nav.HasPath(a.ID) {
			a.seekKnown = false
			a.sinceWander = a.cfg.WanderInterval
			slog.Debug("no food at known location, exploring", "agent", a.ID)
		}
	default:
		a.sinceWander += dt
		if a.sinceWander >= a.cfg.WanderInterval {
			a.sinceWander = 0
			a.explorationCycle()
		}
	}

	a.checkStuck(dt)
}

// moveDone reports whether the current move has effectively completed.
func (a *Agent) moveDone() bool {
	return !a.env.Nav.HasPendingPath(a.ID) && a.env.Nav.RemainingDistance(a.ID) < a.cfg.ArriveThreshold
}

func (a *Agent) learnStep() {
	pos := a.Position()
	step := a.learner.Update(pos, a.Target, false)
	dest := a.learner.NextDestination(pos, a.forward(), a.avoid)
	a.memory.Add(dest)
	a.setDestination(dest)
	slog.Debug("learning step", "agent", a.ID,
		"state", step.PrevState, "action", step.Action, "next", step.NewState,
		"reward", step.Reward, "revisit", step.Revisit, "q", step.Q)
}

// avoid reports whether a learning destination should be re-chosen.
func (a *Agent) avoid(p geom.Point3) bool {
	return a.memory.IsVisited(p) || a.inNoResourceArea(p)
}

func (a *Agent) inNoResourceArea(p geom.Point3) bool {
	r := a.cfg.NoResourceRadius
	if a.env.Shared.NoResource.Contains(p, r) {
		return true
	}
	return a.cfg.UseBaseKnowledge && a.env.Knowledge.InNoResourceArea(p, r)
}

// checkStuck rescues an agent whose remaining distance has not shrunk by
// StuckEpsilon for StuckDuration. Shuffling in place or circling the
// destination both count as stuck.
func (a *Agent) checkStuck(dt time.Duration) {
	nav := a.env.Nav
	remaining := nav.RemainingDistance(a.ID)
	if !nav.HasPath(a.ID) || remaining <= a.cfg.ArriveThreshold || remaining < a.closest-a.cfg.StuckEpsilon {
		a.closest = remaining
		a.stuckFor = 0
		return
	}
	a.stuckFor += dt
	if a.stuckFor > a.cfg.StuckDuration {
		a.rescues++
		slog.Debug("agent stuck, re-routing", "agent", a.ID, "position", a.Position(), "remaining", remaining)
		a.wander()
		a.stuckFor = 0
	}
}

func (a *Agent) forward() geom.Point3 {
	f := a.env.Nav.Forward(a.ID)
	if f.Flat().IsZero() {
		return geom.Forward
	}
	return f
}

func (a *Agent) setDestination(p geom.Point3) {
	a.dest = p
	a.env.Nav.SetDestination(a.ID, p)
	a.closest = a.env.Nav.RemainingDistance(a.ID)
	a.stuckFor = 0
}

// Snapshot returns a read-only view of the agent.
func (a *Agent) Snapshot() Snapshot {
	s := Snapshot{
		ID:          a.ID,
		State:       a.state.String(),
		Position:    a.Position(),
		Destination: a.dest,
		Mode:        a.mode(),
		Memory:      a.memory.Len(),
		Rescues:     a.rescues,
	}
	if a.learner != nil {
		s.QState = a.learner.State()
		s.VisitedStates = a.learner.Visited().Len()
	}
	return s
}

func (a *Agent) mode() string {
	switch {
	case a.cfg.UseReinforcementLearning:
		return "learning"
	case a.cfg.UseBaseKnowledge:
		return "base_knowledge"
	default:
		return "explore"
	}
}
