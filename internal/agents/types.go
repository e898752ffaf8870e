// Package agents provides the foraging agent: its spatial memory, fuzzy
// trust comparator, and per-tick behavior (detection, empathetic sharing,
// the reinforcement-learning step, heuristic exploration, stuck rescue).
package agents

import (
	"sync/atomic"
	"time"

	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/knowledge"
)

// AgentID is a unique identifier for an agent within a process.
type AgentID uint64

// RunState is an agent's progress in the current run. Found is terminal.
type RunState uint8

const (
	Searching RunState = iota
	Found
)

func (s RunState) String() string {
	if s == Found {
		return "found"
	}
	return "searching"
}

// Tag categorizes what a ray cast or overlap touched.
type Tag string

const (
	TagFood     Tag = "Food"
	TagObstacle Tag = "Obstacle"
	TagAgent    Tag = "Agent"
)

// Modes are the behavior toggles of an agent.
type Modes struct {
	UseReinforcementLearning bool `yaml:"use_reinforcement_learning" json:"use_reinforcement_learning"`
	UseBaseKnowledge         bool `yaml:"use_base_knowledge" json:"use_base_knowledge"`
	UseEmpatheticBehavior    bool `yaml:"use_empathetic_behavior" json:"use_empathetic_behavior"`
	IsTrainingMode           bool `yaml:"is_training_mode" json:"is_training_mode"`
}

// Config holds per-agent sensing, memory, and movement parameters.
type Config struct {
	Modes

	DetectionRange   float64 // sensing radius for the target and peers
	FieldOfView      float64 // full cone angle, degrees
	WanderRadius     float64 // exploration step length
	MemoryRadius     float64 // remembered points count as visited within this
	MaxMemoryCount   int     // remembered points kept, oldest evicted first
	NoResourceRadius float64 // extent of a no-resource area around its center

	ArriveThreshold   float64       // remaining distance at which a move is done
	WanderInterval    time.Duration // cadence of the exploration cycle
	ExploreCandidates int           // random candidates sampled per exploration point
	StuckEpsilon      float64       // least shrink of the remaining distance that counts as progress
	StuckDuration     time.Duration // time without progress before rescue
	ContactRadius     float64       // overlap radius for touching food or obstacles

	SimilarityThreshold float64 // fuzzy similarity above which a peer's target is adopted
	DistanceNorm        float64 // distance mapped to externalValue 1.0
}

// DefaultConfig returns the reference agent parameters.
func DefaultConfig() Config {
	return Config{
		Modes: Modes{
			UseReinforcementLearning: true,
			UseEmpatheticBehavior:    true,
			IsTrainingMode:           true,
		},
		DetectionRange:      10,
		FieldOfView:         60,
		WanderRadius:        10,
		MemoryRadius:        1,
		MaxMemoryCount:      10,
		NoResourceRadius:    5,
		ArriveThreshold:     0.5,
		WanderInterval:      500 * time.Millisecond,
		ExploreCandidates:   10,
		StuckEpsilon:        0.01,
		StuckDuration:       2 * time.Second,
		ContactRadius:       0.6,
		SimilarityThreshold: 0.7,
		DistanceNorm:        20,
	}
}

// Shared is the per-run state every agent of a cohort writes to. It is reset
// between runs; the knowledge base and Q-table are not.
type Shared struct {
	found      atomic.Int32
	NoResource *knowledge.Areas // ephemeral no-resource areas of this run
}

// NewShared returns empty per-run state.
func NewShared() *Shared {
	return &Shared{NoResource: knowledge.NewAreas(nil)}
}

// FoundCount returns how many agents have found the target this run.
func (s *Shared) FoundCount() int { return int(s.found.Load()) }

// Reset clears the found count and the ephemeral no-resource list.
func (s *Shared) Reset() {
	s.found.Store(0)
	s.NoResource.Clear()
}

func (s *Shared) markFound() { s.found.Add(1) }

// Snapshot is a read-only view of an agent for reporting.
type Snapshot struct {
	ID            AgentID     `json:"id"`
	State         string      `json:"state"`
	Position      geom.Point3 `json:"position"`
	Destination   geom.Point3 `json:"destination"`
	Mode          string      `json:"mode"`
	QState        int         `json:"q_state,omitempty"`
	VisitedStates int         `json:"visited_states,omitempty"`
	Memory        int         `json:"memory"`
	Rescues       int         `json:"rescues"`
}
