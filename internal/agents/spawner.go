// Agent spawning: issues IDs and an independent random stream per agent.
package agents

import (
	"github.com/talgya/forager/internal/entropy"
	"github.com/talgya/forager/internal/geom"
)

// Spawner creates agents for a campaign.
type Spawner struct {
	seed   int64
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{seed: seed, nextID: 1}
}

// SetNextID sets the next agent ID to be issued.
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID returns the ID the next Spawn will use.
func (s *Spawner) NextID() AgentID { return s.nextID }

// Spawn creates one agent. Its random stream is derived from the spawner seed
// and the agent ID, so it does not depend on how many agents came before.
func (s *Spawner) Spawn(cfg Config, target geom.Point3, env Env) *Agent {
	id := s.nextID
	s.nextID++
	return New(id, cfg, target, env, entropy.Derive(s.seed, uint64(id)))
}
