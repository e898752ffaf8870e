// Campaign: the multi-run orchestrator. A campaign spawns a cohort, waits
// until every agent has found the target, records the run, and after a
// settle delay respawns a fresh cohort until the run budget is spent. The
// Q-table and knowledge base carry over between runs; per-run state does not.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/forager/internal/agents"
	"github.com/talgya/forager/internal/entropy"
	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/knowledge"
	"github.com/talgya/forager/internal/learning"
)

// State is the campaign's lifecycle state.
type State uint8

const (
	Idle State = iota
	Running
	RunComplete
	CampaignComplete
)

var stateNames = [...]string{"idle", "running", "run_complete", "campaign_complete"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Arena is the world a campaign runs in.
type Arena interface {
	agents.Navigator
	agents.Spatial
	FoodPosition() geom.Point3
	SpawnBounds() (min, max geom.Point3)
	AddBody(id agents.AgentID, pos geom.Point3)
	ClearBodies()
	Advance(dt time.Duration)
}

// CampaignConfig controls run sequencing and spawning.
type CampaignConfig struct {
	Agents         int
	MaxRuns        int
	SettleDelay    time.Duration // between run completion and the next cohort
	SpawnAttempts  int
	SpawnClearance float64
	RunTimeout     time.Duration // 0 = a run lasts until every agent has found the target
	TableKey       string
	HistorySize    int
}

// DefaultCampaignConfig returns the reference campaign settings.
func DefaultCampaignConfig() CampaignConfig {
	return CampaignConfig{
		Agents:         5,
		MaxRuns:        3,
		SettleDelay:    4 * time.Second,
		SpawnAttempts:  10,
		SpawnClearance: 0.5,
		TableKey:       "trained_model",
		HistorySize:    100,
	}
}

// Deps are a campaign's collaborators.
type Deps struct {
	Arena     Arena
	Knowledge *knowledge.Base
	Table     *learning.QTable
	Tables    learning.TableStore // nil disables saving
	Recorder  RunRecorder         // nil disables run persistence
	Rand      entropy.Source      // spawn positions
	Seed      int64               // per-agent random streams
}

// Status is a point-in-time view of a campaign.
type Status struct {
	CampaignID      string  `json:"campaign_id,omitempty"`
	State           string  `json:"state"`
	Run             int     `json:"run"`
	MaxRuns         int     `json:"max_runs"`
	Agents          int     `json:"agents"`
	Found           int     `json:"found"`
	Elapsed         float64 `json:"elapsed_s"`
	SimTime         string  `json:"sim_time"`
	RunsCompleted   int     `json:"runs_completed"`
	NoResourceAreas int     `json:"no_resource_areas"`
	FoodLocations   int     `json:"food_locations"`
	QEntries        int     `json:"q_entries"`
	Training        bool    `json:"training"`
}

// Campaign is the simulation orchestrator. All methods are safe for
// concurrent use; Tick is called from the simulation loop.
type Campaign struct {
	mu sync.Mutex

	cfg      CampaignConfig
	agentCfg agents.Config
	params   learning.Params
	deps     Deps

	spawner *agents.Spawner
	sched   *Scheduler
	shared  *agents.Shared

	id         string
	state      State
	currentRun int
	completed  int
	runStart   time.Duration
	wallStart  time.Time
	cohort     []*agents.Agent
	index      map[agents.AgentID]*agents.Agent
	history    []RunRecord

	// OnComplete, if set, is called once when the campaign reaches
	// CampaignComplete. It runs with the campaign lock held.
	OnComplete func()
}

// NewCampaign creates an idle campaign.
func NewCampaign(cfg CampaignConfig, agentCfg agents.Config, params learning.Params, deps Deps) *Campaign {
	return &Campaign{
		cfg:      cfg,
		agentCfg: agentCfg,
		params:   params,
		deps:     deps,
		spawner:  agents.NewSpawner(deps.Seed),
		sched:    NewScheduler(),
		shared:   agents.NewShared(),
		index:    make(map[agents.AgentID]*agents.Agent),
	}
}

// State returns the lifecycle state.
func (c *Campaign) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartSimulation begins a campaign from Idle. It reports false and does
// nothing in any other state.
func (c *Campaign) StartSimulation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return false
	}
	c.id = uuid.NewString()
	c.currentRun = 1
	c.completed = 0
	slog.Info("campaign started", "campaign", c.id, "agents", c.cfg.Agents, "max_runs", c.cfg.MaxRuns,
		"training", c.agentCfg.IsTrainingMode)
	c.beginRun()
	return true
}

// Tick advances the campaign by dt: scheduled transitions, every agent, the
// arena, then the completion check.
func (c *Campaign) Tick(dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sched.Advance(dt)
	if c.state != Running {
		return
	}

	for _, a := range c.cohort {
		a.Tick(dt)
	}
	c.deps.Arena.Advance(dt)

	if c.allFound() {
		c.completeRun(false)
		return
	}
	if c.cfg.RunTimeout > 0 && c.sched.Now()-c.runStart >= c.cfg.RunTimeout {
		slog.Warn("run timed out", "run", c.currentRun, "found", c.shared.FoundCount(), "agents", len(c.cohort))
		c.completeRun(true)
	}
}

// RestartSimulation ends the current run and either schedules the next one
// or completes the campaign. Once complete it only logs that fact.
func (c *Campaign) RestartSimulation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Running:
		c.completeRun(false)
	case CampaignComplete:
		slog.Info("campaign complete", "campaign", c.id, "runs", c.completed)
	}
}

// ResetToInitial cancels any scheduled restart, destroys the cohort, and
// returns to Idle. Learned values and the knowledge base are untouched.
func (c *Campaign) ResetToInitial() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancelled := c.sched.CancelAll()
	c.clearCohort()
	c.shared.Reset()
	c.currentRun = 0
	c.state = Idle
	slog.Info("campaign reset", "campaign", c.id, "cancelled_tasks", cancelled)
}

// SaveNow writes the Q-table regardless of training mode.
func (c *Campaign) SaveNow() error {
	if c.deps.Tables == nil {
		return nil
	}
	return learning.Save(c.deps.Tables, c.cfg.TableKey, c.deps.Table)
}

// SaveIfTraining writes the Q-table when training mode is on.
func (c *Campaign) SaveIfTraining() {
	if !c.agentCfg.IsTrainingMode {
		return
	}
	if err := c.SaveNow(); err != nil {
		slog.Error("save model", "error", err)
	}
}

// Peer returns a live agent of the current cohort. Agents call it during
// Tick, so it does not take the campaign lock.
func (c *Campaign) Peer(id agents.AgentID) (*agents.Agent, bool) {
	a, ok := c.index[id]
	return a, ok
}

// Status returns a snapshot of the campaign.
func (c *Campaign) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		CampaignID:      c.id,
		State:           c.state.String(),
		Run:             c.currentRun,
		MaxRuns:         c.cfg.MaxRuns,
		Agents:          len(c.cohort),
		Found:           c.shared.FoundCount(),
		SimTime:         SimClock(c.sched.Now()),
		RunsCompleted:   c.completed,
		NoResourceAreas: c.shared.NoResource.Len(),
		QEntries:        c.deps.Table.Len(),
		Training:        c.agentCfg.IsTrainingMode,
	}
	if c.state == Running {
		s.Elapsed = (c.sched.Now() - c.runStart).Seconds()
	}
	if c.deps.Knowledge != nil {
		s.FoodLocations = len(c.deps.Knowledge.FoodLocations())
	}
	return s
}

// Agents returns snapshots of the current cohort in spawn order.
func (c *Campaign) Agents() []agents.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agents.Snapshot, 0, len(c.cohort))
	for _, a := range c.cohort {
		out = append(out, a.Snapshot())
	}
	return out
}

// History returns completed runs held in memory, oldest first.
func (c *Campaign) History() []RunRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RunRecord(nil), c.history...)
}

// Table returns the shared Q-table.
func (c *Campaign) Table() *learning.QTable { return c.deps.Table }

func (c *Campaign) beginRun() {
	c.shared.Reset()
	c.spawnCohort()
	c.runStart = c.sched.Now()
	c.wallStart = time.Now()
	c.state = Running
	slog.Info("run started", "run", c.currentRun, "of", c.cfg.MaxRuns, "agents", len(c.cohort))
}

// allFound reports whether every spawned agent is Found. An empty cohort
// counts as complete.
func (c *Campaign) allFound() bool {
	for _, a := range c.cohort {
		if !a.IsFound() {
			return false
		}
	}
	return true
}

func (c *Campaign) completeRun(timedOut bool) {
	c.completed++
	rec := RunRecord{
		CampaignID: c.id,
		Run:        c.currentRun,
		MaxRuns:    c.cfg.MaxRuns,
		Elapsed:    (c.sched.Now() - c.runStart).Seconds(),
		Wall:       time.Since(c.wallStart),
		Agents:     len(c.cohort),
		Found:      c.shared.FoundCount(),
		TimedOut:   timedOut,
		FinishedAt: time.Now(),
	}
	slog.Info("run complete", "run", rec.Run, "of", rec.MaxRuns, "elapsed_s", fmt.Sprintf("%.2f", rec.Elapsed),
		"found", rec.Found, "agents", rec.Agents, "wall", rec.Wall.Round(time.Millisecond), "timed_out", timedOut)
	c.record(rec)
	c.SaveIfTraining()

	if c.currentRun < c.cfg.MaxRuns {
		c.state = RunComplete
		c.sched.After(c.cfg.SettleDelay, c.nextRun)
		return
	}

	c.state = CampaignComplete
	c.clearCohort()
	slog.Info("campaign complete", "campaign", c.id, "runs", c.completed,
		"q_entries", humanize.Comma(int64(c.deps.Table.Len())))
	if c.OnComplete != nil {
		c.OnComplete()
	}
}

// nextRun is the settle-delay task: destroy the cohort and spawn the next.
func (c *Campaign) nextRun() {
	if c.state != RunComplete {
		return
	}
	c.clearCohort()
	c.currentRun++
	c.beginRun()
}

func (c *Campaign) record(rec RunRecord) {
	c.history = append(c.history, rec)
	if n := c.cfg.HistorySize; n > 0 && len(c.history) > n {
		c.history = append(c.history[:0], c.history[len(c.history)-n:]...)
	}
	if c.deps.Recorder == nil {
		return
	}
	if err := c.deps.Recorder.RecordRun(rec); err != nil {
		slog.Warn("record run", "run", rec.Run, "error", err)
	}
}

func (c *Campaign) spawnCohort() {
	env := agents.Env{
		Nav:       c.deps.Arena,
		Space:     c.deps.Arena,
		Peers:     c,
		Knowledge: c.deps.Knowledge,
		Shared:    c.shared,
		Table:     c.deps.Table,
		Learning:  c.params,
	}
	food := c.deps.Arena.FoodPosition()
	for i := 0; i < c.cfg.Agents; i++ {
		pos, ok := c.spawnPosition()
		if !ok {
			slog.Warn("no valid spawn position, skipping agent", "index", i, "attempts", c.cfg.SpawnAttempts)
			continue
		}
		a := c.spawner.Spawn(c.agentCfg, food, env)
		c.deps.Arena.AddBody(a.ID, pos)
		c.cohort = append(c.cohort, a)
		c.index[a.ID] = a
	}
}

// spawnPosition samples the spawn area for a point with no obstacle within
// the spawn clearance.
func (c *Campaign) spawnPosition() (geom.Point3, bool) {
	lo, hi := c.deps.Arena.SpawnBounds()
	for i := 0; i < c.cfg.SpawnAttempts; i++ {
		p := geom.Pt(
			lo.X+c.deps.Rand.Float64()*(hi.X-lo.X),
			0,
			lo.Z+c.deps.Rand.Float64()*(hi.Z-lo.Z),
		)
		if c.validSpawn(p) {
			return p, true
		}
	}
	return geom.Zero, false
}

func (c *Campaign) validSpawn(p geom.Point3) bool {
	for _, ref := range c.deps.Arena.OverlapSphere(p, c.cfg.SpawnClearance) {
		if ref.Tag == agents.TagObstacle {
			return false
		}
	}
	return true
}

func (c *Campaign) clearCohort() {
	c.cohort = nil
	c.index = make(map[agents.AgentID]*agents.Agent)
	c.deps.Arena.ClearBodies()
}
