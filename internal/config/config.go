// Package config loads simulation settings: embedded defaults, an optional
// YAML file on top, then environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/forager/internal/agents"
	"github.com/talgya/forager/internal/engine"
	"github.com/talgya/forager/internal/learning"
	"github.com/talgya/forager/internal/persistence"
	"github.com/talgya/forager/internal/world"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable of a forager process.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Campaign   CampaignConfig   `yaml:"campaign"`
	Agent      AgentConfig      `yaml:"agent"`
	Learning   LearningConfig   `yaml:"learning"`
	Sharing    SharingConfig    `yaml:"sharing"`
	Arena      world.GenConfig  `yaml:"arena"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
}

// SimulationConfig controls the tick loop.
type SimulationConfig struct {
	Seed           int64         `yaml:"seed"` // 0 = random
	TickInterval   time.Duration `yaml:"tick_interval"`
	Speed          float64       `yaml:"speed"`
	AutoStart      bool          `yaml:"auto_start"`
	ExitOnComplete bool          `yaml:"exit_on_complete"`
}

// CampaignConfig controls the sequence of runs.
type CampaignConfig struct {
	Agents         int           `yaml:"agents"`
	MaxRuns        int           `yaml:"max_runs"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	SpawnAttempts  int           `yaml:"spawn_attempts"`
	SpawnClearance float64       `yaml:"spawn_clearance"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	TableKey       string        `yaml:"table_key"`
	HistorySize    int           `yaml:"history_size"`
}

// AgentConfig holds behavior modes and per-agent sensing and movement.
type AgentConfig struct {
	agents.Modes `yaml:",inline"`

	DetectionRange    float64       `yaml:"detection_range"`
	FieldOfView       float64       `yaml:"field_of_view"` // degrees
	WanderRadius      float64       `yaml:"wander_radius"`
	MemoryRadius      float64       `yaml:"memory_radius"`
	MaxMemoryCount    int           `yaml:"max_memory_count"`
	NoResourceRadius  float64       `yaml:"no_resource_radius"`
	ArriveThreshold   float64       `yaml:"arrive_threshold"`
	WanderInterval    time.Duration `yaml:"wander_interval"`
	ExploreCandidates int           `yaml:"explore_candidates"`
	StuckEpsilon      float64       `yaml:"stuck_epsilon"`
	StuckDuration     time.Duration `yaml:"stuck_duration"`
	ContactRadius     float64       `yaml:"contact_radius"`
}

// LearningConfig holds the Q-learning hyperparameters.
type LearningConfig struct {
	LearningRate   float64 `yaml:"learning_rate"`
	Discount       float64 `yaml:"discount"`
	Exploration    float64 `yaml:"exploration"`
	BinSize        float64 `yaml:"bin_size"`
	NumActions     int     `yaml:"num_actions"`
	RewardLambda   float64 `yaml:"reward_lambda"`
	GoalBonus      float64 `yaml:"goal_bonus"`
	RevisitPenalty float64 `yaml:"revisit_penalty"`
	AvoidRetries   int     `yaml:"avoid_retries"`
}

// SharingConfig controls empathetic adoption of a peer's target.
type SharingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DistanceNorm        float64 `yaml:"distance_norm"`
}

// StorageConfig selects where learned state is kept.
type StorageConfig struct {
	Backend string `yaml:"backend"` // file | sqlite
	DataDir string `yaml:"data_dir"`
	DBFile  string `yaml:"db_file"`
}

// APIConfig controls the HTTP API.
type APIConfig struct {
	Port      int    `yaml:"port"` // 0 disables the API
	AdminKey  string `yaml:"admin_key"`
	AdminRate int    `yaml:"admin_rate"` // admin requests per minute per client
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Load reads the embedded defaults, overlays path if non-empty, applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := lookup("FORAGER_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FORAGER_SEED: %w", err))
		} else {
			c.Simulation.Seed = seed
		}
	}
	num("FORAGER_AGENTS", &c.Campaign.Agents)
	num("FORAGER_MAX_RUNS", &c.Campaign.MaxRuns)
	str("FORAGER_DATA_DIR", &c.Storage.DataDir)
	str("FORAGER_STORAGE", &c.Storage.Backend)
	flag("FORAGER_TRAINING", &c.Agent.IsTrainingMode)
	num("FORAGER_API_PORT", &c.API.Port)
	str("FORAGER_ADMIN_KEY", &c.API.AdminKey)

	return errors.Join(errs...)
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}

	positive("simulation.tick_interval", float64(c.Simulation.TickInterval))
	if c.Simulation.Speed < 0 {
		errs = append(errs, fmt.Errorf("simulation.speed must not be negative, got %v", c.Simulation.Speed))
	}

	positive("campaign.agents", float64(c.Campaign.Agents))
	positive("campaign.max_runs", float64(c.Campaign.MaxRuns))
	positive("campaign.spawn_attempts", float64(c.Campaign.SpawnAttempts))
	if c.Campaign.SettleDelay < 0 || c.Campaign.RunTimeout < 0 {
		errs = append(errs, errors.New("campaign durations must not be negative"))
	}
	if c.Campaign.TableKey == "" {
		errs = append(errs, errors.New("campaign.table_key must be set"))
	}

	positive("agent.detection_range", c.Agent.DetectionRange)
	positive("agent.field_of_view", c.Agent.FieldOfView)
	positive("agent.wander_radius", c.Agent.WanderRadius)
	positive("agent.memory_radius", c.Agent.MemoryRadius)
	positive("agent.max_memory_count", float64(c.Agent.MaxMemoryCount))
	positive("agent.no_resource_radius", c.Agent.NoResourceRadius)
	positive("agent.arrive_threshold", c.Agent.ArriveThreshold)
	positive("agent.wander_interval", float64(c.Agent.WanderInterval))
	positive("agent.explore_candidates", float64(c.Agent.ExploreCandidates))
	positive("agent.stuck_duration", float64(c.Agent.StuckDuration))
	positive("agent.contact_radius", c.Agent.ContactRadius)

	unit("learning.learning_rate", c.Learning.LearningRate)
	unit("learning.discount", c.Learning.Discount)
	unit("learning.exploration", c.Learning.Exploration)
	positive("learning.bin_size", c.Learning.BinSize)
	if c.Learning.NumActions < 1 {
		errs = append(errs, fmt.Errorf("learning.num_actions must be at least 1, got %d", c.Learning.NumActions))
	}
	if c.Learning.AvoidRetries < 0 {
		errs = append(errs, fmt.Errorf("learning.avoid_retries must not be negative, got %d", c.Learning.AvoidRetries))
	}

	unit("sharing.similarity_threshold", c.Sharing.SimilarityThreshold)
	positive("sharing.distance_norm", c.Sharing.DistanceNorm)

	positive("arena.half_size", c.Arena.HalfSize)
	positive("arena.cell", c.Arena.Cell)
	positive("arena.agent_speed", c.Arena.AgentSpeed)
	positive("arena.body_radius", c.Arena.BodyRadius)

	switch c.Storage.Backend {
	case persistence.BackendFile, persistence.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q",
			persistence.BackendFile, persistence.BackendSQLite, c.Storage.Backend))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir must be set"))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
	}

	return errors.Join(errs...)
}

// AgentParams converts the agent and sharing sections.
func (c *Config) AgentParams() agents.Config {
	a := c.Agent
	return agents.Config{
		Modes:               a.Modes,
		DetectionRange:      a.DetectionRange,
		FieldOfView:         a.FieldOfView,
		WanderRadius:        a.WanderRadius,
		MemoryRadius:        a.MemoryRadius,
		MaxMemoryCount:      a.MaxMemoryCount,
		NoResourceRadius:    a.NoResourceRadius,
		ArriveThreshold:     a.ArriveThreshold,
		WanderInterval:      a.WanderInterval,
		ExploreCandidates:   a.ExploreCandidates,
		StuckEpsilon:        a.StuckEpsilon,
		StuckDuration:       a.StuckDuration,
		ContactRadius:       a.ContactRadius,
		SimilarityThreshold: c.Sharing.SimilarityThreshold,
		DistanceNorm:        c.Sharing.DistanceNorm,
	}
}

// LearningParams converts the learning section. The step length of an
// action is the agent's wander radius.
func (c *Config) LearningParams() learning.Params {
	l := c.Learning
	return learning.Params{
		LearningRate:   l.LearningRate,
		Discount:       l.Discount,
		Exploration:    l.Exploration,
		BinSize:        l.BinSize,
		NumActions:     l.NumActions,
		RewardLambda:   l.RewardLambda,
		GoalBonus:      l.GoalBonus,
		RevisitPenalty: l.RevisitPenalty,
		WanderRadius:   c.Agent.WanderRadius,
		AvoidRetries:   l.AvoidRetries,
	}
}

// CampaignParams converts the campaign section.
func (c *Config) CampaignParams() engine.CampaignConfig {
	k := c.Campaign
	return engine.CampaignConfig{
		Agents:         k.Agents,
		MaxRuns:        k.MaxRuns,
		SettleDelay:    k.SettleDelay,
		SpawnAttempts:  k.SpawnAttempts,
		SpawnClearance: k.SpawnClearance,
		RunTimeout:     k.RunTimeout,
		TableKey:       k.TableKey,
		HistorySize:    k.HistorySize,
	}
}

// ArenaParams returns the arena section with the given seed applied.
func (c *Config) ArenaParams(seed int64) world.GenConfig {
	g := c.Arena
	g.Seed = seed
	return g
}
