// Command forager runs foraging campaigns: cohorts of agents search an arena
// for food, learning across runs from a shared Q-table and knowledge base.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/forager/internal/api"
	"github.com/talgya/forager/internal/config"
	"github.com/talgya/forager/internal/engine"
	"github.com/talgya/forager/internal/entropy"
	"github.com/talgya/forager/internal/knowledge"
	"github.com/talgya/forager/internal/learning"
	"github.com/talgya/forager/internal/persistence"
	"github.com/talgya/forager/internal/world"
)

func main() {
	slog.SetDefault(newLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))

	cfg, err := config.Load(os.Getenv("FORAGER_CONFIG"))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	seed := entropy.Seed(cfg.Simulation.Seed)
	slog.Info("forager starting",
		"seed", seed,
		"agents", cfg.Campaign.Agents,
		"max_runs", cfg.Campaign.MaxRuns,
		"rl", cfg.Agent.UseReinforcementLearning,
		"base_knowledge", cfg.Agent.UseBaseKnowledge,
		"empathy", cfg.Agent.UseEmpatheticBehavior,
		"training", cfg.Agent.IsTrainingMode,
	)

	// ── Storage ───────────────────────────────────────────────────────
	store, err := persistence.OpenStore(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.DBFile)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage opened", "backend", cfg.Storage.Backend, "dir", cfg.Storage.DataDir)

	table, err := learning.Load(store, cfg.Campaign.TableKey)
	if err != nil {
		slog.Error("failed to load model", "error", err)
		os.Exit(1)
	}
	kb, err := knowledge.Open(store, knowledge.FoodKey, knowledge.NoResourceKey)
	if err != nil {
		slog.Error("failed to load knowledge base", "error", err)
		os.Exit(1)
	}
	slog.Info("learned state loaded",
		"q_entries", humanize.Comma(int64(table.Len())),
		"food_locations", len(kb.FoodLocations()),
		"no_resource_areas", len(kb.NoResourceAreas()),
	)

	// ── Arena (regenerated each start, deterministic from seed) ───────
	arena := world.Generate(cfg.ArenaParams(seed))
	slog.Info("arena ready", "arena", arena.String())

	// ── Campaign and engine ───────────────────────────────────────────
	campaign := engine.NewCampaign(cfg.CampaignParams(), cfg.AgentParams(), cfg.LearningParams(), engine.Deps{
		Arena:     arena,
		Knowledge: kb,
		Table:     table,
		Tables:    store,
		Recorder:  store,
		Rand:      entropy.Derive(seed, 0),
		Seed:      seed,
	})

	eng := engine.NewEngine(cfg.Simulation.TickInterval)
	eng.SetSpeed(cfg.Simulation.Speed)
	eng.OnTick = func(_ uint64, dt time.Duration) { campaign.Tick(dt) }
	if cfg.Simulation.ExitOnComplete {
		campaign.OnComplete = eng.Stop
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Port > 0 {
		if cfg.API.AdminKey == "" {
			slog.Warn("FORAGER_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		srv := &api.Server{
			Campaign:  campaign,
			Eng:       eng,
			Port:      cfg.API.Port,
			AdminKey:  cfg.API.AdminKey,
			AdminRate: cfg.API.AdminRate,
		}
		if h, ok := store.(api.RunHistory); ok {
			srv.Runs = h
		}
		srv.Start(ctx)
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	// ── Start ─────────────────────────────────────────────────────────
	if cfg.Simulation.AutoStart {
		campaign.StartSimulation()
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	// Final save on shutdown.
	campaign.SaveIfTraining()
	st := campaign.Status()
	slog.Info("forager stopped",
		"state", st.State,
		"runs_completed", st.RunsCompleted,
		"sim_time", engine.SimClock(eng.SimTime()),
		"ticks", humanize.Comma(int64(eng.Tick())),
	)
}

// newLogger builds the default logger: JSON when format is "json", text
// otherwise, at the named level (info when unset or unknown).
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
