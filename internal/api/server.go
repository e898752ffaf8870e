// Package api provides the HTTP API for observing and controlling a campaign.
// GET endpoints are public and read-only.
// POST endpoints require a bearer token and are rate limited.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/forager/internal/engine"
)

// RunHistory is durable run history, newest first.
type RunHistory interface {
	RecentRuns(limit int) ([]engine.RunRecord, error)
}

// Server serves campaign state over HTTP.
type Server struct {
	Campaign  *engine.Campaign
	Eng       *engine.Engine
	Runs      RunHistory // nil = in-memory history only
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	AdminRate int    // admin requests per minute per client

	srv *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	rate := s.AdminRate
	if rate <= 0 {
		rate = 60
	}
	limiter := NewRateLimiter(rate, time.Minute)
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimitMiddleware(limiter, s.adminOnly(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/qtable", s.handleQTable)
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)

	mux.HandleFunc("POST /api/v1/start", admin(s.handleStart))
	mux.HandleFunc("POST /api/v1/restart", admin(s.handleRestart))
	mux.HandleFunc("POST /api/v1/reset", admin(s.handleReset))
	mux.HandleFunc("POST /api/v1/save", admin(s.handleSave))
	mux.HandleFunc("POST /api/v1/speed", admin(s.handleSpeed))

	return mux
}

// Start begins serving in a goroutine until ctx is done.
func (s *Server) Start(ctx context.Context) {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("http api starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
	}()
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminKey)) == 1
}

// adminOnly requires the bearer token on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"campaign": s.Campaign.Status(),
		"tick":     s.Eng.Tick(),
		"speed":    s.Eng.Speed(),
		"running":  s.Eng.Running(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Campaign.Agents())
}

// handleRuns returns completed runs newest first. ?limit=N caps the list.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if s.Runs != nil {
		runs, err := s.Runs.RecentRuns(limit)
		if err != nil {
			slog.Error("load run history", "error", err)
			http.Error(w, "run history unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, runs)
		return
	}

	history := s.Campaign.History()
	out := make([]engine.RunRecord, 0, min(limit, len(history)))
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	writeJSON(w, out)
}

type qRow struct {
	State      int             `json:"state"`
	Values     map[int]float64 `json:"values"`
	BestAction int             `json:"best_action"`
	BestValue  float64         `json:"best_value"`
}

// handleQTable summarizes the learned values per state without touching
// entries that have never been read.
func (s *Server) handleQTable(w http.ResponseWriter, r *http.Request) {
	snap := s.Campaign.Table().Snapshot()
	rows := make(map[int]*qRow)
	for k, v := range snap {
		row, ok := rows[k.State]
		if !ok {
			row = &qRow{State: k.State, Values: make(map[int]float64), BestAction: k.Action, BestValue: v}
			rows[k.State] = row
		}
		row.Values[k.Action] = v
		if v > row.BestValue || (v == row.BestValue && k.Action < row.BestAction) {
			row.BestAction, row.BestValue = k.Action, v
		}
	}

	out := make([]qRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })

	writeJSON(w, map[string]any{
		"entries": len(snap),
		"states":  out,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.Campaign.StartSimulation() {
		http.Error(w, "campaign already started: "+s.Campaign.State().String(), http.StatusConflict)
		return
	}
	slog.Info("campaign start requested")
	writeJSON(w, s.Campaign.Status())
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.Campaign.RestartSimulation()
	writeJSON(w, s.Campaign.Status())
}

// handleReset saves the model before returning the campaign to idle.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Campaign.SaveNow(); err != nil {
		slog.Error("save before reset", "error", err)
	}
	s.Campaign.ResetToInitial()
	writeJSON(w, s.Campaign.Status())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.Campaign.SaveNow(); err != nil {
		slog.Error("save requested", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"success": true, "entries": s.Campaign.Table().Len()})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}
