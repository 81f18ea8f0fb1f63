// Package api serves the call floor over HTTP.
// GET endpoints are public read-only views.
// POST endpoints require the admin bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talgya/dialfloor/internal/agents"
	"github.com/talgya/dialfloor/internal/app"
	"github.com/talgya/dialfloor/internal/dialer"
	"github.com/talgya/dialfloor/internal/engine"
	"github.com/talgya/dialfloor/internal/game"
	"github.com/talgya/dialfloor/internal/leads"
	"github.com/talgya/dialfloor/internal/upgrades"
)

const maxBodyBytes = 1 << 20

// Server serves the game over HTTP.
type Server struct {
	App         *app.App
	Port        int
	AdminKey    string   // Bearer token for POST endpoints. Empty = POST disabled.
	CORSOrigins []string // on top of the localhost dev servers

	// fast-forward calls per minute per client; 0 disables the limit
	SimulateDayRate int
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.CORSOrigins))
	r.Use(requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/agents", s.handleAgents)
		r.Get("/upgrades", s.handleUpgrades)
		r.Get("/dialers", s.handleDialers)
		r.Get("/lead-sources", s.handleLeadSources)
		r.Get("/leads", s.handleLeads)
		r.Get("/events", s.handleEvents)
		r.Get("/forecast", s.handleForecast)
		r.Get("/speed", s.handleGetSpeed)
		r.Get("/scripted-events", s.handleScriptedEvents)
		r.Get("/saves", s.handleSaves)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Use(middleware.RequestSize(maxBodyBytes))
			r.Post("/start", s.handleStart)
			r.Post("/pause", s.handlePause)
			r.Post("/speed", s.handleSetSpeed)
			r.Post("/upgrades/{id}/purchase", s.handlePurchase)
			r.Post("/dialers/{id}/unlock", s.handleUnlockDialer)
			r.Post("/dialers/{id}/activate", s.handleSetDialer)
			r.Post("/lead-sources/{id}/unlock", s.handleUnlockSource)
			r.Post("/agents/{id}/train", s.handleTrain)
			r.Post("/reset", s.handleReset)
			r.Post("/save", s.handleSave)
			r.Post("/export", s.handleExport)
			r.Post("/import", s.handleImport)

			r.Group(func(r chi.Router) {
				if s.SimulateDayRate > 0 {
					r.Use(NewRateLimiter(s.SimulateDayRate, time.Minute).Middleware)
				}
				r.Post("/simulate-day", s.handleSimulateDay)
				r.Post("/fast-forward", s.handleFastForward)
			})
		})
	})
	return r
}

// Start serves the API in a goroutine until ctx is cancelled.
func (s *Server) Start(ctx context.Context) *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(extra []string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusForbidden, "admin endpoints disabled (no DIALSIM_ADMIN_KEY set)")
			return
		}
		if !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.MetricsSummary())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.Agents())
}

func (s *Server) handleUpgrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.Upgrades())
}

func (s *Server) handleDialers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.Dialers())
}

func (s *Server) handleLeadSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.LeadSources())
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.LeadCounts())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events := s.App.Events(limit)
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.Forecast())
}

func (s *Server) handleScriptedEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.App.ScriptedEvents())
}

func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	list, err := s.App.Saves(r.Context())
	if err != nil {
		slog.Error("list saves failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) speedResponse(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"speed": s.App.Speed(), "paused": s.App.Paused()})
}

func (s *Server) handleGetSpeed(w http.ResponseWriter, r *http.Request) {
	s.speedResponse(w)
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.App.SetSpeed(req.Speed); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.speedResponse(w)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// the clock outlives the request
	s.App.Start(context.WithoutCancel(r.Context()))
	s.speedResponse(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.App.Pause()
	s.speedResponse(w)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	if err := s.App.PurchaseUpgrade(chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.App.MetricsSummary())
}

func (s *Server) handleUnlockDialer(w http.ResponseWriter, r *http.Request) {
	if err := s.App.UnlockDialer(chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.App.Dialers())
}

func (s *Server) handleSetDialer(w http.ResponseWriter, r *http.Request) {
	if err := s.App.SetDialer(chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.App.Dialers())
}

func (s *Server) handleUnlockSource(w http.ResponseWriter, r *http.Request) {
	if err := s.App.UnlockLeadSource(chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.App.LeadSources())
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	var req struct {
		Skill string `json:"skill"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.App.TrainAgent(agents.AgentID(id), req.Skill); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.App.Agents())
}

func (s *Server) handleSimulateDay(w http.ResponseWriter, r *http.Request) {
	dc, err := s.App.SimulateDay()
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"closed":  dc,
		"profit":  dc.Stats.Profit(),
		"summary": s.App.MetricsSummary(),
	})
}

func (s *Server) handleFastForward(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}
	n := s.App.FastForward(req.Minutes)
	writeJSON(w, http.StatusOK, map[string]any{"minutes": n, "summary": s.App.MetricsSummary()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.App.ResetGame(); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.App.MetricsSummary())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"saved": s.App.Save()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.App.Export()
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"data": data})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data string `json:"data"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.App.Import(req.Data); err != nil {
		writeError(w, http.StatusBadRequest, "import failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.App.MetricsSummary())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, upgrades.ErrUnknown),
		errors.Is(err, dialer.ErrUnknown),
		errors.Is(err, leads.ErrUnknownSource),
		errors.Is(err, game.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInsufficientCash),
		errors.Is(err, upgrades.ErrMaxLevel),
		errors.Is(err, upgrades.ErrPrerequisite),
		errors.Is(err, dialer.ErrLocked),
		errors.Is(err, dialer.ErrPrerequisite),
		errors.Is(err, leads.ErrSourceLocked),
		errors.Is(err, leads.ErrPrerequisite),
		errors.Is(err, engine.ErrAgentUnavailable),
		errors.Is(err, app.ErrStepRejected):
		return http.StatusConflict
	case errors.Is(err, agents.ErrUnknownSkill):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeActionError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("action failed", "error", err)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
