// Package server exposes the read API over the tracking state: session
// start, aggregate tracking status, per-game status, and the flagged-anomaly
// list. Handlers only read the store (plus the start guard) and never wait
// on an in-flight poll cycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/torrenbaker/nba-rebound-tracker/internal/logger"
	"github.com/torrenbaker/nba-rebound-tracker/internal/nba"
	"github.com/torrenbaker/nba-rebound-tracker/internal/store"
	"github.com/torrenbaker/nba-rebound-tracker/internal/tracker"
)

// Starter begins a tracking session. Satisfied by *tracker.Tracker.
type Starter interface {
	Start(ctx context.Context) error
}

// Server bundles the read handlers and their dependencies.
type Server struct {
	store   *store.Store
	starter Starter
}

// New creates a Server.
func New(st *store.Store, starter Starter) *Server {
	return &Server{
		store:   st,
		starter: starter,
	}
}

// Router builds the chi router with middleware and all read endpoints.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/start-tracking", s.handleStartTracking)
		r.Get("/tracking-status", s.handleTrackingStatus)
		r.Get("/game-status", s.handleGameStatus)
		r.Get("/flagged-anomalies", s.handleFlaggedAnomalies)
	})

	return r
}

type trackingStatusResponse struct {
	GamesBeingTracked int        `json:"games_being_tracked"`
	FlaggedCount      int        `json:"flagged_count"`
	LastUpdated       *time.Time `json:"last_updated"`
}

type gameStatusEntry struct {
	GameID      string    `json:"game_id"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

type flaggedAnomalyEntry struct {
	GameID      string `json:"game_id"`
	HomeTeam    string `json:"home_team"`
	AwayTeam    string `json:"away_team"`
	Timestamp   string `json:"timestamp"`
	Quarter     int    `json:"quarter"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	// The session outlives the request, so it is not derived from the
	// request context. Process shutdown ends it through Tracker.Stop.
	if err := s.starter.Start(context.Background()); err != nil {
		if errors.Is(err, tracker.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, "tracking session already running")
			return
		}
		logger.Error("Failed to start tracking session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to start tracking")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Live tracking initiated for today's games.",
	})
}

func (s *Server) handleTrackingStatus(w http.ResponseWriter, r *http.Request) {
	resp := trackingStatusResponse{
		GamesBeingTracked: s.store.LiveCount(),
		FlaggedCount:      s.store.AnomalyCount(),
	}
	if last := s.store.LastPoll(); !last.IsZero() {
		resp.LastUpdated = &last
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGameStatus(w http.ResponseWriter, r *http.Request) {
	games := s.store.Games()
	entries := make([]gameStatusEntry, 0, len(games))
	for _, g := range games {
		entries = append(entries, gameStatusEntry{
			GameID:      g.ID,
			HomeTeam:    nba.TeamName(g.HomeTeamID),
			AwayTeam:    nba.TeamName(g.AwayTeamID),
			Status:      string(g.Status),
			LastUpdated: g.LastUpdated,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"games": entries})
}

func (s *Server) handleFlaggedAnomalies(w http.ResponseWriter, r *http.Request) {
	anomalies := s.store.Anomalies()
	entries := make([]flaggedAnomalyEntry, 0, len(anomalies))
	for _, a := range anomalies {
		entry := flaggedAnomalyEntry{
			GameID:      a.GameID,
			HomeTeam:    "Unknown",
			AwayTeam:    "Unknown",
			Timestamp:   a.Clock,
			Quarter:     a.Period,
			Description: a.Description,
			Reason:      string(a.Reason),
		}
		if game, err := s.store.Game(a.GameID); err == nil {
			entry.HomeTeam = nba.TeamName(game.HomeTeamID)
			entry.AwayTeam = nba.TeamName(game.AwayTeamID)
		}
		entries = append(entries, entry)
	}
	respondJSON(w, http.StatusOK, map[string]any{"flagged_anomalies": entries})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
