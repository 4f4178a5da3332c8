// Package api declares the read-only HTTP surface: metrics, service stats,
// per-horse enriched history and run summaries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/formguide/internal/adapters/repository"
	"github.com/okian/formguide/internal/domain/types"
	"github.com/okian/formguide/pkg/logger"
)

// Dependencies is what the handlers read from.
type Dependencies interface {
	HorseDependencies
	RunsDependencies
}

// Server groups the route handlers.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	horseHandler  *HorseHandler
	runsHandler   *RunsHandler
	logger        logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the access logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the handlers. maxRuns caps GET /runs?limit.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxRuns int, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		horseHandler:  NewHorseHandler(deps),
		runsHandler:   NewRunsHandler(deps, maxRuns),
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches every route to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", Instrument("healthz", s.logger, s.healthHandler.HandleHealth))
	mux.HandleFunc("/stats", Instrument("stats", s.logger, s.statsHandler.HandleStats))
	mux.HandleFunc("/horses/", Instrument("horses", s.logger, s.horseHandler.HandleGetHorse))
	mux.HandleFunc("/runs", Instrument("runs", s.logger, s.runsHandler.HandleGetRuns))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type horseResponse struct {
	HorseID string           `json:"horse_id"`
	Runs    []types.HorseRun `json:"runs"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrNotFound)
}
