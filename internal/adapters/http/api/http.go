// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/cadence/internal/domain/model"
)

// Session is the control surface handlers need from the running engine.
// Responses arrive without a timestamp; the implementation stamps them
// with its own session clock.
type Session interface {
	// Respond delivers a participant response to the focused task.
	Respond(ctx context.Context, sym model.Symbol) error

	// Pause and Continue toggle the batch state machine.
	Pause() error
	Continue() error

	// Summary returns the end-of-session report once the session completed.
	Summary() (model.SessionSummary, bool)
}

// Server wires HTTP routes for the session API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(session Session, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		sessionHandler: NewSessionHandler(session),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/responses", MetricsMiddleware(s.sessionHandler.HandlePostResponse, "responses"))
	mux.HandleFunc("/session/pause", MetricsMiddleware(s.sessionHandler.HandlePause, "pause"))
	mux.HandleFunc("/session/continue", MetricsMiddleware(s.sessionHandler.HandleContinue, "continue"))
	mux.HandleFunc("/session/summary", MetricsMiddleware(s.sessionHandler.HandleSummary, "summary"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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
