// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/cadence/internal/domain/model"
)

// SessionHandler handles participant responses and session control requests.
type SessionHandler struct {
	session Session
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(session Session) *SessionHandler {
	return &SessionHandler{session: session}
}

// responseRequest mirrors the wire schema for POST /responses.
type responseRequest struct {
	Symbol string `json:"symbol"`
}

func (r responseRequest) symbol() (model.Symbol, error) {
	sym := model.Symbol(strings.TrimSpace(strings.ToLower(r.Symbol)))
	if !sym.Valid() {
		return "", fmt.Errorf("%w: unknown symbol %q", ErrBadRequest, r.Symbol)
	}
	return sym, nil
}

// HandlePostResponse handles POST /responses requests. The response is
// stamped with the session clock and routed to the focused task; responses
// that arrive with no focused task are dropped by the engine, which still
// counts as accepted here.
func (h *SessionHandler) HandlePostResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", ErrBadRequest)
		return
	}
	sym, err := req.symbol()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_symbol", err)
		return
	}
	if err := h.session.Respond(r.Context(), sym); err != nil {
		writeError(w, http.StatusConflict, "session_state", err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandlePause handles POST /session/pause requests.
func (h *SessionHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if err := h.session.Pause(); err != nil {
		writeError(w, http.StatusConflict, "session_state", err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "paused"})
}

// HandleContinue handles POST /session/continue requests.
func (h *SessionHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if err := h.session.Continue(); err != nil {
		writeError(w, http.StatusConflict, "session_state", err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "running"})
}

// HandleSummary handles GET /session/summary requests. It returns 404 until
// the session has completed and a summary exists.
func (h *SessionHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	summary, ok := h.session.Summary()
	if !ok {
		writeError(w, http.StatusNotFound, "summary_not_ready", nil)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
