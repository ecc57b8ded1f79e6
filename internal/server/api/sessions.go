package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/pinchvolume/internal/store"
)

// defaultListLimit caps GET /api/sessions when no limit is given.
const defaultListLimit = 50

// SessionsHandler serves the session journal.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

type sessionResponse struct {
	ID         string          `json:"id"`
	StartedAt  string          `json:"started_at"`
	EndedAt    string          `json:"ended_at,omitempty"`
	Active     bool            `json:"active"`
	StartLevel float64         `json:"start_level"`
	EndLevel   float64         `json:"end_level"`
	Updates    int             `json:"updates"`
	SinkErrors int             `json:"sink_errors"`
	StopReason string          `json:"stop_reason,omitempty"`
	Control    controlSettings `json:"control"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:         s.ID,
		StartedAt:  formatTime(s.StartedAt),
		Active:     s.Active(),
		StartLevel: s.StartLevel,
		EndLevel:   s.EndLevel,
		Updates:    s.Updates,
		SinkErrors: s.SinkErrors,
		StopReason: s.StopReason,
		Control:    fromConfig(s.Control),
	}
	if s.EndedAt != nil {
		resp.EndedAt = formatTime(*s.EndedAt)
	}
	return resp
}

// ServeHTTP routes GET /api/sessions and GET /api/sessions/{id}.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		h.list(w, r)
		return
	}
	h.get(w, id)
}

// list handles GET /api/sessions?limit=N, most recent first.
func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/sessions/{id}.
func (h *SessionsHandler) get(w http.ResponseWriter, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}
