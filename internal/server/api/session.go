package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/pinchvolume/internal/app"
	"github.com/ayusman/pinchvolume/internal/volume"
)

// SessionController starts and stops tracking sessions. *app.App implements it.
type SessionController interface {
	Start() error
	Stop()
	Status() app.Status
}

// SessionHandler handles /api/session and its start/stop actions.
type SessionHandler struct {
	control SessionController
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(c SessionController) *SessionHandler {
	return &SessionHandler{control: c}
}

type statusResponse struct {
	Running    bool    `json:"running"`
	SessionID  string  `json:"session_id,omitempty"`
	StartedAt  string  `json:"started_at,omitempty"`
	Level      float64 `json:"level"`
	Percent    int     `json:"percent"`
	Updates    int     `json:"updates"`
	SinkErrors int     `json:"sink_errors"`
	LastError  string  `json:"last_error,omitempty"`
}

func toStatusResponse(s app.Status) statusResponse {
	resp := statusResponse{
		Running:    s.Running,
		SessionID:  s.SessionID,
		Level:      s.Level,
		Percent:    int(s.Level*100 + 0.5),
		Updates:    s.Updates,
		SinkErrors: s.SinkErrors,
		LastError:  s.LastError,
	}
	if !s.StartedAt.IsZero() {
		resp.StartedAt = formatTime(s.StartedAt)
	}
	return resp
}

// ServeHTTP routes GET /api/session, POST /api/session/start and POST /api/session/stop.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.Trim(action, "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, toStatusResponse(h.control.Status()))

	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w)

	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.control.Stop()
		writeJSON(w, http.StatusOK, toStatusResponse(h.control.Status()))

	default:
		writeError(w, http.StatusNotFound, "unknown session action")
	}
}

func (h *SessionHandler) start(w http.ResponseWriter) {
	err := h.control.Start()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toStatusResponse(h.control.Status()))
	case errors.Is(err, volume.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrSourceUnavailable), errors.Is(err, app.ErrSinkUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
