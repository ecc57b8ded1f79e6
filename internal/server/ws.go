package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/pinchvolume/internal/app"
)

const writeTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventSource hands out event subscriptions. *app.App implements it.
type EventSource interface {
	Subscribe() (<-chan app.Event, func())
}

// volumeMessage is the JSON frame sent to WebSocket clients.
type volumeMessage struct {
	Type      string  `json:"type"`
	Value     float64 `json:"value"`
	SessionID string  `json:"session_id,omitempty"`
	Error     string  `json:"error,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

func toMessage(e app.Event) volumeMessage {
	msg := volumeMessage{
		Type:      string(e.Type),
		Value:     e.Value,
		SessionID: e.SessionID,
		Timestamp: e.Time.UnixMilli(),
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}
	return msg
}

// VolumeHandler pushes control loop events to WebSocket clients. Each client
// gets its own subscription, so a slow client only loses its own old events.
type VolumeHandler struct {
	events EventSource
	logger *slog.Logger
}

// NewVolumeHandler creates a new VolumeHandler.
func NewVolumeHandler(events EventSource, logger *slog.Logger) *VolumeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VolumeHandler{events: events, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *VolumeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	events, cancel := h.events.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(toMessage(e)); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
