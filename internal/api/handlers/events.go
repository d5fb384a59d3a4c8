package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arkanlabs/riskpipe/internal/pipeline"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// EventsHandler streams pipeline lifecycle events over a websocket.
type EventsHandler struct {
	events   *pipeline.Broadcaster
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewEventsHandler creates an event stream handler.
func NewEventsHandler(events *pipeline.Broadcaster, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log,
	}
}

// Stream handles GET /api/train/events. Each pipeline event is delivered as
// one JSON message until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.events.Subscribe()
	defer cancel()

	// Reader goroutine only drains control frames and signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
