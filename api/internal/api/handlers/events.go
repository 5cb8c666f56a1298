package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// ==============================================================================
// 1. WebSocket Configuration & Constants
// ==============================================================================

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are control traffic only.
	maxMessageSize = 512

	// SSE comment heartbeat keeps idle proxies from closing the stream.
	sseHeartbeat = 25 * time.Second
)

// EventSource is the subscription side of the telemetry hub.
type EventSource interface {
	Subscribe(topic string) chan domain.LifecycleEvent
	Unsubscribe(topic string, ch chan domain.LifecycleEvent)
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

type EventsHandler struct {
	Source   EventSource
	Logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewEventsHandler accepts WebSocket upgrades only from allowedOrigins. An
// empty list falls back to same-origin.
func NewEventsHandler(source EventSource, allowedOrigins []string, logger *slog.Logger) *EventsHandler {
	h := &EventsHandler{
		Source: source,
		Logger: logger.With(slog.String("component", "events")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
	return h
}

func topicOf(r *http.Request) string {
	if t := r.URL.Query().Get("topic"); t != "" {
		return t
	}
	return domain.TopicNginx
}

// ==============================================================================
// 3. Server-Sent Events
// ==============================================================================

// Stream handles GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	topic := topicOf(r)
	events := h.Source.Subscribe(topic)
	defer h.Source.Unsubscribe(topic, events)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.Logger.Info("SSE connection established", slog.String("topic", topic))

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.Logger.Info("SSE client disconnected", slog.String("topic", topic))
			return

		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, payload); err != nil {
				h.Logger.Warn("failed to write to SSE client", slog.String("error", err.Error()))
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ==============================================================================
// 4. WebSocket
// ==============================================================================

// WebSocket handles GET /api/events/ws
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("failed to upgrade WebSocket connection", slog.String("error", err.Error()))
		return
	}

	topic := topicOf(r)
	events := h.Source.Subscribe(topic)
	done := make(chan struct{})

	go h.readPump(ws, done)
	h.writePump(ws, events, done)

	h.Source.Unsubscribe(topic, events)
}

func (h *EventsHandler) writePump(ws *websocket.Conn, events <-chan domain.LifecycleEvent, done <-chan struct{}) {
	defer ws.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case evt, ok := <-events:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"))
				return
			}
			if err := ws.WriteJSON(evt); err != nil {
				h.Logger.Warn("failed to write JSON to WebSocket", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains control frames and signals done when the peer goes away.
func (h *EventsHandler) readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Warn("WebSocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
	}
}
