package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/applyflow/agent-relay/internal/domain"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WSHandler upgrades dashboard connections and feeds their commands into the
// relay service. Every connection is also registered as a broadcast observer
// for the lifetime of the socket.
type WSHandler struct {
	svc            *Service
	hub            *Hub
	allowedOrigins []string
}

// NewWSHandler creates a WebSocket ingress handler.
func NewWSHandler(svc *Service, hub *Hub, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		svc:            svc,
		hub:            hub,
		allowedOrigins: allowedOrigins,
	}
}

// envelope is the wire format in both directions: a named event plus its
// JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// connSender adapts a websocket connection to the hub's Sender interface.
// Writes use context.Background() since the library tracks its own
// connection state; the request context only governs reads.
type connSender struct {
	conn *websocket.Conn
}

func (c *connSender) Send(_ context.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return c.conn.Write(context.Background(), websocket.MessageText, msg)
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}

	connID := uuid.NewString()
	slog.Info("Dashboard connected", "conn_id", connID, "ip", r.RemoteAddr)

	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "conn_id", connID)
		}
	}()

	h.hub.Register(connID, &connSender{conn: ws})
	defer func() {
		h.hub.Unregister(connID)
		h.svc.Disconnect(connID)
		slog.Info("Dashboard disconnected", "conn_id", connID)
	}()

	h.readLoop(r.Context(), ws, connID)
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *WSHandler) readLoop(ctx context.Context, ws *websocket.Conn, connID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "conn_id", connID)
			} else {
				slog.Debug("WebSocket read error", "error", err, "conn_id", connID)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			slog.Debug("Ignoring malformed command", "conn_id", connID, "error", err)
			continue
		}

		switch env.Event {
		case domain.EventStartAgent:
			var cmd domain.StartAgentCommand
			if len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &cmd); err != nil {
					slog.Debug("Ignoring malformed start_agent payload", "conn_id", connID, "error", err)
					continue
				}
			}
			if _, err := h.svc.StartAgent(ctx, connID, cmd.JobURL); err != nil {
				slog.Warn("start_agent rejected", "conn_id", connID, "error", err)
			}
		case domain.EventStopAgent:
			h.svc.StopAgent(ctx, connID)
		default:
			slog.Debug("Unknown command", "conn_id", connID, "event", env.Event)
		}
	}
}
