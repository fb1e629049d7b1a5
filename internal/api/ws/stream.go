package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/domain/controller"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

const (
	// writeWait is the deadline for a single frame write
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// presumed dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; the renderer only ever
	// sends small control messages.
	maxMessageSize = 4 << 10
)

// The host binds loopback and the renderer loads from app:// or a dev
// server, so origin checks stay open.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler streams controller events to renderer connections
type Handler struct {
	hub     *controller.Hub
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *controller.Hub, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		hub:     hub,
		log:     log.Component("ws"),
		metrics: metrics,
	}
}

// clientMessage is the only inbound shape the stream accepts
type clientMessage struct {
	Type string `json:"type"`
}

// HandleConnection upgrades the request and streams events until the
// renderer disconnects. All frame writes happen on one goroutine; the
// read side only feeds replies and liveness back through channels.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	replies := make(chan interface{}, 4)
	done := make(chan struct{})

	go h.readPump(conn, replies, done)
	h.writePump(conn, events, replies, done)
}

// readPump consumes inbound frames until the connection errors. It
// never writes to the socket directly.
func (h *Handler) readPump(conn *websocket.Conn, replies chan<- interface{}, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "ping":
			select {
			case replies <- gin.H{"type": "pong", "timestamp": time.Now().Unix()}:
			default:
			}
		default:
			h.log.Debug("Ignoring unknown stream message", zap.String("type", msg.Type))
		}
	}
}

// writePump owns the socket's write side: the welcome banner, every
// event, pong replies, and keepalive pings.
func (h *Handler) writePump(conn *websocket.Conn, events <-chan types.Event, replies <-chan interface{}, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := h.write(conn, gin.H{
		"type":    "system",
		"message": "Connected to Blueprint extension host",
	}); err != nil {
		return
	}

	for {
		select {
		case ev := <-events:
			if err := h.write(conn, ev); err != nil {
				return
			}
			h.metrics.RecordWSEvent(ev.Type)

		case r := <-replies:
			if err := h.write(conn, r); err != nil {
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

func (h *Handler) write(conn *websocket.Conn, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(data)
}
