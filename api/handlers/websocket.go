package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/session"
	"github.com/danghica/cliver/internal/ws"
)

// WebSocketHandler bridges WebSocket connections to sessions.
type WebSocketHandler struct {
	registry *session.Registry
	log      *zap.SugaredLogger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(registry *session.Registry, log *zap.SugaredLogger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WebSocketHandler{
		registry: registry,
		log:      log,
	}
}

// Attach upgrades the request and opens a session for the connection.
// Every client line is submitted to the session; when the connection
// ends the session is told so.
func (h *WebSocketHandler) Attach(c *gin.Context) {
	raw, err := ws.Upgrade(c.Writer, c.Request)
	if err != nil {
		// The upgrader has already replied.
		h.log.Debugw("websocket upgrade failed", "error", err)
		return
	}

	conn := ws.NewConn(raw, h.log)
	sess := h.registry.Open(conn)
	h.log.Infow("client connected", "session", sess.ID(), "remote", conn.RemoteAddr())

	go conn.WritePump()
	go func() {
		conn.ReadPump(func(msg *ws.ClientMessage) {
			sess.Submit(msg.Text())
		})
		sess.Disconnect()
		h.log.Infow("client disconnected", "session", sess.ID())
	}()
}

// RegisterRoutes registers the WebSocket endpoints.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.Attach)
	r.GET("/ws", h.Attach)
}
