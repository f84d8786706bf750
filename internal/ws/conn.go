package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// sendBufferSize is the number of queued outgoing frames.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Upgrade upgrades an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// Conn wraps a WebSocket connection with a buffered send queue. Send and
// Close are safe for concurrent use; WritePump and ReadPump each run in
// their own goroutine.
type Conn struct {
	conn *websocket.Conn
	send chan []byte
	log  *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

// NewConn wraps conn.
func NewConn(conn *websocket.Conn, log *zap.SugaredLogger) *Conn {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Conn{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		log:  log,
	}
}

// Send queues msg for the write pump. A connection whose queue is full is
// closed.
func (c *Conn) Send(msg *ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Debugw("failed to marshal message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warnw("send buffer full, closing connection", "remote", c.RemoteAddr())
		c.closeLocked()
	}
}

// Close stops accepting messages. The write pump flushes what is queued,
// sends a close frame and closes the connection.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Conn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if Close was called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// ReadPump reads client frames and hands each decoded message to onMessage
// until the connection fails or is closed. Malformed frames are dropped.
func (c *Conn) ReadPump(onMessage func(msg *ClientMessage)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debugw("websocket read error", "error", err)
			}
			return
		}

		msg, err := ParseClientMessage(data)
		if err != nil {
			c.log.Debugw("dropping malformed message", "error", err)
			continue
		}
		onMessage(msg)
	}
}

// WritePump writes queued messages, one per text frame, and keeps the
// connection alive with pings. It returns when Close was called and the
// queue is drained, or on a write error.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debugw("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
