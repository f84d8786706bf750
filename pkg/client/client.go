// Package client is a WebSocket client for the cliver protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/danghica/cliver/internal/ws"
)

// Re-export message types from internal/ws for external use
type (
	Message       = ws.ServerMessage
	ClientMessage = ws.ClientMessage
)

var (
	// ErrNoMessage is returned by Next when nothing arrived in time.
	ErrNoMessage = errors.New("no message received")

	// ErrClosed is returned once the connection has ended.
	ErrClosed = errors.New("connection closed")
)

// Options configures Dial.
type Options struct {
	// DialTimeout bounds all connection attempts together. Zero means one
	// attempt only.
	DialTimeout time.Duration

	// HandshakeTimeout bounds a single attempt.
	HandshakeTimeout time.Duration
}

// Client is a connection to a cliver server. Messages are read in the
// background so Next can wait with a timeout without breaking the
// connection.
type Client struct {
	conn *websocket.Conn
	msgs chan *Message

	mu      sync.Mutex
	readErr error
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Dial connects to url, retrying with exponential backoff until
// opts.DialTimeout has passed.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	dialer := *websocket.DefaultDialer
	if opts.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = opts.HandshakeTimeout
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if opts.DialTimeout > 0 {
		b = backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(100*time.Millisecond),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0.1),
			backoff.WithMaxInterval(2*time.Second),
			backoff.WithMaxElapsedTime(opts.DialTimeout),
		)
	}

	conn, err := backoff.RetryWithData(func() (*websocket.Conn, error) {
		conn, _, err := dialer.DialContext(ctx, url, nil)
		return conn, err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		msgs:    make(chan *Message, 64),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.msgs)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
		select {
		case c.msgs <- &msg:
		case <-c.closing:
			return
		}
	}
}

// SendLine sends {"line": line}.
func (c *Client) SendLine(line string) error {
	return c.conn.WriteJSON(map[string]string{"line": line})
}

// Next returns the next server message. It returns ErrNoMessage if none
// arrives within timeout and ErrClosed once the connection has ended.
func (c *Client) Next(ctx context.Context, timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-c.msgs:
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrClosed, c.Err())
		}
		return msg, nil
	case <-timer.C:
		return nil, ErrNoMessage
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closing) })
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	<-c.done
	return err
}
