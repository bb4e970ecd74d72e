// Package ws is the websocket transport adapter: it owns sockets and
// their pump goroutines and translates wire envelopes into hub calls.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mkanev/Pulse/internal/core"
)

var errClosed = errors.New("connection closed")

// wsConn adapts one websocket to core.Connection. Writes go through a
// buffered channel drained by the write pump, so TrySend never blocks:
// a full buffer means the peer is slow and the frame is dropped.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
