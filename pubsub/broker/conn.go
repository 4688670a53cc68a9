package broker

import (
	"sync"

	"github.com/gorilla/websocket"
)

// conn is one client connection on the broker.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu       sync.RWMutex
	channels map[string]struct{}

	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, queueSize int) *conn {
	return &conn{
		id:       id,
		ws:       ws,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
}

func (c *conn) subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = struct{}{}
	c.mu.Unlock()
}

func (c *conn) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

func (c *conn) subscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels)
}

// enqueue queues data for the writer without blocking. It returns false if
// the queue is full or the connection is closed.
func (c *conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
