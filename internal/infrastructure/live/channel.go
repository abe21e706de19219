package live

import (
	"sync"
	"sync/atomic"
	"time"

	"classhub/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChannelState is the explicit tri-state of a duplex channel. Sends are only
// attempted against Open channels; a channel that failed a write moves to
// Closing and then Closed, but is never removed from the membership index by
// the send path itself.
type ChannelState int32

const (
	StateOpen ChannelState = iota
	StateClosing
	StateClosed
)

// Channel is one device's outbound half. Implementations must make TrySend
// non-blocking: an event either enters the queue immediately or is dropped.
type Channel interface {
	TrySend(event ports.Event) bool
	State() ChannelState
	Close()
}

// wsChannel wraps a gorilla connection with a buffered outbound queue
// drained by a single writer goroutine, so concurrent broadcasts never
// interleave frames or block on a slow client.
type wsChannel struct {
	conn  *websocket.Conn
	out   chan ports.Event
	done  chan struct{}
	state atomic.Int32

	writeTimeout time.Duration

	closeOnce sync.Once
	logger    *zap.SugaredLogger
}

func newWSChannel(conn *websocket.Conn, queueSize int, writeTimeout time.Duration, logger *zap.SugaredLogger) *wsChannel {
	c := &wsChannel{
		conn:         conn,
		out:          make(chan ports.Event, queueSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
	go c.writeLoop()
	return c
}

func (c *wsChannel) TrySend(event ports.Event) bool {
	if c.State() != StateOpen {
		return false
	}
	select {
	case c.out <- event:
		return true
	default:
		// Queue full: the client is not draining. Drop the event; the
		// heartbeat monitor decides when the connection is dead.
		return false
	}
}

func (c *wsChannel) State() ChannelState {
	return ChannelState(c.state.Load())
}

// Ping writes a ping control frame. WriteControl is safe to call
// concurrently with the writer goroutine.
func (c *wsChannel) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close transitions the channel to Closed and shuts the underlying
// connection. Safe to call multiple times and from any goroutine.
func (c *wsChannel) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

func (c *wsChannel) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case event := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(event); err != nil {
				c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
				c.logger.Debugw("channel write failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
