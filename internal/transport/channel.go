// Package transport carries one audio intervention over a WebSocket: a
// single binary clip upstream, a sequence of JSON events downstream.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/intervention"
)

var (
	// ErrAlreadySent rejects a second clip on the same channel.
	ErrAlreadySent = errors.New("clip already sent on this channel")
	// ErrClosed is returned when sending on a closed channel.
	ErrClosed = errors.New("transport channel closed")
)

// Channel is a one-shot intervention exchange. Send may be called before the
// connection is up; the clip is queued and written as soon as the dial
// completes. Events arrive on Events() in the order the server sent them; the
// channel closes when the connection ends, whether or not a terminal event
// was delivered.
type Channel struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	pending []byte
	sent    bool
	closed  bool

	events chan intervention.Event
	done   chan struct{}
}

func NewChannel(url string) *Channel {
	return &Channel{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		events: make(chan intervention.Event, 16),
		done:   make(chan struct{}),
	}
}

// Connect dials the server and flushes any queued clip. It must be called
// exactly once.
func (c *Channel) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	go c.readLoop()

	if pending != nil {
		if err := c.writeClip(pending); err != nil {
			return err
		}
	}
	return nil
}

// Send transmits the clip, or queues it if the connection is not up yet.
// Only one clip may be sent per channel.
func (c *Channel) Send(clip []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sent {
		c.mu.Unlock()
		return ErrAlreadySent
	}
	c.sent = true
	conn := c.conn
	if conn == nil {
		c.pending = clip
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.writeClip(clip)
}

func (c *Channel) writeClip(clip []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, clip); err != nil {
		return fmt.Errorf("sending audio clip: %w", err)
	}
	return nil
}

// Events delivers server events in arrival order. The channel is closed when
// the connection ends; a close before a terminal event means the exchange
// failed in transit.
func (c *Channel) Events() <-chan intervention.Event {
	return c.events
}

func (c *Channel) readLoop() {
	defer close(c.events)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("transport: read ended: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var ev intervention.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("transport: dropping malformed event: %v", err)
			continue
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// Close tears the connection down. Safe to call at any time, including before
// Connect or more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return conn.Close()
	}
	return nil
}
