// internal/transport/conn.go

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Reconnect backoff bounds
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

var ErrClosed = errors.New("transport is closed")

// Options configures a connection.
type Options struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string
	// AuthToken, when set, is sent as a bearer Authorization header on the
	// upgrade request.
	AuthToken string
	// Room is sent as a query-less header so the server can join the
	// session to the right channel on connect.
	Room string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Conn is a dialing websocket event channel with automatic reconnection.
// Per-connection delivery order is preserved: every received frame is
// pushed to the Events channel in read order, and state changes are
// interleaved at the position they occurred.
type Conn struct {
	opts Options

	events chan Event
	states chan State
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// Dial creates the connection and starts its run loop. The first
// StateConnected arrives on States once the socket is up.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	if opts.URL == "" {
		return nil, errors.New("transport: URL is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		opts:   opts,
		events: make(chan Event, 256),
		states: make(chan State, 8),
		send:   make(chan []byte, 256),
		ctx:    runCtx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.run()
	return c, nil
}

// Events delivers server-pushed frames in arrival order.
func (c *Conn) Events() <-chan Event { return c.events }

// States delivers connection lifecycle changes.
func (c *Conn) States() <-chan State { return c.states }

// Emit sends one event frame. It blocks until the frame is queued, the
// context is done, or the connection is closed. Frames queued while the
// socket is down are flushed after reconnect.
func (c *Conn) Emit(ctx context.Context, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", event, err)
	}
	frame, err := json.Marshal(Event{Type: event, Data: data, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("transport: frame %s: %w", event, err)
	}

	select {
	case c.send <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// Close tears the connection down and waits for the pumps to exit.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	close(c.events)
	close(c.states)
	return nil
}

func (c *Conn) run() {
	defer c.wg.Done()

	backoff := minBackoff
	for {
		ws, err := c.dialOnce()
		if err != nil {
			log.Printf("transport: dial failed: %v (retrying in %s)", err, backoff)
			select {
			case <-time.After(backoff):
			case <-c.ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff

		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		c.pushState(StateConnected)

		// writePump exits when readPump signals the socket is dead.
		done := make(chan struct{})
		go c.writePump(ws, done)
		c.readPump(ws)
		close(done)
		ws.Close()

		c.pushState(StateDisconnected)

		select {
		case <-c.ctx.Done():
			return
		default:
		}
	}
}

func (c *Conn) dialOnce() (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.opts.AuthToken)
	}
	if c.opts.Room != "" {
		header.Set("X-Chat-Room", c.opts.Room)
	}

	dialCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	ws, _, err := c.opts.Dialer.DialContext(dialCtx, c.opts.URL, header)
	return ws, err
}

func (c *Conn) readPump(ws *websocket.Conn) {
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("transport: read error: %v", err)
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(message, &evt); err != nil {
			log.Printf("transport: dropping malformed frame: %v", err)
			continue
		}

		select {
		case c.events <- evt:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) writePump(ws *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("transport: write error: %v", err)
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return

		case <-c.ctx.Done():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) pushState(s State) {
	select {
	case c.states <- s:
	case <-c.ctx.Done():
	}
}
