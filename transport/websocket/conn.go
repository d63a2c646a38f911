package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer. Commands are tiny; names
	// cap at 32 bytes and points at 8.
	maxMessageSize = 512
)

// ErrConnClosed is returned by Send once the connection's writer has
// stopped, either because the transport failed or Close was called.
var ErrConnClosed = errors.New("connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Session possession is the only access control; the web
		// client may be served from anywhere.
		return true
	},
}

// Upgrade performs the WebSocket handshake and wraps the raw socket in
// the typed adapter.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	return NewConn(ws), nil
}

// Conn adapts one raw WebSocket into the typed command/event duplex
// the session engine consumes.
//
// Outbound, every Send serializes one event and hands it to an
// unbuffered channel drained by a single writer goroutine, so any
// number of tasks can send concurrently without interleaving frames; a
// busy writer applies backpressure to the senders.
//
// Inbound, gorilla answers ping control frames with pongs and filters
// control frames out before ReadMessage returns, so Receive only ever
// sees data frames.
type Conn struct {
	id string
	ws *websocket.Conn

	out  chan []byte   // rendezvous channel to the writer
	done chan struct{} // closed when the writer stops
	quit chan struct{} // closed by Close to stop the writer

	closeOnce sync.Once
}

// NewConn wraps an upgraded WebSocket. The returned Conn owns the
// socket; call Close to release it.
func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxMessageSize)
	c := &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		out:  make(chan []byte),
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// ID returns a correlation id for logging; it has no protocol meaning.
func (c *Conn) ID() string { return c.id }

// Close tears the connection down. Pending and future Sends fail with
// ErrConnClosed; a blocked Receive returns with an error.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	return c.ws.Close()
}

// Send delivers one event to the peer. Safe for concurrent use.
func (c *Conn) Send(ctx context.Context, msg protocol.ServerMessage) error {
	data, err := protocol.EncodeServerMessage(msg)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until the next command arrives. Text frames decode
// directly; binary frames are accepted when they hold valid UTF-8. A
// clean close (normal or going-away) surfaces as io.EOF; every other
// failure, decode errors included, is returned as-is. Context
// cancellation is observed between reads, not during one; a pending
// read ends when the socket closes.
func (c *Conn) Receive(ctx context.Context) (protocol.ClientMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read: %w", err)
	}
	if msgType == websocket.BinaryMessage && !utf8.Valid(data) {
		return nil, errors.New("read: binary frame is not valid UTF-8")
	}
	return protocol.DecodeClientMessage(data)
}

// writePump is the single transport writer. It stops on the first
// write failure or when Close is called, then closes done so blocked
// senders fail fast.
func (c *Conn) writePump() {
	defer close(c.done)
	for {
		select {
		case data := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.quit:
			return
		}
	}
}
