package session

import (
	"context"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

// Conn is the typed duplex a joined connection presents to the session
// engine. The transport package adapts a raw WebSocket into this shape;
// tests substitute in-memory pipes.
type Conn interface {
	// Receive blocks until the next decoded command arrives. It
	// returns io.EOF once the peer has closed the connection cleanly;
	// any other error is a transport or decode failure.
	Receive(ctx context.Context) (protocol.ClientMessage, error)

	// Send delivers one event to the peer. It is safe for concurrent
	// use by the projection, keepalive, and command loop tasks; frames
	// are serialized by the transport and never interleave.
	Send(ctx context.Context, msg protocol.ServerMessage) error
}
