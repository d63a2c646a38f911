// Package websocket adapts raw WebSocket connections into the typed
// duplex the session engine consumes.
//
// The websocket package implements:
//   - The HTTP upgrade handshake (Upgrade)
//   - Decoding inbound frames into protocol.ClientMessage values
//   - Serializing outbound protocol.ServerMessage values
//   - A single-writer pump so independent tasks can send concurrently
//   - Automatic pong replies to protocol-level pings
//
// Inbound Handling:
//
// Text frames decode directly as commands. Binary frames are accepted
// only when they contain valid UTF-8 and are then treated identically.
// Ping frames are answered with pongs and, like pong frames, never
// reach the caller. A close frame with a normal or going-away status
// ends the visible stream with io.EOF; abnormal closures and decode
// failures surface as errors, which the session engine treats as the
// abrupt-disconnect path.
//
// Outbound Handling:
//
// Send marshals one event and hands it to an unbuffered channel that a
// dedicated writer goroutine drains. The projection, keepalive, and
// command loop tasks all hold the same Conn and send concurrently;
// frames never interleave, and a full queue blocks the sender until
// the writer catches up.
//
// Usage:
//
//	conn, err := websocket.Upgrade(w, r)
//	if err != nil {
//		return
//	}
//	defer conn.Close()
//
//	err = sess.Join(r.Context(), conn)
package websocket
