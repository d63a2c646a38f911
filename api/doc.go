// Package api provides the HTTP surface of the PointDeck server.
//
// The api package implements:
//   - GET /ws/{session} — WebSocket upgrade and session join; the
//     session is created on first reference
//   - GET /healthz — liveness check
//   - GET /api/sessions — summaries of all live sessions
//   - GET /api/sessions/{id} — the masked outside view of one session
//
// The inspection endpoints are read-only and apply the same vote
// masking as a joined viewer; they never reveal hidden votes, kicked
// users, or server-side flags. All session interaction beyond looking
// happens over the WebSocket.
package api
