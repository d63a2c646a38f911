// Package protocol defines the wire vocabulary exchanged between
// PointDeck clients and the server.
//
// The protocol package implements:
//   - The shared session state shape clients render (SessionState, UserState)
//   - The client→server command union (ClientMessage)
//   - The server→client event union (ServerMessage)
//   - JSON encoding and decoding for both unions
//
// Wire Format:
//
// Both unions are JSON objects tagged with a "tag" field; variants that
// carry a payload put it under "content":
//
//	{"tag": "NameChange", "content": "Alice"}
//	{"tag": "SetSpectator", "content": true}
//	{"tag": "ResetPoints"}
//	{"tag": "State", "content": {"users": {"1": {"name": "Alice", "isSpectator": false}}}}
//
// Variants without a payload omit the "content" field entirely.
//
// Visibility:
//
// UserState carries two server-only flags, Kicked and Stale, that are
// never serialized. Everything a client receives has already passed
// through the per-viewer projection in the session package, so decoded
// state never exposes kicked users or hidden votes.
package protocol
