// Package mcp exposes read-only PointDeck inspection tools over the
// Model Context Protocol.
//
// The mcp package implements a thin client that proxies every tool
// call to the server's REST API, so it works identically whether it is
// served over stdio (the stdio-mcp run mode) or mounted on the HTTP
// server at /mcp.
//
// Tools:
//   - list_sessions: summaries of all live sessions
//   - get_session: the masked outside view of one session
//   - server_status: liveness probe
//
// The tools observe only; they cannot join sessions, vote, or perform
// admin actions. Vote masking is applied by the REST API, so hidden
// votes are never visible through this surface.
package mcp
