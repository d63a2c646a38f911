package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pointdeck/pointdeck/poker/protocol"
	"github.com/pointdeck/pointdeck/poker/session"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"PointDeck",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`PointDeck planning poker server - MCP Interface

This is a thin client that proxies read-only requests to the REST API.

Sessions are live estimation rounds: participants join over WebSocket,
pick names, and vote. Votes stay hidden (shown as "-1") until every
non-spectator has voted.

AVAILABLE TOOLS:
- list_sessions: List all live sessions with user counts
- get_session: Get the masked state of one session
- server_status: Check that the server is up

These tools observe only. Joining, voting, and admin actions happen
over the WebSocket protocol at /ws/{session}.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all live estimation sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get the masked state of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session identifier to inspect",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_status",
		Description: "Check whether the PointDeck server is healthy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStatus)
}

// GetMCPServer returns the underlying MCP server for serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs one REST request against the server.
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sessions []session.SessionInfo
	if err := c.apiCall("GET", "/api/sessions", nil, &sessions); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live Sessions (%d):\n\n", len(sessions))
	for _, s := range sessions {
		admin := "unclaimed"
		if s.HasAdmin {
			admin = "claimed"
		}
		result += fmt.Sprintf("- %s (%d users, admin %s)\n", s.ID, s.Users, admin)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	sessionID, _ := args["session_id"].(string)

	var state protocol.SessionState
	if err := c.apiCall("GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionState(sessionID, &state)), nil
}

func (c *Client) handleServerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := c.apiCall("GET", "/healthz", nil, nil); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("server unreachable: %v", err)), nil
	}
	return mcp.NewToolResultText("Server is healthy"), nil
}

// formatSessionState renders a masked session state for humans.
func formatSessionState(sessionID string, state *protocol.SessionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%d users)\n", sessionID, len(state.Users))
	if state.Admin != nil {
		fmt.Fprintf(&b, "Admin: user %s\n", *state.Admin)
	} else {
		b.WriteString("Admin: unclaimed\n")
	}
	b.WriteString("\n")

	ids := make([]string, 0, len(state.Users))
	for id := range state.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		user := state.Users[id]
		name := "(unnamed)"
		if user.Name != nil {
			name = *user.Name
		}
		vote := "not voted"
		switch {
		case user.IsSpectator:
			vote = "spectator"
		case user.Points != nil && *user.Points == "-1":
			vote = "voted (hidden)"
		case user.Points != nil:
			vote = fmt.Sprintf("voted %s", *user.Points)
		}
		fmt.Fprintf(&b, "- %s: %s [%s]\n", id, name, vote)
	}
	return b.String()
}
