package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected baseURL to be http://localhost:8080, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected httpClient to be initialized")
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", client.httpClient.Timeout)
	}
	if client.mcpServer == nil {
		t.Error("Expected mcpServer to be initialized")
	}
	if client.GetMCPServer() != client.mcpServer {
		t.Error("Expected GetMCPServer to return the underlying server")
	}
}

func TestAPICall(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":"demo","users":2,"hasAdmin":true}]`))
		case "/api/sessions/missing":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"session not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer backend.Close()

	client := NewClient(backend.URL)

	var infos []struct {
		ID    string `json:"id"`
		Users int    `json:"users"`
	}
	if err := client.apiCall("GET", "/api/sessions", nil, &infos); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "demo" || infos[0].Users != 2 {
		t.Errorf("Unexpected decode result: %#v", infos)
	}

	// Error payloads surface their message.
	err := client.apiCall("GET", "/api/sessions/missing", nil, nil)
	if err == nil || err.Error() != "session not found" {
		t.Errorf("Expected 'session not found', got %v", err)
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected tool result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %#v", result.Content[0])
	}
	return text.Text
}

func TestHandleListSessions(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"alpha","users":3,"hasAdmin":true},{"id":"bravo","users":1,"hasAdmin":false}]`))
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	result, err := client.handleListSessions(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleListSessions failed: %v", err)
	}

	text := toolText(t, result)
	for _, want := range []string{"Live Sessions (2)", "alpha (3 users, admin claimed)", "bravo (1 users, admin unclaimed)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}
}

func TestHandleGetSession(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/sprint-42" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"users":{"1":{"name":"Alice","points":"-1","isSpectator":false},"2":{"name":null,"points":null,"isSpectator":true}},"admin":"1"}`))
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"session_id": "sprint-42"}

	result, err := client.handleGetSession(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetSession failed: %v", err)
	}

	text := toolText(t, result)
	for _, want := range []string{"Session sprint-42 (2 users)", "Admin: user 1", "Alice [voted (hidden)]", "(unnamed) [spectator]"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}
}

func TestHandleGetSession_EscapesSessionID(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A session id with path metacharacters must arrive as one
		// escaped path segment, not as extra path or query parts.
		if r.URL.EscapedPath() != "/api/sessions/a%2Fb%3Fc" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"session not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"users":{},"admin":null}`))
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"session_id": "a/b?c"}

	result, err := client.handleGetSession(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetSession failed: %v", err)
	}
	if got := toolText(t, result); !strings.Contains(got, "Session a/b?c (0 users)") {
		t.Errorf("Expected the escaped lookup to succeed, got %q", got)
	}
}

func TestHandleServerStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	result, err := client.handleServerStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleServerStatus failed: %v", err)
	}
	if got := toolText(t, result); got != "Server is healthy" {
		t.Errorf("Expected healthy status, got %q", got)
	}

	// Unreachable backend reports an error result.
	dead := NewClient("http://127.0.0.1:1")
	result, err = dead.handleServerStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleServerStatus failed: %v", err)
	}
	if got := toolText(t, result); !strings.Contains(got, "server unreachable") {
		t.Errorf("Expected unreachable message, got %q", got)
	}
}

func TestFormatSessionState(t *testing.T) {
	name := "Bob"
	points := "8"
	state := &protocol.SessionState{
		Users: map[string]protocol.UserState{
			"3": {Name: &name, Points: &points},
		},
	}

	text := formatSessionState("demo", state)
	for _, want := range []string{"Session demo (1 users)", "Admin: unclaimed", "- 3: Bob [voted 8]"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}
}
