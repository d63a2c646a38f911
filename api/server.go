package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck/poker/protocol"
	"github.com/pointdeck/pointdeck/poker/session"
	"github.com/pointdeck/pointdeck/transport/websocket"
)

// Server is the HTTP surface of the service: the WebSocket join
// endpoint, a health check, and a read-only REST inspection API.
type Server struct {
	logger    *zap.SugaredLogger
	directory *session.Directory
	router    *mux.Router
}

// NewServer creates the HTTP server around a session directory.
func NewServer(logger *zap.SugaredLogger, directory *session.Directory) *Server {
	s := &Server{
		logger:    logger,
		directory: directory,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	// Read-only inspection, consumed by the MCP transport and ops.
	rest := s.router.PathPrefix("/api").Subrouter()
	rest.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	rest.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")

	// The join endpoint; everything interesting happens on the socket.
	s.router.HandleFunc("/ws/{session}", s.handleJoin)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleJoin upgrades the connection, resolves or creates the session,
// and hands the connection to the engine until it ends. A directory at
// capacity is reported as a single Error event over the fresh socket.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]

	conn, err := websocket.Upgrade(w, r)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess, err := s.directory.Resolve(sessionID)
	if err != nil {
		_ = conn.Send(r.Context(), protocol.ErrorEvent{Message: fmt.Sprintf("error joining session: %v", err)})
		return
	}
	defer sess.Release()

	if err := sess.Join(r.Context(), conn); err != nil {
		s.logger.Debugw("join ended", "session", sessionID, "conn", conn.ID(), "reason", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.directory.List())
}

// handleGetSession returns the outside view of one session: the same
// masking rules as a joined viewer, with no identity of its own.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, ok := s.directory.Peek(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
