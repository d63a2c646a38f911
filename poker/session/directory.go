package session

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

// Directory maps session identifiers to live sessions, creating them
// lazily on first reference. Entries do not own their sessions: active
// joins do, through the reference counting in Resolve and Release, and
// an entry is erased once its session's last owner lets go.
type Directory struct {
	logger      *zap.SugaredLogger
	maxSessions int
	maxUsers    int

	mu       sync.Mutex
	sessions map[string]*Session
}

// SessionInfo summarizes one live session for the inspection surfaces.
type SessionInfo struct {
	ID       string `json:"id"`
	Users    int    `json:"users"`
	HasAdmin bool   `json:"hasAdmin"`
}

// NewDirectory creates a directory enforcing the given capacity limits.
// Both limits must be positive.
func NewDirectory(logger *zap.SugaredLogger, maxSessions, maxUsers int) *Directory {
	return &Directory{
		logger:      logger,
		maxSessions: maxSessions,
		maxUsers:    maxUsers,
		sessions:    make(map[string]*Session),
	}
}

// Resolve returns an owning reference to the session registered under
// id, creating the session if the entry is missing or dead. The whole
// check-create-insert sequence runs under one critical section so two
// concurrent callers cannot both create a session for a fresh id. The
// caller must pair every successful Resolve with a Session.Release.
func (d *Directory) Resolve(id string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing := d.sessions[id]; existing != nil {
		if existing.refs > 0 {
			existing.refs++
			return existing, nil
		}
		// The last owner is mid-teardown; discard the dead entry.
		delete(d.sessions, id)
	}

	if len(d.sessions) >= d.maxSessions {
		return nil, ErrCapacityExceeded
	}

	sess := newSession(d, id, d.maxUsers, d.logger)
	sess.refs = 1
	d.sessions[id] = sess
	d.logger.Infow("session created", "session", id)
	return sess, nil
}

// release drops one owning reference. On the last drop the entry is
// removed, but only if it still points at this session: a new session
// under the same id may have replaced it in the meantime, and that one
// must survive.
func (d *Directory) release(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s.refs--
	if s.refs > 0 {
		return
	}
	if current := d.sessions[s.id]; current == s {
		delete(d.sessions, s.id)
		d.logger.Infow("session closed", "session", s.id)
	}
}

// List returns a summary of every live session, ordered by id.
func (d *Directory) List() []SessionInfo {
	d.mu.Lock()
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		if s.refs > 0 {
			sessions = append(sessions, s)
		}
	}
	d.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		state := s.watch.Current().State
		infos = append(infos, SessionInfo{
			ID:       s.id,
			Users:    len(state.Users),
			HasAdmin: state.Admin != nil,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Peek returns the outside (fully masked) view of a live session
// without taking a reference. The second result is false when no live
// session exists under id.
func (d *Directory) Peek(id string) (protocol.SessionState, bool) {
	d.mu.Lock()
	s := d.sessions[id]
	alive := s != nil && s.refs > 0
	d.mu.Unlock()

	if !alive {
		return protocol.SessionState{}, false
	}
	return s.Project(""), true
}

// Len returns the number of live sessions.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}
