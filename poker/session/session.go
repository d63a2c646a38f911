package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck/poker/protocol"
)

const (
	// keepAliveInterval is how often a no-op event is sent so reverse
	// proxies do not tear down an idle connection.
	keepAliveInterval = 5 * time.Second

	maxNameLength   = 32
	maxPointsLength = 8
)

// Session owns the authoritative state of one estimation session and
// serializes all mutations to it. Connections join with Join, which
// runs until the connection's lifecycle ends.
type Session struct {
	id        string
	maxUsers  int
	directory *Directory
	logger    *zap.SugaredLogger

	// mu serializes the read-clone-apply-publish cycle of a mutation.
	// It is never held across network I/O.
	mu    sync.Mutex
	watch *stateWatch

	nextUserID atomic.Int64

	// refs counts owning references; guarded by the directory's lock.
	refs int
}

func newSession(directory *Directory, id string, maxUsers int, logger *zap.SugaredLogger) *Session {
	return &Session{
		id:        id,
		maxUsers:  maxUsers,
		directory: directory,
		logger:    logger.With("session", id),
		watch:     newStateWatch(protocol.NewSessionState()),
	}
}

// NewSession creates a standalone session that is not registered in
// any directory. Used by tests and embedded setups.
func NewSession(logger *zap.SugaredLogger, id string, maxUsers int) *Session {
	return newSession(nil, id, maxUsers, logger)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Release drops one owning reference. When the last reference is
// released the session deregisters itself from its directory.
func (s *Session) Release() {
	if s.directory != nil {
		s.directory.release(s)
	}
}

// Project returns the current state as seen by viewerID. An empty
// viewer id yields the fully masked outside view.
func (s *Session) Project(viewerID string) protocol.SessionState {
	return projectFor(viewerID, s.watch.Current().State)
}

// UserCount returns the number of user entries, stale ones included.
func (s *Session) UserCount() int {
	return len(s.watch.Current().State.Users)
}

// Join runs one connection against this session until it disconnects,
// errors, or is kicked. It allocates a user id, registers the user,
// and drives the projection, keepalive, and command loop tasks.
//
// A join that ends on a transport protocol failure preserves the user
// entry marked stale so a reconnecting client can take the identity
// over by choosing the same name; any other ending removes the entry.
func (s *Session) Join(ctx context.Context, conn Conn) error {
	userID := strconv.FormatInt(s.nextUserID.Add(1), 10)

	err := s.updateState(func(state *protocol.SessionState) error {
		if len(state.Users) >= s.maxUsers {
			return ErrSessionFull
		}
		state.Users[userID] = protocol.UserState{}
		return nil
	})
	if err != nil {
		// Best effort: the peer may already be gone.
		_ = conn.Send(ctx, protocol.ErrorEvent{Message: fmt.Sprintf("error joining session: %v", err)})
		return err
	}
	s.logger.Infow("user joined", "user", userID)

	sub := s.watch.Subscribe()
	go s.runProjection(ctx, conn, userID, sub)
	go s.runKeepAlive(ctx, conn)

	loopErr := s.commandLoop(ctx, conn, userID)
	switch {
	case loopErr == nil:
		s.logger.Infow("user left", "user", userID)
	case isCommandError(loopErr):
		s.logger.Infow("user left", "user", userID, "reason", loopErr)
	default:
		s.logger.Warnw("user connection failed", "user", userID, "error", loopErr)
	}

	// Final cleanup mutation. Protocol failures mark the user stale
	// instead of removing it; the admin seat is vacated either way.
	var protoErr *protocolError
	stale := errors.As(loopErr, &protoErr)
	_ = s.updateState(func(state *protocol.SessionState) error {
		if stale {
			user := state.Users[userID]
			user.Stale = true
			state.Users[userID] = user
		} else {
			delete(state.Users, userID)
		}
		if state.Admin != nil && *state.Admin == userID {
			state.Admin = nil
		}
		return nil
	})

	// Closing the subscription wakes the projection task so it cannot
	// park on a session that never publishes again.
	s.watch.Unsubscribe(sub)
	return loopErr
}

// runProjection forwards each new snapshot to the connection as this
// viewer's projection. It stops when the viewer is kicked (after one
// final error event), when the viewer's entry disappears, when the
// send side fails, or when Join unsubscribes it on teardown, which
// closes the channel. The stale path relies on that last exit: a stale
// user's entry survives the cleanup mutation, so only the closed
// channel guarantees this task does not park forever.
func (s *Session) runProjection(ctx context.Context, conn Conn, userID string, sub *subscription) {
	defer s.watch.Unsubscribe(sub)
	for {
		snap, ok := <-sub.ch
		if !ok {
			return
		}
		user, ok := snap.State.Users[userID]
		if !ok {
			return
		}
		if user.Kicked {
			_ = conn.Send(ctx, protocol.ErrorEvent{Message: ErrUserKicked.Error()})
			return
		}
		view := projectFor(userID, snap.State)
		if err := conn.Send(ctx, protocol.StateEvent{State: view}); err != nil {
			return
		}
	}
}

// runKeepAlive emits a no-op event on a fixed interval until sending
// fails, which means the connection is gone.
func (s *Session) runKeepAlive(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		if err := conn.Send(ctx, protocol.KeepAliveEvent{}); err != nil {
			return
		}
		<-ticker.C
	}
}

// commandLoop reads and applies commands until the connection ends. A
// nil return means the peer closed cleanly; a *protocolError return
// means a transport or decode failure; typed command errors are sent
// to the peer best-effort before ending the join.
func (s *Session) commandLoop(ctx context.Context, conn Conn, userID string) error {
	for {
		msg, err := conn.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &protocolError{err: err}
		}

		// Refuse anything further from a kicked user.
		user, ok := s.watch.Current().State.Users[userID]
		if !ok {
			return ErrUnknownUserID
		}
		if user.Kicked {
			return ErrUserKicked
		}

		if err := s.apply(ctx, conn, userID, msg); err != nil {
			_ = conn.Send(ctx, protocol.ErrorEvent{Message: err.Error()})
			return err
		}
	}
}

// apply executes one command. Mutating commands run inside a single
// serialized mutation; a validation failure leaves state untouched.
func (s *Session) apply(ctx context.Context, conn Conn, userID string, msg protocol.ClientMessage) error {
	switch m := msg.(type) {
	case protocol.NameChange:
		if len(m.Name) > maxNameLength {
			return ErrInvalidMessage
		}
		return s.updateState(func(state *protocol.SessionState) error {
			return changeName(state, userID, m.Name)
		})

	case protocol.SetPoints:
		if len(m.Points) > maxPointsLength {
			return ErrInvalidMessage
		}
		return s.updateState(func(state *protocol.SessionState) error {
			user := state.Users[userID]
			if user.IsSpectator {
				return ErrInvalidMessage
			}
			points := m.Points
			user.Points = &points
			state.Users[userID] = user
			return nil
		})

	case protocol.ResetPoints:
		return s.updateState(func(state *protocol.SessionState) error {
			if state.Admin == nil || *state.Admin != userID {
				return ErrInsufficientPermissions
			}
			for id, user := range state.Users {
				user.Points = nil
				state.Users[id] = user
			}
			return nil
		})

	case protocol.Whoami:
		// Direct reply; no mutation, no broadcast.
		return conn.Send(ctx, protocol.WhoamiEvent{UserID: userID})

	case protocol.ClaimSession:
		return s.updateState(func(state *protocol.SessionState) error {
			if state.Admin != nil {
				return ErrInsufficientPermissions
			}
			admin := userID
			state.Admin = &admin
			return nil
		})

	case protocol.KickUser:
		return s.updateState(func(state *protocol.SessionState) error {
			if state.Admin == nil || *state.Admin != userID {
				return ErrInsufficientPermissions
			}
			target, ok := state.Users[m.UserID]
			if !ok {
				return ErrUnknownUserID
			}
			target.Kicked = true
			state.Users[m.UserID] = target
			return nil
		})

	case protocol.SetSpectator:
		return s.updateState(func(state *protocol.SessionState) error {
			user := state.Users[userID]
			user.IsSpectator = m.Spectator
			// Spectators never carry a vote; switching either way
			// starts from a clean slate.
			user.Points = nil
			state.Users[userID] = user
			return nil
		})

	default:
		return ErrInvalidMessage
	}
}

// changeName renames userID, honoring the duplicate-name invariant. If
// exactly the stale user holds the requested name, its preserved vote
// and spectator flag move to the caller and the stale entry is removed
// (reconnection takeover).
func changeName(state *protocol.SessionState, userID, name string) error {
	staleID := ""
	for id, user := range state.Users {
		if id == userID || user.Name == nil || *user.Name != name {
			continue
		}
		if !user.Stale {
			return ErrDuplicateName
		}
		if staleID == "" {
			staleID = id
		}
	}

	user := state.Users[userID]
	if staleID != "" {
		ghost := state.Users[staleID]
		user.Points = ghost.Points
		user.IsSpectator = ghost.IsSpectator
		delete(state.Users, staleID)
	}
	user.Name = &name
	state.Users[userID] = user
	return nil
}

// updateState runs one serialized mutation: clone the current state,
// apply the change, publish the replacement. The mutex is held only
// across this synchronous sequence.
func (s *Session) updateState(apply func(state *protocol.SessionState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.watch.Current().State.Clone()
	if err := apply(&next); err != nil {
		return err
	}
	s.watch.Publish(next)
	return nil
}
