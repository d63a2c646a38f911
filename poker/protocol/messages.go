package protocol

import (
	"encoding/json"
	"fmt"
)

// SessionState is the full shared state of one estimation session as
// rendered to clients. The server replaces it wholesale on every
// mutation; clients always receive a complete copy, never a diff.
type SessionState struct {
	Users map[string]UserState `json:"users"`
	Admin *string              `json:"admin"`
}

// NewSessionState returns an empty state with an allocated user map.
func NewSessionState() SessionState {
	return SessionState{Users: make(map[string]UserState)}
}

// Clone returns an independent copy of the state. UserState values are
// copied by value; the pointed-to strings are immutable and shared.
func (s SessionState) Clone() SessionState {
	users := make(map[string]UserState, len(s.Users))
	for id, user := range s.Users {
		users[id] = user
	}
	return SessionState{Users: users, Admin: s.Admin}
}

// UserState describes one participant. Name and Points are nil until a
// name is chosen or a vote is cast. Kicked and Stale are server-side
// bookkeeping and never reach clients.
type UserState struct {
	Name        *string `json:"name"`
	Points      *string `json:"points"`
	IsSpectator bool    `json:"isSpectator"`
	Kicked      bool    `json:"-"`
	Stale       bool    `json:"-"`
}

// ClientMessage is a command sent by a client to the server.
type ClientMessage interface{ isClientMessage() }

// NameChange sets or changes the sender's display name.
type NameChange struct{ Name string }

// SetPoints casts the sender's vote.
type SetPoints struct{ Points string }

// ResetPoints clears every user's vote. Admin only.
type ResetPoints struct{}

// Whoami asks the server for the sender's user id.
type Whoami struct{}

// ClaimSession makes the sender the session admin if the seat is free.
type ClaimSession struct{}

// KickUser revokes another user's access. Admin only.
type KickUser struct{ UserID string }

// SetSpectator toggles the sender's spectator flag.
type SetSpectator struct{ Spectator bool }

func (NameChange) isClientMessage()   {}
func (SetPoints) isClientMessage()    {}
func (ResetPoints) isClientMessage()  {}
func (Whoami) isClientMessage()       {}
func (ClaimSession) isClientMessage() {}
func (KickUser) isClientMessage()     {}
func (SetSpectator) isClientMessage() {}

// ServerMessage is an event sent by the server to a client.
type ServerMessage interface{ isServerMessage() }

// StateEvent delivers a per-viewer projection of the session state.
type StateEvent struct{ State SessionState }

// WhoamiEvent answers a Whoami command with the caller's user id.
type WhoamiEvent struct{ UserID string }

// ErrorEvent reports a rejected command or a fatal join error.
type ErrorEvent struct{ Message string }

// KeepAliveEvent is a no-op sent periodically so intermediaries do not
// tear down idle connections.
type KeepAliveEvent struct{}

func (StateEvent) isServerMessage()     {}
func (WhoamiEvent) isServerMessage()    {}
func (ErrorEvent) isServerMessage()     {}
func (KeepAliveEvent) isServerMessage() {}

// envelope is the tagged-union wire shape shared by both directions.
type envelope struct {
	Tag     string          `json:"tag"`
	Content json.RawMessage `json:"content,omitempty"`
}

func encodeTagged(tag string, content any) ([]byte, error) {
	env := envelope{Tag: tag}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("encode %s content: %w", tag, err)
		}
		env.Content = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return data, nil
}

// EncodeClientMessage serializes a command for the wire.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	switch m := msg.(type) {
	case NameChange:
		return encodeTagged("NameChange", m.Name)
	case SetPoints:
		return encodeTagged("SetPoints", m.Points)
	case ResetPoints:
		return encodeTagged("ResetPoints", nil)
	case Whoami:
		return encodeTagged("Whoami", nil)
	case ClaimSession:
		return encodeTagged("ClaimSession", nil)
	case KickUser:
		return encodeTagged("KickUser", m.UserID)
	case SetSpectator:
		return encodeTagged("SetSpectator", m.Spectator)
	default:
		return nil, fmt.Errorf("encode client message: unsupported type %T", msg)
	}
}

// DecodeClientMessage parses one command from its wire form. Unknown
// tags and malformed payloads are errors; the caller decides whether
// that ends the connection.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}
	switch env.Tag {
	case "NameChange":
		var name string
		if err := json.Unmarshal(env.Content, &name); err != nil {
			return nil, fmt.Errorf("decode NameChange content: %w", err)
		}
		return NameChange{Name: name}, nil
	case "SetPoints":
		var points string
		if err := json.Unmarshal(env.Content, &points); err != nil {
			return nil, fmt.Errorf("decode SetPoints content: %w", err)
		}
		return SetPoints{Points: points}, nil
	case "ResetPoints":
		return ResetPoints{}, nil
	case "Whoami":
		return Whoami{}, nil
	case "ClaimSession":
		return ClaimSession{}, nil
	case "KickUser":
		var userID string
		if err := json.Unmarshal(env.Content, &userID); err != nil {
			return nil, fmt.Errorf("decode KickUser content: %w", err)
		}
		return KickUser{UserID: userID}, nil
	case "SetSpectator":
		var spectator bool
		if err := json.Unmarshal(env.Content, &spectator); err != nil {
			return nil, fmt.Errorf("decode SetSpectator content: %w", err)
		}
		return SetSpectator{Spectator: spectator}, nil
	default:
		return nil, fmt.Errorf("decode client message: unknown tag %q", env.Tag)
	}
}

// EncodeServerMessage serializes an event for the wire.
func EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case StateEvent:
		return encodeTagged("State", m.State)
	case WhoamiEvent:
		return encodeTagged("Whoami", m.UserID)
	case ErrorEvent:
		return encodeTagged("Error", m.Message)
	case KeepAliveEvent:
		return encodeTagged("KeepAlive", nil)
	default:
		return nil, fmt.Errorf("encode server message: unsupported type %T", msg)
	}
}

// DecodeServerMessage parses one event from its wire form. Used by the
// load generator and by tests; the server itself only encodes.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode server message: %w", err)
	}
	switch env.Tag {
	case "State":
		var state SessionState
		if err := json.Unmarshal(env.Content, &state); err != nil {
			return nil, fmt.Errorf("decode State content: %w", err)
		}
		return StateEvent{State: state}, nil
	case "Whoami":
		var userID string
		if err := json.Unmarshal(env.Content, &userID); err != nil {
			return nil, fmt.Errorf("decode Whoami content: %w", err)
		}
		return WhoamiEvent{UserID: userID}, nil
	case "Error":
		var message string
		if err := json.Unmarshal(env.Content, &message); err != nil {
			return nil, fmt.Errorf("decode Error content: %w", err)
		}
		return ErrorEvent{Message: message}, nil
	case "KeepAlive":
		return KeepAliveEvent{}, nil
	default:
		return nil, fmt.Errorf("decode server message: unknown tag %q", env.Tag)
	}
}
