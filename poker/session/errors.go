package session

import (
	"errors"
	"fmt"
)

// Command and capacity errors reported to clients as Error events.
// Every rejected command leaves session state unchanged.
var (
	ErrCapacityExceeded        = errors.New("session limit reached")
	ErrSessionFull             = errors.New("session user limit reached")
	ErrDuplicateName           = errors.New("name already taken")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrInvalidMessage          = errors.New("invalid message")
	ErrUnknownUserID           = errors.New("unknown user id")
	ErrUserKicked              = errors.New("kicked from session")
)

// protocolError marks a transport-level decode or framing failure. A
// join that ends this way preserves the user entry as stale instead of
// removing it, so a reconnecting client can take the identity over.
type protocolError struct{ err error }

func (e *protocolError) Error() string { return fmt.Sprintf("protocol failure: %v", e.err) }
func (e *protocolError) Unwrap() error { return e.err }

// isCommandError reports whether err is one of the typed command
// rejections, as opposed to a transport failure.
func isCommandError(err error) bool {
	for _, candidate := range []error{
		ErrCapacityExceeded,
		ErrSessionFull,
		ErrDuplicateName,
		ErrInsufficientPermissions,
		ErrInvalidMessage,
		ErrUnknownUserID,
		ErrUserKicked,
	} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
