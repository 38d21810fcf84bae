package trace

import (
	"errors"
	"fmt"

	"github.com/fakeyudi/buildtrace/internal/event"
)

// ErrProtocolViolation is returned when a Finished notification has no
// matching pending Started scope. The session cannot continue after it.
var ErrProtocolViolation = errors.New("protocol violation")

// ProtocolError describes the offending notification.
type ProtocolError struct {
	Scope ScopeKind
	Event event.Kind
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s without a pending %s scope", ErrProtocolViolation, e.Event, e.Scope)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocolViolation }
