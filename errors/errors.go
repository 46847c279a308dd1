package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionGone is the well-known stale signal from the push
	// collaborator: the transport session behind a connection handle has
	// ended. Components that see it evict the registry row and move on.
	ErrConnectionGone = fmt.Errorf("connection gone")

	ErrNotConnected    = fmt.Errorf("no live registry entry for connection")
	ErrMissingNickname = fmt.Errorf("nickname is required")
	ErrInvalidNickname = fmt.Errorf("nickname contains forbidden characters")
	ErrNicknameTaken   = fmt.Errorf("nickname already held by a live connection")
	ErrUnhandledAction = fmt.Errorf("unhandled action")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
)

// ValidationError marks bad or missing input. It is recoverable: the
// boundary echoes it back to the originating connection instead of
// failing the invocation.
type ValidationError struct {
	Reason string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
