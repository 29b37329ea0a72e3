package backend

import "github.com/kailas-cloud/searchdex/internal/domain"

// Op names used for error context and metrics labels.
const (
	OpSetup        = "setup"
	OpUpdate       = "update"
	OpRemove       = "remove"
	OpClear        = "clear"
	OpOptimize     = "optimize"
	OpSearch       = "search"
	OpMoreLikeThis = "more_like_this"
	OpPing         = "ping"
)

// Error wraps an engine or transport failure with the operation name.
// It matches domain.ErrBackendUnavailable.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Is reports a match for domain.ErrBackendUnavailable.
func (e *Error) Is(target error) bool { return target == domain.ErrBackendUnavailable }

// Wrap returns nil for a nil err and an *Error otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
