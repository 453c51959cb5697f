package arbiter

import (
	"errors"
	"fmt"

	"github.com/kalambet/trad/internal/storage"
)

var (
	// ErrUnauthorized is returned when an operation needs an authenticated caller.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden is returned when the caller lacks the role an operation needs.
	ErrForbidden = errors.New("insufficient role")
	// ErrInference is the only error translate callers see when the backend
	// fails; the underlying cause is logged.
	ErrInference = errors.New("translation backend error")

	ErrNotFound        = storage.ErrNotFound
	ErrAlreadyReviewed = storage.ErrAlreadyReviewed
)

// ValidationError rejects a request because of one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
