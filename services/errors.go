package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

var (
	// ErrInvalidRequest marks a caller bug: missing or malformed input. Never retried.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStoreUnavailable marks a backend failure. Surfaced to the user, never auto-retried.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError carries the diagnostic detail a backend exposes about a failure.
// It matches ErrStoreUnavailable with errors.Is.
type StoreError struct {
	Op      string
	Code    string
	Message string
	Name    string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// Cause is the innermost error message.
func (e *StoreError) Cause() string {
	root := e.Err
	for root != nil {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	if root == nil {
		return ""
	}
	return root.Error()
}

func newStoreError(op string, err error) *StoreError {
	se := &StoreError{
		Op:      op,
		Message: err.Error(),
		Name:    fmt.Sprintf("%T", err),
		Err:     err,
	}

	var pgErr *pgconn.PgError
	var liteErr *sqlite.Error
	switch {
	case errors.As(err, &pgErr):
		se.Code = pgErr.Code
		se.Message = pgErr.Message
		se.Name = "PgError"
	case errors.As(err, &liteErr):
		se.Code = fmt.Sprintf("SQLITE_%d", liteErr.Code())
		se.Name = "SQLiteError"
	}

	return se
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
