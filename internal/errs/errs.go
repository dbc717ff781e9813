package errs

import "errors"

// ErrorMessage is the shared base for the error taxonomy. The three
// concrete kinds below are the only errors the ledger surfaces to
// callers besides raw store failures.
type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

// ValidationError reports malformed or missing input. Never retried.
type ValidationError struct {
	ErrorMessage
}

// NotFoundError reports a referenced entity that does not exist or is
// not owned by the caller.
type NotFoundError struct {
	ErrorMessage
}

// ConflictError reports a concurrent mutation or a delete blocked by
// live references. The caller must re-fetch and retry explicitly.
type ConflictError struct {
	ErrorMessage
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{ErrorMessage: ErrorMessage{Message: message}}
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{ErrorMessage: ErrorMessage{Message: message}}
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{ErrorMessage: ErrorMessage{Message: message}}
}

func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
