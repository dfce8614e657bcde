package domain

import "errors"

// ErrNotFound is returned when a record does not exist or belongs to a
// different group than the caller's. Both cases look identical to the client.
var ErrNotFound = errors.New("not found")

// ErrNoGroup is returned for group-scoped operations performed by an
// authenticated admin who has not created a group yet.
var ErrNoGroup = errors.New("start by creating a group")

// ErrCodeTaken is returned when a generated join code collides with an
// existing group's code. Callers regenerate and retry.
var ErrCodeTaken = errors.New("join code already taken")

// ValidationError describes a rejected input. Handlers map it to a 400
// response carrying the message verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError.
func Invalid(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
