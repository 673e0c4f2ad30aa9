package service

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrValidation marks every rejected identifier token.
	ErrValidation = errors.New("validation error")
	// ErrDuplicateDevice additionally marks tokens naming an already registered device.
	ErrDuplicateDevice = errors.New("device id already registered")
)

// ValidationError describes why an identifier token was rejected.
type ValidationError struct {
	Token  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid device id %q: %s", e.Token, e.Reason)
}

func validationError(token, reason string) error {
	return errors.Mark(&ValidationError{Token: token, Reason: reason}, ErrValidation)
}

func duplicateError(token, id string) error {
	err := validationError(token, fmt.Sprintf("%s is already registered", id))
	return errors.Mark(err, ErrDuplicateDevice)
}
