package sealer

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrEncryption marks every failure of the cipher adapter.
var ErrEncryption = errors.New("encryption error")

// Decoding errors returned by Open.
var (
	ErrMalformed  = errors.New("malformed payload")
	ErrBadPadding = errors.New("invalid padding")
)

// EncryptionError reports a failed encode step. Op names the step that failed.
type EncryptionError struct {
	Op  string
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption error: %s: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

func encryptionError(op string, err error) error {
	return errors.Mark(&EncryptionError{Op: op, Err: err}, ErrEncryption)
}
