package record

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input shape: an unknown kind, a missing
// required field, or a malformed argument. It is returned to the caller as
// a typed result, never thrown across the tool interface.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that a referenced id does not exist. Side names
// which reference was missing (e.g. "from" vs "to" on a link), so the
// caller can retry correctly.
type NotFoundError struct {
	Op   string
	ID   string
	Side string
}

func (e *NotFoundError) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("%s: %s id %q not found", e.Op, e.Side, e.ID)
	}
	return fmt.Sprintf("%s: id %q not found", e.Op, e.ID)
}

// ErrStoreUnavailable marks a record store that could not be brought up:
// data directory creation, database open, or migration failed. Checked
// with errors.Is. Failures of individual reads degrade transparently
// where possible (full-text search falls back to substring matching).
var ErrStoreUnavailable = errors.New("record store unavailable")

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
