// Package ingesterr classifies errors raised anywhere along the ingest
// path (validator, writer, separator, store) so the Writer pool knows
// whether to retry, route to the DLQ, or let a supervisor restart the
// service.
package ingesterr

import (
	"errors"
	"fmt"
)

// Category is one of the fixed error classes the Writer dispatches on.
type Category string

const (
	// CategoryTransient covers I/O failures expected to clear on retry:
	// connection resets, pool exhaustion, deadline exceeded.
	CategoryTransient Category = "transient_io"
	// CategoryIntegrity covers foreign-key or uniqueness violations.
	CategoryIntegrity Category = "integrity"
	// CategoryShape covers malformed payloads that will never become valid.
	CategoryShape Category = "shape"
	// CategoryProtocol covers GPS TCP frame decode failures.
	CategoryProtocol Category = "protocol"
	// CategoryPolicy covers rate-limit and abuse-detection rejections.
	CategoryPolicy Category = "policy"
	// CategoryFatal covers programmer errors that should not be retried
	// and should surface loudly (panics recovered into errors, etc).
	CategoryFatal Category = "fatal"
)

// RetryableError wraps an error known to be worth retrying with backoff.
// The Writer pool increments its retry counter on sight of one of these
// and routes to the DLQ once the configured ceiling is reached.
type RetryableError struct {
	Category Category
	Err      error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// PermanentError wraps an error that will never succeed on retry. The
// Writer pool routes these straight to the DLQ without burning a retry
// budget.
type PermanentError struct {
	Category Category
	Reason   string
	Err      error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Category, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError in the given category. A nil
// err returns nil.
func Retryable(category Category, err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Category: category, Err: err}
}

// Permanent wraps err as a PermanentError with a DLQ reason string. A
// nil err still produces a PermanentError carrying just the reason,
// since shape/protocol rejections often have no underlying Go error.
func Permanent(category Category, reason string, err error) error {
	return &PermanentError{Category: category, Reason: reason, Err: err}
}

// IsRetryable reports whether err (or anything it wraps) is a
// RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsPermanent reports whether err (or anything it wraps) is a
// PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// CategoryOf extracts the Category from a wrapped error, defaulting to
// CategoryFatal for an error that was never classified — an ingest path
// that reaches the Writer without classification is a programming
// mistake, not a transient condition.
func CategoryOf(err error) Category {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Category
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryFatal
}
