package api

import "errors"

// ErrDeletionNotFound is returned when a deletion_id has no matching job
// in this process's in-memory deletion tracker.
var ErrDeletionNotFound = errors.New("api: deletion job not found")
