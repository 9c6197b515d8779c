// Package models defines the data structures shared across trackcore: the
// domain types persisted by internal/store (Race, Flight, TrackPoint), the
// queue wire format produced by internal/api and internal/gpstcp and drained
// by internal/writer (QueueItem, QueuePoint, QueueName), and the standard
// HTTP response envelope (APIResponse, APIError, Metadata).
package models
