// Package validation wraps go-playground/validator v10 behind a
// thread-safe singleton and a VALIDATION_ERROR-shaped error type, used by
// internal/api to reject malformed ingest request bodies before they
// reach the Queue.
//
// This is the HTTP-boundary shape check (struct tags, field bounds); it
// is distinct from internal/validator, which runs the spec's §4.2
// checks on queue items: foreign-key existence against the Store, and a
// shape check of each point's coordinates and RFC 3339 timestamp. The
// coordinate bounds overlap with the ingestPoint tags; the two packages
// run at different points in the ingest pipeline.
//
// # Quick start
//
//	type liveIngestRequest struct {
//	    FlightID string        `validate:"required"`
//	    RaceID   string        `validate:"required"`
//	    PilotID  string        `validate:"required"`
//	    Points   []ingestPoint `validate:"required,min=1,dive"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// # Common validation tags
//
// String validations:
//   - required: field must not be empty
//   - min=n / max=n: length bounds
//
// Numeric validations:
//   - gte=n / lte=n / gt=n / lt=n: value bounds
//   - min=n / max=n: value bounds for numeric fields
//
// Coordinate validations (used by ingestPoint):
//   - min=-90,max=90: latitude bounds
//   - min=-180,max=180: longitude bounds
//
// Slice validations:
//   - dive: apply the element type's own tags to each slice entry
//
// # Error types
//
// ValidationError is a single field failure (Field, Tag, Param, Value,
// Error). RequestValidationError aggregates one or more ValidationErrors
// and converts them to the application's APIError format via ToAPIError.
//
// # See also
//
//   - internal/api: the request handlers that call ValidateStruct
//   - github.com/go-playground/validator/v10: the underlying library
package validation
