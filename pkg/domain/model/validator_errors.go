package model

import "github.com/m-mizutani/goerr/v2"

// Validation errors
var (
	// ErrInvalidMetadata is raised when caller supplied metadata violates
	// the memory taxonomy. It is never retried.
	ErrInvalidMetadata = goerr.New("invalid memory metadata")

	// ErrInvalidEvent is raised when an event payload cannot be decoded
	ErrInvalidEvent = goerr.New("invalid event")
)

// Context keys for error values
const (
	FieldKey        = "field"
	CategoryKey     = "category"
	SourceKey       = "source"
	ExpectedTypeKey = "expected_type"
	ActualTypeKey   = "actual_type"
	EventKindKey    = "event_kind"
)

// piiFields are never sent to the backend inside module specific data
var piiFields = []string{"email", "phone", "address", "ssn", "credit_card"}

// PIIFields returns the module-specific keys removed by Sanitize
func PIIFields() []string {
	return append([]string(nil), piiFields...)
}
