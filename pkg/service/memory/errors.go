package memory

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/model"
)

var (
	// ErrAuth means the backend rejected the credentials (401/403)
	ErrAuth = goerr.New("memory backend rejected credentials")

	// ErrNotFound means an ID addressed operation found nothing (404)
	ErrNotFound = goerr.New("memory not found")

	// ErrMaxRetriesExceeded is carried by *RetryError once the retry budget is spent
	ErrMaxRetriesExceeded = goerr.New("max retries exceeded")

	// ErrInitialization means the client could not be constructed from its settings
	ErrInitialization = goerr.New("memory store initialization failed")

	// ErrUnavailable is reported by Client.Err while the store is degraded
	ErrUnavailable = goerr.New("memory store unavailable")

	// ErrInvalidArgument is raised for a missing owner or memory ID
	ErrInvalidArgument = goerr.New("invalid memory store argument")
)

// Context keys attached to store client errors
const (
	OperationKey  = "operation"
	AttemptsKey   = "attempts"
	StatusCodeKey = "status_code"
	BackendKey    = "backend"
	MissingKey    = "missing"
	MemoryIDKey   = "memory_id"
	ArgumentKey   = "argument"
)

// Kind is the caller facing error classification
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindAuth           Kind = "AUTH_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindMaxRetries     Kind = "MAX_RETRIES_EXCEEDED"
	KindInitialization Kind = "INITIALIZATION_ERROR"
	KindUnknown        Kind = "UNKNOWN"
)

// KindOf classifies err. It returns an empty Kind for a nil error. A
// RetryError wins over whatever its last attempt failed with.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMaxRetriesExceeded):
		return KindMaxRetries
	case errors.Is(err, model.ErrInvalidMetadata), errors.Is(err, ErrInvalidArgument):
		return KindValidation
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInitialization), errors.Is(err, ErrUnavailable):
		return KindInitialization
	default:
		return KindUnknown
	}
}

// RetryError is returned when every attempt failed with a transient error.
// It matches both ErrMaxRetriesExceeded and the last underlying error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrMaxRetriesExceeded, e.Err}
}

// classify maps a backend failure to the error taxonomy. The second return
// value reports whether the failure is transient and may be retried.
func classify(err error) (error, bool) {
	var se *model.BackendStatusError
	if !errors.As(err, &se) {
		return err, true
	}

	switch se.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return goerr.Wrap(ErrAuth, se.Error(), goerr.V(StatusCodeKey, se.StatusCode)), false
	case http.StatusBadRequest:
		return goerr.Wrap(model.ErrInvalidMetadata, se.Error(), goerr.V(StatusCodeKey, se.StatusCode)), false
	case http.StatusNotFound:
		return goerr.Wrap(ErrNotFound, se.Error(), goerr.V(StatusCodeKey, se.StatusCode)), false
	default:
		return err, true
	}
}
