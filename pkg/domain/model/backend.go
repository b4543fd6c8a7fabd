package model

import (
	"fmt"
	"net/http"
)

// BackendStatusError is returned by backends when the semantic memory
// service answers with a non-success status. The store client classifies
// it by status code.
type BackendStatusError struct {
	StatusCode int
	Message    string
}

func (e *BackendStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("memory backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("memory backend returned %d: %s", e.StatusCode, e.Message)
}

// NewBackendStatusError builds a status error
func NewBackendStatusError(code int, msg string) *BackendStatusError {
	return &BackendStatusError{StatusCode: code, Message: msg}
}
