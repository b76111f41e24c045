package kobo

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors classifying provider failures. Callers test with errors.Is
// and decide whether to retry; the client never retries on its own.
var (
	// ErrAuth indicates an invalid or expired API token.
	ErrAuth = errors.New("kobo: authentication failed")
	// ErrNotFound indicates an unknown form or resource.
	ErrNotFound = errors.New("kobo: not found")
	// ErrTransient indicates a network failure or a provider-side outage.
	ErrTransient = errors.New("kobo: transient provider error")
)

// APIError carries the status code and body of a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kobo: HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps the status code onto the error taxonomy so that
// errors.Is(err, ErrAuth) and friends work on wrapped APIErrors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrAuth
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrTransient
	default:
		return nil
	}
}
