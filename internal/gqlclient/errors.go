package gqlclient

import (
	"fmt"
	"net/http"
)

type clientError struct {
	msg        string
	suggestion string
}

func (e *clientError) Error() string              { return e.msg }
func (e *clientError) RecoverySuggestion() string { return e.suggestion }

var (
	// ErrCanceled reports an operation aborted through its handle.
	ErrCanceled error = &clientError{
		msg:        "gqlclient: operation cancelled",
		suggestion: "The operation was cancelled before it completed",
	}
	// ErrTimeout reports an operation that exceeded the configured timeout.
	ErrTimeout error = &clientError{
		msg:        "gqlclient: operation timed out",
		suggestion: "Check your network connection or raise the request timeout",
	}
	// ErrNoEndpoint reports a client built without a backend endpoint.
	ErrNoEndpoint error = &clientError{
		msg:        "gqlclient: endpoint not configured",
		suggestion: "Configure the GraphQL endpoint of the backend",
	}
)

// HTTPError is returned when the backend answers with a non-2xx status and
// no GraphQL body.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gqlclient: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gqlclient: HTTP %s", e.Status)
}

func (e *HTTPError) RecoverySuggestion() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return "Check the credentials configured for the backend"
	case e.StatusCode == http.StatusTooManyRequests:
		return "The backend is throttling requests; wait before trying again"
	case e.StatusCode >= 500:
		return "The backend failed to handle the request; try again later"
	default:
		return "Check the backend endpoint and the request"
	}
}
