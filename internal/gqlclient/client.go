// Package gqlclient issues GraphQL queries and mutations asynchronously and
// reports each result through a single callback invocation.
package gqlclient

import (
	"context"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Request is a GraphQL operation to send to the backend.
type Request struct {
	Document      string
	Variables     map[string]any
	OperationName string
}

// Operation is a handle to an in-flight request.
type Operation interface {
	ID() string
	// Cancel aborts the request. The callback still fires, with a
	// TransportError wrapping ErrCanceled unless a result arrived first.
	Cancel()
}

// Client issues GraphQL operations. Implementations call cb exactly once per
// dispatch, on a goroutine other than the caller's, and must be safe for
// concurrent use.
type Client interface {
	Query(ctx context.Context, req Request, cb Callback) Operation
	Mutate(ctx context.Context, req Request, cb Callback) Operation
}

// Callback receives the terminal outcome of an operation.
type Callback func(Outcome)

// Outcome is one of TransportError, GraphQLError or Success.
type Outcome interface {
	isOutcome()
}

// TransportError reports that the call itself failed: network, auth,
// cancellation, or a server error not expressed as GraphQL errors.
type TransportError struct {
	Err error
}

// GraphQLError reports a response that carried an error list. Data holds any
// partial result as raw JSON, or is empty.
type GraphQLError struct {
	Errors gqlerror.List
	Data   string
}

// Success carries the raw JSON of the response data field.
type Success struct {
	Data string
}

func (TransportError) isOutcome() {}
func (GraphQLError) isOutcome()   {}
func (Success) isOutcome()        {}

func (e TransportError) Error() string { return e.Err.Error() }
func (e TransportError) Unwrap() error { return e.Err }

func (e GraphQLError) Error() string { return e.Errors.Error() }

// OutcomeName labels o for logs and traces.
func OutcomeName(o Outcome) string {
	switch o.(type) {
	case TransportError:
		return "transport_error"
	case GraphQLError:
		return "graphql_error"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}
