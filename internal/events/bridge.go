package events

import "time"

// OperationStart is emitted when a parsed operation is handed to the client.
type OperationStart struct {
	Kind        string // "query" or "mutate"
	Cancellable bool
}

// OperationFinish is emitted when the terminal callback of an operation fires.
type OperationFinish struct {
	Kind     string
	Outcome  string // "success", "transport_error" or "graphql_error"
	Code     string // failure code, empty on success
	Err      error
	Duration time.Duration
}

// RequestMalformed is emitted when call arguments cannot be parsed.
// Recognized is false when the parser failed with an unexpected error type.
type RequestMalformed struct {
	Kind       string
	Err        error
	Recognized bool
}

// OperationCancel is emitted for every cancel call.
type OperationCancel struct {
	Found bool
}
