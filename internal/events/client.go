package events

import "time"

// ClientStart is emitted before the GraphQL client sends a request.
type ClientStart struct {
	OperationID   string
	OperationType string
	Endpoint      string
}

// ClientFinish is emitted once the GraphQL client has a response or error.
type ClientFinish struct {
	OperationID string
	Endpoint    string
	Status      int
	ErrorCount  int
	Err         error
	Duration    time.Duration
}
