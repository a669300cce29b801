package events

import "time"

// ChannelStart is emitted when a surface receives a method call.
// Transport is one of "http", "ws" or "grpc".
type ChannelStart struct {
	Transport string
	Method    string
}

// ChannelFinish is emitted after the reply has been written.
type ChannelFinish struct {
	Transport string
	Method    string
	Code      string // failure code, empty on success
	Duration  time.Duration
}
