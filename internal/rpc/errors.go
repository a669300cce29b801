package rpc

import "errors"

var (
	// ErrUnknownMethod indicates a channel method with no matching RPC.
	ErrUnknownMethod = errors.New("rpc: unknown method")
	// ErrClosed indicates a call on a closed client.
	ErrClosed = errors.New("rpc: client closed")
)
