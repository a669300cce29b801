package rpc

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures the client.
//
// Defaults:
// - CallTimeout: none (the caller's context decides)
// - DialOptions: insecure credentials
type Options struct {
	CallTimeout time.Duration
	DialOptions []grpc.DialOption
}

type Option func(*Options)

func WithCallTimeout(d time.Duration) Option { return func(o *Options) { o.CallTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}
