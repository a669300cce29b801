package rpc

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote bridge service. It satisfies Invoker, returning
// bridge failures as *apierror.Failure.
type Client struct {
	opts   *Options
	cc     *grpc.ClientConn
	closed atomic.Bool
}

var _ Invoker = (*Client)(nil)

// Dial creates a client for target. The connection is established lazily.
func Dial(target string, opts ...Option) (*Client, error) {
	o := &Options{}
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	cc, err := grpc.NewClient(target, o.DialOptions...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", target, err)
	}
	return &Client{opts: o, cc: cc}, nil
}

func (c *Client) Invoke(ctx context.Context, method string, args map[string]any) (map[string]any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	rpcName := ""
	for _, m := range rpcMethods {
		if m.method == method {
			rpcName = m.rpc
		}
	}
	if rpcName == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if _, ok := ctx.Deadline(); !ok && c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	in, err := toStruct(args)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode arguments: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+rpcName, in, out); err != nil {
		if f, ok := failureFromStatus(status.Convert(err)); ok {
			return nil, f
		}
		return nil, err
	}
	return fromStruct(out), nil
}

func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cc.Close()
}
