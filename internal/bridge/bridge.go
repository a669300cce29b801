package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	gqlclient "github.com/hanpama/gqlbridge/internal/gqlclient"
	registry "github.com/hanpama/gqlbridge/internal/registry"
	reqid "github.com/hanpama/gqlbridge/internal/reqid"
	request "github.com/hanpama/gqlbridge/internal/request"
)

// Parser extracts a request from untyped call arguments. Recognized failures
// are *apierror.Error; any other error is reported as unrecognized.
type Parser interface {
	Parse(args map[string]any) (request.Request, error)
}

// Registry tracks cancellable in-flight operations by token.
type Registry interface {
	Add(token string, h registry.Handle)
	Remove(token string)
	Cancel(token string) bool
}

var _ Registry = (*registry.Registry)(nil)

type Bridge struct {
	client gqlclient.Client
	parser Parser
	ops    Registry
}

type Option func(*Bridge)

// WithParser replaces the default request parser.
func WithParser(p Parser) Option { return func(b *Bridge) { b.parser = p } }

func New(client gqlclient.Client, ops Registry, opts ...Option) *Bridge {
	b := &Bridge{client: client, parser: request.NewParser(), ops: ops}
	for _, f := range opts {
		f(b)
	}
	return b
}

type kind struct {
	name    string
	failure apierror.Code
	send    func(gqlclient.Client, context.Context, gqlclient.Request, gqlclient.Callback) gqlclient.Operation
}

var (
	queryKind  = kind{name: MethodQuery, failure: apierror.QueryFailed, send: gqlclient.Client.Query}
	mutateKind = kind{name: MethodMutate, failure: apierror.MutateFailed, send: gqlclient.Client.Mutate}
)

// Query issues a GraphQL query described by args.
func (b *Bridge) Query(ctx context.Context, args map[string]any) *Reply {
	return b.run(ctx, queryKind, args)
}

// Mutate issues a GraphQL mutation described by args.
func (b *Bridge) Mutate(ctx context.Context, args map[string]any) *Reply {
	return b.run(ctx, mutateKind, args)
}

// Cancel aborts the operation registered under token and reports whether one
// was in flight. The operation's own reply still resolves, as a failure.
func (b *Bridge) Cancel(ctx context.Context, token string) bool {
	found := token != "" && b.ops.Cancel(token)
	eventbus.Publish(ctx, events.OperationCancel{Found: found})
	return found
}

func (b *Bridge) run(ctx context.Context, k kind, args map[string]any) *Reply {
	ctx, _ = reqid.Ensure(ctx)
	reply := newReply()

	req, err := b.parser.Parse(args)
	if err != nil {
		var ae *apierror.Error
		recognized := errors.As(err, &ae)
		eventbus.Publish(ctx, events.RequestMalformed{Kind: k.name, Err: err, Recognized: recognized})
		if recognized {
			reply.fail(apierror.FromAPIError(apierror.Malformed, err))
		} else {
			reply.fail(apierror.FromUnrecognized(apierror.Malformed, err))
		}
		return reply
	}

	token, cancellable := req.CancelToken.Value()
	l := newLease(b.ops, token, cancellable)
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{Kind: k.name, Cancellable: cancellable})

	op := k.send(b.client, ctx, gqlclient.Request{Document: req.Document, Variables: req.Variables}, func(out gqlclient.Outcome) {
		l.release()
		b.finish(ctx, k, out, reply, start)
	})
	l.bind(op)
	return reply
}

func (b *Bridge) finish(ctx context.Context, k kind, out gqlclient.Outcome, reply *Reply, start time.Time) {
	fin := events.OperationFinish{Kind: k.name, Outcome: gqlclient.OutcomeName(out)}
	var f *apierror.Failure
	switch o := out.(type) {
	case gqlclient.Success:
		fin.Duration = time.Since(start)
		eventbus.Publish(ctx, fin)
		reply.succeed(newResult(o.Data))
		return
	case gqlclient.GraphQLError:
		f = apierror.FromGraphQLErrors(k.failure, o.Errors, o.Data)
		fin.Err = o
	case gqlclient.TransportError:
		f = apierror.FromAPIError(k.failure, o.Err)
		fin.Err = o.Err
	default:
		err := fmt.Errorf("bridge: unexpected outcome %T", out)
		f = apierror.FromUnrecognized(k.failure, err)
		fin.Err = err
	}
	fin.Code = string(f.Code)
	fin.Duration = time.Since(start)
	eventbus.Publish(ctx, fin)
	reply.fail(f)
}
