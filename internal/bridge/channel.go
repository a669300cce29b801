package bridge

import (
	"context"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	request "github.com/hanpama/gqlbridge/internal/request"
)

// Method names accepted by Invoke.
const (
	MethodQuery  = "query"
	MethodMutate = "mutate"
	MethodCancel = "cancel"
)

// Invoke routes a method channel call and blocks until its reply resolves or
// ctx ends. Failures are returned as *apierror.Failure. Giving up on ctx does
// not cancel the underlying operation.
func (b *Bridge) Invoke(ctx context.Context, method string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	switch method {
	case MethodQuery:
		return wait(ctx, b.Query(ctx, args))
	case MethodMutate:
		return wait(ctx, b.Mutate(ctx, args))
	case MethodCancel:
		return b.cancelCall(ctx, args)
	default:
		return nil, apierror.Post(apierror.NotImplemented, apierror.ErrorMap(
			"Unknown method "+method,
			"Use one of query, mutate or cancel",
			nil,
		))
	}
}

func wait(ctx context.Context, r *Reply) (map[string]any, error) {
	res, err := r.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return res.Map(), nil
}

func (b *Bridge) cancelCall(ctx context.Context, args map[string]any) (map[string]any, error) {
	token, err := request.ExtractCancelToken(args)
	if err != nil {
		return nil, apierror.FromAPIError(apierror.Malformed, err)
	}
	tok, ok := token.Value()
	if !ok {
		return nil, apierror.Post(apierror.Malformed, apierror.ErrorMap(
			"The cancelToken request argument was not passed",
			"Pass the token the operation was started with",
			nil,
		))
	}
	return map[string]any{"cancelled": b.Cancel(ctx, tok)}, nil
}
