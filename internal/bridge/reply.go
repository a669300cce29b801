package bridge

import (
	"context"
	"sync"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
)

// Result is the success payload of a query or mutate call.
type Result struct {
	Data   string `json:"data"`
	Errors []any  `json:"errors"`
}

func newResult(data string) Result { return Result{Data: data, Errors: []any{}} }

// Map renders r as an untyped payload with exactly the data and errors keys.
func (r Result) Map() map[string]any {
	errs := r.Errors
	if errs == nil {
		errs = []any{}
	}
	return map[string]any{"data": r.Data, "errors": errs}
}

// Reply is resolved exactly once, with either a Result or a Failure.
type Reply struct {
	once    sync.Once
	done    chan struct{}
	result  Result
	failure *apierror.Failure
}

func newReply() *Reply { return &Reply{done: make(chan struct{})} }

func (r *Reply) succeed(res Result) bool { return r.complete(res, nil) }

func (r *Reply) fail(f *apierror.Failure) bool { return r.complete(Result{}, f) }

func (r *Reply) complete(res Result, f *apierror.Failure) bool {
	completed := false
	r.once.Do(func() {
		r.result, r.failure = res, f
		completed = true
		close(r.done)
	})
	return completed
}

// Done is closed once the reply is resolved.
func (r *Reply) Done() <-chan struct{} { return r.done }

// Wait blocks until the reply is resolved or ctx ends. A failure is returned
// as a *apierror.Failure.
func (r *Reply) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	if r.failure != nil {
		return Result{}, r.failure
	}
	return r.result, nil
}
