package gqlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/vektah/gqlparser/v2/gqlerror"

	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	language "github.com/hanpama/gqlbridge/internal/language"
)

// HTTPClient sends operations as JSON POST requests to a GraphQL endpoint.
// Each dispatch runs on its own goroutine.
type HTTPClient struct {
	opts *Options
	wg   conc.WaitGroup
}

var _ Client = (*HTTPClient)(nil)

func NewHTTP(opts ...Option) *HTTPClient {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	return &HTTPClient{opts: o}
}

func (c *HTTPClient) Query(ctx context.Context, req Request, cb Callback) Operation {
	return c.dispatch(ctx, language.Query, req, cb)
}

func (c *HTTPClient) Mutate(ctx context.Context, req Request, cb Callback) Operation {
	return c.dispatch(ctx, language.Mutation, req, cb)
}

// Close waits for in-flight operations to deliver their callbacks.
func (c *HTTPClient) Close() error {
	c.wg.Wait()
	return nil
}

type operation struct {
	id     string
	cancel context.CancelFunc
}

func (o *operation) ID() string { return o.id }
func (o *operation) Cancel()    { o.cancel() }

func (c *HTTPClient) dispatch(ctx context.Context, kind language.Operation, req Request, cb Callback) Operation {
	// The operation outlives the caller's context; only Cancel aborts it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	op := &operation{id: uuid.NewString(), cancel: cancel}

	c.wg.Go(func() {
		defer cancel()
		var out Outcome
		var pc panics.Catcher
		pc.Try(func() { out = c.do(ctx, op.id, kind, req) })
		if r := pc.Recovered(); r != nil {
			out = TransportError{Err: fmt.Errorf("gqlclient: %w", r.AsError())}
		}
		cb(out)
	})
	return op
}

type wireRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type wireResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors"`
}

func (c *HTTPClient) do(ctx context.Context, id string, kind language.Operation, req Request) Outcome {
	if c.opts.Endpoint == "" {
		return TransportError{Err: ErrNoEndpoint}
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(wireRequest{Query: req.Document, OperationName: req.OperationName, Variables: req.Variables})
	if err != nil {
		return TransportError{Err: fmt.Errorf("gqlclient: encode request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return TransportError{Err: fmt.Errorf("gqlclient: build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/graphql-response+json, application/json")
	for k, v := range c.opts.Headers {
		httpReq.Header.Set(k, v)
	}
	if c.opts.Auth != nil {
		if err := c.opts.Auth.ApplyAuth(httpReq); err != nil {
			return TransportError{Err: err}
		}
	}

	start := time.Now()
	eventbus.Publish(ctx, events.ClientStart{OperationID: id, OperationType: string(kind), Endpoint: c.opts.Endpoint})
	status := 0
	var out Outcome
	defer func() {
		fin := events.ClientFinish{OperationID: id, Endpoint: c.opts.Endpoint, Status: status, Duration: time.Since(start)}
		switch o := out.(type) {
		case TransportError:
			fin.Err = o.Err
		case GraphQLError:
			fin.ErrorCount = len(o.Errors)
		}
		eventbus.Publish(ctx, fin)
	}()

	resp, err := c.opts.Doer.Do(httpReq)
	if err != nil {
		out = TransportError{Err: contextError(ctx, err)}
		return out
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxResponseBytes))
	if err != nil {
		out = TransportError{Err: contextError(ctx, fmt.Errorf("gqlclient: read response: %w", err))}
		return out
	}
	out = decodeResponse(resp, raw)
	return out
}

func decodeResponse(resp *http.Response, raw []byte) Outcome {
	var wr wireResponse
	decErr := json.Unmarshal(raw, &wr)
	hasBody := decErr == nil && (len(wr.Errors) > 0 || partialData(wr.Data) != "")
	if resp.StatusCode/100 != 2 && !hasBody {
		return TransportError{Err: &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(bytes.TrimSpace(raw)),
		}}
	}
	if decErr != nil {
		return TransportError{Err: fmt.Errorf("gqlclient: decode response: %w", decErr)}
	}
	if len(wr.Errors) > 0 {
		return GraphQLError{Errors: wr.Errors, Data: partialData(wr.Data)}
	}
	if len(wr.Data) == 0 {
		return Success{Data: "null"}
	}
	return Success{Data: string(wr.Data)}
}

func partialData(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func contextError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ErrCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}
