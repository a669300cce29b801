package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	bridge "github.com/hanpama/gqlbridge/internal/bridge"
	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	reqid "github.com/hanpama/gqlbridge/internal/reqid"
)

// Invoker runs method channel calls. *bridge.Bridge satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, method string, args map[string]any) (map[string]any, error)
}

var _ Invoker = (*bridge.Bridge)(nil)

// Handler is an http.Handler that serves the method channel. Each POST
// carries one call and receives its reply once the operation completes.
type Handler struct {
	inv Invoker
	opt Options
}

type Options struct {
	// Timeout bounds how long a request waits for its reply if the incoming
	// context has no deadline. The operation itself keeps running.
	// 0 means wait until the client goes away.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

func New(inv Invoker, opts ...Option) *Handler {
	op := Options{Timeout: 30 * time.Second, MaxBodyBytes: 1 << 20}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{inv: inv, opt: op}
}

// MethodCall is the request envelope.
type MethodCall struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Envelope is the response body. Exactly one field is set.
type Envelope struct {
	Result map[string]any `json:"result,omitempty"`
	Error  *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody mirrors apierror.Failure on the wire.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	// CodeBadRequest reports an envelope that could not be decoded.
	CodeBadRequest = "BAD_REQUEST"
	codeTimeout    = "TIMEOUT"
	codeCanceled   = "CANCELLED"
)

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, _ = reqid.NewContext(ctx)

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{Error: &ErrorBody{Code: CodeBadRequest, Message: "method not allowed"}}, h.opt.Pretty)
		return
	}

	call, berr := parseCall(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status := http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, Envelope{Error: berr}, h.opt.Pretty)
		return
	}

	start := time.Now()
	eventbus.Publish(ctx, events.ChannelStart{Transport: "http", Method: call.Method})
	env, status := h.invoke(ctx, call)
	code := ""
	if env.Error != nil {
		code = env.Error.Code
	}
	writeJSON(w, status, env, h.opt.Pretty)
	eventbus.Publish(ctx, events.ChannelFinish{Transport: "http", Method: call.Method, Code: code, Duration: time.Since(start)})
}

func (h *Handler) invoke(ctx context.Context, call MethodCall) (Envelope, int) {
	res, err := h.inv.Invoke(ctx, call.Method, call.Arguments)
	return ReplyFor(res, err)
}

// ReplyFor converts the outcome of Invoke into a response envelope and the
// HTTP status that carries it. Bridge failures are delivered with 200; only
// failures to obtain a reply map to error statuses.
func ReplyFor(res map[string]any, err error) (Envelope, int) {
	if err == nil {
		return Envelope{Result: res}, http.StatusOK
	}
	var f *apierror.Failure
	switch {
	case errors.As(err, &f):
		return Envelope{Error: &ErrorBody{Code: string(f.Code), Message: f.Message, Details: f.Details}}, http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return Envelope{Error: &ErrorBody{Code: codeTimeout, Message: "timed out waiting for the operation"}}, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return Envelope{Error: &ErrorBody{Code: codeCanceled, Message: "request cancelled"}}, http.StatusServiceUnavailable
	default:
		return Envelope{Error: &ErrorBody{Code: CodeBadRequest, Message: err.Error()}}, http.StatusInternalServerError
	}
}

// ------------------ Request parsing ------------------

func parseCall(r *http.Request, maxBody int64) (MethodCall, *ErrorBody) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return MethodCall{}, &ErrorBody{Code: CodeBadRequest, Message: "unsupported Content-Type"}
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return MethodCall{}, &ErrorBody{Code: CodeBadRequest, Message: "failed to read body"}
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return MethodCall{}, &ErrorBody{Code: CodeBadRequest, Message: errBodyTooLargeMessage}
	}

	var call MethodCall
	if err := json.Unmarshal(body, &call); err != nil {
		return MethodCall{}, &ErrorBody{Code: CodeBadRequest, Message: "invalid JSON"}
	}
	if call.Method == "" {
		return MethodCall{}, &ErrorBody{Code: CodeBadRequest, Message: "missing 'method'"}
	}
	return call, nil
}

// ------------------ Response formatting ------------------

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
