// Package wschannel serves the method channel over a WebSocket. Calls on one
// connection run concurrently and their replies are written as they resolve,
// correlated by call id.
package wschannel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"

	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	reqid "github.com/hanpama/gqlbridge/internal/reqid"
	server "github.com/hanpama/gqlbridge/internal/server"
)

// Call is a client frame.
type Call struct {
	ID        int64          `json:"id"`
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Reply is a server frame answering the call with the same id.
type Reply struct {
	ID     int64             `json:"id"`
	Result map[string]any    `json:"result,omitempty"`
	Error  *server.ErrorBody `json:"error,omitempty"`
}

type Options struct {
	// MaxMessageBytes limits incoming frames. 0 means the websocket default.
	MaxMessageBytes int64
	// WriteTimeout bounds each reply write.
	WriteTimeout time.Duration
	// AllowedOrigins restricts browser origins; empty allows only same-host
	// requests, "*" allows any.
	AllowedOrigins []string
}

type Option func(*Options)

func WithMaxMessageBytes(n int64) Option     { return func(o *Options) { o.MaxMessageBytes = n } }
func WithWriteTimeout(d time.Duration) Option { return func(o *Options) { o.WriteTimeout = d } }
func WithAllowedOrigins(origins ...string) Option {
	return func(o *Options) { o.AllowedOrigins = origins }
}

type Handler struct {
	inv      server.Invoker
	opt      Options
	upgrader websocket.Upgrader
}

func New(inv server.Invoker, opts ...Option) *Handler {
	o := Options{MaxMessageBytes: 1 << 20, WriteTimeout: 10 * time.Second}
	for _, f := range opts {
		f(&o)
	}
	h := &Handler{inv: inv, opt: o}
	if len(o.AllowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, a := range o.AllowedOrigins {
				if a == "*" || a == origin {
					return true
				}
			}
			return false
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		return
	}
	defer conn.Close()
	if h.opt.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opt.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	var wg conc.WaitGroup
	defer wg.Wait()
	defer cancel()

	var wmu sync.Mutex
	write := func(rep Reply) error {
		wmu.Lock()
		defer wmu.Unlock()
		if h.opt.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(h.opt.WriteTimeout))
		}
		return conn.WriteJSON(rep)
	}

	for {
		var call Call
		err := conn.ReadJSON(&call)
		if err != nil {
			var syn *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if errors.As(err, &syn) || errors.As(err, &typ) {
				_ = write(Reply{ID: call.ID, Error: &server.ErrorBody{Code: server.CodeBadRequest, Message: "invalid JSON"}})
				continue
			}
			return
		}
		if call.Method == "" {
			_ = write(Reply{ID: call.ID, Error: &server.ErrorBody{Code: server.CodeBadRequest, Message: "missing 'method'"}})
			continue
		}
		wg.Go(func() {
			callCtx, _ := reqid.NewContext(ctx)
			start := time.Now()
			eventbus.Publish(callCtx, events.ChannelStart{Transport: "ws", Method: call.Method})
			env, _ := server.ReplyFor(h.inv.Invoke(callCtx, call.Method, call.Arguments))
			_ = write(Reply{ID: call.ID, Result: env.Result, Error: env.Error})
			code := ""
			if env.Error != nil {
				code = env.Error.Code
			}
			eventbus.Publish(callCtx, events.ChannelFinish{Transport: "ws", Method: call.Method, Code: code, Duration: time.Since(start)})
		})
	}
}
