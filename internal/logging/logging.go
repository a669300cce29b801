// Package logging writes structured diagnostic lines for bridge lifecycle
// events.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	reqid "github.com/hanpama/gqlbridge/internal/reqid"
)

// New builds a logger writing to w. Console output is human readable; the
// default is one JSON object per line.
func New(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Register subscribes log to the global event bus.
func Register(log zerolog.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
			with(ctx, log.Debug()).
				Str("kind", e.Kind).
				Bool("cancellable", e.Cancellable).
				Msg("graphql operation dispatched")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
			ev := log.Info()
			if e.Err != nil {
				ev = log.Warn().Err(e.Err).Str("code", e.Code)
			}
			with(ctx, ev).
				Str("kind", e.Kind).
				Str("outcome", e.Outcome).
				Dur("duration", e.Duration).
				Msgf("graphql %s operation finished", e.Kind)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RequestMalformed) {
			ev := log.Warn()
			msg := "failed to parse %s arguments"
			if !e.Recognized {
				ev = log.Error()
				msg = "unexpected error while parsing %s arguments"
			}
			with(ctx, ev).Err(e.Err).Str("kind", e.Kind).Msgf(msg, e.Kind)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationCancel) {
			with(ctx, log.Info()).Bool("found", e.Found).Msg("cancel requested")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ClientFinish) {
			ev := log.Debug()
			if e.Err != nil {
				ev = ev.Err(e.Err)
			}
			with(ctx, ev).
				Str("operation_id", e.OperationID).
				Str("endpoint", e.Endpoint).
				Int("status", e.Status).
				Int("error_count", e.ErrorCount).
				Dur("duration", e.Duration).
				Msg("graphql request completed")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ChannelFinish) {
			with(ctx, log.Debug()).
				Str("transport", e.Transport).
				Str("method", e.Method).
				Str("code", e.Code).
				Dur("duration", e.Duration).
				Msg("channel call served")
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func with(ctx context.Context, ev *zerolog.Event) *zerolog.Event {
	if rid, ok := reqid.FromContext(ctx); ok {
		ev = ev.Str("request_id", rid)
	}
	return ev
}
