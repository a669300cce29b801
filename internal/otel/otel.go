package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	reqid "github.com/hanpama/gqlbridge/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(otel.Tracer("gqlbridge"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register starts spans for channel calls, bridge operations and backend
// requests on tracer. Spans are correlated by request id.
func Register(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer      trace.Tracer
	channelSpan sync.Map // rid -> trace.Span
	opSpans     sync.Map // rid -> trace.Span
	clientSpans sync.Map // operation id -> trace.Span
}

func (s *subscriber) parent(ctx context.Context, rid string, maps ...*sync.Map) context.Context {
	for _, m := range maps {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func end(span trace.Span, code string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
	}
	span.End()
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.ChannelStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "bridge.channel")
			span.SetAttributes(
				attribute.String("bridge.transport", e.Transport),
				attribute.String("bridge.method", e.Method),
			)
			s.channelSpan.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ChannelFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.channelSpan.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			if e.Code != "" {
				span.SetAttributes(attribute.String("bridge.code", e.Code))
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid, &s.channelSpan), "bridge.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.type", e.Kind),
				attribute.Bool("bridge.cancellable", e.Cancellable),
			)
			s.opSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.opSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.String("bridge.outcome", e.Outcome))
			end(span, e.Code, e.Err)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ClientStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid, &s.opSpans, &s.channelSpan), "graphql.client")
			span.SetAttributes(
				attribute.String("graphql.operation.type", e.OperationType),
				attribute.String("bridge.operation.id", e.OperationID),
				attribute.String("server.address", e.Endpoint),
			)
			s.clientSpans.Store(e.OperationID, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ClientFinish) {
			v, ok := s.clientSpans.LoadAndDelete(e.OperationID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Int("graphql.error_count", e.ErrorCount),
			)
			end(span, "", e.Err)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
