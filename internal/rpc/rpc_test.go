package rpc

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	bridge "github.com/hanpama/gqlbridge/internal/bridge"
	gqlclient "github.com/hanpama/gqlbridge/internal/gqlclient"
	registry "github.com/hanpama/gqlbridge/internal/registry"
)

func startServer(t *testing.T, inv Invoker) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	Register(s, inv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := Dial("passthrough:///bufnet", WithCallTimeout(5*time.Second), WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestQueryOverGRPC(t *testing.T) {
	c := startServer(t, bridge.New(gqlclient.NewMockClient(gqlclient.Success{Data: `{"n":1}`}), registry.New()))

	res, err := c.Invoke(context.Background(), "query", map[string]any{
		"document":  "query($id: ID) { n }",
		"variables": map[string]any{"id": "x"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"n":1}`, res["data"])
	require.Equal(t, []any{}, res["errors"])
}

func TestFailureRoundTrip(t *testing.T) {
	c := startServer(t, bridge.New(gqlclient.NewMockClient(gqlclient.TransportError{Err: errors.New("offline")}), registry.New()))

	_, err := c.Invoke(context.Background(), "mutate", map[string]any{"document": "mutation { save }"})
	var f *apierror.Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, apierror.MutateFailed, f.Code)
	require.Equal(t, "offline", f.Details[apierror.KeyMessage])
}

func TestMalformedIsInvalidArgument(t *testing.T) {
	b := bridge.New(gqlclient.NewHoldingMockClient(), registry.New())
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	Register(s, b)
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer cc.Close()

	in, err := toStruct(map[string]any{"variables": map[string]any{}})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = cc.Invoke(ctx, "/"+ServiceName+"/Query", in, new(structpb.Struct))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	f, ok := failureFromStatus(status.Convert(err))
	require.True(t, ok)
	require.Equal(t, apierror.Malformed, f.Code)
	require.NotEmpty(t, f.Suggestion())
}

func TestCancelOverGRPC(t *testing.T) {
	client := gqlclient.NewHoldingMockClient()
	c := startServer(t, bridge.New(client, registry.New()))

	done := make(chan error, 1)
	go func() {
		_, err := c.Invoke(context.Background(), "query", map[string]any{"document": "{ slow }", "cancelToken": "tok"})
		done <- err
	}()
	require.Eventually(t, func() bool { return len(client.Calls()) == 1 }, 5*time.Second, 5*time.Millisecond)

	res, err := c.Invoke(context.Background(), "cancel", map[string]any{"cancelToken": "tok"})
	require.NoError(t, err)
	require.Equal(t, true, res["cancelled"])

	var f *apierror.Failure
	require.ErrorAs(t, <-done, &f)
	require.Equal(t, apierror.QueryFailed, f.Code)
}

func TestUnknownMethodIsLocal(t *testing.T) {
	c := startServer(t, bridge.New(gqlclient.NewHoldingMockClient(), registry.New()))
	_, err := c.Invoke(context.Background(), "subscribe", nil)
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestClosedClient(t *testing.T) {
	c := startServer(t, bridge.New(gqlclient.NewHoldingMockClient(), registry.New()))
	require.NoError(t, c.Close())
	_, err := c.Invoke(context.Background(), "query", nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRenderProto(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderProto(&buf))
	out := buf.String()
	require.Contains(t, out, "package gqlbridge.v1;")
	require.Contains(t, out, `import "google/protobuf/struct.proto";`)
	require.Contains(t, out, "service Bridge")
	require.Contains(t, out, "rpc Query")
	require.Contains(t, out, "google.protobuf.Struct")
	require.Contains(t, out, "Cancel cancels the operation")
}
