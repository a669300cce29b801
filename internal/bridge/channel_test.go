package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	gqlclient "github.com/hanpama/gqlbridge/internal/gqlclient"
	registry "github.com/hanpama/gqlbridge/internal/registry"
)

func requireFailure(t *testing.T, err error, code apierror.Code) *apierror.Failure {
	t.Helper()
	var f *apierror.Failure
	require.True(t, errors.As(err, &f), "expected failure, got %v", err)
	require.Equal(t, code, f.Code)
	return f
}

func TestInvokeRoutes(t *testing.T) {
	client := gqlclient.NewMockClient(gqlclient.Success{Data: "q"}, gqlclient.Success{Data: "m"})
	b := New(client, registry.New())
	ctx := context.Background()

	got, err := b.Invoke(ctx, MethodQuery, map[string]any{"document": "{ a }"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"data": "q", "errors": []any{}}, got)

	got, err = b.Invoke(ctx, MethodMutate, map[string]any{"document": "mutation { b }"})
	require.NoError(t, err)
	require.Equal(t, "m", got["data"])

	_, err = b.Invoke(ctx, "subscribe", nil)
	requireFailure(t, err, apierror.NotImplemented)

	_, err = b.Invoke(ctx, MethodQuery, nil)
	requireFailure(t, err, apierror.Malformed)
}

func TestInvokeCancel(t *testing.T) {
	client := gqlclient.NewHoldingMockClient()
	b := New(client, registry.New())
	ctx := context.Background()

	reply := b.Mutate(ctx, map[string]any{"document": "mutation { b }", "cancelToken": "t9"})
	got, err := b.Invoke(ctx, MethodCancel, map[string]any{"cancelToken": "t9"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"cancelled": true}, got)
	_, f := waitReply(t, reply)
	require.Equal(t, apierror.MutateFailed, f.Code)

	got, err = b.Invoke(ctx, MethodCancel, map[string]any{"cancelToken": "t9"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"cancelled": false}, got)

	_, err = b.Invoke(ctx, MethodCancel, map[string]any{})
	requireFailure(t, err, apierror.Malformed)
	_, err = b.Invoke(ctx, MethodCancel, map[string]any{"cancelToken": 3})
	requireFailure(t, err, apierror.Malformed)
}
