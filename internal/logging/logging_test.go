package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	reqid "github.com/hanpama/gqlbridge/internal/reqid"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestRegister(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	var buf bytes.Buffer
	log, err := New(&buf, "debug", false)
	require.NoError(t, err)
	unsub := Register(log)
	defer unsub()

	ctx, rid := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.OperationStart{Kind: "query", Cancellable: true})
	eventbus.Publish(ctx, events.OperationFinish{Kind: "query", Outcome: "transport_error", Code: "QUERY_FAILED", Err: errors.New("offline")})
	eventbus.Publish(ctx, events.RequestMalformed{Kind: "mutate", Err: errors.New("odd"), Recognized: false})

	got := lines(t, &buf)
	require.Len(t, got, 3)
	require.Equal(t, "debug", got[0]["level"])
	require.Equal(t, rid, got[0]["request_id"])
	require.Equal(t, "warn", got[1]["level"])
	require.Equal(t, "QUERY_FAILED", got[1]["code"])
	require.Equal(t, "offline", got[1]["error"])
	require.Equal(t, "error", got[2]["level"])
}

func TestLevelFilters(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	var buf bytes.Buffer
	log, err := New(&buf, "info", false)
	require.NoError(t, err)
	defer Register(log)()

	eventbus.Publish(context.Background(), events.OperationStart{Kind: "query"})
	eventbus.Publish(context.Background(), events.OperationCancel{Found: true})
	got := lines(t, &buf)
	require.Len(t, got, 1)
	require.Equal(t, true, got[0]["found"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", false)
	require.Error(t, err)
}
