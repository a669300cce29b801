package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/hanpama/gqlbridge/internal/bridge"
	"github.com/hanpama/gqlbridge/internal/config"
	"github.com/hanpama/gqlbridge/internal/gqlclient"
	"github.com/hanpama/gqlbridge/internal/registry"
	"github.com/hanpama/gqlbridge/internal/rpc"
	"github.com/hanpama/gqlbridge/internal/server"
)

func captureOutput(t *testing.T, fn func() error) (stdout, stderr string, err error) {
	t.Helper()
	oldOut, oldErr := os.Stdout, os.Stderr
	defer func() {
		os.Stdout, os.Stderr = oldOut, oldErr
	}()

	outR, outW, _ := os.Pipe()
	errR, errW, _ := os.Pipe()
	os.Stdout, os.Stderr = outW, errW

	doneOut := make(chan struct{})
	var bufOut bytes.Buffer
	go func() { io.Copy(&bufOut, outR); close(doneOut) }()

	doneErr := make(chan struct{})
	var bufErr bytes.Buffer
	go func() { io.Copy(&bufErr, errR); close(doneErr) }()

	err = fn()
	outW.Close()
	errW.Close()
	<-doneOut
	<-doneErr
	stdout, stderr = bufOut.String(), bufErr.String()
	return
}

func noEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestHelp(t *testing.T) {
	out, _, err := captureOutput(t, func() error { return run([]string{"help", "serve"}) })
	require.NoError(t, err)
	require.Contains(t, out, "-server.addr")
	require.Contains(t, out, "-backend.endpoint")

	out, _, err = captureOutput(t, func() error { return run([]string{"help"}) })
	require.NoError(t, err)
	require.Contains(t, out, "compile-proto")

	_, _, err = captureOutput(t, func() error { return run([]string{"help", "nope"}) })
	require.ErrorContains(t, err, "unknown help topic")
}

func TestUnknownAndMissingCommand(t *testing.T) {
	_, stderr, err := captureOutput(t, func() error { return run(nil) })
	require.ErrorContains(t, err, "missing command")
	require.Contains(t, stderr, "USAGE")

	_, _, err = captureOutput(t, func() error { return run([]string{"frobnicate"}) })
	require.ErrorContains(t, err, "unknown command")
}

func TestCompileProto(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bridge.proto")
	_, _, err := captureOutput(t, func() error { return run([]string{"compile-proto", "-out", out}) })
	require.NoError(t, err)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(b), "service Bridge")
}

func TestCallLocal(t *testing.T) {
	var gotKey string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"hello":"world"}}`))
	}))
	defer backend.Close()

	out, _, err := captureOutput(t, func() error {
		return run([]string{"call", "-env", noEnv(t), "-backend.endpoint", backend.URL, "-backend.api-key", "k1",
			"query", `{"document":"{ hello }"}`})
	})
	require.NoError(t, err)
	require.Equal(t, "k1", gotKey)

	var env server.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	require.Equal(t, `{"hello":"world"}`, env.Result["data"])
}

func TestCallFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"denied"}]}`))
	}))
	defer backend.Close()

	out, _, err := captureOutput(t, func() error {
		return run([]string{"call", "-env", noEnv(t), "-backend.endpoint", backend.URL, "mutate", `{"document":"mutation { save }"}`})
	})
	require.ErrorContains(t, err, "MUTATE_FAILED")

	var env server.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	require.Equal(t, "MUTATE_FAILED", env.Error.Code)
}

func TestCallRemote(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := grpc.NewServer()
	rpc.Register(s, bridge.New(gqlclient.NewMockClient(gqlclient.Success{Data: `"pong"`}), registry.New()))
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	out, _, err := captureOutput(t, func() error {
		return run([]string{"call", "-remote", lis.Addr().String(), "-timeout", "5s", "query", `{"document":"{ ping }"}`})
	})
	require.NoError(t, err)
	var env server.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	require.Equal(t, `"pong"`, env.Result["data"])
}

func TestCallBadArguments(t *testing.T) {
	_, _, err := captureOutput(t, func() error { return run([]string{"call", "query", "not json"}) })
	require.ErrorContains(t, err, "JSON object")

	_, _, err = captureOutput(t, func() error { return run([]string{"call"}) })
	require.ErrorContains(t, err, "expected a method")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gqlbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  endpoint: https://file.example/graphql
  timeout: 2s
server:
  addr: ":9000"
log:
  level: warn
`), 0o600))

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cf := bindConfigFlags(fs)
	cf.bindServe()
	require.NoError(t, fs.Parse([]string{
		"-env", noEnv(t), "-config", path,
		"-server.addr", ":9100",
		"-backend.header", "x-tenant=acme",
		"-backend.bearer", "tok",
	}))
	cfg, err := cf.load()
	require.NoError(t, err)

	require.Equal(t, "https://file.example/graphql", cfg.Backend.Endpoint)
	require.Equal(t, 2*time.Second, cfg.Backend.Timeout)
	require.Equal(t, ":9100", cfg.Server.Addr)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "acme", cfg.Backend.Headers["x-tenant"])
	require.Equal(t, &config.Auth{Type: config.AuthTypeBearer, Value: "tok"}, cfg.Backend.Auth)
}

func TestLoadRequiresEndpoint(t *testing.T) {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	cf := bindConfigFlags(fs)
	require.NoError(t, fs.Parse([]string{"-env", noEnv(t)}))
	_, err := cf.load()
	require.ErrorContains(t, err, "backend.endpoint")
}
