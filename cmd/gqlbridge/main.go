package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"google.golang.org/grpc"

	"github.com/hanpama/gqlbridge/internal/bridge"
	"github.com/hanpama/gqlbridge/internal/config"
	"github.com/hanpama/gqlbridge/internal/eventbus"
	"github.com/hanpama/gqlbridge/internal/gqlclient"
	"github.com/hanpama/gqlbridge/internal/language"
	"github.com/hanpama/gqlbridge/internal/logging"
	"github.com/hanpama/gqlbridge/internal/otel"
	"github.com/hanpama/gqlbridge/internal/registry"
	"github.com/hanpama/gqlbridge/internal/request"
	"github.com/hanpama/gqlbridge/internal/rpc"
	"github.com/hanpama/gqlbridge/internal/server"
	"github.com/hanpama/gqlbridge/internal/wschannel"
)

const rootUsage = `gqlbridge — GraphQL method channel bridge

USAGE:
  gqlbridge <command> [flags]

COMMANDS:
  serve            Serve the method channel over HTTP, WebSocket and gRPC
  call             Run a single method channel call and print the reply
  compile-proto    Print the .proto definition of the gRPC bridge service
  help             Show help for any command
`

const configFlagsUsage = `  -config <file>                      YAML config file
  -env <file>                         .env file to load first. Repeatable (default: .env)
  -backend.endpoint <url>             GraphQL endpoint
  -backend.header <name=value>        Extra request header. Repeatable
  -backend.api-key <key>              Send key in x-api-key
  -backend.bearer <token>             Send Authorization: Bearer <token>
  -backend.timeout <duration>         Per-operation timeout, e.g. 30s (default: none)
  -schema <file>                      Validate documents against this SDL
  -log.level <level>                  debug, info, warn, error (default: info)
  -log.console                        Human-readable logs instead of JSON
`

const serveUsage = `serve FLAGS:
` + configFlagsUsage + `  -server.addr <addr>                 HTTP listen address (default: :8080)
  -server.path <path>                 Method channel path (default: /channel)
  -server.websocket                   Also serve <path>/ws
  -server.pretty                      Pretty-print JSON responses
  -server.timeout <duration>          How long a request waits for its reply (default: 30s)
  -server.cors-origin <origin>        Allowed CORS origin. Repeatable
  -grpc.addr <addr>                   gRPC listen address (default: disabled)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: gqlbridge)
`

const callUsage = `call [FLAGS] <query|mutate|cancel> [arguments-json]
` + configFlagsUsage + `  -remote <addr>                      Call a running gRPC bridge instead of the backend
  -timeout <duration>                 Give up waiting after this long (default: 30s)
`

const compileProtoUsage = `compile-proto FLAGS:
  -out <file>              Write the .proto file here (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("gqlbridge", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "call":
		return cmdCall(cmdArgs)
	case "compile-proto":
		return cmdCompileProto(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "call":
		fmt.Print(callUsage)
	case "compile-proto":
		fmt.Print(compileProtoUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// configFlags holds flags shared by serve and call. Flags that were set on
// the command line override values from the config file.
type configFlags struct {
	fs       *flag.FlagSet
	path     string
	envFiles stringListFlag
	headers  stringListFlag
	origins  stringListFlag
	apiKey   string
	bearer   string
	cfg      config.Config
}

func bindConfigFlags(fs *flag.FlagSet) *configFlags {
	f := &configFlags{fs: fs}
	d := config.Default()
	f.cfg = *d
	fs.StringVar(&f.path, "config", "", "YAML config file")
	fs.Var(&f.envFiles, "env", ".env file to load")
	fs.StringVar(&f.cfg.Backend.Endpoint, "backend.endpoint", "", "GraphQL endpoint")
	fs.Var(&f.headers, "backend.header", "Extra request header")
	fs.StringVar(&f.apiKey, "backend.api-key", "", "API key")
	fs.StringVar(&f.bearer, "backend.bearer", "", "Bearer token")
	fs.DurationVar(&f.cfg.Backend.Timeout, "backend.timeout", 0, "Per-operation timeout")
	fs.StringVar(&f.cfg.Schema, "schema", "", "SDL file")
	fs.StringVar(&f.cfg.Log.Level, "log.level", d.Log.Level, "Log level")
	fs.BoolVar(&f.cfg.Log.Console, "log.console", false, "Console logs")
	return f
}

func (f *configFlags) bindServe() {
	d := config.Default()
	f.fs.StringVar(&f.cfg.Server.Addr, "server.addr", d.Server.Addr, "HTTP listen address")
	f.fs.StringVar(&f.cfg.Server.Path, "server.path", d.Server.Path, "Method channel path")
	f.fs.BoolVar(&f.cfg.Server.WebSocket, "server.websocket", false, "Serve WebSocket channel")
	f.fs.BoolVar(&f.cfg.Server.Pretty, "server.pretty", false, "Pretty-print JSON responses")
	f.fs.DurationVar(&f.cfg.Server.Timeout, "server.timeout", 30*time.Second, "Reply wait timeout")
	f.fs.Var(&f.origins, "server.cors-origin", "Allowed CORS origin")
	f.fs.StringVar(&f.cfg.GRPC.Addr, "grpc.addr", "", "gRPC listen address")
	f.fs.StringVar(&f.cfg.Tracing.Endpoint, "otel.endpoint", "", "OTLP collector endpoint")
	f.fs.StringVar(&f.cfg.Tracing.Service, "otel.service", d.Tracing.Service, "OpenTelemetry service name")
}

// load reads the env files and config file, then applies explicitly set
// flags on top.
func (f *configFlags) load() (*config.Config, error) {
	envFiles := f.envFiles
	if len(envFiles) == 0 {
		envFiles = stringListFlag{".env"}
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	loader := config.NewLoader(&config.EnvExpander{})

	cfg := config.Default()
	if f.path != "" {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		// Validation runs after flags are applied.
		cfg, err = config.NewLoader(&config.EnvExpander{}, noValidation{}).Parse(data)
		if err != nil {
			return nil, err
		}
	}

	var ferr error
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend.endpoint":
			cfg.Backend.Endpoint = f.cfg.Backend.Endpoint
		case "backend.header":
			if cfg.Backend.Headers == nil {
				cfg.Backend.Headers = map[string]string{}
			}
			for _, h := range f.headers {
				k, v, ok := strings.Cut(h, "=")
				if !ok || strings.TrimSpace(k) == "" {
					ferr = fmt.Errorf("invalid header %q", h)
					return
				}
				cfg.Backend.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		case "backend.api-key":
			cfg.Backend.Auth = &config.Auth{Type: config.AuthTypeAPIKey, Header: "x-api-key", Value: f.apiKey}
		case "backend.bearer":
			cfg.Backend.Auth = &config.Auth{Type: config.AuthTypeBearer, Value: f.bearer}
		case "backend.timeout":
			cfg.Backend.Timeout = f.cfg.Backend.Timeout
		case "schema":
			cfg.Schema = f.cfg.Schema
		case "log.level":
			cfg.Log.Level = f.cfg.Log.Level
		case "log.console":
			cfg.Log.Console = f.cfg.Log.Console
		case "server.addr":
			cfg.Server.Addr = f.cfg.Server.Addr
		case "server.path":
			cfg.Server.Path = f.cfg.Server.Path
		case "server.websocket":
			cfg.Server.WebSocket = f.cfg.Server.WebSocket
		case "server.pretty":
			cfg.Server.Pretty = f.cfg.Server.Pretty
		case "server.timeout":
			cfg.Server.Timeout = f.cfg.Server.Timeout
		case "server.cors-origin":
			cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, f.origins...)
		case "grpc.addr":
			cfg.GRPC.Addr = f.cfg.GRPC.Addr
		case "otel.endpoint":
			cfg.Tracing.Endpoint = f.cfg.Tracing.Endpoint
		case "otel.service":
			cfg.Tracing.Service = f.cfg.Tracing.Service
		}
	})
	if ferr != nil {
		return nil, ferr
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type noValidation struct{}

func (noValidation) Validate(*config.Config) []config.ValidationError { return nil }

// components is the wired bridge shared by serve and call.
type components struct {
	client *gqlclient.HTTPClient
	ops    *registry.Registry
	bridge *bridge.Bridge
}

func (c *components) Close() error {
	c.ops.CancelAll()
	return c.client.Close()
}

func buildBridge(cfg *config.Config) (*components, error) {
	copts := []gqlclient.Option{gqlclient.WithEndpoint(cfg.Backend.Endpoint)}
	if len(cfg.Backend.Headers) > 0 {
		copts = append(copts, gqlclient.WithHeaders(cfg.Backend.Headers))
	}
	if cfg.Backend.Timeout > 0 {
		copts = append(copts, gqlclient.WithTimeout(cfg.Backend.Timeout))
	}
	if cfg.Backend.MaxResponseBytes > 0 {
		copts = append(copts, gqlclient.WithMaxResponseBytes(cfg.Backend.MaxResponseBytes))
	}
	if a := cfg.Backend.Auth; a != nil {
		switch a.Type {
		case config.AuthTypeAPIKey:
			copts = append(copts, gqlclient.WithAuth(gqlclient.APIKeyAuth{Header: a.Header, Value: a.Value}))
		case config.AuthTypeBearer:
			copts = append(copts, gqlclient.WithAuth(gqlclient.BearerAuth{Token: a.Value}))
		}
	}

	var bopts []bridge.Option
	if cfg.Schema != "" {
		src, err := os.ReadFile(cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		sch, err := language.LoadSchema(cfg.Schema, string(src))
		if err != nil {
			return nil, fmt.Errorf("load schema: %s", language.Describe(err))
		}
		bopts = append(bopts, bridge.WithParser(request.NewParser(request.WithSchema(sch))))
	}

	client := gqlclient.NewHTTP(copts...)
	ops := registry.New()
	return &components{client: client, ops: ops, bridge: bridge.New(client, ops, bopts...)}, nil
}

func setupLogging(cfg *config.Config, w io.Writer) (zerolog.Logger, func(), error) {
	logger, err := logging.New(w, cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		return logger, nil, err
	}
	return logger, logging.Register(logger), nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf := bindConfigFlags(fs)
	cf.bindServe()
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	eventbus.Use(eventbus.New())
	logger, unsubscribe, err := setupLogging(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer unsubscribe()
	shutdown, err := otel.Setup(cfg.Tracing.Endpoint, cfg.Tracing.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	comps, err := buildBridge(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	var sopts []server.Option
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Server.Timeout))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, server.New(comps.bridge, sopts...))
	if cfg.Server.WebSocket {
		var wopts []wschannel.Option
		if len(cfg.Server.CORSOrigins) > 0 {
			wopts = append(wopts, wschannel.WithAllowedOrigins(cfg.Server.CORSOrigins...))
		}
		mux.Handle(strings.TrimSuffix(cfg.Server.Path, "/")+"/ws", wschannel.New(comps.bridge, wopts...))
	}
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	var grpcServer *grpc.Server
	var grpcLis net.Listener
	if cfg.GRPC.Addr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = grpc.NewServer()
		rpc.Register(grpcServer, comps.bridge)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		logger.Info().Str("addr", cfg.Server.Addr).Str("path", cfg.Server.Path).Bool("websocket", cfg.Server.WebSocket).Msg("method channel listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcServer != nil {
		p.Go(func(ctx context.Context) error {
			logger.Info().Str("addr", cfg.GRPC.Addr).Str("service", rpc.ServiceName).Msg("grpc bridge listening")
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if n := comps.ops.CancelAll(); n > 0 {
			logger.Info().Int("operations", n).Msg("cancelled in-flight operations")
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(sctx)
	})
	return p.Wait()
}

func cmdCall(args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf := bindConfigFlags(fs)
	remote := ""
	timeout := 30 * time.Second
	fs.StringVar(&remote, "remote", remote, "gRPC bridge address")
	fs.DurationVar(&timeout, "timeout", timeout, "Reply wait timeout")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, callUsage)
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fmt.Fprint(os.Stderr, callUsage)
		return fmt.Errorf("expected a method and optional arguments")
	}
	method := fs.Arg(0)
	arguments := map[string]any{}
	if fs.NArg() == 2 {
		if err := json.Unmarshal([]byte(fs.Arg(1)), &arguments); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var inv server.Invoker
	if remote != "" {
		c, err := rpc.Dial(remote)
		if err != nil {
			return err
		}
		defer c.Close()
		inv = c
	} else {
		cfg, err := cf.load()
		if err != nil {
			return err
		}
		eventbus.Use(eventbus.New())
		_, unsubscribe, err := setupLogging(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer unsubscribe()
		comps, err := buildBridge(cfg)
		if err != nil {
			return err
		}
		defer comps.Close()
		inv = comps.bridge
	}

	env, _ := server.ReplyFor(inv.Invoke(ctx, method, arguments))
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if env.Error != nil {
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	return nil
}

func cmdCompileProto(args []string) error {
	outFile := ""
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write the .proto file here")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compileProtoUsage)
		return err
	}
	if outFile == "" {
		return rpc.RenderProto(os.Stdout)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := rpc.RenderProto(f); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}
