package config

import "time"

// Config is the bridge process configuration.
type Config struct {
	Backend Backend `yaml:"backend"`
	Server  Server  `yaml:"server"`
	GRPC    GRPC    `yaml:"grpc"`
	Log     Log     `yaml:"log"`
	Tracing Tracing `yaml:"tracing"`

	// Schema is an optional path to an SDL file. When set, documents are
	// validated against it before dispatch.
	Schema string `yaml:"schema"`
}

// Backend describes the GraphQL endpoint operations are sent to.
type Backend struct {
	Endpoint         string            `yaml:"endpoint"`
	Headers          map[string]string `yaml:"headers"`
	Auth             *Auth             `yaml:"auth"`
	Timeout          time.Duration     `yaml:"timeout"`
	MaxResponseBytes int64             `yaml:"max_response_bytes"`
}

type AuthType string

const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeBearer AuthType = "bearer"
)

type Auth struct {
	Type   AuthType `yaml:"type"`
	Header string   `yaml:"header"`
	Value  string   `yaml:"value"`
}

// Server configures the HTTP and WebSocket method channel.
type Server struct {
	Addr         string        `yaml:"addr"`
	Path         string        `yaml:"path"`
	WebSocket    bool          `yaml:"websocket"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	Pretty       bool          `yaml:"pretty"`
}

// GRPC configures the gRPC surface. An empty Addr disables it.
type GRPC struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Tracing configures OTLP export. An empty Endpoint disables it.
type Tracing struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}
