package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is returned when a config fails validation.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return "validation errors: " + strings.Join(parts, "; ")
}

type Validator interface {
	Validate(c *Config) []ValidationError
}

// VariableExpander rewrites raw config bytes before they are decoded.
type VariableExpander interface {
	Expand(data []byte) []byte
}

// EnvExpander expands ${VAR} and $VAR from the environment.
type EnvExpander struct{}

func (e *EnvExpander) Expand(data []byte) []byte {
	return []byte(os.Expand(string(data), os.Getenv))
}

type Loader struct {
	expander   VariableExpander
	validators []Validator
}

// NewLoader creates a Loader. With no validators given, the default set is
// used.
func NewLoader(expander VariableExpander, validators ...Validator) *Loader {
	if len(validators) == 0 {
		validators = []Validator{&RequiredFieldValidator{}, &AuthValidator{}, &ServerValidator{}}
	}
	return &Loader{expander: expander, validators: validators}
}

// Load reads and parses the YAML file at path.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return l.Parse(data)
}

func (l *Loader) Parse(data []byte) (*Config, error) {
	if l.expander != nil {
		data = l.expander.Expand(data)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	SetDefaults(&c)
	if err := l.Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate runs every validator and joins their findings.
func (l *Loader) Validate(c *Config) error {
	var all ValidationErrors
	for _, v := range l.validators {
		all = append(all, v.Validate(c)...)
	}
	if len(all) > 0 {
		return all
	}
	return nil
}

// Default returns a config with only defaults applied.
func Default() *Config {
	var c Config
	SetDefaults(&c)
	return &c
}

// SetDefaults fills zero fields.
func SetDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/channel"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tracing.Service == "" {
		c.Tracing.Service = "gqlbridge"
	}
	if c.Backend.Auth != nil && c.Backend.Auth.Type == AuthTypeAPIKey && c.Backend.Auth.Header == "" {
		c.Backend.Auth.Header = "x-api-key"
	}
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// RequiredFieldValidator checks fields the bridge cannot run without.
type RequiredFieldValidator struct{}

func (v *RequiredFieldValidator) Validate(c *Config) []ValidationError {
	var errs []ValidationError
	if c.Backend.Endpoint == "" {
		errs = append(errs, ValidationError{Field: "backend.endpoint", Message: "is required"})
	} else if u, err := url.Parse(c.Backend.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{Field: "backend.endpoint", Message: "must be an absolute URL"})
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "backend.timeout", Message: "must not be negative"})
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level: %s", c.Log.Level)})
	}
	return errs
}

type AuthValidator struct{}

func (v *AuthValidator) Validate(c *Config) []ValidationError {
	a := c.Backend.Auth
	if a == nil {
		return nil
	}
	var errs []ValidationError
	switch a.Type {
	case AuthTypeAPIKey, AuthTypeBearer:
		if a.Value == "" {
			errs = append(errs, ValidationError{Field: "backend.auth.value", Message: fmt.Sprintf("is required for %s auth", a.Type)})
		}
	default:
		errs = append(errs, ValidationError{Field: "backend.auth.type", Message: fmt.Sprintf("unknown auth type: %s", a.Type)})
	}
	return errs
}

type ServerValidator struct{}

func (v *ServerValidator) Validate(c *Config) []ValidationError {
	var errs []ValidationError
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, ValidationError{Field: "server.path", Message: "must start with /"})
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "server.timeout", Message: "must not be negative"})
	}
	if c.GRPC.Addr != "" && c.GRPC.Addr == c.Server.Addr {
		errs = append(errs, ValidationError{Field: "grpc.addr", Message: "must differ from server.addr"})
	}
	return errs
}
