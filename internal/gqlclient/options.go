package gqlclient

import (
	"net/http"
	"time"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the HTTP client.
//
// Defaults:
// - Doer:             http.DefaultClient
// - Timeout:          none
// - MaxResponseBytes: 8 MiB
type Options struct {
	Endpoint         string
	Headers          map[string]string
	Auth             Auth
	Timeout          time.Duration
	MaxResponseBytes int64
	Doer             Doer
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Headers:          map[string]string{},
		MaxResponseBytes: 8 << 20,
		Doer:             http.DefaultClient,
	}
}

func WithEndpoint(url string) Option         { return func(o *Options) { o.Endpoint = url } }
func WithAuth(a Auth) Option                 { return func(o *Options) { o.Auth = a } }
func WithTimeout(d time.Duration) Option     { return func(o *Options) { o.Timeout = d } }
func WithDoer(d Doer) Option                 { return func(o *Options) { o.Doer = d } }
func WithMaxResponseBytes(n int64) Option    { return func(o *Options) { o.MaxResponseBytes = n } }
func WithHeader(key, value string) Option    { return func(o *Options) { o.Headers[key] = value } }
func WithHeaders(h map[string]string) Option {
	return func(o *Options) {
		for k, v := range h {
			o.Headers[k] = v
		}
	}
}
