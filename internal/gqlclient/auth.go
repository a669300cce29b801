package gqlclient

import (
	"fmt"
	"net/http"
)

// Auth decorates outgoing requests with credentials.
type Auth interface {
	ApplyAuth(req *http.Request) error
}

// APIKeyAuth sends a static key in a header, e.g. "x-api-key".
type APIKeyAuth struct {
	Header string
	Value  string
}

func (a APIKeyAuth) ApplyAuth(req *http.Request) error {
	if a.Value == "" {
		return fmt.Errorf("gqlclient: API key value is required")
	}
	header := a.Header
	if header == "" {
		header = "x-api-key"
	}
	req.Header.Set(header, a.Value)
	return nil
}

// BearerAuth sends an Authorization bearer token.
type BearerAuth struct {
	Token string
}

func (a BearerAuth) ApplyAuth(req *http.Request) error {
	if a.Token == "" {
		return fmt.Errorf("gqlclient: bearer token is required")
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}
