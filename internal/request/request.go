// Package request extracts GraphQL operations from untyped plugin arguments.
package request

import (
	"encoding/json"
	"fmt"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	language "github.com/hanpama/gqlbridge/internal/language"
)

// Argument keys of an incoming call.
const (
	KeyDocument    = "document"
	KeyVariables   = "variables"
	KeyCancelToken = "cancelToken"
)

// CancelToken is an optional caller supplied identifier for an in-flight
// operation. The zero value means the operation cannot be cancelled.
type CancelToken struct {
	value string
}

// NewCancelToken returns a token for s. An empty s yields no token.
func NewCancelToken(s string) CancelToken { return CancelToken{value: s} }

// Value returns the token and whether one was supplied.
func (t CancelToken) Value() (string, bool) { return t.value, t.value != "" }

func (t CancelToken) String() string { return t.value }

// Request is a parsed query or mutate call.
type Request struct {
	Document    string
	Variables   map[string]any
	CancelToken CancelToken
}

// ExtractDocument returns the GraphQL document after checking its syntax.
func ExtractDocument(args map[string]any) (string, error) {
	raw, ok := args[KeyDocument]
	if !ok || raw == nil {
		return "", apierror.New(
			"The graphQL document request argument was not passed",
			"Check that the document argument is provided",
		)
	}
	doc, ok := raw.(string)
	if !ok {
		return "", apierror.New(
			fmt.Sprintf("The graphQL document request argument has type %T, expected a string", raw),
			"Pass the document as a string",
		)
	}
	if doc == "" {
		return "", apierror.New(
			"The graphQL document request argument is empty",
			"Pass a non-empty GraphQL document",
		)
	}
	if _, err := language.ParseQuery(doc); err != nil {
		return "", apierror.Wrap(err,
			"The graphQL document is not valid: "+language.Describe(err),
			"Check the syntax of the GraphQL document",
		)
	}
	return doc, nil
}

// ExtractVariables returns the variables map. Missing variables yield an
// empty map.
func ExtractVariables(args map[string]any) (map[string]any, error) {
	raw, ok := args[KeyVariables]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}
	vars, ok := raw.(map[string]any)
	if !ok {
		return nil, apierror.New(
			fmt.Sprintf("The variables request argument has type %T, expected a map with string keys", raw),
			"Pass variables as a map from variable name to value",
		)
	}
	if _, err := json.Marshal(vars); err != nil {
		return nil, apierror.Wrap(err,
			"The variables request argument cannot be serialized",
			"Use only JSON compatible values in variables",
		)
	}
	return vars, nil
}

// ExtractCancelToken returns the cancel token, which may be absent.
func ExtractCancelToken(args map[string]any) (CancelToken, error) {
	raw, ok := args[KeyCancelToken]
	if !ok || raw == nil {
		return CancelToken{}, nil
	}
	s, ok := raw.(string)
	if !ok {
		return CancelToken{}, apierror.New(
			fmt.Sprintf("The cancelToken request argument has type %T, expected a string", raw),
			"Pass the cancel token as a string",
		)
	}
	return NewCancelToken(s), nil
}
