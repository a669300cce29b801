package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	language "github.com/hanpama/gqlbridge/internal/language"
)

func requireAPIError(t *testing.T, err error) *apierror.Error {
	t.Helper()
	var ae *apierror.Error
	require.True(t, errors.As(err, &ae), "expected *apierror.Error, got %T", err)
	require.NotEmpty(t, ae.Description)
	require.NotEmpty(t, ae.RecoverySuggestion)
	return ae
}

func TestParse(t *testing.T) {
	req, err := NewParser().Parse(map[string]any{
		"document":    "query { id }",
		"variables":   map[string]any{"a": 1},
		"cancelToken": "t1",
	})
	require.NoError(t, err)
	require.Equal(t, "query { id }", req.Document)
	require.Equal(t, map[string]any{"a": 1}, req.Variables)
	tok, ok := req.CancelToken.Value()
	require.True(t, ok)
	require.Equal(t, "t1", tok)
}

func TestParseDefaults(t *testing.T) {
	req, err := NewParser().Parse(map[string]any{"document": "mutation { save }"})
	require.NoError(t, err)
	require.NotNil(t, req.Variables)
	require.Empty(t, req.Variables)
	_, ok := req.CancelToken.Value()
	require.False(t, ok)

	req, err = NewParser().Parse(map[string]any{"document": "{ id }", "cancelToken": ""})
	require.NoError(t, err)
	_, ok = req.CancelToken.Value()
	require.False(t, ok)
}

func TestExtractDocumentErrors(t *testing.T) {
	cases := map[string]map[string]any{
		"missing":  {},
		"nil":      {"document": nil},
		"not text": {"document": 42},
		"empty":    {"document": ""},
		"syntax":   {"document": "query {"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractDocument(args)
			requireAPIError(t, err)
		})
	}
}

func TestExtractVariablesErrors(t *testing.T) {
	_, err := ExtractVariables(map[string]any{"variables": []any{1}})
	requireAPIError(t, err)

	_, err = ExtractVariables(map[string]any{"variables": map[string]any{"f": func() {}}})
	ae := requireAPIError(t, err)
	require.Error(t, ae.Err)
}

func TestExtractCancelTokenErrors(t *testing.T) {
	_, err := ExtractCancelToken(map[string]any{"cancelToken": 7})
	requireAPIError(t, err)
}

func TestParseWithSchema(t *testing.T) {
	sch, err := language.LoadSchema("schema.graphql", `type Query { id: ID }`)
	require.NoError(t, err)
	p := NewParser(WithSchema(sch))

	_, err = p.Parse(map[string]any{"document": "{ id }"})
	require.NoError(t, err)

	_, err = p.Parse(map[string]any{"document": "{ name }"})
	ae := requireAPIError(t, err)
	require.Contains(t, ae.Description, "name")
}
