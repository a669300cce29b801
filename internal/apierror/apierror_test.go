package apierror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type suggestingErr struct{}

func (suggestingErr) Error() string              { return "unauthorized" }
func (suggestingErr) RecoverySuggestion() string { return "sign in again" }

func TestFromAPIErrorRecognized(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("parse: %w", Wrap(cause, "bad document", "fix the document"))

	f := FromAPIError(Malformed, err)
	require.Equal(t, Malformed, f.Code)
	require.Equal(t, Malformed.Message(), f.Message)
	want := map[string]any{
		KeyMessage:            "bad document",
		KeyRecoverySuggestion: "fix the document",
		KeyUnderlyingError:    "boom",
	}
	if diff := cmp.Diff(want, f.Details); diff != "" {
		t.Fatalf("details mismatch (-want +got):\n%s", diff)
	}
}

func TestFromAPIErrorSuggester(t *testing.T) {
	f := FromAPIError(QueryFailed, suggestingErr{})
	require.Equal(t, "unauthorized", f.Details[KeyMessage])
	require.Equal(t, "sign in again", f.Suggestion())
	require.NotContains(t, f.Details, KeyUnderlyingError)
	require.Equal(t, "QUERY_FAILED: unauthorized", f.Error())
}

func TestFromUnrecognized(t *testing.T) {
	f := FromUnrecognized(Malformed, errors.New("weird"))
	require.Equal(t, "weird.\nAn unrecognized error has occurred", f.Details[KeyMessage])
	require.Equal(t, "See logs for details", f.Suggestion())
}

func TestFromGraphQLErrors(t *testing.T) {
	errs := gqlerror.List{{
		Message:    "not allowed",
		Locations:  []gqlerror.Location{{Line: 1, Column: 3}},
		Path:       ast.Path{ast.PathName("user"), ast.PathIndex(0)},
		Extensions: map[string]any{"code": "FORBIDDEN"},
	}}
	f := FromGraphQLErrors(MutateFailed, errs, `{"user":null}`)
	require.Equal(t, MutateFailed, f.Code)
	require.Equal(t, `{"user":null}`, f.Details[KeyData])

	want := []any{map[string]any{
		"message":    "not allowed",
		"locations":  []any{map[string]any{"line": 1, "column": 3}},
		"path":       []any{"user", 0},
		"extensions": map[string]any{"code": "FORBIDDEN"},
	}}
	if diff := cmp.Diff(want, f.Details[KeyErrors]); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}
