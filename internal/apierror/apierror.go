// Package apierror defines the failure payloads the bridge delivers to its
// callers and the structured errors its collaborators raise.
package apierror

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Code tags a failure with the stage that produced it.
type Code string

const (
	Malformed    Code = "MALFORMED"
	QueryFailed  Code = "QUERY_FAILED"
	MutateFailed Code = "MUTATE_FAILED"

	// NotImplemented is reported by channel surfaces for unknown methods.
	NotImplemented Code = "NOT_IMPLEMENTED"
)

// Message is the human readable headline for a failure carrying c.
func (c Code) Message() string {
	switch c {
	case Malformed:
		return "The request is malformed"
	case QueryFailed:
		return "The GraphQL query operation failed"
	case MutateFailed:
		return "The GraphQL mutate operation failed"
	case NotImplemented:
		return "The method is not implemented"
	default:
		return string(c)
	}
}

// Detail keys of an error map.
const (
	KeyMessage            = "message"
	KeyRecoverySuggestion = "recoverySuggestion"
	KeyUnderlyingError    = "underlyingError"
	KeyErrors             = "errors"
	KeyData               = "data"
)

const (
	unrecognizedSuffix     = ".\nAn unrecognized error has occurred"
	seeLogsSuggestion      = "See logs for details"
	defaultSuggestion      = "Check the backend endpoint and your network connection, then try again"
	graphQLErrorSuggestion = "Inspect the errors list returned by the server"
)

// Error is a recognized failure with a recovery suggestion.
type Error struct {
	Description        string
	RecoverySuggestion string
	Err                error
}

func New(description, suggestion string) *Error {
	return &Error{Description: description, RecoverySuggestion: suggestion}
}

func Wrap(err error, description, suggestion string) *Error {
	return &Error{Description: description, RecoverySuggestion: suggestion, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

func (e *Error) Unwrap() error { return e.Err }

// Suggester is implemented by errors that know how a caller can recover.
type Suggester interface {
	RecoverySuggestion() string
}

// Failure is the terminal error payload delivered to a caller.
type Failure struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func (f *Failure) Error() string {
	if msg, ok := f.Details[KeyMessage].(string); ok && msg != "" {
		return fmt.Sprintf("%s: %s", f.Code, msg)
	}
	return string(f.Code)
}

// Suggestion returns the recovery suggestion carried in the details.
func (f *Failure) Suggestion() string {
	s, _ := f.Details[KeyRecoverySuggestion].(string)
	return s
}

// ErrorMap builds the details map of a failure.
func ErrorMap(description, suggestion string, underlying error) map[string]any {
	m := map[string]any{
		KeyMessage:            description,
		KeyRecoverySuggestion: suggestion,
	}
	if underlying != nil {
		m[KeyUnderlyingError] = underlying.Error()
	}
	return m
}

// Post wraps details into a failure tagged with code.
func Post(code Code, details map[string]any) *Failure {
	return &Failure{Code: code, Message: code.Message(), Details: details}
}

// FromAPIError converts err into a failure. Recognized errors keep their
// description and suggestion; anything else is described by its message.
func FromAPIError(code Code, err error) *Failure {
	var ae *Error
	if errors.As(err, &ae) {
		return Post(code, ErrorMap(ae.Description, ae.RecoverySuggestion, ae.Err))
	}
	suggestion := defaultSuggestion
	var s Suggester
	if errors.As(err, &s) {
		suggestion = s.RecoverySuggestion()
	}
	return Post(code, ErrorMap(err.Error(), suggestion, errors.Unwrap(err)))
}

// FromUnrecognized converts an error of unknown shape into a failure that
// points the caller at the logs.
func FromUnrecognized(code Code, err error) *Failure {
	return Post(code, ErrorMap(err.Error()+unrecognizedSuffix, seeLogsSuggestion, nil))
}

// FromGraphQLErrors builds a failure from a server error list. Partial data
// is kept under the data key when present.
func FromGraphQLErrors(code Code, errs gqlerror.List, data string) *Failure {
	description := "GraphQL response contained errors"
	if len(errs) > 0 {
		description = errs.Error()
	}
	details := ErrorMap(description, graphQLErrorSuggestion, nil)
	details[KeyErrors] = SerializeErrors(errs)
	if data != "" {
		details[KeyData] = data
	}
	return Post(code, details)
}

// SerializeErrors renders errs in the GraphQL response error shape.
func SerializeErrors(errs gqlerror.List) []any {
	out := make([]any, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		m := map[string]any{"message": e.Message}
		if len(e.Locations) > 0 {
			locs := make([]any, len(e.Locations))
			for i, l := range e.Locations {
				locs[i] = map[string]any{"line": l.Line, "column": l.Column}
			}
			m["locations"] = locs
		}
		if len(e.Path) > 0 {
			path := make([]any, len(e.Path))
			for i, pe := range e.Path {
				switch v := pe.(type) {
				case ast.PathName:
					path[i] = string(v)
				case ast.PathIndex:
					path[i] = int(v)
				default:
					path[i] = fmt.Sprint(v)
				}
			}
			m["path"] = path
		}
		if len(e.Extensions) > 0 {
			m["extensions"] = e.Extensions
		}
		out = append(out, m)
	}
	return out
}
