package language

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates an SDL document, merging in the built-in
// scalars and directives.
func LoadSchema(name, source string) (*Schema, error) {
	sch, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// ValidateQuery parses source and validates it against sch.
func ValidateQuery(sch *Schema, source string) (*QueryDocument, error) {
	doc, errs := gqlparser.LoadQuery(sch, source)
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// OperationTypes lists the operation type of every operation in doc, in
// document order.
func OperationTypes(doc *QueryDocument) []Operation {
	out := make([]Operation, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		out = append(out, op.Operation)
	}
	return out
}

// FirstError returns the first located GraphQL error carried by err, if any.
func FirstError(err error) (*Error, bool) {
	var list ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return list[0], true
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Describe renders err with its source position when one is known.
func Describe(err error) string {
	ge, ok := FirstError(err)
	if !ok {
		return err.Error()
	}
	if len(ge.Locations) > 0 {
		loc := ge.Locations[0]
		return fmt.Sprintf("%s (line %d, column %d)", ge.Message, loc.Line, loc.Column)
	}
	return ge.Message
}
