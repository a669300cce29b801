package request

import (
	apierror "github.com/hanpama/gqlbridge/internal/apierror"
	language "github.com/hanpama/gqlbridge/internal/language"
)

// Parser turns call arguments into a Request.
type Parser struct {
	schema *language.Schema
}

type Option func(*Parser)

// WithSchema validates every document against sch in addition to the
// syntax check.
func WithSchema(sch *language.Schema) Option { return func(p *Parser) { p.schema = sch } }

func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, f := range opts {
		f(p)
	}
	return p
}

// Parse extracts the document, variables, and cancel token from args.
func (p *Parser) Parse(args map[string]any) (Request, error) {
	doc, err := ExtractDocument(args)
	if err != nil {
		return Request{}, err
	}
	if p.schema != nil {
		if _, err := language.ValidateQuery(p.schema, doc); err != nil {
			return Request{}, apierror.Wrap(err,
				"The graphQL document does not match the schema: "+language.Describe(err),
				"Check the fields and arguments used by the document against the schema",
			)
		}
	}
	vars, err := ExtractVariables(args)
	if err != nil {
		return Request{}, err
	}
	token, err := ExtractCancelToken(args)
	if err != nil {
		return Request{}, err
	}
	return Request{Document: doc, Variables: vars, CancelToken: token}, nil
}
