package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type (
	QueryDocument       = ast.QueryDocument
	OperationDefinition = ast.OperationDefinition
	Schema              = ast.Schema
	Position            = ast.Position
)

type Operation = ast.Operation

// Error and ErrorList are the GraphQL error shapes shared by parsing,
// validation, and backend responses.
type (
	Error     = gqlerror.Error
	ErrorList = gqlerror.List
)

const (
	Query        Operation = ast.Query
	Mutation     Operation = ast.Mutation
	Subscription Operation = ast.Subscription
)
