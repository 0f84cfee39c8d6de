// Package graph ties the schema document, the executor and the resolver
// registry together into a gqlgen ExecutableSchema that the HTTP handler
// can serve.
package graph

import (
	"context"
	_ "embed"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/parallel588/margaret/internal/execute"
)

//go:embed schema.graphql
var schemaSDL string

// MustSchema parses and validates the embedded schema document. The SDL
// is compiled into the binary, so failure here is a programming error.
func MustSchema() *ast.Schema {
	schemaDoc, gErr := parser.ParseSchemas(
		validator.Prelude,
		&ast.Source{
			Name:  "schema.graphql",
			Input: schemaSDL,
		},
	)
	if gErr != nil {
		panic(gErr)
	}
	schema, gErr := validator.ValidateSchemaDocument(schemaDoc)
	if gErr != nil {
		panic(gErr)
	}
	return schema
}

var _ graphql.ExecutableSchema = (*executableSchema)(nil)

type executableSchema struct {
	schema        *ast.Schema
	fieldResolver execute.FieldResolver
	typeResolver  execute.TypeResolver
}

func NewExecutableSchema(fieldResolver execute.FieldResolver, typeResolver execute.TypeResolver) graphql.ExecutableSchema {
	return &executableSchema{
		schema:        MustSchema(),
		fieldResolver: fieldResolver,
		typeResolver:  typeResolver,
	}
}

func (es *executableSchema) Schema() *ast.Schema {
	return es.schema
}

func (es *executableSchema) Complexity(typeName, fieldName string, childComplexity int, args map[string]interface{}) (int, bool) {
	return 0, false
}

func (es *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	oc := graphql.GetOperationContext(ctx)

	resp := execute.Execute(ctx, &execute.ExecutionArgs{
		Schema:         es.schema,
		Operation:      oc.Operation,
		VariableValues: oc.Variables,
		FieldResolver:  es.fieldResolver,
		TypeResolver:   es.typeResolver,
	})

	return func(ctx context.Context) *graphql.Response {
		return resp
	}
}

// CreateOperationContext parses and validates a query outside the HTTP
// handler stack. Tests and tooling use it to run operations directly.
func CreateOperationContext(ctx context.Context, schema *ast.Schema, query string, variables map[string]interface{}) (*graphql.OperationContext, gqlerror.List) {
	queryDoc, gErr := parser.ParseQuery(&ast.Source{
		Input:   query,
		BuiltIn: false,
	})
	if gErr != nil {
		return nil, gqlerror.List{gqlerror.WrapIfUnwrapped(gErr)}
	}
	gErrs := validator.Validate(schema, queryDoc)
	if len(gErrs) != 0 {
		return nil, gErrs
	}

	oc := &graphql.OperationContext{
		RawQuery:             query,
		Variables:            variables,
		OperationName:        "",
		Doc:                  queryDoc,
		Operation:            queryDoc.Operations[0],
		DisableIntrospection: false,
		RecoverFunc:          graphql.DefaultRecover,
		ResolverMiddleware: func(ctx context.Context, next graphql.Resolver) (res interface{}, err error) {
			return next(ctx)
		},
		Stats: graphql.Stats{},
	}

	return oc, nil
}

// Execute runs a single operation against the executable schema without
// going through the HTTP transport.
func Execute(ctx context.Context, es graphql.ExecutableSchema, query string, variables map[string]interface{}) *graphql.Response {
	oc, gErrs := CreateOperationContext(ctx, es.Schema(), query, variables)
	if len(gErrs) != 0 {
		return &graphql.Response{Errors: gErrs}
	}
	ctx = graphql.WithOperationContext(ctx, oc)
	ctx = graphql.WithResponseContext(ctx, graphql.DefaultErrorPresenter, graphql.DefaultRecover)

	rh := es.Exec(ctx)
	resp := rh(ctx)
	if gErrs := graphql.GetErrors(ctx); gErrs != nil {
		resp.Errors = gErrs
	}
	return resp
}
