package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/execute"
	"github.com/parallel588/margaret/internal/graph"
)

func TestMustSchemaParsesEmbeddedSDL(t *testing.T) {
	schema := graph.MustSchema()
	require.NotNil(t, schema.Query)
	require.NotNil(t, schema.Mutation)
	assert.NotNil(t, schema.Types["Story"])
	assert.NotNil(t, schema.Types["Node"])
}

// A syntactically broken query must come back as a response-level error
// list, not a panic or a silent nil.
func TestExecuteMalformedQuery(t *testing.T) {
	es := graph.NewExecutableSchema(
		func(ctx context.Context, object string, field string, source interface{}, args map[string]interface{}) (interface{}, error) {
			return nil, nil
		},
		execute.TypeResolver(nil),
	)

	resp := graph.Execute(context.Background(), es, `{ viewer {`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Nil(t, resp.Data)
}
