package pagination

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/relay"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func source(n int) SliceSource {
	rows := make(SliceSource, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, Row{Node: fmt.Sprintf("node-%d", i), Key: int64(i)})
	}
	return rows
}

func nodes(conn *Connection) []string {
	out := make([]string, 0, len(conn.Edges))
	for _, edge := range conn.Edges {
		out = append(out, edge.Node.(string))
	}
	return out
}

func TestPaginateForward(t *testing.T) {
	ctx := context.Background()

	conn, err := Paginate(ctx, source(5), Args{First: intp(2)})
	require.NoError(t, err)

	assert.Equal(t, []string{"node-1", "node-2"}, nodes(conn))
	assert.Equal(t, 5, conn.TotalCount)
	assert.True(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
	require.NotNil(t, conn.PageInfo.EndCursor)

	// resume after the last cursor of the first page
	conn, err = Paginate(ctx, source(5), Args{First: intp(2), After: conn.PageInfo.EndCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"node-3", "node-4"}, nodes(conn))
	assert.True(t, conn.PageInfo.HasNextPage)
	assert.True(t, conn.PageInfo.HasPreviousPage)

	conn, err = Paginate(ctx, source(5), Args{First: intp(2), After: conn.PageInfo.EndCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"node-5"}, nodes(conn))
	assert.False(t, conn.PageInfo.HasNextPage)
}

func TestPaginateBackward(t *testing.T) {
	ctx := context.Background()

	conn, err := Paginate(ctx, source(5), Args{Last: intp(2)})
	require.NoError(t, err)

	// ascending order is preserved even though the window is the tail
	assert.Equal(t, []string{"node-4", "node-5"}, nodes(conn))
	assert.True(t, conn.PageInfo.HasPreviousPage)
	require.NotNil(t, conn.PageInfo.StartCursor)

	conn, err = Paginate(ctx, source(5), Args{Last: intp(2), Before: conn.PageInfo.StartCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"node-2", "node-3"}, nodes(conn))
	assert.True(t, conn.PageInfo.HasPreviousPage)

	conn, err = Paginate(ctx, source(5), Args{Last: intp(2), Before: conn.PageInfo.StartCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1"}, nodes(conn))
	assert.False(t, conn.PageInfo.HasPreviousPage)
}

// Forward and backward windows over the same source partition it without
// gaps or duplicates when they do not overlap.
func TestForwardBackwardPartition(t *testing.T) {
	ctx := context.Background()
	src := source(7)

	head, err := Paginate(ctx, src, Args{First: intp(3)})
	require.NoError(t, err)
	tail, err := Paginate(ctx, src, Args{Last: intp(4)})
	require.NoError(t, err)

	assert.Equal(t, []string{"node-1", "node-2", "node-3"}, nodes(head))
	assert.Equal(t, []string{"node-4", "node-5", "node-6", "node-7"}, nodes(tail))
}

func TestTotalCountIgnoresWindow(t *testing.T) {
	ctx := context.Background()
	src := source(9)

	for _, first := range []int{1, 3, 100} {
		conn, err := Paginate(ctx, src, Args{First: intp(first)})
		require.NoError(t, err)
		assert.Equal(t, 9, conn.TotalCount)
	}
}

func TestPaginateExactWindow(t *testing.T) {
	ctx := context.Background()

	conn, err := Paginate(ctx, source(3), Args{First: intp(3)})
	require.NoError(t, err)
	assert.Len(t, conn.Edges, 3)
	assert.False(t, conn.PageInfo.HasNextPage)
}

func TestPaginateEmptySource(t *testing.T) {
	ctx := context.Background()

	conn, err := Paginate(ctx, SliceSource{}, Args{First: intp(10)})
	require.NoError(t, err)
	assert.Empty(t, conn.Edges)
	assert.Equal(t, 0, conn.TotalCount)
	assert.Nil(t, conn.PageInfo.StartCursor)
	assert.Nil(t, conn.PageInfo.EndCursor)
	assert.False(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
}

func TestPaginateConflictingArguments(t *testing.T) {
	_, err := Paginate(context.Background(), source(3), Args{First: intp(1), Last: intp(1)})
	require.Error(t, err)
	assert.Equal(t, gqlerrors.CodeConflictingPagination, gqlerrors.Code(err))
}

func TestPaginateNegativeLimits(t *testing.T) {
	_, err := Paginate(context.Background(), source(3), Args{First: intp(-1)})
	require.Error(t, err)
	assert.Equal(t, gqlerrors.CodeValidationFailure, gqlerrors.Code(err))

	_, err = Paginate(context.Background(), source(3), Args{Last: intp(-1)})
	require.Error(t, err)
	assert.Equal(t, gqlerrors.CodeValidationFailure, gqlerrors.Code(err))
}

func TestPaginateInvalidCursor(t *testing.T) {
	_, err := Paginate(context.Background(), source(3), Args{First: intp(1), After: strp("garbage")})
	require.Error(t, err)
	assert.Equal(t, gqlerrors.CodeInvalidCursor, gqlerrors.Code(err))
}

// A cursor stays valid when unrelated rows are inserted elsewhere: the key
// it encodes, not the row offset, determines the resume position.
func TestCursorSurvivesUnrelatedInserts(t *testing.T) {
	ctx := context.Background()

	cursor := relay.ToCursor(4)
	grown := append(source(5), Row{Node: "node-6", Key: 6}, Row{Node: "node-7", Key: 7})

	conn, err := Paginate(ctx, grown, Args{First: intp(10), After: &cursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"node-5", "node-6", "node-7"}, nodes(conn))
}
