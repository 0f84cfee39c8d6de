package postgres

import (
	"fmt"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/store"
)

func TestWrapErrorMapsConstraints(t *testing.T) {
	tests := []struct {
		code       string
		constraint string
		field      string
		message    string
	}{
		{"23505", "users_username_key", "username", "has already been taken"},
		{"23505", "users_email_key", "email", "has already been taken"},
		{"23505", "publications_name_key", "name", "has already been taken"},
		{"23503", "stories_author_id_fkey", "author", "does not exist"},
		{"23503", "comments_story_id_fkey", "story", "does not exist"},
		{"23503", "publication_invitations_invitee_id_fkey", "invitee", "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			err := wrapError(&pgconn.PgError{Code: tt.code, ConstraintName: tt.constraint})

			var verr *store.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, []string{tt.message}, verr.Fields[tt.field])
		})
	}
}

func TestWrapErrorPassesThroughUnknownErrors(t *testing.T) {
	err := fmt.Errorf("connection reset")
	assert.Equal(t, err, wrapError(err))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "something_else_key"}
	assert.Equal(t, error(pgErr), wrapError(pgErr))

	assert.NoError(t, wrapError(nil))
}

func TestSourceWindowSQL(t *testing.T) {
	s := &sqlSource{
		sel:    psql.Select("id", "title").From("stories"),
		count:  psql.Select("COUNT(*)").From("stories"),
		keyCol: "id",
	}

	after := int64(7)
	qb := s.sel.Where(sq.Gt{s.keyCol: after}).OrderBy(s.keyCol + " ASC").Limit(3)
	query, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, title FROM stories WHERE id > $1 ORDER BY id ASC LIMIT 3", query)
	assert.Equal(t, []interface{}{after}, args)
}

func TestStorySlugPredicateMatchesHashSuffix(t *testing.T) {
	hash := store.HashOfSlug("how-to-write-go-1zb4f")
	require.Equal(t, "1zb4f", hash)

	query, args, err := psql.Select("id").From("stories").
		Where(sq.Expr("(slug = ? OR slug LIKE '%-' || ?)", hash, hash)).
		ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM stories WHERE (slug = $1 OR slug LIKE '%-' || $2)", query)
	assert.Equal(t, []interface{}{hash, hash}, args)
}

func TestTargetPredicate(t *testing.T) {
	query, args, err := psql.Select("1").From("stars").
		Where(targetPred(model.Ref{Type: model.NodeTypeStory, ID: 42})).
		ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "target_id = $")
	assert.Contains(t, query, "target_type = $")
	assert.ElementsMatch(t, []interface{}{model.NodeTypeStory, int64(42)}, args)
}
