package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var _ store.Comments = (*Store)(nil)

var commentColumns = []string{"id", "author_id", "story_id", "parent_id", "body", "inserted_at"}

func scanComment(scan func(dest ...interface{}) error) (*model.Comment, error) {
	var c model.Comment
	err := scan(&c.ID, &c.AuthorID, &c.StoryID, &c.ParentID, &c.Body, &c.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CommentByID(ctx context.Context, id int64) (*model.Comment, error) {
	query, args, err := psql.Select(commentColumns...).From("comments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanComment(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CreateComment(ctx context.Context, input store.NewComment) (*model.Comment, error) {
	if input.Body == "" {
		return nil, store.Invalid("body", "can't be blank")
	}
	if input.ParentID != nil {
		parent, err := s.CommentByID(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.StoryID != input.StoryID {
			return nil, store.Invalid("parent", "does not belong to the story")
		}
	}

	query, args, err := psql.Insert("comments").
		Columns("author_id", "story_id", "parent_id", "body", "inserted_at").
		Values(input.AuthorID, input.StoryID, input.ParentID, input.Body, s.now()).
		Suffix("RETURNING " + strings.Join(commentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanComment(s.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, wrapError(err)
	}
	return c, nil
}

func (s *Store) UpdateComment(ctx context.Context, id int64, body string) (*model.Comment, error) {
	if body == "" {
		return nil, store.Invalid("body", "can't be blank")
	}
	query, args, err := psql.Update("comments").
		Set("body", body).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(commentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanComment(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) StoryComments(ctx context.Context, storyID int64) pagination.Source {
	return s.commentSource(sq.Eq{"story_id": storyID, "parent_id": nil})
}

func (s *Store) Replies(ctx context.Context, commentID int64) pagination.Source {
	return s.commentSource(sq.Eq{"parent_id": commentID})
}

// commentSource lists comments, skipping those whose author has been
// deactivated.
func (s *Store) commentSource(pred sq.Sqlizer) pagination.Source {
	active := sq.Expr("EXISTS (SELECT 1 FROM users au WHERE au.id = comments.author_id AND au.deactivated_at IS NULL)")
	return &sqlSource{
		db:     s.db,
		sel:    psql.Select(commentColumns...).From("comments").Where(pred).Where(active),
		count:  psql.Select("COUNT(*)").From("comments").Where(pred).Where(active),
		keyCol: "id",
		scan: func(rows *sql.Rows) (pagination.Row, error) {
			c, err := scanComment(rows.Scan)
			if err != nil {
				return pagination.Row{}, err
			}
			return pagination.Row{Node: c, Key: c.ID}, nil
		},
	}
}
