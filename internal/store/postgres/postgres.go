// Package postgres is the durable store. Queries are built with squirrel
// over database/sql on the pgx driver; list methods hand back SQL-windowed
// sources for the pagination engine, so pages and counts are computed in
// the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(ctx context.Context, uri string) (*Store, error) {
	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Contexts exposes the store as the bundle of domain-context interfaces.
func (s *Store) Contexts() *store.Store {
	return &store.Store{
		Accounts:      s,
		Stories:       s,
		Publications:  s,
		Comments:      s,
		Stars:         s,
		Bookmarks:     s,
		Follows:       s,
		Tags:          s,
		Notifications: s,
		Collections:   s,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// wrapError maps constraint violations onto the validation vocabulary the
// resolution layer surfaces to clients.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		switch pgErr.ConstraintName {
		case "users_username_key":
			return store.Invalid("username", "has already been taken")
		case "users_email_key":
			return store.Invalid("email", "has already been taken")
		case "publications_name_key":
			return store.Invalid("name", "has already been taken")
		case "tags_title_key":
			return store.Invalid("title", "has already been taken")
		case "publication_memberships_publication_id_member_id_key":
			return store.Invalid("member", "is already a member")
		}
	case foreignKeyViolation:
		switch pgErr.ConstraintName {
		case "stories_author_id_fkey", "comments_author_id_fkey", "collections_author_id_fkey":
			return store.Invalid("author", "does not exist")
		case "stories_publication_id_fkey", "publication_memberships_publication_id_fkey", "publication_invitations_publication_id_fkey":
			return store.Invalid("publication", "does not exist")
		case "stories_collection_id_fkey":
			return store.Invalid("collection", "does not exist")
		case "comments_story_id_fkey":
			return store.Invalid("story", "does not exist")
		case "publication_memberships_member_id_fkey":
			return store.Invalid("member", "does not exist")
		case "publication_invitations_invitee_id_fkey":
			return store.Invalid("invitee", "does not exist")
		case "notifications_user_id_fkey":
			return store.Invalid("user", "does not exist")
		}
	}
	return err
}

// scanFunc turns one result row into a pagination row.
type scanFunc func(rows *sql.Rows) (pagination.Row, error)

// sqlSource is the database-backed pagination source. rows must be selected
// with the key column included; the window clauses and ordering are applied
// here.
type sqlSource struct {
	db     *sql.DB
	sel    sq.SelectBuilder
	count  sq.SelectBuilder
	keyCol string
	scan   scanFunc
}

var _ pagination.Source = (*sqlSource)(nil)

func (s *sqlSource) Page(ctx context.Context, w pagination.Window) ([]pagination.Row, error) {
	qb := s.sel
	if w.AfterKey != nil {
		qb = qb.Where(sq.Gt{s.keyCol: *w.AfterKey})
	}
	if w.BeforeKey != nil {
		qb = qb.Where(sq.Lt{s.keyCol: *w.BeforeKey})
	}
	// trailing windows are fetched descending and flipped back below
	if w.FromEnd {
		qb = qb.OrderBy(s.keyCol + " DESC")
	} else {
		qb = qb.OrderBy(s.keyCol + " ASC")
	}
	if w.Limit >= 0 {
		qb = qb.Limit(uint64(w.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pagination.Row
	for rows.Next() {
		row, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if w.FromEnd {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *sqlSource) TotalCount(ctx context.Context) (int, error) {
	query, args, err := s.count.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// emptySource stands in when a filter can never match.
type emptySource struct{}

func (emptySource) Page(context.Context, pagination.Window) ([]pagination.Row, error) {
	return nil, nil
}

func (emptySource) TotalCount(context.Context) (int, error) {
	return 0, nil
}

// nodeByRef materializes the entity a polymorphic association row points
// at. Absent targets yield nil so dangling rows degrade to skipped edges.
func (s *Store) nodeByRef(ctx context.Context, ref model.Ref) (interface{}, error) {
	switch ref.Type {
	case model.NodeTypeUser:
		u, err := s.UserByID(ctx, ref.ID)
		if err != nil || u == nil || !u.Active() {
			return nil, err
		}
		return u, nil
	case model.NodeTypeStory:
		st, err := s.StoryByID(ctx, ref.ID)
		if err != nil || st == nil {
			return nil, err
		}
		return st, nil
	case model.NodeTypeComment:
		c, err := s.CommentByID(ctx, ref.ID)
		if err != nil || c == nil {
			return nil, err
		}
		return c, nil
	case model.NodeTypePublication:
		p, err := s.PublicationByID(ctx, ref.ID)
		if err != nil || p == nil {
			return nil, err
		}
		return p, nil
	}
	return nil, nil
}

// getRow runs a single-row select and reports absence as (found=false, nil
// error), matching the store-wide convention.
func (s *Store) getRow(ctx context.Context, qb sq.SelectBuilder, dest ...interface{}) (bool, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return false, err
	}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) exec(ctx context.Context, qb sq.Sqlizer) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return wrapError(err)
}
