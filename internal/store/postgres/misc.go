package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var (
	_ store.Tags          = (*Store)(nil)
	_ store.Notifications = (*Store)(nil)
	_ store.Collections   = (*Store)(nil)
)

var (
	notificationColumns = []string{"id", "user_id", "actor_id", "action", "target_type", "target_id", "read_at", "inserted_at"}
	collectionColumns   = []string{"id", "author_id", "title", "slug", "description", "inserted_at"}
)

func (s *Store) TagByID(ctx context.Context, id int64) (*model.Tag, error) {
	return s.tagBy(ctx, sq.Eq{"id": id})
}

func (s *Store) TagByTitle(ctx context.Context, title string) (*model.Tag, error) {
	return s.tagBy(ctx, sq.Eq{"title": title})
}

func (s *Store) tagBy(ctx context.Context, pred sq.Sqlizer) (*model.Tag, error) {
	var t model.Tag
	found, err := s.getRow(ctx,
		psql.Select("id", "title", "inserted_at").From("tags").Where(pred),
		&t.ID, &t.Title, &t.InsertedAt)
	if err != nil || !found {
		return nil, err
	}
	return &t, nil
}

func scanNotification(scan func(dest ...interface{}) error) (*model.Notification, error) {
	var n model.Notification
	err := scan(&n.ID, &n.UserID, &n.ActorID, &n.Action, &n.Target.Type, &n.Target.ID, &n.ReadAt, &n.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) NotificationByID(ctx context.Context, id int64) (*model.Notification, error) {
	query, args, err := psql.Select(notificationColumns...).From("notifications").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Store) NotificationsOf(ctx context.Context, userID int64) pagination.Source {
	pred := sq.Eq{"user_id": userID}
	return &sqlSource{
		db:     s.db,
		sel:    psql.Select(notificationColumns...).From("notifications").Where(pred),
		count:  psql.Select("COUNT(*)").From("notifications").Where(pred),
		keyCol: "id",
		scan: func(rows *sql.Rows) (pagination.Row, error) {
			n, err := scanNotification(rows.Scan)
			if err != nil {
				return pagination.Row{}, err
			}
			return pagination.Row{Node: n, Key: n.ID}, nil
		},
	}
}

func (s *Store) Notify(ctx context.Context, input store.NewNotification) (*model.Notification, error) {
	query, args, err := psql.Insert("notifications").
		Columns("user_id", "actor_id", "action", "target_type", "target_id", "inserted_at").
		Values(input.UserID, input.ActorID, input.Action, input.Target.Type, input.Target.ID, s.now()).
		Suffix("RETURNING " + strings.Join(notificationColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, wrapError(err)
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, id int64, at time.Time) (*model.Notification, error) {
	query, args, err := psql.Update("notifications").
		Set("read_at", at.UTC()).
		Where(sq.Eq{"id": id, "read_at": nil}).
		Suffix("RETURNING " + strings.Join(notificationColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		// already read, or absent
		return s.NotificationByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func scanCollection(scan func(dest ...interface{}) error) (*model.Collection, error) {
	var c model.Collection
	err := scan(&c.ID, &c.AuthorID, &c.Title, &c.Slug, &c.Description, &c.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) collectionBy(ctx context.Context, pred sq.Sqlizer) (*model.Collection, error) {
	query, args, err := psql.Select(collectionColumns...).From("collections").Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanCollection(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CollectionByID(ctx context.Context, id int64) (*model.Collection, error) {
	return s.collectionBy(ctx, sq.Eq{"id": id})
}

func (s *Store) CollectionBySlug(ctx context.Context, slug string) (*model.Collection, error) {
	hash := store.HashOfSlug(slug)
	return s.collectionBy(ctx, sq.Expr("(slug = ? OR slug LIKE '%-' || ?)", hash, hash))
}

func (s *Store) CreateCollection(ctx context.Context, input store.NewCollection) (*model.Collection, error) {
	if input.Title == "" {
		return nil, store.Invalid("title", "can't be blank")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query, args, err := psql.Insert("collections").
		Columns("author_id", "title", "slug", "description", "inserted_at").
		Values(input.AuthorID, input.Title, "", input.Description, s.now()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, wrapError(err)
	}

	query, args, err = psql.Update("collections").
		Set("slug", store.SlugFor(input.Title, id)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(collectionColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanCollection(tx.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}
