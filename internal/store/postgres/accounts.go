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

var _ store.Accounts = (*Store)(nil)

var userColumns = []string{"id", "username", "email", "name", "bio", "website", "is_admin", "deactivated_at", "inserted_at"}

func scanUser(scan func(dest ...interface{}) error) (*model.User, error) {
	var u model.User
	err := scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.Bio, &u.Website, &u.IsAdmin, &u.DeactivatedAt, &u.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) userBy(ctx context.Context, pred sq.Sqlizer) (*model.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(pred).ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, input store.NewUser) (*model.User, error) {
	if input.Username == "" {
		return nil, store.Invalid("username", "can't be blank")
	}
	if input.Email == "" {
		return nil, store.Invalid("email", "can't be blank")
	}

	query, args, err := psql.Insert("users").
		Columns("username", "email", "name", "inserted_at").
		Values(input.Username, input.Email, input.Name, s.now()).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, wrapError(err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userBy(ctx, sq.Eq{"id": id})
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.userBy(ctx, sq.Eq{"username": username})
}

func (s *Store) Users(ctx context.Context) pagination.Source {
	active := sq.Eq{"deactivated_at": nil}
	return &sqlSource{
		db:     s.db,
		sel:    psql.Select(userColumns...).From("users").Where(active),
		count:  psql.Select("COUNT(*)").From("users").Where(active),
		keyCol: "id",
		scan: func(rows *sql.Rows) (pagination.Row, error) {
			u, err := scanUser(rows.Scan)
			if err != nil {
				return pagination.Row{}, err
			}
			return pagination.Row{Node: u, Key: u.ID}, nil
		},
	}
}

func (s *Store) UpdateUser(ctx context.Context, id int64, changes store.UserChanges) (*model.User, error) {
	qb := psql.Update("users").Where(sq.Eq{"id": id})
	touched := false
	if changes.Username != nil {
		if *changes.Username == "" {
			return nil, store.Invalid("username", "can't be blank")
		}
		qb = qb.Set("username", *changes.Username)
		touched = true
	}
	if changes.Name != nil {
		qb = qb.Set("name", *changes.Name)
		touched = true
	}
	if changes.Bio != nil {
		qb = qb.Set("bio", *changes.Bio)
		touched = true
	}
	if changes.Website != nil {
		qb = qb.Set("website", *changes.Website)
		touched = true
	}
	if !touched {
		return s.UserByID(ctx, id)
	}

	query, args, err := qb.Suffix("RETURNING " + strings.Join(userColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(err)
	}
	return u, nil
}

func (s *Store) DeactivateUser(ctx context.Context, id int64, at time.Time) (*model.User, error) {
	query, args, err := psql.Update("users").
		Set("deactivated_at", at.UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) ReactivateUser(ctx context.Context, id int64) error {
	return s.exec(ctx, psql.Update("users").Set("deactivated_at", nil).Where(sq.Eq{"id": id}))
}

// DeleteUser relies on the ON DELETE CASCADE references for stories,
// comments, memberships and the rest; follows and the polymorphic rows
// pointing back at the user are swept explicitly.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if err := s.exec(ctx, psql.Delete("follows").Where(sq.Eq{
		"target_type": model.NodeTypeUser,
		"target_id":   id,
	})); err != nil {
		return err
	}
	return s.exec(ctx, psql.Delete("users").Where(sq.Eq{"id": id}))
}
