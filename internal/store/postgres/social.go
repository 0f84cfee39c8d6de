package postgres

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var (
	_ store.Stars     = (*Store)(nil)
	_ store.Bookmarks = (*Store)(nil)
	_ store.Follows   = (*Store)(nil)
)

func targetPred(target model.Ref) sq.Eq {
	return sq.Eq{"target_type": target.Type, "target_id": target.ID}
}

func (s *Store) Star(ctx context.Context, userID int64, target model.Ref) error {
	return s.insertAssociation(ctx, "stars", "user_id", userID, target)
}

func (s *Store) Unstar(ctx context.Context, userID int64, target model.Ref) error {
	return s.exec(ctx, psql.Delete("stars").Where(sq.Eq{"user_id": userID}).Where(targetPred(target)))
}

func (s *Store) HasStarred(ctx context.Context, userID int64, target model.Ref) (bool, error) {
	return s.associationExists(ctx, "stars", "user_id", userID, target)
}

func (s *Store) Stargazers(ctx context.Context, target model.Ref) pagination.Source {
	return s.userAssociationSource("stars", "user_id", targetPred(target))
}

func (s *Store) Bookmark(ctx context.Context, userID int64, target model.Ref) error {
	return s.insertAssociation(ctx, "bookmarks", "user_id", userID, target)
}

func (s *Store) RemoveBookmark(ctx context.Context, userID int64, target model.Ref) error {
	return s.exec(ctx, psql.Delete("bookmarks").Where(sq.Eq{"user_id": userID}).Where(targetPred(target)))
}

func (s *Store) HasBookmarked(ctx context.Context, userID int64, target model.Ref) (bool, error) {
	return s.associationExists(ctx, "bookmarks", "user_id", userID, target)
}

func (s *Store) BookmarksOf(ctx context.Context, userID int64) pagination.Source {
	return s.refSource("bookmarks", sq.Eq{"user_id": userID})
}

func (s *Store) Follow(ctx context.Context, followerID int64, target model.Ref) error {
	return s.insertAssociation(ctx, "follows", "follower_id", followerID, target)
}

func (s *Store) Unfollow(ctx context.Context, followerID int64, target model.Ref) error {
	return s.exec(ctx, psql.Delete("follows").Where(sq.Eq{"follower_id": followerID}).Where(targetPred(target)))
}

func (s *Store) IsFollowing(ctx context.Context, followerID int64, target model.Ref) (bool, error) {
	return s.associationExists(ctx, "follows", "follower_id", followerID, target)
}

func (s *Store) FollowersOf(ctx context.Context, target model.Ref) pagination.Source {
	return s.userAssociationSource("follows", "follower_id", targetPred(target))
}

func (s *Store) FolloweesOf(ctx context.Context, followerID int64) pagination.Source {
	return s.refSource("follows", sq.Eq{"follower_id": followerID})
}

// insertAssociation records one (user, target) row; the unique constraint
// makes it idempotent.
func (s *Store) insertAssociation(ctx context.Context, table, userCol string, userID int64, target model.Ref) error {
	return s.exec(ctx, psql.Insert(table).
		Columns(userCol, "target_type", "target_id", "inserted_at").
		Values(userID, target.Type, target.ID, s.now()).
		Suffix("ON CONFLICT DO NOTHING"))
}

func (s *Store) associationExists(ctx context.Context, table, userCol string, userID int64, target model.Ref) (bool, error) {
	var one int
	return s.getRow(ctx, psql.Select("1").From(table).
		Where(sq.Eq{userCol: userID}).Where(targetPred(target)), &one)
}

// userAssociationSource pages the active users behind an association table,
// carrying the association time as edge data.
func (s *Store) userAssociationSource(table, userCol string, pred sq.Sqlizer) pagination.Source {
	cols := append([]string{"a.id AS row_id", "a.inserted_at AS associated_at"}, prefixed("u", userColumns)...)
	base := sq.And{pred, sq.Eq{"u.deactivated_at": nil}}
	from := table + " a"
	join := "users u ON u.id = a." + userCol
	return &sqlSource{
		db:     s.db,
		sel:    psql.Select(cols...).From(from).Join(join).Where(base),
		count:  psql.Select("COUNT(*)").From(from).Join(join).Where(base),
		keyCol: "a.id",
		scan: func(rows *sql.Rows) (pagination.Row, error) {
			var row pagination.Row
			var u model.User
			err := rows.Scan(&row.Key, &row.At,
				&u.ID, &u.Username, &u.Email, &u.Name, &u.Bio, &u.Website, &u.IsAdmin, &u.DeactivatedAt, &u.InsertedAt)
			if err != nil {
				return pagination.Row{}, err
			}
			row.Node = &u
			return row, nil
		},
	}
}

// refSource pages an association table whose targets are polymorphic,
// materializing each node per row. Rows whose target has gone away come
// back as skipped edges.
type refSource struct {
	store *Store
	table string
	pred  sq.Sqlizer
}

func (s *Store) refSource(table string, pred sq.Sqlizer) pagination.Source {
	return &refSource{store: s, table: table, pred: pred}
}

func (r *refSource) Page(ctx context.Context, w pagination.Window) ([]pagination.Row, error) {
	qb := psql.Select("id", "target_type", "target_id", "inserted_at").
		From(r.table).Where(r.pred)
	if w.AfterKey != nil {
		qb = qb.Where(sq.Gt{"id": *w.AfterKey})
	}
	if w.BeforeKey != nil {
		qb = qb.Where(sq.Lt{"id": *w.BeforeKey})
	}
	if w.FromEnd {
		qb = qb.OrderBy("id DESC")
	} else {
		qb = qb.OrderBy("id ASC")
	}
	if w.Limit >= 0 {
		qb = qb.Limit(uint64(w.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type assoc struct {
		row pagination.Row
		ref model.Ref
	}
	var assocs []assoc
	for rows.Next() {
		var a assoc
		if err := rows.Scan(&a.row.Key, &a.ref.Type, &a.ref.ID, &a.row.At); err != nil {
			return nil, err
		}
		assocs = append(assocs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []pagination.Row
	for _, a := range assocs {
		node, err := r.store.nodeByRef(ctx, a.ref)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		a.row.Node = node
		out = append(out, a.row)
	}
	if w.FromEnd {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (r *refSource) TotalCount(ctx context.Context) (int, error) {
	var n int
	_, err := r.store.getRow(ctx, psql.Select("COUNT(*)").From(r.table).Where(r.pred), &n)
	return n, err
}
