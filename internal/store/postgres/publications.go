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

var _ store.Publications = (*Store)(nil)

var (
	publicationColumns = []string{"id", "name", "display_name", "description", "website", "inserted_at"}
	membershipColumns  = []string{"id", "publication_id", "member_id", "role", "inserted_at"}
	invitationColumns  = []string{"id", "publication_id", "invitee_id", "inviter_id", "role", "status", "inserted_at"}
)

func scanPublication(scan func(dest ...interface{}) error) (*model.Publication, error) {
	var p model.Publication
	err := scan(&p.ID, &p.Name, &p.DisplayName, &p.Description, &p.Website, &p.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanInvitation(scan func(dest ...interface{}) error) (*model.PublicationInvitation, error) {
	var inv model.PublicationInvitation
	err := scan(&inv.ID, &inv.PublicationID, &inv.InviteeID, &inv.InviterID, &inv.Role, &inv.Status, &inv.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) publicationBy(ctx context.Context, pred sq.Sqlizer) (*model.Publication, error) {
	query, args, err := psql.Select(publicationColumns...).From("publications").Where(pred).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPublication(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) PublicationByID(ctx context.Context, id int64) (*model.Publication, error) {
	return s.publicationBy(ctx, sq.Eq{"id": id})
}

func (s *Store) PublicationByName(ctx context.Context, name string) (*model.Publication, error) {
	return s.publicationBy(ctx, sq.Eq{"name": name})
}

func (s *Store) CreatePublication(ctx context.Context, input store.NewPublication) (*model.Publication, error) {
	if input.Name == "" {
		return nil, store.Invalid("name", "can't be blank")
	}
	if store.Slugify(input.Name) != input.Name {
		return nil, store.Invalid("name", "must contain only lowercase letters, digits and dashes")
	}
	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Name
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query, args, err := psql.Insert("publications").
		Columns("name", "display_name", "description", "website", "inserted_at").
		Values(input.Name, displayName, input.Description, input.Website, s.now()).
		Suffix("RETURNING " + strings.Join(publicationColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPublication(tx.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, wrapError(err)
	}

	query, args, err = psql.Insert("publication_memberships").
		Columns("publication_id", "member_id", "role", "inserted_at").
		Values(p.ID, input.OwnerID, model.RoleOwner, s.now()).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		err = wrapError(err)
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			return nil, store.Invalid("owner", "does not exist")
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) MembershipOf(ctx context.Context, publicationID, userID int64) (*model.PublicationMembership, error) {
	var m model.PublicationMembership
	found, err := s.getRow(ctx,
		psql.Select(membershipColumns...).From("publication_memberships").
			Where(sq.Eq{"publication_id": publicationID, "member_id": userID}),
		&m.ID, &m.PublicationID, &m.MemberID, &m.Role, &m.InsertedAt)
	if err != nil || !found {
		return nil, err
	}
	return &m, nil
}

// Members yields the active member users with the membership row id as the
// cursor key and the role and join time as edge data.
func (s *Store) Members(ctx context.Context, publicationID int64) pagination.Source {
	cols := append([]string{"m.id AS row_id", "m.role", "m.inserted_at AS member_since"}, prefixed("u", userColumns)...)
	base := sq.And{
		sq.Eq{"m.publication_id": publicationID},
		sq.Eq{"u.deactivated_at": nil},
	}
	return &sqlSource{
		db: s.db,
		sel: psql.Select(cols...).
			From("publication_memberships m").
			Join("users u ON u.id = m.member_id").
			Where(base),
		count: psql.Select("COUNT(*)").
			From("publication_memberships m").
			Join("users u ON u.id = m.member_id").
			Where(base),
		keyCol: "m.id",
		scan: func(rows *sql.Rows) (pagination.Row, error) {
			var row pagination.Row
			var u model.User
			err := rows.Scan(&row.Key, &row.Role, &row.At,
				&u.ID, &u.Username, &u.Email, &u.Name, &u.Bio, &u.Website, &u.IsAdmin, &u.DeactivatedAt, &u.InsertedAt)
			if err != nil {
				return pagination.Row{}, err
			}
			row.Node = &u
			return row, nil
		},
	}
}

func (s *Store) AddMember(ctx context.Context, publicationID, userID int64, role model.PublicationRole) (*model.PublicationMembership, error) {
	var m model.PublicationMembership
	query, args, err := psql.Insert("publication_memberships").
		Columns("publication_id", "member_id", "role", "inserted_at").
		Values(publicationID, userID, role, s.now()).
		Suffix("RETURNING " + strings.Join(membershipColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&m.ID, &m.PublicationID, &m.MemberID, &m.Role, &m.InsertedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	return &m, nil
}

func (s *Store) RemoveMember(ctx context.Context, publicationID, userID int64) error {
	return s.exec(ctx, psql.Delete("publication_memberships").
		Where(sq.Eq{"publication_id": publicationID, "member_id": userID}))
}

func (s *Store) InvitationByID(ctx context.Context, id int64) (*model.PublicationInvitation, error) {
	query, args, err := psql.Select(invitationColumns...).From("publication_invitations").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) Invitations(ctx context.Context, publicationID int64) pagination.Source {
	pred := sq.Eq{"publication_id": publicationID}
	return &sqlSource{
		db:     s.db,
		sel:    psql.Select(invitationColumns...).From("publication_invitations").Where(pred),
		count:  psql.Select("COUNT(*)").From("publication_invitations").Where(pred),
		keyCol: "id",
		scan: func(rows *sql.Rows) (pagination.Row, error) {
			inv, err := scanInvitation(rows.Scan)
			if err != nil {
				return pagination.Row{}, err
			}
			return pagination.Row{Node: inv, Key: inv.ID}, nil
		},
	}
}

func (s *Store) CreateInvitation(ctx context.Context, input store.NewInvitation) (*model.PublicationInvitation, error) {
	invitee, err := s.UserByID(ctx, input.InviteeID)
	if err != nil {
		return nil, err
	}
	if invitee == nil || !invitee.Active() {
		return nil, store.Invalid("invitee", "does not exist")
	}
	if m, err := s.MembershipOf(ctx, input.PublicationID, input.InviteeID); err != nil {
		return nil, err
	} else if m != nil {
		return nil, store.Invalid("invitee", "is already a member")
	}
	var pending int
	found, err := s.getRow(ctx,
		psql.Select("COUNT(*)").From("publication_invitations").Where(sq.Eq{
			"publication_id": input.PublicationID,
			"invitee_id":     input.InviteeID,
			"status":         model.InvitationPending,
		}), &pending)
	if err != nil {
		return nil, err
	}
	if found && pending > 0 {
		return nil, store.Invalid("invitee", "already has a pending invitation")
	}

	role := input.Role
	if role == "" {
		role = model.RoleWriter
	}
	query, args, err := psql.Insert("publication_invitations").
		Columns("publication_id", "invitee_id", "inviter_id", "role", "status", "inserted_at").
		Values(input.PublicationID, input.InviteeID, input.InviterID, role, model.InvitationPending, s.now()).
		Suffix("RETURNING " + strings.Join(invitationColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, wrapError(err)
	}
	return inv, nil
}

func (s *Store) UpdateInvitationStatus(ctx context.Context, id int64, status model.InvitationStatus) (*model.PublicationInvitation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// settle only a pending row; a later re-read tells absence apart from
	// an already resolved invitation
	query, args, err := psql.Update("publication_invitations").
		Set("status", status).
		Where(sq.Eq{"id": id, "status": model.InvitationPending}).
		Suffix("RETURNING " + strings.Join(invitationColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	inv, err := scanInvitation(tx.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := s.InvitationByID(ctx, id)
		if err != nil || existing == nil {
			return nil, err
		}
		return nil, store.Invalid("invitation", "has already been resolved")
	}
	if err != nil {
		return nil, err
	}

	if status == model.InvitationAccepted {
		query, args, err = psql.Insert("publication_memberships").
			Columns("publication_id", "member_id", "role", "inserted_at").
			Values(inv.PublicationID, inv.InviteeID, inv.Role, s.now()).
			Suffix("ON CONFLICT DO NOTHING").
			ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inv, nil
}

// prefixed qualifies column names with a table alias.
func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
