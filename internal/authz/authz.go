// Package authz evaluates viewer-based authorization. Every decision is a
// pure function of (viewer, entity, action) computed fresh per call; nothing
// is cached across fields or requests, so state changes between sibling
// fields are always observed.
package authz

import (
	"context"
	"time"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/store"
)

type Authorizer struct {
	accounts     store.Accounts
	publications store.Publications
	now          func() time.Time
}

func New(accounts store.Accounts, publications store.Publications) *Authorizer {
	return &Authorizer{accounts: accounts, publications: publications, now: time.Now}
}

// CanSeeStory reports whether the story is visible to the viewer: published
// stories are, drafts only to their author and to admins of the publication
// they are slotted into. A deactivated author takes their stories with
// them, and members-audience stories require an authenticated viewer.
func (a *Authorizer) CanSeeStory(ctx context.Context, v *model.User, story *model.Story) (bool, error) {
	if v != nil && story.AuthorID == v.ID {
		return true, nil
	}
	active, err := a.userActive(ctx, story.AuthorID)
	if err != nil || !active {
		return false, err
	}
	if story.Published(a.now()) {
		if story.Audience == model.AudienceMembers && v == nil {
			return false, nil
		}
		return true, nil
	}
	if v == nil {
		return false, nil
	}
	if story.PublicationID != nil {
		return a.hasRole(ctx, *story.PublicationID, v, model.RoleAdmin)
	}
	return false, nil
}

// CanSeeComment defers to the visibility of the story it hangs off, and
// hides comments whose author has been deactivated.
func (a *Authorizer) CanSeeComment(ctx context.Context, v *model.User, comment *model.Comment, story *model.Story) (bool, error) {
	if story == nil {
		return false, nil
	}
	if v == nil || comment.AuthorID != v.ID {
		active, err := a.userActive(ctx, comment.AuthorID)
		if err != nil || !active {
			return false, err
		}
	}
	return a.CanSeeStory(ctx, v, story)
}

// CanSeeInvitations restricts a publication's invitation list to its admins.
func (a *Authorizer) CanSeeInvitations(ctx context.Context, v *model.User, publicationID int64) (bool, error) {
	if v == nil {
		return false, nil
	}
	return a.hasRole(ctx, publicationID, v, model.RoleAdmin)
}

// CanSeeInvitation additionally admits the invitee themselves. An invitation
// whose invitee or inviter has been deactivated is hidden from everyone else.
func (a *Authorizer) CanSeeInvitation(ctx context.Context, v *model.User, inv *model.PublicationInvitation) (bool, error) {
	if v == nil {
		return false, nil
	}
	if inv.InviteeID == v.ID {
		return true, nil
	}
	for _, id := range []int64{inv.InviteeID, inv.InviterID} {
		active, err := a.userActive(ctx, id)
		if err != nil || !active {
			return false, err
		}
	}
	return a.hasRole(ctx, inv.PublicationID, v, model.RoleAdmin)
}

// Capability predicates: true for any authenticated viewer. The entity's own
// policy may narrow these at the call site.

func (a *Authorizer) ViewerCanStar(v *model.User) bool     { return v != nil }
func (a *Authorizer) ViewerCanComment(v *model.User) bool  { return v != nil }
func (a *Authorizer) ViewerCanBookmark(v *model.User) bool { return v != nil }
func (a *Authorizer) ViewerCanFollow(v *model.User) bool   { return v != nil }

// CanAdminister reports whether the viewer holds at least the admin role in
// the publication.
func (a *Authorizer) CanAdminister(ctx context.Context, v *model.User, publicationID int64) (bool, error) {
	if v == nil {
		return false, nil
	}
	return a.hasRole(ctx, publicationID, v, model.RoleAdmin)
}

// RequireAuthor guards mutations on entities owned by a single author. The
// existence check happens at the call site, before this comparison, so a
// missing entity surfaces as NotFound rather than revealing permissions.
func RequireAuthor(v *model.User, authorID int64) error {
	if v == nil {
		return gqlerrors.Unauthenticated()
	}
	if v.ID != authorID {
		return gqlerrors.Unauthorized()
	}
	return nil
}

// RequireAdmin guards publication-scoped mutations.
func (a *Authorizer) RequireAdmin(ctx context.Context, v *model.User, publicationID int64) error {
	if v == nil {
		return gqlerrors.Unauthenticated()
	}
	ok, err := a.hasRole(ctx, publicationID, v, model.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return gqlerrors.Unauthorized()
	}
	return nil
}

func (a *Authorizer) userActive(ctx context.Context, id int64) (bool, error) {
	u, err := a.accounts.UserByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u != nil && u.Active(), nil
}

func (a *Authorizer) hasRole(ctx context.Context, publicationID int64, v *model.User, min model.PublicationRole) (bool, error) {
	m, err := a.publications.MembershipOf(ctx, publicationID, v.ID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Role.AtLeast(min), nil
}
