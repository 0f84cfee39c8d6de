package resolver

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
)

func (r *Resolver) resolvePublication(ctx context.Context, field string, p *model.Publication, args map[string]interface{}) (interface{}, error) {
	v := r.viewerOf(ctx)
	ref := model.Ref{Type: model.NodeTypePublication, ID: p.ID}

	switch field {
	case "stories":
		return r.connection(ctx, r.store.Stories.StoriesUnderPublication(ctx, p.ID, r.storyFilter(v)), args)

	case "members":
		return r.connection(ctx, r.store.Publications.Members(ctx, p.ID), args)

	case "invitations":
		// hidden, not denied: non-admins get null without an error
		ok, err := r.authz.CanSeeInvitations(ctx, v, p.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return r.connection(ctx, r.store.Publications.Invitations(ctx, p.ID), args)

	case "membershipRole":
		if v == nil {
			return nil, nil
		}
		m, err := r.store.Publications.MembershipOf(ctx, p.ID, v.ID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, nil
		}
		return enumOut(string(m.Role)), nil

	case "followers":
		return r.connection(ctx, r.store.Follows.FollowersOf(ctx, ref), args)

	case "viewerCanFollow":
		return r.authz.ViewerCanFollow(v), nil

	case "viewerIsFollowing":
		if v == nil {
			return false, nil
		}
		return r.store.Follows.IsFollowing(ctx, v.ID, ref)

	case "viewerCanAdminister":
		return r.authz.CanAdminister(ctx, v, p.ID)
	}

	return reflectField(p, field)
}

func (r *Resolver) resolveInvitation(ctx context.Context, field string, inv *model.PublicationInvitation, args map[string]interface{}) (interface{}, error) {
	switch field {
	case "publication":
		return r.store.Publications.PublicationByID(ctx, inv.PublicationID)
	case "invitee":
		return r.userRef(ctx, inv.InviteeID)
	case "inviter":
		return r.userRef(ctx, inv.InviterID)
	case "role":
		return enumOut(string(inv.Role)), nil
	case "status":
		return enumOut(string(inv.Status)), nil
	}
	return reflectField(inv, field)
}
