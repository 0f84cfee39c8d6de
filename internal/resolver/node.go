package resolver

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
)

// resolveNode loads an entity by decoded reference and applies the same
// visibility rules the dedicated lookup fields use. An entity the viewer
// may not see resolves to null, indistinguishable from one that does not
// exist.
func (r *Resolver) resolveNode(ctx context.Context, v *model.User, ref model.Ref) (interface{}, error) {
	switch ref.Type {
	case model.NodeTypeUser:
		u, err := r.store.Accounts.UserByID(ctx, ref.ID)
		if err != nil || u == nil {
			return nil, err
		}
		if !u.Active() {
			return nil, nil
		}
		return u, nil

	case model.NodeTypeStory:
		s, err := r.store.Stories.StoryByID(ctx, ref.ID)
		if err != nil || s == nil {
			return nil, err
		}
		visible, err := r.authz.CanSeeStory(ctx, v, s)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, nil
		}
		return s, nil

	case model.NodeTypeComment:
		c, err := r.store.Comments.CommentByID(ctx, ref.ID)
		if err != nil || c == nil {
			return nil, err
		}
		s, err := r.store.Stories.StoryByID(ctx, c.StoryID)
		if err != nil {
			return nil, err
		}
		visible, err := r.authz.CanSeeComment(ctx, v, c, s)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, nil
		}
		return c, nil

	case model.NodeTypePublication:
		p, err := r.store.Publications.PublicationByID(ctx, ref.ID)
		if err != nil || p == nil {
			return nil, err
		}
		return p, nil

	case model.NodeTypePublicationInvitation:
		inv, err := r.store.Publications.InvitationByID(ctx, ref.ID)
		if err != nil || inv == nil {
			return nil, err
		}
		visible, err := r.authz.CanSeeInvitation(ctx, v, inv)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, nil
		}
		return inv, nil

	case model.NodeTypeCollection:
		c, err := r.store.Collections.CollectionByID(ctx, ref.ID)
		if err != nil || c == nil {
			return nil, err
		}
		return c, nil

	case model.NodeTypeNotification:
		n, err := r.store.Notifications.NotificationByID(ctx, ref.ID)
		if err != nil || n == nil {
			return nil, err
		}
		if v == nil || v.ID != n.UserID {
			return nil, nil
		}
		return n, nil

	case model.NodeTypeTag:
		t, err := r.store.Tags.TagByID(ctx, ref.ID)
		if err != nil || t == nil {
			return nil, err
		}
		return t, nil
	}

	return nil, nil
}
