package resolver

import (
	"context"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/model"
)

func (r *Resolver) resolveUser(ctx context.Context, field string, u *model.User, args map[string]interface{}) (interface{}, error) {
	v := r.viewerOf(ctx)
	self := v != nil && v.ID == u.ID
	ref := model.Ref{Type: model.NodeTypeUser, ID: u.ID}

	switch field {
	case "email":
		if !self {
			return nil, nil
		}
		return u.Email, nil

	case "stories":
		// drafts are listed only when the viewer is looking at themselves
		f := r.storyFilter(v)
		f.Drafts = self
		return r.connection(ctx, r.store.Stories.StoriesByAuthor(ctx, u.ID, f), args)

	case "followers":
		return r.connection(ctx, r.store.Follows.FollowersOf(ctx, ref), args)

	case "followees":
		return r.connection(ctx, r.store.Follows.FolloweesOf(ctx, u.ID), args)

	case "notifications":
		if err := requireSelf(v, u); err != nil {
			return nil, err
		}
		return r.connection(ctx, r.store.Notifications.NotificationsOf(ctx, u.ID), args)

	case "bookmarks":
		if err := requireSelf(v, u); err != nil {
			return nil, err
		}
		return r.connection(ctx, r.store.Bookmarks.BookmarksOf(ctx, u.ID), args)

	case "viewerCanFollow":
		return r.authz.ViewerCanFollow(v) && !self, nil

	case "viewerIsFollowing":
		if v == nil {
			return false, nil
		}
		return r.store.Follows.IsFollowing(ctx, v.ID, ref)
	}

	return reflectField(u, field)
}

// requireSelf guards fields only the account holder may read.
func requireSelf(v, u *model.User) error {
	if v == nil {
		return gqlerrors.Unauthenticated()
	}
	if v.ID != u.ID {
		return gqlerrors.Unauthorized()
	}
	return nil
}
