package resolver

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
)

func (r *Resolver) resolveCollection(ctx context.Context, field string, c *model.Collection, args map[string]interface{}) (interface{}, error) {
	switch field {
	case "author":
		return r.userRef(ctx, c.AuthorID)
	case "stories":
		return r.connection(ctx, r.store.Stories.StoriesInCollection(ctx, c.ID, r.storyFilter(r.viewerOf(ctx))), args)
	}
	return reflectField(c, field)
}

func (r *Resolver) resolveTag(ctx context.Context, field string, t *model.Tag, args map[string]interface{}) (interface{}, error) {
	switch field {
	case "stories":
		return r.connection(ctx, r.store.Stories.StoriesByTag(ctx, t.ID, r.storyFilter(r.viewerOf(ctx))), args)
	}
	return reflectField(t, field)
}

func (r *Resolver) resolveNotification(ctx context.Context, field string, n *model.Notification, args map[string]interface{}) (interface{}, error) {
	switch field {
	case "actor":
		u, err := r.store.Accounts.UserByID(ctx, n.ActorID)
		if err != nil || u == nil || !u.Active() {
			return nil, err
		}
		return u, nil

	case "action":
		return enumOut(string(n.Action)), nil

	case "target":
		// same visibility filtering as the node query; a target that has
		// since been deleted or hidden resolves to null
		return r.resolveNode(ctx, r.viewerOf(ctx), n.Target)
	}
	return reflectField(n, field)
}
