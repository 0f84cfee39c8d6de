package resolver

import (
	"context"
	"fmt"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/relay"
)

func (r *Resolver) resolveQuery(ctx context.Context, field string, args map[string]interface{}) (interface{}, error) {
	v := r.viewerOf(ctx)

	switch field {
	case "node":
		// a malformed or dangling id resolves to null, same as an entity
		// the viewer is not allowed to see
		ref, err := relay.FromGlobalID(reqString(args, "id"))
		if err != nil {
			return nil, nil
		}
		return r.resolveNode(ctx, v, ref)

	case "viewer":
		return v, nil

	case "user":
		u, err := r.store.Accounts.UserByUsername(ctx, reqString(args, "username"))
		if err != nil {
			return nil, err
		}
		if u == nil || !u.Active() {
			return nil, nil
		}
		return u, nil

	case "story":
		s, err := r.store.Stories.StoryBySlug(ctx, reqString(args, "slug"))
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, nil
		}
		visible, err := r.authz.CanSeeStory(ctx, v, s)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, nil
		}
		return s, nil

	case "publication":
		return r.store.Publications.PublicationByName(ctx, reqString(args, "name"))

	case "collection":
		return r.store.Collections.CollectionBySlug(ctx, reqString(args, "slug"))

	case "tag":
		return r.store.Tags.TagByTitle(ctx, reqString(args, "title"))

	case "stories":
		return r.connection(ctx, r.store.Stories.PublishedStories(ctx, r.storyFilter(v)), args)

	case "users":
		return r.connection(ctx, r.store.Accounts.Users(ctx), args)
	}

	return nil, gqlerrors.Internal(fmt.Errorf("unhandled Query field %q", field))
}
