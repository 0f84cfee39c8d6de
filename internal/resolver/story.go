package resolver

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
)

func (r *Resolver) resolveStory(ctx context.Context, field string, s *model.Story, args map[string]interface{}) (interface{}, error) {
	v := r.viewerOf(ctx)
	ref := model.Ref{Type: model.NodeTypeStory, ID: s.ID}

	switch field {
	case "audience":
		return enumOut(string(s.Audience)), nil
	case "license":
		return enumOut(string(s.License)), nil

	case "author":
		return r.userRef(ctx, s.AuthorID)

	case "publication":
		if s.PublicationID == nil {
			return nil, nil
		}
		return r.store.Publications.PublicationByID(ctx, *s.PublicationID)

	case "collection":
		if s.CollectionID == nil {
			return nil, nil
		}
		return r.store.Collections.CollectionByID(ctx, *s.CollectionID)

	case "tags":
		return r.store.Stories.TagsOfStory(ctx, s.ID)

	case "stargazers":
		return r.connection(ctx, r.store.Stars.Stargazers(ctx, ref), args)

	case "comments":
		return r.connection(ctx, r.store.Comments.StoryComments(ctx, s.ID), args)

	case "viewerCanStar":
		return r.authz.ViewerCanStar(v), nil
	case "viewerHasStarred":
		if v == nil {
			return false, nil
		}
		return r.store.Stars.HasStarred(ctx, v.ID, ref)

	case "viewerCanComment":
		return r.authz.ViewerCanComment(v), nil

	case "viewerCanBookmark":
		return r.authz.ViewerCanBookmark(v), nil
	case "viewerHasBookmarked":
		if v == nil {
			return false, nil
		}
		return r.store.Bookmarks.HasBookmarked(ctx, v.ID, ref)

	case "viewerCanUpdate", "viewerCanDelete":
		return v != nil && v.ID == s.AuthorID, nil
	}

	return reflectField(s, field)
}

func (r *Resolver) resolveComment(ctx context.Context, field string, c *model.Comment, args map[string]interface{}) (interface{}, error) {
	v := r.viewerOf(ctx)
	ref := model.Ref{Type: model.NodeTypeComment, ID: c.ID}

	switch field {
	case "author":
		return r.userRef(ctx, c.AuthorID)

	case "story":
		return r.store.Stories.StoryByID(ctx, c.StoryID)

	case "parent":
		if c.ParentID == nil {
			return nil, nil
		}
		return r.store.Comments.CommentByID(ctx, *c.ParentID)

	case "comments":
		return r.connection(ctx, r.store.Comments.Replies(ctx, c.ID), args)

	case "stargazers":
		return r.connection(ctx, r.store.Stars.Stargazers(ctx, ref), args)

	case "viewerCanStar":
		return r.authz.ViewerCanStar(v), nil
	case "viewerHasStarred":
		if v == nil {
			return false, nil
		}
		return r.store.Stars.HasStarred(ctx, v.ID, ref)

	case "viewerCanComment":
		return r.authz.ViewerCanComment(v), nil

	case "viewerCanBookmark":
		return r.authz.ViewerCanBookmark(v), nil
	case "viewerHasBookmarked":
		if v == nil {
			return false, nil
		}
		return r.store.Bookmarks.HasBookmarked(ctx, v.ID, ref)

	case "viewerCanUpdate", "viewerCanDelete":
		return v != nil && v.ID == c.AuthorID, nil
	}

	return reflectField(c, field)
}
