package resolver

import (
	"context"
	"fmt"

	"github.com/parallel588/margaret/internal/authz"
	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/jobs"
	"github.com/parallel588/margaret/internal/log"
	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/relay"
	"github.com/parallel588/margaret/internal/store"
)

func (r *Resolver) resolveMutation(ctx context.Context, field string, args map[string]interface{}) (interface{}, error) {
	v := r.viewerOf(ctx)
	input, _ := args["input"].(map[string]interface{})

	switch field {
	case "createStory":
		return r.createStory(ctx, v, input)
	case "updateStory":
		return r.updateStory(ctx, v, input)
	case "deleteStory":
		return r.deleteStory(ctx, v, input)
	case "createComment":
		return r.createComment(ctx, v, input)
	case "updateComment":
		return r.updateComment(ctx, v, input)
	case "star":
		return r.setStar(ctx, v, input, true)
	case "unstar":
		return r.setStar(ctx, v, input, false)
	case "bookmark":
		return r.setBookmark(ctx, v, input, true)
	case "removeBookmark":
		return r.setBookmark(ctx, v, input, false)
	case "follow":
		return r.setFollow(ctx, v, input, true)
	case "unfollow":
		return r.setFollow(ctx, v, input, false)
	case "createPublication":
		return r.createPublication(ctx, v, input)
	case "sendPublicationInvitation":
		return r.sendPublicationInvitation(ctx, v, input)
	case "acceptPublicationInvitation":
		return r.settleInvitation(ctx, v, input, model.InvitationAccepted)
	case "rejectPublicationInvitation":
		return r.settleInvitation(ctx, v, input, model.InvitationRejected)
	case "kickPublicationMember":
		return r.kickPublicationMember(ctx, v, input)
	case "updateViewer":
		return r.updateViewer(ctx, v, input)
	case "deactivateViewer":
		return r.deactivateViewer(ctx, v)
	case "markNotificationRead":
		return r.markNotificationRead(ctx, v, input)

	case "updatePublication", "deletePublication", "leavePublication", "deleteComment":
		return nil, gqlerrors.NotImplemented()
	}

	return nil, gqlerrors.Internal(fmt.Errorf("unhandled Mutation field %q", field))
}

func (r *Resolver) createStory(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}

	in := store.NewStory{
		AuthorID:   v.ID,
		Title:      reqString(input, "title"),
		Audience:   model.AudienceAll,
		License:    model.LicenseAllRightsReserved,
		PublishNow: optBool(input, "publishNow"),
	}
	if body := optString(input, "body"); body != nil {
		in.Body = *body
	}
	if s := optString(input, "audience"); s != nil {
		in.Audience = model.StoryAudience(enumIn(*s))
	}
	if s := optString(input, "license"); s != nil {
		in.License = model.StoryLicense(enumIn(*s))
	}
	if tags, ok := stringList(input, "tags"); ok {
		in.Tags = tags
	}

	if gid := optString(input, "publicationId"); gid != nil {
		id, err := decodeID(input, "publicationId", model.NodeTypePublication)
		if err != nil {
			return nil, err
		}
		p, err := r.store.Publications.PublicationByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, gqlerrors.NotFound("publication")
		}
		m, err := r.store.Publications.MembershipOf(ctx, p.ID, v.ID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, gqlerrors.Unauthorized()
		}
		in.PublicationID = &p.ID
	}

	if gid := optString(input, "collectionId"); gid != nil {
		id, err := decodeID(input, "collectionId", model.NodeTypeCollection)
		if err != nil {
			return nil, err
		}
		c, err := r.store.Collections.CollectionByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, gqlerrors.NotFound("collection")
		}
		if err := authz.RequireAuthor(v, c.AuthorID); err != nil {
			return nil, err
		}
		in.CollectionID = &c.ID
	}

	s, err := r.store.Stories.CreateStory(ctx, in)
	if err != nil {
		return nil, storeErr(err)
	}
	if s.Published(r.now()) {
		r.notifyFollowers(ctx, v, model.ActionPublished, model.Ref{Type: model.NodeTypeStory, ID: s.ID})
	}
	return s, nil
}

func (r *Resolver) updateStory(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	id, err := decodeID(input, "storyId", model.NodeTypeStory)
	if err != nil {
		return nil, err
	}
	s, err := r.store.Stories.StoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, gqlerrors.NotFound("story")
	}
	if err := authz.RequireAuthor(v, s.AuthorID); err != nil {
		return nil, err
	}

	changes := store.StoryChanges{
		Title:      optString(input, "title"),
		Body:       optString(input, "body"),
		PublishNow: optBool(input, "publishNow"),
	}
	if a := optString(input, "audience"); a != nil {
		audience := model.StoryAudience(enumIn(*a))
		changes.Audience = &audience
	}
	if l := optString(input, "license"); l != nil {
		license := model.StoryLicense(enumIn(*l))
		changes.License = &license
	}
	if tags, ok := stringList(input, "tags"); ok {
		changes.Tags = &tags
	}

	wasPublished := s.Published(r.now())
	updated, err := r.store.Stories.UpdateStory(ctx, s.ID, changes)
	if err != nil {
		return nil, storeErr(err)
	}
	if !wasPublished && updated.Published(r.now()) {
		r.notifyFollowers(ctx, v, model.ActionPublished, model.Ref{Type: model.NodeTypeStory, ID: updated.ID})
	}
	return updated, nil
}

func (r *Resolver) deleteStory(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	id, err := decodeID(input, "storyId", model.NodeTypeStory)
	if err != nil {
		return nil, err
	}
	s, err := r.store.Stories.StoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, gqlerrors.NotFound("story")
	}
	if err := authz.RequireAuthor(v, s.AuthorID); err != nil {
		return nil, err
	}
	if err := r.store.Stories.DeleteStory(ctx, s.ID); err != nil {
		return nil, err
	}
	return relay.ToGlobalID(model.NodeTypeStory, s.ID), nil
}

func (r *Resolver) createComment(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}

	ref, raw, err := decodeRef(input, "commentableId")
	if err != nil {
		return nil, err
	}

	in := store.NewComment{
		AuthorID: v.ID,
		Body:     reqString(input, "body"),
	}

	var story *model.Story
	switch ref.Type {
	case model.NodeTypeStory:
		story, err = r.store.Stories.StoryByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
	case model.NodeTypeComment:
		parent, err := r.store.Comments.CommentByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, gqlerrors.NotFound("comment")
		}
		story, err = r.store.Stories.StoryByID(ctx, parent.StoryID)
		if err != nil {
			return nil, err
		}
		in.ParentID = &parent.ID
	default:
		return nil, gqlerrors.InvalidReference(raw)
	}

	if story == nil {
		return nil, gqlerrors.NotFound("story")
	}
	visible, err := r.authz.CanSeeStory(ctx, v, story)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, gqlerrors.NotFound("story")
	}
	in.StoryID = story.ID

	c, err := r.store.Comments.CreateComment(ctx, in)
	if err != nil {
		return nil, storeErr(err)
	}
	if story.AuthorID != v.ID {
		r.notify(ctx, store.NewNotification{
			UserID:  story.AuthorID,
			ActorID: v.ID,
			Action:  model.ActionCommented,
			Target:  model.Ref{Type: model.NodeTypeStory, ID: story.ID},
		})
	}
	return c, nil
}

func (r *Resolver) updateComment(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	id, err := decodeID(input, "commentId", model.NodeTypeComment)
	if err != nil {
		return nil, err
	}
	c, err := r.store.Comments.CommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, gqlerrors.NotFound("comment")
	}
	if err := authz.RequireAuthor(v, c.AuthorID); err != nil {
		return nil, err
	}
	updated, err := r.store.Comments.UpdateComment(ctx, c.ID, reqString(input, "body"))
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

// starrable loads a Story or Comment target with visibility applied.
// Anything else, including a hidden target, is reported as absent.
func (r *Resolver) starrable(ctx context.Context, v *model.User, input map[string]interface{}, name string) (interface{}, model.Ref, error) {
	ref, raw, err := decodeRef(input, name)
	if err != nil {
		return nil, model.Ref{}, err
	}
	if ref.Type != model.NodeTypeStory && ref.Type != model.NodeTypeComment {
		return nil, model.Ref{}, gqlerrors.InvalidReference(raw)
	}
	target, err := r.resolveNode(ctx, v, ref)
	if err != nil {
		return nil, model.Ref{}, err
	}
	if target == nil {
		return nil, model.Ref{}, gqlerrors.NotFound(enumIn(string(ref.Type)))
	}
	return target, ref, nil
}

func (r *Resolver) setStar(ctx context.Context, v *model.User, input map[string]interface{}, starred bool) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	target, ref, err := r.starrable(ctx, v, input, "starrableId")
	if err != nil {
		return nil, err
	}

	if !starred {
		if err := r.store.Stars.Unstar(ctx, v.ID, ref); err != nil {
			return nil, err
		}
		return target, nil
	}

	if err := r.store.Stars.Star(ctx, v.ID, ref); err != nil {
		return nil, err
	}
	if authorID, ok := authorOf(target); ok && authorID != v.ID {
		r.notify(ctx, store.NewNotification{
			UserID:  authorID,
			ActorID: v.ID,
			Action:  model.ActionStarred,
			Target:  ref,
		})
	}
	return target, nil
}

func (r *Resolver) setBookmark(ctx context.Context, v *model.User, input map[string]interface{}, bookmarked bool) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	target, ref, err := r.starrable(ctx, v, input, "bookmarkableId")
	if err != nil {
		return nil, err
	}
	if bookmarked {
		err = r.store.Bookmarks.Bookmark(ctx, v.ID, ref)
	} else {
		err = r.store.Bookmarks.RemoveBookmark(ctx, v.ID, ref)
	}
	if err != nil {
		return nil, err
	}
	return target, nil
}

func (r *Resolver) setFollow(ctx context.Context, v *model.User, input map[string]interface{}, following bool) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	ref, raw, err := decodeRef(input, "followableId")
	if err != nil {
		return nil, err
	}
	if ref.Type != model.NodeTypeUser && ref.Type != model.NodeTypePublication {
		return nil, gqlerrors.InvalidReference(raw)
	}
	target, err := r.resolveNode(ctx, v, ref)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, gqlerrors.NotFound(enumIn(string(ref.Type)))
	}
	if ref.Type == model.NodeTypeUser && ref.ID == v.ID {
		return nil, gqlerrors.SelfActionConflict("follow")
	}

	if !following {
		if err := r.store.Follows.Unfollow(ctx, v.ID, ref); err != nil {
			return nil, err
		}
		return target, nil
	}

	if err := r.store.Follows.Follow(ctx, v.ID, ref); err != nil {
		return nil, err
	}
	if ref.Type == model.NodeTypeUser {
		r.notify(ctx, store.NewNotification{
			UserID:  ref.ID,
			ActorID: v.ID,
			Action:  model.ActionFollowed,
			Target:  model.Ref{Type: model.NodeTypeUser, ID: v.ID},
		})
	}
	return target, nil
}

func (r *Resolver) createPublication(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	in := store.NewPublication{
		OwnerID: v.ID,
		Name:    reqString(input, "name"),
	}
	in.DisplayName = in.Name
	if s := optString(input, "displayName"); s != nil {
		in.DisplayName = *s
	}
	if s := optString(input, "description"); s != nil {
		in.Description = *s
	}
	if s := optString(input, "website"); s != nil {
		in.Website = *s
	}
	p, err := r.store.Publications.CreatePublication(ctx, in)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

func (r *Resolver) sendPublicationInvitation(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	pubID, err := decodeID(input, "publicationId", model.NodeTypePublication)
	if err != nil {
		return nil, err
	}
	inviteeID, err := decodeID(input, "inviteeId", model.NodeTypeUser)
	if err != nil {
		return nil, err
	}

	p, err := r.store.Publications.PublicationByID(ctx, pubID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, gqlerrors.NotFound("publication")
	}
	if err := r.authz.RequireAdmin(ctx, v, p.ID); err != nil {
		return nil, err
	}
	if inviteeID == v.ID {
		return nil, gqlerrors.SelfActionConflict("invite")
	}

	invitee, err := r.store.Accounts.UserByID(ctx, inviteeID)
	if err != nil {
		return nil, err
	}
	if invitee == nil || !invitee.Active() {
		return nil, gqlerrors.NotFound("user")
	}

	role := model.RoleWriter
	if s := optString(input, "role"); s != nil {
		role = model.PublicationRole(enumIn(*s))
	}
	if role == model.RoleOwner {
		return nil, gqlerrors.Validation(map[string][]string{"role": {"ownership is not grantable by invitation"}})
	}

	inv, err := r.store.Publications.CreateInvitation(ctx, store.NewInvitation{
		PublicationID: p.ID,
		InviteeID:     invitee.ID,
		InviterID:     v.ID,
		Role:          role,
	})
	if err != nil {
		return nil, storeErr(err)
	}
	r.notify(ctx, store.NewNotification{
		UserID:  invitee.ID,
		ActorID: v.ID,
		Action:  model.ActionAddedToPublication,
		Target:  model.Ref{Type: model.NodeTypePublication, ID: p.ID},
	})
	return inv, nil
}

func (r *Resolver) settleInvitation(ctx context.Context, v *model.User, input map[string]interface{}, status model.InvitationStatus) (interface{}, error) {
	id, err := decodeID(input, "invitationId", model.NodeTypePublicationInvitation)
	if err != nil {
		return nil, err
	}
	inv, err := r.store.Publications.InvitationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, gqlerrors.NotFound("invitation")
	}
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	if inv.InviteeID != v.ID {
		return nil, gqlerrors.Unauthorized()
	}
	if inv.Status != model.InvitationPending {
		return nil, gqlerrors.Validation(map[string][]string{"status": {"invitation is no longer pending"}})
	}

	updated, err := r.store.Publications.UpdateInvitationStatus(ctx, inv.ID, status)
	if err != nil {
		return nil, storeErr(err)
	}
	if status == model.InvitationAccepted {
		r.notify(ctx, store.NewNotification{
			UserID:  inv.InviterID,
			ActorID: v.ID,
			Action:  model.ActionAddedToPublication,
			Target:  model.Ref{Type: model.NodeTypePublication, ID: inv.PublicationID},
		})
	}
	return updated, nil
}

func (r *Resolver) kickPublicationMember(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	pubID, err := decodeID(input, "publicationId", model.NodeTypePublication)
	if err != nil {
		return nil, err
	}
	memberID, err := decodeID(input, "memberId", model.NodeTypeUser)
	if err != nil {
		return nil, err
	}

	p, err := r.store.Publications.PublicationByID(ctx, pubID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, gqlerrors.NotFound("publication")
	}
	if err := r.authz.RequireAdmin(ctx, v, p.ID); err != nil {
		return nil, err
	}
	if memberID == v.ID {
		return nil, gqlerrors.SelfActionConflict("kick")
	}

	m, err := r.store.Publications.MembershipOf(ctx, p.ID, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, gqlerrors.NotFound("membership")
	}
	if m.Role == model.RoleOwner {
		return nil, gqlerrors.Unauthorized()
	}

	if err := r.store.Publications.RemoveMember(ctx, p.ID, memberID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Resolver) updateViewer(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	updated, err := r.store.Accounts.UpdateUser(ctx, v.ID, store.UserChanges{
		Username: optString(input, "username"),
		Name:     optString(input, "name"),
		Bio:      optString(input, "bio"),
		Website:  optString(input, "website"),
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

func (r *Resolver) deactivateViewer(ctx context.Context, v *model.User) (interface{}, error) {
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}

	now := r.now()
	u, err := r.store.Accounts.DeactivateUser(ctx, v.ID, now)
	if err != nil {
		return nil, err
	}

	_, err = r.scheduler.Schedule(ctx, jobs.KindAccountDeletion, now.Add(r.deletionDelay), jobs.Payload{
		"user_id": v.ID,
	})
	if err != nil {
		// keep the account usable rather than deactivated-forever
		if rerr := r.store.Accounts.ReactivateUser(ctx, v.ID); rerr != nil {
			log.FromContext(ctx).Error(rerr, "reactivation after failed scheduling", "userID", v.ID)
		}
		return nil, gqlerrors.Internal(err)
	}
	return u, nil
}

func (r *Resolver) markNotificationRead(ctx context.Context, v *model.User, input map[string]interface{}) (interface{}, error) {
	id, err := decodeID(input, "notificationId", model.NodeTypeNotification)
	if err != nil {
		return nil, err
	}
	n, err := r.store.Notifications.NotificationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, gqlerrors.NotFound("notification")
	}
	if v == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	if n.UserID != v.ID {
		return nil, gqlerrors.Unauthorized()
	}
	return r.store.Notifications.MarkRead(ctx, n.ID, r.now())
}

// authorOf extracts the owning author of a starrable target.
func authorOf(target interface{}) (int64, bool) {
	switch t := target.(type) {
	case *model.Story:
		return t.AuthorID, true
	case *model.Comment:
		return t.AuthorID, true
	}
	return 0, false
}

// notify records a notification. Failures never fail the mutation that
// produced them.
func (r *Resolver) notify(ctx context.Context, in store.NewNotification) {
	if _, err := r.store.Notifications.Notify(ctx, in); err != nil {
		log.FromContext(ctx).Error(err, "notification dropped", "action", in.Action, "userID", in.UserID)
	}
}

// notifyFollowers fans one event out to every follower of the actor.
func (r *Resolver) notifyFollowers(ctx context.Context, actor *model.User, action model.NotificationAction, target model.Ref) {
	src := r.store.Follows.FollowersOf(ctx, model.Ref{Type: model.NodeTypeUser, ID: actor.ID})
	rows, err := src.Page(ctx, pagination.Window{Limit: -1})
	if err != nil {
		log.FromContext(ctx).Error(err, "follower fan-out skipped", "action", action)
		return
	}
	for _, row := range rows {
		u, ok := row.Node.(*model.User)
		if !ok {
			continue
		}
		r.notify(ctx, store.NewNotification{
			UserID:  u.ID,
			ActorID: actor.ID,
			Action:  action,
			Target:  target,
		})
	}
}
