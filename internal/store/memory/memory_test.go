package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

func samplePage() pagination.Window {
	return pagination.Window{Limit: 10}
}

func newUser(t *testing.T, s *Store, username string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), store.NewUser{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return u
}

func TestCreateUserValidation(t *testing.T) {
	ctx := context.Background()
	s := New()
	newUser(t, s, "ada")

	_, err := s.CreateUser(ctx, store.NewUser{Username: "", Email: "x@example.com"})
	var vErr *store.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "username")

	_, err = s.CreateUser(ctx, store.NewUser{Username: "ada", Email: "other@example.com"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"has already been taken"}, vErr.Fields["username"])
}

func TestStorySlugSurvivesTitleEdits(t *testing.T) {
	ctx := context.Background()
	s := New()
	author := newUser(t, s, "ada")

	story, err := s.CreateStory(ctx, store.NewStory{
		AuthorID:   author.ID,
		Title:      "Notes on the Analytical Engine",
		PublishNow: true,
	})
	require.NoError(t, err)
	assert.Contains(t, story.Slug, "notes-on-the-analytical-engine-")

	title := "Sketch of the Analytical Engine"
	updated, err := s.UpdateStory(ctx, story.ID, store.StoryChanges{Title: &title})
	require.NoError(t, err)
	assert.NotEqual(t, story.Slug, updated.Slug)

	// the old link still resolves: only the hash suffix identifies the row
	found, err := s.StoryBySlug(ctx, story.Slug)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, story.ID, found.ID)
}

func TestStarIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	author := newUser(t, s, "ada")
	reader := newUser(t, s, "alan")

	story, err := s.CreateStory(ctx, store.NewStory{AuthorID: author.ID, Title: "t", PublishNow: true})
	require.NoError(t, err)
	target := model.Ref{Type: model.NodeTypeStory, ID: story.ID}

	require.NoError(t, s.Star(ctx, reader.ID, target))
	require.NoError(t, s.Star(ctx, reader.ID, target))

	total, err := s.Stargazers(ctx, target).TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.NoError(t, s.Unstar(ctx, reader.ID, target))
	has, err := s.HasStarred(ctx, reader.ID, target)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDeactivatedUsersDisappearFromListings(t *testing.T) {
	ctx := context.Background()
	s := New()
	ada := newUser(t, s, "ada")
	alan := newUser(t, s, "alan")

	target := model.Ref{Type: model.NodeTypeUser, ID: ada.ID}
	require.NoError(t, s.Follow(ctx, alan.ID, target))

	_, err := s.DeactivateUser(ctx, alan.ID, s.now())
	require.NoError(t, err)

	followers, err := s.FollowersOf(ctx, target).Page(ctx, samplePage())
	require.NoError(t, err)
	assert.Empty(t, followers)

	total, err := s.Users(ctx).TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	ada := newUser(t, s, "ada")
	alan := newUser(t, s, "alan")

	story, err := s.CreateStory(ctx, store.NewStory{AuthorID: ada.ID, Title: "t", PublishNow: true})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, store.NewComment{AuthorID: alan.ID, StoryID: story.ID, Body: "hi"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, ada.ID))
	// idempotent by contract
	require.NoError(t, s.DeleteUser(ctx, ada.ID))

	got, err := s.StoryByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAcceptedInvitationCreatesMembership(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := newUser(t, s, "ada")
	invitee := newUser(t, s, "alan")

	pub, err := s.CreatePublication(ctx, store.NewPublication{OwnerID: owner.ID, Name: "the-engine"})
	require.NoError(t, err)

	inv, err := s.CreateInvitation(ctx, store.NewInvitation{
		PublicationID: pub.ID,
		InviteeID:     invitee.ID,
		InviterID:     owner.ID,
		Role:          model.RoleEditor,
	})
	require.NoError(t, err)

	// no double pending invitations
	_, err = s.CreateInvitation(ctx, store.NewInvitation{
		PublicationID: pub.ID,
		InviteeID:     invitee.ID,
		InviterID:     owner.ID,
	})
	var vErr *store.ValidationError
	require.ErrorAs(t, err, &vErr)

	accepted, err := s.UpdateInvitationStatus(ctx, inv.ID, model.InvitationAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, accepted.Status)

	m, err := s.MembershipOf(ctx, pub.ID, invitee.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleEditor, m.Role)

	// resolving twice fails validation
	_, err = s.UpdateInvitationStatus(ctx, inv.ID, model.InvitationRejected)
	require.ErrorAs(t, err, &vErr)
}

func TestTagsAreSharedAndNormalized(t *testing.T) {
	ctx := context.Background()
	s := New()
	ada := newUser(t, s, "ada")

	first, err := s.CreateStory(ctx, store.NewStory{
		AuthorID: ada.ID, Title: "a", PublishNow: true, Tags: []string{"Computing History"},
	})
	require.NoError(t, err)
	second, err := s.CreateStory(ctx, store.NewStory{
		AuthorID: ada.ID, Title: "b", PublishNow: true, Tags: []string{"computing-history"},
	})
	require.NoError(t, err)

	tag, err := s.TagByTitle(ctx, "computing-history")
	require.NoError(t, err)
	require.NotNil(t, tag)

	total, err := s.StoriesByTag(ctx, tag.ID, store.StoryFilter{}).TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	for _, id := range []int64{first.ID, second.ID} {
		tags, err := s.TagsOfStory(ctx, id)
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, tag.ID, tags[0].ID)
	}
}
