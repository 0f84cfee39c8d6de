package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/store"
	"github.com/parallel588/margaret/internal/store/memory"
)

type fixture struct {
	store  *memory.Store
	authz  *Authorizer
	owner  *model.User
	writer *model.User
	other  *model.User
	pub    *model.Publication
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	f := &fixture{store: s, authz: New(s, s)}
	var err error
	f.owner, err = s.CreateUser(ctx, store.NewUser{Username: "ada", Email: "ada@example.com"})
	require.NoError(t, err)
	f.writer, err = s.CreateUser(ctx, store.NewUser{Username: "alan", Email: "alan@example.com"})
	require.NoError(t, err)
	f.other, err = s.CreateUser(ctx, store.NewUser{Username: "grace", Email: "grace@example.com"})
	require.NoError(t, err)

	f.pub, err = s.CreatePublication(ctx, store.NewPublication{OwnerID: f.owner.ID, Name: "the-engine"})
	require.NoError(t, err)
	_, err = s.AddMember(ctx, f.pub.ID, f.writer.ID, model.RoleWriter)
	require.NoError(t, err)
	return f
}

func TestCanSeeStoryDrafts(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	draft, err := f.store.CreateStory(ctx, store.NewStory{
		AuthorID:      f.writer.ID,
		Title:         "draft",
		PublicationID: &f.pub.ID,
	})
	require.NoError(t, err)

	cases := []struct {
		name   string
		viewer *model.User
		want   bool
	}{
		{"anonymous", nil, false},
		{"author", f.writer, true},
		{"publication owner", f.owner, true},
		{"unrelated viewer", f.other, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := f.authz.CanSeeStory(ctx, tc.viewer, draft)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestCanSeeStoryPublished(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	published, err := f.store.CreateStory(ctx, store.NewStory{
		AuthorID:   f.writer.ID,
		Title:      "published",
		PublishNow: true,
	})
	require.NoError(t, err)

	ok, err := f.authz.CanSeeStory(ctx, nil, published)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanSeeStoryDeactivatedAuthor(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	published, err := f.store.CreateStory(ctx, store.NewStory{
		AuthorID:   f.writer.ID,
		Title:      "published",
		PublishNow: true,
	})
	require.NoError(t, err)

	_, err = f.store.DeactivateUser(ctx, f.writer.ID, time.Now())
	require.NoError(t, err)

	cases := []struct {
		name   string
		viewer *model.User
		want   bool
	}{
		{"anonymous", nil, false},
		{"unrelated viewer", f.other, false},
		{"the author themselves", f.writer, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := f.authz.CanSeeStory(ctx, tc.viewer, published)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestCanSeeStoryMembersAudience(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	members, err := f.store.CreateStory(ctx, store.NewStory{
		AuthorID:   f.writer.ID,
		Title:      "members only",
		Audience:   model.AudienceMembers,
		PublishNow: true,
	})
	require.NoError(t, err)

	ok, err := f.authz.CanSeeStory(ctx, nil, members)
	require.NoError(t, err)
	assert.False(t, ok, "anonymous viewers don't see members stories")

	ok, err = f.authz.CanSeeStory(ctx, f.other, members)
	require.NoError(t, err)
	assert.True(t, ok, "any signed-in reader is a member")
}

func TestCanSeeCommentDeactivatedAuthor(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	published, err := f.store.CreateStory(ctx, store.NewStory{
		AuthorID:   f.owner.ID,
		Title:      "published",
		PublishNow: true,
	})
	require.NoError(t, err)
	comment, err := f.store.CreateComment(ctx, store.NewComment{
		AuthorID: f.writer.ID,
		StoryID:  published.ID,
		Body:     "hi",
	})
	require.NoError(t, err)

	_, err = f.store.DeactivateUser(ctx, f.writer.ID, time.Now())
	require.NoError(t, err)

	ok, err := f.authz.CanSeeComment(ctx, f.other, comment, published)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.authz.CanSeeComment(ctx, f.writer, comment, published)
	require.NoError(t, err)
	assert.True(t, ok, "authors still see their own comments")
}

func TestInvitationVisibility(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	inv, err := f.store.CreateInvitation(ctx, store.NewInvitation{
		PublicationID: f.pub.ID,
		InviteeID:     f.other.ID,
		InviterID:     f.owner.ID,
	})
	require.NoError(t, err)

	ok, err := f.authz.CanSeeInvitation(ctx, f.other, inv)
	require.NoError(t, err)
	assert.True(t, ok, "invitee sees their own invitation")

	ok, err = f.authz.CanSeeInvitation(ctx, f.writer, inv)
	require.NoError(t, err)
	assert.False(t, ok, "plain writers don't see invitations")

	ok, err = f.authz.CanSeeInvitations(ctx, f.owner, f.pub.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.authz.CanSeeInvitations(ctx, nil, f.pub.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.store.DeactivateUser(ctx, f.other.ID, time.Now())
	require.NoError(t, err)
	ok, err = f.authz.CanSeeInvitation(ctx, f.owner, inv)
	require.NoError(t, err)
	assert.False(t, ok, "a deactivated invitee hides the invitation")
}

func TestRequireAuthor(t *testing.T) {
	f := setup(t)

	assert.NoError(t, RequireAuthor(f.writer, f.writer.ID))

	err := RequireAuthor(f.other, f.writer.ID)
	assert.Equal(t, gqlerrors.CodeUnauthorized, gqlerrors.Code(err))

	err = RequireAuthor(nil, f.writer.ID)
	assert.Equal(t, gqlerrors.CodeUnauthenticated, gqlerrors.Code(err))
}

func TestRequireAdmin(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	assert.NoError(t, f.authz.RequireAdmin(ctx, f.owner, f.pub.ID))

	err := f.authz.RequireAdmin(ctx, f.writer, f.pub.ID)
	assert.Equal(t, gqlerrors.CodeUnauthorized, gqlerrors.Code(err))

	err = f.authz.RequireAdmin(ctx, nil, f.pub.ID)
	assert.Equal(t, gqlerrors.CodeUnauthenticated, gqlerrors.Code(err))
}

func TestCapabilityPredicates(t *testing.T) {
	f := setup(t)

	assert.True(t, f.authz.ViewerCanStar(f.other))
	assert.True(t, f.authz.ViewerCanComment(f.other))
	assert.True(t, f.authz.ViewerCanFollow(f.other))
	assert.False(t, f.authz.ViewerCanStar(nil))
	assert.False(t, f.authz.ViewerCanComment(nil))
	assert.False(t, f.authz.ViewerCanFollow(nil))
}
