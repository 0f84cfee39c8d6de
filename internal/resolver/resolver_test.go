package resolver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/graph"
	"github.com/parallel588/margaret/internal/jobs"
	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/relay"
	"github.com/parallel588/margaret/internal/resolver"
	"github.com/parallel588/margaret/internal/store"
	"github.com/parallel588/margaret/internal/store/memory"
	"github.com/parallel588/margaret/internal/viewer"
)

type fakeScheduler struct {
	scheduled []string
	fail      bool
}

func (s *fakeScheduler) Schedule(ctx context.Context, kind string, runAt time.Time, payload jobs.Payload) (string, error) {
	if s.fail {
		return "", fmt.Errorf("queue unavailable")
	}
	s.scheduled = append(s.scheduled, kind)
	return "job-1", nil
}

func (s *fakeScheduler) Cancel(id string) bool { return false }

type fixture struct {
	t         *testing.T
	store     *store.Store
	scheduler *fakeScheduler
	es        graphql.ExecutableSchema

	ana, ben, cleo *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.New().Contexts()
	scheduler := &fakeScheduler{}
	r := resolver.New(resolver.Config{Store: st, Scheduler: scheduler})

	f := &fixture{
		t:         t,
		store:     st,
		scheduler: scheduler,
		es:        graph.NewExecutableSchema(r.Resolve, r.ResolveType),
	}
	f.ana = f.user("ana")
	f.ben = f.user("ben")
	f.cleo = f.user("cleo")
	return f
}

func (f *fixture) user(username string) *model.User {
	f.t.Helper()
	u, err := f.store.Accounts.CreateUser(context.Background(), store.NewUser{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) story(author *model.User, title string, publish bool) *model.Story {
	f.t.Helper()
	s, err := f.store.Stories.CreateStory(context.Background(), store.NewStory{
		AuthorID:   author.ID,
		Title:      title,
		Body:       "body of " + title,
		Audience:   model.AudienceAll,
		License:    model.LicenseAllRightsReserved,
		PublishNow: publish,
	})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) exec(v *model.User, query string, vars map[string]interface{}) *graphql.Response {
	f.t.Helper()
	ctx := context.Background()
	if v != nil {
		ctx = viewer.WithViewer(ctx, v)
	}
	return graph.Execute(ctx, f.es, query, vars)
}

func (f *fixture) data(resp *graphql.Response) map[string]interface{} {
	f.t.Helper()
	require.Empty(f.t, resp.Errors, "unexpected errors: %v", resp.Errors)
	var out map[string]interface{}
	require.NoError(f.t, json.Unmarshal(resp.Data, &out))
	return out
}

func errCode(resp *graphql.Response) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	code, _ := resp.Errors[0].Extensions["code"].(string)
	return code
}

func TestStoryBySlug(t *testing.T) {
	f := newFixture(t)
	s := f.story(f.ana, "Hello World", true)

	resp := f.exec(nil, `query($slug: String!) {
		story(slug: $slug) {
			id
			title
			slug
			author { username }
			viewerCanUpdate
		}
	}`, map[string]interface{}{"slug": s.Slug})

	data := f.data(resp)
	story := data["story"].(map[string]interface{})
	assert.Equal(t, relay.ToGlobalID(model.NodeTypeStory, s.ID), story["id"])
	assert.Equal(t, "Hello World", story["title"])
	assert.Equal(t, "ana", story["author"].(map[string]interface{})["username"])
	assert.Equal(t, false, story["viewerCanUpdate"])
}

func TestDraftVisibility(t *testing.T) {
	f := newFixture(t)
	draft := f.story(f.ana, "Secret Draft", false)

	query := `query($slug: String!) { story(slug: $slug) { title } }`
	vars := map[string]interface{}{"slug": draft.Slug}

	// strangers and anonymous viewers see null without an error
	resp := f.exec(nil, query, vars)
	assert.Nil(t, f.data(resp)["story"])

	resp = f.exec(f.ben, query, vars)
	assert.Nil(t, f.data(resp)["story"])

	resp = f.exec(f.ana, query, vars)
	story := f.data(resp)["story"].(map[string]interface{})
	assert.Equal(t, "Secret Draft", story["title"])
}

func TestDeactivatedAuthorWorkVanishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.story(f.ana, "Going Dark", true)

	other := f.story(f.ben, "Still Here", true)
	_, err := f.store.Comments.CreateComment(ctx, store.NewComment{
		AuthorID: f.ana.ID,
		StoryID:  other.ID,
		Body:     "nice one",
	})
	require.NoError(t, err)

	_, err = f.store.Accounts.DeactivateUser(ctx, f.ana.ID, time.Now())
	require.NoError(t, err)

	storyQuery := `query($slug: String!) { story(slug: $slug) { title author { username } } }`
	vars := map[string]interface{}{"slug": s.Slug}

	// the story goes dark along with its author, for everyone but them
	resp := f.exec(f.ben, storyQuery, vars)
	assert.Nil(t, f.data(resp)["story"])

	resp = f.exec(nil, `query($id: ID!) { node(id: $id) { id } }`, map[string]interface{}{
		"id": relay.ToGlobalID(model.NodeTypeStory, s.ID),
	})
	assert.Nil(t, f.data(resp)["node"])

	resp = f.exec(nil, `{ stories(first: 10) { edges { node { title } } } }`, nil)
	edges := f.data(resp)["stories"].(map[string]interface{})["edges"].([]interface{})
	require.Len(t, edges, 1)
	title := edges[0].(map[string]interface{})["node"].(map[string]interface{})["title"]
	assert.Equal(t, "Still Here", title)

	resp = f.exec(nil, `query($slug: String!) {
		story(slug: $slug) { comments(first: 10) { totalCount } }
	}`, map[string]interface{}{"slug": other.Slug})
	comments := f.data(resp)["story"].(map[string]interface{})["comments"].(map[string]interface{})
	assert.Equal(t, float64(0), comments["totalCount"])

	// the author still sees their own story
	resp = f.exec(f.ana, storyQuery, vars)
	story := f.data(resp)["story"].(map[string]interface{})
	assert.Equal(t, "Going Dark", story["title"])
}

func TestMembersAudienceVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.store.Stories.CreateStory(ctx, store.NewStory{
		AuthorID:   f.ana.ID,
		Title:      "For Members",
		Body:       "body",
		Audience:   model.AudienceMembers,
		License:    model.LicenseAllRightsReserved,
		PublishNow: true,
	})
	require.NoError(t, err)

	query := `query($slug: String!) { story(slug: $slug) { title } }`
	vars := map[string]interface{}{"slug": s.Slug}

	resp := f.exec(nil, query, vars)
	assert.Nil(t, f.data(resp)["story"])

	resp = f.exec(nil, `{ stories(first: 10) { totalCount } }`, nil)
	feed := f.data(resp)["stories"].(map[string]interface{})
	assert.Equal(t, float64(0), feed["totalCount"])

	// any signed-in reader counts as a member
	resp = f.exec(f.ben, query, vars)
	story := f.data(resp)["story"].(map[string]interface{})
	assert.Equal(t, "For Members", story["title"])

	resp = f.exec(f.ben, `{ stories(first: 10) { totalCount } }`, nil)
	feed = f.data(resp)["stories"].(map[string]interface{})
	assert.Equal(t, float64(1), feed["totalCount"])
}

func TestNodeLookup(t *testing.T) {
	f := newFixture(t)
	s := f.story(f.ana, "Published", true)
	draft := f.story(f.ana, "Hidden", false)

	query := `query($id: ID!) { node(id: $id) { id ... on Story { title } } }`

	resp := f.exec(nil, query, map[string]interface{}{
		"id": relay.ToGlobalID(model.NodeTypeStory, s.ID),
	})
	node := f.data(resp)["node"].(map[string]interface{})
	assert.Equal(t, "Published", node["title"])

	// a hidden node and a malformed id both come back null, not as errors
	resp = f.exec(f.ben, query, map[string]interface{}{
		"id": relay.ToGlobalID(model.NodeTypeStory, draft.ID),
	})
	assert.Nil(t, f.data(resp)["node"])

	resp = f.exec(nil, query, map[string]interface{}{"id": "not-base64!"})
	assert.Nil(t, f.data(resp)["node"])
}

func TestStargazersConnection(t *testing.T) {
	f := newFixture(t)
	s := f.story(f.ana, "Popular", true)
	ref := model.Ref{Type: model.NodeTypeStory, ID: s.ID}

	ctx := context.Background()
	gazers := []*model.User{f.ana, f.ben, f.cleo, f.user("dinah"), f.user("ede")}
	for _, u := range gazers {
		require.NoError(t, f.store.Stars.Star(ctx, u.ID, ref))
	}

	query := `query($slug: String!, $first: Int, $after: String) {
		story(slug: $slug) {
			stargazers(first: $first, after: $after) {
				totalCount
				pageInfo { hasNextPage hasPreviousPage endCursor }
				edges { cursor starredAt node { username } }
			}
		}
	}`

	resp := f.exec(nil, query, map[string]interface{}{"slug": s.Slug, "first": 2})
	conn := f.data(resp)["story"].(map[string]interface{})["stargazers"].(map[string]interface{})

	assert.EqualValues(t, 5, conn["totalCount"])
	pageInfo := conn["pageInfo"].(map[string]interface{})
	assert.Equal(t, true, pageInfo["hasNextPage"])
	assert.Equal(t, false, pageInfo["hasPreviousPage"])

	edges := conn["edges"].([]interface{})
	require.Len(t, edges, 2)
	first := edges[0].(map[string]interface{})
	assert.Equal(t, "ana", first["node"].(map[string]interface{})["username"])
	assert.NotEmpty(t, first["starredAt"])

	// the second page continues from the end cursor and keeps the total
	resp = f.exec(nil, query, map[string]interface{}{
		"slug":  s.Slug,
		"first": 2,
		"after": pageInfo["endCursor"],
	})
	conn = f.data(resp)["story"].(map[string]interface{})["stargazers"].(map[string]interface{})
	assert.EqualValues(t, 5, conn["totalCount"])
	edges = conn["edges"].([]interface{})
	require.Len(t, edges, 2)
	assert.Equal(t, "cleo", edges[0].(map[string]interface{})["node"].(map[string]interface{})["username"])
}

func TestConflictingPaginationArguments(t *testing.T) {
	f := newFixture(t)
	f.story(f.ana, "One", true)

	resp := f.exec(nil, `{ stories(first: 1, last: 1) { totalCount } }`, nil)
	assert.Equal(t, "CONFLICTING_PAGINATION_ARGUMENTS", errCode(resp))
}

func TestAnonymousCapabilities(t *testing.T) {
	f := newFixture(t)
	s := f.story(f.ana, "Readable", true)

	resp := f.exec(nil, `query($slug: String!) {
		story(slug: $slug) {
			viewerCanStar
			viewerHasStarred
			viewerCanComment
			viewerCanBookmark
		}
	}`, map[string]interface{}{"slug": s.Slug})

	story := f.data(resp)["story"].(map[string]interface{})
	for _, field := range []string{"viewerCanStar", "viewerHasStarred", "viewerCanComment", "viewerCanBookmark"} {
		assert.Equal(t, false, story[field], field)
	}
}

func TestUpdateStoryGuards(t *testing.T) {
	f := newFixture(t)
	s := f.story(f.ana, "Original", true)
	gid := relay.ToGlobalID(model.NodeTypeStory, s.ID)

	mutation := `mutation($input: UpdateStoryInput!) {
		updateStory(input: $input) { title }
	}`
	vars := map[string]interface{}{
		"input": map[string]interface{}{"storyId": gid, "title": "Hijacked"},
	}

	resp := f.exec(f.ben, mutation, vars)
	assert.Equal(t, "UNAUTHORIZED", errCode(resp))

	resp = f.exec(nil, mutation, vars)
	assert.Equal(t, "UNAUTHENTICATED", errCode(resp))

	// the miss is reported before any permission question comes up
	resp = f.exec(f.ben, mutation, map[string]interface{}{
		"input": map[string]interface{}{
			"storyId": relay.ToGlobalID(model.NodeTypeStory, 9999),
			"title":   "Hijacked",
		},
	})
	assert.Equal(t, "NOT_FOUND", errCode(resp))

	unchanged, err := f.store.Stories.StoryByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", unchanged.Title)
}

func TestCreateCommentAndReply(t *testing.T) {
	f := newFixture(t)
	s := f.story(f.ana, "Discussed", true)

	mutation := `mutation($input: CreateCommentInput!) {
		createComment(input: $input) { id body story { title } parent { body } }
	}`

	resp := f.exec(f.ben, mutation, map[string]interface{}{
		"input": map[string]interface{}{
			"commentableId": relay.ToGlobalID(model.NodeTypeStory, s.ID),
			"body":          "nice one",
		},
	})
	comment := f.data(resp)["createComment"].(map[string]interface{})
	assert.Equal(t, "nice one", comment["body"])
	assert.Nil(t, comment["parent"])

	resp = f.exec(f.cleo, mutation, map[string]interface{}{
		"input": map[string]interface{}{
			"commentableId": comment["id"],
			"body":          "agreed",
		},
	})
	reply := f.data(resp)["createComment"].(map[string]interface{})
	assert.Equal(t, "Discussed", reply["story"].(map[string]interface{})["title"])
	assert.Equal(t, "nice one", reply["parent"].(map[string]interface{})["body"])

	// the story author hears about the comment
	rows, err := f.store.Notifications.NotificationsOf(context.Background(), f.ana.ID).Page(context.Background(), pagination.Window{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
}

func TestFollowSelfConflict(t *testing.T) {
	f := newFixture(t)

	resp := f.exec(f.ana, `mutation($input: FollowInput!) {
		follow(input: $input) { id }
	}`, map[string]interface{}{
		"input": map[string]interface{}{
			"followableId": relay.ToGlobalID(model.NodeTypeUser, f.ana.ID),
		},
	})
	assert.Equal(t, "SELF_ACTION_CONFLICT", errCode(resp))
}

func TestStubbedMutations(t *testing.T) {
	f := newFixture(t)
	p, err := f.store.Publications.CreatePublication(context.Background(), store.NewPublication{
		OwnerID: f.ana.ID,
		Name:    "margaret-weekly",
	})
	require.NoError(t, err)
	gid := relay.ToGlobalID(model.NodeTypePublication, p.ID)

	s := f.story(f.ana, "Commented", true)
	c, err := f.store.Comments.CreateComment(context.Background(), store.NewComment{
		AuthorID: f.ben.ID,
		StoryID:  s.ID,
		Body:     "hi",
	})
	require.NoError(t, err)

	stubs := []string{
		fmt.Sprintf(`mutation { updatePublication(input: {publicationId: %q, displayName: "x"}) { id } }`, gid),
		fmt.Sprintf(`mutation { deletePublication(input: {publicationId: %q}) }`, gid),
		fmt.Sprintf(`mutation { leavePublication(input: {publicationId: %q}) { id } }`, gid),
		fmt.Sprintf(`mutation { deleteComment(input: {commentId: %q}) }`, relay.ToGlobalID(model.NodeTypeComment, c.ID)),
	}
	for _, q := range stubs {
		resp := f.exec(f.ana, q, nil)
		assert.Equal(t, "NOT_IMPLEMENTED", errCode(resp), q)
	}
}

func TestPublicationInvitationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.store.Publications.CreatePublication(ctx, store.NewPublication{
		OwnerID: f.ana.ID,
		Name:    "deep-dives",
	})
	require.NoError(t, err)

	send := `mutation($input: SendPublicationInvitationInput!) {
		sendPublicationInvitation(input: $input) { id status role invitee { username } }
	}`
	vars := map[string]interface{}{
		"input": map[string]interface{}{
			"publicationId": relay.ToGlobalID(model.NodeTypePublication, p.ID),
			"inviteeId":     relay.ToGlobalID(model.NodeTypeUser, f.ben.ID),
			"role":          "EDITOR",
		},
	}

	// only admins may invite
	resp := f.exec(f.cleo, send, vars)
	assert.Equal(t, "UNAUTHORIZED", errCode(resp))

	resp = f.exec(f.ana, send, vars)
	inv := f.data(resp)["sendPublicationInvitation"].(map[string]interface{})
	assert.Equal(t, "PENDING", inv["status"])
	assert.Equal(t, "EDITOR", inv["role"])

	accept := `mutation($input: PublicationInvitationInput!) {
		acceptPublicationInvitation(input: $input) { status }
	}`
	acceptVars := map[string]interface{}{
		"input": map[string]interface{}{"invitationId": inv["id"]},
	}

	// nobody but the invitee can settle it
	resp = f.exec(f.cleo, accept, acceptVars)
	assert.Equal(t, "UNAUTHORIZED", errCode(resp))

	resp = f.exec(f.ben, accept, acceptVars)
	assert.Equal(t, "ACCEPTED", f.data(resp)["acceptPublicationInvitation"].(map[string]interface{})["status"])

	m, err := f.store.Publications.MembershipOf(ctx, p.ID, f.ben.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleEditor, m.Role)

	// settling twice is a validation failure
	resp = f.exec(f.ben, accept, acceptVars)
	assert.Equal(t, "VALIDATION_FAILURE", errCode(resp))
}

func TestDeactivateViewer(t *testing.T) {
	f := newFixture(t)

	resp := f.exec(f.ana, `mutation { deactivateViewer { username } }`, nil)
	f.data(resp)
	require.Equal(t, []string{jobs.KindAccountDeletion}, f.scheduler.scheduled)

	u, err := f.store.Accounts.UserByID(context.Background(), f.ana.ID)
	require.NoError(t, err)
	assert.False(t, u.Active())

	// deactivated accounts vanish from lookups
	resp = f.exec(nil, `{ user(username: "ana") { username } }`, nil)
	assert.Nil(t, f.data(resp)["user"])
}

func TestDeactivateViewerCompensatesOnScheduleFailure(t *testing.T) {
	f := newFixture(t)
	f.scheduler.fail = true

	resp := f.exec(f.ana, `mutation { deactivateViewer { username } }`, nil)
	assert.Equal(t, "INTERNAL", errCode(resp))

	u, err := f.store.Accounts.UserByID(context.Background(), f.ana.ID)
	require.NoError(t, err)
	assert.True(t, u.Active(), "account must come back when scheduling fails")
}

func TestViewerPrivateFields(t *testing.T) {
	f := newFixture(t)

	resp := f.exec(f.ben, `{ user(username: "ana") { email } }`, nil)
	assert.Nil(t, f.data(resp)["user"].(map[string]interface{})["email"])

	resp = f.exec(f.ana, `{ viewer { email notifications(first: 1) { totalCount } } }`, nil)
	v := f.data(resp)["viewer"].(map[string]interface{})
	assert.Equal(t, "ana@example.com", v["email"])
	assert.NotNil(t, v["notifications"])
}
