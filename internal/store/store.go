// Package store declares the domain-context boundary. Each interface owns
// one entity family; implementations live in store/memory and
// store/postgres. Getters return (nil, nil) when the entity is absent; the
// resolution layer decides whether absence is a null or a NotFound error.
// List methods return ordered query handles consumable by the pagination
// engine.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
)

// ValidationError carries field-level detail for inputs that violate domain
// invariants. It is surfaced to clients verbatim, never swallowed.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

type NewUser struct {
	Username string
	Email    string
	Name     string
}

type UserChanges struct {
	Username *string
	Name     *string
	Bio      *string
	Website  *string
}

type Accounts interface {
	// CreateUser inserts the account record for an identity the external
	// provider has already authenticated.
	CreateUser(ctx context.Context, input NewUser) (*model.User, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	Users(ctx context.Context) pagination.Source
	UpdateUser(ctx context.Context, id int64, changes UserChanges) (*model.User, error)
	// DeactivateUser hides the account immediately; the caller pairs it
	// with a scheduled deletion and compensates with ReactivateUser if
	// scheduling fails.
	DeactivateUser(ctx context.Context, id int64, at time.Time) (*model.User, error)
	ReactivateUser(ctx context.Context, id int64) error
	// DeleteUser is idempotent: deleting an absent user is not an error.
	DeleteUser(ctx context.Context, id int64) error
}

type NewStory struct {
	AuthorID      int64
	Title         string
	Body          string
	Audience      model.StoryAudience
	License       model.StoryLicense
	PublicationID *int64
	CollectionID  *int64
	PublishNow    bool
	Tags          []string
}

type StoryChanges struct {
	Title      *string
	Body       *string
	Audience   *model.StoryAudience
	License    *model.StoryLicense
	PublishNow bool
	Tags       *[]string
}

// StoryFilter narrows story list sources to what the viewer may see.
// Stories by deactivated authors are always excluded; the flags widen the
// remaining set.
type StoryFilter struct {
	// Drafts admits unpublished stories; set only for the author's own view.
	Drafts bool
	// MemberOnly admits members-audience stories; set for authenticated
	// viewers.
	MemberOnly bool
}

type Stories interface {
	StoryByID(ctx context.Context, id int64) (*model.Story, error)
	StoryBySlug(ctx context.Context, slug string) (*model.Story, error)
	CreateStory(ctx context.Context, input NewStory) (*model.Story, error)
	UpdateStory(ctx context.Context, id int64, changes StoryChanges) (*model.Story, error)
	DeleteStory(ctx context.Context, id int64) error

	// PublishedStories is the public feed, ascending by story id.
	PublishedStories(ctx context.Context, f StoryFilter) pagination.Source
	StoriesByAuthor(ctx context.Context, authorID int64, f StoryFilter) pagination.Source
	StoriesUnderPublication(ctx context.Context, publicationID int64, f StoryFilter) pagination.Source
	StoriesInCollection(ctx context.Context, collectionID int64, f StoryFilter) pagination.Source
	StoriesByTag(ctx context.Context, tagID int64, f StoryFilter) pagination.Source

	TagsOfStory(ctx context.Context, storyID int64) ([]*model.Tag, error)
}

type NewPublication struct {
	OwnerID     int64
	Name        string
	DisplayName string
	Description string
	Website     string
}

type NewInvitation struct {
	PublicationID int64
	InviteeID     int64
	InviterID     int64
	Role          model.PublicationRole
}

type Publications interface {
	PublicationByID(ctx context.Context, id int64) (*model.Publication, error)
	PublicationByName(ctx context.Context, name string) (*model.Publication, error)
	CreatePublication(ctx context.Context, input NewPublication) (*model.Publication, error)

	// MembershipOf returns (nil, nil) when the user is not a member.
	MembershipOf(ctx context.Context, publicationID, userID int64) (*model.PublicationMembership, error)
	Members(ctx context.Context, publicationID int64) pagination.Source
	AddMember(ctx context.Context, publicationID, userID int64, role model.PublicationRole) (*model.PublicationMembership, error)
	RemoveMember(ctx context.Context, publicationID, userID int64) error

	InvitationByID(ctx context.Context, id int64) (*model.PublicationInvitation, error)
	Invitations(ctx context.Context, publicationID int64) pagination.Source
	CreateInvitation(ctx context.Context, input NewInvitation) (*model.PublicationInvitation, error)
	UpdateInvitationStatus(ctx context.Context, id int64, status model.InvitationStatus) (*model.PublicationInvitation, error)
}

type NewComment struct {
	AuthorID int64
	StoryID  int64
	ParentID *int64
	Body     string
}

type Comments interface {
	CommentByID(ctx context.Context, id int64) (*model.Comment, error)
	CreateComment(ctx context.Context, input NewComment) (*model.Comment, error)
	UpdateComment(ctx context.Context, id int64, body string) (*model.Comment, error)

	// StoryComments lists a story's top-level comments; Replies lists the
	// children of one comment.
	StoryComments(ctx context.Context, storyID int64) pagination.Source
	Replies(ctx context.Context, commentID int64) pagination.Source
}

type Stars interface {
	// Star is idempotent per (user, target).
	Star(ctx context.Context, userID int64, target model.Ref) error
	Unstar(ctx context.Context, userID int64, target model.Ref) error
	HasStarred(ctx context.Context, userID int64, target model.Ref) (bool, error)
	// Stargazers yields the starring users ascending by star row id, with
	// the star time carried as edge data.
	Stargazers(ctx context.Context, target model.Ref) pagination.Source
}

type Bookmarks interface {
	Bookmark(ctx context.Context, userID int64, target model.Ref) error
	RemoveBookmark(ctx context.Context, userID int64, target model.Ref) error
	HasBookmarked(ctx context.Context, userID int64, target model.Ref) (bool, error)
	// BookmarksOf yields the bookmarked nodes with the bookmark time as
	// edge data.
	BookmarksOf(ctx context.Context, userID int64) pagination.Source
}

type Follows interface {
	Follow(ctx context.Context, followerID int64, target model.Ref) error
	Unfollow(ctx context.Context, followerID int64, target model.Ref) error
	IsFollowing(ctx context.Context, followerID int64, target model.Ref) (bool, error)
	FollowersOf(ctx context.Context, target model.Ref) pagination.Source
	FolloweesOf(ctx context.Context, followerID int64) pagination.Source
}

type Tags interface {
	TagByID(ctx context.Context, id int64) (*model.Tag, error)
	TagByTitle(ctx context.Context, title string) (*model.Tag, error)
}

type NewNotification struct {
	UserID  int64
	ActorID int64
	Action  model.NotificationAction
	Target  model.Ref
}

type Notifications interface {
	NotificationByID(ctx context.Context, id int64) (*model.Notification, error)
	NotificationsOf(ctx context.Context, userID int64) pagination.Source
	Notify(ctx context.Context, input NewNotification) (*model.Notification, error)
	MarkRead(ctx context.Context, id int64, at time.Time) (*model.Notification, error)
}

type NewCollection struct {
	AuthorID    int64
	Title       string
	Description string
}

type Collections interface {
	CollectionByID(ctx context.Context, id int64) (*model.Collection, error)
	CollectionBySlug(ctx context.Context, slug string) (*model.Collection, error)
	CreateCollection(ctx context.Context, input NewCollection) (*model.Collection, error)
}

// Store bundles the domain contexts one backend provides.
type Store struct {
	Accounts      Accounts
	Stories       Stories
	Publications  Publications
	Comments      Comments
	Stars         Stars
	Bookmarks     Bookmarks
	Follows       Follows
	Tags          Tags
	Notifications Notifications
	Collections   Collections
}
