// Package model holds the entities owned by the domain contexts. The
// resolution layer borrows them per request and never mutates them in place.
package model

import "time"

type User struct {
	ID            int64
	Username      string
	Email         string
	Name          string
	Bio           string
	Website       string
	IsAdmin       bool
	DeactivatedAt *time.Time
	InsertedAt    time.Time
}

func (u *User) Active() bool {
	return u.DeactivatedAt == nil
}

// StoryAudience controls who may read a published story.
type StoryAudience string

const (
	AudienceAll      StoryAudience = "all"
	AudienceMembers  StoryAudience = "members"
	AudienceUnlisted StoryAudience = "unlisted"
)

type StoryLicense string

const (
	LicenseAllRightsReserved StoryLicense = "all_rights_reserved"
	LicensePublicDomain      StoryLicense = "public_domain"
)

type Story struct {
	ID            int64
	AuthorID      int64
	Title         string
	Body          string
	Slug          string
	Audience      StoryAudience
	License       StoryLicense
	PublishedAt   *time.Time
	PublicationID *int64
	CollectionID  *int64
	InsertedAt    time.Time
}

func (s *Story) Published(now time.Time) bool {
	return s.PublishedAt != nil && !s.PublishedAt.After(now)
}

type Publication struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Website     string
	InsertedAt  time.Time
}

// PublicationRole orders member privileges from weakest to strongest.
type PublicationRole string

const (
	RoleWriter PublicationRole = "writer"
	RoleEditor PublicationRole = "editor"
	RoleAdmin  PublicationRole = "admin"
	RoleOwner  PublicationRole = "owner"
)

func (r PublicationRole) AtLeast(min PublicationRole) bool {
	return r.rank() >= min.rank()
}

func (r PublicationRole) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleEditor:
		return 1
	case RoleWriter:
		return 0
	default:
		return -1
	}
}

type PublicationMembership struct {
	ID            int64
	PublicationID int64
	MemberID      int64
	Role          PublicationRole
	InsertedAt    time.Time
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

type PublicationInvitation struct {
	ID            int64
	PublicationID int64
	InviteeID     int64
	InviterID     int64
	Role          PublicationRole
	Status        InvitationStatus
	InsertedAt    time.Time
}

type Collection struct {
	ID          int64
	AuthorID    int64
	Title       string
	Slug        string
	Description string
	InsertedAt  time.Time
}

type Comment struct {
	ID         int64
	AuthorID   int64
	StoryID    int64
	ParentID   *int64
	Body       string
	InsertedAt time.Time
}

// Star records a user starring a story or a comment. The row id doubles as
// the stable cursor key for stargazer connections.
type Star struct {
	ID         int64
	UserID     int64
	Target     Ref
	InsertedAt time.Time
}

type Bookmark struct {
	ID         int64
	UserID     int64
	Target     Ref
	InsertedAt time.Time
}

type Follow struct {
	ID         int64
	FollowerID int64
	Target     Ref
	InsertedAt time.Time
}

type Tag struct {
	ID         int64
	Title      string
	InsertedAt time.Time
}

type NotificationAction string

const (
	ActionStarred            NotificationAction = "starred"
	ActionCommented          NotificationAction = "commented"
	ActionFollowed           NotificationAction = "followed"
	ActionPublished          NotificationAction = "published"
	ActionAddedToPublication NotificationAction = "added_to_publication"
)

type Notification struct {
	ID         int64
	UserID     int64 // recipient
	ActorID    int64
	Action     NotificationAction
	Target     Ref
	ReadAt     *time.Time
	InsertedAt time.Time
}
