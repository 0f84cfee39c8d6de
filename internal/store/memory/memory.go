// Package memory is the mutex-guarded in-process store. It backs tests and
// the demo server; the postgres package provides the durable equivalent.
// Query handles are snapshots: rows are filtered and sorted by ascending row
// id at call time, so a page and its total count observe the same moment,
// while two calls for the same connection may not.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	now    func() time.Time

	users         map[int64]*model.User
	stories       map[int64]*model.Story
	publications  map[int64]*model.Publication
	memberships   map[int64]*model.PublicationMembership
	invitations   map[int64]*model.PublicationInvitation
	collections   map[int64]*model.Collection
	comments      map[int64]*model.Comment
	stars         map[int64]*model.Star
	bookmarks     map[int64]*model.Bookmark
	follows       map[int64]*model.Follow
	tags          map[int64]*model.Tag
	storyTags     map[int64][]int64
	notifications map[int64]*model.Notification
}

func New() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[int64]*model.User),
		stories:       make(map[int64]*model.Story),
		publications:  make(map[int64]*model.Publication),
		memberships:   make(map[int64]*model.PublicationMembership),
		invitations:   make(map[int64]*model.PublicationInvitation),
		collections:   make(map[int64]*model.Collection),
		comments:      make(map[int64]*model.Comment),
		stars:         make(map[int64]*model.Star),
		bookmarks:     make(map[int64]*model.Bookmark),
		follows:       make(map[int64]*model.Follow),
		tags:          make(map[int64]*model.Tag),
		storyTags:     make(map[int64][]int64),
		notifications: make(map[int64]*model.Notification),
	}
}

// Contexts exposes the store as the bundle of domain-context interfaces.
func (s *Store) Contexts() *store.Store {
	return &store.Store{
		Accounts:      s,
		Stories:       s,
		Publications:  s,
		Comments:      s,
		Stars:         s,
		Bookmarks:     s,
		Follows:       s,
		Tags:          s,
		Notifications: s,
		Collections:   s,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// nextSeq must be called with the write lock held.
func (s *Store) nextSeq() int64 {
	s.nextID++
	return s.nextID
}

// sortRows orders a snapshot ascending by its stable keys.
func sortRows(rows []pagination.Row) pagination.SliceSource {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return pagination.SliceSource(rows)
}
