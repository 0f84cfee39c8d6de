package memory

import (
	"context"
	"time"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var (
	_ store.Tags          = (*Store)(nil)
	_ store.Notifications = (*Store)(nil)
	_ store.Collections   = (*Store)(nil)
)

func (s *Store) TagByID(ctx context.Context, id int64) (*model.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tag := s.tags[id]; tag != nil {
		out := *tag
		return &out, nil
	}
	return nil, nil
}

func (s *Store) TagByTitle(ctx context.Context, title string) (*model.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tag := range s.tags {
		if tag.Title == title {
			out := *tag
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) NotificationByID(ctx context.Context, id int64) (*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotification(s.notifications[id]), nil
}

func (s *Store) NotificationsOf(ctx context.Context, userID int64) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, n := range s.notifications {
		if n.UserID == userID {
			rows = append(rows, pagination.Row{Node: cloneNotification(n), Key: n.ID})
		}
	}
	return sortRows(rows)
}

func (s *Store) Notify(ctx context.Context, input store.NewNotification) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users[input.UserID] == nil {
		return nil, store.Invalid("user", "does not exist")
	}
	n := &model.Notification{
		ID:         s.nextSeq(),
		UserID:     input.UserID,
		ActorID:    input.ActorID,
		Action:     input.Action,
		Target:     input.Target,
		InsertedAt: s.now(),
	}
	s.notifications[n.ID] = n
	return cloneNotification(n), nil
}

func (s *Store) MarkRead(ctx context.Context, id int64, at time.Time) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.notifications[id]
	if n == nil {
		return nil, nil
	}
	if n.ReadAt == nil {
		at = at.UTC()
		n.ReadAt = &at
	}
	return cloneNotification(n), nil
}

func (s *Store) CollectionByID(ctx context.Context, id int64) (*model.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.collections[id]; c != nil {
		out := *c
		return &out, nil
	}
	return nil, nil
}

func (s *Store) CollectionBySlug(ctx context.Context, slug string) (*model.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := store.HashOfSlug(slug)
	for _, c := range s.collections {
		if store.HashOfSlug(c.Slug) == hash {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateCollection(ctx context.Context, input store.NewCollection) (*model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Title == "" {
		return nil, store.Invalid("title", "can't be blank")
	}
	if s.users[input.AuthorID] == nil {
		return nil, store.Invalid("author", "does not exist")
	}
	c := &model.Collection{
		ID:          s.nextSeq(),
		AuthorID:    input.AuthorID,
		Title:       input.Title,
		Description: input.Description,
		InsertedAt:  s.now(),
	}
	c.Slug = store.SlugFor(c.Title, c.ID)
	s.collections[c.ID] = c
	out := *c
	return &out, nil
}

func cloneNotification(n *model.Notification) *model.Notification {
	if n == nil {
		return nil
	}
	out := *n
	if n.ReadAt != nil {
		at := *n.ReadAt
		out.ReadAt = &at
	}
	return &out
}
