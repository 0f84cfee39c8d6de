package memory

import (
	"context"
	"time"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var _ store.Accounts = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, input store.NewUser) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Username == "" {
		return nil, store.Invalid("username", "can't be blank")
	}
	if input.Email == "" {
		return nil, store.Invalid("email", "can't be blank")
	}
	for _, u := range s.users {
		if u.Username == input.Username {
			return nil, store.Invalid("username", "has already been taken")
		}
		if u.Email == input.Email {
			return nil, store.Invalid("email", "has already been taken")
		}
	}

	user := &model.User{
		ID:         s.nextSeq(),
		Username:   input.Username,
		Email:      input.Email,
		Name:       input.Name,
		InsertedAt: s.now(),
	}
	s.users[user.ID] = user
	return cloneUser(user), nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.users[id]), nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) Users(ctx context.Context) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]pagination.Row, 0, len(s.users))
	for _, u := range s.users {
		if !u.Active() {
			continue
		}
		rows = append(rows, pagination.Row{Node: cloneUser(u), Key: u.ID})
	}
	return sortRows(rows)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, changes store.UserChanges) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[id]
	if user == nil {
		return nil, nil
	}
	if changes.Username != nil {
		if *changes.Username == "" {
			return nil, store.Invalid("username", "can't be blank")
		}
		for _, u := range s.users {
			if u.ID != id && u.Username == *changes.Username {
				return nil, store.Invalid("username", "has already been taken")
			}
		}
		user.Username = *changes.Username
	}
	if changes.Name != nil {
		user.Name = *changes.Name
	}
	if changes.Bio != nil {
		user.Bio = *changes.Bio
	}
	if changes.Website != nil {
		user.Website = *changes.Website
	}
	return cloneUser(user), nil
}

func (s *Store) DeactivateUser(ctx context.Context, id int64, at time.Time) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[id]
	if user == nil {
		return nil, nil
	}
	at = at.UTC()
	user.DeactivatedAt = &at
	return cloneUser(user), nil
}

func (s *Store) ReactivateUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user := s.users[id]; user != nil {
		user.DeactivatedAt = nil
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, id)
	for sid, st := range s.stories {
		if st.AuthorID == id {
			delete(s.stories, sid)
			delete(s.storyTags, sid)
		}
	}
	for cid, c := range s.comments {
		if c.AuthorID == id {
			delete(s.comments, cid)
		}
	}
	for starID, st := range s.stars {
		if st.UserID == id {
			delete(s.stars, starID)
		}
	}
	for bid, b := range s.bookmarks {
		if b.UserID == id {
			delete(s.bookmarks, bid)
		}
	}
	for fid, f := range s.follows {
		if f.FollowerID == id || (f.Target.Type == model.NodeTypeUser && f.Target.ID == id) {
			delete(s.follows, fid)
		}
	}
	for mid, m := range s.memberships {
		if m.MemberID == id {
			delete(s.memberships, mid)
		}
	}
	for nid, n := range s.notifications {
		if n.UserID == id {
			delete(s.notifications, nid)
		}
	}
	return nil
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.DeactivatedAt != nil {
		at := *u.DeactivatedAt
		out.DeactivatedAt = &at
	}
	return &out
}
