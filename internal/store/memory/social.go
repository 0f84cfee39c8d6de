package memory

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var (
	_ store.Stars     = (*Store)(nil)
	_ store.Bookmarks = (*Store)(nil)
	_ store.Follows   = (*Store)(nil)
)

func (s *Store) Star(ctx context.Context, userID int64, target model.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.stars {
		if st.UserID == userID && st.Target == target {
			return nil
		}
	}
	s.stars[s.nextSeq()] = &model.Star{
		ID:         s.nextID,
		UserID:     userID,
		Target:     target,
		InsertedAt: s.now(),
	}
	return nil
}

func (s *Store) Unstar(ctx context.Context, userID int64, target model.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range s.stars {
		if st.UserID == userID && st.Target == target {
			delete(s.stars, id)
		}
	}
	return nil
}

func (s *Store) HasStarred(ctx context.Context, userID int64, target model.Ref) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.stars {
		if st.UserID == userID && st.Target == target {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Stargazers(ctx context.Context, target model.Ref) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, st := range s.stars {
		if st.Target != target {
			continue
		}
		user := s.users[st.UserID]
		if user == nil || !user.Active() {
			continue
		}
		rows = append(rows, pagination.Row{Node: cloneUser(user), Key: st.ID, At: st.InsertedAt})
	}
	return sortRows(rows)
}

func (s *Store) Bookmark(ctx context.Context, userID int64, target model.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bookmarks {
		if b.UserID == userID && b.Target == target {
			return nil
		}
	}
	s.bookmarks[s.nextSeq()] = &model.Bookmark{
		ID:         s.nextID,
		UserID:     userID,
		Target:     target,
		InsertedAt: s.now(),
	}
	return nil
}

func (s *Store) RemoveBookmark(ctx context.Context, userID int64, target model.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range s.bookmarks {
		if b.UserID == userID && b.Target == target {
			delete(s.bookmarks, id)
		}
	}
	return nil
}

func (s *Store) HasBookmarked(ctx context.Context, userID int64, target model.Ref) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bookmarks {
		if b.UserID == userID && b.Target == target {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) BookmarksOf(ctx context.Context, userID int64) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, b := range s.bookmarks {
		if b.UserID != userID {
			continue
		}
		node := s.refNode(b.Target)
		if node == nil {
			continue
		}
		rows = append(rows, pagination.Row{Node: node, Key: b.ID, At: b.InsertedAt})
	}
	return sortRows(rows)
}

func (s *Store) Follow(ctx context.Context, followerID int64, target model.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.follows {
		if f.FollowerID == followerID && f.Target == target {
			return nil
		}
	}
	s.follows[s.nextSeq()] = &model.Follow{
		ID:         s.nextID,
		FollowerID: followerID,
		Target:     target,
		InsertedAt: s.now(),
	}
	return nil
}

func (s *Store) Unfollow(ctx context.Context, followerID int64, target model.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.follows {
		if f.FollowerID == followerID && f.Target == target {
			delete(s.follows, id)
		}
	}
	return nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID int64, target model.Ref) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.follows {
		if f.FollowerID == followerID && f.Target == target {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FollowersOf(ctx context.Context, target model.Ref) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, f := range s.follows {
		if f.Target != target {
			continue
		}
		user := s.users[f.FollowerID]
		if user == nil || !user.Active() {
			continue
		}
		rows = append(rows, pagination.Row{Node: cloneUser(user), Key: f.ID, At: f.InsertedAt})
	}
	return sortRows(rows)
}

func (s *Store) FolloweesOf(ctx context.Context, followerID int64) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, f := range s.follows {
		if f.FollowerID != followerID {
			continue
		}
		node := s.refNode(f.Target)
		if node == nil {
			continue
		}
		rows = append(rows, pagination.Row{Node: node, Key: f.ID, At: f.InsertedAt})
	}
	return sortRows(rows)
}

// refNode materializes a polymorphic association target. Must be called
// with at least the read lock held.
func (s *Store) refNode(ref model.Ref) interface{} {
	switch ref.Type {
	case model.NodeTypeUser:
		if u := s.users[ref.ID]; u != nil && u.Active() {
			return cloneUser(u)
		}
	case model.NodeTypeStory:
		if st := s.stories[ref.ID]; st != nil {
			return cloneStory(st)
		}
	case model.NodeTypeComment:
		if c := s.comments[ref.ID]; c != nil {
			return cloneComment(c)
		}
	case model.NodeTypePublication:
		if p := s.publications[ref.ID]; p != nil {
			return clonePublication(p)
		}
	}
	return nil
}
