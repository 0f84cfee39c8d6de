package memory

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var _ store.Comments = (*Store)(nil)

func (s *Store) CommentByID(ctx context.Context, id int64) (*model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneComment(s.comments[id]), nil
}

func (s *Store) CreateComment(ctx context.Context, input store.NewComment) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Body == "" {
		return nil, store.Invalid("body", "can't be blank")
	}
	if s.users[input.AuthorID] == nil {
		return nil, store.Invalid("author", "does not exist")
	}
	if s.stories[input.StoryID] == nil {
		return nil, store.Invalid("story", "does not exist")
	}
	if input.ParentID != nil {
		parent := s.comments[*input.ParentID]
		if parent == nil || parent.StoryID != input.StoryID {
			return nil, store.Invalid("parent", "does not belong to the story")
		}
	}

	c := &model.Comment{
		ID:         s.nextSeq(),
		AuthorID:   input.AuthorID,
		StoryID:    input.StoryID,
		ParentID:   input.ParentID,
		Body:       input.Body,
		InsertedAt: s.now(),
	}
	s.comments[c.ID] = c
	return cloneComment(c), nil
}

func (s *Store) UpdateComment(ctx context.Context, id int64, body string) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.comments[id]
	if c == nil {
		return nil, nil
	}
	if body == "" {
		return nil, store.Invalid("body", "can't be blank")
	}
	c.Body = body
	return cloneComment(c), nil
}

func (s *Store) StoryComments(ctx context.Context, storyID int64) pagination.Source {
	return s.commentSource(func(c *model.Comment) bool {
		return c.StoryID == storyID && c.ParentID == nil
	})
}

func (s *Store) Replies(ctx context.Context, commentID int64) pagination.Source {
	return s.commentSource(func(c *model.Comment) bool {
		return c.ParentID != nil && *c.ParentID == commentID
	})
}

// commentSource lists comments, skipping those whose author has been
// deactivated.
func (s *Store) commentSource(keep func(*model.Comment) bool) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, c := range s.comments {
		author := s.users[c.AuthorID]
		if author == nil || !author.Active() {
			continue
		}
		if keep(c) {
			rows = append(rows, pagination.Row{Node: cloneComment(c), Key: c.ID})
		}
	}
	return sortRows(rows)
}

func cloneComment(c *model.Comment) *model.Comment {
	if c == nil {
		return nil
	}
	out := *c
	if c.ParentID != nil {
		id := *c.ParentID
		out.ParentID = &id
	}
	return &out
}
