package memory

import (
	"context"
	"sort"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var _ store.Stories = (*Store)(nil)

func (s *Store) StoryByID(ctx context.Context, id int64) (*model.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStory(s.stories[id]), nil
}

func (s *Store) StoryBySlug(ctx context.Context, slug string) (*model.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := store.HashOfSlug(slug)
	for _, st := range s.stories {
		if store.HashOfSlug(st.Slug) == hash {
			return cloneStory(st), nil
		}
	}
	return nil, nil
}

func (s *Store) CreateStory(ctx context.Context, input store.NewStory) (*model.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Title == "" {
		return nil, store.Invalid("title", "can't be blank")
	}
	if s.users[input.AuthorID] == nil {
		return nil, store.Invalid("author", "does not exist")
	}
	if input.PublicationID != nil && s.publications[*input.PublicationID] == nil {
		return nil, store.Invalid("publication", "does not exist")
	}
	if input.CollectionID != nil && s.collections[*input.CollectionID] == nil {
		return nil, store.Invalid("collection", "does not exist")
	}

	story := &model.Story{
		ID:            s.nextSeq(),
		AuthorID:      input.AuthorID,
		Title:         input.Title,
		Body:          input.Body,
		Audience:      input.Audience,
		License:       input.License,
		PublicationID: input.PublicationID,
		CollectionID:  input.CollectionID,
		InsertedAt:    s.now(),
	}
	if story.Audience == "" {
		story.Audience = model.AudienceAll
	}
	if story.License == "" {
		story.License = model.LicenseAllRightsReserved
	}
	story.Slug = store.SlugFor(story.Title, story.ID)
	if input.PublishNow {
		at := s.now().UTC()
		story.PublishedAt = &at
	}
	s.stories[story.ID] = story
	s.setStoryTags(story.ID, input.Tags)
	return cloneStory(story), nil
}

func (s *Store) UpdateStory(ctx context.Context, id int64, changes store.StoryChanges) (*model.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	story := s.stories[id]
	if story == nil {
		return nil, nil
	}
	if changes.Title != nil {
		if *changes.Title == "" {
			return nil, store.Invalid("title", "can't be blank")
		}
		story.Title = *changes.Title
		// the hash suffix keeps previously shared links working
		story.Slug = store.SlugFor(story.Title, story.ID)
	}
	if changes.Body != nil {
		story.Body = *changes.Body
	}
	if changes.Audience != nil {
		story.Audience = *changes.Audience
	}
	if changes.License != nil {
		story.License = *changes.License
	}
	if changes.PublishNow && story.PublishedAt == nil {
		at := s.now().UTC()
		story.PublishedAt = &at
	}
	if changes.Tags != nil {
		s.setStoryTags(story.ID, *changes.Tags)
	}
	return cloneStory(story), nil
}

func (s *Store) DeleteStory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.stories, id)
	delete(s.storyTags, id)
	for cid, c := range s.comments {
		if c.StoryID == id {
			delete(s.comments, cid)
		}
	}
	ref := model.Ref{Type: model.NodeTypeStory, ID: id}
	for starID, st := range s.stars {
		if st.Target == ref {
			delete(s.stars, starID)
		}
	}
	for bid, b := range s.bookmarks {
		if b.Target == ref {
			delete(s.bookmarks, bid)
		}
	}
	return nil
}

func (s *Store) PublishedStories(ctx context.Context, f store.StoryFilter) pagination.Source {
	return s.storySource(func(st *model.Story) bool {
		if !st.Published(s.now()) || st.Audience == model.AudienceUnlisted {
			return false
		}
		return audienceAdmitted(st, f)
	})
}

func (s *Store) StoriesByAuthor(ctx context.Context, authorID int64, f store.StoryFilter) pagination.Source {
	return s.storySource(func(st *model.Story) bool {
		if st.AuthorID != authorID {
			return false
		}
		if !f.Drafts && !st.Published(s.now()) {
			return false
		}
		return audienceAdmitted(st, f)
	})
}

func (s *Store) StoriesUnderPublication(ctx context.Context, publicationID int64, f store.StoryFilter) pagination.Source {
	return s.storySource(func(st *model.Story) bool {
		return st.PublicationID != nil && *st.PublicationID == publicationID &&
			st.Published(s.now()) && audienceAdmitted(st, f)
	})
}

func (s *Store) StoriesInCollection(ctx context.Context, collectionID int64, f store.StoryFilter) pagination.Source {
	return s.storySource(func(st *model.Story) bool {
		return st.CollectionID != nil && *st.CollectionID == collectionID &&
			st.Published(s.now()) && audienceAdmitted(st, f)
	})
}

func (s *Store) StoriesByTag(ctx context.Context, tagID int64, f store.StoryFilter) pagination.Source {
	return s.storySource(func(st *model.Story) bool {
		if !st.Published(s.now()) || !audienceAdmitted(st, f) {
			return false
		}
		for _, id := range s.storyTags[st.ID] {
			if id == tagID {
				return true
			}
		}
		return false
	})
}

// audienceAdmitted applies the members-audience gate; drafts on the
// author's own list stay visible regardless of audience.
func audienceAdmitted(st *model.Story, f store.StoryFilter) bool {
	if f.Drafts || f.MemberOnly {
		return true
	}
	return st.Audience != model.AudienceMembers
}

func (s *Store) TagsOfStory(ctx context.Context, storyID int64) ([]*model.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.storyTags[storyID]
	tags := make([]*model.Tag, 0, len(ids))
	for _, id := range ids {
		if tag := s.tags[id]; tag != nil {
			out := *tag
			tags = append(tags, &out)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Title < tags[j].Title })
	return tags, nil
}

// storySource lists stories, always skipping those whose author is
// deactivated: their work disappears with them.
func (s *Store) storySource(keep func(*model.Story) bool) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, st := range s.stories {
		author := s.users[st.AuthorID]
		if author == nil || !author.Active() {
			continue
		}
		if keep(st) {
			rows = append(rows, pagination.Row{Node: cloneStory(st), Key: st.ID})
		}
	}
	return sortRows(rows)
}

// setStoryTags must be called with the write lock held. Unknown titles are
// created on the fly, matching how the publishing flow treats tags.
func (s *Store) setStoryTags(storyID int64, titles []string) {
	if titles == nil {
		return
	}
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		title = store.Slugify(title)
		if title == "" {
			continue
		}
		var tag *model.Tag
		for _, t := range s.tags {
			if t.Title == title {
				tag = t
				break
			}
		}
		if tag == nil {
			tag = &model.Tag{ID: s.nextSeq(), Title: title, InsertedAt: s.now()}
			s.tags[tag.ID] = tag
		}
		ids = append(ids, tag.ID)
	}
	s.storyTags[storyID] = ids
}

func cloneStory(st *model.Story) *model.Story {
	if st == nil {
		return nil
	}
	out := *st
	if st.PublishedAt != nil {
		at := *st.PublishedAt
		out.PublishedAt = &at
	}
	if st.PublicationID != nil {
		id := *st.PublicationID
		out.PublicationID = &id
	}
	if st.CollectionID != nil {
		id := *st.CollectionID
		out.CollectionID = &id
	}
	return &out
}
