package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var _ store.Stories = (*Store)(nil)

var storyColumns = []string{"id", "author_id", "title", "body", "slug", "audience", "license", "published_at", "publication_id", "collection_id", "inserted_at"}

func scanStory(scan func(dest ...interface{}) error) (*model.Story, error) {
	var st model.Story
	err := scan(&st.ID, &st.AuthorID, &st.Title, &st.Body, &st.Slug, &st.Audience, &st.License,
		&st.PublishedAt, &st.PublicationID, &st.CollectionID, &st.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) storyBy(ctx context.Context, q sq.Sqlizer) (*model.Story, error) {
	query, args, err := psql.Select(storyColumns...).From("stories").Where(q).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	st, err := scanStory(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) StoryByID(ctx context.Context, id int64) (*model.Story, error) {
	return s.storyBy(ctx, sq.Eq{"id": id})
}

// StoryBySlug resolves by the identifying hash suffix, so stale slugs from
// before a title edit keep working.
func (s *Store) StoryBySlug(ctx context.Context, slug string) (*model.Story, error) {
	hash := store.HashOfSlug(slug)
	return s.storyBy(ctx, sq.Expr("(slug = ? OR slug LIKE '%-' || ?)", hash, hash))
}

func (s *Store) CreateStory(ctx context.Context, input store.NewStory) (*model.Story, error) {
	if input.Title == "" {
		return nil, store.Invalid("title", "can't be blank")
	}
	audience := input.Audience
	if audience == "" {
		audience = model.AudienceAll
	}
	license := input.License
	if license == "" {
		license = model.LicenseAllRightsReserved
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var publishedAt interface{}
	if input.PublishNow {
		publishedAt = s.now().UTC()
	}

	// the slug embeds the row id, so it is filled in after the insert
	query, args, err := psql.Insert("stories").
		Columns("author_id", "title", "body", "slug", "audience", "license", "published_at", "publication_id", "collection_id", "inserted_at").
		Values(input.AuthorID, input.Title, input.Body, "", audience, license, publishedAt, input.PublicationID, input.CollectionID, s.now()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, wrapError(err)
	}

	query, args, err = psql.Update("stories").
		Set("slug", store.SlugFor(input.Title, id)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(storyColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	st, err := scanStory(tx.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, err
	}

	if err := s.setStoryTags(ctx, tx, id, input.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) UpdateStory(ctx context.Context, id int64, changes store.StoryChanges) (*model.Story, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query, args, err := psql.Select(storyColumns...).From("stories").
		Where(sq.Eq{"id": id}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, err
	}
	st, err := scanStory(tx.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	qb := psql.Update("stories").Where(sq.Eq{"id": id})
	touched := false
	if changes.Title != nil {
		if *changes.Title == "" {
			return nil, store.Invalid("title", "can't be blank")
		}
		qb = qb.Set("title", *changes.Title).Set("slug", store.SlugFor(*changes.Title, id))
		touched = true
	}
	if changes.Body != nil {
		qb = qb.Set("body", *changes.Body)
		touched = true
	}
	if changes.Audience != nil {
		qb = qb.Set("audience", *changes.Audience)
		touched = true
	}
	if changes.License != nil {
		qb = qb.Set("license", *changes.License)
		touched = true
	}
	if changes.PublishNow && st.PublishedAt == nil {
		qb = qb.Set("published_at", s.now().UTC())
		touched = true
	}

	if touched {
		query, args, err = qb.Suffix("RETURNING " + strings.Join(storyColumns, ", ")).ToSql()
		if err != nil {
			return nil, err
		}
		st, err = scanStory(tx.QueryRowContext(ctx, query, args...).Scan)
		if err != nil {
			return nil, wrapError(err)
		}
	}
	if changes.Tags != nil {
		if err := s.setStoryTags(ctx, tx, id, *changes.Tags); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStory sweeps the polymorphic association rows by hand; comments and
// story_tags go with the ON DELETE CASCADE references.
func (s *Store) DeleteStory(ctx context.Context, id int64) error {
	commentIDs := psql.Select("id").From("comments").Where(sq.Eq{"story_id": id})
	for _, table := range []string{"stars", "bookmarks"} {
		if err := s.exec(ctx, psql.Delete(table).Where(sq.Eq{
			"target_type": model.NodeTypeStory,
			"target_id":   id,
		})); err != nil {
			return err
		}
		sub, args, err := commentIDs.ToSql()
		if err != nil {
			return err
		}
		if err := s.exec(ctx, psql.Delete(table).
			Where(sq.Eq{"target_type": model.NodeTypeComment}).
			Where("target_id IN ("+sub+")", args...)); err != nil {
			return err
		}
	}
	return s.exec(ctx, psql.Delete("stories").Where(sq.Eq{"id": id}))
}

// published matches stories whose publish time has arrived.
func (s *Store) published() sq.Sqlizer {
	return sq.LtOrEq{"published_at": s.now()}
}

// authorActive excludes stories whose author has been deactivated.
func authorActive() sq.Sqlizer {
	return sq.Expr("EXISTS (SELECT 1 FROM users au WHERE au.id = stories.author_id AND au.deactivated_at IS NULL)")
}

// audiencePreds applies the members-audience gate from the filter.
func audiencePreds(f store.StoryFilter) []sq.Sqlizer {
	if f.Drafts || f.MemberOnly {
		return nil
	}
	return []sq.Sqlizer{sq.NotEq{"audience": model.AudienceMembers}}
}

func (s *Store) storySource(preds ...sq.Sqlizer) pagination.Source {
	sel := psql.Select(storyColumns...).From("stories")
	count := psql.Select("COUNT(*)").From("stories")
	preds = append(preds, authorActive())
	for _, p := range preds {
		sel = sel.Where(p)
		count = count.Where(p)
	}
	return &sqlSource{
		db:     s.db,
		sel:    sel,
		count:  count,
		keyCol: "id",
		scan: func(rows *sql.Rows) (pagination.Row, error) {
			st, err := scanStory(rows.Scan)
			if err != nil {
				return pagination.Row{}, err
			}
			return pagination.Row{Node: st, Key: st.ID}, nil
		},
	}
}

func (s *Store) PublishedStories(ctx context.Context, f store.StoryFilter) pagination.Source {
	preds := append([]sq.Sqlizer{s.published(), sq.NotEq{"audience": model.AudienceUnlisted}}, audiencePreds(f)...)
	return s.storySource(preds...)
}

func (s *Store) StoriesByAuthor(ctx context.Context, authorID int64, f store.StoryFilter) pagination.Source {
	preds := append([]sq.Sqlizer{sq.Eq{"author_id": authorID}}, audiencePreds(f)...)
	if !f.Drafts {
		preds = append(preds, s.published())
	}
	return s.storySource(preds...)
}

func (s *Store) StoriesUnderPublication(ctx context.Context, publicationID int64, f store.StoryFilter) pagination.Source {
	preds := append([]sq.Sqlizer{sq.Eq{"publication_id": publicationID}, s.published()}, audiencePreds(f)...)
	return s.storySource(preds...)
}

func (s *Store) StoriesInCollection(ctx context.Context, collectionID int64, f store.StoryFilter) pagination.Source {
	preds := append([]sq.Sqlizer{sq.Eq{"collection_id": collectionID}, s.published()}, audiencePreds(f)...)
	return s.storySource(preds...)
}

func (s *Store) StoriesByTag(ctx context.Context, tagID int64, f store.StoryFilter) pagination.Source {
	sub, args, err := psql.Select("story_id").From("story_tags").Where(sq.Eq{"tag_id": tagID}).ToSql()
	if err != nil {
		return emptySource{}
	}
	preds := append([]sq.Sqlizer{sq.Expr("id IN ("+sub+")", args...), s.published()}, audiencePreds(f)...)
	return s.storySource(preds...)
}

func (s *Store) TagsOfStory(ctx context.Context, storyID int64) ([]*model.Tag, error) {
	query, args, err := psql.Select("t.id", "t.title", "t.inserted_at").
		From("tags t").
		Join("story_tags st ON st.tag_id = t.id").
		Where(sq.Eq{"st.story_id": storyID}).
		OrderBy("t.title ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Title, &t.InsertedAt); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// setStoryTags replaces the story's tag set, creating missing tags on the
// fly. Blank titles are dropped after slugifying.
func (s *Store) setStoryTags(ctx context.Context, tx *sql.Tx, storyID int64, titles []string) error {
	if titles == nil {
		return nil
	}
	query, args, err := psql.Delete("story_tags").Where(sq.Eq{"story_id": storyID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	seen := make(map[string]bool, len(titles))
	for _, raw := range titles {
		title := store.Slugify(raw)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true

		query, args, err := psql.Insert("tags").
			Columns("title", "inserted_at").
			Values(title, s.now()).
			Suffix("ON CONFLICT (title) DO UPDATE SET title = EXCLUDED.title RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		var tagID int64
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&tagID); err != nil {
			return err
		}

		query, args, err = psql.Insert("story_tags").
			Columns("story_id", "tag_id").
			Values(storyID, tagID).
			Suffix("ON CONFLICT DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}
