// Package pagination converts ordered query sources into Relay-style
// connections: cursor-windowed edges, page info derived from a single
// over-fetched row, and a total count computed over the unwindowed source.
package pagination

import (
	"context"
	"time"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/relay"
)

// defaultLimit applies when neither first nor last is given.
const defaultLimit = 25

// maxLimit caps a single page regardless of what the client asks for.
const maxLimit = 100

// Row is one element of an ordered source: the node itself, the stable
// ordering key the cursor encodes, and association-scoped values carried
// along for edge augmentation.
type Row struct {
	Node interface{}
	Key  int64

	// set only by sources whose association rows carry extra edge data
	At   time.Time
	Role model.PublicationRole
}

// Window is the fetch request the engine hands to a source. Rows must come
// back in ascending key order; FromEnd sources fetch the trailing window
// (still returned ascending).
type Window struct {
	Limit     int
	AfterKey  *int64
	BeforeKey *int64
	FromEnd   bool
}

// Source is an ordered, filterable query handle produced by a domain
// context. Page and TotalCount need not be snapshot-consistent with each
// other.
type Source interface {
	Page(ctx context.Context, w Window) ([]Row, error)
	TotalCount(ctx context.Context) (int, error)
}

// Args are the raw connection arguments from the client. Forward and
// backward pagination are mutually exclusive per call.
type Args struct {
	First  *int
	After  *string
	Last   *int
	Before *string
}

type Edge struct {
	Node   interface{}
	Cursor string
	Row    Row
}

type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     *string
	EndCursor       *string
}

type Connection struct {
	Edges      []*Edge
	PageInfo   *PageInfo
	TotalCount int
}

// Paginate resolves one connection field. has_next_page/has_previous_page
// come from fetching one row beyond the requested limit; total count is a
// separate aggregate over the same filter, never windowed.
func Paginate(ctx context.Context, src Source, args Args) (*Connection, error) {
	if args.First != nil && args.Last != nil {
		return nil, gqlerrors.ConflictingPaginationArguments()
	}
	if args.First != nil && *args.First < 0 {
		return nil, gqlerrors.Validation(map[string][]string{"first": {"must not be negative"}})
	}
	if args.Last != nil && *args.Last < 0 {
		return nil, gqlerrors.Validation(map[string][]string{"last": {"must not be negative"}})
	}

	backward := args.Last != nil || (args.First == nil && args.Before != nil)

	limit := defaultLimit
	if args.First != nil {
		limit = *args.First
	} else if args.Last != nil {
		limit = *args.Last
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	w := Window{
		// one extra row decides the page-info flag in the fetch direction
		Limit:   limit + 1,
		FromEnd: backward,
	}
	if args.After != nil {
		key, err := relay.FromCursor(*args.After)
		if err != nil {
			return nil, err
		}
		w.AfterKey = &key
	}
	if args.Before != nil {
		key, err := relay.FromCursor(*args.Before)
		if err != nil {
			return nil, err
		}
		w.BeforeKey = &key
	}

	rows, err := src.Page(ctx, w)
	if err != nil {
		return nil, err
	}

	overflowed := len(rows) > limit
	if overflowed {
		if backward {
			// trailing window: the extra row is the oldest one fetched
			rows = rows[len(rows)-limit:]
		} else {
			rows = rows[:limit]
		}
	}

	total, err := src.TotalCount(ctx)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		Edges:      make([]*Edge, 0, len(rows)),
		PageInfo:   &PageInfo{},
		TotalCount: total,
	}
	for _, row := range rows {
		conn.Edges = append(conn.Edges, &Edge{
			Node:   row.Node,
			Cursor: relay.ToCursor(row.Key),
			Row:    row,
		})
	}
	if len(conn.Edges) > 0 {
		start := conn.Edges[0].Cursor
		end := conn.Edges[len(conn.Edges)-1].Cursor
		conn.PageInfo.StartCursor = &start
		conn.PageInfo.EndCursor = &end
	}
	if backward {
		conn.PageInfo.HasPreviousPage = overflowed
		conn.PageInfo.HasNextPage = args.Before != nil
	} else {
		conn.PageInfo.HasNextPage = overflowed
		conn.PageInfo.HasPreviousPage = args.After != nil
	}

	return conn, nil
}

// SliceSource adapts an in-memory, ascending-key row slice to Source.
// The memory store snapshots its filtered rows into one of these; it is
// also handy in tests.
type SliceSource []Row

var _ Source = (SliceSource)(nil)

func (s SliceSource) Page(ctx context.Context, w Window) ([]Row, error) {
	rows := s
	if w.AfterKey != nil {
		rows = rows.from(*w.AfterKey)
	}
	if w.BeforeKey != nil {
		rows = rows.until(*w.BeforeKey)
	}
	if w.Limit >= 0 && len(rows) > w.Limit {
		if w.FromEnd {
			rows = rows[len(rows)-w.Limit:]
		} else {
			rows = rows[:w.Limit]
		}
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out, nil
}

func (s SliceSource) TotalCount(ctx context.Context) (int, error) {
	return len(s), nil
}

// from returns the rows strictly after key.
func (s SliceSource) from(key int64) SliceSource {
	for i, row := range s {
		if row.Key > key {
			return s[i:]
		}
	}
	return nil
}

// until returns the rows strictly before key.
func (s SliceSource) until(key int64) SliceSource {
	for i, row := range s {
		if row.Key >= key {
			return s[:i]
		}
	}
	return s
}
