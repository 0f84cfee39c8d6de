// Package resolver maps (object, field) pairs from the executor onto the
// domain contexts. Computed fields are dispatched explicitly per type;
// plain data fields fall through to a case-insensitive struct field lookup
// so entity structs stay free of wiring.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/parallel588/margaret/internal/authz"
	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/jobs"
	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/relay"
	"github.com/parallel588/margaret/internal/store"
	"github.com/parallel588/margaret/internal/viewer"
)

// defaultDeletionDelay is the grace period between account deactivation and
// the deletion job firing.
const defaultDeletionDelay = 30 * 24 * time.Hour

type Config struct {
	Store         *store.Store
	Scheduler     jobs.Scheduler
	DeletionDelay time.Duration
}

type Resolver struct {
	store         *store.Store
	authz         *authz.Authorizer
	scheduler     jobs.Scheduler
	deletionDelay time.Duration
	now           func() time.Time
}

func New(cfg Config) *Resolver {
	delay := cfg.DeletionDelay
	if delay == 0 {
		delay = defaultDeletionDelay
	}
	return &Resolver{
		store:         cfg.Store,
		authz:         authz.New(cfg.Store.Accounts, cfg.Store.Publications),
		scheduler:     cfg.Scheduler,
		deletionDelay: delay,
		now:           time.Now,
	}
}

// Resolve is the executor's FieldResolver. Entity types get an explicit
// dispatch function; connections, edges and page info resolve structurally.
func (r *Resolver) Resolve(ctx context.Context, object, field string, source interface{}, args map[string]interface{}) (interface{}, error) {
	if field == "id" {
		if n, ok := source.(model.Node); ok {
			return relay.NodeGlobalID(n), nil
		}
	}

	switch object {
	case "Query":
		return r.resolveQuery(ctx, field, args)
	case "Mutation":
		return r.resolveMutation(ctx, field, args)
	case "User":
		return r.resolveUser(ctx, field, source.(*model.User), args)
	case "Story":
		return r.resolveStory(ctx, field, source.(*model.Story), args)
	case "Comment":
		return r.resolveComment(ctx, field, source.(*model.Comment), args)
	case "Publication":
		return r.resolvePublication(ctx, field, source.(*model.Publication), args)
	case "PublicationInvitation":
		return r.resolveInvitation(ctx, field, source.(*model.PublicationInvitation), args)
	case "Collection":
		return r.resolveCollection(ctx, field, source.(*model.Collection), args)
	case "Tag":
		return r.resolveTag(ctx, field, source.(*model.Tag), args)
	case "Notification":
		return r.resolveNotification(ctx, field, source.(*model.Notification), args)
	}

	if edge, ok := source.(*pagination.Edge); ok {
		switch field {
		case "node":
			return edge.Node, nil
		case "cursor":
			return edge.Cursor, nil
		case "starredAt", "followedAt", "bookmarkedAt", "memberSince":
			return edge.Row.At, nil
		case "role":
			return enumOut(string(edge.Row.Role)), nil
		}
	}

	return reflectField(source, field)
}

// ResolveType names the concrete schema type behind an interface value.
// Every abstract position in the schema is a subset of Node, so the type
// tag of the entity is always the answer.
func (r *Resolver) ResolveType(value interface{}) string {
	if n, ok := value.(model.Node); ok {
		return string(n.NodeType())
	}
	return ""
}

func (r *Resolver) connection(ctx context.Context, src pagination.Source, args map[string]interface{}) (interface{}, error) {
	return pagination.Paginate(ctx, src, pagination.Args{
		First:  optInt(args, "first"),
		After:  optString(args, "after"),
		Last:   optInt(args, "last"),
		Before: optString(args, "before"),
	})
}

// reflectField resolves a plain data field against the source struct by
// case-insensitive name match.
func reflectField(source interface{}, field string) (interface{}, error) {
	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, gqlerrors.Internal(fmt.Errorf("cannot resolve field %q against %T", field, source))
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if strings.EqualFold(f.Name, field) {
			return rv.Field(i).Interface(), nil
		}
	}
	return nil, gqlerrors.Internal(fmt.Errorf("no resolver for field %q on %T", field, source))
}

// storeErr translates domain validation failures into the client-facing
// taxonomy; everything else passes through untouched.
func storeErr(err error) error {
	var vErr *store.ValidationError
	if errors.As(err, &vErr) {
		return gqlerrors.Validation(vErr.Fields)
	}
	return err
}

// enumOut converts an internal enum value to its schema spelling.
func enumOut(v string) string {
	return strings.ToUpper(v)
}

// enumIn converts a schema enum value to its internal spelling.
func enumIn(v string) string {
	return strings.ToLower(v)
}

func reqString(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func optString(args map[string]interface{}, name string) *string {
	if s, ok := args[name].(string); ok {
		return &s
	}
	return nil
}

func optInt(args map[string]interface{}, name string) *int {
	switch v := args[name].(type) {
	case int64:
		i := int(v)
		return &i
	case int:
		return &v
	case float64:
		i := int(v)
		return &i
	}
	return nil
}

func optBool(args map[string]interface{}, name string) bool {
	b, _ := args[name].(bool)
	return b
}

func stringList(args map[string]interface{}, name string) ([]string, bool) {
	raw, ok := args[name].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// decodeID decodes a mutation input global ID and checks it references the
// expected kind of node.
func decodeID(args map[string]interface{}, name string, want model.NodeType) (int64, error) {
	raw := reqString(args, name)
	ref, err := relay.FromGlobalID(raw)
	if err != nil {
		return 0, err
	}
	if ref.Type != want {
		return 0, gqlerrors.InvalidReference(raw)
	}
	return ref.ID, nil
}

// decodeRef decodes a polymorphic input global ID, returning the raw value
// for error reporting.
func decodeRef(args map[string]interface{}, name string) (model.Ref, string, error) {
	raw := reqString(args, name)
	ref, err := relay.FromGlobalID(raw)
	return ref, raw, err
}

func (r *Resolver) viewerOf(ctx context.Context) *model.User {
	return viewer.FromContext(ctx)
}

// storyFilter builds the list filter for the viewer: authenticated viewers are
// platform members and see members-audience stories in feeds.
func (r *Resolver) storyFilter(v *model.User) store.StoryFilter {
	return store.StoryFilter{MemberOnly: v != nil}
}

// userRef resolves a referenced user, hiding deactivated accounts from
// everyone but themselves.
func (r *Resolver) userRef(ctx context.Context, id int64) (*model.User, error) {
	u, err := r.store.Accounts.UserByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if !u.Active() {
		if v := r.viewerOf(ctx); v == nil || v.ID != id {
			return nil, nil
		}
	}
	return u, nil
}
