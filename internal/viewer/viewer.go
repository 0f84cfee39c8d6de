// Package viewer carries the acting principal through a request. Anonymous
// requests simply have no viewer in their context; nothing here is ever
// persisted or cached across requests.
package viewer

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
)

type contextKey struct{}

func FromContext(ctx context.Context) *model.User {
	v, _ := ctx.Value(contextKey{}).(*model.User)
	return v
}

func WithViewer(ctx context.Context, v *model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}
