package viewer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/store"
	"github.com/parallel588/margaret/internal/store/memory"
)

func viewerSeenBy(t *testing.T, auth *Authenticator, authorization string) *model.User {
	t.Helper()

	var seen *model.User
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestMiddlewareResolvesViewer(t *testing.T) {
	s := memory.New()
	user, err := s.CreateUser(context.Background(), store.NewUser{Username: "ada", Email: "ada@example.com"})
	require.NoError(t, err)

	auth := NewAuthenticator([]byte("secret"), s)
	token, err := auth.IssueToken(user.ID, time.Hour)
	require.NoError(t, err)

	seen := viewerSeenBy(t, auth, "Bearer "+token)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
}

func TestMiddlewareAnonymousPaths(t *testing.T) {
	s := memory.New()
	user, err := s.CreateUser(context.Background(), store.NewUser{Username: "ada", Email: "ada@example.com"})
	require.NoError(t, err)

	auth := NewAuthenticator([]byte("secret"), s)

	t.Run("no header", func(t *testing.T) {
		assert.Nil(t, viewerSeenBy(t, auth, ""))
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Nil(t, viewerSeenBy(t, auth, "Bearer not.a.token"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthenticator([]byte("other"), s)
		token, err := other.IssueToken(user.ID, time.Hour)
		require.NoError(t, err)
		assert.Nil(t, viewerSeenBy(t, auth, "Bearer "+token))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := auth.IssueToken(user.ID, -time.Minute)
		require.NoError(t, err)
		assert.Nil(t, viewerSeenBy(t, auth, "Bearer "+token))
	})

	t.Run("deactivated account", func(t *testing.T) {
		_, err := s.DeactivateUser(context.Background(), user.ID, time.Now())
		require.NoError(t, err)
		token, err := auth.IssueToken(user.ID, time.Hour)
		require.NoError(t, err)
		assert.Nil(t, viewerSeenBy(t, auth, "Bearer "+token))
	})
}
