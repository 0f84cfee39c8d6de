package viewer

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parallel588/margaret/internal/log"
	"github.com/parallel588/margaret/internal/store"
)

// Authenticator resolves a bearer token into a viewer. The OAuth handshake
// that minted the token happens elsewhere; this layer only consumes the
// resulting identity.
type Authenticator struct {
	secret   []byte
	accounts store.Accounts
}

func NewAuthenticator(secret []byte, accounts store.Accounts) *Authenticator {
	return &Authenticator{secret: secret, accounts: accounts}
}

// Middleware attaches the viewer to the request context. Requests without a
// token, with an invalid token, or referencing a deactivated account proceed
// anonymously: per-field authorization decides what anonymous viewers see.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := a.subject(token)
		if err != nil {
			log.FromContext(ctx).V(1).Info("rejecting bearer token", "reason", err.Error())
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.accounts.UserByID(ctx, userID)
		if err != nil {
			log.FromContext(ctx).Error(err, "viewer lookup failed", "userID", userID)
			next.ServeHTTP(w, r)
			return
		}
		if user == nil || !user.Active() {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithViewer(ctx, user)))
	})
}

func (a *Authenticator) subject(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(claims.Subject, 10, 64)
}

// IssueToken mints a token for a user id. Used by the demo seed flow and by
// tests; real deployments receive tokens from the identity provider.
func (a *Authenticator) IssueToken(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
