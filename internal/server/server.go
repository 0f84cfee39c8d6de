// Package server assembles the HTTP surface: the GraphQL endpoint and its
// playground, health checking, and the shared middleware stack.
package server

import (
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/parallel588/margaret/internal/graph"
	"github.com/parallel588/margaret/internal/jobs"
	"github.com/parallel588/margaret/internal/log"
	"github.com/parallel588/margaret/internal/resolver"
	"github.com/parallel588/margaret/internal/store"
	"github.com/parallel588/margaret/internal/viewer"
)

type Options struct {
	Store         *store.Store
	Scheduler     jobs.Scheduler
	Logger        logr.Logger
	TokenSecret   []byte
	CORSOrigins   []string
	DeletionDelay time.Duration
}

func New(opts Options) http.Handler {
	r := resolver.New(resolver.Config{
		Store:         opts.Store,
		Scheduler:     opts.Scheduler,
		DeletionDelay: opts.DeletionDelay,
	})
	gqlServer := handler.NewDefaultServer(graph.NewExecutableSchema(r.Resolve, r.ResolveType))

	auth := viewer.NewAuthenticator(opts.TokenSecret, opts.Store.Accounts)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	router := chi.NewRouter()
	router.Use(requestLogger(opts.Logger))
	router.Use(corsHandler.Handler)
	router.Use(auth.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/", playground.Handler("Margaret", "/graphql"))
	router.Handle("/graphql", gqlServer)

	return router
}

// requestLogger tags every request with an id and puts a request-scoped
// logger into the context for the layers below.
func requestLogger(logger logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			requestID := uuid.NewString()
			reqLogger := logger.WithValues(
				"requestID", requestID,
				"method", req.Method,
				"path", req.URL.Path,
			)
			w.Header().Set("X-Request-Id", requestID)

			start := time.Now()
			next.ServeHTTP(w, req.WithContext(log.WithLogger(req.Context(), reqLogger)))
			reqLogger.V(1).Info("request served", "duration", time.Since(start))
		})
	}
}
