package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/parallel588/margaret/internal/config"
	"github.com/parallel588/margaret/internal/jobs"
	"github.com/parallel588/margaret/internal/server"
	"github.com/parallel588/margaret/internal/store"
	"github.com/parallel588/margaret/internal/store/memory"
	"github.com/parallel588/margaret/internal/store/postgres"
)

func serveCmd(configPath *string, verbosity *int) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*verbosity)
			ctx := logr.NewContext(cmd.Context(), logger)
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(ctx, logger, cfg)
		},
	}
}

func serve(ctx context.Context, logger logr.Logger, cfg *config.Config) error {
	contexts, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := jobs.NewRunner(ctx)
	defer runner.Close()
	runner.Handle(jobs.KindAccountDeletion, jobs.AccountDeletion(contexts.Accounts))

	handler := server.New(server.Options{
		Store:         contexts,
		Scheduler:     runner,
		Logger:        logger,
		TokenSecret:   []byte(cfg.Auth.TokenSecret),
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		DeletionDelay: cfg.Accounts.DeletionDelay,
	})

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openStore selects the backend by configuration: a postgres URI when one
// is set, the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, func(), error) {
	if cfg.Database.URI == "" {
		return memory.New().Contexts(), func() {}, nil
	}
	pg, err := postgres.Open(ctx, cfg.Database.URI)
	if err != nil {
		return nil, nil, err
	}
	return pg.Contexts(), func() { _ = pg.Close() }, nil
}
