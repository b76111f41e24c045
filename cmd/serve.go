package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peyal-939/kobotest/internal/api"
	"github.com/peyal-939/kobotest/internal/kobo"
	"github.com/peyal-939/kobotest/internal/storage/memory"
	"github.com/peyal-939/kobotest/internal/storage/postgres"
	"github.com/peyal-939/kobotest/internal/submission"
	"github.com/peyal-939/kobotest/internal/syncer"
)

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Serves the submissions API, the webhook receiver, and the web pages.
Uses Postgres when db.dsn is configured and an in-memory store otherwise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rt)
		},
	}
}

func runServe(parent context.Context, rt *runtime) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, rt)
	if err != nil {
		return err
	}
	defer closeStore()

	runner, err := buildSyncRunner(rt, store)
	if err != nil {
		return err
	}

	server, err := api.NewServer(store, runner, rt.cfg, rt.log)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("server listening", zap.Int("port", rt.cfg.Server.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		rt.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// openStore selects Postgres when a DSN is configured and falls back to the
// in-memory store for development.
func openStore(ctx context.Context, rt *runtime) (submission.Store, func(), error) {
	if rt.cfg.DB.DSN == "" {
		rt.log.Warn("db.dsn not configured; using in-memory store, data will not survive restarts")
		return memory.NewStore(), func() {}, nil
	}
	store, err := postgres.NewStore(ctx, postgres.StoreConfig{
		DSN:      rt.cfg.DB.DSN,
		MaxConns: rt.cfg.DB.MaxConns,
		MinConns: rt.cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// buildSyncRunner returns nil when no provider token is configured; the
// server then reports the gap instead of attempting to sync.
func buildSyncRunner(rt *runtime, store submission.Store) (api.SyncRunner, error) {
	if rt.cfg.Kobo.Token == "" {
		rt.log.Warn("kobo.token not configured; sync is disabled")
		return nil, nil
	}
	client, err := kobo.NewClient(kobo.ClientConfig{
		Token:   rt.cfg.Kobo.Token,
		BaseURL: rt.cfg.Kobo.BaseURL,
		Timeout: rt.cfg.KoboTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init kobo client: %w", err)
	}
	return syncer.New(client, store, rt.log, rt.cfg.Kobo.FormUID, rt.cfg.Kobo.PageSize), nil
}
