package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catalogsync/internal/api"
	"catalogsync/internal/db"
	"catalogsync/internal/lock"
	"catalogsync/internal/observability"
	"catalogsync/internal/repository"
	"catalogsync/internal/scheduler"
	"catalogsync/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync schedule and the products HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log := a.cfg, a.logger

			pool, err := db.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()
			store := &repository.ProductRepository{DB: pool}

			observability.Start(cfg.MetricsPort, log.Named("metrics"))

			engine := syncer.NewEngine(a.source(ctx), store,
				syncer.WithLogger(log.Named("syncer")),
				syncer.WithCallTimeout(cfg.CallTimeout))

			opts := []scheduler.Option{scheduler.WithLogger(log.Named("scheduler"))}
			if cfg.RedisURL != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
				defer client.Close()
				locker := lock.NewRedisLocker(client, cfg.LockTTL)
				locker.Logger = log.Named("lock")
				opts = append(opts, scheduler.WithLocker(locker))
			}
			sched, err := scheduler.New(engine, cfg.SyncSchedule, opts...)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + cfg.HTTPPort,
				Handler:           api.NewRouter(store, sched, log.Named("api")),
				ReadHeaderTimeout: 10 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				log.Info("products api listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				log.Info("sync scheduler started", zap.String("schedule", cfg.SyncSchedule), zap.String("source", cfg.SheetSource))
				sched.Start(ctx)
			}()

			select {
			case <-ctx.Done():
			case err = <-serveErr:
				log.Error("products api stopped", zap.Error(err))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			if err == nil {
				<-schedDone
			}
			return err
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, a.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			engine := syncer.NewEngine(a.source(ctx), &repository.ProductRepository{DB: pool},
				syncer.WithLogger(a.logger.Named("syncer")),
				syncer.WithCallTimeout(a.cfg.CallTimeout))

			res, err := engine.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d products, %d created, %d updated, %d unchanged, %d rejected, %d failed\n",
				res.RunID, res.Products, res.Created, res.Updated, res.Unchanged, res.Rejected+res.Duplicates, len(res.Failures))
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d products failed to sync", len(res.Failures))
			}
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the products table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := db.New(a.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer conn.Close()

			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			a.logger.Info("schema applied")
			return nil
		},
	}
}
