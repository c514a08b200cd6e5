package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kildespor/kildespor/config"
	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/internal/searchindex"
	"github.com/kildespor/kildespor/internal/store"
	"github.com/kildespor/kildespor/internal/worker"
)

// workerCMD runs the ingest consumer and reindex scheduler standalone, for
// deployments that scale transcript processing separately from the API.
func workerCMD() *cobra.Command {
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "worker",
		Short: "Run transcript ingest worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			st, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return err
			}
			if err := cfg.Storage.Redis.Validate(); err != nil {
				return err
			}
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr(),
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
			}
			if err := cfg.Engine.Validate(); err != nil {
				return err
			}

			logger := log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
			registry := retrieval.NewRegistry(cfg.Engine, logger)
			defer registry.Shutdown()
			index := searchindex.NewManager(logger)

			reindexer := &worker.Reindexer{
				Store: st, Index: index, Rdb: rdb,
				Logger: logger, Cron: cfg.Index.RebuildCron,
			}
			go func() {
				if err := reindexer.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Printf("reindexer stopped: %v", err)
				}
			}()

			ingester := &worker.Ingester{
				Rdb: rdb, Store: st, Registry: registry, Index: index,
				Logger: logger, Cfg: cfg.Worker,
			}
			err = ingester.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return cmd
}
