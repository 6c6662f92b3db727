// The worker binary processes queued reconciliation batches in the
// background. It shares the engine with the API but serves no HTTP routes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kitflow_backend/internal/events"
	"kitflow_backend/internal/leads/matching"
	leadrepo "kitflow_backend/internal/leads/repository"
	"kitflow_backend/internal/reconcile"
	"kitflow_backend/platform/config"
	"kitflow_backend/platform/db"
	"kitflow_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting reconcile worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	store := leadrepo.New(pool, cfg.GetStorageTimeout())
	matcher := matching.New(store)
	engine := reconcile.NewEngine(store, matcher, eventBus, log, cfg.GetReconcileMaxRowErrors())

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		panic("invalid REDIS_URL: " + err.Error())
	}
	progress := reconcile.NewProgressStore(redis.NewClient(opt), cfg.GetReconcileProgressTTL())

	batches, err := reconcile.NewBatchStore(cfg)
	if err != nil {
		log.Error("failed to initialize batch store", "error", err)
		panic("failed to initialize batch store: " + err.Error())
	}
	if err := batches.EnsureBucketExists(ctx); err != nil {
		log.Error("failed to ensure batch bucket exists", "error", err)
		panic("failed to ensure batch bucket exists: " + err.Error())
	}

	worker, err := reconcile.NewWorker(cfg, engine, batches, progress, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("reconcile worker stopped")
}
