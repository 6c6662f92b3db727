package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kitflow_backend/internal/alerts"
	"kitflow_backend/internal/events"
	apphttp "kitflow_backend/internal/http"
	"kitflow_backend/internal/http/router"
	"kitflow_backend/internal/leads"
	"kitflow_backend/internal/reconcile"
	"kitflow_backend/migrations"
	"kitflow_backend/platform/config"
	"kitflow_backend/platform/db"
	"kitflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	registerEventLoggers(eventBus, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	alertsModule := alerts.NewModule(pool, eventBus, cfg, log)
	leadsModule := leads.NewModule(pool, alertsModule.Service(), eventBus, cfg, log)

	reconcileModule, err := reconcile.NewModule(pool, eventBus, cfg, log)
	if err != nil {
		log.Error("failed to initialize reconcile module", "error", err)
		panic("failed to initialize reconcile module: " + err.Error())
	}
	defer reconcileModule.Close()

	if err := withRetry(ctx, log, "ensure batch bucket", 5, 2*time.Second, func() error {
		return reconcileModule.EnsureBuckets(ctx)
	}); err != nil {
		log.Error("failed to ensure batch bucket exists", "error", err)
		panic("failed to ensure batch bucket exists: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			alertsModule,
			reconcileModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// registerEventLoggers subscribes a logging handler per domain event. The
// delivery layer that would push these to connected clients lives outside
// this service.
func registerEventLoggers(bus events.Bus, log *logger.Logger) {
	bus.Subscribe(events.LeadClaimed{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.LeadClaimed); ok {
			log.Info("lead claimed", "lead_id", e.LeadID, "reviewer_id", e.ReviewerID, "phase", e.Phase)
		}
		return nil
	}))
	bus.Subscribe(events.AlertCreated{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.AlertCreated); ok {
			log.Info("alert created", "alert_id", e.AlertID, "lead_id", e.LeadID, "type", e.Type)
		}
		return nil
	}))
	bus.Subscribe(events.BatchCompleted{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.BatchCompleted); ok {
			log.Info("reconcile batch completed", "batch_id", e.BatchID,
				"processed", e.Processed, "created", e.Created, "updated", e.Updated, "errored", e.Errored)
		}
		return nil
	}))
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
