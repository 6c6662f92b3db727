package reconcile

import (
	"context"

	"kitflow_backend/internal/events"
	apphttp "kitflow_backend/internal/http"
	"kitflow_backend/internal/leads/matching"
	leadrepo "kitflow_backend/internal/leads/repository"
	"kitflow_backend/platform/config"
	"kitflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the reconciliation bounded context module implementing
// http.Module. Redis and MinIO are optional: without them the module still
// serves synchronous batches and rejects larger ones.
type Module struct {
	handler *Handler
	engine  *Engine
	queue   *Client
	batches *BatchStore
	log     *logger.Logger
}

// ModuleConfig combines the config interfaces the module needs.
type ModuleConfig interface {
	config.DatabaseConfig
	config.RedisConfig
	config.BatchStoreConfig
	config.ReconcileConfig
}

// NewModule creates and initializes the reconciliation module.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, cfg ModuleConfig, log *logger.Logger) (*Module, error) {
	store := leadrepo.New(pool, cfg.GetStorageTimeout())
	matcher := matching.New(store)
	engine := NewEngine(store, matcher, eventBus, log, cfg.GetReconcileMaxRowErrors())

	var progress *ProgressStore
	if cfg.GetRedisURL() != "" {
		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			return nil, err
		}
		progress = NewProgressStore(redis.NewClient(opt), cfg.GetReconcileProgressTTL())
	}

	var batches *BatchStore
	if cfg.IsMinIOEnabled() {
		bs, err := NewBatchStore(cfg)
		if err != nil {
			return nil, err
		}
		batches = bs
	}

	var queue *Client
	if cfg.GetRedisURL() != "" && batches != nil {
		q, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		queue = q
	}

	return &Module{
		handler: NewHandler(engine, progress, batches, queue, cfg.GetReconcileSyncLimit()),
		engine:  engine,
		queue:   queue,
		batches: batches,
		log:     log,
	}, nil
}

// EnsureBuckets creates the batch-documents bucket when object storage is
// configured.
func (m *Module) EnsureBuckets(ctx context.Context) error {
	if m.batches == nil {
		return nil
	}
	return m.batches.EnsureBucketExists(ctx)
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reconcile"
}

// Engine returns the reconciliation engine for the worker binary.
func (m *Module) Engine() *Engine {
	return m.engine
}

// Close releases the task queue connection.
func (m *Module) Close() error {
	return m.queue.Close()
}

// RegisterRoutes mounts reconciliation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	reconcileGroup := ctx.Protected.Group("/reconcile")
	m.handler.RegisterRoutes(reconcileGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
