package reconcile

import (
	"context"
	"fmt"
	"time"

	"kitflow_backend/platform/config"
	"kitflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes queued reconciliation batches: it loads the batch document
// from object storage, runs the engine with progress reporting, and removes
// the document on success.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	engine   *Engine
	batches  *BatchStore
	progress *ProgressStore
	log      *logger.Logger
}

// NewWorker creates the background worker.
func NewWorker(cfg config.RedisConfig, engine *Engine, batches *BatchStore, progress *ProgressStore, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		engine:   engine,
		batches:  batches,
		progress: progress,
		log:      log,
	}

	mux.HandleFunc(TaskReconcileBatch, w.handleBatch)

	return w, nil
}

// Run serves tasks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("reconcile worker stopped", "error", err)
	}
}

func (w *Worker) handleBatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReconcileBatchPayload(task)
	if err != nil {
		return err
	}

	records, err := w.batches.Get(ctx, payload.BatchID)
	if err != nil {
		// A missing input document is batch-level: mark the batch failed so
		// progress readers see a terminal state, then let asynq retry.
		w.markFailed(ctx, payload.BatchID, payload.TotalRows)
		return fmt.Errorf("load batch document: %w", err)
	}

	if _, err := w.engine.Run(ctx, payload.BatchID, records, w.progress); err != nil {
		w.markFailed(ctx, payload.BatchID, len(records))
		return err
	}

	if err := w.batches.Delete(ctx, payload.BatchID); err != nil {
		w.log.Warn("failed to delete processed batch document", "batch_id", payload.BatchID, "error", err)
	}
	return nil
}

func (w *Worker) markFailed(ctx context.Context, batchID string, totalRows int) {
	err := w.progress.Write(ctx, Progress{
		BatchID:   batchID,
		Status:    "failed",
		TotalRows: totalRows,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		w.log.Warn("failed to mark batch failed", "batch_id", batchID, "error", err)
	}
}
