package reconcile

import (
	"errors"
	"net/http"
	"time"

	"kitflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// SubmitBatchRequest carries decoded field maps from the ingestion surface.
// No file parsing happens here; callers decode CSV/XLSX upstream.
type SubmitBatchRequest struct {
	Records []Record `json:"records"`
}

// SubmitBatchResponse reports how a batch was accepted. Report is present
// for synchronous runs; queued batches expose progress instead.
type SubmitBatchResponse struct {
	BatchID   string  `json:"batchId"`
	Status    string  `json:"status"` // completed or queued
	TotalRows int     `json:"totalRows"`
	Report    *Report `json:"report,omitempty"`
}

// Handler serves the reconciliation HTTP surface.
type Handler struct {
	engine    *Engine
	progress  *ProgressStore
	batches   *BatchStore
	queue     *Client
	syncLimit int
}

// NewHandler creates the handler. progress, batches, and queue may be nil
// when redis/MinIO are not configured; large batches are then rejected.
func NewHandler(engine *Engine, progress *ProgressStore, batches *BatchStore, queue *Client, syncLimit int) *Handler {
	return &Handler{engine: engine, progress: progress, batches: batches, queue: queue, syncLimit: syncLimit}
}

// RegisterRoutes mounts the reconciliation routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.SubmitBatch)
	rg.GET("/batches/:id/progress", h.GetProgress)
}

func (h *Handler) SubmitBatch(c *gin.Context) {
	var req SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if len(req.Records) == 0 {
		httpkit.Error(c, http.StatusBadRequest, "batch has no records", nil)
		return
	}

	batchID := uuid.New().String()

	if len(req.Records) <= h.syncLimit {
		report, err := h.engine.Run(c.Request.Context(), batchID, req.Records, h.sink())
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, SubmitBatchResponse{
			BatchID:   batchID,
			Status:    "completed",
			TotalRows: len(req.Records),
			Report:    &report,
		})
		return
	}

	if h.batches == nil || h.queue == nil {
		httpkit.Error(c, http.StatusBadRequest,
			"batch exceeds the synchronous limit and background processing is not configured", nil)
		return
	}

	ctx := c.Request.Context()
	if err := h.batches.Put(ctx, batchID, req.Records); httpkit.HandleError(c, err) {
		return
	}
	if h.progress != nil {
		queued := Progress{BatchID: batchID, Status: "queued", TotalRows: len(req.Records), UpdatedAt: time.Now().UTC()}
		if err := h.progress.Write(ctx, queued); err != nil {
			httpkit.HandleError(c, err)
			return
		}
	}
	if err := h.queue.EnqueueBatch(ctx, ReconcileBatchPayload{BatchID: batchID, TotalRows: len(req.Records)}); httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusAccepted, SubmitBatchResponse{
		BatchID:   batchID,
		Status:    "queued",
		TotalRows: len(req.Records),
	})
}

func (h *Handler) GetProgress(c *gin.Context) {
	batchID := c.Param("id")
	if _, err := uuid.Parse(batchID); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if h.progress == nil {
		httpkit.Error(c, http.StatusNotFound, "progress tracking is not configured", nil)
		return
	}

	p, err := h.progress.Get(c.Request.Context(), batchID)
	if errors.Is(err, ErrProgressNotFound) {
		httpkit.Error(c, http.StatusNotFound, "batch progress not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, p)
}

// sink adapts the optional progress store for synchronous runs.
func (h *Handler) sink() ProgressSink {
	if h.progress == nil {
		return nil
	}
	return h.progress
}
