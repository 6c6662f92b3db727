package handler

import (
	"context"
	"net/http"
	"strconv"

	"kitflow_backend/internal/leads/assignment"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/internal/leads/service"
	"kitflow_backend/internal/leads/transport"
	"kitflow_backend/platform/httpkit"
	"kitflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc        *service.Service
	assignment *assignment.Service
}

func New(svc *service.Service, assign *assignment.Service) *Handler {
	return &Handler{svc: svc, assignment: assign}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/claim", h.Claim)
	rg.POST("/:id/claim-collections", h.ClaimCollections)
	rg.POST("/:id/contact-attempts", h.RecordContactAttempt)
	rg.POST("/:id/duplicate", h.MarkDuplicate)
	rg.GET("/:id/alerts", h.ListAlerts)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	detail, err := h.svc.GetDetail(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, detail)
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListLeadsParams{
		Limit:  50,
		Offset: 0,
	}

	if status := c.Query("status"); status != "" {
		params.Status = &status
	}
	if raw := c.Query("advocateId"); raw != "" {
		advocateID, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		params.AdvocateID = &advocateID
	}
	if c.Query("unassigned") == "true" {
		params.Unassigned = true
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			httpkit.Error(c, http.StatusBadRequest, "limit must be between 1 and 200", nil)
			return
		}
		params.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httpkit.Error(c, http.StatusBadRequest, "offset must be non-negative", nil)
			return
		}
		params.Offset = offset
	}

	leads, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leads": leads, "count": len(leads)})
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	resp, err := h.svc.Update(c.Request.Context(), id, req, identity.ActorID(), identity.Roles())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func (h *Handler) Claim(c *gin.Context) {
	h.claim(c, h.assignment.Claim)
}

func (h *Handler) ClaimCollections(c *gin.Context) {
	h.claim(c, h.assignment.ClaimCollections)
}

func (h *Handler) claim(c *gin.Context, do func(ctx context.Context, leadID, reviewerID uuid.UUID) (assignment.ClaimResult, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	result, err := do(c.Request.Context(), id, identity.ActorID())
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if result.Outcome == assignment.OutcomeAlreadyAssigned {
		status = http.StatusConflict
	}

	httpkit.JSON(c, status, transport.ClaimResponse{
		Outcome: string(result.Outcome),
		Lead:    transport.ToLeadResponse(result.Lead),
		OwnerID: result.OwnerID,
	})
}

func (h *Handler) RecordContactAttempt(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.RecordContactAttempt(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func (h *Handler) MarkDuplicate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := h.svc.MarkDuplicate(c.Request.Context(), id, identity.ActorID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leadId": id, "isDuplicate": true})
}

func (h *Handler) ListAlerts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	alerts, err := h.svc.AlertsForLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"alerts": alerts, "count": len(alerts)})
}
