package handler

import (
	"net/http"

	"kitflow_backend/internal/alerts/service"
	"kitflow_backend/internal/alerts/transport"
	"kitflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/acknowledge", h.Acknowledge)
}

func (h *Handler) Acknowledge(c *gin.Context) {
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

	alert, err := h.svc.Acknowledge(c.Request.Context(), id, identity.ActorID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToAlertResponse(alert))
}
