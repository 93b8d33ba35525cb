// Package handler exposes the urgent-request HTTP endpoints: the
// client-facing request lifecycle and the professional-facing job routes.
package handler

import (
	"net/http"

	"urgent_dispatch_backend/internal/dispatch/service"
	"urgent_dispatch_backend/internal/dispatch/transport"
	"urgent_dispatch_backend/platform/httpkit"
	"urgent_dispatch_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler exposes the client-facing urgent-request endpoints.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the request lifecycle routes on an authenticated
// group. Creation additionally passes through the per-client rate limiter.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, createLimiter *httpkit.CreateRateLimiter) {
	rg.POST("", createLimiter.RateLimit(), h.Create)
	rg.GET("/:id", h.GetStatus)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/complete", h.Complete)
}

// Create submits a new urgent request and runs the first dispatch round.
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.CreateRequest(c.Request.Context(), httpkit.MustGetIdentity(c).ActorID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, resp)
}

// GetStatus is the client's polling endpoint: current state, assignment and
// the lifecycle history.
func (h *Handler) GetStatus(c *gin.Context) {
	id, ok := parseRequestID(c)
	if !ok {
		return
	}

	resp, err := h.svc.GetStatus(c.Request.Context(), httpkit.MustGetIdentity(c).ActorID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// Cancel cancels a pending request.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseRequestID(c)
	if !ok {
		return
	}

	err := h.svc.Cancel(c.Request.Context(), httpkit.MustGetIdentity(c).ActorID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "cancelled"})
}

// Complete closes an assigned request, optionally recording a rating.
func (h *Handler) Complete(c *gin.Context) {
	id, ok := parseRequestID(c)
	if !ok {
		return
	}

	var req transport.CompleteRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err := h.svc.Complete(c.Request.Context(), httpkit.MustGetIdentity(c).ActorID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "completed"})
}

func parseRequestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request id", nil)
		return uuid.Nil, false
	}
	return id, true
}
