package handler

import (
	"net/http"

	"urgent_dispatch_backend/internal/dispatch/service"
	"urgent_dispatch_backend/internal/dispatch/transport"
	"urgent_dispatch_backend/platform/httpkit"
	"urgent_dispatch_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the professional-facing job routes. Authentication is
// the per-candidate access token in the URL; no session is involved.
type PublicHandler struct {
	svc *service.Service
	val *validator.Validator
}

func NewPublic(svc *service.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, val: val}
}

// RegisterRoutes mounts the token-scoped job routes on a public group.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:token", h.GetJob)
	rg.POST("/:token/accept", h.Accept)
	rg.POST("/:token/reject", h.Reject)
}

// GetJob returns the job view behind a candidate access token.
func (h *PublicHandler) GetJob(c *gin.Context) {
	resp, err := h.svc.GetJob(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// Accept enters the acceptance race. A lost race reports a conflict; the
// winner gets the assigned status back.
func (h *PublicHandler) Accept(c *gin.Context) {
	resp, err := h.svc.Accept(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// Reject declines the job. Declining an already resolved request still
// succeeds; the body reports the request's current status.
func (h *PublicHandler) Reject(c *gin.Context) {
	var req transport.RejectJobRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Reject(c.Request.Context(), c.Param("token"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}
