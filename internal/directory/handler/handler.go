package handler

import (
	"net/http"

	"urgent_dispatch_backend/internal/directory/service"
	"urgent_dispatch_backend/internal/directory/transport"
	"urgent_dispatch_backend/platform/httpkit"
	"urgent_dispatch_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler exposes the professional directory endpoints.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts directory routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Register)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/location", h.UpdateLocation)
	rg.PATCH("/:id/availability", h.SetAvailability)
}

// Register creates a new professional.
func (h *Handler) Register(c *gin.Context) {
	var req transport.RegisterProfessionalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, resp)
}

// Get returns a professional by ID.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// List returns professionals filtered by category.
func (h *Handler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context(), c.Query("category"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// UpdateLocation stores a professional's last-known coordinates.
func (h *Handler) UpdateLocation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.UpdateLocation(c.Request.Context(), id, req); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "updated"})
}

// SetAvailability flips a professional's availability.
func (h *Handler) SetAvailability(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.SetAvailability(c.Request.Context(), id, req.Available); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "updated"})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid professional id", nil)
		return uuid.Nil, false
	}
	return id, true
}
