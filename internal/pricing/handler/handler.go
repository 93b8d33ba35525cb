// Package handler exposes the public pricing endpoints: the category catalog
// and a stateless estimate preview.
package handler

import (
	"net/http"
	"strconv"

	"urgent_dispatch_backend/internal/pricing/repository"
	"urgent_dispatch_backend/internal/pricing/service"
	"urgent_dispatch_backend/platform/apperr"
	"urgent_dispatch_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc  *service.Service
	repo *repository.Repository
}

func New(svc *service.Service, repo *repository.Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

// RegisterRoutes mounts the pricing routes on a public group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.ListCategories)
	rg.GET("/estimate", h.Estimate)
}

// ListCategories returns the bookable service categories.
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.repo.ListCategories(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"categories": categories})
}

// Estimate previews the price for a category and radius without creating a
// request.
func (h *Handler) Estimate(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		httpkit.Error(c, http.StatusBadRequest, "category is required", nil)
		return
	}

	radiusKM, err := strconv.ParseFloat(c.DefaultQuery("radiusKm", "5"), 64)
	if err != nil || radiusKM <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid radiusKm", nil)
		return
	}

	known, err := h.svc.KnownCategory(c.Request.Context(), category)
	if httpkit.HandleError(c, err) {
		return
	}
	if !known {
		httpkit.HandleError(c, apperr.Validation("unknown service category"))
		return
	}

	cents, err := h.svc.Estimate(c.Request.Context(), category, radiusKM)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"category":           category,
		"radiusKm":           radiusKM,
		"priceEstimateCents": cents,
	})
}
