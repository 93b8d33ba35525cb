// Package handler exposes the in-app notification feed.
package handler

import (
	"net/http"
	"strconv"

	"urgent_dispatch_backend/internal/notification/inapp"
	"urgent_dispatch_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	repo *inapp.Repository
}

func New(repo *inapp.Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts the notification feed on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/:id/read", h.MarkRead)
}

// List returns the caller's notifications, newest first. The recipient type
// defaults to client; professionals pass ?as=professional.
func (h *Handler) List(c *gin.Context) {
	recipientType := inapp.RecipientClient
	if c.Query("as") == inapp.RecipientProfessional {
		recipientType = inapp.RecipientProfessional
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.repo.ListForRecipient(
		c.Request.Context(), recipientType, httpkit.MustGetIdentity(c).ActorID(), limit,
	)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"notifications": notifications})
}

// MarkRead marks one of the caller's notifications as read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if err := h.repo.MarkRead(c.Request.Context(), id, httpkit.MustGetIdentity(c).ActorID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "read"})
}
