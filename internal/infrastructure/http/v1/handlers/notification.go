package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/domain/notification"
)

// NotificationStore is the read/ack side of the notification outbox.
type NotificationStore interface {
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, recipientID string, ids []id.ID) (int64, error)
}

// NotificationHandler serves the acting user's notifications.
type NotificationHandler struct {
	*BaseHandler
	store NotificationStore
}

func NewNotificationHandler(base *BaseHandler, store NotificationStore) *NotificationHandler {
	return &NotificationHandler{BaseHandler: base, store: store}
}

// List returns the caller's notifications, newest first.
// GET /notifications?unread=true&limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	recipientID := h.GetUserID(c)
	unreadOnly := c.Query("unread") == "true"
	limit := h.ParseIntQuery(c, "limit", 50)

	items, err := h.store.ListByRecipient(c.Request.Context(), recipientID, unreadOnly, limit)
	if err != nil {
		h.Error(c, apperror.NewDatabaseError("list notifications", err))
		return
	}
	h.OK(c, gin.H{"notifications": items})
}

// MarkRead acknowledges the caller's notifications.
// POST /notifications/mark-read {"ids": [...]}
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req struct {
		IDs []id.ID `json:"ids" binding:"required,min=1"`
	}
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.store.MarkRead(c.Request.Context(), h.GetUserID(c), req.IDs)
	if err != nil {
		h.Error(c, apperror.NewDatabaseError("mark notifications read", err))
		return
	}
	h.OK(c, gin.H{"updated": updated})
}
