package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskhub/internal/middleware"
	"github.com/charlesng35/taskhub/internal/services"
	"github.com/charlesng35/taskhub/pkg/errors"
	"github.com/charlesng35/taskhub/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	store     *services.NotificationStore
	notifier  services.Notifier
	listLimit int
}

// NewNotificationHandler constructs a notification handler. listLimit bounds the list endpoint.
func NewNotificationHandler(store *services.NotificationStore, notifier services.Notifier, listLimit int) (*NotificationHandler, error) {
	if store == nil || notifier == nil {
		return nil, errors.New("NOTIFICATION_HANDLER", "notification store and notifier are required", http.StatusInternalServerError)
	}
	if listLimit <= 0 || listLimit > services.MaxNotificationLimit {
		listLimit = services.DefaultNotificationLimit
	}
	return &NotificationHandler{store: store, notifier: notifier, listLimit: listLimit}, nil
}

type sendNotificationRequest struct {
	UserIDs         []string          `json:"user_ids" validate:"required,min=1,dive,required,max=64"`
	Title           string            `json:"title" validate:"required,notblank,max=255"`
	Message         string            `json:"message" validate:"required,notblank"`
	Type            string            `json:"type" validate:"required,notblank,max=64"`
	RelatedEntityID string            `json:"related_entity_id" validate:"omitempty,max=64"`
	Data            map[string]string `json:"data"`
}

// List returns the caller's newest notifications with the unread count in meta.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", h.listLimit)
	if limit <= 0 || limit > h.listLimit {
		limit = h.listLimit
	}

	ctx := requestContext(c)
	items, err := h.store.FindForUser(ctx, userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	unread, err := h.store.CountUnread(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Total:       len(items),
		Limit:       limit,
		UnreadCount: unread,
	})
}

// MarkRead marks one of the caller's notifications read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	notification, err := h.store.MarkRead(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, notification)
}

// MarkAllRead marks every unread notification of the caller read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	updated, err := h.store.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// CreateAndSend persists and pushes an arbitrary notification (admin only).
func (h *NotificationHandler) CreateAndSend(c *gin.Context) {
	var req sendNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.notifier.Send(requestContext(c), services.SendInput{
		RecipientIDs:    req.UserIDs,
		Title:           req.Title,
		Message:         req.Message,
		Type:            strings.TrimSpace(req.Type),
		RelatedEntityID: strings.TrimSpace(req.RelatedEntityID),
		Data:            req.Data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// MarkRelatedDeleted tombstones every notification that references a task.
func (h *NotificationHandler) MarkRelatedDeleted(c *gin.Context) {
	updated, err := h.store.MarkRelatedDeleted(requestContext(c), strings.TrimSpace(c.Param("taskId")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// DeleteRelated hard-deletes every notification that references a task.
func (h *NotificationHandler) DeleteRelated(c *gin.Context) {
	deleted, err := h.store.DeleteByRelated(requestContext(c), strings.TrimSpace(c.Param("taskId")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}
