package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskhub/internal/handlers"
	"github.com/charlesng35/taskhub/internal/middleware"
	"github.com/charlesng35/taskhub/internal/models"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.PATCH("/mark-all-read", handler.MarkAllRead)
		group.PATCH("/:id/read", handler.MarkRead)

		group.POST("", requireAdmin, handler.CreateAndSend)
		group.PATCH("/related/:taskId/mark-deleted", requireAdmin, handler.MarkRelatedDeleted)
		group.DELETE("/related/:taskId", requireAdmin, handler.DeleteRelated)
	}
}
