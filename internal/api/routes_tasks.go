package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskhub/internal/handlers"
	"github.com/charlesng35/taskhub/internal/middleware"
	"github.com/charlesng35/taskhub/internal/models"
)

func registerTaskRoutes(api *gin.RouterGroup, handler *handlers.TaskHandler) {
	requireAdmin := middleware.RequireRole(models.RoleAdmin)
	requireMember := middleware.RequireRole(models.RoleAdmin, models.RoleUser)

	group := api.Group("/tasks")
	{
		group.POST("", requireAdmin, handler.Create)
		group.GET("", requireAdmin, handler.List)
		group.GET("/me", requireMember, handler.ListMine)

		group.GET("/:id", requireMember, handler.Get)
		group.PUT("/:id", requireAdmin, handler.Update)
		group.DELETE("/:id", requireAdmin, handler.Delete)
		group.POST("/:id/submit", requireMember, handler.Submit)
	}
}
