package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskhub/internal/handlers"
)

func registerDeviceRoutes(api *gin.RouterGroup, handler *handlers.DeviceHandler) {
	group := api.Group("/devices")
	{
		group.POST("/token", handler.Register)
		group.POST("/token/remove", handler.Remove)
		group.GET("/stream", handler.Stream)
	}
}
