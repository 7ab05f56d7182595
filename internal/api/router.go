package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/app"
	iauth "github.com/charlesng35/taskhub/internal/auth"
	"github.com/charlesng35/taskhub/internal/handlers"
	"github.com/charlesng35/taskhub/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers task, notification and device routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, core *app.Core) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if core == nil {
		return nil, fmt.Errorf("core services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	taskHandler, err := handlers.NewTaskHandler(core.Tasks)
	if err != nil {
		return nil, err
	}
	registerTaskRoutes(api, taskHandler)

	notificationHandler, err := handlers.NewNotificationHandler(core.Notifications, core.Fanout, cfg.Notifications.ListLimit)
	if err != nil {
		return nil, err
	}
	registerNotificationRoutes(api, notificationHandler)

	deviceHandler, err := handlers.NewDeviceHandler(core.Devices, core.Hub)
	if err != nil {
		return nil, err
	}
	registerDeviceRoutes(api, deviceHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
