package app

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/push"
	"github.com/charlesng35/taskhub/internal/realtime"
	"github.com/charlesng35/taskhub/internal/services"
	"github.com/charlesng35/taskhub/pkg/logger"
)

// Core bundles the long-lived task and notification services shared by the HTTP server and CLI.
type Core struct {
	Ledger        *services.TaskLedger
	Tasks         *services.TaskLifecycleService
	Notifications *services.NotificationStore
	Fanout        *services.NotificationFanout
	Devices       *services.DeviceTokenStore
	Directory     *services.UserDirectory

	// Hub is nil unless push.provider is realtime.
	Hub *realtime.Hub
}

// NewCore wires stores, the push provider, fanout, and the lifecycle coordinator over db.
func NewCore(db *gorm.DB, cfg *Config) (*Core, error) {
	if db == nil {
		return nil, errors.New("core: db is required")
	}
	if cfg == nil {
		return nil, errors.New("core: config is required")
	}

	core := &Core{}
	var err error

	if core.Ledger, err = services.NewTaskLedger(db); err != nil {
		return nil, err
	}
	if core.Notifications, err = services.NewNotificationStore(db); err != nil {
		return nil, err
	}
	if core.Devices, err = services.NewDeviceTokenStore(db); err != nil {
		return nil, err
	}
	if core.Directory, err = services.NewUserDirectory(db); err != nil {
		return nil, err
	}

	provider, err := core.pushProvider(cfg.Push)
	if err != nil {
		return nil, err
	}
	dispatcher := services.NewPushDispatcher(provider, services.WithPushBatchSize(cfg.Push.BatchSize))

	core.Fanout, err = services.NewNotificationFanout(core.Notifications, core.Devices, dispatcher,
		services.WithPushTimeout(cfg.Notifications.PushTimeout))
	if err != nil {
		return nil, err
	}

	core.Tasks, err = services.NewTaskLifecycleService(db, core.Ledger, core.Notifications, core.Fanout, core.Directory,
		services.WithAsyncNotifications(cfg.Notifications.Async))
	if err != nil {
		return nil, err
	}

	logger.WithModule("core").Info("task core ready",
		zap.String("push_provider", providerName(cfg.Push)),
		zap.Bool("async_notifications", cfg.Notifications.Async))
	return core, nil
}

// Wait drains notification work still running after a committed task operation.
func (c *Core) Wait() {
	if c != nil && c.Tasks != nil {
		c.Tasks.Wait()
	}
}

func (c *Core) pushProvider(cfg PushConfig) (push.Provider, error) {
	switch providerName(cfg) {
	case PushProviderRealtime:
		c.Hub = realtime.NewHub()
		return c.Hub, nil
	case PushProviderWebhook:
		provider, err := push.NewWebhookProvider(push.WebhookConfig{
			URL:     cfg.Webhook.URL,
			APIKey:  cfg.Webhook.APIKey,
			Timeout: cfg.Webhook.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("core: webhook provider: %w", err)
		}
		return provider, nil
	case PushProviderNone:
		return push.NopProvider{}, nil
	default:
		return nil, fmt.Errorf("core: unknown push provider %q", cfg.Provider)
	}
}

func providerName(cfg PushConfig) string {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		return PushProviderRealtime
	}
	return name
}
