package app

import (
	"strings"

	"github.com/charlesng35/taskhub/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}

	opts := []logger.Option{logger.WithService("taskhub")}
	if cfg.Development {
		opts = append(opts, logger.WithDevelopment())
	}
	return logger.Init(level, opts...)
}
