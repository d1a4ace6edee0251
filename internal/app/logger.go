package app

import (
	"strings"

	"github.com/hundredminds/backend/pkg/logger"
)

// ConfigureLogging installs the global logger from server.log_level and
// server.log_format. An empty level means info.
func ConfigureLogging(level, format string) error {
	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	return logger.Init(level, format)
}
