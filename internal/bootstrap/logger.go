package bootstrap

import (
	"gridbot/internal/core"
	"gridbot/pkg/logging"
)

// InitLogger builds the process-wide ZapLogger from System.LogLevel and
// registers it as the package-level global logger used by pkg/logging's
// convenience functions.
func InitLogger(cfg *Config) core.ILogger {
	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		logger, _ = logging.NewZapLogger("INFO")
	}
	logging.SetGlobalLogger(logger)
	return logger
}
