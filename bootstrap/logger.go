package bootstrap

import (
	"riciti/pkg/config"
	"riciti/pkg/logger"
)

// SetupLogger builds the zap logger from the log block:
// - filename: log file path
// - max_size: MB per file before rotation
// - max_backup: rotated files kept
// - max_age: days a rotated file is kept
// - compress: gzip rotated files
// - type: daily or single
// - level: debug, info, warn, error
func SetupLogger() {
	logger.InitLogger(
		config.GetString("log.filename"),
		config.GetInt("log.max_size"),
		config.GetInt("log.max_backup"),
		config.GetInt("log.max_age"),
		config.GetBool("log.compress"),
		config.GetString("log.type"),
		config.GetString("log.level"),
	)
}
