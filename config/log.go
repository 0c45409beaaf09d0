package config

import "riciti/pkg/config"

func init() {
	config.Add("log", func() map[string]interface{} {
		return map[string]interface{}{
			// debug, info, warn, error
			"level": config.Env("LOG_LEVEL", "info"),

			// daily writes storage/logs/<date>.log, single keeps one file
			"type": config.Env("LOG_TYPE", "single"),

			"filename":   config.Env("LOG_NAME", "storage/logs/logs.log"),
			"max_size":   config.Env("LOG_MAX_SIZE", 64),
			"max_backup": config.Env("LOG_MAX_BACKUP", 5),
			"max_age":    config.Env("LOG_MAX_AGE", 30),
			"compress":   config.Env("LOG_COMPRESS", false),
		}
	})
}
