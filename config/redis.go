package config

import (
	"riciti/pkg/config"
)

func init() {
	config.Add("redis", func() map[string]interface{} {
		return map[string]interface{}{
			// Without Redis the limiter and the reconcile queue run in process memory
			"enabled": config.Env("REDIS_ENABLED", false),

			"host":     config.Env("REDIS_HOST", "127.0.0.1"),
			"port":     config.Env("REDIS_PORT", "6379"),
			"username": config.Env("REDIS_USERNAME", ""),
			"password": config.Env("REDIS_PASSWORD", ""),

			// rate limiting
			"database": config.Env("REDIS_MAIN_DB", 1),

			// reconcile queue
			"queue_database": config.Env("REDIS_QUEUE_DB", 2),
			"queue_prefix":   config.Env("REDIS_QUEUE_PREFIX", "riciti:queue"),
		}
	})
}
