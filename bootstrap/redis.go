package bootstrap

import (
	"fmt"

	"riciti/pkg/config"
	"riciti/pkg/logger"
	"riciti/pkg/redis"
)

// SetupRedis connects Redis when enabled. A failed connection is logged
// and the app runs on the in-memory fallbacks.
func SetupRedis() {
	if !config.GetBool("redis.enabled") {
		logger.InfoString("Redis", "Setup", "disabled, using in-memory limiter and queue")
		return
	}

	err := redis.InitRedis(
		fmt.Sprintf("%v:%v", config.GetString("redis.host"), config.GetString("redis.port")),
		config.GetString("redis.username"),
		config.GetString("redis.password"),
		config.GetInt("redis.database"),
		config.GetInt("redis.queue_database"),
	)
	if err != nil {
		logger.ErrorString("Redis", "Setup", err.Error())
	}
}
