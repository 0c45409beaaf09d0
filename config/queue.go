package config

import "riciti/pkg/config"

func init() {
	config.Add("queue", func() map[string]interface{} {
		return map[string]interface{}{
			"worker_count": config.Env("QUEUE_WORKER_COUNT", 2),
			"rate_limit":   config.Env("QUEUE_RATE_LIMIT", 5),
			"rate_burst":   config.Env("QUEUE_RATE_BURST", 20),

			// seconds between sweeps for PROCESSING payments
			"sweep_interval": config.Env("QUEUE_SWEEP_INTERVAL", 60),
			// a PROCESSING payment older than this is re-queried
			"stale_after": config.Env("QUEUE_STALE_AFTER", 120),
			// a PROCESSING payment older than this is failed as expired
			"expire_after": config.Env("QUEUE_EXPIRE_AFTER", 1800),
			// dedupe marker lifetime
			"task_ttl": config.Env("QUEUE_TASK_TTL", 300),
		}
	})
}
