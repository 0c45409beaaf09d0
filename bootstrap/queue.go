package bootstrap

import (
	"context"
	"time"

	"riciti/pkg/config"
	"riciti/pkg/logger"
	"riciti/pkg/queue"
	"riciti/pkg/redis"
)

// memoryQueueSize bounds the in-process queue used without Redis
const memoryQueueSize = 1000

// SetupQueue starts the reconciler: a sweeper that enqueues stale
// PROCESSING payments and a pool that resolves them. It returns nil when
// payments are disabled.
func SetupQueue(ctx context.Context, svc *Services) *queue.Worker {
	if !svc.Payments.Enabled() {
		logger.WarnString("Queue", "Setup", "payments disabled, reconciler not started")
		return nil
	}

	metrics := queue.NewQueueMetrics()
	opts := queue.Options{
		Prefix:    config.GetString("redis.queue_prefix", "riciti:queue"),
		MarkerTTL: seconds("queue.task_ttl"),
		RateLimit: config.GetInt("queue.rate_limit"),
		RateBurst: config.GetInt("queue.rate_burst"),
	}

	var q queue.Queue
	if redis.Enabled() {
		q = queue.NewRedisQueue(redis.Default.Get(redis.QueueDB).Client, opts, metrics)
	} else {
		q = queue.NewMemoryQueue(memoryQueueSize, opts, metrics)
	}

	worker := queue.NewWorker(q, svc.PaymentStore, svc.Payments, metrics, queue.WorkerConfig{
		WorkerCount:     config.GetInt("queue.worker_count", 2),
		SweepInterval:   seconds("queue.sweep_interval"),
		StaleAfter:      seconds("queue.stale_after"),
		BatchSize:       50,
		PopTimeout:      5 * time.Second,
		TaskTimeout:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	})
	worker.Start(ctx)

	logger.InfoString("Queue", "Setup", "reconciler started")
	return worker
}

func seconds(key string) time.Duration {
	return time.Duration(config.GetInt(key)) * time.Second
}
