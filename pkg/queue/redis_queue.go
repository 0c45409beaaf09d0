// Package queue re-queries payments that neither the callback nor the
// payer resolved. A sweeper enqueues stale PROCESSING payments and a
// worker pool reconciles them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ReconcileTask asks for one payment to be resolved
type ReconcileTask struct {
	PaymentID         string    `json:"paymentId"`
	CheckoutRequestID string    `json:"checkoutRequestId"`
	EnqueuedAt        time.Time `json:"enqueuedAt"`
}

// Queue carries reconcile tasks. Push is deduplicated per payment until
// Done is called or the marker expires.
type Queue interface {
	Push(ctx context.Context, task ReconcileTask) (queued bool, err error)
	// Pop returns nil, nil when nothing arrived within timeout
	Pop(ctx context.Context, timeout time.Duration) (*ReconcileTask, error)
	Done(ctx context.Context, paymentID string) error
	Len(ctx context.Context) (int64, error)
}

// Options shared by queue implementations
type Options struct {
	Prefix    string
	MarkerTTL time.Duration
	// Pushes per second and burst
	RateLimit int
	RateBurst int
}

func (o Options) limiter() *rate.Limiter {
	if o.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := o.RateBurst
	if burst <= 0 {
		burst = o.RateLimit
	}
	return rate.NewLimiter(rate.Limit(o.RateLimit), burst)
}

/* 🟥 Redis */

// RedisQueue is a Redis list with SETNX markers
type RedisQueue struct {
	client      *goredis.Client
	prefix      string
	markerTTL   time.Duration
	rateLimiter *rate.Limiter
	metrics     *QueueMetrics
}

// NewRedisQueue stores tasks in client under opts.Prefix
func NewRedisQueue(client *goredis.Client, opts Options, metrics *QueueMetrics) *RedisQueue {
	if opts.Prefix == "" {
		opts.Prefix = "riciti:queue"
	}
	if opts.MarkerTTL <= 0 {
		opts.MarkerTTL = 5 * time.Minute
	}
	if metrics == nil {
		metrics = NewQueueMetrics()
	}
	return &RedisQueue{
		client:      client,
		prefix:      opts.Prefix,
		markerTTL:   opts.MarkerTTL,
		rateLimiter: opts.limiter(),
		metrics:     metrics,
	}
}

func (q *RedisQueue) listKey() string {
	return q.prefix + ":reconcile"
}

func (q *RedisQueue) markerKey(paymentID string) string {
	return fmt.Sprintf("%s:queued:%s", q.prefix, paymentID)
}

// Push enqueues task unless the payment is already queued
func (q *RedisQueue) Push(ctx context.Context, task ReconcileTask) (bool, error) {
	if err := q.rateLimiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit exceeded: %w", err)
	}

	start := time.Now()
	ok, err := q.client.SetNX(ctx, q.markerKey(task.PaymentID), 1, q.markerTTL).Result()
	if err != nil {
		q.metrics.RecordError(OpPush)
		return false, fmt.Errorf("failed to set queue marker: %w", err)
	}
	if !ok {
		q.metrics.RecordPush(true, time.Since(start))
		return false, nil
	}

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return false, fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.listKey(), raw).Err(); err != nil {
		q.client.Del(ctx, q.markerKey(task.PaymentID))
		q.metrics.RecordError(OpPush)
		return false, fmt.Errorf("failed to push task: %w", err)
	}

	q.metrics.RecordPush(false, time.Since(start))
	return true, nil
}

// Pop blocks up to timeout for the oldest task
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*ReconcileTask, error) {
	result, err := q.client.BRPop(ctx, timeout, q.listKey()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to pop task: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("invalid result from queue")
	}

	var task ReconcileTask
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	q.metrics.RecordPop()
	return &task, nil
}

// Done clears the dedupe marker
func (q *RedisQueue) Done(ctx context.Context, paymentID string) error {
	return q.client.Del(ctx, q.markerKey(paymentID)).Err()
}

// Len is the number of waiting tasks
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.listKey()).Result()
}

/* 🧠 In-process */

// MemoryQueue is used when Redis is disabled; tasks die with the process
type MemoryQueue struct {
	tasks       chan ReconcileTask
	mu          sync.Mutex
	markers     map[string]time.Time
	markerTTL   time.Duration
	rateLimiter *rate.Limiter
	metrics     *QueueMetrics
}

// NewMemoryQueue holds up to size tasks
func NewMemoryQueue(size int, opts Options, metrics *QueueMetrics) *MemoryQueue {
	if size <= 0 {
		size = 1000
	}
	if opts.MarkerTTL <= 0 {
		opts.MarkerTTL = 5 * time.Minute
	}
	if metrics == nil {
		metrics = NewQueueMetrics()
	}
	return &MemoryQueue{
		tasks:       make(chan ReconcileTask, size),
		markers:     make(map[string]time.Time),
		markerTTL:   opts.MarkerTTL,
		rateLimiter: opts.limiter(),
		metrics:     metrics,
	}
}

// Push enqueues task unless the payment is already queued or the buffer is full
func (q *MemoryQueue) Push(ctx context.Context, task ReconcileTask) (bool, error) {
	if err := q.rateLimiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit exceeded: %w", err)
	}
	start := time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()
	if exp, ok := q.markers[task.PaymentID]; ok && time.Now().Before(exp) {
		q.metrics.RecordPush(true, time.Since(start))
		return false, nil
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	select {
	case q.tasks <- task:
	default:
		q.metrics.RecordError(OpPush)
		return false, fmt.Errorf("queue full")
	}
	q.markers[task.PaymentID] = time.Now().Add(q.markerTTL)
	q.metrics.RecordPush(false, time.Since(start))
	return true, nil
}

// Pop waits up to timeout for a task
func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*ReconcileTask, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case task := <-q.tasks:
		q.metrics.RecordPop()
		return &task, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Done clears the dedupe marker
func (q *MemoryQueue) Done(_ context.Context, paymentID string) error {
	q.mu.Lock()
	delete(q.markers, paymentID)
	q.mu.Unlock()
	return nil
}

// Len is the number of waiting tasks
func (q *MemoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.tasks)), nil
}
