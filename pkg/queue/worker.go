package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"riciti/app/models/payment"
	"riciti/pkg/logger"

	"go.uber.org/zap"
)

// Reconciler resolves one payment, normally by querying the provider
type Reconciler interface {
	Reconcile(ctx context.Context, paymentID string) error
}

// StaleLister finds PROCESSING payments untouched since before
type StaleLister interface {
	ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]payment.Payment, error)
}

// WorkerConfig tunes the sweeper and the pool
type WorkerConfig struct {
	WorkerCount     int
	SweepInterval   time.Duration
	StaleAfter      time.Duration
	BatchSize       int
	PopTimeout      time.Duration
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Worker runs the sweeper and the reconcile pool
type Worker struct {
	queue      Queue
	lister     StaleLister
	reconciler Reconciler
	metrics    *QueueMetrics
	config     WorkerConfig
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker fills zero config values with defaults
func NewWorker(q Queue, lister StaleLister, rec Reconciler, metrics *QueueMetrics, config WorkerConfig) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 2
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 2 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = time.Second
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 30 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = NewQueueMetrics()
	}
	return &Worker{
		queue:      q,
		lister:     lister,
		reconciler: rec,
		metrics:    metrics,
		config:     config,
		now:        time.Now,
	}
}

// Metrics exposes the counters
func (w *Worker) Metrics() *QueueMetrics {
	return w.metrics
}

// Start launches the sweeper and WorkerCount consumers
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.runSweeper(ctx)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

func (w *Worker) runSweeper(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorString("Reconciler", "Sweep", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep enqueues every stale PROCESSING payment and returns how many were new
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	rows, err := w.lister.ListStaleProcessing(ctx, w.now().Add(-w.config.StaleAfter), w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale payments: %w", err)
	}

	queued := 0
	for _, p := range rows {
		task := ReconcileTask{PaymentID: p.ID}
		if p.CheckoutRequestID != nil {
			task.CheckoutRequestID = *p.CheckoutRequestID
		}
		ok, err := w.queue.Push(ctx, task)
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	if queued > 0 {
		logger.Info("Reconciler", zap.Int("queued", queued), zap.Int("stale", len(rows)))
	}
	return queued, nil
}

func (w *Worker) runWorker(ctx context.Context, id int) {
	defer w.wg.Done()
	logger.DebugString("Reconciler", "Start", fmt.Sprintf("worker %d started", id))

	for {
		select {
		case <-ctx.Done():
			logger.DebugString("Reconciler", "Stop", fmt.Sprintf("worker %d stopping", id))
			return
		default:
		}

		task, err := w.queue.Pop(ctx, w.config.PopTimeout)
		if err != nil {
			logger.ErrorString("Reconciler", "Pop", err.Error())
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}
		w.handleTask(ctx, task)
	}
}

func (w *Worker) handleTask(ctx context.Context, task *ReconcileTask) {
	start := time.Now()
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.TaskTimeout)
	defer cancel()

	err := w.reconciler.Reconcile(taskCtx, task.PaymentID)
	w.metrics.RecordProcess(err, time.Since(start))
	if err != nil {
		logger.Warn("Reconciler",
			zap.String("payment_id", task.PaymentID),
			zap.String("checkout_request_id", task.CheckoutRequestID),
			zap.Error(err),
		)
	}

	if derr := w.queue.Done(taskCtx, task.PaymentID); derr != nil {
		logger.LogIf(derr)
	}
}

// Stop cancels the loops and waits up to ShutdownTimeout for them
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Reconciler", "Stop", "all workers stopped")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("Reconciler", "Stop", "worker shutdown timed out")
	}
}
