package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"riciti/app/models/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	rows   []payment.Payment
	before time.Time
}

func (f *fakeLister) ListStaleProcessing(_ context.Context, before time.Time, limit int) ([]payment.Payment, error) {
	f.before = before
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeReconciler) Reconcile(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[id]++
	if f.fail[id] {
		return errors.New("provider down")
	}
	return nil
}

func (f *fakeReconciler) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func stale(ids ...string) []payment.Payment {
	rows := make([]payment.Payment, 0, len(ids))
	for _, id := range ids {
		p := payment.Payment{Status: payment.StatusProcessing, CheckoutRequestID: payment.Ptr("ws_" + id)}
		p.ID = id
		rows = append(rows, p)
	}
	return rows
}

func TestMemoryQueueDedupes(t *testing.T) {
	ctx := context.Background()
	m := NewQueueMetrics()
	q := NewMemoryQueue(10, Options{}, m)

	ok, err := q.Push(ctx, ReconcileTask{PaymentID: "p1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Push(ctx, ReconcileTask{PaymentID: "p1"})
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := q.Len(ctx)
	assert.EqualValues(t, 1, n)

	task, err := q.Pop(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "p1", task.PaymentID)
	assert.False(t, task.EnqueuedAt.IsZero())

	task, err = q.Pop(ctx, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, q.Done(ctx, "p1"))
	ok, err = q.Push(ctx, ReconcileTask{PaymentID: "p1"})
	require.NoError(t, err)
	assert.True(t, ok)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Pushed)
	assert.EqualValues(t, 1, snap.Duplicates)
	assert.EqualValues(t, 1, snap.Popped)
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1, Options{}, nil)
	_, err := q.Push(context.Background(), ReconcileTask{PaymentID: "p1"})
	require.NoError(t, err)
	_, err = q.Push(context.Background(), ReconcileTask{PaymentID: "p2"})
	assert.Error(t, err)
}

func TestSweepQueuesStalePayments(t *testing.T) {
	lister := &fakeLister{rows: stale("p1", "p2", "p3")}
	q := NewMemoryQueue(10, Options{}, nil)
	w := NewWorker(q, lister, &fakeReconciler{}, nil, WorkerConfig{StaleAfter: 2 * time.Minute, BatchSize: 2})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	n, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, now.Add(-2*time.Minute), lister.before)

	// already queued rows are not pushed twice
	n, err = w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerReconcilesAndStops(t *testing.T) {
	lister := &fakeLister{rows: stale("p1", "p2")}
	rec := &fakeReconciler{fail: map[string]bool{"p2": true}}
	m := NewQueueMetrics()
	q := NewMemoryQueue(10, Options{}, m)
	w := NewWorker(q, lister, rec, m, WorkerConfig{
		WorkerCount:   2,
		SweepInterval: time.Hour,
		PopTimeout:    5 * time.Millisecond,
	})

	w.Start(context.Background())
	require.Eventually(t, func() bool {
		return rec.count("p1") == 1 && rec.count("p2") == 1
	}, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	snap := w.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.Succeeded)
	assert.EqualValues(t, 1, snap.Failed)

	// markers are released after processing
	ok, err := q.Push(context.Background(), ReconcileTask{PaymentID: "p1"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStopWithoutStart(t *testing.T) {
	w := NewWorker(NewMemoryQueue(1, Options{}, nil), &fakeLister{}, &fakeReconciler{}, nil, WorkerConfig{})
	w.Stop()
}
