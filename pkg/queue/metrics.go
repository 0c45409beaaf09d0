package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricOperation names what a metric measures
type MetricOperation string

const (
	OpPush    MetricOperation = "push"
	OpPop     MetricOperation = "pop"
	OpProcess MetricOperation = "process"
)

// LatencyStats aggregates durations
type LatencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// LatencySnapshot is a copy of LatencyStats
type LatencySnapshot struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

func (s *LatencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := LatencySnapshot{Count: s.count, Min: s.min, Max: s.max}
	if s.count > 0 {
		out.Avg = s.total / time.Duration(s.count)
	}
	return out
}

// QueueMetrics counts reconcile traffic
type QueueMetrics struct {
	pushed     atomic.Int64
	duplicates atomic.Int64
	popped     atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	errors     sync.Map // MetricOperation -> *atomic.Int64

	pushLatency    LatencyStats
	processLatency LatencyStats
}

// Snapshot is a point-in-time copy of QueueMetrics
type Snapshot struct {
	Pushed         int64                     `json:"pushed"`
	Duplicates     int64                     `json:"duplicates"`
	Popped         int64                     `json:"popped"`
	Succeeded      int64                     `json:"succeeded"`
	Failed         int64                     `json:"failed"`
	Errors         map[MetricOperation]int64 `json:"errors"`
	PushLatency    LatencySnapshot           `json:"pushLatency"`
	ProcessLatency LatencySnapshot           `json:"processLatency"`
}

// NewQueueMetrics returns zeroed metrics
func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{}
}

// RecordPush counts an enqueue; duplicate is true when the payment was
// already queued
func (m *QueueMetrics) RecordPush(duplicate bool, d time.Duration) {
	if duplicate {
		m.duplicates.Add(1)
	} else {
		m.pushed.Add(1)
	}
	m.pushLatency.record(d)
}

// RecordPop counts a dequeued task
func (m *QueueMetrics) RecordPop() {
	m.popped.Add(1)
}

// RecordProcess counts a handled task
func (m *QueueMetrics) RecordProcess(err error, d time.Duration) {
	if err != nil {
		m.failed.Add(1)
	} else {
		m.succeeded.Add(1)
	}
	m.processLatency.record(d)
}

// RecordError counts an infrastructure failure for op
func (m *QueueMetrics) RecordError(op MetricOperation) {
	v, _ := m.errors.LoadOrStore(op, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// Snapshot copies the counters
func (m *QueueMetrics) Snapshot() Snapshot {
	s := Snapshot{
		Pushed:         m.pushed.Load(),
		Duplicates:     m.duplicates.Load(),
		Popped:         m.popped.Load(),
		Succeeded:      m.succeeded.Load(),
		Failed:         m.failed.Load(),
		Errors:         map[MetricOperation]int64{},
		PushLatency:    m.pushLatency.snapshot(),
		ProcessLatency: m.processLatency.snapshot(),
	}
	m.errors.Range(func(k, v interface{}) bool {
		s.Errors[k.(MetricOperation)] = v.(*atomic.Int64).Load()
		return true
	})
	return s
}
