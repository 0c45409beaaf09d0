package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"riciti/app/models/payment"
	paysvc "riciti/pkg/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	initiateErr error
	// status returns the answer for the n-th call (1-based)
	status      func(n int32) (*paysvc.InvoiceStatus, error)
	queryResult *paysvc.QueryResult
	queryErr    error

	statusCalls atomic.Int32
	queryCalls  atomic.Int32
}

func (f *fakeClient) Initiate(_ context.Context, _ string, _ string) (*paysvc.InitiateResult, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return &paysvc.InitiateResult{PaymentID: "p-1", CheckoutRequestID: "ws_CO_1", CustomerMessage: "Success"}, nil
}

func (f *fakeClient) Status(_ context.Context, id string) (*paysvc.InvoiceStatus, error) {
	n := f.statusCalls.Add(1)
	if f.status == nil {
		return pending(id), nil
	}
	return f.status(n)
}

func (f *fakeClient) Query(_ context.Context, _ string) (*paysvc.QueryResult, error) {
	f.queryCalls.Add(1)
	return f.queryResult, f.queryErr
}

func pending(id string) *paysvc.InvoiceStatus {
	return &paysvc.InvoiceStatus{InvoiceID: id, LatestPayment: &paysvc.View{Status: payment.StatusProcessing}}
}

func fastConfig() Config {
	return Config{
		MaxAttempts:    4,
		InitialDelay:   5 * time.Millisecond,
		BaseInterval:   2 * time.Millisecond,
		Multiplier:     1.3,
		MaxInterval:    5 * time.Millisecond,
		RequestTimeout: time.Second,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.State)
	}
	return out
}

func waitFor(t *testing.T, p *Poller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return p.State() == want }, 2*time.Second, time.Millisecond,
		"state is %s, want %s", p.State(), want)
}

func TestIntervalBackoff(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3*time.Second, cfg.Interval(1))
	assert.InDelta(t, float64(3900*time.Millisecond), float64(cfg.Interval(2)), float64(time.Microsecond))
	assert.Equal(t, 10*time.Second, cfg.Interval(8))
	assert.Equal(t, 10*time.Second, cfg.Interval(100))

	total := cfg.InitialDelay
	for i := 1; i < cfg.MaxAttempts; i++ {
		total += cfg.Interval(i)
	}
	assert.InDelta(t, float64(90*time.Second), float64(total), float64(15*time.Second))
}

func TestTimeoutAfterExactlyMaxAttempts(t *testing.T) {
	client := &fakeClient{}
	rec := &recorder{}
	p := New(client, "pub-1", fastConfig(), rec.record)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	waitFor(t, p, StateTimeout)

	assert.EqualValues(t, 4, client.statusCalls.Load())
	assert.Equal(t, 4, p.Attempts())

	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 4, client.statusCalls.Load())
	assert.Equal(t, []State{StateSubmitting, StatePolling, StateTimeout}, rec.states())
}

func TestTimeoutDoesNotWaitAnotherInterval(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	cfg.BaseInterval = 20 * time.Millisecond
	cfg.MaxInterval = time.Hour
	cfg.Multiplier = 1e6

	client := &fakeClient{}
	rec := &recorder{}
	p := New(client, "pub-1", cfg, rec.record)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	// Interval(2) is an hour; the second non-final answer must end the loop
	waitFor(t, p, StateTimeout)
	assert.EqualValues(t, 2, client.statusCalls.Load())

	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	assert.Equal(t, 2, last.Attempt)
	assert.NotNil(t, last.Status)
}

func TestTimeoutAfterTransientErrorOnLastAttempt(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BaseInterval = time.Hour
	cfg.MaxInterval = time.Hour

	client := &fakeClient{status: func(int32) (*paysvc.InvoiceStatus, error) {
		return nil, errors.New("connection reset")
	}}
	p := New(client, "pub-1", cfg, nil)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	waitFor(t, p, StateTimeout)
	assert.EqualValues(t, 1, client.statusCalls.Load())
}

func TestSuccessStopsPolling(t *testing.T) {
	client := &fakeClient{status: func(n int32) (*paysvc.InvoiceStatus, error) {
		if n < 2 {
			return pending("pub-1"), nil
		}
		return &paysvc.InvoiceStatus{InvoiceID: "pub-1", IsPaid: true}, nil
	}}
	p := New(client, "pub-1", fastConfig(), nil)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	waitFor(t, p, StateSuccess)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, client.statusCalls.Load())
}

func TestFailedAndCancelledAreFinal(t *testing.T) {
	for _, tc := range []struct {
		status payment.Status
		want   State
	}{
		{payment.StatusFailed, StateFailed},
		{payment.StatusCancelled, StateCancelled},
	} {
		t.Run(string(tc.status), func(t *testing.T) {
			client := &fakeClient{status: func(int32) (*paysvc.InvoiceStatus, error) {
				return &paysvc.InvoiceStatus{LatestPayment: &paysvc.View{Status: tc.status, ResultDesc: "Request cancelled by user"}}, nil
			}}
			rec := &recorder{}
			p := New(client, "pub-1", fastConfig(), rec.record)
			defer p.Close()

			require.NoError(t, p.Submit(context.Background(), "0712345678"))
			waitFor(t, p, tc.want)
			assert.EqualValues(t, 1, client.statusCalls.Load())
			assert.True(t, p.State().IsFinal())
		})
	}
}

func TestNetworkErrorsKeepPolling(t *testing.T) {
	client := &fakeClient{status: func(n int32) (*paysvc.InvoiceStatus, error) {
		if n <= 2 {
			return nil, errors.New("connection refused")
		}
		return &paysvc.InvoiceStatus{IsPaid: true}, nil
	}}
	p := New(client, "pub-1", fastConfig(), nil)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	waitFor(t, p, StateSuccess)
	assert.EqualValues(t, 3, client.statusCalls.Load())
}

func TestCloseCancelsScheduledPoll(t *testing.T) {
	client := &fakeClient{}
	cfg := fastConfig()
	cfg.InitialDelay = 20 * time.Millisecond
	p := New(client, "pub-1", cfg, nil)

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	p.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, client.statusCalls.Load())
	assert.ErrorIs(t, p.Submit(context.Background(), "0712345678"), ErrClosed)
}

func TestSubmitFailureThenRetry(t *testing.T) {
	client := &fakeClient{initiateErr: errors.New("payment already in progress")}
	p := New(client, "pub-1", fastConfig(), nil)
	defer p.Close()

	require.Error(t, p.Submit(context.Background(), "0712345678"))
	assert.Equal(t, StateFailed, p.State())
	assert.Empty(t, p.CheckoutRequestID())

	_, err := p.ManualQuery(context.Background())
	assert.ErrorIs(t, err, ErrNotInitiated)

	client.initiateErr = nil
	require.NoError(t, p.Retry(context.Background(), "0712345678"))
	assert.Equal(t, StatePolling, p.State())
	assert.Equal(t, "ws_CO_1", p.CheckoutRequestID())
	assert.ErrorIs(t, p.Submit(context.Background(), "0712345678"), ErrBusy)
}

func TestManualQueryResolves(t *testing.T) {
	client := &fakeClient{queryResult: &paysvc.QueryResult{Status: payment.StatusCompleted, ResultCode: "0"}}
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	p := New(client, "pub-1", cfg, nil)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	st, err := p.ManualQuery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, st)
	assert.EqualValues(t, 1, client.queryCalls.Load())
	assert.Zero(t, client.statusCalls.Load())
}

func TestManualQueryStillProcessing(t *testing.T) {
	client := &fakeClient{queryResult: &paysvc.QueryResult{Status: payment.StatusProcessing, ResultCode: "1037"}}
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	p := New(client, "pub-1", cfg, nil)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), "0712345678"))
	st, err := p.ManualQuery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatePolling, st)

	client.queryResult, client.queryErr = nil, errors.New("timeout")
	_, err = p.ManualQuery(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StatePolling, p.State())
}
