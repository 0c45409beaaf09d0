// Package poller watches one payment attempt until it resolves. Polls are
// timer driven with bounded exponential backoff; a manual query can be
// fired at any time once the charge is initiated.
package poller

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"riciti/app/models/payment"
	paysvc "riciti/pkg/payment"
)

// State of a payment attempt as the payer sees it
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
	StateTimeout    State = "timeout"
)

// IsFinal reports whether polling has stopped for good
func (s State) IsFinal() bool {
	switch s {
	case StateSuccess, StateFailed, StateCancelled, StateTimeout:
		return true
	}
	return false
}

var (
	// ErrBusy a charge is already being submitted or polled
	ErrBusy = errors.New("poller: payment already in flight")
	// ErrNotInitiated manual query before any charge was initiated
	ErrNotInitiated = errors.New("poller: no charge initiated")
	// ErrClosed the poller was torn down
	ErrClosed = errors.New("poller: closed")
)

// Client is the server surface the poller talks to
type Client interface {
	Initiate(ctx context.Context, publicInvoiceID, phone string) (*paysvc.InitiateResult, error)
	Status(ctx context.Context, publicInvoiceID string) (*paysvc.InvoiceStatus, error)
	Query(ctx context.Context, checkoutRequestID string) (*paysvc.QueryResult, error)
}

// Config bounds the polling loop
type Config struct {
	// Status checks before TIMEOUT; the last non-final answer ends the loop
	MaxAttempts  int
	InitialDelay time.Duration
	BaseInterval time.Duration
	Multiplier   float64
	MaxInterval  time.Duration
	// Per-request timeout for status checks
	RequestTimeout time.Duration
}

// DefaultConfig polls for roughly a minute and a half
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    12,
		InitialDelay:   5 * time.Second,
		BaseInterval:   3 * time.Second,
		Multiplier:     1.3,
		MaxInterval:    10 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Interval is the wait after the given attempt (1-based)
func (c Config) Interval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(c.BaseInterval) * math.Pow(c.Multiplier, float64(attempt-1))
	if d > float64(c.MaxInterval) {
		return c.MaxInterval
	}
	return time.Duration(d)
}

// Event is published on every state change
type Event struct {
	State             State
	Attempt           int
	CheckoutRequestID string
	Message           string
	Status            *paysvc.InvoiceStatus
}

// Poller tracks a single invoice's payment attempt
type Poller struct {
	client    Client
	cfg       Config
	invoiceID string
	onChange  func(Event)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	attempts   int
	checkoutID string
	generation uint64
	timer      *time.Timer
	closed     bool
}

// New returns an idle poller for publicInvoiceID. onChange may be nil; it
// is called outside the poller's lock.
func New(client Client, publicInvoiceID string, cfg Config, onChange func(Event)) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if onChange == nil {
		onChange = func(Event) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		client:    client,
		cfg:       cfg,
		invoiceID: publicInvoiceID,
		onChange:  onChange,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// State returns the current state
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns how many scheduled polls have fired
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// CheckoutRequestID of the current attempt, empty before initiation
func (p *Poller) CheckoutRequestID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkoutID
}

// Submit initiates the charge and starts polling after InitialDelay
func (p *Poller) Submit(ctx context.Context, phone string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.state == StateSubmitting || p.state == StatePolling {
		p.mu.Unlock()
		return ErrBusy
	}
	p.stopLocked()
	p.attempts = 0
	p.checkoutID = ""
	ev := p.setLocked(StateSubmitting, "")
	p.mu.Unlock()
	p.onChange(ev)

	res, err := p.client.Initiate(ctx, p.invoiceID, phone)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		ev = p.setLocked(StateFailed, err.Error())
		p.mu.Unlock()
		p.onChange(ev)
		return err
	}
	p.checkoutID = res.CheckoutRequestID
	ev = p.setLocked(StatePolling, res.CustomerMessage)
	p.scheduleLocked(p.cfg.InitialDelay)
	p.mu.Unlock()
	p.onChange(ev)
	return nil
}

// Retry abandons the current attempt and submits again
func (p *Poller) Retry(ctx context.Context, phone string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.stopLocked()
	p.state = StateIdle
	p.mu.Unlock()
	return p.Submit(ctx, phone)
}

// ManualQuery runs one synchronous provider query outside the schedule
// and applies its outcome. A still-processing answer leaves polling as is.
func (p *Poller) ManualQuery(ctx context.Context) (State, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.state, ErrClosed
	}
	checkoutID := p.checkoutID
	if checkoutID == "" {
		st := p.state
		p.mu.Unlock()
		return st, ErrNotInitiated
	}
	p.mu.Unlock()

	res, err := p.client.Query(ctx, checkoutID)
	if err != nil {
		return p.State(), err
	}

	p.mu.Lock()
	if p.closed || p.checkoutID != checkoutID {
		st := p.state
		p.mu.Unlock()
		return st, nil
	}
	var ev *Event
	switch res.Status {
	case payment.StatusCompleted:
		ev = p.finishLocked(StateSuccess, res.ResultDesc)
	case payment.StatusFailed:
		ev = p.finishLocked(StateFailed, res.ResultDesc)
	case payment.StatusCancelled:
		ev = p.finishLocked(StateCancelled, res.ResultDesc)
	}
	st := p.state
	p.mu.Unlock()
	if ev != nil {
		p.onChange(*ev)
	}
	return st, nil
}

// Close stops any pending poll; nothing fires afterwards
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.stopLocked()
	p.mu.Unlock()
	p.cancel()
}

func (p *Poller) tick(gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.generation || p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	p.attempts++
	attempt := p.attempts
	if attempt > p.cfg.MaxAttempts {
		p.attempts = p.cfg.MaxAttempts
		ev := p.finishLocked(StateTimeout, "")
		p.mu.Unlock()
		p.onChange(*ev)
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.RequestTimeout)
	st, err := p.client.Status(ctx, p.invoiceID)
	cancel()

	p.mu.Lock()
	if p.closed || gen != p.generation || p.state != StatePolling {
		p.mu.Unlock()
		return
	}

	var ev *Event
	switch {
	case err != nil && attempt >= p.cfg.MaxAttempts:
		ev = p.finishLocked(StateTimeout, "")
	case err != nil:
		// transient; keep polling
	case st.IsPaid:
		ev = p.finishLocked(StateSuccess, "")
	case st.LatestPayment != nil && st.LatestPayment.Status == payment.StatusFailed:
		ev = p.finishLocked(StateFailed, st.LatestPayment.ResultDesc)
	case st.LatestPayment != nil && st.LatestPayment.Status == payment.StatusCancelled:
		ev = p.finishLocked(StateCancelled, st.LatestPayment.ResultDesc)
	case attempt >= p.cfg.MaxAttempts:
		ev = p.finishLocked(StateTimeout, "")
	}
	if ev != nil {
		ev.Status = st
	} else {
		p.scheduleLocked(p.cfg.Interval(attempt))
	}
	p.mu.Unlock()

	if ev != nil {
		p.onChange(*ev)
	}
}

func (p *Poller) scheduleLocked(d time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.generation++
	gen := p.generation
	p.timer = time.AfterFunc(d, func() { p.tick(gen) })
}

func (p *Poller) stopLocked() {
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Poller) finishLocked(s State, msg string) *Event {
	p.stopLocked()
	ev := p.setLocked(s, msg)
	return &ev
}

func (p *Poller) setLocked(s State, msg string) Event {
	p.state = s
	return Event{
		State:             s,
		Attempt:           p.attempts,
		CheckoutRequestID: p.checkoutID,
		Message:           msg,
	}
}
