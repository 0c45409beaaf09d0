package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"riciti/app/models/payment"
	"riciti/app/repositories"
	"riciti/pkg/logger"
	"riciti/pkg/mpesa"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// amountEpsilon absorbs currency rounding when comparing amounts
var amountEpsilon = decimal.New(1, -2)

const (
	expiredDesc = "Expired: no final result from provider"
	pendingDesc = "The transaction is being processed"
)

// ErrGatewayDisabled M-Pesa is switched off in config
var ErrGatewayDisabled = errors.New("payment gateway disabled")

// Service is the payment state machine
type Service struct {
	store    Store
	invoices Invoices
	gateway  Gateway
	cfg      Config
	now      func() time.Time
}

// NewService wires the state machine. gateway may be nil when M-Pesa is
// disabled; initiation and queries then fail with ErrGatewayDisabled.
func NewService(store Store, invoices Invoices, gateway Gateway, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "KES"
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = 30 * time.Minute
	}
	return &Service{
		store:    store,
		invoices: invoices,
		gateway:  gateway,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock replaces time.Now, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Enabled reports whether a gateway is configured
func (s *Service) Enabled() bool {
	return s.gateway != nil
}

/* 💳 Initiation */

// Initiate charges the platform fee for an invoice to phone. The PENDING
// row is created atomically before the push; a refused push fails that row
// so the payer can retry.
func (s *Service) Initiate(ctx context.Context, publicInvoiceID, phone string) (*InitiateResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayDisabled
	}

	normalized, err := mpesa.NormalizePhoneNumber(phone)
	if err != nil {
		return nil, err
	}

	inv, err := s.invoices.GetByPublicID(ctx, publicInvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.IsPaid {
		return nil, payment.ErrAlreadyPaid
	}

	p, err := s.store.CreateIfUnpaidAndNoActivePayment(ctx, repositories.NewPayment{
		InvoiceID:   inv.ID,
		UserID:      inv.UserID,
		PhoneNumber: normalized,
		Amount:      s.cfg.Fee,
		Currency:    s.cfg.Currency,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.InitiateSTKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      normalized,
		Amount:           s.cfg.Fee,
		AccountReference: inv.InvoiceNumber,
		TransactionDesc:  s.cfg.TransactionDesc,
		CallbackURL:      s.cfg.CallbackURL,
	})
	if err != nil {
		logger.Error("Payment",
			zap.String("payment_id", p.ID),
			zap.String("phone", mpesa.MaskPhone(normalized)),
			zap.Error(err),
		)
		// a detached context so a cancelled request still releases the invoice
		_, _, uerr := s.store.UpdateByID(context.WithoutCancel(ctx), p.ID, payment.Patch{
			Status:     payment.Ptr(payment.StatusFailed),
			ResultDesc: payment.Ptr("Initiation failed"),
		})
		logger.LogIf(uerr)
		return nil, fmt.Errorf("initiate stk push: %w", err)
	}

	requested := resp.Amount
	if requested.IsZero() {
		requested = s.cfg.Fee.Ceil()
	}
	_, _, err = s.store.UpdateByID(ctx, p.ID, payment.Patch{
		Status:            payment.Ptr(payment.StatusProcessing),
		MerchantRequestID: payment.Ptr(resp.MerchantRequestID),
		CheckoutRequestID: payment.Ptr(resp.CheckoutRequestID),
		RequestedAmount:   &requested,
	})
	if err != nil {
		// the customer already has the prompt; callback lookups will miss
		logger.Error("Payment",
			zap.String("payment_id", p.ID),
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.String("error", "record checkout id: "+err.Error()),
		)
		return nil, fmt.Errorf("record checkout id: %w", err)
	}

	logger.Info("Payment",
		zap.String("event", "initiated"),
		zap.String("payment_id", p.ID),
		zap.String("checkout_request_id", resp.CheckoutRequestID),
	)

	return &InitiateResult{
		PaymentID:         p.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

/* 🔁 Transitions */

// Apply moves p according to r. A terminal payment is returned untouched,
// still-processing codes write nothing, and the invoice is marked paid only
// by the writer whose conditional update actually landed.
func (s *Service) Apply(ctx context.Context, p *payment.Payment, r Result) (*payment.Payment, error) {
	if p.IsTerminal() {
		logger.Debug("Payment",
			zap.String("event", "already_terminal"),
			zap.String("payment_id", p.ID),
			zap.String("status", string(p.Status)),
			zap.String("source", string(r.Source)),
		)
		return p, nil
	}

	switch r.ResultCode {
	case mpesa.ResultSuccess:
		return s.complete(ctx, p, r)
	case mpesa.ResultCancelled:
		return s.transition(ctx, p, r, s.resultPatch(payment.StatusCancelled, r))
	case mpesa.ResultStillProcessing:
		return stillProcessing(p, strconv.Itoa(r.ResultCode), r.ResultDesc), nil
	default:
		return s.transition(ctx, p, r, s.resultPatch(payment.StatusFailed, r))
	}
}

func (s *Service) complete(ctx context.Context, p *payment.Payment, r Result) (*payment.Payment, error) {
	if expected, received, ok := verifyAmount(p, r); !ok {
		logger.Error("Payment",
			zap.String("event", "amount_mismatch"),
			zap.String("payment_id", p.ID),
			zap.String("expected", expected.StringFixed(2)),
			zap.String("received", received.StringFixed(2)),
		)
		patch := s.resultPatch(payment.StatusFailed, r)
		patch.ResultDesc = payment.Ptr(fmt.Sprintf("Amount mismatch: expected %s, received %s",
			expected.StringFixed(2), received.StringFixed(2)))
		return s.transition(ctx, p, r, patch)
	}

	patch := s.resultPatch(payment.StatusCompleted, r)
	if r.MpesaReceiptNumber != "" {
		patch.MpesaReceiptNumber = payment.Ptr(r.MpesaReceiptNumber)
	}
	if t, ok := mpesa.ParseTransactionDate(r.TransactionDate); ok {
		patch.TransactionDate = &t
	}
	patch.CompletedAt = payment.Ptr(s.now())

	updated, applied, err := s.store.UpdateByID(ctx, p.ID, patch)
	if err != nil {
		return nil, err
	}
	if !applied {
		return updated, nil
	}

	if err := s.store.MarkInvoicePaid(ctx, updated.InvoiceID); err != nil {
		// charge taken but invoice still locked; needs manual reconciliation
		logger.Error("Payment",
			zap.String("event", "mark_paid_failed"),
			zap.String("payment_id", updated.ID),
			zap.String("invoice_id", updated.InvoiceID),
			zap.String("receipt", deref(updated.MpesaReceiptNumber)),
			zap.Error(err),
		)
		return updated, fmt.Errorf("mark invoice paid: %w", err)
	}

	logger.Info("Payment",
		zap.String("event", "completed"),
		zap.String("payment_id", updated.ID),
		zap.String("source", string(r.Source)),
	)
	return updated, nil
}

// stillProcessing is p as PROCESSING carrying the provider's answer. The
// answer is reported to the caller only; nothing is written.
func stillProcessing(p *payment.Payment, code, desc string) *payment.Payment {
	out := *p
	out.Status = payment.StatusProcessing
	out.ResultCode = &code
	out.ResultDesc = &desc
	return &out
}

func (s *Service) transition(ctx context.Context, p *payment.Payment, r Result, patch payment.Patch) (*payment.Payment, error) {
	updated, applied, err := s.store.UpdateByID(ctx, p.ID, patch)
	if err != nil {
		return nil, err
	}
	logger.Info("Payment",
		zap.String("event", "transition"),
		zap.String("payment_id", p.ID),
		zap.String("status", string(updated.Status)),
		zap.Int("result_code", r.ResultCode),
		zap.String("source", string(r.Source)),
		zap.Bool("applied", applied),
	)
	return updated, nil
}

func (s *Service) resultPatch(status payment.Status, r Result) payment.Patch {
	patch := payment.Patch{
		Status:     payment.Ptr(status),
		ResultCode: payment.Ptr(strconv.Itoa(r.ResultCode)),
		ResultDesc: payment.Ptr(r.ResultDesc),
	}
	meta := map[string]interface{}{"source": r.Source}
	if r.MpesaReceiptNumber != "" {
		meta["receipt"] = r.MpesaReceiptNumber
	}
	if r.Amount.Valid {
		meta["amount"] = r.Amount.Decimal.StringFixed(2)
	}
	if raw, err := json.Marshal(meta); err == nil {
		patch.Metadata = raw
	}
	return patch
}

// verifyAmount checks a success result. A callback amount is compared with
// what was pushed; without one, the pushed amount must be the ceiled fee.
func verifyAmount(p *payment.Payment, r Result) (expected, received decimal.Decimal, ok bool) {
	switch {
	case r.Amount.Valid:
		expected, received = p.ExpectedAmount(), r.Amount.Decimal
	case p.RequestedAmount.Valid:
		// query responses carry no amount; only the recorded push is checked
		expected, received = p.Amount.Ceil(), p.RequestedAmount.Decimal
	default:
		return p.Amount, p.Amount, true
	}
	return expected, received, expected.Sub(received).Abs().LessThanOrEqual(amountEpsilon)
}

/* 📥 Callback */

// HandleCallback applies a raw provider callback. Every error is for
// logging only; the provider must always be acknowledged.
func (s *Service) HandleCallback(ctx context.Context, body []byte) error {
	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		logger.WarnString("Payment", "callback", err.Error())
		return err
	}

	p, err := s.store.FindByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			logger.Warn("Payment",
				zap.String("event", "callback_unknown_checkout"),
				zap.String("checkout_request_id", cb.CheckoutRequestID),
				zap.Int("result_code", cb.ResultCode),
			)
		} else {
			logger.Error("Payment", zap.String("event", "callback_lookup"), zap.Error(err))
		}
		return err
	}

	_, err = s.Apply(ctx, p, Result{
		Source:             SourceCallback,
		ResultCode:         cb.ResultCode,
		ResultDesc:         cb.ResultDesc,
		MpesaReceiptNumber: cb.MpesaReceiptNumber,
		TransactionDate:    cb.TransactionDate,
		Amount:             cb.Amount,
	})
	if err != nil {
		logger.Error("Payment",
			zap.String("event", "callback_apply"),
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Error(err),
		)
	}
	return err
}

/* 🔎 Query */

// Query asks the provider for the outcome of checkoutRequestID. Resolved
// payments are answered from the ledger without a provider call.
func (s *Service) Query(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	p, err := s.store.FindByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	updated, err := s.query(ctx, p, SourceQuery)
	if err != nil {
		return nil, err
	}
	return newQueryResult(updated), nil
}

func (s *Service) query(ctx context.Context, p *payment.Payment, source Source) (*payment.Payment, error) {
	if p.IsTerminal() || p.CheckoutRequestID == nil {
		return p, nil
	}
	if s.gateway == nil {
		return nil, ErrGatewayDisabled
	}

	resp, err := s.gateway.QuerySTKPush(ctx, *p.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, mpesa.ErrQueryPending) {
			code, desc := mpesa.ErrorCodeQueryPending, pendingDesc
			var perr *mpesa.ProviderError
			if errors.As(err, &perr) && perr.Message != "" {
				desc = perr.Message
			}
			return stillProcessing(p, code, desc), nil
		}
		return nil, fmt.Errorf("query stk push: %w", err)
	}

	code := resp.Code()
	if code < 0 {
		return p, nil
	}
	return s.Apply(ctx, p, Result{
		Source:     source,
		ResultCode: code,
		ResultDesc: resp.ResultDesc,
	})
}

/* 🧾 Status */

// InvoiceStatus is the poller's view of an invoice and its latest attempt
func (s *Service) InvoiceStatus(ctx context.Context, publicID string) (*InvoiceStatus, error) {
	inv, err := s.invoices.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestForInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return &InvoiceStatus{
		InvoiceID:     inv.PublicID,
		IsPaid:        inv.IsPaid,
		PaidAt:        inv.PaidAt,
		LatestPayment: NewView(latest),
	}, nil
}

/* 🧹 Reconciliation */

// Reconcile resolves a payment nobody resolved: it is expired once older
// than ExpireAfter, otherwise queried like a manual query.
func (s *Service) Reconcile(ctx context.Context, paymentID string) error {
	p, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.IsTerminal() {
		return nil
	}

	if s.now().Sub(p.CreatedAt) > s.cfg.ExpireAfter {
		_, err := s.Expire(ctx, p)
		return err
	}

	_, err = s.query(ctx, p, SourceReconciler)
	return err
}

// Expire fails p with the expiry reason through the conditional update
func (s *Service) Expire(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	return s.transition(ctx, p, Result{Source: SourceReconciler}, payment.Patch{
		Status:     payment.Ptr(payment.StatusFailed),
		ResultDesc: payment.Ptr(expiredDesc),
	})
}
