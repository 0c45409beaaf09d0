// Package payment drives an M-Pesa charge from initiation to a terminal
// state. Callback, manual query and the reconciler all resolve payments
// through Service.Apply.
package payment

import (
	"context"
	"time"

	"riciti/app/models/invoice"
	"riciti/app/models/payment"
	"riciti/app/repositories"
	"riciti/pkg/mpesa"

	"github.com/shopspring/decimal"
)

// Store is the payment ledger
type Store interface {
	CreateIfUnpaidAndNoActivePayment(ctx context.Context, in repositories.NewPayment) (*payment.Payment, error)
	UpdateByCheckoutRequestID(ctx context.Context, checkoutRequestID string, patch payment.Patch) (*payment.Payment, bool, error)
	UpdateByID(ctx context.Context, id string, patch payment.Patch) (*payment.Payment, bool, error)
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*payment.Payment, error)
	FindByID(ctx context.Context, id string) (*payment.Payment, error)
	LatestForInvoice(ctx context.Context, invoiceID string) (*payment.Payment, error)
	MarkInvoicePaid(ctx context.Context, invoiceID string) error
}

// Invoices resolves the public invoice handle
type Invoices interface {
	GetByPublicID(ctx context.Context, publicID string) (*invoice.Invoice, error)
}

// Gateway is the provider side of a charge
type Gateway interface {
	InitiateSTKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	QuerySTKPush(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// Config holds the charge constants
type Config struct {
	// Flat platform fee charged per invoice
	Fee      decimal.Decimal
	Currency string

	CallbackURL     string
	TransactionDesc string

	// PROCESSING payments older than this are failed by Reconcile
	ExpireAfter time.Duration
}

// Source names the path that produced a Result
type Source string

const (
	SourceCallback   Source = "callback"
	SourceQuery      Source = "query"
	SourceReconciler Source = "reconciler"
)

// Result is a provider outcome, from either the callback or a query
type Result struct {
	Source     Source
	ResultCode int
	ResultDesc string

	MpesaReceiptNumber string
	// Compact YYYYMMDDHHmmss in EAT
	TransactionDate string
	// Present only on callbacks that carry the Amount item
	Amount decimal.NullDecimal
}

// InitiateResult is returned to the payer after the push is accepted
type InitiateResult struct {
	PaymentID         string `json:"paymentId"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	CustomerMessage   string `json:"customerMessage"`
}

// QueryResult is the answer to a manual status query
type QueryResult struct {
	Status             payment.Status `json:"status"`
	ResultCode         string         `json:"resultCode"`
	ResultDesc         string         `json:"resultDesc"`
	MpesaReceiptNumber string         `json:"mpesaReceiptNumber,omitempty"`
}

// View is the public projection of a payment; the phone is masked
type View struct {
	ID                 string          `json:"id"`
	Status             payment.Status  `json:"status"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	PhoneNumber        string          `json:"phoneNumber"`
	CheckoutRequestID  string          `json:"checkoutRequestId,omitempty"`
	MpesaReceiptNumber string          `json:"mpesaReceiptNumber,omitempty"`
	ResultCode         string          `json:"resultCode,omitempty"`
	ResultDesc         string          `json:"resultDesc,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	CompletedAt        *time.Time      `json:"completedAt"`
}

// InvoiceStatus is what the poller reads
type InvoiceStatus struct {
	InvoiceID     string     `json:"invoiceId"`
	IsPaid        bool       `json:"isPaid"`
	PaidAt        *time.Time `json:"paidAt"`
	LatestPayment *View      `json:"latestPayment"`
}

// NewView projects p for clients
func NewView(p *payment.Payment) *View {
	if p == nil {
		return nil
	}
	return &View{
		ID:                 p.ID,
		Status:             p.Status,
		Amount:             p.Amount,
		Currency:           p.Currency,
		PhoneNumber:        mpesa.MaskPhone(p.PhoneNumber),
		CheckoutRequestID:  deref(p.CheckoutRequestID),
		MpesaReceiptNumber: deref(p.MpesaReceiptNumber),
		ResultCode:         deref(p.ResultCode),
		ResultDesc:         deref(p.ResultDesc),
		CreatedAt:          p.CreatedAt,
		CompletedAt:        p.CompletedAt,
	}
}

func newQueryResult(p *payment.Payment) *QueryResult {
	return &QueryResult{
		Status:             p.Status,
		ResultCode:         deref(p.ResultCode),
		ResultDesc:         deref(p.ResultDesc),
		MpesaReceiptNumber: deref(p.MpesaReceiptNumber),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
