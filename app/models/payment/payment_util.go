package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a Payment
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

var (
	// ErrAlreadyPaid the invoice is already paid
	ErrAlreadyPaid = errors.New("invoice already paid")
	// ErrPaymentInProgress a non-terminal payment already exists for the invoice
	ErrPaymentInProgress = errors.New("payment already in progress")
	// ErrPaymentNotFound no payment matches the lookup
	ErrPaymentNotFound = errors.New("payment not found")
)

// TerminalStatuses are absorbing: once reached, the row never changes status again
var TerminalStatuses = []Status{StatusCompleted, StatusFailed, StatusCancelled}

// ActiveStatuses block a new charge for the same invoice
var ActiveStatuses = []Status{StatusPending, StatusProcessing}

// IsTerminal reports whether s is COMPLETED, FAILED or CANCELLED
func (s Status) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payment has left the mutable states
func (p *Payment) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// Patch is a partial update; nil fields are left untouched
type Patch struct {
	Status             *Status
	MerchantRequestID  *string
	CheckoutRequestID  *string
	MpesaReceiptNumber *string
	TransactionDate    *time.Time
	ResultCode         *string
	ResultDesc         *string
	CompletedAt        *time.Time
	RequestedAmount    *decimal.Decimal
	Metadata           datatypes.JSON
}

// Columns maps the set fields to column names
func (p Patch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.MerchantRequestID != nil {
		cols["merchant_request_id"] = *p.MerchantRequestID
	}
	if p.CheckoutRequestID != nil {
		cols["checkout_request_id"] = *p.CheckoutRequestID
	}
	if p.MpesaReceiptNumber != nil {
		cols["mpesa_receipt_number"] = *p.MpesaReceiptNumber
	}
	if p.TransactionDate != nil {
		cols["transaction_date"] = *p.TransactionDate
	}
	if p.ResultCode != nil {
		cols["result_code"] = *p.ResultCode
	}
	if p.ResultDesc != nil {
		cols["result_desc"] = *p.ResultDesc
	}
	if p.CompletedAt != nil {
		cols["completed_at"] = *p.CompletedAt
	}
	if p.RequestedAmount != nil {
		cols["requested_amount"] = *p.RequestedAmount
	}
	if p.Metadata != nil {
		cols["metadata"] = p.Metadata
	}
	return cols
}

// Ptr returns a pointer to v, for building patches inline
func Ptr[T any](v T) *T {
	return &v
}

// ExpectedAmount is what a success result must match: the amount sent in
// the STK push when recorded, otherwise the ledger amount.
func (p *Payment) ExpectedAmount() decimal.Decimal {
	if p.RequestedAmount.Valid {
		return p.RequestedAmount.Decimal
	}
	return p.Amount
}
