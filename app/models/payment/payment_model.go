// Package payment holds the M-Pesa charge ledger model
package payment

import (
	"time"

	"riciti/app/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is one charge attempt against an invoice
type Payment struct {
	models.BaseModel

	InvoiceID string  `gorm:"type:varchar(36);not null;index" json:"invoiceId"`
	UserID    *string `gorm:"type:varchar(36);index" json:"userId"`

	// 254XXXXXXXXX
	PhoneNumber string          `gorm:"type:varchar(12);not null" json:"phoneNumber"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(3);not null;default:KES" json:"currency"`

	// Whole-unit amount actually sent in the STK push
	RequestedAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"requestedAmount"`

	MerchantRequestID *string `gorm:"type:varchar(64)" json:"merchantRequestId"`
	CheckoutRequestID *string `gorm:"type:varchar(64);uniqueIndex" json:"checkoutRequestId"`

	MpesaReceiptNumber *string    `gorm:"type:varchar(32)" json:"mpesaReceiptNumber"`
	TransactionDate    *time.Time `json:"transactionDate"`
	ResultCode         *string    `gorm:"type:varchar(16)" json:"resultCode"`
	ResultDesc         *string    `gorm:"type:varchar(255)" json:"resultDesc"`

	Status      Status     `gorm:"type:varchar(16);not null;default:PENDING;index" json:"status"`
	CompletedAt *time.Time `json:"completedAt"`

	// Non-sensitive provider metadata, never the raw callback
	Metadata datatypes.JSON `json:"-"`

	models.CommonTimestampsField
}

// TableName pins the table name
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns the UUID and default state
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	p.EnsureID()
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.Currency == "" {
		p.Currency = "KES"
	}
	return nil
}
