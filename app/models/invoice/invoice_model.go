// Package invoice holds the invoice and line item models
package invoice

import (
	"time"

	"riciti/app/models"
	"riciti/pkg/app"
	"riciti/pkg/helpers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is owned by either a signed-in user or a guest session
type Invoice struct {
	models.BaseModel

	// Shareable identifier used in public links and the status endpoint
	PublicID string `gorm:"type:varchar(36);not null;uniqueIndex" json:"publicId"`

	UserID         *string `gorm:"type:varchar(36);index" json:"userId"`
	GuestSessionID *string `gorm:"type:varchar(36);index" json:"-"`

	InvoiceNumber string       `gorm:"type:varchar(50);not null" json:"invoiceNumber"`
	DocumentTitle string       `gorm:"type:varchar(200)" json:"documentTitle"`
	DocumentType  DocumentType `gorm:"type:varchar(16);not null;default:INVOICE" json:"documentType"`
	IssueDate     time.Time    `json:"issueDate"`
	DueDate       *time.Time   `json:"dueDate"`
	PaymentTerms  string       `gorm:"type:varchar(20);default:NET_7" json:"paymentTerms"`

	FromName    string `gorm:"type:varchar(200);not null" json:"fromName"`
	FromEmail   string `gorm:"type:varchar(254)" json:"fromEmail"`
	FromPhone   string `gorm:"type:varchar(30)" json:"fromPhone"`
	FromAddress string `gorm:"type:varchar(500)" json:"fromAddress"`
	ToName      string `gorm:"type:varchar(200);not null" json:"toName"`
	ToEmail     string `gorm:"type:varchar(254)" json:"toEmail"`
	ToPhone     string `gorm:"type:varchar(30)" json:"toPhone"`
	ToAddress   string `gorm:"type:varchar(500)" json:"toAddress"`

	Currency       string          `gorm:"type:varchar(3);not null;default:KES" json:"currency"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"taxRate"`
	DiscountType   DiscountType    `gorm:"type:varchar(16);not null;default:PERCENTAGE" json:"discountType"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discountValue"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"taxAmount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discountAmount"`
	Total          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total"`
	Notes          string          `gorm:"type:text" json:"notes"`

	// Flipped false -> true once, by the payment state machine
	IsPaid bool       `gorm:"not null;default:false;index" json:"isPaid"`
	PaidAt *time.Time `json:"paidAt"`

	LineItems []LineItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`

	models.CommonTimestampsField
}

// TableName pins the table name
func (Invoice) TableName() string {
	return "invoices"
}

// BeforeCreate fills identifiers the client never supplies; dates are in
// the app timezone
func (inv *Invoice) BeforeCreate(tx *gorm.DB) error {
	inv.EnsureID()
	now := app.TimenowInTimezone()
	if inv.PublicID == "" {
		inv.PublicID = uuid.NewString()
	}
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = NewInvoiceNumber(now)
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = now
	}
	return nil
}

// LineItem is one billable row of an invoice
type LineItem struct {
	models.BaseModel

	InvoiceID         string          `gorm:"type:varchar(36);not null;index" json:"-"`
	Description       string          `gorm:"type:varchar(500);not null" json:"description"`
	AdditionalDetails string          `gorm:"type:varchar(1000)" json:"additionalDetails"`
	Quantity          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"quantity"`
	Rate              decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"rate"`
	Amount            decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	SortOrder         int             `gorm:"not null;default:0" json:"sortOrder"`

	models.CommonTimestampsField
}

// TableName pins the table name
func (LineItem) TableName() string {
	return "invoice_line_items"
}

// BeforeCreate assigns the UUID
func (li *LineItem) BeforeCreate(tx *gorm.DB) error {
	li.EnsureID()
	return nil
}

// NewInvoiceNumber returns INV-<year>-<10 random characters>
func NewInvoiceNumber(now time.Time) string {
	return "INV-" + now.Format("2006") + "-" + helpers.RandomString(10)
}
