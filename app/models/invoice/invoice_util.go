package invoice

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvoiceNotFound no invoice matches the lookup
var ErrInvoiceNotFound = errors.New("invoice not found")

// DocumentType labels the rendered document
type DocumentType string

const (
	TypeInvoice  DocumentType = "INVOICE"
	TypeReceipt  DocumentType = "RECEIPT"
	TypeEstimate DocumentType = "ESTIMATE"
	TypeQuote    DocumentType = "QUOTE"
)

// DiscountType selects how DiscountValue is applied
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// ParseDiscountType accepts either case and defaults to PERCENTAGE
func ParseDiscountType(s string) DiscountType {
	if strings.EqualFold(s, string(DiscountFixed)) {
		return DiscountFixed
	}
	return DiscountPercentage
}

var hundred = decimal.NewFromInt(100)

// Totals is the computed money summary of an invoice
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// CalculateTotals sums quantity*rate, adds tax as a percentage of the
// subtotal and subtracts the discount (percentage of subtotal or fixed).
func CalculateTotals(items []LineItem, taxRate decimal.Decimal, discountType DiscountType, discountValue decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Quantity.Mul(item.Rate))
	}

	taxAmount := subtotal.Mul(taxRate).Div(hundred)

	discountAmount := discountValue
	if discountType == DiscountPercentage {
		discountAmount = subtotal.Mul(discountValue).Div(hundred)
	}

	return Totals{
		Subtotal:       subtotal.Round(2),
		TaxAmount:      taxAmount.Round(2),
		DiscountAmount: discountAmount.Round(2),
		Total:          subtotal.Add(taxAmount).Sub(discountAmount).Round(2),
	}
}

// ApplyTotals recomputes line amounts and invoice totals in place
func (inv *Invoice) ApplyTotals() {
	for i := range inv.LineItems {
		inv.LineItems[i].Amount = inv.LineItems[i].Quantity.Mul(inv.LineItems[i].Rate).Round(2)
		inv.LineItems[i].SortOrder = i
	}
	t := CalculateTotals(inv.LineItems, inv.TaxRate, inv.DiscountType, inv.DiscountValue)
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.DiscountAmount = t.DiscountAmount
	inv.Total = t.Total
}

// Tenant identifies the owner of a request: a user or a guest session
type Tenant struct {
	UserID         string
	GuestSessionID string
}

// IsZero reports whether neither identity is known
func (t Tenant) IsZero() bool {
	return t.UserID == "" && t.GuestSessionID == ""
}

// IsGuest reports whether the tenant is an anonymous guest
func (t Tenant) IsGuest() bool {
	return t.UserID == "" && t.GuestSessionID != ""
}

// Public is a copy safe to show to anyone holding the public link
func (inv *Invoice) Public() *Invoice {
	out := *inv
	out.ID = ""
	out.UserID = nil
	out.GuestSessionID = nil
	out.LineItems = make([]LineItem, len(inv.LineItems))
	for i, item := range inv.LineItems {
		item.ID = ""
		item.InvoiceID = ""
		out.LineItems[i] = item
	}
	return &out
}
