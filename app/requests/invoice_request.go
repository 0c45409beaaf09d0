package requests

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/thedevsaddam/govalidator"

	"riciti/app/models/invoice"
)

const maxLineItems = 100

var hundred = decimal.NewFromInt(100)

// LineItemRequest is one row of an invoice form
type LineItemRequest struct {
	Description       string          `json:"description"`
	AdditionalDetails string          `json:"additionalDetails"`
	Quantity          decimal.Decimal `json:"quantity"`
	Rate              decimal.Decimal `json:"rate"`
}

// InvoiceRequest is the invoice form
type InvoiceRequest struct {
	DocumentTitle string `json:"documentTitle"`
	DocumentType  string `json:"documentType"`
	// YYYY-MM-DD
	IssueDate    string `json:"issueDate"`
	DueDate      string `json:"dueDate"`
	PaymentTerms string `json:"paymentTerms"`

	FromName    string `json:"fromName"`
	FromEmail   string `json:"fromEmail"`
	FromPhone   string `json:"fromPhone"`
	FromAddress string `json:"fromAddress"`
	ToName      string `json:"toName"`
	ToEmail     string `json:"toEmail"`
	ToPhone     string `json:"toPhone"`
	ToAddress   string `json:"toAddress"`

	Currency      string          `json:"currency"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	Notes         string          `json:"notes"`

	Items []LineItemRequest `json:"items"`
}

// invoiceFields is the flat text part of InvoiceRequest that govalidator checks
type invoiceFields struct {
	DocumentTitle string `json:"documentTitle"`
	DocumentType  string `json:"documentType"`
	IssueDate     string `json:"issueDate"`
	DueDate       string `json:"dueDate"`
	FromName      string `json:"fromName"`
	FromEmail     string `json:"fromEmail"`
	ToName        string `json:"toName"`
	ToEmail       string `json:"toEmail"`
	Currency      string `json:"currency"`
	DiscountType  string `json:"discountType"`
	Notes         string `json:"notes"`
}

// Invoice validates the invoice form
func Invoice(data interface{}, c *gin.Context) map[string][]string {
	req := data.(*InvoiceRequest)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.DocumentType = strings.ToUpper(strings.TrimSpace(req.DocumentType))
	req.DiscountType = strings.ToUpper(strings.TrimSpace(req.DiscountType))

	fields := &invoiceFields{
		DocumentTitle: req.DocumentTitle,
		DocumentType:  req.DocumentType,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		FromName:      req.FromName,
		FromEmail:     req.FromEmail,
		ToName:        req.ToName,
		ToEmail:       req.ToEmail,
		Currency:      req.Currency,
		DiscountType:  req.DiscountType,
		Notes:         req.Notes,
	}

	rules := govalidator.MapData{
		"documentTitle": []string{"max:200"},
		"documentType":  []string{"in:INVOICE,RECEIPT,ESTIMATE,QUOTE"},
		"issueDate":     []string{"date"},
		"dueDate":       []string{"date"},
		"fromName":      []string{"required", "max:200"},
		"fromEmail":     []string{"email"},
		"toName":        []string{"required", "max:200"},
		"toEmail":       []string{"email"},
		"currency":      []string{"regex:^[A-Z]{3}$"},
		"discountType":  []string{"in:PERCENTAGE,FIXED"},
		"notes":         []string{"max:2000"},
	}
	messages := govalidator.MapData{
		"fromName": []string{
			"required:Business name is required",
			"max:Business name is too long",
		},
		"toName": []string{
			"required:Client name is required",
			"max:Client name is too long",
		},
		"fromEmail":    []string{"email:Business email is invalid"},
		"toEmail":      []string{"email:Client email is invalid"},
		"currency":     []string{"regex:Currency must be a 3-letter code"},
		"documentType": []string{"in:Unknown document type"},
		"discountType": []string{"in:Discount type must be PERCENTAGE or FIXED"},
		"issueDate":    []string{"date:Issue date must be YYYY-MM-DD"},
		"dueDate":      []string{"date:Due date must be YYYY-MM-DD"},
	}

	errs := validate(fields, rules, messages)

	if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(hundred) {
		errs = addError(errs, "taxRate", "Tax rate must be between 0 and 100")
	}
	if req.DiscountValue.IsNegative() {
		errs = addError(errs, "discountValue", "Discount cannot be negative")
	}
	if req.DiscountType == string(invoice.DiscountPercentage) && req.DiscountValue.GreaterThan(hundred) {
		errs = addError(errs, "discountValue", "Percentage discount cannot exceed 100")
	}

	switch {
	case len(req.Items) == 0:
		errs = addError(errs, "items", "At least one line item is required")
	case len(req.Items) > maxLineItems:
		errs = addError(errs, "items", fmt.Sprintf("At most %d line items are allowed", maxLineItems))
	}
	for i, item := range req.Items {
		field := fmt.Sprintf("items.%d", i)
		if strings.TrimSpace(item.Description) == "" {
			errs = addError(errs, field+".description", "Description is required")
		}
		if !item.Quantity.IsPositive() {
			errs = addError(errs, field+".quantity", "Quantity must be greater than 0")
		}
		if item.Rate.IsNegative() {
			errs = addError(errs, field+".rate", "Rate cannot be negative")
		}
	}
	return errs
}

// ToInvoice builds the model for tenant and computes totals
func (r *InvoiceRequest) ToInvoice(tenant invoice.Tenant) *invoice.Invoice {
	inv := &invoice.Invoice{
		DocumentTitle: r.DocumentTitle,
		DocumentType:  invoice.TypeInvoice,
		PaymentTerms:  r.PaymentTerms,
		FromName:      strings.TrimSpace(r.FromName),
		FromEmail:     r.FromEmail,
		FromPhone:     r.FromPhone,
		FromAddress:   r.FromAddress,
		ToName:        strings.TrimSpace(r.ToName),
		ToEmail:       r.ToEmail,
		ToPhone:       r.ToPhone,
		ToAddress:     r.ToAddress,
		Currency:      r.Currency,
		TaxRate:       r.TaxRate,
		DiscountType:  invoice.ParseDiscountType(r.DiscountType),
		DiscountValue: r.DiscountValue,
		Notes:         r.Notes,
	}
	if r.DocumentType != "" {
		inv.DocumentType = invoice.DocumentType(r.DocumentType)
	}
	if inv.Currency == "" {
		inv.Currency = "KES"
	}
	if inv.PaymentTerms == "" {
		inv.PaymentTerms = "NET_7"
	}
	if t, err := time.Parse("2006-01-02", r.IssueDate); err == nil {
		inv.IssueDate = t
	}
	if t, err := time.Parse("2006-01-02", r.DueDate); err == nil {
		inv.DueDate = &t
	}
	if tenant.UserID != "" {
		inv.UserID = &tenant.UserID
	} else if tenant.GuestSessionID != "" {
		inv.GuestSessionID = &tenant.GuestSessionID
	}

	for _, item := range r.Items {
		inv.LineItems = append(inv.LineItems, invoice.LineItem{
			Description:       strings.TrimSpace(item.Description),
			AdditionalDetails: item.AdditionalDetails,
			Quantity:          item.Quantity,
			Rate:              item.Rate,
		})
	}
	inv.ApplyTotals()
	return inv
}
