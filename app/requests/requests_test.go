package requests

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riciti/app/models/invoice"
)

func TestInitiatePayment(t *testing.T) {
	errs := InitiatePayment(&InitiatePaymentRequest{PublicInvoiceID: "abc", PhoneNumber: "0712345678"}, nil)
	assert.Empty(t, errs)

	errs = InitiatePayment(&InitiatePaymentRequest{}, nil)
	assert.Contains(t, errs, "publicInvoiceId")
	assert.Contains(t, errs, "phoneNumber")

	errs = InitiatePayment(&InitiatePaymentRequest{PublicInvoiceID: "abc", PhoneNumber: "12345"}, nil)
	require.Contains(t, errs, "phoneNumber")
	assert.Contains(t, errs["phoneNumber"][0], "Invalid phone number format")
}

func TestQueryPayment(t *testing.T) {
	assert.Empty(t, QueryPayment(&QueryPaymentRequest{CheckoutRequestID: "ws_CO_1"}, nil))
	assert.Contains(t, QueryPayment(&QueryPaymentRequest{}, nil), "checkoutRequestId")
}

func validInvoice() *InvoiceRequest {
	return &InvoiceRequest{
		FromName:      "Duka La Mama",
		ToName:        "Acme Ltd",
		ToEmail:       "billing@acme.co.ke",
		Currency:      "kes",
		TaxRate:       decimal.NewFromInt(16),
		DiscountType:  "fixed",
		DiscountValue: decimal.NewFromInt(100),
		DueDate:       "2026-02-01",
		Items: []LineItemRequest{
			{Description: "Logo design", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(5000)},
		},
	}
}

func TestInvoiceValid(t *testing.T) {
	req := validInvoice()
	assert.Empty(t, Invoice(req, nil))
	assert.Equal(t, "KES", req.Currency)

	inv := req.ToInvoice(invoice.Tenant{GuestSessionID: "g-1"})
	require.NotNil(t, inv.GuestSessionID)
	assert.Nil(t, inv.UserID)
	assert.Equal(t, invoice.DiscountFixed, inv.DiscountType)
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(5000)))
	assert.True(t, inv.TaxAmount.Equal(decimal.NewFromInt(800)))
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(5700)))
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, 2026, inv.DueDate.Year())
}

func TestInvoiceInvalid(t *testing.T) {
	req := validInvoice()
	req.FromName = ""
	req.Currency = "shillings"
	req.TaxRate = decimal.NewFromInt(120)
	req.Items = append(req.Items, LineItemRequest{Description: " ", Quantity: decimal.Zero, Rate: decimal.NewFromInt(-1)})

	errs := Invoice(req, nil)
	for _, field := range []string{"fromName", "currency", "taxRate", "items.1.description", "items.1.quantity", "items.1.rate"} {
		assert.Contains(t, errs, field)
	}

	req = validInvoice()
	req.Items = nil
	assert.Contains(t, Invoice(req, nil), "items")
}

func TestValidateAnswersErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.False(t, Validate(c, &QueryPaymentRequest{}, QueryPayment))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	assert.False(t, Validate(c, &QueryPaymentRequest{}, QueryPayment))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Checkout request ID is required")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"checkoutRequestId":"ws_CO_1"}`))
	req := &QueryPaymentRequest{}
	assert.True(t, Validate(c, req, QueryPayment))
	assert.Equal(t, "ws_CO_1", req.CheckoutRequestID)
}
