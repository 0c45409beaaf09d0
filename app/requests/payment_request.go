package requests

import (
	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"

	"riciti/pkg/mpesa"
)

// InitiatePaymentRequest starts an STK push for an invoice
type InitiatePaymentRequest struct {
	PublicInvoiceID string `json:"publicInvoiceId"`
	PhoneNumber     string `json:"phoneNumber"`
}

// InitiatePayment requires both fields and a phone that normalises
func InitiatePayment(data interface{}, c *gin.Context) map[string][]string {
	rules := govalidator.MapData{
		"publicInvoiceId": []string{"required", "max:64"},
		"phoneNumber":     []string{"required", "max:20"},
	}
	messages := govalidator.MapData{
		"publicInvoiceId": []string{
			"required:Invoice ID is required",
			"max:Invoice ID is too long",
		},
		"phoneNumber": []string{
			"required:Phone number is required",
			"max:Phone number is too long",
		},
	}

	errs := validate(data, rules, messages)
	req := data.(*InitiatePaymentRequest)
	if len(errs["phoneNumber"]) == 0 {
		if _, err := mpesa.NormalizePhoneNumber(req.PhoneNumber); err != nil {
			errs = addError(errs, "phoneNumber", "Invalid phone number format. Use 07XXXXXXXX or 2547XXXXXXXX")
		}
	}
	return errs
}

// QueryPaymentRequest asks for the provider status of a charge
type QueryPaymentRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
}

// QueryPayment requires the checkout id
func QueryPayment(data interface{}, c *gin.Context) map[string][]string {
	rules := govalidator.MapData{
		"checkoutRequestId": []string{"required", "max:64"},
	}
	messages := govalidator.MapData{
		"checkoutRequestId": []string{
			"required:Checkout request ID is required",
			"max:Checkout request ID is too long",
		},
	}
	return validate(data, rules, messages)
}
