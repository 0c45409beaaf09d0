// Package payment handles the M-Pesa payment endpoints
package payment

import (
	"context"
	"errors"
	"net/http"

	"riciti/app/models/invoice"
	"riciti/app/models/payment"
	"riciti/app/requests"
	"riciti/pkg/logger"
	"riciti/pkg/mpesa"
	paysvc "riciti/pkg/payment"
	"riciti/pkg/response"

	"github.com/gin-gonic/gin"
)

// Service is the part of the payment state machine the handlers drive
type Service interface {
	Enabled() bool
	Initiate(ctx context.Context, publicInvoiceID, phone string) (*paysvc.InitiateResult, error)
	HandleCallback(ctx context.Context, body []byte) error
	Query(ctx context.Context, checkoutRequestID string) (*paysvc.QueryResult, error)
}

type PaymentController struct {
	service Service
}

// NewPaymentController binds the handlers to service
func NewPaymentController(service Service) *PaymentController {
	return &PaymentController{service: service}
}

// Initiate sends the STK push for an invoice
func (pc *PaymentController) Initiate(c *gin.Context) {
	if !pc.service.Enabled() {
		response.Abort503(c, "Payments are currently unavailable")
		return
	}

	req := requests.InitiatePaymentRequest{}
	if ok := requests.Validate(c, &req, requests.InitiatePayment); !ok {
		return
	}

	result, err := pc.service.Initiate(c.Request.Context(), req.PublicInvoiceID, req.PhoneNumber)
	if err != nil {
		abortWithError(c, err)
		return
	}
	response.Data(c, result)
}

// Callback receives Daraja's result. It always answers the acknowledgement.
func (pc *PaymentController) Callback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		logger.WarnString("Payment", "callback body", err.Error())
	} else {
		// the provider may hang up; the transition must still land
		_ = pc.service.HandleCallback(context.WithoutCancel(c.Request.Context()), body)
	}
	c.JSON(http.StatusOK, mpesa.Accepted)
}

// Query asks the provider for a charge's outcome and applies it
func (pc *PaymentController) Query(c *gin.Context) {
	req := requests.QueryPaymentRequest{}
	if ok := requests.Validate(c, &req, requests.QueryPayment); !ok {
		return
	}

	result, err := pc.service.Query(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	response.Data(c, result)
}

// abortWithError maps domain errors to statuses; the rest are a generic 500
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mpesa.ErrInvalidPhoneFormat):
		response.Abort400(c, "Invalid phone number format. Use 07XXXXXXXX or 2547XXXXXXXX")
	case errors.Is(err, invoice.ErrInvoiceNotFound):
		response.Abort404(c, "Invoice not found")
	case errors.Is(err, payment.ErrPaymentNotFound):
		response.Abort404(c, "Payment not found")
	case errors.Is(err, payment.ErrAlreadyPaid):
		response.Abort409(c, "Invoice is already paid")
	case errors.Is(err, payment.ErrPaymentInProgress):
		response.Abort409(c, "A payment is already in progress for this invoice")
	case errors.Is(err, paysvc.ErrGatewayDisabled):
		response.Abort503(c, "Payments are currently unavailable")
	default:
		response.ServerError(c, err, "Payment could not be processed. Please try again.")
	}
}
