// Package mpesa is a client for Safaricom's Daraja STK push API
package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SandboxURL    = "https://sandbox.safaricom.co.ke"
	ProductionURL = "https://api.safaricom.co.ke"

	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	TransactionTypePayBill = "CustomerPayBillOnline"

	// Daraja field limits
	MaxAccountReference = 12
	MaxTransactionDesc  = 13

	DefaultTransactionDesc = "Payment"
)

// Result codes reported by callback and query
const (
	ResultSuccess         = 0
	ResultCancelled       = 1032
	ResultStillProcessing = 1037
)

// ErrorCodeQueryPending is returned by the query endpoint while the
// customer has not yet answered the prompt.
const ErrorCodeQueryPending = "500.001.1001"

// EAT is the fixed +03:00 offset Daraja uses for timestamps
var EAT = time.FixedZone("EAT", 3*60*60)

var (
	// ErrInvalidPhoneFormat the number cannot be normalised to 254XXXXXXXXX
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	// ErrAuthRejected the consumer key/secret were refused; never retried
	ErrAuthRejected = errors.New("mpesa: credentials rejected")
	// ErrTokenUnavailable the token endpoint kept failing
	ErrTokenUnavailable = errors.New("mpesa: access token unavailable")
	// ErrChargeInitiationFailed the STK push was refused
	ErrChargeInitiationFailed = errors.New("mpesa: charge initiation failed")
	// ErrQueryFailed the STK query was refused
	ErrQueryFailed = errors.New("mpesa: status query failed")
	// ErrQueryPending the provider is still processing the push
	ErrQueryPending = errors.New("mpesa: transaction still processing")
	// ErrMalformedCallback the payload has no Body.stkCallback
	ErrMalformedCallback = errors.New("mpesa: malformed callback payload")
)

// ProviderError carries what Daraja said when it refused a request
type ProviderError struct {
	Kind       error
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Unwrap exposes Kind to errors.Is
func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// STKPushRequest is the caller's view of a push charge
type STKPushRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
	CallbackURL      string
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is Daraja's answer to a push charge
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	// Whole-unit amount that was sent
	Amount decimal.Decimal `json:"-"`
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is Daraja's synchronous status answer
type STKQueryResponse struct {
	ResponseCode        string      `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	MerchantRequestID   string      `json:"MerchantRequestID"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResultCode          json.Number `json:"ResultCode"`
	ResultDesc          string      `json:"ResultDesc"`
}

// Code returns ResultCode as an int, or -1 when it is missing
func (r *STKQueryResponse) Code() int {
	n, err := r.ResultCode.Int64()
	if err != nil {
		return -1
	}
	return int(n)
}

// errorBody is the shape Daraja uses for rejected requests
type errorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   interface{} `json:"expires_in"`
}
