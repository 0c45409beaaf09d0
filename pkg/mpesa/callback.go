package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Acknowledgement is the only body ever returned to the callback caller
type Acknowledgement struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Accepted tells Daraja to stop retrying
var Accepted = Acknowledgement{ResultCode: 0, ResultDesc: "Accepted"}

type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string      `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        json.Number `json:"ResultCode"`
	ResultDesc        string      `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type callbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// CallbackResult is a flattened STK callback
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	// Populated only when ResultCode is 0
	MpesaReceiptNumber string
	TransactionDate    string
	PhoneNumber        string
	Amount             decimal.NullDecimal
}

// ParseCallback flattens a raw callback body. Metadata is read only for
// successful results; unknown items are ignored.
func ParseCallback(payload []byte) (*CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return nil, ErrMalformedCallback
	}

	cb := env.Body.StkCallback
	code, err := cb.ResultCode.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: result code %q", ErrMalformedCallback, cb.ResultCode.String())
	}

	result := &CallbackResult{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        int(code),
		ResultDesc:        cb.ResultDesc,
	}

	if result.ResultCode != ResultSuccess || cb.CallbackMetadata == nil {
		return result, nil
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			result.MpesaReceiptNumber = itemString(item.Value)
		case "TransactionDate":
			result.TransactionDate = itemString(item.Value)
		case "PhoneNumber":
			result.PhoneNumber = itemString(item.Value)
		case "Amount":
			if amount, err := decimal.NewFromString(itemString(item.Value)); err == nil {
				result.Amount = decimal.NewNullDecimal(amount)
			}
		}
	}
	return result, nil
}

// itemString keeps large integers such as 20191219102115 intact
func itemString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case json.Number:
		return t.String()
	case string:
		return t
	default:
		return cast.ToString(t)
	}
}

// ParseTransactionDate reads Daraja's YYYYMMDDHHmmss encoding as EAT
func ParseTransactionDate(raw string) (time.Time, bool) {
	if len(raw) < 14 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102150405", raw[:14], EAT)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
