package mpesa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 10.00},
          {"Name": "MpesaReceiptNumber", "Value": "QAA1234XYZ"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149},
          {"Name": "Unknown", "Value": "ignored"}
        ]
      }
    }
  }
}`

func TestParseCallbackSuccess(t *testing.T) {
	res, err := ParseCallback([]byte(successCallback))
	require.NoError(t, err)

	assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.Equal(t, ResultSuccess, res.ResultCode)
	assert.Equal(t, "QAA1234XYZ", res.MpesaReceiptNumber)
	assert.Equal(t, "20191219102115", res.TransactionDate)
	assert.Equal(t, "254708374149", res.PhoneNumber)
	require.True(t, res.Amount.Valid)
	assert.Equal(t, "10", res.Amount.Decimal.String())
}

func TestParseCallbackCancelledIgnoresMetadata(t *testing.T) {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"c","ResultCode":1032,"ResultDesc":"Request cancelled by user","CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"X"}]}}}}`
	res, err := ParseCallback([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, ResultCancelled, res.ResultCode)
	assert.Equal(t, "Request cancelled by user", res.ResultDesc)
	assert.Empty(t, res.MpesaReceiptNumber)
	assert.False(t, res.Amount.Valid)
}

func TestParseCallbackSuccessWithoutMetadata(t *testing.T) {
	res, err := ParseCallback([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"c","ResultCode":0,"ResultDesc":"ok"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "c", res.CheckoutRequestID)
	assert.False(t, res.Amount.Valid)
}

func TestParseCallbackMalformed(t *testing.T) {
	for _, body := range []string{
		``,
		`not json`,
		`{}`,
		`{"Body":{}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"c","ResultCode":"abc"}}}`,
	} {
		_, err := ParseCallback([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedCallback, body)
	}
}

func TestParseTransactionDate(t *testing.T) {
	got, ok := ParseTransactionDate("20191219102115")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2019, 12, 19, 7, 21, 15, 0, time.UTC)))

	_, ok = ParseTransactionDate("2019121910")
	assert.False(t, ok)
	_, ok = ParseTransactionDate("2019121910211x")
	assert.False(t, ok)
}
