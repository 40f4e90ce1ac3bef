package payment

import (
	"encoding/json"
	"testing"

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
          {"Name": "Amount", "Value": 1500.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

const failureCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user."
    }
  }
}`

func TestDecodeSuccessCallback(t *testing.T) {
	var envelope CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(successCallback), &envelope))

	cb := envelope.Body.StkCallback
	assert.Equal(t, 0, cb.ResultCode)
	assert.Equal(t, "ws_CO_191220191020363925", cb.CheckoutRequestID)
	assert.Equal(t, "NLJ7RT61SV", cb.CallbackMetadata.ReceiptNumber())
	// Phone numbers arrive as JSON numbers, not strings.
	assert.Equal(t, "254712345678", cb.CallbackMetadata.PhoneNumber())
}

func TestDecodeFailureCallback(t *testing.T) {
	var envelope CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(failureCallback), &envelope))

	cb := envelope.Body.StkCallback
	assert.Equal(t, 1032, cb.ResultCode)
	assert.Equal(t, "Request cancelled by user.", cb.ResultDesc)
	assert.Empty(t, cb.CallbackMetadata.ReceiptNumber())
	assert.Empty(t, cb.CallbackMetadata.PhoneNumber())
}

func TestCallbackMetadataMissingItems(t *testing.T) {
	m := CallbackMetadata{Item: []CallbackItem{
		{Name: "Amount", Value: 100.0},
		{Name: "MpesaReceiptNumber", Value: nil},
	}}
	assert.Empty(t, m.ReceiptNumber(), "nil values are treated as absent")
	assert.Empty(t, m.PhoneNumber())
}
