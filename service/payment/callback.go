package payment

import "fmt"

// CallbackEnvelope is the Daraja STK callback body:
//
//	{"Body": {"stkCallback": {"ResultCode": 0, "CheckoutRequestID": ...,
//	  "CallbackMetadata": {"Item": [{"Name": ..., "Value": ...}, ...]}}}}
//
// CallbackMetadata is only present on success.
type CallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string           `json:"MerchantRequestID"`
			CheckoutRequestID string           `json:"CheckoutRequestID"`
			ResultCode        int              `json:"ResultCode"`
			ResultDesc        string           `json:"ResultDesc"`
			CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are untyped in the wire format: receipts arrive as
// strings, amounts and phone numbers as JSON numbers.
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

func (m CallbackMetadata) stringValue(name string) string {
	for _, item := range m.Item {
		if item.Name != name || item.Value == nil {
			continue
		}
		switch v := item.Value.(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// ReceiptNumber returns the MpesaReceiptNumber item, or "" if absent.
func (m CallbackMetadata) ReceiptNumber() string {
	return m.stringValue("MpesaReceiptNumber")
}

// PhoneNumber returns the payer MSISDN item, or "" if absent.
func (m CallbackMetadata) PhoneNumber() string {
	return m.stringValue("PhoneNumber")
}
