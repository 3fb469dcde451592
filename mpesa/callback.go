package mpesa

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ResultSuccess is the ResultCode of a completed STK payment.
const ResultSuccess = 0

// Ack is the acknowledgment body the provider expects from every webhook.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var (
	AckAccepted = Ack{ResultCode: 0, ResultDesc: "Accepted"}
	AckSuccess  = Ack{ResultCode: 0, ResultDesc: "Success"}
)

type stkEnvelope struct {
	Body *struct {
		StkCallback *STKResult `json:"stkCallback"`
	} `json:"Body"`
}

// STKResult is the stkCallback object of an STK result webhook.
type STKResult struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// PaymentDetails holds the metadata fields the reconciler uses. Absent fields
// stay at their zero value; Amount.Valid tells whether an amount was sent.
type PaymentDetails struct {
	Amount          decimal.NullDecimal
	ReceiptNumber   string
	Phone           string
	TransactionDate string
}

// ParseSTKCallback decodes an STK result webhook body.
func ParseSTKCallback(body []byte) (*STKResult, error) {
	var env stkEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback", ErrMalformedCallback)
	}
	res := env.Body.StkCallback
	if res.CheckoutRequestID == "" && res.MerchantRequestID == "" {
		return nil, fmt.Errorf("%w: missing request identifiers", ErrMalformedCallback)
	}
	return res, nil
}

// Succeeded reports whether the customer completed the payment.
func (r *STKResult) Succeeded() bool {
	return r.ResultCode == ResultSuccess
}

// Details extracts the known metadata entries.
func (r *STKResult) Details() (PaymentDetails, error) {
	var d PaymentDetails
	if r.CallbackMetadata == nil {
		return d, nil
	}

	for _, item := range r.CallbackMetadata.Item {
		text, ok := scalar(item.Value)
		if !ok {
			continue
		}
		switch item.Name {
		case "Amount":
			amount, err := decimal.NewFromString(text)
			if err != nil {
				return d, fmt.Errorf("%w: amount %q", ErrMalformedCallback, text)
			}
			d.Amount = decimal.NewNullDecimal(amount)
		case "MpesaReceiptNumber":
			d.ReceiptNumber = text
		case "PhoneNumber":
			d.Phone = text
		case "TransactionDate":
			d.TransactionDate = text
		}
	}
	return d, nil
}

// scalar renders a JSON string or number literal as text. Numbers keep their
// literal form so long phone numbers never pass through float64.
func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", false
	}
	return string(raw), true
}

// C2BPayload is the body of both C2B validation and confirmation webhooks.
type C2BPayload struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	InvoiceNumber     string `json:"InvoiceNumber"`
	OrgAccountBalance string `json:"OrgAccountBalance"`
	ThirdPartyTransID string `json:"ThirdPartyTransID"`
	MSISDN            string `json:"MSISDN"`
	FirstName         string `json:"FirstName"`
}
