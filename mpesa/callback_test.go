package mpesa

import (
	"errors"
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
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

func TestParseSTKCallbackSuccess(t *testing.T) {
	res, err := ParseSTKCallback([]byte(successCallback))
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)

	d, err := res.Details()
	require.NoError(t, err)
	require.True(t, d.Amount.Valid)
	assert.Equal(t, "1500", d.Amount.Decimal.String())
	assert.Equal(t, "NLJ7RT61SV", d.ReceiptNumber)
	assert.Equal(t, "254708374149", d.Phone)
	assert.Equal(t, "20191219102115", d.TransactionDate)
}

func TestParseSTKCallbackCancelled(t *testing.T) {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"c","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

	res, err := ParseSTKCallback([]byte(body))
	require.NoError(t, err)
	assert.False(t, res.Succeeded())

	d, err := res.Details()
	require.NoError(t, err)
	assert.False(t, d.Amount.Valid)
	assert.Empty(t, d.Phone)
}

func TestParseSTKCallbackMalformed(t *testing.T) {
	for _, body := range []string{
		``,
		`not json`,
		`{}`,
		`{"Body":{}}`,
		`{"Body":{"stkCallback":{}}}`,
	} {
		_, err := ParseSTKCallback([]byte(body))
		assert.True(t, errors.Is(err, ErrMalformedCallback), "body %q", body)
	}
}

func TestDetailsAcceptsStringValues(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"c","ResultCode":0,"CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":"250.50"},{"Name":"PhoneNumber","Value":"254712345678"}]}}}}`

	res, err := ParseSTKCallback([]byte(body))
	require.NoError(t, err)
	d, err := res.Details()
	require.NoError(t, err)
	assert.Equal(t, "250.5", d.Amount.Decimal.String())
	assert.Equal(t, "254712345678", d.Phone)
}

func TestDetailsRejectsNonNumericAmount(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"c","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":"ten"}]}}}}`

	res, err := ParseSTKCallback([]byte(body))
	require.NoError(t, err)
	_, err = res.Details()
	assert.True(t, errors.Is(err, ErrMalformedCallback))
}

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"0712345678":      "254712345678",
		"+254712345678":   "254712345678",
		"254 712 345 678": "254712345678",
		"712345678":       "254712345678",
		"0110-123-456":    "254110123456",
	}
	for in, want := range valid {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "12345", "07123456789", "2547123456ab", "+1 202 555 0101"} {
		_, err := NormalizePhone(in)
		assert.ErrorIs(t, err, ErrInvalidPhone, in)
	}
}
