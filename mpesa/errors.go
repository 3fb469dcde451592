package mpesa

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrMalformedCallback = errors.New("malformed callback")
)

// ConfigurationError reports a required setting that is absent. It is returned
// before any request leaves the process.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("mpesa: missing configuration %s", e.Key)
}

// GatewayError is a non-2xx answer from the provider.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mpesa: gateway returned %d: %s", e.StatusCode, e.Body)
}

// Message returns the provider's errorMessage field when the body carries one,
// otherwise the raw body.
func (e *GatewayError) Message() string {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err == nil && body.ErrorMessage != "" {
		return body.ErrorMessage
	}
	return e.Body
}
