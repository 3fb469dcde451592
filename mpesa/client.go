package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"davietech/config"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const (
	SandboxURL    = "https://sandbox.safaricom.co.ke"
	ProductionURL = "https://api.safaricom.co.ke"

	pathOAuth             = "/oauth/v1/generate?grant_type=client_credentials"
	pathSTKPush           = "/mpesa/stkpush/v1/processrequest"
	pathSTKQuery          = "/mpesa/stkpushquery/v1/query"
	pathTransactionStatus = "/mpesa/transactionstatus/v1/query"
	pathC2BRegister       = "/mpesa/c2b/v1/registerurl"

	timestampLayout = "20060102150405"
)

// Timestamps are Kenyan wall-clock time.
var nairobi = time.FixedZone("EAT", 3*60*60)

// Settings resolves configuration at call time. *viper.Viper satisfies it.
type Settings interface {
	GetString(key string) string
}

// Client talks to the Daraja API. It keeps no state between calls: every
// operation fetches a fresh token and signs with a fresh timestamp.
type Client struct {
	settings Settings
	http     *http.Client
	baseURL  string
	now      func() time.Time
}

type Option func(*Client)

// WithBaseURL pins the API host instead of deriving it from MPESA_ENV.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(settings Settings, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		settings: settings,
		http:     httpClient,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type STKPushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// STKPushPayload is the provider's request body; field names are fixed by Daraja.
type STKPushPayload struct {
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

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	Raw json.RawMessage `json:"-"`
}

type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`

	Raw json.RawMessage `json:"-"`
}

// Password signs a request: base64(shortCode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// AccessToken exchanges the consumer key and secret for a bearer token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	vals, err := c.require(config.MpesaConsumerKey, config.MpesaConsumerSecret)
	if err != nil {
		return "", err
	}
	return c.fetchToken(ctx, vals[config.MpesaConsumerKey], vals[config.MpesaConsumerSecret])
}

func (c *Client) fetchToken(ctx context.Context, key, secret string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+pathOAuth, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(key, secret)

	raw, err := c.do(req)
	if err != nil {
		return "", err
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("mpesa: decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("mpesa: empty access token in %s", raw)
	}
	return tok.AccessToken, nil
}

// STKPush prompts the customer's phone to authorise a payment to the shortcode.
func (c *Client) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResponse, error) {
	vals, err := c.require(
		config.MpesaConsumerKey,
		config.MpesaConsumerSecret,
		config.MpesaShortCode,
		config.MpesaPasskey,
		config.MpesaCallbackURL,
	)
	if err != nil {
		return nil, err
	}

	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	amount := in.Amount.Ceil().IntPart()
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	shortCode := vals[config.MpesaShortCode]
	timestamp := c.timestamp()
	payload := STKPushPayload{
		BusinessShortCode: shortCode,
		Password:          Password(shortCode, vals[config.MpesaPasskey], timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            shortCode,
		PhoneNumber:       phone,
		CallBackURL:       vals[config.MpesaCallbackURL],
		AccountReference:  in.AccountReference,
		TransactionDesc:   descriptionOr(in.Description, "Payment for "+in.AccountReference),
	}

	token, err := c.fetchToken(ctx, vals[config.MpesaConsumerKey], vals[config.MpesaConsumerSecret])
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, token, pathSTKPush, payload)
	if err != nil {
		return nil, err
	}

	out := &STKPushResponse{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("mpesa: decode stk push response: %w", err)
	}
	return out, nil
}

// STKQuery asks the provider for the outcome of an earlier STK push.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	vals, err := c.require(
		config.MpesaConsumerKey,
		config.MpesaConsumerSecret,
		config.MpesaShortCode,
		config.MpesaPasskey,
	)
	if err != nil {
		return nil, err
	}

	shortCode := vals[config.MpesaShortCode]
	timestamp := c.timestamp()
	payload := map[string]string{
		"BusinessShortCode": shortCode,
		"Password":          Password(shortCode, vals[config.MpesaPasskey], timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	token, err := c.fetchToken(ctx, vals[config.MpesaConsumerKey], vals[config.MpesaConsumerSecret])
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, token, pathSTKQuery, payload)
	if err != nil {
		return nil, err
	}

	out := &STKQueryResponse{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("mpesa: decode stk query response: %w", err)
	}
	return out, nil
}

// TransactionStatus queries a completed transaction by its receipt number.
// The final answer is delivered asynchronously to MPESA_RESULT_URL; the
// synchronous acknowledgment is returned as-is.
func (c *Client) TransactionStatus(ctx context.Context, transactionID string) (json.RawMessage, error) {
	vals, err := c.require(
		config.MpesaConsumerKey,
		config.MpesaConsumerSecret,
		config.MpesaShortCode,
		config.MpesaInitiatorName,
		config.MpesaSecurityCredential,
		config.MpesaResultURL,
		config.MpesaQueueTimeoutURL,
	)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"Initiator":          vals[config.MpesaInitiatorName],
		"SecurityCredential": vals[config.MpesaSecurityCredential],
		"CommandID":          "TransactionStatusQuery",
		"TransactionID":      transactionID,
		"PartyA":             vals[config.MpesaShortCode],
		"IdentifierType":     "4",
		"ResultURL":          vals[config.MpesaResultURL],
		"QueueTimeOutURL":    vals[config.MpesaQueueTimeoutURL],
		"Remarks":            "Transaction status query",
		"Occasion":           "",
	}

	token, err := c.fetchToken(ctx, vals[config.MpesaConsumerKey], vals[config.MpesaConsumerSecret])
	if err != nil {
		return nil, err
	}
	return c.post(ctx, token, pathTransactionStatus, payload)
}

// RegisterC2BURLs registers the validation and confirmation URLs for the
// customer-initiated channel. It is a one-time administrative call.
func (c *Client) RegisterC2BURLs(ctx context.Context) (json.RawMessage, error) {
	vals, err := c.require(
		config.MpesaConsumerKey,
		config.MpesaConsumerSecret,
		config.MpesaShortCode,
		config.MpesaConfirmationURL,
		config.MpesaValidationURL,
	)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"ShortCode":       vals[config.MpesaShortCode],
		"ResponseType":    "Completed",
		"ConfirmationURL": vals[config.MpesaConfirmationURL],
		"ValidationURL":   vals[config.MpesaValidationURL],
	}

	token, err := c.fetchToken(ctx, vals[config.MpesaConsumerKey], vals[config.MpesaConsumerSecret])
	if err != nil {
		return nil, err
	}
	return c.post(ctx, token, pathC2BRegister, payload)
}

func (c *Client) post(ctx context.Context, token, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mpesa: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mpesa: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func (c *Client) require(keys ...string) (map[string]string, error) {
	vals := make(map[string]string, len(keys))
	for _, k := range keys {
		v := strings.TrimSpace(c.settings.GetString(k))
		if v == "" {
			return nil, &ConfigurationError{Key: k}
		}
		vals[k] = v
	}
	return vals, nil
}

func (c *Client) base() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	if strings.EqualFold(c.settings.GetString(config.MpesaEnv), "production") {
		return ProductionURL
	}
	return SandboxURL
}

func (c *Client) timestamp() string {
	return c.now().In(nairobi).Format(timestampLayout)
}

func descriptionOr(desc, fallback string) string {
	if desc != "" {
		return desc
	}
	return fallback
}
