package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"davietech/broadcaster"
	"davietech/controller"
	"davietech/middleware"
	"davietech/model"
	"davietech/mpesa"
	"davietech/order"
	"davietech/payment"
	"davietech/search"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "routes-secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePayments struct{ err error }

func (f fakePayments) Initiate(_ context.Context, orderID uint, phone string) (*model.PendingPayment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.PendingPayment{OrderID: orderID, Phone: phone, CheckoutRequestID: "ws_CO_1", Status: model.PaymentPending}, nil
}

type fakeCallbacks struct {
	bodies  []string
	applied []*mpesa.STKQueryResponse
}

func (f *fakeCallbacks) HandleSTKCallback(_ context.Context, body []byte) mpesa.Ack {
	f.bodies = append(f.bodies, string(body))
	return mpesa.AckAccepted
}

func (f *fakeCallbacks) HandleC2BValidation([]byte) mpesa.Ack   { return mpesa.AckAccepted }
func (f *fakeCallbacks) HandleC2BConfirmation([]byte) mpesa.Ack { return mpesa.AckSuccess }

func (f *fakeCallbacks) ApplyQueryResult(_ context.Context, resp *mpesa.STKQueryResponse) error {
	f.applied = append(f.applied, resp)
	return nil
}

type fakeGateway struct{}

func (fakeGateway) STKQuery(_ context.Context, id string) (*mpesa.STKQueryResponse, error) {
	return &mpesa.STKQueryResponse{CheckoutRequestID: id, ResultCode: "0", ResultDesc: "processed"}, nil
}

func (fakeGateway) TransactionStatus(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"ResponseCode":"0","ResponseDescription":"Accept the service request successfully."}`), nil
}

type fakeOrders struct{}

func (fakeOrders) Checkout(_ context.Context, req order.CheckoutRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, model.ErrEmptyOrder
	}
	return &model.Order{ID: 1, CustomerName: req.CustomerName, Total: decimal.NewFromInt(100)}, nil
}

func (fakeOrders) Get(_ context.Context, id uint) (*model.Order, error) {
	if id != 1 {
		return nil, model.ErrOrderNotFound
	}
	return &model.Order{ID: 1}, nil
}

func (fakeOrders) List(context.Context) ([]model.Order, error) { return nil, nil }

func (fakeOrders) UpdateStatus(_ context.Context, id uint, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}
	return &model.Order{ID: id, Status: status}, nil
}

type fakeOffers struct{}

func (fakeOffers) Apply(context.Context, uint) ([]model.Product, error) {
	return []model.Product{{ID: 1, Price: decimal.NewFromInt(90)}}, nil
}

func (fakeOffers) Remove(context.Context, uint) ([]model.Product, error) {
	return nil, model.ErrOfferNotFound
}

type fakeSearcher struct{}

func (fakeSearcher) Search(_ context.Context, q string) ([]search.Document, error) {
	return []search.Document{{ID: 1, Name: q}}, nil
}

type harness struct {
	app       *fiber.App
	hub       *broadcaster.Hub
	callbacks *fakeCallbacks
}

func newHarness(payments fakePayments) *harness {
	h := &harness{
		app:       fiber.New(),
		hub:       broadcaster.New(0, discard),
		callbacks: &fakeCallbacks{},
	}
	RegisterRoutes(h.app, Controllers{
		Payments: controller.NewPaymentController(payments, h.callbacks, fakeGateway{}, discard),
		Orders:   controller.NewOrderController(fakeOrders{}),
		Offers:   controller.NewOfferController(fakeOffers{}),
		Events:   controller.NewEventController(h.hub),
		Search:   controller.NewSearchController(fakeSearcher{}, discard),
	}, middleware.AuthRequired(jwtSecret))
	return h
}

func (h *harness) do(t *testing.T, method, path, body, token string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := middleware.IssueToken(jwtSecret, "ops", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestWebhooksAlwaysAnswer200(t *testing.T) {
	h := newHarness(fakePayments{})

	for _, body := range []string{`{"Body":{"stkCallback":{}}}`, `not json`, ``} {
		code, out := h.do(t, http.MethodPost, "/api/payments/mpesa/callback", body, "")
		assert.Equal(t, 200, code)
		assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, out)
	}
	assert.Len(t, h.callbacks.bodies, 3)
	assert.Equal(t, "not json", h.callbacks.bodies[1])

	code, out := h.do(t, http.MethodPost, "/api/payments/mpesa/c2b/validation", `{}`, "")
	assert.Equal(t, 200, code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, out)

	code, out = h.do(t, http.MethodPost, "/api/payments/mpesa/c2b/confirmation", `{}`, "")
	assert.Equal(t, 200, code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Success"}`, out)
}

func TestInitiateSTK(t *testing.T) {
	h := newHarness(fakePayments{})

	code, out := h.do(t, http.MethodPost, "/api/payments/mpesa/stk", `{"order_id":4,"phone":"0712345678"}`, "")
	assert.Equal(t, 201, code)
	assert.Contains(t, out, `"checkout_request_id":"ws_CO_1"`)

	code, _ = h.do(t, http.MethodPost, "/api/payments/mpesa/stk", `{"phone":"0712345678"}`, "")
	assert.Equal(t, 400, code)
}

func TestInitiateSTKErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrOrderNotFound, 404},
		{mpesa.ErrInvalidPhone, 400},
		{payment.ErrAlreadyPaid, 409},
		{payment.ErrThrottled, 429},
		{&mpesa.GatewayError{StatusCode: 400, Body: `{"errorMessage":"Invalid Access Token"}`}, 502},
		{&mpesa.ConfigurationError{Key: "MPESA_PASSKEY"}, 500},
	}
	for _, tt := range tests {
		h := newHarness(fakePayments{err: tt.err})
		code, out := h.do(t, http.MethodPost, "/api/payments/mpesa/stk", `{"order_id":4}`, "")
		assert.Equal(t, tt.want, code, tt.err.Error())
		assert.Contains(t, out, `"error"`)
	}
}

func TestOrders(t *testing.T) {
	h := newHarness(fakePayments{})

	code, _ := h.do(t, http.MethodPost, "/api/orders", `{"customer_name":"Wanjiku","items":[{"product_id":1,"qty":1}]}`, "")
	assert.Equal(t, 201, code)

	code, _ = h.do(t, http.MethodPost, "/api/orders", `{"customer_name":"Wanjiku","items":[]}`, "")
	assert.Equal(t, 400, code)

	code, _ = h.do(t, http.MethodGet, "/api/orders/1", "", "")
	assert.Equal(t, 200, code)

	code, _ = h.do(t, http.MethodGet, "/api/orders/2", "", "")
	assert.Equal(t, 404, code)

	code, _ = h.do(t, http.MethodGet, "/api/orders/abc", "", "")
	assert.Equal(t, 400, code)
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	h := newHarness(fakePayments{})
	customer, err := middleware.IssueToken(jwtSecret, "c1", "customer", time.Hour)
	require.NoError(t, err)

	code, _ := h.do(t, http.MethodGet, "/api/admin/orders", "", "")
	assert.Equal(t, 401, code)

	code, _ = h.do(t, http.MethodGet, "/api/admin/orders", "", customer)
	assert.Equal(t, 403, code)

	code, out := h.do(t, http.MethodGet, "/api/admin/orders", "", adminToken(t))
	assert.Equal(t, 200, code)
	assert.Equal(t, "[]", out)
}

func TestAdminOperations(t *testing.T) {
	h := newHarness(fakePayments{})
	tok := adminToken(t)

	code, out := h.do(t, http.MethodPatch, "/api/admin/orders/3/status", `{"status":"shipped"}`, tok)
	assert.Equal(t, 200, code)
	assert.Contains(t, out, `"status":"shipped"`)

	code, _ = h.do(t, http.MethodPatch, "/api/admin/orders/3/status", `{"status":"lost"}`, tok)
	assert.Equal(t, 400, code)

	code, out = h.do(t, http.MethodPost, "/api/admin/offers/2/apply", "", tok)
	assert.Equal(t, 200, code)
	assert.Contains(t, out, `"offer_id":2`)

	code, _ = h.do(t, http.MethodPost, "/api/admin/offers/2/remove", "", tok)
	assert.Equal(t, 404, code)

	code, out = h.do(t, http.MethodGet, "/api/admin/payments/mpesa/status/NLJ7RT61SV", "", tok)
	assert.Equal(t, 200, code)
	assert.Contains(t, out, "Accept the service request")

	code, out = h.do(t, http.MethodGet, "/api/admin/payments/mpesa/stk/ws_CO_9", "", tok)
	assert.Equal(t, 200, code)
	assert.Contains(t, out, `"CheckoutRequestID":"ws_CO_9"`)
	require.Len(t, h.callbacks.applied, 1)
	assert.Equal(t, "ws_CO_9", h.callbacks.applied[0].CheckoutRequestID)
}

func TestSearch(t *testing.T) {
	h := newHarness(fakePayments{})

	code, out := h.do(t, http.MethodGet, "/api/search?q=charger", "", "")
	assert.Equal(t, 200, code)
	assert.Contains(t, out, `"name":"charger"`)

	code, _ = h.do(t, http.MethodGet, "/api/search", "", "")
	assert.Equal(t, 400, code)
}

func TestEventStream(t *testing.T) {
	h := newHarness(fakePayments{})

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for h.hub.Len() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		h.hub.Broadcast(model.ChangeEvent{Type: model.EventOrders})
		h.hub.CloseAll()
	}()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t,
		"event: message\ndata: {\"type\":\"connected\"}\n\nevent: message\ndata: {\"type\":\"orders\"}\n\n",
		string(body))
}
