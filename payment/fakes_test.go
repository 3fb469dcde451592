package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"davietech/kafka"
	"davietech/model"
	"davietech/mpesa"

	"github.com/shopspring/decimal"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type memStore struct {
	orders   map[uint]*model.Order
	payments []*model.PendingPayment
	failWith error
	paid     []Settlement
	failed   []Settlement
}

func newMemStore(orders ...*model.Order) *memStore {
	s := &memStore{orders: map[uint]*model.Order{}}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) GetOrder(_ context.Context, id uint) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) CreatePendingPayment(_ context.Context, p *model.PendingPayment) error {
	if s.failWith != nil {
		return s.failWith
	}
	p.ID = uint(len(s.payments) + 1)
	s.payments = append(s.payments, p)
	return nil
}

func (s *memStore) PendingByCheckoutID(_ context.Context, id string) (*model.PendingPayment, error) {
	for _, p := range s.payments {
		if p.CheckoutRequestID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, model.ErrPaymentNotFound
}

func (s *memStore) MatchPendingOrder(_ context.Context, amount decimal.Decimal, phone string) (*model.Order, error) {
	var candidates []*model.Order
	for _, o := range s.orders {
		if o.PaymentStatus == model.PaymentPending && o.PaymentMethod == model.MethodMpesa &&
			o.Total.Ceil().Equal(amount) && o.CustomerPhone == phone {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return nil, model.ErrOrderNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})
	cp := *candidates[0]
	return &cp, nil
}

func (s *memStore) MarkPaid(_ context.Context, st Settlement) error {
	if s.failWith != nil {
		return s.failWith
	}
	o, ok := s.orders[st.OrderID]
	if !ok {
		return model.ErrOrderNotFound
	}
	o.PaymentStatus = model.PaymentPaid
	o.Status = model.OrderProcessing
	o.Notes = st.Notes
	if p := s.byID(st.PendingID); p != nil {
		p.Status = model.PaymentPaid
		p.ReceiptNumber = st.Receipt
		p.ResultCode = st.ResultCode
		p.ResultDesc = st.ResultDesc
		p.CallbackPayload = st.Payload
		at := st.At
		p.PaidAt = &at
	}
	s.paid = append(s.paid, st)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, st Settlement) error {
	if s.failWith != nil {
		return s.failWith
	}
	if p := s.byID(st.PendingID); p != nil {
		p.Status = model.PaymentFailed
		p.ResultCode = st.ResultCode
		p.ResultDesc = st.ResultDesc
	}
	if o, ok := s.orders[st.OrderID]; ok && o.PaymentStatus == model.PaymentPending {
		o.PaymentStatus = model.PaymentFailed
	}
	s.failed = append(s.failed, st)
	return nil
}

func (s *memStore) byID(id uint) *model.PendingPayment {
	for _, p := range s.payments {
		if id != 0 && p.ID == id {
			return p
		}
	}
	return nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (h *recordingHub) Broadcast(ev model.ChangeEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return 1
}

func (h *recordingHub) got() []model.ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.ChangeEvent(nil), h.events...)
}

type memReceipts struct {
	seen map[string]bool
	err  error
}

func (r *memReceipts) MarkReceipt(_ context.Context, receipt string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	if r.seen[receipt] {
		return false, nil
	}
	r.seen[receipt] = true
	return true, nil
}

func (r *memReceipts) ForgetReceipt(_ context.Context, receipt string) error {
	delete(r.seen, receipt)
	return nil
}

type countingCache struct{ invalidations int }

func (c *countingCache) InvalidateOrders(context.Context) error {
	c.invalidations++
	return nil
}

type recordingPublisher struct {
	paid   []kafka.PaymentData
	failed []kafka.PaymentData
	err    error
}

func (p *recordingPublisher) PublishPaymentPaid(d kafka.PaymentData) error {
	p.paid = append(p.paid, d)
	return p.err
}

func (p *recordingPublisher) PublishPaymentFailed(d kafka.PaymentData) error {
	p.failed = append(p.failed, d)
	return p.err
}

type fakeGateway struct {
	calls []mpesa.STKPushRequest
	resp  *mpesa.STKPushResponse
	err   error
}

func (g *fakeGateway) STKPush(_ context.Context, in mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	g.calls = append(g.calls, in)
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

var errDatabaseDown = errors.New("database down")

func mpesaOrder(id uint, total, phone string, created time.Time) *model.Order {
	return &model.Order{
		ID:            id,
		CustomerName:  "Wanjiku",
		CustomerPhone: phone,
		Total:         decimal.RequireFromString(total),
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: model.MethodMpesa,
		CreatedAt:     created,
	}
}
