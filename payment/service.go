package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"davietech/model"
	"davietech/mpesa"

	"golang.org/x/time/rate"
)

var (
	ErrNotMobileMoney = errors.New("order is not payable by mobile money")
	ErrAlreadyPaid    = errors.New("order is already paid")
	ErrOrderCancelled = errors.New("order is cancelled")
	ErrThrottled      = errors.New("a payment prompt was sent to this phone recently")
)

type Gateway interface {
	STKPush(ctx context.Context, in mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
}

type Broadcaster interface {
	Broadcast(ev model.ChangeEvent) int
}

// Service starts mobile-money payments for orders.
type Service struct {
	store   Store
	gateway Gateway
	hub     Broadcaster
	limiter *PhoneLimiter
	logger  *slog.Logger
}

// NewService wires the initiation flow. limiter may be nil.
func NewService(store Store, gateway Gateway, hub Broadcaster, limiter *PhoneLimiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gateway: gateway, hub: hub, limiter: limiter, logger: logger}
}

// Initiate sends an STK push for the order total and records the pending
// payment under the returned CheckoutRequestID. An empty phone falls back to
// the order's customer phone.
func (s *Service) Initiate(ctx context.Context, orderID uint, phone string) (*model.PendingPayment, error) {
	// 1. Validate the order
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case order.PaymentMethod != model.MethodMpesa:
		return nil, ErrNotMobileMoney
	case order.PaymentStatus == model.PaymentPaid:
		return nil, ErrAlreadyPaid
	case order.Status == model.OrderCancelled:
		return nil, ErrOrderCancelled
	}

	if phone == "" {
		phone = order.CustomerPhone
	}
	phone, err = mpesa.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	release := func() {}
	if s.limiter != nil {
		var ok bool
		if release, ok = s.limiter.Reserve(phone); !ok {
			return nil, ErrThrottled
		}
	}

	// 2. Prompt the customer
	resp, err := s.gateway.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            phone,
		Amount:           order.Total,
		AccountReference: fmt.Sprintf("ORDER-%d", order.ID),
	})
	if err != nil {
		// No prompt reached the phone, so a retry is not throttled.
		release()
		return nil, err
	}

	// 3. Record the correlation
	pending := &model.PendingPayment{
		OrderID:           order.ID,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		Phone:             phone,
		Amount:            order.Total,
		Status:            model.PaymentPending,
	}
	if err := s.store.CreatePendingPayment(ctx, pending); err != nil {
		// The prompt is already on the phone; the callback falls back to
		// amount and phone matching.
		s.logger.Error("failed to record pending payment",
			"order_id", order.ID, "checkout_request_id", resp.CheckoutRequestID, "error", err)
	}

	s.logger.Info("stk push sent", "order_id", order.ID, "checkout_request_id", resp.CheckoutRequestID)
	s.hub.Broadcast(model.ChangeEvent{Type: model.EventPayments, ID: fmt.Sprint(order.ID)})
	return pending, nil
}

// PhoneLimiter allows one payment prompt per phone per interval.
type PhoneLimiter struct {
	mu       sync.Mutex
	every    time.Duration
	limiters map[string]*rate.Limiter
}

const limiterSweepSize = 10000

func NewPhoneLimiter(every time.Duration) *PhoneLimiter {
	return &PhoneLimiter{every: every, limiters: make(map[string]*rate.Limiter)}
}

func (l *PhoneLimiter) Allow(phone string) bool {
	_, ok := l.Reserve(phone)
	return ok
}

// Reserve takes the phone's slot. release hands it back, for a prompt that
// never reached the provider.
func (l *PhoneLimiter) Reserve(phone string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, found := l.limiters[phone]
	if !found {
		if len(l.limiters) >= limiterSweepSize {
			l.sweep()
		}
		lim = rate.NewLimiter(rate.Every(l.every), 1)
		l.limiters[phone] = lim
	}
	if !lim.Allow() {
		return nil, false
	}
	return func() {
		l.mu.Lock()
		if l.limiters[phone] == lim {
			delete(l.limiters, phone)
		}
		l.mu.Unlock()
	}, true
}

// sweep drops limiters that have fully refilled; they behave like new ones.
func (l *PhoneLimiter) sweep() {
	for phone, lim := range l.limiters {
		if lim.Tokens() >= 1 {
			delete(l.limiters, phone)
		}
	}
}
