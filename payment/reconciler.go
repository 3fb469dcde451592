package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"davietech/kafka"
	"davietech/model"
	"davietech/mpesa"

	"github.com/goccy/go-json"
)

type ReceiptGuard interface {
	MarkReceipt(ctx context.Context, receipt string) (bool, error)
	ForgetReceipt(ctx context.Context, receipt string) error
}

type OrderCache interface {
	InvalidateOrders(ctx context.Context) error
}

type EventPublisher interface {
	PublishPaymentPaid(data kafka.PaymentData) error
	PublishPaymentFailed(data kafka.PaymentData) error
}

// Deps are the collaborators of a Reconciler. Receipts, Cache and Events are
// optional and must be left nil, not set to a typed nil, when unavailable.
type Deps struct {
	Store    Store
	Receipts ReceiptGuard
	Cache    OrderCache
	Events   EventPublisher
	Hub      Broadcaster
	Logger   *slog.Logger
}

// Reconciler applies provider payment results to orders.
type Reconciler struct {
	store    Store
	receipts ReceiptGuard
	cache    OrderCache
	events   EventPublisher
	hub      Broadcaster
	logger   *slog.Logger
	now      func() time.Time
}

func NewReconciler(d Deps) *Reconciler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Reconciler{
		store:    d.Store,
		receipts: d.Receipts,
		cache:    d.Cache,
		events:   d.Events,
		hub:      d.Hub,
		logger:   d.Logger,
		now:      time.Now,
	}
}

// HandleSTKCallback applies an STK result webhook. The provider retries any
// non-success answer, so every outcome, including failures, is acknowledged.
func (r *Reconciler) HandleSTKCallback(ctx context.Context, body []byte) (ack mpesa.Ack) {
	ack = mpesa.AckAccepted
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("stk callback panicked", "panic", p)
		}
	}()

	if err := r.reconcile(ctx, body); err != nil {
		r.logger.Error("stk callback not applied", "error", err)
	}
	return ack
}

func (r *Reconciler) reconcile(ctx context.Context, body []byte) error {
	res, err := mpesa.ParseSTKCallback(body)
	if err != nil {
		return err
	}
	log := r.logger.With("checkout_request_id", res.CheckoutRequestID, "result_code", res.ResultCode)

	pending, err := r.pending(ctx, res.CheckoutRequestID)
	if err != nil {
		return err
	}
	if pending != nil && pending.Status != model.PaymentPending {
		log.Info("payment already settled", "status", pending.Status)
		return nil
	}

	if !res.Succeeded() {
		if pending == nil {
			log.Warn("payment failure without a known checkout request", "result_desc", res.ResultDesc)
			return nil
		}
		return r.fail(ctx, log, pending, res.ResultCode, res.ResultDesc, body)
	}

	details, err := res.Details()
	if err != nil {
		return err
	}

	receipt := details.ReceiptNumber
	marked := false
	if receipt != "" && r.receipts != nil {
		first, err := r.receipts.MarkReceipt(ctx, receipt)
		switch {
		case err != nil:
			log.Warn("receipt de-duplication unavailable", "receipt", receipt, "error", err)
		case !first:
			log.Info("duplicate receipt ignored", "receipt", receipt)
			return nil
		default:
			marked = true
		}
	}
	release := func() {
		if !marked {
			return
		}
		if err := r.receipts.ForgetReceipt(ctx, receipt); err != nil {
			log.Warn("failed to release receipt", "receipt", receipt, "error", err)
		}
	}

	order, err := r.locate(ctx, pending, details)
	if errors.Is(err, model.ErrOrderNotFound) {
		release()
		log.Warn("no order matches payment",
			"amount", details.Amount.Decimal.String(), "phone", details.Phone, "receipt", receipt)
		return nil
	}
	if err != nil {
		release()
		return err
	}

	note := "M-Pesa receipt: " + receipt
	if receipt == "" {
		note = "M-Pesa payment confirmed: " + res.CheckoutRequestID
	}
	data := kafka.PaymentData{
		OrderID:           order.ID,
		CheckoutRequestID: res.CheckoutRequestID,
		ReceiptNumber:     receipt,
		Amount:            order.Total,
		Phone:             details.Phone,
		ResultCode:        res.ResultCode,
		ResultDesc:        res.ResultDesc,
	}
	if details.Amount.Valid {
		data.Amount = details.Amount.Decimal
	}
	if err := r.pay(ctx, log, order, pending, note, data, body); err != nil {
		release()
		return err
	}
	return nil
}

// ApplyQueryResult settles a pending payment from an STK query answer, for
// pushes whose callback never arrived. A response without a ResultCode means
// the provider is still waiting on the customer.
func (r *Reconciler) ApplyQueryResult(ctx context.Context, resp *mpesa.STKQueryResponse) error {
	if resp == nil || resp.ResultCode == "" {
		return nil
	}
	code, err := strconv.Atoi(resp.ResultCode)
	if err != nil {
		return fmt.Errorf("unexpected result code %q", resp.ResultCode)
	}

	pending, err := r.pending(ctx, resp.CheckoutRequestID)
	if err != nil {
		return err
	}
	if pending == nil {
		return model.ErrPaymentNotFound
	}
	if pending.Status != model.PaymentPending {
		return nil
	}

	log := r.logger.With("checkout_request_id", resp.CheckoutRequestID, "result_code", code)
	if code != mpesa.ResultSuccess {
		return r.fail(ctx, log, pending, code, resp.ResultDesc, resp.Raw)
	}

	order, err := r.store.GetOrder(ctx, pending.OrderID)
	if err != nil {
		return err
	}
	data := kafka.PaymentData{
		OrderID:           order.ID,
		CheckoutRequestID: pending.CheckoutRequestID,
		Amount:            pending.Amount,
		Phone:             pending.Phone,
		ResultCode:        code,
		ResultDesc:        resp.ResultDesc,
	}
	return r.pay(ctx, log, order, pending, "M-Pesa payment confirmed by status query: "+pending.CheckoutRequestID, data, resp.Raw)
}

// HandleC2BValidation accepts every customer-initiated payment.
func (r *Reconciler) HandleC2BValidation(body []byte) mpesa.Ack {
	var p mpesa.C2BPayload
	if err := json.Unmarshal(body, &p); err != nil {
		r.logger.Warn("unreadable c2b validation", "error", err)
		return mpesa.AckAccepted
	}
	r.logger.Info("c2b validation", "trans_id", p.TransID, "amount", p.TransAmount, "bill_ref", p.BillRefNumber)
	return mpesa.AckAccepted
}

// HandleC2BConfirmation logs a completed customer-initiated payment.
func (r *Reconciler) HandleC2BConfirmation(body []byte) mpesa.Ack {
	var p mpesa.C2BPayload
	if err := json.Unmarshal(body, &p); err != nil {
		r.logger.Warn("unreadable c2b confirmation", "error", err)
		return mpesa.AckSuccess
	}
	r.logger.Info("c2b payment confirmed", "trans_id", p.TransID, "amount", p.TransAmount, "bill_ref", p.BillRefNumber)
	return mpesa.AckSuccess
}

func (r *Reconciler) pending(ctx context.Context, checkoutRequestID string) (*model.PendingPayment, error) {
	p, err := r.store.PendingByCheckoutID(ctx, checkoutRequestID)
	if errors.Is(err, model.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pending payment: %w", err)
	}
	return p, nil
}

func (r *Reconciler) locate(ctx context.Context, pending *model.PendingPayment, d mpesa.PaymentDetails) (*model.Order, error) {
	if pending != nil {
		return r.store.GetOrder(ctx, pending.OrderID)
	}
	if !d.Amount.Valid || d.Phone == "" {
		return nil, model.ErrOrderNotFound
	}
	return r.store.MatchPendingOrder(ctx, d.Amount.Decimal, d.Phone)
}

func (r *Reconciler) pay(ctx context.Context, log *slog.Logger, order *model.Order, pending *model.PendingPayment, note string, data kafka.PaymentData, payload []byte) error {
	st := Settlement{
		OrderID:    order.ID,
		Notes:      appendNote(order.Notes, note),
		Receipt:    data.ReceiptNumber,
		ResultCode: data.ResultCode,
		ResultDesc: data.ResultDesc,
		Payload:    payload,
		At:         r.now(),
	}
	if pending != nil {
		st.PendingID = pending.ID
	}
	if err := r.store.MarkPaid(ctx, st); err != nil {
		return fmt.Errorf("mark order %d paid: %w", order.ID, err)
	}

	log.Info("order paid", "order_id", order.ID, "receipt", data.ReceiptNumber, "correlated", pending != nil)
	r.changed(ctx, log, data, true)
	return nil
}

func (r *Reconciler) fail(ctx context.Context, log *slog.Logger, pending *model.PendingPayment, code int, desc string, payload []byte) error {
	st := Settlement{
		OrderID:    pending.OrderID,
		PendingID:  pending.ID,
		ResultCode: code,
		ResultDesc: desc,
		Payload:    payload,
		At:         r.now(),
	}
	if err := r.store.MarkFailed(ctx, st); err != nil {
		return fmt.Errorf("mark order %d payment failed: %w", pending.OrderID, err)
	}

	log.Info("payment failed", "order_id", pending.OrderID, "result_desc", desc)
	r.changed(ctx, log, kafka.PaymentData{
		OrderID:           pending.OrderID,
		CheckoutRequestID: pending.CheckoutRequestID,
		Amount:            pending.Amount,
		Phone:             pending.Phone,
		ResultCode:        code,
		ResultDesc:        desc,
	}, false)
	return nil
}

// changed runs the post-commit side effects. None of them can undo the write.
func (r *Reconciler) changed(ctx context.Context, log *slog.Logger, data kafka.PaymentData, paid bool) {
	if r.cache != nil {
		if err := r.cache.InvalidateOrders(ctx); err != nil {
			log.Warn("failed to invalidate order cache", "error", err)
		}
	}

	if r.events != nil {
		data.OccurredAt = r.now().UTC().Format(time.RFC3339)
		publish := r.events.PublishPaymentFailed
		if paid {
			publish = r.events.PublishPaymentPaid
		}
		if err := publish(data); err != nil {
			log.Warn("failed to publish payment event", "order_id", data.OrderID, "error", err)
		}
	}

	id := strconv.FormatUint(uint64(data.OrderID), 10)
	r.hub.Broadcast(model.ChangeEvent{Type: model.EventOrders, ID: id})
	r.hub.Broadcast(model.ChangeEvent{Type: model.EventPayments, ID: id})
}

func appendNote(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}
