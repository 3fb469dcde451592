package controller

import (
	"context"
	"log/slog"
	"time"

	"davietech/model"
	"davietech/mpesa"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const stkTimeout = 35 * time.Second

type PaymentInitiator interface {
	Initiate(ctx context.Context, orderID uint, phone string) (*model.PendingPayment, error)
}

type CallbackHandler interface {
	HandleSTKCallback(ctx context.Context, body []byte) mpesa.Ack
	HandleC2BValidation(body []byte) mpesa.Ack
	HandleC2BConfirmation(body []byte) mpesa.Ack
	ApplyQueryResult(ctx context.Context, resp *mpesa.STKQueryResponse) error
}

type StatusGateway interface {
	STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
	TransactionStatus(ctx context.Context, transactionID string) (json.RawMessage, error)
}

type PaymentController struct {
	Payments  PaymentInitiator
	Callbacks CallbackHandler
	Gateway   StatusGateway
	Logger    *slog.Logger
}

func NewPaymentController(payments PaymentInitiator, callbacks CallbackHandler, gateway StatusGateway, logger *slog.Logger) *PaymentController {
	return &PaymentController{Payments: payments, Callbacks: callbacks, Gateway: gateway, Logger: logger}
}

// Initiate sends an STK push for an order.
func (pc *PaymentController) Initiate(c *fiber.Ctx) error {
	var body struct {
		OrderID uint   `json:"order_id"`
		Phone   string `json:"phone"`
	}
	if err := c.BodyParser(&body); err != nil || body.OrderID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), stkTimeout)
	defer cancel()

	p, err := pc.Payments.Initiate(ctx, body.OrderID, body.Phone)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(201).JSON(fiber.Map{
		"message":             "Payment prompt sent. Enter your M-Pesa PIN to complete.",
		"checkout_request_id": p.CheckoutRequestID,
		"payment":             p,
	})
}

// STKCallback receives the provider's STK result. It always answers 200.
func (pc *PaymentController) STKCallback(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	return c.Status(200).JSON(pc.Callbacks.HandleSTKCallback(ctx, c.Body()))
}

func (pc *PaymentController) C2BValidation(c *fiber.Ctx) error {
	return c.Status(200).JSON(pc.Callbacks.HandleC2BValidation(c.Body()))
}

func (pc *PaymentController) C2BConfirmation(c *fiber.Ctx) error {
	return c.Status(200).JSON(pc.Callbacks.HandleC2BConfirmation(c.Body()))
}

// TransactionStatus relays a transaction status query. The final result is
// delivered by the provider to the configured result URL.
func (pc *PaymentController) TransactionStatus(c *fiber.Ctx) error {
	id := c.Params("transactionId")
	if id == "" {
		return c.Status(400).JSON(fiber.Map{"error": "transaction id is required"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), stkTimeout)
	defer cancel()

	raw, err := pc.Gateway.TransactionStatus(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

// STKQuery asks the provider for a push outcome and settles the pending
// payment when the answer is final.
func (pc *PaymentController) STKQuery(c *fiber.Ctx) error {
	id := c.Params("checkoutRequestId")
	if id == "" {
		return c.Status(400).JSON(fiber.Map{"error": "checkout request id is required"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), stkTimeout)
	defer cancel()

	resp, err := pc.Gateway.STKQuery(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if err := pc.Callbacks.ApplyQueryResult(ctx, resp); err != nil {
		pc.Logger.Warn("stk query result not applied", "checkout_request_id", id, "error", err)
	}
	return c.JSON(resp)
}
