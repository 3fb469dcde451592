package controller

import (
	"context"
	"strconv"
	"time"

	"davietech/model"
	"davietech/order"

	"github.com/gofiber/fiber/v2"
)

type OrderService interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*model.Order, error)
	Get(ctx context.Context, id uint) (*model.Order, error)
	List(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) (*model.Order, error)
}

type OrderController struct {
	Orders OrderService
}

func NewOrderController(orders OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

func (oc *OrderController) Checkout(c *fiber.Ctx) error {
	var req order.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	o, err := oc.Orders.Checkout(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(o)
}

func (oc *OrderController) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	o, err := oc.Orders.Get(ctx, uint(id))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(o)
}

func (oc *OrderController) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	orders, err := oc.Orders.List(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return c.JSON(orders)
}

func (oc *OrderController) UpdateStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	var body struct {
		Status model.OrderStatus `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	o, err := oc.Orders.UpdateStatus(ctx, uint(id), body.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(o)
}
