package controller

import (
	"context"
	"strconv"
	"time"

	"davietech/model"

	"github.com/gofiber/fiber/v2"
)

type OfferService interface {
	Apply(ctx context.Context, offerID uint) ([]model.Product, error)
	Remove(ctx context.Context, offerID uint) ([]model.Product, error)
}

type OfferController struct {
	Offers OfferService
}

func NewOfferController(offers OfferService) *OfferController {
	return &OfferController{Offers: offers}
}

func (oc *OfferController) Apply(c *fiber.Ctx) error {
	return oc.run(c, oc.Offers.Apply)
}

func (oc *OfferController) Remove(c *fiber.Ctx) error {
	return oc.run(c, oc.Offers.Remove)
}

func (oc *OfferController) run(c *fiber.Ctx, op func(context.Context, uint) ([]model.Product, error)) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	products, err := op(ctx, uint(id))
	if err != nil {
		return fail(c, err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return c.JSON(fiber.Map{"offer_id": id, "products": products})
}
