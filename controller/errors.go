package controller

import (
	"errors"

	"davietech/grpc_server"
	"davietech/model"
	"davietech/offer"
	"davietech/order"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc/codes"
)

func grpcToHTTP(code codes.Code) int {
	switch code {
	case codes.NotFound:
		return fiber.StatusNotFound
	case codes.PermissionDenied:
		return fiber.StatusForbidden
	case codes.InvalidArgument:
		return fiber.StatusBadRequest
	case codes.FailedPrecondition:
		return fiber.StatusConflict
	case codes.ResourceExhausted:
		return fiber.StatusTooManyRequests
	case codes.Unavailable:
		return fiber.StatusBadGateway
	case codes.DeadlineExceeded:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes err as {"error": msg} with the matching status.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, order.ErrInvalidOrder), errors.Is(err, model.ErrEmptyOrder),
		errors.Is(err, model.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrProductNotFound), errors.Is(err, offer.ErrInvalidDiscount):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrOfferNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	st := grpc_server.Status(err)
	return c.Status(grpcToHTTP(st.Code())).JSON(fiber.Map{"error": st.Message()})
}
