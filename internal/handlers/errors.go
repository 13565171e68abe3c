package handlers

import (
	"errors"
	"log"

	"agromarket/internal/pricing"
	"agromarket/internal/repositories"
	"agromarket/internal/services"
	"agromarket/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// MessageSystemBusy is shown when order numbers kept colliding or a message
// could not be handed to the broker.
const MessageSystemBusy = "system busy, please try again"

// statusFor maps service and repository errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repositories.ErrDuplicateOrderNumber), errors.Is(err, services.ErrForwardFailed):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, repositories.ErrDuplicate), errors.Is(err, services.ErrAlreadyRegistered):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidSignature):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrAccountNotApproved), errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrBotSuspected):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrInvalidCheckout), errors.Is(err, services.ErrInvalidProduct),
		errors.Is(err, services.ErrInvalidImport), errors.Is(err, pricing.ErrVolumeOutOfRange):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidStatusTransition):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// fail logs err and writes the standard error body. A 503 carries only the
// user-facing message.
func fail(c *fiber.Ctx, message string, err error) error {
	status := statusFor(err)
	log.Printf("%s: %v", message, err)
	if status == fiber.StatusServiceUnavailable {
		return c.Status(status).JSON(fiber.Map{
			"message": MessageSystemBusy,
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	log.Printf("%s: %v", message, err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  validation.FieldErrors(err),
	})
}
