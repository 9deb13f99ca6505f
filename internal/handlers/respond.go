package handlers

import (
	"errors"
	"fmt"

	"bookstore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// validationFailed writes the 400 response for a failed validator check.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrBookNotFound),
		errors.Is(err, services.ErrPaymentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyPaid),
		errors.Is(err, services.ErrPaymentPending),
		errors.Is(err, services.ErrOrderNotPayable),
		errors.Is(err, services.ErrEmailTaken):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrStatusReserved),
		errors.Is(err, services.ErrAmountMismatch),
		errors.Is(err, services.ErrUnsupportedMethod),
		errors.Is(err, services.ErrNotQueryable):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

func serviceError(c *fiber.Ctx, err error, message string) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}
