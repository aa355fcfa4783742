package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, unknown_bus, timeout, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps a service error onto its HTTP status and code.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidStatus):
		return newError(c, fiber.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, domain.ErrInvalidSeats):
		return newError(c, fiber.StatusBadRequest, "invalid_seats", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrUnknownBus):
		return newError(c, fiber.StatusNotFound, "unknown_bus", err.Error())
	case errors.Is(err, domain.ErrConflict):
		return newError(c, fiber.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		LoggerFromCtx(c.UserContext()).Error("store unavailable", "error", err)
		return newError(c, fiber.StatusServiceUnavailable, "store_unavailable", "bus store is unavailable")
	}
	LoggerFromCtx(c.UserContext()).Error("unhandled error", "error", err)
	return errInternal(c, "internal error")
}
