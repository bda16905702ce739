package http

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"trackly/internal/events"
	"trackly/internal/http/middleware"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONSTRAINT_VIOLATION"
	CodeUnavailable = "STORE_UNAVAILABLE"
	CodeRateLimited = "RATE_LIMITED"
	CodeInternal    = "INTERNAL_ERROR"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondError maps err onto a status and error body. Store details are
// logged, never sent.
func RespondError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	status, body := classify(err)
	body.RequestID = middleware.GetRequestID(c)

	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed",
			slog.String("path", c.Path()),
			slog.String("request_id", body.RequestID),
			slog.Any("error", err))
	} else {
		logger.Debug("Request rejected",
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Any("error", err))
	}

	return c.Status(status).JSON(body)
}

func classify(err error) (int, ErrorBody) {
	var validationErr *events.ValidationError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, ErrorBody{Error: validationErr.Message, Code: CodeValidation, Field: validationErr.Field}
	case errors.Is(err, events.ErrValidation):
		return fiber.StatusBadRequest, ErrorBody{Error: err.Error(), Code: CodeValidation}
	case errors.Is(err, events.ErrNotFound):
		return fiber.StatusNotFound, ErrorBody{Error: "Not found", Code: CodeNotFound}
	case errors.Is(err, events.ErrConstraintViolation):
		return fiber.StatusConflict, ErrorBody{Error: "Conflicts with an existing record", Code: CodeConflict}
	case errors.Is(err, events.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable, ErrorBody{Error: "Storage is temporarily unavailable", Code: CodeUnavailable}
	case errors.As(err, &fiberErr):
		code := CodeInternal
		switch {
		case fiberErr.Code == fiber.StatusTooManyRequests:
			code = CodeRateLimited
		case fiberErr.Code == fiber.StatusNotFound:
			code = CodeNotFound
		case fiberErr.Code < fiber.StatusInternalServerError:
			code = CodeValidation
		}
		return fiberErr.Code, ErrorBody{Error: fiberErr.Message, Code: code}
	default:
		return fiber.StatusInternalServerError, ErrorBody{Error: "Internal server error", Code: CodeInternal}
	}
}

// ErrorHandler is the fiber error handler; it routes errors that escaped a
// handler through RespondError.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return RespondError(c, logger, err)
	}
}
