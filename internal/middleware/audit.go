package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stellar-social/stellar/internal/apperr"
)

// Audit logs one line per request. Client errors log at warn, server errors
// at error. The session subject is included once SessionAuth has run.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = errorStatus(err)
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDOf(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if uid := UserID(c); uid != "" {
			attrs = append(attrs, slog.String("user_id", uid))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
		case status >= fiber.StatusBadRequest:
			var appErr *apperr.Error
			if errors.As(err, &appErr) {
				attrs = append(attrs, slog.String("error_code", appErr.Kind.Code()))
			}
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
		return err
	}
}

// errorStatus predicts the status ErrorHandler will write for err.
func errorStatus(err error) int {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Kind.Status()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
