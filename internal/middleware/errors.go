package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/stellar-social/stellar/internal/apperr"
)

// ErrorHandler renders every error as
// {"success":false,"message":...,"code":...}. Classified errors map to their
// status; anything else becomes a generic 500 that is logged and reported
// to Sentry when a hub is attached.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		body := fiber.Map{"success": false, "message": "Internal Server Error", "code": apperr.KindInternal.Code()}

		var appErr *apperr.Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.Kind.Status()
			body["code"] = appErr.Kind.Code()
			if appErr.Kind != apperr.KindInternal {
				body["message"] = appErr.Message
			}
			if appErr.Kind == apperr.KindUnverifiedEmail {
				body["requiresEmailVerification"] = true
			}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			body["code"] = statusCode(status)
			if status < http.StatusInternalServerError {
				body["message"] = fiberErr.Message
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error("unhandled server error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", RequestIDOf(c)),
				slog.Any("error", err))
			if hub := sentryfiber.GetHubFromContext(c); hub != nil {
				hub.CaptureException(err)
			}
		}
		return c.Status(status).JSON(body)
	}
}

func statusCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}
