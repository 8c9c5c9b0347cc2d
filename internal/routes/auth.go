package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stellar-social/stellar/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints under /auth.
// idempotent may be nil when no Redis is available.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, requireSession, idempotent fiber.Handler) {
	group := r.Group("/auth")
	if idempotent != nil {
		group.Post("/signup", idempotent, h.Signup)
		group.Post("/resend-otp", idempotent, h.ResendOTP)
	} else {
		group.Post("/signup", h.Signup)
		group.Post("/resend-otp", h.ResendOTP)
	}
	group.Post("/verify-email", h.VerifyEmail)
	group.Post("/login", h.Login)
	group.Post("/verify-device", h.VerifyDevice)
	group.Post("/logout", h.Logout)

	group.Get("/federated/start", h.FederatedStart)
	group.Get("/federated/callback", h.FederatedCallback)

	group.Get("/me", requireSession, h.Me)
	group.Post("/onboarding", requireSession, h.Onboard)
	group.Get("/devices", requireSession, h.Devices)
	group.Delete("/devices", requireSession, h.RevokeDevices)
}
