package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS lets the browser app at appURL call the API with its session cookie.
func CORS(appURL string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     appURL,
		AllowHeaders:     "Origin, Content-Type, Accept, Idempotency-Key, X-Request-ID",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
		AllowCredentials: true,
	})
}

// SecurityHeaders sets conservative browser hardening headers.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}
