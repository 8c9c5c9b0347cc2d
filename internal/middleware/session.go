package middleware

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/session"
)

const (
	// UserIDKey holds the authenticated user id in fiber locals.
	UserIDKey = "user_id"
	tokenKey  = "session_token"
)

// SessionAuth validates the session cookie and stores the subject under
// UserIDKey. Missing or invalid cookies yield Unauthenticated.
func SessionAuth(issuer *session.Issuer) fiber.Handler {
	return jwtware.New(jwtware.Config{
		KeyFunc:     issuer.KeyFunc(),
		Claims:      &jwt.RegisteredClaims{},
		TokenLookup: "cookie:" + session.CookieName,
		ContextKey:  tokenKey,
		SuccessHandler: func(c *fiber.Ctx) error {
			tok, _ := c.Locals(tokenKey).(*jwt.Token)
			if tok == nil {
				return apperr.Unauthenticated()
			}
			claims, _ := tok.Claims.(*jwt.RegisteredClaims)
			sub, err := issuer.Subject(claims)
			if err != nil {
				return err
			}
			c.Locals(UserIDKey, sub)
			return c.Next()
		},
		ErrorHandler: func(_ *fiber.Ctx, _ error) error {
			return apperr.Unauthenticated()
		},
	})
}

// UserID returns the subject stored by SessionAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
