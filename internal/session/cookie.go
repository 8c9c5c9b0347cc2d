package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookieName is the cookie that carries the session token.
const CookieName = "jwt"

// Cookie builds the session cookie for tok. sameSite is one of the
// fiber.CookieSameSite* modes.
func Cookie(tok Token, secure bool, sameSite string) *fiber.Cookie {
	maxAge := int(time.Until(tok.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	return &fiber.Cookie{
		Name:     CookieName,
		Value:    tok.Value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  tok.ExpiresAt,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}

// ClearCookie expires the session cookie on the client.
func ClearCookie(secure bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}
