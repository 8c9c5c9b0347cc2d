package auth

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/device"
	"github.com/stellar-social/stellar/internal/federated"
	"github.com/stellar-social/stellar/internal/identity"
	"github.com/stellar-social/stellar/internal/middleware"
	"github.com/stellar-social/stellar/internal/session"
)

// HandlerConfig carries the transport settings of the auth endpoints.
type HandlerConfig struct {
	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool
	// AppURL is the browser app the federated callback redirects to.
	AppURL string
}

// Handler exposes the auth endpoints.
type Handler struct {
	svc    *Service
	flow   *federated.Flow
	cfg    HandlerConfig
	logger *slog.Logger
}

// NewHandler builds the handler. flow may be nil when no identity provider
// is configured.
func NewHandler(svc *Service, flow *federated.Flow, cfg HandlerConfig, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, flow: flow, cfg: cfg, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resendRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type loginRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	RememberDevice    bool   `json:"rememberDevice"`
}

type deviceInfo struct {
	UserAgent string `json:"userAgent"`
	Browser   string `json:"browser"`
	OS        string `json:"os"`
}

type verifyDeviceRequest struct {
	Email             string     `json:"email"`
	OTP               string     `json:"otp"`
	DeviceFingerprint string     `json:"deviceFingerprint"`
	DeviceInfo        deviceInfo `json:"deviceInfo"`
	RememberDevice    bool       `json:"rememberDevice"`
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// Signup registers a pending account and mails the verification code.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	user, err := h.svc.Signup(c.UserContext(), SignupInput{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":                   true,
		"message":                   "User registered successfully. Please verify your email.",
		"userId":                    user.ID,
		"email":                     user.Email,
		"requiresEmailVerification": true,
	})
}

// VerifyEmail completes registration and opens a session.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	auth, err := h.svc.VerifyEmail(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	c.Cookie(session.Cookie(auth.Token, h.cfg.SecureCookies, fiber.CookieSameSiteStrictMode))
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Email verified successfully",
		"user":    auth.User,
	})
}

// ResendOTP supersedes the outstanding code of the given type.
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req resendRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResendOTP(c.UserContext(), req.Email, req.Type); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "message": "OTP sent successfully"})
}

// Login checks the password and either opens a session or asks for a device code.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.UserContext(), LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		Fingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		return err
	}
	if res.StepUp {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"success":                    true,
			"requiresDeviceVerification": true,
			"message":                    "New device detected. Please verify with the OTP sent to your email.",
			"email":                      res.Email,
		})
	}
	c.Cookie(session.Cookie(res.Session.Token, h.cfg.SecureCookies, fiber.CookieSameSiteStrictMode))
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "user": res.Session.User})
}

// VerifyDevice completes a device step-up.
func (h *Handler) VerifyDevice(c *fiber.Ctx) error {
	var req verifyDeviceRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	auth, err := h.svc.VerifyDevice(c.UserContext(), VerifyDeviceInput{
		Email:       req.Email,
		Code:        req.OTP,
		Fingerprint: req.DeviceFingerprint,
		Metadata: device.Metadata{
			UserAgent: req.DeviceInfo.UserAgent,
			Browser:   req.DeviceInfo.Browser,
			OS:        req.DeviceInfo.OS,
			IP:        c.IP(),
		},
		Remember: req.RememberDevice,
	})
	if err != nil {
		return err
	}
	c.Cookie(session.Cookie(auth.Token, h.cfg.SecureCookies, fiber.CookieSameSiteStrictMode))
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Device verified successfully",
		"user":    auth.User,
	})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(session.ClearCookie(h.cfg.SecureCookies))
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "message": "Logout successful"})
}

// Me returns the session user.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.svc.Me(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "user": user})
}

// Onboard stores the profile of the session user.
func (h *Handler) Onboard(c *fiber.Ctx) error {
	var req identity.Profile
	if err := parse(c, &req); err != nil {
		return err
	}
	user, err := h.svc.Onboard(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "user": user})
}

// Devices lists trusted devices of the session user.
func (h *Handler) Devices(c *fiber.Ctx) error {
	list, err := h.svc.Devices(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "devices": list})
}

// RevokeDevices forgets every trusted device of the session user.
func (h *Handler) RevokeDevices(c *fiber.Ctx) error {
	n, err := h.svc.RevokeDevices(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "revoked": n})
}

func (h *Handler) federatedFailure(c *fiber.Ctx) error {
	return c.Redirect(h.cfg.AppURL+"/login?error=auth_failed", http.StatusFound)
}

// FederatedStart redirects to the identity provider.
func (h *Handler) FederatedStart(c *fiber.Ctx) error {
	if h.flow == nil {
		h.logger.Warn("federated sign-in requested but no provider is configured")
		return h.federatedFailure(c)
	}
	consent, err := h.flow.Begin(c.UserContext())
	if err != nil {
		h.logger.Error("federated start failed", slog.Any("error", err))
		return h.federatedFailure(c)
	}
	return c.Redirect(consent, http.StatusFound)
}

// FederatedCallback finishes the provider round trip, sets the session
// cookie and sends the browser to the app.
func (h *Handler) FederatedCallback(c *fiber.Ctx) error {
	if h.flow == nil {
		h.logger.Warn("federated callback received but no provider is configured")
		return h.federatedFailure(c)
	}
	if reason := c.Query("error"); reason != "" {
		h.logger.Warn("federated sign-in declined", slog.String("provider", h.flow.Provider()), slog.String("reason", reason))
		return h.federatedFailure(c)
	}

	assertion, err := h.flow.Complete(c.UserContext(), c.Query("state"), c.Query("code"))
	if err != nil {
		h.logger.Warn("federated callback rejected", slog.String("provider", h.flow.Provider()), slog.Any("error", err))
		return h.federatedFailure(c)
	}
	auth, err := h.svc.ResolveFederated(c.UserContext(), assertion)
	if err != nil {
		h.logger.Error("federated resolve failed", slog.String("provider", h.flow.Provider()), slog.Any("error", err))
		return h.federatedFailure(c)
	}

	c.Cookie(session.Cookie(auth.Token, h.cfg.SecureCookies, fiber.CookieSameSiteLaxMode))
	target := h.cfg.AppURL + "/onboarding"
	if auth.User.Onboarded {
		target = h.cfg.AppURL + "/"
	}
	return c.Redirect(target, http.StatusFound)
}
