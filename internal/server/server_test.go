package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-social/stellar/internal/chatsync"
	"github.com/stellar-social/stellar/internal/config"
	"github.com/stellar-social/stellar/internal/federated"
	"github.com/stellar-social/stellar/internal/identity"
	"github.com/stellar-social/stellar/internal/logging"
	"github.com/stellar-social/stellar/internal/notification"
	"github.com/stellar-social/stellar/internal/routes"
	"github.com/stellar-social/stellar/internal/session"
)

const appURL = "http://app.test"

type mailbox struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (m *mailbox) Send(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

func (m *mailbox) last(t *testing.T, kind string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].Kind == kind {
			return m.msgs[i].Code
		}
	}
	t.Fatalf("no %s message sent", kind)
	return ""
}

type stubProvider struct {
	assertion federated.Assertion
}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) AuthCodeURL(state, _ string) string {
	return "https://idp.test/authorize?state=" + url.QueryEscape(state)
}

func (p stubProvider) Exchange(context.Context, string, string) (federated.Assertion, error) {
	return p.assertion, nil
}

func verifiedUser(id string) identity.User {
	return identity.User{ID: id, Email: id + "@x.com", EmailVerified: true}
}

type harness struct {
	srv  *Server
	mail *mailbox
	mr   *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithProvider(t, stubProvider{assertion: federated.Assertion{
		Provider:   "stub",
		ExternalID: "sub-1",
		Email:      "fed@x.com",
	}})
}

func newHarnessWithProvider(t *testing.T, provider federated.Provider) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	mail := &mailbox{}
	cfg := config.Config{
		AppName:          "Stellar",
		AppEnv:           "test",
		AppURL:           appURL,
		JWTSecret:        "test-secret",
		SessionTTL:       time.Hour,
		OTPTTL:           10 * time.Minute,
		TrustedDeviceTTL: 24 * time.Hour,
		IdempotencyTTL:   time.Hour,
		Mail:             config.MailConfig{Timeout: time.Second},
		Chat:             config.ChatConfig{Timeout: time.Second},
	}
	srv, err := NewWithDeps(routes.Deps{
		Cfg:       cfg,
		Cache:     cache,
		Logger:    logging.Discard(),
		Notifier:  mail,
		Directory: chatsync.Noop{},
		Provider:  provider,
	})
	require.NoError(t, err)
	return &harness{srv: srv, mail: mail, mr: mr}
}

func (h *harness) do(t *testing.T, method, path string, body any, headers map[string]string, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", session.CookieName)
	return nil
}

func TestHealthAndPing(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"postgres": "memory", "redis": "ok"}, body["status"])

	resp, body = h.do(t, http.MethodGet, "/api/ping", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRegistrationOverHTTP(t *testing.T) {
	h := newHarness(t)
	signup := map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "Ann"}

	resp, body := h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@x.com", "password": "12345", "fullName": "Ann"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "VALIDATION_FAILED", body["code"])

	resp, body = h.do(t, http.MethodPost, "/api/auth/signup", signup, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["requiresEmailVerification"])
	assert.Empty(t, resp.Cookies(), "no session before verification")

	resp, body = h.do(t, http.MethodPost, "/api/auth/signup", signup, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_EMAIL", body["code"])

	resp, body = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, true, body["requiresEmailVerification"])

	code := h.mail.last(t, notification.KindEmailVerification)
	wrong := "000000"
	resp, body = h.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"email": "a@x.com", "otp": wrong}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid or expired OTP", body["message"])

	resp, body = h.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"email": "a@x.com", "otp": code}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, true, user["isEmailVerified"])
	assert.NotContains(t, user, "PasswordHash")

	cookie := sessionCookie(t, resp)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.False(t, cookie.Secure, "secure only in production")

	resp, body = h.do(t, http.MethodGet, "/api/auth/me", nil, nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me, _ := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", me["email"])
}

func TestMeRequiresSession(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])

	forged := &http.Cookie{Name: session.CookieName, Value: "not-a-token"}
	resp, _ = h.do(t, http.MethodGet, "/api/auth/me", nil, nil, forged)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other := session.NewIssuer("other-secret", "Stellar", time.Hour)
	tok, err := other.Issue(verifiedUser("u-1"))
	require.NoError(t, err)
	resp, _ = h.do(t, http.MethodGet, "/api/auth/me", nil, nil, &http.Cookie{Name: session.CookieName, Value: tok.Value})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredCodeIsRejected(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "Ann"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := h.mail.last(t, notification.KindEmailVerification)

	h.mr.FastForward(11 * time.Minute)

	resp, body := h.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"email": "a@x.com", "otp": code}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_OR_EXPIRED", body["code"])
}

func TestIdempotentSignupSendsOneCode(t *testing.T) {
	h := newHarness(t)
	signup := map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "Ann"}
	headers := map[string]string{"Idempotency-Key": "retry-1"}

	first, firstBody := h.do(t, http.MethodPost, "/api/auth/signup", signup, headers)
	second, secondBody := h.do(t, http.MethodPost, "/api/auth/signup", signup, headers)

	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, firstBody["userId"], secondBody["userId"])
	assert.Equal(t, 1, h.mail.count())
}

func TestDeviceStepUpOverHTTP(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "Ann"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"email": "a@x.com", "otp": h.mail.last(t, notification.KindEmailVerification)}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	login := map[string]any{"email": "a@x.com", "password": "secret1", "deviceFingerprint": "fp-1"}
	resp, body := h.do(t, http.MethodPost, "/api/auth/login", login, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["requiresDeviceVerification"])
	assert.Empty(t, resp.Cookies())

	resp, body = h.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "a@x.com", "password": "nope!!", "deviceFingerprint": "fp-1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", body["message"])

	resp, _ = h.do(t, http.MethodPost, "/api/auth/verify-device", map[string]any{
		"email":             "a@x.com",
		"otp":               h.mail.last(t, notification.KindDeviceVerification),
		"deviceFingerprint": "fp-1",
		"deviceInfo":        map[string]string{"browser": "Firefox", "os": "Linux"},
		"rememberDevice":    true,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)

	resp, body = h.do(t, http.MethodGet, "/api/auth/devices", nil, nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	devices, _ := body["devices"].([]any)
	require.Len(t, devices, 1)
	info, _ := devices[0].(map[string]any)["deviceInfo"].(map[string]any)
	assert.Equal(t, "Firefox", info["browser"])

	sent := h.mail.count()
	resp, body = h.do(t, http.MethodPost, "/api/auth/login", login, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "requiresDeviceVerification")
	assert.Equal(t, sent, h.mail.count())
	sessionCookie(t, resp)

	resp, body = h.do(t, http.MethodDelete, "/api/auth/devices", nil, nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["revoked"])

	resp, body = h.do(t, http.MethodPost, "/api/auth/login", login, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["requiresDeviceVerification"])
}

func TestOnboardingAndLogout(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "Ann"}, nil)
	resp, _ := h.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"email": "a@x.com", "otp": h.mail.last(t, notification.KindEmailVerification)}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)

	resp, _ = h.do(t, http.MethodPost, "/api/auth/onboarding", map[string]string{"fullName": "Ann"}, nil, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/api/auth/onboarding", map[string]string{
		"fullName":         "Ann B",
		"bio":              "hi",
		"nativeLanguage":   "french",
		"learningLanguage": "english",
		"location":         "Douala",
	}, nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, true, user["isOnboarded"])

	resp, _ = h.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, sessionCookie(t, resp).Value)
}

func TestFederatedSignIn(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/api/auth/federated/start", nil, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	consent, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := consent.Query().Get("state")
	require.NotEmpty(t, state)

	callback := "/api/auth/federated/callback?state=" + url.QueryEscape(state) + "&code=abc"
	resp, _ = h.do(t, http.MethodGet, callback, nil, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, appURL+"/onboarding", resp.Header.Get("Location"))
	cookie := sessionCookie(t, resp)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Zero(t, h.mail.count(), "no code for federated sign-in")

	resp, body := h.do(t, http.MethodGet, "/api/auth/me", nil, nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me, _ := body["user"].(map[string]any)
	assert.Equal(t, "fed@x.com", me["email"])
	assert.Equal(t, true, me["isEmailVerified"])

	resp, _ = h.do(t, http.MethodGet, callback, nil, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, appURL+"/login?error=auth_failed", resp.Header.Get("Location"), "state is single use")
}

func TestFederatedWithoutProviderRedirectsToLogin(t *testing.T) {
	h := newHarnessWithProvider(t, nil)

	for _, path := range []string{"/api/auth/federated/start", "/api/auth/federated/callback?state=s&code=c"} {
		resp, _ := h.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, appURL+"/login?error=auth_failed", resp.Header.Get("Location"), path)
	}
}

func TestDeviceResendWithoutLoginIsRejected(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "Ann"}, nil)
	resp, _ := h.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"email": "a@x.com", "otp": h.mail.last(t, notification.KindEmailVerification)}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sent := h.mail.count()

	resp, body := h.do(t, http.MethodPost, "/api/auth/resend-otp", map[string]string{"email": "a@x.com", "type": "device_verification"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	assert.Equal(t, sent, h.mail.count())

	resp, body = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": ""}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])
}
