package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stellar-social/stellar/internal/auth"
	"github.com/stellar-social/stellar/internal/chatsync"
	"github.com/stellar-social/stellar/internal/config"
	"github.com/stellar-social/stellar/internal/device"
	"github.com/stellar-social/stellar/internal/federated"
	"github.com/stellar-social/stellar/internal/identity"
	"github.com/stellar-social/stellar/internal/middleware"
	"github.com/stellar-social/stellar/internal/notification"
	"github.com/stellar-social/stellar/internal/otp"
	"github.com/stellar-social/stellar/internal/session"
)

// Deps aggregates shared dependencies required to wire routes. The optional
// collaborators default to implementations built from Cfg when nil.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	Notifier  notification.Notifier
	Directory chatsync.Directory
	Provider  federated.Provider
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(sentryfiber.New(sentryfiber.Options{Repanic: true}))
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.CORS(d.Cfg.AppURL))
	app.Use(middleware.SecurityHeaders())

	RegisterHealthRoutes(app, d)

	svc, flow, issuer, err := buildAuth(d)
	if err != nil {
		return err
	}
	handler := auth.NewHandler(svc, flow, auth.HandlerConfig{
		SecureCookies: d.Cfg.IsProduction(),
		AppURL:        d.Cfg.AppURL,
	}, d.Logger)

	var idempotent fiber.Handler
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDOf(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterAuthRoutes(api, handler, middleware.SessionAuth(issuer), idempotent)

	return nil
}

func buildAuth(d Deps) (*auth.Service, *federated.Flow, *session.Issuer, error) {
	var (
		userRepo   identity.Repository
		deviceRepo device.Repository
		otpStore   otp.Store
		states     federated.StateStore
	)
	if d.DB != nil {
		userRepo = identity.NewPostgresRepository(d.DB)
		deviceRepo = device.NewPostgresRepository(d.DB)
	} else {
		userRepo = identity.NewMemoryRepository()
		deviceRepo = device.NewMemoryRepository()
	}
	if d.Cache != nil {
		otpStore = otp.NewRedisStore(d.Cache)
		states = federated.NewRedisStateStore(d.Cache)
	} else {
		otpStore = otp.NewMemoryStore()
		states = federated.NewMemoryStateStore()
	}

	notifier := d.Notifier
	if notifier == nil {
		switch {
		case d.Cfg.Mail.Host != "":
			smtp, err := notification.NewSMTPNotifier(d.Cfg.Mail, d.Cfg.AppName)
			if err != nil {
				return nil, nil, nil, err
			}
			notifier = smtp
		case d.Cfg.IsDev():
			notifier = notification.NewLoggerNotifier(d.Logger)
		default:
			return nil, nil, nil, fmt.Errorf("SMTP_HOST is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	directory := d.Directory
	if directory == nil {
		if d.Cfg.Chat.APIKey != "" {
			stream, err := chatsync.NewStreamDirectory(d.Cfg.Chat.APIKey, d.Cfg.Chat.APISecret, d.Cfg.Chat.BaseURL,
				&http.Client{Timeout: d.Cfg.Chat.Timeout})
			if err != nil {
				return nil, nil, nil, err
			}
			directory = stream
		} else {
			directory = chatsync.Noop{}
		}
	}

	provider := d.Provider
	if provider == nil && d.Cfg.Google.ClientID != "" {
		provider = federated.NewGoogleProvider(d.Cfg.Google)
	}
	var flow *federated.Flow
	if provider != nil {
		flow = federated.NewFlow(provider, states)
	}

	issuer := session.NewIssuer(d.Cfg.JWTSecret, d.Cfg.AppName, d.Cfg.SessionTTL)
	svc := auth.NewService(auth.Deps{
		Users:       identity.NewService(userRepo),
		OTPs:        otp.NewManager(otpStore, d.Cfg.OTPTTL),
		Devices:     device.NewRegistry(deviceRepo, d.Cfg.TrustedDeviceTTL),
		Sessions:    issuer,
		Notifier:    notifier,
		Chat:        chatsync.NewSyncer(directory, d.Cfg.Chat.Timeout, d.Logger),
		Logger:      d.Logger,
		MailTimeout: d.Cfg.Mail.Timeout,
	})
	return svc, flow, issuer, nil
}
