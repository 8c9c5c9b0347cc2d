// Package notification delivers one-time codes to users.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/stellar-social/stellar/internal/logging"
)

const (
	// KindEmailVerification carries the code that confirms a new account.
	KindEmailVerification = "email_verification"
	// KindDeviceVerification carries the step-up code for an unrecognized device.
	KindDeviceVerification = "device_verification"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Code        string
	// ExpiresIn is shown to the recipient.
	ExpiresIn time.Duration
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes codes to the logger instead of sending them. It is
// only wired in development.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", logging.MaskEmail(message.Destination),
		"code", message.Code,
		"expires_in", message.ExpiresIn.String())
	return nil
}
