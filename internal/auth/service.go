// Package auth implements the account flows: registration with email
// verification, password login with device step-up, federated sign-in and
// onboarding. Every successful flow ends with a session token.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/chatsync"
	"github.com/stellar-social/stellar/internal/device"
	"github.com/stellar-social/stellar/internal/identity"
	"github.com/stellar-social/stellar/internal/logging"
	"github.com/stellar-social/stellar/internal/notification"
	"github.com/stellar-social/stellar/internal/otp"
	"github.com/stellar-social/stellar/internal/session"
)

// Deps groups the collaborators of Service.
type Deps struct {
	Users    *identity.Service
	OTPs     *otp.Manager
	Devices  *device.Registry
	Sessions *session.Issuer
	Notifier notification.Notifier
	Chat     *chatsync.Syncer
	Logger   *slog.Logger
	// MailTimeout bounds each code dispatch.
	MailTimeout time.Duration
}

type Service struct {
	users       *identity.Service
	otps        *otp.Manager
	devices     *device.Registry
	sessions    *session.Issuer
	notifier    notification.Notifier
	chat        *chatsync.Syncer
	logger      *slog.Logger
	mailTimeout time.Duration
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		users:       d.Users,
		otps:        d.OTPs,
		devices:     d.Devices,
		sessions:    d.Sessions,
		notifier:    d.Notifier,
		chat:        d.Chat,
		logger:      logger,
		mailTimeout: d.MailTimeout,
	}
}

// Authenticated is the outcome of a flow that established a session.
type Authenticated struct {
	User  identity.User
	Token session.Token
}

// sendCode issues a fresh code for (email, purpose) and delivers it. A
// delivery failure fails the calling step.
func (s *Service) sendCode(ctx context.Context, email string, purpose otp.Purpose) error {
	code, err := s.otps.Issue(ctx, email, purpose)
	if err != nil {
		return apperr.Internal(fmt.Errorf("issue %s code: %w", purpose, err))
	}
	return s.deliver(ctx, email, purpose, code)
}

func (s *Service) deliver(ctx context.Context, email string, purpose otp.Purpose, code string) error {
	if s.mailTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.mailTimeout)
		defer cancel()
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        purpose.String(),
		Destination: email,
		Code:        code,
		ExpiresIn:   s.otps.TTL(),
	})
	if err != nil {
		s.logger.Error("otp dispatch failed",
			slog.String("email", logging.MaskEmail(email)),
			slog.String("purpose", purpose.String()),
			slog.Any("error", err))
		return apperr.Internal(fmt.Errorf("dispatch %s code: %w", purpose, err))
	}
	return nil
}

func (s *Service) syncChat(ctx context.Context, user identity.User) {
	s.chat.Sync(ctx, chatsync.Identity{ID: user.ID, Name: user.FullName, Image: user.ProfilePic})
}

func (s *Service) mint(user identity.User) (Authenticated, error) {
	tok, err := s.sessions.Issue(user)
	if err != nil {
		return Authenticated{}, err
	}
	return Authenticated{User: user, Token: tok}, nil
}
