package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/device"
	"github.com/stellar-social/stellar/internal/identity"
	"github.com/stellar-social/stellar/internal/otp"
)

// LoginInput is the password login request.
type LoginInput struct {
	Email       string
	Password    string
	Fingerprint string
}

// LoginResult is either a session (Session non-nil) or a pending device
// step-up (StepUp true). Exactly one is set.
type LoginResult struct {
	Session *Authenticated
	StepUp  bool
	Email   string
}

// Login checks credentials. A trusted device gets a session straight away;
// any other device gets a device_verification code and no token.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if in.Email == "" {
		return LoginResult{}, apperr.InvalidCredentials()
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, identity.ErrNotFound) {
		return LoginResult{}, apperr.InvalidCredentials()
	}
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}
	if !user.EmailVerified {
		return LoginResult{}, apperr.UnverifiedEmail()
	}
	if !s.users.VerifyPassword(user, in.Password) {
		return LoginResult{}, apperr.InvalidCredentials()
	}

	dev, trusted, err := s.devices.IsTrusted(ctx, user.ID, in.Fingerprint)
	if err != nil {
		return LoginResult{}, apperr.Internal(fmt.Errorf("device lookup: %w", err))
	}
	if trusted {
		if err := s.devices.Touch(ctx, dev); err != nil {
			s.logger.Warn("trusted device touch failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		auth, err := s.mint(user)
		if err != nil {
			return LoginResult{}, err
		}
		s.logger.Info("login from trusted device", slog.String("user_id", user.ID))
		return LoginResult{Session: &auth, Email: user.Email}, nil
	}

	if err := s.sendCode(ctx, user.Email, otp.DeviceVerification); err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("device verification required", slog.String("user_id", user.ID))
	return LoginResult{StepUp: true, Email: user.Email}, nil
}

// VerifyDeviceInput completes a device step-up.
type VerifyDeviceInput struct {
	Email       string
	Code        string
	Fingerprint string
	Metadata    device.Metadata
	Remember    bool
}

// VerifyDevice consumes the device_verification code and opens a session,
// remembering the device when asked to.
func (s *Service) VerifyDevice(ctx context.Context, in VerifyDeviceInput) (Authenticated, error) {
	if in.Email == "" || in.Code == "" {
		return Authenticated{}, apperr.Validation("Email and OTP are required")
	}
	if err := s.otps.Verify(ctx, in.Email, in.Code, otp.DeviceVerification); err != nil {
		return Authenticated{}, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return Authenticated{}, lookupError(err)
	}

	if in.Remember && in.Fingerprint != "" {
		if _, err := s.devices.Remember(ctx, user.ID, in.Fingerprint, in.Metadata); err != nil {
			return Authenticated{}, apperr.Internal(fmt.Errorf("remember device: %w", err))
		}
		s.logger.Info("device trusted", slog.String("user_id", user.ID), slog.String("browser", in.Metadata.Browser))
	}
	return s.mint(user)
}
