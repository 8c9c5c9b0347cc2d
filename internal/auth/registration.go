package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/identity"
	"github.com/stellar-social/stellar/internal/logging"
	"github.com/stellar-social/stellar/internal/otp"
)

// SignupInput is the registration request.
type SignupInput struct {
	Email    string
	Password string
	FullName string
}

// Signup creates an unverified account and mails an email_verification code.
// If the code cannot be delivered the account stays pending and the client
// can ask for a resend.
func (s *Service) Signup(ctx context.Context, in SignupInput) (identity.User, error) {
	user, err := s.users.CreateUser(ctx, identity.NewUser{
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
	})
	if err != nil {
		return identity.User{}, err
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("email", logging.MaskEmail(user.Email)))

	if err := s.sendCode(ctx, user.Email, otp.EmailVerification); err != nil {
		return identity.User{}, err
	}
	return user, nil
}

// VerifyEmail consumes the email_verification code, marks the account
// verified and opens a session.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (Authenticated, error) {
	if email == "" || code == "" {
		return Authenticated{}, apperr.Validation("Email and OTP are required")
	}
	if err := s.otps.Verify(ctx, email, code, otp.EmailVerification); err != nil {
		return Authenticated{}, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return Authenticated{}, lookupError(err)
	}
	if !user.EmailVerified {
		if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return Authenticated{}, apperr.Internal(fmt.Errorf("mark verified: %w", err))
		}
		user.EmailVerified = true
	}
	s.logger.Info("email verified", slog.String("user_id", user.ID))

	s.syncChat(ctx, user)
	return s.mint(user)
}

// ResendOTP issues a new code for purpose, invalidating the previous one.
// Device codes can only be resent while a login step-up is pending.
func (s *Service) ResendOTP(ctx context.Context, email, purpose string) error {
	if email == "" {
		return apperr.Validation("Email is required")
	}
	p, err := otp.ParsePurpose(purpose)
	if err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return lookupError(err)
	}
	if p == otp.EmailVerification {
		if user.EmailVerified {
			return apperr.Validation("Email is already verified")
		}
		return s.sendCode(ctx, user.Email, p)
	}

	// A device code only exists after a password login; resend may replace
	// it but never create one.
	code, err := s.otps.Reissue(ctx, user.Email, p)
	if errors.Is(err, otp.ErrNoPendingChallenge) {
		return apperr.Validation("No pending device verification, please log in again")
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("reissue %s code: %w", p, err))
	}
	return s.deliver(ctx, user.Email, p, code)
}

func lookupError(err error) error {
	if errors.Is(err, identity.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	return apperr.Internal(err)
}
