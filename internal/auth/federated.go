package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/federated"
	"github.com/stellar-social/stellar/internal/identity"
)

// ResolveFederated maps a provider assertion onto a local account, creating
// a verified password-less one when the email is new, and opens a session.
// No OTP is involved; the provider already proved control of the email.
func (s *Service) ResolveFederated(ctx context.Context, a federated.Assertion) (Authenticated, error) {
	if a.Email == "" || a.ExternalID == "" {
		return Authenticated{}, apperr.Validation("Incomplete identity assertion")
	}

	user, err := s.users.FindByEmail(ctx, a.Email)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		user, err = s.users.CreateUser(ctx, identity.NewUser{
			Email:            a.Email,
			FullName:         displayName(a),
			ProfilePic:       a.AvatarURL,
			ExternalID:       a.ExternalID,
			EmailPreverified: true,
		})
		if err != nil {
			return Authenticated{}, err
		}
		s.logger.Info("federated account created", slog.String("user_id", user.ID), slog.String("provider", a.Provider))
	case err != nil:
		return Authenticated{}, apperr.Internal(err)
	default:
		if !user.EmailVerified {
			if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
				return Authenticated{}, apperr.Internal(fmt.Errorf("mark verified: %w", err))
			}
			user.EmailVerified = true
		}
		if user.ExternalID == "" {
			if err := s.users.LinkExternalID(ctx, user.ID, a.ExternalID); err != nil {
				return Authenticated{}, apperr.Internal(fmt.Errorf("link external id: %w", err))
			}
			user.ExternalID = a.ExternalID
		}
	}

	s.syncChat(ctx, user)
	return s.mint(user)
}

func displayName(a federated.Assertion) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	local, _, _ := strings.Cut(a.Email, "@")
	return local
}
