package auth

import (
	"context"
	"errors"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/device"
	"github.com/stellar-social/stellar/internal/identity"
)

// Me returns the account behind a session subject.
func (s *Service) Me(ctx context.Context, userID string) (identity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return identity.User{}, sessionUserError(err)
	}
	return user, nil
}

// Onboard stores the profile and mirrors the new name and avatar to chat.
func (s *Service) Onboard(ctx context.Context, userID string, profile identity.Profile) (identity.User, error) {
	user, err := s.users.Onboard(ctx, userID, profile)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return identity.User{}, err
		}
		return identity.User{}, sessionUserError(err)
	}
	s.syncChat(ctx, user)
	return user, nil
}

// Devices lists the caller's trusted devices.
func (s *Service) Devices(ctx context.Context, userID string) ([]device.Device, error) {
	list, err := s.devices.List(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return list, nil
}

// RevokeDevices drops every trusted device so the next login steps up again.
func (s *Service) RevokeDevices(ctx context.Context, userID string) (int64, error) {
	n, err := s.devices.RevokeAll(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// A valid token for a deleted account is treated as no session.
func sessionUserError(err error) error {
	if errors.Is(err, identity.ErrNotFound) {
		return apperr.Unauthenticated()
	}
	return apperr.Internal(err)
}
