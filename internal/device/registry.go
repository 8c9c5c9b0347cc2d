// Package device tracks which (user, fingerprint) pairs have completed a
// device verification and may skip it on later logins.
package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stellar-social/stellar/internal/apperr"
)

// DefaultTTL is how long a device stays trusted without being used.
const DefaultTTL = 30 * 24 * time.Hour

// Registry answers trust questions and records trusted devices.
type Registry struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewRegistry builds a Registry. Trust lapses after ttl of inactivity;
// a non-positive ttl disables expiry.
func NewRegistry(repo Repository, ttl time.Duration) *Registry {
	return &Registry{repo: repo, ttl: ttl, now: time.Now}
}

// IsTrusted reports whether fingerprint is a live trusted device of userID.
// Fingerprints compare by exact string match; an empty one is never trusted.
func (r *Registry) IsTrusted(ctx context.Context, userID, fingerprint string) (Device, bool, error) {
	if userID == "" || fingerprint == "" {
		return Device{}, false, nil
	}
	d, err := r.repo.Find(ctx, userID, fingerprint)
	if errors.Is(err, ErrNotFound) {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, err
	}
	if r.expired(d) {
		return d, false, nil
	}
	return d, true, nil
}

// Remember trusts the device, refreshing metadata if it is already known.
func (r *Registry) Remember(ctx context.Context, userID, fingerprint string, meta Metadata) (Device, error) {
	if fingerprint == "" {
		return Device{}, apperr.Validation("Device fingerprint is required")
	}
	now := r.now().UTC()
	return r.repo.Upsert(ctx, Device{
		ID:          uuid.New().String(),
		UserID:      userID,
		Fingerprint: fingerprint,
		Metadata:    meta,
		LastUsedAt:  now,
		CreatedAt:   now,
	})
}

// Touch bumps the last-used time, which also extends trust.
func (r *Registry) Touch(ctx context.Context, d Device) error {
	return r.repo.Touch(ctx, d.ID, r.now())
}

// List returns the user's devices that are still trusted, most recent first.
func (r *Registry) List(ctx context.Context, userID string) ([]Device, error) {
	all, err := r.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := make([]Device, 0, len(all))
	for _, d := range all {
		if !r.expired(d) {
			live = append(live, d)
		}
	}
	return live, nil
}

// RevokeAll forgets every device of the user and returns how many were removed.
func (r *Registry) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return r.repo.DeleteByUser(ctx, userID)
}

func (r *Registry) expired(d Device) bool {
	return r.ttl > 0 && r.now().Sub(d.LastUsedAt) > r.ttl
}
