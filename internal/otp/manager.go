// Package otp issues and verifies short-lived single-use numeric codes
// bound to an email address and a purpose.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/stellar-social/stellar/internal/apperr"
)

const (
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute

	codeFloor = 100000
	codeSpan  = 900000
)

// ErrNoPendingChallenge is returned by Reissue when there is no live
// challenge to replace.
var ErrNoPendingChallenge = errors.New("otp: no pending challenge")

// Manager issues and verifies challenges against a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// Option customises a Manager.
type Option func(*Manager)

// WithRandom sets the entropy source for codes. Tests use it to make codes
// predictable.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) { m.random = r }
}

// NewManager wires a Manager. A non-positive ttl falls back to DefaultTTL.
func NewManager(store Store, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{store: store, ttl: ttl, now: time.Now, random: rand.Reader}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL reports how long issued codes remain valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a fresh code for (email, purpose), superseding any earlier one.
func (m *Manager) Issue(ctx context.Context, email string, purpose Purpose) (string, error) {
	code, ch, err := m.newChallenge(email, purpose)
	if err != nil {
		return "", err
	}
	if err := m.store.Replace(ctx, ch); err != nil {
		return "", err
	}
	return code, nil
}

// Reissue replaces a live, unconsumed challenge with a fresh code. It fails
// with ErrNoPendingChallenge when nothing is outstanding, so a resend can
// never open a challenge that an earlier step did not.
func (m *Manager) Reissue(ctx context.Context, email string, purpose Purpose) (string, error) {
	code, ch, err := m.newChallenge(email, purpose)
	if err != nil {
		return "", err
	}
	ok, err := m.store.ReplacePending(ctx, ch, ch.CreatedAt)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoPendingChallenge
	}
	return code, nil
}

func (m *Manager) newChallenge(email string, purpose Purpose) (string, Challenge, error) {
	n, err := rand.Int(m.random, big.NewInt(codeSpan))
	if err != nil {
		return "", Challenge{}, fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+codeFloor)

	now := m.now().UTC()
	return code, Challenge{
		Email:     email,
		Purpose:   purpose,
		Digest:    digest(code),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}, nil
}

// Verify consumes the code. Unknown, wrong, expired, consumed and
// wrong-purpose codes all yield the same InvalidOrExpired error.
func (m *Manager) Verify(ctx context.Context, email, code string, purpose Purpose) error {
	if email == "" || code == "" {
		return apperr.InvalidOrExpired()
	}
	ok, err := m.store.Consume(ctx, email, purpose, digest(code), m.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidOrExpired()
	}
	return nil
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
