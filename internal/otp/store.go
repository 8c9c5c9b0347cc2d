package otp

import (
	"context"
	"time"
)

// Challenge is the stored form of an issued code. The code itself is never
// kept, only its digest.
type Challenge struct {
	Email     string
	Purpose   Purpose
	Digest    string
	Consumed  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Store keeps at most one challenge per (email, purpose).
type Store interface {
	// Replace atomically discards any previous challenge for the same
	// (email, purpose) and stores ch.
	Replace(ctx context.Context, ch Challenge) error
	// ReplacePending is Replace guarded by the previous challenge: it stores
	// ch and reports true only if an unconsumed challenge for the same
	// (email, purpose) was still live at now.
	ReplacePending(ctx context.Context, ch Challenge, now time.Time) (bool, error)
	// Consume marks the matching challenge consumed and reports true only if
	// it existed, matched digest, was unconsumed and had not expired at now.
	Consume(ctx context.Context, email string, purpose Purpose, digest string, now time.Time) (bool, error)
}
