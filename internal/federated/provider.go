// Package federated adapts external identity providers into verified
// assertions the auth flows can trust.
package federated

import (
	"context"
	"errors"
)

// ErrInvalidState is returned when the callback state is unknown, expired or reused.
var ErrInvalidState = errors.New("federated: invalid or expired state")

// Assertion is a provider-verified statement about a user.
type Assertion struct {
	Provider    string
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Provider runs the authorization-code exchange with one identity provider.
type Provider interface {
	Name() string
	// AuthCodeURL returns the consent URL for state, bound to verifier via PKCE.
	AuthCodeURL(state, verifier string) string
	// Exchange trades code for a verified assertion.
	Exchange(ctx context.Context, code, verifier string) (Assertion, error)
}
