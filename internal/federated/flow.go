package federated

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

// Flow drives the redirect dance: Begin hands out a consent URL and
// Complete turns the callback into an Assertion.
type Flow struct {
	provider Provider
	states   StateStore
}

func NewFlow(provider Provider, states StateStore) *Flow {
	return &Flow{provider: provider, states: states}
}

// Provider returns the provider name.
func (f *Flow) Provider() string {
	return f.provider.Name()
}

// Begin records a fresh state and PKCE verifier and returns the consent URL.
func (f *Flow) Begin(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	verifier := oauth2.GenerateVerifier()
	if err := f.states.Save(ctx, state, verifier, StateTTL); err != nil {
		return "", err
	}
	return f.provider.AuthCodeURL(state, verifier), nil
}

// Complete redeems state and exchanges code. A state works only once.
func (f *Flow) Complete(ctx context.Context, state, code string) (Assertion, error) {
	if state == "" || code == "" {
		return Assertion{}, ErrInvalidState
	}
	verifier, err := f.states.Take(ctx, state)
	if err != nil {
		return Assertion{}, err
	}
	return f.provider.Exchange(ctx, code, verifier)
}
