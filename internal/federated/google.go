package federated

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"google.golang.org/api/idtoken"

	"github.com/stellar-social/stellar/internal/config"
)

type idTokenValidator func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// GoogleProvider signs users in with Google and trusts the claims of the
// validated ID token.
type GoogleProvider struct {
	oauth    *oauth2.Config
	validate idTokenValidator
}

func NewGoogleProvider(cfg config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		validate: idtoken.Validate,
	}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (Assertion, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Assertion{}, fmt.Errorf("google exchange: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return Assertion{}, errors.New("google exchange: missing id_token")
	}
	payload, err := p.validate(ctx, raw, p.oauth.ClientID)
	if err != nil {
		return Assertion{}, fmt.Errorf("google id_token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return Assertion{}, errors.New("google id_token: no email")
	}
	if verified, _ := payload.Claims["email_verified"].(bool); !verified {
		return Assertion{}, errors.New("google id_token: email not verified")
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	return Assertion{
		Provider:    p.Name(),
		ExternalID:  payload.Subject,
		Email:       email,
		DisplayName: name,
		AvatarURL:   picture,
	}, nil
}
