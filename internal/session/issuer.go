// Package session mints and validates the signed tokens carried in the
// session cookie.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/identity"
)

// DefaultTTL is the session lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// Token is a signed session token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer signs HS256 session tokens whose subject is the user id.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL reports the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for user. Accounts that have not verified their email
// never get one.
func (i *Issuer) Issue(user identity.User) (Token, error) {
	if user.ID == "" {
		return Token{}, apperr.Internal(errors.New("session: empty subject"))
	}
	if !user.EmailVerified {
		return Token{}, apperr.UnverifiedEmail()
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign session: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Validate checks signature, issuer and expiry and returns the user id.
func (i *Issuer) Validate(token string) (string, error) {
	if token == "" {
		return "", apperr.Unauthenticated()
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, i.KeyFunc(), i.ParserOptions()...)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", apperr.Unauthenticated()
	}
	return claims.Subject, nil
}

// KeyFunc returns the signing key after checking the algorithm.
func (i *Issuer) KeyFunc() jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}
}

// Subject accepts claims that a parser using KeyFunc already verified,
// applying the issuer and expiry rules of Validate.
func (i *Issuer) Subject(claims *jwt.RegisteredClaims) (string, error) {
	if claims == nil || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", apperr.Unauthenticated()
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return "", apperr.Unauthenticated()
	}
	if !i.now().Before(claims.ExpiresAt.Time) {
		return "", apperr.Unauthenticated()
	}
	return claims.Subject, nil
}

// ParserOptions pins the algorithm and issuer accepted by Validate.
func (i *Issuer) ParserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	return opts
}
