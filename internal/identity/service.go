package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stellar-social/stellar/internal/apperr"
	"github.com/stellar-social/stellar/internal/validation"
)

const (
	minPasswordLength = 6
	avatarCount       = 100
)

// Service manages the user lifecycle and password hashing.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RandomAvatarURL picks one of the public placeholder avatars.
func RandomAvatarURL() string {
	return fmt.Sprintf("https://avatar.iran.liara.run/public/%d.png", rand.IntN(avatarCount)+1)
}

// CreateUser validates the input, hashes the password and stores a new user.
// Accounts created with EmailPreverified start verified and may have no password.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (User, error) {
	if in.Email == "" || in.FullName == "" || (!in.EmailPreverified && in.Password == "") {
		return User{}, apperr.Validation("All fields are required")
	}
	if in.Password != "" || !in.EmailPreverified {
		if len(in.Password) < minPasswordLength {
			return User{}, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
		}
	}
	if err := validation.Struct(in); err != nil {
		return User{}, err
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return User{}, apperr.DuplicateEmail()
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("lookup email: %w", err)
	}

	var hash []byte
	if in.Password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	pic := in.ProfilePic
	if pic == "" {
		pic = RandomAvatarURL()
	}
	now := s.now().UTC()
	user := User{
		ID:            uuid.New().String(),
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  hash,
		ProfilePic:    pic,
		ExternalID:    in.ExternalID,
		EmailVerified: in.EmailPreverified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, apperr.DuplicateEmail()
		}
		return User{}, err
	}
	return user, nil
}

// VerifyPassword reports whether candidate matches the stored hash.
// Users without a password never match.
func (s *Service) VerifyPassword(user User, candidate string) bool {
	if !user.HasPassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(candidate)) == nil
}

// FindByEmail returns ErrNotFound when no account uses email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// FindByID returns ErrNotFound when the id is unknown.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) MarkEmailVerified(ctx context.Context, id string) error {
	return s.repo.MarkEmailVerified(ctx, id, s.now())
}

func (s *Service) LinkExternalID(ctx context.Context, id, externalID string) error {
	return s.repo.LinkExternalID(ctx, id, externalID, s.now())
}

// Onboard stores the profile and marks the user onboarded.
func (s *Service) Onboard(ctx context.Context, id string, profile Profile) (User, error) {
	if err := validation.Struct(profile); err != nil {
		return User{}, err
	}
	return s.repo.UpdateProfile(ctx, id, profile, s.now())
}
