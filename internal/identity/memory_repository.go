package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

// NewMemoryRepository builds an in-memory user store for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]User), byEmail: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *User) {
		u.EmailVerified = true
		u.UpdatedAt = at.UTC()
	})
}

func (r *memoryRepository) LinkExternalID(_ context.Context, id, externalID string, at time.Time) error {
	return r.update(id, func(u *User) {
		u.ExternalID = externalID
		u.UpdatedAt = at.UTC()
	})
}

func (r *memoryRepository) UpdateProfile(_ context.Context, id string, p Profile, at time.Time) (User, error) {
	err := r.update(id, func(u *User) {
		u.FullName = p.FullName
		u.Bio = p.Bio
		u.NativeLanguage = p.NativeLanguage
		u.LearningLanguage = p.LearningLanguage
		u.Location = p.Location
		if p.ProfilePic != "" {
			u.ProfilePic = p.ProfilePic
		}
		u.Onboarded = true
		u.UpdatedAt = at.UTC()
	})
	if err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id], nil
}

func (r *memoryRepository) update(id string, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(&user)
	r.byID[id] = user
	return nil
}
