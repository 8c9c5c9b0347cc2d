package otp

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

// NewMemoryStore builds an in-process challenge store for tests and local development.
func NewMemoryStore() Store {
	return &memoryStore{challenges: make(map[string]Challenge)}
}

func (s *memoryStore) Replace(_ context.Context, ch Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challengeKey(ch.Email, ch.Purpose)] = ch
	return nil
}

func (s *memoryStore) ReplacePending(_ context.Context, ch Challenge, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := challengeKey(ch.Email, ch.Purpose)
	prev, ok := s.challenges[key]
	if !ok || prev.Consumed || !prev.ExpiresAt.After(now) {
		return false, nil
	}
	s.challenges[key] = ch
	return true, nil
}

func (s *memoryStore) Consume(_ context.Context, email string, purpose Purpose, digest string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := challengeKey(email, purpose)
	ch, ok := s.challenges[key]
	if !ok || ch.Consumed || ch.Digest != digest || !ch.ExpiresAt.After(now) {
		return false, nil
	}
	ch.Consumed = true
	s.challenges[key] = ch
	return true, nil
}
