package federated

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateTTL bounds how long a user may take on the provider consent screen.
const StateTTL = 10 * time.Minute

// StateStore keeps the PKCE verifier for each outstanding state. Take
// removes the entry so a state can be redeemed at most once.
type StateStore interface {
	Save(ctx context.Context, state, verifier string, ttl time.Duration) error
	Take(ctx context.Context, state string) (string, error)
}

const statePrefix = "oauth_state:v1:"

// RedisStateStore shares state across instances.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, state, verifier string, ttl time.Duration) error {
	if err := s.client.Set(ctx, statePrefix+state, verifier, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	verifier, err := s.client.GetDel(ctx, statePrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("take oauth state: %w", err)
	}
	return verifier, nil
}

type memoryState struct {
	verifier  string
	expiresAt time.Time
}

type memoryStateStore struct {
	mu     sync.Mutex
	states map[string]memoryState
	now    func() time.Time
}

// NewMemoryStateStore builds a single-process state store for development.
func NewMemoryStateStore() StateStore {
	return &memoryStateStore{states: make(map[string]memoryState), now: time.Now}
}

func (s *memoryStateStore) Save(_ context.Context, state, verifier string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.states {
		if now.After(v.expiresAt) {
			delete(s.states, k)
		}
	}
	s.states[state] = memoryState{verifier: verifier, expiresAt: now.Add(ttl)}
	return nil
}

func (s *memoryStateStore) Take(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[state]
	delete(s.states, state)
	if !ok || s.now().After(entry.expiresAt) {
		return "", ErrInvalidState
	}
	return entry.verifier, nil
}
