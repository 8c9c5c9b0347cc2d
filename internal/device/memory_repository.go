package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.Mutex
	devices map[string]Device // keyed by user id + "\x00" + fingerprint
}

// NewMemoryRepository builds an in-memory device store for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{devices: make(map[string]Device)}
}

func pairKey(userID, fingerprint string) string {
	return userID + "\x00" + fingerprint
}

func (r *memoryRepository) Find(_ context.Context, userID, fingerprint string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[pairKey(userID, fingerprint)]
	if !ok {
		return Device{}, ErrNotFound
	}
	return d, nil
}

func (r *memoryRepository) Upsert(_ context.Context, d Device) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(d.UserID, d.Fingerprint)
	if existing, ok := r.devices[key]; ok {
		existing.Metadata = d.Metadata
		existing.LastUsedAt = d.LastUsedAt
		r.devices[key] = existing
		return existing, nil
	}
	r.devices[key] = d
	return d, nil
}

func (r *memoryRepository) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, d := range r.devices {
		if d.ID == id {
			d.LastUsedAt = at.UTC()
			r.devices[key] = d
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Device
	for _, d := range r.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsedAt.After(out[j].LastUsedAt) })
	return out, nil
}

func (r *memoryRepository) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, d := range r.devices {
		if d.UserID == userID {
			delete(r.devices, key)
			n++
		}
	}
	return n, nil
}
