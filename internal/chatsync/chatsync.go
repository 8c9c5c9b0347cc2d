// Package chatsync mirrors user identities into the external chat directory.
// Sync is best effort: failures are logged and never surface to callers.
package chatsync

import (
	"context"
	"log/slog"
	"time"
)

// Identity is the subset of a user the chat directory knows about.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Directory upserts identities in the chat provider.
type Directory interface {
	Upsert(ctx context.Context, identity Identity) error
}

// Noop is used when no chat provider is configured.
type Noop struct{}

func (Noop) Upsert(context.Context, Identity) error { return nil }

// Syncer bounds and logs directory updates.
type Syncer struct {
	dir     Directory
	timeout time.Duration
	logger  *slog.Logger
}

func NewSyncer(dir Directory, timeout time.Duration, logger *slog.Logger) *Syncer {
	if dir == nil {
		dir = Noop{}
	}
	return &Syncer{dir: dir, timeout: timeout, logger: logger}
}

// Sync pushes identity to the directory within the configured timeout.
func (s *Syncer) Sync(ctx context.Context, identity Identity) {
	if s == nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.dir.Upsert(ctx, identity); err != nil && s.logger != nil {
		s.logger.Warn("chat directory sync failed", slog.String("user_id", identity.ID), slog.Any("error", err))
	}
}
