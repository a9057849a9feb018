package conversation

import (
	"context"
	"time"
)

// Repository stores sessions keyed by telegram user ID
type Repository interface {
	// Get returns errors.ErrNotFound when the user has no session
	Get(ctx context.Context, telegramID int64) (*Session, error)

	// Save stores a session with TTL
	Save(ctx context.Context, session *Session, ttl time.Duration) error

	// Delete removes a session; deleting a missing session is not an error
	Delete(ctx context.Context, telegramID int64) error
}
