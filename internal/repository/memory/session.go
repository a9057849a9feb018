package memory

import (
	"context"
	"sync"
	"time"

	"shrinkbot/internal/domain/conversation"
	"shrinkbot/internal/metrics"
	"shrinkbot/pkg/errors"
)

const storeName = "memory"

type entry struct {
	session   *conversation.Session
	expiresAt time.Time
}

// SessionRepository implements conversation.Repository with an in-process map
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[int64]entry
	now      func() time.Time
}

// NewSessionRepository creates an empty in-memory session store
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[int64]entry),
		now:      time.Now,
	}
}

// Get returns a copy of the stored session
func (r *SessionRepository) Get(ctx context.Context, telegramID int64) (*conversation.Session, error) {
	start := time.Now()

	r.mu.RLock()
	e, ok := r.sessions[telegramID]
	r.mu.RUnlock()

	var err error
	if !ok || r.expired(e) {
		err = errors.Wrapf(errors.ErrNotFound, "session for telegram_id %d", telegramID)
	}
	metrics.RecordStoreOp(storeName, "get", time.Since(start), ignoreNotFound(err))

	if err != nil {
		return nil, err
	}
	return e.session.Clone(), nil
}

// Save stores a copy of session; a non-positive ttl keeps it until deleted
func (r *SessionRepository) Save(ctx context.Context, session *conversation.Session, ttl time.Duration) error {
	if session == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil session")
	}
	start := time.Now()

	e := entry{session: session.Clone()}
	if ttl > 0 {
		e.expiresAt = r.now().Add(ttl)
	}

	r.mu.Lock()
	r.sessions[session.TelegramID] = e
	r.mu.Unlock()

	metrics.RecordStoreOp(storeName, "save", time.Since(start), nil)
	return nil
}

// Delete removes the session if present
func (r *SessionRepository) Delete(ctx context.Context, telegramID int64) error {
	start := time.Now()

	r.mu.Lock()
	delete(r.sessions, telegramID)
	r.mu.Unlock()

	metrics.RecordStoreOp(storeName, "delete", time.Since(start), nil)
	return nil
}

// Cleanup removes expired sessions and returns how many were dropped
func (r *SessionRepository) Cleanup(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if r.expired(e) {
			delete(r.sessions, id)
			removed++
		}
	}

	return removed, nil
}

// Count returns number of live sessions
func (r *SessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.sessions {
		if !r.expired(e) {
			n++
		}
	}
	return n
}

// CountByState groups live sessions by conversation state
func (r *SessionRepository) CountByState(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range r.sessions {
		if !r.expired(e) {
			counts[e.session.State.String()]++
		}
	}
	return counts, nil
}

func (r *SessionRepository) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	return err
}
