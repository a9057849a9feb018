package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shrinkbot/internal/domain/conversation"
	"shrinkbot/internal/metrics"
	"shrinkbot/pkg/errors"
)

const (
	storeName = "redis"
	keyPrefix = "shrinkbot:session:"
	scanBatch = 200
)

// SessionRepository implements conversation.Repository using Redis
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{
		client: client,
	}
}

// Get retrieves a session by telegram ID
func (r *SessionRepository) Get(ctx context.Context, telegramID int64) (session *conversation.Session, err error) {
	start := time.Now()
	defer func() {
		recorded := err
		if errors.Is(err, errors.ErrNotFound) {
			recorded = nil
		}
		metrics.RecordStoreOp(storeName, "get", time.Since(start), recorded)
	}()

	data, err := r.client.Get(ctx, r.getKey(telegramID)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "session not found for telegram_id=%d", telegramID)
	}
	if err != nil {
		return nil, errors.WithKind(
			errors.Wrapf(err, "failed to get session from redis: telegram_id=%d", telegramID),
			errors.ErrUnavailable,
		)
	}

	var s conversation.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session: telegram_id=%d", telegramID)
	}

	return &s, nil
}

// Save stores a session with TTL
func (r *SessionRepository) Save(ctx context.Context, session *conversation.Session, ttl time.Duration) (err error) {
	if session == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil session")
	}

	start := time.Now()
	defer func() { metrics.RecordStoreOp(storeName, "save", time.Since(start), err) }()

	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal session: telegram_id=%d", session.TelegramID)
	}

	if err := r.client.Set(ctx, r.getKey(session.TelegramID), data, ttl).Err(); err != nil {
		return errors.WithKind(
			errors.Wrapf(err, "failed to save session to redis: telegram_id=%d", session.TelegramID),
			errors.ErrUnavailable,
		)
	}

	return nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, telegramID int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp(storeName, "delete", time.Since(start), err) }()

	if err := r.client.Del(ctx, r.getKey(telegramID)).Err(); err != nil {
		return errors.WithKind(
			errors.Wrapf(err, "failed to delete session from redis: telegram_id=%d", telegramID),
			errors.ErrUnavailable,
		)
	}

	return nil
}

// CountByState scans all session keys and groups them by state
func (r *SessionRepository) CountByState(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	keys := make([]string, 0, scanBatch)

	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return errors.Wrap(err, "failed to load sessions for counting")
		}
		for _, v := range values {
			// nil when the key expired between SCAN and MGET
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var s conversation.Session
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				continue
			}
			counts[s.State.String()]++
		}
		keys = keys[:0]
		return nil
	}

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan session keys")
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return counts, nil
}

// Cleanup is a no-op; Redis expires session keys on its own
func (r *SessionRepository) Cleanup(ctx context.Context) (int, error) {
	return 0, nil
}

func (r *SessionRepository) getKey(telegramID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, telegramID)
}
