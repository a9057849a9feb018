package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
)

const (
	lockPrefix        = "shrinkbot:lock:"
	defaultLockTTL    = 5 * time.Minute
	defaultRetryDelay = 50 * time.Millisecond
	lockOpTimeout     = 3 * time.Second
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the lock only if it still holds our token
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// SessionLocker serializes conversation handling across replicas sharing one Redis.
// A held lock is refreshed every ttl/3, so ttl only bounds how long a crashed holder blocks others.
type SessionLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
	log   *logger.Logger
}

// NewSessionLocker creates a distributed per-user lock
func NewSessionLocker(c *Client, ttl time.Duration, log *logger.Logger) *SessionLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &SessionLocker{rdb: c.rdb, ttl: ttl, retry: defaultRetryDelay, log: log}
}

// Lock polls SET NX until acquired or ctx is done
func (l *SessionLocker) Lock(ctx context.Context, telegramID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", lockPrefix, telegramID)
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.WithKind(errors.Wrapf(ctx.Err(), "waiting for session lock telegram_id=%d", telegramID), errors.ErrTimeout)
			}
			return nil, errors.WithKind(errors.Wrapf(err, "failed to acquire session lock telegram_id=%d", telegramID), errors.ErrUnavailable)
		}
		if ok {
			return l.hold(key, token, telegramID), nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.WithKind(errors.Wrapf(ctx.Err(), "waiting for session lock telegram_id=%d", telegramID), errors.ErrTimeout)
		case <-timer.C:
		}
	}
}

// hold keeps the lock alive until the returned unlock is called
func (l *SessionLocker) hold(key, token string, telegramID int64) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		every := l.ttl / 3
		if every <= 0 {
			every = l.ttl
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
			n, err := refreshScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int64()
			cancel()

			if err != nil {
				// the key still has up to two thirds of its ttl; try again next tick
				l.log.Warnw("Failed to refresh session lock", "telegram_id", telegramID, "error", err)
				continue
			}
			if n == 0 {
				l.log.Errorw("Session lock lost while held", "telegram_id", telegramID, "ttl", l.ttl)
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// the caller's ctx may already be cancelled at this point
			ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
			defer cancel()

			n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
			switch {
			case err != nil:
				l.log.Warnw("Failed to release session lock", "telegram_id", telegramID, "error", err)
			case n == 0:
				l.log.Warnw("Session lock expired before release", "telegram_id", telegramID, "ttl", l.ttl)
			}
		})
	}
}
