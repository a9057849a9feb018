package conversation

import (
	"context"
	"sync"

	"shrinkbot/pkg/errors"
)

// Locker serializes work on one conversation. unlock must be called exactly once on success.
type Locker interface {
	Lock(ctx context.Context, telegramID int64) (unlock func(), err error)
}

// KeyedLocker is an in-process Locker with one slot per telegram user
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates an empty locker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[int64]*slot)}
}

// Lock blocks until the user's slot is free or ctx is done
func (l *KeyedLocker) Lock(ctx context.Context, telegramID int64) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[telegramID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[telegramID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(telegramID, s)
		return nil, errors.WithKind(errors.Wrapf(ctx.Err(), "waiting for session lock telegram_id=%d", telegramID), errors.ErrTimeout)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(telegramID, s)
		})
	}, nil
}

// Len returns the number of users currently holding or waiting for a slot
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *KeyedLocker) release(telegramID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, telegramID)
	}
}
