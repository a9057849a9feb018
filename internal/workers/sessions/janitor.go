package sessions

import (
	"context"
	"time"

	"shrinkbot/internal/workers"
	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
)

// Sweeper drops expired sessions and reports how many it removed
type Sweeper interface {
	Cleanup(ctx context.Context) (int, error)
}

// Janitor periodically evicts idle sessions from stores that do not expire keys themselves
type Janitor struct {
	*workers.BaseWorker
	store Sweeper
}

// NewJanitor creates the session janitor worker
func NewJanitor(store Sweeper, interval time.Duration, enabled bool, log *logger.Logger) *Janitor {
	return &Janitor{
		BaseWorker: workers.NewBaseWorker("session_janitor", interval, enabled, log),
		store:      store,
	}
}

// Run performs one sweep
func (j *Janitor) Run(ctx context.Context) error {
	removed, err := j.store.Cleanup(ctx)
	if err != nil {
		return errors.Wrap(err, "session cleanup failed")
	}

	if removed > 0 {
		j.Log().Infow("Expired sessions removed", "count", removed)
	}
	return nil
}
